package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bussola-digital/bussola-backend/internal/observability"
)

// Metrics records per-route latency and status counters. Routes are
// labelled by gin's template path so path parameters do not explode the
// label space.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		m := observability.Current()
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		m.ApiInflightInc()
		c.Next()
		m.ApiInflightDec()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveAPI(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
