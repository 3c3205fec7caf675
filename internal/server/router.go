package server

import (
	"os"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/bussola-digital/bussola-backend/internal/handlers"
	"github.com/bussola-digital/bussola-backend/internal/middleware"
	"github.com/bussola-digital/bussola-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log               *logger.Logger
	DB                *gorm.DB
	AuthHandler       *handlers.AuthHandler
	AuthMiddleware    *middleware.AuthMiddleware
	AssessmentHandler *handlers.AssessmentHandler
	PlanHandler       *handlers.PlanHandler
	SnapshotHandler   *handlers.SnapshotHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("bussola-backend"))
	router.Use(middleware.TraceContext())
	router.Use(middleware.RequestLog(cfg.Log))
	router.Use(middleware.Metrics())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck(cfg.DB))
	api := router.Group("/api")
	{
		api.POST("/register", cfg.AuthHandler.Register)
		api.POST("/login", cfg.AuthHandler.Login)
	}

	// ===============
	// || Protected ||
	// ===============
	protected := router.Group("/api")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	// Diagnostic lifecycle
	protected.POST("/assessments", cfg.AssessmentHandler.Start)
	protected.GET("/assessments/current", cfg.AssessmentHandler.GetCurrent)
	protected.POST("/assessments/redo", cfg.AssessmentHandler.StartNewVersion)
	protected.GET("/assessments/:id/results", cfg.AssessmentHandler.GetResults)
	protected.PUT("/assessments/:id/answers", cfg.AssessmentHandler.UpsertAnswers)
	protected.POST("/assessments/:id/submit", cfg.AssessmentHandler.Submit)
	protected.POST("/assessments/:id/gaps/:gap_id/classify", cfg.AssessmentHandler.ClassifyCause)
	protected.GET("/assessments/:id/suggestions", cfg.AssessmentHandler.GetSuggestedActions)
	// Improvement cycle
	protected.GET("/assessments/:id/plan", cfg.PlanHandler.GetPlan)
	protected.POST("/assessments/:id/plan", cfg.PlanHandler.SelectPlan)
	protected.POST("/assessments/:id/plan/:action_key/dod", cfg.PlanHandler.ConfirmDod)
	protected.POST("/assessments/:id/plan/:action_key/evidence", cfg.PlanHandler.RecordEvidence)
	protected.POST("/assessments/:id/plan/:action_key/status", cfg.PlanHandler.SetActionStatus)
	protected.POST("/assessments/:id/close-cycle", cfg.PlanHandler.CloseCycle)
	protected.POST("/assessments/:id/new-cycle", cfg.PlanHandler.StartNewCycle)
	// Frozen views
	protected.GET("/assessments/:id/snapshot", cfg.SnapshotHandler.GetSnapshot)
	protected.GET("/assessments/compare", cfg.SnapshotHandler.CompareVersions)

	return router
}

func allowedOrigins() []string {
	if raw := os.Getenv("CORS_ALLOW_ORIGINS"); raw != "" {
		return strings.Split(raw, ",")
	}
	return []string{
		"http://localhost:80",
		"http://localhost:3000",
		"http://localhost:5173",
	}
}
