// Package pgerr classifies driver-level database errors so callers can
// turn unique-index races into domain outcomes instead of 500s.
package pgerr

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const uniqueViolationCode = "23505"

// IsUniqueViolation reports whether err is a unique-index violation. Both
// forms occur in practice: pgconn surfaces 23505 directly, gorm translates
// it when ErrorTranslator is active, and the sqlite driver only produces
// the gorm form.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}
