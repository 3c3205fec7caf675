package testutil

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	types "github.com/bussola-digital/bussola-backend/internal/domain"
	"github.com/bussola-digital/bussola-backend/internal/platform/logger"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var errMissingDSN = errors.New("missing TEST_POSTGRES_DSN")

var (
	dbOnce sync.Once
	db     *gorm.DB
	dbErr  error

	logOnce sync.Once
	logg    *logger.Logger
	logErr  error
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg, logErr = logger.New("test")
	})
	if logErr != nil {
		tb.Fatalf("failed to init logger: %v", logErr)
	}
	return logg
}

func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	dbOnce.Do(func() {
		dsn := os.Getenv("TEST_POSTGRES_DSN")
		if dsn == "" {
			dbErr = errMissingDSN
			return
		}

		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			DisableForeignKeyConstraintWhenMigrating: true,
			TranslateError:                           true,
			Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
		})
		if err != nil {
			dbErr = err
			return
		}

		if err := autoMigrateAll(db); err != nil {
			dbErr = err
			return
		}
	})

	if errors.Is(dbErr, errMissingDSN) {
		tb.Skip("set TEST_POSTGRES_DSN to run repo integration tests")
	}
	if dbErr != nil {
		tb.Fatalf("failed to init test db: %v", dbErr)
	}
	return db
}

func Tx(tb testing.TB, db *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := db.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}

func autoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.Company{},
		&types.User{},

		&types.Assessment{},
		&types.Answer{},
		&types.ProcessScore{},

		&types.GapCauseRecord{},
		&types.Recommendation{},

		&types.PlanSlot{},
		&types.DodConfirmation{},
		&types.Evidence{},

		&types.Snapshot{},
	)
}

// SeedCompany inserts a throwaway company inside tx.
func SeedCompany(tb testing.TB, tx *gorm.DB) *types.Company {
	tb.Helper()
	company := &types.Company{
		ID:      uuid.New(),
		Name:    "Padaria Dois Irmãos",
		Segment: "servicos",
	}
	if err := tx.WithContext(context.Background()).Create(company).Error; err != nil {
		tb.Fatalf("seed company: %v", err)
	}
	return company
}

// SeedUser inserts an owner user for the given company inside tx.
func SeedUser(tb testing.TB, tx *gorm.DB, companyID uuid.UUID) *types.User {
	tb.Helper()
	user := &types.User{
		ID:        uuid.New(),
		CompanyID: companyID,
		Email:     uuid.NewString() + "@example.com",
		Password:  "hash",
		Name:      "Dona Maria",
		Role:      types.RoleOwner,
	}
	if err := tx.WithContext(context.Background()).Create(user).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return user
}

// SeedAssessment inserts a DRAFT assessment for the given company inside tx.
func SeedAssessment(tb testing.TB, tx *gorm.DB, companyID uuid.UUID, fullVersion int) *types.Assessment {
	tb.Helper()
	assessment := &types.Assessment{
		ID:          uuid.New(),
		CompanyID:   companyID,
		Segment:     "servicos",
		FullVersion: fullVersion,
		Cycle:       1,
		Status:      types.AssessmentDraft,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := tx.WithContext(context.Background()).Create(assessment).Error; err != nil {
		tb.Fatalf("seed assessment: %v", err)
	}
	return assessment
}
