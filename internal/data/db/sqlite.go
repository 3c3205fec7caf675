package db

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/bussola-digital/bussola-backend/internal/platform/envutil"
	"github.com/bussola-digital/bussola-backend/internal/platform/logger"
)

// SqliteService is the single-file dev backend selected with
// DB_DRIVER=sqlite. Production runs on Postgres.
type SqliteService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSqliteService(logg *logger.Logger) (*SqliteService, error) {
	serviceLog := logg.With("service", "SqliteService")
	path := envutil.String("SQLITE_PATH", "bussola.db")

	serviceLog.Info("Opening sqlite database...", "path", path)
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger.Default.LogMode(gormLogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	return &SqliteService{db: db, log: serviceLog}, nil
}

func (s *SqliteService) DB() *gorm.DB { return s.db }

// AutoMigrateAll skips the raw Postgres index statements; sqlite gets only
// what the struct tags declare.
func (s *SqliteService) AutoMigrateAll() error {
	s.log.Info("Auto migrating sqlite tables...")
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	return nil
}
