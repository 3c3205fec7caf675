package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/bussola-digital/bussola-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(

		// =========================
		// Identity
		// =========================
		&types.Company{},
		&types.User{},

		// =========================
		// Diagnostic lifecycle
		// =========================
		&types.Assessment{},
		&types.Answer{},
		&types.ProcessScore{},

		// =========================
		// Root causes + recommendations
		// =========================
		&types.GapCauseRecord{},
		&types.Recommendation{},

		// =========================
		// Improvement cycle
		// =========================
		&types.PlanSlot{},
		&types.DodConfirmation{},
		&types.Evidence{},

		// =========================
		// Frozen views
		// =========================
		&types.Snapshot{},
	)
}

// EnsureDomainIndexes adds the partial and expression indexes AutoMigrate
// cannot express through struct tags.
func EnsureDomainIndexes(db *gorm.DB) error {
	// Case-insensitive login lookups.
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_user_email_lower
		ON "user" (lower(email));
	`).Error; err != nil {
		return fmt.Errorf("create idx_user_email_lower: %w", err)
	}

	// One open draft per company at a time.
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_assessment_company_draft
		ON assessment (company_id)
		WHERE status = 'DRAFT';
	`).Error; err != nil {
		return fmt.Errorf("create idx_assessment_company_draft: %w", err)
	}

	// History queries walk a company's versions newest first.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_assessment_company_version_desc
		ON assessment (company_id, full_version DESC);
	`).Error; err != nil {
		return fmt.Errorf("create idx_assessment_company_version_desc: %w", err)
	}

	return nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	if err := EnsureDomainIndexes(s.db); err != nil {
		s.log.Error("Domain index migration failed", "error", err)
		return err
	}
	return nil
}
