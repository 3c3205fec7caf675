package assessment

import (
	"context"
	"errors"
	"time"

	types "github.com/bussola-digital/bussola-backend/internal/domain"
	"github.com/bussola-digital/bussola-backend/internal/platform/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AssessmentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, assessment *types.Assessment) (*types.Assessment, error)
	GetByID(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID) (*types.Assessment, error)
	// GetCurrent returns the company's highest full_version, or nil when the
	// company never started a diagnosis.
	GetCurrent(ctx context.Context, tx *gorm.DB, companyID uuid.UUID) (*types.Assessment, error)
	GetByVersion(ctx context.Context, tx *gorm.DB, companyID uuid.UUID, fullVersion int) (*types.Assessment, error)
	ListByCompany(ctx context.Context, tx *gorm.DB, companyID uuid.UUID) ([]*types.Assessment, error)
	MaxFullVersion(ctx context.Context, tx *gorm.DB, companyID uuid.UUID) (int, error)
	SetSubmitted(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID, at time.Time) error
	SetClosed(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID, at time.Time) error
	// ReopenForCycle moves a CLOSED assessment back to SUBMITTED with the
	// next cycle number.
	ReopenForCycle(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID, cycle int) error
}

type assessmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAssessmentRepo(db *gorm.DB, baseLog *logger.Logger) AssessmentRepo {
	repoLog := baseLog.With("repo", "AssessmentRepo")
	return &assessmentRepo{db: db, log: repoLog}
}

func (ar *assessmentRepo) Create(ctx context.Context, tx *gorm.DB, assessment *types.Assessment) (*types.Assessment, error) {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}
	if err := transaction.WithContext(ctx).Create(assessment).Error; err != nil {
		return nil, err
	}
	return assessment, nil
}

func (ar *assessmentRepo) GetByID(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID) (*types.Assessment, error) {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}
	var result types.Assessment
	if err := transaction.WithContext(ctx).
		Where("id = ?", assessmentID).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (ar *assessmentRepo) GetCurrent(ctx context.Context, tx *gorm.DB, companyID uuid.UUID) (*types.Assessment, error) {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}
	var result types.Assessment
	err := transaction.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("full_version DESC").
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (ar *assessmentRepo) GetByVersion(ctx context.Context, tx *gorm.DB, companyID uuid.UUID, fullVersion int) (*types.Assessment, error) {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}
	var result types.Assessment
	if err := transaction.WithContext(ctx).
		Where("company_id = ? AND full_version = ?", companyID, fullVersion).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (ar *assessmentRepo) ListByCompany(ctx context.Context, tx *gorm.DB, companyID uuid.UUID) ([]*types.Assessment, error) {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}
	var results []*types.Assessment
	if err := transaction.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("full_version ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (ar *assessmentRepo) MaxFullVersion(ctx context.Context, tx *gorm.DB, companyID uuid.UUID) (int, error) {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}
	var max int
	if err := transaction.WithContext(ctx).
		Model(&types.Assessment{}).
		Where("company_id = ?", companyID).
		Select("COALESCE(MAX(full_version), 0)").
		Scan(&max).Error; err != nil {
		return 0, err
	}
	return max, nil
}

func (ar *assessmentRepo) SetSubmitted(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID, at time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Assessment{}).
		Where("id = ?", assessmentID).
		Updates(map[string]any{
			"status":       types.AssessmentSubmitted,
			"submitted_at": at,
		}).Error
}

func (ar *assessmentRepo) SetClosed(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID, at time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Assessment{}).
		Where("id = ?", assessmentID).
		Updates(map[string]any{
			"status":    types.AssessmentClosed,
			"closed_at": at,
		}).Error
}

func (ar *assessmentRepo) ReopenForCycle(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID, cycle int) error {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Assessment{}).
		Where("id = ?", assessmentID).
		Updates(map[string]any{
			"status":    types.AssessmentSubmitted,
			"cycle":     cycle,
			"closed_at": nil,
		}).Error
}
