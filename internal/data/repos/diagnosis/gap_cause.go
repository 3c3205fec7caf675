package diagnosis

import (
	"context"
	"errors"

	types "github.com/bussola-digital/bussola-backend/internal/domain"
	"github.com/bussola-digital/bussola-backend/internal/platform/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GapCauseRepo interface {
	// Insert is deliberately not an upsert: the unique index on
	// (assessment, gap) makes the first concurrent writer win and every
	// later attempt surface a unique violation.
	Insert(ctx context.Context, tx *gorm.DB, record *types.GapCauseRecord) error
	GetByGap(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID, gapID string) (*types.GapCauseRecord, error)
	ListByAssessment(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID) ([]*types.GapCauseRecord, error)
}

type gapCauseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGapCauseRepo(db *gorm.DB, baseLog *logger.Logger) GapCauseRepo {
	repoLog := baseLog.With("repo", "GapCauseRepo")
	return &gapCauseRepo{db: db, log: repoLog}
}

func (gr *gapCauseRepo) Insert(ctx context.Context, tx *gorm.DB, record *types.GapCauseRecord) error {
	transaction := tx
	if transaction == nil {
		transaction = gr.db
	}
	return transaction.WithContext(ctx).Create(record).Error
}

func (gr *gapCauseRepo) GetByGap(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID, gapID string) (*types.GapCauseRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = gr.db
	}
	var result types.GapCauseRecord
	err := transaction.WithContext(ctx).
		Where("assessment_id = ? AND gap_id = ?", assessmentID, gapID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (gr *gapCauseRepo) ListByAssessment(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID) ([]*types.GapCauseRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = gr.db
	}
	var results []*types.GapCauseRecord
	if err := transaction.WithContext(ctx).
		Where("assessment_id = ?", assessmentID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
