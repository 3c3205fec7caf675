package plan

import (
	"context"
	"errors"

	types "github.com/bussola-digital/bussola-backend/internal/domain"
	"github.com/bussola-digital/bussola-backend/internal/platform/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EvidenceRepo interface {
	// Insert has no update path; the unique index on
	// (assessment, cycle, action) makes the record write-once.
	Insert(ctx context.Context, tx *gorm.DB, evidence *types.Evidence) error
	GetByAction(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID, cycle int, actionKey string) (*types.Evidence, error)
	ListByAssessment(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID) ([]*types.Evidence, error)
	ListByCycle(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID, cycle int) ([]*types.Evidence, error)
}

type evidenceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEvidenceRepo(db *gorm.DB, baseLog *logger.Logger) EvidenceRepo {
	repoLog := baseLog.With("repo", "EvidenceRepo")
	return &evidenceRepo{db: db, log: repoLog}
}

func (er *evidenceRepo) Insert(ctx context.Context, tx *gorm.DB, evidence *types.Evidence) error {
	transaction := tx
	if transaction == nil {
		transaction = er.db
	}
	return transaction.WithContext(ctx).Create(evidence).Error
}

func (er *evidenceRepo) GetByAction(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID, cycle int, actionKey string) (*types.Evidence, error) {
	transaction := tx
	if transaction == nil {
		transaction = er.db
	}
	var result types.Evidence
	err := transaction.WithContext(ctx).
		Where("assessment_id = ? AND cycle = ? AND action_key = ?", assessmentID, cycle, actionKey).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (er *evidenceRepo) ListByAssessment(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID) ([]*types.Evidence, error) {
	transaction := tx
	if transaction == nil {
		transaction = er.db
	}
	var results []*types.Evidence
	if err := transaction.WithContext(ctx).
		Where("assessment_id = ?", assessmentID).
		Order("cycle ASC, action_key ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (er *evidenceRepo) ListByCycle(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID, cycle int) ([]*types.Evidence, error) {
	transaction := tx
	if transaction == nil {
		transaction = er.db
	}
	var results []*types.Evidence
	if err := transaction.WithContext(ctx).
		Where("assessment_id = ? AND cycle = ?", assessmentID, cycle).
		Order("action_key ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
