package assessment

import (
	"context"

	types "github.com/bussola-digital/bussola-backend/internal/domain"
	"github.com/bussola-digital/bussola-backend/internal/platform/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProcessScoreRepo interface {
	// Upsert rewrites the derived score per (assessment, process); re-submit
	// after a new cycle recomputes the same 4 rows.
	Upsert(ctx context.Context, tx *gorm.DB, scores []*types.ProcessScore) error
	ListByAssessment(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID) ([]*types.ProcessScore, error)
}

type processScoreRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProcessScoreRepo(db *gorm.DB, baseLog *logger.Logger) ProcessScoreRepo {
	repoLog := baseLog.With("repo", "ProcessScoreRepo")
	return &processScoreRepo{db: db, log: repoLog}
}

func (pr *processScoreRepo) Upsert(ctx context.Context, tx *gorm.DB, scores []*types.ProcessScore) error {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	if len(scores) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "assessment_id"},
				{Name: "process_key"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"band", "score_numeric", "updated_at"}),
		}).
		Create(&scores).Error
}

func (pr *processScoreRepo) ListByAssessment(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID) ([]*types.ProcessScore, error) {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	var results []*types.ProcessScore
	if err := transaction.WithContext(ctx).
		Where("assessment_id = ?", assessmentID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
