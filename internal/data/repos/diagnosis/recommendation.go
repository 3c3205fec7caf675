package diagnosis

import (
	"context"

	types "github.com/bussola-digital/bussola-backend/internal/domain"
	"github.com/bussola-digital/bussola-backend/internal/platform/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RecommendationRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, recommendations []*types.Recommendation) error
	ListByAssessment(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID) ([]*types.Recommendation, error)
	// DeleteStale removes rows whose recommendation key is absent from the
	// latest derivation, so a re-derive never leaves superseded rows behind.
	DeleteStale(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID, keepKeys []string) error
	DeleteByAssessment(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID) error
}

type recommendationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRecommendationRepo(db *gorm.DB, baseLog *logger.Logger) RecommendationRepo {
	repoLog := baseLog.With("repo", "RecommendationRepo")
	return &recommendationRepo{db: db, log: repoLog}
}

func (rr *recommendationRepo) Upsert(ctx context.Context, tx *gorm.DB, recommendations []*types.Recommendation) error {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}
	if len(recommendations) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "assessment_id"},
				{Name: "process_key"},
				{Name: "recommendation_key"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"band", "title", "action_keys", "is_fallback", "gap_reason", "updated_at",
			}),
		}).
		Create(&recommendations).Error
}

func (rr *recommendationRepo) ListByAssessment(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID) ([]*types.Recommendation, error) {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}
	var results []*types.Recommendation
	if err := transaction.WithContext(ctx).
		Where("assessment_id = ?", assessmentID).
		Order("process_key ASC, recommendation_key ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (rr *recommendationRepo) DeleteStale(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID, keepKeys []string) error {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}
	query := transaction.WithContext(ctx).Where("assessment_id = ?", assessmentID)
	if len(keepKeys) > 0 {
		query = query.Where("recommendation_key NOT IN ?", keepKeys)
	}
	return query.Delete(&types.Recommendation{}).Error
}

func (rr *recommendationRepo) DeleteByAssessment(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = rr.db
	}
	return transaction.WithContext(ctx).
		Where("assessment_id = ?", assessmentID).
		Delete(&types.Recommendation{}).Error
}
