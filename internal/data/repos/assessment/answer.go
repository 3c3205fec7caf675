package assessment

import (
	"context"

	types "github.com/bussola-digital/bussola-backend/internal/domain"
	"github.com/bussola-digital/bussola-backend/internal/platform/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AnswerRepo interface {
	// Upsert writes answers keyed by (assessment, process, question); an
	// existing key gets its value overwritten.
	Upsert(ctx context.Context, tx *gorm.DB, answers []*types.Answer) error
	ListByAssessment(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID) ([]*types.Answer, error)
	GetByKeys(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID, processKey string, questionKeys []string) ([]*types.Answer, error)
}

type answerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAnswerRepo(db *gorm.DB, baseLog *logger.Logger) AnswerRepo {
	repoLog := baseLog.With("repo", "AnswerRepo")
	return &answerRepo{db: db, log: repoLog}
}

func (ar *answerRepo) Upsert(ctx context.Context, tx *gorm.DB, answers []*types.Answer) error {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}
	if len(answers) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "assessment_id"},
				{Name: "process_key"},
				{Name: "question_key"},
			},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&answers).Error
}

func (ar *answerRepo) ListByAssessment(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID) ([]*types.Answer, error) {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}
	var results []*types.Answer
	if err := transaction.WithContext(ctx).
		Where("assessment_id = ?", assessmentID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (ar *answerRepo) GetByKeys(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID, processKey string, questionKeys []string) ([]*types.Answer, error) {
	transaction := tx
	if transaction == nil {
		transaction = ar.db
	}
	var results []*types.Answer
	if len(questionKeys) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("assessment_id = ? AND process_key = ? AND question_key IN ?", assessmentID, processKey, questionKeys).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
