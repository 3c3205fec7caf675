package plan

import (
	"context"
	"errors"

	types "github.com/bussola-digital/bussola-backend/internal/domain"
	"github.com/bussola-digital/bussola-backend/internal/platform/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DodConfirmationRepo interface {
	Insert(ctx context.Context, tx *gorm.DB, confirmation *types.DodConfirmation) error
	GetByAction(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID, cycle int, actionKey string) (*types.DodConfirmation, error)
	ListByCycle(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID, cycle int) ([]*types.DodConfirmation, error)
}

type dodConfirmationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDodConfirmationRepo(db *gorm.DB, baseLog *logger.Logger) DodConfirmationRepo {
	repoLog := baseLog.With("repo", "DodConfirmationRepo")
	return &dodConfirmationRepo{db: db, log: repoLog}
}

func (dr *dodConfirmationRepo) Insert(ctx context.Context, tx *gorm.DB, confirmation *types.DodConfirmation) error {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	return transaction.WithContext(ctx).Create(confirmation).Error
}

func (dr *dodConfirmationRepo) GetByAction(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID, cycle int, actionKey string) (*types.DodConfirmation, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	var result types.DodConfirmation
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

func (dr *dodConfirmationRepo) ListByCycle(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID, cycle int) ([]*types.DodConfirmation, error) {
	transaction := tx
	if transaction == nil {
		transaction = dr.db
	}
	var results []*types.DodConfirmation
	if err := transaction.WithContext(ctx).
		Where("assessment_id = ? AND cycle = ?", assessmentID, cycle).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
