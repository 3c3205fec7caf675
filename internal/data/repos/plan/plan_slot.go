package plan

import (
	"context"
	"errors"

	types "github.com/bussola-digital/bussola-backend/internal/domain"
	"github.com/bussola-digital/bussola-backend/internal/platform/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PlanSlotRepo interface {
	// ReplaceForCycle drops the cycle's slots and writes the new selection
	// in one shot. Callers hold a transaction across both steps.
	ReplaceForCycle(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID, cycle int, slots []*types.PlanSlot) error
	ListByCycle(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID, cycle int) ([]*types.PlanSlot, error)
	ListByAssessment(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID) ([]*types.PlanSlot, error)
	GetByAction(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID, cycle int, actionKey string) (*types.PlanSlot, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, slotID uuid.UUID, status types.SlotStatus, droppedReason *string) error
	// UsedActionKeys lists every action ever planned across the
	// assessment's cycles, regardless of outcome.
	UsedActionKeys(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID) ([]string, error)
}

type planSlotRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPlanSlotRepo(db *gorm.DB, baseLog *logger.Logger) PlanSlotRepo {
	repoLog := baseLog.With("repo", "PlanSlotRepo")
	return &planSlotRepo{db: db, log: repoLog}
}

func (pr *planSlotRepo) ReplaceForCycle(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID, cycle int, slots []*types.PlanSlot) error {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	if err := transaction.WithContext(ctx).
		Where("assessment_id = ? AND cycle = ?", assessmentID, cycle).
		Delete(&types.PlanSlot{}).Error; err != nil {
		return err
	}
	if len(slots) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).Create(&slots).Error
}

func (pr *planSlotRepo) ListByCycle(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID, cycle int) ([]*types.PlanSlot, error) {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	var results []*types.PlanSlot
	if err := transaction.WithContext(ctx).
		Where("assessment_id = ? AND cycle = ?", assessmentID, cycle).
		Order("position ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (pr *planSlotRepo) ListByAssessment(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID) ([]*types.PlanSlot, error) {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	var results []*types.PlanSlot
	if err := transaction.WithContext(ctx).
		Where("assessment_id = ?", assessmentID).
		Order("cycle ASC, position ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (pr *planSlotRepo) GetByAction(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID, cycle int, actionKey string) (*types.PlanSlot, error) {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	var result types.PlanSlot
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

func (pr *planSlotRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, slotID uuid.UUID, status types.SlotStatus, droppedReason *string) error {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.PlanSlot{}).
		Where("id = ?", slotID).
		Updates(map[string]any{
			"status":         status,
			"dropped_reason": droppedReason,
		}).Error
}

func (pr *planSlotRepo) UsedActionKeys(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID) ([]string, error) {
	transaction := tx
	if transaction == nil {
		transaction = pr.db
	}
	var keys []string
	if err := transaction.WithContext(ctx).
		Model(&types.PlanSlot{}).
		Where("assessment_id = ?", assessmentID).
		Distinct("action_key").
		Pluck("action_key", &keys).Error; err != nil {
		return nil, err
	}
	return keys, nil
}
