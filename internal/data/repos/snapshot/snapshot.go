package snapshot

import (
	"context"
	"errors"

	types "github.com/bussola-digital/bussola-backend/internal/domain"
	"github.com/bussola-digital/bussola-backend/internal/platform/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SnapshotRepo interface {
	// Upsert keeps exactly one snapshot per assessment: submit writes it,
	// close rewrites it in full.
	Upsert(ctx context.Context, tx *gorm.DB, snapshot *types.Snapshot) error
	GetByAssessment(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID) (*types.Snapshot, error)
}

type snapshotRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSnapshotRepo(db *gorm.DB, baseLog *logger.Logger) SnapshotRepo {
	repoLog := baseLog.With("repo", "SnapshotRepo")
	return &snapshotRepo{db: db, log: repoLog}
}

func (sr *snapshotRepo) Upsert(ctx context.Context, tx *gorm.DB, snapshot *types.Snapshot) error {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "assessment_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"full_version", "payload", "updated_at"}),
		}).
		Create(snapshot).Error
}

func (sr *snapshotRepo) GetByAssessment(ctx context.Context, tx *gorm.DB, assessmentID uuid.UUID) (*types.Snapshot, error) {
	transaction := tx
	if transaction == nil {
		transaction = sr.db
	}
	var result types.Snapshot
	err := transaction.WithContext(ctx).
		Where("assessment_id = ?", assessmentID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}
