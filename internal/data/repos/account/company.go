package account

import (
	"context"

	types "github.com/bussola-digital/bussola-backend/internal/domain"
	"github.com/bussola-digital/bussola-backend/internal/platform/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CompanyRepo interface {
	Create(ctx context.Context, tx *gorm.DB, company *types.Company) (*types.Company, error)
	GetByID(ctx context.Context, tx *gorm.DB, companyID uuid.UUID) (*types.Company, error)
	UpdateSegment(ctx context.Context, tx *gorm.DB, companyID uuid.UUID, segment string) error
}

type companyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCompanyRepo(db *gorm.DB, baseLog *logger.Logger) CompanyRepo {
	repoLog := baseLog.With("repo", "CompanyRepo")
	return &companyRepo{db: db, log: repoLog}
}

func (cr *companyRepo) Create(ctx context.Context, tx *gorm.DB, company *types.Company) (*types.Company, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	if err := transaction.WithContext(ctx).Create(company).Error; err != nil {
		return nil, err
	}
	return company, nil
}

func (cr *companyRepo) GetByID(ctx context.Context, tx *gorm.DB, companyID uuid.UUID) (*types.Company, error) {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	var result types.Company
	if err := transaction.WithContext(ctx).
		Where("id = ?", companyID).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (cr *companyRepo) UpdateSegment(ctx context.Context, tx *gorm.DB, companyID uuid.UUID, segment string) error {
	transaction := tx
	if transaction == nil {
		transaction = cr.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Company{}).
		Where("id = ?", companyID).
		Update("segment", segment).Error
}
