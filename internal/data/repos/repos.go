package repos

import (
	"github.com/bussola-digital/bussola-backend/internal/data/repos/account"
	"github.com/bussola-digital/bussola-backend/internal/data/repos/assessment"
	"github.com/bussola-digital/bussola-backend/internal/data/repos/diagnosis"
	"github.com/bussola-digital/bussola-backend/internal/data/repos/plan"
	"github.com/bussola-digital/bussola-backend/internal/data/repos/snapshot"
	"github.com/bussola-digital/bussola-backend/internal/platform/logger"
	"gorm.io/gorm"
)

type CompanyRepo = account.CompanyRepo
type UserRepo = account.UserRepo

type AssessmentRepo = assessment.AssessmentRepo
type AnswerRepo = assessment.AnswerRepo
type ProcessScoreRepo = assessment.ProcessScoreRepo

type GapCauseRepo = diagnosis.GapCauseRepo
type RecommendationRepo = diagnosis.RecommendationRepo

type PlanSlotRepo = plan.PlanSlotRepo
type DodConfirmationRepo = plan.DodConfirmationRepo
type EvidenceRepo = plan.EvidenceRepo

type SnapshotRepo = snapshot.SnapshotRepo

func NewCompanyRepo(db *gorm.DB, baseLog *logger.Logger) CompanyRepo {
	return account.NewCompanyRepo(db, baseLog)
}
func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	return account.NewUserRepo(db, baseLog)
}

func NewAssessmentRepo(db *gorm.DB, baseLog *logger.Logger) AssessmentRepo {
	return assessment.NewAssessmentRepo(db, baseLog)
}
func NewAnswerRepo(db *gorm.DB, baseLog *logger.Logger) AnswerRepo {
	return assessment.NewAnswerRepo(db, baseLog)
}
func NewProcessScoreRepo(db *gorm.DB, baseLog *logger.Logger) ProcessScoreRepo {
	return assessment.NewProcessScoreRepo(db, baseLog)
}

func NewGapCauseRepo(db *gorm.DB, baseLog *logger.Logger) GapCauseRepo {
	return diagnosis.NewGapCauseRepo(db, baseLog)
}
func NewRecommendationRepo(db *gorm.DB, baseLog *logger.Logger) RecommendationRepo {
	return diagnosis.NewRecommendationRepo(db, baseLog)
}

func NewPlanSlotRepo(db *gorm.DB, baseLog *logger.Logger) PlanSlotRepo {
	return plan.NewPlanSlotRepo(db, baseLog)
}
func NewDodConfirmationRepo(db *gorm.DB, baseLog *logger.Logger) DodConfirmationRepo {
	return plan.NewDodConfirmationRepo(db, baseLog)
}
func NewEvidenceRepo(db *gorm.DB, baseLog *logger.Logger) EvidenceRepo {
	return plan.NewEvidenceRepo(db, baseLog)
}

func NewSnapshotRepo(db *gorm.DB, baseLog *logger.Logger) SnapshotRepo {
	return snapshot.NewSnapshotRepo(db, baseLog)
}
