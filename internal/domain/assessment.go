package domain

import (
	"time"

	"github.com/google/uuid"
)

// Assessment is the root aggregate of one diagnostic instance. full_version
// increments only on "redo diagnosis" (a brand-new row); cycle counts plan
// rounds inside one submitted assessment. The two axes never mix.
type Assessment struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID   uuid.UUID        `gorm:"type:uuid;column:company_id;not null;index;uniqueIndex:idx_assessment_company_version,priority:1" json:"company_id"`
	Segment     string           `gorm:"column:segment;not null" json:"segment"`
	FullVersion int              `gorm:"column:full_version;not null;default:1;uniqueIndex:idx_assessment_company_version,priority:2" json:"full_version"`
	Cycle       int              `gorm:"column:cycle;not null;default:1" json:"cycle"`
	Status      AssessmentStatus `gorm:"column:status;not null;default:'DRAFT';index" json:"status"`

	SubmittedAt *time.Time `gorm:"column:submitted_at" json:"submitted_at,omitempty"`
	ClosedAt    *time.Time `gorm:"column:closed_at" json:"closed_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Assessment) TableName() string { return "assessment" }
