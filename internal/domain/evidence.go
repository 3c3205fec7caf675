package domain

import (
	"time"

	"github.com/google/uuid"
)

// Evidence is write-once per (assessment, cycle, action). There is no
// update path and no UpdatedAt column on purpose; a second write attempt
// reads back the stored row instead.
type Evidence struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AssessmentID   uuid.UUID `gorm:"type:uuid;column:assessment_id;not null;uniqueIndex:idx_evidence_key,priority:1" json:"assessment_id"`
	Cycle          int       `gorm:"column:cycle;not null;uniqueIndex:idx_evidence_key,priority:2" json:"cycle"`
	ActionKey      string    `gorm:"column:action_key;not null;uniqueIndex:idx_evidence_key,priority:3" json:"action_key"`
	BeforeBaseline string    `gorm:"column:before_baseline;not null" json:"before_baseline"`
	AfterResult    string    `gorm:"column:after_result;not null" json:"after_result"`
	DeclaredGain   *string   `gorm:"column:declared_gain" json:"declared_gain,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (Evidence) TableName() string { return "evidence" }
