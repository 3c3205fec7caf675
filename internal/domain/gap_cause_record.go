package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// GapCauseRecord stores one root-cause classification per gap per
// assessment. Insert-only: the unique index makes concurrent classify
// calls first-writer-wins, and the row is never recomputed afterward.
type GapCauseRecord struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	AssessmentID   uuid.UUID      `gorm:"type:uuid;column:assessment_id;not null;uniqueIndex:idx_gap_cause_key,priority:1" json:"assessment_id"`
	GapID          string         `gorm:"column:gap_id;not null;uniqueIndex:idx_gap_cause_key,priority:2" json:"gap_id"`
	CausePrimary   string         `gorm:"column:cause_primary;not null" json:"cause_primary"`
	CauseSecondary *string        `gorm:"column:cause_secondary" json:"cause_secondary,omitempty"`
	Evidence       datatypes.JSON `gorm:"column:evidence;type:jsonb" json:"evidence"`
	ScoreMap       datatypes.JSON `gorm:"column:score_map;type:jsonb" json:"score_map"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (GapCauseRecord) TableName() string { return "gap_cause_record" }
