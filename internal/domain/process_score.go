package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProcessScore is derived at submit; exactly 4 rows exist per submitted
// assessment, one per business process.
type ProcessScore struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AssessmentID uuid.UUID `gorm:"type:uuid;column:assessment_id;not null;uniqueIndex:idx_score_key,priority:1" json:"assessment_id"`
	ProcessKey   string    `gorm:"column:process_key;not null;uniqueIndex:idx_score_key,priority:2" json:"process_key"`
	Band         string    `gorm:"column:band;not null" json:"band"`
	ScoreNumeric int       `gorm:"column:score_numeric;not null" json:"score_numeric"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (ProcessScore) TableName() string { return "process_score" }
