package domain

import (
	"time"

	"github.com/google/uuid"
)

// Answer holds one Likert answer (1..5), upserted by key while the
// assessment is in DRAFT. Cause-question answers freeze once their gap
// has been classified.
type Answer struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AssessmentID uuid.UUID `gorm:"type:uuid;column:assessment_id;not null;uniqueIndex:idx_answer_key,priority:1" json:"assessment_id"`
	ProcessKey   string    `gorm:"column:process_key;not null;index;uniqueIndex:idx_answer_key,priority:2" json:"process_key"`
	QuestionKey  string    `gorm:"column:question_key;not null;uniqueIndex:idx_answer_key,priority:3" json:"question_key"`
	Value        int       `gorm:"column:value;not null" json:"value"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Answer) TableName() string { return "answer" }
