package domain

import (
	"time"

	"github.com/google/uuid"
)

// PlanSlot is one of exactly 3 selected actions per open cycle. Positions
// are a permutation of {1,2,3}; both unique indexes are cycle-scoped so a
// new cycle starts with fresh slots.
type PlanSlot struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AssessmentID uuid.UUID `gorm:"type:uuid;column:assessment_id;not null;uniqueIndex:idx_plan_slot_action,priority:1;uniqueIndex:idx_plan_slot_position,priority:1" json:"assessment_id"`
	Cycle        int       `gorm:"column:cycle;not null;uniqueIndex:idx_plan_slot_action,priority:2;uniqueIndex:idx_plan_slot_position,priority:2" json:"cycle"`
	ActionKey    string    `gorm:"column:action_key;not null;uniqueIndex:idx_plan_slot_action,priority:3" json:"action_key"`
	Position     int       `gorm:"column:position;not null;uniqueIndex:idx_plan_slot_position,priority:3" json:"position"`

	OwnerName      string     `gorm:"column:owner_name;not null" json:"owner_name"`
	MetricText     string     `gorm:"column:metric_text;not null" json:"metric_text"`
	CheckpointDate time.Time  `gorm:"column:checkpoint_date;not null" json:"checkpoint_date"`
	Status         SlotStatus `gorm:"column:status;not null;default:'NOT_STARTED'" json:"status"`
	DroppedReason  *string    `gorm:"column:dropped_reason" json:"dropped_reason,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (PlanSlot) TableName() string { return "plan_slot" }
