package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// DodConfirmation records which Definition-of-Done items the user checked
// for one action in one cycle. Created once; marking the slot DONE requires
// every done_when item of the catalog action to be present here.
type DodConfirmation struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	AssessmentID   uuid.UUID      `gorm:"type:uuid;column:assessment_id;not null;uniqueIndex:idx_dod_key,priority:1" json:"assessment_id"`
	Cycle          int            `gorm:"column:cycle;not null;uniqueIndex:idx_dod_key,priority:2" json:"cycle"`
	ActionKey      string         `gorm:"column:action_key;not null;uniqueIndex:idx_dod_key,priority:3" json:"action_key"`
	ConfirmedItems datatypes.JSON `gorm:"column:confirmed_items;type:jsonb;not null" json:"confirmed_items"`
	ConfirmedAt    time.Time      `gorm:"column:confirmed_at;not null" json:"confirmed_at"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (DodConfirmation) TableName() string { return "dod_confirmation" }
