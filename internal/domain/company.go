package domain

import (
	"time"

	"github.com/google/uuid"
)

type Company struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name    string    `gorm:"column:name;not null" json:"name"`
	Segment string    `gorm:"column:segment;not null;index" json:"segment"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Company) TableName() string { return "company" }
