package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Recommendation is one derived suggestion row per process, upserted by
// (assessment, process, recommendation_key) so re-derivation is idempotent.
// IsFallback marks the honest "content in definition" outcome; the title is
// always a catalog string, never synthesized.
type Recommendation struct {
	ID                uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	AssessmentID      uuid.UUID      `gorm:"type:uuid;column:assessment_id;not null;uniqueIndex:idx_recommendation_key,priority:1" json:"assessment_id"`
	ProcessKey        string         `gorm:"column:process_key;not null;uniqueIndex:idx_recommendation_key,priority:2" json:"process_key"`
	RecommendationKey string         `gorm:"column:recommendation_key;not null;uniqueIndex:idx_recommendation_key,priority:3" json:"recommendation_key"`
	Band              string         `gorm:"column:band;not null" json:"band"`
	Title             string         `gorm:"column:title;not null" json:"title"`
	ActionKeys        datatypes.JSON `gorm:"column:action_keys;type:jsonb" json:"action_keys"`
	IsFallback        bool           `gorm:"column:is_fallback;not null;default:false" json:"is_fallback"`
	GapReason         string         `gorm:"column:gap_reason" json:"gap_reason,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Recommendation) TableName() string { return "recommendation" }
