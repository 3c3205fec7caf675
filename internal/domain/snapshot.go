package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Snapshot is the frozen renderable view of an assessment: one row per
// assessment, written at submit (empty plan/evidence) and rewritten in
// full at close. External renderers consume Payload as-is.
type Snapshot struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	AssessmentID uuid.UUID      `gorm:"type:uuid;column:assessment_id;not null;uniqueIndex" json:"assessment_id"`
	FullVersion  int            `gorm:"column:full_version;not null" json:"full_version"`
	Payload      datatypes.JSON `gorm:"column:payload;type:jsonb;not null" json:"payload"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Snapshot) TableName() string { return "snapshot" }

// SnapshotPayload is the structured document stored in Snapshot.Payload.
type SnapshotPayload struct {
	Processes       []SnapshotProcess        `json:"processes"`
	Findings        SnapshotFindings         `json:"findings"`
	Recommendations []SnapshotRecommendation `json:"recommendations"`
	Plan            []SnapshotPlanEntry      `json:"plan"`
	EvidenceSummary []SnapshotEvidenceEntry  `json:"evidence_summary"`
}

type SnapshotProcess struct {
	ProcessKey   string `json:"process_key"`
	Label        string `json:"label"`
	Band         string `json:"band"`
	ScoreNumeric int    `json:"score_numeric"`
}

// SnapshotFindings keeps the product's canonical finding buckets:
// vazamentos (LOW-band leaks) and alavancas (HIGH-band levers).
type SnapshotFindings struct {
	Vazamentos []SnapshotFinding `json:"vazamentos"`
	Alavancas  []SnapshotFinding `json:"alavancas"`
}

type SnapshotFinding struct {
	ProcessKey string `json:"process_key"`
	Title      string `json:"title"`
}

type SnapshotRecommendation struct {
	ProcessKey        string   `json:"process_key"`
	Band              string   `json:"band"`
	RecommendationKey string   `json:"recommendation_key"`
	Title             string   `json:"title"`
	ActionKeys        []string `json:"action_keys"`
	IsFallback        bool     `json:"is_fallback"`
	GapReason         string   `json:"gap_reason,omitempty"`
}

type SnapshotPlanEntry struct {
	Position       int    `json:"position"`
	ActionKey      string `json:"action_key"`
	Title          string `json:"title"`
	OwnerName      string `json:"owner_name"`
	MetricText     string `json:"metric_text"`
	CheckpointDate string `json:"checkpoint_date"`
	Status         string `json:"status"`
	DroppedReason  string `json:"dropped_reason,omitempty"`
}

type SnapshotEvidenceEntry struct {
	ActionKey      string `json:"action_key"`
	BeforeBaseline string `json:"before_baseline"`
	AfterResult    string `json:"after_result"`
	DeclaredGain   string `json:"declared_gain,omitempty"`
}
