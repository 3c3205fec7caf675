// Package audit publishes domain events for offline consumers (support
// tooling, analytics). Publishing is fire-and-forget: an unreachable
// broker must never fail the domain operation that produced the event.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Event struct {
	Name         string    `json:"name"`
	CompanyID    uuid.UUID `json:"company_id"`
	AssessmentID uuid.UUID `json:"assessment_id,omitempty"`
	ActorID      uuid.UUID `json:"actor_id,omitempty"`
	Detail       any       `json:"detail,omitempty"`
	At           time.Time `json:"at"`
}

type Publisher interface {
	// Publish never returns an error to callers; failures are logged and
	// dropped.
	Publish(ctx context.Context, event Event)
	Close() error
}

type noopPublisher struct{}

// NewNoopPublisher backs environments without a broker (local dev, CI).
func NewNoopPublisher() Publisher { return noopPublisher{} }

func (noopPublisher) Publish(context.Context, Event) {}
func (noopPublisher) Close() error                   { return nil }
