// Package audit captures structured audit events for pass lifecycle
// operations. The publisher is append-only; sinks are a store (memory or
// postgres) and optionally Kafka for downstream consumers.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is one audit record. Action values are stable strings such as
// "guest_pass_issued", "guest_pass_redeemed", "guest_pass_redeem_denied".
type Event struct {
	ID        string            `json:"id"`
	Action    string            `json:"action"`
	ProjectID string            `json:"project_id,omitempty"`
	UserID    string            `json:"user_id,omitempty"`
	PassID    string            `json:"pass_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByProject(ctx context.Context, projectID string) ([]Event, error)
}

// Publisher emits audit events into a store. It is fail-open from the
// caller's perspective: callers log emit errors but never fail the business
// operation on them.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return p.store.Append(ctx, event)
}
