package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"matchmaker/feature/matching/models"

	"github.com/google/uuid"
)

// Name identifies an event type.
type Name string

const (
	Requested Name = "requested"
	Cancelled Name = "cancelled"
	Paired    Name = "paired"
)

// Event is the envelope carried by every bus implementation.
type Event struct {
	ID         string          `json:"id"`
	Name       Name            `json:"name"`
	Key        string          `json:"key"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}

// RequestedPayload is published when a user starts waiting.
type RequestedPayload struct {
	UserID     string          `json:"userId"`
	Category   models.Category `json:"category"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
	Extra      map[string]any  `json:"extra,omitempty"`
}

// CancelledPayload is published when a user cancels.
type CancelledPayload struct {
	UserID   string          `json:"userId"`
	Category models.Category `json:"category"`
}

// PairedPayload is published once per successful pairing.
type PairedPayload struct {
	UserA         string    `json:"userA"`
	UserB         string    `json:"userB"`
	RoomID        string    `json:"roomId"`
	CreditCharged int64     `json:"creditCharged"`
	Timestamp     time.Time `json:"timestamp"`
}

// New wraps payload into an event. key is the partition key (a user id).
func New(name Name, key string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to encode %s payload: %w", name, err)
	}
	return Event{
		ID:         uuid.NewString(),
		Name:       name,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Payload:    raw,
	}, nil
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Name, err)
	}
	return nil
}

// Handler consumes delivered events.
type Handler func(ctx context.Context, evt Event)

// Bus is a publish/subscribe channel for matching events.
type Bus interface {
	Publish(ctx context.Context, evt Event) error
	// Subscribe delivers events with one of names (all events when empty) to handler
	// until ctx is cancelled or the bus is closed. It returns once the subscription is live.
	Subscribe(ctx context.Context, handler Handler, names ...Name) error
	Close() error
}

func nameFilter(names []Name) func(Name) bool {
	if len(names) == 0 {
		return func(Name) bool { return true }
	}
	set := make(map[Name]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return func(n Name) bool {
		_, ok := set[n]
		return ok
	}
}
