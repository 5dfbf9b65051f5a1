package gateway

import (
	"context"

	"matchmaker/core/metrics"
	"matchmaker/feature/matching/events"
	"matchmaker/feature/realtime/registry"

	"go.uber.org/zap"
)

// LockedPhoto replaces the partner's photo until both users reveal.
const LockedPhoto = "locked"

// Message types pushed to clients.
const (
	TypeMatchFound     = "match_found"
	TypeMatchRequested = "match_requested"
	TypeMatchCancelled = "match_cancelled"
)

// Message is one frame pushed to a client.
type Message struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId,omitempty"`
	Data      any    `json:"data,omitempty"`
}

// Sender writes a message to one connection.
type Sender interface {
	Send(ctx context.Context, connID string, msg Message) error
}

// Profiles resolves the public profile shown to a partner.
type Profiles interface {
	GetPublicProfile(ctx context.Context, userID string) (map[string]any, error)
}

// MatchFound is the payload of a match_found message.
type MatchFound struct {
	RoomID        string         `json:"roomId"`
	Partner       map[string]any `json:"partner"`
	CreditCharged int64          `json:"creditCharged"`
}

// Gateway delivers matchmaking events to the live connections of the users involved.
type Gateway struct {
	registry registry.Registry
	profiles Profiles
	sender   Sender
	metrics  metrics.Recorder
	logger   *zap.Logger
}

// New creates a gateway.
func New(reg registry.Registry, profiles Profiles, sender Sender, m metrics.Recorder, logger *zap.Logger) *Gateway {
	if m == nil {
		m = metrics.NewNop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{registry: reg, profiles: profiles, sender: sender, metrics: m, logger: logger}
}

// Start subscribes the gateway to the bus until ctx is done.
func (g *Gateway) Start(ctx context.Context, bus events.Bus) error {
	return bus.Subscribe(ctx, g.Handle, events.Requested, events.Cancelled, events.Paired)
}

// Handle delivers one event.
func (g *Gateway) Handle(ctx context.Context, evt events.Event) {
	log := g.logger.With(zap.String("event", string(evt.Name)), zap.String("event_id", evt.ID))

	switch evt.Name {
	case events.Paired:
		var p events.PairedPayload
		if err := evt.Decode(&p); err != nil {
			log.Warn("Malformed event", zap.Error(err))
			return
		}
		g.deliver(ctx, evt.Name, p.UserA, g.matchFound(ctx, p, p.UserB))
		g.deliver(ctx, evt.Name, p.UserB, g.matchFound(ctx, p, p.UserA))

	case events.Requested:
		var p events.RequestedPayload
		if err := evt.Decode(&p); err != nil {
			log.Warn("Malformed event", zap.Error(err))
			return
		}
		g.deliver(ctx, evt.Name, p.UserID, Message{Type: TypeMatchRequested, Data: map[string]any{
			"category":   p.Category,
			"enqueuedAt": p.EnqueuedAt,
		}})

	case events.Cancelled:
		var p events.CancelledPayload
		if err := evt.Decode(&p); err != nil {
			log.Warn("Malformed event", zap.Error(err))
			return
		}
		g.deliver(ctx, evt.Name, p.UserID, Message{Type: TypeMatchCancelled, Data: map[string]any{
			"category": p.Category,
		}})
	}
}

// matchFound builds the message a user receives about partner. The partner's photo is
// always locked.
func (g *Gateway) matchFound(ctx context.Context, p events.PairedPayload, partner string) Message {
	profile, err := g.profiles.GetPublicProfile(ctx, partner)
	if err != nil || profile == nil {
		g.logger.Warn("Failed to load partner profile", zap.String("user_id", partner), zap.Error(err))
		profile = map[string]any{"id": partner}
	}

	public := make(map[string]any, len(profile)+1)
	for k, v := range profile {
		public[k] = v
	}
	public["photo"] = LockedPhoto

	return Message{Type: TypeMatchFound, Data: MatchFound{
		RoomID:        p.RoomID,
		Partner:       public,
		CreditCharged: p.CreditCharged,
	}}
}

// deliver sends msg to every live connection of userID. A user without connections
// misses the message.
func (g *Gateway) deliver(ctx context.Context, name events.Name, userID string, msg Message) {
	sockets, err := g.registry.SocketsFor(ctx, userID)
	if err != nil {
		g.logger.Warn("Failed to resolve connections", zap.String("user_id", userID), zap.Error(err))
		return
	}

	delivered := 0
	for _, connID := range sockets {
		if err := g.sender.Send(ctx, connID, msg); err != nil {
			g.logger.Debug("Failed to send message",
				zap.String("user_id", userID),
				zap.String("connection_id", connID),
				zap.Error(err),
			)
			continue
		}
		delivered++
	}

	if delivered == 0 {
		g.logger.Debug("No live connection, message dropped",
			zap.String("user_id", userID),
			zap.String("type", msg.Type),
		)
	}
	g.metrics.NotificationDelivered(string(name), delivered)
}
