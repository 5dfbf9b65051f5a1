package engine

import (
	"context"
	"time"

	"matchmaker/feature/matching/models"
)

// Profiles is the identity/profile collaborator.
type Profiles interface {
	Exists(ctx context.Context, userID string) (bool, error)
	GetCategory(ctx context.Context, userID string) (string, error)
	GetPublicProfile(ctx context.Context, userID string) (map[string]any, error)
}

// ChargeResult is the outcome of a credit charge.
type ChargeResult struct {
	Success    bool
	NewBalance int64
}

// Credits is the credit collaborator. It is the only writer of balances.
type Credits interface {
	GetBalance(ctx context.Context, userID string) (int64, error)
	Charge(ctx context.Context, userID string, amount int64, reason string) (ChargeResult, error)
}

// Rooms is the room collaborator.
type Rooms interface {
	CreateRoom(ctx context.Context, userA, userB string) (string, error)
	DeleteRoom(ctx context.Context, roomID string) error
	FindOpenRoomFor(ctx context.Context, userID string) (string, bool, error)
}

// WaitingStore is the durable waiting store as used by the engine.
type WaitingStore interface {
	UpsertActive(ctx context.Context, userID string, category models.Category) (*models.WaitingEntry, error)
	UpsertActiveAt(ctx context.Context, userID string, category models.Category, at time.Time) (*models.WaitingEntry, error)
	Deactivate(ctx context.Context, userID string) (*models.WaitingEntry, error)
	ListActive(ctx context.Context, category models.Category) ([]models.WaitingEntry, error)
	FindActive(ctx context.Context, userID string) (*models.WaitingEntry, error)
	RecordPairing(ctx context.Context, pairing *models.Pairing) error
}
