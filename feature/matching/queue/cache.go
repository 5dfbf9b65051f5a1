package queue

import (
	"context"

	"matchmaker/feature/matching/models"
)

// Member is a queued user with its score (enqueue time in unix milliseconds).
type Member struct {
	UserID string `json:"user_id"`
	Score  int64  `json:"score"`
}

// Cache is the fast per-category ordered queue. DequeueOldest and Remove are atomic:
// two concurrent callers never both obtain the same member.
type Cache interface {
	// Enqueue adds a member. Re-adding an existing member keeps its original score.
	Enqueue(ctx context.Context, category models.Category, userID string, score int64) error
	// EnqueueMany adds several members with the same semantics as Enqueue.
	EnqueueMany(ctx context.Context, category models.Category, members []Member) error
	// DequeueOldest claims the lowest-score member.
	DequeueOldest(ctx context.Context, category models.Category) (Member, bool, error)
	// Remove claims a specific member.
	Remove(ctx context.Context, category models.Category, userID string) (bool, error)
	Length(ctx context.Context, category models.Category) (int64, error)
	// Members lists the queue in claim order.
	Members(ctx context.Context, category models.Category) ([]Member, error)
}
