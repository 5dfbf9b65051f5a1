package reconcile

// Mutation methods implementing reconcile.Mutator and reconcile.CacheBatchWriter.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"matchmaker/core/reconcile"
	"matchmaker/feature/matching/models"
	"matchmaker/feature/matching/queue"
	"matchmaker/feature/matching/waiting"
)

// AddToCache queues the user again with the score of its store entry, unless the entry
// was closed since the plan was built.
func (a *WaitingAdapter) AddToCache(ctx context.Context, scope string, action reconcile.Action) error {
	member, ok, err := a.stillWaiting(ctx, scope, action.Key)
	if err != nil || !ok {
		return err
	}
	return a.cache.Enqueue(ctx, models.Category(scope), member.UserID, member.Score)
}

// AddToCacheBatch queues every user that is still waiting in one write.
func (a *WaitingAdapter) AddToCacheBatch(ctx context.Context, scope string, actions []reconcile.Action) error {
	members := make([]queue.Member, 0, len(actions))
	for _, action := range actions {
		member, ok, err := a.stillWaiting(ctx, scope, action.Key)
		if err != nil {
			return err
		}
		if ok {
			members = append(members, member)
		}
	}
	if len(members) == 0 {
		return nil
	}
	return a.cache.EnqueueMany(ctx, models.Category(scope), members)
}

// RemoveFromCache drops a stale member. A user that started waiting in this category
// again since the plan was built keeps its member.
func (a *WaitingAdapter) RemoveFromCache(ctx context.Context, scope string, action reconcile.Action) error {
	active, err := a.store.FindActive(ctx, action.Key)
	if err != nil {
		return err
	}
	if active != nil && active.Category.String() == scope {
		return nil
	}
	_, err = a.cache.Remove(ctx, models.Category(scope), action.Key)
	return err
}

// AddToStore writes the store entry of a queued user at the member's original time.
func (a *WaitingAdapter) AddToStore(ctx context.Context, scope string, action reconcile.Action) error {
	member, ok := action.Item.(queue.Member)
	if !ok {
		return fmt.Errorf("unexpected action item %T", action.Item)
	}
	_, err := a.store.UpsertActiveAt(ctx, action.Key, models.Category(scope), time.UnixMilli(member.Score))
	if errors.Is(err, waiting.ErrAlreadyWaiting) {
		return nil
	}
	return err
}

// DeactivateStore closes the user's active entry.
func (a *WaitingAdapter) DeactivateStore(ctx context.Context, _ string, action reconcile.Action) error {
	_, err := a.store.Deactivate(ctx, action.Key)
	if errors.Is(err, waiting.ErrNotWaiting) {
		return nil
	}
	return err
}

// stillWaiting re-reads the user's active entry at apply time.
func (a *WaitingAdapter) stillWaiting(ctx context.Context, scope, userID string) (queue.Member, bool, error) {
	entry, err := a.store.FindActive(ctx, userID)
	if err != nil {
		return queue.Member{}, false, err
	}
	if entry == nil || entry.Category.String() != scope || a.now().Sub(entry.EnqueuedAt) < a.grace {
		return queue.Member{}, false, nil
	}
	return queue.Member{UserID: userID, Score: entry.Score()}, true, nil
}
