package reconcile

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"matchmaker/core/reconcile"
	"matchmaker/feature/matching/models"
	"matchmaker/feature/matching/queue"
)

// Store is the durable waiting store as used by the reconciler.
type Store interface {
	UpsertActiveAt(ctx context.Context, userID string, category models.Category, at time.Time) (*models.WaitingEntry, error)
	Deactivate(ctx context.Context, userID string) (*models.WaitingEntry, error)
	ListActive(ctx context.Context, category models.Category) ([]models.WaitingEntry, error)
	FindActive(ctx context.Context, userID string) (*models.WaitingEntry, error)
	FindLatest(ctx context.Context, userID string) (*models.WaitingEntry, error)
}

// Users reports whether a user still exists.
type Users interface {
	Exists(ctx context.Context, userID string) (bool, error)
}

// WaitingAdapter reconciles one category of the queue cache against the waiting store.
// The scope of every call is the category.
type WaitingAdapter struct {
	store Store
	cache queue.Cache
	users Users
	grace time.Duration
	now   func() time.Time
}

// NewAdapter creates a waiting adapter. Store entries younger than grace are left alone:
// their request may still be claiming a partner. With users set, entries of deleted
// users are closed instead of queued.
func NewAdapter(store Store, cache queue.Cache, users Users, grace time.Duration) *WaitingAdapter {
	return &WaitingAdapter{store: store, cache: cache, users: users, grace: grace, now: time.Now}
}

// Name returns the unique name of this adapter.
func (a *WaitingAdapter) Name() string {
	return "waiting"
}

// LoadStoreIndex indexes the active entries of the category by user id.
func (a *WaitingAdapter) LoadStoreIndex(ctx context.Context, scope string) (map[string]reconcile.StoreItem, error) {
	category, err := parseScope(scope)
	if err != nil {
		return nil, err
	}

	entries, err := a.store.ListActive(ctx, category)
	if err != nil {
		return nil, err
	}

	index := make(map[string]reconcile.StoreItem, len(entries))
	for _, entry := range entries {
		index[entry.UserID] = entry
	}
	return index, nil
}

// LoadCacheIndex indexes the queued members of the category by user id.
func (a *WaitingAdapter) LoadCacheIndex(ctx context.Context, scope string) (map[string]reconcile.CacheItem, error) {
	category, err := parseScope(scope)
	if err != nil {
		return nil, err
	}

	members, err := a.cache.Members(ctx, category)
	if err != nil {
		return nil, err
	}

	index := make(map[string]reconcile.CacheItem, len(members))
	for _, m := range members {
		index[m.UserID] = m
	}
	return index, nil
}

// ResolveStoreOnly queues a waiting user the cache lost.
func (a *WaitingAdapter) ResolveStoreOnly(ctx context.Context, _ string, key string, item reconcile.StoreItem) (reconcile.Action, error) {
	entry, ok := item.(models.WaitingEntry)
	if !ok {
		return reconcile.Action{}, fmt.Errorf("unexpected store item %T", item)
	}
	if a.now().Sub(entry.EnqueuedAt) < a.grace {
		return reconcile.Action{}, nil
	}
	if a.users != nil {
		exists, err := a.users.Exists(ctx, key)
		if err != nil {
			return reconcile.Action{}, err
		}
		if !exists {
			return reconcile.Action{Type: reconcile.ActionDeactivateStore, Key: key, Reason: "user_gone", Item: entry}, nil
		}
	}
	return reconcile.Action{Type: reconcile.ActionAddCache, Key: key, Reason: "missing_cache", Item: entry}, nil
}

// ResolveCacheOnly decides between dropping a stale member and restoring its store entry.
// A member is stale when the user's latest entry was closed after the member was queued,
// or when the user now waits in the other category.
func (a *WaitingAdapter) ResolveCacheOnly(ctx context.Context, scope, key string, item reconcile.CacheItem) (reconcile.Action, error) {
	member, ok := item.(queue.Member)
	if !ok {
		return reconcile.Action{}, fmt.Errorf("unexpected cache item %T", item)
	}

	latest, err := a.store.FindLatest(ctx, key)
	if err != nil {
		return reconcile.Action{}, err
	}

	switch {
	case latest == nil:
	case latest.Active && latest.Category.String() != scope:
		return reconcile.Action{Type: reconcile.ActionRemoveCache, Key: key, Reason: "waiting_in_other_category", Item: member}, nil
	case latest.Active:
		// Written after the store index was loaded.
		return reconcile.Action{}, nil
	case latest.Score() >= member.Score:
		return reconcile.Action{Type: reconcile.ActionRemoveCache, Key: key, Reason: "closed_entry", Item: member}, nil
	}

	return reconcile.Action{Type: reconcile.ActionAddStore, Key: key, Reason: "missing_store", Item: member}, nil
}

// GetMetadata returns the category and enqueue time known for the user.
func (a *WaitingAdapter) GetMetadata(storeItem reconcile.StoreItem, cacheItem reconcile.CacheItem) map[string]string {
	meta := map[string]string{}
	if entry, ok := storeItem.(models.WaitingEntry); ok {
		meta["category"] = entry.Category.String()
		meta["enqueued_at"] = entry.EnqueuedAt.UTC().Format(time.RFC3339Nano)
	}
	if member, ok := cacheItem.(queue.Member); ok {
		meta["score"] = strconv.FormatInt(member.Score, 10)
	}
	return meta
}

func parseScope(scope string) (models.Category, error) {
	category, ok := models.ParseCategory(scope)
	if !ok {
		return "", fmt.Errorf("invalid category %q", scope)
	}
	return category, nil
}
