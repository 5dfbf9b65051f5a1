package reconcile

import "context"

// Adapter defines the source-specific reconciliation logic for one kind of data.
type Adapter interface {
	// Name returns the unique name of this adapter (e.g. "waiting").
	Name() string

	// LoadStoreIndex loads the durable entries of scope indexed by key.
	LoadStoreIndex(ctx context.Context, scope string) (map[string]StoreItem, error)

	// LoadCacheIndex loads the cache entries of scope indexed by key.
	LoadCacheIndex(ctx context.Context, scope string) (map[string]CacheItem, error)

	// ResolveStoreOnly decides how to heal a key found only in the store.
	// A zero Action means nothing should be done.
	ResolveStoreOnly(ctx context.Context, scope, key string, item StoreItem) (Action, error)

	// ResolveCacheOnly decides how to heal a key found only in the cache.
	ResolveCacheOnly(ctx context.Context, scope, key string, item CacheItem) (Action, error)

	// GetMetadata returns adapter-specific metadata for the result. Either item may be nil.
	GetMetadata(storeItem StoreItem, cacheItem CacheItem) map[string]string
}

// Mutator is implemented by adapters that can execute planned actions.
type Mutator interface {
	AddToCache(ctx context.Context, scope string, action Action) error
	RemoveFromCache(ctx context.Context, scope string, action Action) error
	AddToStore(ctx context.Context, scope string, action Action) error
	DeactivateStore(ctx context.Context, scope string, action Action) error
}

// CacheBatchWriter is an optional Mutator extension that writes many cache entries at once.
type CacheBatchWriter interface {
	AddToCacheBatch(ctx context.Context, scope string, actions []Action) error
}
