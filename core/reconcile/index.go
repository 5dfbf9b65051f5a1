package reconcile

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// Index holds both sources of a scope loaded at the same moment.
type Index struct {
	// Store is the indexed map of durable entries by key.
	Store map[string]StoreItem

	// Cache is the indexed map of cache entries by key.
	Cache map[string]CacheItem

	// Built is the timestamp when this index was built.
	Built time.Time
}

// BuildIndex loads the store and cache indices concurrently.
func BuildIndex(ctx context.Context, spec *Spec) (*Index, error) {
	var (
		storeIndex map[string]StoreItem
		cacheIndex map[string]CacheItem
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		storeIndex, err = spec.Adapter.LoadStoreIndex(gctx, spec.Scope)
		if err != nil {
			return fmt.Errorf("load store index: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		var err error
		cacheIndex, err = spec.Adapter.LoadCacheIndex(gctx, spec.Scope)
		if err != nil {
			return fmt.Errorf("load cache index: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if storeIndex == nil {
		storeIndex = map[string]StoreItem{}
	}
	if cacheIndex == nil {
		cacheIndex = map[string]CacheItem{}
	}

	return &Index{Store: storeIndex, Cache: cacheIndex, Built: time.Now()}, nil
}
