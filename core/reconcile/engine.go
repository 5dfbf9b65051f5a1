package reconcile

import (
	"context"
	"sort"
)

// ReconcileAll compares both sources of a scope and returns one result per key.
func ReconcileAll(ctx context.Context, spec *Spec) ([]ReconcileResult, error) {
	idx, err := BuildIndex(ctx, spec)
	if err != nil {
		return nil, err
	}
	return resultsFromIndex(idx, spec.Adapter), nil
}

// resultsFromIndex builds sorted results over the union of keys.
func resultsFromIndex(idx *Index, adapter Adapter) []ReconcileResult {
	union := buildUnion(idx)

	results := make([]ReconcileResult, 0, len(union))
	for key := range union {
		results = append(results, buildResult(key, idx, adapter))
	}

	// Sort results by key for deterministic output
	sort.Slice(results, func(i, j int) bool {
		return results[i].ID < results[j].ID
	})

	return results
}

// buildUnion creates a union of all keys from both sources.
func buildUnion(idx *Index) map[string]struct{} {
	union := make(map[string]struct{}, len(idx.Store)+len(idx.Cache))
	for key := range idx.Store {
		union[key] = struct{}{}
	}
	for key := range idx.Cache {
		union[key] = struct{}{}
	}
	return union
}

// buildResult creates a ReconcileResult for a single key.
func buildResult(key string, idx *Index, adapter Adapter) ReconcileResult {
	storeItem, storePresent := idx.Store[key]
	cacheItem, cachePresent := idx.Cache[key]

	result := ReconcileResult{
		ID:           key,
		StorePresent: storePresent,
		CachePresent: cachePresent,
	}

	var s StoreItem
	var c CacheItem
	if storePresent {
		s = storeItem
	}
	if cachePresent {
		c = cacheItem
	}
	result.Metadata = adapter.GetMetadata(s, c)

	return result
}
