// Package reconcile provides a generic engine for reconciling two sources that hold the
// same logical membership: an authoritative durable store and a fast cache.
//
// The engine is split into three steps:
//
// 1. Index: both sources are loaded concurrently for one scope (for example a queue
// category) and indexed by key.
//
// 2. Plan: the union of keys is classified by presence. Keys present in only one source
// are handed to the Adapter, which decides the healing action (add to cache, remove from
// cache, add to store, deactivate in store) or none.
//
// 3. Apply: actions are executed through the adapter's Mutator methods. A failing action
// does not stop the others. Cache additions go through CacheBatchWriter when the
// adapter implements it.
//
// Concurrent ReconcileAndApply calls for the same spec and options are collapsed with
// singleflight so a periodic run and an operator-triggered run never race each other.
//
// # Usage Example
//
//	spec := &reconcile.Spec{Adapter: adapter, Scope: "1"}
//	plan, applied, err := reconcile.ReconcileAndApply(ctx, spec, reconcile.ReconcileOptions{})
package reconcile
