// Package reconcile heals divergence between the queue cache and the waiting store.
//
// WaitingAdapter plugs the two sources into core/reconcile with the category as scope:
//
//   - store only: the member is queued again with the entry's score (add_cache).
//   - cache only: the member is dropped when the user's latest entry was closed after it
//     was queued or the user waits in the other category (remove_cache); otherwise the
//     store entry is written back at the member's time (add_store).
//
// Fresh store entries are skipped for a grace period and every cache write re-reads the
// store, so a user in the middle of being paired is not queued again.
//
// Runner executes a pass, records metrics and archives non-empty reports to object storage.
package reconcile
