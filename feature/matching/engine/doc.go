// Package engine is the Matching Engine: it pairs users of the two categories, charges
// the cost-bearing side and keeps the waiting state of both stores in step.
//
// # Operations
//
//   - RequestMatch writes the durable waiting entry, then tries to claim the oldest user
//     of the opposite category from the queue cache. A claim starts the pairing saga;
//     otherwise the user is added to the cache and a requested event is published.
//   - CancelMatch closes the waiting entry, removes the cache member and publishes
//     cancelled. It is idempotent.
//   - GetStatus reads the durable store, then the open room of the user.
//   - RunBatchPairing pairs the store listings of both categories index for index.
//
// # Pairing saga
//
// deactivate_waiting, verify_credit, create_room and charge_credit run in order through
// core/saga. Any failure deletes the room if one was created and restores both users to
// the store and the cache with their original score. A successful pairing is recorded
// and announced with a paired event.
//
// Every operation returns a result value carrying a Kind instead of an error.
package engine
