// Package scheduler runs named tasks on fixed intervals for the lifetime of the process.
//
// A Scheduler is created once by the start command, receives its tasks (batch pairing,
// reconciliation, connection sweep) and is stopped on shutdown. A failing or panicking
// run is logged and reported to the Observer; the next tick runs the task again.
package scheduler
