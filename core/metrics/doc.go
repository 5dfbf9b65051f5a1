// Package metrics defines the prometheus collectors of the matchmaker.
//
// Collectors are registered on an explicit *prometheus.Registry so tests can build
// isolated instances. Components depend on the Recorder interface and use NewNop when
// metrics are not wired.
package metrics
