package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder is the set of observations the matchmaker reports.
type Recorder interface {
	QueueLength(category string, length int64)
	RequestOutcome(operation, kind string)
	PairCreated(source string)
	SagaFailed(step string)
	ReconcileActions(category, action string, count int)
	NotificationDelivered(event string, sockets int)
	TaskRun(task string, elapsed time.Duration, err error)
}

// NewMetrics registers the matchmaker collectors on registry.
func NewMetrics(registry *prometheus.Registry) Recorder {
	return setupPrometheusMetrics(registry)
}

// NewNop returns a Recorder that discards everything.
func NewNop() Recorder {
	return nopRecorder{}
}

type nopRecorder struct{}

func (nopRecorder) QueueLength(string, int64)            {}
func (nopRecorder) RequestOutcome(string, string)        {}
func (nopRecorder) PairCreated(string)                   {}
func (nopRecorder) SagaFailed(string)                    {}
func (nopRecorder) ReconcileActions(string, string, int) {}
func (nopRecorder) NotificationDelivered(string, int)    {}
func (nopRecorder) TaskRun(string, time.Duration, error) {}
