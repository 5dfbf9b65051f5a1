package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "matchmaker"

type prometheusMetrics struct {
	queueLength       *prometheus.GaugeVec
	requestOutcomes   *prometheus.CounterVec
	pairsCreated      *prometheus.CounterVec
	sagaFailures      *prometheus.CounterVec
	reconcileActions  *prometheus.CounterVec
	notifications     *prometheus.CounterVec
	droppedDeliveries *prometheus.CounterVec
	taskDuration      *prometheus.HistogramVec
	taskErrors        *prometheus.CounterVec
}

func setupPrometheusMetrics(registry *prometheus.Registry) prometheusMetrics {
	factory := promauto.With(registry)

	return prometheusMetrics{
		queueLength: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_length",
			Help:      "Number of users waiting in the queue cache per category",
		}, []string{"category"}),
		requestOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_results_total",
			Help:      "Engine operation results by error kind",
		}, []string{"operation", "kind"}),
		pairsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pairs_created_total",
			Help:      "Successful pairings by trigger",
		}, []string{"source"}),
		sagaFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saga_failures_total",
			Help:      "Pairing saga failures by failed step",
		}, []string{"step"}),
		reconcileActions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_actions_total",
			Help:      "Reconciler actions applied",
		}, []string{"category", "action"}),
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_delivered_total",
			Help:      "Event deliveries to live sockets",
		}, []string{"event"}),
		droppedDeliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_dropped_total",
			Help:      "Events dropped because the user held no live socket",
		}, []string{"event"}),
		taskDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_ms",
			Help:      "Background task run time in milliseconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"task"}),
		taskErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_errors_total",
			Help:      "Background task runs that returned an error",
		}, []string{"task"}),
	}
}

func (m prometheusMetrics) QueueLength(category string, length int64) {
	m.queueLength.With(prometheus.Labels{"category": category}).Set(float64(length))
}

func (m prometheusMetrics) RequestOutcome(operation, kind string) {
	if kind == "" {
		kind = "ok"
	}
	m.requestOutcomes.With(prometheus.Labels{"operation": operation, "kind": kind}).Inc()
}

func (m prometheusMetrics) PairCreated(source string) {
	m.pairsCreated.With(prometheus.Labels{"source": source}).Inc()
}

func (m prometheusMetrics) SagaFailed(step string) {
	m.sagaFailures.With(prometheus.Labels{"step": step}).Inc()
}

func (m prometheusMetrics) ReconcileActions(category, action string, count int) {
	if count <= 0 {
		return
	}
	m.reconcileActions.With(prometheus.Labels{"category": category, "action": action}).Add(float64(count))
}

func (m prometheusMetrics) NotificationDelivered(event string, sockets int) {
	if sockets == 0 {
		m.droppedDeliveries.With(prometheus.Labels{"event": event}).Inc()
		return
	}
	m.notifications.With(prometheus.Labels{"event": event}).Add(float64(sockets))
}

func (m prometheusMetrics) TaskRun(task string, elapsed time.Duration, err error) {
	m.taskDuration.With(prometheus.Labels{"task": task}).Observe(float64(elapsed.Milliseconds()))
	if err != nil {
		m.taskErrors.With(prometheus.Labels{"task": task}).Inc()
	}
}
