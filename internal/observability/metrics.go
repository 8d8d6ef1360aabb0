package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the profile service.
// Metrics are organized by subsystem: refreshes, backend requests, signals,
// sessions and user data processing. Every Record method is a no-op on a nil
// receiver.
type Metrics struct {
	// RefreshesStarted counts refresh invocations, labeled by trigger reason.
	RefreshesStarted *prometheus.CounterVec

	// RefreshOutcomes counts finished refresh invocations, labeled by outcome.
	RefreshOutcomes *prometheus.CounterVec

	// RefreshDuration observes the duration of a refresh invocation in seconds.
	RefreshDuration prometheus.Histogram

	// RetriesScheduled counts re-triggers emitted after a failed refresh.
	RetriesScheduled prometheus.Counter

	// RetriesExhausted counts trigger chains that stopped at the attempt bound.
	RetriesExhausted prometheus.Counter

	// RefreshesSuperseded counts in-flight invocations cancelled by a newer trigger.
	RefreshesSuperseded prometheus.Counter

	// BackendRequestsTotal counts backend requests, labeled by endpoint and status.
	BackendRequestsTotal *prometheus.CounterVec

	// BackendRequestDuration observes backend request duration in seconds, labeled by endpoint.
	BackendRequestDuration *prometheus.HistogramVec

	// SignalsDispatched counts signals reduced by the store, labeled by type.
	SignalsDispatched *prometheus.CounterVec

	// SignalsDropped counts signals dropped from a full subscriber buffer.
	SignalsDropped prometheus.Counter

	// SignalsPublished counts signals published to Kafka, labeled by type.
	SignalsPublished *prometheus.CounterVec

	// SignalsPublishFailed counts signals that could not be published, labeled by type.
	SignalsPublishFailed *prometheus.CounterVec

	// SessionsExpired counts session expiries observed by the service.
	SessionsExpired prometheus.Counter

	// UserDataLoads counts user data processing loads, labeled by choice and outcome.
	UserDataLoads *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance registered with the default registry.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer, namespace)
}

// NewMetricsWithRegistry creates a new Metrics instance registered with reg.
func NewMetricsWithRegistry(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		// Refreshes
		RefreshesStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_started_total",
			Help:      "Total number of profile refreshes started",
		}, []string{"reason"}),
		RefreshOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_outcomes_total",
			Help:      "Total number of profile refreshes by outcome",
		}, []string{"outcome"}),
		RefreshDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of profile refreshes in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		RetriesScheduled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_retries_scheduled_total",
			Help:      "Total number of refresh re-triggers after a failure",
		}),
		RetriesExhausted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_retries_exhausted_total",
			Help:      "Total number of refresh chains that reached the attempt bound",
		}),
		RefreshesSuperseded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_superseded_total",
			Help:      "Total number of in-flight refreshes superseded by a newer trigger",
		}),

		// Backend
		BackendRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Total number of requests to the profile backend",
		}, []string{"endpoint", "status"}),
		BackendRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Duration of profile backend requests in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"endpoint"}),

		// Signals
		SignalsDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_dispatched_total",
			Help:      "Total number of signals dispatched to the state store",
		}, []string{"type"}),
		SignalsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_dropped_total",
			Help:      "Total number of signals dropped from full subscriber buffers",
		}),
		SignalsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_published_total",
			Help:      "Total number of signals published to Kafka",
		}, []string{"type"}),
		SignalsPublishFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_publish_failed_total",
			Help:      "Total number of signals that failed to publish",
		}, []string{"type"}),

		// Sessions and user data
		SessionsExpired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_expired_total",
			Help:      "Total number of session expiries",
		}),
		UserDataLoads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "user_data_loads_total",
			Help:      "Total number of user data processing loads by outcome",
		}, []string{"choice", "outcome"}),
	}
}

// RecordRefreshStarted records that a refresh invocation has started.
func (m *Metrics) RecordRefreshStarted(reason string) {
	if m == nil {
		return
	}
	m.RefreshesStarted.WithLabelValues(reason).Inc()
}

// RecordRefreshOutcome records the outcome and duration of a refresh invocation.
func (m *Metrics) RecordRefreshOutcome(outcome string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.RefreshOutcomes.WithLabelValues(outcome).Inc()
	m.RefreshDuration.Observe(durationSeconds)
}

// RecordRetryScheduled records a re-trigger after a failed refresh.
func (m *Metrics) RecordRetryScheduled() {
	if m == nil {
		return
	}
	m.RetriesScheduled.Inc()
}

// RecordRetriesExhausted records a trigger chain stopping at the attempt bound.
func (m *Metrics) RecordRetriesExhausted() {
	if m == nil {
		return
	}
	m.RetriesExhausted.Inc()
}

// RecordSuperseded records an in-flight invocation cancelled by a newer trigger.
func (m *Metrics) RecordSuperseded() {
	if m == nil {
		return
	}
	m.RefreshesSuperseded.Inc()
}

// RecordBackendRequest records a backend request. A status of 0 means no response was received.
func (m *Metrics) RecordBackendRequest(endpoint string, status int, durationSeconds float64) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.BackendRequestsTotal.WithLabelValues(endpoint, label).Inc()
	m.BackendRequestDuration.WithLabelValues(endpoint).Observe(durationSeconds)
}

// RecordSignalDispatched records a signal reduced by the store.
func (m *Metrics) RecordSignalDispatched(signalType string) {
	if m == nil {
		return
	}
	m.SignalsDispatched.WithLabelValues(signalType).Inc()
}

// RecordSignalDropped records a signal dropped from a full subscriber buffer.
func (m *Metrics) RecordSignalDropped() {
	if m == nil {
		return
	}
	m.SignalsDropped.Inc()
}

// RecordSignalPublished records a signal published to Kafka.
func (m *Metrics) RecordSignalPublished(signalType string) {
	if m == nil {
		return
	}
	m.SignalsPublished.WithLabelValues(signalType).Inc()
}

// RecordSignalPublishFailed records a signal that failed to publish.
func (m *Metrics) RecordSignalPublishFailed(signalType string) {
	if m == nil {
		return
	}
	m.SignalsPublishFailed.WithLabelValues(signalType).Inc()
}

// RecordSessionExpired records a session expiry.
func (m *Metrics) RecordSessionExpired() {
	if m == nil {
		return
	}
	m.SessionsExpired.Inc()
}

// RecordUserDataLoad records a user data processing load outcome.
func (m *Metrics) RecordUserDataLoad(choice, outcome string) {
	if m == nil {
		return
	}
	m.UserDataLoads.WithLabelValues(choice, outcome).Inc()
}
