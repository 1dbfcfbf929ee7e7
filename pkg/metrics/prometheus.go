// Package metrics provides Prometheus metrics for the quorum broker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager holds all Prometheus metrics for the broker.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Dispatch metrics - one analysis request end to end
	dispatchRequests   prometheus.Counter
	dispatchRejected   *prometheus.CounterVec
	dispatchAllFailed  prometheus.Counter
	dispatchDuration   prometheus.Histogram
	dispatchEligible   prometheus.Histogram
	dispatchRespondent prometheus.Histogram

	// Specialist call metrics
	specialistCalls       *prometheus.CounterVec
	specialistCallLatency prometheus.Histogram
	specialistReputation  *prometheus.GaugeVec

	// Consensus metrics
	consensusStrength prometheus.Histogram
	consensusScore    prometheus.Histogram
	totalSpend        prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error metrics
	errorsByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "quorum",
		subsystem:        "broker",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.dispatchRequests = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dispatch_requests_total",
		Help:      "Total number of analysis requests dispatched",
	})

	m.dispatchRejected = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "dispatch_rejected_total",
			Help:      "Total number of requests rejected before fan-out, by reason",
		},
		[]string{"reason"},
	)

	m.dispatchAllFailed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dispatch_all_failed_total",
		Help:      "Total number of requests where every specialist call failed",
	})

	m.dispatchDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dispatch_duration_milliseconds",
		Help:      "End-to-end dispatch duration in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.dispatchEligible = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dispatch_eligible_specialists",
		Help:      "Number of specialists eligible per request under the budget",
		Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
	})

	m.dispatchRespondent = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dispatch_respondent_specialists",
		Help:      "Number of specialists that answered successfully per request",
		Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
	})

	m.specialistCalls = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "specialist_calls_total",
			Help:      "Total number of specialist calls by specialist id and outcome",
		},
		[]string{"specialist", "outcome"},
	)

	m.specialistCallLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "specialist_call_latency_milliseconds",
		Help:      "Specialist call latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.specialistReputation = auto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "specialist_reputation",
			Help:      "Current reputation (0-100) per specialist",
		},
		[]string{"specialist"},
	)

	m.consensusStrength = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "consensus_strength",
		Help:      "Consensus strength (0-1) per computed result",
		Buckets:   []float64{0, 0.1, 0.25, 0.5, 0.75, 0.9, 0.95, 1},
	})

	m.consensusScore = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "consensus_average_score",
		Help:      "Average score (0-100) per computed result",
		Buckets:   []float64{0, 20, 40, 60, 80, 90, 100},
	})

	m.totalSpend = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "spend_total",
		Help:      "Total amount committed to specialists, in smallest currency units",
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorsByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_component_total",
			Help:      "Total number of errors by component and error type",
		},
		[]string{"component", "error_type"},
	)
}

// Package-level helpers operating on the global manager.

// RecordDispatchRequest increments the dispatched request counter.
func RecordDispatchRequest() {
	globalManager.dispatchRequests.Inc()
}

// RecordDispatchRejected counts a request rejected before fan-out.
func RecordDispatchRejected(reason string) {
	globalManager.dispatchRejected.WithLabelValues(reason).Inc()
}

// RecordDispatchAllFailed counts a request where no specialist succeeded.
func RecordDispatchAllFailed() {
	globalManager.dispatchAllFailed.Inc()
}

// RecordDispatchDuration records end-to-end dispatch latency.
func RecordDispatchDuration(latencyMs float64) {
	globalManager.dispatchDuration.Observe(latencyMs)
}

// RecordDispatchCounts records eligible and respondent specialist counts.
func RecordDispatchCounts(eligible, respondents int) {
	globalManager.dispatchEligible.Observe(float64(eligible))
	globalManager.dispatchRespondent.Observe(float64(respondents))
}

// RecordSpecialistCall counts one specialist call by outcome
// ("success", "timeout", "network", "upstream", "malformed", "payment").
func RecordSpecialistCall(specialist, outcome string) {
	globalManager.specialistCalls.WithLabelValues(specialist, outcome).Inc()
}

// RecordSpecialistCallLatency records one specialist call latency.
func RecordSpecialistCallLatency(latencyMs float64) {
	globalManager.specialistCallLatency.Observe(latencyMs)
}

// UpdateSpecialistReputation publishes the current reputation for a specialist.
func UpdateSpecialistReputation(specialist string, reputation int) {
	globalManager.specialistReputation.WithLabelValues(specialist).Set(float64(reputation))
}

// RecordConsensus records the strength and average score of a computed result.
func RecordConsensus(strength float64, averageScore int) {
	globalManager.consensusStrength.Observe(strength)
	globalManager.consensusScore.Observe(float64(averageScore))
}

// RecordSpend adds to the running total of committed specialist fees.
func RecordSpend(amount int) {
	if amount > 0 {
		globalManager.totalSpend.Add(float64(amount))
	}
}

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records an HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByComponent counts an error by component and type.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry for exposition.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
