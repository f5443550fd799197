package metrics

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bridge"

// Metrics holds the collectors exported on /metrics.
type Metrics struct {
	providerRequests *prometheus.CounterVec
	providerLatency  *prometheus.HistogramVec
	taskResults      *prometheus.CounterVec
	taskLatency      *prometheus.HistogramVec
	poolInFlight     prometheus.Gauge
	jobTransitions   *prometheus.CounterVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

func global() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// MustNewMetrics registers the collectors with reg, reusing collectors that are
// already registered under the same name.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		providerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Total provider completion calls.",
		}, []string{"provider", "operation", "status", "error_category"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Provider completion call duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}, []string{"provider", "operation", "status"}),
		taskResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Executed tasks by task type and envelope outcome.",
		}, []string{"task_type", "status"}),
		taskLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "End-to-end executor duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"task_type"}),
		poolInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "provider_pool_in_flight",
			Help:      "Provider calls currently holding a worker slot.",
		}),
		jobTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_transitions_total",
			Help:      "Asynchronous job state transitions.",
		}, []string{"state"}),
	}

	m.providerRequests = register(reg, m.providerRequests)
	m.providerLatency = register(reg, m.providerLatency)
	m.taskResults = register(reg, m.taskResults)
	m.taskLatency = register(reg, m.taskLatency)
	m.poolInFlight = register(reg, m.poolInFlight)
	m.jobTransitions = register(reg, m.jobTransitions)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, collector C) C {
	if err := reg.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return collector
}

func (m *Metrics) RecordProviderCall(provider string, operation string, status string, errorCategory string, duration time.Duration) {
	if m == nil {
		return
	}
	m.providerRequests.WithLabelValues(provider, operation, status, errorCategory).Inc()
	m.providerLatency.WithLabelValues(provider, operation, status).Observe(duration.Seconds())
}

func (m *Metrics) RecordTask(taskType string, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.taskResults.WithLabelValues(taskType, status).Inc()
	m.taskLatency.WithLabelValues(taskType).Observe(duration.Seconds())
}

func (m *Metrics) PoolAcquired() {
	if m != nil {
		m.poolInFlight.Inc()
	}
}

func (m *Metrics) PoolReleased() {
	if m != nil {
		m.poolInFlight.Dec()
	}
}

func (m *Metrics) RecordJobTransition(state string) {
	if m != nil {
		m.jobTransitions.WithLabelValues(state).Inc()
	}
}

func RecordProviderCall(provider string, operation string, status string, errorCategory string, duration time.Duration) {
	global().RecordProviderCall(provider, operation, status, errorCategory, duration)
}

func RecordTask(taskType string, status string, duration time.Duration) {
	global().RecordTask(taskType, status, duration)
}

func PoolAcquired() { global().PoolAcquired() }

func PoolReleased() { global().PoolReleased() }

func RecordJobTransition(state string) {
	global().RecordJobTransition(state)
}

// Handler serves the default registry in the Prometheus exposition format.
func Handler() http.Handler {
	global()
	return promhttp.Handler()
}
