package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the
// scheduling core.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	optionsGenerated    prometheus.Counter
	generationFailures  prometheus.Counter
	generationDuration  prometheus.Histogram
	conflictsDetected   *prometheus.CounterVec
	assignmentsReplaced prometheus.Counter
	waitlistPromotions  prometheus.Counter

	cacheLatency prometheus.Observer
	cacheWrite   prometheus.Observer
	cacheHits    prometheus.Counter
	cacheMisses  prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	optionsGenerated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timetable_options_generated_total",
		Help: "Total timetable options produced by the generator",
	})

	generationFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timetable_generation_failures_total",
		Help: "Generation runs that produced zero full options",
	})

	generationDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "timetable_generation_duration_seconds",
		Help:    "Duration of option generation runs",
		Buckets: prometheus.DefBuckets,
	})

	conflictsDetected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_conflicts_detected_total",
		Help: "Conflicts reported during commit attempts",
	}, []string{"operation"})

	assignmentsReplaced := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "schedule_assignments_committed_total",
		Help: "Assignments committed via manual scheduling or option application",
	})

	waitlistPromotions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "enrollment_waitlist_promotions_total",
		Help: "Waitlisted enrollments promoted to approved",
	})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_latency_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, optionsGenerated, generationFailures,
		generationDuration, conflictsDetected, assignmentsReplaced, waitlistPromotions,
		cacheLatency, cacheWrite, cacheHits, cacheMisses, goroutines)

	return &MetricsService{
		registry:            registry,
		handler:             promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:     requestDuration,
		requestTotal:        requestTotal,
		optionsGenerated:    optionsGenerated,
		generationFailures:  generationFailures,
		generationDuration:  generationDuration,
		conflictsDetected:   conflictsDetected,
		assignmentsReplaced: assignmentsReplaced,
		waitlistPromotions:  waitlistPromotions,
		cacheLatency:        cacheLatency,
		cacheWrite:          cacheWrite,
		cacheHits:           cacheHits,
		cacheMisses:         cacheMisses,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordGeneration records the outcome of one generation run.
func (m *MetricsService) RecordGeneration(optionCount int, duration time.Duration) {
	if m == nil {
		return
	}
	m.generationDuration.Observe(duration.Seconds())
	if optionCount == 0 {
		m.generationFailures.Inc()
		return
	}
	m.optionsGenerated.Add(float64(optionCount))
}

// RecordConflicts counts reported conflicts per commit operation.
func (m *MetricsService) RecordConflicts(operation string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.conflictsDetected.WithLabelValues(operation).Add(float64(count))
}

// RecordCommit counts assignments that reached committed state.
func (m *MetricsService) RecordCommit(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.assignmentsReplaced.Add(float64(count))
}

// RecordPromotion counts a waitlist promotion.
func (m *MetricsService) RecordPromotion() {
	if m == nil {
		return
	}
	m.waitlistPromotions.Inc()
}

// RecordCacheOperation records cache hit/miss metrics.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil || m.cacheWrite == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}
