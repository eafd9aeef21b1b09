package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/lms-exam-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
	schedulingTotal   *prometheus.CounterVec
	schedulingLatency *prometheus.HistogramVec
	studentsPlaced    *prometheus.CounterVec
	sectionsPlanned   prometheus.Histogram
	lockWait          prometheus.Histogram

	requestCount         uint64
	requestDurationTotal uint64
	schedulingSuccess    uint64
	schedulingFailure    uint64
	studentsPlacedCount  uint64
	lockWaitTotal        uint64
	lockCount            uint64
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

	schedulingTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exam_scheduling_operations_total",
		Help: "Scheduling operations by operation and outcome",
	}, []string{"operation", "outcome"})

	schedulingLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "exam_scheduling_duration_seconds",
		Help:    "Duration of scheduling operations including persistence",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	studentsPlaced := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exam_students_placed_total",
		Help: "Students seated on a machine by operation",
	}, []string{"operation"})

	sectionsPlanned := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "exam_sections_per_plan",
		Help:    "Number of sections produced per allocation plan",
		Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
	})

	lockWait := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "exam_institute_lock_wait_seconds",
		Help:    "Time spent waiting for the per-institute allocation lock",
		Buckets: prometheus.DefBuckets,
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, schedulingTotal, schedulingLatency, studentsPlaced, sectionsPlanned, lockWait, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:          registry,
		handler:           handler,
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		schedulingTotal:   schedulingTotal,
		schedulingLatency: schedulingLatency,
		studentsPlaced:    studentsPlaced,
		sectionsPlanned:   sectionsPlanned,
		lockWait:          lockWait,
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

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// ObserveScheduling records the outcome of one scheduling operation.
func (m *MetricsService) ObserveScheduling(operation string, students, sections int, err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
		atomic.AddUint64(&m.schedulingFailure, 1)
	} else {
		atomic.AddUint64(&m.schedulingSuccess, 1)
		if students > 0 {
			m.studentsPlaced.WithLabelValues(operation).Add(float64(students))
			atomic.AddUint64(&m.studentsPlacedCount, uint64(students))
		}
		if sections > 0 {
			m.sectionsPlanned.Observe(float64(sections))
		}
	}
	m.schedulingTotal.WithLabelValues(operation, outcome).Inc()
	m.schedulingLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveLockWait tracks how long an operation waited for its institute lock.
func (m *MetricsService) ObserveLockWait(duration time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.Observe(duration.Seconds())
	atomic.AddUint64(&m.lockCount, 1)
	atomic.AddUint64(&m.lockWaitTotal, uint64(duration.Nanoseconds()))
}

// Snapshot returns aggregated metrics suitable for the summary endpoint.
func (m *MetricsService) Snapshot() models.SchedulingMetrics {
	if m == nil {
		return models.SchedulingMetrics{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	locks := atomic.LoadUint64(&m.lockCount)
	lockWait := atomic.LoadUint64(&m.lockWaitTotal)

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	var avgLockWaitMs float64
	if locks > 0 {
		avgLockWaitMs = float64(lockWait) / float64(locks) / float64(time.Millisecond)
	}

	return models.SchedulingMetrics{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		SchedulingSuccesses:      atomic.LoadUint64(&m.schedulingSuccess),
		SchedulingFailures:       atomic.LoadUint64(&m.schedulingFailure),
		StudentsPlaced:           atomic.LoadUint64(&m.studentsPlacedCount),
		AverageLockWaitMs:        avgLockWaitMs,
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
