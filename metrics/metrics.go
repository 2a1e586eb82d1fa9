// Package metrics provides Prometheus collectors for the duty engine service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns a registry and every collector registered on it.
type Manager struct {
	namespace string
	buckets   []float64
	registry  *prometheus.Registry
	runtime   bool

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Engine
	evaluations *prometheus.CounterVec // by operation
	findings    *prometheus.CounterVec // by key and severity
	fatigue     prometheus.Histogram
	rolling     *prometheus.GaugeVec // severity rank by rolling key
	lastCheck   prometheus.Gauge

	// Store
	dutiesStored prometheus.Gauge
	storeErrors  *prometheus.CounterVec
}

type Option func(*Manager)

func WithNamespace(ns string) Option { return func(m *Manager) { m.namespace = ns } }

func WithHistogramBuckets(b []float64) Option { return func(m *Manager) { m.buckets = b } }

// WithRegistry registers on r instead of a fresh registry.
func WithRegistry(r *prometheus.Registry) Option { return func(m *Manager) { m.registry = r } }

// WithRuntimeCollectors adds the Go runtime and process collectors.
func WithRuntimeCollectors() Option { return func(m *Manager) { m.runtime = true } }

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "dutyengine",
		buckets:   prometheus.DefBuckets,
		registry:  prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.init()
	if m.runtime {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

func (m *Manager) init() {
	auto := promauto.With(m.registry)

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route, method and status code.",
	}, []string{"route", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   m.buckets,
	}, []string{"route", "method"})

	m.evaluations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "engine",
		Name:      "evaluations_total",
		Help:      "Engine evaluations by operation (legality, rolling, whatif, flags, stats, check).",
	}, []string{"operation"})

	m.findings = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "engine",
		Name:      "findings_total",
		Help:      "Findings emitted by key and severity.",
	}, []string{"key", "severity"})

	m.fatigue = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "engine",
		Name:      "fatigue_score",
		Help:      "Distribution of computed fatigue scores.",
		Buckets:   prometheus.LinearBuckets(0, 10, 11),
	})

	m.rolling = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "engine",
		Name:      "rolling_severity",
		Help:      "Severity rank of each rolling finding at the last monitor run (0 info, 1 ok, 2 warn, 3 bad).",
	}, []string{"key"})

	m.lastCheck = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "engine",
		Name:      "monitor_last_run_timestamp_seconds",
		Help:      "Unix time of the last rolling monitor run.",
	})

	m.dutiesStored = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "store",
		Name:      "duties",
		Help:      "Recorded duties at the last listing.",
	})

	m.storeErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "store",
		Name:      "errors_total",
		Help:      "Store failures by operation.",
	}, []string{"operation"})
}

func (m *Manager) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Manager) RecordEvaluation(operation string) {
	m.evaluations.WithLabelValues(operation).Inc()
}

func (m *Manager) RecordFinding(key, severity string) {
	m.findings.WithLabelValues(key, severity).Inc()
}

func (m *Manager) ObserveFatigueScore(score int) {
	m.fatigue.Observe(float64(score))
}

func (m *Manager) SetRollingSeverity(key string, rank int) {
	m.rolling.WithLabelValues(key).Set(float64(rank))
}

func (m *Manager) MarkMonitorRun(at time.Time) {
	m.lastCheck.Set(float64(at.Unix()))
}

func (m *Manager) SetDutiesStored(n int) {
	m.dutiesStored.Set(float64(n))
}

func (m *Manager) RecordStoreError(operation string) {
	m.storeErrors.WithLabelValues(operation).Inc()
}

// Middleware records count and latency per chi route pattern, so
// /api/duties/{id} is one series regardless of the ID.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.httpRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
