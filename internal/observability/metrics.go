package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/spec-kit/license-service/pkg/licensegate"
)

// Metrics holds the prometheus collectors of both binaries. It satisfies licensegate.Metrics.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errors          *prometheus.CounterVec

	decisions     *prometheus.CounterVec
	checks        *prometheus.CounterVec
	verifications *prometheus.HistogramVec
}

// NewMetrics registers every collector on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"path", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Errors rendered by the error middleware, by code.",
		}, []string{"path", "method", "code"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "license_decisions_total",
			Help: "Verification decisions issued by the license server.",
		}, []string{"valid", "reason"}),
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "licensegate_checks_total",
			Help: "Gate checks by answering layer.",
		}, []string{"source", "valid"}),
		verifications: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "licensegate_verification_seconds",
			Help:    "Latency of network verifications by failure class.",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"failure"}),
	}
	m.registry.MustRegister(
		m.requests, m.requestDuration, m.errors,
		m.decisions, m.checks, m.verifications,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry exposes the registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRequest observes a finished HTTP request.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(path, method, code).Inc()
}

// RecordDecision counts a server-side verification outcome.
func (m *Metrics) RecordDecision(valid bool, reason string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(strconv.FormatBool(valid), reason).Inc()
}

// ObserveCheck implements licensegate.Metrics.
func (m *Metrics) ObserveCheck(source licensegate.Source, valid bool) {
	if m == nil {
		return
	}
	m.checks.WithLabelValues(string(source), strconv.FormatBool(valid)).Inc()
}

// ObserveVerification implements licensegate.Metrics.
func (m *Metrics) ObserveVerification(failure licensegate.FailureClass, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := string(failure)
	if label == "" {
		label = "none"
	}
	m.verifications.WithLabelValues(label).Observe(elapsed.Seconds())
}
