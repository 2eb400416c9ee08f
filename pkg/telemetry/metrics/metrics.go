// Package metrics exposes Prometheus metrics for relay sessions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config contains configuration for metric registration.
type Config struct {
	// Namespace is the metric namespace prefix.
	// Default: "oracle"
	Namespace string

	// DurationBuckets are the histogram buckets for session duration.
	DurationBuckets []float64
}

// SessionMetrics tracks relay session outcomes.
//
// Metrics:
//   - oracle_sessions_total: session count by action, mode, status
//   - oracle_session_duration_seconds: session duration histogram
//   - oracle_frames_total: parsed upstream frames by action
//   - oracle_upstream_bytes_total: raw upstream bytes consumed by action
//   - oracle_request_size_bytes: built request body size histogram
type SessionMetrics struct {
	sessionsTotal   *prometheus.CounterVec
	sessionDuration *prometheus.HistogramVec
	framesTotal     *prometheus.CounterVec
	bytesTotal      *prometheus.CounterVec
	requestSize     *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates and registers session metrics with a fresh registry.
func New(cfg Config) *SessionMetrics {
	if cfg.Namespace == "" {
		cfg.Namespace = "oracle"
	}
	if len(cfg.DurationBuckets) == 0 {
		cfg.DurationBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}
	}

	m := &SessionMetrics{
		sessionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "sessions_total",
				Help:      "Total number of relay sessions by outcome",
			},
			[]string{"action", "mode", "status"},
		),
		sessionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "session_duration_seconds",
				Help:      "Duration of relay sessions in seconds",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"action", "mode"},
		),
		framesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "frames_total",
				Help:      "Total number of upstream frames parsed",
			},
			[]string{"action"},
		),
		bytesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "upstream_bytes_total",
				Help:      "Total raw upstream bytes consumed",
			},
			[]string{"action"},
		),
		requestSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "request_size_bytes",
				Help:      "Size of built upstream request bodies in bytes",
				Buckets:   prometheus.ExponentialBuckets(256, 4, 8), // 256B to 4MB
			},
			[]string{"action"},
		),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.sessionsTotal,
		m.sessionDuration,
		m.framesTotal,
		m.bytesTotal,
		m.requestSize,
	)

	return m
}

// ObserveSession records the outcome of one finished session. status is
// "ok" for successful sessions and the failure kind otherwise.
func (m *SessionMetrics) ObserveSession(action, mode, status string, duration time.Duration, frames, bytes int64) {
	if m == nil {
		return
	}
	m.sessionsTotal.WithLabelValues(action, mode, status).Inc()
	m.sessionDuration.WithLabelValues(action, mode).Observe(duration.Seconds())
	m.framesTotal.WithLabelValues(action).Add(float64(frames))
	m.bytesTotal.WithLabelValues(action).Add(float64(bytes))
}

// ObserveRequestSize records the encoded size of a built request body.
func (m *SessionMetrics) ObserveRequestSize(action string, bytes int) {
	if m == nil {
		return
	}
	m.requestSize.WithLabelValues(action).Observe(float64(bytes))
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (m *SessionMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
