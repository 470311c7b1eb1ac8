package cron

import (
	"time"

	"github.com/flemzord/rollcall/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
)

// Run outcomes used as the "result" label.
const (
	resultOK      = "ok"
	resultError   = "error"
	resultPanic   = "panic"
	resultSkipped = "skipped"
)

// Metrics holds the scheduler's Prometheus collectors.
type Metrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// NewMetrics builds the collectors and registers them with reg when non-nil.
// Collectors already registered by another scheduler are reused.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rollcall",
			Subsystem: "cron",
			Name:      "job_runs_total",
			Help:      "Job firings by outcome.",
		}, []string{"job", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rollcall",
			Subsystem: "cron",
			Name:      "job_duration_seconds",
			Help:      "Wall time spent in job task bodies.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"job"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rollcall",
			Subsystem: "cron",
			Name:      "jobs_in_flight",
			Help:      "Task bodies currently running.",
		}),
	}
	m.runs = telemetry.Register(reg, m.runs)
	m.duration = telemetry.Register(reg, m.duration)
	m.inFlight = telemetry.Register(reg, m.inFlight)
	return m
}

func (m *Metrics) observe(job, result string, elapsed time.Duration) {
	m.runs.WithLabelValues(job, result).Inc()
	if result != resultSkipped {
		m.duration.WithLabelValues(job).Observe(elapsed.Seconds())
	}
}
