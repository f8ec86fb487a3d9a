package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "crm"

// Metrics holds the campaign collectors.
type Metrics struct {
	messages    *prometheus.CounterVec
	sendLatency prometheus.Histogram
	runs        *prometheus.CounterVec
	activeRuns  prometheus.Gauge
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		messages: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "campaign",
				Name:      "messages_total",
				Help:      "Messages attempted by campaign runs.",
			},
			[]string{"outcome"}, // sent, failed
		),
		sendLatency: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "campaign",
				Name:      "send_duration_seconds",
				Help:      "Duration of a single message send.",
				Buckets:   prometheus.DefBuckets,
			},
		),
		runs: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "campaign",
				Name:      "runs_total",
				Help:      "Campaign runs by final state.",
			},
			[]string{"state"},
		),
		activeRuns: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "campaign",
				Name:      "active_runs",
				Help:      "Runs currently dispatching.",
			},
		),
	}
}

// ObserveSend records one attempt. Nil receivers are ignored so callers
// can run without metrics.
func (m *Metrics) ObserveSend(ok bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "sent"
	if !ok {
		outcome = "failed"
	}
	m.messages.WithLabelValues(outcome).Inc()
	m.sendLatency.Observe(d.Seconds())
}

// RunStarted marks a run as dispatching.
func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.activeRuns.Inc()
}

// RunFinished records the final state of a run that had started.
func (m *Metrics) RunFinished(state string, started bool) {
	if m == nil {
		return
	}
	if started {
		m.activeRuns.Dec()
	}
	m.runs.WithLabelValues(state).Inc()
}
