package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveSend(true, 20*time.Millisecond)
	m.ObserveSend(true, 30*time.Millisecond)
	m.ObserveSend(false, time.Second)
	m.RunStarted()
	m.RunFinished("completed", true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.messages.WithLabelValues("sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.messages.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("completed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.activeRuns))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveSend(true, time.Millisecond)
	m.RunStarted()
	m.RunFinished("failed", false)
}
