package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Movement("IN")
	m.Movement("IN")
	m.Rejection("OUT", "insufficient_stock")
	m.JobRun("daily_report", "done", time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.movements.WithLabelValues("IN")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejections.WithLabelValues("OUT", "insufficient_stock")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobRuns.WithLabelValues("daily_report", "done")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Movement("IN")
		m.Alert()
		m.JobRun("backup", "failed", 0)
		m.HTTPRequest("GET", "200", 0)
		m.DeliveryFailure("notify")
	})
}
