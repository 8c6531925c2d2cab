package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/referral/internal/model"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Join("counted")
	m.Join("counted")
	m.Join("QUOTA_EXHAUSTED")
	m.Transition(model.StatusFailed, model.ReasonExpired)
	m.Refunded()
	m.Sweep("manual", 20*time.Millisecond)
	m.Reward(5)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.joins.WithLabelValues("counted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.joins.WithLabelValues("QUOTA_EXHAUSTED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("failed", "expired")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.refunds))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sweeps.WithLabelValues("manual")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rewards.WithLabelValues("5")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["referral_sweep_duration_seconds"])
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Join("counted")
		m.Transition(model.StatusConfirmed, "")
		m.Refunded()
		m.Sweep("hourly", time.Second)
		m.Reward(15)
		m.HTTPRequest("GET", "/healthz", 200, time.Millisecond)
	})
}

func TestNew_DoubleRegisterPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
