// Package metrics holds the Prometheus collectors for the referral core.
//
// Collectors are registered on an injected Registerer rather than the
// global default so tests can use a fresh registry. A nil *Metrics is a
// valid no-op recorder.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/referral/internal/model"
)

// Metrics records core activity.
type Metrics struct {
	joins         *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	refunds       prometheus.Counter
	sweeps        *prometheus.CounterVec
	sweepDuration prometheus.Histogram
	rewards       *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpLatency   *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		joins: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "referral_joins_total",
				Help: "Member joins by handling outcome",
			},
			[]string{"outcome"},
		),
		transitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "referral_transitions_total",
				Help: "Applied referral transitions by target status and failure reason",
			},
			[]string{"to", "reason"},
		),
		refunds: f.NewCounter(
			prometheus.CounterOpts{
				Name: "referral_tokens_refunded_total",
				Help: "Tokens returned to inviters by failed referrals",
			},
		),
		sweeps: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "referral_sweeps_total",
				Help: "Completed reconciliation sweeps by trigger",
			},
			[]string{"trigger"},
		),
		sweepDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "referral_sweep_duration_seconds",
				Help:    "Histogram of reconciliation sweep durations",
				Buckets: prometheus.DefBuckets,
			},
		),
		rewards: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "referral_rewards_awarded_total",
				Help: "Reward tiers awarded",
			},
			[]string{"tier"},
		),
		httpRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_response_time_seconds",
				Help:    "Histogram of response times",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// Join counts one handled join.
func (m *Metrics) Join(outcome string) {
	if m == nil {
		return
	}
	m.joins.WithLabelValues(outcome).Inc()
}

// Transition counts one applied transition.
func (m *Metrics) Transition(to model.Status, reason model.FailureReason) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(to), string(reason)).Inc()
}

// Refunded counts one refunded token.
func (m *Metrics) Refunded() {
	if m == nil {
		return
	}
	m.refunds.Inc()
}

// Sweep records one completed sweep.
func (m *Metrics) Sweep(trigger string, took time.Duration) {
	if m == nil {
		return
	}
	m.sweeps.WithLabelValues(trigger).Inc()
	m.sweepDuration.Observe(took.Seconds())
}

// Reward counts one awarded tier.
func (m *Metrics) Reward(tier int) {
	if m == nil {
		return
	}
	m.rewards.WithLabelValues(strconv.Itoa(tier)).Inc()
}

// HTTPRequest records one admin API request.
func (m *Metrics) HTTPRequest(method, path string, status int, took time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(method, path).Observe(took.Seconds())
}
