package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_Terminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusHolding.Terminal())
	assert.True(t, StatusConfirmed.Terminal())
	assert.True(t, StatusFailed.Terminal())
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("holding")
	require.NoError(t, err)
	assert.Equal(t, StatusHolding, st)

	_, err = ParseStatus("all")
	assert.Error(t, err)
}

func TestParseStatusFilter(t *testing.T) {
	for _, in := range []string{"", "all"} {
		st, err := ParseStatusFilter(in)
		require.NoError(t, err)
		assert.Empty(t, st)
	}
	st, err := ParseStatusFilter("confirmed")
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, st)

	_, err = ParseStatusFilter("done")
	assert.Error(t, err)
}

func TestFailureReason_Refunds(t *testing.T) {
	assert.True(t, ReasonExpired.Refunds())
	assert.True(t, ReasonRoleLost.Refunds())
	assert.True(t, ReasonLeft.Refunds())
	assert.False(t, ReasonManual.Refunds())
}

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		in   string
		want Period
		ok   bool
	}{
		{"", PeriodAll, true},
		{"all", PeriodAll, true},
		{"week", PeriodWeek, true},
		{"month", PeriodMonth, true},
		{"year", "", false},
	}
	for _, tt := range tests {
		got, err := ParsePeriod(tt.in)
		if !tt.ok {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestPeriod_Since(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, now.AddDate(0, 0, -7), PeriodWeek.Since(now))
	assert.Equal(t, now.AddDate(0, 0, -30), PeriodMonth.Since(now))
	assert.True(t, PeriodAll.Since(now).IsZero())
}
