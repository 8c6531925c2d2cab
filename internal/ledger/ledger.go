// Package ledger manages per-member referral token balances.
//
// Balances are created lazily at the configured weekly quota. Consuming
// floors at zero instead of failing; refunding has no upper bound. A
// double refund from a race therefore only over-credits a member and
// never leaves a broken balance.
package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/referral/internal/clock"
	"github.com/roach88/referral/internal/config"
	"github.com/roach88/referral/internal/metrics"
	"github.com/roach88/referral/internal/store"
)

// Ledger is the token economy.
type Ledger struct {
	store   *store.Store
	cfg     *config.Resolver
	clock   clock.Clock
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Ledger. m and logger may be nil.
func New(s *store.Store, cfg *config.Resolver, clk clock.Clock, m *metrics.Metrics, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{store: s, cfg: cfg, clock: clk, metrics: m, logger: logger}
}

// Seed returns the state a balance is created with right now.
func (l *Ledger) Seed(ctx context.Context) store.BalanceSeed {
	return store.BalanceSeed{
		Quota: l.cfg.Int(ctx, config.KeyWeeklyQuota),
		At:    l.clock.Now(),
	}
}

// Balance returns the member's tokens, creating the entry if absent.
func (l *Ledger) Balance(ctx context.Context, memberID string) (int, error) {
	b, err := l.store.Balance(ctx, memberID, l.Seed(ctx))
	if err != nil {
		return 0, err
	}
	return b.TokensLeft, nil
}

// Consume takes n tokens, flooring at zero. Returns the new balance.
func (l *Ledger) Consume(ctx context.Context, memberID string, n int) (int, error) {
	if n < 0 {
		return 0, fmt.Errorf("consume %d tokens: n must not be negative", n)
	}
	return l.store.AddTokens(ctx, memberID, -n, l.Seed(ctx))
}

// Refund returns n tokens. Returns the new balance.
func (l *Ledger) Refund(ctx context.Context, memberID string, n int) (int, error) {
	if n < 0 {
		return 0, fmt.Errorf("refund %d tokens: n must not be negative", n)
	}
	left, err := l.store.AddTokens(ctx, memberID, n, l.Seed(ctx))
	if err != nil {
		return 0, err
	}
	for i := 0; i < n; i++ {
		l.metrics.Refunded()
	}
	return left, nil
}

// Grant adds or removes tokens as an admin action. The result is clamped
// at zero.
func (l *Ledger) Grant(ctx context.Context, memberID string, delta int) (int, error) {
	left, err := l.store.AddTokens(ctx, memberID, delta, l.Seed(ctx))
	if err != nil {
		return 0, err
	}
	l.logger.Info("tokens granted", "member", memberID, "delta", delta, "tokens_left", left)
	return left, nil
}

// Set overwrites the member's balance.
func (l *Ledger) Set(ctx context.Context, memberID string, amount int) error {
	return l.store.SetTokens(ctx, memberID, amount, l.Seed(ctx))
}

// ResetAll sets every balance to the configured weekly quota.
func (l *Ledger) ResetAll(ctx context.Context) (int64, error) {
	return l.ResetAllTo(ctx, l.cfg.Int(ctx, config.KeyWeeklyQuota))
}

// ResetAllTo sets every balance to quota and stamps the reset time.
// Re-running within a period converges on the same state.
func (l *Ledger) ResetAllTo(ctx context.Context, quota int) (int64, error) {
	n, err := l.store.ResetAllTokens(ctx, quota, l.clock.Now())
	if err != nil {
		return 0, err
	}
	l.logger.Info("tokens reset", "quota", quota, "balances", n)
	return n, nil
}
