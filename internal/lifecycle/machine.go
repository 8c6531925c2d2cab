// Package lifecycle is the referral state machine.
//
//	pending ──► holding ──► confirmed
//	   │           │
//	   └───────────┴──────► failed
//
// Every operation is a guarded transition: it applies only when the
// referral is in the expected prior state, and is otherwise a silent
// no-op reported through Transition.Applied. Failing a referral and
// refunding its token commit together, so when live events, admin actions
// and overlapping sweeps race on the same referral exactly one of them
// performs the transition and only that one refunds.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/referral/internal/clock"
	"github.com/roach88/referral/internal/ledger"
	"github.com/roach88/referral/internal/metrics"
	"github.com/roach88/referral/internal/model"
	"github.com/roach88/referral/internal/store"
)

// Transition reports the outcome of one state machine call.
type Transition struct {
	// Referral is the record after the call. Zero when no referral matched.
	Referral model.Referral
	// Applied is true only for the caller that performed the change.
	Applied bool
	// Refunded is true when this call returned a token to the inviter.
	Refunded bool
}

// PendingRequest describes a join to record.
type PendingRequest struct {
	InviterID  string
	InviteCode string
	InviteeID  string
	JoinedAt   time.Time
	// TTLDays bounds how long the referral may stay pending. Zero or
	// negative means it never expires.
	TTLDays int
	// ConsumeToken takes the inviter's token atomically with the insert.
	ConsumeToken bool
}

// Machine drives referral transitions.
type Machine struct {
	store   *store.Store
	ledger  *ledger.Ledger
	clock   clock.Clock
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Machine. m and logger may be nil.
func New(s *store.Store, l *ledger.Ledger, clk clock.Clock, m *metrics.Metrics, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{store: s, ledger: l, clock: clk, metrics: m, logger: logger}
}

// ExpiryFor returns joinedAt + ttlDays, or nil when ttlDays <= 0.
func ExpiryFor(joinedAt time.Time, ttlDays int) *time.Time {
	if ttlDays <= 0 {
		return nil
	}
	t := joinedAt.Add(time.Duration(ttlDays) * 24 * time.Hour)
	return &t
}

// CreatePending records a pending referral. When the invitee already has
// a pending or holding referral, that one is returned with Applied false
// and no token is consumed.
func (m *Machine) CreatePending(ctx context.Context, req PendingRequest) (Transition, error) {
	id, created, err := m.store.CreatePending(ctx, store.PendingParams{
		InviterID:    req.InviterID,
		InviteeID:    req.InviteeID,
		InviteCode:   req.InviteCode,
		JoinedAt:     req.JoinedAt,
		ExpiresAt:    ExpiryFor(req.JoinedAt, req.TTLDays),
		ConsumeToken: req.ConsumeToken,
		Seed:         m.ledger.Seed(ctx),
	})
	if err != nil {
		return Transition{}, fmt.Errorf("create pending referral: %w", err)
	}

	ref, err := m.store.ReferralByID(ctx, id)
	if err != nil {
		return Transition{}, fmt.Errorf("read referral %d: %w", id, err)
	}
	if created {
		m.metrics.Transition(model.StatusPending, "")
		m.logger.Info("referral pending",
			"referral", id, "inviter", req.InviterID, "invitee", req.InviteeID, "code", req.InviteCode)
	} else {
		m.logger.Debug("referral already active", "referral", id, "invitee", req.InviteeID)
	}
	return Transition{Referral: ref, Applied: created}, nil
}

// StartHold moves pending → holding and stamps the hold start.
func (m *Machine) StartHold(ctx context.Context, inviteeID string) (Transition, error) {
	ref, applied, err := m.store.StartHold(ctx, inviteeID, m.clock.Now())
	if err != nil {
		return Transition{}, err
	}
	if applied {
		m.metrics.Transition(model.StatusHolding, "")
		m.logger.Info("referral holding", "referral", ref.ID, "invitee", inviteeID)
	}
	return Transition{Referral: ref, Applied: applied}, nil
}

// Confirm moves holding → confirmed and stamps the confirmation time.
func (m *Machine) Confirm(ctx context.Context, inviteeID string) (Transition, error) {
	ref, applied, err := m.store.Confirm(ctx, inviteeID, m.clock.Now())
	if err != nil {
		return Transition{}, err
	}
	if applied {
		m.metrics.Transition(model.StatusConfirmed, "")
		m.logger.Info("referral confirmed", "referral", ref.ID, "inviter", ref.InviterID, "invitee", inviteeID)
	}
	return Transition{Referral: ref, Applied: applied}, nil
}

// Fail moves pending or holding → failed. Every reason except manual
// refunds one token to the inviter in the same transaction.
func (m *Machine) Fail(ctx context.Context, inviteeID string, reason model.FailureReason) (Transition, error) {
	if !reason.Valid() {
		return Transition{}, fmt.Errorf("fail %s: unknown reason %q", inviteeID, reason)
	}
	refund := reason.Refunds()
	ref, applied, err := m.store.Fail(ctx, inviteeID, reason, refund, m.ledger.Seed(ctx))
	if err != nil {
		return Transition{}, err
	}
	if !applied {
		return Transition{}, nil
	}

	m.metrics.Transition(model.StatusFailed, reason)
	if refund {
		m.metrics.Refunded()
	}
	m.logger.Info("referral failed",
		"referral", ref.ID, "inviter", ref.InviterID, "invitee", inviteeID, "reason", reason, "refunded", refund)
	return Transition{Referral: ref, Applied: true, Refunded: refund}, nil
}
