package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/referral/internal/app"
	"github.com/roach88/referral/internal/clock"
	"github.com/roach88/referral/internal/config"
	"github.com/roach88/referral/internal/ids"
	"github.com/roach88/referral/internal/lifecycle"
	"github.com/roach88/referral/internal/model"
	"github.com/roach88/referral/internal/platform"
	"github.com/roach88/referral/internal/store"
	"github.com/roach88/referral/internal/sweep"
	"github.com/roach88/referral/internal/testutil"
)

// GuildID is the single guild every scenario runs in.
const GuildID = "guild"

const outcomeCounted = "counted"

// Harness executes one scenario.
type Harness struct {
	app      *app.App
	store    *store.Store
	platform *testutil.FakePlatform
	clock    *clock.Fake
	logger   *slog.Logger

	seen int // messages already attributed to a trace event
}

// Run executes a scenario on a fresh in-memory database and returns the
// trace with any failed expectations and assertions. The error return is
// for runs that could not complete.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	start := scenario.Start
	if start.IsZero() {
		start = DefaultStart
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &Harness{
		store:    st,
		platform: testutil.NewFakePlatform(GuildID),
		clock:    clock.NewFake(start),
		logger:   logger,
	}
	h.app = app.New(app.Options{
		Store:    st,
		Config:   config.NewResolver(st, config.WithEnv(testutil.NoEnv), config.WithLogger(logger)),
		Platform: h.platform,
		GuildID:  GuildID,
		Clock:    h.clock,
		Logger:   logger,
	})
	h.app.Dispatcher.IDs = ids.NewSequence("event")
	h.app.Sweeper.IDs = ids.NewSequence("sweep")

	ctx := context.Background()
	result := NewResult()

	if err := h.executeSetup(ctx, scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}
	if err := h.executeSteps(ctx, scenario.Steps, result); err != nil {
		return nil, fmt.Errorf("failed to execute steps: %w", err)
	}

	actx := &AssertionContext{Ctx: ctx, App: h.app, Platform: h.platform}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// executeSetup applies the initial state and seeds the invite cache as a
// gateway READY would. Messages sent during setup are not traced.
func (h *Harness) executeSetup(ctx context.Context, setup Setup) error {
	for key, value := range setup.Config {
		if err := h.app.Config.Set(ctx, key, value); err != nil {
			return fmt.Errorf("config %s: %w", key, err)
		}
	}
	for member, tokens := range setup.Balances {
		if err := h.app.Ledger.Set(ctx, member, tokens); err != nil {
			return fmt.Errorf("balance %s: %w", member, err)
		}
	}

	live := make([]model.InviteUse, 0, len(setup.Invites))
	for _, inv := range setup.Invites {
		live = append(live, model.InviteUse{Code: inv.Code, Uses: inv.Uses, InviterID: inv.Inviter})
		if inv.Inviter == "" {
			continue
		}
		err := h.store.UpsertInvite(ctx, model.Invite{
			Code:      inv.Code,
			InviterID: inv.Inviter,
			CreatedAt: h.clock.Now(),
			Active:    true,
		})
		if err != nil {
			return fmt.Errorf("invite %s: %w", inv.Code, err)
		}
	}
	h.platform.SetInvites(live...)

	for _, m := range setup.Members {
		h.platform.AddMember(platform.Member{ID: m.ID, Roles: m.Roles, JoinedAt: h.clock.Now()})
	}

	if err := h.app.Dispatcher.Ready(ctx, []string{GuildID}); err != nil {
		return err
	}
	h.seen = len(h.platform.Messages())
	return nil
}

// executeSteps runs the steps in order, tracing each and checking its
// expect clause.
func (h *Harness) executeSteps(ctx context.Context, steps []Step, result *Result) error {
	for i, step := range steps {
		kind := step.Kind()
		ev := TraceEvent{Seq: i + 1, Step: kind}

		var err error
		switch kind {
		case StepJoin:
			err = h.join(ctx, step.Join, &ev)
		case StepRoleGranted:
			err = h.role(ctx, step.RoleGranted, true, &ev)
		case StepRoleRemoved:
			err = h.role(ctx, step.RoleRemoved, false, &ev)
		case StepLeave:
			err = h.leave(ctx, step.Leave, &ev)
		case StepAdvance:
			h.clock.Advance(step.Advance)
			ev.Result = map[string]any{"by": step.Advance.String()}
		case StepSweep:
			err = h.sweep(ctx, step.Sweep, &ev)
		case StepInviteDeleted:
			err = h.inviteDeleted(ctx, step.InviteDeleted, &ev)
		default:
			err = fmt.Errorf("unknown step kind")
		}
		if err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, kind, err)
		}

		ev.At = h.clock.Now().UTC().Format(time.RFC3339)
		ev.Messages = h.newMessages()
		result.Trace = append(result.Trace, ev)

		for _, msg := range checkExpect(step.Expect, ev) {
			result.AddError(fmt.Sprintf("step %d (%s): %s", i+1, kind, msg))
		}
		h.logger.Info("step completed", "step", i+1, "kind", kind)
	}
	return nil
}

func (h *Harness) join(ctx context.Context, s *JoinStep, ev *TraceEvent) error {
	now := h.clock.Now()
	m := platform.Member{ID: s.User, JoinedAt: now}
	if s.AccountAgeDays != nil {
		m.CreatedAt = now.Add(-time.Duration(*s.AccountAgeDays) * 24 * time.Hour)
	}
	h.platform.AddMember(m)
	if s.Code != "" {
		h.platform.UseInvite(s.Code)
	}

	out, err := h.app.Dispatcher.MemberJoined(ctx, GuildID, m)
	if err != nil {
		return err
	}
	ev.User = s.User
	ev.Result = map[string]any{"outcome": joinOutcome(out.Counted, string(out.Skip))}
	if out.Code != "" {
		ev.Result["code"] = out.Code
	}
	if out.InviterID != "" {
		ev.Result["inviter"] = out.InviterID
	}
	if out.Counted {
		ev.Result["tokens_left"] = out.TokensLeft
	}
	return nil
}

func joinOutcome(counted bool, skip string) string {
	if counted {
		return outcomeCounted
	}
	return skip
}

func (h *Harness) role(ctx context.Context, s *RoleStep, grant bool, ev *TraceEvent) error {
	before, err := h.platform.Member(ctx, GuildID, s.User)
	if err != nil {
		return err
	}
	if grant {
		h.platform.GrantRole(s.User, s.Role)
	} else {
		h.platform.RevokeRole(s.User, s.Role)
	}
	after, err := h.platform.Member(ctx, GuildID, s.User)
	if err != nil {
		return err
	}

	tr, err := h.app.Dispatcher.MemberUpdated(ctx, GuildID, s.User, slices.Clone(before.Roles), after.Roles)
	if err != nil {
		return err
	}
	ev.User = s.User
	ev.Result = transitionResult(tr)
	ev.Result["role"] = s.Role
	return nil
}

func (h *Harness) leave(ctx context.Context, s *UserStep, ev *TraceEvent) error {
	h.platform.RemoveMember(s.User)
	tr, err := h.app.Dispatcher.MemberLeft(ctx, GuildID, s.User)
	if err != nil {
		return err
	}
	ev.User = s.User
	ev.Result = transitionResult(tr)
	return nil
}

func transitionResult(tr lifecycle.Transition) map[string]any {
	res := map[string]any{"applied": tr.Applied}
	if tr.Applied {
		res["status"] = string(tr.Referral.Status)
		if tr.Referral.FailureReason != "" {
			res["reason"] = string(tr.Referral.FailureReason)
		}
		if tr.Refunded {
			res["refunded"] = true
		}
	}
	return res
}

func (h *Harness) sweep(ctx context.Context, s *SweepStep, ev *TraceEvent) error {
	sum, err := h.app.Sweeper.Run(ctx, sweep.Options{Force: s.Force, Trigger: sweep.TriggerManual})
	if err != nil {
		return err
	}
	ev.Result = map[string]any{
		"sweep_id":  sum.SweepID,
		"total":     sum.Total,
		"expired":   sum.Expired,
		"confirmed": sum.Confirmed,
		"failed":    sum.Failed,
		"refunded":  sum.Refunded,
		"held":      sum.Held,
		"waiting":   sum.Waiting,
		"skipped":   sum.Skipped,
	}
	if s.Force {
		ev.Result["force"] = true
	}
	return nil
}

func (h *Harness) inviteDeleted(ctx context.Context, s *InviteStep, ev *TraceEvent) error {
	h.platform.DeleteInvite(s.Code)
	if err := h.app.Dispatcher.InviteDeleted(ctx, GuildID, s.Code); err != nil {
		return err
	}
	ev.Result = map[string]any{"code": s.Code}
	return nil
}

// newMessages returns the notifications sent since the last call.
func (h *Harness) newMessages() []string {
	all := h.platform.Messages()
	var out []string
	for _, m := range all[h.seen:] {
		if m.Kind == "dm" {
			out = append(out, fmt.Sprintf("dm %s: %s", m.Target, m.Text))
		} else {
			out = append(out, fmt.Sprintf("#%s: %s", m.Target, m.Text))
		}
	}
	h.seen = len(all)
	return out
}

// checkExpect compares a step's result with its expect clause.
func checkExpect(e *Expect, ev TraceEvent) []string {
	if e == nil {
		return nil
	}
	var errs []string
	if e.Outcome != "" {
		if got := ev.Result["outcome"]; got != e.Outcome {
			errs = append(errs, fmt.Sprintf("expected outcome %s, got %v", e.Outcome, got))
		}
	}
	if e.Applied != nil {
		if got := ev.Result["applied"]; got != *e.Applied {
			errs = append(errs, fmt.Sprintf("expected applied=%t, got %v", *e.Applied, got))
		}
	}
	for _, k := range sortedKeys(e.Summary) {
		if got := ev.Result[k]; got != e.Summary[k] {
			errs = append(errs, fmt.Sprintf("expected %s=%d, got %v", k, e.Summary[k], got))
		}
	}
	return errs
}
