package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/referral/internal/clock"
	"github.com/roach88/referral/internal/config"
	"github.com/roach88/referral/internal/model"
	"github.com/roach88/referral/internal/platform"
	"github.com/roach88/referral/internal/sweep"
	"github.com/roach88/referral/internal/testutil"
)

var epoch = time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)

func newTestApp(t *testing.T) (*App, *testutil.FakePlatform, *clock.Fake) {
	t.Helper()
	st := testutil.NewStore(t)
	fake := testutil.NewFakePlatform("g")
	clk := clock.NewFake(epoch)
	a := New(Options{
		Store:    st,
		Config:   testutil.NewResolver(st),
		Platform: fake,
		GuildID:  "g",
		Clock:    clk,
		Logger:   testutil.DiscardLogger(),
	})
	return a, fake, clk
}

func TestNew_WiresSharedTracker(t *testing.T) {
	a, _, _ := newTestApp(t)
	assert.Same(t, a.Tracker, a.Links.Tracker)
	assert.Same(t, a.Tracker, a.Dispatcher.Tracker)
	assert.Same(t, a.Machine, a.Sweeper.Machine)
	assert.Equal(t, "g", a.Sweeper.GuildID)
}

func TestNew_OfflineDefault(t *testing.T) {
	st := testutil.NewStore(t)
	a := New(Options{Store: st, Config: testutil.NewResolver(st), Logger: testutil.DiscardLogger()})
	assert.Equal(t, platform.Offline{}, a.Platform)

	ctx := context.Background()
	_, err := a.Machine.CreatePending(ctx, pendingFor("alice", "bob", time.Now()))
	require.NoError(t, err)
	_, err = a.Machine.StartHold(ctx, "bob")
	require.NoError(t, err)

	// Offline member lookups are transient: nothing is failed.
	sum, err := a.Sweep(ctx, true, sweep.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Skipped)
	assert.Zero(t, sum.Failed)
}

func TestAdminOperations(t *testing.T) {
	a, _, _ := newTestApp(t)
	ctx := context.Background()

	left, err := a.GrantTokens(ctx, "alice", -10)
	require.NoError(t, err)
	assert.Zero(t, left)
	_, err = a.GrantTokens(ctx, "", 1)
	require.Error(t, err)

	n, err := a.ResetTokens(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	bal, err := a.Ledger.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 5, bal)

	require.NoError(t, a.SetHold(ctx, 3))
	assert.Equal(t, 3, a.Config.Int(ctx, config.KeyConfirmHoldDays))
	require.Error(t, a.SetHold(ctx, -1))
}

func TestFailManual_NoRefund(t *testing.T) {
	a, _, clk := newTestApp(t)
	ctx := context.Background()
	_, err := a.Machine.CreatePending(ctx, pendingFor("alice", "bob", clk.Now()))
	require.NoError(t, err)

	tr, err := a.FailManual(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, tr.Applied)
	assert.False(t, tr.Refunded)
	assert.Equal(t, model.ReasonManual, tr.Referral.FailureReason)

	bal, err := a.Ledger.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 4, bal)

	tr, err = a.FailManual(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, tr.Applied)
}

func TestValidate(t *testing.T) {
	a, fake, _ := newTestApp(t)
	ctx := context.Background()
	fake.AddMember(platform.Member{ID: "bob", Roles: []string{"newcomer"}})

	assert.ErrorIs(t, a.Validate(ctx, "bob"), ErrRoleNotConfigured)

	require.NoError(t, a.Config.Set(ctx, config.KeyRequiredRoleID, "member"))
	require.NoError(t, a.Config.Set(ctx, config.KeyRemoveOnValidate, "newcomer"))
	require.NoError(t, a.Validate(ctx, "bob"))
	assert.True(t, fake.HasRole("bob", "member"))
	assert.False(t, fake.HasRole("bob", "newcomer"))

	assert.ErrorIs(t, a.Validate(ctx, "ghost"), platform.ErrMemberNotFound)
}

func TestStatsAndLeaderboard(t *testing.T) {
	a, fake, clk := newTestApp(t)
	ctx := context.Background()
	require.NoError(t, a.Config.Set(ctx, config.KeyRequiredRoleID, "member"))
	fake.AddMember(platform.Member{ID: "bob", Roles: []string{"member"}})

	_, err := a.Machine.CreatePending(ctx, pendingFor("alice", "bob", clk.Now()))
	require.NoError(t, err)
	_, err = a.Machine.StartHold(ctx, "bob")
	require.NoError(t, err)
	sum, err := a.Sweep(ctx, true, sweep.TriggerManual)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Confirmed)

	stats, err := a.Stats(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, model.UserStats{Tokens: 4, Confirmed: 1}, stats)

	week, err := a.Leaderboard(ctx, model.PeriodWeek)
	require.NoError(t, err)
	assert.Equal(t, []model.LeaderboardEntry{{InviterID: "alice", Confirmed: 1}}, week)

	clk.Advance(8 * 24 * time.Hour)
	week, err = a.Leaderboard(ctx, model.PeriodWeek)
	require.NoError(t, err)
	assert.Empty(t, week)
	all, err := a.Leaderboard(ctx, model.PeriodAll)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
