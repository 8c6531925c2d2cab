package reward

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/referral/internal/clock"
	"github.com/roach88/referral/internal/config"
	"github.com/roach88/referral/internal/store"
	"github.com/roach88/referral/internal/testutil"
)

var epoch = time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)

type fixture struct {
	tracker *Tracker
	store   *store.Store
	cfg     *config.Resolver
	fake    *testutil.FakePlatform
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	st := testutil.NewStore(t)
	cfg := testutil.NewResolver(st)
	fake := testutil.NewFakePlatform("g")
	ctx := context.Background()
	require.NoError(t, cfg.Set(ctx, config.KeyRewardTier1, "2"))
	require.NoError(t, cfg.Set(ctx, config.KeyRewardTier2, "4"))
	return fixture{
		tracker: New(st, cfg, fake, clock.NewFake(epoch), nil, testutil.DiscardLogger()),
		store:   st,
		cfg:     cfg,
		fake:    fake,
	}
}

var seq int

func (f fixture) confirm(t *testing.T, inviter string) {
	t.Helper()
	ctx := context.Background()
	seq++
	invitee := fmt.Sprintf("invitee-%d", seq)
	_, _, err := f.store.CreatePending(ctx, store.PendingParams{InviterID: inviter, InviteeID: invitee, JoinedAt: epoch})
	require.NoError(t, err)
	_, _, err = f.store.StartHold(ctx, invitee, epoch)
	require.NoError(t, err)
	_, _, err = f.store.Confirm(ctx, invitee, epoch)
	require.NoError(t, err)
}

func TestCheckAndAward_ExactThresholds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.cfg.Set(ctx, config.KeyRewardChannelID, "rewards"))

	var awarded []int
	for i := 1; i <= 5; i++ {
		f.confirm(t, "alice")
		a, err := f.tracker.CheckAndAward(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, i, a.Count)
		if a.Awarded {
			awarded = append(awarded, a.Tier)
		}
	}
	assert.Equal(t, []int{2, 4}, awarded)
	assert.Equal(t, []string{
		"🎁 <@alice> congrats! You reached 2 confirmed referrals!",
		"🎁 <@alice> congrats! You reached 4 confirmed referrals!",
	}, f.fake.Posts("rewards"))
}

func TestCheckAndAward_OncePerTier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.cfg.Set(ctx, config.KeyLogChannelID, "log"))

	f.confirm(t, "alice")
	f.confirm(t, "alice")

	first, err := f.tracker.CheckAndAward(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, first.Awarded)

	again, err := f.tracker.CheckAndAward(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, again.Awarded)
	assert.Equal(t, 2, again.Tier)

	awards, err := f.store.Rewards(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, awards, 1)
	assert.Len(t, f.fake.Posts("log"), 1, "falls back to the log channel")
}

func TestCheckAndAward_StaffMention(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.cfg.Set(ctx, config.KeyInviteChannelID, "invites"))
	require.NoError(t, f.cfg.Set(ctx, config.KeyStaffRoleID, "staff"))

	f.confirm(t, "alice")
	f.confirm(t, "alice")
	_, err := f.tracker.CheckAndAward(ctx, "alice")
	require.NoError(t, err)

	assert.Equal(t, []string{"🎁 <@alice> congrats! You reached 2 confirmed referrals! <@&staff>"}, f.fake.Posts("invites"))
}

func TestCheckAndAward_SkippedThresholdNeverAwarded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.confirm(t, "alice")
	f.confirm(t, "alice")
	f.confirm(t, "alice")

	a, err := f.tracker.CheckAndAward(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, a.Awarded)
	assert.Zero(t, a.Tier)
}

func TestCheckAndAward_NoChannelStillRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.confirm(t, "alice")
	f.confirm(t, "alice")
	a, err := f.tracker.CheckAndAward(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, a.Awarded)
	assert.Empty(t, f.fake.Messages())
}
