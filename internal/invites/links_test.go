package invites

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/referral/internal/clock"
	"github.com/roach88/referral/internal/config"
	"github.com/roach88/referral/internal/ledger"
	"github.com/roach88/referral/internal/platform"
	"github.com/roach88/referral/internal/testutil"
)

func newTestLinks(t *testing.T) (*Links, *testutil.FakePlatform) {
	t.Helper()
	st := testutil.NewStore(t)
	cfg := testutil.NewResolver(st)
	clk := clock.NewFake(time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC))
	logger := testutil.DiscardLogger()
	fake := testutil.NewFakePlatform("g")
	fake.AddMember(platform.Member{ID: "alice", Roles: []string{"creator"}})

	require.NoError(t, cfg.Set(context.Background(), config.KeyInviteChannelID, "invites"))

	return &Links{
		Store:    st,
		Ledger:   ledger.New(st, cfg, clk, nil, logger),
		Config:   cfg,
		Platform: fake,
		Tracker:  NewTracker(),
		Clock:    clk,
		Logger:   logger,
	}, fake
}

func TestGetOrCreate_CreatesThenReuses(t *testing.T) {
	l, _ := newTestLinks(t)
	ctx := context.Background()

	first, err := l.GetOrCreate(ctx, "g", "alice")
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, "code1", first.Code)
	assert.Equal(t, "https://discord.gg/code1", first.URL)
	assert.Equal(t, 5, first.TokensLeft)
	assert.Equal(t, map[string]int{"code1": 0}, l.Tracker.Snapshot("g"))

	second, err := l.GetOrCreate(ctx, "g", "alice")
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Code, second.Code)

	inv, err := l.Store.InviteByCode(ctx, "code1")
	require.NoError(t, err)
	assert.Equal(t, "alice", inv.InviterID)
	assert.Equal(t, "invites", inv.ChannelID)
	assert.True(t, inv.Active)
}

func TestGetOrCreate_CreatorRoleGate(t *testing.T) {
	l, fake := newTestLinks(t)
	ctx := context.Background()
	require.NoError(t, l.Config.Set(ctx, config.KeyLinkCreatorRoleID, "creator"))
	fake.AddMember(platform.Member{ID: "bob"})

	_, err := l.GetOrCreate(ctx, "g", "bob")
	assert.ErrorIs(t, err, ErrNotAllowed)

	_, err = l.GetOrCreate(ctx, "g", "alice")
	assert.NoError(t, err)
}

func TestGetOrCreate_NoTokens(t *testing.T) {
	l, _ := newTestLinks(t)
	ctx := context.Background()
	require.NoError(t, l.Ledger.Set(ctx, "alice", 0))

	_, err := l.GetOrCreate(ctx, "g", "alice")
	assert.ErrorIs(t, err, ErrNoTokens)
}

func TestGetOrCreate_ExistingLinkReturnedWithoutTokens(t *testing.T) {
	l, _ := newTestLinks(t)
	ctx := context.Background()

	_, err := l.GetOrCreate(ctx, "g", "alice")
	require.NoError(t, err)
	require.NoError(t, l.Ledger.Set(ctx, "alice", 0))

	link, err := l.GetOrCreate(ctx, "g", "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, link.TokensLeft)
}

func TestGetOrCreate_ChannelNotConfigured(t *testing.T) {
	l, _ := newTestLinks(t)
	ctx := context.Background()
	require.NoError(t, l.Config.Set(ctx, config.KeyInviteChannelID, ""))

	_, err := l.GetOrCreate(ctx, "g", "alice")
	assert.ErrorIs(t, err, ErrChannelNotConfigured)
}

func TestDeactivate(t *testing.T) {
	l, _ := newTestLinks(t)
	ctx := context.Background()

	link, err := l.GetOrCreate(ctx, "g", "alice")
	require.NoError(t, err)
	require.NoError(t, l.Deactivate(ctx, link.Code))
	require.NoError(t, l.Deactivate(ctx, "unknown"))

	next, err := l.GetOrCreate(ctx, "g", "alice")
	require.NoError(t, err)
	assert.True(t, next.Created)
	assert.NotEqual(t, link.Code, next.Code)
}
