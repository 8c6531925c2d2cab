package leaderboard

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/referral/internal/config"
	"github.com/roach88/referral/internal/model"
	"github.com/roach88/referral/internal/store"
	"github.com/roach88/referral/internal/testutil"
)

func TestBuild(t *testing.T) {
	entries := []model.LeaderboardEntry{
		{InviterID: "a", Confirmed: 9},
		{InviterID: "b", Confirmed: 7},
		{InviterID: "c", Confirmed: 5},
		{InviterID: "d", Confirmed: 3},
		{InviterID: "e", Confirmed: 2},
		{InviterID: "f", Confirmed: 1},
	}
	b := Build(entries)
	assert.Equal(t, boardTitle, b.Title)
	assert.Equal(t, "🥇 <@a> - 9\n🥈 <@b> - 7\n🥉 <@c> - 5\n4️⃣ <@d> - 3\n5️⃣ <@e> - 2", b.Description)
	assert.Equal(t, boardFooter, b.Footer)
}

func TestBuild_Empty(t *testing.T) {
	assert.Equal(t, boardEmpty, Build(nil).Description)
}

func confirmN(t *testing.T, s *store.Store, inviter string, n int) {
	t.Helper()
	ctx := context.Background()
	at := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		invitee := fmt.Sprintf("%s-%d", inviter, i)
		_, _, err := s.CreatePending(ctx, store.PendingParams{InviterID: inviter, InviteeID: invitee, JoinedAt: at})
		require.NoError(t, err)
		_, _, err = s.StartHold(ctx, invitee, at)
		require.NoError(t, err)
		_, _, err = s.Confirm(ctx, invitee, at)
		require.NoError(t, err)
	}
}

func TestRefresh_PostsThenEdits(t *testing.T) {
	st := testutil.NewStore(t)
	cfg := testutil.NewResolver(st)
	fake := testutil.NewFakePlatform("g")
	ctx := context.Background()
	r := NewRefresher(st, cfg, fake, testutil.DiscardLogger())

	// No channel configured: nothing happens.
	require.NoError(t, r.Refresh(ctx))
	assert.Empty(t, fake.Boards())

	require.NoError(t, cfg.Set(ctx, config.KeyInviteChannelID, "invites"))
	confirmN(t, st, "alice", 2)
	require.NoError(t, r.Refresh(ctx))
	assert.Equal(t, "msg1", cfg.String(ctx, config.KeyLeaderboardMessageID))

	confirmN(t, st, "bob", 3)
	require.NoError(t, r.Refresh(ctx))

	boards := fake.Boards()
	require.Len(t, boards, 2)
	assert.Equal(t, "invites", boards[0].ChannelID)
	assert.Equal(t, "", boards[0].MessageID)
	assert.Equal(t, "msg1", boards[0].PostedID)
	assert.Equal(t, "msg1", boards[1].MessageID)
	assert.Equal(t, "msg1", boards[1].PostedID)
	assert.Equal(t, "🥇 <@bob> - 3\n🥈 <@alice> - 2", boards[1].Board.Description)
}

func TestRefresh_PrefersLeaderboardChannel(t *testing.T) {
	st := testutil.NewStore(t)
	cfg := testutil.NewResolver(st)
	fake := testutil.NewFakePlatform("g")
	ctx := context.Background()
	require.NoError(t, cfg.Set(ctx, config.KeyInviteChannelID, "invites"))
	require.NoError(t, cfg.Set(ctx, config.KeyLeaderboardChannelID, "board"))

	require.NoError(t, NewRefresher(st, cfg, fake, nil).Refresh(ctx))
	require.Len(t, fake.Boards(), 1)
	assert.Equal(t, "board", fake.Boards()[0].ChannelID)
}
