package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testEpoch = time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)

// createTestStore creates a new file-backed store under t.TempDir().
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testSeed(quota int) BalanceSeed {
	return BalanceSeed{Quota: quota, At: testEpoch}
}

// createTestPending inserts a pending referral that consumes a token.
func createTestPending(t *testing.T, s *Store, inviter, invitee string) int64 {
	t.Helper()
	expires := testEpoch.Add(7 * 24 * time.Hour)
	id, created, err := s.CreatePending(context.Background(), PendingParams{
		InviterID:    inviter,
		InviteeID:    invitee,
		InviteCode:   "code-" + inviter,
		JoinedAt:     testEpoch,
		ExpiresAt:    &expires,
		ConsumeToken: true,
		Seed:         testSeed(5),
	})
	require.NoError(t, err)
	require.True(t, created)
	return id
}

// createTestConfirmed drives a referral all the way to confirmed.
func createTestConfirmed(t *testing.T, s *Store, inviter, invitee string, at time.Time) {
	t.Helper()
	ctx := context.Background()
	createTestPending(t, s, inviter, invitee)
	_, applied, err := s.StartHold(ctx, invitee, at)
	require.NoError(t, err)
	require.True(t, applied)
	_, applied, err = s.Confirm(ctx, invitee, at)
	require.NoError(t, err)
	require.True(t, applied)
}
