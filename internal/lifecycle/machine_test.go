package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/referral/internal/clock"
	"github.com/roach88/referral/internal/ledger"
	"github.com/roach88/referral/internal/metrics"
	"github.com/roach88/referral/internal/model"
	"github.com/roach88/referral/internal/testutil"
)

var epoch = time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)

type fixture struct {
	machine *Machine
	ledger  *ledger.Ledger
	clock   *clock.Fake
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	st := testutil.NewStore(t)
	cfg := testutil.NewResolver(st)
	clk := clock.NewFake(epoch)
	logger := testutil.DiscardLogger()
	m := metrics.New(prometheus.NewRegistry())
	l := ledger.New(st, cfg, clk, m, logger)
	return fixture{machine: New(st, l, clk, m, logger), ledger: l, clock: clk}
}

func (f fixture) pending(t *testing.T, inviter, invitee string) Transition {
	t.Helper()
	tr, err := f.machine.CreatePending(context.Background(), PendingRequest{
		InviterID:    inviter,
		InviteCode:   "code",
		InviteeID:    invitee,
		JoinedAt:     f.clock.Now(),
		TTLDays:      7,
		ConsumeToken: true,
	})
	require.NoError(t, err)
	return tr
}

func (f fixture) balance(t *testing.T, member string) int {
	t.Helper()
	n, err := f.ledger.Balance(context.Background(), member)
	require.NoError(t, err)
	return n
}

func TestExpiryFor(t *testing.T) {
	assert.Nil(t, ExpiryFor(epoch, 0))
	assert.Nil(t, ExpiryFor(epoch, -1))
	got := ExpiryFor(epoch, 3)
	require.NotNil(t, got)
	assert.Equal(t, epoch.Add(3*24*time.Hour), *got)
}

func TestJoinFlow_ThreeTokensBecomeTwo(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ledger.Set(context.Background(), "alice", 3))

	tr := f.pending(t, "alice", "bob")
	assert.True(t, tr.Applied)
	assert.Equal(t, model.StatusPending, tr.Referral.Status)
	require.NotNil(t, tr.Referral.ExpiresAt)
	assert.Equal(t, epoch.Add(7*24*time.Hour), *tr.Referral.ExpiresAt)
	assert.Equal(t, 2, f.balance(t, "alice"))
}

func TestCreatePending_SecondCallReturnsExisting(t *testing.T) {
	f := newFixture(t)

	first := f.pending(t, "alice", "bob")
	second := f.pending(t, "alice", "bob")
	assert.False(t, second.Applied)
	assert.Equal(t, first.Referral.ID, second.Referral.ID)
	assert.Equal(t, 4, f.balance(t, "alice"))
}

func TestFullLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.pending(t, "alice", "bob")

	f.clock.Advance(time.Hour)
	tr, err := f.machine.StartHold(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, tr.Applied)
	assert.Equal(t, f.clock.Now(), *tr.Referral.ConfirmStartedAt)

	f.clock.Advance(7 * 24 * time.Hour)
	tr, err = f.machine.Confirm(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, tr.Applied)
	assert.Equal(t, model.StatusConfirmed, tr.Referral.Status)
	assert.Equal(t, f.clock.Now(), *tr.Referral.ConfirmedAt)

	// Terminal: nothing applies any more.
	for _, op := range []func() (Transition, error){
		func() (Transition, error) { return f.machine.StartHold(ctx, "bob") },
		func() (Transition, error) { return f.machine.Confirm(ctx, "bob") },
		func() (Transition, error) { return f.machine.Fail(ctx, "bob", model.ReasonLeft) },
	} {
		tr, err := op()
		require.NoError(t, err)
		assert.False(t, tr.Applied)
	}
	assert.Equal(t, 4, f.balance(t, "alice"))
}

func TestTransitionsAreIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.pending(t, "alice", "bob")

	tr, err := f.machine.StartHold(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, tr.Applied)
	tr, err = f.machine.StartHold(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, tr.Applied)

	tr, err = f.machine.Confirm(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, tr.Applied)
	tr, err = f.machine.Confirm(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, tr.Applied)
}

func TestFail_RefundsExceptManual(t *testing.T) {
	tests := []struct {
		reason     model.FailureReason
		wantTokens int
	}{
		{model.ReasonExpired, 5},
		{model.ReasonRoleLost, 5},
		{model.ReasonLeft, 5},
		{model.ReasonManual, 4},
	}

	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			f := newFixture(t)
			f.pending(t, "alice", "bob")

			tr, err := f.machine.Fail(context.Background(), "bob", tt.reason)
			require.NoError(t, err)
			assert.True(t, tr.Applied)
			assert.Equal(t, tt.reason.Refunds(), tr.Refunded)
			assert.Equal(t, tt.reason, tr.Referral.FailureReason)
			assert.Equal(t, tt.wantTokens, f.balance(t, "alice"))
		})
	}
}

func TestFail_UnknownReason(t *testing.T) {
	f := newFixture(t)
	f.pending(t, "alice", "bob")

	_, err := f.machine.Fail(context.Background(), "bob", "bored")
	assert.Error(t, err)
}

func TestFail_ConcurrentRefundsOnce(t *testing.T) {
	f := newFixture(t)
	f.pending(t, "alice", "bob")
	_, err := f.machine.StartHold(context.Background(), "bob")
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		applied  int
		refunded int
	)
	reasons := []model.FailureReason{model.ReasonRoleLost, model.ReasonLeft, model.ReasonRoleLost, model.ReasonLeft}
	for _, r := range reasons {
		wg.Add(1)
		go func(r model.FailureReason) {
			defer wg.Done()
			tr, err := f.machine.Fail(context.Background(), "bob", r)
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			if tr.Applied {
				applied++
			}
			if tr.Refunded {
				refunded++
			}
		}(r)
	}
	wg.Wait()

	assert.Equal(t, 1, applied)
	assert.Equal(t, 1, refunded)
	assert.Equal(t, 5, f.balance(t, "alice"))
}
