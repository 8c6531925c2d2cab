package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/referral/internal/model"
	"github.com/roach88/referral/internal/testutil"
)

type recordingHandler struct {
	mu   sync.Mutex
	seen []Event
	fail Kind
}

func (h *recordingHandler) Handle(ctx context.Context, ev Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, ev)
	if ev.Kind == h.fail {
		return errors.New("boom")
	}
	return nil
}

func (h *recordingHandler) kinds() []Kind {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Kind, len(h.seen))
	for i, ev := range h.seen {
		out[i] = ev.Kind
	}
	return out
}

func TestLoop_FIFO(t *testing.T) {
	h := &recordingHandler{}
	l := NewLoop(h, testutil.DiscardLogger())

	require.True(t, l.Submit(Event{Kind: KindMemberJoined}))
	require.True(t, l.Submit(Event{Kind: KindMemberUpdated}))
	require.True(t, l.Submit(Event{Kind: KindMemberLeft}))
	assert.Equal(t, 3, l.Len())
	l.Close()

	require.NoError(t, l.Run(context.Background()))
	assert.Equal(t, []Kind{KindMemberJoined, KindMemberUpdated, KindMemberLeft}, h.kinds())
	assert.Zero(t, l.Len())
}

func TestLoop_SubmitAfterClose(t *testing.T) {
	l := NewLoop(&recordingHandler{}, testutil.DiscardLogger())
	l.Close()
	l.Close()
	assert.False(t, l.Submit(Event{Kind: KindReady}))
}

func TestLoop_HandlerErrorDoesNotStop(t *testing.T) {
	h := &recordingHandler{fail: KindInviteDeleted}
	l := NewLoop(h, testutil.DiscardLogger())
	l.Submit(Event{Kind: KindInviteDeleted})
	l.Submit(Event{Kind: KindInviteCreated})
	l.Close()

	require.NoError(t, l.Run(context.Background()))
	assert.Equal(t, []Kind{KindInviteDeleted, KindInviteCreated}, h.kinds())
}

func TestLoop_ConcurrentSubmit(t *testing.T) {
	h := &recordingHandler{}
	l := NewLoop(h, testutil.DiscardLogger())

	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background()) }()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				l.Submit(Event{Kind: KindInviteCreated})
			}
		}()
	}
	wg.Wait()
	l.Close()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not drain")
	}
	assert.Len(t, h.kinds(), 200)
}

func TestLoop_ContextCancel(t *testing.T) {
	l := NewLoop(&recordingHandler{}, testutil.DiscardLogger())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("loop ignored cancellation")
	}
}

func TestLoop_DrivesDispatcher(t *testing.T) {
	f := newFixture(t)
	f.fake.SetInvites(model.InviteUse{Code: "abc"})
	f.link(t, "abc", "alice", 0)
	bob := f.newcomer("bob")
	f.fake.UseInvite("abc")

	l := NewLoop(f.d, testutil.DiscardLogger())
	l.Submit(Event{Kind: KindMemberJoined, GuildID: "g", Member: bob})
	l.Submit(Event{Kind: KindMemberUpdated, GuildID: "g", UserID: "bob", RolesAfter: []string{"member"}})
	l.Submit(Event{Kind: KindMemberLeft, GuildID: "g", UserID: "bob"})
	l.Close()
	require.NoError(t, l.Run(context.Background()))

	ref, err := f.store.LatestByInvitee(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, ref.Status)
	assert.Equal(t, model.ReasonLeft, ref.FailureReason)
	assert.NotNil(t, ref.ConfirmStartedAt)
	assert.Equal(t, 5, f.balance(t, "alice"))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "member_joined", KindMemberJoined.String())
	assert.Equal(t, "kind(42)", Kind(42).String())
}
