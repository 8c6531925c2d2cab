package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/referral/internal/platform"
)

// Kind distinguishes event kinds.
type Kind int

const (
	KindReady Kind = iota + 1
	KindInviteCreated
	KindInviteDeleted
	KindMemberJoined
	KindMemberUpdated
	KindMemberLeft
)

func (k Kind) String() string {
	switch k {
	case KindReady:
		return "ready"
	case KindInviteCreated:
		return "invite_created"
	case KindInviteDeleted:
		return "invite_deleted"
	case KindMemberJoined:
		return "member_joined"
	case KindMemberUpdated:
		return "member_updated"
	case KindMemberLeft:
		return "member_left"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is one platform event. Fields not used by Kind are zero.
type Event struct {
	Kind    Kind
	GuildID string

	// Ready
	Guilds []string

	// InviteCreated, InviteDeleted
	Code string
	Uses int

	// MemberJoined uses Member; MemberUpdated and MemberLeft use UserID.
	Member      platform.Member
	UserID      string
	RolesBefore []string // nil when unknown
	RolesAfter  []string
}

// Handle routes ev to the matching Dispatcher method.
func (d *Dispatcher) Handle(ctx context.Context, ev Event) error {
	switch ev.Kind {
	case KindReady:
		return d.Ready(ctx, ev.Guilds)
	case KindInviteCreated:
		d.InviteCreated(ctx, ev.GuildID, ev.Code, ev.Uses)
		return nil
	case KindInviteDeleted:
		return d.InviteDeleted(ctx, ev.GuildID, ev.Code)
	case KindMemberJoined:
		_, err := d.MemberJoined(ctx, ev.GuildID, ev.Member)
		return err
	case KindMemberUpdated:
		_, err := d.MemberUpdated(ctx, ev.GuildID, ev.UserID, ev.RolesBefore, ev.RolesAfter)
		return err
	case KindMemberLeft:
		_, err := d.MemberLeft(ctx, ev.GuildID, ev.UserID)
		return err
	default:
		return fmt.Errorf("unknown event kind %v", ev.Kind)
	}
}

// Handler processes one event.
type Handler interface {
	Handle(ctx context.Context, ev Event) error
}

// Loop is a FIFO of platform events drained by a single Run goroutine.
//
// Submit may be called from any goroutine (gateway callbacks run
// concurrently). The queue is unbounded so gateway callbacks never block.
type Loop struct {
	handler Handler
	logger  *slog.Logger

	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{} // buffered, size 1
}

// NewLoop creates a Loop feeding h.
func NewLoop(h Handler, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		handler: h,
		logger:  logger,
		events:  make([]Event, 0, 64),
		signal:  make(chan struct{}, 1),
	}
}

// Submit appends ev to the queue. It returns false once the loop is
// closed.
func (l *Loop) Submit(ev Event) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return false
	}
	l.events = append(l.events, ev)

	// Coalesce: one pending signal is enough to wake Run.
	select {
	case l.signal <- struct{}{}:
	default:
	}
	return true
}

func (l *Loop) next() (Event, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.events) == 0 {
		return Event{}, false
	}
	ev := l.events[0]
	// Release the slot so the member and role slices can be collected.
	l.events[0] = Event{}
	if len(l.events) == 1 {
		l.events = l.events[:0]
	} else {
		l.events = l.events[1:]
	}
	return ev, true
}

// Len returns the number of queued events.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// Close stops accepting events. Run drains what is queued and returns.
func (l *Loop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.closed = true
	close(l.signal)
}

// Run handles events in submission order until ctx is cancelled or the
// loop is closed and drained. Handler errors are logged and do not stop
// the loop.
func (l *Loop) Run(ctx context.Context) error {
	for {
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			ev, ok := l.next()
			if !ok {
				break
			}
			l.handle(ctx, ev)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, open := <-l.signal:
			if !open && l.Len() == 0 {
				return nil
			}
		}
	}
}

func (l *Loop) handle(ctx context.Context, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("event handler panicked", "kind", ev.Kind, "panic", r)
		}
	}()
	if err := l.handler.Handle(ctx, ev); err != nil {
		l.logger.Error("event failed", "kind", ev.Kind, "guild", ev.GuildID, "error", err)
	}
}
