// Package invites attributes joins to invite codes and manages personal
// referral links.
//
// The platform does not say which invite a new member used. Tracker infers
// it by diffing a fresh invite listing against the last snapshot it saw:
// the first code (in listing order) whose use count strictly increased is
// taken as the one used. Two joins through different invites between
// snapshots can therefore be misattributed or missed; joins are not
// serialized per guild.
package invites

import (
	"maps"
	"sync"

	"github.com/roach88/referral/internal/model"
)

// Tracker caches invite use counts per guild. It is created once and
// passed to whatever handles join events.
//
// Thread-safety: Tracker is safe for concurrent use. Each method holds the
// lock for its whole read-diff-replace, but nothing orders concurrent
// AttributeJoin calls against each other.
type Tracker struct {
	mu     sync.Mutex
	guilds map[string]map[string]int
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{guilds: make(map[string]map[string]int)}
}

// Seed replaces the guild's cache with a full live snapshot.
func (t *Tracker) Seed(guildID string, live []model.InviteUse) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.guilds[guildID] = snapshot(live)
}

// OnInviteCreated records a new invite without a full refetch.
func (t *Tracker) OnInviteCreated(guildID, code string, uses int) {
	if code == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	cache, ok := t.guilds[guildID]
	if !ok {
		cache = make(map[string]int)
		t.guilds[guildID] = cache
	}
	cache[code] = uses
}

// OnInviteDeleted forgets an invite.
func (t *Tracker) OnInviteDeleted(guildID, code string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.guilds[guildID], code)
}

// AttributeJoin returns the first code in live whose use count is strictly
// greater than the cached count (a code missing from the cache counts as
// zero). The cache is replaced with live whether or not a code matched.
func (t *Tracker) AttributeJoin(guildID string, live []model.InviteUse) (code string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	before := t.guilds[guildID]
	for _, inv := range live {
		if inv.Code == "" {
			continue
		}
		if inv.Uses > before[inv.Code] {
			code, ok = inv.Code, true
			break
		}
	}
	t.guilds[guildID] = snapshot(live)
	return code, ok
}

// Snapshot returns a copy of the guild's cache.
func (t *Tracker) Snapshot(guildID string) map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return maps.Clone(t.guilds[guildID])
}

func snapshot(live []model.InviteUse) map[string]int {
	m := make(map[string]int, len(live))
	for _, inv := range live {
		if inv.Code == "" {
			continue
		}
		m[inv.Code] = inv.Uses
	}
	return m
}
