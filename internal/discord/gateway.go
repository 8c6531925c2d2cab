package discord

import (
	"log/slog"
	"slices"

	"github.com/bwmarrin/discordgo"

	"github.com/roach88/referral/internal/events"
)

// Gateway turns discordgo callbacks into queued events. Callbacks run on
// discordgo's goroutines and only enqueue.
type Gateway struct {
	loop   *events.Loop
	guilds []string // empty means every guild
	logger *slog.Logger

	// OnReady, when set, is called with the accepted guilds after each
	// READY has been queued.
	OnReady func(guildIDs []string)
}

// NewGateway creates a Gateway that submits to loop. When guilds is not
// empty, events from other guilds are ignored.
func NewGateway(loop *events.Loop, guilds []string, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{loop: loop, guilds: guilds, logger: logger}
}

// Register installs the handlers on s. It returns a function that removes
// them.
func (g *Gateway) Register(s *discordgo.Session) func() {
	removers := []func(){
		s.AddHandler(g.onReady),
		s.AddHandler(g.onInviteCreate),
		s.AddHandler(g.onInviteDelete),
		s.AddHandler(g.onMemberAdd),
		s.AddHandler(g.onMemberUpdate),
		s.AddHandler(g.onMemberRemove),
	}
	return func() {
		for _, r := range removers {
			r()
		}
	}
}

func (g *Gateway) wants(guildID string) bool {
	return len(g.guilds) == 0 || slices.Contains(g.guilds, guildID)
}

func (g *Gateway) submit(ev events.Event) {
	if !g.loop.Submit(ev) {
		g.logger.Warn("event dropped; loop closed", "kind", ev.Kind, "guild", ev.GuildID)
	}
}

func (g *Gateway) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	var ids []string
	for _, guild := range r.Guilds {
		if g.wants(guild.ID) {
			ids = append(ids, guild.ID)
		}
	}
	if r.User != nil {
		g.logger.Info("gateway ready", "user", r.User.Username, "guilds", len(ids))
	}
	g.submit(events.Event{Kind: events.KindReady, Guilds: ids})
	if g.OnReady != nil {
		g.OnReady(ids)
	}
}

func (g *Gateway) onInviteCreate(_ *discordgo.Session, e *discordgo.InviteCreate) {
	if e.Invite == nil || !g.wants(e.GuildID) {
		return
	}
	g.submit(events.Event{Kind: events.KindInviteCreated, GuildID: e.GuildID, Code: e.Code, Uses: e.Uses})
}

func (g *Gateway) onInviteDelete(_ *discordgo.Session, e *discordgo.InviteDelete) {
	if !g.wants(e.GuildID) {
		return
	}
	g.submit(events.Event{Kind: events.KindInviteDeleted, GuildID: e.GuildID, Code: e.Code})
}

func (g *Gateway) onMemberAdd(_ *discordgo.Session, e *discordgo.GuildMemberAdd) {
	if e.Member == nil || e.User == nil || !g.wants(e.GuildID) {
		return
	}
	g.submit(events.Event{Kind: events.KindMemberJoined, GuildID: e.GuildID, Member: toMember(e.Member)})
}

func (g *Gateway) onMemberUpdate(_ *discordgo.Session, e *discordgo.GuildMemberUpdate) {
	if e.Member == nil || e.User == nil || !g.wants(e.GuildID) {
		return
	}
	ev := events.Event{
		Kind:       events.KindMemberUpdated,
		GuildID:    e.GuildID,
		UserID:     e.User.ID,
		RolesAfter: e.Roles,
	}
	if e.BeforeUpdate != nil {
		ev.RolesBefore = e.BeforeUpdate.Roles
		if ev.RolesBefore == nil {
			ev.RolesBefore = []string{}
		}
	}
	g.submit(ev)
}

func (g *Gateway) onMemberRemove(_ *discordgo.Session, e *discordgo.GuildMemberRemove) {
	if e.Member == nil || e.User == nil || !g.wants(e.GuildID) {
		return
	}
	g.submit(events.Event{Kind: events.KindMemberLeft, GuildID: e.GuildID, UserID: e.User.ID})
}
