package testutil

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/referral/internal/model"
	"github.com/roach88/referral/internal/platform"
)

// Message is one delivered notification.
type Message struct {
	Kind   string `json:"kind"` // "dm" or "channel"
	Target string `json:"target"`
	Text   string `json:"text"`
}

// RoleEdit is one role change requested through the RoleEditor.
type RoleEdit struct {
	Op     string `json:"op"` // "add" or "remove"
	UserID string `json:"user_id"`
	RoleID string `json:"role_id"`
}

// BoardPost is one PublishBoard call.
type BoardPost struct {
	ChannelID string
	MessageID string // id passed in; empty for a new message
	PostedID  string // id returned
	Board     platform.Board
}

// FakePlatform is an in-memory platform.Platform for a single guild.
//
// Thread-safety: all methods are safe for concurrent use.
type FakePlatform struct {
	mu sync.Mutex

	guildID    string
	members    map[string]*platform.Member
	memberErrs map[string]error
	invites    []model.InviteUse
	invitesErr error
	dmErr      error

	messages []Message
	roles    []RoleEdit
	boards   []BoardPost
	codes    int
	msgIDs   int
}

var _ platform.Platform = (*FakePlatform)(nil)

// NewFakePlatform creates an empty fake for guildID.
func NewFakePlatform(guildID string) *FakePlatform {
	return &FakePlatform{
		guildID:    guildID,
		members:    make(map[string]*platform.Member),
		memberErrs: make(map[string]error),
	}
}

// GuildID returns the guild the fake serves.
func (f *FakePlatform) GuildID() string { return f.guildID }

// AddMember adds or replaces a member.
func (f *FakePlatform) AddMember(m platform.Member) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m.Roles = slices.Clone(m.Roles)
	f.members[m.ID] = &m
}

// RemoveMember removes a member, so lookups return ErrMemberNotFound.
func (f *FakePlatform) RemoveMember(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.members, userID)
}

// SetMemberError makes lookups of userID fail with err. A nil err clears it.
func (f *FakePlatform) SetMemberError(userID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.memberErrs, userID)
		return
	}
	f.memberErrs[userID] = err
}

// GrantRole gives a member a role directly, as a moderator would.
func (f *FakePlatform) GrantRole(userID, roleID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.members[userID]; ok && !slices.Contains(m.Roles, roleID) {
		m.Roles = append(m.Roles, roleID)
	}
}

// RevokeRole takes a role away directly.
func (f *FakePlatform) RevokeRole(userID, roleID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.members[userID]; ok {
		m.Roles = slices.DeleteFunc(m.Roles, func(r string) bool { return r == roleID })
	}
}

// SetInvites replaces the live invite list. Order is preserved.
func (f *FakePlatform) SetInvites(uses ...model.InviteUse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invites = slices.Clone(uses)
}

// UseInvite increments an invite's use count, as a join through it would.
func (f *FakePlatform) UseInvite(code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.invites {
		if f.invites[i].Code == code {
			f.invites[i].Uses++
			return
		}
	}
}

// DeleteInvite removes an invite from the live list.
func (f *FakePlatform) DeleteInvite(code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invites = slices.DeleteFunc(f.invites, func(u model.InviteUse) bool { return u.Code == code })
}

// SetInvitesError makes Invites fail. A nil err clears it.
func (f *FakePlatform) SetInvitesError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invitesErr = err
}

// SetDMError makes every DirectMessage fail. A nil err clears it.
func (f *FakePlatform) SetDMError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dmErr = err
}

// Messages returns every delivered notification in order.
func (f *FakePlatform) Messages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.messages)
}

// DMs returns the texts sent to userID.
func (f *FakePlatform) DMs(userID string) []string {
	return f.filter("dm", userID)
}

// Posts returns the texts sent to channelID.
func (f *FakePlatform) Posts(channelID string) []string {
	return f.filter("channel", channelID)
}

func (f *FakePlatform) filter(kind, target string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.messages {
		if m.Kind == kind && m.Target == target {
			out = append(out, m.Text)
		}
	}
	return out
}

// RoleEdits returns every role change requested in order.
func (f *FakePlatform) RoleEdits() []RoleEdit {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.roles)
}

// Boards returns every PublishBoard call in order.
func (f *FakePlatform) Boards() []BoardPost {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.boards)
}

// HasRole reports whether the member currently holds roleID.
func (f *FakePlatform) HasRole(userID, roleID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[userID]
	return ok && slices.Contains(m.Roles, roleID)
}

func (f *FakePlatform) Member(ctx context.Context, guildID, userID string) (platform.Member, error) {
	if err := ctx.Err(); err != nil {
		return platform.Member{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.memberErrs[userID]; ok {
		return platform.Member{}, err
	}
	m, ok := f.members[userID]
	if !ok || guildID != f.guildID {
		return platform.Member{}, platform.ErrMemberNotFound
	}
	out := *m
	out.Roles = slices.Clone(m.Roles)
	return out, nil
}

func (f *FakePlatform) Invites(ctx context.Context, guildID string) ([]model.InviteUse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.invitesErr != nil {
		return nil, f.invitesErr
	}
	if guildID != f.guildID {
		return nil, nil
	}
	return slices.Clone(f.invites), nil
}

func (f *FakePlatform) CreateInvite(ctx context.Context, channelID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes++
	code := fmt.Sprintf("code%d", f.codes)
	f.invites = append(f.invites, model.InviteUse{Code: code, ChannelID: channelID})
	return code, nil
}

func (f *FakePlatform) AddRole(ctx context.Context, guildID, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles = append(f.roles, RoleEdit{Op: "add", UserID: userID, RoleID: roleID})
	m, ok := f.members[userID]
	if !ok {
		return platform.ErrMemberNotFound
	}
	if !slices.Contains(m.Roles, roleID) {
		m.Roles = append(m.Roles, roleID)
	}
	return nil
}

func (f *FakePlatform) RemoveRole(ctx context.Context, guildID, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles = append(f.roles, RoleEdit{Op: "remove", UserID: userID, RoleID: roleID})
	m, ok := f.members[userID]
	if !ok {
		return platform.ErrMemberNotFound
	}
	m.Roles = slices.DeleteFunc(m.Roles, func(r string) bool { return r == roleID })
	return nil
}

func (f *FakePlatform) DirectMessage(ctx context.Context, userID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dmErr != nil {
		return f.dmErr
	}
	f.messages = append(f.messages, Message{Kind: "dm", Target: userID, Text: text})
	return nil
}

func (f *FakePlatform) ChannelMessage(ctx context.Context, channelID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, Message{Kind: "channel", Target: channelID, Text: text})
	return nil
}

func (f *FakePlatform) PublishBoard(ctx context.Context, channelID, messageID string, board platform.Board) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	posted := messageID
	if posted == "" {
		f.msgIDs++
		posted = fmt.Sprintf("msg%d", f.msgIDs)
	}
	f.boards = append(f.boards, BoardPost{ChannelID: channelID, MessageID: messageID, PostedID: posted, Board: board})
	return posted, nil
}
