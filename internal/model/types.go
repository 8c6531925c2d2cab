package model

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a referral.
type Status string

const (
	// StatusPending means the invitee joined and has not yet been validated.
	StatusPending Status = "pending"
	// StatusHolding means the invitee obtained the required role and the
	// hold period is running.
	StatusHolding Status = "holding"
	// StatusConfirmed is terminal: the referral was credited.
	StatusConfirmed Status = "confirmed"
	// StatusFailed is terminal: the referral will never be credited.
	StatusFailed Status = "failed"
)

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

// Valid reports whether s is one of the four legal statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusHolding, StatusConfirmed, StatusFailed:
		return true
	}
	return false
}

// ParseStatus parses a status name. "all" and "" are not statuses;
// callers that accept a filter handle them before calling.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("invalid status %q: must be one of pending, holding, confirmed, failed", s)
	}
	return st, nil
}

// ParseStatusFilter parses a list filter: "" and "all" mean every status
// and return the empty Status.
func ParseStatusFilter(s string) (Status, error) {
	if s == "" || s == "all" {
		return "", nil
	}
	return ParseStatus(s)
}

// FailureReason records why a referral reached StatusFailed.
type FailureReason string

const (
	ReasonExpired  FailureReason = "expired"
	ReasonRoleLost FailureReason = "role_lost"
	ReasonLeft     FailureReason = "left"
	// ReasonManual is an administrative override. It never refunds.
	ReasonManual FailureReason = "manual"
)

// Refunds reports whether failing with this reason returns the token to
// the inviter.
func (r FailureReason) Refunds() bool {
	return r != ReasonManual
}

// Valid reports whether r is a known reason.
func (r FailureReason) Valid() bool {
	switch r {
	case ReasonExpired, ReasonRoleLost, ReasonLeft, ReasonManual:
		return true
	}
	return false
}

// Referral is the central entity: one invitee attributed to one inviter.
type Referral struct {
	ID               int64         `json:"id"`
	InviterID        string        `json:"inviter_id"`
	InviteeID        string        `json:"invitee_id"`
	InviteCode       string        `json:"invite_code,omitempty"` // empty when unknown
	JoinedAt         time.Time     `json:"joined_at"`
	Status           Status        `json:"status"`
	ExpiresAt        *time.Time    `json:"expires_at,omitempty"`
	ConfirmStartedAt *time.Time    `json:"confirm_started_at,omitempty"`
	ConfirmedAt      *time.Time    `json:"confirmed_at,omitempty"`
	FailureReason    FailureReason `json:"failure_reason,omitempty"`
	Suspicious       bool          `json:"suspicious"`
}

// Invite is a personal referral link owned by one inviter.
type Invite struct {
	Code      string    `json:"code"`
	InviterID string    `json:"inviter_id"`
	ChannelID string    `json:"channel_id"`
	CreatedAt time.Time `json:"created_at"`
	Active    bool      `json:"active"`
}

// Balance is a member's token ledger entry.
type Balance struct {
	MemberID   string    `json:"member_id"`
	TokensLeft int       `json:"tokens_left"`
	ResetAt    time.Time `json:"reset_at"`
}

// RewardAward proves that a tier was granted to a user.
type RewardAward struct {
	UserID    string    `json:"user_id"`
	Tier      int       `json:"tier"`
	AwardedAt time.Time `json:"awarded_at"`
}

// InviteUse is one row of a live invite listing: a code and its cumulative
// use count as reported by the platform.
type InviteUse struct {
	Code      string `json:"code"`
	Uses      int    `json:"uses"`
	InviterID string `json:"inviter_id,omitempty"`
	ChannelID string `json:"channel_id,omitempty"`
}

// LeaderboardEntry is one ranked inviter.
type LeaderboardEntry struct {
	InviterID string `json:"inviter_id"`
	Confirmed int    `json:"confirmed"`
}

// UserStats summarizes one inviter.
type UserStats struct {
	Tokens    int `json:"tokens"`
	Pending   int `json:"pending"` // pending + holding
	Confirmed int `json:"confirmed"`
	Failed    int `json:"failed"`
}
