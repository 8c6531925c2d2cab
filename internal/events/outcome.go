package events

import (
	"strings"

	"github.com/roach88/referral/internal/model"
)

// SkipCode says why a join was observed but not counted.
type SkipCode string

const (
	// SkipAttributionFailed means no invite showed a new use.
	SkipAttributionFailed SkipCode = "ATTRIBUTION_FAILED"

	// SkipNotTracked means the invite used was not a referral link.
	SkipNotTracked SkipCode = "NOT_TRACKED"

	// SkipAccountTooNew means the invitee's account is younger than the
	// configured minimum.
	SkipAccountTooNew SkipCode = "ACCOUNT_TOO_NEW"

	// SkipQuotaExhausted means the inviter had no tokens left.
	SkipQuotaExhausted SkipCode = "QUOTA_EXHAUSTED"

	// SkipAlreadyActive means the invitee already has a pending or
	// holding referral.
	SkipAlreadyActive SkipCode = "ALREADY_ACTIVE"
)

// JoinOutcome is the result of handling one join.
type JoinOutcome struct {
	EventID   string `json:"event_id"`
	InviteeID string `json:"invitee_id"`
	Code      string `json:"code,omitempty"`
	InviterID string `json:"inviter_id,omitempty"`

	// Counted is true when a pending referral was created.
	Counted bool     `json:"counted"`
	Skip    SkipCode `json:"skip,omitempty"`

	Referral       model.Referral `json:"referral,omitzero"`
	TokensLeft     int            `json:"tokens_left"`
	AccountAgeDays int            `json:"account_age_days"`
}

// Label is the metrics label for the outcome.
func (o JoinOutcome) Label() string {
	if o.Counted {
		return "counted"
	}
	return strings.ToLower(string(o.Skip))
}
