package app

import (
	"time"

	"github.com/roach88/referral/internal/lifecycle"
)

func pendingFor(inviter, invitee string, at time.Time) lifecycle.PendingRequest {
	return lifecycle.PendingRequest{
		InviterID:    inviter,
		InviteCode:   "code",
		InviteeID:    invitee,
		JoinedAt:     at,
		TTLDays:      7,
		ConsumeToken: true,
	}
}
