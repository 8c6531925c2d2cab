package config

// Tunable keys.
const (
	KeyWeeklyQuota       = "weekly_quota"
	KeyPendingTTLDays    = "pending_ttl_days"
	KeyConfirmHoldDays   = "confirm_hold_days"
	KeyMinAccountAgeDays = "min_account_age_days"
	KeyRewardTier1       = "reward_tier1"
	KeyRewardTier2       = "reward_tier2"
	KeyTimezone          = "timezone"

	KeyRequiredRoleID    = "required_role_id"
	KeyEntryRoleID       = "entry_role_id"
	KeyInvitedRoleID     = "invited_role_id"
	KeyStaffRoleID       = "staff_role_id"
	KeyLinkCreatorRoleID = "link_creator_role_id"
	KeyRemoveOnValidate  = "remove_on_validate_role_id"

	KeyInviteChannelID      = "invite_channel_id"
	KeyLogChannelID         = "log_channel_id"
	KeyRewardChannelID      = "reward_channel_id"
	KeyLeaderboardChannelID = "leaderboard_channel_id"
	KeyLeaderboardMessageID = "leaderboard_message_id"
)

// Defaults are the static fallbacks. Ids default to empty, which every
// consumer treats as "not configured".
var Defaults = map[string]string{
	KeyWeeklyQuota:       "5",
	KeyPendingTTLDays:    "7",
	KeyConfirmHoldDays:   "7",
	KeyMinAccountAgeDays: "30",
	KeyRewardTier1:       "5",
	KeyRewardTier2:       "15",
	KeyTimezone:          "Europe/Rome",

	KeyRequiredRoleID:    "",
	KeyEntryRoleID:       "",
	KeyInvitedRoleID:     "",
	KeyStaffRoleID:       "",
	KeyLinkCreatorRoleID: "",
	KeyRemoveOnValidate:  "",

	KeyInviteChannelID:      "",
	KeyLogChannelID:         "",
	KeyRewardChannelID:      "",
	KeyLeaderboardChannelID: "",
	KeyLeaderboardMessageID: "",
}

// Known reports whether key is a recognised tunable.
func Known(key string) bool {
	_, ok := Defaults[key]
	return ok
}
