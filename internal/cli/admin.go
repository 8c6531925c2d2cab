package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/referral/internal/app"
	"github.com/roach88/referral/internal/invites"
	"github.com/roach88/referral/internal/platform"
	"github.com/roach88/referral/internal/report"
)

// NewSetHoldCommand creates the set-hold command.
func NewSetHoldCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set-hold <days>",
		Short: "Change how long an invitee must keep the required role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			days, err := strconv.Atoi(args[0])
			if err != nil || days < 0 {
				return rootOpts.formatter(cmd).Fail(ExitCommandError, ErrCodeArgs,
					fmt.Sprintf("invalid days %q: must be a whole number >= 0", args[0]), err)
			}
			e, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.app.SetHold(cmd.Context(), days); err != nil {
				return e.formatter.Fail(ExitFailure, ErrCodeDatabase, "set hold", err)
			}
			return e.formatter.Success(map[string]int{"confirm_hold_days": days},
				fmt.Sprintf("Hold period set to %d days.", days))
		},
	}
}

// NewFailCommand creates the fail command.
func NewFailCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fail <invitee>",
		Short: "Fail an invitee's active referral by hand; no token is refunded",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			tr, err := e.app.FailManual(cmd.Context(), args[0])
			if err != nil {
				return e.formatter.Fail(ExitFailure, ErrCodeDatabase, "fail referral", err)
			}
			if !tr.Applied {
				return e.formatter.Fail(ExitFailure, ErrCodeNotFound,
					fmt.Sprintf("No active referral for %s.", platform.Mention(args[0])), nil)
			}
			return e.formatter.Success(tr.Referral,
				fmt.Sprintf("Referral of %s marked failed.", platform.Mention(args[0])))
		},
	}
}

// NewLinkCommand creates the link command.
func NewLinkCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "link <user>",
		Short: "Show or create a member's personal invite link",
		Long: `Return the member's active invite link, creating one in the invite
channel when none exists. Creating a link needs the link creator role (when
configured) and at least one token, and talks to Discord.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			l, err := e.app.Links.GetOrCreate(cmd.Context(), e.app.GuildID, args[0])
			switch {
			case errors.Is(err, invites.ErrNotAllowed), errors.Is(err, invites.ErrNoTokens),
				errors.Is(err, invites.ErrChannelNotConfigured):
				return e.formatter.Fail(ExitFailure, ErrCodeRefused, err.Error(), nil)
			case err != nil:
				return e.formatter.Fail(ExitFailure, ErrCodePlatform, "create link", err)
			}
			return e.formatter.Success(l, report.Link(l))
		},
	}
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <user>",
		Short: "Grant the required role to a member by hand",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			err = e.app.Validate(cmd.Context(), args[0])
			switch {
			case errors.Is(err, app.ErrRoleNotConfigured):
				return e.formatter.Fail(ExitFailure, ErrCodeConfig, err.Error(), nil)
			case errors.Is(err, platform.ErrMemberNotFound):
				return e.formatter.Fail(ExitFailure, ErrCodeNotFound,
					fmt.Sprintf("%s is not a member.", platform.Mention(args[0])), err)
			case err != nil:
				return e.formatter.Fail(ExitFailure, ErrCodePlatform, "validate member", err)
			}
			return e.formatter.Success(map[string]string{"user_id": args[0]},
				fmt.Sprintf("Validation role assigned to %s.", platform.Mention(args[0])))
		},
	}
}
