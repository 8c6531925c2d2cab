// Package harness runs referral scenarios against the real core.
//
// A scenario drives the join, role and leave handlers and the sweep
// through a fake platform and a fake clock on a fresh in-memory SQLite
// store, then checks the final state.
//
// # Scenario Format
//
//	name: confirm_after_hold
//	description: "A counted join is confirmed once the hold elapses"
//	start: 2025-03-03T12:00:00Z
//	setup:
//	  config: { required_role_id: member, log_channel_id: log }
//	  balances: { alice: 1 }
//	  invites:
//	    - { code: abc, inviter: alice, uses: 0 }
//	  members:
//	    - { id: alice }
//	steps:
//	  - join: { user: bob, code: abc, account_age_days: 400 }
//	    expect: { outcome: counted }
//	  - role_granted: { user: bob, role: member }
//	    expect: { applied: true }
//	  - advance: 168h
//	  - sweep: {}
//	    expect: { summary: { confirmed: 1 } }
//	assertions:
//	  - { type: referral, invitee: bob, status: confirmed }
//	  - { type: balance, member: alice, tokens: 0 }
//
// Setup invites with an inviter are stored as referral links; every setup
// invite is also listed live with its use count. A join with a code bumps
// that invite's live count before the join is dispatched.
//
// # Assertion Types
//
//   - referral: latest referral of an invitee has the status (and reason).
//     Status "none" means the invitee has no referral at all.
//   - balance: a member's token balance.
//   - awards: number of reward tiers recorded for a member.
//   - summary: counters of the last sweep.
//   - message: a DM to a user, or a post in a channel, contains text.
//   - step_count: number of steps of one kind, optionally with an outcome.
//
// # Determinism
//
// The clock only moves on advance steps, event and sweep ids come from
// counters, and every run uses its own database, so traces are stable
// and compared with golden files under testdata/golden.
package harness
