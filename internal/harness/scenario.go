package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/referral/internal/config"
	"github.com/roach88/referral/internal/events"
	"github.com/roach88/referral/internal/model"
)

// DefaultStart is the clock's start when a scenario does not set one. It
// is a Monday.
var DefaultStart = time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)

// Scenario is one referral flow with its expected outcome.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Start is the initial clock time; zero means DefaultStart.
	Start time.Time `yaml:"start,omitempty"`

	Setup      Setup       `yaml:"setup,omitempty"`
	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// Setup is the state before the first step.
type Setup struct {
	Config   map[string]string `yaml:"config,omitempty"`
	Balances map[string]int    `yaml:"balances,omitempty"`
	Invites  []SetupInvite     `yaml:"invites,omitempty"`
	Members  []SetupMember     `yaml:"members,omitempty"`
}

// SetupInvite is a live invite. With an inviter it is also a stored
// referral link.
type SetupInvite struct {
	Code    string `yaml:"code"`
	Inviter string `yaml:"inviter,omitempty"`
	Uses    int    `yaml:"uses,omitempty"`
}

// SetupMember is a member present before the first step.
type SetupMember struct {
	ID    string   `yaml:"id"`
	Roles []string `yaml:"roles,omitempty"`
}

// Step is one event or action. Exactly one of the kind fields is set.
type Step struct {
	Join          *JoinStep     `yaml:"join,omitempty"`
	RoleGranted   *RoleStep     `yaml:"role_granted,omitempty"`
	RoleRemoved   *RoleStep     `yaml:"role_removed,omitempty"`
	Leave         *UserStep     `yaml:"leave,omitempty"`
	Advance       time.Duration `yaml:"advance,omitempty"`
	Sweep         *SweepStep    `yaml:"sweep,omitempty"`
	InviteDeleted *InviteStep   `yaml:"invite_deleted,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// Step kinds.
const (
	StepJoin          = "join"
	StepRoleGranted   = "role_granted"
	StepRoleRemoved   = "role_removed"
	StepLeave         = "leave"
	StepAdvance       = "advance"
	StepSweep         = "sweep"
	StepInviteDeleted = "invite_deleted"
)

// JoinStep is a member joining, through Code when set.
type JoinStep struct {
	User string `yaml:"user"`
	Code string `yaml:"code,omitempty"`
	// AccountAgeDays sets the account creation time relative to the
	// clock. Unset means the creation time is unknown.
	AccountAgeDays *int `yaml:"account_age_days,omitempty"`
}

type RoleStep struct {
	User string `yaml:"user"`
	Role string `yaml:"role"`
}

type UserStep struct {
	User string `yaml:"user"`
}

type SweepStep struct {
	Force bool `yaml:"force,omitempty"`
}

type InviteStep struct {
	Code string `yaml:"code"`
}

// Expect checks a step's result.
type Expect struct {
	// Outcome is "counted" or a skip code (join steps).
	Outcome string `yaml:"outcome,omitempty"`
	// Applied says whether a transition happened (role and leave steps).
	Applied *bool `yaml:"applied,omitempty"`
	// Summary is a subset of the sweep counters (sweep steps).
	Summary map[string]int `yaml:"summary,omitempty"`
}

// Assertion validates the final state.
type Assertion struct {
	Type string `yaml:"type"`

	// referral
	Invitee string `yaml:"invitee,omitempty"`
	Status  string `yaml:"status,omitempty"`
	Reason  string `yaml:"reason,omitempty"`

	// balance, awards
	Member string `yaml:"member,omitempty"`
	Tokens *int   `yaml:"tokens,omitempty"`

	// awards, step_count
	Count *int `yaml:"count,omitempty"`

	// step_count
	Step    string `yaml:"step,omitempty"`
	Outcome string `yaml:"outcome,omitempty"`

	// summary
	Summary map[string]int `yaml:"summary,omitempty"`

	// message: exactly one of DM and Channel
	DM       string `yaml:"dm,omitempty"`
	Channel  string `yaml:"channel,omitempty"`
	Contains string `yaml:"contains,omitempty"`
}

// Assertion type constants.
const (
	AssertReferral  = "referral"
	AssertBalance   = "balance"
	AssertAwards    = "awards"
	AssertSummary   = "summary"
	AssertMessage   = "message"
	AssertStepCount = "step_count"
)

// StatusNone asserts that an invitee has no referral.
const StatusNone = "none"

// summaryKeys are the sweep counters a summary may name.
var summaryKeys = map[string]bool{
	"total": true, "expired": true, "confirmed": true, "failed": true,
	"refunded": true, "held": true, "waiting": true, "skipped": true,
}

// Kind returns the step's kind, or "" when none or several are set.
func (s Step) Kind() string {
	var kinds []string
	if s.Join != nil {
		kinds = append(kinds, StepJoin)
	}
	if s.RoleGranted != nil {
		kinds = append(kinds, StepRoleGranted)
	}
	if s.RoleRemoved != nil {
		kinds = append(kinds, StepRoleRemoved)
	}
	if s.Leave != nil {
		kinds = append(kinds, StepLeave)
	}
	if s.Advance != 0 {
		kinds = append(kinds, StepAdvance)
	}
	if s.Sweep != nil {
		kinds = append(kinds, StepSweep)
	}
	if s.InviteDeleted != nil {
		kinds = append(kinds, StepInviteDeleted)
	}
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

// LoadScenario reads and parses a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML. Unknown fields are rejected so
// typos such as "assertion:" fail loudly.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.Description == "" {
		return errors.New("description is required")
	}
	if len(s.Steps) == 0 {
		return errors.New("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return errors.New("assertions list is required and must be non-empty")
	}

	for key := range s.Setup.Config {
		if !config.Known(key) {
			return fmt.Errorf("setup.config: unknown key %q", key)
		}
	}
	for i, inv := range s.Setup.Invites {
		if inv.Code == "" {
			return fmt.Errorf("setup.invites[%d]: code is required", i)
		}
	}
	for i, m := range s.Setup.Members {
		if m.ID == "" {
			return fmt.Errorf("setup.members[%d]: id is required", i)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(i int, step Step) error {
	kind := step.Kind()
	if kind == "" {
		return fmt.Errorf("steps[%d]: exactly one of join, role_granted, role_removed, leave, advance, sweep, invite_deleted is required", i)
	}

	switch kind {
	case StepJoin:
		if step.Join.User == "" {
			return fmt.Errorf("steps[%d].join: user is required", i)
		}
	case StepRoleGranted, StepRoleRemoved:
		r := step.RoleGranted
		if r == nil {
			r = step.RoleRemoved
		}
		if r.User == "" || r.Role == "" {
			return fmt.Errorf("steps[%d].%s: user and role are required", i, kind)
		}
	case StepLeave:
		if step.Leave.User == "" {
			return fmt.Errorf("steps[%d].leave: user is required", i)
		}
	case StepAdvance:
		if step.Advance < 0 {
			return fmt.Errorf("steps[%d].advance: must be positive", i)
		}
	case StepInviteDeleted:
		if step.InviteDeleted.Code == "" {
			return fmt.Errorf("steps[%d].invite_deleted: code is required", i)
		}
	}

	if e := step.Expect; e != nil {
		if e.Outcome != "" && kind != StepJoin {
			return fmt.Errorf("steps[%d].expect: outcome only applies to join", i)
		}
		if e.Outcome != "" && !validOutcome(e.Outcome) {
			return fmt.Errorf("steps[%d].expect: unknown outcome %q", i, e.Outcome)
		}
		if e.Applied != nil && kind != StepRoleGranted && kind != StepRoleRemoved && kind != StepLeave {
			return fmt.Errorf("steps[%d].expect: applied only applies to role and leave steps", i)
		}
		if len(e.Summary) > 0 && kind != StepSweep {
			return fmt.Errorf("steps[%d].expect: summary only applies to sweep", i)
		}
		if err := validateSummary(e.Summary); err != nil {
			return fmt.Errorf("steps[%d].expect: %w", i, err)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertReferral:
		if a.Invitee == "" || a.Status == "" {
			return fmt.Errorf("assertions[%d]: invitee and status are required for referral", index)
		}
		if a.Status != StatusNone && !model.Status(a.Status).Valid() {
			return fmt.Errorf("assertions[%d]: unknown status %q", index, a.Status)
		}
		if a.Reason != "" && !model.FailureReason(a.Reason).Valid() {
			return fmt.Errorf("assertions[%d]: unknown reason %q", index, a.Reason)
		}
	case AssertBalance:
		if a.Member == "" || a.Tokens == nil {
			return fmt.Errorf("assertions[%d]: member and tokens are required for balance", index)
		}
	case AssertAwards:
		if a.Member == "" || a.Count == nil {
			return fmt.Errorf("assertions[%d]: member and count are required for awards", index)
		}
	case AssertSummary:
		if len(a.Summary) == 0 {
			return fmt.Errorf("assertions[%d]: summary is required for summary", index)
		}
		if err := validateSummary(a.Summary); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertMessage:
		if (a.DM == "") == (a.Channel == "") {
			return fmt.Errorf("assertions[%d]: exactly one of dm and channel is required for message", index)
		}
		if a.Contains == "" {
			return fmt.Errorf("assertions[%d]: contains is required for message", index)
		}
	case AssertStepCount:
		if a.Step == "" || a.Count == nil {
			return fmt.Errorf("assertions[%d]: step and count are required for step_count", index)
		}
		if *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for step_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func validateSummary(summary map[string]int) error {
	for k := range summary {
		if !summaryKeys[k] {
			return fmt.Errorf("unknown summary counter %q", k)
		}
	}
	return nil
}

func validOutcome(s string) bool {
	switch events.SkipCode(s) {
	case events.SkipAttributionFailed, events.SkipNotTracked, events.SkipAccountTooNew,
		events.SkipQuotaExhausted, events.SkipAlreadyActive:
		return true
	}
	return s == outcomeCounted
}
