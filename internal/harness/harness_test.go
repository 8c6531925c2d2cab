package harness

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(n int) *int { return &n }

func boolp(b bool) *bool { return &b }

func TestRun_Scenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario(path)
			require.NoError(t, err)
			require.Equal(t, name, s.Name, "scenario name must match its file")

			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
			assert.Len(t, result.Trace, len(s.Steps))
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/force_sweep.yaml")
	require.NoError(t, err)

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	a, err := MarshalSnapshot(TraceSnapshot{Scenario: s.Name, Trace: first.Trace})
	require.NoError(t, err)
	b, err := MarshalSnapshot(TraceSnapshot{Scenario: s.Name, Trace: second.Trace})
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_FailedExpectation(t *testing.T) {
	s := &Scenario{
		Name:        "wrong_outcome",
		Description: "Join through an unknown code",
		Setup: Setup{
			Invites: []SetupInvite{{Code: "pub"}},
		},
		Steps: []Step{
			{Join: &JoinStep{User: "bob", Code: "pub"}, Expect: &Expect{Outcome: "counted"}},
		},
		Assertions: []Assertion{
			{Type: AssertReferral, Invitee: "bob", Status: StatusNone},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "step 1 (join): expected outcome counted, got NOT_TRACKED")
}

func TestRun_FailedAssertion(t *testing.T) {
	s := &Scenario{
		Name:        "wrong_balance",
		Description: "A counted join consumes a token",
		Setup: Setup{
			Balances: map[string]int{"alice": 3},
			Invites:  []SetupInvite{{Code: "abc", Inviter: "alice"}},
		},
		Steps: []Step{
			{Join: &JoinStep{User: "bob", Code: "abc"}},
		},
		Assertions: []Assertion{
			{Type: AssertBalance, Member: "alice", Tokens: intp(3)},
			{Type: AssertReferral, Invitee: "bob", Status: "pending"},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, []string{"assertion 0 (balance): alice has 2 tokens, expected 3"}, result.Errors)
}

func TestRun_CustomStart(t *testing.T) {
	start := time.Date(2024, 12, 30, 8, 0, 0, 0, time.UTC)
	s := &Scenario{
		Name:        "custom_start",
		Description: "Clock starts at the scenario's time",
		Start:       start,
		Steps: []Step{
			{Advance: 90 * time.Minute},
		},
		Assertions: []Assertion{
			{Type: AssertStepCount, Step: StepAdvance, Count: intp(1)},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 1)
	assert.Equal(t, "2024-12-30T09:30:00Z", result.Trace[0].At)
	assert.Equal(t, "1h30m0s", result.Trace[0].Result["by"])
}

func TestRun_RoleWithoutReferral(t *testing.T) {
	s := &Scenario{
		Name:        "role_without_referral",
		Description: "A role change on a member without a referral does nothing",
		Setup: Setup{
			Config:  map[string]string{"required_role_id": "member"},
			Members: []SetupMember{{ID: "zoe"}},
		},
		Steps: []Step{
			{RoleGranted: &RoleStep{User: "zoe", Role: "member"}, Expect: &Expect{Applied: boolp(false)}},
			{Leave: &UserStep{User: "zoe"}, Expect: &Expect{Applied: boolp(false)}},
		},
		Assertions: []Assertion{
			{Type: AssertReferral, Invitee: "zoe", Status: StatusNone},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Trace[0].Messages)
}

func TestRun_RoleStepForUnknownMember(t *testing.T) {
	s := &Scenario{
		Name:        "ghost",
		Description: "Role step for someone who never joined",
		Steps: []Step{
			{RoleGranted: &RoleStep{User: "ghost", Role: "member"}},
		},
		Assertions: []Assertion{
			{Type: AssertReferral, Invitee: "ghost", Status: StatusNone},
		},
	}

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 1 (role_granted)")
}
