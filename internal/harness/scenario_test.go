package harness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_ValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yaml")
	content := `
name: test_scenario
description: "Counted join"
start: 2025-06-02T09:00:00Z
setup:
  config: { required_role_id: member }
  balances: { alice: 1 }
  invites:
    - { code: abc, inviter: alice, uses: 4 }
  members:
    - { id: alice, roles: [staff] }
steps:
  - join: { user: bob, code: abc, account_age_days: 45 }
    expect: { outcome: counted }
  - advance: 36h
  - sweep: { force: true }
    expect:
      summary: { waiting: 1 }
assertions:
  - { type: referral, invitee: bob, status: pending }
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", s.Name)
	assert.Equal(t, time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC), s.Start.UTC())
	assert.Equal(t, "member", s.Setup.Config["required_role_id"])
	assert.Equal(t, 1, s.Setup.Balances["alice"])
	assert.Equal(t, []SetupInvite{{Code: "abc", Inviter: "alice", Uses: 4}}, s.Setup.Invites)
	assert.Equal(t, []string{"staff"}, s.Setup.Members[0].Roles)

	require.Len(t, s.Steps, 3)
	assert.Equal(t, StepJoin, s.Steps[0].Kind())
	require.NotNil(t, s.Steps[0].Join.AccountAgeDays)
	assert.Equal(t, 45, *s.Steps[0].Join.AccountAgeDays)
	assert.Equal(t, "counted", s.Steps[0].Expect.Outcome)
	assert.Equal(t, StepAdvance, s.Steps[1].Kind())
	assert.Equal(t, 36*time.Hour, s.Steps[1].Advance)
	assert.Equal(t, StepSweep, s.Steps[2].Kind())
	assert.True(t, s.Steps[2].Sweep.Force)
	assert.Equal(t, map[string]int{"waiting": 1}, s.Steps[2].Expect.Summary)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_Fixtures(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			_, err := LoadScenario(path)
			assert.NoError(t, err)
		})
	}
}

func TestParseScenario_Invalid(t *testing.T) {
	const steps = "steps:\n  - sweep: {}\n"
	const asserts = "assertions:\n  - { type: step_count, step: sweep, count: 1 }\n"
	const head = "name: x\ndescription: y\n"

	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing name", "description: y\n" + steps + asserts, "name is required"},
		{"missing description", "name: x\n" + steps + asserts, "description is required"},
		{"no steps", head + asserts, "steps list is required"},
		{"no assertions", head + steps, "assertions list is required"},
		{"unknown field", head + "assertion: []\n" + steps + asserts, "field assertion not found"},
		{"unknown config key", head + "setup:\n  config: { bogus: 1 }\n" + steps + asserts, `unknown key "bogus"`},
		{"invite without code", head + "setup:\n  invites:\n    - { inviter: a }\n" + steps + asserts, "code is required"},
		{"member without id", head + "setup:\n  members:\n    - { roles: [r] }\n" + steps + asserts, "id is required"},
		{"empty step", head + "steps:\n  - {}\n" + asserts, "exactly one of"},
		{"two kinds", head + "steps:\n  - { sweep: {}, leave: { user: a } }\n" + asserts, "exactly one of"},
		{"join without user", head + "steps:\n  - join: { code: abc }\n" + asserts, "join: user is required"},
		{"role without role", head + "steps:\n  - role_granted: { user: a }\n" + asserts, "user and role are required"},
		{"leave without user", head + "steps:\n  - leave: {}\n" + asserts, "leave: user is required"},
		{"negative advance", head + "steps:\n  - advance: -1h\n" + asserts, "must be positive"},
		{"invite_deleted without code", head + "steps:\n  - invite_deleted: {}\n" + asserts, "code is required"},
		{"outcome on sweep", head + "steps:\n  - sweep: {}\n    expect: { outcome: counted }\n" + asserts, "outcome only applies to join"},
		{"unknown outcome", head + "steps:\n  - join: { user: a }\n    expect: { outcome: maybe }\n" + asserts, `unknown outcome "maybe"`},
		{"applied on join", head + "steps:\n  - join: { user: a }\n    expect: { applied: true }\n" + asserts, "applied only applies"},
		{"summary on leave", head + "steps:\n  - leave: { user: a }\n    expect: { summary: { total: 1 } }\n" + asserts, "summary only applies to sweep"},
		{"unknown counter", head + "steps:\n  - sweep: {}\n    expect: { summary: { bogus: 1 } }\n" + asserts, `unknown summary counter "bogus"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseScenario_InvalidAssertions(t *testing.T) {
	const head = "name: x\ndescription: y\nsteps:\n  - sweep: {}\nassertions:\n  - "

	tests := []struct {
		name      string
		assertion string
		want      string
	}{
		{"missing type", "{ invitee: a }", "type is required"},
		{"unknown type", "{ type: bogus }", `unknown assertion type "bogus"`},
		{"referral without status", "{ type: referral, invitee: a }", "invitee and status are required"},
		{"referral bad status", "{ type: referral, invitee: a, status: lost }", `unknown status "lost"`},
		{"referral bad reason", "{ type: referral, invitee: a, status: failed, reason: gone }", `unknown reason "gone"`},
		{"balance without tokens", "{ type: balance, member: a }", "member and tokens are required"},
		{"awards without count", "{ type: awards, member: a }", "member and count are required"},
		{"empty summary", "{ type: summary }", "summary is required"},
		{"summary bad counter", "{ type: summary, summary: { nope: 1 } }", `unknown summary counter "nope"`},
		{"message without target", "{ type: message, contains: hi }", "exactly one of dm and channel"},
		{"message with both targets", "{ type: message, dm: a, channel: c, contains: hi }", "exactly one of dm and channel"},
		{"message without text", "{ type: message, dm: a }", "contains is required"},
		{"step_count without step", "{ type: step_count, count: 1 }", "step and count are required"},
		{"step_count negative", "{ type: step_count, step: join, count: -1 }", "count must be non-negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(head + tt.assertion + "\n"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseScenario_StatusNone(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: x
description: y
steps:
  - join: { user: a }
assertions:
  - { type: referral, invitee: a, status: none }
`))
	require.NoError(t, err)
	assert.Equal(t, StatusNone, s.Assertions[0].Status)
}
