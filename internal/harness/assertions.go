package harness

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/referral/internal/app"
	"github.com/roach88/referral/internal/store"
	"github.com/roach88/referral/internal/testutil"
)

// AssertionError describes a failed assertion.
type AssertionError struct {
	Index   int
	Type    string
	Message string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion %d (%s): %s", e.Index, e.Type, e.Message)
}

// AssertionContext is the state assertions inspect.
type AssertionContext struct {
	Ctx      context.Context
	App      *app.App
	Platform *testutil.FakePlatform
}

// EvaluateAssertions checks every assertion and returns the failures.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a, actx); err != nil {
			errs = append(errs, (&AssertionError{Index: i, Type: a.Type, Message: err.Error()}).Error())
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertReferral:
		return assertReferral(actx, a)
	case AssertBalance:
		return assertBalance(actx, a)
	case AssertAwards:
		return assertAwards(actx, a)
	case AssertSummary:
		return assertSummary(result, a)
	case AssertMessage:
		return assertMessage(actx, a)
	case AssertStepCount:
		return assertStepCount(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertReferral(actx *AssertionContext, a Assertion) error {
	ref, err := actx.App.Store.LatestByInvitee(actx.Ctx, a.Invitee)
	if errors.Is(err, store.ErrNotFound) {
		if a.Status == StatusNone {
			return nil
		}
		return fmt.Errorf("no referral for %s, expected %s", a.Invitee, a.Status)
	}
	if err != nil {
		return err
	}
	if a.Status == StatusNone {
		return fmt.Errorf("expected no referral for %s, got %s", a.Invitee, ref.Status)
	}
	if string(ref.Status) != a.Status {
		return fmt.Errorf("referral of %s is %s, expected %s", a.Invitee, ref.Status, a.Status)
	}
	if a.Reason != "" && string(ref.FailureReason) != a.Reason {
		return fmt.Errorf("referral of %s failed with %q, expected %q", a.Invitee, ref.FailureReason, a.Reason)
	}
	return nil
}

func assertBalance(actx *AssertionContext, a Assertion) error {
	got, err := actx.App.Ledger.Balance(actx.Ctx, a.Member)
	if err != nil {
		return err
	}
	if got != *a.Tokens {
		return fmt.Errorf("%s has %d tokens, expected %d", a.Member, got, *a.Tokens)
	}
	return nil
}

func assertAwards(actx *AssertionContext, a Assertion) error {
	awards, err := actx.App.Store.Rewards(actx.Ctx, a.Member)
	if err != nil {
		return err
	}
	if len(awards) != *a.Count {
		return fmt.Errorf("%s has %d awards, expected %d", a.Member, len(awards), *a.Count)
	}
	return nil
}

func assertSummary(result *Result, a Assertion) error {
	ev, ok := result.lastOf(StepSweep)
	if !ok {
		return errors.New("no sweep ran")
	}
	for _, k := range sortedKeys(a.Summary) {
		if got := ev.Result[k]; got != a.Summary[k] {
			return fmt.Errorf("last sweep %s=%v, expected %d", k, got, a.Summary[k])
		}
	}
	return nil
}

func assertMessage(actx *AssertionContext, a Assertion) error {
	var texts []string
	target := a.DM
	if a.DM != "" {
		texts = actx.Platform.DMs(a.DM)
	} else {
		target = "#" + a.Channel
		texts = actx.Platform.Posts(a.Channel)
	}
	for _, text := range texts {
		if strings.Contains(text, a.Contains) {
			return nil
		}
	}
	return fmt.Errorf("no message to %s contains %q (got %d messages)", target, a.Contains, len(texts))
}

func assertStepCount(result *Result, a Assertion) error {
	count := 0
	for _, ev := range result.Trace {
		if ev.Step != a.Step {
			continue
		}
		if a.Outcome != "" && ev.Result["outcome"] != a.Outcome {
			continue
		}
		count++
	}
	if count != *a.Count {
		return fmt.Errorf("expected %d %s steps, got %d", *a.Count, a.Step, count)
	}
	return nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
