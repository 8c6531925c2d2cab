package harness

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"golang.org/x/text/unicode/norm"
)

// TraceSnapshot is what a golden file holds for one scenario.
type TraceSnapshot struct {
	Scenario string       `json:"scenario"`
	Trace    []TraceEvent `json:"trace"`
}

// MarshalSnapshot renders a snapshot as indented JSON. Map keys are
// sorted, strings are NFC-normalized and message text is not
// HTML-escaped, so golden files stay readable and stable.
func MarshalSnapshot(s TraceSnapshot) ([]byte, error) {
	s.Trace = canonicalTrace(s.Trace)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RunWithGolden runs a scenario and compares its trace with
// testdata/golden/<name>.golden. Regenerate with
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result's trace with its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(TraceSnapshot{Scenario: name, Trace: result.Trace})
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}

// canonicalTrace returns a copy of trace with every string in NFC form.
// Emoji and mentions arrive from several sources, and equal text must
// serialize to equal bytes.
func canonicalTrace(trace []TraceEvent) []TraceEvent {
	out := make([]TraceEvent, len(trace))
	for i, ev := range trace {
		ev.User = norm.NFC.String(ev.User)
		if ev.Result != nil {
			res := make(map[string]any, len(ev.Result))
			for k, v := range ev.Result {
				if str, ok := v.(string); ok {
					v = norm.NFC.String(str)
				}
				res[k] = v
			}
			ev.Result = res
		}
		if ev.Messages != nil {
			msgs := make([]string, len(ev.Messages))
			for j, m := range ev.Messages {
				msgs[j] = norm.NFC.String(m)
			}
			ev.Messages = msgs
		}
		out[i] = ev
	}
	return out
}
