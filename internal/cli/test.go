package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/referral/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run referral scenarios",
		Long: `Run YAML referral scenarios against an in-memory database.

Each scenario's trace is compared with golden/<name>.golden next to the
scenarios directory when that file exists.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  referral test ./testdata/scenarios
  referral test ./testdata/scenarios --filter "join_*"
  referral test ./testdata/scenarios --update`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, dir string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return f.Fail(ExitCommandError, ErrCodeArgs, fmt.Sprintf("scenarios directory not found: %s", dir), nil)
	}

	files, err := findScenarioFiles(dir, opts.Filter)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeArgs, "failed to find scenarios", err)
	}

	result := TestResult{Scenarios: make([]ScenarioResult, 0, len(files)), Total: len(files)}
	var text strings.Builder
	for _, file := range files {
		sr := runScenario(file, opts.Update)
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
			fmt.Fprintf(&text, "✓ %s\n", sr.Name)
			continue
		}
		result.Failed++
		fmt.Fprintf(&text, "✗ %s\n", sr.Name)
		for _, e := range sr.Errors {
			fmt.Fprintf(&text, "  %s\n", e)
		}
	}
	if len(files) == 0 {
		text.WriteString("No scenarios found.")
	} else {
		fmt.Fprintf(&text, "%d passed, %d failed", result.Passed, result.Failed)
	}

	if err := f.Success(result, text.String()); err != nil {
		return err
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// findScenarioFiles finds all YAML scenario files under dir.
func findScenarioFiles(dir, filter string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			matched, err := filepath.Match(filter, strings.TrimSuffix(d.Name(), ext))
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// runScenario loads and runs one scenario, then checks or rewrites its
// golden file.
func runScenario(file string, update bool) ScenarioResult {
	s, err := harness.LoadScenario(file)
	if err != nil {
		return ScenarioResult{Name: filepath.Base(file), Errors: []string{err.Error()}}
	}

	result, err := harness.Run(s)
	if err != nil {
		return ScenarioResult{Name: s.Name, Errors: []string{fmt.Sprintf("execution failed: %v", err)}}
	}

	sr := ScenarioResult{Name: s.Name, Pass: result.Pass, Errors: result.Errors}
	data, err := harness.MarshalSnapshot(harness.TraceSnapshot{Scenario: s.Name, Trace: result.Trace})
	if err != nil {
		return ScenarioResult{Name: s.Name, Errors: []string{fmt.Sprintf("failed to marshal trace: %v", err)}}
	}

	path := goldenFilePath(file)
	if update {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return ScenarioResult{Name: s.Name, Errors: []string{err.Error()}}
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return ScenarioResult{Name: s.Name, Errors: []string{err.Error()}}
		}
		return sr
	}

	want, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return sr
	}
	if err != nil {
		return ScenarioResult{Name: s.Name, Errors: []string{err.Error()}}
	}
	if !bytes.Equal(want, data) {
		sr.Pass = false
		sr.Errors = append(sr.Errors, "trace does not match golden file (run with --update to regenerate)")
	}
	return sr
}

// goldenFilePath returns golden/<name>.golden beside the scenario's
// directory.
func goldenFilePath(file string) string {
	name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	return filepath.Join(filepath.Dir(filepath.Dir(file)), "golden", name+".golden")
}
