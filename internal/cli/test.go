package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/reactest/internal/harness"
	"github.com/roach88/reactest/internal/store"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update   bool   // regenerate golden files
	Filter   string // substring of scenario file names
	Parallel int    // scenarios run concurrently
	Database string // record runs in this SQLite database
}

// Golden file outcomes.
const (
	GoldenNone     = "none"
	GoldenMatch    = "match"
	GoldenMismatch = "mismatch"
	GoldenUpdated  = "updated"
)

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	File   string   `json:"file"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
	Digest string   `json:"digest,omitempty"`
	Golden string   `json:"golden,omitempty"`

	// Set when runs are recorded (--db).
	RunID          string `json:"run_id,omitempty"`
	Drift          bool   `json:"drift,omitempty"`
	PreviousDigest string `json:"previous_digest,omitempty"`

	scenario  *harness.Scenario
	result    *harness.Result
	startedAt time.Time
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Drifted   int              `json:"drifted"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run scenarios",
		Long: `Run every YAML scenario under a directory, each against its own fresh
session. Step expectations and assertions decide pass or fail; when a
golden file exists next to the scenario (golden/<file>.golden) the trace
must also match it byte for byte.

With --db every run is recorded, and a trace digest that differs from
the scenario's previous run is reported as drift.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, database errors)

Examples:
  reactest test ./scenarios
  reactest test ./scenarios --filter calc --parallel 4
  reactest test ./scenarios --update
  reactest test ./scenarios --db runs.db --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only run scenario files whose name contains this")
	cmd.Flags().IntVarP(&opts.Parallel, "parallel", "p", 1, "number of scenarios to run concurrently")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record runs in this SQLite database")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	files, err := harness.FindScenarios(scenariosDir, opts.Filter)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, "failed to find scenarios", err)
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, len(files)),
		Total:     len(files),
	}

	// Scenario goroutines log through the slog handler, which serializes writes.
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var g errgroup.Group
	g.SetLimit(max(1, opts.Parallel))
	for i, file := range files {
		g.Go(func() error {
			logger.Debug("running scenario", "file", file)
			result.Scenarios[i] = runScenario(opts, file)
			return nil
		})
	}
	_ = g.Wait()

	if opts.Database != "" {
		if err := recordRuns(cmd.Context(), opts.Database, result.Scenarios); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to record runs", err)
		}
	}

	for _, sr := range result.Scenarios {
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		if sr.Drift {
			result.Drifted++
		}
	}

	if formatter.IsJSON() {
		if result.Failed == 0 {
			if err := formatter.Success(result); err != nil {
				return err
			}
		} else {
			_ = formatter.Failure(result, "E_TEST_FAILED", fmt.Sprintf("%d scenario(s) failed", result.Failed))
		}
	} else {
		outputTestText(formatter, result)
	}

	if result.Failed > 0 {
		return &ExitError{
			Code:     ExitFailure,
			Message:  fmt.Sprintf("%d scenario(s) failed", result.Failed),
			Reported: true,
		}
	}
	return nil
}

// runScenario loads, executes and golden-checks one scenario file.
func runScenario(opts *TestOptions, file string) ScenarioResult {
	sr := ScenarioResult{Name: filepath.Base(file), File: file, startedAt: time.Now()}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		return sr
	}
	sr.Name = scenario.Name
	sr.scenario = scenario

	var runOpts []harness.Option
	if opts.Logger != nil {
		runOpts = append(runOpts, harness.WithLogger(opts.Logger))
	}
	result, err := harness.Run(scenario, runOpts...)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return sr
	}
	sr.result = result
	sr.Digest = result.Digest
	sr.Pass = result.Pass
	sr.Errors = result.Errors

	golden, err := checkGolden(opts.Update, file, scenario, result)
	if err != nil {
		sr.Pass = false
		sr.Errors = append(sr.Errors, err.Error())
	}
	sr.Golden = golden
	return sr
}

// goldenFilePath returns the path to the golden file for a scenario.
func goldenFilePath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

// checkGolden compares the trace against the scenario's golden file, or
// rewrites it when update is set. A missing golden file is not an error.
func checkGolden(update bool, file string, scenario *harness.Scenario, result *harness.Result) (string, error) {
	current, err := harness.MarshalTrace(scenario.Name, result.Trace)
	if err != nil {
		return "", fmt.Errorf("failed to marshal trace: %w", err)
	}
	goldenPath := goldenFilePath(file)

	if update {
		if err := os.MkdirAll(filepath.Dir(goldenPath), 0o755); err != nil {
			return "", fmt.Errorf("failed to create golden directory: %w", err)
		}
		if err := os.WriteFile(goldenPath, current, 0o644); err != nil {
			return "", fmt.Errorf("failed to write golden file: %w", err)
		}
		return GoldenUpdated, nil
	}

	golden, err := os.ReadFile(goldenPath)
	if os.IsNotExist(err) {
		return GoldenNone, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read golden file: %w", err)
	}
	if !bytes.Equal(golden, current) {
		return GoldenMismatch, fmt.Errorf("trace does not match %s (run with --update to regenerate)", goldenPath)
	}
	return GoldenMatch, nil
}

// recordRuns writes every executed scenario to the run history, flagging
// digests that differ from the scenario's previous run.
func recordRuns(ctx context.Context, dbPath string, results []ScenarioResult) error {
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	for i := range results {
		sr := &results[i]
		if sr.result == nil {
			continue
		}

		previous, ok, err := st.LatestDigest(ctx, sr.Name)
		if err != nil {
			return err
		}
		if ok && previous != sr.Digest {
			sr.Drift = true
			sr.PreviousDigest = previous
		}

		run, err := st.WriteRun(ctx, store.Run{
			Scenario:  sr.Name,
			App:       sr.scenario.App,
			SpecPath:  sr.scenario.Spec,
			Pass:      sr.Pass,
			Digest:    sr.Digest,
			Errors:    sr.Errors,
			StartedAt: sr.startedAt,
		}, traceRows(sr.result.Trace))
		if err != nil {
			return err
		}
		sr.RunID = run.ID
	}
	return nil
}

// traceRows converts a harness trace to store rows.
func traceRows(trace []harness.TraceEvent) []store.TraceRow {
	rows := make([]store.TraceRow, len(trace))
	for i, e := range trace {
		rows[i] = store.TraceRow{
			Seq:      e.Seq,
			Step:     e.Step,
			Kind:     e.Kind,
			Node:     e.Node,
			At:       e.At,
			Value:    e.Value,
			HasValue: e.HasValue(),
			Code:     e.Code,
		}
	}
	return rows
}

// outputTestText outputs the test result as text.
func outputTestText(formatter *OutputFormatter, result TestResult) {
	w := formatter.Writer

	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}

	for _, sr := range result.Scenarios {
		switch {
		case sr.Pass && sr.Golden == GoldenUpdated:
			fmt.Fprintf(w, "✓ %s (golden updated)\n", sr.Name)
		case sr.Pass:
			fmt.Fprintf(w, "✓ %s\n", sr.Name)
		default:
			fmt.Fprintf(w, "✗ %s\n", sr.Name)
			for _, e := range sr.Errors {
				fmt.Fprintf(w, "  %s\n", strings.ReplaceAll(e, "\n", "\n  "))
			}
		}
		if sr.Drift {
			fmt.Fprintf(w, "  ! digest drift: %s → %s\n", shortDigest(sr.PreviousDigest), shortDigest(sr.Digest))
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if result.Drifted > 0 {
		fmt.Fprintf(w, "%d scenario(s) drifted from their previous run\n", result.Drifted)
	}
	if result.Failed == 0 {
		fmt.Fprintln(w, "✓ All scenarios passed")
	}
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
