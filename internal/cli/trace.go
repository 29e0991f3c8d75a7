package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/reactest/internal/ir"
	"github.com/roach88/reactest/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Node     string // optional - filter to one node's events
	Kind     string // optional - filter to one event kind
}

// TraceResult holds a recorded run and its trace.
type TraceResult struct {
	Run   store.Run        `json:"run"`
	Trace []store.TraceRow `json:"trace"`
	Stats TraceStats       `json:"stats"`
}

// TraceStats counts a trace's events by kind.
type TraceStats struct {
	TotalEvents int `json:"total_events"`
	Recomputes  int `json:"recomputes"`
	Fires       int `json:"fires"`
	Errors      int `json:"errors"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <run-id>",
		Short: "Show a recorded run's trace",
		Long: `Show the trace of a run recorded by "reactest test --db".

The output includes the run summary, the event timeline (one line per
event with its virtual time) and event counts.

Examples:
  reactest trace 0192f5c4-... --db runs.db
  reactest trace 0192f5c4-... --db runs.db --node xyz
  reactest trace 0192f5c4-... --db runs.db --kind recompute --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Node, "node", "", "only show events for this node")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "only show events of this kind")

	return cmd
}

func runTrace(opts *TraceOptions, runID string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if opts.Database == "" {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "--db is required", nil)
	}

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	run, err := st.ReadRun(ctx, runID)
	if errors.Is(err, sql.ErrNoRows) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("run %s not found", runID), nil)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to read run", err)
	}

	rows, err := st.ReadTrace(ctx, runID)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to read trace", err)
	}

	result := TraceResult{Run: run, Trace: filterTrace(rows, opts.Node, opts.Kind)}
	result.Stats = traceStats(result.Trace)

	if formatter.IsJSON() {
		return formatter.Success(result)
	}
	return outputTraceText(formatter, result)
}

// filterTrace keeps the rows matching node and kind; empty filters match all.
func filterTrace(rows []store.TraceRow, node, kind string) []store.TraceRow {
	filtered := []store.TraceRow{}
	for _, row := range rows {
		if node != "" && row.Node != node {
			continue
		}
		if kind != "" && row.Kind != kind {
			continue
		}
		filtered = append(filtered, row)
	}
	return filtered
}

func traceStats(rows []store.TraceRow) TraceStats {
	stats := TraceStats{TotalEvents: len(rows)}
	for _, row := range rows {
		switch row.Kind {
		case "recompute":
			stats.Recomputes++
		case "fire":
			stats.Fires++
		case "error":
			stats.Errors++
		}
	}
	return stats
}

// outputTraceText outputs the trace result as text.
func outputTraceText(formatter *OutputFormatter, result TraceResult) error {
	w := formatter.Writer
	run := result.Run

	fmt.Fprintf(w, "Run: %s\n", run.ID)
	fmt.Fprintf(w, "Scenario: %s\n", run.Scenario)
	if run.App != "" {
		fmt.Fprintf(w, "App: %s\n", run.App)
	}
	fmt.Fprintf(w, "Status: %s\n", passStatus(run.Pass))
	if formatter.Verbose {
		fmt.Fprintf(w, "Digest: %s\n", run.Digest)
		fmt.Fprintf(w, "Started: %s\n", run.StartedAt.Format("2006-01-02 15:04:05"))
	}
	for _, e := range run.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Trace) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, row := range result.Trace {
		formatTraceRow(w, row)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events: %d\n", result.Stats.TotalEvents)
	fmt.Fprintf(w, "  Recomputes:   %d\n", result.Stats.Recomputes)
	fmt.Fprintf(w, "  Fires:        %d\n", result.Stats.Fires)
	fmt.Fprintf(w, "  Errors:       %d\n", result.Stats.Errors)
	return nil
}

// formatTraceRow prints one event: [seq] @at kind node = value.
func formatTraceRow(w io.Writer, row store.TraceRow) {
	fmt.Fprintf(w, "  [%d] @%s %s", row.Seq, row.At, row.Kind)
	if row.Node != "" {
		fmt.Fprintf(w, " %s", row.Node)
	}
	if row.HasValue {
		fmt.Fprintf(w, " = %s", formatValue(row.Value))
	}
	if row.Code != "" {
		fmt.Fprintf(w, " (%s)", row.Code)
	}
	fmt.Fprintln(w)
}

// formatValue renders a value as canonical JSON so maps print in key order.
func formatValue(v any) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func passStatus(pass bool) string {
	if pass {
		return "PASS"
	}
	return "FAIL"
}
