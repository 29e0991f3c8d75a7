package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/reactest/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Limit    int
}

// HistoryResult lists recorded runs, newest first.
type HistoryResult struct {
	Scenario string      `json:"scenario,omitempty"`
	Runs     []store.Run `json:"runs"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [scenario]",
		Short: "List recorded runs",
		Long: `List runs recorded by "reactest test --db", newest first. With a
scenario name only that scenario's runs are listed.

Examples:
  reactest history --db runs.db
  reactest history calc_basic --db runs.db --limit 5`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scenario := ""
			if len(args) == 1 {
				scenario = args[0]
			}
			return runHistory(opts, scenario, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum runs to list (0 for all)")

	return cmd
}

func runHistory(opts *HistoryOptions, scenario string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if opts.Database == "" {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "--db is required", nil)
	}

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to open database", err)
	}
	defer st.Close()

	runs, err := st.ListRuns(cmd.Context(), scenario, opts.Limit)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to list runs", err)
	}

	result := HistoryResult{Scenario: scenario, Runs: runs}
	if formatter.IsJSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	tw := formatter.Table()
	fmt.Fprintln(tw, "RUN\tSCENARIO\tSTATUS\tDIGEST\tSTARTED")
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			run.ID, run.Scenario, passStatus(run.Pass), shortDigest(run.Digest),
			run.StartedAt.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

// openExistingStore opens a run database for reading. Unlike store.Open on
// its own, a missing file is an error rather than a new empty database.
func openExistingStore(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return store.Open(path)
}
