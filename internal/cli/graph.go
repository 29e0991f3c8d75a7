package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/reactest/internal/compiler"
	"github.com/roach88/reactest/internal/reactive"
)

// GraphOptions holds flags for the graph command.
type GraphOptions struct {
	*RootOptions
	App string
}

// GraphReport lists one app's nodes in topological order.
type GraphReport struct {
	App   string              `json:"app"`
	Nodes []reactive.NodeInfo `json:"nodes"`
}

// NewGraphCommand creates the graph command.
func NewGraphCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GraphOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "graph <spec>",
		Short: "Show an app's nodes in evaluation order",
		Long: `Print each node of an app with its kind, height and dependencies, in
the topological order the session evaluates them. Timer and debounce
intervals are shown for nodes that have them.

Examples:
  reactest graph ./specs/calc.cue
  reactest graph ./specs --app clock --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.App, "app", "", "app to show (default: every app)")

	return cmd
}

func runGraph(opts *GraphOptions, specPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	loaded, err := LoadApps(specPath)
	if err != nil {
		return loadFailure(formatter, err)
	}

	apps := loaded.Apps
	if opts.App != "" {
		app, err := compiler.FindApp(apps, opts.App)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeNotFound, "app not found", err)
		}
		apps = []*compiler.AppSpec{app}
	}

	reports := make([]GraphReport, 0, len(apps))
	for _, app := range apps {
		nodes, err := appNodes(app, opts.Logger)
		if err != nil {
			code := string(reactive.CodeOf(err))
			if code == "" {
				code = ErrCodeCompileFailed
			}
			return formatter.Fail(ExitFailure, code, fmt.Sprintf("app %s", app.Name), err)
		}
		reports = append(reports, GraphReport{App: app.Name, Nodes: nodes})
	}

	if formatter.IsJSON() {
		return formatter.Success(reports)
	}
	return outputGraphText(formatter, reports)
}

// appNodes builds app's session just long enough to list its nodes.
func appNodes(app *compiler.AppSpec, logger *slog.Logger) ([]reactive.NodeInfo, error) {
	def, err := app.Definition()
	if err != nil {
		return nil, err
	}
	session, err := reactive.New(def, reactive.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	defer session.Close()
	return session.Nodes(), nil
}

func outputGraphText(formatter *OutputFormatter, reports []GraphReport) error {
	for i, report := range reports {
		if i > 0 {
			fmt.Fprintln(formatter.Writer)
		}
		fmt.Fprintf(formatter.Writer, "app %s\n", report.App)

		tw := formatter.Table()
		fmt.Fprintln(tw, "NODE\tKIND\tHEIGHT\tDEPS\tTIMING")
		for _, n := range report.Nodes {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", n.Name, n.KindName, n.Height, strings.Join(n.Deps, ","), timing(n))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func timing(n reactive.NodeInfo) string {
	switch {
	case n.Every > 0:
		return "every " + n.Every.String()
	case n.Debounce > 0:
		return "debounce " + n.Debounce.String()
	default:
		return "-"
	}
}
