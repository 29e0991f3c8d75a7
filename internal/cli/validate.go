package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/reactest/internal/compiler"
	"github.com/roach88/reactest/internal/reactive"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool        `json:"valid"`
	Apps  []AppReport `json:"apps"`
}

// AppReport is the validation outcome of one app.
type AppReport struct {
	Name   string                     `json:"name"`
	Nodes  int                        `json:"nodes"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <spec>",
		Short: "Check apps compile and form acyclic graphs",
		Long: `Load every app from a CUE file or directory, compile its expressions
and build its graph. Reports schema problems, unknown references,
output misuse and dependency cycles.

Exit codes:
  0 - All apps valid
  1 - One or more apps invalid
  2 - Command error (spec not found, CUE does not load)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, specPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	loaded, err := LoadApps(specPath)
	if err != nil {
		return loadFailure(formatter, err)
	}
	formatter.VerboseLog("Found %d CUE file(s), %d app(s) in %s", loaded.FileCount, len(loaded.Apps), specPath)

	result := ValidationResult{Valid: true, Apps: make([]AppReport, 0, len(loaded.Apps))}
	errorCount := 0
	for _, app := range loaded.Apps {
		formatter.VerboseLog("Validating app: %s", app.Name)
		report := checkApp(app)
		if len(report.Errors) > 0 {
			result.Valid = false
			errorCount += len(report.Errors)
		}
		result.Apps = append(result.Apps, report)
	}

	if formatter.IsJSON() {
		if result.Valid {
			return formatter.Success(result)
		}
		_ = formatter.Failure(result, result.firstCode(), fmt.Sprintf("validation failed with %d error(s)", errorCount))
	} else {
		outputValidateText(formatter, result)
	}

	if !result.Valid {
		return &ExitError{
			Code:     ExitFailure,
			Message:  fmt.Sprintf("validation failed with %d error(s)", errorCount),
			Reported: true,
		}
	}
	return nil
}

// checkApp compiles app and builds a session from it, collecting every problem.
func checkApp(app *compiler.AppSpec) AppReport {
	report := AppReport{Name: app.Name, Nodes: len(app.NodeNames())}

	def, err := app.Definition()
	if err != nil {
		report.Errors = toValidationErrors(app, err)
		return report
	}

	session, err := reactive.New(def)
	if err != nil {
		report.Errors = toValidationErrors(app, err)
		return report
	}
	_ = session.Close()
	return report
}

// toValidationErrors flattens joined compiler and session errors.
func toValidationErrors(app *compiler.AppSpec, err error) []compiler.ValidationError {
	var out []compiler.ValidationError
	for _, e := range splitErrors(err) {
		var verr compiler.ValidationError
		if errors.As(e, &verr) {
			out = append(out, verr)
			continue
		}

		field := "app." + app.Name
		var rerr *reactive.Error
		if errors.As(e, &rerr) {
			if rerr.Node != "" {
				field += "." + rerr.Node
			}
			out = append(out, compiler.ValidationError{
				Field:   field,
				Message: rerr.Message,
				Code:    string(rerr.Code),
				Line:    app.Pos.Line(),
			})
			continue
		}

		var cerr *compiler.CompileError
		if errors.As(e, &cerr) {
			out = append(out, compiler.ValidationError{
				Field:   cerr.Field,
				Message: cerr.Message,
				Code:    ErrCodeCompileFailed,
				Line:    cerr.Pos.Line(),
			})
			continue
		}

		out = append(out, compiler.ValidationError{Field: field, Message: e.Error(), Code: ErrCodeGeneric})
	}
	return out
}

// splitErrors returns the members of an errors.Join result, or err itself.
func splitErrors(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}

func (r ValidationResult) firstCode() string {
	for _, app := range r.Apps {
		if len(app.Errors) > 0 {
			return app.Errors[0].Code
		}
	}
	return ErrCodeGeneric
}

func outputValidateText(formatter *OutputFormatter, result ValidationResult) {
	w := formatter.Writer
	for _, app := range result.Apps {
		if len(app.Errors) == 0 {
			fmt.Fprintf(w, "✓ %s (%d nodes)\n", app.Name, app.Nodes)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", app.Name)
		for _, e := range app.Errors {
			fmt.Fprintf(w, "  %s\n", e.Error())
		}
	}

	fmt.Fprintln(w)
	if result.Valid {
		fmt.Fprintln(w, "✓ All apps valid")
	} else {
		fmt.Fprintln(w, "✗ Validation failed")
	}
}

// loadFailure reports a spec loading error (exit code 2).
func loadFailure(formatter *OutputFormatter, err error) error {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return formatter.Fail(ExitCommandError, loadErr.Code, loadErr.Error(), nil)
	}
	return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to load specs", err)
}
