package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/adjudicator/internal/harness"
)

// TestSummary holds aggregate scenario results.
type TestSummary struct {
	Scenarios int      `json:"scenarios"`
	Passed    int      `json:"passed"`
	Failed    int      `json:"failed"`
	Reports   []string `json:"reports,omitempty"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test <scenario-dir>",
		Short: "Run plan-resolution scenarios",
		Long: `Run every YAML scenario in a directory against its manifest.

Each scenario names a manifest and a list of queries with expected
outcomes. Exits 1 when any check fails.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runTest(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	scenarios, err := harness.LoadDir(dir)
	if err != nil {
		_ = formatter.Error(err.Error(), nil)
		return WrapExitError(ExitCommandError, "scenario loading failed", err)
	}
	if len(scenarios) == 0 {
		_ = formatter.Error(fmt.Sprintf("no scenarios found in %s", dir), nil)
		return NewExitError(ExitCommandError, "no scenarios found")
	}

	summary := TestSummary{Scenarios: len(scenarios)}
	for _, s := range scenarios {
		formatter.VerboseLog("running scenario %q (%d queries)", s.Name, len(s.Queries))
		result, err := harness.Run(s)
		if err != nil {
			_ = formatter.Error(fmt.Sprintf("scenario %q: %v", s.Name, err), nil)
			return WrapExitError(ExitCommandError, "scenario execution failed", err)
		}
		if result.Passed() {
			summary.Passed++
		} else {
			summary.Failed++
		}
		summary.Reports = append(summary.Reports, harness.Render(result))
	}

	if formatter.Format == "json" {
		if summary.Failed > 0 {
			_ = formatter.writeJSON(CLIResponse{
				Status: "error",
				Data:   summary,
				Error:  &CLIError{Message: fmt.Sprintf("%d scenario(s) failed", summary.Failed)},
			})
			return NewExitError(ExitFailure, "scenario failures")
		}
		return formatter.Success(summary)
	}

	for _, report := range summary.Reports {
		fmt.Fprint(formatter.Writer, report)
	}
	fmt.Fprintf(formatter.Writer, "\n%d scenario(s): %d passed, %d failed\n",
		summary.Scenarios, summary.Passed, summary.Failed)
	if summary.Failed > 0 {
		return NewExitError(ExitFailure, "scenario failures")
	}
	return nil
}
