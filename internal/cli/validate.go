package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/adjudicator/internal/manifest"
)

// ValidationResult holds validation results for a manifest.
type ValidationResult struct {
	Valid  bool   `json:"valid"`
	Rules  int    `json:"rules"`
	Unions int    `json:"unions"`
	Error  string `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <manifest.cue>",
		Short: "Validate a rule manifest",
		Long: `Validate a CUE rule manifest without executing anything.

Checks syntax, required fields, duplicate rule IDs, and graph
acyclicity. Faster than running scenarios for development feedback.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	m, err := manifest.CompileFile(path)
	if err != nil {
		return outputValidateFailure(formatter, err)
	}

	formatter.VerboseLog("compiled %d rule(s), %d union(s) from %s", len(m.Rules), len(m.Unions), path)

	// Building the graph catches duplicate IDs and cycles.
	if _, err := m.Graph(); err != nil {
		return outputValidateFailure(formatter, err)
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Rules: len(m.Rules), Unions: len(m.Unions)})
	}
	fmt.Fprintf(formatter.Writer, "ok: %d rule(s), %d union(s)\n", len(m.Rules), len(m.Unions))
	return nil
}

func outputValidateFailure(formatter *OutputFormatter, err error) error {
	var compileErr *manifest.CompileError
	message := err.Error()
	if errors.As(err, &compileErr) {
		message = compileErr.Error()
	}
	_ = formatter.Error(message, nil)
	// Manifest problems are command-level errors, not check failures.
	return WrapExitError(ExitCommandError, "validation failed", err)
}
