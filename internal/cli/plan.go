package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/adjudicator"
	"github.com/roach88/adjudicator/internal/manifest"
)

// PlanResult holds the outcome of a plan query.
type PlanResult struct {
	Inputs  []string   `json:"inputs"`
	Output  string     `json:"output"`
	Plan    []string   `json:"plan,omitempty"`
	Outcome string     `json:"outcome"` // "plan" | "no_match" | "ambiguous"
	Plans   [][]string `json:"plans,omitempty"`
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	var inputs []string
	var output string

	cmd := &cobra.Command{
		Use:   "plan <manifest.cue>",
		Short: "Resolve a rule plan for a query",
		Long: `Resolve the unique rule plan that produces --output from --inputs.

Reports the ordered plan on success. A query with no satisfying plan
or more than one satisfying plan exits with code 1.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(rootOpts, args[0], inputs, output, cmd)
		},
	}

	cmd.Flags().StringSliceVar(&inputs, "inputs", nil, "available input type names (comma-separated)")
	cmd.Flags().StringVar(&output, "output", "", "requested output type name")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func runPlan(opts *RootOptions, path string, inputs []string, output string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	m, err := manifest.CompileFile(path)
	if err != nil {
		_ = formatter.Error(err.Error(), nil)
		return WrapExitError(ExitCommandError, "manifest compilation failed", err)
	}

	graph, err := m.Graph()
	if err != nil {
		_ = formatter.Error(err.Error(), nil)
		return WrapExitError(ExitCommandError, "manifest graph construction failed", err)
	}

	inputTypes := make([]adjudicator.Type, 0, len(inputs))
	for _, name := range inputs {
		inputTypes = append(inputTypes, adjudicator.NamedType(name))
	}
	sig := adjudicator.NewSignature(adjudicator.NewTypeSet(inputTypes...), adjudicator.NamedType(output))
	formatter.VerboseLog("resolving %s against %d rule(s)", sig, graph.Len())

	plan, err := graph.FindPath(sig)
	result := PlanResult{Inputs: inputs, Output: output}

	switch {
	case err == nil:
		result.Outcome = "plan"
		result.Plan = plan.IDs()
		if formatter.Format == "json" {
			return formatter.Success(result)
		}
		fmt.Fprintf(formatter.Writer, "plan: %s\n", plan)
		return nil

	case adjudicator.IsAmbiguous(err):
		result.Outcome = "ambiguous"
		var ambiguous *adjudicator.MultipleMatchingRulesError
		errors.As(err, &ambiguous)
		for _, p := range ambiguous.Plans {
			result.Plans = append(result.Plans, p.IDs())
		}
		return outputPlanFailure(formatter, result, err)

	case adjudicator.IsNoMatch(err):
		result.Outcome = "no_match"
		return outputPlanFailure(formatter, result, err)

	default:
		_ = formatter.Error(err.Error(), nil)
		return WrapExitError(ExitCommandError, "plan resolution failed", err)
	}
}

func outputPlanFailure(formatter *OutputFormatter, result PlanResult, err error) error {
	if formatter.Format == "json" {
		_ = formatter.writeJSON(CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Message: err.Error()},
		})
	} else {
		fmt.Fprintf(formatter.Writer, "%s: %s\n", result.Outcome, err)
	}
	return WrapExitError(ExitFailure, result.Outcome, err)
}
