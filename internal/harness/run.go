package harness

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/adjudicator"
	"github.com/roach88/adjudicator/internal/manifest"
)

// Result is the outcome of running one scenario.
type Result struct {
	Scenario string
	Checks   []Check
}

// Check records one query's outcome against its expectation.
type Check struct {
	Query string // rendered query signature
	OK    bool
	Want  string // rendered expectation
	Got   string // rendered actual outcome
}

// Passed reports whether every check succeeded.
func (r *Result) Passed() bool {
	for _, c := range r.Checks {
		if !c.OK {
			return false
		}
	}
	return true
}

// Run compiles the scenario's manifest into a topology-only graph and runs
// every query against it. Run itself fails only on configuration errors
// (unreadable or invalid manifest); query mismatches are reported as failed
// checks, not errors.
func Run(s *Scenario) (*Result, error) {
	m, err := manifest.CompileFile(s.ManifestPath())
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	graph, err := m.Graph()
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	return RunAgainst(s, graph), nil
}

// RunAgainst runs the scenario's queries against an existing graph. Tests
// use it to bypass manifest loading.
func RunAgainst(s *Scenario, graph *adjudicator.Graph) *Result {
	result := &Result{Scenario: s.Name}
	for _, q := range s.Queries {
		result.Checks = append(result.Checks, runQuery(graph, q))
	}
	return result
}

func runQuery(graph *adjudicator.Graph, q Query) Check {
	check := Check{Query: q.String(), Want: renderExpectation(q)}

	inputs := make([]adjudicator.Type, 0, len(q.Inputs))
	for _, name := range q.Inputs {
		inputs = append(inputs, adjudicator.NamedType(name))
	}
	sig := adjudicator.NewSignature(adjudicator.NewTypeSet(inputs...), adjudicator.NamedType(q.Output))

	plan, err := graph.FindPath(sig)
	check.Got = renderOutcome(plan, err)

	switch q.normalizedExpect() {
	case ExpectPlan:
		check.OK = err == nil && planEqual(plan.IDs(), q.Plan)
	case ExpectNoMatch:
		check.OK = adjudicator.IsNoMatch(err)
	case ExpectAmbiguous:
		var ambiguous *adjudicator.MultipleMatchingRulesError
		if errors.As(err, &ambiguous) {
			check.OK = planSetEqual(ambiguous.Plans, q.Plans)
		}
	}
	return check
}

// renderExpectation renders what the query wanted, matching the outcome
// renderer's shapes so pass/fail diffs read naturally.
func renderExpectation(q Query) string {
	switch q.normalizedExpect() {
	case ExpectNoMatch:
		return "no matching rules"
	case ExpectAmbiguous:
		return "ambiguous: " + renderPlanSet(q.Plans)
	default:
		return "plan [" + strings.Join(q.Plan, " -> ") + "]"
	}
}

// renderOutcome renders what FindPath actually produced.
func renderOutcome(plan adjudicator.Plan, err error) string {
	var ambiguous *adjudicator.MultipleMatchingRulesError
	switch {
	case err == nil:
		return "plan " + plan.String()
	case adjudicator.IsNoMatch(err):
		return "no matching rules"
	case errors.As(err, &ambiguous):
		rendered := make([][]string, len(ambiguous.Plans))
		for i, p := range ambiguous.Plans {
			rendered[i] = p.IDs()
		}
		return "ambiguous: " + renderPlanSet(rendered)
	default:
		return "error: " + err.Error()
	}
}

func renderPlanSet(plans [][]string) string {
	rendered := make([]string, len(plans))
	for i, p := range plans {
		rendered[i] = "[" + strings.Join(p, " -> ") + "]"
	}
	sort.Strings(rendered)
	return "{" + strings.Join(rendered, ", ") + "}"
}

func planEqual(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// planSetEqual compares candidate plan sets order-independently: each plan
// keeps its internal order, the collection does not.
func planSetEqual(got []adjudicator.Plan, want [][]string) bool {
	if len(got) != len(want) {
		return false
	}
	gotKeys := make([]string, len(got))
	for i, p := range got {
		gotKeys[i] = strings.Join(p.IDs(), "\x00")
	}
	wantKeys := make([]string, len(want))
	for i, p := range want {
		wantKeys[i] = strings.Join(p, "\x00")
	}
	sort.Strings(gotKeys)
	sort.Strings(wantKeys)
	for i := range gotKeys {
		if gotKeys[i] != wantKeys[i] {
			return false
		}
	}
	return true
}

// Render produces the deterministic text report for a result, used both by
// the CLI and by golden tests.
func Render(r *Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", r.Scenario)
	for _, c := range r.Checks {
		status := "ok"
		if !c.OK {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "  %-4s %s\n", status, c.Query)
		fmt.Fprintf(&b, "       want: %s\n", c.Want)
		fmt.Fprintf(&b, "       got:  %s\n", c.Got)
	}
	return b.String()
}
