package harness

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/adjudicator"
)

func pipelineGraph(t *testing.T) *adjudicator.Graph {
	t.Helper()
	named := adjudicator.NamedType
	g, err := adjudicator.NewGraph(
		adjudicator.NewRule("parse-config", []adjudicator.Type{named("ConfigPath")}, named("Config"), nil),
		adjudicator.NewRule("render-text", []adjudicator.Type{named("Config")}, named("TextReport"), nil),
		adjudicator.NewRule("render-html", []adjudicator.Type{named("Config")}, named("HTMLReport"), nil),
	)
	require.NoError(t, err)
	require.NoError(t, g.RegisterUnionMember(named("Report"), named("TextReport")))
	require.NoError(t, g.RegisterUnionMember(named("Report"), named("HTMLReport")))
	return g
}

func TestRunAgainst_AllOutcomeKinds(t *testing.T) {
	s := &Scenario{
		Name: "inline",
		Queries: []Query{
			{Inputs: []string{"ConfigPath"}, Output: "TextReport", Plan: []string{"parse-config", "render-text"}},
			{Inputs: []string{"ConfigPath"}, Output: "Missing", Expect: ExpectNoMatch},
			{Inputs: []string{"ConfigPath"}, Output: "Report", Expect: ExpectAmbiguous, Plans: [][]string{
				{"parse-config", "render-html"},
				{"parse-config", "render-text"},
			}},
		},
	}

	result := RunAgainst(s, pipelineGraph(t))
	require.Len(t, result.Checks, 3)
	assert.True(t, result.Passed(), Render(result))
}

func TestRunAgainst_PlanMismatchFails(t *testing.T) {
	s := &Scenario{
		Name: "mismatch",
		Queries: []Query{
			{Inputs: []string{"ConfigPath"}, Output: "TextReport", Plan: []string{"render-text"}},
		},
	}

	result := RunAgainst(s, pipelineGraph(t))
	require.Len(t, result.Checks, 1)
	assert.False(t, result.Passed())
	assert.Equal(t, "plan [render-text]", result.Checks[0].Want)
	assert.Equal(t, "plan [parse-config -> render-text]", result.Checks[0].Got)
}

func TestRunAgainst_AmbiguousPlanSetOrderIndependent(t *testing.T) {
	s := &Scenario{
		Name: "reordered",
		Queries: []Query{
			{Inputs: []string{"ConfigPath"}, Output: "Report", Expect: ExpectAmbiguous, Plans: [][]string{
				{"parse-config", "render-text"},
				{"parse-config", "render-html"},
			}},
		},
	}

	result := RunAgainst(s, pipelineGraph(t))
	assert.True(t, result.Passed(), "candidate plan order must not matter")
}

func TestRunAgainst_AmbiguousInternalOrderMatters(t *testing.T) {
	s := &Scenario{
		Name: "wrong-order",
		Queries: []Query{
			{Inputs: []string{"ConfigPath"}, Output: "Report", Expect: ExpectAmbiguous, Plans: [][]string{
				{"render-text", "parse-config"},
				{"render-html", "parse-config"},
			}},
		},
	}

	result := RunAgainst(s, pipelineGraph(t))
	assert.False(t, result.Passed(), "each plan's internal order is significant")
}

func TestRun_CompilesManifestFromDisk(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/pipeline.yaml")
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Passed(), Render(result))
}

func TestRun_BadManifestIsError(t *testing.T) {
	s := &Scenario{
		Name:     "broken",
		Manifest: "testdata/scenarios/does-not-exist.cue",
		Queries:  []Query{{Output: "A", Expect: ExpectNoMatch}},
	}
	_, err := Run(s)
	assert.Error(t, err, "configuration problems are errors, not failed checks")
}

func TestRender_FailedCheckShape(t *testing.T) {
	r := &Result{
		Scenario: "sample",
		Checks: []Check{
			{Query: "(a) -> b", OK: false, Want: "plan [r1]", Got: "no matching rules"},
		},
	}
	out := Render(r)
	assert.True(t, strings.HasPrefix(out, "scenario: sample\n"))
	assert.Contains(t, out, "  FAIL (a) -> b\n")
	assert.Contains(t, out, "       want: plan [r1]\n")
	assert.Contains(t, out, "       got:  no matching rules\n")
}
