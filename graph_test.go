package adjudicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Shorthand type descriptors for the resolution tests.
var (
	tString = TypeOf[string]()
	tInt    = TypeOf[int]()
	tBool   = TypeOf[bool]()
	tFloat  = TypeOf[float64]()
)

// topoRule builds a body-less rule; resolution never needs bodies.
func topoRule(id string, output Type, inputs ...Type) *Rule {
	return NewRule(id, inputs, output, nil)
}

func mustGraph(t *testing.T, rules ...*Rule) *Graph {
	t.Helper()
	g, err := NewGraph(rules...)
	require.NoError(t, err)
	return g
}

// =============================================================================
// Construction and Mutation
// =============================================================================

func TestGraph_AddRules_DuplicateIDRejected(t *testing.T) {
	g := mustGraph(t, topoRule("r1", tInt, tString))

	err := g.AddRules(topoRule("r1", tBool, tString))
	require.Error(t, err)
	var dup *DuplicateRuleError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "r1", dup.ID)
	assert.Equal(t, 1, g.Len())
}

func TestGraph_AddRules_DuplicateWithinBatchRejected(t *testing.T) {
	g := mustGraph(t)
	err := g.AddRules(
		topoRule("r1", tInt, tString),
		topoRule("r1", tBool, tString),
	)
	require.Error(t, err)
	assert.Equal(t, 0, g.Len(), "batch must be rejected whole")
}

func TestGraph_AddRules_EmptyIDRejected(t *testing.T) {
	g := mustGraph(t)
	err := g.AddRules(topoRule("", tInt, tString))
	assert.Error(t, err)
}

func TestGraph_AddRules_CycleRejectedAtomically(t *testing.T) {
	g := mustGraph(t, topoRule("base", tInt, tString))
	before := g.Version()

	// a->b and b->a close a two-type cycle.
	err := g.AddRules(
		topoRule("fine", tFloat, tInt),
		topoRule("ab", tBool, tFloat),
		topoRule("ba", tFloat, tBool),
	)
	require.Error(t, err)
	var cyclic *CyclicGraphError
	require.ErrorAs(t, err, &cyclic)
	assert.NotEmpty(t, cyclic.Cycle)

	// No partial mutation: rule set, version, and resolution all unchanged.
	assert.Equal(t, 1, g.Len())
	assert.Equal(t, before, g.Version())
	_, ok := g.Rule("fine")
	assert.False(t, ok, "valid rules in a rejected batch must not land")
}

func TestGraph_AddRules_SelfCycleRejected(t *testing.T) {
	g := mustGraph(t)
	err := g.AddRules(topoRule("self", tInt, tInt))
	require.Error(t, err)
	var cyclic *CyclicGraphError
	assert.ErrorAs(t, err, &cyclic)
}

func TestGraph_Rules_SortedByID(t *testing.T) {
	g := mustGraph(t,
		topoRule("zeta", tInt, tString),
		topoRule("alpha", tBool, tString),
	)
	rules := g.Rules()
	require.Len(t, rules, 2)
	assert.Equal(t, "alpha", rules[0].ID)
	assert.Equal(t, "zeta", rules[1].ID)
}

func TestGraph_NewGraphFrom_IndependentEvolution(t *testing.T) {
	g := mustGraph(t, topoRule("r1", tInt, tString))
	require.NoError(t, g.RegisterUnionMember(NamedType("Report"), tInt))

	clone, err := NewGraphFrom(g)
	require.NoError(t, err)
	assert.Equal(t, g.Fingerprint(), clone.Fingerprint())

	require.NoError(t, clone.AddRules(topoRule("r2", tBool, tInt)))
	assert.Equal(t, 1, g.Len())
	assert.Equal(t, 2, clone.Len())
	assert.NotEqual(t, g.Fingerprint(), clone.Fingerprint())
}

// =============================================================================
// FindPath
// =============================================================================

func TestGraph_FindPath_DirectRule(t *testing.T) {
	g := mustGraph(t,
		topoRule("r1", tInt, tString),
		topoRule("r2", tInt, tBool),
		topoRule("r3", tBool, tString),
	)

	plan, err := g.FindPath(NewSignature(NewTypeSet(tBool), tInt))
	require.NoError(t, err)
	assert.Equal(t, []string{"r2"}, plan.IDs())
}

func TestGraph_FindPath_AmbiguousReportsAllPlans(t *testing.T) {
	g := mustGraph(t,
		topoRule("r1", tInt, tString),
		topoRule("r2", tInt, tBool),
		topoRule("r3", tBool, tString),
	)

	// int from string: directly via r1, or via r3 then r2. No tie-breaking.
	_, err := g.FindPath(NewSignature(NewTypeSet(tString), tInt))
	require.Error(t, err)
	assert.True(t, IsAmbiguous(err))

	var ambiguous *MultipleMatchingRulesError
	require.ErrorAs(t, err, &ambiguous)
	require.Len(t, ambiguous.Plans, 2)

	got := map[string]bool{}
	for _, p := range ambiguous.Plans {
		got[p.String()] = true
	}
	assert.True(t, got["[r1]"])
	assert.True(t, got["[r3 -> r2]"])
}

func TestGraph_FindPath_NoMatch(t *testing.T) {
	g := mustGraph(t,
		topoRule("r1", tInt, tString),
		topoRule("r3", tBool, tString),
	)

	_, err := g.FindPath(NewSignature(NewTypeSet(tFloat), tBool))
	require.Error(t, err)
	assert.True(t, IsNoMatch(err))

	var noMatch *NoMatchingRulesError
	require.ErrorAs(t, err, &noMatch)
	assert.Equal(t, tBool, noMatch.Sig.Output)
}

func TestGraph_FindPath_ZeroInputRule(t *testing.T) {
	g := mustGraph(t, topoRule("r0", tInt))

	plan, err := g.FindPath(NewSignature(NewTypeSet(), tInt))
	require.NoError(t, err)
	assert.Equal(t, []string{"r0"}, plan.IDs())
}

func TestGraph_FindPath_MultiHopChain(t *testing.T) {
	g := mustGraph(t,
		topoRule("parse", tInt, tString),
		topoRule("check", tBool, tInt),
		topoRule("score", tFloat, tBool, tString),
	)

	plan, err := g.FindPath(NewSignature(NewTypeSet(tString), tFloat))
	require.NoError(t, err)
	assert.Equal(t, []string{"parse", "check", "score"}, plan.IDs(),
		"dependencies run before their consumers")
}

func TestGraph_FindPath_SharedDependencyDeduplicated(t *testing.T) {
	// Both inputs of "join" depend on "parse"; the plan runs it once.
	g := mustGraph(t,
		topoRule("parse", tInt, tString),
		topoRule("flag", tBool, tInt),
		topoRule("join", tFloat, tInt, tBool),
	)

	plan, err := g.FindPath(NewSignature(NewTypeSet(tString), tFloat))
	require.NoError(t, err)

	seen := map[string]int{}
	for _, id := range plan.IDs() {
		seen[id]++
	}
	assert.Equal(t, 1, seen["parse"])
	assert.Equal(t, "join", plan[len(plan)-1].ID)
}

func TestGraph_FindPath_DisqualifiedCandidateIsNotFailure(t *testing.T) {
	// Two producers of int, but only r2's dependency chain is satisfiable
	// from bool, so the query stays unambiguous.
	g := mustGraph(t,
		topoRule("r1", tInt, tString),
		topoRule("r2", tInt, tBool),
	)

	plan, err := g.FindPath(NewSignature(NewTypeSet(tBool), tInt))
	require.NoError(t, err)
	assert.Equal(t, []string{"r2"}, plan.IDs())
}

func TestGraph_FindPath_AmbiguousSubresolutionDisqualifies(t *testing.T) {
	// "top" needs a float; two rules produce float from string, making the
	// sub-resolution ambiguous. The candidate is disqualified, and with no
	// other producer of int the query reports no match rather than ambiguity.
	g := mustGraph(t,
		topoRule("fa", tFloat, tString),
		topoRule("fb", tFloat, tString),
		topoRule("top", tInt, tFloat),
	)

	_, err := g.FindPath(NewSignature(NewTypeSet(tString), tInt))
	require.Error(t, err)
	assert.True(t, IsNoMatch(err))
}

// =============================================================================
// Unions
// =============================================================================

func TestGraph_UnionMembership_Transparent(t *testing.T) {
	report := NamedType("Report")
	g := mustGraph(t, topoRule("make-int", tInt, tString))
	require.NoError(t, g.RegisterUnionMember(report, tInt))

	rules := g.RulesForOutputType(report)
	require.Len(t, rules, 1)
	assert.Equal(t, "make-int", rules[0].ID)

	plan, err := g.FindPath(NewSignature(NewTypeSet(tString), report))
	require.NoError(t, err)
	assert.Equal(t, []string{"make-int"}, plan.IDs())
}

func TestGraph_UnionMembership_NestedUnions(t *testing.T) {
	outer := NamedType("Outer")
	inner := NamedType("Inner")
	g := mustGraph(t, topoRule("make-bool", tBool, tString))
	require.NoError(t, g.RegisterUnionMember(inner, tBool))
	require.NoError(t, g.RegisterUnionMember(outer, inner))

	rules := g.RulesForOutputType(outer)
	require.Len(t, rules, 1)
	assert.Equal(t, "make-bool", rules[0].ID)
}

func TestGraph_UnionMembership_Idempotent(t *testing.T) {
	report := NamedType("Report")
	g := mustGraph(t)
	require.NoError(t, g.RegisterUnionMember(report, tInt))
	v := g.Version()
	require.NoError(t, g.RegisterUnionMember(report, tInt))
	assert.Equal(t, v, g.Version(), "re-registering a member is a no-op")
	assert.Equal(t, 1, g.UnionMembers(report).Len())
}

func TestGraph_UnionMembership_AmbiguityAcrossMembers(t *testing.T) {
	report := NamedType("Report")
	g := mustGraph(t,
		topoRule("make-int", tInt, tString),
		topoRule("make-bool", tBool, tString),
	)
	require.NoError(t, g.RegisterUnionMember(report, tInt))
	require.NoError(t, g.RegisterUnionMember(report, tBool))

	_, err := g.FindPath(NewSignature(NewTypeSet(tString), report))
	require.Error(t, err)
	assert.True(t, IsAmbiguous(err))
}

func TestGraph_UnionMembership_CycleRejected(t *testing.T) {
	a := NamedType("A")
	b := NamedType("B")
	g := mustGraph(t)
	require.NoError(t, g.RegisterUnionMember(a, b))

	err := g.RegisterUnionMember(b, a)
	require.Error(t, err)
	var cyclic *CyclicGraphError
	assert.ErrorAs(t, err, &cyclic)
	assert.Equal(t, 0, g.UnionMembers(b).Len())
}

// =============================================================================
// Memoization and Fingerprint
// =============================================================================

func TestGraph_FindPath_MemoInvalidatedByMutation(t *testing.T) {
	g := mustGraph(t, topoRule("r3", tBool, tString))
	sig := NewSignature(NewTypeSet(tString), tInt)

	_, err := g.FindPath(sig)
	require.True(t, IsNoMatch(err))

	// Adding a producer must make the same signature resolve.
	require.NoError(t, g.AddRules(topoRule("r1", tInt, tString)))
	plan, err := g.FindPath(sig)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, plan.IDs())
}

func TestGraph_Fingerprint_StableAndOrderIndependent(t *testing.T) {
	a := mustGraph(t,
		topoRule("r1", tInt, tString),
		topoRule("r2", tBool, tInt),
	)
	b := mustGraph(t,
		topoRule("r2", tBool, tInt),
		topoRule("r1", tInt, tString),
	)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	require.NoError(t, a.RegisterUnionMember(NamedType("Report"), tBool))
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}
