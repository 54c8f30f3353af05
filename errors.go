package adjudicator

import (
	"errors"
	"fmt"
	"strings"
)

// NoMatchingRulesError reports that no combination of rules can produce the
// requested signature from the available input types. Surfaced to the caller
// of Get/FindPath; never retried inside the engine.
type NoMatchingRulesError struct {
	Sig Signature
}

func (e *NoMatchingRulesError) Error() string {
	return fmt.Sprintf("no matching rules for %s", e.Sig)
}

// MultipleMatchingRulesError reports that two or more structurally distinct
// complete plans satisfy the same signature. The engine refuses to pick one;
// Plans carries every candidate for diagnostics so the rule set can be
// restructured.
type MultipleMatchingRulesError struct {
	Sig   Signature
	Plans []Plan
}

func (e *MultipleMatchingRulesError) Error() string {
	rendered := make([]string, len(e.Plans))
	for i, p := range e.Plans {
		rendered[i] = p.String()
	}
	return fmt.Sprintf("multiple matching rule paths for %s: %s", e.Sig, strings.Join(rendered, ", "))
}

// DuplicateRuleError reports an AddRules batch naming an ID that already
// exists in the graph.
type DuplicateRuleError struct {
	ID string
}

func (e *DuplicateRuleError) Error() string {
	return fmt.Sprintf("duplicate rule ID: %s", e.ID)
}

// CyclicGraphError reports an AddRules batch that would make the type graph
// cyclic. The batch is rejected whole; the graph is left unchanged.
type CyclicGraphError struct {
	// Cycle is one offending type cycle, in edge order, for diagnostics.
	Cycle []Type
}

func (e *CyclicGraphError) Error() string {
	if len(e.Cycle) == 0 {
		return "rule graph is not acyclic"
	}
	names := make([]string, len(e.Cycle))
	for i, t := range e.Cycle {
		names[i] = t.Name()
	}
	return "rule graph is not acyclic: " + strings.Join(names, " -> ")
}

// FactConflictError reports a rejected AssertFacts or RetractFacts call.
// The fact store is left unchanged.
type FactConflictError struct {
	Op     string // "assert" or "retract"
	Types  []Type // offending fact types
	Reason string
}

func (e *FactConflictError) Error() string {
	names := make([]string, len(e.Types))
	for i, t := range e.Types {
		names[i] = t.Name()
	}
	return fmt.Sprintf("%s facts (%s): %s", e.Op, strings.Join(names, ", "), e.Reason)
}

// ContractError reports a rule body returning a value not assignable to its
// declared output type, or a plan's final output not matching the requested
// type. It indicates a bug in rule declarations, not a runtime condition to
// recover from.
type ContractError struct {
	RuleID string // empty for the engine's final output check
	Want   Type
	Got    string // %T of the offending value
}

func (e *ContractError) Error() string {
	if e.RuleID != "" {
		return fmt.Sprintf("rule %s declared output %s but returned %s", e.RuleID, e.Want, e.Got)
	}
	return fmt.Sprintf("plan produced %s, expected %s", e.Got, e.Want)
}

// IsNoMatch reports whether err is (or wraps) a NoMatchingRulesError.
func IsNoMatch(err error) bool {
	var e *NoMatchingRulesError
	return errors.As(err, &e)
}

// IsAmbiguous reports whether err is (or wraps) a MultipleMatchingRulesError.
func IsAmbiguous(err error) bool {
	var e *MultipleMatchingRulesError
	return errors.As(err, &e)
}

// IsResolveError reports whether err is either resolution failure kind.
// A candidate rule whose sub-resolution fails this way is disqualified,
// not propagated - see Graph.FindPath.
func IsResolveError(err error) bool {
	return IsNoMatch(err) || IsAmbiguous(err)
}

// IsFactConflict reports whether err is (or wraps) a FactConflictError.
func IsFactConflict(err error) bool {
	var e *FactConflictError
	return errors.As(err, &e)
}

// IsContractViolation reports whether err is (or wraps) a ContractError.
func IsContractViolation(err error) bool {
	var e *ContractError
	return errors.As(err, &e)
}
