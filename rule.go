package adjudicator

import (
	"fmt"
	"strings"
)

// Body is the executable part of a rule. It receives a Params bag containing
// exactly one value for each of the rule's declared input types and returns
// one value assignable to the rule's output type.
//
// Bodies must be pure: same inputs, same output. The cache layer depends on
// this - a body may be skipped entirely on a cache hit, and two concurrent
// executions of the same (rule, inputs) pair may race with whichever result
// lands last winning.
type Body func(p *Params) (any, error)

// Rule is an immutable rule descriptor: a globally unique ID, a set of input
// types, one output type, and a body.
//
// Rule identity is the ID. Two *Rule values with the same ID are treated as
// the same rule by the graph and the cache; declaring both is rejected as a
// duplicate.
type Rule struct {
	// ID uniquely identifies the rule across the whole graph.
	ID string

	// Inputs is the set of types the body consumes. May be empty, which makes
	// this a source rule resolvable from any signature.
	Inputs TypeSet

	// Output is the single type the body produces.
	Output Type

	// Body executes the rule. Nil bodies are permitted for topology-only
	// graphs (plan tooling that never executes), and rejected at execution
	// time.
	Body Body
}

// NewRule constructs a rule. The inputs slice is copied into a fresh set.
func NewRule(id string, inputs []Type, output Type, body Body) *Rule {
	return &Rule{
		ID:     id,
		Inputs: NewTypeSet(inputs...),
		Output: output,
		Body:   body,
	}
}

// String renders the rule as "id: (in1, in2) -> out".
func (r *Rule) String() string {
	return fmt.Sprintf("%s: %s -> %s", r.ID, r.Inputs, r.Output)
}

// Signature is a resolution query: a set of input types assumed available and
// one requested output type. Signatures are value objects used as query and
// memoization keys; they are never persisted.
type Signature struct {
	Inputs TypeSet
	Output Type
}

// NewSignature builds a signature from the given inputs and output.
func NewSignature(inputs TypeSet, output Type) Signature {
	return Signature{Inputs: inputs, Output: output}
}

// String renders the signature as "(a, b) -> c" in sorted input order.
func (s Signature) String() string {
	return fmt.Sprintf("%s -> %s", s.Inputs, s.Output)
}

// key returns the canonical memoization key for the signature.
func (s Signature) key() string {
	names := make([]string, 0, len(s.Inputs))
	for _, t := range s.Inputs.Sorted() {
		names = append(names, t.keyName())
	}
	return strings.Join(names, "\x00") + "\x00->\x00" + s.Output.keyName()
}

// Plan is an ordered list of rules whose sequential execution satisfies a
// Signature: every rule's inputs are covered by the signature's own inputs or
// by outputs of rules earlier in the plan.
type Plan []*Rule

// String renders the plan as "[r3 -> r2]".
func (p Plan) String() string {
	ids := make([]string, len(p))
	for i, r := range p {
		ids[i] = r.ID
	}
	return "[" + strings.Join(ids, " -> ") + "]"
}

// IDs returns the rule IDs in plan order.
func (p Plan) IDs() []string {
	ids := make([]string, len(p))
	for i, r := range p {
		ids[i] = r.ID
	}
	return ids
}

// contains reports whether the plan already carries the rule (by identity).
func (p Plan) contains(r *Rule) bool {
	for _, have := range p {
		if have.ID == r.ID {
			return true
		}
	}
	return false
}
