package adjudicator

import (
	"reflect"
	"sort"
	"strings"
)

// Type is the unit of identity throughout the engine: graph nodes, Params
// keys, fact keys, and union members are all Types.
//
// A Type is one of two descriptor kinds:
//
//   - reflection-derived (TypeOf, TypeOfValue): identity is the Go type;
//   - symbolic (NamedType): identity is a registered name, with no Go type
//     behind it. Symbolic types support topology-only graphs - manifest
//     tooling that plans over declared type names and never executes rules.
//
// Type is a small comparable value and is safe to use as a map key. The two
// kinds never compare equal, even when the names coincide.
type Type struct {
	rt   reflect.Type
	name string
}

// TypeOf returns the Type descriptor for T.
//
// Interface types are allowed and typically serve as union (abstract) output
// types; their producer set is populated via Graph.RegisterUnionMember.
func TypeOf[T any]() Type {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	return Type{rt: rt, name: rt.String()}
}

// TypeOfValue returns the Type descriptor for v's dynamic type.
// Panics if v is nil (an untyped nil has no type identity).
func TypeOfValue(v any) Type {
	rt := reflect.TypeOf(v)
	if rt == nil {
		panic("adjudicator: cannot derive a Type from untyped nil")
	}
	return Type{rt: rt, name: rt.String()}
}

// NamedType returns a symbolic descriptor identified by name alone. Values
// are never assignable to a symbolic type, so graphs built over them resolve
// plans but cannot execute.
func NamedType(name string) Type {
	if name == "" {
		panic("adjudicator: NamedType requires a non-empty name")
	}
	return Type{name: name}
}

// Name returns the descriptor's name: the Go name for reflection-derived
// types (e.g. "adjudicator.Signature", "string"), the registered name for
// symbolic ones. Used in diagnostics, hashing and manifest binding; stable
// within a build.
func (t Type) Name() string {
	if t.name == "" {
		return "<nil>"
	}
	return t.name
}

// IsZero reports whether t is the zero Type (no descriptor).
func (t Type) IsZero() bool {
	return t.rt == nil && t.name == ""
}

// keyName returns a collision-free identity string: the two descriptor kinds
// are kept in separate namespaces so a symbolic "int" never aliases the Go
// int in memoization or hash keys.
func (t Type) keyName() string {
	if t.rt == nil {
		return "sym:" + t.name
	}
	return "go:" + t.name
}

// assignable reports whether a value of type v can be assigned to t.
// Interface targets accept any implementation; concrete targets require
// plain assignability.
func (t Type) assignable(v any) bool {
	if t.rt == nil {
		return false
	}
	rv := reflect.TypeOf(v)
	if rv == nil {
		// Untyped nil is assignable to nilable targets only.
		switch t.rt.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
			return true
		}
		return false
	}
	return rv.AssignableTo(t.rt)
}

func (t Type) String() string {
	return t.Name()
}

// noInputs is the sentinel node backing rules with an empty input set.
// A zero-input rule contributes exactly one edge noInputs -> output.
type noInputs struct{}

var noInputsType = TypeOf[noInputs]()

// TypeSet is an unordered set of Types. The zero value is an empty set.
//
// Methods never mutate their receiver; operations that combine sets return
// fresh sets so a TypeSet held by a Rule or Signature stays immutable.
type TypeSet map[Type]struct{}

// NewTypeSet builds a set from the given types.
func NewTypeSet(types ...Type) TypeSet {
	s := make(TypeSet, len(types))
	for _, t := range types {
		s[t] = struct{}{}
	}
	return s
}

// Has reports membership of t.
func (s TypeSet) Has(t Type) bool {
	_, ok := s[t]
	return ok
}

// Len returns the number of types in the set.
func (s TypeSet) Len() int {
	return len(s)
}

// Union returns a new set holding every type in s or other.
func (s TypeSet) Union(other TypeSet) TypeSet {
	out := make(TypeSet, len(s)+len(other))
	for t := range s {
		out[t] = struct{}{}
	}
	for t := range other {
		out[t] = struct{}{}
	}
	return out
}

// Diff returns a new set holding the types in s that are not in other.
func (s TypeSet) Diff(other TypeSet) TypeSet {
	out := make(TypeSet)
	for t := range s {
		if !other.Has(t) {
			out[t] = struct{}{}
		}
	}
	return out
}

// Sorted returns the members ordered by Name. Every iteration that feeds
// hashing, resolution or diagnostics goes through Sorted so behavior is
// deterministic regardless of map iteration order.
func (s TypeSet) Sorted() []Type {
	out := make([]Type, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// String renders the set as "(a, b, c)" in sorted order.
func (s TypeSet) String() string {
	names := make([]string, 0, len(s))
	for _, t := range s.Sorted() {
		names = append(names, t.Name())
	}
	return "(" + strings.Join(names, ", ") + ")"
}
