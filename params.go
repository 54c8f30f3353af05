package adjudicator

import (
	"bytes"
	"fmt"
)

// Params is a type-keyed bag of values: at most one value per Type. It is the
// currency of the engine - queries supply Params, rule bodies receive the
// subset they declared, and plan execution folds each rule's output back into
// the working Params.
//
// Operations never mutate the receiver; Union, Sub and Filter return fresh
// bags. The zero value is not usable, construct via NewParams or ParamsOf.
type Params struct {
	values map[Type]any
}

// NewParams builds a bag from the given values, keying each by its dynamic
// type. Two values of the same type keep the last one (right bias, matching
// Union).
func NewParams(values ...any) *Params {
	p := &Params{values: make(map[Type]any, len(values))}
	for _, v := range values {
		p.values[TypeOfValue(v)] = v
	}
	return p
}

// ParamsOf builds a bag from an explicit Type-to-value mapping. Each value
// must be assignable to its key; mismatches panic, since an unassignable
// entry is a programming error no later resolution could honor.
func ParamsOf(m map[Type]any) *Params {
	p := &Params{values: make(map[Type]any, len(m))}
	for t, v := range m {
		if !t.assignable(v) {
			panic(fmt.Sprintf("adjudicator: value of type %T is not assignable to param key %s", v, t))
		}
		p.values[t] = v
	}
	return p
}

// Len returns the number of typed values in the bag.
func (p *Params) Len() int {
	return len(p.values)
}

// Has reports whether a value is present for t.
func (p *Params) Has(t Type) bool {
	_, ok := p.values[t]
	return ok
}

// Get returns the value stored under t, if any.
func (p *Params) Get(t Type) (any, bool) {
	v, ok := p.values[t]
	return v, ok
}

// Types returns the set of types present in the bag.
func (p *Params) Types() TypeSet {
	s := make(TypeSet, len(p.values))
	for t := range p.values {
		s[t] = struct{}{}
	}
	return s
}

// Union merges two bags; on conflict the right operand wins. A nil other is
// treated as empty.
func (p *Params) Union(other *Params) *Params {
	out := &Params{values: make(map[Type]any, len(p.values))}
	for t, v := range p.values {
		out.values[t] = v
	}
	if other != nil {
		for t, v := range other.values {
			out.values[t] = v
		}
	}
	return out
}

// Sub returns the bag without any value whose type is in drop.
func (p *Params) Sub(drop TypeSet) *Params {
	out := &Params{values: make(map[Type]any)}
	for t, v := range p.values {
		if !drop.Has(t) {
			out.values[t] = v
		}
	}
	return out
}

// Filter returns the bag restricted to the types in keep. Used to build
// exactly the input bundle a given rule declared.
func (p *Params) Filter(keep TypeSet) *Params {
	out := &Params{values: make(map[Type]any, len(keep))}
	for t, v := range p.values {
		if keep.Has(t) {
			out.values[t] = v
		}
	}
	return out
}

// Each calls fn for every (type, value) pair in sorted type order.
func (p *Params) Each(fn func(t Type, v any)) {
	for _, t := range p.Types().Sorted() {
		fn(t, p.values[t])
	}
}

// Hash computes the content address of the bag: a domain-separated digest
// over the sorted (type name, value hash) pairs. Equal-by-hash bags produce
// cache hits regardless of construction order.
func (p *Params) Hash(h *HashSupport) (string, error) {
	var buf bytes.Buffer
	for _, t := range p.Types().Sorted() {
		digest, err := h.HashValue(t, p.values[t])
		if err != nil {
			return "", err
		}
		buf.WriteString(t.keyName())
		buf.WriteByte(0x00)
		buf.WriteString(digest)
		buf.WriteByte(0x00)
	}
	return hashWithDomain(domainParams, buf.Bytes()), nil
}

// String renders the bag's type set, e.g. "Params(int, string)".
func (p *Params) String() string {
	return "Params" + p.Types().String()
}

// ValueOf extracts the value stored under TypeOf[T]. Rule bodies use this to
// unpack their declared inputs.
func ValueOf[T any](p *Params) (T, error) {
	var zero T
	t := TypeOf[T]()
	v, ok := p.Get(t)
	if !ok {
		return zero, fmt.Errorf("no param of type %s", t)
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("param of type %s holds incompatible value %T", t, v)
	}
	return typed, nil
}

// MustValue is ValueOf that panics on absence. For rule bodies, whose
// declared inputs are guaranteed present by the executor.
func MustValue[T any](p *Params) T {
	v, err := ValueOf[T](p)
	if err != nil {
		panic(err)
	}
	return v
}
