package adjudicator

import (
	"fmt"
	"log/slog"
	"sync"
)

// Engine orchestrates resolution: it owns a rule graph, a bag of global
// facts, a hash registry and an executor, and answers Get queries by finding
// and executing a plan.
//
// Get is safe for concurrent use. Graph mutation and fact assertion are
// setup-phase operations; they are internally locked but not designed to
// race with in-flight queries in any meaningful order.
type Engine struct {
	graph  *Graph
	hash   *HashSupport
	exec   *Executor
	tokens TokenGenerator

	factsMu sync.RWMutex
	facts   *Params
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithGraph adopts an existing graph instance. Sharing one graph across
// engines is allowed for resolution; concurrent mutation must be serialized
// by the caller.
func WithGraph(g *Graph) Option {
	return func(e *Engine) { e.graph = g }
}

// WithExecutor replaces the default cached executor.
func WithExecutor(x *Executor) Option {
	return func(e *Engine) { e.exec = x }
}

// WithCache replaces the default in-memory cache while keeping the default
// executor shape.
func WithCache(c Cache) Option {
	return func(e *Engine) { e.exec = NewExecutor(c) }
}

// WithHashSupport replaces the engine's hash registry.
func WithHashSupport(h *HashSupport) Option {
	return func(e *Engine) { e.hash = h }
}

// WithTokenGenerator replaces the query token generator (tests use
// FixedGenerator for deterministic logs).
func WithTokenGenerator(g TokenGenerator) Option {
	return func(e *Engine) { e.tokens = g }
}

// New creates an engine with an empty graph, no facts, and a
// MemoryCache-backed executor unless options say otherwise.
func New(opts ...Option) *Engine {
	graph, err := NewGraph()
	if err != nil {
		// NewGraph with no rules cannot fail.
		panic(err)
	}
	e := &Engine{
		graph:  graph,
		hash:   NewHashSupport(),
		exec:   NewExecutor(NewMemoryCache()),
		tokens: UUIDv7Generator{},
		facts:  NewParams(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Graph returns the engine's rule graph.
func (e *Engine) Graph() *Graph {
	return e.graph
}

// HashSupport returns the engine's hash registry, for custom hasher
// registration.
func (e *Engine) HashSupport() *HashSupport {
	return e.hash
}

// AddRules adds rules to the engine's graph. Same all-or-nothing semantics
// as Graph.AddRules.
func (e *Engine) AddRules(rules ...*Rule) error {
	return e.graph.AddRules(rules...)
}

// RegisterUnionMember records a union membership on the engine's graph.
func (e *Engine) RegisterUnionMember(union, member Type) error {
	return e.graph.RegisterUnionMember(union, member)
}

// Get resolves one value of the requested output type from the given params
// plus the engine's facts.
//
// Fast path: with empty params and a fact of the requested type, the fact is
// returned without touching the graph. Otherwise the engine asks the graph
// for a plan over the union of param and fact types and executes it in
// order, folding each rule's output into the working params so later rules
// can consume it. Call-site params take precedence over facts for the types
// they cover.
//
// Fails with the resolution errors of Graph.FindPath, any rule body error,
// or ContractError when the final output does not match the requested type.
func (e *Engine) Get(output Type, params *Params) (any, error) {
	if params == nil {
		params = NewParams()
	}

	e.factsMu.RLock()
	facts := e.facts
	e.factsMu.RUnlock()

	if params.Len() == 0 {
		if v, ok := facts.Get(output); ok {
			slog.Debug("resolved from fact", "output", output.Name())
			return v, nil
		}
	}

	token := e.tokens.Generate()
	sig := NewSignature(params.Types().Union(facts.Types()), output)
	slog.Debug("resolving", "token", token, "signature", sig.String())

	plan, err := e.graph.FindPath(sig)
	if err != nil {
		slog.Debug("resolution failed", "token", token, "error", err)
		return nil, err
	}

	working := params
	var out any
	for _, r := range plan {
		inputs := facts.Filter(r.Inputs).Union(working.Filter(r.Inputs))
		out, err = e.exec.Execute(r, inputs, e.hash)
		if err != nil {
			return nil, err
		}
		working = working.Union(ParamsOf(map[Type]any{r.Output: out}))
		slog.Debug("rule executed", "token", token, "rule", r.ID, "output", r.Output.Name())
	}

	if !output.assignable(out) {
		return nil, &ContractError{Want: output, Got: fmt.Sprintf("%T", out)}
	}
	slog.Debug("resolved", "token", token, "rules", len(plan))
	return out, nil
}

// Resolve is the typed form of Engine.Get.
func Resolve[T any](e *Engine, params *Params) (T, error) {
	var zero T
	v, err := e.Get(TypeOf[T](), params)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		// Get already enforced assignability; this guards interface
		// conversions on exotic targets.
		return zero, &ContractError{Want: TypeOf[T](), Got: fmt.Sprintf("%T", v)}
	}
	return typed, nil
}

// AssertFacts adds global facts to the engine. A fact is available to every
// subsequent Get as if it were part of the query's inputs. Asserting a type
// that already has a fact is rejected whole - no partial assertion.
func (e *Engine) AssertFacts(facts *Params) error {
	if facts == nil || facts.Len() == 0 {
		return nil
	}
	e.factsMu.Lock()
	defer e.factsMu.Unlock()

	var overlap []Type
	for _, t := range facts.Types().Sorted() {
		if e.facts.Has(t) {
			overlap = append(overlap, t)
		}
	}
	if len(overlap) > 0 {
		return &FactConflictError{Op: "assert", Types: overlap, Reason: "fact already exists"}
	}
	e.facts = e.facts.Union(facts)
	return nil
}

// RetractFacts removes facts. Every given type must currently have a fact,
// and the given value must equal (by content hash) what is stored - the
// caller has to prove it holds the fact it is discarding. Rejected whole on
// any mismatch.
func (e *Engine) RetractFacts(facts *Params) error {
	if facts == nil || facts.Len() == 0 {
		return nil
	}
	e.factsMu.Lock()
	defer e.factsMu.Unlock()

	var missing []Type
	for _, t := range facts.Types().Sorted() {
		if !e.facts.Has(t) {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		return &FactConflictError{Op: "retract", Types: missing, Reason: "no such fact"}
	}

	for _, t := range facts.Types().Sorted() {
		given, _ := facts.Get(t)
		stored, _ := e.facts.Get(t)
		givenHash, err := e.hash.HashValue(t, given)
		if err != nil {
			return fmt.Errorf("retract facts: %w", err)
		}
		storedHash, err := e.hash.HashValue(t, stored)
		if err != nil {
			return fmt.Errorf("retract facts: %w", err)
		}
		if givenHash != storedHash {
			return &FactConflictError{Op: "retract", Types: []Type{t}, Reason: "value does not match stored fact"}
		}
	}

	e.facts = e.facts.Sub(facts.Types())
	return nil
}

// Fact returns the stored fact for t, if any.
func (e *Engine) Fact(t Type) (any, bool) {
	e.factsMu.RLock()
	defer e.factsMu.RUnlock()
	return e.facts.Get(t)
}
