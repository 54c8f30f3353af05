package adjudicator

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"

	"lukechampine.com/blake3"
)

// edgeKind distinguishes the two edge kinds in the type graph.
type edgeKind uint8

const (
	// edgeRule marks "output is produced by rule R from this input type".
	edgeRule edgeKind = iota + 1
	// edgeUnion marks "this concrete type is a member of the union type".
	edgeUnion
)

// edge is an incoming edge of a type node. A rule with inputs {A, B} and
// output C contributes two edges A->C and B->C carrying the same rule; a
// zero-input rule contributes a single edge from the noInputs sentinel.
type edge struct {
	kind edgeKind
	from Type
	rule *Rule // set for edgeRule only
}

// Graph is the directed acyclic graph of types and rules that resolution
// runs against. Nodes are Types; edges are rule productions and union
// memberships, stored as incoming-edge lists per node.
//
// Mutation (AddRules, RegisterUnionMember) is all-or-nothing: a batch that
// would duplicate an ID or introduce a cycle leaves the graph untouched.
// After construction the graph is read-heavy; FindPath results are memoized
// per signature and invalidated on every mutation.
//
// Reads are safe for concurrent use. Mutation takes the write lock, so
// callers serializing their own setup phase pay nothing extra.
type Graph struct {
	mu       sync.RWMutex
	rules    map[string]*Rule
	incoming map[Type][]edge
	unions   map[Type]TypeSet
	version  uint64

	memoMu sync.Mutex
	memo   map[string]memoEntry
}

// memoEntry caches one FindPath outcome, success or failure.
type memoEntry struct {
	plan Plan
	err  error
}

// NewGraph creates a graph holding the given rules.
func NewGraph(rules ...*Rule) (*Graph, error) {
	g := &Graph{
		rules:    make(map[string]*Rule),
		incoming: make(map[Type][]edge),
		unions:   make(map[Type]TypeSet),
		memo:     make(map[string]memoEntry),
	}
	if err := g.AddRules(rules...); err != nil {
		return nil, err
	}
	return g, nil
}

// NewGraphFrom creates a graph seeded with another graph's rule set and
// union memberships. The new graph evolves independently afterwards.
func NewGraphFrom(other *Graph) (*Graph, error) {
	other.mu.RLock()
	rules := make([]*Rule, 0, len(other.rules))
	for _, r := range other.rules {
		rules = append(rules, r)
	}
	type membership struct{ union, member Type }
	var memberships []membership
	for u, members := range other.unions {
		for m := range members {
			memberships = append(memberships, membership{u, m})
		}
	}
	other.mu.RUnlock()

	g, err := NewGraph(rules...)
	if err != nil {
		return nil, err
	}
	for _, ms := range memberships {
		if err := g.RegisterUnionMember(ms.union, ms.member); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Len returns the number of rules in the graph.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rules)
}

// Rule looks up a rule by ID.
func (g *Graph) Rule(id string) (*Rule, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.rules[id]
	return r, ok
}

// Rules returns all rules sorted by ID.
func (g *Graph) Rules() []*Rule {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Rule, 0, len(g.rules))
	for _, r := range g.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Version returns the graph's mutation counter. Bumped by every successful
// AddRules or RegisterUnionMember; FindPath memoization is valid only within
// one version.
func (g *Graph) Version() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.version
}

// AddRules adds a batch of rules. The whole batch is rejected - graph
// unchanged - if any rule's ID already exists (or repeats within the batch),
// or if the added edges would make the graph cyclic.
func (g *Graph) AddRules(rules ...*Rule) error {
	if len(rules) == 0 {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	// Stage edges against a copy so a rejected batch leaves no trace.
	staged := make(map[Type][]edge, len(g.incoming)+len(rules))
	for t, es := range g.incoming {
		staged[t] = es
	}

	batch := make(map[string]*Rule, len(rules))
	for _, r := range rules {
		if r.ID == "" {
			return fmt.Errorf("rule with empty ID (output %s)", r.Output)
		}
		if r.Output.IsZero() {
			return fmt.Errorf("rule %s has no output type", r.ID)
		}
		if _, exists := g.rules[r.ID]; exists {
			return &DuplicateRuleError{ID: r.ID}
		}
		if _, exists := batch[r.ID]; exists {
			return &DuplicateRuleError{ID: r.ID}
		}
		batch[r.ID] = r

		froms := r.Inputs.Sorted()
		if len(froms) == 0 {
			froms = []Type{noInputsType}
		}
		for _, from := range froms {
			staged[r.Output] = appendEdge(staged[r.Output], edge{kind: edgeRule, from: from, rule: r})
		}
	}

	if cycle := findCycle(staged); cycle != nil {
		return &CyclicGraphError{Cycle: cycle}
	}

	g.incoming = staged
	for id, r := range batch {
		g.rules[id] = r
	}
	g.bumpVersionLocked()
	return nil
}

// RegisterUnionMember records that member is a member of union, making every
// rule that produces member count as a producer of union. Membership is
// monotonic within a process lifetime; there is no deregistration.
//
// Rejected - graph unchanged - if the new edge would close a cycle.
func (g *Graph) RegisterUnionMember(union, member Type) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.unions[union].Has(member) {
		return nil
	}

	staged := make(map[Type][]edge, len(g.incoming)+1)
	for t, es := range g.incoming {
		staged[t] = es
	}
	staged[union] = appendEdge(staged[union], edge{kind: edgeUnion, from: member})

	if cycle := findCycle(staged); cycle != nil {
		return &CyclicGraphError{Cycle: cycle}
	}

	g.incoming = staged
	if g.unions[union] == nil {
		g.unions[union] = make(TypeSet)
	}
	g.unions[union][member] = struct{}{}
	g.bumpVersionLocked()
	return nil
}

// UnionMembers returns the registered members of a union type.
func (g *Graph) UnionMembers(union Type) TypeSet {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(TypeSet, len(g.unions[union]))
	for m := range g.unions[union] {
		out[m] = struct{}{}
	}
	return out
}

// RulesForOutputType returns every rule that can directly produce t, sorted
// by ID. Union membership is transparent: producers of a member type count
// as producers of the union, one level of indirection at a time. Acyclicity
// guarantees the recursion terminates.
func (g *Graph) RulesForOutputType(t Type) []*Rule {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.rulesForOutputLocked(t)
}

func (g *Graph) rulesForOutputLocked(t Type) []*Rule {
	seen := make(map[string]*Rule)
	g.collectProducers(t, seen)
	out := make([]*Rule, 0, len(seen))
	for _, r := range seen {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (g *Graph) collectProducers(t Type, seen map[string]*Rule) {
	for _, e := range g.incoming[t] {
		switch e.kind {
		case edgeRule:
			seen[e.rule.ID] = e.rule
		case edgeUnion:
			g.collectProducers(e.from, seen)
		}
	}
}

// FindPath returns the unique ordered plan of rules that produces
// sig.Output from sig.Inputs, or fails:
//
//   - NoMatchingRulesError if no candidate rule's dependencies can be
//     satisfied from the inputs;
//   - MultipleMatchingRulesError if two or more candidates each yield a
//     complete plan - the engine never breaks such ties by declaration
//     order, specificity, or plan length.
//
// A candidate whose own sub-resolution fails is disqualified, not an overall
// failure; the search continues with the remaining candidates. Results
// (successes and failures alike) are memoized per signature until the graph
// is next mutated.
func (g *Graph) FindPath(sig Signature) (Plan, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.findPathLocked(sig)
}

func (g *Graph) findPathLocked(sig Signature) (Plan, error) {
	key := sig.key()

	g.memoMu.Lock()
	if entry, ok := g.memo[key]; ok {
		g.memoMu.Unlock()
		return entry.plan, entry.err
	}
	g.memoMu.Unlock()

	plan, err := g.resolveLocked(sig)

	g.memoMu.Lock()
	g.memo[key] = memoEntry{plan: plan, err: err}
	g.memoMu.Unlock()

	return plan, err
}

func (g *Graph) resolveLocked(sig Signature) (Plan, error) {
	candidates := g.rulesForOutputLocked(sig.Output)

	var plans []Plan
	for _, r := range candidates {
		prefix, ok := g.satisfyLocked(r, sig.Inputs)
		if !ok {
			continue
		}
		plans = append(plans, append(prefix, r))
	}

	switch len(plans) {
	case 0:
		return nil, &NoMatchingRulesError{Sig: sig}
	case 1:
		return plans[0], nil
	default:
		return nil, &MultipleMatchingRulesError{Sig: sig, Plans: plans}
	}
}

// satisfyLocked builds the ordered prefix plan producing every input of r
// that the signature's inputs do not cover. Sub-plans are unioned in
// first-seen order, deduplicated by rule identity. Returns ok=false when any
// missing input cannot be resolved unambiguously, which disqualifies r.
func (g *Graph) satisfyLocked(r *Rule, inputs TypeSet) (Plan, bool) {
	var prefix Plan
	for _, missing := range r.Inputs.Diff(inputs).Sorted() {
		sub, err := g.findPathLocked(NewSignature(inputs, missing))
		if err != nil {
			return nil, false
		}
		for _, inner := range sub {
			if !prefix.contains(inner) {
				prefix = append(prefix, inner)
			}
		}
	}
	return prefix, true
}

// Fingerprint returns a BLAKE3 content address of the graph's rule topology
// and union memberships. Two graphs with the same rules (by ID and types)
// and memberships share a fingerprint; any mutation changes it. Used by
// tooling to name a graph version.
func (g *Graph) Fingerprint() string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	lines := make([]string, 0, len(g.rules)+len(g.unions))
	for _, r := range g.rules {
		ins := make([]string, 0, len(r.Inputs))
		for _, t := range r.Inputs.Sorted() {
			ins = append(ins, t.keyName())
		}
		lines = append(lines, "rule\x00"+r.ID+"\x00"+strings.Join(ins, ",")+"\x00"+r.Output.keyName())
	}
	for u, members := range g.unions {
		for _, m := range members.Sorted() {
			lines = append(lines, "union\x00"+u.keyName()+"\x00"+m.keyName())
		}
	}
	sort.Strings(lines)

	sum := blake3.Sum256([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(sum[:])
}

// bumpVersionLocked advances the version and drops the FindPath memo.
// Callers hold the write lock.
func (g *Graph) bumpVersionLocked() {
	g.version++
	g.memoMu.Lock()
	g.memo = make(map[string]memoEntry)
	g.memoMu.Unlock()
}

// appendEdge appends without aliasing the source slice, so staged mutations
// never leak into the committed graph on rollback.
func appendEdge(edges []edge, e edge) []edge {
	out := make([]edge, len(edges), len(edges)+1)
	copy(out, edges)
	return append(out, e)
}

// findCycle runs a depth-first search over the staged edge set and returns
// one type cycle if the graph is not acyclic, nil otherwise.
func findCycle(incoming map[Type][]edge) []Type {
	const (
		white = 0 // unvisited
		gray  = 1 // on the current DFS stack
		black = 2 // fully explored
	)
	color := make(map[Type]int)

	// Deterministic node order keeps the reported cycle stable.
	nodes := make(TypeSet)
	for to, edges := range incoming {
		nodes[to] = struct{}{}
		for _, e := range edges {
			nodes[e.from] = struct{}{}
		}
	}

	var stack []Type
	var cycle []Type

	var visit func(t Type) bool
	visit = func(t Type) bool {
		color[t] = gray
		stack = append(stack, t)
		for _, e := range incoming[t] {
			switch color[e.from] {
			case white:
				if visit(e.from) {
					return true
				}
			case gray:
				// Slice the stack from the first occurrence of e.from.
				for i, s := range stack {
					if s == e.from {
						cycle = append(cycle, stack[i:]...)
						cycle = append(cycle, e.from)
						break
					}
				}
				return true
			}
		}
		stack = stack[:len(stack)-1]
		color[t] = black
		return false
	}

	for _, t := range nodes.Sorted() {
		if color[t] == white {
			if visit(t) {
				return cycle
			}
		}
	}
	return nil
}
