// Package manifest compiles declarative rule topology manifests written in
// CUE. A manifest names the types, rules and union memberships of a graph:
//
//	rules: {
//		"parse-config": {
//			inputs: ["ConfigPath"]
//			output: "Config"
//		}
//		"default-config": {
//			output: "Config"
//		}
//	}
//	unions: {
//		"Report": ["TextReport", "HTMLReport"]
//	}
//
// A compiled manifest can be turned into a topology-only graph of symbolic
// types (for plan and validation tooling), or bound against a Registry of
// Go types and rule bodies to produce an executable graph.
package manifest

import (
	"fmt"
	"os"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/token"

	"github.com/roach88/adjudicator"
)

// RuleDecl is one declared rule: an ID, input type names, and the output
// type name.
type RuleDecl struct {
	ID     string
	Inputs []string
	Output string
	Pos    token.Pos
}

// UnionDecl is one declared union membership set.
type UnionDecl struct {
	Union   string
	Members []string
	Pos     token.Pos
}

// Manifest is a compiled rule topology. Declaration order is preserved for
// rules and sorted for unions, so rendering is deterministic.
type Manifest struct {
	Rules  []RuleDecl
	Unions []UnionDecl
}

// CompileFile reads and compiles a single CUE manifest file.
func CompileFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	return Compile(v)
}

// CompileString compiles a CUE manifest from source text. Used by tests.
func CompileString(src string) (*Manifest, error) {
	ctx := cuecontext.New()
	return Compile(ctx.CompileString(src))
}

// Compile parses a CUE value into a Manifest. The value must carry a
// "rules" struct; "unions" is optional.
func Compile(v cue.Value) (*Manifest, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	m := &Manifest{}

	rulesVal := v.LookupPath(cue.ParsePath("rules"))
	if !rulesVal.Exists() {
		return nil, &CompileError{Field: "rules", Message: "rules section is required", Pos: v.Pos()}
	}
	iter, err := rulesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	seen := make(map[string]bool)
	for iter.Next() {
		decl, err := compileRule(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		if seen[decl.ID] {
			return nil, &CompileError{Field: "rules", Message: fmt.Sprintf("duplicate rule ID %q", decl.ID), Pos: decl.Pos}
		}
		seen[decl.ID] = true
		m.Rules = append(m.Rules, decl)
	}
	if len(m.Rules) == 0 {
		return nil, &CompileError{Field: "rules", Message: "at least one rule is required", Pos: rulesVal.Pos()}
	}

	unionsVal := v.LookupPath(cue.ParsePath("unions"))
	if unionsVal.Exists() {
		uiter, err := unionsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for uiter.Next() {
			decl, err := compileUnion(uiter.Label(), uiter.Value())
			if err != nil {
				return nil, err
			}
			m.Unions = append(m.Unions, decl)
		}
		sort.Slice(m.Unions, func(i, j int) bool { return m.Unions[i].Union < m.Unions[j].Union })
	}

	return m, nil
}

func compileRule(id string, v cue.Value) (RuleDecl, error) {
	decl := RuleDecl{ID: id, Pos: v.Pos()}

	outputVal := v.LookupPath(cue.ParsePath("output"))
	if !outputVal.Exists() {
		return decl, &CompileError{Field: fmt.Sprintf("rules.%q.output", id), Message: "output is required", Pos: v.Pos()}
	}
	output, err := outputVal.String()
	if err != nil {
		return decl, formatCUEError(err)
	}
	decl.Output = output

	inputsVal := v.LookupPath(cue.ParsePath("inputs"))
	if inputsVal.Exists() {
		list, err := inputsVal.List()
		if err != nil {
			return decl, formatCUEError(err)
		}
		for list.Next() {
			name, err := list.Value().String()
			if err != nil {
				return decl, formatCUEError(err)
			}
			decl.Inputs = append(decl.Inputs, name)
		}
	}

	return decl, nil
}

func compileUnion(name string, v cue.Value) (UnionDecl, error) {
	decl := UnionDecl{Union: name, Pos: v.Pos()}
	list, err := v.List()
	if err != nil {
		return decl, formatCUEError(err)
	}
	for list.Next() {
		member, err := list.Value().String()
		if err != nil {
			return decl, formatCUEError(err)
		}
		decl.Members = append(decl.Members, member)
	}
	if len(decl.Members) == 0 {
		return decl, &CompileError{Field: fmt.Sprintf("unions.%q", name), Message: "at least one member is required", Pos: v.Pos()}
	}
	return decl, nil
}

// Graph builds a topology-only graph over symbolic types: every declared
// type name becomes a NamedType, every rule gets a nil body. The resulting
// graph supports FindPath and validation but not execution.
//
// Graph construction surfaces the same configuration errors as the engine:
// duplicate IDs and cycles reject the manifest.
func (m *Manifest) Graph() (*adjudicator.Graph, error) {
	rules := make([]*adjudicator.Rule, 0, len(m.Rules))
	for _, decl := range m.Rules {
		inputs := make([]adjudicator.Type, 0, len(decl.Inputs))
		for _, name := range decl.Inputs {
			inputs = append(inputs, adjudicator.NamedType(name))
		}
		rules = append(rules, adjudicator.NewRule(decl.ID, inputs, adjudicator.NamedType(decl.Output), nil))
	}

	g, err := adjudicator.NewGraph(rules...)
	if err != nil {
		return nil, err
	}
	for _, u := range m.Unions {
		union := adjudicator.NamedType(u.Union)
		for _, member := range u.Members {
			if err := g.RegisterUnionMember(union, adjudicator.NamedType(member)); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}

// Bind resolves the manifest against a Registry of Go types and rule bodies,
// producing executable rules and union registrations for an engine.
func (m *Manifest) Bind(reg *Registry) ([]*adjudicator.Rule, []BoundUnion, error) {
	rules := make([]*adjudicator.Rule, 0, len(m.Rules))
	for _, decl := range m.Rules {
		body, ok := reg.Body(decl.ID)
		if !ok {
			return nil, nil, &BindError{Kind: "rule", Name: decl.ID, Pos: decl.Pos}
		}
		inputs := make([]adjudicator.Type, 0, len(decl.Inputs))
		for _, name := range decl.Inputs {
			t, ok := reg.Type(name)
			if !ok {
				return nil, nil, &BindError{Kind: "type", Name: name, Pos: decl.Pos}
			}
			inputs = append(inputs, t)
		}
		output, ok := reg.Type(decl.Output)
		if !ok {
			return nil, nil, &BindError{Kind: "type", Name: decl.Output, Pos: decl.Pos}
		}
		rules = append(rules, adjudicator.NewRule(decl.ID, inputs, output, body))
	}

	var unions []BoundUnion
	for _, u := range m.Unions {
		union, ok := reg.Type(u.Union)
		if !ok {
			return nil, nil, &BindError{Kind: "type", Name: u.Union, Pos: u.Pos}
		}
		for _, memberName := range u.Members {
			member, ok := reg.Type(memberName)
			if !ok {
				return nil, nil, &BindError{Kind: "type", Name: memberName, Pos: u.Pos}
			}
			unions = append(unions, BoundUnion{Union: union, Member: member})
		}
	}
	return rules, unions, nil
}

// BoundUnion is one resolved union membership ready for
// Engine.RegisterUnionMember.
type BoundUnion struct {
	Union  adjudicator.Type
	Member adjudicator.Type
}
