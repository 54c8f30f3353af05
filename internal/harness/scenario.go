// Package harness runs declarative resolution scenarios: YAML files that
// pair a rule manifest with queries and their expected outcomes. Graph
// designers use scenarios to pin down which signatures resolve, which are
// deliberately ambiguous, and which must fail - and to catch regressions
// when the rule set evolves.
package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario is one scenario file: a manifest plus a list of queries with
// expected outcomes.
type Scenario struct {
	// Name uniquely identifies this scenario; also the golden file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description,omitempty"`

	// Manifest is the path to the CUE rule manifest, relative to the
	// scenario file location.
	Manifest string `yaml:"manifest"`

	// Queries are the resolution queries to run, in order.
	Queries []Query `yaml:"queries"`

	// dir is the directory the scenario was loaded from, for resolving
	// the manifest path. Empty for scenarios constructed in code.
	dir string
}

// Query is one resolution query with its expected outcome.
type Query struct {
	// Inputs are the available input type names.
	Inputs []string `yaml:"inputs,omitempty"`

	// Output is the requested output type name.
	Output string `yaml:"output"`

	// Expect selects the outcome kind: "plan" (default), "no_match" or
	// "ambiguous".
	Expect string `yaml:"expect,omitempty"`

	// Plan is the expected ordered plan of rule IDs (Expect "plan").
	Plan []string `yaml:"plan,omitempty"`

	// Plans are the expected candidate plans (Expect "ambiguous").
	// Compared as an order-independent set of ordered plans.
	Plans [][]string `yaml:"plans,omitempty"`
}

// Expected outcome kinds.
const (
	ExpectPlan      = "plan"
	ExpectNoMatch   = "no_match"
	ExpectAmbiguous = "ambiguous"
)

// normalizedExpect returns the effective outcome kind, defaulting to "plan".
func (q Query) normalizedExpect() string {
	if q.Expect == "" {
		return ExpectPlan
	}
	return q.Expect
}

// validate rejects malformed queries at load time rather than mid-run.
func (q Query) validate(idx int) error {
	switch q.normalizedExpect() {
	case ExpectPlan:
		if len(q.Plan) == 0 {
			return fmt.Errorf("query %d: expect %q requires a plan", idx, ExpectPlan)
		}
	case ExpectNoMatch:
		if len(q.Plan) > 0 || len(q.Plans) > 0 {
			return fmt.Errorf("query %d: expect %q takes no plans", idx, ExpectNoMatch)
		}
	case ExpectAmbiguous:
		if len(q.Plans) < 2 {
			return fmt.Errorf("query %d: expect %q requires at least two plans", idx, ExpectAmbiguous)
		}
	default:
		return fmt.Errorf("query %d: unknown expect %q", idx, q.Expect)
	}
	if q.Output == "" {
		return fmt.Errorf("query %d: output is required", idx)
	}
	return nil
}

// String renders the query signature, e.g. "(bool, str) -> int".
func (q Query) String() string {
	inputs := append([]string(nil), q.Inputs...)
	sort.Strings(inputs)
	return "(" + strings.Join(inputs, ", ") + ") -> " + q.Output
}

// LoadScenario reads and validates one scenario file. Unknown YAML fields
// are rejected, which catches typos like "expect: ambigous" at the field
// level.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}

	if s.Name == "" {
		return nil, fmt.Errorf("scenario %s: name is required", path)
	}
	if s.Manifest == "" {
		return nil, fmt.Errorf("scenario %s: manifest is required", path)
	}
	if len(s.Queries) == 0 {
		return nil, fmt.Errorf("scenario %s: at least one query is required", path)
	}
	for i, q := range s.Queries {
		if err := q.validate(i); err != nil {
			return nil, fmt.Errorf("scenario %s: %w", path, err)
		}
	}

	s.dir = filepath.Dir(path)
	return &s, nil
}

// LoadDir loads every *.yaml file under dir (non-recursive), sorted by file
// name for deterministic run order.
func LoadDir(dir string) ([]*Scenario, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no scenario files found in %s", dir)
	}
	sort.Strings(matches)

	scenarios := make([]*Scenario, 0, len(matches))
	for _, path := range matches {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// ManifestPath returns the manifest path resolved against the scenario
// file's directory.
func (s *Scenario) ManifestPath() string {
	if s.dir == "" {
		return s.Manifest
	}
	return filepath.Join(s.dir, s.Manifest)
}
