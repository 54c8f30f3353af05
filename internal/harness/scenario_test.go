package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_HappyPath(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/pipeline.yaml")
	require.NoError(t, err)

	assert.Equal(t, "pipeline", s.Name)
	assert.Len(t, s.Queries, 4)
	assert.Equal(t, filepath.Join("testdata", "scenarios", "pipeline.cue"), s.ManifestPath())
}

func TestLoadScenario_UnknownFieldRejected(t *testing.T) {
	path := writeScenario(t, `
name: typo
manifest: m.cue
querys:
  - output: A
`)
	_, err := LoadScenario(path)
	assert.Error(t, err, "strict decoding catches misspelled fields")
}

func TestLoadScenario_MissingName(t *testing.T) {
	path := writeScenario(t, `
manifest: m.cue
queries:
  - output: A
    plan: [r]
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")
}

func TestLoadScenario_QueryValidation(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"plan expectation without plan", `
  - inputs: [A]
    output: B
`},
		{"no_match with a plan", `
  - output: B
    expect: no_match
    plan: [r]
`},
		{"ambiguous with one plan", `
  - output: B
    expect: ambiguous
    plans:
      - [r]
`},
		{"unknown expect kind", `
  - output: B
    expect: maybe
`},
		{"missing output", `
  - inputs: [A]
    expect: no_match
    output: ""
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeScenario(t, "name: s\nmanifest: m.cue\nqueries:"+tt.query)
			_, err := LoadScenario(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadDir_SortedByFileName(t *testing.T) {
	scenarios, err := LoadDir("testdata/scenarios")
	require.NoError(t, err)
	require.Len(t, scenarios, 2)
	assert.Equal(t, "defaults", scenarios[0].Name)
	assert.Equal(t, "pipeline", scenarios[1].Name)
}

func TestLoadDir_EmptyDir(t *testing.T) {
	_, err := LoadDir(t.TempDir())
	assert.Error(t, err)
}

func TestQuery_String(t *testing.T) {
	q := Query{Inputs: []string{"b", "a"}, Output: "c"}
	assert.Equal(t, "(a, b) -> c", q.String(), "inputs render sorted")

	q = Query{Output: "c"}
	assert.Equal(t, "() -> c", q.String())
}
