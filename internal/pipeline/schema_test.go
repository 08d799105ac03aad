package pipeline

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWorkflow(t *testing.T) {
	w, err := Parse([]byte(`
name: quarter-close
version: "1.0"
steps:
  - id: gen
    action: sample
    output: ./in
    options:
      scenario: consolidate
      seed: "7"
  - id: merge
    action: consolidate
    input: ${{ steps.gen.output }}
    on_failure: skip
  - id: fix
    action: edit
    input: report.xlsx
    sheet: Monthly_Data
    set: ["C2=250", "D2==B2-C2"]
`))
	require.NoError(t, err)
	require.Len(t, w.Steps, 3)
	assert.Equal(t, OnFailureSkip, w.Steps[1].OnFailure)
	assert.Equal(t, []string{"C2=250", "D2==B2-C2"}, w.Steps[2].Set)

	seed, err := w.Steps[0].IntOption("seed", 42)
	require.NoError(t, err)
	assert.EqualValues(t, 7, seed)
	assert.Equal(t, "consolidate", w.Steps[0].Option("scenario", ""))
	assert.Equal(t, "sqlite", w.Steps[0].Option("engine", "sqlite"))
}

func TestParseRejects(t *testing.T) {
	for name, doc := range map[string]string{
		"no name":      "steps: [{id: a, action: sample}]",
		"no steps":     "name: x",
		"no id":        "name: x\nsteps: [{action: sample}]",
		"duplicate id": "name: x\nsteps: [{id: a, action: sample}, {id: a, action: edit}]",
		"no action":    "name: x\nsteps: [{id: a}]",
		"bad policy":   "name: x\nsteps: [{id: a, action: edit, on_failure: retry}]",
		"bad yaml":     "name: [",
	} {
		_, err := Parse([]byte(doc))
		assert.Error(t, err, name)
	}
}

func TestOptions(t *testing.T) {
	s := Step{ID: "s", Options: map[string]string{"sample": "yes", "seed": "x", "on": "true"}}
	_, err := s.BoolOption("sample", false)
	assert.Error(t, err)
	b, err := s.BoolOption("on", false)
	require.NoError(t, err)
	assert.True(t, b)
	b, err = s.BoolOption("missing", true)
	require.NoError(t, err)
	assert.True(t, b)
	_, err = s.IntOption("seed", 1)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	assert.ErrorContains(t, err, "workflow file not found")
}

func TestStepPath(t *testing.T) {
	s := Step{dir: "/work"}
	assert.Equal(t, filepath.Join("/work", "a.xlsx"), s.Path("a.xlsx"))
	assert.Equal(t, "/abs/a.xlsx", s.Path("/abs/a.xlsx"))
	assert.Equal(t, "", s.Path(""))
	assert.Equal(t, "a.xlsx", Step{}.Path("a.xlsx"))
}
