// Package pipeline runs YAML workflows that chain the spreadsheet pipelines
// together, passing each step's output path to later steps.
package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Failure policies for a step.
const (
	OnFailureStop = "stop"
	OnFailureSkip = "skip"
)

// Workflow is a parsed workflow file.
type Workflow struct {
	Name    string `yaml:"name" json:"name"`
	Version string `yaml:"version" json:"version"`
	// Dir is the base for relative step paths. A relative Dir is taken
	// from the workflow file's directory, and Load makes it absolute.
	Dir   string `yaml:"dir,omitempty" json:"dir,omitempty"`
	Steps []Step `yaml:"steps" json:"steps"`
}

// Step is one action in a workflow.
type Step struct {
	ID     string `yaml:"id" json:"id"`
	Action string `yaml:"action" json:"action"`
	// Input is a file, directory or glob pattern, depending on the action.
	Input  string `yaml:"input,omitempty" json:"input,omitempty"`
	Output string `yaml:"output,omitempty" json:"output,omitempty"`
	Sheet  string `yaml:"sheet,omitempty" json:"sheet,omitempty"`
	// Set lists REF=VALUE cell updates for the edit action.
	Set       []string          `yaml:"set,omitempty" json:"set,omitempty"`
	Options   map[string]string `yaml:"options,omitempty" json:"options,omitempty"`
	OnFailure string            `yaml:"on_failure,omitempty" json:"onFailure,omitempty"`

	dir string
}

// Path resolves p against the workflow directory. Empty and absolute
// paths are returned unchanged.
func (s Step) Path(p string) string {
	if p == "" || filepath.IsAbs(p) || s.dir == "" {
		return p
	}
	return filepath.Join(s.dir, p)
}

// Option returns the named option or def when it is unset.
func (s Step) Option(name, def string) string {
	if v, ok := s.Options[name]; ok && v != "" {
		return v
	}
	return def
}

// BoolOption parses a true/false option.
func (s Step) BoolOption(name string, def bool) (bool, error) {
	v, ok := s.Options[name]
	if !ok || v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("step %q: option %s=%q is not true or false", s.ID, name, v)
	}
	return b, nil
}

// IntOption parses an integer option.
func (s Step) IntOption(name string, def int64) (int64, error) {
	v, ok := s.Options[name]
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def, fmt.Errorf("step %q: option %s=%q is not a whole number", s.ID, name, v)
	}
	return n, nil
}

// StepResult is the outcome of one step.
type StepResult struct {
	StepID     string `json:"stepId"`
	Action     string `json:"action"`
	Output     string `json:"output,omitempty"`
	DryRun     bool   `json:"dryRun,omitempty"`
	Skipped    bool   `json:"skipped,omitempty"`
	DurationMs int64  `json:"durationMs"`
	Error      error  `json:"-"`
	Message    string `json:"error,omitempty"`
}

// Load reads and validates a workflow file.
func Load(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("workflow file not found: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("could not read workflow file %s: %w", path, err)
	}
	w, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if !filepath.IsAbs(w.Dir) {
		w.Dir = filepath.Join(filepath.Dir(path), w.Dir)
	}
	// Step outputs are absolute, so feeding one into a later step does not
	// join the workflow directory twice.
	if w.Dir, err = filepath.Abs(w.Dir); err != nil {
		return nil, fmt.Errorf("could not resolve workflow directory: %w", err)
	}
	return w, nil
}

// Parse parses and validates workflow YAML.
func Parse(data []byte) (*Workflow, error) {
	var w Workflow
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("invalid workflow YAML: %w", err)
	}
	if err := validate(&w); err != nil {
		return nil, err
	}
	return &w, nil
}

func validate(w *Workflow) error {
	if w.Name == "" {
		return fmt.Errorf("workflow is missing a 'name' field")
	}
	if len(w.Steps) == 0 {
		return fmt.Errorf("workflow %q has no steps defined", w.Name)
	}
	seen := make(map[string]bool)
	for i, step := range w.Steps {
		if step.ID == "" {
			return fmt.Errorf("step %d is missing an 'id' field", i+1)
		}
		if seen[step.ID] {
			return fmt.Errorf("duplicate step ID %q, each step needs a unique ID", step.ID)
		}
		seen[step.ID] = true
		if step.Action == "" {
			return fmt.Errorf("step %q is missing an 'action' field", step.ID)
		}
		switch step.OnFailure {
		case "", OnFailureStop, OnFailureSkip:
		default:
			return fmt.Errorf("step %q: on_failure must be %q or %q, got %q",
				step.ID, OnFailureStop, OnFailureSkip, step.OnFailure)
		}
	}
	return nil
}
