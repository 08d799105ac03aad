// Package tests runs the compiled xlpipe binary end to end. Build it first
// with "go build -o bin/xlpipe ."; the tests skip when it is missing.
package tests

import (
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bin returns the path to the compiled binary.
func bin(t *testing.T) string {
	t.Helper()
	_, filename, _, _ := runtime.Caller(0)
	path := filepath.Join(filepath.Dir(filename), "..", "bin", "xlpipe")
	if runtime.GOOS == "windows" {
		path += ".exe"
	}
	if _, err := os.Stat(path); err != nil {
		t.Skipf("xlpipe binary not found at %s; run 'go build -o bin/xlpipe .' first", path)
	}
	return path
}

// workspace is an isolated working directory and home for one test.
type workspace struct {
	t    *testing.T
	dir  string
	home string
}

func newWorkspace(t *testing.T) *workspace {
	return &workspace{t: t, dir: t.TempDir(), home: t.TempDir()}
}

// run executes xlpipe in the workspace and returns stdout, stderr and the
// exit code.
func (w *workspace) run(args ...string) (string, string, int) {
	w.t.Helper()
	cmd := exec.Command(bin(w.t), args...)
	cmd.Dir = w.dir
	cmd.Env = append(os.Environ(), "HOME="+w.home, "XLPIPE_NO_PROGRESS=1", "NO_COLOR=1")
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	code := 0
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		require.True(w.t, errors.As(err, &exitErr), "could not run xlpipe: %v", err)
		code = exitErr.ExitCode()
	}
	return stdout.String(), stderr.String(), code
}

func (w *workspace) path(name string) string { return filepath.Join(w.dir, name) }

type envelope struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
	Code  int             `json:"code"`
}

func decode(t *testing.T, stdout string) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal([]byte(stdout), &env), "not JSON: %s", stdout)
	return env
}

func TestAllCommandsExist(t *testing.T) {
	w := newWorkspace(t)
	stdout, _, code := w.run("--help")
	require.Equal(t, 0, code)
	for _, c := range []string{
		"consolidate", "automate", "crossfile", "dashboard", "edit", "sample",
		"inspect", "query", "run", "runs", "config", "completion", "version",
	} {
		assert.Contains(t, stdout, c)
	}
}

func TestConsolidateGeneratesSampleData(t *testing.T) {
	w := newWorkspace(t)
	stdout, stderr, code := w.run("consolidate", "--json")
	require.Equal(t, 0, code, stderr)

	env := decode(t, stdout)
	assert.True(t, env.OK)
	assert.FileExists(t, w.path("consolidated_sales.xlsx"))
	assert.FileExists(t, w.path("consolidation_summary.xlsx"))
	assert.FileExists(t, w.path("sales_january.xlsx"))
}

func TestConsolidateNoSampleFails(t *testing.T) {
	w := newWorkspace(t)
	stdout, _, code := w.run("consolidate", "--no-sample", "--json")
	assert.Equal(t, 1, code)
	env := decode(t, stdout)
	assert.False(t, env.OK)
	assert.NotEmpty(t, env.Error)
}

func TestAutomateBothEngines(t *testing.T) {
	for _, engine := range []string{"sqlite", "memory"} {
		t.Run(engine, func(t *testing.T) {
			w := newWorkspace(t)
			_, stderr, code := w.run("automate", "--engine", engine)
			require.Equal(t, 0, code, stderr)
			assert.FileExists(t, w.path("automated_report.xlsx"))
		})
	}
}

func TestCrossFileAndInspect(t *testing.T) {
	w := newWorkspace(t)
	_, stderr, code := w.run("crossfile")
	require.Equal(t, 0, code, stderr)

	stdout, stderr, code := w.run("inspect", "cross_file_analysis_results.xlsx", "--json")
	require.Equal(t, 0, code, stderr)
	var sheets []struct {
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(decode(t, stdout).Data, &sheets))
	require.NotEmpty(t, sheets)
	assert.Equal(t, "Revenue By Category", sheets[0].Name)
}

func TestDashboard(t *testing.T) {
	w := newWorkspace(t)
	stdout, stderr, code := w.run("dashboard")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Key insights")
	assert.FileExists(t, w.path("sales_dashboard.xlsx"))
}

func TestSampleAndEdit(t *testing.T) {
	w := newWorkspace(t)
	_, stderr, code := w.run("sample", "edit")
	require.Equal(t, 0, code, stderr)

	_, stderr, code = w.run("edit", "monthly_report.xlsx", "--sheet", "Monthly_Data", "--set", "C2=250")
	require.Equal(t, 0, code, stderr)

	_, _, code = w.run("edit", "monthly_report.xlsx", "--sheet", "Nope", "--set", "C2=1")
	assert.NotEqual(t, 0, code)
}

func TestQueryEval(t *testing.T) {
	w := newWorkspace(t)
	_, stderr, code := w.run("sample", "crossfile")
	require.Equal(t, 0, code, stderr)

	stdout, stderr, code := w.run("query", "products.xlsx", "--eval", "SELECT COUNT(*) AS n FROM products")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "n")
}

func TestRunWorkflowAndRunLog(t *testing.T) {
	w := newWorkspace(t)
	flow := `name: smoke
version: "1"
steps:
  - id: data
    action: sample
    output: data
    options:
      scenario: consolidate
  - id: merge
    action: consolidate
    input: ${{ steps.data.output }}
    output: out/consolidated.xlsx
`
	require.NoError(t, os.WriteFile(w.path("flow.yaml"), []byte(flow), 0o644))

	stdout, stderr, code := w.run("run", "flow.yaml", "--dry-run")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "would write")
	assert.NoFileExists(t, w.path("out/consolidated.xlsx"))

	_, stderr, code = w.run("run", "flow.yaml")
	require.Equal(t, 0, code, stderr)
	assert.FileExists(t, w.path("out/consolidated.xlsx"))

	stdout, stderr, code = w.run("runs", "log", "--json")
	require.Equal(t, 0, code, stderr)
	var entries []struct {
		Command  string   `json:"command"`
		ExitCode int      `json:"exit_code"`
		Outputs  []string `json:"outputs"`
	}
	require.NoError(t, json.Unmarshal(decode(t, stdout).Data, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "run", entries[1].Command)
	assert.NotEmpty(t, entries[1].Outputs)
}

func TestVersionOutput(t *testing.T) {
	w := newWorkspace(t)
	stdout, _, code := w.run("version")
	require.Equal(t, 0, code)
	assert.True(t, strings.HasPrefix(stdout, "xlpipe "), stdout)
}

func TestAllCommandsHaveHelp(t *testing.T) {
	commandPaths := [][]string{
		{"consolidate"}, {"automate"}, {"crossfile"}, {"dashboard"}, {"edit"},
		{"sample"}, {"inspect"}, {"query"}, {"run"},
		{"runs", "log"}, {"runs", "show"}, {"runs", "clear"}, {"runs", "status"},
		{"config", "init"}, {"config", "show"}, {"config", "validate"}, {"config", "env"},
		{"completion"}, {"version"},
	}
	for _, path := range commandPaths {
		args := append(path, "--help")
		t.Run(strings.Join(path, "_"), func(t *testing.T) {
			w := newWorkspace(t)
			_, _, code := w.run(args...)
			assert.Equal(t, 0, code, "xlpipe %s --help", strings.Join(path, " "))
		})
	}
}
