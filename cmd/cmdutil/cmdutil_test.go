package cmdutil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klytics/xlpipe/internal/config"
	"github.com/klytics/xlpipe/internal/report"
	"github.com/klytics/xlpipe/internal/source"
	"github.com/klytics/xlpipe/internal/table"
)

func newCmd(st *State) (*cobra.Command, *bytes.Buffer) {
	cmd := &cobra.Command{Use: "consolidate"}
	var seed int64
	cmd.Flags().Int64Var(&seed, "seed", 42, "")
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	if st != nil {
		cmd.SetContext(WithState(context.Background(), st))
	}
	return cmd, &buf
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Input.Dir = "in"
	cfg.Input.Sheet = "Data"
	cfg.Output.Dir = "out"
	cfg.Sample.Seed = 7
	return cfg
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{fmt.Errorf("could not open: %w", fs.ErrNotExist), 1},
		{source.ErrNoMatches, 1},
		{fmt.Errorf("sheet %q: %w", "X", report.ErrSheetNotFound), 1},
		{table.ErrUnknownColumn, 1},
		{fmt.Errorf("%w: bad flag", ErrUsage), 1},
		{errors.New("disk full"), 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExitCode(tt.err), "%v", tt.err)
	}
}

func TestStateFromContext(t *testing.T) {
	st := &State{Config: testConfig()}
	cmd, _ := newCmd(st)

	assert.Same(t, st.Config, Config(cmd))
	assert.Equal(t, filepath.Join("in", "sales.xlsx"), InputPath(cmd, "sales.xlsx"))
	assert.Equal(t, filepath.Join("out", "report.xlsx"), OutputPath(cmd, "report.xlsx"))
	assert.Equal(t, "Data", Sheet(cmd, ""))
	assert.Equal(t, "Raw", Sheet(cmd, "Raw"))

	Record(cmd, "a.xlsx", "", "b.xlsx")
	assert.Equal(t, []string{"a.xlsx", "b.xlsx"}, st.Outputs)
}

func TestFallbackState(t *testing.T) {
	cmd, _ := newCmd(nil)
	cfg := Config(cmd)
	assert.Equal(t, int64(42), cfg.Sample.Seed)
	assert.True(t, cfg.Sample.Fallback)
	assert.False(t, JSON(cmd))
}

func TestSeedFlag(t *testing.T) {
	cmd, _ := newCmd(&State{Config: testConfig()})
	assert.Equal(t, int64(7), SeedFlag(cmd, 42), "unset flag uses the configured seed")

	require.NoError(t, cmd.Flags().Set("seed", "99"))
	assert.Equal(t, int64(99), SeedFlag(cmd, 99))
}

func TestEmit(t *testing.T) {
	cmd, buf := newCmd(&State{Config: testConfig()})
	called := false
	require.NoError(t, Emit(cmd, map[string]int{"rows": 3}, func() { called = true }))
	assert.True(t, called)
	assert.Empty(t, buf.String())

	cmd, buf = newCmd(&State{Config: testConfig(), JSON: true})
	require.NoError(t, Emit(cmd, map[string]int{"rows": 3}, func() { t.Fatal("human output under --json") }))

	var env struct {
		OK      bool           `json:"ok"`
		Command string         `json:"command"`
		Data    map[string]int `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env))
	assert.True(t, env.OK)
	assert.Equal(t, "consolidate", env.Command)
	assert.Equal(t, 3, env.Data["rows"])
}
