// Package cmdutil holds the state every xlpipe command shares: the loaded
// configuration, the --json switch, and the outputs recorded for the run log.
package cmdutil

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/klytics/xlpipe/internal/analysis"
	"github.com/klytics/xlpipe/internal/config"
	"github.com/klytics/xlpipe/internal/consolidate"
	"github.com/klytics/xlpipe/internal/output"
	"github.com/klytics/xlpipe/internal/report"
	"github.com/klytics/xlpipe/internal/source"
	"github.com/klytics/xlpipe/internal/table"
)

type stateKey struct{}

// State is attached to the command context by the root command.
type State struct {
	Config  *config.Config
	JSON    bool
	Outputs []string
}

// WithState returns ctx carrying st.
func WithState(ctx context.Context, st *State) context.Context {
	return context.WithValue(ctx, stateKey{}, st)
}

// FromCommand returns the shared state, or an empty state with default
// configuration when the command runs outside the root command.
func FromCommand(cmd *cobra.Command) *State {
	if ctx := cmd.Context(); ctx != nil {
		if st, ok := ctx.Value(stateKey{}).(*State); ok {
			return st
		}
	}
	cfg := &config.Config{}
	cfg.Sample.Seed = 42
	cfg.Sample.Fallback = true
	json, _ := cmd.Flags().GetBool("json")
	return &State{Config: cfg, JSON: json}
}

// Config returns the loaded configuration.
func Config(cmd *cobra.Command) *config.Config {
	return FromCommand(cmd).Config
}

// JSON reports whether --json was given.
func JSON(cmd *cobra.Command) bool {
	return FromCommand(cmd).JSON
}

// Logger returns the process logger.
func Logger() *slog.Logger {
	return slog.Default()
}

// Record notes files the command wrote, for the run log.
func Record(cmd *cobra.Command, paths ...string) {
	st := FromCommand(cmd)
	for _, p := range paths {
		if p != "" {
			st.Outputs = append(st.Outputs, p)
		}
	}
}

// Emit prints data as the JSON envelope with --json, and otherwise calls
// human to print the console form.
func Emit(cmd *cobra.Command, data any, human func()) error {
	if JSON(cmd) {
		return output.WriteJSON(cmd.OutOrStdout(), cmd.CommandPath(), data)
	}
	human()
	return nil
}

// SeedFlag returns --seed when it was given and the configured seed
// otherwise.
func SeedFlag(cmd *cobra.Command, seed int64) int64 {
	if f := cmd.Flags().Lookup("seed"); f != nil && f.Changed {
		return seed
	}
	return Config(cmd).Sample.Seed
}

// ExitCode classifies err: input problems the user can fix exit 1, and
// anything else exits 2.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return output.ExitOK
	case errors.Is(err, fs.ErrNotExist),
		errors.Is(err, source.ErrNoMatches),
		errors.Is(err, source.ErrUnsupported),
		errors.Is(err, consolidate.ErrNothingToConsolidate),
		errors.Is(err, analysis.ErrNoInputs),
		errors.Is(err, analysis.ErrUnknownSuite),
		errors.Is(err, report.ErrSheetNotFound),
		errors.Is(err, report.ErrEditMode),
		errors.Is(err, table.ErrUnknownColumn),
		errors.Is(err, ErrUsage):
		return output.ExitUserError
	}
	return output.ExitSystemError
}

// ErrUsage marks bad flag combinations.
var ErrUsage = errors.New("invalid usage")

// InputPath places a default input name in the configured input.dir.
func InputPath(cmd *cobra.Command, name string) string {
	return filepath.Join(Config(cmd).Input.Dir, name)
}

// OutputPath places a default output name in the configured output.dir.
func OutputPath(cmd *cobra.Command, name string) string {
	return filepath.Join(Config(cmd).Output.Dir, name)
}

// Sheet returns the --sheet flag, falling back to input.sheet.
func Sheet(cmd *cobra.Command, flag string) string {
	if flag != "" {
		return flag
	}
	return Config(cmd).Input.Sheet
}
