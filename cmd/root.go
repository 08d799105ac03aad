// Package cmd contains all CLI commands for the xlpipe binary.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klytics/xlpipe/cmd/analyze"
	"github.com/klytics/xlpipe/cmd/cmdutil"
	"github.com/klytics/xlpipe/cmd/completion"
	cmdconfig "github.com/klytics/xlpipe/cmd/config"
	cmdconsolidate "github.com/klytics/xlpipe/cmd/consolidate"
	cmddashboard "github.com/klytics/xlpipe/cmd/dashboard"
	"github.com/klytics/xlpipe/cmd/edit"
	"github.com/klytics/xlpipe/cmd/inspect"
	"github.com/klytics/xlpipe/cmd/pipeline"
	"github.com/klytics/xlpipe/cmd/query"
	"github.com/klytics/xlpipe/cmd/runs"
	cmdsample "github.com/klytics/xlpipe/cmd/sample"
	"github.com/klytics/xlpipe/cmd/version"
	"github.com/klytics/xlpipe/internal/config"
	"github.com/klytics/xlpipe/internal/logging"
	"github.com/klytics/xlpipe/internal/output"
	"github.com/klytics/xlpipe/internal/runlog"
)

var (
	jsonOutput bool
	verbose    bool
	noColor    bool
)

// unlogged commands never reach the run log.
var unlogged = map[string]bool{
	"runs": true, "completion": true, "version": true, "help": true, "config": true,
	"__complete": true, "__completeNoDesc": true,
}

// NewRootCommand creates the root command with every subcommand registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "xlpipe",
		Short: "Spreadsheet pipelines from the terminal",
		Long: `xlpipe consolidates, joins, aggregates and reports on Excel workbooks.

Each pipeline reads a batch of .xlsx/.csv/.json tables, computes its
summaries in memory or in an embedded SQLite database, and writes a
multi-sheet workbook. Missing inputs can be generated as seeded samples.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if jsonOutput {
				os.Setenv("XLPIPE_JSON", "true")
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if noColor || !cfg.Output.Color {
				color.NoColor = true
			}
			log, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format, verbose)
			if err != nil {
				return err
			}
			slog.SetDefault(log)
			cmd.SetContext(cmdutil.WithState(cmd.Context(), &cmdutil.State{Config: cfg, JSON: jsonOutput}))
			return nil
		},
	}

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", cmdutil.ErrUsage, err)
	})
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as machine-readable JSON")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable ANSI color output")

	rootCmd.AddCommand(cmdconsolidate.NewCommand())
	rootCmd.AddCommand(analyze.NewAutomateCommand())
	rootCmd.AddCommand(analyze.NewCrossFileCommand())
	rootCmd.AddCommand(cmddashboard.NewCommand())
	rootCmd.AddCommand(edit.NewCommand())
	rootCmd.AddCommand(cmdsample.NewCommand())
	rootCmd.AddCommand(inspect.NewCommand())
	rootCmd.AddCommand(query.NewCommand())
	rootCmd.AddCommand(pipeline.NewCommand())
	rootCmd.AddCommand(runs.NewCommand())
	rootCmd.AddCommand(cmdconfig.NewCommand())
	rootCmd.AddCommand(completion.NewCommand(rootCmd))
	rootCmd.AddCommand(version.NewCommand())

	return rootCmd
}

// Execute runs the root command, records the run and exits with the
// matching status.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := NewRootCommand()
	entry := runlog.NewEntry("", os.Args[1:])
	cmd, err := rootCmd.ExecuteContextC(ctx)
	code := cmdutil.ExitCode(err)
	record(cmd, &entry, err, code)

	if err != nil {
		if jsonOutput {
			_ = output.PrintJSONError(commandPath(cmd), err, code)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		stop()
		os.Exit(code)
	}
}

func record(cmd *cobra.Command, entry *runlog.Entry, err error, code int) {
	if cmd == nil || cmd == cmd.Root() || unlogged[topLevel(cmd)] {
		return
	}
	st := cmdutil.FromCommand(cmd)
	if !st.Config.Audit.Enabled {
		return
	}
	entry.Command = commandPath(cmd)
	entry.Outputs = absolute(st.Outputs)
	if errors.Is(err, context.Canceled) {
		err = errors.New("interrupted")
	}
	entry.Finish(err, code)
	log := runlog.New(st.Config.Audit.Path, true)
	if werr := log.Append(cmd.Context(), *entry); werr != nil {
		cmdutil.Logger().Warn("could not record run", "path", log.Path, "error", werr)
	}
}

func topLevel(cmd *cobra.Command) string {
	for cmd.HasParent() && cmd.Parent().HasParent() {
		cmd = cmd.Parent()
	}
	return cmd.Name()
}

func commandPath(cmd *cobra.Command) string {
	if cmd == nil {
		return "xlpipe"
	}
	return cmd.CommandPath()
}

func absolute(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		out[i] = p
	}
	return out
}
