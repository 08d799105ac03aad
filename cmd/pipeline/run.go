// Package pipeline provides the "xlpipe run" command, which executes a
// YAML workflow of pipeline steps.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/klytics/xlpipe/cmd/cmdutil"
	"github.com/klytics/xlpipe/internal/output"
	pipelinepkg "github.com/klytics/xlpipe/internal/pipeline"
	"github.com/klytics/xlpipe/internal/pipeline/actions"
	"github.com/klytics/xlpipe/internal/watch"
)

// NewCommand returns the run command.
func NewCommand() *cobra.Command {
	var (
		dryRun   bool
		watchFor bool
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run <workflow.yaml>",
		Short: "Execute a multi-step workflow from a YAML file",
		Long: `Runs the steps of a workflow file in order. Each step names an action
(sample, consolidate, automate, crossfile, dashboard, edit) with its input,
output and options. Later steps can refer to earlier outputs with
${{ steps.<id>.output }}; ${{ date.today }} and ${{ env.NAME }} are also
expanded.

A failing step stops the run unless it sets on_failure: skip. --dry-run
resolves every step and prints its output path without running it.

--watch runs the workflow once, then again whenever a workbook, CSV or JSON
file in the workflow directory changes. Files the workflow writes itself do
not trigger a run. Stop with Ctrl+C.`,
		Example: `  xlpipe run monthly.yaml
  xlpipe run monthly.yaml --dry-run --json
  xlpipe run monthly.yaml --watch`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := pipelinepkg.Load(args[0])
			if err != nil {
				return fmt.Errorf("%w: %v", cmdutil.ErrUsage, err)
			}
			if watchFor && dryRun {
				return fmt.Errorf("%w: --watch and --dry-run cannot be combined", cmdutil.ErrUsage)
			}

			if !watchFor {
				results, runErr := runOnce(cmd.Context(), cmd, w, dryRun)
				if runErr != nil && cmdutil.JSON(cmd) {
					return runErr
				}
				if err := report(cmd, w, results, dryRun, runErr); err != nil {
					return err
				}
				return runErr
			}

			// Files written by a run, and the window it ran in, are ignored
			// so a run never triggers the next one.
			written := map[string]bool{}
			var runStart, runEnd time.Time
			handler := func(ctx context.Context, _ []string) error {
				runStart = time.Now()
				results, runErr := runOnce(ctx, cmd, w, false)
				runEnd = time.Now()
				for _, r := range results {
					if abs, err := filepath.Abs(r.Output); err == nil && r.Output != "" {
						written[abs] = true
					}
				}
				if err := report(cmd, w, results, false, runErr); err != nil {
					return err
				}
				return runErr
			}

			watcher, err := watch.New([]string{w.Dir}, debounce, cmdutil.Logger())
			if err != nil {
				return err
			}
			watcher.Ignore = func(path string) bool {
				if written[path] {
					return true
				}
				info, err := os.Stat(path)
				if err != nil {
					return true
				}
				mod := info.ModTime()
				return !mod.Before(runStart) && !mod.After(runEnd)
			}

			if err := handler(cmd.Context(), nil); err != nil {
				output.Warn(cmd.ErrOrStderr(), "initial run failed: %v", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s for changes (Ctrl+C to stop)\n", w.Dir)
			return watcher.Run(cmd.Context(), handler)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Resolve steps and print outputs without running them")
	cmd.Flags().BoolVarP(&watchFor, "watch", "w", false, "Re-run whenever input tables in the workflow directory change")
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "Quiet period before a --watch re-run")
	return cmd
}

func runOnce(ctx context.Context, cmd *cobra.Command, w *pipelinepkg.Workflow, dryRun bool) ([]pipelinepkg.StepResult, error) {
	cfg := cmdutil.Config(cmd)
	exec := pipelinepkg.NewExecutor(cmdutil.Logger())
	exec.SetDryRun(dryRun)
	actions.RegisterAll(exec, actions.Defaults{
		Seed:     cfg.Sample.Seed,
		Fallback: cfg.Sample.Fallback,
		Logger:   cmdutil.Logger(),
	})

	results, err := exec.Run(ctx, w)
	if !dryRun {
		for _, r := range results {
			if r.Error == nil && r.Output != "" {
				cmdutil.Record(cmd, r.Output)
			}
		}
	}
	return results, err
}

func report(cmd *cobra.Command, w *pipelinepkg.Workflow, results []pipelinepkg.StepResult, dryRun bool, runErr error) error {
	return cmdutil.Emit(cmd, map[string]any{"workflow": w.Name, "dryRun": dryRun, "steps": results}, func() {
		out := cmd.OutOrStdout()
		output.Heading(out, "Workflow %s", w.Name)
		for _, r := range results {
			switch {
			case r.Error != nil && r.Skipped:
				output.Warn(out, "%-16s %-12s skipped: %s", r.StepID, r.Action, r.Message)
			case r.Error != nil:
				fmt.Fprintf(out, "  %-16s %-12s FAILED: %s\n", r.StepID, r.Action, r.Message)
			case r.DryRun:
				fmt.Fprintf(out, "  %-16s %-12s would write %s\n", r.StepID, r.Action, r.Output)
			default:
				fmt.Fprintf(out, "  %-16s %-12s %s (%dms)\n", r.StepID, r.Action, r.Output, r.DurationMs)
			}
		}
		if runErr == nil {
			output.Success(out, "%d steps finished", len(results))
		}
	})
}
