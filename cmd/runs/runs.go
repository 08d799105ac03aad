// Package runs provides the "xlpipe runs" commands for reviewing the run log.
package runs

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/klytics/xlpipe/cmd/cmdutil"
	"github.com/klytics/xlpipe/internal/output"
	"github.com/klytics/xlpipe/internal/runlog"
)

// NewCommand creates the "runs" command with all subcommands.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Review past pipeline runs",
		Long:  "Every pipeline command appends a record with its run ID, exit code and output files to the run log.",
	}

	cmd.AddCommand(newLogCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newClearCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}

func logPath(cmd *cobra.Command) string {
	return cmdutil.Config(cmd).Audit.Path
}

func parseDate(flag, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid --%s date %q (use YYYY-MM-DD)", cmdutil.ErrUsage, flag, value)
	}
	return t, nil
}

func newLogCmd() *cobra.Command {
	var (
		last    int
		command string
		since   string
		until   string
		failed  bool
	)

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := logPath(cmd)
			entries, err := runlog.ReadEntries(path)
			if err != nil {
				return err
			}

			f := runlog.Filter{Command: command, FailedOnly: failed}
			if f.Since, err = parseDate("since", since); err != nil {
				return err
			}
			if f.Until, err = parseDate("until", until); err != nil {
				return err
			}
			if !f.Until.IsZero() {
				// Include the whole --until day.
				f.Until = f.Until.Add(24*time.Hour - time.Nanosecond)
			}
			filtered := runlog.Last(runlog.FilterEntries(entries, f), last)

			return cmdutil.Emit(cmd, filtered, func() {
				w := cmd.OutOrStdout()
				if len(filtered) == 0 {
					fmt.Fprintln(w, "No runs recorded.")
					return
				}

				output.Heading(w, "Run log (%d entries)", len(filtered))
				fmt.Fprintf(w, "File: %s\n\n", path)

				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintf(tw, "RUN\tTIMESTAMP\tCOMMAND\tDURATION\tEXIT\tOUTPUTS\n")
				for _, e := range filtered {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\n",
						shortID(e.RunID), e.Timestamp.Local().Format("2006-01-02 15:04:05"),
						e.Command, formatDuration(e.DurationMs), e.ExitCode, len(e.Outputs))
				}
				tw.Flush()
			})
		},
	}

	cmd.Flags().IntVar(&last, "last", 20, "Show last N entries (0 = all)")
	cmd.Flags().StringVar(&command, "command", "", "Filter by command name")
	cmd.Flags().StringVar(&since, "since", "", "Only runs on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&until, "until", "", "Only runs on or before this date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&failed, "failed", false, "Only runs that exited non-zero")
	return cmd
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run in full",
		Long:  "Shows a run's arguments, outputs and error. A unique prefix of the run ID is enough.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := runlog.ReadEntries(logPath(cmd))
			if err != nil {
				return err
			}
			matches := runlog.FilterEntries(entries, runlog.Filter{RunID: args[0]})
			switch len(matches) {
			case 0:
				return fmt.Errorf("%w: no run matches %q", cmdutil.ErrUsage, args[0])
			case 1:
			default:
				return fmt.Errorf("%w: %d runs match %q, give more of the ID", cmdutil.ErrUsage, len(matches), args[0])
			}
			e := matches[0]

			return cmdutil.Emit(cmd, e, func() {
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "Run:       %s\n", e.RunID)
				fmt.Fprintf(w, "Time:      %s\n", e.Timestamp.Local().Format(time.RFC3339))
				fmt.Fprintf(w, "Machine:   %s\n", e.Machine)
				fmt.Fprintf(w, "Command:   %s %s\n", e.Command, strings.Join(e.Args, " "))
				fmt.Fprintf(w, "Duration:  %s\n", formatDuration(e.DurationMs))
				fmt.Fprintf(w, "Exit code: %d\n", e.ExitCode)
				if e.Error != "" {
					fmt.Fprintf(w, "Error:     %s\n", e.Error)
				}
				if len(e.Outputs) > 0 {
					fmt.Fprintln(w, "Outputs:")
					for _, o := range e.Outputs {
						fmt.Fprintf(w, "  %s\n", o)
					}
				}
			})
		},
	}
}

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear the run log",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := logPath(cmd)
			if err := runlog.Clear(path); err != nil {
				return err
			}
			return cmdutil.Emit(cmd, map[string]string{"cleared": path}, func() {
				output.Success(cmd.OutOrStdout(), "Run log cleared: %s", path)
			})
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show run log path, size and entry count",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := cmdutil.Config(cmd)
			path := logPath(cmd)
			size := runlog.Size(path)
			entries, err := runlog.ReadEntries(path)
			if err != nil {
				return err
			}

			return cmdutil.Emit(cmd, map[string]any{
				"path":    path,
				"enabled": cfg.Audit.Enabled,
				"size":    size,
				"entries": len(entries),
			}, func() {
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "Run log:   %s\n", path)
				fmt.Fprintf(w, "Enabled:   %t\n", cfg.Audit.Enabled)
				if size == 0 {
					fmt.Fprintln(w, "Size:      empty (no entries)")
				} else {
					fmt.Fprintf(w, "Size:      %s\n", formatSize(size))
				}
				fmt.Fprintf(w, "Entries:   %d\n", len(entries))
			})
		},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatDuration(ms int64) string {
	if ms >= 1000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	return fmt.Sprintf("%dms", ms)
}

func formatSize(bytes int64) string {
	if bytes < 1024 {
		return fmt.Sprintf("%d B", bytes)
	}
	if bytes < 1024*1024 {
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	}
	return fmt.Sprintf("%.1f MB", float64(bytes)/(1024*1024))
}
