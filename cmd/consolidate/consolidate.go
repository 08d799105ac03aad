// Package consolidate provides the "xlpipe consolidate" command.
package consolidate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/klytics/xlpipe/cmd/cmdutil"
	consolidatepkg "github.com/klytics/xlpipe/internal/consolidate"
	"github.com/klytics/xlpipe/internal/output"
	"github.com/klytics/xlpipe/internal/progress"
	"github.com/klytics/xlpipe/internal/report"
)

// NewCommand returns the consolidate command.
func NewCommand() *cobra.Command {
	var (
		outPath  string
		summary  string
		sheet    string
		noSample bool
		seed     int64
	)

	cmd := &cobra.Command{
		Use:   "consolidate [pattern]",
		Short: "Merge same-shaped workbooks into one sheet with summaries",
		Long: `Reads every file matching the pattern (default sales_*.xlsx in input.dir),
tags each row with its Source_File, and writes the merged table plus a
summary workbook (totals, By Product, By Region, By Month).

Unreadable files are skipped with a warning. When nothing matches, monthly
sample files are generated first unless --no-sample is given.`,
		Example: `  xlpipe consolidate
  xlpipe consolidate 'exports/2024-*.csv' -o year.xlsx`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := cmdutil.Config(cmd)
			opts := consolidatepkg.Options{
				Pattern:         cmdutil.InputPath(cmd, consolidatepkg.DefaultPattern),
				Output:          outPath,
				Summary:         summary,
				Sheet:           cmdutil.Sheet(cmd, sheet),
				SampleIfMissing: cfg.Sample.Fallback && !noSample,
				Seed:            cmdutil.SeedFlag(cmd, seed),
				Logger:          cmdutil.Logger(),
			}
			if len(args) == 1 {
				opts.Pattern = args[0]
			}
			if opts.Output == "" {
				opts.Output = cmdutil.OutputPath(cmd, consolidatepkg.DefaultOutput)
			}
			if opts.Summary == "" {
				opts.Summary = cmdutil.OutputPath(cmd, consolidatepkg.DefaultSummary)
			}

			spin := progress.NewSpinner("Consolidating " + opts.Pattern)
			spin.Start()
			res, err := consolidatepkg.Run(cmd.Context(), opts)
			spin.Stop("consolidated")
			if err != nil {
				return err
			}
			cmdutil.Record(cmd, res.Generated...)
			cmdutil.Record(cmd, res.Consolidated.Path, res.SummaryReport.Path)

			return cmdutil.Emit(cmd, res, func() {
				w := cmd.OutOrStdout()
				if len(res.Generated) > 0 {
					output.Warn(w, "No inputs matched; generated %d sample files", len(res.Generated))
				}
				for _, f := range res.Files {
					fmt.Fprintf(w, "  loaded  %-32s %6d rows\n", f.Name, f.Rows)
				}
				for _, warn := range res.Warnings {
					output.Warn(w, "  skipped %s: %v", warn.Path, warn.Err)
				}
				fmt.Fprintln(w)
				q := res.Quality
				fmt.Fprintf(w, "Records: %d from %d files, %d missing values\n", q.Records, q.Sources, q.MissingValues)
				if q.DateFrom != "" {
					fmt.Fprintf(w, "Dates:   %s to %s\n", q.DateFrom, q.DateTo)
				}
				fmt.Fprintln(w)
				printReport(cmd, res.Consolidated)
				printReport(cmd, res.SummaryReport)
			})
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Consolidated workbook (default consolidated_sales.xlsx in output.dir)")
	cmd.Flags().StringVar(&summary, "summary", "", "Summary workbook (default consolidation_summary.xlsx in output.dir)")
	cmd.Flags().StringVar(&sheet, "sheet", "", "Sheet to read from each workbook (default first sheet)")
	cmd.Flags().BoolVar(&noSample, "no-sample", false, "Fail instead of generating sample inputs")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Seed for generated sample data")
	return cmd
}

func printReport(cmd *cobra.Command, r *report.Result) {
	w := cmd.OutOrStdout()
	output.Success(w, "Wrote %s", r.Path)
	for _, s := range r.Sheets {
		fmt.Fprintf(w, "  %-24s %6d rows  %3d columns\n", s.Name, s.Rows, s.Columns)
	}
}
