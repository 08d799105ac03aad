// Package analyze provides the "xlpipe automate" and "xlpipe crossfile"
// commands, which run a multi-table analysis suite and export the results.
package analyze

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/klytics/xlpipe/cmd/cmdutil"
	"github.com/klytics/xlpipe/internal/analysis"
	"github.com/klytics/xlpipe/internal/output"
	"github.com/klytics/xlpipe/internal/progress"
)

// NewAutomateCommand returns the automate command.
func NewAutomateCommand() *cobra.Command {
	return newSuiteCommand(analysis.Automation, "automate",
		"Run the monthly sales, inventory and customer report",
		`Loads monthly_sales.xlsx, current_inventory.xlsx and customer_list.xlsx
into SQLite, prints top products, reorder alerts, monthly sales by customer
type and inventory efficiency, and writes automated_report.xlsx with the
summary, product performance and reorder sheets.`)
}

// NewCrossFileCommand returns the crossfile command.
func NewCrossFileCommand() *cobra.Command {
	return newSuiteCommand(analysis.CrossFile, "crossfile",
		"Join sales, products, customers and inventory into five analyses",
		`Joins sales.xlsx with products.xlsx, customers.xlsx and inventory.xlsx
and writes cross_file_analysis_results.xlsx with revenue by category, top
customers, inventory alerts, profitability and regional performance. The
priority alerts view is printed to the console only.

--engine memory computes the same results without SQLite.`)
}

func newSuiteCommand(s analysis.Suite, use, short, long string) *cobra.Command {
	var (
		engine   string
		dbPath   string
		outPath  string
		sheet    string
		noSample bool
		seed     int64
		rows     int
	)

	cmd := &cobra.Command{
		Use:   use + " [dir]",
		Short: short,
		Long:  long,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := cmdutil.Config(cmd)
			eng, err := analysis.ParseEngine(engine)
			if err != nil {
				return fmt.Errorf("%w: %v", cmdutil.ErrUsage, err)
			}
			dir := cfg.Input.Dir
			if len(args) == 1 {
				dir = args[0]
			}
			if dbPath == "" && cfg.Store.Keep {
				dbPath = cfg.Store.Path
			}
			if outPath == "" {
				outPath = cmdutil.OutputPath(cmd, s.Output)
			}

			bar := progress.New(s.Name, len(s.Queries))
			res, err := analysis.Run(cmd.Context(), s, analysis.Options{
				Dir:             dir,
				Engine:          eng,
				DBPath:          dbPath,
				Output:          outPath,
				Sheet:           cmdutil.Sheet(cmd, sheet),
				SampleIfMissing: cfg.Sample.Fallback && !noSample,
				Seed:            cmdutil.SeedFlag(cmd, seed),
				Logger:          cmdutil.Logger(),
				Progress:        bar,
			})
			if res != nil {
				bar.Finish(fmt.Sprintf("%d analyses, %d failed", len(res.Results), res.Failed()))
				cmdutil.Record(cmd, res.Generated...)
				if res.Report != nil {
					cmdutil.Record(cmd, res.Report.Path)
				}
				if eng == analysis.SQLite && dbPath != "" {
					cmdutil.Record(cmd, dbPath)
				}
			}
			if err != nil && (cmdutil.JSON(cmd) || !errors.Is(err, analysis.ErrNothingToExport)) {
				return err
			}

			if emitErr := cmdutil.Emit(cmd, res, func() { printResult(cmd, res, rows) }); emitErr != nil {
				return emitErr
			}
			return err
		},
	}

	cmd.Flags().StringVar(&engine, "engine", string(analysis.SQLite), "Query engine: sqlite | memory")
	cmd.Flags().StringVar(&dbPath, "db", "", "Keep the SQLite database at this path (default in-memory)")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Report workbook (default "+s.Output+" in output.dir)")
	cmd.Flags().StringVar(&sheet, "sheet", "", "Sheet to read from each input")
	cmd.Flags().BoolVar(&noSample, "no-sample", false, "Fail instead of generating sample inputs")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Seed for generated sample data")
	cmd.Flags().IntVar(&rows, "rows", 15, "Rows to show per analysis (0 = all)")
	return cmd
}

func printResult(cmd *cobra.Command, res *analysis.Result, rows int) {
	w := cmd.OutOrStdout()
	if len(res.Generated) > 0 {
		output.Warn(w, "No inputs found; generated %d sample files in %s", len(res.Generated), filepath.Dir(res.Generated[0]))
	}
	for _, warn := range res.Warnings {
		output.Warn(w, "Missing input %s: %v", warn.Path, warn.Err)
	}
	fmt.Fprintf(w, "Engine: %s, %d tables loaded\n\n", res.Engine, len(res.Loaded))

	for _, q := range res.Results {
		if q.Err != nil {
			output.Warn(w, "%s: %s\n", q.Title, q.Error)
			continue
		}
		output.PrintTable(w, q.Title, q.Table, rows)
	}

	if res.Report == nil {
		output.Warn(w, "Nothing exported")
		return
	}
	output.Success(w, "Wrote %s", res.Report.Path)
	for _, s := range res.Report.Sheets {
		fmt.Fprintf(w, "  %-24s %6d rows\n", s.Name, s.Rows)
	}
}
