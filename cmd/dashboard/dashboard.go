// Package dashboard provides the "xlpipe dashboard" command.
package dashboard

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/klytics/xlpipe/cmd/cmdutil"
	dashboardpkg "github.com/klytics/xlpipe/internal/dashboard"
	"github.com/klytics/xlpipe/internal/output"
	"github.com/klytics/xlpipe/internal/progress"
	"github.com/klytics/xlpipe/internal/report"
)

// NewCommand returns the dashboard command.
func NewCommand() *cobra.Command {
	var (
		outPath  string
		sheet    string
		start    string
		noSample bool
		seed     int64
	)

	cmd := &cobra.Command{
		Use:   "dashboard [transactions.xlsx]",
		Short: "Build an eight-sheet sales dashboard from a transaction log",
		Long: `Reads a transaction log (default raw_sales_data.xlsx) and writes
sales_dashboard.xlsx with an executive summary, product, region, sales rep
and top-customer breakdowns, and monthly, weekly and daily trends. Key
insights are printed to the console.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := cmdutil.Config(cmd)
			opts := dashboardpkg.Options{
				Input:           cmdutil.InputPath(cmd, dashboardpkg.DefaultInput),
				Output:          outPath,
				Sheet:           cmdutil.Sheet(cmd, sheet),
				SampleIfMissing: cfg.Sample.Fallback && !noSample,
				Seed:            cmdutil.SeedFlag(cmd, seed),
				Logger:          cmdutil.Logger(),
			}
			if len(args) == 1 {
				opts.Input = args[0]
			}
			if opts.Output == "" {
				opts.Output = cmdutil.OutputPath(cmd, dashboardpkg.DefaultOutput)
			}
			if start != "" {
				t, err := time.Parse("2006-01-02", start)
				if err != nil {
					return fmt.Errorf("%w: --start %q is not YYYY-MM-DD", cmdutil.ErrUsage, start)
				}
				opts.Start = t
			}

			spin := progress.NewSpinner("Building dashboard")
			spin.Start()
			res, err := dashboardpkg.Run(cmd.Context(), opts)
			spin.Stop("dashboard built")
			if err != nil {
				return err
			}
			cmdutil.Record(cmd, res.Generated, res.Report.Path)

			return cmdutil.Emit(cmd, res, func() { printInsights(cmd, res) })
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Dashboard workbook (default sales_dashboard.xlsx in output.dir)")
	cmd.Flags().StringVar(&sheet, "sheet", "", "Sheet holding the transactions")
	cmd.Flags().StringVar(&start, "start", "", "First day of generated sample data (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&noSample, "no-sample", false, "Fail instead of generating sample inputs")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Seed for generated sample data")
	return cmd
}

func printInsights(cmd *cobra.Command, res *dashboardpkg.Result) {
	w := cmd.OutOrStdout()
	ins := res.Insights
	if res.Generated != "" {
		output.Warn(w, "Input not found; generated sample data at %s", res.Generated)
	}
	output.Heading(w, "Key insights")
	fmt.Fprintf(w, "  Total revenue:  %s over %d transactions\n", report.Currency(ins.TotalRevenue), ins.Transactions)
	fmt.Fprintf(w, "  Units sold:     %s\n", report.FormatNumber(ins.Units))
	fmt.Fprintf(w, "  Growth:         %+.1f%% second half vs first half\n", ins.GrowthRate)

	fmt.Fprintln(w, "  Top products:")
	for i, p := range ins.TopProducts {
		fmt.Fprintf(w, "    %d. %-20s %12s  %5.1f%%\n", i+1, p.Name, report.Currency(p.Revenue), p.Share)
	}
	fmt.Fprintln(w, "  Top regions:")
	for i, r := range ins.TopRegions {
		fmt.Fprintf(w, "    %d. %-20s %12s  %5.1f%%\n", i+1, r.Name, report.Currency(r.Revenue), r.Share)
	}
	if ins.TopRep != nil {
		fmt.Fprintf(w, "  Top sales rep:  %s (%s, %d transactions)\n",
			ins.TopRep.Name, report.Currency(ins.TopRep.Revenue), ins.TopRep.Transactions)
	}
	fmt.Fprintln(w)
	output.Success(w, "Wrote %s", res.Report.Path)
	for _, s := range res.Report.Sheets {
		fmt.Fprintf(w, "  %-24s %6d rows\n", s.Name, s.Rows)
	}
}
