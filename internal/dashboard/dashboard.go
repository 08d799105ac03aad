// Package dashboard turns a transaction log into an eight-sheet sales
// dashboard workbook and a handful of headline insights.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/klytics/xlpipe/internal/aggregate"
	"github.com/klytics/xlpipe/internal/report"
	"github.com/klytics/xlpipe/internal/sample"
	"github.com/klytics/xlpipe/internal/source"
	"github.com/klytics/xlpipe/internal/table"
)

const (
	DefaultInput  = "raw_sales_data.xlsx"
	DefaultOutput = "sales_dashboard.xlsx"
	// TopCustomers is the length of the Top_Customers sheet.
	TopCustomers = 20
)

// Columns the transaction log must have.
var Required = []string{
	"Transaction_ID", "Date", "Product", "Region", "Sales_Rep", "Customer",
	"Units", "Total_Sale", "Discount_Amount",
}

// ErrNoDates is returned when the Date column holds no dates.
var ErrNoDates = errors.New("no dates in the Date column")

// DefaultStart is the first timestamp of generated sample data.
var DefaultStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Options configures a dashboard run.
type Options struct {
	Input           string
	Output          string
	Sheet           string
	SampleIfMissing bool
	Seed            int64
	Start           time.Time
	Logger          *slog.Logger
}

// Ranked is one entry of a top-N insight.
type Ranked struct {
	Name         string  `json:"name"`
	Revenue      float64 `json:"revenue"`
	Share        float64 `json:"share"`
	Transactions int64   `json:"transactions"`
}

// Insights are the headline figures printed after a run.
type Insights struct {
	TotalRevenue float64  `json:"totalRevenue"`
	Transactions int      `json:"transactions"`
	Units        float64  `json:"units"`
	GrowthRate   float64  `json:"growthRate"`
	TopProducts  []Ranked `json:"topProducts"`
	TopRegions   []Ranked `json:"topRegions"`
	TopRep       *Ranked  `json:"topRep,omitempty"`
}

// Result is the outcome of a dashboard run.
type Result struct {
	Generated string         `json:"generated,omitempty"`
	Input     string         `json:"input"`
	Rows      int            `json:"rows"`
	Report    *report.Result `json:"report"`
	Insights  Insights       `json:"insights"`
}

// Run loads the transaction log, builds every sheet and writes the
// dashboard.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Input == "" {
		opts.Input = DefaultInput
	}
	if opts.Output == "" {
		opts.Output = DefaultOutput
	}
	if opts.Start.IsZero() {
		opts.Start = DefaultStart
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	res := &Result{Input: opts.Input}

	if _, err := os.Stat(opts.Input); errors.Is(err, os.ErrNotExist) && opts.SampleIfMissing {
		log.Info("input not found, generating sample data", "input", opts.Input)
		p, err := sample.Dashboard(filepath.Dir(opts.Input), opts.Seed, opts.Start)
		if err != nil {
			return nil, err
		}
		res.Generated, res.Input = p, p
	}

	t, err := source.ReadFile(res.Input, opts.Sheet)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res.Rows = t.Len()
	log.Debug("loaded transactions", "input", res.Input, "rows", t.Len())

	sections, insights, err := Build(t)
	if err != nil {
		return nil, err
	}
	res.Insights = insights
	if res.Report, err = report.Write(opts.Output, sections); err != nil {
		return nil, err
	}
	return res, nil
}

// Build computes the dashboard sheets in workbook order.
func Build(t *table.Table) ([]report.Section, Insights, error) {
	var ins Insights
	if err := t.Require(Required...); err != nil {
		return nil, ins, err
	}
	if col, _ := t.Column("Date"); col.Kind != table.Date && t.Len() > 0 {
		return nil, ins, ErrNoDates
	}

	summary, ins, err := executiveSummary(t)
	if err != nil {
		return nil, ins, err
	}
	products, err := productPerformance(t)
	if err != nil {
		return nil, ins, err
	}
	regions, err := regionalAnalysis(t)
	if err != nil {
		return nil, ins, err
	}
	reps, err := repPerformance(t)
	if err != nil {
		return nil, ins, err
	}
	customers, err := topCustomers(t)
	if err != nil {
		return nil, ins, err
	}
	monthly, err := trend(t, "Month", monthOf, true)
	if err != nil {
		return nil, ins, err
	}
	weekly, err := trend(t, "Week", weekOf, false)
	if err != nil {
		return nil, ins, err
	}
	daily, err := trend(t, "Date", dayOf, false)
	if err != nil {
		return nil, ins, err
	}

	ins.TopProducts = ranked(products, "Product", 3)
	ins.TopRegions = ranked(regions, "Region", 3)
	if top := ranked(reps, "Sales_Rep", 1); len(top) > 0 {
		ins.TopRep = &top[0]
	}

	return []report.Section{
		{Name: "Executive_Summary", Table: summary},
		{Name: "Product_Performance", Table: products},
		{Name: "Regional_Analysis", Table: regions},
		{Name: "Sales_Rep_Performance", Table: reps},
		{Name: "Top_Customers", Table: customers},
		{Name: "Monthly_Trends", Table: monthly},
		{Name: "Weekly_Trends", Table: weekly},
		{Name: "Daily_Trends", Table: daily},
	}, ins, nil
}

func executiveSummary(t *table.Table) (*table.Table, Insights, error) {
	totals, err := aggregate.GroupBy(t, aggregate.Spec{Reductions: []aggregate.Reduction{
		aggregate.Of(aggregate.Sum, "Total_Sale", "revenue"),
		aggregate.Of(aggregate.Mean, "Total_Sale", "mean"),
		aggregate.Of(aggregate.Sum, "Units", "units"),
		aggregate.Of(aggregate.Min, "Date", "from"),
		aggregate.Of(aggregate.Max, "Date", "to"),
		aggregate.Of(aggregate.NUniq, "Product", "products"),
		aggregate.Of(aggregate.NUniq, "Region", "regions"),
		aggregate.Of(aggregate.NUniq, "Sales_Rep", "reps"),
		aggregate.Of(aggregate.NUniq, "Customer", "customers"),
	}})
	if err != nil {
		return nil, Insights{}, err
	}
	r := totals.Record(0)
	ins := Insights{Transactions: t.Len()}
	ins.TotalRevenue, _ = r.Float("revenue")
	ins.Units, _ = r.Float("units")

	var period any
	from, okFrom := r.Time("from")
	to, okTo := r.Time("to")
	if okFrom && okTo {
		period = from.Format("2006-01-02") + " to " + to.Format("2006-01-02")
		ins.GrowthRate = growth(t, from.Add(to.Sub(from)/2))
	}

	var mean any
	if f, ok := r.Float("mean"); ok {
		mean = report.Currency(table.Round(f, 2))
	}

	return report.Metrics(
		report.Metric{Name: "Reporting Period", Value: period},
		report.Metric{Name: "Total Revenue", Value: report.Currency(table.Round(ins.TotalRevenue, 2))},
		report.Metric{Name: "Total Transactions", Value: report.FormatNumber(float64(ins.Transactions))},
		report.Metric{Name: "Average Transaction Value", Value: mean},
		report.Metric{Name: "Total Units Sold", Value: report.FormatNumber(ins.Units)},
		report.Metric{Name: "Revenue Growth Rate", Value: fmt.Sprintf("%+.1f%%", ins.GrowthRate)},
		report.Metric{Name: "Unique Products Sold", Value: r.Get("products")},
		report.Metric{Name: "Active Regions", Value: r.Get("regions")},
		report.Metric{Name: "Active Sales Reps", Value: r.Get("reps")},
		report.Metric{Name: "Unique Customers", Value: r.Get("customers")},
	), ins, nil
}

// growth compares revenue on or after mid with revenue before it, as a
// percentage of the earlier half. It is 0 when the earlier half earned
// nothing.
func growth(t *table.Table, mid time.Time) float64 {
	var first, second float64
	for i := 0; i < t.Len(); i++ {
		r := t.Record(i)
		d, ok := r.Time("Date")
		v, okV := r.Float("Total_Sale")
		if !ok || !okV {
			continue
		}
		if d.Before(mid) {
			first += v
		} else {
			second += v
		}
	}
	if first <= 0 {
		return 0
	}
	return (second - first) / first * 100
}

func productPerformance(t *table.Table) (*table.Table, error) {
	out, err := aggregate.GroupBy(t, aggregate.Spec{
		Keys: []string{"Product"},
		Reductions: []aggregate.Reduction{
			aggregate.Of(aggregate.Count, "Transaction_ID", "Transactions"),
			aggregate.Of(aggregate.Sum, "Units", "Units_Sold"),
			aggregate.Of(aggregate.Sum, "Total_Sale", "Revenue"),
			aggregate.Of(aggregate.Sum, "Discount_Amount", "Total_Discounts"),
		},
	})
	if err != nil {
		return nil, err
	}
	if out, err = aggregate.Ratio(out, "Revenue", "Transactions", "Avg_Transaction"); err != nil {
		return nil, err
	}
	if out, err = out.WithColumn("Discount_%", func(r table.Record) any {
		rev, _ := r.Float("Revenue")
		disc, _ := r.Float("Total_Discounts")
		if pct, ok := table.SafeDiv(disc, rev+disc).(float64); ok {
			return pct * 100
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return finish(out, "Revenue", "Revenue", "Total_Discounts", "Avg_Transaction", "Discount_%")
}

func regionalAnalysis(t *table.Table) (*table.Table, error) {
	out, err := aggregate.GroupBy(t, aggregate.Spec{
		Keys: []string{"Region"},
		Reductions: []aggregate.Reduction{
			aggregate.Of(aggregate.Count, "Transaction_ID", "Transactions"),
			aggregate.Of(aggregate.Sum, "Units", "Units_Sold"),
			aggregate.Of(aggregate.Sum, "Total_Sale", "Revenue"),
		},
	})
	if err != nil {
		return nil, err
	}
	if out, err = aggregate.Ratio(out, "Revenue", "Transactions", "Avg_Transaction"); err != nil {
		return nil, err
	}
	return finish(out, "Revenue", "Revenue", "Avg_Transaction")
}

func repPerformance(t *table.Table) (*table.Table, error) {
	out, err := aggregate.GroupBy(t, aggregate.Spec{
		Keys: []string{"Sales_Rep"},
		Reductions: []aggregate.Reduction{
			aggregate.Of(aggregate.Count, "Transaction_ID", "Transactions"),
			aggregate.Of(aggregate.Sum, "Total_Sale", "Revenue"),
			aggregate.Of(aggregate.NUniq, "Customer", "Unique_Customers"),
		},
	})
	if err != nil {
		return nil, err
	}
	if out, err = aggregate.Ratio(out, "Revenue", "Transactions", "Avg_Transaction"); err != nil {
		return nil, err
	}
	if out, err = aggregate.Ratio(out, "Revenue", "Unique_Customers", "Revenue_per_Customer"); err != nil {
		return nil, err
	}
	if out, err = out.Sort(table.Desc("Revenue")); err != nil {
		return nil, err
	}
	return roundColumns(out, "Revenue", "Avg_Transaction", "Revenue_per_Customer")
}

func topCustomers(t *table.Table) (*table.Table, error) {
	out, err := aggregate.GroupBy(t, aggregate.Spec{
		Keys: []string{"Customer"},
		Reductions: []aggregate.Reduction{
			aggregate.Of(aggregate.Count, "Transaction_ID", "Transactions"),
			aggregate.Of(aggregate.Sum, "Total_Sale", "Total_Revenue"),
			aggregate.Of(aggregate.Sum, "Units", "Total_Units"),
		},
	})
	if err != nil {
		return nil, err
	}
	if out, err = aggregate.Ratio(out, "Total_Revenue", "Transactions", "Avg_Transaction"); err != nil {
		return nil, err
	}
	if out, err = aggregate.Top(out, "Total_Revenue", TopCustomers); err != nil {
		return nil, err
	}
	return roundColumns(out, "Total_Revenue", "Avg_Transaction")
}

// trend groups transactions by a period derived from Date, ascending.
// Monthly trends also sum units.
func trend(t *table.Table, period string, of func(time.Time) any, units bool) (*table.Table, error) {
	src, err := t.WithColumn(period, func(r table.Record) any {
		d, ok := r.Time("Date")
		if !ok {
			return nil
		}
		return of(d)
	})
	if err != nil {
		return nil, err
	}
	reds := []aggregate.Reduction{
		aggregate.Of(aggregate.Count, "Transaction_ID", "Transactions"),
		aggregate.Of(aggregate.Sum, "Total_Sale", "Revenue"),
	}
	if units {
		reds = append(reds, aggregate.Of(aggregate.Sum, "Units", "Units"))
	}
	out, err := aggregate.GroupBy(src, aggregate.Spec{
		Keys: []string{period}, Reductions: reds, SortBy: period, Ascending: true,
	})
	if err != nil {
		return nil, err
	}
	return roundColumns(out, "Revenue")
}

func dayOf(d time.Time) any {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
}

func monthOf(d time.Time) any { return d.Format("2006-01") }

// weekOf labels the Monday-to-Sunday week containing d as "start/end".
func weekOf(d time.Time) any {
	d = dayOf(d).(time.Time)
	start := d.AddDate(0, 0, -((int(d.Weekday()) + 6) % 7))
	return start.Format("2006-01-02") + "/" + start.AddDate(0, 0, 6).Format("2006-01-02")
}

// finish adds Revenue_Share_%, sorts by revenue descending and rounds.
func finish(t *table.Table, revenue string, round ...string) (*table.Table, error) {
	out, err := aggregate.Share(t, revenue, "Revenue_Share_%")
	if err != nil {
		return nil, err
	}
	if out, err = out.Sort(table.Desc(revenue)); err != nil {
		return nil, err
	}
	return roundColumns(out, round...)
}

func roundColumns(t *table.Table, cols ...string) (*table.Table, error) {
	var err error
	for _, c := range cols {
		t, err = t.WithColumn(c, func(r table.Record) any {
			if f, ok := r.Float(c); ok {
				return table.Round(f, 2)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return t, nil
}

// ranked reads the first n rows of a revenue-sorted breakdown.
func ranked(t *table.Table, key string, n int) []Ranked {
	var out []Ranked
	for i := 0; i < t.Len() && i < n; i++ {
		r := t.Record(i)
		rev, _ := r.Float("Revenue")
		share, _ := r.Float("Revenue_Share_%")
		tx, _ := r.Float("Transactions")
		out = append(out, Ranked{Name: r.String(key), Revenue: rev, Share: share, Transactions: int64(tx)})
	}
	return out
}
