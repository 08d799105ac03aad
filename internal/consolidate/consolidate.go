// Package consolidate merges a batch of monthly sales workbooks into one
// table and writes the consolidated data and a summary workbook.
package consolidate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/klytics/xlpipe/internal/aggregate"
	"github.com/klytics/xlpipe/internal/merge"
	"github.com/klytics/xlpipe/internal/report"
	"github.com/klytics/xlpipe/internal/sample"
	"github.com/klytics/xlpipe/internal/source"
	"github.com/klytics/xlpipe/internal/table"
)

// ErrNothingToConsolidate is returned when no input file could be loaded.
var ErrNothingToConsolidate = errors.New("no readable input files to consolidate")

// Default locations, relative to the working directory.
const (
	DefaultPattern = "sales_*.xlsx"
	DefaultOutput  = "consolidated_sales.xlsx"
	DefaultSummary = "consolidation_summary.xlsx"
)

// Options configures a consolidation run.
type Options struct {
	Pattern string
	Output  string
	Summary string
	Sheet   string
	// SampleIfMissing generates monthly sample files next to the pattern
	// when it matches nothing.
	SampleIfMissing bool
	Seed            int64
	Logger          *slog.Logger
}

func (o *Options) defaults() {
	if o.Pattern == "" {
		o.Pattern = DefaultPattern
	}
	if o.Output == "" {
		o.Output = DefaultOutput
	}
	if o.Summary == "" {
		o.Summary = DefaultSummary
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Result is the outcome of a consolidation run.
type Result struct {
	Generated     []string         `json:"generated,omitempty"`
	Files         []source.File    `json:"files"`
	Warnings      []source.Warning `json:"warnings,omitempty"`
	Quality       merge.Summary    `json:"quality"`
	Consolidated  *report.Result   `json:"consolidated"`
	SummaryReport *report.Result   `json:"summary"`
	Table         *table.Table     `json:"-"`
}

// Run discovers, loads, merges and writes. Files that fail to load are
// skipped with a warning; only an empty batch is an error.
func Run(ctx context.Context, opts Options) (*Result, error) {
	opts.defaults()
	log := opts.Logger
	res := &Result{}

	loaded, err := source.LoadPattern(opts.Pattern, source.Options{Sheet: opts.Sheet, Logger: log})
	if errors.Is(err, source.ErrNoMatches) && opts.SampleIfMissing {
		dir := filepath.Dir(opts.Pattern)
		log.Info("no input files found, generating samples", "pattern", opts.Pattern, "dir", dir)
		res.Generated, err = sample.SalesMonths(dir, opts.Seed)
		if err != nil {
			return nil, err
		}
		loaded = source.Load(res.Generated, source.Options{Sheet: opts.Sheet, Logger: log})
	} else if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res.Files = loaded.Files
	res.Warnings = loaded.Warnings
	if len(res.Files) == 0 {
		return res, fmt.Errorf("%w (%d skipped)", ErrNothingToConsolidate, len(res.Warnings))
	}

	inputs := make([]merge.Input, len(res.Files))
	for i, f := range res.Files {
		inputs[i] = merge.Input{Source: f.Name, Table: f.Table}
	}
	merged := merge.Merge(inputs)
	res.Quality = merge.Summarize(merged, "Date")

	if merged.Has("Date") {
		if merged, err = merged.Sort(table.Asc("Date")); err != nil {
			return nil, err
		}
	}
	res.Table = merged

	res.Consolidated, err = report.Write(opts.Output, []report.Section{{Name: "Consolidated", Table: merged}})
	if err != nil {
		return res, err
	}
	log.Debug("wrote consolidated workbook", "path", opts.Output, "rows", merged.Len())

	sections, err := Summaries(merged)
	if err != nil {
		return res, err
	}
	res.SummaryReport, err = report.Write(opts.Summary, sections)
	if err != nil {
		return res, err
	}
	return res, nil
}

// Summaries builds the summary workbook's sheets. Breakdowns whose source
// columns are missing are left out.
func Summaries(t *table.Table) ([]report.Section, error) {
	sections := []report.Section{{Name: "Summary", Table: overview(t)}}

	for _, by := range []struct{ sheet, key string }{
		{"By Product", "Product"},
		{"By Region", "Region"},
	} {
		if !t.Has(by.key, "Revenue") {
			continue
		}
		var reds []aggregate.Reduction
		if t.Has("Units") {
			reds = append(reds, aggregate.Of(aggregate.Sum, "Units", ""))
		}
		reds = append(reds, aggregate.Of(aggregate.Sum, "Revenue", ""))
		out, err := aggregate.GroupBy(t, aggregate.Spec{Keys: []string{by.key}, Reductions: reds, SortBy: "Revenue"})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", by.sheet, err)
		}
		if out, err = roundColumn(out, "Revenue"); err != nil {
			return nil, err
		}
		sections = append(sections, report.Section{Name: by.sheet, Table: out})
	}

	if col, ok := t.Column("Date"); ok && col.Kind == table.Date && t.Has("Revenue") {
		withMonth, err := t.WithColumn("Month", func(r table.Record) any {
			d, ok := r.Time("Date")
			if !ok {
				return nil
			}
			return d.Format("2006-01")
		})
		if err != nil {
			return nil, err
		}
		reds := []aggregate.Reduction{aggregate.Of(aggregate.Sum, "Revenue", "")}
		if t.Has("Units") {
			reds = append(reds, aggregate.Of(aggregate.Sum, "Units", ""))
		}
		out, err := aggregate.GroupBy(withMonth, aggregate.Spec{
			Keys: []string{"Month"}, Reductions: reds, SortBy: "Month", Ascending: true,
		})
		if err != nil {
			return nil, fmt.Errorf("By Month: %w", err)
		}
		if out, err = roundColumn(out, "Revenue"); err != nil {
			return nil, err
		}
		sections = append(sections, report.Section{Name: "By Month", Table: out})
	}
	return sections, nil
}

func overview(t *table.Table) *table.Table {
	q := merge.Summarize(t, "Date")
	var dateRange any
	if q.DateFrom != "" {
		dateRange = q.DateFrom + " to " + q.DateTo
	}
	return report.Metrics(
		report.Metric{Name: "Total Records", Value: t.Len()},
		report.Metric{Name: "Source Files", Value: q.Sources},
		report.Metric{Name: "Total Revenue", Value: report.Currency(total(t, "Revenue", aggregate.Sum))},
		report.Metric{Name: "Average Revenue per Transaction", Value: report.Currency(total(t, "Revenue", aggregate.Mean))},
		report.Metric{Name: "Total Units", Value: total(t, "Units", aggregate.Sum)},
		report.Metric{Name: "Date Range", Value: dateRange},
		report.Metric{Name: "Unique Products", Value: distinct(t, "Product")},
		report.Metric{Name: "Unique Regions", Value: distinct(t, "Region")},
	)
}

// total returns a rounded global reduction, or nil when the column is
// missing or not numeric.
func total(t *table.Table, column string, f aggregate.Func) any {
	if !t.Has(column) {
		return nil
	}
	out, err := aggregate.GroupBy(t, aggregate.Spec{Reductions: []aggregate.Reduction{aggregate.Of(f, column, "v")}})
	if err != nil {
		return nil
	}
	v := out.Value(0, "v")
	if fv, ok := v.(float64); ok {
		return table.Round(fv, 2)
	}
	return v
}

func distinct(t *table.Table, column string) any {
	vals, err := aggregate.Distinct(t, column)
	if err != nil {
		return nil
	}
	return len(vals)
}

func roundColumn(t *table.Table, column string) (*table.Table, error) {
	return t.WithColumn(column, func(r table.Record) any {
		if f, ok := r.Get(column).(float64); ok {
			return table.Round(f, 2)
		}
		return r.Get(column)
	})
}
