// Package actions binds the spreadsheet pipelines to workflow steps.
package actions

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klytics/xlpipe/internal/analysis"
	"github.com/klytics/xlpipe/internal/consolidate"
	"github.com/klytics/xlpipe/internal/dashboard"
	"github.com/klytics/xlpipe/internal/pipeline"
	"github.com/klytics/xlpipe/internal/report"
	"github.com/klytics/xlpipe/internal/sample"
)

// Defaults carry the configured values steps fall back on.
type Defaults struct {
	Seed int64
	// Fallback generates sample inputs when a step finds none.
	Fallback bool
	Logger   *slog.Logger
}

// Names lists the registered actions.
var Names = []string{"sample", "consolidate", "automate", "crossfile", "dashboard", "edit"}

// RegisterAll registers every pipeline action with exec.
func RegisterAll(exec *pipeline.Executor, d Defaults) {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	exec.RegisterAction("sample", d.Sample)
	exec.RegisterAction("consolidate", d.Consolidate)
	exec.RegisterAction("automate", d.suite(analysis.Automation))
	exec.RegisterAction("crossfile", d.suite(analysis.CrossFile))
	exec.RegisterAction("dashboard", d.Dashboard)
	exec.RegisterAction("edit", d.Edit)
}

// Sample writes a scenario's demo inputs into the step's output (or input)
// directory and returns that directory.
func (d Defaults) Sample(_ context.Context, step pipeline.Step) (string, error) {
	dir := step.Path(firstNonEmpty(step.Output, step.Input, "."))
	seed, err := step.IntOption("seed", d.Seed)
	if err != nil {
		return "", err
	}
	scenario := step.Option("scenario", "")
	if scenario == "" {
		return "", fmt.Errorf("sample requires options.scenario (one of %s)", strings.Join(sample.Scenarios, ", "))
	}
	paths, err := sample.Generate(scenario, dir, seed)
	if err != nil {
		return "", err
	}
	d.Logger.Debug("samples written", "scenario", scenario, "files", len(paths))
	return dir, nil
}

// Consolidate merges the files matching the step input pattern and returns
// the consolidated workbook path.
func (d Defaults) Consolidate(ctx context.Context, step pipeline.Step) (string, error) {
	fallback, err := step.BoolOption("sample", d.Fallback)
	if err != nil {
		return "", err
	}
	pattern := step.Input
	if pattern == "" {
		pattern = consolidate.DefaultPattern
	}
	if isDir(step.Path(pattern)) {
		pattern = filepath.Join(pattern, consolidate.DefaultPattern)
	}
	opts := consolidate.Options{
		Pattern:         step.Path(pattern),
		Output:          step.Path(step.Output),
		Summary:         step.Path(step.Option("summary", "")),
		Sheet:           step.Sheet,
		SampleIfMissing: fallback,
		Seed:            d.Seed,
		Logger:          d.Logger,
	}
	if opts.Output == "" {
		opts.Output = filepath.Join(filepath.Dir(opts.Pattern), consolidate.DefaultOutput)
	}
	if opts.Summary == "" {
		opts.Summary = filepath.Join(filepath.Dir(opts.Output), consolidate.DefaultSummary)
	}
	res, err := consolidate.Run(ctx, opts)
	if err != nil {
		return "", err
	}
	return res.Consolidated.Path, nil
}

func (d Defaults) suite(s analysis.Suite) pipeline.ActionFunc {
	return func(ctx context.Context, step pipeline.Step) (string, error) {
		engine, err := analysis.ParseEngine(step.Option("engine", string(analysis.SQLite)))
		if err != nil {
			return "", err
		}
		fallback, err := step.BoolOption("sample", d.Fallback)
		if err != nil {
			return "", err
		}
		res, err := analysis.Run(ctx, s, analysis.Options{
			Dir:             step.Path(firstNonEmpty(step.Input, ".")),
			Engine:          engine,
			DBPath:          step.Path(step.Option("db", "")),
			Output:          step.Path(step.Output),
			Sheet:           step.Sheet,
			SampleIfMissing: fallback,
			Seed:            d.Seed,
			Logger:          d.Logger,
		})
		if err != nil {
			return "", err
		}
		if n := res.Failed(); n > 0 {
			d.Logger.Warn("some analyses failed", "suite", s.Name, "failed", n)
		}
		if res.Report == nil {
			return "", nil
		}
		return res.Report.Path, nil
	}
}

// Dashboard builds the sales dashboard and returns its path.
func (d Defaults) Dashboard(ctx context.Context, step pipeline.Step) (string, error) {
	fallback, err := step.BoolOption("sample", d.Fallback)
	if err != nil {
		return "", err
	}
	input := step.Path(firstNonEmpty(step.Input, dashboard.DefaultInput))
	output := step.Path(step.Output)
	if output == "" {
		output = filepath.Join(filepath.Dir(input), dashboard.DefaultOutput)
	}
	res, err := dashboard.Run(ctx, dashboard.Options{
		Input:           input,
		Output:          output,
		Sheet:           step.Sheet,
		SampleIfMissing: fallback,
		Seed:            d.Seed,
		Logger:          d.Logger,
	})
	if err != nil {
		return "", err
	}
	return res.Report.Path, nil
}

// Edit changes one sheet of the input workbook in place and returns the
// workbook path. The change comes from step.set, options.append or
// options.replace.
func (d Defaults) Edit(_ context.Context, step pipeline.Step) (string, error) {
	if step.Input == "" {
		return "", fmt.Errorf("edit requires an input workbook")
	}
	path := step.Path(step.Input)
	res, err := report.Apply(path, report.Edit{
		Sheet:     step.Sheet,
		Set:       step.Set,
		Append:    step.Path(step.Option("append", "")),
		Replace:   step.Path(step.Option("replace", "")),
		FromSheet: step.Option("from_sheet", ""),
	})
	if err != nil {
		return "", err
	}
	d.Logger.Debug("sheet edited", "path", path, "sheet", res.Sheet, "mode", res.Mode)
	return path, nil
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
