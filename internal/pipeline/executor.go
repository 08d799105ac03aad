package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"
)

// ActionFunc runs one step and returns its output, usually the path of the
// file it wrote.
type ActionFunc func(ctx context.Context, step Step) (string, error)

// Executor runs workflow steps in order, resolving ${{ ... }} expressions
// against earlier step outputs.
type Executor struct {
	actions map[string]ActionFunc
	results map[string]*StepResult
	log     *slog.Logger
	dryRun  bool
	now     func() time.Time
}

// NewExecutor creates an executor with no actions registered.
func NewExecutor(log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{
		actions: make(map[string]ActionFunc),
		results: make(map[string]*StepResult),
		log:     log,
		now:     time.Now,
	}
}

// SetDryRun makes Run resolve and report every step without running any.
// A dry-run step's output is its resolved output path, so later
// references still read sensibly.
func (e *Executor) SetDryRun(dryRun bool) {
	e.dryRun = dryRun
}

// RegisterAction adds an action handler.
func (e *Executor) RegisterAction(name string, fn ActionFunc) {
	e.actions[name] = fn
}

// Run executes w. It stops at the first failing step unless that step
// says on_failure: skip.
func (e *Executor) Run(ctx context.Context, w *Workflow) ([]StepResult, error) {
	var results []StepResult
	e.log.Info("running workflow", "name", w.Name, "version", w.Version, "steps", len(w.Steps), "dry_run", e.dryRun)

	for i, step := range w.Steps {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		step.dir = w.Dir
		resolved := e.resolve(step)
		log := e.log.With("step", resolved.ID, "action", resolved.Action)
		log.Debug("step starting", "n", i+1, "of", len(w.Steps))

		action, ok := e.actions[resolved.Action]
		if !ok {
			err := fmt.Errorf("unknown action %q in step %q (registered actions: %s)",
				resolved.Action, resolved.ID, strings.Join(e.actionNames(), ", "))
			res, stop := e.fail(resolved, err, 0)
			results = append(results, res)
			if stop {
				return results, err
			}
			continue
		}

		if e.dryRun {
			res := StepResult{StepID: resolved.ID, Action: resolved.Action, DryRun: true, Output: resolved.Path(resolved.Output)}
			log.Info("dry run", "input", resolved.Path(resolved.Input), "output", res.Output)
			e.results[resolved.ID] = &res
			results = append(results, res)
			continue
		}

		start := e.now()
		out, err := action(ctx, resolved)
		elapsed := e.now().Sub(start)
		if err != nil {
			res, stop := e.fail(resolved, err, elapsed)
			results = append(results, res)
			if stop {
				return results, fmt.Errorf("step %q failed: %w", resolved.ID, err)
			}
			continue
		}

		res := StepResult{StepID: resolved.ID, Action: resolved.Action, Output: out, DurationMs: elapsed.Milliseconds()}
		e.results[resolved.ID] = &res
		results = append(results, res)
		log.Info("step done", "output", out, "duration", elapsed.Round(time.Millisecond))
	}
	return results, nil
}

// fail records a failed step and reports whether the workflow must stop.
func (e *Executor) fail(step Step, err error, elapsed time.Duration) (StepResult, bool) {
	res := StepResult{
		StepID:     step.ID,
		Action:     step.Action,
		Error:      err,
		Message:    err.Error(),
		DurationMs: elapsed.Milliseconds(),
	}
	skip := step.OnFailure == OnFailureSkip
	res.Skipped = skip
	e.results[step.ID] = &res
	if skip {
		e.log.Warn("step failed, skipping", "step", step.ID, "error", err)
	}
	return res, !skip
}

var interpolationPattern = regexp.MustCompile(`\$\{\{\s*([^}]+?)\s*\}\}`)

func (e *Executor) resolve(step Step) Step {
	out := step
	out.Input = e.interpolate(step.Input)
	out.Output = e.interpolate(step.Output)
	out.Sheet = e.interpolate(step.Sheet)
	if step.Set != nil {
		out.Set = make([]string, len(step.Set))
		for i, s := range step.Set {
			out.Set[i] = e.interpolate(s)
		}
	}
	if step.Options != nil {
		out.Options = make(map[string]string, len(step.Options))
		for k, v := range step.Options {
			out.Options[k] = e.interpolate(v)
		}
	}
	return out
}

// interpolate expands steps.<id>.output, date.today, date.now and env.NAME.
// Unknown expressions, and references to steps that have not run, are
// left as written.
func (e *Executor) interpolate(s string) string {
	return interpolationPattern.ReplaceAllStringFunc(s, func(match string) string {
		expr := interpolationPattern.FindStringSubmatch(match)[1]
		switch {
		case strings.HasPrefix(expr, "steps."):
			parts := strings.Split(expr, ".")
			if len(parts) == 3 && parts[2] == "output" {
				if r, ok := e.results[parts[1]]; ok {
					return r.Output
				}
			}
		case expr == "date.today":
			return e.now().Format("2006-01-02")
		case expr == "date.now" || expr == "date.timestamp":
			return e.now().Format(time.RFC3339)
		case strings.HasPrefix(expr, "env."):
			return os.Getenv(strings.TrimPrefix(expr, "env."))
		}
		return match
	})
}

func (e *Executor) actionNames() []string {
	names := make([]string, 0, len(e.actions))
	for name := range e.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
