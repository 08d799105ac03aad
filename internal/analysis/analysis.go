// Package analysis runs suites of named analyses over a fixed set of input
// workbooks, either as SQL against a SQLite store or in memory with the
// join and aggregate packages, and exports selected results as a report.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klytics/xlpipe/internal/report"
	"github.com/klytics/xlpipe/internal/source"
	"github.com/klytics/xlpipe/internal/store"
	"github.com/klytics/xlpipe/internal/table"
)

var (
	// ErrNoInputs is returned when none of a suite's input files loaded.
	ErrNoInputs = errors.New("no input files could be loaded")
	// ErrMissingInput marks a query whose input table is not loaded.
	ErrMissingInput = errors.New("input not loaded")
	// ErrNothingToExport is returned when every exported query failed.
	ErrNothingToExport = errors.New("no analysis results to export")
	// ErrUnknownSuite is returned by Lookup for an unregistered suite name.
	ErrUnknownSuite = errors.New("unknown analysis suite")
)

// Engine selects how queries are evaluated.
type Engine string

const (
	SQLite Engine = "sqlite"
	Memory Engine = "memory"
)

// ParseEngine accepts "sqlite" (or "sql") and "memory".
func ParseEngine(s string) (Engine, error) {
	switch strings.ToLower(s) {
	case "", "sqlite", "sql":
		return SQLite, nil
	case "memory", "mem":
		return Memory, nil
	}
	return "", fmt.Errorf("unknown engine %q (want sqlite or memory)", s)
}

// Role is one input table of a suite and the file it is read from.
type Role struct {
	Name string
	File string
}

// Tables maps role names to loaded tables.
type Tables map[string]*table.Table

// Get returns the table for role or ErrMissingInput.
func (ts Tables) Get(role string) (*table.Table, error) {
	t, ok := ts[role]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingInput, role)
	}
	return t, nil
}

// Query is one named analysis. SQL runs on the sqlite engine, Compute on the
// memory engine; both must produce the same columns in the same order.
type Query struct {
	Name     string
	Title    string
	SQL      string
	Compute  func(Tables) (*table.Table, error)
	Requires []string
	// Export writes the result to the suite's report, on a sheet named
	// Sheet or, when empty, SheetTitle(Name).
	Export bool
	Sheet  string
}

func (q Query) sheet() string {
	if q.Sheet != "" {
		return q.Sheet
	}
	return SheetTitle(q.Name)
}

// Suite is a named set of analyses over fixed inputs.
type Suite struct {
	Name    string
	Roles   []Role
	Queries []Query
	// Output is the default report file name.
	Output string
	// Sample writes demo inputs for every role into dir.
	Sample func(dir string, seed int64) ([]string, error)
}

var suites = map[string]Suite{}

func register(s Suite) Suite {
	suites[s.Name] = s
	return s
}

// Lookup returns a registered suite by name.
func Lookup(name string) (Suite, error) {
	s, ok := suites[name]
	if !ok {
		return Suite{}, fmt.Errorf("%w %q", ErrUnknownSuite, name)
	}
	return s, nil
}

// SheetTitle turns an analysis name into a sheet title:
// "revenue_by_category" becomes "Revenue By Category".
func SheetTitle(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool { return r == '_' || r == ' ' })
	for i, w := range words {
		w = strings.ToLower(w)
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Options configures a run.
type Options struct {
	// Dir holds the input files and receives the report by default.
	Dir    string
	Engine Engine
	// DBPath is the SQLite file for the sqlite engine; empty is in-memory.
	DBPath string
	// Output overrides the report path; "-" skips the export.
	Output string
	Sheet  string
	// SampleIfMissing generates demo inputs when none of the role files
	// exist. Existing files are never overwritten.
	SampleIfMissing bool
	Seed            int64
	Logger          *slog.Logger
	// Progress is advanced once per query when set.
	Progress Stepper
}

// Stepper receives one call per finished query.
type Stepper interface {
	Increment(status string)
}

// QueryResult is the outcome of one query.
type QueryResult struct {
	Name   string       `json:"name"`
	Title  string       `json:"title"`
	Export bool         `json:"export"`
	Rows   int          `json:"rows"`
	Error  string       `json:"error,omitempty"`
	Table  *table.Table `json:"-"`
	Err    error        `json:"-"`
}

// Result is the outcome of a suite run.
type Result struct {
	Suite     string           `json:"suite"`
	Engine    Engine           `json:"engine"`
	Generated []string         `json:"generated,omitempty"`
	Loaded    []source.File    `json:"loaded"`
	Warnings  []source.Warning `json:"warnings,omitempty"`
	Results   []QueryResult    `json:"results"`
	Report    *report.Result   `json:"report,omitempty"`
}

// Get returns the named query result, or nil.
func (r *Result) Get(name string) *QueryResult {
	for i := range r.Results {
		if r.Results[i].Name == name {
			return &r.Results[i]
		}
	}
	return nil
}

// Failed counts queries that returned an error.
func (r *Result) Failed() int {
	n := 0
	for _, q := range r.Results {
		if q.Err != nil {
			n++
		}
	}
	return n
}

// Run loads the suite's inputs, evaluates every query and exports the
// results marked for export. A failing query is recorded in its
// QueryResult and does not stop the others.
func Run(ctx context.Context, s Suite, opts Options) (*Result, error) {
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if opts.Engine == "" {
		opts.Engine = SQLite
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("suite", s.Name, "engine", string(opts.Engine))
	res := &Result{Suite: s.Name, Engine: opts.Engine}

	paths := make([]string, len(s.Roles))
	for i, r := range s.Roles {
		paths[i] = filepath.Join(opts.Dir, r.File)
	}
	if opts.SampleIfMissing && s.Sample != nil && noneExist(paths) {
		log.Info("no input files found, generating samples", "dir", opts.Dir)
		generated, err := s.Sample(opts.Dir, opts.Seed)
		if err != nil {
			return nil, err
		}
		res.Generated = generated
	}

	loaded := source.Load(paths, source.Options{Sheet: opts.Sheet, Logger: log})
	res.Loaded = loaded.Files
	res.Warnings = loaded.Warnings
	if len(loaded.Files) == 0 {
		return res, ErrNoInputs
	}
	tables := Tables{}
	for _, f := range loaded.Files {
		for i, p := range paths {
			if p == f.Path {
				tables[s.Roles[i].Name] = f.Table
			}
		}
	}

	eng, err := newEngine(ctx, opts, tables)
	if err != nil {
		return res, err
	}
	defer eng.Close()

	for _, q := range s.Queries {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		qr := QueryResult{Name: q.Name, Title: q.Title, Export: q.Export}
		qr.Table, qr.Err = evaluate(ctx, eng, tables, q)
		if qr.Err != nil {
			qr.Error = qr.Err.Error()
			log.Warn("analysis failed", "query", q.Name, "error", qr.Err)
		} else {
			qr.Rows = qr.Table.Len()
			log.Debug("analysis done", "query", q.Name, "rows", qr.Rows)
		}
		res.Results = append(res.Results, qr)
		if opts.Progress != nil {
			opts.Progress.Increment(q.Name)
		}
	}

	if opts.Output == "-" {
		return res, nil
	}
	out := opts.Output
	if out == "" {
		out = filepath.Join(opts.Dir, s.Output)
	}
	var sections []report.Section
	for i, q := range s.Queries {
		if q.Export && res.Results[i].Err == nil {
			sections = append(sections, report.Section{Name: q.sheet(), Table: res.Results[i].Table})
		}
	}
	if len(sections) == 0 {
		return res, ErrNothingToExport
	}
	res.Report, err = report.Write(out, sections)
	if err != nil {
		return res, err
	}
	return res, nil
}

func noneExist(paths []string) bool {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return false
		}
	}
	return true
}

func evaluate(ctx context.Context, eng engine, tables Tables, q Query) (*table.Table, error) {
	for _, role := range q.Requires {
		if _, err := tables.Get(role); err != nil {
			return nil, err
		}
	}
	return eng.run(ctx, q)
}

type engine interface {
	run(ctx context.Context, q Query) (*table.Table, error)
	Close() error
}

func newEngine(ctx context.Context, opts Options, tables Tables) (engine, error) {
	switch opts.Engine {
	case Memory:
		return memoryEngine{tables: tables}, nil
	case SQLite:
		path := opts.DBPath
		if path == "" {
			path = store.Memory
		}
		st, err := store.Open(path)
		if err != nil {
			return nil, err
		}
		for name, t := range tables {
			if err := st.LoadTable(ctx, name, t); err != nil {
				st.Close()
				return nil, err
			}
		}
		return sqlEngine{st: st}, nil
	}
	return nil, fmt.Errorf("unknown engine %q", opts.Engine)
}

type sqlEngine struct {
	st *store.Store
}

func (e sqlEngine) run(ctx context.Context, q Query) (*table.Table, error) {
	if q.SQL == "" {
		return nil, fmt.Errorf("%s has no SQL form", q.Name)
	}
	return e.st.Query(ctx, q.SQL)
}

func (e sqlEngine) Close() error { return e.st.Close() }

type memoryEngine struct {
	tables Tables
}

func (e memoryEngine) run(_ context.Context, q Query) (*table.Table, error) {
	if q.Compute == nil {
		return nil, fmt.Errorf("%s has no in-memory form", q.Name)
	}
	return q.Compute(e.tables)
}

func (memoryEngine) Close() error { return nil }
