// Package source discovers input files and loads each one as a table.
//
// Loading is best-effort: a file that cannot be opened or parsed is reported
// as a Warning and skipped, and the rest of the batch still loads.
package source

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klytics/xlpipe/internal/formats/xlsx"
	"github.com/klytics/xlpipe/internal/table"
)

var (
	// ErrNoMatches is returned when a discovery pattern matches no files.
	ErrNoMatches = errors.New("no input files matched")
	// ErrUnsupported is returned for file extensions the reader cannot load.
	ErrUnsupported = errors.New("unsupported input format")
)

// Extensions maps supported file extensions to a format label.
var Extensions = map[string]string{
	".xlsx": "Excel",
	".xlsm": "Excel (macro-enabled)",
	".csv":  "CSV",
	".json": "JSON",
}

// File is one successfully loaded input.
type File struct {
	Path  string       `json:"path"`
	Name  string       `json:"name"`
	Table *table.Table `json:"-"`
	Rows  int          `json:"rows"`
}

// Warning records an input that was skipped.
type Warning struct {
	Path string `json:"path"`
	Err  error  `json:"-"`
}

func (w Warning) Error() string {
	return fmt.Sprintf("%s: %v", w.Path, w.Err)
}

// MarshalJSON includes the error text, which encoding/json would drop.
func (w Warning) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Path  string `json:"path"`
		Error string `json:"error"`
	}{w.Path, w.Err.Error()})
}

// Result is the outcome of loading a batch of files.
type Result struct {
	Files    []File    `json:"files"`
	Warnings []Warning `json:"warnings,omitempty"`
}

// Tables returns the loaded tables in file order.
func (r *Result) Tables() []*table.Table {
	out := make([]*table.Table, len(r.Files))
	for i, f := range r.Files {
		out[i] = f.Table
	}
	return out
}

// Options configures loading.
type Options struct {
	// Sheet selects the worksheet to read from workbooks; empty means the first.
	Sheet string
	// Logger receives a warning per skipped file. Nil uses slog.Default.
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Discover expands a glob pattern into regular files, sorted by path. Excel
// lock files ("~$name.xlsx") are ignored.
func Discover(pattern string) ([]string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	var files []string
	for _, m := range matches {
		if strings.HasPrefix(filepath.Base(m), "~$") {
			continue
		}
		info, err := os.Stat(m)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, m)
	}
	sort.Strings(files)
	return files, nil
}

// Load reads every path. Unreadable or malformed files become warnings.
func Load(paths []string, opts Options) *Result {
	res := &Result{}
	log := opts.logger()
	for _, p := range paths {
		t, err := ReadFile(p, opts.Sheet)
		if err != nil {
			log.Warn("skipping input", "path", p, "error", err)
			res.Warnings = append(res.Warnings, Warning{Path: p, Err: err})
			continue
		}
		log.Debug("loaded input", "path", p, "rows", t.Len(), "columns", t.Width())
		res.Files = append(res.Files, File{Path: p, Name: filepath.Base(p), Table: t, Rows: t.Len()})
	}
	return res
}

// LoadPattern discovers and loads files. It returns ErrNoMatches when the
// pattern matches nothing, so callers can fall back to sample data.
func LoadPattern(pattern string, opts Options) (*Result, error) {
	paths, err := Discover(pattern)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoMatches, pattern)
	}
	return Load(paths, opts), nil
}

// ReadFile loads one file as a table, choosing the reader by extension.
func ReadFile(path, sheet string) (*table.Table, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xlsm":
		return xlsx.ReadTable(path, sheet)
	case ".csv":
		return readCSV(path)
	case ".json":
		return readJSON(path)
	default:
		return nil, fmt.Errorf("%w: %q (supported: .xlsx, .xlsm, .csv, .json)", ErrUnsupported, ext)
	}
}

func readCSV(path string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var records [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("could not parse CSV %s: %w", path, err)
		}
		records = append(records, rec)
	}
	if len(records) > 0 && len(records[0]) > 0 {
		records[0][0] = strings.TrimPrefix(records[0][0], "\ufeff")
	}
	return xlsx.FromRows(records)
}

// readJSON accepts an array of objects or a single object. Columns are the
// union of keys, sorted, since JSON objects carry no column order.
func readJSON(path string) (*table.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read %s: %w", path, err)
	}

	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		var single map[string]any
		if err := json.Unmarshal(data, &single); err != nil {
			return nil, fmt.Errorf("could not parse JSON %s: expected array of objects or single object", path)
		}
		records = []map[string]any{single}
	}

	colSet := make(map[string]bool)
	for _, rec := range records {
		for k := range rec {
			colSet[k] = true
		}
	}
	if len(colSet) == 0 {
		return nil, fmt.Errorf("%w: %s has no fields", xlsx.ErrMalformed, path)
	}
	cols := make([]string, 0, len(colSet))
	for k := range colSet {
		cols = append(cols, k)
	}
	sort.Strings(cols)

	rows := make([]table.Row, len(records))
	for i, rec := range records {
		row := make(table.Row, len(cols))
		for j, c := range cols {
			row[j] = jsonValue(rec[c])
		}
		rows[i] = row
	}
	return table.New(cols, rows)
}

func jsonValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		if x == float64(int64(x)) && x >= -1<<53 && x <= 1<<53 {
			return int64(x)
		}
		return x
	case string:
		return table.Parse(x)
	case bool:
		return fmt.Sprint(x)
	default:
		b, _ := json.Marshal(x)
		return string(b)
	}
}
