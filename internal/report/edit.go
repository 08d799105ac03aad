package report

import (
	"errors"
	"fmt"
	"strings"

	"github.com/klytics/xlpipe/internal/formats/xlsx"
	"github.com/klytics/xlpipe/internal/source"
	"github.com/klytics/xlpipe/internal/table"
)

// ErrSheetNotFound is returned when the sheet to edit does not exist.
var ErrSheetNotFound = xlsx.ErrSheetNotFound

// EditSheet opens path, hands the editor for sheet to fn, and saves the
// workbook atomically when fn succeeds. Other sheets are never modified.
func EditSheet(path, sheet string, fn func(*xlsx.Editor) error) error {
	e, err := xlsx.OpenEditor(path, sheet)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := fn(e); err != nil {
		return fmt.Errorf("could not edit sheet %q: %w", sheet, err)
	}
	return e.Save()
}

// ReplaceSheet replaces the data of one sheet and leaves the rest of the
// workbook untouched.
func ReplaceSheet(path, sheet string, t *table.Table) error {
	return xlsx.ReplaceSheet(path, sheet, t)
}

// AppendRows appends every row of t to sheet, matching columns by header
// name. Columns of t the sheet lacks are an error; sheet columns t lacks are
// left empty.
func AppendRows(path, sheet string, t *table.Table) (int, error) {
	appended := 0
	err := EditSheet(path, sheet, func(e *xlsx.Editor) error {
		current, err := e.Table()
		if err != nil {
			return err
		}
		header := current.ColumnNames()
		for _, n := range t.ColumnNames() {
			if !current.Has(n) {
				return fmt.Errorf("%w: %q is not a column of %s", table.ErrUnknownColumn, n, sheet)
			}
		}
		for i := 0; i < t.Len(); i++ {
			r := t.Record(i)
			vals := make([]any, len(header))
			for j, h := range header {
				vals[j] = r.Get(h)
			}
			if _, err := e.AppendRow(vals...); err != nil {
				return err
			}
			appended++
		}
		return nil
	})
	return appended, err
}

// Assignment is one cell update such as E2=250.
type Assignment struct {
	Ref   string
	Value any
}

// ParseAssignment parses "REF=VALUE". The value is typed the same way cell
// text is on read; a value beginning with "=" is kept as a formula.
func ParseAssignment(s string) (Assignment, error) {
	ref, val, ok := strings.Cut(s, "=")
	ref = strings.TrimSpace(ref)
	if !ok || ref == "" {
		return Assignment{}, fmt.Errorf("invalid assignment %q, want REF=VALUE (e.g. E2=250)", s)
	}
	if strings.HasPrefix(val, "=") {
		return Assignment{Ref: ref, Value: val}, nil
	}
	return Assignment{Ref: ref, Value: table.Parse(val)}, nil
}

// SetCells applies cell assignments to one sheet.
func SetCells(path, sheet string, updates []Assignment) error {
	return EditSheet(path, sheet, func(e *xlsx.Editor) error {
		for _, u := range updates {
			if err := e.SetCell(u.Ref, u.Value); err != nil {
				return err
			}
		}
		return nil
	})
}

// ErrEditMode is returned when an edit names no change or more than one
// kind of change.
var ErrEditMode = errors.New("exactly one of set, append or replace is required")

// Edit describes one change to a single sheet.
type Edit struct {
	Sheet string `json:"sheet"`
	// Set holds REF=VALUE assignments.
	Set []string `json:"set,omitempty"`
	// Append and Replace name a table file whose rows are appended to, or
	// replace, the sheet.
	Append  string `json:"append,omitempty"`
	Replace string `json:"replace,omitempty"`
	// FromSheet picks the sheet of the Append or Replace file.
	FromSheet string `json:"from_sheet,omitempty"`
}

// EditResult reports what Apply changed.
type EditResult struct {
	Path  string `json:"path"`
	Sheet string `json:"sheet"`
	Mode  string `json:"mode"`
	Cells int    `json:"cells,omitempty"`
	Rows  int    `json:"rows,omitempty"`
}

// Apply performs ed on the workbook at path.
func Apply(path string, ed Edit) (*EditResult, error) {
	modes := 0
	for _, set := range []bool{len(ed.Set) > 0, ed.Append != "", ed.Replace != ""} {
		if set {
			modes++
		}
	}
	if modes != 1 {
		return nil, ErrEditMode
	}
	if ed.Sheet == "" {
		return nil, fmt.Errorf("an edit needs a sheet name")
	}

	res := &EditResult{Path: path, Sheet: ed.Sheet}
	switch {
	case len(ed.Set) > 0:
		updates := make([]Assignment, 0, len(ed.Set))
		for _, s := range ed.Set {
			a, err := ParseAssignment(s)
			if err != nil {
				return nil, err
			}
			updates = append(updates, a)
		}
		if err := SetCells(path, ed.Sheet, updates); err != nil {
			return nil, err
		}
		res.Mode, res.Cells = "set", len(updates)
	case ed.Append != "":
		t, err := source.ReadFile(ed.Append, ed.FromSheet)
		if err != nil {
			return nil, err
		}
		n, err := AppendRows(path, ed.Sheet, t)
		if err != nil {
			return nil, err
		}
		res.Mode, res.Rows = "append", n
	default:
		t, err := source.ReadFile(ed.Replace, ed.FromSheet)
		if err != nil {
			return nil, err
		}
		if err := ReplaceSheet(path, ed.Sheet, t); err != nil {
			return nil, err
		}
		res.Mode, res.Rows = "replace", t.Len()
	}
	return res, nil
}
