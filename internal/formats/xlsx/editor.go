package xlsx

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/klytics/xlpipe/internal/table"
)

// Editor modifies one worksheet of an existing workbook. Every other sheet,
// including its formulas and formatting, is written back unchanged on Save.
type Editor struct {
	f     *excelize.File
	path  string
	sheet string
}

// OpenEditor opens path for editing sheet. The full sheet list is read first
// and ErrSheetNotFound is returned when sheet is not in it.
func OpenEditor(path, sheet string) (*Editor, error) {
	f, err := open(path)
	if err != nil {
		return nil, err
	}
	if sheet == "" {
		f.Close()
		return nil, fmt.Errorf("%w: no sheet name given", ErrSheetNotFound)
	}
	name, err := resolveSheet(f, sheet)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Editor{f: f, path: path, sheet: name}, nil
}

// Sheets returns every sheet name in tab order.
func (e *Editor) Sheets() []string {
	return e.f.GetSheetList()
}

// Sheet returns the name of the sheet being edited.
func (e *Editor) Sheet() string {
	return e.sheet
}

// Table reads the edited sheet's current contents.
func (e *Editor) Table() (*table.Table, error) {
	rows, err := e.f.GetRows(e.sheet)
	if err != nil {
		return nil, fmt.Errorf("could not read sheet %q: %w", e.sheet, err)
	}
	return FromRows(rows)
}

// SetCell sets one cell by reference, e.g. "E2". A string starting with "="
// is stored as a formula.
func (e *Editor) SetCell(ref string, value any) error {
	ref = strings.ToUpper(strings.TrimSpace(ref))
	if _, _, err := excelize.CellNameToCoordinates(ref); err != nil {
		return fmt.Errorf("invalid cell reference %q: %w", ref, err)
	}
	if s, ok := value.(string); ok && strings.HasPrefix(s, "=") && len(s) > 1 {
		if err := e.f.SetCellFormula(e.sheet, ref, s[1:]); err != nil {
			return fmt.Errorf("could not set formula in %s: %w", ref, err)
		}
		return nil
	}
	if err := e.f.SetCellFormula(e.sheet, ref, ""); err != nil {
		return fmt.Errorf("could not clear formula in %s: %w", ref, err)
	}
	if err := e.f.SetCellValue(e.sheet, ref, table.Normalize(value)); err != nil {
		return fmt.Errorf("could not set %s: %w", ref, err)
	}
	return nil
}

// AppendRow writes values into the first row after the last non-empty one
// and returns that row's number.
func (e *Editor) AppendRow(values ...any) (int, error) {
	rows, err := e.f.GetRows(e.sheet)
	if err != nil {
		return 0, fmt.Errorf("could not read sheet %q: %w", e.sheet, err)
	}
	next := len(rows) + 1
	for j, v := range values {
		v = table.Normalize(v)
		if v == nil {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(j+1, next)
		if err := e.f.SetCellValue(e.sheet, cell, v); err != nil {
			return 0, fmt.Errorf("could not set %s: %w", cell, err)
		}
	}
	return next, nil
}

// Replace clears the sheet's used range, values and formulas alike, and
// writes t in its place. Cell styles and column widths outside the new data
// are left as they were.
func (e *Editor) Replace(t *table.Table) error {
	rows, err := e.f.GetRows(e.sheet)
	if err != nil {
		return fmt.Errorf("could not read sheet %q: %w", e.sheet, err)
	}
	for i, row := range rows {
		for j := range row {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+1)
			if err := e.f.SetCellFormula(e.sheet, cell, ""); err != nil {
				return fmt.Errorf("could not clear %s: %w", cell, err)
			}
			if err := e.f.SetCellValue(e.sheet, cell, nil); err != nil {
				return fmt.Errorf("could not clear %s: %w", cell, err)
			}
		}
	}
	w := &sheetWriter{f: e.f}
	return w.write(e.sheet, t)
}

// Save writes the workbook back to its original path atomically.
func (e *Editor) Save() error {
	return saveAtomic(e.f, e.path)
}

// Close releases the workbook.
func (e *Editor) Close() error {
	return e.f.Close()
}

// ReplaceSheet replaces the data of one sheet in an existing workbook and
// leaves every other sheet untouched.
func ReplaceSheet(path, sheet string, t *table.Table) error {
	e, err := OpenEditor(path, sheet)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := e.Replace(t); err != nil {
		return err
	}
	return e.Save()
}
