package xlsx

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/klytics/xlpipe/internal/table"
)

const (
	dateFormat     = "yyyy-mm-dd"
	dateTimeFormat = "yyyy-mm-dd hh:mm:ss"
	minColWidth    = 8
	maxColWidth    = 50
)

// TableSheet is one named sheet of tabular output.
type TableSheet struct {
	Name  string
	Table *table.Table
}

// WriteFile creates a new .xlsx file from raw workbook text.
func WriteFile(wb *Workbook, path string) error {
	names := make([]string, len(wb.Sheets))
	for i, s := range wb.Sheets {
		names[i] = s.Name
	}
	names = UniqueSheetNames(names)

	f, err := newWorkbook(names)
	if err != nil {
		return err
	}
	defer f.Close()

	for i, sheet := range wb.Sheets {
		for rowIdx, row := range sheet.Rows {
			cell, err := excelize.CoordinatesToCellName(1, rowIdx+1)
			if err != nil {
				return fmt.Errorf("invalid cell coordinates: %w", err)
			}
			r := row
			if err := f.SetSheetRow(names[i], cell, &r); err != nil {
				return fmt.Errorf("could not write row %d of %q: %w", rowIdx+1, names[i], err)
			}
		}
	}

	return saveAtomic(f, path)
}

// WriteTables writes one sheet per table to path and returns the sheet names
// actually used after sanitizing and de-duplication. The file is written to a
// temporary sibling and renamed into place, so a failed write leaves any
// previous file untouched.
func WriteTables(path string, sheets []TableSheet) ([]string, error) {
	names := make([]string, len(sheets))
	for i, s := range sheets {
		names[i] = s.Name
	}
	names = UniqueSheetNames(names)

	f, err := newWorkbook(names)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	w := &sheetWriter{f: f}
	for i, s := range sheets {
		if err := w.write(names[i], s.Table); err != nil {
			return nil, err
		}
	}
	if err := saveAtomic(f, path); err != nil {
		return nil, err
	}
	return names, nil
}

func newWorkbook(names []string) (*excelize.File, error) {
	f := excelize.NewFile()
	for i, name := range names {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				f.Close()
				return nil, fmt.Errorf("could not rename sheet: %w", err)
			}
			continue
		}
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("could not create sheet %q: %w", name, err)
		}
	}
	return f, nil
}

// sheetWriter writes tables into a workbook, creating shared styles once.
type sheetWriter struct {
	f      *excelize.File
	styles map[string]int
}

func (w *sheetWriter) style(key string, s *excelize.Style) (int, error) {
	if id, ok := w.styles[key]; ok {
		return id, nil
	}
	id, err := w.f.NewStyle(s)
	if err != nil {
		return 0, fmt.Errorf("could not create %s style: %w", key, err)
	}
	if w.styles == nil {
		w.styles = make(map[string]int)
	}
	w.styles[key] = id
	return id, nil
}

// write lays out t starting at A1: a bold header row, then one row per
// record. Nil cells are left empty.
func (w *sheetWriter) write(sheet string, t *table.Table) error {
	cols := t.Columns()
	widths := make([]int, len(cols))

	for j, c := range cols {
		cell, _ := excelize.CoordinatesToCellName(j+1, 1)
		if err := w.f.SetCellValue(sheet, cell, c.Name); err != nil {
			return fmt.Errorf("could not set cell %s: %w", cell, err)
		}
		widths[j] = len([]rune(c.Name))
	}
	if len(cols) > 0 {
		bold, err := w.style("header", &excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return err
		}
		last, _ := excelize.CoordinatesToCellName(len(cols), 1)
		if err := w.f.SetCellStyle(sheet, "A1", last, bold); err != nil {
			return fmt.Errorf("could not style header of %q: %w", sheet, err)
		}
	}

	withTime := make([]bool, len(cols))
	for i := 0; i < t.Len(); i++ {
		for j, v := range t.Row(i) {
			if v == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			if err := w.f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("could not set cell %s of %q: %w", cell, sheet, err)
			}
			if ts, ok := v.(time.Time); ok && (ts.Hour() != 0 || ts.Minute() != 0 || ts.Second() != 0) {
				withTime[j] = true
			}
			if n := len([]rune(table.Format(v))); n > widths[j] {
				widths[j] = n
			}
		}
	}

	for j, c := range cols {
		colName, _ := excelize.ColumnNumberToName(j + 1)
		width := float64(min(max(widths[j]+2, minColWidth), maxColWidth))
		if err := w.f.SetColWidth(sheet, colName, colName, width); err != nil {
			return fmt.Errorf("could not size column %s of %q: %w", colName, sheet, err)
		}
		if c.Kind != table.Date || t.Len() == 0 {
			continue
		}
		numFmt := dateFormat
		if withTime[j] {
			numFmt = dateTimeFormat
		}
		id, err := w.style(numFmt, &excelize.Style{CustomNumFmt: &numFmt})
		if err != nil {
			return err
		}
		top, _ := excelize.CoordinatesToCellName(j+1, 2)
		bottom, _ := excelize.CoordinatesToCellName(j+1, t.Len()+1)
		if err := w.f.SetCellStyle(sheet, top, bottom, id); err != nil {
			return fmt.Errorf("could not style dates in %q: %w", sheet, err)
		}
	}
	return nil
}

// saveAtomic writes the workbook to a temporary file next to path and renames
// it over path. On failure the temporary file is removed. An existing file's
// permissions are preserved.
func saveAtomic(f *excelize.File, path string) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("could not create output directory %s: %w", dir, err)
	}
	mode := os.FileMode(0o644)
	if fi, statErr := os.Stat(path); statErr == nil {
		mode = fi.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("could not create temp file in %s: %w", dir, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = f.WriteTo(tmp); err != nil {
		return fmt.Errorf("could not write %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("could not write %s: %w", path, err)
	}
	if err = os.Chmod(tmp.Name(), mode); err != nil {
		return fmt.Errorf("could not set permissions on %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("could not replace %s: %w", path, err)
	}
	return nil
}
