// Package xlsx provides reading, writing and in-place editing of .xlsx
// workbooks on top of excelize.
package xlsx

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/klytics/xlpipe/internal/table"
)

var (
	// ErrSheetNotFound is returned when a named worksheet does not exist.
	ErrSheetNotFound = errors.New("sheet not found")
	// ErrMalformed marks a sheet that cannot be read as a table.
	ErrMalformed = errors.New("malformed sheet")
)

// Sheet represents a single worksheet's raw cell text.
type Sheet struct {
	Name string     `json:"name"`
	Rows [][]string `json:"rows"`
}

// Workbook represents a parsed Excel file with all its sheets.
type Workbook struct {
	Sheets []Sheet `json:"sheets"`
}

// ReadFile reads an .xlsx file and returns the text of every sheet.
func ReadFile(path string) (*Workbook, error) {
	f, err := open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return readWorkbook(f)
}

// ReadBytes reads an .xlsx file from a byte slice.
func ReadBytes(data []byte) (*Workbook, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("could not read Excel data: %w", err)
	}
	defer f.Close()

	return readWorkbook(f)
}

// ReadTable reads one sheet of a workbook as a table. An empty sheet name
// selects the first sheet.
func ReadTable(path, sheet string) (*table.Table, error) {
	f, err := open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	name, err := resolveSheet(f, sheet)
	if err != nil {
		return nil, err
	}
	rows, err := f.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("could not read sheet %q: %w", name, err)
	}
	t, err := FromRows(rows)
	if err != nil {
		return nil, fmt.Errorf("sheet %q: %w", name, err)
	}
	return t, nil
}

// SheetNames lists the worksheets of a workbook in tab order.
func SheetNames(path string) ([]string, error) {
	f, err := open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

func open(path string) (*excelize.File, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("file not found: %s: %w", path, err)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not open %s, is this a valid .xlsx file? %w", path, err)
	}
	return f, nil
}

func resolveSheet(f *excelize.File, sheet string) (string, error) {
	list := f.GetSheetList()
	if sheet == "" {
		if len(list) == 0 {
			return "", fmt.Errorf("%w: workbook has no sheets", ErrMalformed)
		}
		return list[0], nil
	}
	for _, name := range list {
		if name == sheet {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: %q (available: %s)", ErrSheetNotFound, sheet, strings.Join(list, ", "))
}

func readWorkbook(f *excelize.File) (*Workbook, error) {
	wb := &Workbook{}

	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("could not read sheet %q: %w", name, err)
		}
		wb.Sheets = append(wb.Sheets, Sheet{Name: name, Rows: rows})
	}

	return wb, nil
}

// FromRows turns raw sheet text into a table. The first row is the header;
// it must be non-empty with unique, non-blank names. Entirely blank data rows
// are dropped and blank cells become nil.
func FromRows(rows [][]string) (*table.Table, error) {
	if len(rows) == 0 || isBlank(rows[0]) {
		return nil, fmt.Errorf("%w: no header row", ErrMalformed)
	}

	header := make([]string, len(rows[0]))
	seen := make(map[string]bool, len(header))
	for i, h := range rows[0] {
		h = strings.TrimSpace(h)
		if h == "" {
			return nil, fmt.Errorf("%w: blank header in column %d", ErrMalformed, i+1)
		}
		if seen[h] {
			return nil, fmt.Errorf("%w: duplicate header %q", ErrMalformed, h)
		}
		seen[h] = true
		header[i] = h
	}

	data := make([]table.Row, 0, len(rows)-1)
	for n, raw := range rows[1:] {
		if isBlank(raw) {
			continue
		}
		if len(raw) > len(header) && !isBlank(raw[len(header):]) {
			return nil, fmt.Errorf("%w: row %d has %d cells for %d headers", ErrMalformed, n+2, len(raw), len(header))
		}
		row := make(table.Row, len(header))
		for j := 0; j < len(header) && j < len(raw); j++ {
			row[j] = table.Parse(raw[j])
		}
		data = append(data, row)
	}
	return table.New(header, data)
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// GetSheet returns a specific sheet by name.
func (wb *Workbook) GetSheet(name string) (*Sheet, error) {
	available := make([]string, len(wb.Sheets))
	for i := range wb.Sheets {
		if wb.Sheets[i].Name == name {
			return &wb.Sheets[i], nil
		}
		available[i] = wb.Sheets[i].Name
	}
	return nil, fmt.Errorf("%w: %q (available: %s)", ErrSheetNotFound, name, strings.Join(available, ", "))
}

// ToCSV converts a sheet's data to CSV text.
func (s *Sheet) ToCSV() string {
	var b strings.Builder
	w := csv.NewWriter(&b)
	// csv.Writer only fails on the underlying writer, and strings.Builder never does.
	_ = w.WriteAll(s.Rows)
	return b.String()
}

// Table parses the sheet text the same way ReadTable does.
func (s *Sheet) Table() (*table.Table, error) {
	return FromRows(s.Rows)
}

// RowCount returns the number of non-empty rows, header included.
func (s *Sheet) RowCount() int {
	count := 0
	for _, row := range s.Rows {
		if !isBlank(row) {
			count++
		}
	}
	return count
}
