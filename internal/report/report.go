// Package report writes pipeline results as workbooks, one sheet per
// section, and edits single sheets of existing workbooks in place.
package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/klytics/xlpipe/internal/formats/xlsx"
	"github.com/klytics/xlpipe/internal/table"
)

// Section is one named sheet of a report.
type Section struct {
	Name  string
	Table *table.Table
}

// SheetInfo describes a sheet that was written.
type SheetInfo struct {
	Name    string `json:"name"`
	Rows    int    `json:"rows"`
	Columns int    `json:"columns"`
}

// Result holds the outcome of writing a report.
type Result struct {
	Path   string      `json:"path"`
	Sheets []SheetInfo `json:"sheets"`
}

// Write saves sections to path. Sheet names are sanitized and made unique;
// the returned Result carries the names actually used. Nil tables are
// skipped. The write is atomic: on failure any earlier file at path is left
// as it was.
func Write(path string, sections []Section) (*Result, error) {
	var sheets []xlsx.TableSheet
	for _, s := range sections {
		if s.Table == nil {
			continue
		}
		sheets = append(sheets, xlsx.TableSheet{Name: s.Name, Table: s.Table})
	}
	if len(sheets) == 0 {
		return nil, fmt.Errorf("could not write %s: no sections", path)
	}

	names, err := xlsx.WriteTables(path, sheets)
	if err != nil {
		return nil, err
	}

	res := &Result{Path: path}
	for i, s := range sheets {
		res.Sheets = append(res.Sheets, SheetInfo{Name: names[i], Rows: s.Table.Len(), Columns: s.Table.Width()})
	}
	return res, nil
}

// Metrics builds a two-column Metric/Value table from ordered pairs.
func Metrics(pairs ...Metric) *table.Table {
	b := table.NewBuilder("Metric", "Value")
	for _, p := range pairs {
		v := p.Value
		if v == nil {
			v = "N/A"
		}
		b.Add(p.Name, table.Format(v))
	}
	return b.MustTable()
}

// Metric is one named summary value.
type Metric struct {
	Name  string
	Value any
}

// ColumnStats calculates count, sum, mean, min and max for each numeric
// column of t, one output row per column.
func ColumnStats(t *table.Table) *table.Table {
	b := table.NewBuilder("Column", "Count", "Sum", "Mean", "Min", "Max")
	for _, col := range t.Columns() {
		if !col.Kind.Numeric() {
			continue
		}
		vals, _ := t.ColumnValues(col.Name)
		var (
			n               int
			sum, minV, maxV float64
		)
		for _, v := range vals {
			f, ok := table.ToFloat(v)
			if !ok {
				continue
			}
			if n == 0 || f < minV {
				minV = f
			}
			if n == 0 || f > maxV {
				maxV = f
			}
			sum += f
			n++
		}
		if n == 0 {
			b.Add(col.Name, 0, nil, nil, nil, nil)
			continue
		}
		b.Add(col.Name, n, sum, sum/float64(n), minV, maxV)
	}
	return b.MustTable()
}

// FormatNumber renders f with thousands separators and two decimals, or no
// decimals when f is whole.
func FormatNumber(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	s := strconv.FormatFloat(math.Abs(f), 'f', 2, 64)
	if f == math.Trunc(f) {
		s = strconv.FormatFloat(math.Abs(f), 'f', 0, 64)
	}
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if f < 0 {
		b.WriteByte('-')
	}
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}

// Currency renders a value as dollars, "N/A" when it is not numeric.
func Currency(v any) string {
	f, ok := table.ToFloat(v)
	if !ok {
		return "N/A"
	}
	s := FormatNumber(table.Round(f, 2))
	if strings.HasPrefix(s, "-") {
		return "-$" + s[1:]
	}
	return "$" + s
}
