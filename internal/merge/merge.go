// Package merge concatenates tables from several sources into one, tagging
// every row with the source it came from.
package merge

import (
	"github.com/klytics/xlpipe/internal/table"
)

// SourceColumn is the provenance column appended to merged tables.
const SourceColumn = "Source_File"

// Input is one table together with its source label, usually the file name.
type Input struct {
	Source string
	Table  *table.Table
}

// Merge returns the union of all inputs. Columns appear in first-seen order
// with SourceColumn always last; cells for columns an input lacks are nil.
// Rows keep input order.
//
// A row that already carries a non-nil SourceColumn value keeps it, so merging
// previously merged output yields the same table as merging the originals.
// No inputs produce a zero-row table holding only SourceColumn.
func Merge(inputs []Input) *table.Table {
	var names []string
	seen := map[string]bool{SourceColumn: true}
	for _, in := range inputs {
		for _, n := range in.Table.ColumnNames() {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	names = append(names, SourceColumn)
	tag := len(names) - 1

	var rows []table.Row
	for _, in := range inputs {
		t := in.Table
		pos := make([]int, len(names))
		for j, n := range names {
			pos[j] = t.Index(n)
		}
		for i := 0; i < t.Len(); i++ {
			src := t.Row(i)
			row := make(table.Row, len(names))
			for j, p := range pos {
				if p >= 0 {
					row[j] = src[p]
				}
			}
			if row[tag] == nil {
				row[tag] = in.Source
			}
			rows = append(rows, row)
		}
	}
	return table.MustNew(names, rows)
}

// Summary describes a merged table for the console quality report.
type Summary struct {
	Records       int      `json:"records"`
	Columns       []string `json:"columns"`
	Sources       int      `json:"sources"`
	MissingValues int      `json:"missingValues"`
	DateColumn    string   `json:"dateColumn,omitempty"`
	DateFrom      string   `json:"dateFrom,omitempty"`
	DateTo        string   `json:"dateTo,omitempty"`
}

// Summarize counts records, sources and nil cells of a merged table and,
// when dateColumn holds dates, reports its range.
func Summarize(t *table.Table, dateColumn string) Summary {
	s := Summary{Records: t.Len(), Columns: t.ColumnNames()}

	sources := map[string]bool{}
	for i := 0; i < t.Len(); i++ {
		for _, v := range t.Row(i) {
			if v == nil {
				s.MissingValues++
			}
		}
		sources[table.Format(t.Value(i, SourceColumn))] = true
	}
	s.Sources = len(sources)

	if col, ok := t.Column(dateColumn); ok && col.Kind == table.Date {
		var lo, hi any
		vals, _ := t.ColumnValues(dateColumn)
		for _, v := range vals {
			if v == nil {
				continue
			}
			if lo == nil || table.Compare(v, lo) < 0 {
				lo = v
			}
			if hi == nil || table.Compare(v, hi) > 0 {
				hi = v
			}
		}
		if lo != nil {
			s.DateColumn = dateColumn
			s.DateFrom = table.Format(lo)
			s.DateTo = table.Format(hi)
		}
	}
	return s
}
