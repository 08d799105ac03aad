// Package table provides the immutable in-memory table every pipeline stage
// reads and produces.
//
// A Table holds positional rows that share one ordered column schema. Cell
// values are nil, int64, float64, string or time.Time. Column kinds are
// inferred when the table is built; mixing kinds in one column widens ints to
// floats, and anything else that disagrees degrades the column to String.
package table

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnknownColumn is returned when an operation names a column the table
	// does not have.
	ErrUnknownColumn = errors.New("unknown column")
	// ErrDuplicateColumn is returned when a schema repeats a column name.
	ErrDuplicateColumn = errors.New("duplicate column")
)

// Kind is the inferred type of a column.
type Kind int

const (
	String Kind = iota
	Int
	Float
	Date
)

func (k Kind) String() string {
	switch k {
	case Int:
		return "int"
	case Float:
		return "float"
	case Date:
		return "date"
	default:
		return "string"
	}
}

// Numeric reports whether values of this kind can be summed.
func (k Kind) Numeric() bool {
	return k == Int || k == Float
}

// Column describes one column of a table.
type Column struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Row is one positional row. Index i holds the value of column i.
type Row []any

// Table is an immutable ordered collection of rows with a fixed schema.
type Table struct {
	cols  []Column
	rows  []Row
	index map[string]int
}

// New builds a table from column names and rows. Short rows are padded with
// nil; rows wider than the schema are rejected.
func New(names []string, rows []Row) (*Table, error) {
	index := make(map[string]int, len(names))
	for i, n := range names {
		if _, dup := index[n]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, n)
		}
		index[n] = i
	}

	out := make([]Row, len(rows))
	for i, r := range rows {
		if len(r) > len(names) {
			return nil, fmt.Errorf("row %d has %d values for %d columns", i+1, len(r), len(names))
		}
		row := make(Row, len(names))
		for j, v := range r {
			row[j] = Normalize(v)
		}
		out[i] = row
	}

	cols := make([]Column, len(names))
	for j, n := range names {
		kind := inferKind(out, j)
		cols[j] = Column{Name: n, Kind: kind}
		for _, row := range out {
			row[j] = coerce(row[j], kind)
		}
	}
	return &Table{cols: cols, rows: out, index: index}, nil
}

// MustNew is New for statically known data. It panics on error.
func MustNew(names []string, rows []Row) *Table {
	t, err := New(names, rows)
	if err != nil {
		panic(err)
	}
	return t
}

// Empty returns a zero-row table with the given columns.
func Empty(names ...string) *Table {
	return MustNew(names, nil)
}

func inferKind(rows []Row, j int) Kind {
	var ints, floats, dates, strs bool
	for _, r := range rows {
		switch r[j].(type) {
		case nil:
		case int64:
			ints = true
		case float64:
			floats = true
		case time.Time:
			dates = true
		default:
			strs = true
		}
	}
	switch {
	case strs, dates && (ints || floats):
		return String
	case dates:
		return Date
	case floats:
		return Float
	case ints:
		return Int
	}
	return String
}

func coerce(v any, k Kind) any {
	if v == nil {
		return nil
	}
	switch k {
	case Float:
		if i, ok := v.(int64); ok {
			return float64(i)
		}
	case String:
		if _, ok := v.(string); !ok {
			return Format(v)
		}
	}
	return v
}

// Columns returns a copy of the schema.
func (t *Table) Columns() []Column {
	return append([]Column(nil), t.cols...)
}

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by name.
func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return Column{}, false
	}
	return t.cols[i], true
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Width returns the number of columns.
func (t *Table) Width() int { return len(t.cols) }

// Has reports whether every named column exists.
func (t *Table) Has(names ...string) bool {
	for _, n := range names {
		if _, ok := t.index[n]; !ok {
			return false
		}
	}
	return true
}

// Index returns the position of a column, or -1.
func (t *Table) Index(name string) int {
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// Row returns a copy of row i.
func (t *Table) Row(i int) Row {
	return append(Row(nil), t.rows[i]...)
}

// Rows returns a copy of all rows.
func (t *Table) Rows() []Row {
	out := make([]Row, len(t.rows))
	for i := range t.rows {
		out[i] = t.Row(i)
	}
	return out
}

// Value returns the cell at row i in the named column, or nil when the
// column does not exist.
func (t *Table) Value(i int, name string) any {
	j, ok := t.index[name]
	if !ok {
		return nil
	}
	return t.rows[i][j]
}

// Record returns a named view of row i.
func (t *Table) Record(i int) Record {
	return Record{t: t, row: t.rows[i]}
}

// ColumnValues returns every value of one column in row order.
func (t *Table) ColumnValues(name string) ([]any, error) {
	j, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}
	out := make([]any, len(t.rows))
	for i, r := range t.rows {
		out[i] = r[j]
	}
	return out, nil
}

// Require returns an error naming the first missing column.
func (t *Table) Require(names ...string) error {
	for _, n := range names {
		if _, ok := t.index[n]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownColumn, n)
		}
	}
	return nil
}

// Record is a read-only view of one row addressed by column name.
type Record struct {
	t   *Table
	row Row
}

// Get returns the named value, or nil when the column does not exist.
func (r Record) Get(name string) any {
	j, ok := r.t.index[name]
	if !ok {
		return nil
	}
	return r.row[j]
}

// Float returns the named value as a float when it is numeric.
func (r Record) Float(name string) (float64, bool) {
	return ToFloat(r.Get(name))
}

// String returns the formatted named value.
func (r Record) String(name string) string {
	return Format(r.Get(name))
}

// Time returns the named value when it is a date.
func (r Record) Time(name string) (time.Time, bool) {
	t, ok := r.Get(name).(time.Time)
	return t, ok
}

// Builder accumulates rows for a table with a known schema.
type Builder struct {
	names []string
	rows  []Row
}

// NewBuilder starts a table with the given columns.
func NewBuilder(names ...string) *Builder {
	return &Builder{names: names}
}

// Add appends one row.
func (b *Builder) Add(values ...any) *Builder {
	b.rows = append(b.rows, Row(values))
	return b
}

// Len returns the number of rows added so far.
func (b *Builder) Len() int { return len(b.rows) }

// Table builds the table.
func (b *Builder) Table() (*Table, error) {
	return New(b.names, b.rows)
}

// MustTable builds the table and panics on error.
func (b *Builder) MustTable() *Table {
	return MustNew(b.names, b.rows)
}
