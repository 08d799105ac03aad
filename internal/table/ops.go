package table

import (
	"fmt"
	"sort"
)

// Select returns a table with only the named columns, in the given order.
func (t *Table) Select(names ...string) (*Table, error) {
	if err := t.Require(names...); err != nil {
		return nil, err
	}
	rows := make([]Row, len(t.rows))
	for i, r := range t.rows {
		row := make(Row, len(names))
		for k, n := range names {
			row[k] = r[t.index[n]]
		}
		rows[i] = row
	}
	return New(names, rows)
}

// Rename returns a table with columns renamed according to m. Columns not in
// m keep their names.
func (t *Table) Rename(m map[string]string) (*Table, error) {
	for from := range m {
		if !t.Has(from) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, from)
		}
	}
	names := t.ColumnNames()
	for i, n := range names {
		if to, ok := m[n]; ok {
			names[i] = to
		}
	}
	return New(names, t.rows)
}

// WithColumn returns a table with a column computed from each row. An
// existing column of the same name is replaced in place; otherwise the new
// column is appended.
func (t *Table) WithColumn(name string, fn func(Record) any) (*Table, error) {
	names := t.ColumnNames()
	pos, exists := t.index[name]
	if !exists {
		names = append(names, name)
		pos = len(names) - 1
	}
	rows := make([]Row, len(t.rows))
	for i, r := range t.rows {
		row := make(Row, len(names))
		copy(row, r)
		row[pos] = fn(Record{t: t, row: r})
		rows[i] = row
	}
	return New(names, rows)
}

// Filter returns the rows for which keep returns true.
func (t *Table) Filter(keep func(Record) bool) *Table {
	var rows []Row
	for _, r := range t.rows {
		if keep(Record{t: t, row: r}) {
			rows = append(rows, r)
		}
	}
	return MustNew(t.ColumnNames(), rows)
}

// Head returns at most the first n rows.
func (t *Table) Head(n int) *Table {
	if n < 0 || n >= len(t.rows) {
		return t
	}
	return MustNew(t.ColumnNames(), t.rows[:n])
}

// SortKey orders rows by one column.
type SortKey struct {
	Column string
	Desc   bool
}

// Asc sorts by column ascending.
func Asc(column string) SortKey { return SortKey{Column: column} }

// Desc sorts by column descending.
func Desc(column string) SortKey { return SortKey{Column: column, Desc: true} }

// Sort returns the rows ordered by keys. The sort is stable, so rows that
// compare equal keep their relative order. Nil values sort last in either
// direction.
func (t *Table) Sort(keys ...SortKey) (*Table, error) {
	idx := make([]int, len(keys))
	for k, key := range keys {
		j, ok := t.index[key.Column]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, key.Column)
		}
		idx[k] = j
	}
	rows := append([]Row(nil), t.rows...)
	sort.SliceStable(rows, func(a, b int) bool {
		for k, key := range keys {
			va, vb := rows[a][idx[k]], rows[b][idx[k]]
			switch {
			case va == nil && vb == nil:
				continue
			case va == nil:
				return false
			case vb == nil:
				return true
			}
			c := Compare(va, vb)
			if c == 0 {
				continue
			}
			if key.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return New(t.ColumnNames(), rows)
}

// Concat appends the rows of others to t. All tables must share t's column
// names in the same order.
func (t *Table) Concat(others ...*Table) (*Table, error) {
	rows := append([]Row(nil), t.rows...)
	names := t.ColumnNames()
	for _, o := range others {
		on := o.ColumnNames()
		if len(on) != len(names) {
			return nil, fmt.Errorf("cannot concat %d columns onto %d", len(on), len(names))
		}
		for i := range on {
			if on[i] != names[i] {
				return nil, fmt.Errorf("cannot concat: column %d is %q, want %q", i+1, on[i], names[i])
			}
		}
		rows = append(rows, o.rows...)
	}
	return New(names, rows)
}
