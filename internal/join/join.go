// Package join combines two tables on matching key columns.
//
// Output size for a left table L and right table R:
//
//	inner: at most |L| × (largest number of R rows sharing one key)
//	left:  exactly Σ max(1, matches(l)) over l in L, which is |L| when
//	       R's keys are unique
//
// Count computes the exact figure without building the result, for callers
// that want to guard against fan-out on large inputs.
package join

import (
	"errors"
	"fmt"

	"github.com/klytics/xlpipe/internal/table"
)

// Kind selects which unmatched rows survive.
type Kind int

const (
	// Inner keeps only left rows with at least one match.
	Inner Kind = iota
	// Left keeps every left row; unmatched ones get nil right columns.
	Left
)

func (k Kind) String() string {
	if k == Left {
		return "left"
	}
	return "inner"
}

// ParseKind accepts "inner" or "left".
func ParseKind(s string) (Kind, error) {
	switch s {
	case "inner", "":
		return Inner, nil
	case "left":
		return Left, nil
	}
	return Inner, fmt.Errorf("unknown join kind %q (want inner or left)", s)
}

// Suffix is appended to right-hand column names that clash with a left-hand
// column.
const Suffix = "_right"

// ErrNoKeys is returned when a join is requested without key columns.
var ErrNoKeys = errors.New("join needs at least one key")

// Key pairs a left column with the right column it must equal.
type Key struct {
	Left  string
	Right string
}

// On joins on a column that has the same name on both sides.
func On(name string) Key {
	return Key{Left: name, Right: name}
}

// Join matches every left row against every right row with equal keys.
// Matches are emitted in right-table order under each left row. Nil keys
// never match. Numbers compare by value, so 5 matches 5.0.
//
// The result holds all left columns followed by the right columns, except a
// right key column that has the same name as its left key. Any other right
// column whose name is already taken gets Suffix appended.
func Join(left, right *table.Table, kind Kind, keys ...Key) (*table.Table, error) {
	lk, rk, err := keyIndexes(left, right, keys)
	if err != nil {
		return nil, err
	}

	names := left.ColumnNames()
	taken := make(map[string]bool, len(names))
	for _, n := range names {
		taken[n] = true
	}
	dropped := map[int]bool{}
	for i, k := range keys {
		if k.Left == k.Right {
			dropped[rk[i]] = true
		}
	}
	var rightCols []int
	for j, n := range right.ColumnNames() {
		if dropped[j] {
			continue
		}
		for taken[n] {
			n += Suffix
		}
		taken[n] = true
		names = append(names, n)
		rightCols = append(rightCols, j)
	}

	index := buildIndex(right, rk)
	var rows []table.Row
	for i := 0; i < left.Len(); i++ {
		l := left.Row(i)
		matches := index[hashKey(l, lk)]
		if len(matches) == 0 {
			if kind == Left {
				row := make(table.Row, len(names))
				copy(row, l)
				rows = append(rows, row)
			}
			continue
		}
		for _, m := range matches {
			r := right.Row(m)
			row := make(table.Row, 0, len(names))
			row = append(row, l...)
			for _, j := range rightCols {
				row = append(row, r[j])
			}
			rows = append(rows, row)
		}
	}
	return table.New(names, rows)
}

// Count returns the number of rows Join would produce.
func Count(left, right *table.Table, kind Kind, keys ...Key) (int, error) {
	lk, rk, err := keyIndexes(left, right, keys)
	if err != nil {
		return 0, err
	}
	index := buildIndex(right, rk)
	n := 0
	for i := 0; i < left.Len(); i++ {
		m := len(index[hashKey(left.Row(i), lk)])
		if m == 0 && kind == Left {
			m = 1
		}
		n += m
	}
	return n, nil
}

func keyIndexes(left, right *table.Table, keys []Key) ([]int, []int, error) {
	if len(keys) == 0 {
		return nil, nil, ErrNoKeys
	}
	lk := make([]int, len(keys))
	rk := make([]int, len(keys))
	for i, k := range keys {
		if lk[i] = left.Index(k.Left); lk[i] < 0 {
			return nil, nil, fmt.Errorf("left side: %w: %q", table.ErrUnknownColumn, k.Left)
		}
		if rk[i] = right.Index(k.Right); rk[i] < 0 {
			return nil, nil, fmt.Errorf("right side: %w: %q", table.ErrUnknownColumn, k.Right)
		}
	}
	return lk, rk, nil
}

// buildIndex maps key hashes to right row numbers in table order. Rows with
// any nil key are left out, so they can never match.
func buildIndex(t *table.Table, cols []int) map[string][]int {
	index := make(map[string][]int, t.Len())
	for i := 0; i < t.Len(); i++ {
		h := hashKey(t.Row(i), cols)
		if h == "" {
			continue
		}
		index[h] = append(index[h], i)
	}
	return index
}

// hashKey returns "" when any key value is nil.
func hashKey(row table.Row, cols []int) string {
	h := ""
	for _, c := range cols {
		if row[c] == nil {
			return ""
		}
		h += table.Key(row[c]) + "\x1f"
	}
	return h
}
