// Package aggregate computes grouped summaries over tables.
//
// Semantics follow SQL GROUP BY: nil key values form their own group, nil
// inputs never contribute to a reduction, and a numeric reduction with no
// contributing values yields nil rather than zero or NaN.
package aggregate

import (
	"errors"
	"fmt"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/klytics/xlpipe/internal/table"
)

// ErrNotNumeric is returned when a numeric reduction meets a non-numeric
// column.
var ErrNotNumeric = errors.New("column is not numeric")

// Func names a reduction.
type Func string

const (
	Sum    Func = "sum"
	Mean   Func = "mean"
	Count  Func = "count"
	NUniq  Func = "nunique"
	Min    Func = "min"
	Max    Func = "max"
	Median Func = "median"
	First  Func = "first"
)

// ParseFunc accepts reduction names case-sensitively, plus "avg" and
// "count_distinct" as aliases.
func ParseFunc(s string) (Func, error) {
	switch f := Func(s); f {
	case Sum, Mean, Count, NUniq, Min, Max, Median, First:
		return f, nil
	case "avg":
		return Mean, nil
	case "count_distinct":
		return NUniq, nil
	}
	return "", fmt.Errorf("unknown aggregate %q (want sum, mean, count, nunique, min, max, median, first)", s)
}

func (f Func) numeric() bool {
	switch f {
	case Sum, Mean, Median:
		return true
	}
	return false
}

// Reduction computes one output column. Column "" or "*" with Count counts
// rows. As defaults to Column, or Column_func when that name is already
// taken by a key or an earlier reduction.
type Reduction struct {
	Column string
	Func   Func
	As     string
}

func (r Reduction) name() string {
	if r.As != "" {
		return r.As
	}
	if r.Column == "" || r.Column == "*" {
		return string(r.Func)
	}
	return r.Column
}

// outputNames lists the key columns followed by one unique name per
// reduction. Explicit As names are kept as given.
func outputNames(spec Spec) []string {
	names := append([]string(nil), spec.Keys...)
	taken := make(map[string]bool, len(names)+len(spec.Reductions))
	for _, k := range spec.Keys {
		taken[k] = true
	}
	for _, r := range spec.Reductions {
		name := r.name()
		if r.As == "" && taken[name] {
			name = fmt.Sprintf("%s_%s", name, r.Func)
			for i := 2; taken[name]; i++ {
				name = fmt.Sprintf("%s_%s_%d", r.name(), r.Func, i)
			}
		}
		taken[name] = true
		names = append(names, name)
	}
	return names
}

// Spec describes a group-by.
type Spec struct {
	Keys       []string
	Reductions []Reduction
	// SortBy orders the output by one output column, descending unless
	// Ascending is set. Empty keeps first-seen group order.
	SortBy    string
	Ascending bool
}

// Of is shorthand for a Reduction.
func Of(f Func, column, as string) Reduction {
	return Reduction{Column: column, Func: f, As: as}
}

type group struct {
	key  []any
	rows []int
}

// GroupBy partitions t by spec.Keys and applies each reduction per group.
// The result has one row per distinct key tuple, key columns first, then
// reductions in order. With no keys it has exactly one row, even when t is
// empty.
func GroupBy(t *table.Table, spec Spec) (*table.Table, error) {
	if err := t.Require(spec.Keys...); err != nil {
		return nil, err
	}
	for _, r := range spec.Reductions {
		if r.Column == "" || r.Column == "*" {
			if r.Func != Count {
				return nil, fmt.Errorf("aggregate %s needs a column", r.Func)
			}
			continue
		}
		col, ok := t.Column(r.Column)
		if !ok {
			return nil, fmt.Errorf("aggregate %s: %w: %q", r.Func, table.ErrUnknownColumn, r.Column)
		}
		if r.Func.numeric() && !col.Kind.Numeric() && hasValues(t, r.Column) {
			return nil, fmt.Errorf("%s(%s): %w (%s)", r.Func, r.Column, ErrNotNumeric, col.Kind)
		}
	}

	groups := partition(t, spec.Keys)
	if len(spec.Keys) == 0 && len(groups) == 0 {
		groups = []*group{{}}
	}

	names := outputNames(spec)

	rows := make([]table.Row, 0, len(groups))
	for _, g := range groups {
		row := append(table.Row(nil), g.key...)
		for _, r := range spec.Reductions {
			v, err := reduce(t, g.rows, r)
			if err != nil {
				return nil, err
			}
			row = append(row, v)
		}
		rows = append(rows, row)
	}

	out, err := table.New(names, rows)
	if err != nil {
		return nil, err
	}
	if spec.SortBy == "" {
		return out, nil
	}
	if spec.Ascending {
		return out.Sort(table.Asc(spec.SortBy))
	}
	return out.Sort(table.Desc(spec.SortBy))
}

func hasValues(t *table.Table, column string) bool {
	vals, _ := t.ColumnValues(column)
	for _, v := range vals {
		if v != nil {
			return true
		}
	}
	return false
}

// partition groups row indexes by key tuple in first-seen order.
func partition(t *table.Table, keys []string) []*group {
	var order []*group
	index := map[string]*group{}
	for i := 0; i < t.Len(); i++ {
		key := make([]any, len(keys))
		hash := ""
		for k, name := range keys {
			key[k] = t.Value(i, name)
			hash += table.Key(key[k]) + "\x1f"
		}
		g, ok := index[hash]
		if !ok {
			g = &group{key: key}
			index[hash] = g
			order = append(order, g)
		}
		g.rows = append(g.rows, i)
	}
	return order
}

func reduce(t *table.Table, rows []int, r Reduction) (any, error) {
	if r.Column == "" || r.Column == "*" {
		return int64(len(rows)), nil
	}

	var vals []any
	for _, i := range rows {
		if v := t.Value(i, r.Column); v != nil {
			vals = append(vals, v)
		}
	}

	switch r.Func {
	case Count:
		return int64(len(vals)), nil
	case NUniq:
		seen := map[string]bool{}
		for _, v := range vals {
			seen[table.Key(v)] = true
		}
		return int64(len(seen)), nil
	case First:
		if len(vals) == 0 {
			return nil, nil
		}
		return vals[0], nil
	case Min, Max:
		if len(vals) == 0 {
			return nil, nil
		}
		best := vals[0]
		for _, v := range vals[1:] {
			c := table.Compare(v, best)
			if (r.Func == Min && c < 0) || (r.Func == Max && c > 0) {
				best = v
			}
		}
		return best, nil
	}

	if len(vals) == 0 {
		return nil, nil
	}
	if r.Func == Sum {
		if ints, ok := allInts(vals); ok {
			var s int64
			for _, v := range ints {
				s += v
			}
			return s, nil
		}
	}
	data, err := floats(vals, r)
	if err != nil {
		return nil, err
	}

	var (
		res  float64
		serr error
	)
	switch r.Func {
	case Sum:
		res, serr = stats.Sum(data)
	case Mean:
		res, serr = stats.Mean(data)
	case Median:
		res, serr = stats.Median(data)
	default:
		return nil, fmt.Errorf("unknown aggregate %q", r.Func)
	}
	if serr != nil {
		return nil, fmt.Errorf("%s(%s): %w", r.Func, r.Column, serr)
	}
	return res, nil
}

func allInts(vals []any) ([]int64, bool) {
	out := make([]int64, len(vals))
	for i, v := range vals {
		n, ok := v.(int64)
		if !ok {
			return nil, false
		}
		out[i] = n
	}
	return out, true
}

func floats(vals []any, r Reduction) (stats.Float64Data, error) {
	out := make(stats.Float64Data, len(vals))
	for i, v := range vals {
		f, ok := table.ToFloat(v)
		if !ok {
			return nil, fmt.Errorf("%s(%s): %w: %q", r.Func, r.Column, ErrNotNumeric, table.Format(v))
		}
		out[i] = f
	}
	return out, nil
}

// Share adds column as, each row's value of column divided by the column
// total, scaled by 100. Rows get nil when the total is zero.
func Share(t *table.Table, column, as string) (*table.Table, error) {
	vals, err := t.ColumnValues(column)
	if err != nil {
		return nil, err
	}
	var total float64
	for _, v := range vals {
		if f, ok := table.ToFloat(v); ok {
			total += f
		}
	}
	return t.WithColumn(as, func(r table.Record) any {
		s := table.SafeDiv(r.Get(column), total)
		if s == nil {
			return nil
		}
		return table.Round(s.(float64)*100, 2)
	})
}

// Ratio adds column as = num / den per row, nil where den is zero or nil.
func Ratio(t *table.Table, num, den, as string) (*table.Table, error) {
	if err := t.Require(num, den); err != nil {
		return nil, err
	}
	return t.WithColumn(as, func(r table.Record) any {
		return table.SafeDiv(r.Get(num), r.Get(den))
	})
}

// Top returns the n rows with the largest values of column, ties kept in
// their existing order.
func Top(t *table.Table, column string, n int) (*table.Table, error) {
	sorted, err := t.Sort(table.Desc(column))
	if err != nil {
		return nil, err
	}
	return sorted.Head(n), nil
}

// Distinct returns the distinct non-nil values of a column in sorted order.
func Distinct(t *table.Table, column string) ([]any, error) {
	vals, err := t.ColumnValues(column)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []any
	for _, v := range vals {
		if v == nil || seen[table.Key(v)] {
			continue
		}
		seen[table.Key(v)] = true
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool { return table.Compare(out[i], out[j]) < 0 })
	return out, nil
}
