package analysis

import (
	"time"

	"github.com/klytics/xlpipe/internal/aggregate"
	"github.com/klytics/xlpipe/internal/join"
	"github.com/klytics/xlpipe/internal/table"
)

// step is one stage of an in-memory query.
type step func(*table.Table) (*table.Table, error)

// pipe applies steps in order and stops at the first error.
func pipe(t *table.Table, steps ...step) (*table.Table, error) {
	var err error
	for _, s := range steps {
		if t, err = s(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func joinOn(right *table.Table, kind join.Kind, key string) step {
	return func(t *table.Table) (*table.Table, error) {
		return join.Join(t, right, kind, join.On(key))
	}
}

func groupBy(keys []string, reds ...aggregate.Reduction) step {
	return func(t *table.Table) (*table.Table, error) {
		return aggregate.GroupBy(t, aggregate.Spec{Keys: keys, Reductions: reds})
	}
}

func derive(name string, fn func(table.Record) any) step {
	return func(t *table.Table) (*table.Table, error) {
		return t.WithColumn(name, fn)
	}
}

// round rounds numeric cells of the given columns; nil stays nil.
func round(places int, cols ...string) step {
	return func(t *table.Table) (*table.Table, error) {
		var err error
		for _, c := range cols {
			t, err = t.WithColumn(c, func(r table.Record) any {
				return roundValue(r.Get(c), places)
			})
			if err != nil {
				return nil, err
			}
		}
		return t, nil
	}
}

func where(keep func(table.Record) bool) step {
	return func(t *table.Table) (*table.Table, error) {
		return t.Filter(keep), nil
	}
}

func orderBy(keys ...table.SortKey) step {
	return func(t *table.Table) (*table.Table, error) {
		return t.Sort(keys...)
	}
}

func limit(n int) step {
	return func(t *table.Table) (*table.Table, error) {
		return t.Head(n), nil
	}
}

func columns(names ...string) step {
	return func(t *table.Table) (*table.Table, error) {
		return t.Select(names...)
	}
}

func roundValue(v any, places int) any {
	f, ok := table.ToFloat(v)
	if !ok {
		return nil
	}
	return table.Round(f, places)
}

// minus subtracts like SQL: nil on either side gives nil and two integers
// stay integral.
func minus(a, b any) any {
	ai, aok := a.(int64)
	bi, bok := b.(int64)
	if aok && bok {
		return ai - bi
	}
	af, aok := table.ToFloat(a)
	bf, bok := table.ToFloat(b)
	if !aok || !bok {
		return nil
	}
	return af - bf
}

// less reports a < b for two numbers; nil or text is never less.
func less(a, b any) bool {
	af, aok := table.ToFloat(a)
	bf, bok := table.ToFloat(b)
	return aok && bok && af < bf
}

// scaled returns v*k as a float, nil when v is not a number.
func scaled(v any, k float64) any {
	f, ok := table.ToFloat(v)
	if !ok {
		return nil
	}
	return f * k
}

// daySpan is the number of calendar days covered by a date column,
// counting both ends; nil when the column holds no dates.
func daySpan(t *table.Table, column string) any {
	vals, err := t.ColumnValues(column)
	if err != nil {
		return nil
	}
	var lo, hi time.Time
	found := false
	for _, v := range vals {
		d, ok := v.(time.Time)
		if !ok {
			continue
		}
		if !found || d.Before(lo) {
			lo = d
		}
		if !found || d.After(hi) {
			hi = d
		}
		found = true
	}
	if !found {
		return nil
	}
	return hi.Sub(lo).Hours()/24 + 1
}

// stockStatus classifies stock against its reorder point.
func stockStatus(stock, reorder any) string {
	switch {
	case less(stock, reorder):
		return StatusReorder
	case less(stock, scaled(reorder, 1.5)):
		return StatusMonitor
	}
	return StatusOK
}
