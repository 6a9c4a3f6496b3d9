// Package series holds the hourly wide tables behind the yearly CSV files: one
// datetime column followed by one column per station, missing values empty.
package series

import (
	"math"
	"sort"
)

// TimeLayout is the datetime format of every row, in station local time.
const TimeLayout = "2006-01-02 15:04"

// DatetimeColumn is the header of the first column.
const DatetimeColumn = "datetime"

// Table is an hourly table keyed by datetime string. Rows are expected to be in
// ascending time order; since the layout is fixed-width, string order is time
// order.
type Table struct {
	times   []string
	index   map[string]int
	columns []string
	values  map[string][]float64

	// duplicate header names seen when reading; kept for sanity checks
	dupColumns []string
}

// New returns a table with the given rows and no station columns.
func New(times []string) *Table {
	t := &Table{
		times:  make([]string, 0, len(times)),
		index:  make(map[string]int, len(times)),
		values: make(map[string][]float64),
	}
	for _, ts := range times {
		t.appendTime(ts)
	}
	return t
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.times) }

// Time returns the datetime of row i.
func (t *Table) Time(i int) string { return t.times[i] }

// Times returns a copy of the row datetimes.
func (t *Table) Times() []string {
	out := make([]string, len(t.times))
	copy(out, t.times)
	return out
}

// Columns returns a copy of the station column names in file order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// Has reports whether the station column exists.
func (t *Table) Has(col string) bool {
	_, ok := t.values[col]
	return ok
}

// AddColumn adds an all-missing column; existing columns are left alone.
func (t *Table) AddColumn(col string) {
	if t.Has(col) {
		return
	}
	vals := make([]float64, len(t.times))
	for i := range vals {
		vals[i] = math.NaN()
	}
	t.columns = append(t.columns, col)
	t.values[col] = vals
}

// Column returns the values of a station column, or nil when absent. The slice
// is shared with the table.
func (t *Table) Column(col string) []float64 {
	return t.values[col]
}

// Get returns the value at row i, NaN when the column is absent.
func (t *Table) Get(i int, col string) float64 {
	vals, ok := t.values[col]
	if !ok {
		return math.NaN()
	}
	return vals[i]
}

// Set stores a value, adding the column when needed.
func (t *Table) Set(i int, col string, v float64) {
	t.AddColumn(col)
	t.values[col][i] = v
}

// Row returns the index of the row with the given datetime.
func (t *Table) Row(ts string) (int, bool) {
	i, ok := t.index[ts]
	return i, ok
}

// AppendTime appends an all-missing row and returns its index. An existing
// datetime is not duplicated.
func (t *Table) AppendTime(ts string) int {
	if i, ok := t.index[ts]; ok {
		return i
	}
	return t.appendTime(ts)
}

func (t *Table) appendTime(ts string) int {
	i := len(t.times)
	t.times = append(t.times, ts)
	if _, ok := t.index[ts]; !ok {
		t.index[ts] = i
	}
	for _, col := range t.columns {
		t.values[col] = append(t.values[col], math.NaN())
	}
	return i
}

// LastTime returns the datetime of the final row, or "" for an empty table.
func (t *Table) LastTime() string {
	if len(t.times) == 0 {
		return ""
	}
	return t.times[len(t.times)-1]
}

// LastValid returns the datetime of the last non-missing value of a column.
func (t *Table) LastValid(col string) (string, bool) {
	vals, ok := t.values[col]
	if !ok {
		return "", false
	}
	for i := len(vals) - 1; i >= 0; i-- {
		if !math.IsNaN(vals[i]) {
			return t.times[i], true
		}
	}
	return "", false
}

// Sort orders rows by datetime.
func (t *Table) Sort() {
	if sort.StringsAreSorted(t.times) {
		return
	}
	perm := make([]int, len(t.times))
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(a, b int) bool { return t.times[perm[a]] < t.times[perm[b]] })

	times := make([]string, len(perm))
	for i, p := range perm {
		times[i] = t.times[p]
	}
	for _, col := range t.columns {
		src := t.values[col]
		dst := make([]float64, len(perm))
		for i, p := range perm {
			dst[i] = src[p]
		}
		t.values[col] = dst
	}
	t.times = times
	t.reindex()
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.times))
	for i, ts := range t.times {
		if _, ok := t.index[ts]; !ok {
			t.index[ts] = i
		}
	}
}

// Round rounds every value to the given number of decimals.
func (t *Table) Round(decimals int) {
	for _, col := range t.columns {
		vals := t.values[col]
		for i, v := range vals {
			vals[i] = RoundTo(v, decimals)
		}
	}
}

// RoundTo rounds v to the given decimals, ties to even; NaN stays NaN.
func RoundTo(v float64, decimals int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	p := math.Pow(10, float64(decimals))
	return math.RoundToEven(v*p) / p
}

// Filter returns a new table with the rows whose datetime satisfies keep.
func (t *Table) Filter(keep func(ts string) bool) *Table {
	return t.filterRows(func(i int) bool { return keep(t.times[i]) })
}

// Shrink returns a copy without the rows where every station is missing.
func (t *Table) Shrink() *Table {
	return t.filterRows(func(i int) bool {
		for _, col := range t.columns {
			if !math.IsNaN(t.values[col][i]) {
				return true
			}
		}
		return false
	})
}

func (t *Table) filterRows(keep func(i int) bool) *Table {
	out := New(nil)
	for _, col := range t.columns {
		out.AddColumn(col)
	}
	for i, ts := range t.times {
		if !keep(i) {
			continue
		}
		j := out.appendTime(ts)
		for _, col := range t.columns {
			out.values[col][j] = t.values[col][i]
		}
	}
	return out
}

// Concat stacks b under a. Columns are the union in order of first
// appearance; cells a table lacks are missing.
func Concat(a, b *Table) *Table {
	out := New(nil)
	for _, src := range []*Table{a, b} {
		if src == nil {
			continue
		}
		for _, col := range src.columns {
			out.AddColumn(col)
		}
	}
	for _, src := range []*Table{a, b} {
		if src == nil {
			continue
		}
		for i, ts := range src.times {
			j := out.appendTime(ts)
			for _, col := range src.columns {
				out.values[col][j] = src.values[col][i]
			}
		}
	}
	return out
}
