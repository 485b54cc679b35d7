// Package timeseries provides the time-indexed table type the predictor
// pipeline exchanges, plus grid construction and resampling over it.
package timeseries

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Frame is a table with a strictly ascending, duplicate-free UTC time index
// and named columns. Value columns hold float64 with NaN for missing points;
// label columns hold strings (provenance tags) with "" for missing points.
// Column order is insertion order and is preserved through merges.
type Frame struct {
	index  []time.Time
	order  []string
	values map[string][]float64
	labels map[string][]string
}

// New creates a frame over the given index with no columns.
// The index is copied and normalized to UTC; it must be ascending and unique.
func New(index []time.Time) *Frame {
	idx := make([]time.Time, len(index))
	for i, t := range index {
		idx[i] = t.UTC()
	}
	return &Frame{
		index:  idx,
		order:  []string{},
		values: make(map[string][]float64),
		labels: make(map[string][]string),
	}
}

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.index) }

// NumCols returns the number of columns (value and label).
func (f *Frame) NumCols() int { return len(f.order) }

// IsEmpty reports whether the frame has no rows or no columns.
func (f *Frame) IsEmpty() bool { return f.Len() == 0 || f.NumCols() == 0 }

// Index returns a copy of the time index.
func (f *Frame) Index() []time.Time {
	idx := make([]time.Time, len(f.index))
	copy(idx, f.index)
	return idx
}

// Columns returns column names in order.
func (f *Frame) Columns() []string {
	cols := make([]string, len(f.order))
	copy(cols, f.order)
	return cols
}

// HasColumn reports whether a column exists.
func (f *Frame) HasColumn(name string) bool {
	_, v := f.values[name]
	_, l := f.labels[name]
	return v || l
}

// SetValues adds or replaces a value column. Length must match the index.
func (f *Frame) SetValues(name string, vals []float64) error {
	if len(vals) != len(f.index) {
		return fmt.Errorf("column %s: %d values for %d rows", name, len(vals), len(f.index))
	}
	if !f.HasColumn(name) {
		f.order = append(f.order, name)
	}
	delete(f.labels, name)
	cp := make([]float64, len(vals))
	copy(cp, vals)
	f.values[name] = cp
	return nil
}

// SetLabels adds or replaces a label column. Length must match the index.
func (f *Frame) SetLabels(name string, vals []string) error {
	if len(vals) != len(f.index) {
		return fmt.Errorf("column %s: %d labels for %d rows", name, len(vals), len(f.index))
	}
	if !f.HasColumn(name) {
		f.order = append(f.order, name)
	}
	delete(f.values, name)
	cp := make([]string, len(vals))
	copy(cp, vals)
	f.labels[name] = cp
	return nil
}

// Values returns the backing slice of a value column.
func (f *Frame) Values(name string) ([]float64, bool) {
	v, ok := f.values[name]
	return v, ok
}

// Labels returns the backing slice of a label column.
func (f *Frame) Labels(name string) ([]string, bool) {
	l, ok := f.labels[name]
	return l, ok
}

// HasLabelColumns reports whether any label column remains.
func (f *Frame) HasLabelColumns() bool { return len(f.labels) > 0 }

// At returns the value at row i of a value column, NaN when absent.
func (f *Frame) At(i int, name string) float64 {
	v, ok := f.values[name]
	if !ok || i < 0 || i >= len(v) {
		return math.NaN()
	}
	return v[i]
}

// Rename renames a column. When the target name already exists the existing
// column is discarded and the renamed one keeps its own position.
func (f *Frame) Rename(old, new string) {
	if old == new || !f.HasColumn(old) {
		return
	}
	if f.HasColumn(new) {
		f.dropName(new)
	}
	for i, n := range f.order {
		if n == old {
			f.order[i] = new
			break
		}
	}
	if v, ok := f.values[old]; ok {
		f.values[new] = v
		delete(f.values, old)
	}
	if l, ok := f.labels[old]; ok {
		f.labels[new] = l
		delete(f.labels, old)
	}
}

// Drop removes a column if present.
func (f *Frame) Drop(name string) {
	if !f.HasColumn(name) {
		return
	}
	f.dropName(name)
}

func (f *Frame) dropName(name string) {
	for i, n := range f.order {
		if n == name {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	delete(f.values, name)
	delete(f.labels, name)
}

// posByTime maps index timestamps to row positions.
func (f *Frame) posByTime() map[int64]int {
	m := make(map[int64]int, len(f.index))
	for i, t := range f.index {
		m[t.UnixNano()] = i
	}
	return m
}

// Merge outer-joins two frames: the result index is the union of both
// indexes, with NaN (or "") where a side has no row. Left columns come
// first; a name collision keeps the left position but takes the right
// column's data.
func Merge(left, right *Frame) *Frame {
	idx := unionIndex(left.index, right.index)
	out := New(idx)

	leftPos := left.posByTime()
	rightPos := right.posByTime()

	align := func(f *Frame, pos map[int64]int, name string) {
		if src, ok := f.values[name]; ok {
			vals := make([]float64, len(idx))
			for i, t := range idx {
				if j, ok := pos[t.UnixNano()]; ok {
					vals[i] = src[j]
				} else {
					vals[i] = math.NaN()
				}
			}
			_ = out.SetValues(name, vals)
			return
		}
		if src, ok := f.labels[name]; ok {
			labs := make([]string, len(idx))
			for i, t := range idx {
				if j, ok := pos[t.UnixNano()]; ok {
					labs[i] = src[j]
				}
			}
			_ = out.SetLabels(name, labs)
		}
	}

	for _, name := range left.order {
		if right.HasColumn(name) {
			align(right, rightPos, name)
		} else {
			align(left, leftPos, name)
		}
	}
	for _, name := range right.order {
		if !left.HasColumn(name) {
			align(right, rightPos, name)
		}
	}
	return out
}

func unionIndex(a, b []time.Time) []time.Time {
	seen := make(map[int64]struct{}, len(a)+len(b))
	out := make([]time.Time, 0, len(a)+len(b))
	for _, t := range a {
		if _, ok := seen[t.UnixNano()]; !ok {
			seen[t.UnixNano()] = struct{}{}
			out = append(out, t)
		}
	}
	for _, t := range b {
		if _, ok := seen[t.UnixNano()]; !ok {
			seen[t.UnixNano()] = struct{}{}
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Builder accumulates rows in ascending time order, growing columns on
// first touch so column order stays deterministic under caller control.
type Builder struct {
	times  []time.Time
	order  []string
	values map[string][]float64
	labels map[string][]string
	isLab  map[string]bool
}

// NewBuilder creates an empty frame builder.
func NewBuilder() *Builder {
	return &Builder{
		values: make(map[string][]float64),
		labels: make(map[string][]string),
		isLab:  make(map[string]bool),
	}
}

// StartRow begins a new row at t. Rows must be added in ascending order;
// a repeated timestamp reuses the existing row.
func (b *Builder) StartRow(t time.Time) {
	t = t.UTC()
	n := len(b.times)
	if n > 0 && b.times[n-1].Equal(t) {
		return
	}
	b.times = append(b.times, t)
	for name := range b.values {
		b.values[name] = append(b.values[name], math.NaN())
	}
	for name := range b.labels {
		b.labels[name] = append(b.labels[name], "")
	}
}

// SetValue sets a value column cell in the current row.
func (b *Builder) SetValue(name string, v float64) {
	if len(b.times) == 0 {
		return
	}
	if _, ok := b.values[name]; !ok {
		col := make([]float64, len(b.times))
		for i := range col {
			col[i] = math.NaN()
		}
		b.values[name] = col
		b.order = append(b.order, name)
	}
	b.values[name][len(b.times)-1] = v
}

// SetLabel sets a label column cell in the current row.
func (b *Builder) SetLabel(name string, v string) {
	if len(b.times) == 0 {
		return
	}
	if _, ok := b.labels[name]; !ok {
		b.labels[name] = make([]string, len(b.times))
		b.order = append(b.order, name)
		b.isLab[name] = true
	}
	b.labels[name][len(b.times)-1] = v
}

// Frame finalizes the builder into a Frame.
func (b *Builder) Frame() *Frame {
	f := New(b.times)
	for _, name := range b.order {
		if b.isLab[name] {
			_ = f.SetLabels(name, b.labels[name])
		} else {
			_ = f.SetValues(name, b.values[name])
		}
	}
	return f
}
