package timeseries

import (
	"fmt"
	"math"
	"time"
)

// ForwardFill aligns the frame onto grid, giving each grid point the most
// recent observed value at or before it. Points before the first observation
// stay missing; the last observation carries to the end of the grid without
// a cap. Prices go through this path and are never interpolated.
func (f *Frame) ForwardFill(grid []time.Time) (*Frame, error) {
	if f.HasLabelColumns() {
		return nil, fmt.Errorf("cannot resample label columns: %v", labelNames(f))
	}
	out := New(grid)
	for _, name := range f.order {
		src := f.values[name]
		vals := make([]float64, len(out.index))
		j := 0
		last := math.NaN()
		for i, g := range out.index {
			for j < len(f.index) && !f.index[j].After(g) {
				if v := src[j]; !math.IsNaN(v) {
					last = v
				}
				j++
			}
			vals[i] = last
		}
		_ = out.SetValues(name, vals)
	}
	return out, nil
}

// Interpolate aligns the frame onto grid by exact timestamp match and fills
// gaps linearly between observed neighbors, synthesizing at most limit
// consecutive points per gap. Leading gaps stay missing; trailing gaps are
// padded with the last observed value, also capped at limit. A limit of
// zero or less disables synthesis entirely.
func (f *Frame) Interpolate(grid []time.Time, limit int) (*Frame, error) {
	if f.HasLabelColumns() {
		return nil, fmt.Errorf("cannot resample label columns: %v", labelNames(f))
	}
	out := New(grid)
	pos := f.posByTime()
	for _, name := range f.order {
		src := f.values[name]
		vals := make([]float64, len(out.index))
		for i, g := range out.index {
			if j, ok := pos[g.UnixNano()]; ok {
				vals[i] = src[j]
			} else {
				vals[i] = math.NaN()
			}
		}
		if limit > 0 {
			fillGaps(out.index, vals, limit)
		}
		_ = out.SetValues(name, vals)
	}
	return out, nil
}

// fillGaps fills NaN runs in place. Interior runs get linear values between
// their anchors; the trailing run repeats the last anchor value. Both fill
// from the left and stop after limit points.
func fillGaps(index []time.Time, vals []float64, limit int) {
	prev := -1
	for i := 0; i <= len(vals); i++ {
		if i < len(vals) && math.IsNaN(vals[i]) {
			continue
		}
		if i == len(vals) {
			// trailing run after the last anchor
			if prev >= 0 {
				for k := prev + 1; k < len(vals) && k-prev <= limit; k++ {
					vals[k] = vals[prev]
				}
			}
			break
		}
		if prev >= 0 && i-prev > 1 {
			interpolateRun(index, vals, prev, i, limit)
		}
		prev = i
	}
}

// interpolateRun fills vals between anchors a and b (exclusive) along the
// straight line through the anchor values, at most limit points from a.
func interpolateRun(index []time.Time, vals []float64, a, b, limit int) {
	span := index[b].Sub(index[a])
	if span <= 0 {
		return
	}
	for k := a + 1; k < b && k-a <= limit; k++ {
		frac := float64(index[k].Sub(index[a])) / float64(span)
		vals[k] = vals[a] + (vals[b]-vals[a])*frac
	}
}

func labelNames(f *Frame) []string {
	names := make([]string, 0, len(f.labels))
	for _, n := range f.order {
		if _, ok := f.labels[n]; ok {
			names = append(names, n)
		}
	}
	return names
}
