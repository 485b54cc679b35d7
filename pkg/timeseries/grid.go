package timeseries

import (
	"fmt"
	"time"
)

// BuildGrid returns the UTC time grid from start to end inclusive at the
// given step. The grid starts exactly at start; end is included only when
// it lands on a step. A zero step yields just the boundary points, which
// callers use to skip resampling while still bounding the output window.
func BuildGrid(start, end time.Time, step time.Duration) ([]time.Time, error) {
	if start.IsZero() || end.IsZero() {
		return nil, fmt.Errorf("grid bounds are required")
	}
	if step < 0 {
		return nil, fmt.Errorf("negative grid step %s", step)
	}
	start = start.UTC()
	end = end.UTC()
	if start.After(end) {
		return nil, fmt.Errorf("grid start %s after end %s",
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	if step == 0 {
		if start.Equal(end) {
			return []time.Time{start}, nil
		}
		return []time.Time{start, end}, nil
	}

	grid := make([]time.Time, 0, int(end.Sub(start)/step)+1)
	for t := start; !t.After(end); t = t.Add(step) {
		grid = append(grid, t)
	}
	return grid, nil
}
