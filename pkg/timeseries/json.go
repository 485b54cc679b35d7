package timeseries

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// frameJSON is the wire form of a Frame. Missing values travel as null
// because encoding/json cannot represent NaN.
type frameJSON struct {
	Index   []time.Time  `json:"index"`
	Columns []columnJSON `json:"columns"`
	Labels  []labelsJSON `json:"labels,omitempty"`
}

type columnJSON struct {
	Name   string     `json:"name"`
	Values []*float64 `json:"values"`
}

type labelsJSON struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// MarshalJSON implements json.Marshaler.
func (f *Frame) MarshalJSON() ([]byte, error) {
	w := frameJSON{
		Index:   f.Index(),
		Columns: []columnJSON{},
	}
	for _, name := range f.order {
		if src, ok := f.values[name]; ok {
			vals := make([]*float64, len(src))
			for i, v := range src {
				if !math.IsNaN(v) {
					vv := v
					vals[i] = &vv
				}
			}
			w.Columns = append(w.Columns, columnJSON{Name: name, Values: vals})
			continue
		}
		if src, ok := f.labels[name]; ok {
			labs := make([]string, len(src))
			copy(labs, src)
			w.Labels = append(w.Labels, labelsJSON{Name: name, Values: labs})
		}
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler. Label columns come back after
// value columns; within each kind the original order is kept.
func (f *Frame) UnmarshalJSON(b []byte) error {
	var w frameJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	nf := New(w.Index)
	for _, c := range w.Columns {
		vals := make([]float64, len(c.Values))
		for i, v := range c.Values {
			if v == nil {
				vals[i] = math.NaN()
			} else {
				vals[i] = *v
			}
		}
		if err := nf.SetValues(c.Name, vals); err != nil {
			return fmt.Errorf("decode frame: %w", err)
		}
	}
	for _, l := range w.Labels {
		if err := nf.SetLabels(l.Name, l.Values); err != nil {
			return fmt.Errorf("decode frame: %w", err)
		}
	}
	*f = *nf
	return nil
}
