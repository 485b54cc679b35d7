package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"

	"GridPull/internal/domain/models"
	"GridPull/pkg/cache"
	pkginflux "GridPull/pkg/influx"
	applogger "GridPull/pkg/logger"
	"GridPull/pkg/timeseries"
)

// Client reads weather observations from InfluxDB and shapes them into the
// provider frame: one value column per requested parameter plus provenance
// labels. A primary source is consulted first; when a backup source is
// configured its observations fill the primary's holes and the provenance
// columns carry the suffixed join shape.
type Client struct {
	client *pkginflux.Client
	q      api.QueryAPI
	bucket string
	source string
	backup string
	cache  cache.Service
	ttl    time.Duration
	l      *applogger.Logger
}

// Option configures Client.
type Option func(*Client)

// WithSources sets the primary and backup source tags. An empty backup
// disables the fallback query.
func WithSources(primary, backup string) Option {
	return func(c *Client) {
		if primary != "" {
			c.source = primary
		}
		c.backup = backup
	}
}

// WithCache enables read-through caching of shaped frames.
func WithCache(svc cache.Service, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = svc
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// NewClient creates a weather client over one InfluxDB bucket.
func NewClient(cl *pkginflux.Client, bucket string, opts ...Option) *Client {
	c := &Client{
		client: cl,
		q:      cl.QueryAPI(),
		bucket: bucket,
		source: "optimum",
		ttl:    15 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetLogger injects a structured logger.
func (c *Client) SetLogger(l *applogger.Logger) { c.l = l }

// GetWeather returns shaped weather observations for one location.
func (c *Client) GetWeather(ctx context.Context, loc models.Location, params []string, from, to time.Time) (*timeseries.Frame, error) {
	if len(params) == 0 {
		return timeseries.NewBuilder().Frame(), nil
	}

	key := frameKey(c.source, c.backup, loc.City, params, from, to)
	if c.cache != nil {
		var blob string
		if err := c.cache.Get(ctx, key, &blob); err == nil {
			frame := &timeseries.Frame{}
			if err := json.Unmarshal([]byte(blob), frame); err == nil {
				if c.l != nil {
					c.l.Debug("weather cache hit",
						applogger.String("city", loc.City),
						applogger.Int("rows", frame.Len()),
					)
				}
				return frame, nil
			}
			// Corrupt entry: drop it and fall through to the query
			_ = c.cache.Delete(ctx, key)
		}
	}

	// Only the lock holder refreshes the cache entry, so concurrent misses
	// do not write identical payloads over each other.
	refresh := false
	if c.cache != nil {
		locked, _ := c.cache.TryLock(ctx, key+":lock", 10*time.Second)
		refresh = locked
		if locked {
			defer func() { _ = c.cache.Unlock(ctx, key+":lock") }()
		}
	}

	start := time.Now()
	primary, err := c.fetchSource(ctx, c.source, loc.City, params, from, to)
	if err != nil {
		return nil, err
	}

	var frame *timeseries.Frame
	if c.backup == "" {
		frame = withProvenance(primary, c.source, loc.City)
	} else {
		backup, err := c.fetchSource(ctx, c.backup, loc.City, params, from, to)
		if err != nil {
			return nil, err
		}
		frame = combineSources(primary, backup, c.source, c.backup, loc.City)
	}

	if c.l != nil {
		c.l.Info("weather fetch ok",
			applogger.String("source", c.source),
			applogger.String("city", loc.City),
			applogger.Int("rows", frame.Len()),
			applogger.Int("cols", frame.NumCols()),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}

	if c.cache != nil && refresh {
		if blob, err := json.Marshal(frame); err == nil {
			if err := c.cache.Set(ctx, key, string(blob), c.ttl); err != nil && c.l != nil {
				c.l.Warn("weather cache write failed", applogger.Error(err))
			}
		}
	}
	return frame, nil
}

func (c *Client) fetchSource(ctx context.Context, source, city string, params []string, from, to time.Time) (*timeseries.Frame, error) {
	cityFilter := ""
	if city != "" {
		cityFilter = fmt.Sprintf("\n  |> filter(fn: (r) => r.input_city == %q)", city)
	}
	flux := fmt.Sprintf(`
from(bucket: "%s")
  |> range(start: %s, stop: %s)
  |> filter(fn: (r) => r._measurement == "weather")
  |> filter(fn: (r) => r.source == "%s")%s
  |> filter(fn: (r) => %s)
  |> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
  |> sort(columns: ["_time"], desc: false)
`, c.bucket, pkginflux.FluxTime(from), pkginflux.FluxStop(to), source, cityFilter, fieldFilter(params))

	res, err := c.q.Query(ctx, flux)
	if err != nil {
		if c.l != nil {
			c.l.Error("influx weather query error",
				applogger.String("bucket", c.bucket),
				applogger.String("source", source),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("weather %s: %w", source, err)
	}

	// Guard against nil result (can happen with empty query results)
	frame := timeseries.NewBuilder().Frame()
	if res != nil {
		if frame, err = collectParams(res, params); err != nil {
			if c.l != nil {
				c.l.Error("influx weather result error",
					applogger.String("bucket", c.bucket),
					applogger.String("source", source),
					applogger.Error(err),
				)
			}
			return nil, fmt.Errorf("weather %s: %w", source, err)
		}
	}
	return frame, nil
}

// fieldFilter builds the _field clause for the requested parameters.
func fieldFilter(params []string) string {
	terms := make([]string, len(params))
	for i, p := range params {
		terms[i] = fmt.Sprintf("r._field == %q", p)
	}
	return strings.Join(terms, " or ")
}

// collectParams reads a pivoted result. Every requested parameter becomes a
// column in the given order, NaN where a row misses the field.
func collectParams(res pkginflux.Result, params []string) (*timeseries.Frame, error) {
	b := timeseries.NewBuilder()
	for res.Next() {
		rec := res.Record()
		b.StartRow(rec.Time())
		for _, p := range params {
			v, ok := rec.ValueByKey(p).(float64)
			if !ok {
				v = math.NaN()
			}
			b.SetValue(p, v)
		}
	}
	if err := res.Err(); err != nil {
		return nil, err
	}
	return b.Frame(), nil
}

// withProvenance labels every row with the source it came from.
func withProvenance(f *timeseries.Frame, source, city string) *timeseries.Frame {
	n := f.Len()
	if n == 0 {
		return f
	}
	src := make([]string, n)
	cty := make([]string, n)
	for i := range src {
		src[i] = source
		cty[i] = city
	}
	_ = f.SetLabels("source", src)
	_ = f.SetLabels("input_city", cty)
	return f
}

// combineSources outer-joins primary and backup observations. Primary cells
// win; backup fills the holes. Provenance comes back in the suffixed join
// shape: source per primary row, source_1 per backup row, and the city on
// the suffixed column only.
func combineSources(primary, backup *timeseries.Frame, primarySource, backupSource, city string) *timeseries.Frame {
	pIdx, bIdx := primary.Index(), backup.Index()
	pPos := make(map[int64]int, len(pIdx))
	for i, t := range pIdx {
		pPos[t.UnixNano()] = i
	}
	bPos := make(map[int64]int, len(bIdx))
	for i, t := range bIdx {
		bPos[t.UnixNano()] = i
	}

	union := make([]time.Time, 0, len(pIdx)+len(bIdx))
	union = append(union, pIdx...)
	for _, t := range bIdx {
		if _, ok := pPos[t.UnixNano()]; !ok {
			union = append(union, t)
		}
	}
	sort.Slice(union, func(i, j int) bool { return union[i].Before(union[j]) })

	cols := primary.Columns()
	for _, name := range backup.Columns() {
		if !primary.HasColumn(name) {
			cols = append(cols, name)
		}
	}

	out := timeseries.New(union)
	for _, name := range cols {
		vals := make([]float64, len(union))
		for i, t := range union {
			v := math.NaN()
			if j, ok := pPos[t.UnixNano()]; ok {
				v = primary.At(j, name)
			}
			if math.IsNaN(v) {
				if j, ok := bPos[t.UnixNano()]; ok {
					v = backup.At(j, name)
				}
			}
			vals[i] = v
		}
		_ = out.SetValues(name, vals)
	}

	if len(union) == 0 {
		return out
	}
	src := make([]string, len(union))
	src1 := make([]string, len(union))
	cty := make([]string, len(union))
	for i, t := range union {
		if _, ok := pPos[t.UnixNano()]; ok {
			src[i] = primarySource
		}
		if _, ok := bPos[t.UnixNano()]; ok {
			src1[i] = backupSource
		}
		cty[i] = city
	}
	_ = out.SetLabels("source", src)
	_ = out.SetLabels("source_1", src1)
	_ = out.SetLabels("input_city_1", cty)
	return out
}

// frameKey derives a stable cache key for one shaped fetch.
func frameKey(source, backup, city string, params []string, from, to time.Time) string {
	raw := cache.GenerateKeyWithParams("weather", source, backup, city,
		strings.Join(params, ","), from.Unix(), to.Unix())
	return cache.GenerateKey("weather", cache.HashKey(raw))
}
