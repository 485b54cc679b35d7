package weather

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/query"
	"github.com/influxdata/influxdb-client-go/v2/domain"

	"GridPull/internal/domain/models"
	"GridPull/pkg/cache"
	"GridPull/pkg/timeseries"
)

// --- Mock InfluxDB QueryAPI ---

type MockQueryAPI struct {
	QueryFunc func(ctx context.Context, query string) (*api.QueryTableResult, error)
	Queries   []string
}

func (m *MockQueryAPI) Query(ctx context.Context, q string) (*api.QueryTableResult, error) {
	m.Queries = append(m.Queries, q)
	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, q)
	}
	return nil, nil
}

func (m *MockQueryAPI) QueryRaw(ctx context.Context, query string, dialect *domain.Dialect) (string, error) {
	return "", nil
}

func (m *MockQueryAPI) QueryRawWithParams(ctx context.Context, query string, dialect *domain.Dialect, params interface{}) (string, error) {
	return "", nil
}

func (m *MockQueryAPI) QueryWithParams(ctx context.Context, query string, params interface{}) (*api.QueryTableResult, error) {
	return nil, nil
}

// --- Fake flux result ---

type fakeFluxResult struct {
	records []*query.FluxRecord
	pos     int
	err     error
}

func (f *fakeFluxResult) Next() bool {
	if f.pos >= len(f.records) {
		return false
	}
	f.pos++
	return true
}

func (f *fakeFluxResult) Record() *query.FluxRecord { return f.records[f.pos-1] }
func (f *fakeFluxResult) Err() error                { return f.err }

func obsRecord(t time.Time, fields map[string]interface{}) *query.FluxRecord {
	vals := map[string]interface{}{"_time": t}
	for k, v := range fields {
		vals[k] = v
	}
	return query.NewFluxRecord(0, vals)
}

// --- Fake cache ---

type fakeCacheService struct {
	blob    string
	hit     bool
	lockOK  bool
	sets    []string
	deleted []string
	locked  bool
}

func (f *fakeCacheService) Set(_ context.Context, _ string, value interface{}, _ time.Duration) error {
	f.sets = append(f.sets, value.(string))
	return nil
}

func (f *fakeCacheService) Get(_ context.Context, _ string, dest interface{}) error {
	if !f.hit {
		return cache.ErrCacheMiss
	}
	*dest.(*string) = f.blob
	return nil
}

func (f *fakeCacheService) Delete(_ context.Context, keys ...string) error {
	f.deleted = append(f.deleted, keys...)
	return nil
}

func (f *fakeCacheService) Exists(_ context.Context, _ ...string) (bool, error) { return false, nil }

func (f *fakeCacheService) Expire(_ context.Context, _ string, _ time.Duration) (bool, error) {
	return false, nil
}

func (f *fakeCacheService) TryLock(_ context.Context, _ string, _ time.Duration) (bool, error) {
	f.locked = f.lockOK
	return f.lockOK, nil
}

func (f *fakeCacheService) Unlock(_ context.Context, _ string) error {
	f.locked = false
	return nil
}

func frameOf(times []time.Time, name string, vals []float64) *timeseries.Frame {
	f := timeseries.New(times)
	_ = f.SetValues(name, vals)
	return f
}

var testLoc = models.Location{City: "Amsterdam", Lat: 52.37, Lon: 4.89}

func TestFetchQueryComposition(t *testing.T) {
	mock := &MockQueryAPI{}
	c := &Client{q: mock, bucket: "weather", source: "optimum"}

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	f, err := c.GetWeather(context.Background(), testLoc, []string{"temp", "radiation"}, from, from.Add(6*time.Hour))
	if err != nil {
		t.Fatalf("get weather: %v", err)
	}
	if !f.IsEmpty() {
		t.Fatalf("expected empty frame from nil result")
	}
	if len(mock.Queries) != 1 {
		t.Fatalf("expected one query, got %d", len(mock.Queries))
	}
	for _, want := range []string{
		`from(bucket: "weather")`,
		`r._measurement == "weather"`,
		`r.source == "optimum"`,
		`r.input_city == "Amsterdam"`,
		`r._field == "temp" or r._field == "radiation"`,
		`pivot(rowKey:["_time"]`,
	} {
		if !strings.Contains(mock.Queries[0], want) {
			t.Fatalf("query missing %q:\n%s", want, mock.Queries[0])
		}
	}
}

func TestGetWeatherQueriesBackupSource(t *testing.T) {
	mock := &MockQueryAPI{}
	c := &Client{q: mock, bucket: "weather", source: "optimum", backup: "harmonie"}

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if _, err := c.GetWeather(context.Background(), testLoc, []string{"temp"}, from, from.Add(time.Hour)); err != nil {
		t.Fatalf("get weather: %v", err)
	}
	if len(mock.Queries) != 2 {
		t.Fatalf("expected primary and backup queries, got %d", len(mock.Queries))
	}
	if !strings.Contains(mock.Queries[0], `r.source == "optimum"`) {
		t.Fatalf("first query should hit primary:\n%s", mock.Queries[0])
	}
	if !strings.Contains(mock.Queries[1], `r.source == "harmonie"`) {
		t.Fatalf("second query should hit backup:\n%s", mock.Queries[1])
	}
}

func TestGetWeatherQueryError(t *testing.T) {
	mock := &MockQueryAPI{
		QueryFunc: func(ctx context.Context, q string) (*api.QueryTableResult, error) {
			return nil, errors.New("influx down")
		},
	}
	c := &Client{q: mock, bucket: "weather", source: "optimum"}

	_, err := c.GetWeather(context.Background(), testLoc, []string{"temp"}, time.Now().Add(-time.Hour), time.Now())
	if err == nil || !strings.Contains(err.Error(), "influx down") {
		t.Fatalf("expected wrapped query error, got %v", err)
	}
}

func TestGetWeatherEmptyParamsSkipsQuery(t *testing.T) {
	mock := &MockQueryAPI{}
	c := &Client{q: mock, bucket: "weather", source: "optimum"}

	f, err := c.GetWeather(context.Background(), testLoc, nil, time.Now().Add(-time.Hour), time.Now())
	if err != nil {
		t.Fatalf("get weather: %v", err)
	}
	if !f.IsEmpty() || len(mock.Queries) != 0 {
		t.Fatalf("expected empty frame without querying, got %d queries", len(mock.Queries))
	}
}

func TestCollectParamsOrderAndGaps(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	res := &fakeFluxResult{records: []*query.FluxRecord{
		obsRecord(t0, map[string]interface{}{"radiation": 100.0, "temp": 1.5}),
		obsRecord(t0.Add(3*time.Hour), map[string]interface{}{"temp": 2.5}),
	}}

	f, err := collectParams(res, []string{"temp", "radiation"})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	cols := f.Columns()
	if len(cols) != 2 || cols[0] != "temp" || cols[1] != "radiation" {
		t.Fatalf("expected requested order, got %v", cols)
	}
	if f.At(0, "temp") != 1.5 || f.At(1, "temp") != 2.5 {
		t.Fatalf("unexpected temp values")
	}
	if f.At(0, "radiation") != 100.0 || !math.IsNaN(f.At(1, "radiation")) {
		t.Fatalf("expected NaN for missing radiation cell")
	}
}

func TestWithProvenance(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	f := frameOf([]time.Time{t0, t0.Add(3 * time.Hour)}, "temp", []float64{1, 2})

	got := withProvenance(f, "optimum", "Amsterdam")
	cols := got.Columns()
	if len(cols) != 3 || cols[1] != "source" || cols[2] != "input_city" {
		t.Fatalf("unexpected columns: %v", cols)
	}
	src, _ := got.Labels("source")
	if src[0] != "optimum" || src[1] != "optimum" {
		t.Fatalf("unexpected source labels: %v", src)
	}
	cty, _ := got.Labels("input_city")
	if cty[0] != "Amsterdam" {
		t.Fatalf("unexpected city labels: %v", cty)
	}
}

func TestCombineSourcesPrimaryWins(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(3 * time.Hour)
	t2 := t0.Add(6 * time.Hour)

	primary := frameOf([]time.Time{t0, t1}, "temp", []float64{1, math.NaN()})
	backup := frameOf([]time.Time{t1, t2}, "temp", []float64{5, 7})

	got := combineSources(primary, backup, "optimum", "harmonie", "Amsterdam")
	if got.Len() != 3 {
		t.Fatalf("expected union of 3 rows, got %d", got.Len())
	}
	if got.At(0, "temp") != 1 || got.At(1, "temp") != 5 || got.At(2, "temp") != 7 {
		t.Fatalf("expected backup to fill primary holes: %v %v %v",
			got.At(0, "temp"), got.At(1, "temp"), got.At(2, "temp"))
	}

	cols := got.Columns()
	want := []string{"temp", "source", "source_1", "input_city_1"}
	if len(cols) != len(want) {
		t.Fatalf("unexpected columns: %v", cols)
	}
	for i := range want {
		if cols[i] != want[i] {
			t.Fatalf("unexpected columns: %v", cols)
		}
	}

	src, _ := got.Labels("source")
	if src[0] != "optimum" || src[1] != "optimum" || src[2] != "" {
		t.Fatalf("unexpected source labels: %v", src)
	}
	src1, _ := got.Labels("source_1")
	if src1[0] != "" || src1[1] != "harmonie" || src1[2] != "harmonie" {
		t.Fatalf("unexpected source_1 labels: %v", src1)
	}
	cty, _ := got.Labels("input_city_1")
	if cty[0] != "Amsterdam" || cty[2] != "Amsterdam" {
		t.Fatalf("unexpected input_city_1 labels: %v", cty)
	}
}

func TestGetWeatherCacheHitSkipsQuery(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	cached := withProvenance(frameOf([]time.Time{t0}, "temp", []float64{3.5}), "optimum", "Amsterdam")
	blob, err := json.Marshal(cached)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	mock := &MockQueryAPI{}
	fc := &fakeCacheService{hit: true, blob: string(blob)}
	c := &Client{q: mock, bucket: "weather", source: "optimum", cache: fc, ttl: time.Minute}

	got, err := c.GetWeather(context.Background(), testLoc, []string{"temp"}, t0, t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("get weather: %v", err)
	}
	if len(mock.Queries) != 0 {
		t.Fatalf("cache hit should not query influx")
	}
	if got.Len() != 1 || got.At(0, "temp") != 3.5 {
		t.Fatalf("unexpected cached frame: %d rows", got.Len())
	}
	src, ok := got.Labels("source")
	if !ok || src[0] != "optimum" {
		t.Fatalf("labels should survive the cache round trip")
	}
}

func TestGetWeatherCacheMissWritesEntry(t *testing.T) {
	mock := &MockQueryAPI{}
	fc := &fakeCacheService{lockOK: true}
	c := &Client{q: mock, bucket: "weather", source: "optimum", cache: fc, ttl: time.Minute}

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if _, err := c.GetWeather(context.Background(), testLoc, []string{"temp"}, from, from.Add(time.Hour)); err != nil {
		t.Fatalf("get weather: %v", err)
	}
	if len(mock.Queries) != 1 {
		t.Fatalf("expected one query on miss, got %d", len(mock.Queries))
	}
	if len(fc.sets) != 1 || fc.sets[0] == "" {
		t.Fatalf("expected one cache write, got %d", len(fc.sets))
	}
	if fc.locked {
		t.Fatalf("refresh lock should be released")
	}
}

func TestGetWeatherLockedMissSkipsWrite(t *testing.T) {
	mock := &MockQueryAPI{}
	fc := &fakeCacheService{lockOK: false}
	c := &Client{q: mock, bucket: "weather", source: "optimum", cache: fc, ttl: time.Minute}

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if _, err := c.GetWeather(context.Background(), testLoc, []string{"temp"}, from, from.Add(time.Hour)); err != nil {
		t.Fatalf("get weather: %v", err)
	}
	if len(mock.Queries) != 1 {
		t.Fatalf("losing the lock must not skip the fetch")
	}
	if len(fc.sets) != 0 {
		t.Fatalf("only the lock holder writes the cache")
	}
}

func TestGetWeatherCorruptCacheEntryDropped(t *testing.T) {
	mock := &MockQueryAPI{}
	fc := &fakeCacheService{hit: true, blob: "{", lockOK: true}
	c := &Client{q: mock, bucket: "weather", source: "optimum", cache: fc, ttl: time.Minute}

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if _, err := c.GetWeather(context.Background(), testLoc, []string{"temp"}, from, from.Add(time.Hour)); err != nil {
		t.Fatalf("get weather: %v", err)
	}
	if len(fc.deleted) != 1 {
		t.Fatalf("corrupt entry should be deleted")
	}
	if len(mock.Queries) != 1 {
		t.Fatalf("corrupt entry should fall through to the query")
	}
}
