package repository

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/query"
	"github.com/influxdata/influxdb-client-go/v2/domain"
)

// --- Mock InfluxDB QueryAPI ---

type MockQueryAPI struct {
	QueryFunc func(ctx context.Context, query string) (*api.QueryTableResult, error)
	LastQuery string
}

func (m *MockQueryAPI) Query(ctx context.Context, q string) (*api.QueryTableResult, error) {
	m.LastQuery = q
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

func priceRecord(t time.Time, v interface{}) *query.FluxRecord {
	return query.NewFluxRecord(0, map[string]interface{}{
		"_time":  t,
		"_value": v,
		"_field": "Price",
	})
}

func TestCollectValueSeries(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	res := &fakeFluxResult{records: []*query.FluxRecord{
		priceRecord(t0, 30.5),
		priceRecord(t0.Add(time.Hour), "bad"),
		priceRecord(t0.Add(2*time.Hour), 42.0),
	}}

	f, err := collectValueSeries(res, "Price")
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if f.Len() != 2 {
		t.Fatalf("expected 2 rows after skipping non-float, got %d", f.Len())
	}
	if f.At(0, "Price") != 30.5 || f.At(1, "Price") != 42.0 {
		t.Fatalf("unexpected values: %v %v", f.At(0, "Price"), f.At(1, "Price"))
	}
	if !f.Index()[1].Equal(t0.Add(2 * time.Hour)) {
		t.Fatalf("unexpected index: %v", f.Index())
	}
}

func TestCollectValueSeriesResultError(t *testing.T) {
	res := &fakeFluxResult{err: errors.New("partial read")}
	if _, err := collectValueSeries(res, "Price"); err == nil {
		t.Fatalf("expected result error to propagate")
	}
}

func TestCollectPrefixedSeries(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	res := &fakeFluxResult{records: []*query.FluxRecord{
		query.NewFluxRecord(0, map[string]interface{}{
			"_time":   t0,
			"sjv_E1A": 0.12,
			"sjv_E1B": 0.34,
			"table":   int64(0),
		}),
		query.NewFluxRecord(0, map[string]interface{}{
			"_time":   t0.Add(15 * time.Minute),
			"sjv_E1A": 0.56,
		}),
	}}

	f, err := collectPrefixedSeries(res, "sjv")
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	cols := f.Columns()
	if len(cols) != 2 || cols[0] != "sjv_E1A" || cols[1] != "sjv_E1B" {
		t.Fatalf("unexpected columns: %v", cols)
	}
	if f.At(0, "sjv_E1B") != 0.34 {
		t.Fatalf("unexpected value: %v", f.At(0, "sjv_E1B"))
	}
	if !math.IsNaN(f.At(1, "sjv_E1B")) {
		t.Fatalf("expected missing cell for absent field")
	}
}

func TestMarketPricesQueryComposition(t *testing.T) {
	mock := &MockQueryAPI{}
	s := &InfluxPredictorStore{q: mock, forecastBucket: "forecast_latest", realisedBucket: "realised"}

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	f, err := s.MarketPrices(context.Background(), "APX", from, to)
	if err != nil {
		t.Fatalf("market prices: %v", err)
	}
	if !f.IsEmpty() {
		t.Fatalf("expected empty frame from nil result")
	}
	for _, want := range []string{
		`from(bucket: "forecast_latest")`,
		`r._measurement == "marketprices"`,
		`r.Name == "APX"`,
		`r._field == "Price"`,
		"2024-03-01T00:00:00Z",
	} {
		if !strings.Contains(mock.LastQuery, want) {
			t.Fatalf("query missing %q:\n%s", want, mock.LastQuery)
		}
	}
	// exclusive stop widened past the requested end
	if !strings.Contains(mock.LastQuery, "2024-03-02T00:00:00.000000001Z") {
		t.Fatalf("expected widened stop in query:\n%s", mock.LastQuery)
	}
}

func TestMarketPricesQueryError(t *testing.T) {
	mock := &MockQueryAPI{
		QueryFunc: func(ctx context.Context, q string) (*api.QueryTableResult, error) {
			return nil, errors.New("influx down")
		},
	}
	s := &InfluxPredictorStore{q: mock, forecastBucket: "forecast_latest"}

	_, err := s.MarketPrices(context.Background(), "APX", time.Now().Add(-time.Hour), time.Now())
	if err == nil || !strings.Contains(err.Error(), "influx down") {
		t.Fatalf("expected wrapped query error, got %v", err)
	}
}

func TestLoadProfilesQueryComposition(t *testing.T) {
	mock := &MockQueryAPI{}
	s := &InfluxPredictorStore{q: mock, realisedBucket: "realised"}

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if _, err := s.LoadProfiles(context.Background(), from, from.Add(time.Hour)); err != nil {
		t.Fatalf("load profiles: %v", err)
	}
	for _, want := range []string{
		`from(bucket: "realised")`,
		`r._measurement == "sjv"`,
		`pivot(rowKey:["_time"]`,
	} {
		if !strings.Contains(mock.LastQuery, want) {
			t.Fatalf("query missing %q:\n%s", want, mock.LastQuery)
		}
	}
}
