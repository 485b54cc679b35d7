package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"

	pkginflux "GridPull/pkg/influx"
	applogger "GridPull/pkg/logger"
	"GridPull/pkg/timeseries"
)

// InfluxPredictorStore implements PredictorStore backed by InfluxDB.
type InfluxPredictorStore struct {
	client         *pkginflux.Client
	q              api.QueryAPI
	forecastBucket string
	realisedBucket string
	l              *applogger.Logger
}

func NewInfluxPredictorStore(cl *pkginflux.Client, forecastBucket, realisedBucket string) *InfluxPredictorStore {
	return &InfluxPredictorStore{
		client:         cl,
		q:              cl.QueryAPI(),
		forecastBucket: forecastBucket,
		realisedBucket: realisedBucket,
	}
}

// SetLogger injects a structured logger.
func (s *InfluxPredictorStore) SetLogger(l *applogger.Logger) { s.l = l }

// MarketPrices returns the stored price series for one market as a single
// "Price" column.
func (s *InfluxPredictorStore) MarketPrices(ctx context.Context, market string, from, to time.Time) (*timeseries.Frame, error) {
	start := time.Now()
	flux := fmt.Sprintf(`
from(bucket: "%s")
  |> range(start: %s, stop: %s)
  |> filter(fn: (r) => r._measurement == "marketprices")
  |> filter(fn: (r) => r.Name == "%s")
  |> filter(fn: (r) => r._field == "Price")
  |> sort(columns: ["_time"], desc: false)
`, s.forecastBucket, pkginflux.FluxTime(from), pkginflux.FluxStop(to), market)

	res, err := s.q.Query(ctx, flux)
	if err != nil {
		if s.l != nil {
			s.l.Error("influx market_prices query error",
				applogger.String("bucket", s.forecastBucket),
				applogger.String("market", market),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("market prices: %w", err)
	}

	// Guard against nil result (can happen with empty query results)
	frame := timeseries.NewBuilder().Frame()
	if res != nil {
		if frame, err = collectValueSeries(res, "Price"); err != nil {
			if s.l != nil {
				s.l.Error("influx market_prices result error",
					applogger.String("bucket", s.forecastBucket),
					applogger.String("market", market),
					applogger.Error(err),
				)
			}
			return nil, fmt.Errorf("market prices: %w", err)
		}
	}
	if s.l != nil {
		s.l.Info("influx market_prices ok",
			applogger.String("bucket", s.forecastBucket),
			applogger.String("market", market),
			applogger.Int("rows", frame.Len()),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return frame, nil
}

// LoadProfiles returns every stored standardized load profile series, one
// column per sjv field.
func (s *InfluxPredictorStore) LoadProfiles(ctx context.Context, from, to time.Time) (*timeseries.Frame, error) {
	start := time.Now()
	flux := fmt.Sprintf(`
from(bucket: "%s")
  |> range(start: %s, stop: %s)
  |> filter(fn: (r) => r._measurement == "sjv")
  |> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
  |> sort(columns: ["_time"], desc: false)
`, s.realisedBucket, pkginflux.FluxTime(from), pkginflux.FluxStop(to))

	res, err := s.q.Query(ctx, flux)
	if err != nil {
		if s.l != nil {
			s.l.Error("influx load_profiles query error",
				applogger.String("bucket", s.realisedBucket),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("load profiles: %w", err)
	}

	// Guard against nil result (can happen with empty query results)
	frame := timeseries.NewBuilder().Frame()
	if res != nil {
		if frame, err = collectPrefixedSeries(res, "sjv"); err != nil {
			if s.l != nil {
				s.l.Error("influx load_profiles result error",
					applogger.String("bucket", s.realisedBucket),
					applogger.Error(err),
				)
			}
			return nil, fmt.Errorf("load profiles: %w", err)
		}
	}
	if s.l != nil {
		s.l.Info("influx load_profiles ok",
			applogger.String("bucket", s.realisedBucket),
			applogger.Int("rows", frame.Len()),
			applogger.Int("cols", frame.NumCols()),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return frame, nil
}

func (s *InfluxPredictorStore) Health(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Health(ctx)
}

func (s *InfluxPredictorStore) Close() error {
	if s.client != nil {
		s.client.Close()
	}
	return nil
}

// collectValueSeries reads an unpivoted single-field result into one column.
func collectValueSeries(res pkginflux.Result, column string) (*timeseries.Frame, error) {
	b := timeseries.NewBuilder()
	for res.Next() {
		rec := res.Record()
		v, ok := rec.Value().(float64)
		if !ok {
			continue
		}
		b.StartRow(rec.Time())
		b.SetValue(column, v)
	}
	if err := res.Err(); err != nil {
		return nil, err
	}
	return b.Frame(), nil
}

// collectPrefixedSeries reads a pivoted result, keeping every column whose
// field name carries the prefix. Column order is the sorted order of first
// appearance, so repeated reads shape identically.
func collectPrefixedSeries(res pkginflux.Result, prefix string) (*timeseries.Frame, error) {
	b := timeseries.NewBuilder()
	for res.Next() {
		rec := res.Record()
		names := make([]string, 0, len(rec.Values()))
		for name := range rec.Values() {
			if strings.HasPrefix(name, prefix) {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		b.StartRow(rec.Time())
		for _, name := range names {
			if v, ok := rec.ValueByKey(name).(float64); ok {
				b.SetValue(name, v)
			}
		}
	}
	if err := res.Err(); err != nil {
		return nil, err
	}
	return b.Frame(), nil
}
