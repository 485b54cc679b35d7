package usecase

import (
	"context"
	"time"

	"GridPull/internal/domain/models"
	"GridPull/pkg/timeseries"
)

// Shared fakes for the predictor usecases. Each fake records calls so tests
// can assert what was, and was not, fetched.

type fakePredictorStore struct {
	prices      *timeseries.Frame
	pricesErr   error
	profiles    *timeseries.Frame
	profilesErr error

	priceCalls   int
	profileCalls int
	lastMarket   string
}

func (s *fakePredictorStore) MarketPrices(ctx context.Context, market string, from, to time.Time) (*timeseries.Frame, error) {
	s.priceCalls++
	s.lastMarket = market
	if s.pricesErr != nil {
		return nil, s.pricesErr
	}
	if s.prices == nil {
		return timeseries.NewBuilder().Frame(), nil
	}
	return s.prices, nil
}

func (s *fakePredictorStore) LoadProfiles(ctx context.Context, from, to time.Time) (*timeseries.Frame, error) {
	s.profileCalls++
	if s.profilesErr != nil {
		return nil, s.profilesErr
	}
	if s.profiles == nil {
		return timeseries.NewBuilder().Frame(), nil
	}
	return s.profiles, nil
}

func (s *fakePredictorStore) Health(ctx context.Context) error { return nil }
func (s *fakePredictorStore) Close() error                     { return nil }

type fakeMarketStore struct {
	gas      *timeseries.Frame
	gasErr   error
	gasCalls int
}

func (s *fakeMarketStore) Init(ctx context.Context) error { return nil }

func (s *fakeMarketStore) GasPrices(ctx context.Context, from, to time.Time) (*timeseries.Frame, error) {
	s.gasCalls++
	if s.gasErr != nil {
		return nil, s.gasErr
	}
	if s.gas == nil {
		return timeseries.NewBuilder().Frame(), nil
	}
	return s.gas, nil
}

func (s *fakeMarketStore) Health(ctx context.Context) error { return nil }
func (s *fakeMarketStore) Close() error                     { return nil }

type fakeWeatherProvider struct {
	frame *timeseries.Frame
	err   error

	calls      int
	lastLoc    models.Location
	lastParams []string
}

func (p *fakeWeatherProvider) GetWeather(ctx context.Context, loc models.Location, params []string, from, to time.Time) (*timeseries.Frame, error) {
	p.calls++
	p.lastLoc = loc
	p.lastParams = params
	if p.err != nil {
		return nil, p.err
	}
	if p.frame == nil {
		return timeseries.NewBuilder().Frame(), nil
	}
	return p.frame, nil
}

// at returns a fixed test day offset by hours and minutes.
func at(h, m int) time.Time {
	return time.Date(2024, 3, 1, h, m, 0, 0, time.UTC)
}

// seriesFrame builds a one-column frame from timestamp/value pairs.
func seriesFrame(name string, times []time.Time, vals []float64) *timeseries.Frame {
	f := timeseries.New(times)
	if err := f.SetValues(name, vals); err != nil {
		panic(err)
	}
	return f
}
