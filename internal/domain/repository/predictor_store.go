package repository

import (
	"context"
	"time"

	"GridPull/internal/domain/models"
	"GridPull/pkg/timeseries"
)

// PredictorStore provides read-only windowed access to stored predictor series.
// Frames come back with the backend's native column names.
type PredictorStore interface {
	// MarketPrices returns the price series for one market (column "Price").
	MarketPrices(ctx context.Context, market string, from, to time.Time) (*timeseries.Frame, error)
	// LoadProfiles returns every standardized load profile fraction series
	// (columns "sjv_*").
	LoadProfiles(ctx context.Context, from, to time.Time) (*timeseries.Frame, error)
	Health(ctx context.Context) error
	Close() error
}

// MarketStore provides relational market data reads.
type MarketStore interface {
	Init(ctx context.Context) error // ensure tables, health checks
	// GasPrices returns the day-ahead gas price series (column "price").
	GasPrices(ctx context.Context, from, to time.Time) (*timeseries.Frame, error)
	Health(ctx context.Context) error
	Close() error
}

// WeatherProvider returns weather observations for a location, one column per
// requested parameter plus source/city provenance columns.
type WeatherProvider interface {
	GetWeather(ctx context.Context, loc models.Location, params []string, from, to time.Time) (*timeseries.Frame, error)
}
