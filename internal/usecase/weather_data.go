package usecase

import (
	"context"
	"fmt"
	"time"

	"GridPull/internal/domain/models"
	domrepo "GridPull/internal/domain/repository"
	"GridPull/pkg/timeseries"
)

// DefaultWeatherParams are the observation parameters fetched when the
// configuration names none.
var DefaultWeatherParams = []string{
	"clouds", "radiation", "temp", "winddeg", "windspeed", "windspeed_100m",
	"pressure", "humidity", "rain", "mxlD", "snowDepth",
	"clearSky_ulf", "clearSky_dlf", "ssrunoff",
}

// WeatherDataUseCase provides business logic for retrieving weather
// observations.
type WeatherDataUseCase struct {
	weather domrepo.WeatherProvider
	params  []string
	cadence time.Duration
}

func NewWeatherDataUseCase(weather domrepo.WeatherProvider, params []string, cadence time.Duration) *WeatherDataUseCase {
	if len(params) == 0 {
		params = DefaultWeatherParams
	}
	if cadence <= 0 {
		cadence = 3 * time.Hour
	}
	return &WeatherDataUseCase{weather: weather, params: params, cadence: cadence}
}

// GetWeatherData returns weather observations for one location interpolated
// onto the requested grid. Provenance columns from the provider are stripped
// before resampling. A zero resolution skips resampling and keeps the native
// timestamps, normalized schema included.
func (uc *WeatherDataUseCase) GetWeatherData(ctx context.Context, loc models.Location, start, end time.Time, resolution time.Duration) (*timeseries.Frame, error) {
	if loc.IsZero() {
		return nil, models.ErrLocationRequired
	}
	grid, err := timeseries.BuildGrid(start, end, resolution)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidRange, err)
	}

	weather, err := uc.weather.GetWeather(ctx, loc, uc.params, start, end)
	if err != nil {
		return nil, fmt.Errorf("weather data: %w", err)
	}
	dropProvenance(weather)

	if weather.IsEmpty() {
		return timeseries.New(grid), nil
	}
	if resolution == 0 {
		return weather, nil
	}
	return weather.Interpolate(grid, fillLimit(uc.cadence, resolution))
}

// dropProvenance removes the source and city columns a combined-source
// weather read carries. A source_1 column from a backup-source join takes
// over the source slot before both go.
func dropProvenance(f *timeseries.Frame) {
	f.Rename("source_1", "source")
	f.Drop("source")
	if f.HasColumn("input_city_1") {
		f.Drop("input_city_1")
	} else {
		f.Drop("input_city")
	}
}

// fillLimit derives the interpolation cap from the native sampling interval:
// at most one native gap minus one grid point may be synthesized.
func fillLimit(cadence, resolution time.Duration) int {
	if resolution <= 0 {
		return 0
	}
	limit := int(cadence/resolution) - 1
	if limit < 0 {
		return 0
	}
	return limit
}
