package usecase

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"GridPull/internal/domain/models"
	"GridPull/pkg/timeseries"
)

func weatherObservations() *timeseries.Frame {
	f := timeseries.New([]time.Time{at(0, 0), at(3, 0)})
	_ = f.SetValues("temp", []float64{0, 12})
	_ = f.SetLabels("source", []string{"optimum", "optimum"})
	_ = f.SetLabels("input_city", []string{"Arnhem", "Arnhem"})
	return f
}

func TestGetWeatherDataRequiresLocation(t *testing.T) {
	provider := &fakeWeatherProvider{frame: weatherObservations()}
	uc := NewWeatherDataUseCase(provider, nil, 3*time.Hour)

	_, err := uc.GetWeatherData(context.Background(), models.Location{}, at(0, 0), at(3, 0), 15*time.Minute)
	if !errors.Is(err, models.ErrLocationRequired) {
		t.Fatalf("expected location error, got %v", err)
	}
	if provider.calls != 0 {
		t.Fatalf("provider must not be called without a location")
	}
}

func TestGetWeatherDataDropsProvenanceAndInterpolates(t *testing.T) {
	provider := &fakeWeatherProvider{frame: weatherObservations()}
	uc := NewWeatherDataUseCase(provider, nil, 3*time.Hour)

	f, err := uc.GetWeatherData(context.Background(), models.Location{City: "Arnhem"}, at(0, 0), at(3, 0), 15*time.Minute)
	if err != nil {
		t.Fatalf("get weather data: %v", err)
	}
	cols := f.Columns()
	if len(cols) != 1 || cols[0] != "temp" {
		t.Fatalf("expected provenance stripped, got %v", cols)
	}
	// a three hour gap on a 15m grid is exactly within the cap
	for i := 0; i < f.Len(); i++ {
		if math.Abs(f.At(i, "temp")-float64(i)) > 1e-9 {
			t.Fatalf("row %d: expected %v, got %v", i, float64(i), f.At(i, "temp"))
		}
	}
}

func TestGetWeatherDataBackupSourceColumns(t *testing.T) {
	// a backup-source join suffixes the colliding provenance columns
	f := timeseries.New([]time.Time{at(0, 0)})
	_ = f.SetValues("temp", []float64{5})
	_ = f.SetLabels("source", []string{"optimum"})
	_ = f.SetLabels("source_1", []string{"harmonie"})
	_ = f.SetLabels("input_city_1", []string{"Deelen"})

	provider := &fakeWeatherProvider{frame: f}
	uc := NewWeatherDataUseCase(provider, nil, 3*time.Hour)

	out, err := uc.GetWeatherData(context.Background(), models.Location{City: "Arnhem"}, at(0, 0), at(1, 0), time.Hour)
	if err != nil {
		t.Fatalf("get weather data: %v", err)
	}
	cols := out.Columns()
	if len(cols) != 1 || cols[0] != "temp" {
		t.Fatalf("expected only temp to survive, got %v", cols)
	}
	if f.HasColumn("source") || f.HasColumn("source_1") || f.HasColumn("input_city_1") {
		t.Fatalf("provenance columns should be gone, got %v", f.Columns())
	}
}

func TestGetWeatherDataNoSynthesisAtCoarseResolution(t *testing.T) {
	f := timeseries.New([]time.Time{at(0, 0), at(6, 0)})
	_ = f.SetValues("temp", []float64{1, 2})

	provider := &fakeWeatherProvider{frame: f}
	uc := NewWeatherDataUseCase(provider, nil, 3*time.Hour)

	out, err := uc.GetWeatherData(context.Background(), models.Location{City: "Arnhem"}, at(0, 0), at(6, 0), 3*time.Hour)
	if err != nil {
		t.Fatalf("get weather data: %v", err)
	}
	if !math.IsNaN(out.At(1, "temp")) {
		t.Fatalf("expected no synthesized point at matching cadence")
	}
}

func TestGetWeatherDataEmptyProviderNotError(t *testing.T) {
	provider := &fakeWeatherProvider{}
	uc := NewWeatherDataUseCase(provider, nil, 3*time.Hour)

	f, err := uc.GetWeatherData(context.Background(), models.Location{City: "Arnhem"}, at(0, 0), at(1, 0), 15*time.Minute)
	if err != nil {
		t.Fatalf("empty provider result must not fail: %v", err)
	}
	if !f.IsEmpty() || f.Len() != 5 {
		t.Fatalf("expected zero-column frame on full grid")
	}
}

func TestGetWeatherDataErrorPropagates(t *testing.T) {
	sentinel := errors.New("provider down")
	uc := NewWeatherDataUseCase(&fakeWeatherProvider{err: sentinel}, nil, 3*time.Hour)

	_, err := uc.GetWeatherData(context.Background(), models.Location{City: "Arnhem"}, at(0, 0), at(1, 0), 15*time.Minute)
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped provider error, got %v", err)
	}
}

func TestGetWeatherDataParamsPassed(t *testing.T) {
	provider := &fakeWeatherProvider{}
	uc := NewWeatherDataUseCase(provider, []string{"temp", "radiation"}, 3*time.Hour)

	loc := models.Location{Lat: 52.0, Lon: 5.9}
	if _, err := uc.GetWeatherData(context.Background(), loc, at(0, 0), at(1, 0), 15*time.Minute); err != nil {
		t.Fatalf("get weather data: %v", err)
	}
	if !reflect.DeepEqual(provider.lastParams, []string{"temp", "radiation"}) {
		t.Fatalf("expected configured params, got %v", provider.lastParams)
	}
	if provider.lastLoc != loc {
		t.Fatalf("expected location forwarded, got %+v", provider.lastLoc)
	}

	defaulted := NewWeatherDataUseCase(provider, nil, 0)
	if _, err := defaulted.GetWeatherData(context.Background(), loc, at(0, 0), at(1, 0), 15*time.Minute); err != nil {
		t.Fatalf("get weather data: %v", err)
	}
	if !reflect.DeepEqual(provider.lastParams, DefaultWeatherParams) {
		t.Fatalf("expected default params, got %v", provider.lastParams)
	}
}
