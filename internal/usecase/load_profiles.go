package usecase

import (
	"context"
	"fmt"
	"time"

	"GridPull/internal/domain/models"
	domrepo "GridPull/internal/domain/repository"
	"GridPull/pkg/timeseries"
)

// loadProfileFillLimit caps how many consecutive grid points may be
// synthesized between two load profile observations.
const loadProfileFillLimit = 3

// LoadProfilesUseCase provides business logic for retrieving standardized
// load profiles.
type LoadProfilesUseCase struct {
	prices domrepo.PredictorStore
}

func NewLoadProfilesUseCase(prices domrepo.PredictorStore) *LoadProfilesUseCase {
	return &LoadProfilesUseCase{prices: prices}
}

// GetLoadProfiles returns every stored load profile series interpolated onto
// the requested grid. Fractions between observations are estimated linearly,
// never carried forward. A zero resolution skips resampling and keeps the
// native timestamps.
func (uc *LoadProfilesUseCase) GetLoadProfiles(ctx context.Context, start, end time.Time, resolution time.Duration) (*timeseries.Frame, error) {
	grid, err := timeseries.BuildGrid(start, end, resolution)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidRange, err)
	}

	profiles, err := uc.prices.LoadProfiles(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}
	if profiles.IsEmpty() {
		return timeseries.New(grid), nil
	}
	if resolution == 0 {
		return profiles, nil
	}
	return profiles.Interpolate(grid, loadProfileFillLimit)
}
