package usecase

import (
	"context"
	"fmt"
	"time"

	"GridPull/internal/domain/models"
	domrepo "GridPull/internal/domain/repository"
	"GridPull/pkg/timeseries"
)

// electricityMarket is the day-ahead electricity market the store is queried
// for. Its price column surfaces under the market's own name.
const electricityMarket = "APX"

// MarketDataUseCase provides business logic for retrieving market prices.
type MarketDataUseCase struct {
	prices domrepo.PredictorStore
	market domrepo.MarketStore
}

func NewMarketDataUseCase(prices domrepo.PredictorStore, market domrepo.MarketStore) *MarketDataUseCase {
	return &MarketDataUseCase{prices: prices, market: market}
}

// GetMarketData returns electricity and gas day-ahead prices merged onto the
// requested grid. Prices carry forward, they are never interpolated. A zero
// resolution skips resampling and keeps the native timestamps.
func (uc *MarketDataUseCase) GetMarketData(ctx context.Context, start, end time.Time, resolution time.Duration) (*timeseries.Frame, error) {
	grid, err := timeseries.BuildGrid(start, end, resolution)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidRange, err)
	}

	electricity, err := uc.prices.MarketPrices(ctx, electricityMarket, start, end)
	if err != nil {
		return nil, fmt.Errorf("electricity prices: %w", err)
	}
	gas, err := uc.market.GasPrices(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("gas prices: %w", err)
	}

	electricity.Rename("Price", electricityMarket)
	gas.Rename("price", "Elba")

	var merged *timeseries.Frame
	switch {
	case electricity.IsEmpty() && gas.IsEmpty():
		return timeseries.New(grid), nil
	case electricity.IsEmpty():
		merged = gas
	case gas.IsEmpty():
		merged = electricity
	default:
		merged = timeseries.Merge(electricity, gas)
	}

	if resolution == 0 {
		return merged, nil
	}
	return merged.ForwardFill(grid)
}

// GetGasPrices returns the gas price series alone on the requested grid.
func (uc *MarketDataUseCase) GetGasPrices(ctx context.Context, start, end time.Time, resolution time.Duration) (*timeseries.Frame, error) {
	grid, err := timeseries.BuildGrid(start, end, resolution)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidRange, err)
	}

	gas, err := uc.market.GasPrices(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("gas prices: %w", err)
	}
	gas.Rename("price", "Elba")

	if gas.IsEmpty() {
		return timeseries.New(grid), nil
	}
	if resolution == 0 {
		return gas, nil
	}
	return gas.ForwardFill(grid)
}
