package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"GridPull/internal/domain/models"
	domrepo "GridPull/internal/domain/repository"
	"GridPull/pkg/timeseries"
)

// PredictorsUseCase aggregates predictor groups onto one shared time grid.
type PredictorsUseCase struct {
	market  *MarketDataUseCase
	load    *LoadProfilesUseCase
	weather *WeatherDataUseCase
	metrics domrepo.Metrics
	timeout time.Duration
}

func NewPredictorsUseCase(market *MarketDataUseCase, load *LoadProfilesUseCase, weather *WeatherDataUseCase, metrics domrepo.Metrics) *PredictorsUseCase {
	return &PredictorsUseCase{
		market:  market,
		load:    load,
		weather: weather,
		metrics: metrics,
		timeout: 30 * time.Second,
	}
}

type GetPredictorsParams struct {
	Start      time.Time
	End        time.Time
	Resolution time.Duration
	Location   models.Location
	Groups     []models.PredictorGroup // nil means all groups, empty means none
}

func (uc *PredictorsUseCase) GetPredictors(ctx context.Context, p GetPredictorsParams) (*models.PredictorSet, error) {
	groups := p.Groups
	if groups == nil {
		groups = models.AllPredictorGroups()
	}
	requested := make(map[models.PredictorGroup]bool, len(groups))
	for _, g := range groups {
		parsed, err := models.ParsePredictorGroup(string(g))
		if err != nil {
			return nil, err
		}
		requested[parsed] = true
	}
	if requested[models.GroupWeatherData] && p.Location.IsZero() {
		return nil, models.ErrLocationRequired
	}

	// A zero resolution keeps every source at its native density: the grid
	// degenerates to the boundary points and no group resamples.
	resolution := p.Resolution
	grid, err := timeseries.BuildGrid(p.Start, p.End, resolution)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidRange, err)
	}

	// Overall timeout
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	type item struct {
		group models.PredictorGroup
		frame *timeseries.Frame
		err   error
	}
	ch := make(chan item, 3)
	var wg sync.WaitGroup

	fetch := func(g models.PredictorGroup, fn func() (*timeseries.Frame, error)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started := time.Now()
			f, err := fn()
			uc.observe(string(g), started, err)
			ch <- item{g, f, err}
		}()
	}

	if requested[models.GroupWeatherData] {
		fetch(models.GroupWeatherData, func() (*timeseries.Frame, error) {
			return uc.weather.GetWeatherData(ctx, p.Location, p.Start, p.End, resolution)
		})
	}
	if requested[models.GroupMarketData] {
		fetch(models.GroupMarketData, func() (*timeseries.Frame, error) {
			return uc.market.GetMarketData(ctx, p.Start, p.End, resolution)
		})
	}
	if requested[models.GroupLoadProfiles] {
		fetch(models.GroupLoadProfiles, func() (*timeseries.Frame, error) {
			return uc.load.GetLoadProfiles(ctx, p.Start, p.End, resolution)
		})
	}

	go func() { wg.Wait(); close(ch) }()

	frames := make(map[models.PredictorGroup]*timeseries.Frame, len(requested))
	errs := make(map[models.PredictorGroup]error)
	for it := range ch {
		if it.err != nil {
			errs[it.group] = it.err
			continue
		}
		frames[it.group] = it.frame
	}

	// Surface failures in merge order so the reported error does not depend
	// on goroutine scheduling.
	for _, g := range models.AllPredictorGroups() {
		if err := errs[g]; err != nil {
			return nil, fmt.Errorf("%s predictors: %w", g, err)
		}
	}

	merged := timeseries.New(grid)
	ordered := make([]models.PredictorGroup, 0, len(requested))
	for _, g := range models.AllPredictorGroups() {
		if !requested[g] {
			continue
		}
		ordered = append(ordered, g)
		merged = timeseries.Merge(merged, frames[g])
	}

	return &models.PredictorSet{
		Start:      p.Start.UTC(),
		End:        p.End.UTC(),
		Resolution: resolution,
		Groups:     ordered,
		Frame:      merged,
	}, nil
}

func (uc *PredictorsUseCase) observe(group string, started time.Time, err error) {
	if uc.metrics == nil {
		return
	}
	uc.metrics.RecordLatency("fetch_"+group, time.Since(started).Seconds())
	if err != nil {
		uc.metrics.RecordError("fetch_" + group)
	}
}
