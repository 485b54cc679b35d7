package usecase

import (
	"context"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"

	"GridPull/internal/domain/models"
)

type aggregatorFixture struct {
	store    *fakePredictorStore
	market   *fakeMarketStore
	provider *fakeWeatherProvider
	uc       *PredictorsUseCase
}

func newAggregatorFixture() *aggregatorFixture {
	store := &fakePredictorStore{}
	market := &fakeMarketStore{}
	provider := &fakeWeatherProvider{}
	return &aggregatorFixture{
		store:    store,
		market:   market,
		provider: provider,
		uc: NewPredictorsUseCase(
			NewMarketDataUseCase(store, market),
			NewLoadProfilesUseCase(store),
			NewWeatherDataUseCase(provider, nil, 3*time.Hour),
			nil,
		),
	}
}

func TestGetPredictorsMergeOrder(t *testing.T) {
	fx := newAggregatorFixture()
	fx.provider.frame = weatherObservations()
	fx.store.prices = seriesFrame("Price", []time.Time{at(0, 0)}, []float64{30})
	fx.store.profiles = seriesFrame("sjv_E1A", []time.Time{at(0, 0), at(3, 0)}, []float64{0.1, 0.4})
	fx.market.gas = seriesFrame("price", []time.Time{at(0, 0)}, []float64{21})

	set, err := fx.uc.GetPredictors(context.Background(), GetPredictorsParams{
		Start:      at(0, 0),
		End:        at(3, 0),
		Resolution: 15 * time.Minute,
		Location:   models.Location{City: "Arnhem"},
	})
	if err != nil {
		t.Fatalf("get predictors: %v", err)
	}

	wantGroups := []models.PredictorGroup{
		models.GroupWeatherData, models.GroupMarketData, models.GroupLoadProfiles,
	}
	if !reflect.DeepEqual(set.Groups, wantGroups) {
		t.Fatalf("unexpected groups: %v", set.Groups)
	}

	cols := set.Frame.Columns()
	want := []string{"temp", "APX", "Elba", "sjv_E1A"}
	if !reflect.DeepEqual(cols, want) {
		t.Fatalf("expected columns %v, got %v", want, cols)
	}
	if set.Frame.Len() != 13 {
		t.Fatalf("expected 13 grid rows, got %d", set.Frame.Len())
	}
	if set.Frame.At(12, "APX") != 30 || set.Frame.At(12, "Elba") != 21 {
		t.Fatalf("expected prices carried to grid end")
	}
	if math.Abs(set.Frame.At(6, "temp")-6) > 1e-9 {
		t.Fatalf("expected interpolated weather, got %v", set.Frame.At(6, "temp"))
	}
}

func TestGetPredictorsSubsetSkipsOtherFetches(t *testing.T) {
	fx := newAggregatorFixture()
	fx.store.prices = seriesFrame("Price", []time.Time{at(0, 0)}, []float64{30})

	set, err := fx.uc.GetPredictors(context.Background(), GetPredictorsParams{
		Start:      at(0, 0),
		End:        at(1, 0),
		Resolution: time.Hour,
		Groups:     []models.PredictorGroup{models.GroupMarketData},
	})
	if err != nil {
		t.Fatalf("get predictors: %v", err)
	}
	if fx.provider.calls != 0 || fx.store.profileCalls != 0 {
		t.Fatalf("unrequested groups must not be fetched")
	}
	if !set.Frame.HasColumn("APX") {
		t.Fatalf("expected market column present")
	}
}

func TestGetPredictorsEmptyGroupsMeansNone(t *testing.T) {
	fx := newAggregatorFixture()

	set, err := fx.uc.GetPredictors(context.Background(), GetPredictorsParams{
		Start:      at(0, 0),
		End:        at(1, 0),
		Resolution: 15 * time.Minute,
		Groups:     []models.PredictorGroup{},
	})
	if err != nil {
		t.Fatalf("get predictors: %v", err)
	}
	if fx.store.priceCalls+fx.store.profileCalls+fx.market.gasCalls+fx.provider.calls != 0 {
		t.Fatalf("no group may be fetched for an empty set")
	}
	if !set.Frame.IsEmpty() || set.Frame.Len() != 5 {
		t.Fatalf("expected zero-column frame on the full grid")
	}
}

func TestGetPredictorsUnknownGroupFailsBeforeFetch(t *testing.T) {
	fx := newAggregatorFixture()

	_, err := fx.uc.GetPredictors(context.Background(), GetPredictorsParams{
		Start:  at(0, 0),
		End:    at(1, 0),
		Groups: []models.PredictorGroup{"solar_data"},
	})
	if !errors.Is(err, models.ErrUnknownPredictorGroup) {
		t.Fatalf("expected unknown group error, got %v", err)
	}
	if fx.store.priceCalls+fx.store.profileCalls+fx.market.gasCalls+fx.provider.calls != 0 {
		t.Fatalf("nothing may be fetched for an invalid group")
	}
}

func TestGetPredictorsWeatherWithoutLocation(t *testing.T) {
	fx := newAggregatorFixture()

	_, err := fx.uc.GetPredictors(context.Background(), GetPredictorsParams{
		Start: at(0, 0),
		End:   at(1, 0),
	})
	if !errors.Is(err, models.ErrLocationRequired) {
		t.Fatalf("expected location error, got %v", err)
	}
	if fx.store.priceCalls+fx.store.profileCalls+fx.market.gasCalls+fx.provider.calls != 0 {
		t.Fatalf("nothing may be fetched without a weather location")
	}
}

func TestGetPredictorsCollaboratorErrorSurfaces(t *testing.T) {
	fx := newAggregatorFixture()
	sentinel := errors.New("clickhouse offline")
	fx.market.gasErr = sentinel

	_, err := fx.uc.GetPredictors(context.Background(), GetPredictorsParams{
		Start:  at(0, 0),
		End:    at(1, 0),
		Groups: []models.PredictorGroup{models.GroupMarketData, models.GroupLoadProfiles},
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped collaborator error, got %v", err)
	}
	if !strings.Contains(err.Error(), "market_data predictors") {
		t.Fatalf("expected group named in error, got %v", err)
	}
}

func TestGetPredictorsErrorOrderDeterministic(t *testing.T) {
	fx := newAggregatorFixture()
	fx.provider.err = errors.New("weather provider down")
	fx.store.profilesErr = errors.New("realised bucket gone")

	_, err := fx.uc.GetPredictors(context.Background(), GetPredictorsParams{
		Start:    at(0, 0),
		End:      at(1, 0),
		Location: models.Location{City: "Arnhem"},
	})
	if !errors.Is(err, fx.provider.err) {
		t.Fatalf("expected the first group in merge order to win, got %v", err)
	}
	if errors.Is(err, fx.store.profilesErr) {
		t.Fatalf("later group error must not surface, got %v", err)
	}
}

func TestGetPredictorsNativeDensityWithoutResolution(t *testing.T) {
	fx := newAggregatorFixture()
	fx.store.profiles = seriesFrame("sjv_E1A", []time.Time{at(0, 30), at(0, 45)}, []float64{0.1, 0.2})

	set, err := fx.uc.GetPredictors(context.Background(), GetPredictorsParams{
		Start:  at(0, 0),
		End:    at(1, 0),
		Groups: []models.PredictorGroup{models.GroupLoadProfiles},
	})
	if err != nil {
		t.Fatalf("get predictors: %v", err)
	}
	if set.Resolution != 0 {
		t.Fatalf("expected native resolution, got %s", set.Resolution)
	}

	idx := set.Frame.Index()
	want := []time.Time{at(0, 0), at(0, 30), at(0, 45), at(1, 0)}
	if len(idx) != len(want) {
		t.Fatalf("expected boundary plus native stamps, got %v", idx)
	}
	for i := range want {
		if !idx[i].Equal(want[i]) {
			t.Fatalf("index %d: expected %s, got %s", i, want[i], idx[i])
		}
	}
	if set.Frame.At(1, "sjv_E1A") != 0.1 || set.Frame.At(2, "sjv_E1A") != 0.2 {
		t.Fatalf("expected untouched native values")
	}
	if !math.IsNaN(set.Frame.At(0, "sjv_E1A")) || !math.IsNaN(set.Frame.At(3, "sjv_E1A")) {
		t.Fatalf("expected no synthesis at the boundary points")
	}
}
