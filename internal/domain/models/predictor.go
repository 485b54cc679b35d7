package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"GridPull/pkg/timeseries"
)

// PredictorGroup identifies one family of predictor columns.
type PredictorGroup string

const (
	GroupWeatherData  PredictorGroup = "weather_data"
	GroupMarketData   PredictorGroup = "market_data"
	GroupLoadProfiles PredictorGroup = "load_profiles"
)

var (
	// ErrUnknownPredictorGroup is returned for a group name outside the known set.
	ErrUnknownPredictorGroup = errors.New("unknown predictor group")

	// ErrLocationRequired is returned when weather predictors are requested
	// without a location.
	ErrLocationRequired = errors.New("weather predictors require a location")

	// ErrInvalidRange is returned when the requested window or resolution
	// cannot produce a time grid.
	ErrInvalidRange = errors.New("invalid time range")
)

// AllPredictorGroups returns every group in merge order.
func AllPredictorGroups() []PredictorGroup {
	return []PredictorGroup{GroupWeatherData, GroupMarketData, GroupLoadProfiles}
}

// ParsePredictorGroup converts a raw string to a known group.
func ParsePredictorGroup(s string) (PredictorGroup, error) {
	switch g := PredictorGroup(strings.ToLower(strings.TrimSpace(s))); g {
	case GroupWeatherData, GroupMarketData, GroupLoadProfiles:
		return g, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPredictorGroup, s)
	}
}

// Location pins weather predictors to a place. City takes precedence when set,
// otherwise Lat/Lon are used.
type Location struct {
	City string
	Lat  float64
	Lon  float64
}

// IsZero reports whether no location was supplied at all.
func (l Location) IsZero() bool {
	return l.City == "" && l.Lat == 0 && l.Lon == 0
}

// PredictorSet is the aggregated predictor table on the requested grid.
type PredictorSet struct {
	Start      time.Time
	End        time.Time
	Resolution time.Duration
	Groups     []PredictorGroup
	Frame      *timeseries.Frame
}
