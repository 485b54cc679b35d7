package models

import (
	"fmt"
	"strings"
	"time"
)

// DefaultResolution is the grid step used when an API request does not name
// one. Library callers may pass zero instead to keep sources at their native
// density.
const DefaultResolution = 15 * time.Minute

// ParseResolution parses a grid step such as "15m" or "1h".
// Empty input falls back to the default.
func ParseResolution(s string) (time.Duration, error) {
	if s == "" {
		return DefaultResolution, nil
	}
	d, err := time.ParseDuration(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return 0, fmt.Errorf("invalid resolution %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("resolution must be positive, got %s", d)
	}
	return d, nil
}
