package influx

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/query"
)

// Result is the slice of the Flux query result surface read paths consume.
// *api.QueryTableResult satisfies it.
type Result interface {
	Next() bool
	Record() *query.FluxRecord
	Err() error
}

// FluxTime renders a timestamp for a Flux range clause.
func FluxTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// FluxStop widens the exclusive range stop so the requested end lands inside.
func FluxStop(t time.Time) string {
	return t.UTC().Add(time.Nanosecond).Format(time.RFC3339Nano)
}
