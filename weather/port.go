package weather

import (
	"context"
	"time"

	"github.com/sailroute/sailroute/geo"
)

// Port is the external collaborator providing forecast data. Fetch streams
// samples for the requested points and time range over the returned
// channel; the channel is closed when the provider has no more samples or
// the context is cancelled. Implementations wrap I/O failures in
// ErrWeatherUnavailable, ErrRateLimited or ErrNetworkError so callers can
// tell them apart with errors.Is; Bind retries once on any Fetch error,
// whichever kind it is.
type Port interface {
	Fetch(ctx context.Context, points []geo.LatLon, from, to time.Time) (<-chan WeatherSample, <-chan error)
}
