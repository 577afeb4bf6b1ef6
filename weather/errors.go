package weather

import "errors"

// Sentinel errors for the weather binder, matching the error taxonomy's C4
// failure modes (plus HorizonExceeded, surfaced here since Sample is where
// the horizon boundary is actually enforced, and consumed by the router).
var (
	ErrWeatherUnavailable = errors.New("weather: port could not satisfy request")
	ErrRateLimited        = errors.New("weather: rate limited")
	ErrNetworkError       = errors.New("weather: network error")
	ErrHorizonExceeded    = errors.New("weather: query time outside forecast horizon")
)
