package router

import "errors"

// Sentinel errors for the router, matching the error taxonomy's C5 failure
// modes. NoNavigablePath and the weather package's ErrHorizonExceeded are
// per-candidate failures absorbed into an empty result for that candidate;
// only AllCandidatesInfeasible surfaces as the request failure.
var (
	ErrNoNavigablePath       = errors.New("router: no navigable path under current weather")
	ErrAllCandidatesInfeasible = errors.New("router: no candidate departure produced a route")
	ErrCancelled             = errors.New("router: cancelled")
	ErrInvalidInput          = errors.New("router: invalid input")
)
