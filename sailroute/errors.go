package sailroute

import (
	"github.com/sailroute/sailroute/mesh"
	"github.com/sailroute/sailroute/router"
	"github.com/sailroute/sailroute/store"
	"github.com/sailroute/sailroute/weather"
)

// errorStringToError lets a caller that only has an error's string (e.g.
// from a deserialized API response) recover the original sentinel, the way
// an RPC client recovers typed errors from a server that can only send text.
var errorStringToError = map[string]error{
	mesh.ErrInvalidInput.Error():             mesh.ErrInvalidInput,
	mesh.ErrControlPointUnreachable.Error():  mesh.ErrControlPointUnreachable,
	mesh.ErrDisconnectedControlPoints.Error(): mesh.ErrDisconnectedControlPoints,
	mesh.ErrGeometryUnavailable.Error():      mesh.ErrGeometryUnavailable,
	mesh.ErrCancelled.Error():                mesh.ErrCancelled,

	weather.ErrWeatherUnavailable.Error(): weather.ErrWeatherUnavailable,
	weather.ErrRateLimited.Error():        weather.ErrRateLimited,
	weather.ErrNetworkError.Error():       weather.ErrNetworkError,
	weather.ErrHorizonExceeded.Error():    weather.ErrHorizonExceeded,

	router.ErrNoNavigablePath.Error():         router.ErrNoNavigablePath,
	router.ErrAllCandidatesInfeasible.Error(): router.ErrAllCandidatesInfeasible,
	router.ErrCancelled.Error():               router.ErrCancelled,
	router.ErrInvalidInput.Error():            router.ErrInvalidInput,

	store.ErrNotFound.Error(): store.ErrNotFound,
}

// TryDecodeError recovers the package-level sentinel matching e's message,
// if any, so callers that compare with errors.Is keep working across a
// boundary (RPC, persisted job state) that only preserves error text.
func TryDecodeError(e error) error {
	if e == nil {
		return nil
	}
	if err, ok := errorStringToError[e.Error()]; ok {
		return err
	}
	return e
}

// TryDecodeErrorString is TryDecodeError for a bare message string.
func TryDecodeErrorString(s string) error {
	if err, ok := errorStringToError[s]; ok {
		return err
	}
	return nil
}
