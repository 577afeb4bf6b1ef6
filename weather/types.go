// Package weather implements the weather binder (C4): choosing a bounded
// set of forecast sampling locations over a mesh, fetching samples via the
// WeatherPort, and attaching spatio-temporally interpolated weather to the
// mesh so the router can query wind and wave conditions at any point and
// time within the forecast horizon.
package weather

import (
	"time"

	"github.com/sailroute/sailroute/geo"
	"github.com/sailroute/sailroute/mesh"
	"github.com/sailroute/sailroute/util"
)

// WeatherSample is a single forecast observation: wind and wave state at a
// position and valid time. WindDirDegFrom is the meteorological "from"
// direction (the direction the wind blows from, not to).
type WeatherSample struct {
	Position       geo.LatLon
	ValidTime      time.Time
	WindSpeedKt    float64
	WindDirDegFrom float64
	WaveHeightM    float64
}

// centroidWeight pairs a sampling centroid index with its normalized
// inverse-distance weight for a query point.
type centroidWeight struct {
	Centroid int
	Weight   float64
}

// FormatVersion is embedded in every encoded WeatheredMesh envelope; see
// mesh.FormatVersion for why a mismatch reads as a cache miss rather than a
// decode error.
const FormatVersion = 1

// WeatheredMesh is a MeshedArea plus attached weather: a bounded set of
// sampling centroids, each with a forecast time series, and the
// interpolation machinery behind Sample. It is immutable once returned by
// Bind; Version distinguishes successive attachments to the same
// MeshedAreaId so a caller holding a stale reference can detect it.
type WeatheredMesh struct {
	Area *mesh.MeshedArea

	// ValidTimes is the shared forecast time axis, ascending.
	ValidTimes []time.Time
	// Centroids are the sampling locations chosen by Bind.
	Centroids []geo.LatLon
	// Samples[c][t] is the forecast at Centroids[c], ValidTimes[t]. A nil
	// entry means that centroid/time pair could not be fetched (partial
	// failure tolerance).
	Samples [][]*WeatherSample

	// Coverage is the contiguous span of ValidTimes containing the horizon
	// Bind was asked to fetch, as found by util.FindTimeIntervals: a gap in
	// the forecast (a missing step bigger than the nominal cadence) splits
	// ValidTimes into more than one interval, and Sample only interpolates
	// within the one actually covering its query time.
	Coverage util.TimeInterval

	FormatVersion int
	Version       uint64
}

// StartTime and EndTime return the full span of ValidTimes fetched,
// including any gap Coverage excludes; callers wanting the span Sample will
// actually answer queries over should use Coverage instead.
func (w *WeatheredMesh) StartTime() time.Time {
	if len(w.ValidTimes) == 0 {
		return time.Time{}
	}
	return w.ValidTimes[0]
}

func (w *WeatheredMesh) EndTime() time.Time {
	if len(w.ValidTimes) == 0 {
		return time.Time{}
	}
	return w.ValidTimes[len(w.ValidTimes)-1]
}
