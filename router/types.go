// Package router implements the time-optimal router (C5): for each
// candidate departure time, a time-dependent Dijkstra search through the
// control-point sequence over a WeatheredMesh, reconstructing per-segment
// kinematics, maneuver counts, aggregates and a difficulty score.
package router

import (
	"time"

	"github.com/sailroute/sailroute/polar"
)

// TimeWindow is the set of candidate departure instants to evaluate.
type TimeWindow struct {
	Start      time.Time
	End        time.Time
	NumChecks  int // in [1, 24]
}

// DifficultyLevel buckets a variant's difficulty_score.
type DifficultyLevel int

const (
	Easy DifficultyLevel = iota
	Moderate
	Challenging
	Difficult
	Extreme
)

func (d DifficultyLevel) String() string {
	switch d {
	case Easy:
		return "Easy"
	case Moderate:
		return "Moderate"
	case Challenging:
		return "Challenging"
	case Difficult:
		return "Difficult"
	case Extreme:
		return "Extreme"
	default:
		return "Unknown"
	}
}

func difficultyLevel(score float64) DifficultyLevel {
	switch {
	case score < 20:
		return Easy
	case score < 40:
		return Moderate
	case score < 60:
		return Challenging
	case score < 80:
		return Difficult
	default:
		return Extreme
	}
}

// RouteSegment is one leg of sailing between two consecutive mesh vertices
// on a route, with the kinematics the polar and weather produced for it.
type RouteSegment struct {
	FromPos, ToPos [2]float64 // lat, lon
	Bearing        float64
	DistanceNM     float64
	TimeS          float64 // sailing time for this edge only
	ManeuverS      float64 // tack/jibe penalty charged transitioning onto this edge, 0 if none
	BoatSpeedKt    float64
	WindSpeedKt    float64
	WindDirDegFrom float64
	TWA            float64
	PointOfSail    polar.PointOfSail
	WaveHeightM    float64
}

// RouteVariant is one candidate-departure-time's result: an ordered,
// non-empty sequence of segments plus aggregates.
type RouteVariant struct {
	DepartureTime    time.Time
	Segments         []RouteSegment
	TotalTimeH       float64
	TotalDistanceNM  float64
	AvgSpeedKt       float64
	AvgWindKt        float64
	AvgWaveM         float64
	Tacks            int
	Jibes            int
	DifficultyScore  float64
	DifficultyLevel  DifficultyLevel
	IsBest           bool
}

// VesselSummary is a lightweight echo of the polar used for a request,
// carried on RouteResult for the caller's convenience.
type VesselSummary struct {
	MaxWindKt     float64
	TackDurationS float64
	JibeDurationS float64
}

// RouteResult is the outcome of CalculateRoute: a non-empty set of variants,
// the index of the best (fastest) one, and an overall difficulty summary.
type RouteResult struct {
	MeshedAreaID      string
	VesselSummary     VesselSummary
	Variants          []RouteVariant
	BestVariantIndex  int
	OverallDifficulty DifficultyLevel
}
