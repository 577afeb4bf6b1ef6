package mesh

import "math"

// preset is one row of the fixed auto-mesh-parameter ladder (§6 of the
// external interface contract). These constants are part of the wire
// contract: any conforming implementation must reproduce them exactly.
type preset struct {
	ring1M, ring2M, ring3M float64
	area1, area2, area3    float64
	maxWeatherPoints       int
	weatherGridKM          float64
	shorelineAvoidM        float64
}

var presetLadder = []preset{
	{50, 100, 200, 200, 500, 1000, 5, 0.5, 50},
	{100, 250, 500, 500, 1500, 4000, 10, 1.0, 100},
	{300, 800, 1500, 2000, 8000, 25000, 20, 2.0, 150},
	{500, 1500, 3000, 3000, 15000, 60000, 40, 5.0, 200},
}

// AutoParams derives the effective mesh parameters for the given control
// points, selecting a preset from the fixed four-bucket ladder keyed by
// span and minimum inter-control-point segment length, and constraining
// corridor_nm so it never exceeds 40% of the shortest leg.
func AutoParams(controlPoints []ControlPoint) Params {
	spanNM, minSegmentNM := spanAndMinSegment(controlPoints)

	var p preset
	var corridorNM float64
	switch {
	case minSegmentNM < 0.3 || spanNM < 1:
		p = presetLadder[0]
		corridorNM = math.Min(0.1, 0.4*minSegmentNM)
	case minSegmentNM < 1 || spanNM < 3:
		p = presetLadder[1]
		corridorNM = math.Min(0.3, 0.4*minSegmentNM)
	case spanNM < 8:
		p = presetLadder[2]
		corridorNM = math.Min(1.0, 0.4*minSegmentNM)
	default:
		p = presetLadder[3]
		corridorNM = math.Min(3.0, math.Min(0.15*spanNM, 0.4*minSegmentNM))
	}

	return Params{
		CorridorNM:       corridorNM,
		Ring1M:           p.ring1M,
		Ring2M:           p.ring2M,
		Ring3M:           p.ring3M,
		Area1:            p.area1,
		Area2:            p.area2,
		Area3:            p.area3,
		ShorelineAvoidM:  p.shorelineAvoidM,
		MaxWeatherPoints: p.maxWeatherPoints,
		WeatherGridKM:    p.weatherGridKM,
	}
}
