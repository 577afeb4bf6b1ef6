// Package polar implements the vessel polar model: boat speed as a function
// of true wind angle and true wind speed via bilinear interpolation over a
// polar diagram, plus point-of-sail classification.
package polar

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidPolar is returned when a Polar's speed table dimensions do not
// match its axes.
var ErrInvalidPolar = errors.New("polar: speed_table dimensions do not match axes")

// PointOfSail is the qualitative sailing regime derived from |TWA|.
type PointOfSail int

const (
	InIrons PointOfSail = iota
	CloseHauled
	CloseReach
	BeamReach
	BroadReach
	Running
	DeadRun
)

func (p PointOfSail) String() string {
	switch p {
	case InIrons:
		return "InIrons"
	case CloseHauled:
		return "CloseHauled"
	case CloseReach:
		return "CloseReach"
	case BeamReach:
		return "BeamReach"
	case BroadReach:
		return "BroadReach"
	case Running:
		return "Running"
	case DeadRun:
		return "DeadRun"
	default:
		return fmt.Sprintf("PointOfSail(%d)", int(p))
	}
}

// Classify returns the point of sail for the given |TWA| in degrees,
// per the inclusive-lower-bound boundaries: 0-29 InIrons, 30-49 CloseHauled,
// 50-69 CloseReach, 70-109 BeamReach, 110-149 BroadReach, 150-169 Running,
// 170-180 DeadRun.
func Classify(absTWA float64) PointOfSail {
	switch {
	case absTWA < 30:
		return InIrons
	case absTWA < 50:
		return CloseHauled
	case absTWA < 70:
		return CloseReach
	case absTWA < 110:
		return BeamReach
	case absTWA < 150:
		return BroadReach
	case absTWA < 170:
		return Running
	default:
		return DeadRun
	}
}

// Polar is a vessel polar diagram: boat speed in knots as a function of
// (|TWA| degrees, TWS knots), given as a rectangular, monotone-axis table.
type Polar struct {
	// TWSAxis is the ordered ascending sequence of true wind speeds, knots.
	TWSAxis []float64
	// TWAAxis is the ordered ascending sequence of |TWA| values, degrees,
	// within [0, 180].
	TWAAxis []float64
	// SpeedTable[i][j] is boat speed in knots at (TWAAxis[i], TWSAxis[j]).
	SpeedTable [][]float64
	// MaxWind is the storm-reef cutoff, knots: TWS above this yields 0.
	MaxWind float64
	// TackDurationS and JibeDurationS are the time penalties, in seconds,
	// applied by the router when a maneuver crosses TWA = 0 or TWA = 180.
	TackDurationS float64
	JibeDurationS float64
}

// Validate checks that the speed table's dimensions match the axes and that
// both axes are strictly ascending.
func (p *Polar) Validate() error {
	if len(p.SpeedTable) != len(p.TWAAxis) {
		return ErrInvalidPolar
	}
	for _, row := range p.SpeedTable {
		if len(row) != len(p.TWSAxis) {
			return ErrInvalidPolar
		}
	}
	for i := 1; i < len(p.TWAAxis); i++ {
		if p.TWAAxis[i] <= p.TWAAxis[i-1] {
			return ErrInvalidPolar
		}
	}
	for i := 1; i < len(p.TWSAxis); i++ {
		if p.TWSAxis[i] <= p.TWSAxis[i-1] {
			return ErrInvalidPolar
		}
	}
	return nil
}

// BoatSpeed returns the interpolated boat speed, in knots, for the given
// true wind angle (signed, degrees) and true wind speed (knots). TWA's sign
// is irrelevant to magnitude by construction (port/starboard symmetry);
// TWS above MaxWind returns 0 (storm reef); |TWA| and TWS are clamped to
// their axis ranges before interpolation.
func (p *Polar) BoatSpeed(twa, tws float64) float64 {
	if tws > p.MaxWind {
		return 0
	}
	if len(p.TWAAxis) == 0 || len(p.TWSAxis) == 0 {
		return 0
	}

	absTWA := math.Abs(twa)
	if absTWA > 180 {
		absTWA = 180
	}

	clampedTWS := clamp(tws, p.TWSAxis[0], p.TWSAxis[len(p.TWSAxis)-1])
	clampedTWA := clamp(absTWA, p.TWAAxis[0], p.TWAAxis[len(p.TWAAxis)-1])

	// Bilinear interpolation: locate the bracketing TWS columns, interpolate
	// along TWS within each of the two bracketing TWA rows, then interpolate
	// those two results along TWA. The axis order is arbitrary for a
	// separable rectangular grid but fixed here for determinism.
	twaLo, twaHi, twaFrac := bracket(p.TWAAxis, clampedTWA)
	speedAtTWALo := interpolateRow(p.SpeedTable[twaLo], p.TWSAxis, clampedTWS)
	speedAtTWAHi := interpolateRow(p.SpeedTable[twaHi], p.TWSAxis, clampedTWS)

	return speedAtTWALo + (speedAtTWAHi-speedAtTWALo)*twaFrac
}

// bracket locates the indices lo, hi in axis bracketing v (lo == hi when v
// coincides with an axis value or the axis has one element), and the
// fractional position of v between axis[lo] and axis[hi].
func bracket(axis []float64, v float64) (lo, hi int, frac float64) {
	if len(axis) == 1 {
		return 0, 0, 0
	}
	for i := 1; i < len(axis); i++ {
		if v <= axis[i] {
			lo, hi = i-1, i
			span := axis[hi] - axis[lo]
			if span <= 0 {
				return lo, hi, 0
			}
			return lo, hi, (v - axis[lo]) / span
		}
	}
	return len(axis) - 1, len(axis) - 1, 0
}

func interpolateRow(row, axis []float64, v float64) float64 {
	lo, hi, frac := bracket(axis, v)
	return row[lo] + (row[hi]-row[lo])*frac
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
