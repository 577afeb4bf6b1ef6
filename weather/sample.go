package weather

import (
	"fmt"
	"math"
	"time"

	"github.com/sailroute/sailroute/geo"
)

// Conditions is the wind/wave state returned by Sample.
type Conditions struct {
	WindSpeedKt    float64
	WindDirDegFrom float64
	WaveHeightM    float64
}

// uvFromDirSpeed converts a meteorological "from" direction and a speed into
// eastward/northward vector components. Averaging wind this way (rather
// than averaging raw angles) is required for both the spatial IDW blend and
// the temporal interpolation below, since angle averages near a wrap
// boundary are meaningless.
func uvFromDirSpeed(dirFromDeg, speed float64) (u, v float64) {
	r := dirFromDeg * math.Pi / 180
	u = -speed * math.Sin(r)
	v = -speed * math.Cos(r)
	return u, v
}

func dirSpeedFromUV(u, v float64) (dirFromDeg, speed float64) {
	speed = math.Hypot(u, v)
	if speed < 1e-9 {
		return 0, 0
	}
	dirFromDeg = geo.NormalizeHeading(math.Atan2(-u, -v) * 180 / math.Pi)
	return dirFromDeg, speed
}

// Sample returns the wind and wave conditions at position and t, computed
// by inverse-distance-weighted spatial interpolation over the nearest (up
// to) three sampling centroids, then linear interpolation in time between
// the bracketing valid-time samples. Returns ErrHorizonExceeded if t falls
// outside the closed Coverage interval — extrapolation is forbidden by design.
func (w *WeatheredMesh) Sample(position geo.LatLon, t time.Time) (Conditions, error) {
	if len(w.ValidTimes) == 0 || len(w.Centroids) == 0 {
		return Conditions{}, fmt.Errorf("%w: no weather attached to mesh", ErrHorizonExceeded)
	}
	if !w.Coverage.Contains(t) {
		return Conditions{}, ErrHorizonExceeded
	}

	lo, hi, frac := bracketTime(w.ValidTimes, t)

	k := 3
	if k > len(w.Centroids) {
		k = len(w.Centroids)
	}
	tree := geo.BuildKDTree(w.Centroids)
	nearest := tree.KNearest(position, k)

	atTime := func(timeIdx int) (Conditions, bool) {
		var sumWeight, sumU, sumV, sumWave float64
		found := false
		for _, ci := range nearest {
			s := w.Samples[ci][timeIdx]
			if s == nil {
				continue
			}
			d, err := geo.GreatCircleDistance(position, w.Centroids[ci])
			if err != nil {
				continue
			}
			weight := 1 / (d + 1) // +1m guards against division by zero at an exact hit
			u, v := uvFromDirSpeed(s.WindDirDegFrom, s.WindSpeedKt)
			sumU += weight * u
			sumV += weight * v
			sumWave += weight * s.WaveHeightM
			sumWeight += weight
			found = true
		}
		if !found || sumWeight == 0 {
			return Conditions{}, false
		}
		dir, speed := dirSpeedFromUV(sumU/sumWeight, sumV/sumWeight)
		return Conditions{WindSpeedKt: speed, WindDirDegFrom: dir, WaveHeightM: sumWave / sumWeight}, true
	}

	condLo, okLo := atTime(lo)
	condHi, okHi := atTime(hi)
	switch {
	case !okLo && !okHi:
		return Conditions{}, fmt.Errorf("%w: no sample near (%.4f,%.4f) at %v", ErrWeatherUnavailable, position.Lat, position.Lon, t)
	case !okLo:
		return condHi, nil
	case !okHi || lo == hi:
		return condLo, nil
	}

	uLo, vLo := uvFromDirSpeed(condLo.WindDirDegFrom, condLo.WindSpeedKt)
	uHi, vHi := uvFromDirSpeed(condHi.WindDirDegFrom, condHi.WindSpeedKt)
	u := uLo + (uHi-uLo)*frac
	v := vLo + (vHi-vLo)*frac
	dir, speed := dirSpeedFromUV(u, v)
	wave := condLo.WaveHeightM + (condHi.WaveHeightM-condLo.WaveHeightM)*frac

	return Conditions{WindSpeedKt: speed, WindDirDegFrom: dir, WaveHeightM: wave}, nil
}

// bracketTime locates the indices in times (ascending) bracketing t, and
// the fractional position of t between them.
func bracketTime(times []time.Time, t time.Time) (lo, hi int, frac float64) {
	for i := 1; i < len(times); i++ {
		if !t.After(times[i]) {
			lo, hi = i-1, i
			span := times[hi].Sub(times[lo]).Seconds()
			if span <= 0 {
				return lo, hi, 0
			}
			return lo, hi, t.Sub(times[lo]).Seconds() / span
		}
	}
	return len(times) - 1, len(times) - 1, 0
}
