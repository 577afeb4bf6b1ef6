package weather

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sailroute/sailroute/geo"
	"github.com/sailroute/sailroute/mesh"
	"github.com/sailroute/sailroute/util"
)

// Bind runs the weather binder algorithm (§4.4): choose a bounded set of
// sampling centroids over area's bounding box and convex hull, fetch
// forecasts for those centroids across [horizonStart, horizonEnd] via port,
// and return a WeatheredMesh ready for Sample queries.
func Bind(ctx context.Context, area *mesh.MeshedArea, horizonStart, horizonEnd time.Time, port Port) (*WeatheredMesh, error) {
	centroids := chooseCentroids(area)
	if len(centroids) == 0 {
		return nil, fmt.Errorf("%w: no sampling centroids fall inside the mesh hull", ErrWeatherUnavailable)
	}

	samples, err := fetchWithRetry(ctx, port, centroids, horizonStart, horizonEnd)
	if err != nil {
		return nil, err
	}

	validTimes, matrix, survivingCentroids := indexSamples(centroids, samples)
	if len(survivingCentroids) == 0 {
		return nil, fmt.Errorf("%w: no centroid returned any sample in the horizon", ErrWeatherUnavailable)
	}

	coverage := coverageInterval(validTimes, horizonStart)

	return &WeatheredMesh{
		Area:          area,
		ValidTimes:    validTimes,
		Centroids:     survivingCentroids,
		Samples:       matrix,
		Coverage:      coverage,
		FormatVersion: FormatVersion,
	}, nil
}

// coverageInterval groups validTimes into contiguous runs via
// util.FindTimeIntervals (a gap bigger than 1.5x the nominal forecast
// cadence starts a new run) and returns the one containing horizonStart, or
// the last run if horizonStart precedes every sample (the fetch came back
// short of the requested start).
func coverageInterval(validTimes []time.Time, horizonStart time.Time) util.TimeInterval {
	if len(validTimes) == 0 {
		return util.TimeInterval{}
	}
	intervals := util.FindTimeIntervals(validTimes, nominalCadence(validTimes)*3/2)
	for _, iv := range intervals {
		if iv.Contains(horizonStart) {
			return iv
		}
	}
	return intervals[len(intervals)-1]
}

// nominalCadence is the smallest gap between consecutive validTimes, used as
// the expected forecast step so a larger gap reads as a coverage hole
// rather than part of one contiguous interval.
func nominalCadence(validTimes []time.Time) time.Duration {
	if len(validTimes) < 2 {
		return time.Hour
	}
	min := validTimes[1].Sub(validTimes[0])
	for i := 2; i < len(validTimes); i++ {
		if gap := validTimes[i].Sub(validTimes[i-1]); gap < min {
			min = gap
		}
	}
	if min <= 0 {
		return time.Hour
	}
	return min
}

// chooseCentroids places a regular lat/lon grid over the mesh's bounding
// box at the configured spacing, keeps only the centroids inside the mesh's
// convex hull, and reduces via K-means to at most max_weather_points.
func chooseCentroids(area *mesh.MeshedArea) []geo.LatLon {
	spacingM := area.Params.WeatherGridKM * 1000
	if spacingM <= 0 {
		spacingM = 1000
	}
	grid := gridOverBBox(area.BoundingBox, spacingM)

	var hullPts []geo.LatLon
	for _, v := range area.Vertices {
		hullPts = append(hullPts, v.Position)
	}
	hull := geo.ConvexHull(hullPts)

	var inside []geo.LatLon
	for _, p := range grid {
		if geo.PointInConvexHull(p, hull) {
			inside = append(inside, p)
		}
	}
	if len(inside) == 0 {
		inside = grid
	}

	maxPts := area.Params.MaxWeatherPoints
	if maxPts <= 0 || len(inside) <= maxPts {
		return inside
	}
	return kmeans(inside, maxPts, 25)
}

func gridOverBBox(bb mesh.BoundingBox, spacingM float64) []geo.LatLon {
	const metersPerDegLat = 111320.0
	midLat := (bb.MinLat + bb.MaxLat) / 2
	metersPerDegLon := metersPerDegLat * math.Cos(midLat*math.Pi/180)
	if metersPerDegLon < 1 {
		metersPerDegLon = 1
	}
	latStep := spacingM / metersPerDegLat
	lonStep := spacingM / metersPerDegLon

	var pts []geo.LatLon
	for lat := bb.MinLat; lat <= bb.MaxLat; lat += latStep {
		for lon := bb.MinLon; lon <= bb.MaxLon; lon += lonStep {
			pts = append(pts, geo.LatLon{Lat: lat, Lon: lon})
		}
	}
	return pts
}

// kmeans reduces pts to k cluster centers via Lloyd's algorithm in plain
// (lon, lat) degree space, adequate at the regional scale a single mesh
// spans. Deterministic seeding (evenly-spaced input points) makes Bind's
// centroid choice reproducible for a given mesh.
func kmeans(pts []geo.LatLon, k, maxIter int) []geo.LatLon {
	if k >= len(pts) {
		return pts
	}
	centers := make([]geo.LatLon, k)
	for i := range centers {
		centers[i] = pts[(i*len(pts))/k]
	}

	assignment := make([]int, len(pts))
	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, p := range pts {
			best, bestDist := 0, math.Inf(1)
			for c, center := range centers {
				dx := p.Lon - center.Lon
				dy := p.Lat - center.Lat
				d := dx*dx + dy*dy
				if d < bestDist {
					best, bestDist = c, d
				}
			}
			if assignment[i] != best {
				assignment[i] = best
				changed = true
			}
		}

		sumLat := make([]float64, k)
		sumLon := make([]float64, k)
		count := make([]int, k)
		for i, p := range pts {
			c := assignment[i]
			sumLat[c] += p.Lat
			sumLon[c] += p.Lon
			count[c]++
		}
		for c := range centers {
			if count[c] > 0 {
				centers[c] = geo.LatLon{Lat: sumLat[c] / float64(count[c]), Lon: sumLon[c] / float64(count[c])}
			}
		}
		if !changed {
			break
		}
	}
	return centers
}

// fetchWithRetry calls port.Fetch once, retrying a single time with
// exponential backoff on failure before surfacing the error, per §4.4 and
// §7's "retried once in C4 before surfacing" policy.
func fetchWithRetry(ctx context.Context, port Port, centroids []geo.LatLon, from, to time.Time) ([]WeatherSample, error) {
	const maxAttempts = 2
	const initialBackoff = 250 * time.Millisecond

	var lastErr error
	backoff := initialBackoff
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		sampleCh, errCh := port.Fetch(ctx, centroids, from, to)
		var samples []WeatherSample
		var fetchErr error
	drain:
		for {
			select {
			case s, ok := <-sampleCh:
				if !ok {
					sampleCh = nil
					if errCh == nil {
						break drain
					}
					continue
				}
				samples = append(samples, s)
			case e, ok := <-errCh:
				if !ok {
					errCh = nil
					if sampleCh == nil {
						break drain
					}
					continue
				}
				fetchErr = e
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			if sampleCh == nil && errCh == nil {
				break drain
			}
		}

		if fetchErr == nil {
			return samples, nil
		}
		lastErr = fetchErr
	}
	return nil, fmt.Errorf("%w: %v", ErrWeatherUnavailable, lastErr)
}

// indexSamples builds the shared ascending ValidTimes axis and the
// centroid-by-time sample matrix, dropping any centroid that returned zero
// samples (the partial-failure tolerance in §4.4).
func indexSamples(centroids []geo.LatLon, samples []WeatherSample) ([]time.Time, [][]*WeatherSample, []geo.LatLon) {
	timeSet := map[int64]time.Time{}
	for _, s := range samples {
		timeSet[s.ValidTime.UnixNano()] = s.ValidTime
	}
	validTimes := make([]time.Time, 0, len(timeSet))
	for _, t := range timeSet {
		validTimes = append(validTimes, t)
	}
	sort.Slice(validTimes, func(i, j int) bool { return validTimes[i].Before(validTimes[j]) })
	timeIndex := make(map[int64]int, len(validTimes))
	for i, t := range validTimes {
		timeIndex[t.UnixNano()] = i
	}

	// Nearest centroid per sample, by position.
	centroidTree := geo.BuildKDTree(centroids)
	matrix := make([][]*WeatherSample, len(centroids))
	hasSample := make([]bool, len(centroids))
	for c := range matrix {
		matrix[c] = make([]*WeatherSample, len(validTimes))
	}

	for i := range samples {
		s := &samples[i]
		nearest := centroidTree.KNearest(s.Position, 1)
		if len(nearest) == 0 {
			continue
		}
		c := nearest[0]
		ti, ok := timeIndex[s.ValidTime.UnixNano()]
		if !ok {
			continue
		}
		matrix[c][ti] = s
		hasSample[c] = true
	}

	var survivingCentroids []geo.LatLon
	var survivingMatrix [][]*WeatherSample
	for c, ok := range hasSample {
		if ok {
			survivingCentroids = append(survivingCentroids, centroids[c])
			survivingMatrix = append(survivingMatrix, matrix[c])
		}
	}
	return validTimes, survivingMatrix, survivingCentroids
}
