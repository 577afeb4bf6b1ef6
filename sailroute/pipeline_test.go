package sailroute

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sailroute/sailroute/geo"
	"github.com/sailroute/sailroute/mesh"
	"github.com/sailroute/sailroute/polar"
	"github.com/sailroute/sailroute/router"
	"github.com/sailroute/sailroute/store"
)

// landDiskGeometry reports everything within radiusM of center as land; it
// is used to put an unreachable control point on the map (S5) without
// otherwise perturbing the rest of the course.
type landDiskGeometry struct {
	center  geo.LatLon
	radiusM float64
}

func (g landDiskGeometry) IsLand(p geo.LatLon) (bool, error) {
	d, err := geo.GreatCircleDistance(p, g.center)
	if err != nil {
		return false, err
	}
	return d <= g.radiusM, nil
}

func (g landDiskGeometry) DistanceToLand(p geo.LatLon) (float64, error) {
	d, err := geo.GreatCircleDistance(p, g.center)
	if err != nil {
		return 0, err
	}
	if d <= g.radiusM {
		return 0, nil
	}
	return 100000, nil
}

func (g landDiskGeometry) SegmentCrossesLand(a, b geo.LatLon, withinM float64) (bool, error) {
	mid, err := geo.Midpoint(a, b)
	if err != nil {
		return false, err
	}
	d, err := geo.GreatCircleDistance(mid, g.center)
	if err != nil {
		return false, err
	}
	return d <= g.radiusM+withinM, nil
}

// courseOptimalPolar is a polar whose boat speed increases monotonically
// with |TWA| at every wind speed, so running dead downwind is always at
// least as fast as any alternative heading (no gybing benefit to confound
// S1's straight-line expectation), while still giving a navigable sweet
// spot near |TWA|=30-45 for S2's upwind beat. It gives exactly 6 kt at
// (TWA=180, TWS=10), matching S1's scenario statement.
func courseOptimalPolar() *polar.Polar {
	return &polar.Polar{
		TWSAxis:       []float64{5, 10, 15, 25},
		TWAAxis:       []float64{0, 30, 45, 90, 135, 180},
		SpeedTable: [][]float64{
			{0, 0, 0, 0},
			{1, 2, 3, 3},
			{1.5, 3, 4.5, 4.5},
			{2, 4, 5, 5},
			{2.5, 5, 6, 6},
			{3, 6, 8, 8},
		},
		MaxWind:       30,
		TackDurationS: 20,
		JibeDurationS: 30,
	}
}

// eightKnotPolar is courseOptimalPolar with a max_wind low enough that
// steadyPort's 10 kt wind storm-reefs every edge (S6).
func eightKnotPolar() *polar.Polar {
	p := courseOptimalPolar()
	p.MaxWind = 8
	return p
}

// S1: two control points 5 NM apart due east, steady 10 kt westerly wind (a
// dead run), one variant, no maneuvers.
func TestPipelineS1StraightDownwindRun(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewLRUStore(4)
	if err != nil {
		t.Fatalf("NewLRUStore: %v", err)
	}
	svc := NewService(s, nil)

	c0 := geo.LatLon{Lat: 0, Lon: 0}
	c1, err := geo.Destination(c0, 90, geo.NMToMeters(5))
	if err != nil {
		t.Fatalf("Destination: %v", err)
	}
	controlPoints := []mesh.ControlPoint{
		{Position: c0, Kind: mesh.Start},
		{Position: c1, Kind: mesh.Finish},
	}

	area, err := svc.BuildMesh(ctx, "s1", controlPoints, nil, allWaterGeometry{})
	if err != nil {
		t.Fatalf("BuildMesh: %v", err)
	}

	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(6 * time.Hour)
	if _, err := svc.FetchWeather(ctx, "s1", start, end, steadyPort{windSpeedKt: 10, windDirDegFrom: 270}); err != nil {
		t.Fatalf("FetchWeather: %v", err)
	}

	result, err := svc.CalculateRoute(ctx, "s1", router.TimeWindow{Start: start, End: start, NumChecks: 1}, router.Options{
		Polar:           courseOptimalPolar(),
		ControlVertices: area.ControlVertices,
	})
	if err != nil {
		t.Fatalf("CalculateRoute: %v", err)
	}
	if len(result.Variants) != 1 {
		t.Fatalf("expected 1 variant, got %d", len(result.Variants))
	}

	v := result.Variants[0]
	if v.Tacks != 0 || v.Jibes != 0 {
		t.Errorf("expected no maneuvers on a straight downwind leg, got tacks=%d jibes=%d", v.Tacks, v.Jibes)
	}
	if want := 5.0 / 6.0; v.TotalTimeH < want*0.8 || v.TotalTimeH > want*1.2 {
		t.Errorf("total_time_h = %v, want ~%v", v.TotalTimeH, want)
	}
	for _, seg := range v.Segments {
		if seg.PointOfSail != polar.DeadRun {
			t.Errorf("segment point_of_sail = %v, want DeadRun", seg.PointOfSail)
		}
	}
}

// S2: two control points 10 NM apart due north, steady 15 kt northerly wind
// (a dead headwind): the router must zig-zag rather than emit an infeasible
// straight path.
func TestPipelineS2UpwindBeatForcesTacks(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewLRUStore(4)
	if err != nil {
		t.Fatalf("NewLRUStore: %v", err)
	}
	svc := NewService(s, nil)

	c0 := geo.LatLon{Lat: 0, Lon: 0}
	c1, err := geo.Destination(c0, 0, geo.NMToMeters(10))
	if err != nil {
		t.Fatalf("Destination: %v", err)
	}
	controlPoints := []mesh.ControlPoint{
		{Position: c0, Kind: mesh.Start},
		{Position: c1, Kind: mesh.Finish},
	}

	area, err := svc.BuildMesh(ctx, "s2", controlPoints, nil, allWaterGeometry{})
	if err != nil {
		t.Fatalf("BuildMesh: %v", err)
	}

	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(8 * time.Hour)
	if _, err := svc.FetchWeather(ctx, "s2", start, end, steadyPort{windSpeedKt: 15, windDirDegFrom: 0}); err != nil {
		t.Fatalf("FetchWeather: %v", err)
	}

	result, err := svc.CalculateRoute(ctx, "s2", router.TimeWindow{Start: start, End: start, NumChecks: 1}, router.Options{
		Polar:           courseOptimalPolar(),
		ControlVertices: area.ControlVertices,
	})
	if err != nil {
		t.Fatalf("CalculateRoute: %v", err)
	}
	if len(result.Variants) != 1 {
		t.Fatalf("expected 1 variant, got %d", len(result.Variants))
	}

	v := result.Variants[0]
	if v.Tacks < 1 {
		t.Errorf("expected at least one tack beating upwind, got %d", v.Tacks)
	}
	if v.TotalDistanceNM <= 10 {
		t.Errorf("zig-zag distance_nm = %v, want > 10", v.TotalDistanceNM)
	}
}

// S3: weather horizon shorter than any feasible route: the single candidate
// fails with HorizonExceeded and the request fails with
// AllCandidatesInfeasible.
func TestPipelineS3HorizonTooShortIsAllCandidatesInfeasible(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewLRUStore(4)
	if err != nil {
		t.Fatalf("NewLRUStore: %v", err)
	}
	svc := NewService(s, nil)

	c0 := geo.LatLon{Lat: 0, Lon: 0}
	c1, err := geo.Destination(c0, 90, geo.NMToMeters(5))
	if err != nil {
		t.Fatalf("Destination: %v", err)
	}
	c2, err := geo.Destination(c1, 0, geo.NMToMeters(5))
	if err != nil {
		t.Fatalf("Destination: %v", err)
	}
	controlPoints := []mesh.ControlPoint{
		{Position: c0, Kind: mesh.Start},
		{Position: c1, Kind: mesh.Waypoint},
		{Position: c2, Kind: mesh.Finish},
	}

	area, err := svc.BuildMesh(ctx, "s3", controlPoints, nil, allWaterGeometry{})
	if err != nil {
		t.Fatalf("BuildMesh: %v", err)
	}

	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Minute) // far shorter than any feasible transit
	if _, err := svc.FetchWeather(ctx, "s3", start, end, steadyPort{windSpeedKt: 10, windDirDegFrom: 270}); err != nil {
		t.Fatalf("FetchWeather: %v", err)
	}

	_, err = svc.CalculateRoute(ctx, "s3", router.TimeWindow{Start: start, End: start, NumChecks: 1}, router.Options{
		Polar:           testPolar(),
		ControlVertices: area.ControlVertices,
	})
	if !errors.Is(err, router.ErrAllCandidatesInfeasible) {
		t.Fatalf("got %v, want ErrAllCandidatesInfeasible", err)
	}
}

// S4: a four-point course in auto-mesh mode with a 6-hour window and
// num_checks=4: four variants ordered by departure_time, exactly one
// is_best, and a difficulty level drawn from the allowed set.
func TestPipelineS4FourDeparturesOneBest(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewLRUStore(4)
	if err != nil {
		t.Fatalf("NewLRUStore: %v", err)
	}
	svc := NewService(s, nil)

	c0 := geo.LatLon{Lat: 0, Lon: 0}
	c1, err := geo.Destination(c0, 90, geo.NMToMeters(15))
	if err != nil {
		t.Fatalf("Destination: %v", err)
	}
	c2, err := geo.Destination(c1, 0, geo.NMToMeters(15))
	if err != nil {
		t.Fatalf("Destination: %v", err)
	}
	c3, err := geo.Destination(c2, 270, geo.NMToMeters(15))
	if err != nil {
		t.Fatalf("Destination: %v", err)
	}
	controlPoints := []mesh.ControlPoint{
		{Position: c0, Kind: mesh.Start},
		{Position: c1, Kind: mesh.Waypoint},
		{Position: c2, Kind: mesh.Waypoint},
		{Position: c3, Kind: mesh.Finish},
	}

	area, err := svc.BuildMesh(ctx, "s4", controlPoints, nil, allWaterGeometry{})
	if err != nil {
		t.Fatalf("BuildMesh: %v", err)
	}

	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	if _, err := svc.FetchWeather(ctx, "s4", start, end, steadyPort{windSpeedKt: 12, windDirDegFrom: 225}); err != nil {
		t.Fatalf("FetchWeather: %v", err)
	}

	window := router.TimeWindow{Start: start, End: start.Add(6 * time.Hour), NumChecks: 4}
	result, err := svc.CalculateRoute(ctx, "s4", window, router.Options{
		Polar:           testPolar(),
		ControlVertices: area.ControlVertices,
	})
	if err != nil {
		t.Fatalf("CalculateRoute: %v", err)
	}
	if len(result.Variants) != 4 {
		t.Fatalf("expected 4 variants, got %d", len(result.Variants))
	}

	bestCount := 0
	allowed := map[router.DifficultyLevel]bool{
		router.Easy: true, router.Moderate: true, router.Challenging: true,
		router.Difficult: true, router.Extreme: true,
	}
	for i, v := range result.Variants {
		if i > 0 && v.DepartureTime.Before(result.Variants[i-1].DepartureTime) {
			t.Errorf("variant %d departs before variant %d: %v < %v", i, i-1, v.DepartureTime, result.Variants[i-1].DepartureTime)
		}
		if !allowed[v.DifficultyLevel] {
			t.Errorf("variant %d has unrecognized difficulty level %v", i, v.DifficultyLevel)
		}
		if v.IsBest {
			bestCount++
		}
	}
	if bestCount != 1 {
		t.Errorf("expected exactly one is_best variant, got %d", bestCount)
	}
}

// S5: a control point placed on land surfaces ControlPointUnreachable out
// of BuildMesh (C3), before FetchWeather (C4) or CalculateRoute (C5) ever
// run.
func TestPipelineS5ControlPointOnLandFailsAtBuildMesh(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewLRUStore(4)
	if err != nil {
		t.Fatalf("NewLRUStore: %v", err)
	}
	svc := NewService(s, nil)

	c0 := geo.LatLon{Lat: 0, Lon: 0}
	c1, err := geo.Destination(c0, 90, geo.NMToMeters(5))
	if err != nil {
		t.Fatalf("Destination: %v", err)
	}
	// A land disk centered on c1, large enough that the nearest surviving
	// navigable vertex sits well past the hard snap ceiling.
	geom := landDiskGeometry{center: c1, radiusM: 5000}
	controlPoints := []mesh.ControlPoint{
		{Position: c0, Kind: mesh.Start},
		{Position: c1, Kind: mesh.Finish},
	}

	_, err = svc.BuildMesh(ctx, "s5", controlPoints, nil, geom)
	if !errors.Is(err, mesh.ErrControlPointUnreachable) {
		t.Fatalf("got %v, want ErrControlPointUnreachable", err)
	}

	if _, err := svc.FetchWeather(ctx, "s5", time.Now(), time.Now().Add(time.Hour), steadyPort{}); err == nil {
		t.Fatalf("FetchWeather should fail: BuildMesh never persisted a mesh for s5")
	}
}

// S6: the S1 course, but the polar's max_wind is below the steady wind
// speed: every edge storm-reefs, the single candidate finds no navigable
// path, and the request fails with AllCandidatesInfeasible.
func TestPipelineS6StormReefedCourseIsNoNavigablePath(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewLRUStore(4)
	if err != nil {
		t.Fatalf("NewLRUStore: %v", err)
	}
	svc := NewService(s, nil)

	c0 := geo.LatLon{Lat: 0, Lon: 0}
	c1, err := geo.Destination(c0, 90, geo.NMToMeters(5))
	if err != nil {
		t.Fatalf("Destination: %v", err)
	}
	controlPoints := []mesh.ControlPoint{
		{Position: c0, Kind: mesh.Start},
		{Position: c1, Kind: mesh.Finish},
	}

	area, err := svc.BuildMesh(ctx, "s6", controlPoints, nil, allWaterGeometry{})
	if err != nil {
		t.Fatalf("BuildMesh: %v", err)
	}

	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(6 * time.Hour)
	if _, err := svc.FetchWeather(ctx, "s6", start, end, steadyPort{windSpeedKt: 10, windDirDegFrom: 270}); err != nil {
		t.Fatalf("FetchWeather: %v", err)
	}

	_, err = svc.CalculateRoute(ctx, "s6", router.TimeWindow{Start: start, End: start, NumChecks: 1}, router.Options{
		Polar:           eightKnotPolar(),
		ControlVertices: area.ControlVertices,
	})
	if !errors.Is(err, router.ErrAllCandidatesInfeasible) && !errors.Is(err, router.ErrNoNavigablePath) {
		t.Fatalf("got %v, want ErrNoNavigablePath (possibly wrapped as ErrAllCandidatesInfeasible)", err)
	}
}
