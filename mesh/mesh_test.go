package mesh

import (
	"context"
	"errors"
	"testing"

	"github.com/sailroute/sailroute/geo"
)

// allWaterGeometry is a GeometryPort stub with no land anywhere, used by
// tests that only care about mesh topology, not shoreline clipping.
type allWaterGeometry struct{}

func (allWaterGeometry) IsLand(geo.LatLon) (bool, error) { return false, nil }
func (allWaterGeometry) DistanceToLand(geo.LatLon) (float64, error) {
	return 1_000_000, nil
}
func (allWaterGeometry) SegmentCrossesLand(a, b geo.LatLon, withinM float64) (bool, error) {
	return false, nil
}

// landBeyondGeometry treats every point beyond a given longitude as land.
type landBeyondGeometry struct{ lon float64 }

func (g landBeyondGeometry) IsLand(p geo.LatLon) (bool, error) { return p.Lon > g.lon, nil }
func (g landBeyondGeometry) DistanceToLand(p geo.LatLon) (float64, error) {
	if p.Lon > g.lon {
		return 0, nil
	}
	return 1_000_000, nil
}
func (g landBeyondGeometry) SegmentCrossesLand(a, b geo.LatLon, withinM float64) (bool, error) {
	return a.Lon > g.lon || b.Lon > g.lon, nil
}

func TestAutoParamsBucketSelectionAndCorridorCeiling(t *testing.T) {
	cps := []ControlPoint{
		{Position: geo.LatLon{Lat: 0, Lon: 0}, Kind: Start},
		{Position: geo.LatLon{Lat: 0, Lon: 0.05}, Kind: Finish}, // ~3 NM apart
	}
	p := AutoParams(cps)
	_, minSegNM := spanAndMinSegment(cps)
	if p.CorridorNM > 0.4*minSegNM+1e-9 {
		t.Errorf("corridor_nm %.4f exceeds 40%% of min_segment_nm %.4f", p.CorridorNM, minSegNM)
	}
	if p.MaxWeatherPoints <= 0 {
		t.Errorf("expected a positive max_weather_points preset")
	}
}

func TestAutoParamsLargeSpanUsesLastBucket(t *testing.T) {
	cps := []ControlPoint{
		{Position: geo.LatLon{Lat: 0, Lon: 0}, Kind: Start},
		{Position: geo.LatLon{Lat: 5, Lon: 5}, Kind: Finish},
	}
	p := AutoParams(cps)
	if p.MaxWeatherPoints != 40 {
		t.Errorf("got max_weather_points %d, want 40 for the largest-span bucket", p.MaxWeatherPoints)
	}
}

func TestBuildSimpleTwoPointMeshIsConnected(t *testing.T) {
	cps := []ControlPoint{
		{Position: geo.LatLon{Lat: 0, Lon: 0}, Kind: Start},
		{Position: geo.LatLon{Lat: 0, Lon: 0.08}, Kind: Finish},
	}
	params := AutoParams(cps)
	area, err := Build(context.Background(), cps, params, allWaterGeometry{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(area.Vertices) == 0 {
		t.Fatalf("expected a non-empty mesh")
	}
	if len(area.ControlVertices) != 2 {
		t.Fatalf("expected 2 control vertices, got %d", len(area.ControlVertices))
	}
	for i, cv := range area.ControlVertices {
		if int(cv) >= len(area.Vertices) {
			t.Fatalf("control vertex %d index %d out of range", i, cv)
		}
		if !area.Vertices[cv].IsNavigable {
			t.Errorf("control vertex %d is not navigable", i)
		}
	}
}

func TestBuildControlPointOnLandFails(t *testing.T) {
	cps := []ControlPoint{
		{Position: geo.LatLon{Lat: 0, Lon: 0}, Kind: Start},
		{Position: geo.LatLon{Lat: 0, Lon: 10}, Kind: Finish}, // on land per landBeyondGeometry
	}
	params := AutoParams(cps)
	_, err := Build(context.Background(), cps, params, landBeyondGeometry{lon: 5})
	if !errors.Is(err, ErrControlPointUnreachable) {
		t.Fatalf("got err %v, want ErrControlPointUnreachable", err)
	}
}

func TestBuildRejectsFewerThanTwoControlPoints(t *testing.T) {
	cps := []ControlPoint{{Position: geo.LatLon{Lat: 0, Lon: 0}, Kind: Start}}
	_, err := Build(context.Background(), cps, AutoParams(cps), allWaterGeometry{})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("got err %v, want ErrInvalidInput", err)
	}
}
