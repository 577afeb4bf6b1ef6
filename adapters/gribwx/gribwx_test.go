package gribwx

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sailroute/sailroute/geo"
	"github.com/sailroute/sailroute/weather"
)

func TestFieldNearestPicksClosestGridPoint(t *testing.T) {
	f := &field{
		lats:     []float64{0, 0, 10},
		lons:     []float64{0, 10, 10},
		u:        []float64{1, 2, 3},
		v:        []float64{1, 2, 3},
		waveHs:   []float64{0.5, 1.5, 2.5},
		haveWave: true,
	}

	u, v, wave, ok := f.nearest(geo.LatLon{Lat: 0.4, Lon: 9.6})
	if !ok {
		t.Fatalf("expected a nearest point")
	}
	if u != 2 || v != 2 || wave != 1.5 {
		t.Errorf("got u=%v v=%v wave=%v, want the (0,10) grid point (2,2,1.5)", u, v, wave)
	}
}

func TestFieldNearestWrapsLongitudesAbove180(t *testing.T) {
	// GRIB2 longitudes run 0-360; a query point at -179 should match a
	// stored longitude of 181 once wrapped, not one at the opposite
	// hemisphere.
	f := &field{
		lats: []float64{0, 0},
		lons: []float64{181, 10},
		u:    []float64{9, 1},
		v:    []float64{9, 1},
	}

	u, _, _, ok := f.nearest(geo.LatLon{Lat: 0, Lon: -179})
	if !ok {
		t.Fatalf("expected a nearest point")
	}
	if u != 9 {
		t.Errorf("got u=%v, want the wrapped 181 degree point (9)", u)
	}
}

func TestFieldNearestEmptyFieldReturnsNotOK(t *testing.T) {
	f := &field{}
	if _, _, _, ok := f.nearest(geo.LatLon{Lat: 0, Lon: 0}); ok {
		t.Errorf("expected ok=false for an empty field")
	}
}

func TestUVToDirSpeedFromNorth(t *testing.T) {
	// Wind flowing due south (v=-10) is blowing from the north.
	dir, speed := uvToDirSpeed(0, -10)
	if math.Abs(dir-0) > 1e-6 {
		t.Errorf("dirFromDeg = %v, want 0", dir)
	}
	if math.Abs(speed-10) > 1e-6 {
		t.Errorf("speedMS = %v, want 10", speed)
	}
}

func TestUVToDirSpeedCalm(t *testing.T) {
	dir, speed := uvToDirSpeed(0, 0)
	if dir != 0 || speed != 0 {
		t.Errorf("got dir=%v speed=%v, want 0,0 for calm wind", dir, speed)
	}
}

// TestFetchSkipsMissingForecastSteps exercises Fetch against an empty
// directory: every hourly step is a missing file, which loadField reports
// via os.IsNotExist and Fetch treats as a coverage gap, not a fatal error.
func TestFetchSkipsMissingForecastSteps(t *testing.T) {
	p := New(t.TempDir())
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(2 * time.Hour)

	sampleCh, errCh := p.Fetch(context.Background(), []geo.LatLon{{Lat: 0, Lon: 0}}, from, to)

	var samples []weather.WeatherSample
	for s := range sampleCh {
		samples = append(samples, s)
	}
	if err, ok := <-errCh; ok {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(samples) != 0 {
		t.Errorf("expected no samples from an empty directory, got %d", len(samples))
	}
}

// TestFetchSurfacesCorruptFileAsNetworkError writes a file at the expected
// path that squall cannot parse as GRIB2, and checks Fetch reports it
// through weather.ErrNetworkError rather than panicking or hanging.
func TestFetchSurfacesCorruptFileAsNetworkError(t *testing.T) {
	dir := t.TempDir()
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	path := filepath.Join(dir, fmt.Sprintf("%d.grib2", from.Unix()))
	if err := os.WriteFile(path, []byte("not a grib2 file"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	p := New(dir)
	sampleCh, errCh := p.Fetch(context.Background(), []geo.LatLon{{Lat: 0, Lon: 0}}, from, from)

	for range sampleCh {
	}
	err, ok := <-errCh
	if !ok {
		t.Fatalf("expected an error for an unparseable GRIB2 file")
	}
	if !errors.Is(err, weather.ErrNetworkError) {
		t.Errorf("got %v, want weather.ErrNetworkError", err)
	}
}
