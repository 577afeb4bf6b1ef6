// Package gribwx implements weather.Port by reading GRIB2 files (e.g. a
// GFS/WaveWatch III download) with github.com/mmp/squall and nearest-point
// sampling the U/V wind and significant wave height fields onto the
// requested locations and times. It is a reference adapter: a real
// deployment would schedule downloads and caching around it (see
// util.CacheStoreObject / CacheRetrieveObject).
package gribwx

import (
	"context"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/mmp/squall"

	"github.com/sailroute/sailroute/geo"
	"github.com/sailroute/sailroute/weather"
)

// Port reads one GRIB2 file per forecast valid time from a directory laid
// out as <dir>/<unix-timestamp>.grib2.
type Port struct {
	Dir string
}

func New(dir string) Port { return Port{Dir: dir} }

// Fetch implements weather.Port: for each hourly step between from and to
// (inclusive) that has a corresponding GRIB2 file, nearest-point-sample the
// wind and wave fields at every requested location.
func (p Port) Fetch(ctx context.Context, points []geo.LatLon, from, to time.Time) (<-chan weather.WeatherSample, <-chan error) {
	sampleCh := make(chan weather.WeatherSample)
	errCh := make(chan error, 1)

	go func() {
		defer close(sampleCh)
		defer close(errCh)

		for t := from.Truncate(time.Hour); !t.After(to); t = t.Add(time.Hour) {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			default:
			}

			field, err := loadField(p.Dir, t)
			if err != nil {
				if os.IsNotExist(err) {
					continue // a missing forecast step is a coverage gap, not a fatal error
				}
				errCh <- fmt.Errorf("%w: %v", weather.ErrNetworkError, err)
				return
			}

			for _, pt := range points {
				u, v, wave, ok := field.nearest(pt)
				if !ok {
					continue
				}
				dirFrom, speedMS := uvToDirSpeed(u, v)
				select {
				case sampleCh <- weather.WeatherSample{
					Position:       pt,
					ValidTime:      t,
					WindSpeedKt:    speedMS * 1.9438445,
					WindDirDegFrom: dirFrom,
					WaveHeightM:    wave,
				}:
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				}
			}
		}
	}()

	return sampleCh, errCh
}

// field holds one time step's parallel-array GRIB2 data for the three
// parameters sailroute needs.
type field struct {
	lats, lons   []float64
	u, v, waveHs []float64
	haveWave     bool
}

func loadField(dir string, t time.Time) (*field, error) {
	path := fmt.Sprintf("%s/%d.grib2", dir, t.Unix())
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := squall.Read(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	fld := &field{}
	for _, r := range records {
		switch r.Parameter.ShortName() {
		case "UGRD":
			fld.lats = toFloat64Lats(r)
			fld.lons = toFloat64Lons(r)
			fld.u = r.Data[:r.NumPoints]
		case "VGRD":
			fld.v = r.Data[:r.NumPoints]
		case "HTSGW":
			fld.waveHs = r.Data[:r.NumPoints]
			fld.haveWave = true
		}
	}
	if fld.u == nil || fld.v == nil {
		return nil, fmt.Errorf("%s: missing UGRD/VGRD records", path)
	}
	return fld, nil
}

func toFloat64Lats(r *squall.GRIB2) []float64 { return r.Latitudes[:r.NumPoints] }
func toFloat64Lons(r *squall.GRIB2) []float64 { return r.Longitudes[:r.NumPoints] }

// nearest returns the U/V wind components (m/s) and wave height (m, 0 if
// the field has no wave record) at the grid point closest to p.
func (f *field) nearest(p geo.LatLon) (u, v, wave float64, ok bool) {
	bestIdx := -1
	bestDist := math.Inf(1)
	for i := range f.lats {
		dLat := f.lats[i] - p.Lat
		lon := f.lons[i]
		if lon > 180 {
			lon -= 360
		}
		dLon := lon - p.Lon
		d := dLat*dLat + dLon*dLon
		if d < bestDist {
			bestDist = d
			bestIdx = i
		}
	}
	if bestIdx == -1 {
		return 0, 0, 0, false
	}
	waveAt := 0.0
	if f.haveWave && bestIdx < len(f.waveHs) {
		waveAt = f.waveHs[bestIdx]
	}
	return f.u[bestIdx], f.v[bestIdx], waveAt, true
}

// uvToDirSpeed converts eastward/northward wind components (m/s) to a
// meteorological "from" direction (degrees) and speed (m/s).
func uvToDirSpeed(u, v float64) (dirFromDeg, speedMS float64) {
	speedMS = math.Hypot(u, v)
	if speedMS < 1e-9 {
		return 0, 0
	}
	dirFromDeg = math.Mod(math.Atan2(-u, -v)*180/math.Pi+360, 360)
	return dirFromDeg, speedMS
}
