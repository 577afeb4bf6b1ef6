// Command sailroute is a CLI front end over the sailroute pipeline: build a
// mesh for a set of control points, attach weather, and calculate a route.
// It exists to exercise the pipeline end-to-end during development; it is
// not the production entry point (that's an RPC/HTTP service built atop the
// sailroute package).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sailroute/sailroute/geo"
	"github.com/sailroute/sailroute/log"
	"github.com/sailroute/sailroute/mesh"
	"github.com/sailroute/sailroute/polar"
	"github.com/sailroute/sailroute/router"
	"github.com/sailroute/sailroute/sailroute"
	"github.com/sailroute/sailroute/store"
	"github.com/sailroute/sailroute/weather"
)

var (
	logLevel        = flag.String("loglevel", "info", "logging level: debug, info, warn, error")
	logDir          = flag.String("logdir", "", "directory for log output (default: user config dir)")
	waypoints       = flag.String("waypoints", "", "semicolon-separated lat,lon pairs, e.g. \"42.35,-71.05;41.5,-70.7\"")
	windSpeedKt     = flag.Float64("wind-speed-kt", 15, "constant wind speed (knots) for the demo weather port")
	windDirDegFrom  = flag.Float64("wind-dir-from", 270, "constant wind 'from' direction (degrees) for the demo weather port")
	departureChecks = flag.Int("departure-checks", 1, "number of candidate departure times to evaluate, across the next 24h")
)

// demoWeatherPort is a stand-in weather.Port producing a constant wind and
// a constant 0.5 m sea for every requested point and hour; the adapters/gribwx package
// is the real Port implementation.
type demoWeatherPort struct {
	windSpeedKt, windDirDegFrom float64
}

func (p demoWeatherPort) Fetch(ctx context.Context, points []geo.LatLon, from, to time.Time) (<-chan weather.WeatherSample, <-chan error) {
	sampleCh := make(chan weather.WeatherSample)
	errCh := make(chan error, 1)
	go func() {
		defer close(sampleCh)
		defer close(errCh)
		for t := from; !t.After(to); t = t.Add(time.Hour) {
			for _, pt := range points {
				select {
				case <-ctx.Done():
					return
				case sampleCh <- weather.WeatherSample{
					Position: pt, ValidTime: t,
					WindSpeedKt: p.windSpeedKt, WindDirDegFrom: p.windDirDegFrom, WaveHeightM: 0.5,
				}:
				}
			}
		}
	}()
	return sampleCh, errCh
}

// demoGeometry treats the entire world as navigable water, for a
// quick end-to-end run without a real coastline dataset wired in.
type demoGeometry struct{}

func (demoGeometry) IsLand(geo.LatLon) (bool, error) { return false, nil }
func (demoGeometry) DistanceToLand(geo.LatLon) (float64, error) {
	return 1_000_000, nil
}
func (demoGeometry) SegmentCrossesLand(a, b geo.LatLon, withinM float64) (bool, error) {
	return false, nil
}

func demoPolar() *polar.Polar {
	return &polar.Polar{
		TWSAxis:       []float64{5, 10, 15, 20, 25},
		TWAAxis:       []float64{0, 30, 45, 60, 90, 120, 150, 180},
		MaxWind:       35,
		TackDurationS: 20,
		JibeDurationS: 15,
		SpeedTable: [][]float64{
			{0, 0, 0, 0, 0},
			{2.5, 4.0, 4.8, 5.0, 4.7},
			{3.5, 5.5, 6.4, 6.6, 6.2},
			{4.2, 6.3, 7.2, 7.4, 7.0},
			{4.8, 7.0, 8.0, 8.2, 7.8},
			{4.5, 6.8, 7.8, 8.1, 7.7},
			{3.6, 5.6, 6.6, 6.9, 6.5},
			{3.0, 4.8, 5.6, 5.9, 5.6},
		},
	}
}

func parseWaypoints(s string) ([]mesh.ControlPoint, error) {
	var points []mesh.ControlPoint
	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.Split(pair, ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid waypoint %q: want \"lat,lon\"", pair)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid latitude in %q: %w", pair, err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid longitude in %q: %w", pair, err)
		}
		points = append(points, mesh.ControlPoint{Position: geo.LatLon{Lat: lat, Lon: lon}})
	}
	if len(points) < 2 {
		return nil, fmt.Errorf("need at least two waypoints")
	}
	points[0].Kind = mesh.Start
	points[len(points)-1].Kind = mesh.Finish
	return points, nil
}

func main() {
	flag.Parse()
	lg := log.New(false, *logLevel, *logDir)

	if *waypoints == "" {
		fmt.Fprintln(os.Stderr, "usage: sailroute -waypoints \"lat,lon;lat,lon[;...]\"")
		os.Exit(2)
	}

	controlPoints, err := parseWaypoints(*waypoints)
	if err != nil {
		lg.Errorf("parsing waypoints: %v", err)
		os.Exit(1)
	}

	st, err := store.NewLRUStore(8)
	if err != nil {
		lg.Errorf("creating store: %v", err)
		os.Exit(1)
	}
	svc := sailroute.NewService(st, lg)

	ctx := context.Background()
	const areaID = mesh.MeshedAreaId("cli-run")

	if _, err := svc.BuildMesh(ctx, areaID, controlPoints, nil, demoGeometry{}); err != nil {
		lg.Errorf("BuildMesh: %v", err)
		os.Exit(1)
	}

	start := time.Now().UTC().Truncate(time.Hour)
	end := start.Add(24 * time.Hour)
	port := demoWeatherPort{windSpeedKt: *windSpeedKt, windDirDegFrom: *windDirDegFrom}
	if _, err := svc.FetchWeather(ctx, areaID, start, end, port); err != nil {
		lg.Errorf("FetchWeather: %v", err)
		os.Exit(1)
	}

	window := router.TimeWindow{Start: start, End: end, NumChecks: *departureChecks}
	result, err := svc.CalculateRoute(ctx, areaID, window, router.Options{Polar: demoPolar()})
	if err != nil {
		lg.Errorf("CalculateRoute: %v", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		lg.Errorf("encoding result: %v", err)
		os.Exit(1)
	}
}
