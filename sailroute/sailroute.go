// Package sailroute wires the mesh builder, weather binder and router
// into the three operations a caller actually invokes: BuildMesh,
// FetchWeather and CalculateRoute. Each stage's result is persisted through
// a MeshStore so CalculateRoute can be called repeatedly against a mesh
// that was built once and re-weathered as forecasts update.
package sailroute

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sailroute/sailroute/log"
	"github.com/sailroute/sailroute/mesh"
	"github.com/sailroute/sailroute/router"
	"github.com/sailroute/sailroute/store"
	"github.com/sailroute/sailroute/weather"
)

// Service bundles a MeshStore with the logger every stage reports through.
type Service struct {
	Store store.MeshStore
	Log   *log.Logger
}

// NewService constructs a Service. A nil logger is fine: every Logger
// method tolerates it.
func NewService(s store.MeshStore, logger *log.Logger) *Service {
	return &Service{Store: s, Log: logger}
}

// BuildMesh runs C3 and persists the result under areaID, overwriting any
// prior mesh. Whether previously attached weather is discarded depends on
// the store: LRUStore drops it on Put, FileStore keeps it.
func (svc *Service) BuildMesh(ctx context.Context, areaID mesh.MeshedAreaId, controlPoints []mesh.ControlPoint, params *mesh.Params, geom mesh.GeometryPort) (*mesh.MeshedArea, error) {
	if areaID == "" {
		areaID = mesh.MeshedAreaId(uuid.NewString())
	}

	effective := mesh.Params{}
	if params != nil {
		effective = *params
	} else {
		effective = mesh.AutoParams(controlPoints)
	}

	svc.Log.Infof("building mesh %s for %d control points", areaID, len(controlPoints))
	area, err := mesh.Build(ctx, controlPoints, effective, geom)
	if err != nil {
		svc.Log.Errorf("mesh build failed for %s: %v", areaID, err)
		return nil, err
	}
	area.ID = areaID

	if err := svc.Store.Put(area); err != nil {
		return nil, fmt.Errorf("persisting mesh %s: %w", areaID, err)
	}
	svc.Log.Infof("built mesh %s: %d vertices", areaID, len(area.Vertices))
	return area, nil
}

// FetchWeather runs C4 against the persisted mesh for areaID and attaches
// the result, replacing whatever weather was previously attached.
func (svc *Service) FetchWeather(ctx context.Context, areaID mesh.MeshedAreaId, horizonStart, horizonEnd time.Time, port weather.Port) (*weather.WeatheredMesh, error) {
	area, err := svc.Store.Get(areaID)
	if err != nil {
		return nil, fmt.Errorf("loading mesh %s: %w", areaID, err)
	}

	svc.Log.Infof("fetching weather for mesh %s, horizon %s to %s", areaID, horizonStart, horizonEnd)
	wm, err := weather.Bind(ctx, area, horizonStart, horizonEnd, port)
	if err != nil {
		svc.Log.Errorf("weather bind failed for %s: %v", areaID, err)
		return nil, err
	}

	if err := svc.Store.AttachWeather(areaID, wm); err != nil {
		return nil, fmt.Errorf("attaching weather to %s: %w", areaID, err)
	}
	svc.Log.Infof("attached weather to mesh %s: %d centroids, %d valid times", areaID, len(wm.Centroids), len(wm.ValidTimes))
	return wm, nil
}

// CalculateRoute runs C5 against the persisted mesh+weather for areaID.
func (svc *Service) CalculateRoute(ctx context.Context, areaID mesh.MeshedAreaId, window router.TimeWindow, opts router.Options) (*router.RouteResult, error) {
	area, err := svc.Store.Get(areaID)
	if err != nil {
		return nil, fmt.Errorf("loading mesh %s: %w", areaID, err)
	}
	wm, err := svc.Store.GetWeather(areaID)
	if err != nil {
		return nil, fmt.Errorf("loading weather for %s: %w", areaID, err)
	}
	wm.Area = area

	if opts.ControlVertices == nil {
		opts.ControlVertices = area.ControlVertices
	}

	svc.Log.Infof("calculating route over mesh %s, %d departures to check", areaID, window.NumChecks)
	result, err := router.CalculateRoute(ctx, wm, window, opts)
	if err != nil {
		svc.Log.Errorf("route calculation failed for %s: %v", areaID, err)
		return nil, err
	}
	result.MeshedAreaID = string(areaID)
	svc.Log.Infof("route calculated for %s: %d variants, best total_time_h=%.2f", areaID, len(result.Variants), result.Variants[result.BestVariantIndex].TotalTimeH)
	return result, nil
}
