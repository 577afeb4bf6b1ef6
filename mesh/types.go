// Package mesh builds the adaptive navigation mesh (C3): a spatial graph
// over the sea region spanned by a route's control points, fine near the
// control points and the rhumb-line corridor between them, coarse in the
// open sea, and clipped to navigable water via the GeometryPort.
package mesh

import "github.com/sailroute/sailroute/geo"

// VertexId indexes a MeshVertex within a MeshedArea.
type VertexId uint32

// MeshedAreaId identifies a persisted MeshedArea.
type MeshedAreaId string

// Tier is a mesh resolution ring: 1 is finest, 3 coarsest.
type Tier int

const (
	Tier1 Tier = 1
	Tier2 Tier = 2
	Tier3 Tier = 3
)

// ControlPointKind classifies a ControlPoint's role in the course.
type ControlPointKind int

const (
	Start ControlPointKind = iota
	Waypoint
	Mark
	Gate
	Finish
)

// ControlPoint is a user-specified point the route must pass through.
type ControlPoint struct {
	Position    geo.LatLon
	Kind        ControlPointKind
	WidthM      float64 // required for Gate, optional (perpendicular gate width) for Start/Finish
	Description string
}

// MeshVertex is a node in the navigation graph.
type MeshVertex struct {
	ID          VertexId
	Position    geo.LatLon
	Tier        Tier
	IsNavigable bool
}

// MeshEdge is a directed connection between two navigable vertices. Both
// directions of a connection are stored separately because the bearing (and
// hence the TWA the router derives from it) differs per direction.
type MeshEdge struct {
	From, To  VertexId
	DistanceM float64
	Bearing   geo.Bearing
}

// BoundingBox is a lat/lon-aligned rectangle.
type BoundingBox struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// Contains reports whether p lies within the box.
func (b BoundingBox) Contains(p geo.LatLon) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// Center returns the midpoint of the box (plain average, not great-circle —
// adequate for the regional scale a single mesh spans).
func (b BoundingBox) Center() geo.LatLon {
	return geo.LatLon{Lat: (b.MinLat + b.MaxLat) / 2, Lon: (b.MinLon + b.MaxLon) / 2}
}

// Params is the effective mesh configuration, either user-provided or
// produced by AutoParams.
type Params struct {
	CorridorNM             float64
	Ring1M, Ring2M, Ring3M float64
	Area1, Area2, Area3    float64 // target m^2 per vertex, tier 1/2/3
	ShorelineAvoidM        float64
	MaxWeatherPoints       int
	WeatherGridKM          float64
}

// FormatVersion is embedded in every encoded MeshedArea envelope (see
// store.MeshStore implementations). Bumping it invalidates anything already
// persisted under the old encoding: a decoded MeshedArea whose
// FormatVersion doesn't match is treated as a cache miss rather than fed to
// the router against vertex/edge layouts a newer build no longer produces.
const FormatVersion = 1

// MeshedArea is the adaptive navigation graph produced by Build. It is
// immutable after construction and is referenced thereafter by ID.
type MeshedArea struct {
	ID              MeshedAreaId
	FormatVersion   int
	Vertices        []MeshVertex
	Edges           [][]MeshEdge // adjacency list, indexed by VertexId
	ControlVertices []VertexId   // indexed by position in the input ControlPoints slice
	BoundingBox     BoundingBox
	Params          Params
}
