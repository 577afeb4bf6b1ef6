package mesh

import (
	"errors"

	"github.com/sailroute/sailroute/geo"
)

// Sentinel errors for the mesh builder, matching the error taxonomy's C3
// failure modes. Wrap with fmt.Errorf("...: %w", ErrX) to add context while
// keeping errors.Is working for callers across a process boundary.
var (
	ErrInvalidInput             = errors.New("mesh: invalid input")
	ErrControlPointUnreachable  = errors.New("mesh: control point unreachable")
	ErrDisconnectedControlPoints = errors.New("mesh: control points lie in disconnected sea basins")
	ErrGeometryUnavailable      = errors.New("mesh: geometry port unavailable")
	ErrCancelled                = errors.New("mesh: cancelled")
)

// GeometryPort is the external collaborator providing landmass/obstacle
// geometry queries. Implementations are expected to return
// ErrGeometryUnavailable (wrapped) on any I/O failure.
type GeometryPort interface {
	IsLand(p geo.LatLon) (bool, error)
	DistanceToLand(p geo.LatLon) (meters float64, err error)
	SegmentCrossesLand(a, b geo.LatLon, withinM float64) (bool, error)
}
