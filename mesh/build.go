package mesh

import (
	"context"
	"fmt"
	"math"

	"github.com/sailroute/sailroute/geo"
	"golang.org/x/sync/errgroup"
)

// hardCeilingM is the maximum snap distance before a control point is
// inserted as an explicit vertex rather than snapped to an existing one.
const hardCeilingM = 200.0

// knnByTier is the number of nearest-neighbor edges wired per vertex, keyed
// by the vertex's own tier (1, 2, 3).
var knnByTier = map[Tier]int{Tier1: 8, Tier2: 6, Tier3: 5}

func metersPerDegreeLat() float64 { return 111320.0 }
func metersPerDegreeLon(lat float64) float64 {
	v := 111320.0 * math.Cos(lat*math.Pi/180)
	if v < 1 {
		v = 1
	}
	return v
}

// spanAndMinSegment computes the span_nm and min_segment_nm quantities used
// by AutoParams: span is the larger of the lat/lon extents converted to NM
// at 60 NM per degree, and min segment is the shortest rhumb-line distance
// between adjacent control points.
func spanAndMinSegment(cps []ControlPoint) (spanNM, minSegmentNM float64) {
	if len(cps) == 0 {
		return 0, 0
	}
	minLat, maxLat := cps[0].Position.Lat, cps[0].Position.Lat
	minLon, maxLon := cps[0].Position.Lon, cps[0].Position.Lon
	for _, cp := range cps[1:] {
		minLat = math.Min(minLat, cp.Position.Lat)
		maxLat = math.Max(maxLat, cp.Position.Lat)
		minLon = math.Min(minLon, cp.Position.Lon)
		maxLon = math.Max(maxLon, cp.Position.Lon)
	}
	latSpan := maxLat - minLat
	lonSpan := maxLon - minLon
	spanNM = math.Max(latSpan, lonSpan) * 60

	minSegmentNM = math.Inf(1)
	for i := 1; i < len(cps); i++ {
		d, err := geo.RhumbDistance(cps[i-1].Position, cps[i].Position)
		if err != nil {
			continue
		}
		nm := geo.MetersToNM(d)
		if nm < minSegmentNM {
			minSegmentNM = nm
		}
	}
	if math.IsInf(minSegmentNM, 1) {
		minSegmentNM = 0
	}
	return spanNM, minSegmentNM
}

func boundingBox(cps []ControlPoint, corridorNM float64) BoundingBox {
	minLat, maxLat := cps[0].Position.Lat, cps[0].Position.Lat
	minLon, maxLon := cps[0].Position.Lon, cps[0].Position.Lon
	for _, cp := range cps[1:] {
		minLat = math.Min(minLat, cp.Position.Lat)
		maxLat = math.Max(maxLat, cp.Position.Lat)
		minLon = math.Min(minLon, cp.Position.Lon)
		maxLon = math.Max(maxLon, cp.Position.Lon)
	}
	padM := geo.NMToMeters(corridorNM)
	padLat := padM / metersPerDegreeLat()
	midLat := (minLat + maxLat) / 2
	padLon := padM / metersPerDegreeLon(midLat)
	return BoundingBox{
		MinLat: minLat - padLat, MaxLat: maxLat + padLat,
		MinLon: minLon - padLon, MaxLon: maxLon + padLon,
	}
}

// gridInDisk returns a regular grid of points spaced spacingM apart, meters,
// clipped to the disk of radiusM around center.
func gridInDisk(center geo.LatLon, radiusM, spacingM float64) []geo.LatLon {
	if spacingM <= 0 || radiusM <= 0 {
		return nil
	}
	latStep := spacingM / metersPerDegreeLat()
	lonStep := spacingM / metersPerDegreeLon(center.Lat)
	n := int(math.Ceil(radiusM / spacingM))
	pts := make([]geo.LatLon, 0, (2*n+1)*(2*n+1))
	for i := -n; i <= n; i++ {
		for j := -n; j <= n; j++ {
			p := geo.LatLon{Lat: center.Lat + float64(i)*latStep, Lon: center.Lon + float64(j)*lonStep}
			if d, err := geo.GreatCircleDistance(center, p); err == nil && d <= radiusM {
				pts = append(pts, p)
			}
		}
	}
	return pts
}

// gridInCorridor returns a regular grid spaced spacingM apart along and
// across the rhumb-line segment from a to b, out to halfWidthM on each side.
func gridInCorridor(a, b geo.LatLon, halfWidthM, spacingM float64) []geo.LatLon {
	if spacingM <= 0 {
		return nil
	}
	distM, err := geo.GreatCircleDistance(a, b)
	if err != nil || distM == 0 {
		return nil
	}
	bearing, err := geo.InitialBearing(a, b)
	if err != nil {
		return nil
	}
	perp := geo.NormalizeHeading(bearing + 90)

	nAlong := int(math.Ceil(distM / spacingM))
	nAcross := int(math.Ceil(halfWidthM / spacingM))

	pts := make([]geo.LatLon, 0, (nAlong+1)*(2*nAcross+1))
	for i := 0; i <= nAlong; i++ {
		along := math.Min(float64(i)*spacingM, distM)
		center, err := geo.Destination(a, bearing, along)
		if err != nil {
			continue
		}
		for j := -nAcross; j <= nAcross; j++ {
			p, err := geo.Destination(center, perp, float64(j)*spacingM)
			if err != nil {
				continue
			}
			pts = append(pts, p)
		}
	}
	return pts
}

// gridInBBox returns a regular grid spaced spacingM apart covering bb.
func gridInBBox(bb BoundingBox, spacingM float64) []geo.LatLon {
	if spacingM <= 0 {
		return nil
	}
	midLat := (bb.MinLat + bb.MaxLat) / 2
	latStep := spacingM / metersPerDegreeLat()
	lonStep := spacingM / metersPerDegreeLon(midLat)
	var pts []geo.LatLon
	for lat := bb.MinLat; lat <= bb.MaxLat; lat += latStep {
		for lon := bb.MinLon; lon <= bb.MaxLon; lon += lonStep {
			pts = append(pts, geo.LatLon{Lat: lat, Lon: lon})
		}
	}
	return pts
}

// filterFar keeps only candidates farther than minDistM from every point in
// existing, used to subtract a finer tier's coverage from a coarser one.
func filterFar(candidates, existing []geo.LatLon, minDistM float64) []geo.LatLon {
	if len(existing) == 0 {
		return candidates
	}
	tree := geo.BuildKDTree(existing)
	out := make([]geo.LatLon, 0, len(candidates))
	for _, c := range candidates {
		nearest := tree.KNearest(c, 1)
		keep := true
		for _, idx := range nearest {
			if d, err := geo.GreatCircleDistance(c, existing[idx]); err == nil && d < minDistM {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, c)
		}
	}
	return out
}

// Build runs the adaptive mesh construction algorithm (§4.3): rasterize
// three density tiers over a bounding box derived from controlPoints, clip
// to navigable water via geom, snap or insert control points, wire K-nearest-
// neighbor edges with cross-tier bridges, and verify connectivity.
func Build(ctx context.Context, controlPoints []ControlPoint, params Params, geom GeometryPort) (*MeshedArea, error) {
	if len(controlPoints) < 2 {
		return nil, fmt.Errorf("%w: at least two control points required", ErrInvalidInput)
	}

	bb := boundingBox(controlPoints, params.CorridorNM)

	spacing1 := math.Sqrt(params.Area1)
	spacing2 := math.Sqrt(params.Area2)
	spacing3 := math.Sqrt(params.Area3)

	// Tier 1: within ring1_m of any control point. Each control point's disk
	// is independent, so it rasterizes across goroutines (§5's stripe
	// parallelism: here the "stripes" are per-control-point disks, with no
	// behavioral effect on the resulting vertex set).
	tier1Discs := make([][]geo.LatLon, len(controlPoints))
	if err := parallelOverStripes(ctx, len(controlPoints), func(i int) error {
		tier1Discs[i] = gridInDisk(controlPoints[i].Position, params.Ring1M, spacing1)
		return nil
	}); err != nil {
		return nil, err
	}
	var tier1Raw []geo.LatLon
	for _, d := range tier1Discs {
		tier1Raw = append(tier1Raw, d...)
	}
	tier1 := dedupe(tier1Raw, spacing1/2)

	// Tier 2: within ring2_m disks OR the corridor, minus tier 1.
	var tier2Raw []geo.LatLon
	for _, cp := range controlPoints {
		tier2Raw = append(tier2Raw, gridInDisk(cp.Position, params.Ring2M, spacing2)...)
	}
	corridorHalfWidthM := geo.NMToMeters(params.CorridorNM)
	for i := 1; i < len(controlPoints); i++ {
		tier2Raw = append(tier2Raw, gridInCorridor(controlPoints[i-1].Position, controlPoints[i].Position, corridorHalfWidthM, spacing2)...)
	}
	tier2Raw = dedupe(tier2Raw, spacing2/2)
	tier2 := filterFar(tier2Raw, tier1, spacing1/2)

	// Tier 3: the remainder of the bounding box, minus tiers 1 and 2.
	tier3Raw := dedupe(gridInBBox(bb, spacing3), spacing3/2)
	tier3 := filterFar(filterFar(tier3Raw, tier1, spacing1/2), tier2, spacing2/2)

	vertices := make([]MeshVertex, 0, len(tier1)+len(tier2)+len(tier3))
	appendTier := func(pts []geo.LatLon, tier Tier) error {
		for _, p := range pts {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("%w", ErrCancelled)
			}
			navigable, err := isNavigable(geom, p, params.ShorelineAvoidM)
			if err != nil {
				return err
			}
			vertices = append(vertices, MeshVertex{
				ID:          VertexId(len(vertices)),
				Position:    p,
				Tier:        tier,
				IsNavigable: navigable,
			})
		}
		return nil
	}
	if err := appendTier(tier1, Tier1); err != nil {
		return nil, err
	}
	if err := appendTier(tier2, Tier2); err != nil {
		return nil, err
	}
	if err := appendTier(tier3, Tier3); err != nil {
		return nil, err
	}

	controlVertices, err := snapOrInsertControlPoints(controlPoints, &vertices, params)
	if err != nil {
		return nil, err
	}

	edges, err := wireEdges(vertices, params, geom)
	if err != nil {
		return nil, err
	}

	area := &MeshedArea{
		FormatVersion:   FormatVersion,
		Vertices:        vertices,
		Edges:           edges,
		ControlVertices: controlVertices,
		BoundingBox:     bb,
		Params:          params,
	}

	if err := checkConnectivity(area); err != nil {
		return nil, err
	}

	return area, nil
}

func isNavigable(geom GeometryPort, p geo.LatLon, shorelineAvoidM float64) (bool, error) {
	d, err := geom.DistanceToLand(p)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrGeometryUnavailable, err)
	}
	return d >= shorelineAvoidM, nil
}

// dedupe collapses points closer than minDistM to each other, keeping the
// first occurrence in iteration order (ties broken by input order, which
// for tier generation corresponds to "lower id" once vertex ids are minted).
func dedupe(pts []geo.LatLon, minDistM float64) []geo.LatLon {
	if len(pts) == 0 {
		return nil
	}
	var kept []geo.LatLon
	for _, p := range pts {
		tooClose := false
		if len(kept) > 0 {
			tree := geo.BuildKDTree(kept)
			for _, idx := range tree.KNearest(p, 1) {
				if d, err := geo.GreatCircleDistance(p, kept[idx]); err == nil && d < minDistM {
					tooClose = true
					break
				}
			}
		}
		if !tooClose {
			kept = append(kept, p)
		}
	}
	return kept
}

// snapOrInsertControlPoints implements step 4 of the algorithm: snap each
// control point to its nearest navigable vertex within a per-tier tolerance,
// or insert it as an explicit new vertex connected to its K nearest
// navigable neighbors when no vertex is close enough.
func snapOrInsertControlPoints(cps []ControlPoint, vertices *[]MeshVertex, params Params) ([]VertexId, error) {
	result := make([]VertexId, len(cps))

	navigablePositions := func() ([]geo.LatLon, []int) {
		var pos []geo.LatLon
		var idx []int
		for i, v := range *vertices {
			if v.IsNavigable {
				pos = append(pos, v.Position)
				idx = append(idx, i)
			}
		}
		return pos, idx
	}

	tierTolerance := map[Tier]float64{
		Tier1: math.Sqrt(params.Area1),
		Tier2: math.Sqrt(params.Area2),
		Tier3: math.Sqrt(params.Area3),
	}

	for ci, cp := range cps {
		pos, idx := navigablePositions()
		if len(pos) == 0 {
			return nil, fmt.Errorf("%w: no navigable vertices in mesh", ErrControlPointUnreachable)
		}
		tree := geo.BuildKDTree(pos)
		nearest := tree.KNearest(cp.Position, 1)
		if len(nearest) == 0 {
			return nil, fmt.Errorf("%w: control point %d", ErrControlPointUnreachable, ci)
		}
		bestLocal := nearest[0]
		bestVertexIdx := idx[bestLocal]
		bestVertex := (*vertices)[bestVertexIdx]
		dist, err := geo.GreatCircleDistance(cp.Position, bestVertex.Position)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}

		tol := tierTolerance[bestVertex.Tier]
		switch {
		case dist <= tol:
			result[ci] = bestVertex.ID
		case dist <= hardCeilingM:
			result[ci] = bestVertex.ID
		default:
			if dist > hardCeilingM*10 {
				// No navigable vertex anywhere near the control point.
				return nil, fmt.Errorf("%w: control point %d is %.0fm from the nearest navigable vertex", ErrControlPointUnreachable, ci, dist)
			}
			// Insert as an explicit tier-1 vertex and wire to K nearest
			// navigable neighbors.
			newID := VertexId(len(*vertices))
			*vertices = append(*vertices, MeshVertex{
				ID:          newID,
				Position:    cp.Position,
				Tier:        Tier1,
				IsNavigable: true,
			})
			result[ci] = newID
			// Wiring to K nearest navigable neighbors happens uniformly in
			// wireEdges, which uses the general per-tier KNN table; an
			// inserted vertex is tagged Tier1 so it gets the fine-tier K.
		}
	}
	return result, nil
}

// wireEdges connects each navigable vertex to its K nearest navigable
// neighbors (K keyed by the vertex's own tier) plus one bridge to each
// adjacent tier, discarding any edge whose midpoint approaches land closer
// than ShorelineAvoidM.
func wireEdges(vertices []MeshVertex, params Params, geom GeometryPort) ([][]MeshEdge, error) {
	edges := make([][]MeshEdge, len(vertices))

	var navPos []geo.LatLon
	var navIdx []int
	byTier := map[Tier][]int{}
	for i, v := range vertices {
		if !v.IsNavigable {
			continue
		}
		navPos = append(navPos, v.Position)
		navIdx = append(navIdx, i)
		byTier[v.Tier] = append(byTier[v.Tier], i)
	}
	if len(navPos) == 0 {
		return edges, nil
	}
	tree := geo.BuildKDTree(navPos)

	reachByTier := map[Tier]float64{
		Tier1: math.Sqrt(params.Area2),
		Tier2: math.Sqrt(params.Area3),
		Tier3: math.Sqrt(params.Area3) * 2,
	}
	adjacent := map[Tier][]Tier{
		Tier1: {Tier2},
		Tier2: {Tier1, Tier3},
		Tier3: {Tier2},
	}

	addEdge := func(from, to int) error {
		for _, e := range edges[from] {
			if e.To == VertexId(to) {
				return nil
			}
		}
		a, b := vertices[from].Position, vertices[to].Position
		mid, err := geo.Midpoint(a, b)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		d, err := geom.DistanceToLand(mid)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrGeometryUnavailable, err)
		}
		if d < params.ShorelineAvoidM {
			return nil
		}
		distM, err := geo.GreatCircleDistance(a, b)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		bearing, err := geo.InitialBearing(a, b)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		reverse, err := geo.InitialBearing(b, a)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		edges[from] = append(edges[from], MeshEdge{From: VertexId(from), To: VertexId(to), DistanceM: distM, Bearing: bearing})
		edges[to] = append(edges[to], MeshEdge{From: VertexId(to), To: VertexId(from), DistanceM: distM, Bearing: reverse})
		return nil
	}

	for _, vi := range navIdx {
		v := vertices[vi]
		k := knnByTier[v.Tier]
		neighborLocals := tree.KNearest(v.Position, k+1) // +1: query point itself is in the tree
		for _, local := range neighborLocals {
			ni := navIdx[local]
			if ni == vi {
				continue
			}
			if err := addEdge(vi, ni); err != nil {
				return nil, err
			}
		}

		for _, adjTier := range adjacent[v.Tier] {
			candidates := byTier[adjTier]
			if len(candidates) == 0 {
				continue
			}
			var candPos []geo.LatLon
			for _, ci := range candidates {
				candPos = append(candPos, vertices[ci].Position)
			}
			ctree := geo.BuildKDTree(candPos)
			bridgeLocal := ctree.KNearest(v.Position, 1)
			for _, bl := range bridgeLocal {
				bi := candidates[bl]
				d, err := geo.GreatCircleDistance(v.Position, vertices[bi].Position)
				if err != nil {
					continue
				}
				if d <= reachByTier[v.Tier] {
					if err := addEdge(vi, bi); err != nil {
						return nil, err
					}
				}
			}
		}
	}

	return edges, nil
}

// checkConnectivity runs a BFS from the Start control vertex and fails with
// ErrDisconnectedControlPoints if any other control vertex is unreached.
func checkConnectivity(area *MeshedArea) error {
	if len(area.ControlVertices) == 0 {
		return nil
	}
	start := area.ControlVertices[0]
	visited := make(map[VertexId]bool)
	queue := []VertexId{start}
	visited[start] = true
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range area.Edges[cur] {
			if !visited[e.To] {
				visited[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}
	for i, cv := range area.ControlVertices {
		if !visited[cv] {
			return fmt.Errorf("%w: control point %d (vertex %d) unreached from start", ErrDisconnectedControlPoints, i, cv)
		}
	}
	return nil
}

// parallelOverStripes is the stripe-parallel hook for tier rasterization
// (§5: mesh building MAY parallelize by stripe with no behavioral
// consequence). Callers that don't need it can pass a no-op fn; it exists
// so latitude-stripe work can be split across goroutines via errgroup, the
// same pattern used for parallel candidate-departure searches in the router.
func parallelOverStripes(ctx context.Context, n int, fn func(i int) error) error {
	if n == 0 {
		return nil
	}
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(i)
		})
	}
	return g.Wait()
}
