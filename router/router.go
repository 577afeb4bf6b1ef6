package router

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/sailroute/sailroute/geo"
	"github.com/sailroute/sailroute/mesh"
	"github.com/sailroute/sailroute/polar"
	"github.com/sailroute/sailroute/weather"
	"golang.org/x/sync/errgroup"
)

// criticalWaveDefaultM is used when a caller does not override CriticalWaveM
// in Options; §9 requires this sea-state de-rating parameter to be a named,
// exposed value rather than a magic number.
const criticalWaveDefaultM = 4.0

// cancelCheckInterval is how often, in node expansions, the search checks
// ctx for cancellation (§5: "every 1024 expansions").
const cancelCheckInterval = 1024

// Options bundles the per-request knobs CalculateRoute needs beyond the
// WeatheredMesh and TimeWindow.
type Options struct {
	Polar         *polar.Polar
	ControlVertices []mesh.VertexId
	CriticalWaveM float64 // sea-state de-rating parameter; 0 means use the default
}

// CalculateRoute runs C5: for each candidate departure time in window, a
// chained time-dependent Dijkstra search through opts.ControlVertices, and
// returns the resulting RouteResult with exactly one variant flagged best.
func CalculateRoute(ctx context.Context, wm *weather.WeatheredMesh, window TimeWindow, opts Options) (*RouteResult, error) {
	if len(opts.ControlVertices) < 2 {
		return nil, fmt.Errorf("%w: at least two control vertices required", ErrInvalidInput)
	}
	if window.Start.After(window.End) {
		return nil, fmt.Errorf("%w: start_time after end_time", ErrInvalidInput)
	}
	if window.NumChecks < 1 {
		window.NumChecks = 1
	}
	criticalWave := opts.CriticalWaveM
	if criticalWave <= 0 {
		criticalWave = criticalWaveDefaultM
	}

	departures := candidateDepartures(window)

	variants := make([]*RouteVariant, len(departures))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelism())
	for i, dep := range departures {
		i, dep := i, dep
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return fmt.Errorf("%w", ErrCancelled)
			}
			v, err := runCandidate(gctx, wm, opts.Polar, criticalWave, opts.ControlVertices, dep)
			if err != nil {
				if errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) {
					return err
				}
				// Per-candidate failures (HorizonExceeded, NoNavigablePath)
				// are absorbed: this candidate simply contributes no variant.
				variants[i] = nil
				return nil
			}
			variants[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
	}

	var successful []RouteVariant
	for _, v := range variants {
		if v != nil {
			successful = append(successful, *v)
		}
	}
	if len(successful) == 0 {
		return nil, ErrAllCandidatesInfeasible
	}

	bestIdx := 0
	for i := range successful {
		if successful[i].TotalTimeH < successful[bestIdx].TotalTimeH {
			bestIdx = i
		}
	}
	for i := range successful {
		successful[i].IsBest = i == bestIdx
	}

	overall := successful[bestIdx].DifficultyLevel

	return &RouteResult{
		VesselSummary: VesselSummary{
			MaxWindKt:     opts.Polar.MaxWind,
			TackDurationS: opts.Polar.TackDurationS,
			JibeDurationS: opts.Polar.JibeDurationS,
		},
		Variants:          successful,
		BestVariantIndex:  bestIdx,
		OverallDifficulty: overall,
	}, nil
}

func maxParallelism() int {
	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}
	return n
}

// candidateDepartures places window.NumChecks instants uniformly across
// [start, end] inclusive of both endpoints (a single check uses start).
func candidateDepartures(window TimeWindow) []time.Time {
	if window.NumChecks <= 1 {
		return []time.Time{window.Start}
	}
	span := window.End.Sub(window.Start)
	step := span / time.Duration(window.NumChecks-1)
	out := make([]time.Time, window.NumChecks)
	for i := 0; i < window.NumChecks; i++ {
		out[i] = window.Start.Add(time.Duration(i) * step)
	}
	out[window.NumChecks-1] = window.End
	return out
}

// runCandidate runs the chained per-leg Dijkstra search for one departure
// time and reconstructs the resulting RouteVariant.
func runCandidate(ctx context.Context, wm *weather.WeatheredMesh, p *polar.Polar, criticalWave float64, controlVertices []mesh.VertexId, departure time.Time) (*RouteVariant, error) {
	var allEdges []mesh.MeshEdge
	legArrival := departure

	for i := 1; i < len(controlVertices); i++ {
		from, to := controlVertices[i-1], controlVertices[i]
		edges, arrival, err := shortestPath(ctx, wm, p, criticalWave, from, to, legArrival)
		if err != nil {
			return nil, err
		}
		allEdges = append(allEdges, edges...)
		legArrival = arrival
	}

	segments, err := reconstructSegments(wm, p, criticalWave, allEdges, departure)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, ErrNoNavigablePath
	}

	return buildVariant(departure, segments), nil
}

type vertexState struct {
	arrival        time.Time
	hasArrival     bool
	predecessor    mesh.VertexId
	hasPredecessor bool
	incomingTWA    float64
	hasIncoming    bool
	maneuvers      int
}

type pqItem struct {
	vertex  mesh.VertexId
	arrival time.Time
}

type priorityQueue []pqItem

func (pq priorityQueue) Len() int { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool {
	return pq[i].arrival.Before(pq[j].arrival)
}
func (pq priorityQueue) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x any)   { *pq = append(*pq, x.(pqItem)) }
func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

// shortestPath runs a time-dependent Dijkstra variant from `from` to `to`,
// keyed by arrival time, over wm's navigable subgraph. Edge cost is
// evaluated on demand via edgeCost given the arrival time at the edge's
// tail (the FIFO-consistency assumption accepted by §4.5/§9).
func shortestPath(ctx context.Context, wm *weather.WeatheredMesh, p *polar.Polar, criticalWave float64, from, to mesh.VertexId, departure time.Time) ([]mesh.MeshEdge, time.Time, error) {
	state := map[mesh.VertexId]*vertexState{
		from: {arrival: departure, hasArrival: true},
	}
	visited := map[mesh.VertexId]bool{}

	pq := &priorityQueue{{vertex: from, arrival: departure}}
	heap.Init(pq)

	expansions := 0
	for pq.Len() > 0 {
		expansions++
		if expansions%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, time.Time{}, fmt.Errorf("%w", ErrCancelled)
			}
		}

		cur := heap.Pop(pq).(pqItem)
		if visited[cur.vertex] {
			continue
		}
		curState := state[cur.vertex]
		if curState == nil || !curState.arrival.Equal(cur.arrival) {
			continue
		}
		visited[cur.vertex] = true

		if cur.vertex == to {
			break
		}

		for _, e := range wm.Area.Edges[cur.vertex] {
			if !wm.Area.Vertices[e.To].IsNavigable || visited[e.To] {
				continue
			}

			costSeconds, edgeTWA, err := edgeCost(wm, p, criticalWave, e, curState.arrival)
			if err != nil {
				return nil, time.Time{}, err
			}
			if math.IsInf(costSeconds, 1) {
				continue
			}

			maneuverPenalty := 0.0
			newManeuvers := curState.maneuvers
			if curState.hasIncoming && maneuverCrossed(curState.incomingTWA, edgeTWA) {
				maneuverPenalty = maneuverDuration(p, curState.incomingTWA, edgeTWA)
				newManeuvers++
			}

			newArrival := curState.arrival.Add(time.Duration(costSeconds * float64(time.Second))).Add(time.Duration(maneuverPenalty * float64(time.Second)))

			existing := state[e.To]
			better := existing == nil || !existing.hasArrival ||
				newArrival.Before(existing.arrival) ||
				(newArrival.Equal(existing.arrival) &&
					(newManeuvers < existing.maneuvers ||
						(newManeuvers == existing.maneuvers && e.From < existing.predecessor)))

			if better {
				state[e.To] = &vertexState{
					arrival:        newArrival,
					hasArrival:     true,
					predecessor:    e.From,
					hasPredecessor: true,
					incomingTWA:    edgeTWA,
					hasIncoming:    true,
					maneuvers:      newManeuvers,
				}
				heap.Push(pq, pqItem{vertex: e.To, arrival: newArrival})
			}
		}
	}

	finalState, ok := state[to]
	if !ok || !finalState.hasArrival || !visited[to] {
		return nil, time.Time{}, ErrNoNavigablePath
	}

	// Walk predecessors back to `from`.
	var path []mesh.VertexId
	cur := to
	for {
		path = append([]mesh.VertexId{cur}, path...)
		if cur == from {
			break
		}
		s := state[cur]
		if s == nil || !s.hasPredecessor {
			return nil, time.Time{}, ErrNoNavigablePath
		}
		cur = s.predecessor
	}

	edges := make([]mesh.MeshEdge, 0, len(path)-1)
	for i := 1; i < len(path); i++ {
		from, to := path[i-1], path[i]
		found := false
		for _, e := range wm.Area.Edges[from] {
			if e.To == to {
				edges = append(edges, e)
				found = true
				break
			}
		}
		if !found {
			return nil, time.Time{}, ErrNoNavigablePath
		}
	}

	return edges, finalState.arrival, nil
}

// maneuverCrossed reports whether entering a new edge with TWA edgeTWA,
// right after arriving via an edge with TWA incomingTWA, counts as a
// maneuver: a sign change with at least one side's |TWA| >= 5 degrees
// (§9's resolution of the "both near zero" ambiguity).
func maneuverCrossed(incomingTWA, edgeTWA float64) bool {
	if sign(incomingTWA) == sign(edgeTWA) {
		return false
	}
	return math.Abs(incomingTWA) >= 5 || math.Abs(edgeTWA) >= 5
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// maneuverDuration classifies a TWA-sign-crossing as a tack (crossing near
// TWA=0) or a jibe (crossing near TWA=180), per §4.5: the smaller |TWA|
// around the change decides — under 90 degrees is a tack.
func maneuverDuration(p *polar.Polar, incomingTWA, edgeTWA float64) float64 {
	smaller := math.Min(math.Abs(incomingTWA), math.Abs(edgeTWA))
	if smaller < 90 {
		return p.TackDurationS
	}
	return p.JibeDurationS
}

// edgeCost computes the time-dependent edge cost (§4.5): sample weather at
// the edge midpoint at the arrival time at its tail, derive TWA from the
// wind-from direction and the edge's bearing, look up boat speed, de-rate
// for sea state, and convert distance/speed to seconds. Returns +Inf cost
// (not an error) for a storm-reefed or in-irons edge; returns an error only
// when the weather sample itself fails (horizon exceeded or unavailable).
func edgeCost(wm *weather.WeatheredMesh, p *polar.Polar, criticalWaveM float64, e mesh.MeshEdge, tArrival time.Time) (seconds, twa float64, err error) {
	fromPos := wm.Area.Vertices[e.From].Position
	toPos := wm.Area.Vertices[e.To].Position
	mid, err := geo.Midpoint(fromPos, toPos)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	cond, err := wm.Sample(mid, tArrival)
	if err != nil {
		return 0, 0, err
	}

	if cond.WindSpeedKt > p.MaxWind {
		return math.Inf(1), 0, nil
	}

	// twa = normalize_signed(wind_from - heading), stated once here per §9
	// to avoid scattered sign errors: TWA=0 is wind dead ahead (wind_from
	// equals heading), TWA=180 is dead astern.
	twa = geo.NormalizeSigned(cond.WindDirDegFrom - e.Bearing)

	v := p.BoatSpeed(twa, cond.WindSpeedKt)
	if v <= 0 {
		return math.Inf(1), twa, nil
	}

	derate := math.Min(0.5, cond.WaveHeightM/criticalWaveM)
	vEff := v * (1 - derate)
	if vEff <= 0 {
		return math.Inf(1), twa, nil
	}

	distNM := geo.MetersToNM(e.DistanceM)
	hours := distNM / vEff
	return hours * 3600, twa, nil
}

// reconstructSegments re-samples weather at each edge's midpoint and
// start-time (never reusing values cached during the search, per §4.5) to
// emit the final RouteSegments with their polar outputs.
func reconstructSegments(wm *weather.WeatheredMesh, p *polar.Polar, criticalWaveM float64, edges []mesh.MeshEdge, departure time.Time) ([]RouteSegment, error) {
	segments := make([]RouteSegment, 0, len(edges))
	t := departure
	prevTWA := 0.0
	hasPrev := false
	for _, e := range edges {
		seconds, twa, err := edgeCost(wm, p, criticalWaveM, e, t)
		if err != nil {
			return nil, err
		}
		if math.IsInf(seconds, 1) {
			// An edge that was traversable during the search but is not at
			// reconstruction time indicates stale weather; treat as no path.
			return nil, ErrNoNavigablePath
		}

		fromPos := wm.Area.Vertices[e.From].Position
		toPos := wm.Area.Vertices[e.To].Position
		mid, _ := geo.Midpoint(fromPos, toPos)
		cond, err := wm.Sample(mid, t)
		if err != nil {
			return nil, err
		}

		boatSpeed := p.BoatSpeed(twa, cond.WindSpeedKt)
		if boatSpeed <= 0 {
			return nil, ErrNoNavigablePath
		}

		maneuverS := 0.0
		if hasPrev && maneuverCrossed(prevTWA, twa) {
			maneuverS = maneuverDuration(p, prevTWA, twa)
		}
		prevTWA = twa
		hasPrev = true

		distNM := geo.MetersToNM(e.DistanceM)
		seg := RouteSegment{
			FromPos:        [2]float64{fromPos.Lat, fromPos.Lon},
			ToPos:          [2]float64{toPos.Lat, toPos.Lon},
			Bearing:        e.Bearing,
			DistanceNM:     distNM,
			TimeS:          seconds,
			ManeuverS:      maneuverS,
			BoatSpeedKt:    boatSpeed,
			WindSpeedKt:    cond.WindSpeedKt,
			WindDirDegFrom: cond.WindDirDegFrom,
			TWA:            twa,
			PointOfSail:    polar.Classify(math.Abs(twa)),
			WaveHeightM:    cond.WaveHeightM,
		}
		segments = append(segments, seg)
		// Advance the clock by sailing time plus any maneuver charged
		// transitioning onto this edge, matching shortestPath's arrival
		// accumulation so total_time stays consistent with the search.
		t = t.Add(time.Duration(seconds * float64(time.Second))).Add(time.Duration(maneuverS * float64(time.Second)))
	}
	return segments, nil
}

// buildVariant computes the aggregates, tack/jibe counts and difficulty
// score for a reconstructed segment sequence.
func buildVariant(departure time.Time, segments []RouteSegment) *RouteVariant {
	var totalDistance, totalTime, windWeighted, waveWeighted float64
	var closeHauledOrIrons int
	tacks, jibes := 0, 0

	for i, s := range segments {
		totalDistance += s.DistanceNM
		totalTime += s.TimeS + s.ManeuverS
		windWeighted += s.WindSpeedKt * s.DistanceNM
		waveWeighted += s.WaveHeightM * s.DistanceNM
		if s.PointOfSail == polar.CloseHauled || s.PointOfSail == polar.InIrons {
			closeHauledOrIrons++
		}
		if i > 0 && s.ManeuverS > 0 {
			prev := segments[i-1]
			smaller := math.Min(math.Abs(prev.TWA), math.Abs(s.TWA))
			if smaller < 90 {
				tacks++
			} else {
				jibes++
			}
		}
	}

	totalTimeH := totalTime / 3600
	avgSpeed := 0.0
	avgWind := 0.0
	avgWave := 0.0
	if totalTimeH > 0 {
		avgSpeed = totalDistance / totalTimeH
	}
	if totalDistance > 0 {
		avgWind = windWeighted / totalDistance
		avgWave = waveWeighted / totalDistance
	}

	maneuversPerNM := 0.0
	if totalDistance > 0 {
		maneuversPerNM = float64(tacks+jibes) / totalDistance
	}
	closeHauledFraction := 0.0
	if len(segments) > 0 {
		closeHauledFraction = float64(closeHauledOrIrons) / float64(len(segments))
	}

	score := difficultyScore(avgWind, avgWave, maneuversPerNM, closeHauledFraction)

	return &RouteVariant{
		DepartureTime:   departure,
		Segments:        segments,
		TotalTimeH:      totalTimeH,
		TotalDistanceNM: totalDistance,
		AvgSpeedKt:      avgSpeed,
		AvgWindKt:       avgWind,
		AvgWaveM:        avgWave,
		Tacks:           tacks,
		Jibes:           jibes,
		DifficultyScore: score,
		DifficultyLevel: difficultyLevel(score),
	}
}

// difficultyScore combines the four inputs into [0, 100] with fixed
// weights. The normalization constants (wind 30kt, wave 5m, 1 maneuver/NM)
// are calibration choices, not spec-mandated values; see the design notes
// for the rationale.
func difficultyScore(avgWindKt, avgWaveM, maneuversPerNM, closeHauledFraction float64) float64 {
	const (
		windWeight       = 0.35
		waveWeight       = 0.30
		maneuverWeight   = 0.20
		pointOfSailWeight = 0.15

		windNormKt     = 30.0
		waveNormM      = 5.0
		maneuverNormNM = 1.0
	)

	windTerm := clamp01(avgWindKt/windNormKt) * 100
	waveTerm := clamp01(avgWaveM/waveNormM) * 100
	maneuverTerm := clamp01(maneuversPerNM/maneuverNormNM) * 100
	pointOfSailTerm := clamp01(closeHauledFraction) * 100

	score := windWeight*windTerm + waveWeight*waveTerm + maneuverWeight*maneuverTerm + pointOfSailWeight*pointOfSailTerm
	return clamp01(score/100) * 100
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
