package geo

import "slices"

// KDNode is a node in a 2D KD-tree over LatLon points, storing the original
// index of Location within the slice passed to BuildKDTree so callers can
// recover whatever per-point data they keyed by that index.
type KDNode struct {
	Location LatLon
	Index    int
	Left     *KDNode
	Right    *KDNode
}

// BuildKDTree constructs a balanced KD-tree from points, alternating splits
// by longitude (even depth) and latitude (odd depth).
func BuildKDTree(points []LatLon) *KDNode {
	idx := make([]int, len(points))
	for i := range idx {
		idx[i] = i
	}
	return buildKDTreeRecursive(points, idx, 0)
}

func axisOf(p LatLon, axis int) float64 {
	if axis == 0 {
		return p.Lon
	}
	return p.Lat
}

func buildKDTreeRecursive(points []LatLon, idx []int, depth int) *KDNode {
	if len(idx) == 0 {
		return nil
	}
	if len(idx) == 1 {
		return &KDNode{Location: points[idx[0]], Index: idx[0]}
	}

	axis := depth % 2
	slices.SortFunc(idx, func(a, b int) int {
		va, vb := axisOf(points[a], axis), axisOf(points[b], axis)
		switch {
		case va < vb:
			return -1
		case va > vb:
			return 1
		default:
			return 0
		}
	})

	median := len(idx) / 2
	return &KDNode{
		Location: points[idx[median]],
		Index:    idx[median],
		Left:     buildKDTreeRecursive(points, idx[:median], depth+1),
		Right:    buildKDTreeRecursive(points, idx[median+1:], depth+1),
	}
}

type kdCandidate struct {
	index  int
	distSq float64
}

// KNearest returns the indices (as passed to BuildKDTree) of the points
// nearest to p, nearest first, truncated to at most k entries but extended
// to include every candidate exactly tied with the k-th closest distance —
// the tie-break rule the mesh builder's K-nearest-neighbor wiring requires.
// Distance is planar in (lon, lat) degrees, adequate for ranking candidates
// within a single mesh's regional extent; callers needing true distances
// should recompute them with GreatCircleDistance.
func (root *KDNode) KNearest(p LatLon, k int) []int {
	if root == nil || k <= 0 {
		return nil
	}

	var candidates []kdCandidate
	var visit func(n *KDNode, depth int)
	visit = func(n *KDNode, depth int) {
		if n == nil {
			return
		}
		dx := n.Location.Lon - p.Lon
		dy := n.Location.Lat - p.Lat
		candidates = append(candidates, kdCandidate{index: n.Index, distSq: dx*dx + dy*dy})

		axis := depth % 2
		diff := axisOf(p, axis) - axisOf(n.Location, axis)
		near, far := n.Left, n.Right
		if diff > 0 {
			near, far = n.Right, n.Left
		}
		visit(near, depth+1)

		if len(candidates) < k {
			visit(far, depth+1)
			return
		}
		worst := kthSmallest(candidates, k)
		if diff*diff <= worst {
			visit(far, depth+1)
		}
	}
	visit(root, 0)

	slices.SortFunc(candidates, func(a, b kdCandidate) int {
		switch {
		case a.distSq < b.distSq:
			return -1
		case a.distSq > b.distSq:
			return 1
		default:
			return 0
		}
	})

	if len(candidates) <= k {
		out := make([]int, len(candidates))
		for i, c := range candidates {
			out[i] = c.index
		}
		return out
	}

	cut := k
	kthDist := candidates[k-1].distSq
	for cut < len(candidates) && candidates[cut].distSq == kthDist {
		cut++
	}
	out := make([]int, cut)
	for i := 0; i < cut; i++ {
		out[i] = candidates[i].index
	}
	return out
}

// kthSmallest returns the k-th smallest distSq among candidates (1-indexed:
// k=1 is the minimum) without mutating the caller's slice ordering needs.
func kthSmallest(candidates []kdCandidate, k int) float64 {
	tmp := make([]float64, len(candidates))
	for i, c := range candidates {
		tmp[i] = c.distSq
	}
	slices.Sort(tmp)
	if k > len(tmp) {
		k = len(tmp)
	}
	return tmp[k-1]
}

// SelectDistributedPoints selects up to n well-distributed points from pts
// via KD-tree partitioning, handling the antimeridian by shifting longitudes
// when the point set spans more than 180 degrees of longitude so the tree
// does not split across the date line. Returns indices into pts.
func SelectDistributedPoints(pts []LatLon, n int) []int {
	if n <= 0 || len(pts) == 0 {
		return nil
	}
	if n >= len(pts) {
		out := make([]int, len(pts))
		for i := range out {
			out[i] = i
		}
		return out
	}

	minLon, maxLon := 180.0, -180.0
	for _, p := range pts {
		if p.Lon < minLon {
			minLon = p.Lon
		}
		if p.Lon > maxLon {
			maxLon = p.Lon
		}
	}

	lonShift := 0.0
	if maxLon-minLon > 180 {
		lonShift = 180
	}

	shifted := make([]LatLon, len(pts))
	for i, p := range pts {
		lon := p.Lon + lonShift
		if lon > 180 {
			lon -= 360
		} else if lon < -180 {
			lon += 360
		}
		shifted[i] = LatLon{Lat: p.Lat, Lon: lon}
	}

	tree := BuildKDTree(shifted)

	selected := make(map[int]bool, n)
	for i := 0; len(selected) < n && i < n*3; i++ {
		idx := tree.selectByIndex(i)
		selected[idx] = true
	}

	out := make([]int, 0, len(selected))
	for idx := range selected {
		out = append(out, idx)
	}
	slices.Sort(out)
	return out
}

// selectByIndex walks the tree using the bits of index to navigate: bit 0
// decides left (0) or right (1) at each level, giving a well-distributed
// traversal order (0 -> root, 1 -> right, 2 -> left-right, 3 -> right-right, ...).
func (root *KDNode) selectByIndex(index int) int {
	node := root
	for index != 0 {
		if index&1 == 0 {
			if node.Left != nil {
				node = node.Left
			}
		} else {
			if node.Right != nil {
				node = node.Right
			}
		}
		index >>= 1

		if node.Left == nil && node.Right == nil {
			break
		}
	}
	return node.Index
}
