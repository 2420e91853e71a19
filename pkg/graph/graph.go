package graph

import "sort"

// CHGraph holds the output of contraction hierarchies preprocessing.
type CHGraph struct {
	NumNodes uint32
	NodeLat  []float64
	NodeLon  []float64
	Rank     []uint32

	// Forward upward graph (edges where rank[source] < rank[target]).
	FwdFirstOut []uint32
	FwdHead     []uint32
	FwdWeight   []uint32
	FwdMiddle   []int32

	// Backward upward graph (reversed edges where rank[source] < rank[target]).
	BwdFirstOut []uint32
	BwdHead     []uint32
	BwdWeight   []uint32
	BwdMiddle   []int32

	// Original graph edges, carried through for re-snapping and for rebuilding
	// a plain Graph view (cmd/server reconstructs a Graph from these fields).
	OrigFirstOut []uint32
	OrigHead     []uint32
	OrigWeight   []uint32

	// Original edge geometry (carried through from the base graph).
	GeoFirstOut []uint32
	GeoShapeLat []float64
	GeoShapeLon []float64
}

// Graph represents a directed graph in CSR (Compressed Sparse Row) format.
type Graph struct {
	NumNodes uint32
	NumEdges uint32
	FirstOut []uint32  // len: NumNodes + 1; FirstOut[i]..FirstOut[i+1] are edges from node i
	Head     []uint32  // len: NumEdges; target node for each edge
	Weight   []uint32  // len: NumEdges; distance in millimeters
	NodeLat  []float64 // len: NumNodes
	NodeLon  []float64 // len: NumNodes

	// Backward adjacency: the exact inverse view of the forward CSR, built by
	// Clean(). Edge i in BackHead/BackWeight is the reverse of some forward
	// edge; BackFirstOut[v]..BackFirstOut[v+1] are edges arriving at v.
	BackFirstOut []uint32
	BackHead     []uint32
	BackWeight   []uint32

	// Edge geometry: intermediate shape nodes for rendering.
	// GeoFirstOut[i]..GeoFirstOut[i+1] indexes into GeoShapeLat/Lon for edge i.
	GeoFirstOut []uint32  // len: NumEdges + 1
	GeoShapeLat []float64 // flattened intermediate lat coords
	GeoShapeLon []float64 // flattened intermediate lon coords
}

// EdgesFrom returns the range of edge indices for edges originating from node u.
func (g *Graph) EdgesFrom(u uint32) (start, end uint32) {
	return g.FirstOut[u], g.FirstOut[u+1]
}

// EdgesTo returns the range of edge indices, into BackHead/BackWeight, for
// edges arriving at node v. Requires Clean() to have been called.
func (g *Graph) EdgesTo(v uint32) (start, end uint32) {
	return g.BackFirstOut[v], g.BackFirstOut[v+1]
}

// Clean returns a new Graph with self-loops removed and parallel edges
// collapsed to the minimum-cost one, and builds the backward CSR alongside
// the forward one. It never mutates g.
func (g *Graph) Clean() *Graph {
	type edge struct {
		from, to uint32
		weight   uint32
	}

	dedup := make(map[uint64]int, g.NumEdges)
	var edges []edge

	for u := uint32(0); u < g.NumNodes; u++ {
		start, end := g.EdgesFrom(u)
		for e := start; e < end; e++ {
			v := g.Head[e]
			if v == u {
				continue // drop self-loop
			}
			w := g.Weight[e]
			key := uint64(u)<<32 | uint64(v)
			if idx, ok := dedup[key]; ok {
				if w < edges[idx].weight {
					edges[idx].weight = w
				}
				continue
			}
			dedup[key] = len(edges)
			edges = append(edges, edge{from: u, to: v, weight: w})
		}
	}

	sort.Slice(edges, func(i, j int) bool {
		if edges[i].from != edges[j].from {
			return edges[i].from < edges[j].from
		}
		return edges[i].to < edges[j].to
	})

	n := g.NumNodes
	numEdges := uint32(len(edges))

	firstOut := make([]uint32, n+1)
	head := make([]uint32, numEdges)
	weight := make([]uint32, numEdges)
	for i, e := range edges {
		firstOut[e.from+1]++
		head[i] = e.to
		weight[i] = e.weight
	}
	for i := uint32(1); i <= n; i++ {
		firstOut[i] += firstOut[i-1]
	}

	backEdges := make([]edge, len(edges))
	copy(backEdges, edges)
	sort.Slice(backEdges, func(i, j int) bool {
		if backEdges[i].to != backEdges[j].to {
			return backEdges[i].to < backEdges[j].to
		}
		return backEdges[i].from < backEdges[j].from
	})

	backFirstOut := make([]uint32, n+1)
	backHead := make([]uint32, numEdges)
	backWeight := make([]uint32, numEdges)
	for i, e := range backEdges {
		backFirstOut[e.to+1]++
		backHead[i] = e.from
		backWeight[i] = e.weight
	}
	for i := uint32(1); i <= n; i++ {
		backFirstOut[i] += backFirstOut[i-1]
	}

	return &Graph{
		NumNodes:     n,
		NumEdges:     numEdges,
		FirstOut:     firstOut,
		Head:         head,
		Weight:       weight,
		NodeLat:      g.NodeLat,
		NodeLon:      g.NodeLon,
		BackFirstOut: backFirstOut,
		BackHead:     backHead,
		BackWeight:   backWeight,
		GeoFirstOut:  g.GeoFirstOut,
		GeoShapeLat:  g.GeoShapeLat,
		GeoShapeLon:  g.GeoShapeLon,
	}
}
