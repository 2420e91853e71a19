package routing

import (
	"context"
	"errors"
	"math"
	"sync"

	"shiproute/pkg/dijkstra"
	"shiproute/pkg/graph"
	"shiproute/pkg/hl"
)

// chFwdAdj/chBwdAdj adapt a graph.CHGraph's upward CSR views to
// dijkstra.Adjacency, the same adapter shape pkg/hl.Build uses over the same
// CSR pair.
type chFwdAdj struct{ g *graph.CHGraph }

func (a chFwdAdj) NumNodes() uint32               { return a.g.NumNodes }
func (a chFwdAdj) Edges(v uint32) (uint32, uint32) { return a.g.FwdFirstOut[v], a.g.FwdFirstOut[v+1] }
func (a chFwdAdj) Head(e uint32) uint32            { return a.g.FwdHead[e] }
func (a chFwdAdj) Weight(e uint32) uint32          { return a.g.FwdWeight[e] }

type chBwdAdj struct{ g *graph.CHGraph }

func (a chBwdAdj) NumNodes() uint32               { return a.g.NumNodes }
func (a chBwdAdj) Edges(v uint32) (uint32, uint32) { return a.g.BwdFirstOut[v], a.g.BwdFirstOut[v+1] }
func (a chBwdAdj) Head(e uint32) uint32            { return a.g.BwdHead[e] }
func (a chBwdAdj) Weight(e uint32) uint32          { return a.g.BwdWeight[e] }

// ErrNoRoute is returned when no route exists between the two points.
var ErrNoRoute = errors.New("no route found")

// LatLng represents a geographic coordinate.
type LatLng struct {
	Lat float64
	Lng float64
}

// Segment represents a road segment in the route result.
type Segment struct {
	DistanceMeters float64
	Geometry       []LatLng
}

// RouteResult is the output of a route query.
type RouteResult struct {
	TotalDistanceMeters float64
	Segments            []Segment
}

// Router is the interface for route queries.
type Router interface {
	Route(ctx context.Context, start, end LatLng) (*RouteResult, error)
	// RouteHL answers the same query via hub-label lookup plus a two-leg CH
	// unpack through the meeting hub. Callers should check HasHubGraph first.
	RouteHL(ctx context.Context, start, end LatLng) (*RouteResult, error)
	// HasHubGraph reports whether hub labels were loaded, making RouteHL usable.
	HasHubGraph() bool
}

// Engine implements Router using a CH graph, optionally backed by a hub
// label index for the fast-cost query path.
type Engine struct {
	chg       *graph.CHGraph
	origGraph *graph.Graph // for geometry and snap
	snapper   *Snapper
	fwdAdj    chFwdAdj
	bwdAdj    chBwdAdj
	biPool    sync.Pool
	hub       *hl.HubGraph // nil if hub labels were not loaded
}

// NewEngine creates a routing engine from a CH graph and the original graph.
func NewEngine(chg *graph.CHGraph, origGraph *graph.Graph) *Engine {
	e := &Engine{
		chg:       chg,
		origGraph: origGraph,
		snapper:   NewSnapper(origGraph),
		fwdAdj:    chFwdAdj{chg},
		bwdAdj:    chBwdAdj{chg},
	}
	e.biPool.New = func() any {
		return dijkstra.NewBiState(chg.NumNodes)
	}
	return e
}

// SetHubGraph attaches a hub label index, enabling RouteHL/RouteCostHL.
func (e *Engine) SetHubGraph(hub *hl.HubGraph) {
	e.hub = hub
}

// HasHubGraph reports whether a hub label index is attached.
func (e *Engine) HasHubGraph() bool {
	return e.hub != nil
}

// Route computes the shortest path between two points.
func (e *Engine) Route(ctx context.Context, start, end LatLng) (*RouteResult, error) {
	// Step 1: Snap points to nearest road segments.
	startSnap, err := e.snapper.Snap(start.Lat, start.Lng)
	if err != nil {
		return nil, err
	}
	endSnap, err := e.snapper.Snap(end.Lat, end.Lng)
	if err != nil {
		return nil, err
	}

	// Step 2: Run bidirectional CH Dijkstra with predecessor tracking.
	st := e.biPool.Get().(*dijkstra.BiState)
	defer func() {
		st.Fwd.Reset()
		st.Bwd.Reset()
		e.biPool.Put(st)
	}()
	st.Fwd.Reset()
	st.Bwd.Reset()

	// Seed forward search with start snap's endpoints.
	seedForward(st.Fwd, e.origGraph, startSnap)
	// Seed backward search with end snap's endpoints.
	seedBackward(st.Bwd, e.origGraph, endSnap)

	mu, meetNode := e.runCHDijkstra(ctx, st)

	if meetNode == noNode || mu == math.MaxUint32 {
		return nil, ErrNoRoute
	}

	// Step 3: Reconstruct overlay node path.
	overlayNodes := e.reconstructOverlayPath(meetNode, st.Fwd, st.Bwd)

	// Step 4: Unpack shortcuts into original node sequence.
	origNodes := unpackOverlayPath(e.chg, overlayNodes)

	// Step 5: Build geometry from original node sequence.
	totalDistMeters := float64(mu) / 1000.0
	geometry := e.buildGeometry(origNodes)

	return &RouteResult{
		TotalDistanceMeters: totalDistMeters,
		Segments: []Segment{
			{
				DistanceMeters: totalDistMeters,
				Geometry:       geometry,
			},
		},
	}, nil
}

// RouteCostHL answers a route's cost using the hub label index, without
// reconstructing geometry. Returns ErrNoRoute if no hub graph is attached
// or no route exists.
func (e *Engine) RouteCostHL(start, end LatLng) (float64, error) {
	if e.hub == nil {
		return 0, ErrNoRoute
	}
	startSnap, err := e.snapper.Snap(start.Lat, start.Lng)
	if err != nil {
		return 0, err
	}
	endSnap, err := e.snapper.Snap(end.Lat, end.Lng)
	if err != nil {
		return 0, err
	}
	cost, err := e.hub.Query(nearestSnapNode(startSnap), nearestSnapNode(endSnap))
	if err != nil {
		return 0, ErrNoRoute
	}
	return float64(cost) / 1000.0, nil
}

// RouteHL answers a route using the hub label index for cost, then
// reconstructs geometry by running the CH bidirectional query twice —
// source to meeting hub, and hub to target — and unpacking each half, since
// hub labels alone carry no path information (only cost and the meeting
// hub).
func (e *Engine) RouteHL(ctx context.Context, start, end LatLng) (*RouteResult, error) {
	if e.hub == nil {
		return nil, ErrNoRoute
	}
	startSnap, err := e.snapper.Snap(start.Lat, start.Lng)
	if err != nil {
		return nil, err
	}
	endSnap, err := e.snapper.Snap(end.Lat, end.Lng)
	if err != nil {
		return nil, err
	}

	sourceNode := nearestSnapNode(startSnap)
	targetNode := nearestSnapNode(endSnap)

	_, hub, err := e.hub.QueryHub(sourceNode, targetNode)
	if err != nil {
		return nil, ErrNoRoute
	}

	firstHalf, err := e.routeBetweenNodes(ctx, sourceNode, hub)
	if err != nil {
		return nil, err
	}
	secondHalf, err := e.routeBetweenNodes(ctx, hub, targetNode)
	if err != nil {
		return nil, err
	}

	nodes := append(firstHalf, secondHalf[1:]...)

	totalDistMeters := 0.0
	if cost, err := e.hub.Query(sourceNode, targetNode); err == nil {
		totalDistMeters = float64(cost) / 1000.0
	}

	geometry := e.buildGeometry(nodes)
	return &RouteResult{
		TotalDistanceMeters: totalDistMeters,
		Segments: []Segment{
			{DistanceMeters: totalDistMeters, Geometry: geometry},
		},
	}, nil
}

// routeBetweenNodes runs the bidirectional CH query between two exact
// original-graph nodes (rather than snapped points) and returns the
// unpacked original-node path.
func (e *Engine) routeBetweenNodes(ctx context.Context, source, target uint32) ([]uint32, error) {
	st := e.biPool.Get().(*dijkstra.BiState)
	defer func() {
		st.Fwd.Reset()
		st.Bwd.Reset()
		e.biPool.Put(st)
	}()
	st.Fwd.Reset()
	st.Bwd.Reset()
	st.Fwd.Seed(source, 0)
	st.Bwd.Seed(target, 0)

	mu, meetNode := e.runCHDijkstra(ctx, st)
	if meetNode == noNode || mu == math.MaxUint32 {
		return nil, ErrNoRoute
	}

	overlayNodes := e.reconstructOverlayPath(meetNode, st.Fwd, st.Bwd)
	return unpackOverlayPath(e.chg, overlayNodes), nil
}

// nearestSnapNode picks whichever endpoint of a snapped edge is closer to
// the snap point.
func nearestSnapNode(snap SnapResult) uint32 {
	if snap.Ratio < 0.5 {
		return snap.NodeU
	}
	return snap.NodeV
}

// reconstructOverlayPath builds the full overlay node path from
// source seed → meetNode → target seed, tracing predecessors recorded on
// fwd/bwd by the most recent dijkstra.RunBidirectional call.
func (e *Engine) reconstructOverlayPath(meetNode uint32, fwd, bwd *dijkstra.State) []uint32 {
	// Forward path: meetNode ← ... ← source seed (trace backwards, then reverse).
	fwdPath := make([]uint32, 0, 16)
	node := meetNode
	for {
		fwdPath = append(fwdPath, node)
		pred := fwd.Pred(node)
		if pred == dijkstra.NoPred {
			break
		}
		node = pred
	}
	// Reverse to get source → meetNode.
	for i, j := 0, len(fwdPath)-1; i < j; i, j = i+1, j-1 {
		fwdPath[i], fwdPath[j] = fwdPath[j], fwdPath[i]
	}

	// Backward path: meetNode → ... → target seed.
	// bwd.Pred(v) = u means original direction v → u (toward target).
	node = meetNode
	for {
		pred := bwd.Pred(node)
		if pred == dijkstra.NoPred {
			break
		}
		fwdPath = append(fwdPath, pred)
		node = pred
	}

	return fwdPath
}

// buildGeometry converts a sequence of original graph node IDs into lat/lng
// coordinates, including intermediate shape points from edge geometry.
func (e *Engine) buildGeometry(nodes []uint32) []LatLng {
	if len(nodes) == 0 {
		return nil
	}

	g := e.origGraph
	// Estimate ~2 geometry points per node (node + avg shape points).
	geom := make([]LatLng, 0, len(nodes)*2)

	// Add first node.
	geom = append(geom, LatLng{Lat: g.NodeLat[nodes[0]], Lng: g.NodeLon[nodes[0]]})

	for i := 0; i < len(nodes)-1; i++ {
		u := nodes[i]
		v := nodes[i+1]

		// Look up edge u→v in original graph for intermediate shape points.
		if g.GeoFirstOut != nil {
			edgeIdx := findEdge(g.FirstOut, g.Head, u, v)
			if edgeIdx != noNode && edgeIdx < uint32(len(g.GeoFirstOut)-1) {
				geoStart := g.GeoFirstOut[edgeIdx]
				geoEnd := g.GeoFirstOut[edgeIdx+1]
				for k := geoStart; k < geoEnd; k++ {
					geom = append(geom, LatLng{
						Lat: g.GeoShapeLat[k],
						Lng: g.GeoShapeLon[k],
					})
				}
			}
		}

		// Add target node coordinates.
		geom = append(geom, LatLng{Lat: g.NodeLat[v], Lng: g.NodeLon[v]})
	}

	return geom
}

// seedForward seeds the forward search state with the start snap point's
// reachable nodes.
func seedForward(st *dijkstra.State, g *graph.Graph, snap SnapResult) {
	u := snap.NodeU
	v := snap.NodeV
	weight := g.Weight[snap.EdgeIdx]

	// Distance from snap point to v (forward along edge u→v).
	dv := uint32(math.Round(float64(weight) * (1 - snap.Ratio)))
	if dv < math.MaxUint32 {
		st.Seed(v, dv)
	}

	// Distance from snap point to u (backward along edge u→v).
	du := uint32(math.Round(float64(weight) * snap.Ratio))
	if du < math.MaxUint32 {
		st.Seed(u, du)
	}
}

// seedBackward seeds the backward search state with the end snap point's
// reachable nodes.
func seedBackward(st *dijkstra.State, g *graph.Graph, snap SnapResult) {
	u := snap.NodeU
	v := snap.NodeV
	weight := g.Weight[snap.EdgeIdx]

	// Distance from u to snap point (forward direction).
	du := uint32(math.Round(float64(weight) * snap.Ratio))
	if du < math.MaxUint32 {
		st.Seed(u, du)
	}

	// Distance from v to snap point (backward direction).
	dv := uint32(math.Round(float64(weight) * (1 - snap.Ratio)))
	if dv < math.MaxUint32 {
		st.Seed(v, dv)
	}
}

// runCHDijkstra runs bidirectional CH Dijkstra with predecessor tracking
// over the upward CH graph, via the shared pkg/dijkstra kernel.
func (e *Engine) runCHDijkstra(ctx context.Context, st *dijkstra.BiState) (uint32, uint32) {
	cost, meetNode, ok, err := dijkstra.RunBidirectional(ctx, e.fwdAdj, e.bwdAdj, st)
	if err != nil || !ok {
		return math.MaxUint32, noNode
	}
	return cost, meetNode
}
