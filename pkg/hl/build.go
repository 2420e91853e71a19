package hl

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"shiproute/pkg/dijkstra"
	"shiproute/pkg/graph"
)

// ErrInvariantViolated is returned when a built label is missing its own
// (v, 0) self-entry, which should be impossible for a correct CH-restricted
// search and indicates a bug in the contraction or the label builder rather
// than a legitimate routing outcome.
var ErrInvariantViolated = errors.New("hl: label missing self-entry")

// Options configures hub-label construction.
type Options struct {
	// HopLimit bounds how many CH-upward hops a node's label search may
	// take, matching the original's fixed hop-depth hub graph construction.
	HopLimit int32
	// Workers bounds concurrent per-node label construction/pruning; 0
	// means runtime.GOMAXPROCS(0).
	Workers int
}

// DefaultOptions returns the package's default construction parameters.
func DefaultOptions() Options {
	return Options{HopLimit: 10, Workers: 0}
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// fwdAdj/bwdAdj adapt a graph.CHGraph's upward CSR views to
// dijkstra.Adjacency.
type fwdAdj struct{ g *graph.CHGraph }

func (a fwdAdj) NumNodes() uint32               { return a.g.NumNodes }
func (a fwdAdj) Edges(v uint32) (uint32, uint32) { return a.g.FwdFirstOut[v], a.g.FwdFirstOut[v+1] }
func (a fwdAdj) Head(e uint32) uint32            { return a.g.FwdHead[e] }
func (a fwdAdj) Weight(e uint32) uint32          { return a.g.FwdWeight[e] }

type bwdAdj struct{ g *graph.CHGraph }

func (a bwdAdj) NumNodes() uint32               { return a.g.NumNodes }
func (a bwdAdj) Edges(v uint32) (uint32, uint32) { return a.g.BwdFirstOut[v], a.g.BwdFirstOut[v+1] }
func (a bwdAdj) Head(e uint32) uint32            { return a.g.BwdHead[e] }
func (a bwdAdj) Weight(e uint32) uint32          { return a.g.BwdWeight[e] }

const noExclusion = ^uint32(0)

// Build constructs a HubGraph from a contracted graph. Per-node label
// construction is independent and runs across a bounded worker pool
// (errgroup), mirroring the original's rayon par_bridge label construction.
func Build(ctx context.Context, chg *graph.CHGraph, opts Options) (*HubGraph, error) {
	n := chg.NumNodes
	hub := &HubGraph{
		Forward:  make([]Label, n),
		Backward: make([]Label, n),
	}

	fa := fwdAdj{chg}
	ba := bwdAdj{chg}

	// stPool reuses per-search scratch across goroutine tasks instead of
	// allocating a fresh dijkstra.State per node, following pkg/routing's
	// biPool pattern.
	var stPool sync.Pool
	stPool.New = func() any { return dijkstra.NewState(n) }

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers())

	for v := uint32(0); v < n; v++ {
		v := v
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			st := stPool.Get().(*dijkstra.State)
			dijkstra.HopCostBounded(fa, st, v, noExclusion, opts.HopLimit, dijkstra.MaxCost, 0)
			hub.Forward[v] = collectLabel(st, v)
			stPool.Put(st)

			st2 := stPool.Get().(*dijkstra.State)
			dijkstra.HopCostBounded(ba, st2, v, noExclusion, opts.HopLimit, dijkstra.MaxCost, 0)
			hub.Backward[v] = collectLabel(st2, v)
			stPool.Put(st2)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for v := uint32(0); v < n; v++ {
		if !hasSelf(hub.Forward[v], v) || !hasSelf(hub.Backward[v], v) {
			return nil, ErrInvariantViolated
		}
	}

	return hub, nil
}

func collectLabel(st *dijkstra.State, self uint32) Label {
	reached := map[uint32]uint32{self: 0}
	for _, v := range st.Touched() {
		reached[v] = st.Dist(v)
	}
	return newLabel(reached)
}

func hasSelf(l Label, v uint32) bool {
	for _, e := range l.Entries {
		if e.Hub == v {
			return e.Cost == 0
		}
	}
	return false
}

// Prune removes label entries whose cost is not the true shortest-path
// cost between the label's owner and the entry's hub, as measured by the
// overlap of the labels as they stood before this pass (pruned labels are
// collected separately and swapped in only after every node is checked). It is
// idempotent: re-running Prune on an already-pruned HubGraph finds the same
// survivors, since a surviving entry's cost already equals its true cost.
func Prune(ctx context.Context, hub *HubGraph, opts Options) error {
	n := uint32(len(hub.Forward))

	prunedFwd := make([]Label, n)
	prunedBwd := make([]Label, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers())

	for v := uint32(0); v < n; v++ {
		v := v
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			prunedFwd[v] = pruneOne(hub.Forward[v], v, hub.Backward)
			prunedBwd[v] = pruneOne(hub.Backward[v], v, hub.Forward)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	hub.Forward = prunedFwd
	hub.Backward = prunedBwd
	return nil
}

// pruneOne keeps entries of label l (belonging to node v) whose cost equals
// the true shortest cost from v to the entry's hub, computed as the overlap
// of l against the opposite-direction label of the hub itself — a hub's own
// backward (resp. forward) label always contains its self-entry, so the
// overlap against opposite[hub] recovers the true v->hub distance whenever
// a shorter path exists via some other hub.
func pruneOne(l Label, owner uint32, opposite []Label) Label {
	kept := make([]LabelEntry, 0, len(l.Entries))
	for _, e := range l.Entries {
		if e.Hub == owner {
			kept = append(kept, e)
			continue
		}
		trueCost, _, ok := Overlap(l, opposite[e.Hub])
		if ok && trueCost == e.Cost {
			kept = append(kept, e)
		}
	}
	return Label{Entries: kept}
}
