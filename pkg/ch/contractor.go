package ch

import (
	"container/heap"
	"log"
	"math/rand"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"shiproute/pkg/graph"
)

// CHResult is the historical name for the contraction output, kept as an
// alias so tests written against the old name still resolve.
type CHResult = graph.CHGraph

// Options configures Contraction Hierarchies preprocessing. The zero value
// is not valid; use DefaultOptions (or Contract, which applies it).
type Options struct {
	// MaxShortcutsPerNode stops the contraction loop once a node's
	// contraction would create more than this many shortcuts, leaving the
	// remaining nodes as an uncontracted core at the top of the hierarchy.
	MaxShortcutsPerNode int
	// WitnessMaxHops bounds how many hops a witness search explores from
	// the incoming neighbor before giving up on finding a witness path.
	WitnessMaxHops int
	// WitnessMaxSettled bounds how many nodes a single witness search may
	// settle, capping worst-case witness search cost independent of hops.
	WitnessMaxSettled int
	// RescoreInterval re-scores every remaining queue entry in parallel
	// after this many pops, correcting for priority drift that the
	// per-pop lazy stale check alone would only catch one entry at a time.
	RescoreInterval int
	// ExtraTerms are additional PriorityTerm implementations appended to
	// the default edge-difference/deleted-neighbors/level set. Registering
	// Voronoi-region-style terms here requires the caller to supply their
	// own bookkeeping; none are registered by default.
	ExtraTerms []PriorityTerm
	// Seed drives the initial node-order shuffle before the priority queue
	// is heapified, for parity with the original implementation's seeded
	// RNG. It has no effect on which node the queue pops next among ties,
	// since priorityQueue.Less already breaks priority ties on node id —
	// the shuffle only reorders the backing slice before heap.Init, not
	// the deterministic comparison heap.Init sorts by.
	Seed int64
}

// DefaultOptions returns the package's default contraction parameters,
// matching the historical hardcoded constants.
func DefaultOptions() Options {
	return Options{
		MaxShortcutsPerNode: 1000,
		WitnessMaxHops:      5,
		WitnessMaxSettled:   500,
		RescoreInterval:     100000,
		Seed:                1,
	}
}

// adjEntry represents an edge in the mutable adjacency list.
type adjEntry struct {
	to     uint32
	weight uint32
	middle int32 // -1 for original edges, else the contracted node ID
}

// Contract performs Contraction Hierarchies preprocessing on the given graph
// using DefaultOptions. Kept as the historical single-argument entry point.
func Contract(g *graph.Graph) *graph.CHGraph {
	return ContractWithOptions(g, DefaultOptions())
}

// ContractWithOptions performs Contraction Hierarchies preprocessing on the
// given graph with explicit tuning parameters.
func ContractWithOptions(g *graph.Graph, opts Options) *graph.CHGraph {
	n := g.NumNodes
	if n == 0 {
		return &graph.CHGraph{}
	}
	terms := append(append([]PriorityTerm{}, defaultPriorityTerms...), opts.ExtraTerms...)

	// Build mutable forward and reverse adjacency lists from the CSR graph.
	outAdj := make([][]adjEntry, n)
	inAdj := make([][]adjEntry, n)

	for u := uint32(0); u < n; u++ {
		start, end := g.EdgesFrom(u)
		for e := start; e < end; e++ {
			v := g.Head[e]
			w := g.Weight[e]
			outAdj[u] = append(outAdj[u], adjEntry{to: v, weight: w, middle: -1})
			inAdj[v] = append(inAdj[v], adjEntry{to: u, weight: w, middle: -1})
		}
	}

	contracted := make([]bool, n)
	rank := make([]uint32, n)
	contractedNeighbors := make([]int, n)
	level := make([]int, n)

	// Initial node order is shuffled per opts.Seed for parity with the
	// original's seeded RNG; priorityQueue.Less's node-id tiebreak means
	// this has no effect on the final contraction order, only on the
	// pre-heapify slice layout.
	order0 := make([]uint32, n)
	for i := range order0 {
		order0[i] = uint32(i)
	}
	rand.New(rand.NewSource(opts.Seed)).Shuffle(len(order0), func(i, j int) {
		order0[i], order0[j] = order0[j], order0[i]
	})

	// Initialize priority queue with all nodes.
	pq := make(priorityQueue, n)
	for i, node := range order0 {
		pq[i] = &pqEntry{
			node:     node,
			priority: computePriority(terms, outAdj, inAdj, node, contracted, contractedNeighbors[node], level[node]),
			index:    i,
		}
	}
	heap.Init(&pq)

	// statePool hands out per-goroutine witness-search scratch, following
	// pkg/routing.Engine's biPool pattern instead of allocating a fresh
	// slice of states on every parallel findShortcuts call.
	var statePool sync.Pool
	statePool.New = func() any { return newWitnessState(n) }
	ws := statePool.Get().(*witnessState)

	log.Printf("Starting contraction of %d nodes...", n)

	var totalShortcuts int
	pops := 0
	order := uint32(0)

	// Adaptive log interval: frequent near the end.
	logInterval := uint32(50000)

	for pq.Len() > 0 {
		// Pop minimum-priority node.
		entry := heap.Pop(&pq).(*pqEntry)
		node := entry.node
		pops++

		if contracted[node] {
			continue
		}

		// Every RescoreInterval pops, re-score all remaining entries in
		// parallel — the lazy per-pop stale check above only corrects one
		// entry at a time and lets priority drift accumulate across a long
		// contraction run.
		if opts.RescoreInterval > 0 && pops%opts.RescoreInterval == 0 && pq.Len() > 0 {
			rescoreQueue(pq, terms, outAdj, inAdj, contracted, contractedNeighbors, level)
			heap.Init(&pq)
		}

		// Lazy update: recompute priority and re-insert only if it grew
		// and now exceeds the queue's current minimum.
		newPriority := computePriority(terms, outAdj, inAdj, node, contracted, contractedNeighbors[node], level[node])
		if newPriority > entry.priority && pq.Len() > 0 && newPriority > pq[0].priority {
			entry.priority = newPriority
			heap.Push(&pq, entry)
			continue
		}

		// Find shortcuts needed using batch witness search.
		shortcuts := findShortcuts(ws, &statePool, outAdj, inAdj, node, contracted, opts)

		// If contracting this node would produce too many shortcuts,
		// stop contraction entirely. Remaining nodes form a "core"
		// at the top of the hierarchy with original edges preserved.
		if len(shortcuts) > opts.MaxShortcutsPerNode {
			log.Printf("Stopping contraction: node %d would create %d shortcuts (limit %d). %d nodes remain in core.",
				node, len(shortcuts), opts.MaxShortcutsPerNode, n-order)
			break
		}

		// Contract this node.
		contracted[node] = true
		rank[node] = order
		order++
		totalShortcuts += len(shortcuts)

		// Add shortcuts to adjacency lists.
		for _, sc := range shortcuts {
			outAdj[sc.from] = append(outAdj[sc.from], adjEntry{to: sc.to, weight: sc.weight, middle: int32(node)})
			inAdj[sc.to] = append(inAdj[sc.to], adjEntry{to: sc.from, weight: sc.weight, middle: int32(node)})
		}

		// Update neighbors' contracted neighbor count and level.
		for _, e := range outAdj[node] {
			if !contracted[e.to] {
				contractedNeighbors[e.to]++
				if level[node]+1 > level[e.to] {
					level[e.to] = level[node] + 1
				}
			}
		}
		for _, e := range inAdj[node] {
			if !contracted[e.to] {
				contractedNeighbors[e.to]++
				if level[node]+1 > level[e.to] {
					level[e.to] = level[node] + 1
				}
			}
		}

		// Adaptive logging: more frequent as we approach the end.
		remaining := n - order
		if remaining < 1000 {
			logInterval = 100
		} else if remaining < 10000 {
			logInterval = 1000
		} else if remaining < 100000 {
			logInterval = 10000
		} else {
			logInterval = 50000
		}

		if order%logInterval == 0 {
			log.Printf("Contracted %d/%d nodes, %d shortcuts so far", order, n, totalShortcuts)
		}
	}
	statePool.Put(ws)

	// Assign ranks to remaining uncontracted core nodes.
	coreSize := uint32(0)
	for i := uint32(0); i < n; i++ {
		if !contracted[i] {
			contracted[i] = true
			rank[i] = order
			order++
			coreSize++
		}
	}

	log.Printf("Contraction complete: %d shortcuts created (%.1fx original edges), %d core nodes",
		totalShortcuts, float64(totalShortcuts)/float64(g.NumEdges), coreSize)

	// Build forward and backward upward CSR overlay.
	return buildOverlay(g, outAdj, inAdj, rank)
}

// shortcut represents a shortcut edge to be added.
type shortcut struct {
	from, to uint32
	weight   uint32
}

// findShortcuts determines which shortcuts are needed when contracting a node.
// Uses batch witness search: one Dijkstra per incoming neighbor instead of one
// per (incoming, outgoing) pair. This reduces search count from O(|in|*|out|)
// to O(|in|). Each incoming neighbor's witness search is independent (reads
// outAdj/contracted, owns its own witnessState borrowed from statePool), so
// they fan out across a worker pool via errgroup; ws (the caller's reusable
// state) is used directly below the parallel threshold.
func findShortcuts(ws *witnessState, statePool *sync.Pool, outAdj, inAdj [][]adjEntry, node uint32, contracted []bool, opts Options) []shortcut {
	// Collect active incoming and outgoing neighbors.
	var incoming []adjEntry
	for _, e := range inAdj[node] {
		if !contracted[e.to] {
			incoming = append(incoming, e)
		}
	}

	var outgoing []adjEntry
	for _, e := range outAdj[node] {
		if !contracted[e.to] {
			outgoing = append(outgoing, e)
		}
	}

	if len(incoming) == 0 || len(outgoing) == 0 {
		return nil
	}

	// Below this size the goroutine setup cost dwarfs the witness searches
	// themselves, so run them inline on the caller's reusable state.
	const parallelThreshold = 8
	if len(incoming) < parallelThreshold {
		var shortcuts []shortcut
		for _, in := range incoming {
			shortcuts = append(shortcuts, witnessShortcutsFor(ws, outAdj, node, contracted, in, outgoing, opts)...)
		}
		return shortcuts
	}

	workers := min(runtime.GOMAXPROCS(0), len(incoming))
	results := make([][]shortcut, len(incoming))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, in := range incoming {
		i, in := i, in
		g.Go(func() error {
			w := statePool.Get().(*witnessState)
			results[i] = witnessShortcutsFor(w, outAdj, node, contracted, in, outgoing, opts)
			statePool.Put(w)
			return nil
		})
	}
	g.Wait()

	var shortcuts []shortcut
	for _, r := range results {
		shortcuts = append(shortcuts, r...)
	}
	return shortcuts
}

// witnessShortcutsFor runs the batch witness search from one incoming
// neighbor and returns the shortcuts it proves are needed.
func witnessShortcutsFor(ws *witnessState, outAdj [][]adjEntry, node uint32, contracted []bool, in adjEntry, outgoing []adjEntry, opts Options) []shortcut {
	var maxOut uint32
	hasTarget := false
	for _, out := range outgoing {
		if out.to != in.to {
			hasTarget = true
			if out.weight > maxOut {
				maxOut = out.weight
			}
		}
	}
	if !hasTarget {
		return nil // all outgoing go back to in.to
	}

	maxWeight := in.weight + maxOut

	// Run ONE Dijkstra from in.to, then check all outgoing targets.
	batchWitnessSearch(ws, outAdj, in.to, node, maxWeight, contracted, opts.WitnessMaxHops, opts.WitnessMaxSettled)

	var shortcuts []shortcut
	for _, out := range outgoing {
		if out.to == in.to {
			continue // skip self-loops
		}

		scWeight := in.weight + out.weight

		// Check if witness path exists: dist[out.to] <= scWeight means
		// there's an alternative path at least as good as the shortcut.
		if ws.dist[out.to] > scWeight {
			shortcuts = append(shortcuts, shortcut{
				from:   in.to,
				to:     out.to,
				weight: scWeight,
			})
		}
	}
	return shortcuts
}

// priorityContext is the read-only view a PriorityTerm scores a node against.
// Terms never mutate outAdj/inAdj/contracted; only the contraction loop does.
type priorityContext struct {
	outAdj, inAdj       [][]adjEntry
	node                uint32
	contracted          []bool
	contractedNeighbors int
	level               int
}

// activeDegree counts non-contracted neighbors in both directions, a value
// every term below needs, so it's computed once per Score call rather than
// per term.
func (c priorityContext) activeDegree() (activeIn, activeOut int) {
	for _, e := range c.inAdj[c.node] {
		if !c.contracted[e.to] {
			activeIn++
		}
	}
	for _, e := range c.outAdj[c.node] {
		if !c.contracted[e.to] {
			activeOut++
		}
	}
	return activeIn, activeOut
}

// PriorityTerm scores one aspect of how cheap a node is to contract next;
// lower scores contract first. The default ordering composes several terms
// as a weighted sum rather than any single heuristic, following the
// "edge difference + deleted neighbors + level" scheme used by production
// contraction hierarchy implementations.
type PriorityTerm interface {
	Score(c priorityContext) int
}

// edgeDifferenceTerm approximates the net edge count change from contracting
// a node: (shortcuts added) - (edges removed), using in*out as a cheap upper
// bound on shortcuts rather than running a witness search just to rank.
type edgeDifferenceTerm struct{}

func (edgeDifferenceTerm) Score(c priorityContext) int {
	activeIn, activeOut := c.activeDegree()
	return activeIn*activeOut - (activeIn + activeOut)
}

// deletedNeighborsTerm favors nodes whose neighbors have already been
// contracted, spreading contraction across the graph instead of tunneling
// through one dense region.
type deletedNeighborsTerm struct{ weight int }

func (t deletedNeighborsTerm) Score(c priorityContext) int {
	return t.weight * c.contractedNeighbors
}

// levelTerm favors contracting low-level nodes first, bounding the CH
// overlay's maximum hierarchy depth.
type levelTerm struct{}

func (levelTerm) Score(c priorityContext) int {
	return c.level
}

// defaultPriorityTerms is the term set computePriority composes, matching
// the historical hand-written formula (edgeDifference + 2*contractedNeighbors
// + level) term for term.
var defaultPriorityTerms = []PriorityTerm{
	edgeDifferenceTerm{},
	deletedNeighborsTerm{weight: 2},
	levelTerm{},
}

// computePriority returns the priority for a node (lower = contract first),
// summing the given terms.
func computePriority(terms []PriorityTerm, outAdj, inAdj [][]adjEntry, node uint32, contracted []bool, contractedNeighbors, level int) int {
	c := priorityContext{
		outAdj:              outAdj,
		inAdj:               inAdj,
		node:                node,
		contracted:          contracted,
		contractedNeighbors: contractedNeighbors,
		level:               level,
	}
	total := 0
	for _, term := range terms {
		total += term.Score(c)
	}
	return total
}

// rescoreQueue recomputes every remaining entry's priority in parallel,
// bounded by runtime.GOMAXPROCS(0); the contraction loop re-heapifies via
// heap.Init after this returns. Safe to run between pops since the staged
// adjacency is only mutated by the single contraction loop goroutine, never
// concurrently with a rescore.
func rescoreQueue(pq priorityQueue, terms []PriorityTerm, outAdj, inAdj [][]adjEntry, contracted []bool, contractedNeighbors, level []int) {
	workers := min(runtime.GOMAXPROCS(0), len(pq))
	var g errgroup.Group
	g.SetLimit(workers)
	for i := range pq {
		i := i
		g.Go(func() error {
			e := pq[i]
			e.priority = computePriority(terms, outAdj, inAdj, e.node, contracted, contractedNeighbors[e.node], level[e.node])
			return nil
		})
	}
	g.Wait()
}

// buildOverlay creates forward and backward upward CSR graphs from the
// contracted adjacency lists and node ranks.
func buildOverlay(orig *graph.Graph, outAdj, inAdj [][]adjEntry, rank []uint32) *graph.CHGraph {
	n := orig.NumNodes

	// Collect forward upward edges: edge u→v where rank[u] < rank[v].
	type csrEdge struct {
		from, to uint32
		weight   uint32
		middle   int32
	}

	var fwdEdges, bwdEdges []csrEdge

	for u := uint32(0); u < n; u++ {
		for _, e := range outAdj[u] {
			if rank[u] < rank[e.to] {
				fwdEdges = append(fwdEdges, csrEdge{from: u, to: e.to, weight: e.weight, middle: e.middle})
			}
		}
		// Backward upward: for edges v→u where rank[u] < rank[v],
		// store as u→v in the backward graph (for backward search from target).
		for _, e := range inAdj[u] {
			if rank[u] < rank[e.to] {
				bwdEdges = append(bwdEdges, csrEdge{from: u, to: e.to, weight: e.weight, middle: e.middle})
			}
		}
	}

	log.Printf("Overlay: %d forward upward edges, %d backward upward edges", len(fwdEdges), len(bwdEdges))

	buildCSR := func(edges []csrEdge) (firstOut, head []uint32, weight []uint32, middle []int32) {
		numEdges := uint32(len(edges))
		firstOut = make([]uint32, n+1)
		head = make([]uint32, numEdges)
		weight = make([]uint32, numEdges)
		middle = make([]int32, numEdges)

		// Count edges per source.
		for _, e := range edges {
			firstOut[e.from+1]++
		}
		for i := uint32(1); i <= n; i++ {
			firstOut[i] += firstOut[i-1]
		}

		// Place edges.
		pos := make([]uint32, n)
		copy(pos, firstOut[:n])
		for _, e := range edges {
			idx := pos[e.from]
			head[idx] = e.to
			weight[idx] = e.weight
			middle[idx] = e.middle
			pos[e.from]++
		}

		return
	}

	fwdFirstOut, fwdHead, fwdWeight, fwdMiddle := buildCSR(fwdEdges)
	bwdFirstOut, bwdHead, bwdWeight, bwdMiddle := buildCSR(bwdEdges)

	return &graph.CHGraph{
		NumNodes:     n,
		NodeLat:      orig.NodeLat,
		NodeLon:      orig.NodeLon,
		Rank:         rank,
		FwdFirstOut:  fwdFirstOut,
		FwdHead:      fwdHead,
		FwdWeight:    fwdWeight,
		FwdMiddle:    fwdMiddle,
		BwdFirstOut:  bwdFirstOut,
		BwdHead:      bwdHead,
		BwdWeight:    bwdWeight,
		BwdMiddle:    bwdMiddle,
		OrigFirstOut: orig.FirstOut,
		OrigHead:     orig.Head,
		OrigWeight:   orig.Weight,
		GeoFirstOut:  orig.GeoFirstOut,
		GeoShapeLat:  orig.GeoShapeLat,
		GeoShapeLon:  orig.GeoShapeLon,
	}
}

// Priority queue implementation for contraction ordering.

type pqEntry struct {
	node     uint32
	priority int
	index    int
}

type priorityQueue []*pqEntry

func (pq priorityQueue) Len() int           { return len(pq) }
// Less breaks priority ties on node id so contraction order is fully
// deterministic given (graph, priority weights, initial shuffle seed).
func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].priority != pq[j].priority {
		return pq[i].priority < pq[j].priority
	}
	return pq[i].node < pq[j].node
}
func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x any) {
	entry := x.(*pqEntry)
	entry.index = len(*pq)
	*pq = append(*pq, entry)
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	entry.index = -1
	*pq = old[:n-1]
	return entry
}
