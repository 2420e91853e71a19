package dijkstra

import "context"

// NoPred marks a node with no recorded predecessor: the search source, or a
// node never reached by the most recent run.
const NoPred = ^uint32(0)

// Adjacency is the minimal read-only view a search needs over a directed
// weighted graph. graph.Graph and graph.CHGraph's forward/backward CSR
// views all satisfy it via small adapter functions at the call site.
type Adjacency interface {
	// NumNodes returns the number of nodes.
	NumNodes() uint32
	// Edges returns the range [start, end) of edge indices leaving v, to be
	// indexed into Head/Weight.
	Edges(v uint32) (start, end uint32)
	Head(edge uint32) uint32
	Weight(edge uint32) uint32
}

// State holds reusable per-search scratch, following the teacher's
// touched-list reset pattern so repeated searches don't re-zero the full
// distance array.
type State struct {
	dist    []uint32
	hops    []int32
	pred    []uint32
	touched []uint32
	heap    BinaryHeap
}

// NewState allocates search scratch for a graph with n nodes.
func NewState(n uint32) *State {
	dist := make([]uint32, n)
	hops := make([]int32, n)
	pred := make([]uint32, n)
	for i := range dist {
		dist[i] = MaxCost
		pred[i] = NoPred
	}
	return &State{dist: dist, hops: hops, pred: pred, heap: BinaryHeap{items: make([]item, 0, 256)}}
}

// Reset clears only the touched entries, the same touched-list approach
// as pkg/ch.witnessState.
func (s *State) Reset() {
	for _, n := range s.touched {
		s.dist[n] = MaxCost
		s.pred[n] = NoPred
	}
	s.touched = s.touched[:0]
	s.heap.Reset()
}

func (s *State) touch(v, cost uint32, hops int32, pred uint32) {
	if s.dist[v] == MaxCost {
		s.touched = append(s.touched, v)
	}
	s.dist[v] = cost
	s.hops[v] = hops
	s.pred[v] = pred
}

// Seed pushes an initial (v, cost) entry with no predecessor, for callers
// that seed multiple start entries themselves (e.g. a snapped edge's two
// endpoints) before running a search loop directly against this state's
// heap. Does not reset; call Reset first.
func (s *State) Seed(v, cost uint32) {
	s.touch(v, cost, 0, NoPred)
	s.heap.Push(v, cost, 0)
}

// Dist returns the settled or tentative distance to v from the most recent
// search run on this state (MaxCost if unreached).
func (s *State) Dist(v uint32) uint32 { return s.dist[v] }

// Pred returns the predecessor of v on the shortest-path tree from the most
// recent search run on this state (NoPred if v is the source or unreached).
func (s *State) Pred(v uint32) uint32 { return s.pred[v] }

// Touched returns the nodes reached by the most recent search run on this
// state. The returned slice is only valid until the next Reset.
func (s *State) Touched() []uint32 { return s.touched }

// SingleSource runs Dijkstra from source until target is settled or the
// queue empties, returning (cost, true) or (MaxCost, false).
func SingleSource(adj Adjacency, state *State, source, target uint32) (uint32, bool) {
	state.Reset()
	state.touch(source, 0, 0, NoPred)
	state.heap.Push(source, 0, 0)

	for state.heap.Len() > 0 {
		u, d, hops := state.heap.Pop()
		if d > state.dist[u] {
			continue // stale
		}
		if u == target {
			return d, true
		}
		start, end := adj.Edges(u)
		for e := start; e < end; e++ {
			v := adj.Head(e)
			nd := d + adj.Weight(e)
			if nd < state.dist[v] {
				state.touch(v, nd, hops+1, u)
				state.heap.Push(v, nd, hops+1)
			}
		}
	}
	return MaxCost, false
}

// defaultMaxSettled bounds the work a single bounded search can do when a
// caller passes 0 for maxSettled; the original witness search used this as
// a fixed ceiling and hub-label construction is capped by the hop limit
// well before reaching it.
const defaultMaxSettled = 100000

// HopCostBounded runs Dijkstra from source over adj, excluding the node
// excluded from relaxation entirely, bounded by maxHops, maxCost, and the
// number of nodes settled (maxSettled; 0 uses defaultMaxSettled). It
// returns nothing: the distances it reached stay in state, and callers read
// them back via state.Touched and state.Dist. Pass excluded = ^uint32(0) to
// disable exclusion (as hub-label construction does).
func HopCostBounded(adj Adjacency, state *State, source, excluded uint32, maxHops int32, maxCost uint32, maxSettled int) {
	if maxSettled <= 0 {
		maxSettled = defaultMaxSettled
	}
	state.Reset()
	state.touch(source, 0, 0, NoPred)
	state.heap.Push(source, 0, 0)

	settled := 0
	for state.heap.Len() > 0 {
		u, d, hops := state.heap.Pop()
		if d > state.dist[u] {
			continue
		}
		settled++
		if settled > maxSettled {
			return
		}
		if hops >= maxHops {
			continue
		}
		start, end := adj.Edges(u)
		for e := start; e < end; e++ {
			v := adj.Head(e)
			if v == excluded {
				continue
			}
			nd := d + adj.Weight(e)
			if nd > maxCost {
				continue
			}
			if nd < state.dist[v] {
				state.touch(v, nd, hops+1, u)
				state.heap.Push(v, nd, hops+1)
			}
		}
	}
}

// BiState holds the scratch for a bidirectional search.
type BiState struct {
	Fwd, Bwd *State
}

// NewBiState allocates forward and backward scratch for n nodes.
func NewBiState(n uint32) *BiState {
	return &BiState{Fwd: NewState(n), Bwd: NewState(n)}
}

// ctxCheckInterval bounds how often RunBidirectional checks ctx for
// cancellation; checking every pop would dominate runtime on a context
// that's essentially never cancelled in the hot path.
const ctxCheckInterval = 256

// Bidirectional runs an alternating forward/backward Dijkstra over fwdAdj
// and bwdAdj with a background context, seeding from source and target
// directly. It is a convenience wrapper over RunBidirectional for callers
// that don't seed partial costs themselves and don't need cancellation.
func Bidirectional(fwdAdj, bwdAdj Adjacency, st *BiState, source, target uint32) (cost uint32, meetNode uint32, ok bool) {
	st.Fwd.Reset()
	st.Bwd.Reset()
	st.Fwd.Seed(source, 0)
	st.Bwd.Seed(target, 0)
	cost, meetNode, ok, _ = RunBidirectional(context.Background(), fwdAdj, bwdAdj, st)
	return cost, meetNode, ok
}

// RunBidirectional alternates forward/backward Dijkstra over fwdAdj (upward
// forward graph) and bwdAdj (upward backward graph) starting from whatever
// st.Fwd/st.Bwd were already seeded with (via State.Seed), terminating once
// both frontiers' minimum keys are at least the best meeting cost found so
// far. Ties on equal cost favor the lower node id (both within each heap's
// pop order and in meet-node selection), so two equal-cost paths are always
// resolved the same way regardless of pop interleaving. Callers seed the
// states themselves so this also serves CH queries that seed from multiple
// snapped-edge endpoints at once, not just a single source/target pair.
func RunBidirectional(ctx context.Context, fwdAdj, bwdAdj Adjacency, st *BiState) (cost uint32, meetNode uint32, ok bool, err error) {
	mu := uint32(MaxCost)
	meet := ^uint32(0)
	iterations := 0

	for {
		iterations++
		if iterations&(ctxCheckInterval-1) == 0 {
			if err := ctx.Err(); err != nil {
				return MaxCost, meet, false, err
			}
		}

		fwdMin := st.Fwd.heap.PeekCost()
		bwdMin := st.Bwd.heap.PeekCost()
		if fwdMin >= mu && bwdMin >= mu {
			break
		}

		if fwdMin < mu {
			u, d, hops := st.Fwd.heap.Pop()
			if d <= st.Fwd.dist[u] {
				if st.Bwd.dist[u] != MaxCost {
					if cand := d + st.Bwd.dist[u]; cand < mu || (cand == mu && u < meet) {
						mu = cand
						meet = u
					}
				}
				start, end := fwdAdj.Edges(u)
				for e := start; e < end; e++ {
					v := fwdAdj.Head(e)
					nd := d + fwdAdj.Weight(e)
					if nd < st.Fwd.dist[v] {
						st.Fwd.touch(v, nd, hops+1, u)
						st.Fwd.heap.Push(v, nd, hops+1)
					}
				}
			}
		}

		if st.Bwd.heap.PeekCost() < mu {
			u, d, hops := st.Bwd.heap.Pop()
			if d <= st.Bwd.dist[u] {
				if st.Fwd.dist[u] != MaxCost {
					if cand := st.Fwd.dist[u] + d; cand < mu || (cand == mu && u < meet) {
						mu = cand
						meet = u
					}
				}
				start, end := bwdAdj.Edges(u)
				for e := start; e < end; e++ {
					v := bwdAdj.Head(e)
					nd := d + bwdAdj.Weight(e)
					if nd < st.Bwd.dist[v] {
						st.Bwd.touch(v, nd, hops+1, u)
						st.Bwd.heap.Push(v, nd, hops+1)
					}
				}
			}
		}
	}

	if meet == ^uint32(0) || mu == MaxCost {
		return MaxCost, meet, false, nil
	}
	return mu, meet, true, nil
}
