package dijkstra

import (
	"context"
	"testing"
)

// csrAdj is a tiny CSR adjacency used only by this package's tests.
type csrAdj struct {
	firstOut []uint32
	head     []uint32
	weight   []uint32
}

func (a *csrAdj) NumNodes() uint32             { return uint32(len(a.firstOut) - 1) }
func (a *csrAdj) Edges(v uint32) (uint32, uint32) { return a.firstOut[v], a.firstOut[v+1] }
func (a *csrAdj) Head(e uint32) uint32         { return a.head[e] }
func (a *csrAdj) Weight(e uint32) uint32       { return a.weight[e] }

// buildDirected builds a CSR from a list of (from, to, weight) triples over
// n nodes.
func buildDirected(n uint32, edges [][3]uint32) *csrAdj {
	firstOut := make([]uint32, n+1)
	for _, e := range edges {
		firstOut[e[0]+1]++
	}
	for i := uint32(1); i <= n; i++ {
		firstOut[i] += firstOut[i-1]
	}
	head := make([]uint32, len(edges))
	weight := make([]uint32, len(edges))
	pos := make([]uint32, n)
	copy(pos, firstOut[:n])
	for _, e := range edges {
		idx := pos[e[0]]
		head[idx] = e[1]
		weight[idx] = e[2]
		pos[e[0]]++
	}
	return &csrAdj{firstOut: firstOut, head: head, weight: weight}
}

func TestSingleSourceChain(t *testing.T) {
	adj := buildDirected(4, [][3]uint32{{0, 1, 10}, {1, 2, 20}, {2, 3, 30}})
	st := NewState(4)
	cost, ok := SingleSource(adj, st, 0, 3)
	if !ok || cost != 60 {
		t.Fatalf("cost=%d ok=%v, want 60 true", cost, ok)
	}
}

func TestSingleSourceUnreachable(t *testing.T) {
	adj := buildDirected(3, [][3]uint32{{0, 1, 1}})
	st := NewState(3)
	_, ok := SingleSource(adj, st, 0, 2)
	if ok {
		t.Fatalf("expected unreachable")
	}
}

func TestHopCostBoundedExcludesNode(t *testing.T) {
	// 0 -> 1 -> 2, 0 -> 2 direct is absent; excluding 1 should leave 2 unreached.
	adj := buildDirected(3, [][3]uint32{{0, 1, 5}, {1, 2, 5}})
	st := NewState(3)
	HopCostBounded(adj, st, 0, 1, 10, MaxCost, 0)
	if st.Dist(2) != MaxCost {
		t.Fatalf("expected node 2 unreached when excluding node 1, got dist=%d", st.Dist(2))
	}
}

func TestHopCostBoundedHopLimit(t *testing.T) {
	adj := buildDirected(4, [][3]uint32{{0, 1, 1}, {1, 2, 1}, {2, 3, 1}})
	st := NewState(4)
	HopCostBounded(adj, st, 0, ^uint32(0), 1, MaxCost, 0)
	if st.Dist(1) != 1 {
		t.Fatalf("node 1 should be reached within 1 hop, got %d", st.Dist(1))
	}
	if st.Dist(2) != MaxCost {
		t.Fatalf("node 2 should be unreached beyond the hop bound, got %d", st.Dist(2))
	}
}

func TestBidirectionalMeetsInMiddle(t *testing.T) {
	// 0 -1-> 1 -1-> 2 -1-> 3, symmetric backward view.
	fwd := buildDirected(4, [][3]uint32{{0, 1, 1}, {1, 2, 1}, {2, 3, 1}})
	bwd := buildDirected(4, [][3]uint32{{3, 2, 1}, {2, 1, 1}, {1, 0, 1}})
	st := NewBiState(4)
	cost, _, ok := Bidirectional(fwd, bwd, st, 0, 3)
	if !ok || cost != 3 {
		t.Fatalf("cost=%d ok=%v, want 3 true", cost, ok)
	}
}

func TestBucketQueueOrdersByCost(t *testing.T) {
	q := NewBucketQueue(16)
	q.Push(1, 5, 0)
	q.Push(2, 1, 0)
	q.Push(3, 9, 0)
	_, c1, _, ok := q.Pop()
	if !ok || c1 != 1 {
		t.Fatalf("expected first pop cost 1, got %d ok=%v", c1, ok)
	}
}

func TestSingleSourceRecordsPredecessors(t *testing.T) {
	adj := buildDirected(4, [][3]uint32{{0, 1, 10}, {1, 2, 20}, {2, 3, 30}})
	st := NewState(4)
	if _, ok := SingleSource(adj, st, 0, 3); !ok {
		t.Fatalf("expected reachable")
	}
	if st.Pred(0) != NoPred {
		t.Fatalf("source should have no predecessor, got %d", st.Pred(0))
	}
	if st.Pred(1) != 0 || st.Pred(2) != 1 || st.Pred(3) != 2 {
		t.Fatalf("unexpected predecessor chain: %d %d %d", st.Pred(1), st.Pred(2), st.Pred(3))
	}
}

func TestBinaryHeapTiebreaksOnNodeID(t *testing.T) {
	h := NewBinaryHeap(4)
	h.Push(5, 10, 0)
	h.Push(2, 10, 0)
	h.Push(3, 10, 0)
	for _, want := range []uint32{2, 3, 5} {
		node, _, _ := h.Pop()
		if node != want {
			t.Fatalf("expected pop order to favor lower node id, got %d want %d", node, want)
		}
	}
}

func TestBidirectionalSeeded(t *testing.T) {
	fwd := buildDirected(4, [][3]uint32{{0, 1, 1}, {1, 2, 1}, {2, 3, 1}})
	bwd := buildDirected(4, [][3]uint32{{3, 2, 1}, {2, 1, 1}, {1, 0, 1}})
	st := NewBiState(4)
	st.Fwd.Reset()
	st.Bwd.Reset()
	st.Fwd.Seed(0, 0)
	st.Bwd.Seed(3, 0)
	cost, _, ok, err := RunBidirectional(context.Background(), fwd, bwd, st)
	if err != nil || !ok || cost != 3 {
		t.Fatalf("cost=%d ok=%v err=%v, want 3 true nil", cost, ok, err)
	}
}
