package graph

import (
	"testing"

	"pgregory.net/rapid"
)

// TestCleanRemovesSelfLoopsAndDuplicates exercises Clean on a small graph
// with both a self-loop and a parallel edge pair, verifying the cheaper of
// the parallel edges survives and the self-loop is gone.
func TestCleanRemovesSelfLoopsAndDuplicates(t *testing.T) {
	// Node 0 has a self-loop and a parallel 0->1 pair (cost 100 vs 150);
	// node 1 has a single 1->0 edge, node 2 a single 2->1 edge.
	g := &Graph{
		NumNodes: 3,
		NumEdges: 5,
		FirstOut: []uint32{0, 3, 4, 5},
		Head:     []uint32{1, 0, 1, 0, 1},
		Weight:   []uint32{100, 999, 150, 50, 30},
		NodeLat:  []float64{0, 0, 0},
		NodeLon:  []float64{0, 0, 0},
	}

	cleaned := g.Clean()

	start, end := cleaned.EdgesFrom(0)
	if end-start != 1 {
		t.Fatalf("node 0 has %d outgoing edges after Clean, want 1 (self-loop dropped, duplicate collapsed)", end-start)
	}
	if cleaned.Weight[start] != 100 {
		t.Errorf("surviving 0->1 edge weight = %d, want 100 (the cheaper of the parallel pair)", cleaned.Weight[start])
	}

	// Backward CSR must agree with the forward one.
	bs, be := cleaned.EdgesTo(1)
	found := false
	for e := bs; e < be; e++ {
		if cleaned.BackHead[e] == 0 {
			found = true
			if cleaned.BackWeight[e] != 100 {
				t.Errorf("backward edge 0->1 weight = %d, want 100", cleaned.BackWeight[e])
			}
		}
	}
	if !found {
		t.Errorf("backward CSR missing edge 0->1")
	}
}

// TestCleanIdempotent checks that cleaning an already-clean graph is a
// no-op: Clean(Clean(g)) has the same edge set as Clean(g).
func TestCleanIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(t, "n")
		numRaw := rapid.IntRange(0, 20).Draw(t, "numRaw")

		g := &Graph{NumNodes: uint32(n), NodeLat: make([]float64, n), NodeLon: make([]float64, n)}
		type rawEdge struct{ from, to, weight uint32 }
		var raw []rawEdge
		for i := 0; i < numRaw; i++ {
			from := uint32(rapid.IntRange(0, n-1).Draw(t, "from"))
			to := uint32(rapid.IntRange(0, n-1).Draw(t, "to"))
			w := uint32(rapid.IntRange(1, 1000).Draw(t, "w"))
			raw = append(raw, rawEdge{from, to, w})
		}
		// Build a forward CSR sorted by (from) preserving insertion order
		// within a node — good enough as Clean's input, it doesn't require
		// sorted or deduped input.
		byNode := make([][]rawEdge, n)
		for _, e := range raw {
			byNode[e.from] = append(byNode[e.from], e)
		}
		firstOut := make([]uint32, n+1)
		var head, weight []uint32
		for v := 0; v < n; v++ {
			firstOut[v] = uint32(len(head))
			for _, e := range byNode[v] {
				head = append(head, e.to)
				weight = append(weight, e.weight)
			}
		}
		firstOut[n] = uint32(len(head))
		g.FirstOut = firstOut
		g.Head = head
		g.Weight = weight
		g.NumEdges = uint32(len(head))

		once := g.Clean()
		twice := once.Clean()

		if len(once.Head) != len(twice.Head) {
			t.Fatalf("edge count changed on second Clean: %d vs %d", len(once.Head), len(twice.Head))
		}
		for i := range once.Head {
			if once.Head[i] != twice.Head[i] || once.Weight[i] != twice.Weight[i] {
				t.Fatalf("edge %d changed on second Clean: (%d,%d) vs (%d,%d)",
					i, once.Head[i], once.Weight[i], twice.Head[i], twice.Weight[i])
			}
		}
		for i := range once.FirstOut {
			if once.FirstOut[i] != twice.FirstOut[i] {
				t.Fatalf("FirstOut[%d] changed on second Clean: %d vs %d", i, once.FirstOut[i], twice.FirstOut[i])
			}
		}
	})
}
