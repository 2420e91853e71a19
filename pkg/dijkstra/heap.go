// Package dijkstra provides a shared shortest-path kernel used by
// hub-label construction and the CH bidirectional query (pkg/ch's witness
// search keeps its own heap).
// It generalizes the concrete hole-sift binary heaps that used to be
// duplicated per call site into one reusable implementation, plus a
// rotating bucket queue for small-integer-weight graphs.
package dijkstra

import "math"

// MaxCost is the sentinel "unreached" distance.
const MaxCost = math.MaxUint32

// item is a priority queue entry keyed by tentative cost.
type item struct {
	node uint32
	cost uint32
	hops int32
}

// BinaryHeap is a concrete-typed min-heap keyed by cost, using hole-sift
// siftUp/siftDown (one assignment per level instead of three for a swap).
// Stale entries are left in place and discarded lazily on Pop.
type BinaryHeap struct {
	items []item
}

// NewBinaryHeap returns an empty heap with capacity hint capHint.
func NewBinaryHeap(capHint int) *BinaryHeap {
	return &BinaryHeap{items: make([]item, 0, capHint)}
}

func (h *BinaryHeap) Len() int { return len(h.items) }

func (h *BinaryHeap) Push(node, cost uint32, hops int32) {
	h.items = append(h.items, item{node, cost, hops})
	h.siftUp(len(h.items) - 1)
}

func (h *BinaryHeap) Pop() (node, cost uint32, hops int32) {
	n := len(h.items) - 1
	top := h.items[0]
	h.items[0] = h.items[n]
	h.items = h.items[:n]
	if n > 0 {
		h.siftDown(0)
	}
	return top.node, top.cost, top.hops
}

func (h *BinaryHeap) PeekCost() uint32 {
	if len(h.items) == 0 {
		return MaxCost
	}
	return h.items[0].cost
}

func (h *BinaryHeap) Reset() {
	h.items = h.items[:0]
}

// less orders items by cost, breaking ties on the lower node id so pop order
// is fully deterministic for multi-optimal paths (two equal-priority/cost
// entries never compare equal).
func less(a, b item) bool {
	if a.cost != b.cost {
		return a.cost < b.cost
	}
	return a.node < b.node
}

func (h *BinaryHeap) siftUp(i int) {
	it := h.items[i]
	for i > 0 {
		parent := (i - 1) / 2
		if !less(it, h.items[parent]) {
			break
		}
		h.items[i] = h.items[parent]
		i = parent
	}
	h.items[i] = it
}

func (h *BinaryHeap) siftDown(i int) {
	n := len(h.items)
	it := h.items[i]
	for {
		child := 2*i + 1
		if child >= n {
			break
		}
		if right := child + 1; right < n && less(h.items[right], h.items[child]) {
			child = right
		}
		if !less(h.items[child], it) {
			break
		}
		h.items[i] = h.items[child]
		i = child
	}
	h.items[i] = it
}

// BucketQueue is a rotating-bucket priority queue for bounded integer
// weights, ported from the original's BucketQueue (routing/bucket_queue.rs).
// It is cheaper than a binary heap when edge costs are small integers with a
// known upper bound, at the cost of O(numBuckets) worst-case pop scans.
type BucketQueue struct {
	buckets [][]item
	current int
}

// NewBucketQueue creates a bucket queue with numBuckets rotating slots;
// callers should size numBuckets to roughly the max single-edge cost seen.
func NewBucketQueue(numBuckets int) *BucketQueue {
	if numBuckets < 1 {
		numBuckets = 1
	}
	return &BucketQueue{buckets: make([][]item, numBuckets)}
}

func (q *BucketQueue) Push(node, cost uint32, hops int32) {
	idx := int(cost) % len(q.buckets)
	q.buckets[idx] = append(q.buckets[idx], item{node, cost, hops})
}

// Pop returns the lowest-cost entry, scanning forward from the last
// successful bucket (costs are non-decreasing across pops in a Dijkstra run
// with bounded edge weight, so this amortizes to O(1)).
func (q *BucketQueue) Pop() (node, cost uint32, hops int32, ok bool) {
	n := len(q.buckets)
	for i := 0; i < n; i++ {
		idx := (q.current + i) % n
		b := q.buckets[idx]
		if len(b) == 0 {
			continue
		}
		// Within a bucket, scan for the minimum entry (collisions mod n),
		// tiebreaking on node id for the same determinism reason as BinaryHeap.
		minPos := 0
		for j := 1; j < len(b); j++ {
			if less(b[j], b[minPos]) {
				minPos = j
			}
		}
		it := b[minPos]
		b[minPos] = b[len(b)-1]
		q.buckets[idx] = b[:len(b)-1]
		q.current = idx
		return it.node, it.cost, it.hops, true
	}
	return 0, 0, 0, false
}

func (q *BucketQueue) Len() int {
	total := 0
	for _, b := range q.buckets {
		total += len(b)
	}
	return total
}

func (q *BucketQueue) Reset() {
	for i := range q.buckets {
		q.buckets[i] = q.buckets[i][:0]
	}
	q.current = 0
}
