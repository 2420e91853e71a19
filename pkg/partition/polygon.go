package partition

import (
	"context"

	"golang.org/x/sync/errgroup"

	"shiproute/pkg/sphere"
)

// polyNode is one node of the PolygonPartition quad-tree: either an
// internal node with four children, or a leaf holding the arcs inserted
// into it, following the original's NodeType::Internal/Leaf split.
type polyNode struct {
	boundary     Quad
	children     []*polyNode // nil for a leaf
	arcs         []sphere.Arc
	midpoint     sphere.Point
	midpointFlag bool // true = inside
	maxLeafSize  int
}

// PolygonPartition classifies points as inside or outside the union of the
// polygons inserted into it, via recursive spherical quad-tree descent and
// ray-cast parity, following grids/planet_grid.rs.
type PolygonPartition struct {
	root *polyNode
}

// NewPolygonPartition creates an empty partition; maxLeafSize bounds the
// number of arcs a leaf holds before it splits.
func NewPolygonPartition(maxLeafSize int) *PolygonPartition {
	root := &polyNode{maxLeafSize: maxLeafSize}
	tiles := BaseTiling()
	root.children = make([]*polyNode, len(tiles))
	for i, t := range tiles {
		root.children[i] = &polyNode{boundary: t, midpoint: t.Midpoint(), maxLeafSize: maxLeafSize}
	}
	root.midpoint = sphere.MustFromGeodetic(0, 0)
	root.midpointFlag = false
	return &PolygonPartition{root: root}
}

// InsertPolygon adds a closed polyline (first point repeated as last) as a
// sequence of arcs. Not safe for concurrent use.
func (p *PolygonPartition) InsertPolygon(ring []sphere.Point) error {
	for i := 0; i+1 < len(ring); i++ {
		arc, err := sphere.NewArc(ring[i], ring[i+1])
		if err != nil {
			return err
		}
		p.insertArc(arc)
	}
	return nil
}

func (p *PolygonPartition) insertArc(arc sphere.Arc) {
	insertArcInto(p.root, arc)
}

func insertArcInto(n *polyNode, arc sphere.Arc) {
	stack := []*polyNode{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if cur.children == nil {
			cur.arcs = append(cur.arcs, arc)
			if len(cur.arcs) >= cur.maxLeafSize && cur.boundary.edgeAngularLenMeters() >= splitFloorMeters {
				splitLeaf(cur)
			}
			continue
		}
		for _, child := range cur.children {
			containsFrom := child.boundary.Contains(arc.From())
			containsTo := child.boundary.Contains(arc.To())
			if containsFrom && containsTo {
				stack = append(stack, child)
				break
			} else if child.boundary.Collides(arc) {
				stack = append(stack, child)
			}
		}
	}
}

func splitLeaf(n *polyNode) {
	oldArcs := n.arcs
	n.arcs = nil
	quads := n.boundary.Split()
	n.children = make([]*polyNode, 4)
	for i, q := range quads {
		n.children[i] = &polyNode{boundary: q, midpoint: q.Midpoint(), maxLeafSize: n.maxLeafSize}
	}
	for _, arc := range oldArcs {
		insertArcInto(n, arc)
	}
}

// PropagateStatus computes, for every node, whether its midpoint lies
// inside or outside the inserted polygons, seeded by the caller's
// independent classification of the root. Must be called once after all
// polygons are inserted and before any Classify call.
func (p *PolygonPartition) PropagateStatus(rootInside bool) {
	p.root.midpointFlag = rootInside
	stack := []*polyNode{p.root}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur.children == nil {
			continue
		}
		for _, child := range cur.children {
			ray, err := sphere.NewArc(cur.midpoint, child.midpoint)
			count := 0
			if err == nil {
				count = countIntersections(cur, ray)
			}
			if count%2 == 0 {
				child.midpointFlag = cur.midpointFlag
			} else {
				child.midpointFlag = !cur.midpointFlag
			}
			stack = append(stack, child)
		}
	}
}

// countIntersections counts crossings of ray against every arc stored
// beneath n, descending only into children whose boundary could plausibly
// contain an intersection (mirrors the original's SpatialPartition::
// intersections).
func countIntersections(n *polyNode, ray sphere.Arc) int {
	if n.children == nil {
		count := 0
		for _, arc := range n.arcs {
			if _, ok := arc.Intersection(ray); ok {
				count++
			}
		}
		return count
	}
	total := 0
	for _, child := range n.children {
		if child.boundary.Contains(ray.From()) || child.boundary.Contains(ray.To()) || child.boundary.Collides(ray) {
			total += countIntersections(child, ray)
		}
	}
	return total
}

// Classify reports whether point lies inside the union of inserted
// polygons.
func (p *PolygonPartition) Classify(point sphere.Point) bool {
	cur := p.root
	for cur.children != nil {
		found := false
		for _, child := range cur.children {
			if child.boundary.Contains(point) {
				cur = child
				found = true
				break
			}
		}
		if !found {
			// Point falls in a boundary gap between children (numerical
			// edge case); fall back to the current node's own flag.
			return cur.midpointFlag
		}
	}
	ray, err := sphere.NewArc(point, cur.midpoint)
	if err != nil {
		return cur.midpointFlag
	}
	count := 0
	for _, arc := range cur.arcs {
		if _, ok := arc.Intersection(ray); ok {
			count++
		}
	}
	return (count%2 == 0) == cur.midpointFlag
}

// Collides reports whether arc crosses any inserted polygon arc.
func (p *PolygonPartition) Collides(arc sphere.Arc) bool {
	stack := []*polyNode{p.root}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur.children == nil {
			for _, a := range cur.arcs {
				if a.Collides(arc) {
					return true
				}
			}
			continue
		}
		for _, child := range cur.children {
			containsFrom := child.boundary.Contains(arc.From())
			containsTo := child.boundary.Contains(arc.To())
			if containsFrom && containsTo {
				stack = append(stack, child)
				break
			} else if child.boundary.Collides(arc) {
				stack = append(stack, child)
			}
		}
	}
	return false
}

// ClassifyBatch classifies a batch of points concurrently using a bounded
// worker pool, for the bulk classification workloads graph sampling needs.
func (p *PolygonPartition) ClassifyBatch(ctx context.Context, points []sphere.Point, workers int) ([]bool, error) {
	results := make([]bool, len(points))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range points {
		i := i
		g.Go(func() error {
			results[i] = p.Classify(points[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
