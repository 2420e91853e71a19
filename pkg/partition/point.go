package partition

import "shiproute/pkg/sphere"

// pointLeafItem pairs a stored point with a caller-supplied identifier
// (e.g. a graph node id), so PointPartition can be used as a nearest-node
// index.
type pointLeafItem struct {
	point sphere.Point
	id    uint32
}

type pointNode struct {
	boundary    Quad
	children    []*pointNode
	items       []pointLeafItem
	maxLeafSize int
}

// PointPartition answers "which inserted points fall within a query
// region" by recursive quad-tree descent. No other package uses it;
// routing queries snap through pkg/routing's flat-grid Snapper.
type PointPartition struct {
	root *pointNode
}

// NewPointPartition creates an empty point partition.
func NewPointPartition(maxLeafSize int) *PointPartition {
	root := &pointNode{maxLeafSize: maxLeafSize}
	tiles := BaseTiling()
	root.children = make([]*pointNode, len(tiles))
	for i, t := range tiles {
		root.children[i] = &pointNode{boundary: t, maxLeafSize: maxLeafSize}
	}
	return &PointPartition{root: root}
}

// Insert adds a point with an associated id. Not safe for concurrent use.
func (p *PointPartition) Insert(point sphere.Point, id uint32) {
	stack := []*pointNode{p.root}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if cur.children == nil {
			cur.items = append(cur.items, pointLeafItem{point: point, id: id})
			if len(cur.items) >= cur.maxLeafSize && cur.boundary.edgeAngularLenMeters() >= splitFloorMeters {
				splitPointLeaf(cur)
			}
			continue
		}
		for _, child := range cur.children {
			if child.boundary.Contains(point) {
				stack = append(stack, child)
				break
			}
		}
	}
}

func splitPointLeaf(n *pointNode) {
	oldItems := n.items
	n.items = nil
	quads := n.boundary.Split()
	n.children = make([]*pointNode, 4)
	for i, q := range quads {
		n.children[i] = &pointNode{boundary: q, maxLeafSize: n.maxLeafSize}
	}
	for _, item := range oldItems {
		reinsert(n, item)
	}
}

func reinsert(n *pointNode, item pointLeafItem) {
	for _, child := range n.children {
		if child.boundary.Contains(item.point) {
			if child.children == nil {
				child.items = append(child.items, item)
				if len(child.items) >= child.maxLeafSize && child.boundary.edgeAngularLenMeters() >= splitFloorMeters {
					splitPointLeaf(child)
				}
			} else {
				reinsert(child, item)
			}
			return
		}
	}
}

// QueryRegion returns the ids of every point stored in the leaves it
// reaches. It descends only into children whose midpoint lies in the query
// quad or whose boundary crosses the quad's corners[0]-corners[2]
// diagonal, so a leaf that overlaps the quad in neither way is not
// visited, and within a visited leaf the points are not filtered by
// Quad.Contains.
func (p *PointPartition) QueryRegion(region Quad) []uint32 {
	var out []uint32
	stack := []*pointNode{p.root}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur.children == nil {
			for _, item := range cur.items {
				out = append(out, item.id)
			}
			continue
		}
		for _, child := range cur.children {
			if region.Contains(child.boundary.Midpoint()) || child.boundary.Collides(regionDiagonal(region)) {
				stack = append(stack, child)
			}
		}
	}
	return out
}

// regionDiagonal approximates a query region's extent as an arc across one
// diagonal, used only as a cheap collision probe in QueryRegion.
func regionDiagonal(q Quad) (arc sphere.Arc) {
	arc, _ = sphere.NewArc(q.corners[0], q.corners[2])
	return
}

// Nearest returns the id and point of the inserted point closest to query
// within a single leaf: at each level it descends into the child whose
// midpoint is nearest query, then scans only that leaf's points. A closer
// point stored in another leaf is not found, and ok is false when the
// chosen leaf is empty.
func (p *PointPartition) Nearest(query sphere.Point) (id uint32, point sphere.Point, ok bool) {
	cur := p.root
	for cur.children != nil {
		next := cur.children[0]
		best := sphere.AngleBetween(query, next.boundary.Midpoint())
		for _, child := range cur.children[1:] {
			d := sphere.AngleBetween(query, child.boundary.Midpoint())
			if d < best {
				best = d
				next = child
			}
		}
		cur = next
	}
	if len(cur.items) == 0 {
		return 0, sphere.Point{}, false
	}
	bestIdx := 0
	bestDist := sphere.AngleBetween(query, cur.items[0].point)
	for i := 1; i < len(cur.items); i++ {
		d := sphere.AngleBetween(query, cur.items[i].point)
		if d < bestDist {
			bestDist = d
			bestIdx = i
		}
	}
	return cur.items[bestIdx].id, cur.items[bestIdx].point, true
}
