// Package partition implements a recursive spherical quad-tree over convex
// spherical quadrilaterals, used to classify points as inside/outside a set
// of polygons (PolygonPartition) and to answer point-in-region queries
// (PointPartition). Grounded in the original ship_routing's
// grids/planet_grid.rs SpatialPartition/ConvecQuadrilateral design,
// re-expressed over pkg/sphere's n-vector primitives.
package partition

import (
	"shiproute/pkg/sphere"

	"gonum.org/v1/gonum/spatial/r3"
)

// splitFloorMeters is the minimum boundary edge angular length below which
// a leaf will not split further, preventing pathological subdivision near
// already-fine boundaries (ported from the original's 10 m floor in
// add_arc).
const splitFloorMeters = 10.0

// Quad is a convex spherical quadrilateral, stored as its four corners in
// consistent (counter-clockwise, viewed from outside the sphere) winding
// order.
type Quad struct {
	corners [4]sphere.Point
	edges   [4]sphere.Arc // corners[i] -> corners[(i+1)%4]
}

// NewQuad builds a Quad from four corners in CCW winding order.
func NewQuad(c0, c1, c2, c3 sphere.Point) Quad {
	q := Quad{corners: [4]sphere.Point{c0, c1, c2, c3}}
	for i := 0; i < 4; i++ {
		a, err := sphere.NewArc(q.corners[i], q.corners[(i+1)%4])
		if err != nil {
			// Degenerate edge (duplicate corners at a pole); keep a
			// zero-length arc rather than propagating the error, since the
			// base tiling's polar corners are expected to coincide.
			a = sphere.Arc{}
		}
		q.edges[i] = a
	}
	return q
}

// Midpoint returns the (non-normalized-average-then-projected) center of
// the quad, used as the spatial partition node's representative point for
// parity propagation.
func (q Quad) Midpoint() sphere.Point {
	var sum r3.Vec
	for _, c := range q.corners {
		sum = r3.Add(sum, c.Vec())
	}
	return sphere.FromVec(sum)
}

// Contains reports whether p lies within the quad's boundary, using the
// half-plane test against each edge's great-circle normal. Assumes the
// quad's corners are wound so each edge's normal (corners[i] x
// corners[i+1]) points into the quad's interior.
func (q Quad) Contains(p sphere.Point) bool {
	for _, e := range q.edges {
		n := r3.Cross(e.From().Vec(), e.To().Vec())
		if r3.Dot(n, p.Vec()) < -1e-9 {
			return false
		}
	}
	return true
}

// Collides reports whether arc crosses any boundary edge of the quad.
func (q Quad) Collides(arc sphere.Arc) bool {
	for _, e := range q.edges {
		if e.Collides(arc) {
			return true
		}
	}
	return false
}

// edgeAngularLenMeters returns the angular length, in meters, of the quad's
// first boundary edge — used as the split-floor probe, matching the
// original's choice of outline[0..1].
func (q Quad) edgeAngularLenMeters() float64 {
	return sphere.RadiansToMeters(q.edges[0].CentralAngle())
}

// Split divides the quad into four children by connecting each edge
// midpoint to the quad's center.
func (q Quad) Split() [4]Quad {
	m01 := midpoint(q.corners[0], q.corners[1])
	m12 := midpoint(q.corners[1], q.corners[2])
	m23 := midpoint(q.corners[2], q.corners[3])
	m30 := midpoint(q.corners[3], q.corners[0])
	center := q.Midpoint()

	return [4]Quad{
		NewQuad(q.corners[0], m01, center, m30),
		NewQuad(m01, q.corners[1], m12, center),
		NewQuad(center, m12, q.corners[2], m23),
		NewQuad(m30, center, m23, q.corners[3]),
	}
}

func midpoint(a, b sphere.Point) sphere.Point {
	return sphere.FromVec(r3.Add(a.Vec(), b.Vec()))
}

// BaseTiling returns the 12-quad root subdivision of the sphere: four
// equatorial belt quads, four north-polar cap quads, and four south-polar
// cap quads, matching the original's Tiling::base_tiling initial split.
func BaseTiling() [12]Quad {
	northPole := sphere.MustFromGeodetic(90, 0)
	southPole := sphere.MustFromGeodetic(-90, 0)

	lons := [4]float64{-180, -90, 0, 90}
	// Corners of the belt/cap grid at the two ring latitudes.
	upper := [4]sphere.Point{} // lat +45
	lower := [4]sphere.Point{} // lat -45
	for i, lon := range lons {
		upper[i] = sphere.MustFromGeodetic(45, lon)
		lower[i] = sphere.MustFromGeodetic(-45, lon)
	}

	var tiles [12]Quad
	for i := 0; i < 4; i++ {
		j := (i + 1) % 4
		// North cap: pole, upper[i], upper[j] collapsed triangle as a quad
		// with a degenerate pole corner (handled by NewQuad's degenerate-edge
		// tolerance).
		tiles[i] = NewQuad(northPole, upper[i], upper[j], upper[j])
		// Equatorial belt, from lat -45 to lat +45.
		tiles[4+i] = NewQuad(lower[i], lower[j], upper[j], upper[i])
		// South cap.
		tiles[8+i] = NewQuad(lower[j], lower[i], southPole, southPole)
	}
	return tiles
}
