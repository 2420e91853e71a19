package sphere

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Arc is the minor great-circle arc between two Points. The ordering of
// From/To matters: intersection reporting is asymmetric with respect to it
// (see Intersection).
type Arc struct {
	from, to Point
	normal   r3.Vec // unit normal of the great circle through from and to
}

// NewArc builds the minor arc from a to b. Returns ErrAntipodal if a and b
// are (within tolerance) antipodal, since the minor arc is then undefined.
func NewArc(a, b Point) (Arc, error) {
	cross := r3.Cross(a.vec, b.vec)
	n := r3.Norm(cross)
	if n < 1e-12 {
		// Either identical or antipodal; identical has zero angle and is a
		// degenerate but harmless arc, antipodal is genuinely undefined.
		if r3.Dot(a.vec, b.vec) < 0 {
			return Arc{}, ErrAntipodal
		}
		return Arc{from: a, to: b, normal: r3.Vec{}}, nil
	}
	return Arc{from: a, to: b, normal: r3.Scale(1/n, cross)}, nil
}

// From returns the arc's start point.
func (a Arc) From() Point { return a.from }

// To returns the arc's end point.
func (a Arc) To() Point { return a.to }

// CentralAngle returns the arc's length in radians.
func (a Arc) CentralAngle() float64 {
	return AngleBetween(a.from, a.to)
}

// InitialBearing returns the compass bearing (radians clockwise from north,
// in [0, 2*pi)) of a ray leaving From() towards To().
func (a Arc) InitialBearing() float64 {
	north := r3.Vec{X: 0, Y: 0, Z: 1}
	fromVec := a.from.vec
	northLocal := r3.Unit(r3.Sub(north, r3.Scale(r3.Dot(north, fromVec), fromVec)))
	east := r3.Unit(r3.Cross(northLocal, fromVec))

	toDir := r3.Unit(r3.Sub(a.to.vec, r3.Scale(r3.Dot(a.to.vec, fromVec), fromVec)))
	bearing := math.Atan2(r3.Dot(toDir, east), r3.Dot(toDir, northLocal))
	if bearing < 0 {
		bearing += 2 * math.Pi
	}
	return bearing
}

// sideNormals returns the two half-plane normals bounding this arc's span
// along its great circle: a candidate point p lies between From() and To()
// iff dot(p, sideFrom) >= 0 and dot(p, sideTo) >= 0.
func (a Arc) sideNormals() (sideFrom, sideTo r3.Vec) {
	sideFrom = r3.Cross(a.normal, a.from.vec)
	sideTo = r3.Cross(a.to.vec, a.normal)
	return
}

func (a Arc) withinSpan(p r3.Vec) bool {
	sideFrom, sideTo := a.sideNormals()
	return r3.Dot(p, sideFrom) >= -1e-12 && r3.Dot(p, sideTo) >= -1e-12
}

// Intersection returns the point at which a and b cross, if any.
//
// Asymmetric endpoint rule: an intersection exactly at a's From() endpoint
// is suppressed (not reported), while one exactly at a's To() endpoint is
// reported. This makes a chain of consecutive arcs sharing endpoints report
// exactly one intersection per true crossing, rather than double-counting
// or missing the shared vertex, matching the original's validated behavior
// in arc.rs.
func (a Arc) Intersection(b Arc) (Point, bool) {
	if r3.Norm(a.normal) < 1e-15 || r3.Norm(b.normal) < 1e-15 {
		return Point{}, false
	}

	cross := r3.Cross(a.normal, b.normal)
	n := r3.Norm(cross)
	if n < 1e-15 {
		return Point{}, false // coincident or parallel great circles
	}
	candidate := r3.Scale(1/n, cross)

	for _, cand := range [2]r3.Vec{candidate, r3.Scale(-1, candidate)} {
		if !a.withinSpan(cand) || !b.withinSpan(cand) {
			continue
		}
		p := FromVec(cand)
		if p.Equal(a.from) {
			continue // suppressed: matches the asymmetric endpoint rule
		}
		return p, true
	}
	return Point{}, false
}

// Collides reports whether a and b cross at all (equivalent to Intersection
// succeeding, but named for readability at call sites that only need the
// boolean).
func (a Arc) Collides(b Arc) bool {
	_, ok := a.Intersection(b)
	return ok
}
