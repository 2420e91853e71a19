package partition

import (
	"testing"

	"shiproute/pkg/sphere"
)

// squareRing returns a small closed square polygon (lat/lon degrees)
// roughly 2x2 degrees around the equator/prime-meridian origin.
func squareRing() []sphere.Point {
	return []sphere.Point{
		sphere.MustFromGeodetic(-1, -1),
		sphere.MustFromGeodetic(-1, 1),
		sphere.MustFromGeodetic(1, 1),
		sphere.MustFromGeodetic(1, -1),
		sphere.MustFromGeodetic(-1, -1),
	}
}

func TestPolygonPartitionInsideOutsideParity(t *testing.T) {
	pp := NewPolygonPartition(4)
	if err := pp.InsertPolygon(squareRing()); err != nil {
		t.Fatalf("InsertPolygon: %v", err)
	}
	// The root's midpoint is lat 0, lon 0, which lies inside the square.
	pp.PropagateStatus(true)

	inside := sphere.MustFromGeodetic(0, 0)
	outside := sphere.MustFromGeodetic(30, 30)

	if !pp.Classify(inside) {
		t.Errorf("expected origin to classify inside the square")
	}
	if pp.Classify(outside) {
		t.Errorf("expected far point to classify outside the square")
	}
}

func TestPolygonPartitionCollides(t *testing.T) {
	pp := NewPolygonPartition(4)
	if err := pp.InsertPolygon(squareRing()); err != nil {
		t.Fatalf("InsertPolygon: %v", err)
	}

	crossing, err := sphere.NewArc(sphere.MustFromGeodetic(-5, 0), sphere.MustFromGeodetic(5, 0))
	if err != nil {
		t.Fatal(err)
	}
	if !pp.Collides(crossing) {
		t.Errorf("expected arc crossing the square boundary to collide")
	}

	faraway, err := sphere.NewArc(sphere.MustFromGeodetic(40, 40), sphere.MustFromGeodetic(41, 41))
	if err != nil {
		t.Fatal(err)
	}
	if pp.Collides(faraway) {
		t.Errorf("expected far-away arc not to collide")
	}
}

func TestPointPartitionNearest(t *testing.T) {
	ptp := NewPointPartition(4)
	a := sphere.MustFromGeodetic(10, 10)
	b := sphere.MustFromGeodetic(-10, -10)
	ptp.Insert(a, 1)
	ptp.Insert(b, 2)

	id, _, ok := ptp.Nearest(sphere.MustFromGeodetic(9, 9))
	if !ok || id != 1 {
		t.Fatalf("id=%d ok=%v, want 1 true", id, ok)
	}
}

func TestBaseTilingCoversPoles(t *testing.T) {
	tiles := BaseTiling()
	north := sphere.MustFromGeodetic(89, 0)
	south := sphere.MustFromGeodetic(-89, 0)

	foundNorth, foundSouth := false, false
	for _, tile := range tiles {
		if tile.Contains(north) {
			foundNorth = true
		}
		if tile.Contains(south) {
			foundSouth = true
		}
	}
	if !foundNorth {
		t.Errorf("no base tile contains a point near the north pole")
	}
	if !foundSouth {
		t.Errorf("no base tile contains a point near the south pole")
	}
}
