package sphere

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
	"pgregory.net/rapid"
)

func TestCentralAnglePoleToEquator(t *testing.T) {
	north := MustFromGeodetic(90, 0)
	equator := MustFromGeodetic(0, 0)
	got := AngleBetween(north, equator)
	want := math.Pi / 2
	if math.Abs(got-want) > 1e-10 {
		t.Fatalf("angle = %v, want %v", got, want)
	}
}

func TestGeodeticRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		lat := rapid.Float64Range(-89.9, 89.9).Draw(rt, "lat")
		lon := rapid.Float64Range(-179.9, 179.9).Draw(rt, "lon")
		p, err := FromGeodetic(lat, lon)
		if err != nil {
			rt.Fatalf("FromGeodetic: %v", err)
		}
		gotLat, gotLon := p.Geodetic()
		if math.Abs(gotLat-lat) > 1e-9 {
			rt.Fatalf("lat round-trip: got %v want %v", gotLat, lat)
		}
		if math.Abs(gotLon-lon) > 1e-9 {
			rt.Fatalf("lon round-trip: got %v want %v", gotLon, lon)
		}
	})
}

func TestTriangleInequality(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		mk := func(name string) Point {
			lat := rapid.Float64Range(-89, 89).Draw(rt, name+"lat")
			lon := rapid.Float64Range(-179, 179).Draw(rt, name+"lon")
			return MustFromGeodetic(lat, lon)
		}
		a, b, c := mk("a"), mk("b"), mk("c")
		ab := AngleBetween(a, b)
		bc := AngleBetween(b, c)
		ac := AngleBetween(a, c)
		if ac > ab+bc+1e-9 {
			rt.Fatalf("triangle inequality violated: ac=%v > ab+bc=%v", ac, ab+bc)
		}
	})
}

// TestAsymmetricEndpointRule reproduces the shared-vertex scenario: a ray
// crossing a polyline exactly at the shared vertex between two consecutive
// arcs must be reported by the arc whose To() is the vertex, and suppressed
// by the arc whose From() is the vertex.
func TestAsymmetricEndpointRule(t *testing.T) {
	p0 := MustFromGeodetic(0, 0)
	p1 := MustFromGeodetic(0, 10)
	p2 := MustFromGeodetic(0, 20)

	arc0, err := NewArc(p0, p1) // To() = p1
	if err != nil {
		t.Fatal(err)
	}
	arc1, err := NewArc(p1, p2) // From() = p1
	if err != nil {
		t.Fatal(err)
	}

	ray, err := NewArc(MustFromGeodetic(-10, 10), MustFromGeodetic(10, 10))
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := arc0.Intersection(ray); !ok {
		t.Errorf("expected intersection at shared vertex via arc0 (To() endpoint)")
	}
	if _, ok := arc1.Intersection(ray); ok {
		t.Errorf("expected no intersection via arc1 (From() endpoint) at shared vertex")
	}
}

func TestIntersectionSymmetryModuloEndpointRule(t *testing.T) {
	a := mustArc(t, MustFromGeodetic(-5, 0), MustFromGeodetic(5, 0))
	b := mustArc(t, MustFromGeodetic(0, -5), MustFromGeodetic(0, 5))

	p1, ok1 := a.Intersection(b)
	p2, ok2 := b.Intersection(a)
	if !ok1 || !ok2 {
		t.Fatalf("expected both directions to report a crossing, got ok1=%v ok2=%v", ok1, ok2)
	}
	if !p1.Equal(p2) {
		t.Errorf("intersection points differ: %+v vs %+v", p1, p2)
	}
}

func TestAntipodalArcRejected(t *testing.T) {
	a := MustFromGeodetic(0, 0)
	b := a.Antipode()
	if _, err := NewArc(a, b); err == nil {
		t.Fatalf("expected ErrAntipodal for antipodal endpoints")
	}
}

func TestRandomPointOnUnitSphere(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		p := RandomPoint(rnd)
		n := r3Norm(p.vec)
		if math.Abs(n-1) > 1e-9 {
			t.Fatalf("RandomPoint vector not unit length: %v", n)
		}
	}
}

// TestRandomPointIsAreaCorrect checks that sin(lat) is uniform on [-1, 1]
// rather than lat itself being uniform on [-pi/2, pi/2]: bucketing by
// sin(lat) should give roughly equal counts per bucket, while bucketing by
// lat directly would over-sample the polar buckets if RandomPoint were
// naively uniform in lat instead.
func TestRandomPointIsAreaCorrect(t *testing.T) {
	rnd := rand.New(rand.NewSource(2))
	const n = 200000
	const buckets = 10
	counts := make([]int, buckets)
	for i := 0; i < n; i++ {
		p := RandomPoint(rnd)
		lat, _ := p.Geodetic()
		s := math.Sin(lat * math.Pi / 180)
		b := int((s + 1) / 2 * buckets)
		if b == buckets {
			b = buckets - 1
		}
		counts[b]++
	}
	want := float64(n) / buckets
	for b, c := range counts {
		if math.Abs(float64(c)-want)/want > 0.05 {
			t.Errorf("bucket %d count %d deviates >5%% from expected %v (sin(lat) not uniform)", b, c, want)
		}
	}
}

func r3Norm(v r3.Vec) float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

func mustArc(t *testing.T, a, b Point) Arc {
	t.Helper()
	arc, err := NewArc(a, b)
	if err != nil {
		t.Fatal(err)
	}
	return arc
}
