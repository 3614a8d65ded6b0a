package mapgen

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func vec3(x, y, z float64) mgl64.Vec3 { return mgl64.Vec3{x, y, z} }

func TestGenerateIsDeterministic(t *testing.T) {
	a := Generate()
	b := Generate()

	if len(a.Geometry) != len(b.Geometry) {
		t.Fatalf("geometry count differs: %d vs %d", len(a.Geometry), len(b.Geometry))
	}
	for i := range a.Geometry {
		if a.Geometry[i].Center != b.Geometry[i].Center {
			t.Fatalf("box %d center differs between generations: %v vs %v", i, a.Geometry[i].Center, b.Geometry[i].Center)
		}
	}
}

func TestSpawnPointAvoidsGeometry(t *testing.T) {
	m := Generate()
	seq := []float64{0.1, 0.9, 0.4, 0.6, 0.2, 0.8}
	i := 0
	rng := func() float64 {
		v := seq[i%len(seq)]
		i++
		return v
	}

	pos := m.SpawnPoint(rng)
	if m.intersects(pos) {
		t.Fatalf("spawn point %v collides with map geometry", pos)
	}
}

func TestHasLineOfSightBlockedByInteriorWall(t *testing.T) {
	m := Generate()
	// The interior wall segment at x=-12 spans z in [-18,18]; two points on
	// opposite sides of it at z=0 should not see each other.
	from := vec3(-20, 3, 0)
	to := vec3(0, 3, 0)

	if m.HasLineOfSight(from, to) {
		t.Fatal("expected interior wall to block line of sight")
	}
}

func TestHasLineOfSightOpenSpace(t *testing.T) {
	m := Generate()
	from := vec3(0, 4, 0)
	to := vec3(0, 4, 5)

	if !m.HasLineOfSight(from, to) {
		t.Fatal("expected clear line of sight over a short open span")
	}
}
