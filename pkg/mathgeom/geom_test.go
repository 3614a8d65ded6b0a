package mathgeom

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestSphereVsSphereOverlap(t *testing.T) {
	a := Sphere{Center: mgl64.Vec3{0, 0, 0}, Radius: 1}
	b := Sphere{Center: mgl64.Vec3{1.5, 0, 0}, Radius: 1}

	contact, hit := SphereVsSphere(a, b)
	if !hit {
		t.Fatal("expected overlap")
	}
	if contact.Depth <= 0 {
		t.Fatalf("expected positive penetration depth, got %v", contact.Depth)
	}
}

func TestSphereVsOBBAxisAligned(t *testing.T) {
	box := NewOBB(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1}, mgl64.QuatIdent())
	sphere := Sphere{Center: mgl64.Vec3{1.5, 0, 0}, Radius: 1}

	contact, hit := SphereVsOBB(sphere, box)
	if !hit {
		t.Fatal("expected sphere to overlap box")
	}
	if contact.Normal.X() <= 0 {
		t.Fatalf("expected normal pointing +X away from box, got %v", contact.Normal)
	}
}

func TestRaycastOBBHitsFace(t *testing.T) {
	box := NewOBB(mgl64.Vec3{0, 0, 5}, mgl64.Vec3{1, 1, 1}, mgl64.QuatIdent())
	ray := Ray{Origin: mgl64.Vec3{0, 0, 0}, Direction: mgl64.Vec3{0, 0, 1}, Length: 10}

	hit, ok := RaycastOBB(ray, box)
	if !ok {
		t.Fatal("expected ray to hit box")
	}
	if hit.Distance < 3.9 || hit.Distance > 4.1 {
		t.Fatalf("expected hit distance near 4, got %v", hit.Distance)
	}
}

func TestRaycastOBBMisses(t *testing.T) {
	box := NewOBB(mgl64.Vec3{10, 10, 10}, mgl64.Vec3{1, 1, 1}, mgl64.QuatIdent())
	ray := Ray{Origin: mgl64.Vec3{0, 0, 0}, Direction: mgl64.Vec3{0, 0, 1}, Length: 10}

	if _, ok := RaycastOBB(ray, box); ok {
		t.Fatal("expected ray to miss distant box")
	}
}

func TestRaycastSphere(t *testing.T) {
	ray := Ray{Origin: mgl64.Vec3{0, 0, 0}, Direction: mgl64.Vec3{1, 0, 0}, Length: 10}
	hit, ok := RaycastSphere(ray, mgl64.Vec3{5, 0, 0}, 1)
	if !ok {
		t.Fatal("expected ray to hit sphere")
	}
	if hit.Distance < 3.9 || hit.Distance > 4.1 {
		t.Fatalf("expected hit distance near 4 (before entering the sphere), got %v", hit.Distance)
	}
}
