// Package mathgeom implements the sphere/OBB/ray collision primitives
// shared by map generation, player physics, and lag-compensated hit
// testing. The broadphase-then-narrowphase structure mirrors the
// original engine's math routines (sphere_vs_obb, raycast_obb) closely
// enough that a port reader can check them side by side.
package mathgeom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Sphere is a bounding volume used for both player capsule approximation
// and shot-vs-player hit testing.
type Sphere struct {
	Center mgl64.Vec3
	Radius float64
}

// AABB is only ever used in an OBB's local space.
type AABB struct {
	Min, Max mgl64.Vec3
}

// OBB is an oriented bounding box: a rotated AABB plus a precomputed
// bounding sphere radius for cheap broadphase rejection.
type OBB struct {
	Center       mgl64.Vec3
	HalfExtents  mgl64.Vec3
	Rotation     mgl64.Quat
	BoundsRadius float64
}

// NewOBB builds an OBB and precomputes its bounding sphere radius.
func NewOBB(center, halfExtents mgl64.Vec3, rotation mgl64.Quat) OBB {
	return OBB{
		Center:       center,
		HalfExtents:  halfExtents,
		Rotation:     rotation,
		BoundsRadius: halfExtents.Len(),
	}
}

// Ray is a bounded line segment: origin, normalized direction, length.
type Ray struct {
	Origin    mgl64.Vec3
	Direction mgl64.Vec3
	Length    float64
}

// Contact describes a penetrating collision: the corrective normal
// (pointing away from the solid) and the penetration depth.
type Contact struct {
	Point  mgl64.Vec3
	Normal mgl64.Vec3
	Depth  float64
}

// RayHit describes where along a ray a hit occurred.
type RayHit struct {
	Point    mgl64.Vec3
	Normal   mgl64.Vec3
	Distance float64
}

func clampVec(v, lo, hi mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{
		clampFloat(v[0], lo[0], hi[0]),
		clampFloat(v[1], lo[1], hi[1]),
		clampFloat(v[2], lo[2], hi[2]),
	}
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func sphereVsAABBLocal(sphere Sphere, box AABB) (Contact, bool) {
	closest := clampVec(sphere.Center, box.Min, box.Max)
	delta := closest.Sub(sphere.Center)
	distSq := delta.Dot(delta)
	if distSq > sphere.Radius*sphere.Radius {
		return Contact{}, false
	}

	toMin := sphere.Center.Sub(box.Min)
	toMax := box.Max.Sub(sphere.Center)
	distances := [6]float64{toMin[0], toMin[1], toMin[2], toMax[0], toMax[1], toMax[2]}

	minAxis := 0
	minDist := distances[0]
	for i := 1; i < 6; i++ {
		if distances[i] < minDist {
			minDist = distances[i]
			minAxis = i
		}
	}

	var contact Contact
	if minAxis < 3 {
		normal := mgl64.Vec3{}
		normal[minAxis] = -1
		point := sphere.Center
		point[minAxis] = box.Min[minAxis]
		contact.Normal = normal
		contact.Point = point
	} else {
		axis := minAxis - 3
		normal := mgl64.Vec3{}
		normal[axis] = 1
		point := sphere.Center
		point[axis] = box.Max[axis]
		contact.Normal = normal
		contact.Point = point
	}
	contact.Depth = minDist + sphere.Radius
	return contact, true
}

// SphereVsSphere tests two spheres for overlap. Unlike the OBB tests,
// the contact normal points from `a` toward `b`; subtracting
// Normal*Depth from `a` separates the two.
func SphereVsSphere(a, b Sphere) (Contact, bool) {
	delta := b.Center.Sub(a.Center)
	distSq := delta.Dot(delta)
	radiusSum := a.Radius + b.Radius
	if distSq > radiusSum*radiusSum {
		return Contact{}, false
	}
	dist := math.Sqrt(distSq)
	var normal mgl64.Vec3
	if dist > 1e-9 {
		normal = delta.Mul(1 / dist)
	} else {
		normal = mgl64.Vec3{1, 0, 0}
	}
	return Contact{
		Normal: normal,
		Depth:  radiusSum - dist,
		Point:  a.Center.Add(normal.Mul(a.Radius)),
	}, true
}

// SphereVsOBB tests a sphere against an oriented box via a broadphase
// bounding-sphere check followed by a local-space AABB test.
func SphereVsOBB(sphere Sphere, obb OBB) (Contact, bool) {
	delta := obb.Center.Sub(sphere.Center)
	distSq := delta.Dot(delta)
	radiusSum := sphere.Radius + obb.BoundsRadius
	if distSq >= radiusSum*radiusSum {
		return Contact{}, false
	}

	inv := obb.Rotation.Conjugate()
	localSphere := Sphere{
		Center: inv.Rotate(sphere.Center.Sub(obb.Center)),
		Radius: sphere.Radius,
	}
	localBox := AABB{Min: obb.HalfExtents.Mul(-1), Max: obb.HalfExtents}

	localContact, hit := sphereVsAABBLocal(localSphere, localBox)
	if !hit {
		return Contact{}, false
	}

	return Contact{
		Normal: obb.Rotation.Rotate(localContact.Normal),
		Point:  obb.Rotation.Rotate(localContact.Point).Add(obb.Center),
		Depth:  localContact.Depth,
	}, true
}

func raycastAABB(ray Ray, box AABB) (RayHit, bool) {
	invDir := mgl64.Vec3{1 / ray.Direction[0], 1 / ray.Direction[1], 1 / ray.Direction[2]}
	tMin := mgl64.Vec3{
		(box.Min[0] - ray.Origin[0]) * invDir[0],
		(box.Min[1] - ray.Origin[1]) * invDir[1],
		(box.Min[2] - ray.Origin[2]) * invDir[2],
	}
	tMax := mgl64.Vec3{
		(box.Max[0] - ray.Origin[0]) * invDir[0],
		(box.Max[1] - ray.Origin[1]) * invDir[1],
		(box.Max[2] - ray.Origin[2]) * invDir[2],
	}

	t1 := mgl64.Vec3{math.Min(tMin[0], tMax[0]), math.Min(tMin[1], tMax[1]), math.Min(tMin[2], tMax[2])}
	t2 := mgl64.Vec3{math.Max(tMin[0], tMax[0]), math.Max(tMin[1], tMax[1]), math.Max(tMin[2], tMax[2])}

	tNear := math.Max(math.Max(t1[0], t1[1]), t1[2])
	tFar := math.Min(math.Min(t2[0], t2[1]), t2[2])

	if tNear > tFar || tFar < 0 || tNear > ray.Length {
		return RayHit{}, false
	}

	t := tNear
	if t <= 0 {
		t = tFar
	}

	nearAxis := 0
	if t1[0] > t1[1] {
		if t1[0] > t1[2] {
			nearAxis = 0
		} else {
			nearAxis = 2
		}
	} else {
		if t1[1] > t1[2] {
			nearAxis = 1
		} else {
			nearAxis = 2
		}
	}

	normal := mgl64.Vec3{}
	if invDir[nearAxis] > 0 {
		normal[nearAxis] = -1
	} else {
		normal[nearAxis] = 1
	}

	return RayHit{
		Distance: t,
		Point:    ray.Origin.Add(ray.Direction.Mul(t)),
		Normal:   normal,
	}, true
}

// RaycastSphere intersects a ray against a sphere at the given position/radius.
func RaycastSphere(ray Ray, position mgl64.Vec3, radius float64) (RayHit, bool) {
	toSphere := position.Sub(ray.Origin)
	proj := toSphere.Dot(ray.Direction)
	closest := ray.Origin.Add(ray.Direction.Mul(proj))
	diff := closest.Sub(position)
	distSq := diff.Dot(diff)
	if distSq > radius*radius {
		return RayHit{}, false
	}

	halfChord := math.Sqrt(radius*radius - distSq)
	t := proj - halfChord
	if t < 0 || t > ray.Length {
		return RayHit{}, false
	}

	point := ray.Origin.Add(ray.Direction.Mul(t))
	return RayHit{
		Distance: t,
		Point:    point,
		Normal:   point.Sub(position).Normalize(),
	}, true
}

// RaycastOBB intersects a ray against an oriented box, broadphased by
// the box's bounding sphere before transforming into its local space.
func RaycastOBB(ray Ray, obb OBB) (RayHit, bool) {
	toOBB := obb.Center.Sub(ray.Origin)
	proj := toOBB.Dot(ray.Direction)
	if proj < -obb.BoundsRadius || proj > ray.Length+obb.BoundsRadius {
		return RayHit{}, false
	}

	closest := ray.Origin.Add(ray.Direction.Mul(proj))
	diff := closest.Sub(obb.Center)
	if diff.Dot(diff) >= obb.BoundsRadius*obb.BoundsRadius {
		return RayHit{}, false
	}

	inv := obb.Rotation.Conjugate()
	localRay := Ray{
		Origin:    inv.Rotate(ray.Origin.Sub(obb.Center)),
		Direction: inv.Rotate(ray.Direction),
		Length:    ray.Length,
	}
	localBox := AABB{Min: obb.HalfExtents.Mul(-1), Max: obb.HalfExtents}

	hit, ok := raycastAABB(localRay, localBox)
	if !ok {
		return RayHit{}, false
	}

	hit.Point = obb.Rotation.Rotate(hit.Point).Add(obb.Center)
	hit.Normal = obb.Rotation.Rotate(hit.Normal)
	return hit, true
}
