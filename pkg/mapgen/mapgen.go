// Package mapgen builds the arena's static collision geometry. Server,
// client, and every bot call Generate and get back byte-identical
// geometry because the layout is a fixed literal list, not sampled from
// any RNG — determinism here doesn't depend on seeding discipline at
// all, only on nobody adding a call that isn't.
package mapgen

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"duelcore/pkg/mathgeom"
	"duelcore/pkg/simstate"
)

// Map is the immutable ordered list of oriented boxes that make up the
// arena: floor, outer walls, interior cover, ramps.
type Map struct {
	Geometry []mathgeom.OBB
}

func box(center, halfExtents mgl64.Vec3) mathgeom.OBB {
	return mathgeom.NewOBB(center, halfExtents, mgl64.QuatIdent())
}

func rotatedBox(center, halfExtents, axis mgl64.Vec3, angleDegrees float64) mathgeom.OBB {
	rot := mgl64.QuatRotate(angleDegrees*math.Pi/180, axis.Normalize())
	return mathgeom.NewOBB(center, halfExtents, rot)
}

// Generate returns the arena geometry. The layout below is fixed: floor
// slab, four boundary walls, a ring of interior cover pieces, two raised
// pillars pairs, corner towers, and two opposing 30-degree ramps.
func Generate() Map {
	var m Map
	add := func(o mathgeom.OBB) { m.Geometry = append(m.Geometry, o) }

	add(box(mgl64.Vec3{0, -1.0, 0}, mgl64.Vec3{60, 0.5, 60}))

	add(box(mgl64.Vec3{0, 4.0, -60}, mgl64.Vec3{60, 8.0, 0.5}))
	add(box(mgl64.Vec3{0, 4.0, 60}, mgl64.Vec3{60, 8.0, 0.5}))
	add(box(mgl64.Vec3{-60, 4.0, 0}, mgl64.Vec3{0.5, 8.0, 60}))
	add(box(mgl64.Vec3{60, 4.0, 0}, mgl64.Vec3{0.5, 8.0, 60}))

	add(box(mgl64.Vec3{-20, 3.0, 30}, mgl64.Vec3{15.0, 6.0, 0.5}))
	add(box(mgl64.Vec3{20, 3.0, 30}, mgl64.Vec3{15.0, 6.0, 0.5}))
	add(box(mgl64.Vec3{-20, 3.0, -30}, mgl64.Vec3{15.0, 6.0, 0.5}))
	add(box(mgl64.Vec3{20, 3.0, -30}, mgl64.Vec3{15.0, 6.0, 0.5}))
	add(box(mgl64.Vec3{-30, 3.0, 20}, mgl64.Vec3{0.5, 6.0, 15.0}))
	add(box(mgl64.Vec3{-30, 3.0, -20}, mgl64.Vec3{0.5, 6.0, 15.0}))
	add(box(mgl64.Vec3{30, 3.0, 20}, mgl64.Vec3{0.5, 6.0, 15.0}))
	add(box(mgl64.Vec3{30, 3.0, -20}, mgl64.Vec3{0.5, 6.0, 15.0}))

	add(box(mgl64.Vec3{40, 3.0, 35}, mgl64.Vec3{8.0, 6.0, 0.5}))
	add(box(mgl64.Vec3{45, 3.0, 40}, mgl64.Vec3{0.5, 6.0, 8.0}))
	add(box(mgl64.Vec3{-40, 3.0, 35}, mgl64.Vec3{8.0, 6.0, 0.5}))
	add(box(mgl64.Vec3{-45, 3.0, 40}, mgl64.Vec3{0.5, 6.0, 8.0}))
	add(box(mgl64.Vec3{40, 3.0, -35}, mgl64.Vec3{8.0, 6.0, 0.5}))
	add(box(mgl64.Vec3{45, 3.0, -40}, mgl64.Vec3{0.5, 6.0, 8.0}))
	add(box(mgl64.Vec3{-40, 3.0, -35}, mgl64.Vec3{8.0, 6.0, 0.5}))
	add(box(mgl64.Vec3{-45, 3.0, -40}, mgl64.Vec3{0.5, 6.0, 8.0}))

	add(box(mgl64.Vec3{-12, 2.5, 0}, mgl64.Vec3{0.5, 5.0, 18.0}))
	add(box(mgl64.Vec3{12, 2.5, 0}, mgl64.Vec3{0.5, 5.0, 18.0}))

	add(box(mgl64.Vec3{25, 3.5, 15}, mgl64.Vec3{2.0, 7.0, 2.0}))
	add(box(mgl64.Vec3{-25, 3.5, 15}, mgl64.Vec3{2.0, 7.0, 2.0}))
	add(box(mgl64.Vec3{25, 3.5, -15}, mgl64.Vec3{2.0, 7.0, 2.0}))
	add(box(mgl64.Vec3{-25, 3.5, -15}, mgl64.Vec3{2.0, 7.0, 2.0}))

	add(box(mgl64.Vec3{0, 1.5, 10}, mgl64.Vec3{6.0, 3.0, 0.5}))
	add(box(mgl64.Vec3{0, 1.5, -10}, mgl64.Vec3{6.0, 3.0, 0.5}))

	add(box(mgl64.Vec3{35, 2.0, 0}, mgl64.Vec3{0.5, 4.0, 8.0}))
	add(box(mgl64.Vec3{-35, 2.0, 0}, mgl64.Vec3{0.5, 4.0, 8.0}))
	add(box(mgl64.Vec3{0, 2.0, 40}, mgl64.Vec3{8.0, 4.0, 0.5}))
	add(box(mgl64.Vec3{0, 2.0, -40}, mgl64.Vec3{8.0, 4.0, 0.5}))

	add(box(mgl64.Vec3{15, 1.0, 25}, mgl64.Vec3{2.0, 2.0, 2.0}))
	add(box(mgl64.Vec3{-15, 1.0, 25}, mgl64.Vec3{2.0, 2.0, 2.0}))
	add(box(mgl64.Vec3{15, 1.0, -25}, mgl64.Vec3{2.0, 2.0, 2.0}))
	add(box(mgl64.Vec3{-15, 1.0, -25}, mgl64.Vec3{2.0, 2.0, 2.0}))

	add(rotatedBox(mgl64.Vec3{0, 1.0, 20}, mgl64.Vec3{5.0, 0.5, 8.0}, mgl64.Vec3{1, 0, 0}, 30.0))
	add(rotatedBox(mgl64.Vec3{0, 1.0, -20}, mgl64.Vec3{5.0, 0.5, 8.0}, mgl64.Vec3{1, 0, 0}, -30.0))

	return m
}

const (
	spawnAttemptCount   = 50
	spawnRandomRange    = 60.0
	spawnRandomOffset   = 20.0
	spawnTestHeight     = 2.0
	spawnRaycastDist    = 20.0
	spawnGroundOffset   = 1.0
)

var spawnDefaultPosition = mgl64.Vec3{0, 2, 0}

// intersects reports whether a player-radius sphere at pos overlaps any
// map geometry.
func (m Map) intersects(pos mgl64.Vec3) bool {
	test := mathgeom.Sphere{Center: pos, Radius: simstate.PlayerRadius}
	for _, o := range m.Geometry {
		if _, hit := mathgeom.SphereVsOBB(test, o); hit {
			return true
		}
	}
	return false
}

// HasLineOfSight reports whether a straight ray from `from` to `to` is
// unobstructed by map geometry, allowing a half-unit of slop at the
// target so a hit right at the destination doesn't count as blocking.
func (m Map) HasLineOfSight(from, to mgl64.Vec3) bool {
	delta := to.Sub(from)
	dist := delta.Len()
	if dist < 0.001 {
		return true
	}
	ray := mathgeom.Ray{Origin: from, Direction: delta.Mul(1 / dist), Length: dist}
	for _, o := range m.Geometry {
		if hit, ok := mathgeom.RaycastOBB(ray, o); ok && hit.Distance < dist-0.5 {
			return false
		}
	}
	return true
}

// SpawnPoint finds a free spawn location by sampling random XZ offsets
// (via the supplied RNG source, which callers seed however they like —
// this function itself performs no simulation-affecting work) and
// dropping the player onto the nearest ground below. Falls back to a
// fixed default position if every attempt collides.
func (m Map) SpawnPoint(rng func() float64) mgl64.Vec3 {
	for attempt := 0; attempt < spawnAttemptCount; attempt++ {
		x := rng()*spawnRandomRange - spawnRandomOffset
		z := rng()*spawnRandomRange - spawnRandomOffset
		pos := mgl64.Vec3{x, spawnTestHeight, z}

		if m.intersects(pos) {
			continue
		}

		downRay := mathgeom.Ray{Origin: pos, Direction: mgl64.Vec3{0, -1, 0}, Length: spawnRaycastDist}
		closestGround := spawnRaycastDist
		for _, o := range m.Geometry {
			if hit, ok := mathgeom.RaycastOBB(downRay, o); ok && hit.Distance < closestGround {
				closestGround = hit.Distance
			}
		}

		pos[1] -= closestGround - simstate.PlayerRadius - spawnGroundOffset
		return pos
	}

	return spawnDefaultPosition
}
