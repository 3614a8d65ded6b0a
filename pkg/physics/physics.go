// Package physics applies player input and integrates player motion
// against map geometry. Every function here must stay deterministic:
// no RNG, no wall-clock reads, only the player state, the input for
// this tick, and the fixed tick duration. Server and client both call
// the same code so replay-based reconciliation produces identical
// results on both ends.
package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"duelcore/pkg/mathgeom"
	"duelcore/pkg/simstate"
)

// ApplyInput turns one tick's input into an updated look direction and
// velocity. It does not move the player; ApplyPhysics integrates
// position and resolves collision separately.
func ApplyInput(p *simstate.Player, in simstate.InputMessage, dt float64) {
	p.Yaw = in.LookYaw
	p.Pitch = in.LookPitch

	forward := mgl64.Vec3{math.Cos(p.Yaw), 0, math.Sin(p.Yaw)}
	right := mgl64.Vec3{-math.Sin(p.Yaw), 0, math.Cos(p.Yaw)}
	wish := forward.Mul(in.MoveZ).Add(right.Mul(in.MoveX))
	if l := wish.Len(); l > 1e-3 {
		wish = wish.Mul(1 / l)
	}

	if p.WallRunning {
		horizontal := mgl64.Vec3{p.Velocity.X(), 0, p.Velocity.Z()}
		if speed := horizontal.Len(); speed > 0 {
			dir := horizontal.Mul(1 / speed)
			nudged := dir.Add(wish.Mul(0.15))
			if nl := nudged.Len(); nl > 1e-6 {
				nudged = nudged.Mul(1 / nl)
			}
			newHoriz := nudged.Mul(simstate.WallrunSpeed)
			p.Velocity[0] = newHoriz.X()
			p.Velocity[2] = newHoriz.Z()
		}
	} else {
		targetVel := wish.Mul(simstate.GroundSpeed)
		horizontal := mgl64.Vec3{p.Velocity.X(), 0, p.Velocity.Z()}
		delta := targetVel.Sub(horizontal)
		accelStep := simstate.GroundAccel * dt
		if delta.Len() > accelStep {
			delta = delta.Mul(accelStep / delta.Len())
		}
		newHoriz := horizontal.Add(delta)
		p.Velocity[0] = newHoriz.X()
		p.Velocity[2] = newHoriz.Z()
	}

	if in.JumpPressed() {
		switch {
		case p.WallRunning:
			outward := p.WallNormal
			p.Velocity[0] = outward.X() * simstate.WallrunJumpOut
			p.Velocity[2] = outward.Z() * simstate.WallrunJumpOut
			p.Velocity[1] = simstate.WallrunJumpUp
			p.WallRunning = false
			p.JumpsRemaining = simstate.MaxJumps - 1
		case p.OnGround:
			p.Velocity[1] = simstate.JumpVelocity
			p.OnGround = false
			p.JumpsRemaining = simstate.MaxJumps - 1
		case p.JumpsRemaining > 0:
			p.Velocity[1] = simstate.DoubleJumpVelocity
			p.JumpsRemaining--
		}
	}
}

// ApplyPhysics integrates gravity and position, resolves collision
// against map geometry axis by axis, updates wall-run attachment, and
// depenetrates against other players.
func ApplyPhysics(p *simstate.Player, dt float64, geometry []mathgeom.OBB, others []*simstate.Player) {
	if !p.WallRunning {
		p.Velocity[1] -= simstate.Gravity * dt
	} else if !wallStillAttached(p, geometry) {
		p.WallRunning = false
	}

	// Sweep X, then Z, then Y using this tick's velocity components in
	// that order; each axis move is resolved against every OBB before
	// the next axis is attempted.
	moveAxis(p, 0, p.Velocity.X()*dt, geometry)
	moveAxis(p, 2, p.Velocity.Z()*dt, geometry)
	moveAxis(p, 1, p.Velocity.Y()*dt, geometry)

	if p.Position.Y() < simstate.PlayerRadius {
		p.Position[1] = simstate.PlayerRadius
		p.Velocity[1] = 0
		p.OnGround = true
		p.JumpsRemaining = simstate.MaxJumps
	}

	for _, other := range others {
		if other == p || !other.Active() || !other.Alive() {
			continue
		}
		a := mathgeom.Sphere{Center: p.Position, Radius: simstate.PlayerRadius}
		b := mathgeom.Sphere{Center: other.Position, Radius: simstate.PlayerRadius}
		if contact, hit := mathgeom.SphereVsSphere(a, b); hit {
			p.Position = p.Position.Add(contact.Normal.Mul(-contact.Depth))
		}
	}
}

// isWallSurface reports whether a contact normal is steep enough to be
// treated as a wall-run surface rather than a walkable floor/ceiling.
func isWallSurface(normal mgl64.Vec3) bool {
	return math.Abs(normal.Y()) < 0.3
}

// isWalkable reports whether a contact normal is shallow enough to
// walk or slide on.
func isWalkable(normal mgl64.Vec3) bool {
	return normal.Y() > 0.25
}

func moveAxis(p *simstate.Player, axis int, amount float64, geometry []mathgeom.OBB) {
	if amount == 0 {
		return
	}
	p.Position[axis] += amount

	sphere := mathgeom.Sphere{Center: p.Position, Radius: simstate.PlayerRadius}
	for i, o := range geometry {
		contact, hit := mathgeom.SphereVsOBB(sphere, o)
		if !hit {
			continue
		}

		if axis == 1 {
			if isWalkable(contact.Normal) {
				p.OnGround = true
				p.WallRunning = false
				p.JumpsRemaining = simstate.MaxJumps
			}
			p.Position = p.Position.Add(contact.Normal.Mul(contact.Depth))
			p.Velocity[1] = 0
			sphere.Center = p.Position
			continue
		}

		if isWalkable(contact.Normal) {
			slide := projectOntoSurface(mgl64.Vec3{p.Velocity.X(), 0, p.Velocity.Z()}, contact.Normal)
			p.Velocity[0] = slide.X()
			p.Velocity[2] = slide.Z()
			p.Position = p.Position.Add(contact.Normal.Mul(contact.Depth))
		} else if isWallSurface(contact.Normal) {
			horizontal := mgl64.Vec3{p.Velocity.X(), 0, p.Velocity.Z()}
			p.Position = p.Position.Add(contact.Normal.Mul(contact.Depth))
			if horizontal.Len() >= simstate.WallrunMinSpeed && !p.OnGround {
				attachToWall(p, contact.Normal, i)
			} else if axis == 0 {
				p.Velocity[0] = 0
			} else {
				p.Velocity[2] = 0
			}
		} else {
			p.Position = p.Position.Add(contact.Normal.Mul(contact.Depth))
		}
		sphere.Center = p.Position
	}
}

func projectOntoSurface(v, normal mgl64.Vec3) mgl64.Vec3 {
	return v.Sub(normal.Mul(v.Dot(normal)))
}

// attachToWall redirects velocity along the wall plane at WallrunSpeed on
// attach, falling back to up x normal when the player is running straight
// into the wall with no along-wall component to preserve.
func attachToWall(p *simstate.Player, normal mgl64.Vec3, index int) {
	p.WallRunning = true
	p.WallNormal = normal
	p.WallIndex = int16(index)
	p.JumpsRemaining = simstate.MaxJumps

	along := projectOntoSurface(p.Velocity, normal)
	along[1] = 0
	if l := along.Len(); l > 1e-3 {
		along = along.Mul(simstate.WallrunSpeed / l)
	} else {
		up := mgl64.Vec3{0, 1, 0}
		cross := up.Cross(normal)
		if l := cross.Len(); l > 1e-6 {
			along = cross.Mul(simstate.WallrunSpeed / l)
		} else {
			along = mgl64.Vec3{}
		}
	}
	p.Velocity[0] = along.X()
	p.Velocity[2] = along.Z()
}

// wallStillAttached re-tests the player's stored wall index with a
// slightly enlarged radius so a wall-run doesn't drop the instant the
// player's sphere stops touching the surface exactly.
func wallStillAttached(p *simstate.Player, geometry []mathgeom.OBB) bool {
	if p.WallIndex < 0 || int(p.WallIndex) >= len(geometry) {
		return false
	}
	test := mathgeom.Sphere{Center: p.Position, Radius: simstate.PlayerRadius * 1.2}
	_, hit := mathgeom.SphereVsOBB(test, geometry[p.WallIndex])
	return hit
}
