package physics

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"duelcore/pkg/mapgen"
	"duelcore/pkg/mathgeom"
	"duelcore/pkg/simstate"
)

func TestApplyPhysicsIsDeterministic(t *testing.T) {
	geo := mapgen.Generate()
	in := simstate.InputMessage{MoveZ: 1, LookYaw: 0.3, LookPitch: 0}
	dt := 1.0 / float64(simstate.TickRate)

	run := func() simstate.Player {
		p := simstate.NewInactivePlayer()
		p.PlayerIdx = 0
		p.Position = mgl64.Vec3{0, simstate.PlayerRadius, 0}
		for i := 0; i < 120; i++ {
			ApplyInput(&p, in, dt)
			ApplyPhysics(&p, dt, geo.Geometry, nil)
		}
		return p
	}

	a := run()
	b := run()
	if a.Position != b.Position || a.Velocity != b.Velocity {
		t.Fatalf("physics simulation is not deterministic: %+v vs %+v", a, b)
	}
}

func TestGroundedPlayerStaysOnFloor(t *testing.T) {
	geo := mapgen.Generate()
	p := simstate.NewInactivePlayer()
	p.Position = mgl64.Vec3{0, simstate.PlayerRadius, 0}
	dt := 1.0 / float64(simstate.TickRate)

	for i := 0; i < 30; i++ {
		ApplyPhysics(&p, dt, geo.Geometry, nil)
	}

	if !p.OnGround {
		t.Fatal("expected player resting on the arena floor to be marked on-ground")
	}
	if p.Position.Y() < simstate.PlayerRadius-0.01 {
		t.Fatalf("player sank below the floor: %v", p.Position.Y())
	}
}

func TestDoubleJumpConsumesExtraJump(t *testing.T) {
	p := simstate.NewInactivePlayer()
	p.OnGround = true
	p.JumpsRemaining = simstate.MaxJumps
	dt := 1.0 / float64(simstate.TickRate)

	ApplyInput(&p, simstate.InputMessage{Buttons: simstate.ButtonJump}, dt)
	if p.OnGround {
		t.Fatal("expected first jump to leave the ground")
	}
	firstRemaining := p.JumpsRemaining

	ApplyInput(&p, simstate.InputMessage{Buttons: simstate.ButtonJump}, dt)
	if p.JumpsRemaining != firstRemaining-1 {
		t.Fatalf("expected double jump to consume a remaining jump: had %d, now %d", firstRemaining, p.JumpsRemaining)
	}
}

func TestWallRunAttachRedirectsVelocityToWallrunSpeed(t *testing.T) {
	wall := mathgeom.NewOBB(mgl64.Vec3{2, 2, 0}, mgl64.Vec3{0.5, 5, 20}, mgl64.QuatIdent())
	geo := []mathgeom.OBB{wall}

	p := simstate.NewInactivePlayer()
	p.Position = mgl64.Vec3{0.6, 2, 0}
	p.Velocity = mgl64.Vec3{2, 0, simstate.WallrunMinSpeed + 5}
	p.OnGround = false

	moveAxis(&p, 0, 0.5, geo)

	if !p.WallRunning {
		t.Fatal("expected player moving into a vertical surface above the min speed to attach")
	}
	horiz := mgl64.Vec3{p.Velocity.X(), 0, p.Velocity.Z()}
	if got := horiz.Len(); got < simstate.WallrunSpeed-0.01 || got > simstate.WallrunSpeed+0.01 {
		t.Fatalf("expected wall-run attach to rescale horizontal speed to %v, got %v", simstate.WallrunSpeed, got)
	}
}

func TestWallRunAttachHeadOnFallsBackToUpCrossNormal(t *testing.T) {
	wall := mathgeom.NewOBB(mgl64.Vec3{2, 2, 0}, mgl64.Vec3{0.5, 5, 20}, mgl64.QuatIdent())
	geo := []mathgeom.OBB{wall}

	p := simstate.NewInactivePlayer()
	p.Position = mgl64.Vec3{0.6, 2, 0}
	p.Velocity = mgl64.Vec3{simstate.WallrunMinSpeed + 5, 0, 0}
	p.OnGround = false

	moveAxis(&p, 0, 0.5, geo)

	if !p.WallRunning {
		t.Fatal("expected head-on approach above min speed to still attach")
	}
	if math.Abs(p.Velocity.X()) > 0.01 {
		t.Fatalf("expected head-on attach to redirect along the wall (z-only), got vx=%v", p.Velocity.X())
	}
	horiz := mgl64.Vec3{p.Velocity.X(), 0, p.Velocity.Z()}
	if got := horiz.Len(); got < simstate.WallrunSpeed-0.01 || got > simstate.WallrunSpeed+0.01 {
		t.Fatalf("expected wall-run attach to rescale horizontal speed to %v, got %v", simstate.WallrunSpeed, got)
	}
}
