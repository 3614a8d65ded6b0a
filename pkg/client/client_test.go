package client

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"duelcore/pkg/mapgen"
	"duelcore/pkg/physics"
	"duelcore/pkg/simstate"
)

func testMap() mapgen.Map { return mapgen.Generate() }

func TestInterpolateBlendsBetweenSamples(t *testing.T) {
	samples := []remoteSample{
		{serverTime: 1.0, player: simstate.Player{Position: mgl64.Vec3{0, 0, 0}, Health: simstate.StartingHealth}},
		{serverTime: 2.0, player: simstate.Player{Position: mgl64.Vec3{10, 0, 0}, Health: simstate.StartingHealth}},
	}

	mid := interpolate(samples, 1.5)
	if mid.Position.X() < 4.9 || mid.Position.X() > 5.1 {
		t.Fatalf("expected midpoint interpolation near x=5, got %v", mid.Position.X())
	}
}

func TestInterpolateClampsOutsideRange(t *testing.T) {
	samples := []remoteSample{
		{serverTime: 1.0, player: simstate.Player{Position: mgl64.Vec3{0, 0, 0}}},
		{serverTime: 2.0, player: simstate.Player{Position: mgl64.Vec3{10, 0, 0}}},
	}

	before := interpolate(samples, 0.0)
	if before.Position.X() != 0 {
		t.Fatalf("expected clamp to first sample, got %v", before.Position.X())
	}
	after := interpolate(samples, 5.0)
	if after.Position.X() != 10 {
		t.Fatalf("expected clamp to last sample, got %v", after.Position.X())
	}
}

func TestAdjustDelayStaysWithinBounds(t *testing.T) {
	c := &Client{currentDelay: simstate.MinInterpDelay, targetDelay: simstate.MinInterpDelay}
	c.lastServerT = 1.0
	for i := 0; i < 50; i++ {
		c.adjustDelay(1.0 + float64(i)*0.01)
	}
	if c.currentDelay < simstate.MinInterpDelay || c.currentDelay > simstate.MaxInterpDelay {
		t.Fatalf("delay escaped bounds: %v", c.currentDelay)
	}
}

func TestReconcileReplaysOnlyNewerInputs(t *testing.T) {
	c := &Client{geo: testMap()}
	c.history[0] = inputRecord{valid: true, input: simstate.InputMessage{SequenceNum: 1, MoveZ: 1}}
	c.history[1] = inputRecord{valid: true, input: simstate.InputMessage{SequenceNum: 2, MoveZ: 1}}

	authoritative := simstate.NewInactivePlayer()
	authoritative.Position = mgl64.Vec3{0, simstate.PlayerRadius, 0}

	c.reconcile(authoritative, 1)

	if c.local.LastProcessedSeq != 1 {
		t.Fatalf("expected LastProcessedSeq to be set from server ack, got %d", c.local.LastProcessedSeq)
	}

	// Only sequence 2 is newer than the ack, so exactly one step is replayed.
	want := authoritative
	dt := 1.0 / float64(simstate.TickRate)
	physics.ApplyInput(&want, c.history[1].input, dt)
	physics.ApplyPhysics(&want, dt, c.geo.Geometry, nil)
	if c.local.Position != want.Position {
		t.Fatalf("expected only input 2 to be replayed: got %v want %v", c.local.Position, want.Position)
	}
}
