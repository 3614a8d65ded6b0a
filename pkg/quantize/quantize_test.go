package quantize

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"duelcore/pkg/simstate"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestPlayerRoundTripWithinQuantizationError(t *testing.T) {
	p := simstate.Player{
		PlayerIdx:      2,
		Health:         77,
		Position:       mgl64.Vec3{12.34, 1.5, -40.0},
		Velocity:       mgl64.Vec3{5.0, -2.0, 1.0},
		Yaw:            1.2,
		Pitch:          0.3,
		OnGround:       true,
		WallRunning:    false,
		JumpsRemaining: 1,
	}

	decoded := Decode(Encode(p))

	if decoded.PlayerIdx != p.PlayerIdx {
		t.Fatalf("player index mismatch: got %d want %d", decoded.PlayerIdx, p.PlayerIdx)
	}
	if decoded.Health != p.Health {
		t.Fatalf("health mismatch: got %d want %d", decoded.Health, p.Health)
	}
	if !almostEqual(decoded.Position.X(), p.Position.X(), 0.01) ||
		!almostEqual(decoded.Position.Y(), p.Position.Y(), 0.01) ||
		!almostEqual(decoded.Position.Z(), p.Position.Z(), 0.01) {
		t.Fatalf("position drifted too far: got %v want %v", decoded.Position, p.Position)
	}
	if !almostEqual(decoded.Yaw, p.Yaw, 0.05) {
		t.Fatalf("yaw drifted too far: got %v want %v", decoded.Yaw, p.Yaw)
	}
	if decoded.OnGround != p.OnGround {
		t.Fatal("on-ground flag not preserved")
	}
}

func TestShotDirectionRenormalizedOnDecode(t *testing.T) {
	s := simstate.Shot{
		ShooterIdx: 1,
		Ray: simstate.Ray{
			Origin:    mgl64.Vec3{0, 1, 0},
			Direction: mgl64.Vec3{1, 0, 0}.Normalize(),
			Length:    50,
		},
	}

	decoded := DecodeShot(EncodeShot(s))
	length := decoded.Ray.Direction.Len()
	if !almostEqual(length, 1.0, 0.02) {
		t.Fatalf("decoded shot direction should be unit length, got %v", length)
	}
}
