// Package quantize implements the lossy fixed-point encoding used to
// keep snapshot broadcasts small. Every scale factor here is chosen to
// match what a client's decode path expects bit-for-bit; changing one
// without changing the other silently desyncs interpolation.
package quantize

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"duelcore/pkg/simstate"
)

const (
	posScale   = 500.0
	velScale   = 10.0
	pitchScale = 128.0 / math.Pi
	dirScale   = 127.0
)

const (
	flagOnGround uint8 = 1 << 0
	flagWallRun  uint8 = 1 << 1
)

// Player is the wire-sized encoding of a simstate.Player: three int16
// position components, three int8 velocity components, a uint8 yaw, an
// int8 pitch, one flag byte, and the remaining jump count.
type Player struct {
	PlayerIdx      int8
	Health         int8
	PosX, PosY, PosZ int16
	VelX, VelY, VelZ int8
	Yaw             uint8
	Pitch           int8
	Flags           uint8
	JumpsRemaining  uint8
}

func clampInt16(v float64) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

func clampInt8(v float64) int8 {
	if v > math.MaxInt8 {
		return math.MaxInt8
	}
	if v < math.MinInt8 {
		return math.MinInt8
	}
	return int8(v)
}

// Encode quantizes a live player state into its wire form.
func Encode(p simstate.Player) Player {
	var flags uint8
	if p.OnGround {
		flags |= flagOnGround
	}
	if p.WallRunning {
		flags |= flagWallRun
	}

	normalizedYaw := math.Mod(p.Yaw, 2*math.Pi)
	if normalizedYaw < 0 {
		normalizedYaw += 2 * math.Pi
	}
	yawFrac := normalizedYaw / (2 * math.Pi)

	return Player{
		PlayerIdx: p.PlayerIdx,
		Health:    p.Health,
		PosX:      clampInt16(p.Position.X() * posScale),
		PosY:      clampInt16(p.Position.Y() * posScale),
		PosZ:      clampInt16(p.Position.Z() * posScale),
		VelX:      clampInt8(p.Velocity.X() * velScale),
		VelY:      clampInt8(p.Velocity.Y() * velScale),
		VelZ:      clampInt8(p.Velocity.Z() * velScale),
		Yaw:       uint8(clampFloat01(yawFrac) * 255.0),
		Pitch:     clampInt8(p.Pitch * pitchScale),
		Flags:     flags,
		JumpsRemaining: p.JumpsRemaining,
	}
}

func clampFloat01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 0.999999 {
		return 0.999999
	}
	return v
}

// Decode reconstructs an approximate live player state from its wire
// form. Fields absent from the wire encoding are not recovered:
// LastProcessedSeq and WallNormal are left zero and WallIndex is set to
// -1; the caller fills them in from other channels (ack piggyback,
// local wall-attach state) as needed.
func Decode(q Player) simstate.Player {
	yawFrac := float64(q.Yaw) / 255.0

	return simstate.Player{
		PlayerIdx: q.PlayerIdx,
		Health:    q.Health,
		Position: mgl64.Vec3{
			float64(q.PosX) / posScale,
			float64(q.PosY) / posScale,
			float64(q.PosZ) / posScale,
		},
		Velocity: mgl64.Vec3{
			float64(q.VelX) / velScale,
			float64(q.VelY) / velScale,
			float64(q.VelZ) / velScale,
		},
		Yaw:            yawFrac * 2 * math.Pi,
		Pitch:          float64(q.Pitch) / pitchScale,
		OnGround:       q.Flags&flagOnGround != 0,
		WallRunning:    q.Flags&flagWallRun != 0,
		WallIndex:      -1,
		JumpsRemaining: q.JumpsRemaining,
	}
}

// Shot is the wire-sized encoding of a fired ray: origin at full
// position precision, direction quantized to signed unit components,
// and length in whole meters.
type Shot struct {
	ShooterIdx int8
	OriginX, OriginY, OriginZ int16
	DirX, DirY, DirZ          int8
	Length                    uint8 // whole meters
}

func clampUint8(v float64) uint8 {
	if v > math.MaxUint8 {
		return math.MaxUint8
	}
	if v < 0 {
		return 0
	}
	return uint8(v)
}

// EncodeShot quantizes a shot for broadcast. Length is sent as whole
// meters, not position-scaled, since MaxShootRange comfortably fits a
// single byte and tracer effects don't need centimeter precision.
func EncodeShot(s simstate.Shot) Shot {
	return Shot{
		ShooterIdx: s.ShooterIdx,
		OriginX:    clampInt16(s.Ray.Origin.X() * posScale),
		OriginY:    clampInt16(s.Ray.Origin.Y() * posScale),
		OriginZ:    clampInt16(s.Ray.Origin.Z() * posScale),
		DirX:       clampInt8(s.Ray.Direction.X() * dirScale),
		DirY:       clampInt8(s.Ray.Direction.Y() * dirScale),
		DirZ:       clampInt8(s.Ray.Direction.Z() * dirScale),
		Length:     clampUint8(s.Ray.Length),
	}
}

// DecodeShot reconstructs a shot ray, renormalizing the direction
// vector since quantizing each component independently does not
// preserve unit length.
func DecodeShot(q Shot) simstate.Shot {
	dir := mgl64.Vec3{
		float64(q.DirX) / dirScale,
		float64(q.DirY) / dirScale,
		float64(q.DirZ) / dirScale,
	}
	if l := dir.Len(); l > 1e-9 {
		dir = dir.Mul(1 / l)
	}
	return simstate.Shot{
		ShooterIdx: q.ShooterIdx,
		Ray: simstate.Ray{
			Origin: mgl64.Vec3{
				float64(q.OriginX) / posScale,
				float64(q.OriginY) / posScale,
				float64(q.OriginZ) / posScale,
			},
			Direction: dir,
			Length:    float64(q.Length),
		},
	}
}
