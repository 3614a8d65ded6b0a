package simstate

import "github.com/go-gl/mathgl/mgl64"

// Player is the authoritative per-slot player record. PlayerIdx is -1 for
// an inactive slot.
type Player struct {
	PlayerIdx         int8
	LastProcessedSeq  uint32
	Position          mgl64.Vec3
	Velocity          mgl64.Vec3
	Yaw, Pitch        float64
	OnGround          bool
	Health            int8
	WallRunning       bool
	WallNormal        mgl64.Vec3
	WallIndex         int16
	JumpsRemaining    uint8
}

// Active reports whether the slot holds a connected player.
func (p *Player) Active() bool { return p.PlayerIdx != -1 }

// Alive reports whether the player has positive health.
func (p *Player) Alive() bool { return p.Health > 0 }

// Clone returns a deep copy suitable for snapshot history storage.
func (p Player) Clone() Player { return p }

// Shot is a fired ray, recorded for broadcast and lag-compensated tracing.
type Shot struct {
	ShooterIdx int8
	Ray        Ray
	SpawnTime  float64
}

// Ray mirrors mathgeom.Ray as plain data so simstate does not import
// mathgeom; server code builds the two separately at the point of use.
type Ray struct {
	Origin    mgl64.Vec3
	Direction mgl64.Vec3
	Length    float64
}

// Snapshot is a timestamped, bounded view of all player slots, retained
// in history rings on both server (64 deep) and client (32 deep).
type Snapshot struct {
	Timestamp float64
	Players   [MaxPlayers]Player
}

// InputMessage is one client tick's worth of input.
type InputMessage struct {
	SequenceNum uint32
	MoveX       float64
	MoveZ       float64
	LookYaw     float64
	LookPitch   float64
	Buttons     uint8
	ShotTime    float64
	Time        float64
}

// ShootPressed reports the shoot button bit.
func (m InputMessage) ShootPressed() bool { return m.Buttons&ButtonShoot != 0 }

// JumpPressed reports the jump button bit.
func (m InputMessage) JumpPressed() bool { return m.Buttons&ButtonJump != 0 }

// NewInactivePlayer returns a zeroed, inactive player slot.
func NewInactivePlayer() Player {
	return Player{PlayerIdx: -1, WallIndex: -1}
}
