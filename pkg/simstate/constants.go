// Package simstate holds the data model shared by every part of the
// simulation: server, client, and bot all import this package and nothing
// else to agree on player/shot/snapshot shapes and the tuning constants
// that drive the tick loop, physics, and lag compensation.
package simstate

import "time"

// Tick and networking cadence.
const (
	TickRate            = 60
	TickTime            = time.Second / TickRate
	SnapshotRate        = 20
	SnapshotTime        = time.Second / SnapshotRate
	NetworkUpdateInterval = 100 * time.Millisecond

	SnapshotCount = 32
	HistorySize   = 64

	MaxPlayers = 10
	MaxShots   = 16

	InputBufferSize = 12
	InputHistorySize = 64

	WindowSize      = 32
	PacketPoolSize  = 256
	MaxPeers        = 16
	MaxPacketSize   = 1500

	PeerInactivityTimeout = 4 * time.Second
	MaxRetransmitAttempts = 10
	ConnectTimeout        = 5 * time.Second

	RespawnDelay   = 1500 * time.Millisecond
	StartingHealth = 100
	BulletDamage   = 10
	MaxShootRange  = 100.0

	PlayerRadius     = 1.0
	PlayerEyeHeight  = 0.5
	MaxJumps         = 2
)

// Movement tuning: gravity, ground acceleration, jump and wall-run speeds.
const (
	Gravity            = 20.0
	GroundSpeed        = 25.0
	GroundAccel        = 35.0
	JumpVelocity       = 14.0
	DoubleJumpVelocity = 14.0
	WallrunMinSpeed    = 15.0
	WallrunSpeed       = 22.0
	WallrunJumpOut     = 15.0
	WallrunJumpUp      = 10.0
)

// Interpolation / delay controller tuning.
const (
	MinInterpDelay = 0.02
	MaxInterpDelay = 0.15
	DelayGrowStep  = 0.01
	TeleportDistance = 10.0
	PredictionErrorThreshold = 0.4
)

// Input button bits.
const (
	ButtonShoot uint8 = 1 << 0
	ButtonJump  uint8 = 1 << 1
)
