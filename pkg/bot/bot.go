// Package bot implements a minimal rule-based opponent: aim at the
// nearest visible enemy, strafe, shoot on cooldown. It is deliberately
// not a pathfinder — it drives duelcore/pkg/client exactly like a
// human client would, just with synthetic input instead of a keyboard.
package bot

import (
	"math"
	"time"

	"duelcore/pkg/client"
	"duelcore/pkg/mapgen"
	"duelcore/pkg/simstate"
)

const shootCooldown = 600 * time.Millisecond

// Bot drives one client connection with simple aim-and-shoot logic.
type Bot struct {
	c            *client.Client
	geo          mapgen.Map
	rng          func() float64
	lastShotTime time.Time
	strafeSign   float64
}

// New wraps an already-constructed client with bot decision logic. rng
// supplies the strafe-direction coin flip; pass a deterministic source
// in tests.
func New(c *client.Client, rng func() float64) *Bot {
	return &Bot{c: c, geo: mapgen.Generate(), rng: rng, strafeSign: 1}
}

// Tick runs one decision step: pick a target, aim, move, maybe shoot.
func (b *Bot) Tick(now time.Time, elapsed float64, others map[int8]simstate.Player) {
	self := b.c.LocalPlayer()

	target, found := nearestVisible(self, others, b.geo)

	in := simstate.InputMessage{Time: elapsed}
	if found {
		toTarget := target.Position.Sub(self.Position)
		in.LookYaw = math.Atan2(toTarget.Z(), toTarget.X())
		horizDist := math.Hypot(toTarget.X(), toTarget.Z())
		in.LookPitch = math.Atan2(toTarget.Y(), horizDist)

		in.MoveX = b.strafeSign
		in.MoveZ = 0.3

		if now.Sub(b.lastShotTime) >= shootCooldown {
			in.Buttons |= simstate.ButtonShoot
			in.ShotTime = elapsed
			b.lastShotTime = now
		}
	} else {
		in.MoveZ = 0.5
		if b.rng() < 0.02 {
			b.strafeSign = -b.strafeSign
		}
	}

	dt := 1.0 / float64(simstate.TickRate)
	b.c.SendInput(in, dt)
}

// nearestVisible returns the closest active, alive enemy with an
// unobstructed line of sight, if any.
func nearestVisible(self simstate.Player, others map[int8]simstate.Player, geo mapgen.Map) (simstate.Player, bool) {
	var best simstate.Player
	bestDist := math.MaxFloat64
	found := false

	for _, other := range others {
		if !other.Active() || !other.Alive() || other.PlayerIdx == self.PlayerIdx {
			continue
		}
		if !geo.HasLineOfSight(self.Position, other.Position) {
			continue
		}
		d := other.Position.Sub(self.Position).Len()
		if d < bestDist {
			bestDist = d
			best = other
			found = true
		}
	}
	return best, found
}
