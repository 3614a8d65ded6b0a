// Package client implements the two things every non-bot and bot
// connection needs: predicting local movement ahead of the server and
// reconciling it against authoritative snapshots, and interpolating
// remote players smoothly despite snapshots arriving at a lower rate
// than the render loop runs at.
package client

import (
	"log/slog"
	"math"
	"net"
	"sync"
	"time"

	"duelcore/pkg/mapgen"
	"duelcore/pkg/physics"
	"duelcore/pkg/quantize"
	"duelcore/pkg/simstate"
	"duelcore/pkg/transport"
	"duelcore/pkg/wire"
)

// inputRecord is one entry in the prediction ring: the input applied,
// so reconciliation can replay from any point in the ring.
type inputRecord struct {
	input simstate.InputMessage
	valid bool
}

// remoteSample is one buffered snapshot for a non-local player,
// timestamped by server time so interpolation can find the two
// samples bracketing the current render time.
type remoteSample struct {
	serverTime float64
	player     simstate.Player
}

// EventKind identifies a reliable, out-of-band notification from the
// server -- as opposed to snapshot state, these arrive once and need
// to be drained by the caller instead of being sampled continuously.
type EventKind int

const (
	EventPlayerDied EventKind = iota
	EventPlayerLeft
)

// Event is one reliable notification queued for the caller's UI or
// connection-state handling.
type Event struct {
	Kind      EventKind
	PlayerIdx int8
}

// Client owns one predicted local player plus interpolation buffers
// for every other connected player. A human client's render loop and
// a bot's decision loop both drive it the same way: call SendInput
// every tick, call PollNetwork to absorb incoming packets, call
// RenderState to get what to draw or reason about.
type Client struct {
	tr         *transport.Transport
	serverAddr *net.UDPAddr
	peer       *transport.PeerState
	geo        mapgen.Map
	log        *slog.Logger

	mu          sync.Mutex
	playerIdx   int8
	connected   bool
	local       simstate.Player
	nextSeq     uint32
	history     [simstate.InputHistorySize]inputRecord
	remotes     map[int8][]remoteSample
	lastServerT float64
	events      []Event

	currentDelay float64
	targetDelay  float64
}

// New binds a UDP socket at localAddr (e.g. ":0" for an ephemeral port,
// ":9001" for a fixed one) and prepares to connect to serverAddr.
func New(localAddr, serverAddr string) (*Client, error) {
	tr, err := transport.Listen(localAddr)
	if err != nil {
		return nil, err
	}
	addr, err := net.ResolveUDPAddr("udp", serverAddr)
	if err != nil {
		tr.Close()
		return nil, err
	}
	return &Client{
		tr:           tr,
		serverAddr:   addr,
		geo:          mapgen.Generate(),
		remotes:      make(map[int8][]remoteSample),
		currentDelay: simstate.MinInterpDelay,
		targetDelay:  simstate.MinInterpDelay,
		playerIdx:    -1,
		// Sequence 0 is reserved to mean "nothing processed yet" on the
		// server side, so the first real input starts at 1.
		nextSeq: 1,
		log:     slog.Default(),
	}, nil
}

// Close releases the socket.
func (c *Client) Close() error { return c.tr.Close() }

type connectTimeoutError struct{}

func (*connectTimeoutError) Error() string { return "client: connect timed out" }

var errConnectTimeout = &connectTimeoutError{}

// Connect sends a connect request and blocks (with the given timeout)
// until the server assigns a player slot.
func (c *Client) Connect(timeout time.Duration) error {
	c.peer = c.tr.PeerFor(c.serverAddr)
	seq := c.peer.NextSequence()
	buf := make([]byte, wire.HeaderSize)
	wire.PutHeader(buf, wire.Header{Type: wire.MsgConnectRequest, Sequence: seq})
	c.peer.TrackPending(seq, buf)
	if err := c.tr.Send(c.serverAddr, buf); err != nil {
		return err
	}

	deadline := time.Now().Add(timeout)
	inbuf := make([]byte, simstate.MaxPacketSize)
	for time.Now().Before(deadline) {
		n, _, err := c.tr.ReadFrom(inbuf, 200*time.Millisecond)
		if err != nil {
			continue
		}
		if c.handlePacket(inbuf[:n]) {
			return nil
		}
	}
	return errConnectTimeout
}

// PlayerIdx returns the assigned player slot, or -1 if not connected.
func (c *Client) PlayerIdx() int8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerIdx
}

// LocalPlayer returns a copy of the current predicted local state.
func (c *Client) LocalPlayer() simstate.Player {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.local
}

// SendInput predicts the input locally, buffers it for reconciliation,
// and transmits it to the server.
func (c *Client) SendInput(in simstate.InputMessage, dt float64) {
	c.mu.Lock()
	in.SequenceNum = c.nextSeq
	c.nextSeq++

	physics.ApplyInput(&c.local, in, dt)
	physics.ApplyPhysics(&c.local, dt, c.geo.Geometry, nil)

	c.history[in.SequenceNum%simstate.InputHistorySize] = inputRecord{input: in, valid: true}
	c.mu.Unlock()

	if c.peer == nil {
		return
	}
	seq := c.peer.NextSequence()
	ack, bits := c.peer.AckAndBits()
	buf := make([]byte, wire.HeaderSize)
	wire.PutHeader(buf, wire.Header{Type: wire.MsgClientInput, Sequence: seq, Ack: ack, AckBits: bits})
	buf = wire.PutInput(buf, wire.InputPacket{
		SequenceNum: in.SequenceNum,
		MoveX:       in.MoveX,
		MoveZ:       in.MoveZ,
		LookYaw:     in.LookYaw,
		LookPitch:   in.LookPitch,
		Buttons:     in.Buttons,
		ShotTime:    in.ShotTime,
		Time:        in.Time,
	})
	_ = c.tr.Send(c.serverAddr, buf)
}

// PollNetwork drains and processes any packets currently waiting on
// the socket, non-blockingly (a very short read deadline).
func (c *Client) PollNetwork() {
	buf := make([]byte, simstate.MaxPacketSize)
	for {
		n, _, err := c.tr.ReadFrom(buf, time.Millisecond)
		if err != nil {
			return
		}
		c.handlePacket(buf[:n])
	}
}

// handlePacket returns true if the packet was a ConnectAccept (used by
// Connect's blocking wait).
func (c *Client) handlePacket(buf []byte) bool {
	hdr, err := wire.GetHeader(buf)
	if err != nil {
		return false
	}
	if c.peer != nil {
		accepted := c.peer.OnPacketReceived(hdr.Sequence)
		c.peer.AckFromRemote(hdr.Ack, hdr.AckBits)
		if !accepted {
			return false
		}
	}

	switch hdr.Type {
	case wire.MsgConnectAccept:
		if len(buf) < wire.HeaderSize+1 {
			return false
		}
		c.mu.Lock()
		c.playerIdx = int8(buf[wire.HeaderSize])
		c.local = simstate.NewInactivePlayer()
		c.local.PlayerIdx = c.playerIdx
		c.local.Health = simstate.StartingHealth
		c.connected = true
		c.mu.Unlock()
		return true

	case wire.MsgServerSnapshot:
		snap, err := wire.GetSnapshot(buf[wire.HeaderSize:])
		if err != nil {
			return false
		}
		c.applySnapshot(snap)

	case wire.MsgPlayerDied:
		if len(buf) < wire.HeaderSize+1 {
			return false
		}
		c.queueEvent(Event{Kind: EventPlayerDied, PlayerIdx: int8(buf[wire.HeaderSize])})

	case wire.MsgPlayerLeft:
		if len(buf) < wire.HeaderSize+1 {
			return false
		}
		idx := int8(buf[wire.HeaderSize])
		c.mu.Lock()
		delete(c.remotes, idx)
		c.mu.Unlock()
		c.queueEvent(Event{Kind: EventPlayerLeft, PlayerIdx: idx})
	}
	return false
}

func (c *Client) queueEvent(e Event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
}

// PollEvents drains and returns every reliable event (deaths,
// disconnects) received since the last call.
func (c *Client) PollEvents() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.events
	c.events = nil
	return out
}

func (c *Client) applySnapshot(snap wire.SnapshotPacket) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.adjustDelay(snap.ServerTime)
	c.lastServerT = snap.ServerTime

	for _, qp := range snap.Players {
		decoded := quantize.Decode(qp)
		if decoded.PlayerIdx == c.playerIdx {
			c.reconcile(decoded, snap.LastProcessedSeq)
			continue
		}
		samples := append(c.remotes[decoded.PlayerIdx], remoteSample{serverTime: snap.ServerTime, player: decoded})
		if len(samples) > simstate.SnapshotCount {
			samples = samples[len(samples)-simstate.SnapshotCount:]
		}
		c.remotes[decoded.PlayerIdx] = samples
	}
}

// reconcile overwrites the local player with the server's authoritative
// state and replays every buffered input with a sequence number newer
// than what the server had already processed, in sequence order.
func (c *Client) reconcile(authoritative simstate.Player, lastProcessedSeq uint32) {
	if predicted := c.local.Position.Sub(authoritative.Position).Len(); predicted > simstate.PredictionErrorThreshold && c.log != nil {
		c.log.Warn("prediction error exceeded threshold",
			"player_idx", c.playerIdx,
			"error_meters", predicted,
			"threshold_meters", simstate.PredictionErrorThreshold,
		)
	}

	authoritative.LastProcessedSeq = lastProcessedSeq
	// Wall-run attachment details are not on the wire; keep the local ones.
	authoritative.WallNormal = c.local.WallNormal
	authoritative.WallIndex = c.local.WallIndex
	c.local = authoritative

	var replay []simstate.InputMessage
	for _, rec := range c.history {
		if rec.valid && rec.input.SequenceNum > lastProcessedSeq {
			replay = append(replay, rec.input)
		}
	}
	for i := 0; i < len(replay); i++ {
		for j := i + 1; j < len(replay); j++ {
			if replay[j].SequenceNum < replay[i].SequenceNum {
				replay[i], replay[j] = replay[j], replay[i]
			}
		}
	}

	dt := 1.0 / float64(simstate.TickRate)
	for _, in := range replay {
		physics.ApplyInput(&c.local, in, dt)
		physics.ApplyPhysics(&c.local, dt, c.geo.Geometry, nil)
	}
}

// adjustDelay recomputes the target interpolation delay from how much
// arrival margin the last snapshot had, then slews the live delay
// toward it by one step. Called once per received snapshot.
func (c *Client) adjustDelay(serverTime float64) {
	if c.lastServerT == 0 {
		return
	}
	futureBuffer := serverTime - (c.lastServerT + c.currentDelay)
	target := c.targetDelay
	if futureBuffer < 0 {
		target = c.currentDelay + simstate.DelayGrowStep
	} else if futureBuffer > simstate.DelayGrowStep {
		target = c.currentDelay - simstate.DelayGrowStep
	}
	if target < simstate.MinInterpDelay {
		target = simstate.MinInterpDelay
	}
	if target > simstate.MaxInterpDelay {
		target = simstate.MaxInterpDelay
	}
	c.targetDelay = target

	if c.currentDelay < c.targetDelay {
		c.currentDelay += simstate.DelayGrowStep
		if c.currentDelay > c.targetDelay {
			c.currentDelay = c.targetDelay
		}
	} else if c.currentDelay > c.targetDelay {
		c.currentDelay -= simstate.DelayGrowStep
		if c.currentDelay < c.targetDelay {
			c.currentDelay = c.targetDelay
		}
	}
}

// RenderState returns the interpolated state of every remote player at
// the current render time (lastServerTime - currentDelay).
func (c *Client) RenderState() map[int8]simstate.Player {
	c.mu.Lock()
	defer c.mu.Unlock()

	renderTime := c.lastServerT - c.currentDelay
	out := make(map[int8]simstate.Player, len(c.remotes))
	for idx, samples := range c.remotes {
		out[idx] = interpolate(samples, renderTime)
	}
	return out
}

// interpolate finds the two samples bracketing t and linearly blends
// position/velocity/yaw between them, snapping to the later sample
// across a teleport, death, or respawn. Falls back to the nearest
// sample if t is outside the buffered range (snapshot loss or startup).
func interpolate(samples []remoteSample, t float64) simstate.Player {
	if len(samples) == 0 {
		return simstate.NewInactivePlayer()
	}
	if t <= samples[0].serverTime {
		return samples[0].player
	}
	last := samples[len(samples)-1]
	if t >= last.serverTime {
		return last.player
	}

	for i := 0; i < len(samples)-1; i++ {
		a, b := samples[i], samples[i+1]
		if t >= a.serverTime && t <= b.serverTime {
			span := b.serverTime - a.serverTime
			if span <= 0 {
				return b.player
			}
			frac := (t - a.serverTime) / span

			// A teleport, a death, or a respawn between the two samples
			// means the straight-line blend would sweep the player
			// through the map; snap to the later sample instead.
			if a.player.Position.Sub(b.player.Position).Len() > simstate.TeleportDistance ||
				a.player.Health <= 0 ||
				b.player.Health > a.player.Health {
				return b.player
			}

			out := b.player
			out.Position = a.player.Position.Add(b.player.Position.Sub(a.player.Position).Mul(frac))
			out.Velocity = a.player.Velocity.Add(b.player.Velocity.Sub(a.player.Velocity).Mul(frac))
			out.Yaw = a.player.Yaw + shortestYawDelta(a.player.Yaw, b.player.Yaw)*frac
			out.Pitch = a.player.Pitch + (b.player.Pitch-a.player.Pitch)*frac
			return out
		}
	}
	return last.player
}

// shortestYawDelta returns the signed angular difference from a to b,
// wrapped into [-pi, pi], so interpolation always turns the short way
// around instead of the long way when a sample crosses the +-pi seam.
func shortestYawDelta(a, b float64) float64 {
	delta := math.Mod(b-a+math.Pi, 2*math.Pi)
	if delta < 0 {
		delta += 2 * math.Pi
	}
	return delta - math.Pi
}
