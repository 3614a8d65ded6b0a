// Package server implements the authoritative tick loop: draining
// input packets, simulating movement and lag-compensated shots,
// broadcasting quantized snapshots, and housekeeping the reliable
// transport. It owns all game state; clients only ever see it through
// the snapshots this package sends out.
package server

import (
	"context"
	"log/slog"
	"math"
	"net"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"duelcore/pkg/mapgen"
	"duelcore/pkg/mathgeom"
	"duelcore/pkg/physics"
	"duelcore/pkg/quantize"
	"duelcore/pkg/ringpool"
	"duelcore/pkg/simstate"
	"duelcore/pkg/transport"
	"duelcore/pkg/wire"
)

// clientSlot binds a connected peer to a player index and its pending
// input queue. Every field here is touched only from the tick
// goroutine; the receive goroutine never reaches into a clientSlot or
// a PeerState directly, it only ever hands raw datagrams across the
// packet pool.
type clientSlot struct {
	peer      *transport.PeerState
	player    *simstate.Player
	inputs    []simstate.InputMessage
	respawnAt float64 // server time to respawn at; 0 means not scheduled
}

// Server holds all authoritative state for one match.
type Server struct {
	log *slog.Logger

	tr   *transport.Transport
	geo  mapgen.Map
	pool *ringpool.Pool

	slots   [simstate.MaxPlayers]*clientSlot
	history [simstate.HistorySize]simstate.Snapshot
	histLen int
	histPos int

	tick          uint64
	serverTime    float64
	lastHousekeep time.Time

	pendingShots []simstate.Shot

	spawnRand func() float64

	Metrics Hooks
}

// Hooks lets an observability layer (Prometheus, logging, tests) watch
// server activity without the tick loop importing anything about it.
type Hooks struct {
	PacketsReceived func()
	PacketsSent     func()
	PacketsDropped  func()
	TickDuration    func(time.Duration)
	ShotFired       func()
	ShotHit         func()
	PeerConnected   func()
	PeerTimedOut    func()
}

func (h Hooks) call(f func()) {
	if f != nil {
		f()
	}
}

// New binds a UDP listener and prepares an empty match.
func New(addr string, log *slog.Logger, spawnRand func() float64) (*Server, error) {
	tr, err := transport.Listen(addr)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	if spawnRand == nil {
		spawnRand = defaultSpawnRand()
	}
	return &Server{
		log:       log,
		tr:        tr,
		geo:       mapgen.Generate(),
		pool:      ringpool.NewPool(simstate.PacketPoolSize),
		spawnRand: spawnRand,
	}, nil
}

func defaultSpawnRand() func() float64 {
	var x uint64 = 0x9e3779b97f4a7c15
	return func() float64 {
		x ^= x << 13
		x ^= x >> 7
		x ^= x << 17
		return float64(x%1_000_000) / 1_000_000.0
	}
}

// Close releases the socket.
func (s *Server) Close() error { return s.tr.Close() }

// LocalAddr exposes the bound address for tests and logging.
func (s *Server) LocalAddr() net.Addr { return s.tr.LocalAddr() }

// Run drives the receive goroutine and the fixed tick loop until ctx is
// cancelled. The receive goroutine only ever reads datagrams off the
// socket and hands them across the packet pool; every other piece of
// state -- peer sequence/ack fields, the retransmit window, connected
// slots, player state -- is mutated exclusively from the tick loop's
// goroutine, so none of it needs a lock.
func (s *Server) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		s.receiveLoop(ctx)
	}()

	s.tickLoop(ctx)
	wg.Wait()
	return nil
}

// receiveLoop is the sole producer into the packet pool: pop a free
// buffer index, recvfrom into it, push the filled index. It never
// touches a PeerState or Server field.
func (s *Server) receiveLoop(ctx context.Context) {
	// An acquired index is kept across read timeouts rather than released,
	// so only the tick goroutine ever pushes into the free ring.
	idx, held := 0, false
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !held {
			idx, held = s.pool.Acquire()
		}
		if !held {
			// Pool exhausted: the tick loop isn't draining fast enough.
			// Drop this datagram rather than block the socket reader.
			var scratch [simstate.MaxPacketSize]byte
			if _, _, err := s.tr.ReadFrom(scratch[:], 100*time.Millisecond); err == nil {
				s.Metrics.call(s.Metrics.PacketsDropped)
			}
			continue
		}
		pkt := s.pool.At(idx)
		n, addr, err := s.tr.ReadFrom(pkt.Buf[:], 100*time.Millisecond)
		if err != nil {
			continue
		}
		pkt.Len = n
		pkt.Addr = addr
		if s.pool.Submit(idx) {
			held = false
		}
	}
}

// drainPackets is the sole consumer of the packet pool, called once per
// tick from the tick goroutine.
func (s *Server) drainPackets() {
	for {
		idx, ok := s.pool.Poll()
		if !ok {
			return
		}
		pkt := s.pool.At(idx)
		s.handlePacket(pkt.Addr, pkt.Buf[:pkt.Len])
		s.pool.Release(idx)
		s.Metrics.call(s.Metrics.PacketsReceived)
	}
}

// housekeep runs peer retransmits and timeout eviction. Called from the
// tick loop on a wall-clock interval, never from its own goroutine, so
// it never races the packet handlers above.
func (s *Server) housekeep(now time.Time) {
	for _, p := range s.tr.Peers() {
		for _, payload := range p.DueRetransmits(now) {
			_ = s.tr.Send(p.Addr, payload)
		}
		if p.TimedOut(now) {
			s.removePeer(p)
			s.Metrics.call(s.Metrics.PeerTimedOut)
		}
	}
}

func (s *Server) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(simstate.TickTime)
	defer ticker.Stop()
	snapshotEvery := simstate.TickRate / simstate.SnapshotRate

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			start := time.Now()
			s.drainPackets()
			if now.Sub(s.lastHousekeep) >= simstate.NetworkUpdateInterval {
				s.housekeep(now)
				s.lastHousekeep = now
			}
			s.simulateTick()
			s.tick++
			if s.tick%uint64(snapshotEvery) == 0 {
				s.broadcastSnapshot()
			}
			s.Metrics.call(func() { s.Metrics.TickDuration(time.Since(start)) })
		}
	}
}

func (s *Server) handlePacket(addr *net.UDPAddr, buf []byte) {
	hdr, err := wire.GetHeader(buf)
	if err != nil {
		return
	}
	peer := s.tr.PeerFor(addr)
	accepted := peer.OnPacketReceived(hdr.Sequence)
	peer.AckFromRemote(hdr.Ack, hdr.AckBits)
	if !accepted {
		return
	}

	switch hdr.Type {
	case wire.MsgConnectRequest:
		s.handleConnect(addr, peer)
	case wire.MsgClientInput:
		in, err := wire.GetInput(buf[wire.HeaderSize:])
		if err != nil {
			return
		}
		s.bufferInput(peer, in)
	}
}

func (s *Server) handleConnect(addr *net.UDPAddr, peer *transport.PeerState) {
	for _, slotP := range s.slots {
		if slotP != nil && slotP.peer == peer {
			return
		}
	}

	idx := -1
	for i, slotP := range s.slots {
		if slotP == nil {
			idx = i
			break
		}
	}
	if idx == -1 {
		return
	}

	player := simstate.NewInactivePlayer()
	player.PlayerIdx = int8(idx)
	player.Health = simstate.StartingHealth
	player.Position = s.geo.SpawnPoint(s.spawnRand)

	s.slots[idx] = &clientSlot{peer: peer, player: &player}
	s.Metrics.call(s.Metrics.PeerConnected)

	seq := peer.NextSequence()
	ack, bits := peer.AckAndBits()
	out := make([]byte, wire.HeaderSize, wire.HeaderSize+1)
	wire.PutHeader(out, wire.Header{Type: wire.MsgConnectAccept, Sequence: seq, Ack: ack, AckBits: bits})
	out = append(out, byte(idx))
	peer.TrackPending(seq, out)
	_ = s.tr.Send(addr, out)
	s.Metrics.call(s.Metrics.PacketsSent)
}

func (s *Server) removePeer(p *transport.PeerState) {
	for i, slotP := range s.slots {
		if slotP != nil && slotP.peer == p {
			s.broadcastEvent(wire.MsgPlayerLeft, byte(slotP.player.PlayerIdx))
			s.slots[i] = nil
		}
	}
	s.tr.RemovePeer(p.Addr)
}

func (s *Server) bufferInput(peer *transport.PeerState, in wire.InputPacket) {
	var target *clientSlot
	for _, slotP := range s.slots {
		if slotP != nil && slotP.peer == peer {
			target = slotP
			break
		}
	}
	if target == nil {
		return
	}

	msg := simstate.InputMessage{
		SequenceNum: in.SequenceNum,
		MoveX:       in.MoveX,
		MoveZ:       in.MoveZ,
		LookYaw:     in.LookYaw,
		LookPitch:   in.LookPitch,
		Buttons:     in.Buttons,
		ShotTime:    in.ShotTime,
		Time:        in.Time,
	}

	if len(target.inputs) < simstate.InputBufferSize {
		target.inputs = append(target.inputs, msg)
	}
}

func (s *Server) activePlayers() []*simstate.Player {
	var out []*simstate.Player
	for _, slotP := range s.slots {
		if slotP != nil {
			out = append(out, slotP.player)
		}
	}
	return out
}

func (s *Server) simulateTick() {
	dt := 1.0 / float64(simstate.TickRate)
	s.serverTime += dt

	s.processRespawns()

	players := s.activePlayers()

	for _, slotP := range s.slots {
		if slotP == nil {
			continue
		}
		pending := slotP.inputs
		slotP.inputs = nil

		for _, in := range pending {
			// Unreliable transport means duplicated or reordered
			// CLIENT_INPUT packets are normal; skip anything at or
			// behind what's already been applied so last_processed_seq
			// stays monotonic and a shot never double-fires.
			if in.SequenceNum <= slotP.player.LastProcessedSeq {
				continue
			}
			if !slotP.player.Alive() {
				continue
			}
			physics.ApplyInput(slotP.player, in, dt)
			physics.ApplyPhysics(slotP.player, dt, s.geo.Geometry, players)
			slotP.player.LastProcessedSeq = in.SequenceNum

			if in.ShootPressed() {
				s.resolveShot(slotP.player, in)
			}
		}
	}

	s.recordHistory()
}

// processRespawns respawns any player whose death timer has elapsed.
// Death and respawn are tracked in server time rather than a
// goroutine-plus-wall-clock timer so the only thing that ever mutates
// player state is this tick loop.
func (s *Server) processRespawns() {
	for _, slotP := range s.slots {
		if slotP == nil || slotP.respawnAt == 0 {
			continue
		}
		if s.serverTime < slotP.respawnAt {
			continue
		}
		slotP.respawnAt = 0
		slotP.player.Health = simstate.StartingHealth
		slotP.player.Position = s.geo.SpawnPoint(s.spawnRand)
		slotP.player.Velocity = mgl64.Vec3{}
		slotP.player.OnGround = false
		slotP.player.WallRunning = false
		slotP.player.JumpsRemaining = simstate.MaxJumps
	}
}

func (s *Server) resolveShot(shooter *simstate.Player, in simstate.InputMessage) {
	snap := s.snapshotAt(in.ShotTime)

	eye := shooter.Position
	eye[1] += simstate.PlayerEyeHeight

	dir := lookDirection(shooter.Yaw, shooter.Pitch)
	ray := mathgeom.Ray{Origin: eye, Direction: dir, Length: simstate.MaxShootRange}

	s.Metrics.call(s.Metrics.ShotFired)

	for _, o := range s.geo.Geometry {
		if hit, ok := mathgeom.RaycastOBB(ray, o); ok && hit.Distance < ray.Length {
			ray.Length = hit.Distance
		}
	}

	for i := range snap.Players {
		target := &snap.Players[i]
		if !target.Active() || target.PlayerIdx == shooter.PlayerIdx || !target.Alive() {
			continue
		}
		if _, ok := mathgeom.RaycastSphere(ray, target.Position, simstate.PlayerRadius); ok {
			s.applyDamage(target.PlayerIdx)
			s.Metrics.call(s.Metrics.ShotHit)
			break
		}
	}

	s.pendingShots = append(s.pendingShots, simstate.Shot{
		ShooterIdx: shooter.PlayerIdx,
		Ray:        simstate.Ray{Origin: eye, Direction: dir, Length: simstate.MaxShootRange},
		SpawnTime:  s.serverTime,
	})
}

// lookDirection converts yaw/pitch into a unit forward vector, matching
// the shot-ray construction used by the original engine's shot creation.
func lookDirection(yaw, pitch float64) mgl64.Vec3 {
	return mgl64.Vec3{
		math.Cos(yaw) * math.Cos(pitch),
		math.Sin(pitch),
		math.Sin(yaw) * math.Cos(pitch),
	}
}

func (s *Server) applyDamage(idx int8) {
	for _, slotP := range s.slots {
		if slotP != nil && slotP.player.PlayerIdx == idx {
			slotP.player.Health -= simstate.BulletDamage
			if slotP.player.Health <= 0 {
				slotP.respawnAt = s.serverTime + simstate.RespawnDelay.Seconds()
				s.broadcastEvent(wire.MsgPlayerDied, byte(idx))
			}
			return
		}
	}
}

// broadcastEvent sends a one-byte reliable notification (a player
// index) to every connected peer, tracked in the retransmit window
// like any other outbound packet.
func (s *Server) broadcastEvent(msgType wire.MessageType, payload byte) {
	for _, slotP := range s.slots {
		if slotP == nil || slotP.peer == nil {
			continue
		}
		seq := slotP.peer.NextSequence()
		ack, bits := slotP.peer.AckAndBits()
		out := make([]byte, wire.HeaderSize, wire.HeaderSize+1)
		wire.PutHeader(out, wire.Header{Type: msgType, Sequence: seq, Ack: ack, AckBits: bits})
		out = append(out, payload)
		slotP.peer.TrackPending(seq, out)
		if err := s.tr.Send(slotP.peer.Addr, out); err == nil {
			s.Metrics.call(s.Metrics.PacketsSent)
		}
	}
}

func (s *Server) recordHistory() {
	snap := simstate.Snapshot{Timestamp: s.serverTime}
	for i, slotP := range s.slots {
		if slotP != nil {
			snap.Players[i] = slotP.player.Clone()
		} else {
			snap.Players[i] = simstate.NewInactivePlayer()
		}
	}
	s.history[s.histPos] = snap
	s.histPos = (s.histPos + 1) % simstate.HistorySize
	if s.histLen < simstate.HistorySize {
		s.histLen++
	}
}

// snapshotAt returns the historical snapshot whose timestamp is
// closest to, but not after, shotTime -- lag compensation rewinds the
// world to what the shooter actually saw. Falls back to the latest
// snapshot if shotTime is newer than anything recorded (clock skew) or
// older than the whole history window.
func (s *Server) snapshotAt(shotTime float64) simstate.Snapshot {
	if s.histLen == 0 {
		return simstate.Snapshot{}
	}

	latest := s.history[(s.histPos-1+simstate.HistorySize)%simstate.HistorySize]
	for i := 0; i < s.histLen; i++ {
		idx := (s.histPos - 1 - i + simstate.HistorySize*2) % simstate.HistorySize
		snap := s.history[idx]
		if snap.Timestamp <= shotTime {
			return snap
		}
	}
	return latest
}

func (s *Server) broadcastSnapshot() {
	shots := s.pendingShots
	s.pendingShots = nil

	var quantPlayers []quantize.Player
	for _, slotP := range s.slots {
		if slotP != nil {
			quantPlayers = append(quantPlayers, quantize.Encode(*slotP.player))
		}
	}
	var quantShots []quantize.Shot
	for _, sh := range shots {
		quantShots = append(quantShots, quantize.EncodeShot(sh))
	}
	serverTime := s.serverTime

	for _, slotP := range s.slots {
		if slotP == nil {
			continue
		}
		seq := slotP.peer.NextSequence()
		ack, bits := slotP.peer.AckAndBits()
		buf := make([]byte, wire.HeaderSize)
		wire.PutHeader(buf, wire.Header{Type: wire.MsgServerSnapshot, Sequence: seq, Ack: ack, AckBits: bits})
		buf = wire.PutSnapshot(buf, wire.SnapshotPacket{
			ServerTime:       serverTime,
			LastProcessedSeq: slotP.player.LastProcessedSeq,
			Players:          quantPlayers,
			Shots:            quantShots,
		})
		if err := s.tr.Send(slotP.peer.Addr, buf); err == nil {
			s.Metrics.call(s.Metrics.PacketsSent)
		}
	}
}
