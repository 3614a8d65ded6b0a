// Package transport implements the reliable-UDP layer: per-peer
// sequence tracking, piggybacked ack/ack-bits, a fixed retransmit
// window, and peer timeout. It knows nothing about game state; callers
// hand it payload bytes to send and get payload bytes (plus the sender
// address) back out as packets arrive.
package transport

import (
	"net"
	"sync"
	"time"

	"duelcore/pkg/simstate"
)

// seqGreater compares two 16-bit sequence numbers accounting for
// wraparound, exactly as a signed 16-bit subtraction would in C.
func seqGreater(a, b uint16) bool {
	return int16(a-b) > 0
}

// PendingPacket is one entry in a peer's retransmit window.
type PendingPacket struct {
	Payload           []byte
	SendTime          time.Time
	NextRetransmit    time.Time
	RetryCount        int
	valid             bool
}

// PeerState tracks the reliability bookkeeping for one remote address.
type PeerState struct {
	Addr           *net.UDPAddr
	LocalSequence  uint16
	RemoteSequence uint16
	RemoteAckBits  uint32
	Window         [simstate.WindowSize]PendingPacket
	LastRecvTime   time.Time
	hasReceivedAny bool
}

func newPeerState(addr *net.UDPAddr) *PeerState {
	return &PeerState{Addr: addr, LastRecvTime: time.Now()}
}

// slot returns the window slot a sequence number maps to.
func slot(seq uint16) int { return int(seq) % simstate.WindowSize }

// Received is what the caller gets back from Receive: a decoded
// payload plus which peer it came from.
type Received struct {
	Peer    *PeerState
	Payload []byte
}

// Transport owns a UDP socket and the set of known peers.
type Transport struct {
	conn *net.UDPConn

	mu    sync.Mutex
	peers map[string]*PeerState
}

// Listen opens a UDP socket bound to addr (server-style; empty addr for
// an ephemeral client port).
func Listen(addr string) (*Transport, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}
	return &Transport{conn: conn, peers: make(map[string]*PeerState)}, nil
}

// LocalAddr returns the bound local address.
func (t *Transport) LocalAddr() net.Addr { return t.conn.LocalAddr() }

// Close releases the underlying socket.
func (t *Transport) Close() error { return t.conn.Close() }

// PeerFor returns (creating if needed) the PeerState for a remote
// address.
func (t *Transport) PeerFor(addr *net.UDPAddr) *PeerState {
	key := addr.String()
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.peers[key]
	if !ok {
		p = newPeerState(addr)
		t.peers[key] = p
	}
	return p
}

// RemovePeer drops a peer's state, e.g. after a timeout.
func (t *Transport) RemovePeer(addr *net.UDPAddr) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.peers, addr.String())
}

// Peers returns a snapshot of currently known peers.
func (t *Transport) Peers() []*PeerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*PeerState, 0, len(t.peers))
	for _, p := range t.peers {
		out = append(out, p)
	}
	return out
}

// OnPacketReceived updates the peer's ack state for an inbound packet
// sequence and marks the peer as recently heard from. The returned
// bool reports whether seq is new (true) or a duplicate/stale delivery
// already accounted for (false); callers must not dispatch a packet to
// application logic when it returns false, so a retransmitted or
// network-duplicated packet reaches the application at most once.
func (p *PeerState) OnPacketReceived(seq uint16) bool {
	accepted := p.markReceived(seq)
	p.Touch()
	return accepted
}

// markReceived encodes receipt of the 32 sequences preceding
// RemoteSequence into a bitfield, bit i set meaning RemoteSequence-1-i
// was received. Since RemoteSequence itself is always the most
// recently received sequence, this is folded into RemoteAckBits as
// each inbound packet updates it. Returns true if seq had not already
// been recorded as received.
func (p *PeerState) markReceived(seq uint16) bool {
	if !p.hasReceivedAny || seqGreater(seq, p.RemoteSequence) {
		if p.hasReceivedAny {
			shift := uint32(seq - p.RemoteSequence)
			if shift > 32 {
				p.RemoteAckBits = 0
			} else if shift == 32 {
				p.RemoteAckBits = 1 << 31
			} else {
				p.RemoteAckBits <<= shift
				p.RemoteAckBits |= 1 << (shift - 1)
			}
		}
		p.RemoteSequence = seq
		p.hasReceivedAny = true
		return true
	}

	shift := uint32(p.RemoteSequence - seq)
	if shift < 1 || shift > 32 {
		return false // older than the window can track: stale
	}
	bit := uint32(1) << (shift - 1)
	if p.RemoteAckBits&bit != 0 {
		return false // already recorded: duplicate
	}
	p.RemoteAckBits |= bit
	return true
}

// AckAndBits returns the (ack, ack_bits) pair to piggyback on the next
// outgoing packet to this peer.
func (p *PeerState) AckAndBits() (uint16, uint32) {
	return p.RemoteSequence, p.RemoteAckBits
}

// NextSequence returns this peer's next outgoing sequence number and
// advances the counter.
func (p *PeerState) NextSequence() uint16 {
	seq := p.LocalSequence
	p.LocalSequence++
	return seq
}

// TrackPending records a just-sent payload in the retransmit window
// under its sequence number.
func (p *PeerState) TrackPending(seq uint16, payload []byte) {
	s := &p.Window[slot(seq)]
	s.Payload = append([]byte(nil), payload...)
	s.SendTime = time.Now()
	s.NextRetransmit = s.SendTime.Add(retransmitInterval)
	s.RetryCount = 0
	s.valid = true
}

const retransmitInterval = 150 * time.Millisecond

// AckFromRemote clears window slots acknowledged by a remote ack/bits
// pair received on an inbound packet.
func (p *PeerState) AckFromRemote(ack uint16, bits uint32) {
	p.clearIfPending(ack)
	for i := 0; i < 32; i++ {
		if bits&(1<<uint(i)) != 0 {
			p.clearIfPending(ack - 1 - uint16(i))
		}
	}
}

func (p *PeerState) clearIfPending(seq uint16) {
	s := &p.Window[slot(seq)]
	if s.valid {
		s.valid = false
		s.Payload = nil
	}
}

// DueRetransmits returns the payloads for window entries whose next
// retransmit time has passed, bumping their retry count and next
// retransmit deadline. Entries that exceed the max retry count are
// dropped from the window (treated as an unrecoverable send failure).
func (p *PeerState) DueRetransmits(now time.Time) [][]byte {
	var out [][]byte
	for i := range p.Window {
		s := &p.Window[i]
		if !s.valid || now.Before(s.NextRetransmit) {
			continue
		}
		if s.RetryCount >= simstate.MaxRetransmitAttempts {
			s.valid = false
			s.Payload = nil
			continue
		}
		out = append(out, s.Payload)
		s.RetryCount++
		s.NextRetransmit = now.Add(retransmitInterval)
	}
	return out
}

// TimedOut reports whether the peer has been silent longer than the
// configured inactivity timeout.
func (p *PeerState) TimedOut(now time.Time) bool {
	return now.Sub(p.LastRecvTime) > simstate.PeerInactivityTimeout
}

// Touch marks the peer as having just been heard from.
func (p *PeerState) Touch() { p.LastRecvTime = time.Now() }

// Send writes payload to addr over the socket.
func (t *Transport) Send(addr *net.UDPAddr, payload []byte) error {
	_, err := t.conn.WriteToUDP(payload, addr)
	return err
}

// ReadFrom performs one blocking read from the socket into buf, with a
// deadline so the receive goroutine can periodically check its
// shutdown signal instead of blocking forever.
func (t *Transport) ReadFrom(buf []byte, deadline time.Duration) (int, *net.UDPAddr, error) {
	if err := t.conn.SetReadDeadline(time.Now().Add(deadline)); err != nil {
		return 0, nil, err
	}
	n, addr, err := t.conn.ReadFromUDP(buf)
	return n, addr, err
}
