package transport

import "testing"

func TestSeqGreaterHandlesWraparound(t *testing.T) {
	if !seqGreater(1, 0) {
		t.Fatal("1 should be more recent than 0")
	}
	if seqGreater(0, 1) {
		t.Fatal("0 should not be more recent than 1")
	}
	if !seqGreater(0, 65535) {
		t.Fatal("0 should be more recent than 65535 (wraparound)")
	}
	if seqGreater(65535, 0) {
		t.Fatal("65535 should not be more recent than 0 (wraparound)")
	}
}

func TestPeerStateAckBits(t *testing.T) {
	p := &PeerState{}
	p.OnPacketReceived(5)
	p.OnPacketReceived(4)
	p.OnPacketReceived(2)

	ack, bits := p.AckAndBits()
	if ack != 5 {
		t.Fatalf("expected ack 5, got %d", ack)
	}
	if bits&(1<<0) == 0 {
		t.Fatal("expected bit0 set for seq 4")
	}
	if bits&(1<<2) == 0 {
		t.Fatal("expected bit2 set for seq 2")
	}
	if bits&(1<<1) != 0 {
		t.Fatal("did not expect bit1 set for seq 3, which was never received")
	}
}

func TestOnPacketReceivedRejectsDuplicatesAndStale(t *testing.T) {
	p := &PeerState{}
	if !p.OnPacketReceived(10) {
		t.Fatal("expected first-ever sequence to be accepted")
	}
	if p.OnPacketReceived(10) {
		t.Fatal("expected exact duplicate of the most recent sequence to be rejected")
	}
	if !p.OnPacketReceived(9) {
		t.Fatal("expected an unseen, in-window earlier sequence to be accepted")
	}
	if p.OnPacketReceived(9) {
		t.Fatal("expected duplicate of an already-seen earlier sequence to be rejected")
	}
	var stale uint16 = 10
	stale -= 40
	if p.OnPacketReceived(stale) {
		t.Fatal("expected a sequence older than the window to be rejected as stale")
	}
}

func TestOnPacketReceivedForwardJumpOfExactlyWindowSizeKeepsPreviousBit(t *testing.T) {
	p := &PeerState{}
	p.OnPacketReceived(0)
	p.OnPacketReceived(32)

	_, bits := p.AckAndBits()
	if bits != 1<<31 {
		t.Fatalf("expected forward jump of exactly 32 to shift the previous sequence into bit 31, got %#x", bits)
	}
}

func TestAckFromRemoteClearsWindow(t *testing.T) {
	p := &PeerState{}
	seq := p.NextSequence()
	p.TrackPending(seq, []byte{1, 2, 3})

	if !p.Window[slot(seq)].valid {
		t.Fatal("expected pending entry to be tracked")
	}

	p.AckFromRemote(seq, 0)
	if p.Window[slot(seq)].valid {
		t.Fatal("expected pending entry to be cleared after ack")
	}
}
