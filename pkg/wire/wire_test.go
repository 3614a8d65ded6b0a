package wire

import (
	"testing"

	"duelcore/pkg/quantize"
)

func TestHeaderRoundTrip(t *testing.T) {
	buf := make([]byte, HeaderSize)
	PutHeader(buf, Header{Type: MsgServerSnapshot, Flags: 1, Sequence: 42, Ack: 41, AckBits: 0xFF})

	hdr, err := GetHeader(buf)
	if err != nil {
		t.Fatal(err)
	}
	if hdr.Type != MsgServerSnapshot || hdr.Sequence != 42 || hdr.Ack != 41 || hdr.AckBits != 0xFF {
		t.Fatalf("header round trip mismatch: %+v", hdr)
	}
}

func TestGetHeaderShortBuffer(t *testing.T) {
	if _, err := GetHeader(make([]byte, 4)); err != ErrShortPacket {
		t.Fatalf("expected ErrShortPacket, got %v", err)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	buf := make([]byte, 0, 128)
	pkt := SnapshotPacket{
		ServerTime:       12.5,
		LastProcessedSeq: 99,
		Players: []quantize.Player{
			{PlayerIdx: 0, Health: 100, PosX: 500, PosY: 1000, PosZ: -250},
			{PlayerIdx: 1, Health: 50, PosX: -500, PosY: 2000, PosZ: 750},
		},
		Shots: []quantize.Shot{
			{ShooterIdx: 0, OriginX: 100, OriginY: 200, OriginZ: 300, DirX: 127, Length: 50},
		},
	}
	buf = PutSnapshot(buf, pkt)

	decoded, err := GetSnapshot(buf)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.ServerTime != pkt.ServerTime || decoded.LastProcessedSeq != pkt.LastProcessedSeq {
		t.Fatalf("scalar fields mismatch: %+v", decoded)
	}
	if len(decoded.Players) != 2 || len(decoded.Shots) != 1 {
		t.Fatalf("wrong element counts: %d players, %d shots", len(decoded.Players), len(decoded.Shots))
	}
	if decoded.Players[1].PosZ != 750 {
		t.Fatalf("player field mismatch: %+v", decoded.Players[1])
	}
}

func TestInputRoundTrip(t *testing.T) {
	buf := PutInput(nil, InputPacket{
		SequenceNum: 7,
		MoveX:       0.5,
		MoveZ:       -0.25,
		LookYaw:     1.0,
		LookPitch:   -0.5,
		Buttons:     3,
		ShotTime:    2.5,
		Time:        2.51,
	})

	decoded, err := GetInput(buf)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.SequenceNum != 7 || decoded.Buttons != 3 || decoded.MoveX != 0.5 {
		t.Fatalf("input round trip mismatch: %+v", decoded)
	}
}
