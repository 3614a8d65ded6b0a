// Package wire defines the on-the-wire packet format: a fixed 10-byte
// header carrying the reliability fields, followed by a message-type
// specific payload. Every encode/decode function here works on a
// pre-sized []byte and a running offset, using manual little-endian
// packing rather than reflection-based serialization.
package wire

import (
	"encoding/binary"
	"errors"
	"math"

	"duelcore/pkg/quantize"
)

// MessageType identifies the payload that follows the header.
type MessageType uint8

const (
	MsgServerSnapshot MessageType = 1
	MsgClientInput     MessageType = 2
	MsgPlayerLeft      MessageType = 3
	MsgPlayerDied      MessageType = 4
	MsgConnectRequest  MessageType = 5
	MsgConnectAccept   MessageType = 6
)

// HeaderSize is the fixed reliability header length: type, flags,
// sequence, ack, ack_bits.
const HeaderSize = 10

// Header is the reliability envelope prefixed to every packet.
type Header struct {
	Type     MessageType
	Flags    uint8
	Sequence uint16
	Ack      uint16
	AckBits  uint32
}

// PutHeader writes h into buf[0:HeaderSize]. buf must be at least
// HeaderSize bytes.
func PutHeader(buf []byte, h Header) {
	buf[0] = byte(h.Type)
	buf[1] = h.Flags
	binary.LittleEndian.PutUint16(buf[2:4], h.Sequence)
	binary.LittleEndian.PutUint16(buf[4:6], h.Ack)
	binary.LittleEndian.PutUint32(buf[6:10], h.AckBits)
}

// ErrShortPacket is returned when a buffer is too small to contain the
// structure being decoded.
var ErrShortPacket = errors.New("wire: packet too short")

// GetHeader reads a Header from the front of buf.
func GetHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, ErrShortPacket
	}
	return Header{
		Type:     MessageType(buf[0]),
		Flags:    buf[1],
		Sequence: binary.LittleEndian.Uint16(buf[2:4]),
		Ack:      binary.LittleEndian.Uint16(buf[4:6]),
		AckBits:  binary.LittleEndian.Uint32(buf[6:10]),
	}, nil
}

// playerSize is the packed size of a quantize.Player on the wire.
const playerSize = 1 + 1 + 2*3 + 1*3 + 1 + 1 + 1 + 1

func putPlayer(buf []byte, p quantize.Player) {
	buf[0] = byte(p.PlayerIdx)
	buf[1] = byte(p.Health)
	binary.LittleEndian.PutUint16(buf[2:4], uint16(p.PosX))
	binary.LittleEndian.PutUint16(buf[4:6], uint16(p.PosY))
	binary.LittleEndian.PutUint16(buf[6:8], uint16(p.PosZ))
	buf[8] = byte(p.VelX)
	buf[9] = byte(p.VelY)
	buf[10] = byte(p.VelZ)
	buf[11] = p.Yaw
	buf[12] = byte(p.Pitch)
	buf[13] = p.Flags
	buf[14] = p.JumpsRemaining
}

func getPlayer(buf []byte) quantize.Player {
	return quantize.Player{
		PlayerIdx: int8(buf[0]),
		Health:    int8(buf[1]),
		PosX:      int16(binary.LittleEndian.Uint16(buf[2:4])),
		PosY:      int16(binary.LittleEndian.Uint16(buf[4:6])),
		PosZ:      int16(binary.LittleEndian.Uint16(buf[6:8])),
		VelX:      int8(buf[8]),
		VelY:      int8(buf[9]),
		VelZ:      int8(buf[10]),
		Yaw:       buf[11],
		Pitch:     int8(buf[12]),
		Flags:     buf[13],
		JumpsRemaining: buf[14],
	}
}

// shotSize is the packed size of a quantize.Shot on the wire. Length is
// a single byte of whole meters, not position-scaled.
const shotSize = 1 + 2*3 + 1*3 + 1

func putShot(buf []byte, s quantize.Shot) {
	buf[0] = byte(s.ShooterIdx)
	binary.LittleEndian.PutUint16(buf[1:3], uint16(s.OriginX))
	binary.LittleEndian.PutUint16(buf[3:5], uint16(s.OriginY))
	binary.LittleEndian.PutUint16(buf[5:7], uint16(s.OriginZ))
	buf[7] = byte(s.DirX)
	buf[8] = byte(s.DirY)
	buf[9] = byte(s.DirZ)
	buf[10] = s.Length
}

func getShot(buf []byte) quantize.Shot {
	return quantize.Shot{
		ShooterIdx: int8(buf[0]),
		OriginX:    int16(binary.LittleEndian.Uint16(buf[1:3])),
		OriginY:    int16(binary.LittleEndian.Uint16(buf[3:5])),
		OriginZ:    int16(binary.LittleEndian.Uint16(buf[5:7])),
		DirX:       int8(buf[7]),
		DirY:       int8(buf[8]),
		DirZ:       int8(buf[9]),
		Length:     buf[10],
	}
}

// SnapshotPacket is the decoded payload of a MsgServerSnapshot.
type SnapshotPacket struct {
	ServerTime       float64
	LastProcessedSeq uint32
	Players          []quantize.Player
	Shots            []quantize.Shot
}

// PutSnapshot appends a snapshot payload (without header) to buf and
// returns the extended slice.
func PutSnapshot(buf []byte, s SnapshotPacket) []byte {
	head := make([]byte, 8+4+1+1)
	binary.LittleEndian.PutUint64(head[0:8], math.Float64bits(s.ServerTime))
	binary.LittleEndian.PutUint32(head[8:12], s.LastProcessedSeq)
	head[12] = byte(len(s.Players))
	head[13] = byte(len(s.Shots))
	buf = append(buf, head...)

	for _, p := range s.Players {
		pb := make([]byte, playerSize)
		putPlayer(pb, p)
		buf = append(buf, pb...)
	}
	for _, sh := range s.Shots {
		sb := make([]byte, shotSize)
		putShot(sb, sh)
		buf = append(buf, sb...)
	}
	return buf
}

// GetSnapshot decodes a snapshot payload from buf.
func GetSnapshot(buf []byte) (SnapshotPacket, error) {
	if len(buf) < 14 {
		return SnapshotPacket{}, ErrShortPacket
	}
	var s SnapshotPacket
	s.ServerTime = math.Float64frombits(binary.LittleEndian.Uint64(buf[0:8]))
	s.LastProcessedSeq = binary.LittleEndian.Uint32(buf[8:12])
	numPlayers := int(buf[12])
	numShots := int(buf[13])
	off := 14

	need := off + numPlayers*playerSize + numShots*shotSize
	if len(buf) < need {
		return SnapshotPacket{}, ErrShortPacket
	}

	s.Players = make([]quantize.Player, numPlayers)
	for i := 0; i < numPlayers; i++ {
		s.Players[i] = getPlayer(buf[off : off+playerSize])
		off += playerSize
	}
	s.Shots = make([]quantize.Shot, numShots)
	for i := 0; i < numShots; i++ {
		s.Shots[i] = getShot(buf[off : off+shotSize])
		off += shotSize
	}
	return s, nil
}

// InputPacket is the decoded payload of a MsgClientInput.
type InputPacket struct {
	SequenceNum uint32
	MoveX       float64
	MoveZ       float64
	LookYaw     float64
	LookPitch   float64
	Buttons     uint8
	ShotTime    float64
	Time        float64
}

const inputPacketSize = 4 + 8*6 + 1

// PutInput appends an input payload to buf.
func PutInput(buf []byte, in InputPacket) []byte {
	b := make([]byte, inputPacketSize)
	binary.LittleEndian.PutUint32(b[0:4], in.SequenceNum)
	binary.LittleEndian.PutUint64(b[4:12], math.Float64bits(in.MoveX))
	binary.LittleEndian.PutUint64(b[12:20], math.Float64bits(in.MoveZ))
	binary.LittleEndian.PutUint64(b[20:28], math.Float64bits(in.LookYaw))
	binary.LittleEndian.PutUint64(b[28:36], math.Float64bits(in.LookPitch))
	b[36] = in.Buttons
	binary.LittleEndian.PutUint64(b[37:45], math.Float64bits(in.ShotTime))
	binary.LittleEndian.PutUint64(b[45:53], math.Float64bits(in.Time))
	return append(buf, b...)
}

// GetInput decodes an input payload from buf.
func GetInput(buf []byte) (InputPacket, error) {
	if len(buf) < inputPacketSize {
		return InputPacket{}, ErrShortPacket
	}
	return InputPacket{
		SequenceNum: binary.LittleEndian.Uint32(buf[0:4]),
		MoveX:       math.Float64frombits(binary.LittleEndian.Uint64(buf[4:12])),
		MoveZ:       math.Float64frombits(binary.LittleEndian.Uint64(buf[12:20])),
		LookYaw:     math.Float64frombits(binary.LittleEndian.Uint64(buf[20:28])),
		LookPitch:   math.Float64frombits(binary.LittleEndian.Uint64(buf[28:36])),
		Buttons:     buf[36],
		ShotTime:    math.Float64frombits(binary.LittleEndian.Uint64(buf[37:45])),
		Time:        math.Float64frombits(binary.LittleEndian.Uint64(buf[45:53])),
	}, nil
}
