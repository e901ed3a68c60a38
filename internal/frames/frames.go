// Package frames implements the outermost AMQP 0-9-1 wire envelope: the
// 7-byte frame header, the 0xCE end-of-frame sentinel, and the special
// protocol-header preamble exchanged before any framed traffic (spec.md
// §3, §6).
package frames

import (
	"github.com/malinoff/amqproto-sub000/internal/buffer"
	"github.com/malinoff/amqproto-sub000/internal/encoding"
)

// Type identifies the kind of payload a Frame carries.
type Type uint8

const (
	TypeMethod        Type = 1
	TypeContentHeader Type = 2
	TypeContentBody   Type = 3
	TypeHeartbeat     Type = 8
)

func (t Type) String() string {
	switch t {
	case TypeMethod:
		return "METHOD"
	case TypeContentHeader:
		return "CONTENT_HEADER"
	case TypeContentBody:
		return "CONTENT_BODY"
	case TypeHeartbeat:
		return "HEARTBEAT"
	default:
		return "UNKNOWN"
	}
}

// FrameEnd is the trailing sentinel byte of every frame (spec.md §6).
const FrameEnd = 0xCE

// MinFrameSize is the minimum negotiable frame_max (spec.md §6).
const MinFrameSize = 4096

// HeaderOverhead is the number of bytes consumed by the 7-byte frame
// header plus the 1-byte end sentinel; a frame's payload may be at most
// negotiated.frame_max - HeaderOverhead bytes (spec.md §3's invariant).
const HeaderOverhead = 8

// ProtocolHeader is the literal preamble "AMQP\x00" + major + minor +
// revision sent before the handshake begins (spec.md §3, §6).
var ProtocolHeader = [8]byte{'A', 'M', 'Q', 'P', 0, 0, 9, 1}

// ProtocolHeaderFor builds a protocol header for an arbitrary version;
// ProtocolHeaderFor(0, 9, 1) equals the ProtocolHeader constant above.
func ProtocolHeaderFor(major, minor, revision uint8) [8]byte {
	return [8]byte{'A', 'M', 'Q', 'P', 0, major, minor, revision}
}

// Frame is the tagged record described in spec.md §3.
type Frame struct {
	Type      Type
	ChannelID uint16
	Payload   []byte
}

// Encode serializes f as type(u8) | channel(u16) | length(u32) | payload | 0xCE.
// It fails if the payload exceeds the domain range of the u32 length field.
func Encode(f Frame) ([]byte, error) {
	if uint64(len(f.Payload)) > 0xFFFFFFFF {
		return nil, &encoding.FrameError{Msg: "frame payload exceeds u32 length field"}
	}
	var w buffer.Buffer
	_ = w.WriteByte(byte(f.Type))
	encoding.WriteShort(&w, f.ChannelID)
	encoding.WriteLong(&w, uint32(len(f.Payload)))
	w.Append(f.Payload)
	_ = w.WriteByte(FrameEnd)
	return w.Detach(), nil
}

// DecodeResult is returned by Decode.
type DecodeResult int

const (
	// Complete indicates a full frame was decoded.
	Complete DecodeResult = iota
	// Incomplete indicates fewer than 7+length+1 bytes are available; the
	// caller should wait for more bytes and retry with the same buf.
	Incomplete
)

// Decode attempts to parse one frame from the front of buf. It returns
// the frame, the number of bytes consumed, and whether decoding
// completed or needs more data. A structurally invalid frame (bad
// sentinel, unknown type) returns a *encoding.FrameError.
func Decode(buf []byte) (Frame, int, DecodeResult, error) {
	if len(buf) < HeaderOverhead {
		return Frame{}, 0, Incomplete, nil
	}
	r := buffer.New(buf)
	typeByte, _ := r.ReadByte()
	channel, _ := encoding.ReadShort(r)
	length, _ := encoding.ReadLong(r)

	total := HeaderOverhead + int(length)
	if len(buf) < total {
		return Frame{}, 0, Incomplete, nil
	}

	payload := make([]byte, length)
	copy(payload, buf[7:7+length])

	if buf[total-1] != FrameEnd {
		return Frame{}, 0, Complete, &encoding.FrameError{Msg: "frame missing 0xCE end sentinel"}
	}

	t := Type(typeByte)
	switch t {
	case TypeMethod, TypeContentHeader, TypeContentBody, TypeHeartbeat:
	default:
		return Frame{}, 0, Complete, &encoding.FrameError{Msg: "unknown frame type"}
	}

	return Frame{Type: t, ChannelID: channel, Payload: payload}, total, Complete, nil
}

// DecodeProtocolHeader attempts to parse a protocol-header preamble from
// the front of buf (used only by the server/broker side of a handshake;
// included for symmetry and for tests that feed a malformed preamble to
// provoke the "bad protocol header" fatal transition of spec.md §4.3).
func DecodeProtocolHeader(buf []byte) (major, minor, revision uint8, consumed int, ok bool) {
	if len(buf) < 8 {
		return 0, 0, 0, 0, false
	}
	if buf[0] != 'A' || buf[1] != 'M' || buf[2] != 'Q' || buf[3] != 'P' || buf[4] != 0 {
		return 0, 0, 0, 0, false
	}
	return buf[5], buf[6], buf[7], 8, true
}
