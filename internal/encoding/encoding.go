// Package encoding implements the AMQP 0-9-1 wire codec: the primitive
// domains (bit, octet, short, long, longlong, float, double, decimal,
// short-string, long-string, timestamp, field table, field array, void,
// byte-array) used by internal/methods and internal/frames.
//
// Every encoder writes into a *buffer.Buffer; every decoder reads from
// one. Truncated input surfaces as buffer.ErrInsufficientData so callers
// feeding bytes incrementally (the connection engine) can tell "not a
// full frame yet" apart from "malformed frame" (FrameError/SyntaxError).
package encoding

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/malinoff/amqproto-sub000/internal/buffer"
)

// ErrCond names an AMQP reply condition, e.g. "amqp:channel:not-found".
type ErrCond string

// SyntaxError is returned when decoded data violates a domain's value
// range or UTF-8 requirement (spec.md §4.1).
type SyntaxError struct {
	Msg string
}

func (e *SyntaxError) Error() string { return "amqp: syntax error: " + e.Msg }

// FrameError is returned for unknown type tags and other local framing
// problems that must force a connection close (reply code 501).
type FrameError struct {
	Msg string
}

func (e *FrameError) Error() string { return "amqp: frame error: " + e.Msg }

func syntaxErrorf(format string, args ...interface{}) error {
	return &SyntaxError{Msg: fmt.Sprintf(format, args...)}
}

func frameErrorf(format string, args ...interface{}) error {
	return &FrameError{Msg: fmt.Sprintf(format, args...)}
}

// --- fixed-width primitives -------------------------------------------------

// WriteOctet writes a single unsigned byte. Bit fields are not written
// with it: consecutive bits are packed into shared octets by BitPacker.
func WriteOctet(w *buffer.Buffer, v uint8) {
	_ = w.WriteByte(v)
}

func ReadOctet(r *buffer.Buffer) (uint8, error) {
	return r.ReadByte()
}

func WriteShort(w *buffer.Buffer, v uint16) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	w.Append(tmp[:])
}

func ReadShort(r *buffer.Buffer) (uint16, error) {
	b, err := r.Next(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func WriteLong(w *buffer.Buffer, v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	w.Append(tmp[:])
}

func ReadLong(r *buffer.Buffer) (uint32, error) {
	b, err := r.Next(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func WriteLonglong(w *buffer.Buffer, v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	w.Append(tmp[:])
}

func ReadLonglong(r *buffer.Buffer) (uint64, error) {
	b, err := r.Next(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func WriteFloat(w *buffer.Buffer, v float32) {
	WriteLong(w, math.Float32bits(v))
}

func ReadFloat(r *buffer.Buffer) (float32, error) {
	v, err := ReadLong(r)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func WriteDouble(w *buffer.Buffer, v float64) {
	WriteLonglong(w, math.Float64bits(v))
}

func ReadDouble(r *buffer.Buffer) (float64, error) {
	v, err := ReadLonglong(r)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// Decimal is {scale, value} meaning value * 10^-scale (spec.md §4.1).
type Decimal struct {
	Scale uint8
	Value int32
}

func WriteDecimal(w *buffer.Buffer, d Decimal) {
	WriteOctet(w, d.Scale)
	WriteLong(w, uint32(d.Value))
}

func ReadDecimal(r *buffer.Buffer) (Decimal, error) {
	scale, err := ReadOctet(r)
	if err != nil {
		return Decimal{}, err
	}
	v, err := ReadLong(r)
	if err != nil {
		return Decimal{}, err
	}
	return Decimal{Scale: scale, Value: int32(v)}, nil
}

// Timestamp is a u64 POSIX-seconds value (spec.md §4.1).
func WriteTimestamp(w *buffer.Buffer, t time.Time) {
	WriteLonglong(w, uint64(t.Unix()))
}

func ReadTimestamp(r *buffer.Buffer) (time.Time, error) {
	v, err := ReadLonglong(r)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(int64(v), 0).UTC(), nil
}

// --- strings -----------------------------------------------------------

const maxShortStrLen = 255

func WriteShortString(w *buffer.Buffer, s string) error {
	if len(s) > maxShortStrLen {
		return syntaxErrorf("short string exceeds %d bytes: %d", maxShortStrLen, len(s))
	}
	if !utf8.ValidString(s) {
		return syntaxErrorf("short string is not valid UTF-8")
	}
	WriteOctet(w, uint8(len(s)))
	w.Append([]byte(s))
	return nil
}

func ReadShortString(r *buffer.Buffer) (string, error) {
	n, err := ReadOctet(r)
	if err != nil {
		return "", err
	}
	b, err := r.Next(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", syntaxErrorf("short string is not valid UTF-8")
	}
	return string(b), nil
}

func WriteLongString(w *buffer.Buffer, s string) error {
	if uint64(len(s)) > math.MaxUint32 {
		return syntaxErrorf("long string exceeds 2^32-1 bytes")
	}
	if !utf8.ValidString(s) {
		return syntaxErrorf("long string is not valid UTF-8")
	}
	WriteLong(w, uint32(len(s)))
	w.Append([]byte(s))
	return nil
}

func ReadLongString(r *buffer.Buffer) (string, error) {
	n, err := ReadLong(r)
	if err != nil {
		return "", err
	}
	b, err := r.Next(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", syntaxErrorf("long string is not valid UTF-8")
	}
	return string(b), nil
}

// WriteByteArray/ReadByteArray handle the 'x' domain: a u32-length-prefixed
// opaque blob (no UTF-8 requirement, unlike long-string).
func WriteByteArray(w *buffer.Buffer, b []byte) error {
	if uint64(len(b)) > math.MaxUint32 {
		return syntaxErrorf("byte array exceeds 2^32-1 bytes")
	}
	WriteLong(w, uint32(len(b)))
	w.Append(b)
	return nil
}

func ReadByteArray(r *buffer.Buffer) ([]byte, error) {
	n, err := ReadLong(r)
	if err != nil {
		return nil, err
	}
	b, err := r.Next(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// --- bit packing ---------------------------------------------------------

// BitPacker accumulates consecutive "bit" fields into shared octets,
// LSB first, flushing whenever a non-bit field is written (spec.md §3).
type BitPacker struct {
	w      *buffer.Buffer
	cur    byte
	nbits  uint
	active bool
}

func NewBitPacker(w *buffer.Buffer) *BitPacker {
	return &BitPacker{w: w}
}

func (p *BitPacker) WriteBit(v bool) {
	if v {
		p.cur |= 1 << p.nbits
	}
	p.nbits++
	p.active = true
	if p.nbits == 8 {
		p.Flush()
	}
}

// Flush writes the current partial octet (if any bits are pending) and
// resets. Must be called before encoding any non-bit field.
func (p *BitPacker) Flush() {
	if p.active {
		_ = p.w.WriteByte(p.cur)
	}
	p.cur = 0
	p.nbits = 0
	p.active = false
}

// BitUnpacker is the decode-side mirror of BitPacker.
type BitUnpacker struct {
	r     *buffer.Buffer
	cur   byte
	nbits uint
	ready bool
}

func NewBitUnpacker(r *buffer.Buffer) *BitUnpacker {
	return &BitUnpacker{r: r}
}

func (u *BitUnpacker) ReadBit() (bool, error) {
	if !u.ready || u.nbits == 8 {
		b, err := u.r.ReadByte()
		if err != nil {
			return false, err
		}
		u.cur = b
		u.nbits = 0
		u.ready = true
	}
	v := (u.cur>>u.nbits)&1 == 1
	u.nbits++
	return v, nil
}

// Reset discards any unread bits of the current octet so the next field
// decoded starts a fresh octet, mirroring BitPacker.Flush.
func (u *BitUnpacker) Reset() {
	u.ready = false
	u.nbits = 0
}

// Wrapf re-exports pkg/errors.Wrapf for annotating a codec error with
// context. The codec functions in this package return their errors
// unwrapped.
var Wrapf = errors.Wrapf
