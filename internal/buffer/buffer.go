// Package buffer provides the byte cursor used by internal/encoding to
// marshal and unmarshal AMQP 0-9-1 primitives without per-call allocation.
package buffer

import "errors"

// ErrInsufficientData is returned by the Read* helpers when fewer bytes
// remain than the value being decoded requires. Callers that are decoding
// a byte stream incrementally (internal/frames) treat this as "need more
// bytes", not as a malformed frame.
var ErrInsufficientData = errors.New("buffer: insufficient data")

// Buffer is an append-only write cursor plus an independent read cursor
// over the same backing slice. Zero value is ready to use.
type Buffer struct {
	b   []byte
	off int
}

// New wraps an existing slice for reading. The write cursor starts at the
// end of b, so a Buffer returned by New can also be appended to.
func New(b []byte) *Buffer {
	return &Buffer{b: b}
}

// Reset empties the buffer, retaining its backing array.
func (b *Buffer) Reset() {
	b.b = b.b[:0]
	b.off = 0
}

// Bytes returns the unread portion of the buffer.
func (b *Buffer) Bytes() []byte {
	return b.b[b.off:]
}

// Detach returns the full written slice and resets the buffer, without
// copying. The caller takes ownership of the returned slice.
func (b *Buffer) Detach() []byte {
	out := b.b
	b.b = nil
	b.off = 0
	return out
}

// Len returns the number of unread bytes.
func (b *Buffer) Len() int {
	return len(b.b) - b.off
}

// Skip advances the read cursor by n bytes without returning them.
func (b *Buffer) Skip(n int) error {
	if b.Len() < n {
		return ErrInsufficientData
	}
	b.off += n
	return nil
}

// Peek returns the next n unread bytes without advancing the cursor.
func (b *Buffer) Peek(n int) ([]byte, error) {
	if b.Len() < n {
		return nil, ErrInsufficientData
	}
	return b.b[b.off : b.off+n], nil
}

// Next returns the next n unread bytes and advances the cursor past them.
func (b *Buffer) Next(n int) ([]byte, error) {
	out, err := b.Peek(n)
	if err != nil {
		return nil, err
	}
	b.off += n
	return out, nil
}

// ReadByte implements io.ByteReader.
func (b *Buffer) ReadByte() (byte, error) {
	if b.Len() < 1 {
		return 0, ErrInsufficientData
	}
	v := b.b[b.off]
	b.off++
	return v, nil
}

// Write appends p to the buffer.
func (b *Buffer) Write(p []byte) (int, error) {
	b.b = append(b.b, p...)
	return len(p), nil
}

// WriteByte appends a single byte.
func (b *Buffer) WriteByte(c byte) error {
	b.b = append(b.b, c)
	return nil
}

// Append is an allocation-friendly alias for Write used by encoders that
// already computed their payload.
func (b *Buffer) Append(p []byte) {
	b.b = append(b.b, p...)
}
