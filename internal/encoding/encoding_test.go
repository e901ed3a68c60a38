package encoding

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/malinoff/amqproto-sub000/internal/buffer"
)

func TestOctetRoundTrip(t *testing.T) {
	var w buffer.Buffer
	WriteOctet(&w, 0xAB)
	v, err := ReadOctet(buffer.New(w.Bytes()))
	require.NoError(t, err)
	require.EqualValues(t, 0xAB, v)
}

func TestShortLongLonglongRoundTrip(t *testing.T) {
	var w buffer.Buffer
	WriteShort(&w, 0xBEEF)
	WriteLong(&w, 0xDEADBEEF)
	WriteLonglong(&w, 0x0123456789ABCDEF)

	r := buffer.New(w.Bytes())
	s, err := ReadShort(r)
	require.NoError(t, err)
	require.EqualValues(t, 0xBEEF, s)
	l, err := ReadLong(r)
	require.NoError(t, err)
	require.EqualValues(t, 0xDEADBEEF, l)
	ll, err := ReadLonglong(r)
	require.NoError(t, err)
	require.EqualValues(t, 0x0123456789ABCDEF, ll)
}

func TestShortStringRoundTrip(t *testing.T) {
	var w buffer.Buffer
	require.NoError(t, WriteShortString(&w, "guest"))
	s, err := ReadShortString(buffer.New(w.Bytes()))
	require.NoError(t, err)
	require.Equal(t, "guest", s)
}

func TestShortStringTooLong(t *testing.T) {
	var w buffer.Buffer
	long := make([]byte, 256)
	for i := range long {
		long[i] = 'a'
	}
	err := WriteShortString(&w, string(long))
	require.Error(t, err)
}

func TestLongStringRoundTrip(t *testing.T) {
	var w buffer.Buffer
	require.NoError(t, WriteLongString(&w, "hello, world"))
	s, err := ReadLongString(buffer.New(w.Bytes()))
	require.NoError(t, err)
	require.Equal(t, "hello, world", s)
}

func TestTimestampRoundTrip(t *testing.T) {
	var w buffer.Buffer
	now := time.Unix(1700000000, 0).UTC()
	WriteTimestamp(&w, now)
	got, err := ReadTimestamp(buffer.New(w.Bytes()))
	require.NoError(t, err)
	require.True(t, now.Equal(got))
}

func TestDecimalRoundTrip(t *testing.T) {
	var w buffer.Buffer
	d := Decimal{Scale: 2, Value: 12345}
	WriteDecimal(&w, d)
	got, err := ReadDecimal(buffer.New(w.Bytes()))
	require.NoError(t, err)
	require.Equal(t, d, got)
}

func TestBitPackingConsecutiveBitsShareOctet(t *testing.T) {
	var w buffer.Buffer
	p := NewBitPacker(&w)
	p.WriteBit(true)
	p.WriteBit(false)
	p.WriteBit(true)
	p.Flush()

	require.Len(t, w.Bytes(), 1)
	require.EqualValues(t, 0x05, w.Bytes()[0]) // bits 0 and 2 set, LSB first

	r := buffer.New(w.Bytes())
	u := NewBitUnpacker(r)
	b0, err := u.ReadBit()
	require.NoError(t, err)
	b1, err := u.ReadBit()
	require.NoError(t, err)
	b2, err := u.ReadBit()
	require.NoError(t, err)
	require.True(t, b0)
	require.False(t, b1)
	require.True(t, b2)
}

func TestByteArrayRoundTrip(t *testing.T) {
	var w buffer.Buffer
	require.NoError(t, WriteByteArray(&w, []byte{1, 2, 3}))
	got, err := ReadByteArray(buffer.New(w.Bytes()))
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, got)
}
