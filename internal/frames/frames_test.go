package frames

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	f := Frame{Type: TypeMethod, ChannelID: 1, Payload: []byte{0x00, 0x0A, 0x00, 0x0A}}
	b, err := Encode(f)
	require.NoError(t, err)
	require.Equal(t, byte(FrameEnd), b[len(b)-1])
	require.Equal(t, len(f.Payload), len(b)-HeaderOverhead)

	got, n, result, err := Decode(b)
	require.NoError(t, err)
	require.Equal(t, Complete, result)
	require.Equal(t, len(b), n)
	require.Equal(t, f.Type, got.Type)
	require.Equal(t, f.ChannelID, got.ChannelID)
	require.Equal(t, f.Payload, got.Payload)
}

func TestDecodeIncomplete(t *testing.T) {
	f := Frame{Type: TypeMethod, ChannelID: 0, Payload: []byte{1, 2, 3, 4, 5}}
	b, err := Encode(f)
	require.NoError(t, err)

	_, n, result, err := Decode(b[:len(b)-3])
	require.NoError(t, err)
	require.Equal(t, Incomplete, result)
	require.Zero(t, n)
}

func TestDecodeBadSentinel(t *testing.T) {
	f := Frame{Type: TypeHeartbeat, ChannelID: 0, Payload: nil}
	b, err := Encode(f)
	require.NoError(t, err)
	b[len(b)-1] = 0x00

	_, _, _, err = Decode(b)
	require.Error(t, err)
}

func TestDecodeUnknownType(t *testing.T) {
	b := []byte{0xFF, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, FrameEnd}
	_, _, _, err := Decode(b)
	require.Error(t, err)
}

func TestProtocolHeaderConstant(t *testing.T) {
	require.Equal(t, []byte{'A', 'M', 'Q', 'P', 0, 0, 9, 1}, ProtocolHeader[:])
}

func TestDecodeProtocolHeader(t *testing.T) {
	hdr := ProtocolHeaderFor(0, 9, 1)
	major, minor, revision, n, ok := DecodeProtocolHeader(hdr[:])
	require.True(t, ok)
	require.Equal(t, 8, n)
	require.EqualValues(t, 0, major)
	require.EqualValues(t, 9, minor)
	require.EqualValues(t, 1, revision)
}

func TestDecodeProtocolHeaderRejectsGarbage(t *testing.T) {
	_, _, _, _, ok := DecodeProtocolHeader([]byte("GET / HTTP"))
	require.False(t, ok)
}
