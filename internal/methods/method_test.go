package methods

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/malinoff/amqproto-sub000/internal/buffer"
	"github.com/malinoff/amqproto-sub000/internal/encoding"
)

func TestLookupKnownMethod(t *testing.T) {
	spec := Lookup(ClassConnection, 10)
	require.NotNil(t, spec)
	require.Equal(t, "connection.start", spec.Name())
}

func TestLookupUnknownMethod(t *testing.T) {
	require.Nil(t, Lookup(9999, 9999))
}

func TestEncodeDecodeRoundTripConnectionTune(t *testing.T) {
	m, err := New(ClassConnection, 30, map[string]interface{}{
		"channel-max": uint16(2047),
		"frame-max":   uint32(131072),
		"heartbeat":   uint16(60),
	})
	require.NoError(t, err)

	var w buffer.Buffer
	require.NoError(t, Encode(&w, m))

	got, err := Decode(w.Bytes())
	require.NoError(t, err)
	require.Equal(t, m.Key, got.Key)
	require.EqualValues(t, 2047, got.Uint16("channel-max"))
	require.EqualValues(t, 131072, got.Uint32("frame-max"))
	require.EqualValues(t, 60, got.Uint16("heartbeat"))
}

func TestEncodeDecodeRoundTripWithConsecutiveBits(t *testing.T) {
	m, err := New(ClassQueue, 10, map[string]interface{}{
		"queue":       "orders",
		"passive":     false,
		"durable":     true,
		"exclusive":   false,
		"auto-delete": true,
		"no-wait":     false,
		"arguments":   encoding.Table{},
	})
	require.NoError(t, err)

	var w buffer.Buffer
	require.NoError(t, Encode(&w, m))

	got, err := Decode(w.Bytes())
	require.NoError(t, err)
	require.Equal(t, "orders", got.Str("queue"))
	require.False(t, got.Bool("passive"))
	require.True(t, got.Bool("durable"))
	require.False(t, got.Bool("exclusive"))
	require.True(t, got.Bool("auto-delete"))
	require.False(t, got.Bool("no-wait"))
}

func TestNewFillsReservedFieldsWithZeroValue(t *testing.T) {
	m, err := New(ClassConnection, 40, map[string]interface{}{"virtual-host": "/"})
	require.NoError(t, err)
	require.Equal(t, "/", m.Str("virtual-host"))
	require.Equal(t, "", m.Fields["reserved-1"])
	require.Equal(t, false, m.Fields["reserved-2"])
}

func TestDecodeUnknownMethodReturnsError(t *testing.T) {
	var w buffer.Buffer
	encoding.WriteShort(&w, 9999)
	encoding.WriteShort(&w, 9999)

	_, err := Decode(w.Bytes())
	require.Error(t, err)
}

func TestBasicPublishStringsAndBitsRoundTrip(t *testing.T) {
	m, err := New(ClassBasic, 40, map[string]interface{}{
		"exchange":    "amq.topic",
		"routing-key": "orders.created",
		"mandatory":   true,
		"immediate":   false,
	})
	require.NoError(t, err)

	var w buffer.Buffer
	require.NoError(t, Encode(&w, m))
	got, err := Decode(w.Bytes())
	require.NoError(t, err)
	require.Equal(t, "amq.topic", got.Str("exchange"))
	require.Equal(t, "orders.created", got.Str("routing-key"))
	require.True(t, got.Bool("mandatory"))
	require.False(t, got.Bool("immediate"))
}
