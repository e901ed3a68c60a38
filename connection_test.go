package amqp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/malinoff/amqproto-sub000/internal/buffer"
	"github.com/malinoff/amqproto-sub000/internal/encoding"
	"github.com/malinoff/amqproto-sub000/internal/frames"
	"github.com/malinoff/amqproto-sub000/internal/fsm"
	"github.com/malinoff/amqproto-sub000/internal/methods"
)

// encodeServerMethod builds the wire bytes for a single method frame, as
// if sent by a broker, for feeding into Connection.Feed in tests.
func encodeServerMethod(t *testing.T, channelID uint16, classID, methodID uint16, fields map[string]interface{}) []byte {
	t.Helper()
	m, err := methods.New(classID, methodID, fields)
	require.NoError(t, err)
	var w buffer.Buffer
	require.NoError(t, methods.Encode(&w, m))
	f, err := frames.Encode(frames.Frame{Type: frames.TypeMethod, ChannelID: channelID, Payload: w.Bytes()})
	require.NoError(t, err)
	return f
}

func decodeMethodFrame(t *testing.T, b []byte) methods.Method {
	t.Helper()
	f, n, result, err := frames.Decode(b)
	require.NoError(t, err)
	require.Equal(t, frames.Complete, result)
	require.Equal(t, len(b), n)
	require.Equal(t, frames.TypeMethod, f.Type)
	m, err := methods.Decode(f.Payload)
	require.NoError(t, err)
	return m
}

func TestConnectionOpenSendsProtocolHeader(t *testing.T) {
	c, err := NewConnection()
	require.NoError(t, err)
	require.NoError(t, c.Open())

	hdr := frames.ProtocolHeaderFor(0, 9, 1)
	require.Equal(t, hdr[:], c.DataToSend())
}

func TestConnectionHandshakeNegotiatesTuningAndSendsDefaultPlainResponse(t *testing.T) {
	c, err := NewConnection()
	require.NoError(t, err)
	require.NoError(t, c.Open())
	_ = c.DataToSend() // drain protocol header

	serverProps := encoding.NewTable(map[string]interface{}{"product": "rabbitmq"})
	startFrame := encodeServerMethod(t, 0, methods.ClassConnection, 10, map[string]interface{}{
		"server-properties": serverProps,
		"mechanisms":        "PLAIN",
		"locales":           "en_US",
	})
	events, err := c.Feed(startFrame)
	require.NoError(t, err)
	require.Empty(t, events)

	out := c.DataToSend()
	startOk := decodeMethodFrame(t, out)
	require.Equal(t, "connection.start-ok", startOk.Spec.Name())
	require.Equal(t, "PLAIN", startOk.Str("mechanism"))
	require.Equal(t, "\x00guest\x00guest", startOk.Str("response"))

	tuneFrame := encodeServerMethod(t, 0, methods.ClassConnection, 30, map[string]interface{}{
		"channel-max": uint16(10),
		"frame-max":   uint32(131072),
		"heartbeat":   uint16(60),
	})
	events, err = c.Feed(tuneFrame)
	require.NoError(t, err)
	require.Empty(t, events)

	out = c.DataToSend()
	// tune-ok followed immediately by open, both on channel 0.
	fTuneOk, n, result, err := frames.Decode(out)
	require.NoError(t, err)
	require.Equal(t, frames.Complete, result)
	mTuneOk, err := methods.Decode(fTuneOk.Payload)
	require.NoError(t, err)
	require.Equal(t, "connection.tune-ok", mTuneOk.Spec.Name())
	require.EqualValues(t, 10, mTuneOk.Uint16("channel-max"))
	require.EqualValues(t, 131072, mTuneOk.Uint32("frame-max"))
	require.EqualValues(t, 60, mTuneOk.Uint16("heartbeat"))

	mOpen := decodeMethodFrame(t, out[n:])
	require.Equal(t, "connection.open", mOpen.Spec.Name())
	require.Equal(t, "/", mOpen.Str("virtual-host"))

	require.EqualValues(t, 10, c.NegotiatedChannelMax())
	require.EqualValues(t, 131072, c.NegotiatedFrameMax())
	require.Equal(t, 60*time.Second, c.NegotiatedHeartbeat())

	openOkFrame := encodeServerMethod(t, 0, methods.ClassConnection, 41, nil)
	events, err = c.Feed(openOkFrame)
	require.NoError(t, err)
	require.Empty(t, events)
	require.Equal(t, "rabbitmq", c.ServerProperties().Map()["product"])

	require.NoError(t, c.Wait())
}

// openedConnection drives a full default-parameters handshake and returns
// a Connection in the OPEN phase, for tests that only care about
// post-handshake behavior.
func openedConnection(t *testing.T) *Connection {
	t.Helper()
	c, err := NewConnection()
	require.NoError(t, err)
	require.NoError(t, c.Open())
	_ = c.DataToSend()

	startFrame := encodeServerMethod(t, 0, methods.ClassConnection, 10, map[string]interface{}{
		"server-properties": encoding.Table{},
	})
	_, err = c.Feed(startFrame)
	require.NoError(t, err)
	_ = c.DataToSend()

	tuneFrame := encodeServerMethod(t, 0, methods.ClassConnection, 30, map[string]interface{}{
		"channel-max": uint16(2047),
		"frame-max":   uint32(131072),
		"heartbeat":   uint16(60),
	})
	_, err = c.Feed(tuneFrame)
	require.NoError(t, err)
	_ = c.DataToSend()

	openOkFrame := encodeServerMethod(t, 0, methods.ClassConnection, 41, nil)
	_, err = c.Feed(openOkFrame)
	require.NoError(t, err)
	require.NoError(t, c.Wait())
	return c
}

func TestConnectionHardErrorClosesConnectionAndAllChannels(t *testing.T) {
	c := openedConnection(t)
	ch1, w1, err := c.Channel(0)
	require.NoError(t, err)
	_ = c.DataToSend()
	_, err = c.Feed(encodeServerMethod(t, ch1.ID(), methods.ClassChannel, 11, nil))
	require.NoError(t, err)
	_, err = w1.Wait()
	require.NoError(t, err)

	closeFrame := encodeServerMethod(t, 0, methods.ClassConnection, 50, map[string]interface{}{
		"reply-code": uint16(ReplyFrameError),
		"reply-text": "frame error",
	})
	events, err := c.Feed(closeFrame)
	require.NoError(t, err)

	var gotConnClosed bool
	for _, e := range events {
		if cc, ok := e.(ConnectionClosed); ok {
			gotConnClosed = true
			require.NotNil(t, cc.Reason)
			require.Equal(t, ReplyFrameError, cc.Reason.Code)
		}
	}
	require.True(t, gotConnClosed)
	require.Equal(t, fsm.ConnClosed, c.State())
}

func TestConnectionHeartbeatMissDetection(t *testing.T) {
	c := openedConnection(t)
	base := time.Now()
	require.NoError(t, c.CheckHeartbeats(base))

	hbFrame, err := frames.Encode(frames.Frame{Type: frames.TypeHeartbeat, ChannelID: 0, Payload: nil})
	require.NoError(t, err)
	_, err = c.Feed(hbFrame)
	require.NoError(t, err)

	require.NoError(t, c.CheckHeartbeats(base.Add(1*time.Second)))

	err = c.CheckHeartbeats(base.Add(3 * time.Minute))
	require.Error(t, err)
	require.Equal(t, fsm.ConnClosed, c.State())
}
