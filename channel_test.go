package amqp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/malinoff/amqproto-sub000/internal/buffer"
	"github.com/malinoff/amqproto-sub000/internal/encoding"
	"github.com/malinoff/amqproto-sub000/internal/frames"
	"github.com/malinoff/amqproto-sub000/internal/fsm"
	"github.com/malinoff/amqproto-sub000/internal/methods"
)

func openedChannel(t *testing.T) (*Connection, *Channel) {
	t.Helper()
	c := openedConnection(t)
	ch, w, err := c.Channel(0)
	require.NoError(t, err)
	_ = c.DataToSend()
	_, err = c.Feed(encodeServerMethod(t, ch.ID(), methods.ClassChannel, 11, nil))
	require.NoError(t, err)
	_, err = w.Wait()
	require.NoError(t, err)
	return c, ch
}

func TestBasicPublishWithConfirmsEmitsHeaderAndBodyThenAck(t *testing.T) {
	c, ch := openedChannel(t)

	confirmW, err := ch.ConfirmSelect(false)
	require.NoError(t, err)
	_ = c.DataToSend() // drain confirm.select
	_, err = c.Feed(encodeServerMethod(t, ch.ID(), methods.ClassConfirm, 11, nil))
	require.NoError(t, err)
	_, err = confirmW.Wait()
	require.NoError(t, err)

	body := []byte("hello world!")
	seqNo, err := ch.BasicPublish("", "orders", false, false, Message{Body: body})
	require.NoError(t, err)
	require.EqualValues(t, 1, seqNo)

	out := c.DataToSend()

	fPublish, n1, result, err := frames.Decode(out)
	require.NoError(t, err)
	require.Equal(t, frames.Complete, result)
	require.Equal(t, frames.TypeMethod, fPublish.Type)
	mPublish, err := methods.Decode(fPublish.Payload)
	require.NoError(t, err)
	require.Equal(t, "basic.publish", mPublish.Spec.Name())
	require.Equal(t, "orders", mPublish.Str("routing-key"))

	fHeader, n2, result, err := frames.Decode(out[n1:])
	require.NoError(t, err)
	require.Equal(t, frames.Complete, result)
	require.Equal(t, frames.TypeContentHeader, fHeader.Type)

	fBody, n3, result, err := frames.Decode(out[n1+n2:])
	require.NoError(t, err)
	require.Equal(t, frames.Complete, result)
	require.Equal(t, frames.TypeContentBody, fBody.Type)
	require.Equal(t, body, fBody.Payload)
	require.Equal(t, n1+n2+n3, len(out)) // exactly 3 frames, nothing else interleaved

	ackFrame := encodeServerMethod(t, ch.ID(), methods.ClassBasic, 80, map[string]interface{}{
		"delivery-tag": uint64(1), "multiple": false,
	})
	events, err := c.Feed(ackFrame)
	require.NoError(t, err)
	require.Len(t, events, 1)
	acked, ok := events[0].(Acked)
	require.True(t, ok)
	require.EqualValues(t, 1, acked.DeliveryTag)
}

func TestBasicConsumeDeliversMessageAsEvent(t *testing.T) {
	c := openedConnection(t)
	ch, w, err := c.Channel(0)
	require.NoError(t, err)
	_ = c.DataToSend()
	_, err = c.Feed(encodeServerMethod(t, ch.ID(), methods.ClassChannel, 11, nil))
	require.NoError(t, err)
	_, err = w.Wait()
	require.NoError(t, err)

	tag, consumeW, err := ch.BasicConsume("orders", "foo", false, false, false, false, nil)
	require.NoError(t, err)
	require.Equal(t, "foo", tag)
	_ = c.DataToSend()
	_, err = c.Feed(encodeServerMethod(t, ch.ID(), methods.ClassBasic, 21, map[string]interface{}{"consumer-tag": "foo"}))
	require.NoError(t, err)
	_, err = consumeW.Wait()
	require.NoError(t, err)

	deliverFrame := encodeServerMethod(t, ch.ID(), methods.ClassBasic, 60, map[string]interface{}{
		"consumer-tag": "foo", "delivery-tag": uint64(7), "redelivered": false,
		"exchange": "", "routing-key": "orders",
	})
	var headerBuf buffer.Buffer
	encoding.WriteShort(&headerBuf, methods.ClassBasic)
	encoding.WriteShort(&headerBuf, 0)
	body := []byte("hello")
	encoding.WriteLonglong(&headerBuf, uint64(len(body)))
	require.NoError(t, encoding.EncodeBasicProperties(&headerBuf, encoding.BasicProperties{}))
	headerFrame, err := frames.Encode(frames.Frame{Type: frames.TypeContentHeader, ChannelID: ch.ID(), Payload: headerBuf.Bytes()})
	require.NoError(t, err)
	bodyFrame, err := frames.Encode(frames.Frame{Type: frames.TypeContentBody, ChannelID: ch.ID(), Payload: body})
	require.NoError(t, err)

	var in []byte
	in = append(in, deliverFrame...)
	in = append(in, headerFrame...)
	in = append(in, bodyFrame...)

	events, err := c.Feed(in)
	require.NoError(t, err)
	require.Len(t, events, 1)
	delivered, ok := events[0].(Delivered)
	require.True(t, ok)
	require.Equal(t, "foo", delivered.ConsumerTag)
	require.EqualValues(t, 7, delivered.DeliveryTag)
	require.Equal(t, "hello", string(delivered.Body))
	require.Equal(t, "orders", delivered.RoutingKey)
}

func TestSoftChannelErrorClosesOnlyThatChannel(t *testing.T) {
	c, ch := openedChannel(t)

	getW, err := ch.BasicGet("missing-queue", false)
	require.NoError(t, err)
	_ = c.DataToSend()

	closeFrame := encodeServerMethod(t, ch.ID(), methods.ClassChannel, 40, map[string]interface{}{
		"reply-code": uint16(ReplyPreconditionFail), "reply-text": "precondition failed",
		"class-id": uint16(methods.ClassBasic), "method-id": uint16(70),
	})
	events, err := c.Feed(closeFrame)
	require.NoError(t, err)

	var gotChannelClosed bool
	for _, e := range events {
		if cc, ok := e.(ChannelClosed); ok {
			gotChannelClosed = true
			require.Equal(t, ReplyPreconditionFail, cc.Reason.Code)
		}
	}
	require.True(t, gotChannelClosed)

	_, err = getW.Wait()
	require.Error(t, err)
	var chErr *ChannelError
	require.ErrorAs(t, err, &chErr)
	require.Equal(t, ReplyPreconditionFail, chErr.Reason.Code)

	// The connection itself stays open; a second channel still works.
	require.Equal(t, fsm.ConnOpen, c.State())
	ch2, w2, err := c.Channel(0)
	require.NoError(t, err)
	require.NotEqual(t, ch.ID(), ch2.ID())
	_ = c.DataToSend()
	_, err = c.Feed(encodeServerMethod(t, ch2.ID(), methods.ClassChannel, 11, nil))
	require.NoError(t, err)
	_, err = w2.Wait()
	require.NoError(t, err)
}
