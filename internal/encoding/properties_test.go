package encoding

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/malinoff/amqproto-sub000/internal/buffer"
)

func strPtr(s string) *string { return &s }
func u8Ptr(v uint8) *uint8    { return &v }

func TestBasicPropertiesRoundTripAllFields(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	headers := NewTable(map[string]interface{}{"x-retry": int32(3)})
	p := BasicProperties{
		ContentType:     strPtr("application/json"),
		ContentEncoding: strPtr("utf-8"),
		Headers:         &headers,
		DeliveryMode:    u8Ptr(2),
		Priority:        u8Ptr(5),
		CorrelationID:   strPtr("corr-1"),
		ReplyTo:         strPtr("replies"),
		Expiration:      strPtr("60000"),
		MessageID:       strPtr("msg-1"),
		Timestamp:       &now,
		Type:            strPtr("order.created"),
		UserID:          strPtr("guest"),
		AppID:           strPtr("orders-svc"),
	}

	var w buffer.Buffer
	require.NoError(t, EncodeBasicProperties(&w, p))

	got, err := DecodeBasicProperties(buffer.New(w.Bytes()))
	require.NoError(t, err)

	require.Equal(t, *p.ContentType, *got.ContentType)
	require.Equal(t, *p.ContentEncoding, *got.ContentEncoding)
	require.Equal(t, *p.DeliveryMode, *got.DeliveryMode)
	require.Equal(t, *p.Priority, *got.Priority)
	require.Equal(t, *p.CorrelationID, *got.CorrelationID)
	require.Equal(t, *p.ReplyTo, *got.ReplyTo)
	require.Equal(t, *p.Expiration, *got.Expiration)
	require.Equal(t, *p.MessageID, *got.MessageID)
	require.True(t, now.Equal(*got.Timestamp))
	require.Equal(t, *p.Type, *got.Type)
	require.Equal(t, *p.UserID, *got.UserID)
	require.Equal(t, *p.AppID, *got.AppID)
	v, ok := got.Headers.Get("x-retry")
	require.True(t, ok)
	require.Equal(t, int32(3), v)
}

func TestBasicPropertiesRoundTripNoFieldsSet(t *testing.T) {
	var w buffer.Buffer
	require.NoError(t, EncodeBasicProperties(&w, BasicProperties{}))
	require.Len(t, w.Bytes(), 2) // flag word only

	got, err := DecodeBasicProperties(buffer.New(w.Bytes()))
	require.NoError(t, err)
	require.Nil(t, got.ContentType)
	require.Nil(t, got.Headers)
}

func TestBasicPropertiesRejectsContinuationBit(t *testing.T) {
	var w buffer.Buffer
	WriteShort(&w, continuationBit)

	_, err := DecodeBasicProperties(buffer.New(w.Bytes()))
	require.Error(t, err)
	var niErr *NotImplementedError
	require.ErrorAs(t, err, &niErr)
}

func TestBasicPropertiesPartialFieldSet(t *testing.T) {
	p := BasicProperties{
		DeliveryMode: u8Ptr(1),
		MessageID:    strPtr("only-this"),
	}

	var w buffer.Buffer
	require.NoError(t, EncodeBasicProperties(&w, p))

	got, err := DecodeBasicProperties(buffer.New(w.Bytes()))
	require.NoError(t, err)
	require.Nil(t, got.ContentType)
	require.NotNil(t, got.DeliveryMode)
	require.Equal(t, uint8(1), *got.DeliveryMode)
	require.NotNil(t, got.MessageID)
	require.Equal(t, "only-this", *got.MessageID)
	require.Nil(t, got.AppID)
}
