package amqp

import (
	"time"

	"github.com/malinoff/amqproto-sub000/internal/encoding"
)

// Properties is the host-facing view of the Basic content properties
// named in spec.md §3. Unlike internal/encoding.BasicProperties (which
// uses pointers so the flag word round-trips exactly field-by-field),
// Properties uses plain zero-value-means-absent fields: the common,
// ergonomic convention for an AMQP 0-9-1 client's public API (also used
// by the wider Go AMQP ecosystem sampled in the example pack). A
// Properties{} therefore encodes with every flag bit clear.
type Properties struct {
	ContentType     string
	ContentEncoding string
	Headers         map[string]interface{}
	DeliveryMode    uint8
	Priority        uint8
	CorrelationID   string
	ReplyTo         string
	Expiration      string
	MessageID       string
	Timestamp       time.Time
	Type            string
	UserID          string
	AppID           string
}

func (p Properties) toWire() encoding.BasicProperties {
	var out encoding.BasicProperties
	if p.ContentType != "" {
		out.ContentType = &p.ContentType
	}
	if p.ContentEncoding != "" {
		out.ContentEncoding = &p.ContentEncoding
	}
	if p.Headers != nil {
		t := encoding.NewTable(p.Headers)
		out.Headers = &t
	}
	if p.DeliveryMode != 0 {
		out.DeliveryMode = &p.DeliveryMode
	}
	if p.Priority != 0 {
		out.Priority = &p.Priority
	}
	if p.CorrelationID != "" {
		out.CorrelationID = &p.CorrelationID
	}
	if p.ReplyTo != "" {
		out.ReplyTo = &p.ReplyTo
	}
	if p.Expiration != "" {
		out.Expiration = &p.Expiration
	}
	if p.MessageID != "" {
		out.MessageID = &p.MessageID
	}
	if !p.Timestamp.IsZero() {
		out.Timestamp = &p.Timestamp
	}
	if p.Type != "" {
		out.Type = &p.Type
	}
	if p.UserID != "" {
		out.UserID = &p.UserID
	}
	if p.AppID != "" {
		out.AppID = &p.AppID
	}
	return out
}

func fromWire(w encoding.BasicProperties) Properties {
	var p Properties
	if w.ContentType != nil {
		p.ContentType = *w.ContentType
	}
	if w.ContentEncoding != nil {
		p.ContentEncoding = *w.ContentEncoding
	}
	if w.Headers != nil {
		p.Headers = w.Headers.Map()
	}
	if w.DeliveryMode != nil {
		p.DeliveryMode = *w.DeliveryMode
	}
	if w.Priority != nil {
		p.Priority = *w.Priority
	}
	if w.CorrelationID != nil {
		p.CorrelationID = *w.CorrelationID
	}
	if w.ReplyTo != nil {
		p.ReplyTo = *w.ReplyTo
	}
	if w.Expiration != nil {
		p.Expiration = *w.Expiration
	}
	if w.MessageID != nil {
		p.MessageID = *w.MessageID
	}
	if w.Timestamp != nil {
		p.Timestamp = *w.Timestamp
	}
	if w.Type != nil {
		p.Type = *w.Type
	}
	if w.UserID != nil {
		p.UserID = *w.UserID
	}
	if w.AppID != nil {
		p.AppID = *w.AppID
	}
	return p
}

// Message is a content to publish: properties plus body (spec.md §3's
// Content data model, minus the delivery_info which is transport state
// the channel engine fills in separately for inbound deliveries).
type Message struct {
	Properties Properties
	Body       []byte
}

// partialContent accumulates an inbound content across its method,
// content-header, and content-body frames (spec.md §4.4's "Consume
// path"). It is the concrete type behind Channel.partial.
type partialContent struct {
	// kind identifies which content-carrying method started this
	// content: "deliver", "return", or "get-ok".
	kind string

	consumerTag string // "deliver"
	deliveryTag uint64 // "deliver", "get-ok"
	redelivered bool   // "deliver", "get-ok"
	exchange    string
	routingKey  string
	messageCnt  uint32 // "get-ok"
	replyCode   ReplyCode
	replyText   string

	properties Properties
	bodySize   uint64
	body       []byte
	haveHeader bool
}

func (c *partialContent) complete() bool {
	return c.haveHeader && uint64(len(c.body)) == c.bodySize
}
