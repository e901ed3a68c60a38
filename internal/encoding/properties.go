package encoding

import (
	"time"

	"github.com/malinoff/amqproto-sub000/internal/buffer"
)

// continuationBit is bit 0 of the flag word (spec.md §3, §9 open question
// #1). This implementation refuses it rather than supporting a second
// flag word: Basic has 14 properties, which fits in a single 16-bit flag
// word with bit 0 left over, so a compliant peer never needs it.
const continuationBit = 1 << 0

// BasicProperties holds the class-60 (Basic) content properties named in
// spec.md §3. Every field is a pointer/zero-value-means-absent so the
// flag word round-trips exactly.
type BasicProperties struct {
	ContentType     *string
	ContentEncoding *string
	Headers         *Table
	DeliveryMode    *uint8
	Priority        *uint8
	CorrelationID   *string
	ReplyTo         *string
	Expiration      *string
	MessageID       *string
	Timestamp       *time.Time
	Type            *string
	UserID          *string
	AppID           *string
}

// basicPropertyFlag bits, MSB first, matching the field order in
// spec.md §3 (grounded on amqproto/content.py's BasicProperties spec
// string "ssTBBsssstsssss" truncated to the 13 client-settable fields;
// cluster-id and the reserved field are dropped, as in spec.md's list).
const (
	flagContentType = 1 << 15
	flagContentEnc  = 1 << 14
	flagHeaders     = 1 << 13
	flagDeliveryMod = 1 << 12
	flagPriority    = 1 << 11
	flagCorrelation = 1 << 10
	flagReplyTo     = 1 << 9
	flagExpiration  = 1 << 8
	flagMessageID   = 1 << 7
	flagTimestamp   = 1 << 6
	flagType        = 1 << 5
	flagUserID      = 1 << 4
	flagAppID       = 1 << 3
)

// EncodeBasicProperties serializes the flag word followed by each present
// field, in spec order.
func EncodeBasicProperties(w *buffer.Buffer, p BasicProperties) error {
	var flags uint16
	if p.ContentType != nil {
		flags |= flagContentType
	}
	if p.ContentEncoding != nil {
		flags |= flagContentEnc
	}
	if p.Headers != nil {
		flags |= flagHeaders
	}
	if p.DeliveryMode != nil {
		flags |= flagDeliveryMod
	}
	if p.Priority != nil {
		flags |= flagPriority
	}
	if p.CorrelationID != nil {
		flags |= flagCorrelation
	}
	if p.ReplyTo != nil {
		flags |= flagReplyTo
	}
	if p.Expiration != nil {
		flags |= flagExpiration
	}
	if p.MessageID != nil {
		flags |= flagMessageID
	}
	if p.Timestamp != nil {
		flags |= flagTimestamp
	}
	if p.Type != nil {
		flags |= flagType
	}
	if p.UserID != nil {
		flags |= flagUserID
	}
	if p.AppID != nil {
		flags |= flagAppID
	}

	WriteShort(w, flags)

	if p.ContentType != nil {
		if err := WriteShortString(w, *p.ContentType); err != nil {
			return err
		}
	}
	if p.ContentEncoding != nil {
		if err := WriteShortString(w, *p.ContentEncoding); err != nil {
			return err
		}
	}
	if p.Headers != nil {
		if err := WriteTable(w, *p.Headers); err != nil {
			return err
		}
	}
	if p.DeliveryMode != nil {
		WriteOctet(w, *p.DeliveryMode)
	}
	if p.Priority != nil {
		WriteOctet(w, *p.Priority)
	}
	if p.CorrelationID != nil {
		if err := WriteShortString(w, *p.CorrelationID); err != nil {
			return err
		}
	}
	if p.ReplyTo != nil {
		if err := WriteShortString(w, *p.ReplyTo); err != nil {
			return err
		}
	}
	if p.Expiration != nil {
		if err := WriteShortString(w, *p.Expiration); err != nil {
			return err
		}
	}
	if p.MessageID != nil {
		if err := WriteShortString(w, *p.MessageID); err != nil {
			return err
		}
	}
	if p.Timestamp != nil {
		WriteTimestamp(w, *p.Timestamp)
	}
	if p.Type != nil {
		if err := WriteShortString(w, *p.Type); err != nil {
			return err
		}
	}
	if p.UserID != nil {
		if err := WriteShortString(w, *p.UserID); err != nil {
			return err
		}
	}
	if p.AppID != nil {
		if err := WriteShortString(w, *p.AppID); err != nil {
			return err
		}
	}
	return nil
}

// DecodeBasicProperties parses the flag word and each present field.
// Per spec.md §9's open question #1, a set continuation bit (bit 0) is
// refused with NotImplemented (hard error, class 540) rather than
// supported with a second flag word.
func DecodeBasicProperties(r *buffer.Buffer) (BasicProperties, error) {
	var p BasicProperties
	flags, err := ReadShort(r)
	if err != nil {
		return p, err
	}
	if flags&continuationBit != 0 {
		return p, &NotImplementedError{Msg: "content-header property flag continuation is not supported"}
	}

	if flags&flagContentType != 0 {
		s, err := ReadShortString(r)
		if err != nil {
			return p, err
		}
		p.ContentType = &s
	}
	if flags&flagContentEnc != 0 {
		s, err := ReadShortString(r)
		if err != nil {
			return p, err
		}
		p.ContentEncoding = &s
	}
	if flags&flagHeaders != 0 {
		t, err := ReadTable(r)
		if err != nil {
			return p, err
		}
		p.Headers = &t
	}
	if flags&flagDeliveryMod != 0 {
		v, err := ReadOctet(r)
		if err != nil {
			return p, err
		}
		p.DeliveryMode = &v
	}
	if flags&flagPriority != 0 {
		v, err := ReadOctet(r)
		if err != nil {
			return p, err
		}
		p.Priority = &v
	}
	if flags&flagCorrelation != 0 {
		s, err := ReadShortString(r)
		if err != nil {
			return p, err
		}
		p.CorrelationID = &s
	}
	if flags&flagReplyTo != 0 {
		s, err := ReadShortString(r)
		if err != nil {
			return p, err
		}
		p.ReplyTo = &s
	}
	if flags&flagExpiration != 0 {
		s, err := ReadShortString(r)
		if err != nil {
			return p, err
		}
		p.Expiration = &s
	}
	if flags&flagMessageID != 0 {
		s, err := ReadShortString(r)
		if err != nil {
			return p, err
		}
		p.MessageID = &s
	}
	if flags&flagTimestamp != 0 {
		t, err := ReadTimestamp(r)
		if err != nil {
			return p, err
		}
		p.Timestamp = &t
	}
	if flags&flagType != 0 {
		s, err := ReadShortString(r)
		if err != nil {
			return p, err
		}
		p.Type = &s
	}
	if flags&flagUserID != 0 {
		s, err := ReadShortString(r)
		if err != nil {
			return p, err
		}
		p.UserID = &s
	}
	if flags&flagAppID != 0 {
		s, err := ReadShortString(r)
		if err != nil {
			return p, err
		}
		p.AppID = &s
	}
	return p, nil
}

// NotImplementedError maps to the hard AMQP reply code 540.
type NotImplementedError struct {
	Msg string
}

func (e *NotImplementedError) Error() string { return "amqp: not implemented: " + e.Msg }
