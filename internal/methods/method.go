package methods

import (
	"fmt"

	"github.com/malinoff/amqproto-sub000/internal/buffer"
	"github.com/malinoff/amqproto-sub000/internal/encoding"
)

// Method is a decoded (or about-to-be-encoded) instance of a catalog
// entry: the (class,method) key plus its field values keyed by name.
// This is the "tagged variant over methods" called for in spec.md §9 —
// one Go type for every method, dispatched on Key rather than through a
// struct-per-method hierarchy.
type Method struct {
	Key    Key
	Spec   *Spec
	Fields map[string]interface{}
}

// New builds a Method for (classID, methodID), filling any field absent
// from fields with its domain's zero value (this also covers every
// "reserved-N" field per spec.md §4.2).
func New(classID, methodID uint16, fields map[string]interface{}) (Method, error) {
	spec := Lookup(classID, methodID)
	if spec == nil {
		return Method{}, fmt.Errorf("amqp: unknown method (%d,%d)", classID, methodID)
	}
	m := Method{Key: spec.Key, Spec: spec, Fields: make(map[string]interface{}, len(spec.Fields))}
	for _, f := range spec.Fields {
		if v, ok := fields[f.Name]; ok {
			m.Fields[f.Name] = v
		} else {
			m.Fields[f.Name] = zeroValue(f.Domain)
		}
	}
	return m, nil
}

func zeroValue(d Domain) interface{} {
	switch d {
	case DBit:
		return false
	case DOctet:
		return uint8(0)
	case DShort:
		return uint16(0)
	case DLong:
		return uint32(0)
	case DLongLong:
		return uint64(0)
	case DShortStr, DLongStr:
		return ""
	case DTable:
		return encoding.Table{}
	default:
		return nil
	}
}

// String returns "class.method" for logging.
func (m Method) String() string {
	if m.Spec == nil {
		return fmt.Sprintf("(%d,%d)", m.Key.ClassID, m.Key.MethodID)
	}
	return m.Spec.Name()
}

// Bool, Str, Octet, Uint16, Uint32, Uint64, and Table are convenience
// accessors used by channel.go/connection.go when reading decoded fields.
// All but Table panic on a type mismatch, which can only happen if the
// catalog and the call site disagree (a programmer error caught in tests,
// not a runtime/wire condition); Table returns an empty table instead.
func (m Method) Bool(name string) bool        { return m.Fields[name].(bool) }
func (m Method) Str(name string) string       { return m.Fields[name].(string) }
func (m Method) Octet(name string) uint8      { return m.Fields[name].(uint8) }
func (m Method) Uint16(name string) uint16    { return m.Fields[name].(uint16) }
func (m Method) Uint32(name string) uint32    { return m.Fields[name].(uint32) }
func (m Method) Uint64(name string) uint64    { return m.Fields[name].(uint64) }
func (m Method) Table(name string) encoding.Table {
	if v, ok := m.Fields[name].(encoding.Table); ok {
		return v
	}
	return encoding.Table{}
}

// Encode serializes the method's (class,method) header followed by its
// fields in catalog order, bit-packing consecutive "bit" fields into
// shared octets LSB-first and flushing the packer whenever a non-bit
// field is encoded (spec.md §3, §4.1).
func Encode(w *buffer.Buffer, m Method) error {
	encoding.WriteShort(w, m.Key.ClassID)
	encoding.WriteShort(w, m.Key.MethodID)

	packer := encoding.NewBitPacker(w)
	for _, f := range m.Spec.Fields {
		v := m.Fields[f.Name]
		if f.Domain != DBit {
			packer.Flush()
		}
		switch f.Domain {
		case DBit:
			b, _ := v.(bool)
			packer.WriteBit(b)
		case DOctet:
			encoding.WriteOctet(w, v.(uint8))
		case DShort:
			encoding.WriteShort(w, v.(uint16))
		case DLong:
			encoding.WriteLong(w, v.(uint32))
		case DLongLong:
			encoding.WriteLonglong(w, v.(uint64))
		case DShortStr:
			if err := encoding.WriteShortString(w, v.(string)); err != nil {
				return err
			}
		case DLongStr:
			if err := encoding.WriteLongString(w, v.(string)); err != nil {
				return err
			}
		case DTable:
			t, _ := v.(encoding.Table)
			if err := encoding.WriteTable(w, t); err != nil {
				return err
			}
		}
	}
	packer.Flush()
	return nil
}

// Decode parses a method payload (the bytes of a TypeMethod frame,
// already stripped of the outer frame envelope) into a Method. An
// unknown (class,method) pair is a CommandInvalid protocol error,
// reported by returning a nil Spec and the raw ids so the caller can
// build the right reply code.
func Decode(payload []byte) (Method, error) {
	r := buffer.New(payload)
	classID, err := encoding.ReadShort(r)
	if err != nil {
		return Method{}, err
	}
	methodID, err := encoding.ReadShort(r)
	if err != nil {
		return Method{}, err
	}
	spec := Lookup(classID, methodID)
	if spec == nil {
		return Method{Key: Key{classID, methodID}}, fmt.Errorf("amqp: unknown method (%d,%d)", classID, methodID)
	}

	m := Method{Key: spec.Key, Spec: spec, Fields: make(map[string]interface{}, len(spec.Fields))}
	unpacker := encoding.NewBitUnpacker(r)
	for _, f := range spec.Fields {
		if f.Domain != DBit {
			unpacker.Reset()
		}
		switch f.Domain {
		case DBit:
			b, err := unpacker.ReadBit()
			if err != nil {
				return Method{}, err
			}
			m.Fields[f.Name] = b
		case DOctet:
			v, err := encoding.ReadOctet(r)
			if err != nil {
				return Method{}, err
			}
			m.Fields[f.Name] = v
		case DShort:
			v, err := encoding.ReadShort(r)
			if err != nil {
				return Method{}, err
			}
			m.Fields[f.Name] = v
		case DLong:
			v, err := encoding.ReadLong(r)
			if err != nil {
				return Method{}, err
			}
			m.Fields[f.Name] = v
		case DLongLong:
			v, err := encoding.ReadLonglong(r)
			if err != nil {
				return Method{}, err
			}
			m.Fields[f.Name] = v
		case DShortStr:
			v, err := encoding.ReadShortString(r)
			if err != nil {
				return Method{}, err
			}
			m.Fields[f.Name] = v
		case DLongStr:
			v, err := encoding.ReadLongString(r)
			if err != nil {
				return Method{}, err
			}
			m.Fields[f.Name] = v
		case DTable:
			v, err := encoding.ReadTable(r)
			if err != nil {
				return Method{}, err
			}
			m.Fields[f.Name] = v
		}
	}
	return m, nil
}
