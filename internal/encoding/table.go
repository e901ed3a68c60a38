package encoding

import (
	"math"
	"sort"
	"time"

	"github.com/malinoff/amqproto-sub000/internal/buffer"
)

// Tag identifies the wire type of a field-table/array value, per the
// 2011 AMQP 0-9-1 errata (spec.md §3).
type Tag byte

const (
	TagBoolean   Tag = 't'
	TagSByte     Tag = 'b'
	TagByte      Tag = 'B'
	TagSShort    Tag = 's'
	TagUShort    Tag = 'u'
	TagSLong     Tag = 'I'
	TagULong     Tag = 'i'
	TagSLongLong Tag = 'l'
	TagFloat     Tag = 'f'
	TagDouble    Tag = 'd'
	TagDecimal   Tag = 'D'
	TagLongStr   Tag = 'S'
	TagArray     Tag = 'A'
	TagTimestamp Tag = 'T'
	TagTable     Tag = 'F'
	TagVoid      Tag = 'V'
	TagByteArray Tag = 'x'
)

// Table is an ordered field table: an association from short-string keys
// to tagged values. Go maps don't preserve insertion order, so Table
// keeps both a map (for lookup) and the original key order.
type Table struct {
	order []string
	vals  map[string]interface{}
}

// NewTable builds a Table from a plain map; key order is sorted for
// determinism since a map has none of its own.
func NewTable(m map[string]interface{}) Table {
	t := Table{vals: make(map[string]interface{}, len(m))}
	for k, v := range m {
		t.order = append(t.order, k)
		t.vals[k] = v
	}
	sort.Strings(t.order)
	return t
}

// Set inserts or overwrites a key, preserving first-insertion order.
func (t *Table) Set(key string, v interface{}) {
	if t.vals == nil {
		t.vals = make(map[string]interface{})
	}
	if _, exists := t.vals[key]; !exists {
		t.order = append(t.order, key)
	}
	t.vals[key] = v
}

// Get returns the value for key and whether it was present.
func (t Table) Get(key string) (interface{}, bool) {
	v, ok := t.vals[key]
	return v, ok
}

// Len returns the number of entries.
func (t Table) Len() int { return len(t.order) }

// Map returns a copy of the table as a plain map, discarding order.
func (t Table) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(t.vals))
	for k, v := range t.vals {
		out[k] = v
	}
	return out
}

// Keys returns the keys in insertion order.
func (t Table) Keys() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Array is an ordered, heterogeneously-tagged field array (domain 'A').
type Array []interface{}

// tagFor picks the wire tag for a Go value. Sized integer types map to
// their own domain; a plain Go int uses the narrowest signed domain that
// fits, falling back to 64-bit signed, per spec.md
// §4.1's errata-compliant narrowing rule (grounded on
// amqproto/domains.py's _py_type_to_amqp_domain).
func tagFor(v interface{}) (Tag, error) {
	switch vv := v.(type) {
	case bool:
		return TagBoolean, nil
	case int8:
		return TagSByte, nil
	case uint8:
		return TagByte, nil
	case int16:
		return TagSShort, nil
	case uint16:
		return TagUShort, nil
	case int32:
		return TagSLong, nil
	case uint32:
		return TagULong, nil
	case int64:
		return TagSLongLong, nil
	case int:
		return narrowIntTag(int64(vv))
	case float32:
		return TagFloat, nil
	case float64:
		return TagDouble, nil
	case Decimal:
		return TagDecimal, nil
	case string:
		return TagLongStr, nil
	case Array:
		return TagArray, nil
	case Table:
		return TagTable, nil
	case time.Time:
		return TagTimestamp, nil
	case nil:
		return TagVoid, nil
	case []byte:
		return TagByteArray, nil
	default:
		return 0, frameErrorf("no field-table tag for Go type %T", v)
	}
}

func narrowIntTag(v int64) (Tag, error) {
	switch {
	case v >= math.MinInt8 && v <= math.MaxInt8:
		return TagSByte, nil
	case v >= math.MinInt16 && v <= math.MaxInt16:
		return TagSShort, nil
	case v >= math.MinInt32 && v <= math.MaxInt32:
		return TagSLong, nil
	default:
		return TagSLongLong, nil
	}
}

// WriteTableValue encodes a single tagged value (tag byte + payload).
func WriteTableValue(w *buffer.Buffer, v interface{}) error {
	tag, err := tagFor(v)
	if err != nil {
		return err
	}
	_ = w.WriteByte(byte(tag))
	switch tag {
	case TagBoolean:
		if v.(bool) {
			WriteOctet(w, 1)
		} else {
			WriteOctet(w, 0)
		}
	case TagSByte:
		WriteOctet(w, uint8(toInt64(v)))
	case TagByte:
		WriteOctet(w, uint8(toInt64(v)))
	case TagSShort:
		WriteShort(w, uint16(toInt64(v)))
	case TagUShort:
		WriteShort(w, uint16(toInt64(v)))
	case TagSLong:
		WriteLong(w, uint32(toInt64(v)))
	case TagULong:
		WriteLong(w, uint32(toInt64(v)))
	case TagSLongLong:
		WriteLonglong(w, uint64(toInt64(v)))
	case TagFloat:
		WriteFloat(w, v.(float32))
	case TagDouble:
		WriteDouble(w, v.(float64))
	case TagDecimal:
		WriteDecimal(w, v.(Decimal))
	case TagLongStr:
		return WriteLongString(w, v.(string))
	case TagArray:
		return WriteArray(w, v.(Array))
	case TagTable:
		return WriteTable(w, v.(Table))
	case TagTimestamp:
		WriteTimestamp(w, v.(time.Time))
	case TagVoid:
		// no payload
	case TagByteArray:
		return WriteByteArray(w, v.([]byte))
	default:
		return frameErrorf("unknown tag %q while encoding", tag)
	}
	return nil
}

func toInt64(v interface{}) int64 {
	switch vv := v.(type) {
	case int8:
		return int64(vv)
	case uint8:
		return int64(vv)
	case int16:
		return int64(vv)
	case uint16:
		return int64(vv)
	case int32:
		return int64(vv)
	case uint32:
		return int64(vv)
	case int64:
		return vv
	case int:
		return int64(vv)
	default:
		return 0
	}
}

// ReadTableValue decodes a single tagged value.
func ReadTableValue(r *buffer.Buffer) (interface{}, error) {
	return readTableValueDepth(r, 0)
}

// maxTableDepth bounds recursion: a table's own length prefix bounds its
// extent, but a maliciously-nested table could still exhaust the stack
// without an explicit depth limit (spec.md §3's "recursion must be
// bounded").
const maxTableDepth = 64

func readTableValueDepth(r *buffer.Buffer, depth int) (interface{}, error) {
	if depth > maxTableDepth {
		return nil, frameErrorf("field table/array nesting exceeds %d levels", maxTableDepth)
	}
	tagByte, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch Tag(tagByte) {
	case TagBoolean:
		b, err := ReadOctet(r)
		return b != 0, err
	case TagSByte:
		b, err := ReadOctet(r)
		return int8(b), err
	case TagByte:
		b, err := ReadOctet(r)
		return b, err
	case TagSShort:
		v, err := ReadShort(r)
		return int16(v), err
	case TagUShort:
		v, err := ReadShort(r)
		return v, err
	case TagSLong:
		v, err := ReadLong(r)
		return int32(v), err
	case TagULong:
		v, err := ReadLong(r)
		return v, err
	case TagSLongLong:
		v, err := ReadLonglong(r)
		return int64(v), err
	case TagFloat:
		return ReadFloat(r)
	case TagDouble:
		return ReadDouble(r)
	case TagDecimal:
		return ReadDecimal(r)
	case TagLongStr:
		return ReadLongString(r)
	case TagArray:
		return readArrayDepth(r, depth+1)
	case TagTimestamp:
		return ReadTimestamp(r)
	case TagTable:
		return readTableDepth(r, depth+1)
	case TagVoid:
		return nil, nil
	case TagByteArray:
		return ReadByteArray(r)
	default:
		return nil, frameErrorf("unknown field-table tag 0x%02x", tagByte)
	}
}

// WriteTable encodes a u32-length-prefixed sequence of key/tag/value
// entries.
func WriteTable(w *buffer.Buffer, t Table) error {
	var body buffer.Buffer
	for _, k := range t.order {
		if err := WriteShortString(&body, k); err != nil {
			return err
		}
		if err := WriteTableValue(&body, t.vals[k]); err != nil {
			return err
		}
	}
	if err := checkTableLen(body.Len()); err != nil {
		return err
	}
	WriteLong(w, uint32(body.Len()))
	w.Append(body.Bytes())
	return nil
}

func checkTableLen(n int) error {
	if uint64(n) > math.MaxUint32 {
		return syntaxErrorf("table payload exceeds 2^32-1 bytes")
	}
	return nil
}

// ReadTable decodes a field table, bounding nested table/array recursion.
func ReadTable(r *buffer.Buffer) (Table, error) {
	return readTableDepth(r, 0)
}

func readTableDepth(r *buffer.Buffer, depth int) (Table, error) {
	if depth > maxTableDepth {
		return Table{}, frameErrorf("field table nesting exceeds %d levels", maxTableDepth)
	}
	n, err := ReadLong(r)
	if err != nil {
		return Table{}, err
	}
	body, err := r.Next(int(n))
	if err != nil {
		return Table{}, err
	}
	sub := buffer.New(body)
	out := Table{vals: make(map[string]interface{})}
	for sub.Len() > 0 {
		key, err := ReadShortString(sub)
		if err != nil {
			return Table{}, err
		}
		val, err := readTableValueDepth(sub, depth)
		if err != nil {
			return Table{}, err
		}
		out.order = append(out.order, key)
		out.vals[key] = val
	}
	return out, nil
}

// WriteArray encodes a u32-length-prefixed sequence of tagged values.
func WriteArray(w *buffer.Buffer, a Array) error {
	var body buffer.Buffer
	for _, v := range a {
		if err := WriteTableValue(&body, v); err != nil {
			return err
		}
	}
	if err := checkTableLen(body.Len()); err != nil {
		return err
	}
	WriteLong(w, uint32(body.Len()))
	w.Append(body.Bytes())
	return nil
}

// ReadArray decodes a field array, bounding nested recursion like ReadTable.
func ReadArray(r *buffer.Buffer) (Array, error) {
	return readArrayDepth(r, 0)
}

func readArrayDepth(r *buffer.Buffer, depth int) (Array, error) {
	if depth > maxTableDepth {
		return nil, frameErrorf("field array nesting exceeds %d levels", maxTableDepth)
	}
	n, err := ReadLong(r)
	if err != nil {
		return nil, err
	}
	body, err := r.Next(int(n))
	if err != nil {
		return nil, err
	}
	sub := buffer.New(body)
	var out Array
	for sub.Len() > 0 {
		val, err := readTableValueDepth(sub, depth)
		if err != nil {
			return nil, err
		}
		out = append(out, val)
	}
	return out, nil
}
