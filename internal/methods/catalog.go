// Package methods is the declarative AMQP 0-9-1 method catalog described
// in spec.md §4.2: a static table keyed by (class-id, method-id) naming
// each method's field layout, content-bearing flag, and synchronous
// reply. internal/frames carries the raw bytes; this package is the
// single source of truth for what those bytes mean, and the codec file
// in this package is the only place that packs/unpacks a method payload.
package methods

// Domain names an AMQP primitive domain used by a method field.
type Domain int

const (
	DBit Domain = iota
	DOctet
	DShort
	DLong
	DLongLong
	DShortStr
	DLongStr
	DTable
)

// FieldSpec is one named, typed field in a method's wire layout. Fields
// named "reserved-N" are always encoded as the domain's zero value and
// ignored on decode (spec.md §4.2).
type FieldSpec struct {
	Name     string
	Domain   Domain
	Reserved bool
}

// Key identifies a method by its (class-id, method-id) pair.
type Key struct {
	ClassID  uint16
	MethodID uint16
}

// Spec is the catalog entry for one method.
type Spec struct {
	Key            Key
	ClassName      string
	MethodName     string
	Fields         []FieldSpec
	CarriesContent bool
	// SyncReply is the (class,method) of this method's synchronous reply,
	// or nil if the method has no reply (e.g. basic.publish) or has a
	// variant reply resolved by the caller (basic.get -> get-ok|get-empty).
	SyncReply *Key
	// ServerMayInitiate marks methods the broker can send without the
	// client having issued a corresponding request.
	ServerMayInitiate bool
}

// Name returns "class.method" for logging/error messages.
func (s *Spec) Name() string { return s.ClassName + "." + s.MethodName }

var catalog = map[Key]*Spec{}

func register(s *Spec) *Spec {
	catalog[s.Key] = s
	return s
}

// Lookup returns the catalog entry for (classID, methodID), or nil if
// unknown (the caller should treat unknown method ids as a CommandInvalid
// protocol error per spec.md §7).
func Lookup(classID, methodID uint16) *Spec {
	return catalog[Key{classID, methodID}]
}

func key(classID, methodID uint16) *Key {
	return &Key{classID, methodID}
}
