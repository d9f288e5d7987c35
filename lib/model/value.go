package model

import (
	"bytes"
	"time"
)

// --------------------------------------------------------------------------
// Values
// --------------------------------------------------------------------------

// Value is the tagged union carried by entity properties. Exactly one
// of the payload fields is meaningful, selected by Type. An absent
// property is modelled by absence from the entity's property map, not
// by a special Value, so round trips never invent empty values.
type Value struct {
	Type  PropertyType
	Elem  PropertyType // element type when Type == TypeList
	Str   string       // String, Text, Reference, BlobReference, Key
	Bool  bool         // Boolean
	Int   int64        // Integer, Rating
	Float float64      // Float
	Time  time.Time    // DateTime, Date, Time
	Bytes []byte       // ByteString, Blob
	List  []Value      // List
}

func StringValue(s string) Value  { return Value{Type: TypeString, Str: s} }
func TextValue(s string) Value    { return Value{Type: TypeText, Str: s} }
func BoolValue(b bool) Value      { return Value{Type: TypeBoolean, Bool: b} }
func IntValue(i int64) Value      { return Value{Type: TypeInteger, Int: i} }
func FloatValue(f float64) Value  { return Value{Type: TypeFloat, Float: f} }
func RatingValue(i int64) Value   { return Value{Type: TypeRating, Int: i} }
func ReferenceValue(k string) Value {
	return Value{Type: TypeReference, Str: k}
}
func BlobRefValue(token string) Value {
	return Value{Type: TypeBlobReference, Str: token}
}
func KeyValue(k string) Value { return Value{Type: TypeKey, Str: k} }
func DateTimeValue(t time.Time) Value {
	return Value{Type: TypeDateTime, Time: t}
}
func DateValue(t time.Time) Value { return Value{Type: TypeDate, Time: t} }
func TimeValue(t time.Time) Value { return Value{Type: TypeTime, Time: t} }
func ByteStringValue(b []byte) Value {
	return Value{Type: TypeByteString, Bytes: b}
}
func BlobValue(b []byte) Value { return Value{Type: TypeBlob, Bytes: b} }
func ListValue(elem PropertyType, items []Value) Value {
	return Value{Type: TypeList, Elem: elem, List: items}
}
func NullValue() Value { return Value{Type: TypeNull} }

// IsNull reports whether the value is an explicit clear marker.
func (v Value) IsNull() bool { return v.Type == TypeNull }

// Empty tests a value for emptiness in a manner specific to its type.
// Empty values are omitted from serialized output so that optional
// fields round-trip as absent.
func (v Value) Empty() bool {
	switch v.Type {
	case TypeString, TypeText, TypeReference, TypeBlobReference, TypeKey:
		return v.Str == ""
	case TypeByteString, TypeBlob:
		return len(v.Bytes) == 0
	case TypeList:
		return len(v.List) == 0
	case TypeDateTime, TypeDate, TypeTime:
		return v.Time.IsZero()
	default:
		// booleans and numbers are never empty once present
		return false
	}
}

// Equal reports whether two values carry the same type and payload.
func (v Value) Equal(o Value) bool {
	if v.Type != o.Type {
		return false
	}
	switch v.Type {
	case TypeString, TypeText, TypeReference, TypeBlobReference, TypeKey:
		return v.Str == o.Str
	case TypeBoolean:
		return v.Bool == o.Bool
	case TypeInteger, TypeRating:
		return v.Int == o.Int
	case TypeFloat:
		return v.Float == o.Float
	case TypeDateTime, TypeDate, TypeTime:
		return v.Time.Equal(o.Time)
	case TypeByteString, TypeBlob:
		return bytes.Equal(v.Bytes, o.Bytes)
	case TypeList:
		if v.Elem != o.Elem || len(v.List) != len(o.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equal(o.List[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// --------------------------------------------------------------------------
// Entities
// --------------------------------------------------------------------------

// Entity is an instance of a registered type. Key is empty until the
// entity is first persisted and immutable afterwards. Version is the
// store's monotonic per-entity version counter (zero if the store does
// not track versions). Dynamic holds ad hoc properties of dynamic
// types, keyed by property name.
type Entity struct {
	Kind    string
	Key     string
	Version uint64
	Props   map[string]Value
	Dynamic map[string]Value

	// ETag caches the computed concurrency token for the remainder of
	// a request. It is never persisted.
	ETag string
}

// NewEntity creates an unsaved entity of the given kind.
func NewEntity(kind string) *Entity {
	return &Entity{
		Kind:    kind,
		Props:   map[string]Value{},
		Dynamic: map[string]Value{},
	}
}

// Saved reports whether the entity has been persisted (has a key).
func (e *Entity) Saved() bool {
	return e.Key != ""
}

// Get returns the value of a declared or dynamic property.
func (e *Entity) Get(name string) (Value, bool) {
	if v, ok := e.Props[name]; ok {
		return v, true
	}
	v, ok := e.Dynamic[name]
	return v, ok
}

// Clone returns a deep-enough copy of the entity. Value payloads are
// shared; callers must not mutate byte slices in place.
func (e *Entity) Clone() *Entity {
	c := &Entity{
		Kind:    e.Kind,
		Key:     e.Key,
		Version: e.Version,
		Props:   make(map[string]Value, len(e.Props)),
		Dynamic: make(map[string]Value, len(e.Dynamic)),
	}
	for k, v := range e.Props {
		c.Props[k] = v
	}
	for k, v := range e.Dynamic {
		c.Dynamic[k] = v
	}
	return c
}
