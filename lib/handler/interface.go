package handler

import (
	"github.com/ValentinKolb/dREST/lib/document"
	"github.com/ValentinKolb/dREST/lib/model"
)

// KeyQueryField is the reserved sentinel field name used to filter on
// the primary key.
const KeyQueryField = "__key__"

// KeyPropertyName is the wire name of the primary key property.
const KeyPropertyName = "key"

// WriteOpts carries per-request options into WriteValue.
type WriteOpts struct {
	// BlobInfo, when set, expands blob reference values with
	// descriptive attributes fetched from the blob store's metadata.
	BlobInfo func(token string) ([]document.Attr, bool)
}

// IPropertyHandler is the strategy interface for converting one
// property's value to and from its wire representations. Handlers are
// stateless per property and safe for concurrent use; one handler
// exists per declared property, resolved at type registration time.
type IPropertyHandler interface {
	// Name returns the property name the handler is bound to.
	Name() string

	// QueryField returns the field name used in query filter
	// expressions (the property name, except for the primary key).
	QueryField() string

	// CanQuery reports whether the property may appear in a query
	// filter. Text and Blob properties are never queryable; other
	// types follow the property's indexed flag.
	CanQuery() bool

	// TypeString returns the wire type tag describing the property
	// (e.g. "StringProperty", "ListProperty:IntegerProperty").
	TypeString() string

	// Empty tests a value for emptiness per the property type. Empty
	// values are omitted entirely from serialized output.
	Empty(v model.Value) bool

	// ValueToString converts a value to its wire string form.
	ValueToString(v model.Value) string

	// ValueFromString parses the wire string form. An empty string
	// yields the null value (explicit clear).
	ValueFromString(s string) (model.Value, error)

	// ValueForQuery parses a query filter operand.
	ValueForQuery(s string) (model.Value, error)

	// ValueToRaw converts a value to a raw single-property response
	// body and its content type. For most types this equals the wire
	// string form; blobs return the undecoded byte stream.
	ValueToRaw(v model.Value) ([]byte, string)

	// ValueFromRaw parses a raw single-property request body.
	ValueFromRaw(b []byte) (model.Value, error)

	// WriteValue appends a document node for the property's value on
	// the given entity, or returns nil if the value is absent/empty.
	WriteValue(parent *document.Node, name string, e *model.Entity, opts WriteOpts) *document.Node

	// ReadValue parses a document node into the given accumulator map,
	// keyed by property name.
	ReadValue(props map[string]model.Value, node *document.Node) error

	// WriteSchema appends the property's schema description (type,
	// cardinality, annotations) to the given schema parent node.
	WriteSchema(parent *document.Node, name string) *document.Node
}
