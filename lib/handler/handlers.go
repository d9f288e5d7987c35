package handler

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ValentinKolb/dREST/lib/document"
	"github.com/ValentinKolb/dREST/lib/model"
)

const (
	dateFormat     = "2006-01-02"
	timeFormat     = "15:04:05"
	dateTimeSep    = "T"
	dateTimeFormat = dateFormat + dateTimeSep + timeFormat
)

// --------------------------------------------------------------------------
// Shared Base
// --------------------------------------------------------------------------

// base carries the fields common to all property handlers. Concrete
// handlers embed it and pass themselves explicitly into the shared
// helper functions, so there is no virtual dispatch through the
// embedded struct.
type base struct {
	name string
	typ  model.PropertyType
	def  *model.PropertyDef // nil for list items and dynamic properties
}

func (b base) Name() string       { return b.name }
func (b base) QueryField() string { return b.name }
func (b base) TypeString() string { return b.typ.String() }

func (b base) indexed() bool {
	return b.def == nil || b.def.Indexed
}

func (b base) Empty(v model.Value) bool {
	return v.IsNull() || v.Empty()
}

// writeScalar appends a leaf node for the handler's value on the given
// entity, or nothing if the value is absent or empty.
func writeScalar(h IPropertyHandler, parent *document.Node, name string, e *model.Entity, origin model.PropertyType) *document.Node {
	v, ok := e.Get(h.Name())
	if !ok || h.Empty(v) {
		return nil
	}
	node := parent.AppendText(name, h.ValueToString(v))
	node.Origin = origin
	return node
}

// readScalar parses a leaf node into the accumulator map.
func readScalar(h IPropertyHandler, props map[string]model.Value, node *document.Node, strip bool) error {
	text := node.Text
	if strip {
		text = strings.TrimSpace(text)
	}
	v, err := h.ValueFromString(text)
	if err != nil {
		return fmt.Errorf("property %s: %w", h.Name(), err)
	}
	props[h.Name()] = v
	return nil
}

// writeScalarSchema emits the standard single-valued element schema
// for a handler, including the no-filter annotation for unqueryable
// properties and the metadata annotation for declared properties.
func writeScalarSchema(h IPropertyHandler, parent *document.Node, name string, typ model.PropertyType, def *model.PropertyDef) *document.Node {
	el := XSDAppendElement(parent, name, typ, XSDNoMin, XSDSingleMax)
	if !h.CanQuery() {
		xsdAppendNoFilter(el)
	}
	xsdAppendMeta(el, def, h)
	return el
}

func rawString(h IPropertyHandler, v model.Value) ([]byte, string) {
	return []byte(h.ValueToString(v)), document.ContentTypeText
}

// --------------------------------------------------------------------------
// String / Text
// --------------------------------------------------------------------------

type stringHandler struct{ base }

func newStringHandler(name string, def *model.PropertyDef) stringHandler {
	return stringHandler{base{name: name, typ: model.TypeString, def: def}}
}

func (h stringHandler) CanQuery() bool { return h.indexed() }

func (h stringHandler) ValueToString(v model.Value) string { return v.Str }

func (h stringHandler) ValueFromString(s string) (model.Value, error) {
	return model.StringValue(s), nil
}

func (h stringHandler) ValueForQuery(s string) (model.Value, error) {
	return h.ValueFromString(s)
}

func (h stringHandler) ValueToRaw(v model.Value) ([]byte, string) {
	return rawString(h, v)
}

func (h stringHandler) ValueFromRaw(b []byte) (model.Value, error) {
	return h.ValueFromString(string(b))
}

func (h stringHandler) WriteValue(parent *document.Node, name string, e *model.Entity, _ WriteOpts) *document.Node {
	return writeScalar(h, parent, name, e, model.TypeString)
}

func (h stringHandler) ReadValue(props map[string]model.Value, node *document.Node) error {
	// string data is never stripped
	return readScalar(h, props, node, false)
}

func (h stringHandler) WriteSchema(parent *document.Node, name string) *document.Node {
	return writeScalarSchema(h, parent, name, model.TypeString, h.def)
}

// textHandler is a string handler for long text: identical on the
// wire, but never queryable (text fields are not indexed).
type textHandler struct{ stringHandler }

func newTextHandler(name string, def *model.PropertyDef) textHandler {
	h := textHandler{newStringHandler(name, def)}
	h.typ = model.TypeText
	return h
}

func (h textHandler) CanQuery() bool { return false }

func (h textHandler) ValueFromString(s string) (model.Value, error) {
	return model.TextValue(s), nil
}

func (h textHandler) ValueForQuery(s string) (model.Value, error) {
	return h.ValueFromString(s)
}

func (h textHandler) ValueFromRaw(b []byte) (model.Value, error) {
	return h.ValueFromString(string(b))
}

func (h textHandler) WriteSchema(parent *document.Node, name string) *document.Node {
	return writeScalarSchema(h, parent, name, model.TypeText, h.def)
}

// --------------------------------------------------------------------------
// Numbers
// --------------------------------------------------------------------------

// intHandler serves both Integer and Rating properties; the two only
// differ in their wire type tag and schema type.
type intHandler struct{ base }

func newIntHandler(name string, typ model.PropertyType, def *model.PropertyDef) intHandler {
	return intHandler{base{name: name, typ: typ, def: def}}
}

func (h intHandler) CanQuery() bool { return h.indexed() }

func (h intHandler) ValueToString(v model.Value) string {
	return strconv.FormatInt(v.Int, 10)
}

func (h intHandler) ValueFromString(s string) (model.Value, error) {
	if s == "" {
		return model.NullValue(), nil
	}
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return model.Value{}, fmt.Errorf("invalid integer %q", s)
	}
	if h.typ == model.TypeRating {
		return model.RatingValue(i), nil
	}
	return model.IntValue(i), nil
}

func (h intHandler) ValueForQuery(s string) (model.Value, error) {
	return h.ValueFromString(s)
}

func (h intHandler) ValueToRaw(v model.Value) ([]byte, string) {
	return rawString(h, v)
}

func (h intHandler) ValueFromRaw(b []byte) (model.Value, error) {
	return h.ValueFromString(strings.TrimSpace(string(b)))
}

func (h intHandler) WriteValue(parent *document.Node, name string, e *model.Entity, _ WriteOpts) *document.Node {
	return writeScalar(h, parent, name, e, h.typ)
}

func (h intHandler) ReadValue(props map[string]model.Value, node *document.Node) error {
	return readScalar(h, props, node, true)
}

func (h intHandler) WriteSchema(parent *document.Node, name string) *document.Node {
	return writeScalarSchema(h, parent, name, h.typ, h.def)
}

type floatHandler struct{ base }

func newFloatHandler(name string, def *model.PropertyDef) floatHandler {
	return floatHandler{base{name: name, typ: model.TypeFloat, def: def}}
}

func (h floatHandler) CanQuery() bool { return h.indexed() }

func (h floatHandler) ValueToString(v model.Value) string {
	return strconv.FormatFloat(v.Float, 'g', -1, 64)
}

func (h floatHandler) ValueFromString(s string) (model.Value, error) {
	if s == "" {
		return model.NullValue(), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return model.Value{}, fmt.Errorf("invalid float %q", s)
	}
	return model.FloatValue(f), nil
}

func (h floatHandler) ValueForQuery(s string) (model.Value, error) {
	return h.ValueFromString(s)
}

func (h floatHandler) ValueToRaw(v model.Value) ([]byte, string) {
	return rawString(h, v)
}

func (h floatHandler) ValueFromRaw(b []byte) (model.Value, error) {
	return h.ValueFromString(strings.TrimSpace(string(b)))
}

func (h floatHandler) WriteValue(parent *document.Node, name string, e *model.Entity, _ WriteOpts) *document.Node {
	return writeScalar(h, parent, name, e, model.TypeFloat)
}

func (h floatHandler) ReadValue(props map[string]model.Value, node *document.Node) error {
	return readScalar(h, props, node, true)
}

func (h floatHandler) WriteSchema(parent *document.Node, name string) *document.Node {
	return writeScalarSchema(h, parent, name, model.TypeFloat, h.def)
}

// --------------------------------------------------------------------------
// Boolean
// --------------------------------------------------------------------------

type boolHandler struct{ base }

func newBoolHandler(name string, def *model.PropertyDef) boolHandler {
	return boolHandler{base{name: name, typ: model.TypeBoolean, def: def}}
}

func (h boolHandler) CanQuery() bool { return h.indexed() }

func (h boolHandler) ValueToString(v model.Value) string {
	if v.Bool {
		return "true"
	}
	return "false"
}

// ValueFromString parses 'true' (any case) and '1' as true, any other
// non-empty string as false, and an empty string as null. Booleans are
// tri-state: absent is not false.
func (h boolHandler) ValueFromString(s string) (model.Value, error) {
	if s == "" {
		return model.NullValue(), nil
	}
	s = strings.ToLower(s)
	return model.BoolValue(s == "true" || s == "1"), nil
}

func (h boolHandler) ValueForQuery(s string) (model.Value, error) {
	return h.ValueFromString(s)
}

func (h boolHandler) ValueToRaw(v model.Value) ([]byte, string) {
	return rawString(h, v)
}

func (h boolHandler) ValueFromRaw(b []byte) (model.Value, error) {
	return h.ValueFromString(strings.TrimSpace(string(b)))
}

func (h boolHandler) WriteValue(parent *document.Node, name string, e *model.Entity, _ WriteOpts) *document.Node {
	return writeScalar(h, parent, name, e, model.TypeBoolean)
}

func (h boolHandler) ReadValue(props map[string]model.Value, node *document.Node) error {
	return readScalar(h, props, node, true)
}

func (h boolHandler) WriteSchema(parent *document.Node, name string) *document.Node {
	return writeScalarSchema(h, parent, name, model.TypeBoolean, h.def)
}

// --------------------------------------------------------------------------
// Date / Time
// --------------------------------------------------------------------------

type dateTimeHandler struct {
	base
	format   string
	allowsMs bool
}

func newDateTimeHandler(name string, typ model.PropertyType, def *model.PropertyDef) dateTimeHandler {
	h := dateTimeHandler{base: base{name: name, typ: typ, def: def}}
	switch typ {
	case model.TypeDate:
		h.format = dateFormat
	case model.TypeTime:
		h.format = timeFormat
		h.allowsMs = true
	default:
		h.format = dateTimeFormat
		h.allowsMs = true
	}
	return h
}

func (h dateTimeHandler) CanQuery() bool { return h.indexed() }

// ValueToString formats the value in ISO-8601 form. Microsecond
// capable types always carry a 6-digit fraction, even when zero, so
// output width is uniform. Dates never include a time component.
func (h dateTimeHandler) ValueToString(v model.Value) string {
	s := v.Time.Format(h.format)
	if h.allowsMs {
		s += fmt.Sprintf(".%06d", v.Time.Nanosecond()/1000)
	}
	return s
}

func (h dateTimeHandler) ValueFromString(s string) (model.Value, error) {
	if s == "" {
		return model.NullValue(), nil
	}
	micros := 0
	if h.allowsMs {
		if idx := strings.LastIndexByte(s, '.'); idx >= 0 {
			frac := s[idx+1:]
			s = s[:idx]
			if len(frac) > 6 {
				frac = frac[:6]
			}
			for len(frac) < 6 {
				frac += "0"
			}
			parsed, err := strconv.Atoi(frac)
			if err != nil {
				return model.Value{}, fmt.Errorf("invalid fraction in %q", s)
			}
			micros = parsed
		}
	}
	t, err := time.Parse(h.format, s)
	if err != nil {
		return model.Value{}, fmt.Errorf("invalid %s value %q", h.typ, s)
	}
	t = t.Add(time.Duration(micros) * time.Microsecond)
	return model.Value{Type: h.typ, Time: t}, nil
}

func (h dateTimeHandler) ValueForQuery(s string) (model.Value, error) {
	return h.ValueFromString(s)
}

func (h dateTimeHandler) ValueToRaw(v model.Value) ([]byte, string) {
	return rawString(h, v)
}

func (h dateTimeHandler) ValueFromRaw(b []byte) (model.Value, error) {
	return h.ValueFromString(strings.TrimSpace(string(b)))
}

func (h dateTimeHandler) WriteValue(parent *document.Node, name string, e *model.Entity, _ WriteOpts) *document.Node {
	return writeScalar(h, parent, name, e, h.typ)
}

func (h dateTimeHandler) ReadValue(props map[string]model.Value, node *document.Node) error {
	return readScalar(h, props, node, true)
}

func (h dateTimeHandler) WriteSchema(parent *document.Node, name string) *document.Node {
	return writeScalarSchema(h, parent, name, h.typ, h.def)
}

// --------------------------------------------------------------------------
// Bytes (ByteString / Blob)
// --------------------------------------------------------------------------

// bytesHandler serves both short indexed byte strings and long blobs.
// The wire form is base64; the raw single-property form is the
// undecoded byte stream.
type bytesHandler struct{ base }

func newBytesHandler(name string, typ model.PropertyType, def *model.PropertyDef) bytesHandler {
	return bytesHandler{base{name: name, typ: typ, def: def}}
}

func (h bytesHandler) CanQuery() bool {
	// blobs are not indexable
	return h.typ == model.TypeByteString && h.indexed()
}

func (h bytesHandler) ValueToString(v model.Value) string {
	return base64.StdEncoding.EncodeToString(v.Bytes)
}

func (h bytesHandler) ValueFromString(s string) (model.Value, error) {
	if s == "" {
		return model.NullValue(), nil
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return model.Value{}, fmt.Errorf("invalid base64 data: %w", err)
	}
	return model.Value{Type: h.typ, Bytes: b}, nil
}

func (h bytesHandler) ValueForQuery(s string) (model.Value, error) {
	return h.ValueFromString(s)
}

func (h bytesHandler) ValueToRaw(v model.Value) ([]byte, string) {
	return v.Bytes, "application/octet-stream"
}

func (h bytesHandler) ValueFromRaw(b []byte) (model.Value, error) {
	return model.Value{Type: h.typ, Bytes: b}, nil
}

func (h bytesHandler) WriteValue(parent *document.Node, name string, e *model.Entity, _ WriteOpts) *document.Node {
	return writeScalar(h, parent, name, e, h.typ)
}

func (h bytesHandler) ReadValue(props map[string]model.Value, node *document.Node) error {
	return readScalar(h, props, node, true)
}

func (h bytesHandler) WriteSchema(parent *document.Node, name string) *document.Node {
	return writeScalarSchema(h, parent, name, h.typ, h.def)
}

// --------------------------------------------------------------------------
// Reference
// --------------------------------------------------------------------------

// referenceHandler serializes a reference as the referenced entity's
// key. Stores that materialize the referenced entity itself must
// dereference it to a key before it reaches the handler.
type referenceHandler struct{ base }

func newReferenceHandler(name string, def *model.PropertyDef) referenceHandler {
	return referenceHandler{base{name: name, typ: model.TypeReference, def: def}}
}

func (h referenceHandler) CanQuery() bool { return h.indexed() }

func (h referenceHandler) ValueToString(v model.Value) string { return v.Str }

func (h referenceHandler) ValueFromString(s string) (model.Value, error) {
	if s == "" {
		return model.NullValue(), nil
	}
	return model.ReferenceValue(s), nil
}

func (h referenceHandler) ValueForQuery(s string) (model.Value, error) {
	return h.ValueFromString(s)
}

func (h referenceHandler) ValueToRaw(v model.Value) ([]byte, string) {
	return rawString(h, v)
}

func (h referenceHandler) ValueFromRaw(b []byte) (model.Value, error) {
	return h.ValueFromString(strings.TrimSpace(string(b)))
}

func (h referenceHandler) WriteValue(parent *document.Node, name string, e *model.Entity, _ WriteOpts) *document.Node {
	return writeScalar(h, parent, name, e, model.TypeReference)
}

func (h referenceHandler) ReadValue(props map[string]model.Value, node *document.Node) error {
	return readScalar(h, props, node, true)
}

func (h referenceHandler) WriteSchema(parent *document.Node, name string) *document.Node {
	return writeScalarSchema(h, parent, name, model.TypeReference, h.def)
}

// --------------------------------------------------------------------------
// Key
// --------------------------------------------------------------------------

// keyHandler serves the primary key pseudo-property. It reads the key
// from the entity itself and queries through the reserved __key__
// sentinel field.
type keyHandler struct{}

// NewKeyHandler creates the handler for the primary key property.
func NewKeyHandler() IPropertyHandler { return keyHandler{} }

func (keyHandler) Name() string       { return KeyPropertyName }
func (keyHandler) QueryField() string { return KeyQueryField }
func (keyHandler) CanQuery() bool     { return true }
func (keyHandler) TypeString() string { return model.TypeKey.String() }

func (keyHandler) Empty(v model.Value) bool {
	return v.IsNull() || v.Str == ""
}

func (keyHandler) ValueToString(v model.Value) string { return v.Str }

func (keyHandler) ValueFromString(s string) (model.Value, error) {
	if s == "" {
		return model.NullValue(), nil
	}
	return model.KeyValue(s), nil
}

func (h keyHandler) ValueForQuery(s string) (model.Value, error) {
	return h.ValueFromString(strings.TrimSpace(s))
}

func (h keyHandler) ValueToRaw(v model.Value) ([]byte, string) {
	return rawString(h, v)
}

func (h keyHandler) ValueFromRaw(b []byte) (model.Value, error) {
	return h.ValueFromString(strings.TrimSpace(string(b)))
}

func (h keyHandler) WriteValue(parent *document.Node, name string, e *model.Entity, _ WriteOpts) *document.Node {
	if !e.Saved() {
		return nil
	}
	node := parent.AppendText(name, e.Key)
	node.Origin = model.TypeKey
	return node
}

func (h keyHandler) ReadValue(props map[string]model.Value, node *document.Node) error {
	return readScalar(h, props, node, true)
}

func (h keyHandler) WriteSchema(parent *document.Node, name string) *document.Node {
	return XSDAppendElement(parent, name, model.TypeKey, XSDNoMin, XSDSingleMax)
}

// --------------------------------------------------------------------------
// Blob Reference
// --------------------------------------------------------------------------

// blobRefHandler serializes a blob store token. On read the token may
// be expanded with descriptive attributes from the blob store's
// metadata (content type, filename, size, creation time).
type blobRefHandler struct{ base }

func newBlobRefHandler(name string, def *model.PropertyDef) blobRefHandler {
	return blobRefHandler{base{name: name, typ: model.TypeBlobReference, def: def}}
}

func (h blobRefHandler) CanQuery() bool { return h.indexed() }

func (h blobRefHandler) ValueToString(v model.Value) string { return v.Str }

func (h blobRefHandler) ValueFromString(s string) (model.Value, error) {
	if s == "" {
		return model.NullValue(), nil
	}
	return model.BlobRefValue(s), nil
}

func (h blobRefHandler) ValueForQuery(s string) (model.Value, error) {
	return h.ValueFromString(s)
}

func (h blobRefHandler) ValueToRaw(v model.Value) ([]byte, string) {
	return rawString(h, v)
}

func (h blobRefHandler) ValueFromRaw(b []byte) (model.Value, error) {
	return h.ValueFromString(strings.TrimSpace(string(b)))
}

func (h blobRefHandler) WriteValue(parent *document.Node, name string, e *model.Entity, opts WriteOpts) *document.Node {
	node := writeScalar(h, parent, name, e, model.TypeBlobReference)
	if node == nil || opts.BlobInfo == nil {
		return node
	}
	if attrs, ok := opts.BlobInfo(node.Text); ok {
		for _, a := range attrs {
			node.SetAttr(a.Name, a.Value)
		}
	}
	return node
}

func (h blobRefHandler) ReadValue(props map[string]model.Value, node *document.Node) error {
	return readScalar(h, props, node, true)
}

func (h blobRefHandler) WriteSchema(parent *document.Node, name string) *document.Node {
	return writeScalarSchema(h, parent, name, model.TypeBlobReference, h.def)
}
