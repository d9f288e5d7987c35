package handler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ValentinKolb/dREST/lib/document"
	"github.com/ValentinKolb/dREST/lib/model"
)

// TypeAttrName is the wire attribute carrying a dynamic property's
// type tag.
const TypeAttrName = "type"

// --------------------------------------------------------------------------
// Dynamic Properties
// --------------------------------------------------------------------------

// dynamicHandler serves ad hoc properties of dynamic types. It has no
// declared semantic type: on write it infers the type from the value's
// tag and records it in an explicit type attribute; on read it looks
// that attribute up (defaulting to string) to pick the real handler.
type dynamicHandler struct {
	name string
}

// NewDynamicHandler creates a handler for an undeclared property.
func NewDynamicHandler(name string) IPropertyHandler {
	return dynamicHandler{name: name}
}

func (h dynamicHandler) Name() string       { return h.name }
func (h dynamicHandler) QueryField() string { return h.name }
func (h dynamicHandler) CanQuery() bool     { return true }
func (h dynamicHandler) TypeString() string { return model.TypeString.String() }

func (h dynamicHandler) Empty(v model.Value) bool {
	return v.IsNull() || v.Empty()
}

func (h dynamicHandler) ValueToString(v model.Value) string {
	return h.forValue(v).ValueToString(v)
}

func (h dynamicHandler) ValueFromString(s string) (model.Value, error) {
	return model.StringValue(s), nil
}

// ValueForQuery coerces a filter operand without a declared type:
// quoted strings stay strings, numeric-looking strings become numbers,
// recognizable temporal patterns parse as date/time values, boolean
// literals become booleans and everything else stays a string.
func (h dynamicHandler) ValueForQuery(s string) (model.Value, error) {
	return GuessQueryValue(s), nil
}

func (h dynamicHandler) ValueToRaw(v model.Value) ([]byte, string) {
	return []byte(h.ValueToString(v)), document.ContentTypeText
}

func (h dynamicHandler) ValueFromRaw(b []byte) (model.Value, error) {
	return model.StringValue(string(b)), nil
}

func (h dynamicHandler) WriteValue(parent *document.Node, name string, e *model.Entity, opts WriteOpts) *document.Node {
	v, ok := e.Get(h.name)
	if !ok || h.Empty(v) {
		return nil
	}
	sub := h.forValue(v)
	node := sub.WriteValue(parent, name, e, opts)
	if node != nil {
		node.SetAttr(TypeAttrName, sub.TypeString())
	}
	return node
}

func (h dynamicHandler) ReadValue(props map[string]model.Value, node *document.Node) error {
	tag, ok := node.Attr(TypeAttrName)
	if !ok {
		// untagged dynamic values are plain strings
		props[h.name] = model.StringValue(node.Text)
		return nil
	}
	sub, err := h.forTag(tag)
	if err != nil {
		return fmt.Errorf("property %s: %w", h.name, err)
	}
	return sub.ReadValue(props, node)
}

func (h dynamicHandler) WriteSchema(parent *document.Node, name string) *document.Node {
	// dynamic properties are described by the open-content wildcard on
	// the type, not per property
	return XSDAppendElement(parent, name, model.TypeString, XSDNoMin, XSDSingleMax)
}

// forValue resolves the concrete handler for a value's runtime type.
func (h dynamicHandler) forValue(v model.Value) IPropertyHandler {
	if v.Type == model.TypeList {
		return newListHandler(h.name, v.Elem, nil)
	}
	return ForType(h.name, v.Type, nil)
}

// forTag resolves the concrete handler for a wire type tag, including
// compound "ListProperty:<elem>" tags.
func (h dynamicHandler) forTag(tag string) (IPropertyHandler, error) {
	typ, elem, err := model.ParsePropertyType(tag)
	if err != nil {
		return nil, err
	}
	if typ == model.TypeList {
		return newListHandler(h.name, elem, nil), nil
	}
	return ForType(h.name, typ, nil), nil
}

// --------------------------------------------------------------------------
// Query Value Guessing
// --------------------------------------------------------------------------

// GuessQueryValue coerces a query filter operand for a property with
// no declared type.
func GuessQueryValue(s string) model.Value {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return model.StringValue(s[1 : len(s)-1])
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return model.IntValue(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return model.FloatValue(f)
	}
	if t, err := time.Parse(dateTimeFormat, trimFraction(s)); err == nil {
		return model.DateTimeValue(t)
	}
	if t, err := time.Parse(dateFormat, s); err == nil {
		return model.DateValue(t)
	}
	if t, err := time.Parse(timeFormat, trimFraction(s)); err == nil {
		return model.TimeValue(t)
	}
	switch strings.ToLower(s) {
	case "true":
		return model.BoolValue(true)
	case "false":
		return model.BoolValue(false)
	}
	return model.StringValue(s)
}

func trimFraction(s string) string {
	if idx := strings.LastIndexByte(s, '.'); idx >= 0 {
		return s[:idx]
	}
	return s
}
