package handler

import (
	"testing"
	"time"

	"github.com/ValentinKolb/dREST/lib/document"
	"github.com/ValentinKolb/dREST/lib/model"
)

// --------------------------------------------------------------------------
// Scalar Handlers
// --------------------------------------------------------------------------

func TestScalarStringForms(t *testing.T) {
	tests := []struct {
		name string
		typ  model.PropertyType
		wire string
		want model.Value
	}{
		{"String", model.TypeString, "bolt", model.StringValue("bolt")},
		{"Text", model.TypeText, "long text", model.TextValue("long text")},
		{"Integer", model.TypeInteger, "42", model.IntValue(42)},
		{"Rating", model.TypeRating, "5", model.RatingValue(5)},
		{"Float", model.TypeFloat, "2.5", model.FloatValue(2.5)},
		{"BoolTrue", model.TypeBoolean, "true", model.BoolValue(true)},
		{"BoolOne", model.TypeBoolean, "1", model.BoolValue(true)},
		{"BoolOther", model.TypeBoolean, "no", model.BoolValue(false)},
		{"Reference", model.TypeReference, "some-key", model.ReferenceValue("some-key")},
		{"ByteString", model.TypeByteString, "aGk=", model.ByteStringValue([]byte("hi"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := ForType("p", tt.typ, nil)
			got, err := h.ValueFromString(tt.wire)
			if err != nil {
				t.Fatalf("Unexpected error parsing %q: %v", tt.wire, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestScalarRoundTrip(t *testing.T) {
	values := []model.Value{
		model.StringValue("bolt"),
		model.IntValue(-7),
		model.FloatValue(0.125),
		model.BoolValue(true),
		model.ByteStringValue([]byte{0, 1, 2}),
		model.ReferenceValue("ref-key"),
		model.BlobRefValue("blob-token"),
	}
	for _, v := range values {
		h := ForType("p", v.Type, nil)
		got, err := h.ValueFromString(h.ValueToString(v))
		if err != nil {
			t.Fatalf("Unexpected error round-tripping %+v: %v", v, err)
		}
		if !got.Equal(v) {
			t.Errorf("Expected %+v to round trip, got %+v", v, got)
		}
	}
}

func TestEmptyStringIsNull(t *testing.T) {
	for _, typ := range []model.PropertyType{
		model.TypeInteger, model.TypeFloat, model.TypeBoolean,
		model.TypeDateTime, model.TypeByteString, model.TypeReference,
	} {
		h := ForType("p", typ, nil)
		v, err := h.ValueFromString("")
		if err != nil {
			t.Fatalf("Unexpected error for empty %v: %v", typ, err)
		}
		if !v.IsNull() {
			t.Errorf("Expected null for empty %v, got %+v", typ, v)
		}
	}
}

func TestScalarParseErrors(t *testing.T) {
	tests := []struct {
		typ  model.PropertyType
		wire string
	}{
		{model.TypeInteger, "ten"},
		{model.TypeFloat, "x"},
		{model.TypeByteString, "not base64!!"},
		{model.TypeDateTime, "yesterday"},
	}
	for _, tt := range tests {
		h := ForType("p", tt.typ, nil)
		if _, err := h.ValueFromString(tt.wire); err == nil {
			t.Errorf("Expected an error parsing %q as %v", tt.wire, tt.typ)
		}
	}
}

// --------------------------------------------------------------------------
// Date / Time
// --------------------------------------------------------------------------

func TestDateTimeFormatting(t *testing.T) {
	h := ForType("created", model.TypeDateTime, nil)

	v := model.DateTimeValue(time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC))
	if got := h.ValueToString(v); got != "2024-05-17T09:30:00.000000" {
		t.Errorf("Expected uniform microsecond fraction, got %q", got)
	}

	parsed, err := h.ValueFromString("2024-05-17T09:30:00.123456")
	if err != nil {
		t.Fatalf("Unexpected error parsing: %v", err)
	}
	if parsed.Time.Nanosecond() != 123456000 {
		t.Errorf("Expected microsecond fraction to parse, got %d", parsed.Time.Nanosecond())
	}

	// fraction-less input is accepted too
	if _, err := h.ValueFromString("2024-05-17T09:30:00"); err != nil {
		t.Errorf("Unexpected error parsing without fraction: %v", err)
	}
}

func TestDateAndTimeForms(t *testing.T) {
	date := ForType("d", model.TypeDate, nil)
	v := model.DateValue(time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC))
	if got := date.ValueToString(v); got != "2024-05-17" {
		t.Errorf("Expected date-only form, got %q", got)
	}

	clock := ForType("t", model.TypeTime, nil)
	tv := model.TimeValue(time.Date(0, 1, 1, 9, 30, 15, 0, time.UTC))
	if got := clock.ValueToString(tv); got != "09:30:15.000000" {
		t.Errorf("Expected time-only form, got %q", got)
	}
}

// --------------------------------------------------------------------------
// Lists
// --------------------------------------------------------------------------

func TestListHandler(t *testing.T) {
	h := ForProperty(&model.PropertyDef{Name: "tags", Type: model.TypeList, Elem: model.TypeInteger, Indexed: true})

	if h.TypeString() != "ListProperty:IntegerProperty" {
		t.Errorf("Expected compound type tag, got %s", h.TypeString())
	}

	e := model.NewEntity("widget")
	e.Props["tags"] = model.ListValue(model.TypeInteger, []model.Value{
		model.IntValue(1), model.IntValue(2),
	})

	parent := document.NewNode("widget")
	node := h.WriteValue(parent, "tags", e, WriteOpts{})
	if node == nil || !node.IsList || len(node.Children) != 2 {
		t.Fatalf("Expected item-wrapped list node, got %+v", node)
	}
	if node.Children[0].Name != document.ItemName || node.Children[0].Text != "1" {
		t.Errorf("Unexpected first item %+v", node.Children[0])
	}

	props := map[string]model.Value{}
	if err := h.ReadValue(props, node); err != nil {
		t.Fatalf("Unexpected error reading: %v", err)
	}
	if !props["tags"].Equal(e.Props["tags"]) {
		t.Errorf("Expected list round trip, got %+v", props["tags"])
	}

	// filter operands coerce element-wise
	v, err := h.ValueForQuery("7")
	if err != nil || v.Int != 7 {
		t.Errorf("Expected element coercion for query operand, got %+v (%v)", v, err)
	}
}

func TestEmptyListOmitted(t *testing.T) {
	h := ForProperty(&model.PropertyDef{Name: "tags", Type: model.TypeList, Elem: model.TypeString})
	e := model.NewEntity("widget")
	e.Props["tags"] = model.ListValue(model.TypeString, nil)

	if node := h.WriteValue(document.NewNode("widget"), "tags", e, WriteOpts{}); node != nil {
		t.Errorf("Expected empty list to be omitted, got %+v", node)
	}
}

// --------------------------------------------------------------------------
// Dynamic Properties
// --------------------------------------------------------------------------

func TestDynamicHandlerWrite(t *testing.T) {
	h := NewDynamicHandler("extra")
	e := model.NewEntity("note")
	e.Dynamic["extra"] = model.IntValue(9)

	node := h.WriteValue(document.NewNode("note"), "extra", e, WriteOpts{})
	if node == nil || node.Text != "9" {
		t.Fatalf("Expected written value, got %+v", node)
	}
	if tag, ok := node.Attr(TypeAttrName); !ok || tag != "IntegerProperty" {
		t.Errorf("Expected type attribute on dynamic value, got %q", tag)
	}
}

func TestDynamicHandlerRead(t *testing.T) {
	h := NewDynamicHandler("extra")

	// tagged values parse per their tag
	node := document.NewNode("extra")
	node.Text = "9"
	node.SetAttr(TypeAttrName, "IntegerProperty")
	props := map[string]model.Value{}
	if err := h.ReadValue(props, node); err != nil {
		t.Fatalf("Unexpected error reading: %v", err)
	}
	if props["extra"].Type != model.TypeInteger || props["extra"].Int != 9 {
		t.Errorf("Expected tagged integer, got %+v", props["extra"])
	}

	// untagged values stay strings
	node = document.NewNode("extra")
	node.Text = "9"
	props = map[string]model.Value{}
	if err := h.ReadValue(props, node); err != nil {
		t.Fatalf("Unexpected error reading: %v", err)
	}
	if props["extra"].Type != model.TypeString || props["extra"].Str != "9" {
		t.Errorf("Expected untagged string, got %+v", props["extra"])
	}

	// unknown tags are an error
	node = document.NewNode("extra")
	node.SetAttr(TypeAttrName, "WeirdProperty")
	if err := h.ReadValue(map[string]model.Value{}, node); err == nil {
		t.Errorf("Expected an error for an unknown type tag")
	}
}

func TestGuessQueryValue(t *testing.T) {
	tests := []struct {
		in   string
		want model.Value
	}{
		{`"5"`, model.StringValue("5")},
		{"5", model.IntValue(5)},
		{"2.5", model.FloatValue(2.5)},
		{"true", model.BoolValue(true)},
		{"False", model.BoolValue(false)},
		{"2024-05-17", model.DateValue(time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC))},
		{"bolt", model.StringValue("bolt")},
	}
	for _, tt := range tests {
		if got := GuessQueryValue(tt.in); !got.Equal(tt.want) {
			t.Errorf("GuessQueryValue(%q): expected %+v, got %+v", tt.in, tt.want, got)
		}
	}
}

// --------------------------------------------------------------------------
// Key Handler
// --------------------------------------------------------------------------

func TestKeyHandler(t *testing.T) {
	h := NewKeyHandler()

	if h.Name() != KeyPropertyName {
		t.Errorf("Expected wire name %s, got %s", KeyPropertyName, h.Name())
	}
	if h.QueryField() != KeyQueryField {
		t.Errorf("Expected query field %s, got %s", KeyQueryField, h.QueryField())
	}

	// unsaved entities have no key to write
	e := model.NewEntity("widget")
	if node := h.WriteValue(document.NewNode("widget"), "key", e, WriteOpts{}); node != nil {
		t.Errorf("Expected no key node for an unsaved entity")
	}

	e.Key = "abc"
	node := h.WriteValue(document.NewNode("widget"), "key", e, WriteOpts{})
	if node == nil || node.Text != "abc" {
		t.Errorf("Expected key node, got %+v", node)
	}
}
