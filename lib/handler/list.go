package handler

import (
	"fmt"

	"github.com/ValentinKolb/dREST/lib/document"
	"github.com/ValentinKolb/dREST/lib/model"
)

// --------------------------------------------------------------------------
// List
// --------------------------------------------------------------------------

// listHandler wraps each element with a sub-handler for the list's
// declared element type. On the wire a list is a container node whose
// children are uniformly tagged items, so list shape survives the JSON
// projection even for single-element lists.
type listHandler struct {
	base
	elem model.PropertyType
	sub  IPropertyHandler
}

func newListHandler(name string, elem model.PropertyType, def *model.PropertyDef) listHandler {
	return listHandler{
		base: base{name: name, typ: model.TypeList, def: def},
		elem: elem,
		sub:  ForType(document.ItemName, elem, nil),
	}
}

func (h listHandler) TypeString() string {
	return model.TypeList.String() + model.DataTypeSeparator + h.sub.TypeString()
}

// CanQuery follows the list's element type.
func (h listHandler) CanQuery() bool {
	return h.sub.CanQuery() && h.indexed()
}

func (h listHandler) Empty(v model.Value) bool {
	return v.IsNull() || len(v.List) == 0
}

func (h listHandler) ValueToString(v model.Value) string {
	// only used for metadata defaults; lists render element-wise
	out := ""
	for i, item := range v.List {
		if i > 0 {
			out += ","
		}
		out += h.sub.ValueToString(item)
	}
	return out
}

func (h listHandler) ValueFromString(s string) (model.Value, error) {
	return model.Value{}, fmt.Errorf("property %s: list values have no scalar form", h.name)
}

// ValueForQuery coerces a single filter operand per the element type;
// list filters use element-wise containment, so each operand is an
// element value, not a list.
func (h listHandler) ValueForQuery(s string) (model.Value, error) {
	return h.sub.ValueFromString(s)
}

func (h listHandler) ValueToRaw(v model.Value) ([]byte, string) {
	return []byte(h.ValueToString(v)), document.ContentTypeText
}

func (h listHandler) ValueFromRaw(b []byte) (model.Value, error) {
	return model.Value{}, fmt.Errorf("property %s: list values have no raw form", h.name)
}

func (h listHandler) WriteValue(parent *document.Node, name string, e *model.Entity, opts WriteOpts) *document.Node {
	v, ok := e.Get(h.name)
	if !ok || h.Empty(v) {
		return nil
	}
	list := parent.Append(name)
	list.IsList = true
	list.Origin = model.TypeList
	for _, item := range v.List {
		// every element is written, even empty ones, so list length
		// survives the round trip
		itemNode := list.AppendText(document.ItemName, h.sub.ValueToString(item))
		itemNode.Origin = h.elem
	}
	return list
}

func (h listHandler) ReadValue(props map[string]model.Value, node *document.Node) error {
	values := []model.Value{}
	sub := map[string]model.Value{}
	for _, child := range node.Children {
		if child.Name != document.ItemName {
			continue
		}
		if err := h.sub.ReadValue(sub, child); err != nil {
			return fmt.Errorf("property %s: %w", h.name, err)
		}
		values = append(values, sub[document.ItemName])
	}
	props[h.name] = model.ListValue(h.elem, values)
	return nil
}

func (h listHandler) WriteSchema(parent *document.Node, name string) *document.Node {
	el := parent.Append(XSDElementName)
	el.SetAttr("name", name)
	el.SetAttr(XSDAttrMinOccurs, XSDNoMin)
	el.SetAttr(XSDAttrMaxOccurs, XSDSingleMax)
	if !h.CanQuery() {
		xsdAppendNoFilter(el)
	}
	xsdAppendMeta(el, h.def, h)
	seq := XSDAppendSequence(el)
	XSDAppendElement(seq, document.ItemName, h.elem, XSDNoMin, XSDNoMax)
	return el
}
