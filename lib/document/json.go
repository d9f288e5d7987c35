package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

const (
	// JSONTextKey holds a leaf's text when attributes force object shape.
	JSONTextKey = "$t"
	// JSONAttrPrefix marks attribute keys in the JSON projection.
	JSONAttrPrefix = "@"
	// ItemName is the canonical wrapper element for list items.
	ItemName = "item"
)

// --------------------------------------------------------------------------
// JSON Encoding
// --------------------------------------------------------------------------

// ToJSON serializes a document tree to its JSON projection. The root
// node becomes the single key of the top-level object. With simplified
// enabled, list containers collapse their item wrapper so arrays of
// scalars render as plain JSON arrays.
func ToJSON(root *Node, simplified bool) ([]byte, error) {
	return json.Marshal(map[string]any{root.Name: jsonValue(root, simplified)})
}

func jsonValue(n *Node, simplified bool) any {
	if n.IsLeaf() {
		scalar := jsonScalar(n)
		if len(n.Attrs) == 0 {
			return scalar
		}
		obj := make(map[string]any, len(n.Attrs)+1)
		for _, a := range n.Attrs {
			obj[JSONAttrPrefix+a.Name] = a.Value
		}
		if n.Text != "" {
			obj[JSONTextKey] = scalar
		}
		return obj
	}

	if n.IsList {
		items := make([]any, 0, len(n.Children))
		for _, c := range n.Children {
			items = append(items, jsonValue(c, simplified))
		}
		if simplified {
			return items
		}
		obj := map[string]any{ItemName: items}
		for _, a := range n.Attrs {
			obj[JSONAttrPrefix+a.Name] = a.Value
		}
		return obj
	}

	obj := map[string]any{}
	for _, a := range n.Attrs {
		obj[JSONAttrPrefix+a.Name] = a.Value
	}
	for _, c := range n.Children {
		key := c.Name
		val := jsonValue(c, simplified)
		if existing, ok := obj[key]; ok {
			// repeated child names become an array
			if arr, isArr := existing.([]any); isArr {
				obj[key] = append(arr, val)
			} else {
				obj[key] = []any{existing, val}
			}
		} else {
			obj[key] = val
		}
	}
	return obj
}

// jsonScalar converts leaf text to a JSON value. Only values written
// from explicitly numeric property types become JSON numbers; all
// other text stays a string so round trips are unambiguous.
func jsonScalar(n *Node) any {
	if !n.Origin.Numeric() {
		return n.Text
	}
	if i, err := strconv.ParseInt(n.Text, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(n.Text, 64); err == nil {
		return f
	}
	return n.Text
}

// --------------------------------------------------------------------------
// JSON Decoding
// --------------------------------------------------------------------------

// FromJSON parses a JSON projection back into a document tree. The
// top-level object must have exactly one key, which names the root.
func FromJSON(data []byte, simplified bool) (*Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var top map[string]any
	if err := dec.Decode(&top); err != nil {
		return nil, fmt.Errorf("malformed json: %w", err)
	}
	if len(top) != 1 {
		return nil, fmt.Errorf("expected a single root key, got %d", len(top))
	}
	for name, val := range top {
		return buildJSONNode(name, val, simplified)
	}
	return nil, fmt.Errorf("empty document")
}

func buildJSONNode(name string, val any, simplified bool) (*Node, error) {
	node := NewNode(name)

	obj, isObj := val.(map[string]any)
	if !isObj {
		if _, isArr := val.([]any); isArr {
			return nil, fmt.Errorf("unexpected array for element %s", name)
		}
		node.Text = jsonText(val)
		return node, nil
	}

	// sorted keys keep parsing deterministic
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		child := obj[key]
		switch {
		case key == JSONTextKey:
			node.Text = jsonText(child)
		case len(key) > 0 && key[:1] == JSONAttrPrefix:
			node.SetAttr(key[1:], jsonText(child))
		default:
			if arr, isArr := child.([]any); isArr {
				if err := appendJSONArray(node, key, arr, simplified); err != nil {
					return nil, err
				}
				continue
			}
			sub, err := buildJSONNode(key, child, simplified)
			if err != nil {
				return nil, err
			}
			node.Children = append(node.Children, sub)
		}
	}

	if allItems(node) {
		node.IsList = true
	}
	return node, nil
}

// appendJSONArray handles a key whose JSON value is an array. With
// simplified lists enabled, an array of bare scalars under a non-item
// key is re-wrapped into the canonical item-wrapper form; otherwise
// array elements become repeated children under the key's name.
func appendJSONArray(parent *Node, key string, arr []any, simplified bool) error {
	if simplified && key != ItemName && allScalars(arr) {
		list := parent.Append(key)
		list.IsList = true
		for _, item := range arr {
			list.AppendText(ItemName, jsonText(item))
		}
		return nil
	}
	for _, item := range arr {
		sub, err := buildJSONNode(key, item, simplified)
		if err != nil {
			return err
		}
		parent.Children = append(parent.Children, sub)
	}
	return nil
}

func allItems(n *Node) bool {
	if n.IsLeaf() {
		return false
	}
	for _, c := range n.Children {
		if c.Name != ItemName {
			return false
		}
	}
	return true
}

func allScalars(arr []any) bool {
	for _, v := range arr {
		switch v.(type) {
		case map[string]any, []any:
			return false
		}
	}
	return true
}

func jsonText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case json.Number:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}

// WrapJSONP wraps a JSON payload in a JSONP callback invocation.
func WrapJSONP(callback string, body []byte) []byte {
	out := make([]byte, 0, len(callback)+len(body)+3)
	out = append(out, callback...)
	out = append(out, '(')
	out = append(out, body...)
	out = append(out, ");"...)
	return out
}
