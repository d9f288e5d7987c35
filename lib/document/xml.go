package document

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

const xmlHeader = `<?xml version="1.0" encoding="utf-8"?>`

// --------------------------------------------------------------------------
// XML Encoding
// --------------------------------------------------------------------------

// ToXML serializes a document tree to XML bytes, including the
// declaration header.
func ToXML(root *Node) []byte {
	var buf bytes.Buffer
	buf.WriteString(xmlHeader)
	writeXMLNode(&buf, root)
	return buf.Bytes()
}

func writeXMLNode(buf *bytes.Buffer, n *Node) {
	buf.WriteByte('<')
	buf.WriteString(n.Name)
	for _, attr := range n.Attrs {
		buf.WriteByte(' ')
		buf.WriteString(attr.Name)
		buf.WriteString(`="`)
		xml.EscapeText(buf, []byte(attr.Value))
		buf.WriteByte('"')
	}
	if n.IsLeaf() && n.Text == "" {
		buf.WriteString("/>")
		return
	}
	buf.WriteByte('>')
	if n.IsLeaf() {
		xml.EscapeText(buf, []byte(n.Text))
	} else {
		for _, child := range n.Children {
			writeXMLNode(buf, child)
		}
	}
	buf.WriteString("</")
	buf.WriteString(n.Name)
	buf.WriteByte('>')
}

// --------------------------------------------------------------------------
// XML Decoding
// --------------------------------------------------------------------------

// FromXML parses XML bytes into a document tree. Whitespace-only text
// between child elements is discarded; text inside leaf elements is
// kept verbatim (handlers decide whether to strip it).
func FromXML(data []byte) (*Node, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var root *Node
	var stack []*Node

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			node := NewNode(xmlName(t.Name))
			for _, a := range t.Attr {
				node.SetAttr(xmlName(a.Name), a.Value)
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("multiple root elements")
				}
				root = node
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, node)
			}
			stack = append(stack, node)

		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("unbalanced end element %s", t.Name.Local)
			}
			done := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			// text next to child elements is structural whitespace
			if !done.IsLeaf() {
				done.Text = ""
			}

		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}
		}
	}

	if root == nil {
		return nil, fmt.Errorf("empty document")
	}
	if len(stack) != 0 {
		return nil, fmt.Errorf("unclosed element %s", stack[len(stack)-1].Name)
	}
	return root, nil
}

func xmlName(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	// re-join prefixed names (the decoder resolves namespaces; schema
	// documents use literal prefixes)
	if strings.Contains(n.Space, "://") {
		return n.Local
	}
	return n.Space + ":" + n.Local
}
