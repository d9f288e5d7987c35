package document

import (
	"github.com/ValentinKolb/dREST/lib/model"
)

// --------------------------------------------------------------------------
// Document Nodes
// --------------------------------------------------------------------------

// Attr is a single name/value attribute on a node. Attributes keep
// insertion order so XML output is deterministic.
type Attr struct {
	Name  string
	Value string
}

// Node is the format-agnostic intermediate tree both wire codecs work
// on. A node is either a leaf (Text, possibly empty) or a container
// (Children); attributes may appear on either.
//
// IsList marks container nodes whose children are uniform items, which
// forces array shape in the JSON projection even for a single child.
// Origin carries the semantic type of the property the node was
// written from; the JSON codec uses it to decide which scalars become
// JSON numbers.
type Node struct {
	Name     string
	Text     string
	Children []*Node
	Attrs    []Attr
	IsList   bool
	Origin   model.PropertyType
}

// NewNode creates an empty node with the given name.
func NewNode(name string) *Node {
	return &Node{Name: name}
}

// IsLeaf reports whether the node carries text rather than children.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// Append creates a new child node with the given name and returns it.
func (n *Node) Append(name string) *Node {
	child := NewNode(name)
	n.Children = append(n.Children, child)
	return child
}

// AppendText creates a new leaf child with the given name and text
// content and returns it.
func (n *Node) AppendText(name, text string) *Node {
	child := n.Append(name)
	child.Text = text
	return child
}

// SetAttr sets an attribute, replacing any existing attribute with the
// same name.
func (n *Node) SetAttr(name, value string) {
	for i := range n.Attrs {
		if n.Attrs[i].Name == name {
			n.Attrs[i].Value = value
			return
		}
	}
	n.Attrs = append(n.Attrs, Attr{Name: name, Value: value})
}

// Attr returns the value of the named attribute.
func (n *Node) Attr(name string) (string, bool) {
	for i := range n.Attrs {
		if n.Attrs[i].Name == name {
			return n.Attrs[i].Value, true
		}
	}
	return "", false
}

// Child returns the first child with the given name.
func (n *Node) Child(name string) (*Node, bool) {
	for _, c := range n.Children {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}
