package model

import (
	"fmt"
	"regexp"
	"strings"
)

// --------------------------------------------------------------------------
// Property Types
// --------------------------------------------------------------------------

// PropertyType identifies the semantic type of an entity property.
// The zero value is TypeString, which is also the fallback for any
// property whose type cannot be determined.
type PropertyType uint8

const (
	TypeString PropertyType = iota
	TypeBoolean
	TypeInteger
	TypeFloat
	TypeRating
	TypeDateTime
	TypeDate
	TypeTime
	TypeByteString
	TypeBlob
	TypeText
	TypeReference
	TypeBlobReference
	TypeList
	TypeKey

	// TypeNull marks an explicit clear of a property value (an empty
	// element on a write). Null values are never stored on an entity;
	// applying one removes the property instead.
	TypeNull PropertyType = 255
)

// String returns the wire type tag for this property type. These tags
// appear in schema documents and in the "type" attribute of dynamic
// property elements, so they must stay stable.
func (t PropertyType) String() string {
	switch t {
	case TypeString:
		return "StringProperty"
	case TypeBoolean:
		return "BooleanProperty"
	case TypeInteger:
		return "IntegerProperty"
	case TypeFloat:
		return "FloatProperty"
	case TypeRating:
		return "RatingProperty"
	case TypeDateTime:
		return "DateTimeProperty"
	case TypeDate:
		return "DateProperty"
	case TypeTime:
		return "TimeProperty"
	case TypeByteString:
		return "ByteStringProperty"
	case TypeBlob:
		return "BlobProperty"
	case TypeText:
		return "TextProperty"
	case TypeReference:
		return "ReferenceProperty"
	case TypeBlobReference:
		return "BlobReferenceProperty"
	case TypeList:
		return "ListProperty"
	case TypeKey:
		return "KeyProperty"
	default:
		return "StringProperty"
	}
}

// Numeric reports whether values of this type are represented as JSON
// numbers on the wire.
func (t PropertyType) Numeric() bool {
	return t == TypeInteger || t == TypeFloat || t == TypeRating
}

// ParsePropertyType returns the PropertyType for a wire type tag. For
// list types the tag may carry an element type separated by ':'
// (e.g. "ListProperty:IntegerProperty").
func ParsePropertyType(s string) (propType, elemType PropertyType, err error) {
	elemType = TypeString
	if sub, ok := strings.CutPrefix(s, TypeList.String()+DataTypeSeparator); ok {
		elemType, _, err = ParsePropertyType(sub)
		if err != nil {
			return 0, 0, err
		}
		return TypeList, elemType, nil
	}
	for t := TypeString; t <= TypeKey; t++ {
		if t.String() == s && t != TypeList {
			return t, elemType, nil
		}
	}
	if s == TypeList.String() {
		return TypeList, elemType, nil
	}
	return 0, 0, fmt.Errorf("unknown property type %q", s)
}

// DataTypeSeparator joins a list type tag with its element type tag.
const DataTypeSeparator = ":"

// --------------------------------------------------------------------------
// Operations
// --------------------------------------------------------------------------

// Operation represents REST operations as bit flags. Each registered
// type carries a set of allowed operations; anything else is rejected
// with a method-not-allowed failure before any store access.
type Operation uint32

const (
	OpGet        Operation = 1 << iota // Fetch a single entity by key
	OpQuery                            // Query/list a collection
	OpCreate                           // Create a new entity
	OpUpdate                           // Partially update an entity
	OpReplace                          // Fully replace an entity
	OpDelete                           // Delete a single entity
	OpBulkDelete                       // Delete all entities matching a filter
	OpUpload                           // Blob attachment upload/serving
)

// OpAll enables every operation for a registered type.
const OpAll = OpGet | OpQuery | OpCreate | OpUpdate | OpReplace | OpDelete | OpBulkDelete | OpUpload

func (o Operation) String() string {
	switch o {
	case OpGet:
		return "Get"
	case OpQuery:
		return "Query"
	case OpCreate:
		return "Create"
	case OpUpdate:
		return "Update"
	case OpReplace:
		return "Replace"
	case OpDelete:
		return "Delete"
	case OpBulkDelete:
		return "BulkDelete"
	case OpUpload:
		return "Upload"
	default:
		return "Unknown"
	}
}

// --------------------------------------------------------------------------
// Type Definitions
// --------------------------------------------------------------------------

// PropertyDef describes one declared property of an entity type.
type PropertyDef struct {
	Name        string       // property name (also the basis of the wire name)
	Type        PropertyType // semantic type
	Elem        PropertyType // element type when Type == TypeList
	Required    bool
	Indexed     bool
	Default     *Value   // optional default value, applied on replace
	Choices     []string // optional enumerated value set
	VerboseName string   // human readable label
}

// TypeDef describes a registered entity type. Props keeps definition
// order, which is also serialization order.
type TypeDef struct {
	Name    string
	Doc     string // optional documentation string, emitted as a schema annotation
	Dynamic bool   // true if instances may carry ad hoc properties
	Props   []PropertyDef
}

// Prop returns the declared property with the given name.
func (d *TypeDef) Prop(name string) (*PropertyDef, bool) {
	for i := range d.Props {
		if d.Props[i].Name == name {
			return &d.Props[i], true
		}
	}
	return nil, false
}

// --------------------------------------------------------------------------
// Wire Names
// --------------------------------------------------------------------------

var (
	cleansePatternLead    = regexp.MustCompile(`^[\d.]`)
	cleansePatternInvalid = regexp.MustCompile(`[^a-zA-Z0-9.]`)
)

// CleanseName converts a string to a valid xml element name: invalid
// characters become '_' and a leading digit or dot is prefixed with
// '_'. Dots survive so namespace-qualified type names (ns.typename)
// keep their shape.
func CleanseName(name string) string {
	name = cleansePatternInvalid.ReplaceAllString(name, "_")
	if cleansePatternLead.MatchString(name) {
		name = "_" + name
	}
	return name
}
