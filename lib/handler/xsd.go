package handler

import (
	"github.com/ValentinKolb/dREST/lib/document"
	"github.com/ValentinKolb/dREST/lib/model"
)

// --------------------------------------------------------------------------
// XML Schema Constants
// --------------------------------------------------------------------------

const (
	XSDPrefix         = "xs"
	XSDNamespace      = "http://www.w3.org/2001/XMLSchema"
	XSDSchemaName     = XSDPrefix + ":schema"
	XSDElementName    = XSDPrefix + ":element"
	XSDComplexType    = XSDPrefix + ":complexType"
	XSDSequenceName   = XSDPrefix + ":sequence"
	XSDAnyName        = XSDPrefix + ":any"
	XSDAnnotationName = XSDPrefix + ":annotation"
	XSDAppInfoName    = XSDPrefix + ":appinfo"
	XSDDocName        = XSDPrefix + ":documentation"

	XSDFilterPrefix    = "bm"
	XSDFilterNamespace = "http://www.boomi.com/connector/annotation"
	XSDFilterName      = XSDFilterPrefix + ":filter"
	XSDFilterXMLNS     = "xmlns:" + XSDFilterPrefix
	XSDNoFilterAttr    = "ignore"

	XSDAttrMinOccurs       = "minOccurs"
	XSDAttrMaxOccurs       = "maxOccurs"
	XSDAttrNamespace       = "namespace"
	XSDAttrProcessContents = "processContents"
	XSDAnyNamespace        = "##any"
	XSDLaxContents         = "lax"
	XSDNoMin               = "0"
	XSDSingleMax           = "1"
	XSDNoMax               = "unbounded"

	// MetaElementName carries property metadata (required, indexed,
	// default, verbose_name, choices) inside an appinfo block.
	MetaElementName  = "meta"
	MetaAttrRequired = "required"
	MetaAttrIndexed  = "indexed"
	MetaAttrDefault  = "default"
	MetaAttrVerbose  = "verbose_name"
	ChoiceElement    = "choice"
)

// xsdTypeFor maps a semantic property type to its XML Schema type.
func xsdTypeFor(t model.PropertyType) string {
	switch t {
	case model.TypeKey, model.TypeReference, model.TypeBlobReference:
		return XSDPrefix + ":normalizedString"
	case model.TypeBoolean:
		return XSDPrefix + ":boolean"
	case model.TypeInteger:
		return XSDPrefix + ":long"
	case model.TypeRating:
		return XSDPrefix + ":integer"
	case model.TypeFloat:
		return XSDPrefix + ":double"
	case model.TypeDateTime:
		return XSDPrefix + ":dateTime"
	case model.TypeDate:
		return XSDPrefix + ":date"
	case model.TypeTime:
		return XSDPrefix + ":time"
	case model.TypeByteString, model.TypeBlob:
		return XSDPrefix + ":base64Binary"
	default:
		return XSDPrefix + ":string"
	}
}

// --------------------------------------------------------------------------
// Schema Builders
// --------------------------------------------------------------------------

// XSDAppendSequence appends a complexType/sequence pair to the parent
// and returns the sequence node.
func XSDAppendSequence(parent *document.Node) *document.Node {
	return parent.Append(XSDComplexType).Append(XSDSequenceName)
}

// XSDAppendElement appends an element declaration with the given type
// and cardinality.
func XSDAppendElement(parent *document.Node, name string, propType model.PropertyType, minOccurs, maxOccurs string) *document.Node {
	el := parent.Append(XSDElementName)
	el.SetAttr("name", name)
	el.SetAttr("type", xsdTypeFor(propType))
	if minOccurs != "" {
		el.SetAttr(XSDAttrMinOccurs, minOccurs)
	}
	if maxOccurs != "" {
		el.SetAttr(XSDAttrMaxOccurs, maxOccurs)
	}
	return el
}

// xsdAppInfo returns the appinfo node of the element's annotation
// block, creating the annotation/appinfo chain on first use.
func xsdAppInfo(el *document.Node) *document.Node {
	ann, ok := el.Child(XSDAnnotationName)
	if !ok {
		ann = el.Append(XSDAnnotationName)
	}
	info, ok := ann.Child(XSDAppInfoName)
	if !ok {
		info = ann.Append(XSDAppInfoName)
	}
	return info
}

// xsdAppendNoFilter marks an element as not filterable.
func xsdAppendNoFilter(el *document.Node) {
	filter := xsdAppInfo(el).Append(XSDFilterName)
	filter.SetAttr(XSDFilterXMLNS, XSDFilterNamespace)
	filter.SetAttr(XSDNoFilterAttr, "true")
}

// xsdAppendMeta emits the property metadata annotation for a declared
// property definition.
func xsdAppendMeta(el *document.Node, def *model.PropertyDef, h IPropertyHandler) {
	if def == nil {
		return
	}
	if !def.Required && !def.Indexed && def.Default == nil && def.VerboseName == "" && len(def.Choices) == 0 {
		return
	}
	meta := xsdAppInfo(el).Append(MetaElementName)
	if def.Required {
		meta.SetAttr(MetaAttrRequired, "true")
	}
	if def.Indexed {
		meta.SetAttr(MetaAttrIndexed, "true")
	}
	if def.Default != nil {
		meta.SetAttr(MetaAttrDefault, h.ValueToString(*def.Default))
	}
	if def.VerboseName != "" {
		meta.SetAttr(MetaAttrVerbose, def.VerboseName)
	}
	for _, c := range def.Choices {
		meta.AppendText(ChoiceElement, c)
	}
}
