package handler

import (
	"github.com/ValentinKolb/dREST/lib/model"
)

// --------------------------------------------------------------------------
// Handler Dispatch
// --------------------------------------------------------------------------

// ForProperty returns the handler for a declared property definition.
// Dispatch is total: unmodeled types fall back to the generic string
// handler.
func ForProperty(def *model.PropertyDef) IPropertyHandler {
	if def.Type == model.TypeList {
		return newListHandler(def.Name, def.Elem, def)
	}
	return ForType(def.Name, def.Type, def)
}

// ForType returns the handler for a semantic type under the given
// property name. def may be nil for list items and dynamic values.
// The dispatch order mirrors the structural relationships between
// types: byte strings must be distinguished from blobs and text from
// strings before falling back to the generic handler.
func ForType(name string, typ model.PropertyType, def *model.PropertyDef) IPropertyHandler {
	switch typ {
	case model.TypeDateTime, model.TypeDate, model.TypeTime:
		return newDateTimeHandler(name, typ, def)
	case model.TypeBoolean:
		return newBoolHandler(name, def)
	case model.TypeReference:
		return newReferenceHandler(name, def)
	case model.TypeByteString, model.TypeBlob:
		return newBytesHandler(name, typ, def)
	case model.TypeText:
		return newTextHandler(name, def)
	case model.TypeInteger, model.TypeRating:
		return newIntHandler(name, typ, def)
	case model.TypeFloat:
		return newFloatHandler(name, def)
	case model.TypeList:
		elem := model.TypeString
		if def != nil {
			elem = def.Elem
		}
		return newListHandler(name, elem, def)
	case model.TypeBlobReference:
		return newBlobRefHandler(name, def)
	case model.TypeKey:
		return NewKeyHandler()
	default:
		return newStringHandler(name, def)
	}
}
