// Package document provides the format-agnostic document tree used as
// the intermediate representation between entities and their wire
// forms, plus the XML and JSON codecs and content negotiation.
//
// The XML and JSON projections are bidirectionally lossless: the same
// tree serialized to either format parses back into an equivalent
// tree. List shape and numeric coercion are driven by explicit fields
// on the node (IsList, Origin) rather than inferred from the data.
package document
