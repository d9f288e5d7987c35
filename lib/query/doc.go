// Package query translates request query strings into store-agnostic
// filter expressions: one conjunction term per f<op>_<field> parameter
// with positional placeholders, plus ordering and pagination state
// (numeric offset or opaque cursor token).
//
// The package knows nothing about entity types; operand coercion is
// delegated to a Resolver so the same parser serves every registered
// type.
package query
