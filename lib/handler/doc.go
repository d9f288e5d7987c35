// Package handler implements the property handler framework: one
// stateless strategy object per semantic property type, converting
// values between their native form and their wire representations
// (document nodes, query filter operands, raw single-property bodies
// and schema descriptions).
//
// Handlers are resolved once at type registration time via ForProperty
// and kept in an immutable per-type map; dynamic properties resolve
// their handler per value through the explicit type tag carried on the
// wire.
package handler
