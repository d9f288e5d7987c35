// Package model defines the entity data model for the REST façade:
// semantic property types, the tagged Value union carried by entity
// properties, per-type property definitions, operation flags and the
// startup-time type registry.
//
// The registry is deliberately an explicit object (not package state):
// it is constructed once during server setup, passed by reference into
// the dispatcher and never mutated afterwards.
package model
