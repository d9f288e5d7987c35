package model

import (
	"fmt"
)

// MetadataPath is reserved for the schema endpoints and may not be
// used as a registered type name.
const MetadataPath = "metadata"

// --------------------------------------------------------------------------
// Registry
// --------------------------------------------------------------------------

// Registration binds a registered type definition to its allowed
// operations under its wire name.
type Registration struct {
	Def *TypeDef
	Ops Operation
}

// Allows reports whether the given operation is enabled for this type.
func (r *Registration) Allows(op Operation) bool {
	return r.Ops&op != 0
}

// Registry maps REST path names to entity type registrations. It is
// built once at startup and treated as read-only afterwards, so it
// needs no internal locking.
type Registry struct {
	types map[string]*Registration
	order []string
}

// NewRegistry creates an empty type registry.
func NewRegistry() *Registry {
	return &Registry{types: map[string]*Registration{}}
}

// Register adds a type under the given path name. The name (with
// invalid characters converted to '_') becomes the REST path for the
// type. Conflicting names and the reserved metadata path are rejected.
func (r *Registry) Register(name string, def *TypeDef, ops Operation) error {
	wireName := CleanseName(name)
	if wireName == MetadataPath {
		return fmt.Errorf("cannot use reserved name %s", MetadataPath)
	}
	if _, ok := r.types[wireName]; ok {
		return fmt.Errorf("name %s already used", wireName)
	}
	if def == nil || len(def.Props) == 0 && !def.Dynamic {
		return fmt.Errorf("type %s has no properties and is not dynamic", name)
	}
	r.types[wireName] = &Registration{Def: def, Ops: ops}
	r.order = append(r.order, wireName)
	return nil
}

// Lookup returns the registration for the given path name.
func (r *Registry) Lookup(name string) (*Registration, bool) {
	reg, ok := r.types[name]
	return reg, ok
}

// Names returns all registered path names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}
