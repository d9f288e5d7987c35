// Package marshal binds one registered entity type to its wire
// behavior: serialization to and from document trees, schema
// generation, query field resolution and paginated query execution
// against the entity store. One Marshaler exists per registered type,
// built eagerly at startup.
package marshal
