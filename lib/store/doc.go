// Package store defines the datastore abstraction the REST core is
// built against. It provides the IEntityStore interface for typed
// entity persistence (get, put, query, delete, bulk delete) together
// with feature flags and a unified error handling system.
//
// The package focuses on:
//   - A unified interface (IEntityStore) for entity operations across
//     different backends
//   - Capability discovery through bit-flag features, letting the
//     dispatcher adapt pagination (cursors vs. offsets) and concurrency
//     tokens (versions vs. structural hashes) to the backend
//
// Key Components:
//
//   - IEntityStore Interface: The core abstraction defining operations
//     for persisting and querying entities of a kind. All
//     implementations share this common interface, allowing the REST
//     layer to switch between storage backends without code changes.
//
//   - Error System: A structured error reporting mechanism using typed
//     error codes and descriptive messages. This system allows the
//     dispatcher to map store failures onto precise HTTP status codes
//     rather than generic errors.
//
//   - Feature Flags: Bit flags advertising optional backend
//     capabilities such as opaque query cursors and monotonic entity
//     version counters.
//
// Implementations:
//
//	The package includes one implementation of the IEntityStore
//	interface:
//
//	- Memory Store (memstore): A concurrent in-process implementation
//	  backed by lock-free maps. It assigns UUID keys, maintains
//	  per-entity version counters and supports every feature including
//	  cursors. Suitable for single-node deployments and as the
//	  reference backend for the shared test suite.
//	  Available in the "github.com/ValentinKolb/dREST/lib/store/memstore"
//	  package.
package store
