// Package server implements the REST dispatcher and its supporting
// protocol pieces: path routing over registered entity types, entity
// and collection operations, concurrency tokens (ETags), read-path
// response caching, attachment upload and serving, request metrics and
// the authentication/authorization hooks.
//
// The dispatcher is transport-agnostic; rest/transport/http carries it
// over HTTP. NewRESTServer wires both together with an entity store
// and the optional collaborators.
package server
