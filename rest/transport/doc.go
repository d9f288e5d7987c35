// Package transport defines the interface between the REST dispatcher
// and the network layer carrying its requests. The dispatcher only
// sees transport-agnostic Request/Response values; concrete transports
// live in sub-packages.
package transport
