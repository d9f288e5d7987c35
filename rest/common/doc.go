// Package common holds the shared pieces of the REST layer: the
// ServerConfig struct consumed by the transport and the dispatcher,
// and the logger factory that routes all package loggers through one
// consistently formatted writer.
package common
