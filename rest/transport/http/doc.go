// Package http implements the REST transport over net/http with a
// gorilla/mux router. All paths below the configured base path are
// forwarded to the registered dispatcher handler.
package http
