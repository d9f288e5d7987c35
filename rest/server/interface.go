package server

import (
	"fmt"

	"github.com/ValentinKolb/dREST/lib/model"
	"github.com/ValentinKolb/dREST/rest/transport"
)

// --------------------------------------------------------------------------
// Authentication / Authorization Hooks
// --------------------------------------------------------------------------

// IAuthenticator establishes the caller's identity from the request.
// An error rejects the request with a forbidden status before any
// routing happens.
type IAuthenticator interface {
	// Authenticate returns the principal associated with the request.
	// An empty principal with a nil error is an anonymous caller.
	Authenticate(req *transport.Request) (principal string, err error)
}

// IAuthorizer decides whether a principal may run an operation on a
// type. It runs after routing, so it sees the resolved type name and
// the concrete operation.
type IAuthorizer interface {
	Authorize(principal, typeName string, op model.Operation) bool
}

// --------------------------------------------------------------------------
// Status Errors
// --------------------------------------------------------------------------

// StatusError is an error that carries the HTTP status it should be
// reported with.
type StatusError struct {
	Status int
	Msg    string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("RESTError (status %d): %s", e.Status, e.Msg)
}

// NewStatusError creates a new REST error with the given status and
// formatted message.
func NewStatusError(status int, format string, args ...interface{}) *StatusError {
	return &StatusError{Status: status, Msg: fmt.Sprintf(format, args...)}
}
