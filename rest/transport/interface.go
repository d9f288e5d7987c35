package transport

import (
	"net/http"
	"net/url"

	"github.com/ValentinKolb/dREST/rest/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// Request is the transport-agnostic form of an incoming REST request.
// Path is relative to the configured base path and always starts with
// a slash; RawURL is the full request URL as received (used as the
// response cache key).
type Request struct {
	Method string
	Path   string
	RawURL string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// Response is the transport-agnostic form of an outgoing REST
// response. A nil Header means no extra headers.
type Response struct {
	Status      int
	ContentType string
	Header      http.Header
	Body        []byte
}

// ServerHandleFunc is a function type that handles incoming requests
// This function is called by a server transport layer when a request is received
type ServerHandleFunc func(req *Request) *Response

// IRESTTransport is the interface for the REST transport layer
// It must accept a ServerConfig as a parameter
type IRESTTransport interface {
	// RegisterHandler registers a handler for the transport layer
	// This handler should be called when a request is received
	RegisterHandler(handler ServerHandleFunc)
	// Listen starts the transport layer and listens for incoming requests
	Listen(config common.ServerConfig) error
}
