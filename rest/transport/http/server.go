package http

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ValentinKolb/dREST/rest/common"
	"github.com/ValentinKolb/dREST/rest/transport"
	"github.com/gorilla/mux"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("transport/rest")

func NewHTTPServerTransport() transport.IRESTTransport {
	return &httpServerTransport{}
}

type httpServerTransport struct {
	handler transport.ServerHandleFunc
	config  common.ServerConfig
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRESTTransport)
// --------------------------------------------------------------------------

func (t *httpServerTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *httpServerTransport) Listen(config common.ServerConfig) error {
	t.config = config

	router := mux.NewRouter()

	if t.config.LogLevel == "debug" {
		router.Use(loggerMiddleware)
	}

	// the dispatcher owns routing below the base path
	base := strings.TrimSuffix(t.config.BasePath, "/")
	router.PathPrefix(base + "/").HandlerFunc(t.handleRequest)
	router.Path(base).HandlerFunc(t.handleRequest)

	Logger.Infof("Starting HTTP server on %s (base path %s)", t.config.Endpoint, base)

	return http.ListenAndServe(t.config.Endpoint, router)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleRequest converts the HTTP request to the transport form,
// invokes the dispatcher and writes its response back
func (t *httpServerTransport) handleRequest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	defer r.Body.Close()

	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusInternalServerError)
		return
	}

	base := strings.TrimSuffix(t.config.BasePath, "/")
	path := strings.TrimPrefix(r.URL.Path, base)
	if path == "" {
		path = "/"
	}

	resp := t.handler(&transport.Request{
		Method: r.Method,
		Path:   path,
		RawURL: r.URL.RequestURI(),
		Query:  r.URL.Query(),
		Header: r.Header,
		Body:   body,
	})

	for name, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	w.WriteHeader(resp.Status)

	if _, err = w.Write(resp.Body); err != nil {
		Logger.Errorf("Failed to write response: %v", err)
	}
}

// --------------------------------------------------------------------------
// Middleware (logging)
// --------------------------------------------------------------------------

// responseWriter is a custom ResponseWriter that captures status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code before writing it
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// loggerMiddleware is a middleware that logs HTTP requests
func loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create custom response writer to capture status code
		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		// Process request
		next.ServeHTTP(rw, r)

		// Log the request
		duration := time.Since(start)
		Logger.Debugf("%s %s => %d took %s", r.Method, r.URL.Path, rw.statusCode, duration)
	})
}
