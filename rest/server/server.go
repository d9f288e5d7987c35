package server

import (
	"time"

	"github.com/ValentinKolb/dREST/lib/blob"
	"github.com/ValentinKolb/dREST/lib/cache"
	"github.com/ValentinKolb/dREST/lib/model"
	"github.com/ValentinKolb/dREST/lib/store"
	"github.com/ValentinKolb/dREST/rest/common"
	"github.com/ValentinKolb/dREST/rest/transport"
)

// --------------------------------------------------------------------------
// REST Server
// --------------------------------------------------------------------------

// Options overrides the server's default collaborators. Nil fields fall
// back to the in-memory implementations and allow-all policies.
type Options struct {
	BlobStore     blob.IBlobStore
	ResponseCache cache.IResponseCache
	Authenticator IAuthenticator
	Authorizer    IAuthorizer
}

// NewRESTServer creates a new REST server for a registry of entity
// types. It takes a config, a transport and an entity store as
// parameters.
//
// Usage:
//
//	s, err := server.NewRESTServer(
//		config,
//		http.NewHTTPServerTransport(),
//		registry,
//		memstore.NewMemoryStore(),
//		server.Options{},
//	)
//	if err != nil {
//		panic(err)
//	}
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRESTServer(
	config common.ServerConfig,
	transport transport.IRESTTransport,
	registry *model.Registry,
	entityStore store.IEntityStore,
	opts Options,
) (*restServer, error) {
	if opts.BlobStore == nil {
		opts.BlobStore = blob.NewMemoryStore()
	}
	if opts.ResponseCache == nil && config.CacheEnabled {
		opts.ResponseCache = cache.NewLRUCache(
			config.CacheMaxEntries,
			time.Duration(config.CacheTTLSeconds)*time.Second,
		)
	}
	if opts.Authenticator == nil {
		if config.AuthSecret != "" {
			opts.Authenticator = NewJWTAuthenticator(config.AuthSecret)
		} else {
			opts.Authenticator = NewAllowAllAuthenticator()
		}
	}
	if opts.Authorizer == nil {
		opts.Authorizer = NewAllowAllAuthorizer()
	}

	dispatcher, err := NewDispatcher(
		config,
		registry,
		entityStore,
		opts.BlobStore,
		opts.ResponseCache,
		opts.Authenticator,
		opts.Authorizer,
	)
	if err != nil {
		return nil, err
	}

	Logger.Infof("Created REST Server")
	Logger.Infof(config.String())

	return &restServer{
		config:     config,
		transport:  transport,
		dispatcher: dispatcher,
	}, nil
}

type restServer struct {
	config     common.ServerConfig
	transport  transport.IRESTTransport
	dispatcher *Dispatcher
}

// Dispatcher exposes the request dispatcher, mainly for tests and for
// embedding the server into an existing mux.
func (s *restServer) Dispatcher() *Dispatcher {
	return s.dispatcher
}

// Serve starts the REST server: it initializes the loggers, registers
// the dispatcher on the transport and starts listening.
func (s *restServer) Serve() error {
	common.InitLoggers(s.config)
	s.transport.RegisterHandler(s.dispatcher.Handle)
	return s.transport.Listen(s.config)
}
