package store

import (
	"fmt"

	"github.com/ValentinKolb/dREST/lib/model"
	"github.com/ValentinKolb/dREST/lib/query"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// Feature represents entity store capabilities as bit flags. The
// dispatcher and marshalers adapt their behavior to the advertised
// feature set (cursor pagination, version based concurrency tokens).
type Feature uint64

const (
	FeatureGet        Feature = 1 << iota // Support for Get operations
	FeaturePut                            // Support for Put operations
	FeatureQuery                          // Support for Query operations
	FeatureDelete                         // Support for Delete operations
	FeatureBulkDelete                     // Support for DeleteMatching operations
	FeatureCursors                        // Queries return opaque continuation tokens
	FeatureVersions                       // Entities carry monotonic version counters
)

func (f Feature) String() string {
	switch f {
	case FeatureGet:
		return "Get"
	case FeaturePut:
		return "Put"
	case FeatureQuery:
		return "Query"
	case FeatureDelete:
		return "Delete"
	case FeatureBulkDelete:
		return "BulkDelete"
	case FeatureCursors:
		return "Cursors"
	case FeatureVersions:
		return "Versions"
	default:
		return "Unknown"
	}
}

// Page is one page of query results. Cursor is the position to resume
// from; callers decide whether to expose it based on page fullness.
type Page struct {
	Entities []*model.Entity
	Cursor   string
}

// IEntityStore is the interface the REST core needs from the
// underlying datastore. Implementations own key generation, version
// counting, indexing and query execution; the core never retries, so
// retry/backoff belongs behind this interface.
type IEntityStore interface {
	// Get returns the entity with the given key. The boolean return
	// value indicates whether the entity was found.
	Get(kind, key string) (e *model.Entity, loaded bool, err error)

	// Put persists the entity. A key is assigned on first persist and
	// the entity's version counter is incremented; both are reflected
	// on the passed entity.
	Put(kind string, e *model.Entity) error

	// Query executes a filtered, ordered, paginated fetch. Pagination
	// starts at the query's offset or cursor and returns at most
	// PageSize entities.
	Query(kind string, q *query.Query) (page *Page, err error)

	// Delete removes the entity with the given key. The boolean return
	// value indicates whether an entity was actually removed.
	Delete(kind, key string) (loaded bool, err error)

	// DeleteMatching removes every entity matching the query's filter,
	// ignoring pagination. Returns the number of removed entities.
	DeleteMatching(kind string, q *query.Query) (count int, err error)

	// SupportsFeature checks if the store supports the specified
	// feature. Multiple features can be checked at once using the
	// bitwise OR operator.
	SupportsFeature(feature Feature) (ok bool)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type
// RetCode) and an error message.
type Error struct {
	Code RetCode
	Msg  string
}

// Error implements the error interface.
func (e *Error) Error() string {
	errorCode := "Unknown"
	switch e.Code {
	case RetCInternalError:
		errorCode = "InternalError"
	case RetCUnsupportedOperation:
		errorCode = "UnsupportedOperation"
	case RetCInvalidQuery:
		errorCode = "InvalidQuery"
	}
	return fmt.Sprintf("EntityStoreError (code %s): %s", errorCode, e.Msg)
}

// NewError creates a new store error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by the store.
	RetCInvalidQuery                        // 3: Query filter or pagination state is invalid.
)
