package cache

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IResponseCache is the interface the dispatcher's response caching is
// built against. Keys are request URLs; values are encoded response
// entries. Entry lifetime is an implementation property configured at
// construction time.
type IResponseCache interface {
	// Get returns the cached value for the key. The boolean return
	// value indicates whether a live entry was found.
	Get(key string) (value []byte, loaded bool)

	// Set stores the value under the key, replacing any previous entry.
	// Failures are non-fatal to the caller; the dispatcher logs and
	// serves uncached.
	Set(key string, value []byte) error

	// Purge drops every cached entry.
	Purge()
}
