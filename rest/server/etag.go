package server

import (
	"fmt"
	"hash/fnv"
	"io"
	"sort"
	"strings"

	"github.com/ValentinKolb/dREST/lib/model"
	"github.com/ValentinKolb/dREST/lib/store"
)

// --------------------------------------------------------------------------
// Concurrency Tokens
// --------------------------------------------------------------------------

// entityETag computes the concurrency token for one entity: the store's
// version counter when available, a structural hash otherwise.
func (d *Dispatcher) entityETag(e *model.Entity) string {
	if d.store.SupportsFeature(store.FeatureVersions) && e.Version > 0 {
		return fmt.Sprintf(`"v%d"`, e.Version)
	}
	return structuralETag(e)
}

// structuralETag hashes the entity's identity and property values in
// name order, so equal content yields an equal token regardless of map
// iteration.
func structuralETag(e *model.Entity) string {
	h := fnv.New64a()
	io.WriteString(h, e.Kind)
	io.WriteString(h, "\x00")
	io.WriteString(h, e.Key)

	names := make([]string, 0, len(e.Props)+len(e.Dynamic))
	for name := range e.Props {
		names = append(names, name)
	}
	for name := range e.Dynamic {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		v, _ := e.Get(name)
		io.WriteString(h, "\x00")
		io.WriteString(h, name)
		io.WriteString(h, "=")
		io.WriteString(h, valueFingerprint(v))
	}
	return fmt.Sprintf(`"h%016x"`, h.Sum64())
}

func valueFingerprint(v model.Value) string {
	if v.Type == model.TypeList {
		parts := make([]string, 0, len(v.List)+1)
		parts = append(parts, fmt.Sprintf("%d:%d", v.Type, v.Elem))
		for _, item := range v.List {
			parts = append(parts, valueFingerprint(item))
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprintf("%d|%s|%t|%d|%g|%d|%x",
		v.Type, v.Str, v.Bool, v.Int, v.Float, v.Time.UnixNano(), v.Bytes)
}

// aggregateETag combines per-entity tokens into one list-level token.
// XOR keeps it order-insensitive; the entity count guards against
// pair-wise cancellation.
func aggregateETag(entities []*model.Entity) string {
	var combined uint64
	for _, e := range entities {
		h := fnv.New64a()
		io.WriteString(h, e.ETag)
		combined ^= h.Sum64()
	}
	return fmt.Sprintf(`"a%d-%016x"`, len(entities), combined)
}

// --------------------------------------------------------------------------
// Precondition Headers
// --------------------------------------------------------------------------

// matchesTag reports whether a comma-separated If-Match/If-None-Match
// header value matches the given token. An empty header never matches.
func matchesTag(header, tag string) bool {
	if header == "" {
		return false
	}
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "*" || part == tag {
			return true
		}
	}
	return false
}

// ifMatchSatisfied checks an If-Match precondition against the current
// token. An absent header always passes.
func ifMatchSatisfied(header, tag string) bool {
	if header == "" {
		return true
	}
	return matchesTag(header, tag)
}

// batchPreconditionSatisfied checks an If-Match header against the set
// of entities a batch write is about to update. The header may carry a
// wildcard, the collection's aggregate token, or the individual
// current token of every updated entity. Entities must have their ETag
// field computed before the call.
func batchPreconditionSatisfied(header string, updated []*model.Entity) bool {
	if header == "" || len(updated) == 0 {
		return true
	}
	if matchesTag(header, aggregateETag(updated)) {
		return true
	}
	for _, e := range updated {
		if !matchesTag(header, e.ETag) {
			return false
		}
	}
	return true
}
