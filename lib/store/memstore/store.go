package memstore

import (
	"sort"
	"strconv"

	"github.com/ValentinKolb/dREST/lib/handler"
	"github.com/ValentinKolb/dREST/lib/model"
	"github.com/ValentinKolb/dREST/lib/query"
	"github.com/ValentinKolb/dREST/lib/store"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// In-Memory Entity Store
// --------------------------------------------------------------------------

type storeImpl struct {
	kinds *xsync.MapOf[string, *xsync.MapOf[string, *model.Entity]]
}

// NewMemoryStore creates an entity store backed by in-process maps.
// It supports every store feature, including cursors and per-entity
// version counters, and is safe for concurrent use.
func NewMemoryStore() store.IEntityStore {
	return &storeImpl{
		kinds: xsync.NewMapOf[string, *xsync.MapOf[string, *model.Entity]](),
	}
}

func (s *storeImpl) kind(kind string) *xsync.MapOf[string, *model.Entity] {
	entities, _ := s.kinds.LoadOrCompute(kind, func() *xsync.MapOf[string, *model.Entity] {
		return xsync.NewMapOf[string, *model.Entity]()
	})
	return entities
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Get(kind, key string) (*model.Entity, bool, error) {
	e, ok := s.kind(kind).Load(key)
	if !ok {
		return nil, false, nil
	}
	return e.Clone(), true, nil
}

func (s *storeImpl) Put(kind string, e *model.Entity) error {
	if e.Key == "" {
		e.Key = uuid.NewString()
	}
	e.Kind = kind
	e.Version++
	s.kind(kind).Store(e.Key, e.Clone())
	return nil
}

func (s *storeImpl) Query(kind string, q *query.Query) (*store.Page, error) {
	matching := s.matching(kind, q)

	start := q.Offset
	if q.Cursor != "" {
		parsed, err := strconv.Atoi(q.Cursor)
		if err != nil || parsed < 0 {
			return nil, store.NewError(store.RetCInvalidQuery, "invalid cursor token")
		}
		start = parsed
	}
	if start > len(matching) {
		start = len(matching)
	}
	end := start + q.PageSize
	if end > len(matching) {
		end = len(matching)
	}

	page := &store.Page{Cursor: strconv.Itoa(end)}
	for _, e := range matching[start:end] {
		page.Entities = append(page.Entities, e.Clone())
	}
	return page, nil
}

func (s *storeImpl) Delete(kind, key string) (bool, error) {
	_, ok := s.kind(kind).LoadAndDelete(key)
	return ok, nil
}

func (s *storeImpl) DeleteMatching(kind string, q *query.Query) (int, error) {
	entities := s.kind(kind)
	count := 0
	for _, e := range s.matching(kind, q) {
		if _, ok := entities.LoadAndDelete(e.Key); ok {
			count++
		}
	}
	return count, nil
}

func (s *storeImpl) SupportsFeature(feature store.Feature) bool {
	supported := store.FeatureGet | store.FeaturePut | store.FeatureQuery |
		store.FeatureDelete | store.FeatureBulkDelete |
		store.FeatureCursors | store.FeatureVersions
	return supported&feature == feature
}

// --------------------------------------------------------------------------
// Query Execution
// --------------------------------------------------------------------------

// matching snapshots, filters and sorts the entities of a kind. The
// result order is deterministic (sort key, then primary key) so that
// cursor tokens stay valid across calls.
func (s *storeImpl) matching(kind string, q *query.Query) []*model.Entity {
	var matching []*model.Entity
	s.kind(kind).Range(func(_ string, e *model.Entity) bool {
		if matchesAll(e, q.Terms) {
			matching = append(matching, e)
		}
		return true
	})

	sort.SliceStable(matching, func(i, j int) bool {
		if q.Order != "" {
			vi, iOk := fieldValue(matching[i], q.Order)
			vj, jOk := fieldValue(matching[j], q.Order)
			if cmp, comparable := compareForSort(vi, iOk, vj, jOk); comparable && cmp != 0 {
				if q.Descending {
					return cmp > 0
				}
				return cmp < 0
			}
		}
		return matching[i].Key < matching[j].Key
	})
	return matching
}

func matchesAll(e *model.Entity, terms []query.Term) bool {
	for _, t := range terms {
		if !matchesTerm(e, t) {
			return false
		}
	}
	return true
}

func matchesTerm(e *model.Entity, t query.Term) bool {
	v, ok := fieldValue(e, t.Field)
	if !ok {
		return false
	}

	if t.Op == query.OpIn {
		// element-wise containment
		for _, candidate := range t.Values {
			if matchesValue(v, query.OpEq, candidate) {
				return true
			}
		}
		return false
	}
	if len(t.Values) == 0 {
		return false
	}
	return matchesValue(v, t.Op, t.Values[0])
}

// matchesValue applies a comparison; a list-valued property matches
// when any of its elements does.
func matchesValue(v model.Value, op query.Op, operand model.Value) bool {
	if v.Type == model.TypeList {
		for _, item := range v.List {
			if matchesValue(item, op, operand) {
				return true
			}
		}
		return false
	}
	cmp, ok := compareValues(v, operand)
	if !ok {
		return false
	}
	switch op {
	case query.OpEq:
		return cmp == 0
	case query.OpNe:
		return cmp != 0
	case query.OpLt:
		return cmp < 0
	case query.OpGt:
		return cmp > 0
	case query.OpLe:
		return cmp <= 0
	case query.OpGe:
		return cmp >= 0
	default:
		return false
	}
}

func fieldValue(e *model.Entity, field string) (model.Value, bool) {
	if field == handler.KeyQueryField {
		if e.Key == "" {
			return model.Value{}, false
		}
		return model.KeyValue(e.Key), true
	}
	return e.Get(field)
}

// compareValues orders two scalar values of compatible types. Numeric
// types compare cross-type; anything else must match exactly.
func compareValues(a, b model.Value) (int, bool) {
	if numA, okA := numeric(a); okA {
		numB, okB := numeric(b)
		if !okB {
			return 0, false
		}
		switch {
		case numA < numB:
			return -1, true
		case numA > numB:
			return 1, true
		default:
			return 0, true
		}
	}

	switch a.Type {
	case model.TypeString, model.TypeText, model.TypeReference, model.TypeBlobReference, model.TypeKey:
		switch b.Type {
		case model.TypeString, model.TypeText, model.TypeReference, model.TypeBlobReference, model.TypeKey:
			return compareOrdered(a.Str, b.Str), true
		}
	case model.TypeBoolean:
		if b.Type == model.TypeBoolean {
			return compareOrdered(boolInt(a.Bool), boolInt(b.Bool)), true
		}
	case model.TypeDateTime, model.TypeDate, model.TypeTime:
		switch b.Type {
		case model.TypeDateTime, model.TypeDate, model.TypeTime:
			switch {
			case a.Time.Before(b.Time):
				return -1, true
			case a.Time.After(b.Time):
				return 1, true
			default:
				return 0, true
			}
		}
	case model.TypeByteString, model.TypeBlob:
		switch b.Type {
		case model.TypeByteString, model.TypeBlob:
			return compareOrdered(string(a.Bytes), string(b.Bytes)), true
		}
	}
	return 0, false
}

func compareForSort(a model.Value, aOk bool, b model.Value, bOk bool) (int, bool) {
	// entities without the sort property order first
	if !aOk || !bOk {
		return compareOrdered(boolInt(aOk), boolInt(bOk)), true
	}
	return compareValues(a, b)
}

func numeric(v model.Value) (float64, bool) {
	switch v.Type {
	case model.TypeInteger, model.TypeRating:
		return float64(v.Int), true
	case model.TypeFloat:
		return v.Float, true
	}
	return 0, false
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func compareOrdered[T string | int](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
