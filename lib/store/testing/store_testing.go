package testing

import (
	"fmt"
	"net/url"
	"sync"
	"testing"

	"github.com/ValentinKolb/dREST/lib/model"
	"github.com/ValentinKolb/dREST/lib/query"
	"github.com/ValentinKolb/dREST/lib/store"
)

// StoreFactory is a function that creates a new instance of an
// IEntityStore implementation
type StoreFactory func() store.IEntityStore

// RunEntityStoreTests runs a comprehensive test suite for an
// IEntityStore implementation.
func RunEntityStoreTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Put&Get", func(t *testing.T) {
			testPutGet(t, factory())
		})

		t.Run("KeyAssignment", func(t *testing.T) {
			testKeyAssignment(t, factory())
		})

		t.Run("Versions", func(t *testing.T) {
			testVersions(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("QueryFilter", func(t *testing.T) {
			testQueryFilter(t, factory())
		})

		t.Run("QueryOrdering", func(t *testing.T) {
			testQueryOrdering(t, factory())
		})

		t.Run("QueryPagination", func(t *testing.T) {
			testQueryPagination(t, factory())
		})

		t.Run("QueryCursor", func(t *testing.T) {
			testQueryCursor(t, factory())
		})

		t.Run("DeleteMatching", func(t *testing.T) {
			testDeleteMatching(t, factory())
		})

		t.Run("KindIsolation", func(t *testing.T) {
			testKindIsolation(t, factory())
		})

		t.Run("ConcurrentUsage", func(t *testing.T) {
			testConcurrentUsage(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the store supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, s store.IEntityStore, feature store.Feature) {
	if !s.SupportsFeature(feature) {
		t.Skip()
	}
}

// rawResolver passes field names through unchanged and coerces every
// operand to a string value
type rawResolver struct{}

func (rawResolver) ResolveQueryField(name string) (string, func(string) (model.Value, error), error) {
	return name, func(raw string) (model.Value, error) {
		return model.StringValue(raw), nil
	}, nil
}

func parseQuery(t testing.TB, params url.Values) *query.Query {
	t.Helper()
	q, err := query.Parse(params, query.DefaultPageSize, rawResolver{})
	if err != nil {
		t.Fatalf("Unexpected error parsing query: %v", err)
	}
	return q
}

func mustPut(t testing.TB, s store.IEntityStore, kind string, e *model.Entity) {
	t.Helper()
	if err := s.Put(kind, e); err != nil {
		t.Fatalf("Unexpected error during Put: %v", err)
	}
}

func widget(key, name string, size int64) *model.Entity {
	e := model.NewEntity("widget")
	e.Key = key
	e.Props["name"] = model.StringValue(name)
	e.Props["size"] = model.IntValue(size)
	return e
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testPutGet(t *testing.T, s store.IEntityStore) {
	requireFeature(t, s, store.FeaturePut)
	requireFeature(t, s, store.FeatureGet)

	mustPut(t, s, "widget", widget("w1", "bolt", 3))

	e, loaded, err := s.Get("widget", "w1")
	if err != nil {
		t.Errorf("Unexpected error during Get: %v", err)
	}
	if !loaded {
		t.Fatalf("Expected entity w1 to exist after Put")
	}
	if v, _ := e.Get("name"); v.Str != "bolt" {
		t.Errorf("Expected name bolt, got %s", v.Str)
	}

	_, loaded, err = s.Get("widget", "nonexistent")
	if err != nil {
		t.Errorf("Unexpected error during Get: %v", err)
	}
	if loaded {
		t.Errorf("Expected nonexistent key to return loaded=false")
	}

	// mutating a returned entity must not affect the stored one
	e.Props["name"] = model.StringValue("mutated")
	again, _, _ := s.Get("widget", "w1")
	if v, _ := again.Get("name"); v.Str != "bolt" {
		t.Errorf("Get should return a copy, not a reference to the stored entity")
	}

	mustPut(t, s, "widget", widget("w1", "nut", 4))
	e, _, _ = s.Get("widget", "w1")
	if v, _ := e.Get("name"); v.Str != "nut" {
		t.Errorf("Expected updated name nut, got %s", v.Str)
	}
}

func testKeyAssignment(t *testing.T, s store.IEntityStore) {
	requireFeature(t, s, store.FeaturePut)
	requireFeature(t, s, store.FeatureGet)

	e := widget("", "fresh", 1)
	mustPut(t, s, "widget", e)

	if e.Key == "" {
		t.Fatalf("Expected Put to assign a key to a new entity")
	}

	_, loaded, _ := s.Get("widget", e.Key)
	if !loaded {
		t.Errorf("Expected entity to be retrievable under its assigned key")
	}

	e2 := widget("", "fresh2", 2)
	mustPut(t, s, "widget", e2)
	if e2.Key == e.Key {
		t.Errorf("Expected distinct keys for distinct entities, both got %s", e.Key)
	}
}

func testVersions(t *testing.T, s store.IEntityStore) {
	requireFeature(t, s, store.FeaturePut|store.FeatureGet|store.FeatureVersions)

	e := widget("v1", "bolt", 3)
	mustPut(t, s, "widget", e)
	first := e.Version
	if first == 0 {
		t.Errorf("Expected version to be incremented on first Put")
	}

	mustPut(t, s, "widget", e)
	if e.Version <= first {
		t.Errorf("Expected version to increase on update, got %d after %d", e.Version, first)
	}

	stored, _, _ := s.Get("widget", "v1")
	if stored.Version != e.Version {
		t.Errorf("Expected stored version %d, got %d", e.Version, stored.Version)
	}
}

func testDelete(t *testing.T, s store.IEntityStore) {
	requireFeature(t, s, store.FeaturePut)
	requireFeature(t, s, store.FeatureDelete)

	mustPut(t, s, "widget", widget("d1", "bolt", 3))

	loaded, err := s.Delete("widget", "d1")
	if err != nil {
		t.Errorf("Unexpected error during Delete: %v", err)
	}
	if !loaded {
		t.Errorf("Expected Delete to report a removed entity")
	}

	_, loaded, _ = s.Get("widget", "d1")
	if loaded {
		t.Errorf("Expected entity d1 to not exist after Delete")
	}

	loaded, err = s.Delete("widget", "d1")
	if err != nil {
		t.Errorf("Unexpected error during repeated Delete: %v", err)
	}
	if loaded {
		t.Errorf("Expected repeated Delete to report nothing removed")
	}
}

func testQueryFilter(t *testing.T, s store.IEntityStore) {
	requireFeature(t, s, store.FeaturePut)
	requireFeature(t, s, store.FeatureQuery)

	mustPut(t, s, "widget", widget("f1", "bolt", 3))
	mustPut(t, s, "widget", widget("f2", "nut", 4))
	mustPut(t, s, "widget", widget("f3", "bolt", 5))

	page, err := s.Query("widget", parseQuery(t, url.Values{"feq_name": {"bolt"}}))
	if err != nil {
		t.Fatalf("Unexpected error during Query: %v", err)
	}
	if len(page.Entities) != 2 {
		t.Errorf("Expected 2 bolts, got %d", len(page.Entities))
	}
	for _, e := range page.Entities {
		if v, _ := e.Get("name"); v.Str != "bolt" {
			t.Errorf("Expected only bolts, got %s", v.Str)
		}
	}

	page, _ = s.Query("widget", parseQuery(t, url.Values{"fne_name": {"bolt"}}))
	if len(page.Entities) != 1 {
		t.Errorf("Expected 1 non-bolt, got %d", len(page.Entities))
	}

	page, _ = s.Query("widget", parseQuery(t, url.Values{"fin_name": {"nut,screw"}}))
	if len(page.Entities) != 1 {
		t.Errorf("Expected 1 match for IN filter, got %d", len(page.Entities))
	}

	page, _ = s.Query("widget", parseQuery(t, url.Values{"feq___key__": {"f2"}}))
	if len(page.Entities) != 1 || page.Entities[0].Key != "f2" {
		t.Errorf("Expected key filter to return exactly f2")
	}

	page, _ = s.Query("widget", parseQuery(t, url.Values{"feq_name": {"missing"}}))
	if len(page.Entities) != 0 {
		t.Errorf("Expected no matches, got %d", len(page.Entities))
	}
}

func testQueryOrdering(t *testing.T, s store.IEntityStore) {
	requireFeature(t, s, store.FeaturePut)
	requireFeature(t, s, store.FeatureQuery)

	mustPut(t, s, "widget", widget("o1", "charlie", 3))
	mustPut(t, s, "widget", widget("o2", "alpha", 1))
	mustPut(t, s, "widget", widget("o3", "bravo", 2))

	page, err := s.Query("widget", parseQuery(t, url.Values{"ordering": {"name"}}))
	if err != nil {
		t.Fatalf("Unexpected error during Query: %v", err)
	}
	names := make([]string, 0, len(page.Entities))
	for _, e := range page.Entities {
		v, _ := e.Get("name")
		names = append(names, v.Str)
	}
	expected := []string{"alpha", "bravo", "charlie"}
	for i, name := range expected {
		if i >= len(names) || names[i] != name {
			t.Fatalf("Expected ascending order %v, got %v", expected, names)
		}
	}

	page, _ = s.Query("widget", parseQuery(t, url.Values{"ordering": {"-name"}}))
	if len(page.Entities) != 3 {
		t.Fatalf("Expected 3 entities, got %d", len(page.Entities))
	}
	if v, _ := page.Entities[0].Get("name"); v.Str != "charlie" {
		t.Errorf("Expected descending order to start with charlie, got %s", v.Str)
	}
}

func testQueryPagination(t *testing.T, s store.IEntityStore) {
	requireFeature(t, s, store.FeaturePut)
	requireFeature(t, s, store.FeatureQuery)

	numEntities := 25
	for i := 0; i < numEntities; i++ {
		mustPut(t, s, "widget", widget(fmt.Sprintf("p%02d", i), fmt.Sprintf("widget-%02d", i), int64(i)))
	}

	seen := make(map[string]bool)
	pageSize := 10
	for offset := 0; offset < numEntities; offset += pageSize {
		q := parseQuery(t, url.Values{
			"offset":    {fmt.Sprintf("%d", offset)},
			"page_size": {fmt.Sprintf("%d", pageSize)},
		})
		page, err := s.Query("widget", q)
		if err != nil {
			t.Fatalf("Unexpected error during Query: %v", err)
		}
		for _, e := range page.Entities {
			if seen[e.Key] {
				t.Errorf("Key %s returned on more than one page", e.Key)
			}
			seen[e.Key] = true
		}
	}

	if len(seen) != numEntities {
		t.Errorf("Expected %d distinct entities across pages, got %d", numEntities, len(seen))
	}
}

func testQueryCursor(t *testing.T, s store.IEntityStore) {
	requireFeature(t, s, store.FeaturePut)
	requireFeature(t, s, store.FeatureQuery|store.FeatureCursors)

	numEntities := 15
	for i := 0; i < numEntities; i++ {
		mustPut(t, s, "widget", widget(fmt.Sprintf("c%02d", i), fmt.Sprintf("widget-%02d", i), int64(i)))
	}

	seen := make(map[string]bool)
	cursor := ""
	for {
		params := url.Values{"page_size": {"4"}}
		if cursor != "" {
			params.Set("offset", query.CursorPrefix+cursor)
		}
		page, err := s.Query("widget", parseQuery(t, params))
		if err != nil {
			t.Fatalf("Unexpected error during cursor Query: %v", err)
		}
		if len(page.Entities) == 0 {
			break
		}
		for _, e := range page.Entities {
			if seen[e.Key] {
				t.Errorf("Key %s returned twice during cursor walk", e.Key)
			}
			seen[e.Key] = true
		}
		cursor = page.Cursor
	}

	if len(seen) != numEntities {
		t.Errorf("Expected cursor walk to visit %d entities, got %d", numEntities, len(seen))
	}
}

func testDeleteMatching(t *testing.T, s store.IEntityStore) {
	requireFeature(t, s, store.FeaturePut)
	requireFeature(t, s, store.FeatureBulkDelete)

	mustPut(t, s, "widget", widget("m1", "bolt", 3))
	mustPut(t, s, "widget", widget("m2", "bolt", 4))
	mustPut(t, s, "widget", widget("m3", "nut", 5))

	count, err := s.DeleteMatching("widget", parseQuery(t, url.Values{"feq_name": {"bolt"}}))
	if err != nil {
		t.Fatalf("Unexpected error during DeleteMatching: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 removed entities, got %d", count)
	}

	_, loaded, _ := s.Get("widget", "m3")
	if !loaded {
		t.Errorf("Expected non-matching entity m3 to survive")
	}

	count, _ = s.DeleteMatching("widget", parseQuery(t, url.Values{"feq_name": {"bolt"}}))
	if count != 0 {
		t.Errorf("Expected repeated DeleteMatching to remove nothing, got %d", count)
	}
}

func testKindIsolation(t *testing.T, s store.IEntityStore) {
	requireFeature(t, s, store.FeaturePut)
	requireFeature(t, s, store.FeatureGet)

	mustPut(t, s, "widget", widget("shared", "bolt", 3))

	_, loaded, _ := s.Get("gadget", "shared")
	if loaded {
		t.Errorf("Expected key to be invisible under a different kind")
	}

	gadget := model.NewEntity("gadget")
	gadget.Key = "shared"
	gadget.Props["name"] = model.StringValue("gizmo")
	mustPut(t, s, "gadget", gadget)

	e, _, _ := s.Get("widget", "shared")
	if v, _ := e.Get("name"); v.Str != "bolt" {
		t.Errorf("Expected widget entity to be untouched by gadget Put, got name %s", v.Str)
	}
}

func testConcurrentUsage(t *testing.T, s store.IEntityStore) {
	requireFeature(t, s, store.FeaturePut)
	requireFeature(t, s, store.FeatureGet)
	requireFeature(t, s, store.FeatureDelete)

	numWorkers := 8
	opsPerWorker := 500

	var wg sync.WaitGroup
	wg.Add(numWorkers)

	for w := 0; w < numWorkers; w++ {
		go func(workerId int) {
			defer wg.Done()

			for i := 0; i < opsPerWorker; i++ {
				key := fmt.Sprintf("worker-%d-key-%d", workerId, i)

				switch i % 10 {
				case 9:
					s.Delete("widget", key)
				case 7, 8:
					s.Get("widget", key)
				default:
					s.Put("widget", widget(key, fmt.Sprintf("name-%d", i), int64(i)))
				}
			}
		}(w)
	}

	wg.Wait()

	// spot-check one surviving key per worker
	for w := 0; w < numWorkers; w++ {
		key := fmt.Sprintf("worker-%d-key-0", w)
		e, loaded, err := s.Get("widget", key)
		if err != nil {
			t.Errorf("Unexpected error during Get: %v", err)
			continue
		}
		if !loaded {
			t.Errorf("Key %s not found after concurrent usage", key)
			continue
		}
		if v, _ := e.Get("name"); v.Str != "name-0" {
			t.Errorf("Value mismatch for key %s: got %s", key, v.Str)
		}
	}
}
