package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/dREST/lib/blob"
	"github.com/ValentinKolb/dREST/lib/cache"
	"github.com/ValentinKolb/dREST/lib/document"
	"github.com/ValentinKolb/dREST/lib/model"
	"github.com/ValentinKolb/dREST/lib/store"
	"github.com/ValentinKolb/dREST/lib/store/memstore"
	"github.com/ValentinKolb/dREST/rest/common"
	"github.com/ValentinKolb/dREST/rest/transport"
	"github.com/golang-jwt/jwt"
)

// --------------------------------------------------------------------------
// Test Fixtures
// --------------------------------------------------------------------------

func testRegistry(t *testing.T) *model.Registry {
	t.Helper()
	registry := model.NewRegistry()

	widget := &model.TypeDef{
		Name: "widget",
		Doc:  "A stocked widget.",
		Props: []model.PropertyDef{
			{Name: "name", Type: model.TypeString, Indexed: true, Required: true},
			{Name: "size", Type: model.TypeInteger, Indexed: true},
			{Name: "active", Type: model.TypeBoolean},
			{Name: "tags", Type: model.TypeList, Elem: model.TypeString, Indexed: true},
			{Name: "manual", Type: model.TypeBlobReference},
		},
	}
	if err := registry.Register("widget", widget, model.OpAll); err != nil {
		t.Fatalf("Unexpected error registering widget: %v", err)
	}

	readonly := &model.TypeDef{
		Name:  "gauge",
		Props: []model.PropertyDef{{Name: "value", Type: model.TypeFloat}},
	}
	if err := registry.Register("gauge", readonly, model.OpGet|model.OpQuery); err != nil {
		t.Fatalf("Unexpected error registering gauge: %v", err)
	}

	appendOnly := &model.TypeDef{
		Name:  "counter",
		Props: []model.PropertyDef{{Name: "total", Type: model.TypeInteger}},
	}
	if err := registry.Register("counter", appendOnly, model.OpCreate|model.OpGet); err != nil {
		t.Fatalf("Unexpected error registering counter: %v", err)
	}

	return registry
}

type testEnv struct {
	dispatcher *Dispatcher
	store      store.IEntityStore
	blobs      blob.IBlobStore
}

func newTestEnv(t *testing.T, mutate func(*common.ServerConfig)) *testEnv {
	t.Helper()

	config := common.DefaultConfig()
	config.BulkDeleteEnabled = true
	if mutate != nil {
		mutate(&config)
	}

	entityStore := memstore.NewMemoryStore()
	blobStore := blob.NewMemoryStore()

	var respCache cache.IResponseCache
	if config.CacheEnabled {
		respCache = cache.NewLRUCache(config.CacheMaxEntries, time.Duration(config.CacheTTLSeconds)*time.Second)
	}

	var authn IAuthenticator
	if config.AuthSecret != "" {
		authn = NewJWTAuthenticator(config.AuthSecret)
	}

	d, err := NewDispatcher(config, testRegistry(t), entityStore, blobStore, respCache, authn, nil)
	if err != nil {
		t.Fatalf("Unexpected error building dispatcher: %v", err)
	}
	return &testEnv{dispatcher: d, store: entityStore, blobs: blobStore}
}

func request(method, path string, body []byte) *transport.Request {
	rawURL := path
	query := url.Values{}
	if idx := strings.IndexByte(path, '?'); idx >= 0 {
		query, _ = url.ParseQuery(path[idx+1:])
		path = path[:idx]
	}
	return &transport.Request{
		Method: method,
		Path:   path,
		RawURL: rawURL,
		Query:  query,
		Header: http.Header{},
		Body:   body,
	}
}

func xmlRequest(method, path, body string) *transport.Request {
	req := request(method, path, []byte(body))
	req.Header.Set("Content-Type", document.ContentTypeXML)
	req.Header.Set("Accept", document.ContentTypeXML)
	return req
}

func do(t *testing.T, d *Dispatcher, req *transport.Request, expectStatus int) *transport.Response {
	t.Helper()
	resp := d.Handle(req)
	if resp.Status != expectStatus {
		t.Fatalf("%s %s: expected status %d, got %d (%s)",
			req.Method, req.Path, expectStatus, resp.Status, resp.Body)
	}
	return resp
}

func createWidget(t *testing.T, env *testEnv, body string) string {
	t.Helper()
	resp := do(t, env.dispatcher, xmlRequest(http.MethodPost, "/widget", body), http.StatusOK)
	key := strings.TrimSpace(string(resp.Body))
	if key == "" {
		t.Fatalf("Expected a created key in the response body")
	}
	return key
}

// --------------------------------------------------------------------------
// CRUD
// --------------------------------------------------------------------------

func TestCreateAndGet(t *testing.T) {
	env := newTestEnv(t, nil)

	key := createWidget(t, env,
		`<widget><name>bolt</name><size>3</size><tags><item>steel</item><item>m3</item></tags></widget>`)

	resp := do(t, env.dispatcher, xmlRequest(http.MethodGet, "/widget/"+key, ""), http.StatusOK)
	if resp.ContentType != document.ContentTypeXML {
		t.Errorf("Expected XML response, got %s", resp.ContentType)
	}

	body := string(resp.Body)
	for _, fragment := range []string{
		"<key>" + key + "</key>",
		"<name>bolt</name>",
		"<size>3</size>",
		"<item>steel</item>",
	} {
		if !strings.Contains(body, fragment) {
			t.Errorf("Expected response to contain %s, got %s", fragment, body)
		}
	}
}

func TestGetUnknownEntity(t *testing.T) {
	env := newTestEnv(t, nil)
	do(t, env.dispatcher, xmlRequest(http.MethodGet, "/widget/nope", ""), http.StatusNotFound)
	do(t, env.dispatcher, xmlRequest(http.MethodGet, "/gadget/nope", ""), http.StatusNotFound)
}

func TestCreateJSONFullShape(t *testing.T) {
	env := newTestEnv(t, nil)

	req := request(http.MethodPost, "/widget?type=full", []byte(`{"widget":{"name":"nut","size":4}}`))
	req.Header.Set("Content-Type", document.ContentTypeJSON)
	req.Header.Set("Accept", document.ContentTypeJSON)

	resp := do(t, env.dispatcher, req, http.StatusOK)

	var decoded map[string]map[string]any
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		t.Fatalf("Unexpected error decoding response: %v", err)
	}
	widget, ok := decoded["widget"]
	if !ok {
		t.Fatalf("Expected widget root key, got %s", resp.Body)
	}
	if widget["name"] != "nut" {
		t.Errorf("Expected name nut, got %v", widget["name"])
	}
	// integers stay JSON numbers
	if size, ok := widget["size"].(float64); !ok || size != 4 {
		t.Errorf("Expected numeric size 4, got %v", widget["size"])
	}
	if widget["key"] == "" {
		t.Errorf("Expected assigned key in full response")
	}
}

func TestBatchCreate(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := do(t, env.dispatcher, xmlRequest(http.MethodPost, "/widget",
		`<list><widget><name>a</name></widget><widget><name>b</name></widget></list>`), http.StatusOK)

	keys := strings.Split(strings.TrimSpace(string(resp.Body)), "\n")
	if len(keys) != 2 {
		t.Fatalf("Expected 2 created keys, got %q", resp.Body)
	}
	for _, key := range keys {
		if _, loaded, _ := env.store.Get("widget", key); !loaded {
			t.Errorf("Expected created entity %s to exist", key)
		}
	}
}

func TestUpdateAndReplace(t *testing.T) {
	env := newTestEnv(t, nil)
	key := createWidget(t, env, `<widget><name>bolt</name><size>3</size></widget>`)

	// partial update keeps untouched properties
	do(t, env.dispatcher, xmlRequest(http.MethodPost, "/widget/"+key,
		`<widget><name>nut</name></widget>`), http.StatusOK)
	e, _, _ := env.store.Get("widget", key)
	if v, _ := e.Get("size"); v.Int != 3 {
		t.Errorf("Expected partial update to keep size, got %+v", v)
	}

	// replace drops properties missing from the body
	do(t, env.dispatcher, xmlRequest(http.MethodPut, "/widget/"+key,
		`<widget><name>washer</name></widget>`), http.StatusOK)
	e, _, _ = env.store.Get("widget", key)
	if _, ok := e.Get("size"); ok {
		t.Errorf("Expected replace to drop size")
	}
	if v, _ := e.Get("name"); v.Str != "washer" {
		t.Errorf("Expected replaced name, got %s", v.Str)
	}
}

func TestReplaceCreatesMissingEntity(t *testing.T) {
	env := newTestEnv(t, nil)

	do(t, env.dispatcher, xmlRequest(http.MethodPut, "/widget/custom-key",
		`<widget><name>bolt</name></widget>`), http.StatusOK)

	e, loaded, _ := env.store.Get("widget", "custom-key")
	if !loaded {
		t.Fatalf("Expected PUT to create the entity under the path key")
	}
	if v, _ := e.Get("name"); v.Str != "bolt" {
		t.Errorf("Expected created entity to carry the body, got %s", v.Str)
	}
}

func TestKeyMismatchRejected(t *testing.T) {
	env := newTestEnv(t, nil)
	key := createWidget(t, env, `<widget><name>bolt</name></widget>`)

	do(t, env.dispatcher, xmlRequest(http.MethodPost, "/widget/"+key,
		`<widget><key>other</key><name>nut</name></widget>`), http.StatusBadRequest)
}

func TestDeleteIdempotent(t *testing.T) {
	env := newTestEnv(t, nil)
	key := createWidget(t, env, `<widget><name>bolt</name></widget>`)

	do(t, env.dispatcher, xmlRequest(http.MethodDelete, "/widget/"+key, ""), http.StatusNoContent)
	if _, loaded, _ := env.store.Get("widget", key); loaded {
		t.Errorf("Expected entity to be gone after delete")
	}
	do(t, env.dispatcher, xmlRequest(http.MethodDelete, "/widget/"+key, ""), http.StatusNoContent)
}

func TestMethodOverride(t *testing.T) {
	env := newTestEnv(t, nil)
	key := createWidget(t, env, `<widget><name>bolt</name></widget>`)

	req := xmlRequest(http.MethodPost, "/widget/"+key, "")
	req.Header.Set("X-HTTP-Method-Override", "DELETE")
	do(t, env.dispatcher, req, http.StatusNoContent)
}

func TestOperationGating(t *testing.T) {
	env := newTestEnv(t, nil)

	// gauge only allows Get and Query
	do(t, env.dispatcher, xmlRequest(http.MethodPost, "/gauge",
		`<gauge><value>1.5</value></gauge>`), http.StatusMethodNotAllowed)
	do(t, env.dispatcher, xmlRequest(http.MethodDelete, "/gauge/x", ""), http.StatusMethodNotAllowed)
	do(t, env.dispatcher, xmlRequest(http.MethodGet, "/gauge", ""), http.StatusOK)
}

// --------------------------------------------------------------------------
// Queries
// --------------------------------------------------------------------------

func seedWidgets(t *testing.T, env *testEnv, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		createWidget(t, env, fmt.Sprintf(
			`<widget><name>widget-%02d</name><size>%d</size></widget>`, i, i))
	}
}

func TestQueryFilters(t *testing.T) {
	env := newTestEnv(t, nil)
	seedWidgets(t, env, 5)

	resp := do(t, env.dispatcher, xmlRequest(http.MethodGet, "/widget?feq_name=widget-03", ""), http.StatusOK)
	if count := strings.Count(string(resp.Body), "<widget>"); count != 1 {
		t.Errorf("Expected 1 match, got %d: %s", count, resp.Body)
	}

	resp = do(t, env.dispatcher, xmlRequest(http.MethodGet, "/widget?fge_size=3", ""), http.StatusOK)
	if count := strings.Count(string(resp.Body), "<widget>"); count != 2 {
		t.Errorf("Expected 2 matches for fge_size=3, got %d", count)
	}

	resp = do(t, env.dispatcher, xmlRequest(http.MethodGet, "/widget?fin_name=widget-00,widget-04", ""), http.StatusOK)
	if count := strings.Count(string(resp.Body), "<widget>"); count != 2 {
		t.Errorf("Expected 2 matches for IN filter, got %d", count)
	}

	// filters on unqueryable or unknown properties are rejected
	do(t, env.dispatcher, xmlRequest(http.MethodGet, "/widget?feq_bogus=1", ""), http.StatusBadRequest)
}

func TestQueryPaginationToken(t *testing.T) {
	env := newTestEnv(t, nil)
	seedWidgets(t, env, 7)

	resp := do(t, env.dispatcher, xmlRequest(http.MethodGet, "/widget?page_size=5&ordering=name", ""), http.StatusOK)
	body := string(resp.Body)
	if count := strings.Count(body, "<widget>"); count != 5 {
		t.Fatalf("Expected 5 widgets on first page, got %d", count)
	}

	idx := strings.Index(body, `offset="`)
	if idx < 0 {
		t.Fatalf("Expected offset attribute on list, got %s", body)
	}
	token := body[idx+len(`offset="`):]
	token = token[:strings.IndexByte(token, '"')]
	if token == "" {
		t.Fatalf("Expected non-empty continuation token")
	}

	resp = do(t, env.dispatcher, xmlRequest(http.MethodGet,
		"/widget?page_size=5&ordering=name&offset="+url.QueryEscape(token), ""), http.StatusOK)
	if count := strings.Count(string(resp.Body), "<widget>"); count != 2 {
		t.Errorf("Expected 2 widgets on final page, got %d", count)
	}
}

func TestBulkDelete(t *testing.T) {
	env := newTestEnv(t, nil)
	seedWidgets(t, env, 4)

	resp := do(t, env.dispatcher, xmlRequest(http.MethodDelete, "/widget?fge_size=2", ""), http.StatusOK)
	if strings.TrimSpace(string(resp.Body)) != "2" {
		t.Errorf("Expected 2 deleted, got %s", resp.Body)
	}
}

func TestBulkDeleteDisabled(t *testing.T) {
	env := newTestEnv(t, func(c *common.ServerConfig) { c.BulkDeleteEnabled = false })
	do(t, env.dispatcher, xmlRequest(http.MethodDelete, "/widget", ""), http.StatusNotFound)
}

// --------------------------------------------------------------------------
// Property Paths
// --------------------------------------------------------------------------

func TestPropertyGetAndWrite(t *testing.T) {
	env := newTestEnv(t, nil)
	key := createWidget(t, env, `<widget><name>bolt</name><size>3</size></widget>`)

	resp := do(t, env.dispatcher, xmlRequest(http.MethodGet, "/widget/"+key+"/size", ""), http.StatusOK)
	if strings.TrimSpace(string(resp.Body)) != "3" {
		t.Errorf("Expected raw property value 3, got %s", resp.Body)
	}

	do(t, env.dispatcher, xmlRequest(http.MethodPost, "/widget/"+key+"/size", "7"), http.StatusOK)
	e, _, _ := env.store.Get("widget", key)
	if v, _ := e.Get("size"); v.Int != 7 {
		t.Errorf("Expected property write to persist, got %+v", v)
	}

	do(t, env.dispatcher, xmlRequest(http.MethodGet, "/widget/"+key+"/active", ""), http.StatusNotFound)
	do(t, env.dispatcher, xmlRequest(http.MethodGet, "/widget/"+key+"/bogus", ""), http.StatusNotFound)
}

// --------------------------------------------------------------------------
// ETags
// --------------------------------------------------------------------------

func TestETagProtocol(t *testing.T) {
	env := newTestEnv(t, nil)
	key := createWidget(t, env, `<widget><name>bolt</name></widget>`)

	resp := do(t, env.dispatcher, xmlRequest(http.MethodGet, "/widget/"+key, ""), http.StatusOK)
	tag := resp.Header.Get("ETag")
	if tag == "" {
		t.Fatalf("Expected ETag header on GET")
	}

	// conditional GET
	req := xmlRequest(http.MethodGet, "/widget/"+key, "")
	req.Header.Set("If-None-Match", tag)
	do(t, env.dispatcher, req, http.StatusNotModified)

	// conditional update with the current tag succeeds
	req = xmlRequest(http.MethodPost, "/widget/"+key, `<widget><name>nut</name></widget>`)
	req.Header.Set("If-Match", tag)
	do(t, env.dispatcher, req, http.StatusOK)

	// the old tag is now stale
	req = xmlRequest(http.MethodPost, "/widget/"+key, `<widget><name>washer</name></widget>`)
	req.Header.Set("If-Match", tag)
	do(t, env.dispatcher, req, http.StatusPreconditionFailed)

	// wildcard passes regardless
	req = xmlRequest(http.MethodPost, "/widget/"+key, `<widget><name>washer</name></widget>`)
	req.Header.Set("If-Match", "*")
	do(t, env.dispatcher, req, http.StatusOK)
}

func TestBatchUpdatePrecondition(t *testing.T) {
	env := newTestEnv(t, nil)
	k1 := createWidget(t, env, `<widget><name>bolt</name></widget>`)
	k2 := createWidget(t, env, `<widget><name>nut</name></widget>`)

	tag := func(key string) string {
		t.Helper()
		resp := do(t, env.dispatcher, xmlRequest(http.MethodGet, "/widget/"+key, ""), http.StatusOK)
		return resp.Header.Get("ETag")
	}
	batch := func(n1, n2 string) string {
		return `<list>` +
			`<widget><key>` + k1 + `</key><name>` + n1 + `</name></widget>` +
			`<widget><key>` + k2 + `</key><name>` + n2 + `</name></widget>` +
			`</list>`
	}
	tag1, tag2 := tag(k1), tag(k2)

	// the full set of current tags passes
	req := xmlRequest(http.MethodPost, "/widget", batch("bolt2", "nut2"))
	req.Header.Set("If-Match", tag1+", "+tag2)
	do(t, env.dispatcher, req, http.StatusOK)

	// both tags are now stale; nothing of the batch may persist, not
	// even the keyless create it carries
	req = xmlRequest(http.MethodPost, "/widget",
		`<list><widget><key>`+k1+`</key><name>bolt3</name></widget><widget><name>fresh</name></widget></list>`)
	req.Header.Set("If-Match", tag1+", "+tag2)
	do(t, env.dispatcher, req, http.StatusPreconditionFailed)
	e, _, _ := env.store.Get("widget", k1)
	if v, _ := e.Get("name"); v.Str != "bolt2" {
		t.Errorf("Expected rejected batch to leave the entity untouched, got %s", v.Str)
	}
	resp := do(t, env.dispatcher, xmlRequest(http.MethodGet, "/widget?feq_name=fresh", ""), http.StatusOK)
	if strings.Contains(string(resp.Body), "<widget>") {
		t.Errorf("Expected no entity from the rejected batch, got %s", resp.Body)
	}

	// the aggregate token over the updated entities passes too
	e1, _, _ := env.store.Get("widget", k1)
	e2, _, _ := env.store.Get("widget", k2)
	e1.ETag = env.dispatcher.entityETag(e1)
	e2.ETag = env.dispatcher.entityETag(e2)
	req = xmlRequest(http.MethodPost, "/widget", batch("bolt4", "nut4"))
	req.Header.Set("If-Match", aggregateETag([]*model.Entity{e1, e2}))
	do(t, env.dispatcher, req, http.StatusOK)

	// wildcard passes regardless
	req = xmlRequest(http.MethodPost, "/widget", batch("bolt5", "nut5"))
	req.Header.Set("If-Match", "*")
	do(t, env.dispatcher, req, http.StatusOK)
}

func TestBatchUpdateGating(t *testing.T) {
	env := newTestEnv(t, nil)

	// counter allows creates but not updates
	resp := do(t, env.dispatcher, xmlRequest(http.MethodPost, "/counter",
		`<counter><total>1</total></counter>`), http.StatusOK)
	key := strings.TrimSpace(string(resp.Body))

	// a keyed batch item is an update and stays behind the update gate
	do(t, env.dispatcher, xmlRequest(http.MethodPost, "/counter",
		`<list><counter><key>`+key+`</key><total>5</total></counter></list>`), http.StatusMethodNotAllowed)
	e, _, _ := env.store.Get("counter", key)
	if v, _ := e.Get("total"); v.Int != 1 {
		t.Errorf("Expected gated batch update to not persist, got %+v", v)
	}
}

// --------------------------------------------------------------------------
// Metadata
// --------------------------------------------------------------------------

func TestMetadataListing(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := do(t, env.dispatcher, xmlRequest(http.MethodGet, "/metadata", ""), http.StatusOK)
	body := string(resp.Body)
	if !strings.Contains(body, "<type>widget</type>") || !strings.Contains(body, "<type>gauge</type>") {
		t.Errorf("Expected both registered types in listing, got %s", body)
	}

	resp = do(t, env.dispatcher, xmlRequest(http.MethodGet, "/metadata/widget", ""), http.StatusOK)
	body = string(resp.Body)
	for _, fragment := range []string{
		"<xs:schema", `name="widget"`, "A stocked widget.", `name="key"`, `name="name"`,
	} {
		if !strings.Contains(body, fragment) {
			t.Errorf("Expected schema to contain %s", fragment)
		}
	}

	do(t, env.dispatcher, xmlRequest(http.MethodGet, "/metadata/bogus", ""), http.StatusNotFound)
	do(t, env.dispatcher, xmlRequest(http.MethodDelete, "/metadata", ""), http.StatusMethodNotAllowed)
}

// --------------------------------------------------------------------------
// Response Cache
// --------------------------------------------------------------------------

func TestResponseCache(t *testing.T) {
	env := newTestEnv(t, func(c *common.ServerConfig) { c.CacheEnabled = true })
	key := createWidget(t, env, `<widget><name>bolt</name></widget>`)

	first := do(t, env.dispatcher, xmlRequest(http.MethodGet, "/widget/"+key, ""), http.StatusOK)

	// mutate behind the cache's back: the cached body keeps serving
	e, _, _ := env.store.Get("widget", key)
	e.Props["name"] = model.StringValue("changed")
	env.store.Put("widget", e)

	second := do(t, env.dispatcher, xmlRequest(http.MethodGet, "/widget/"+key, ""), http.StatusOK)
	if !bytes.Equal(first.Body, second.Body) {
		t.Errorf("Expected cached response body to be served")
	}

	// a different Accept preference bypasses the cached entry
	req := request(http.MethodGet, "/widget/"+key, nil)
	req.Header.Set("Accept", document.ContentTypeJSON)
	third := do(t, env.dispatcher, req, http.StatusOK)
	if !strings.Contains(string(third.Body), "changed") {
		t.Errorf("Expected fresh response for different Accept header")
	}
}

// --------------------------------------------------------------------------
// Attachments
// --------------------------------------------------------------------------

func TestUploadFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	key := createWidget(t, env, `<widget><name>bolt</name></widget>`)

	// phase one: posting the content sub-path returns the upload form
	// carrying the completion URL
	resp := do(t, env.dispatcher, xmlRequest(http.MethodPost, "/widget/"+key+"/manual/content", ""), http.StatusOK)
	body := string(resp.Body)
	idx := strings.Index(body, UploadPathSegment+"/")
	if idx < 0 {
		t.Fatalf("Expected upload action in form, got %s", body)
	}
	token := body[idx+len(UploadPathSegment)+1:]
	token = token[:strings.IndexByte(token, '"')]

	// phase two: post the file to the completion URL
	var form bytes.Buffer
	writer := multipart.NewWriter(&form)
	part, _ := writer.CreateFormFile("file", "manual.pdf")
	part.Write([]byte("%PDF-1.4 manual"))
	writer.Close()

	req := request(http.MethodPost, "/"+UploadPathSegment+"/"+token, form.Bytes())
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp = do(t, env.dispatcher, req, http.StatusFound)
	if loc := resp.Header.Get("Location"); !strings.Contains(loc, "/widget/"+key+"/manual") {
		t.Errorf("Expected redirect to the property path, got %s", loc)
	}

	// the property now holds the blob key and serves content
	resp = do(t, env.dispatcher, xmlRequest(http.MethodGet, "/widget/"+key+"/manual/content", ""), http.StatusOK)
	if string(resp.Body) != "%PDF-1.4 manual" {
		t.Errorf("Expected attachment content, got %q", resp.Body)
	}
	if resp.ContentType != "application/octet-stream" && !strings.Contains(resp.ContentType, "pdf") {
		t.Errorf("Unexpected attachment content type %s", resp.ContentType)
	}

	// range requests slice the content
	rangeReq := xmlRequest(http.MethodGet, "/widget/"+key+"/manual/content", "")
	rangeReq.Header.Set("Range", "bytes=0-3")
	resp = do(t, env.dispatcher, rangeReq, http.StatusPartialContent)
	if string(resp.Body) != "%PDF" {
		t.Errorf("Expected first 4 bytes, got %q", resp.Body)
	}

	// a replayed token is rejected
	req = request(http.MethodPost, "/"+UploadPathSegment+"/"+token, form.Bytes())
	req.Header.Set("Content-Type", writer.FormDataContentType())
	do(t, env.dispatcher, req, http.StatusBadRequest)
}

func TestBlobTokenRawWrite(t *testing.T) {
	env := newTestEnv(t, nil)
	key := createWidget(t, env, `<widget><name>bolt</name></widget>`)

	// mint a blob out of band, then write its token through the raw
	// single-property path
	uploadToken, err := env.blobs.CreateUpload("widget/" + key + "/manual")
	if err != nil {
		t.Fatalf("Unexpected error creating upload: %v", err)
	}
	blobKey, _, err := env.blobs.CompleteUpload(uploadToken, []byte("raw bytes"), "text/plain", "notes.txt")
	if err != nil {
		t.Fatalf("Unexpected error completing upload: %v", err)
	}

	do(t, env.dispatcher, xmlRequest(http.MethodPost, "/widget/"+key+"/manual", blobKey), http.StatusOK)

	resp := do(t, env.dispatcher, xmlRequest(http.MethodGet, "/widget/"+key+"/manual/content", ""), http.StatusOK)
	if string(resp.Body) != "raw bytes" {
		t.Errorf("Expected attachment content, got %q", resp.Body)
	}

	// the upload form only lives on content sub-paths of blob references
	do(t, env.dispatcher, xmlRequest(http.MethodPost, "/widget/"+key+"/size/content", ""), http.StatusBadRequest)
}

func TestBlobInfoExpansion(t *testing.T) {
	env := newTestEnv(t, nil)
	key := createWidget(t, env, `<widget><name>bolt</name></widget>`)

	uploadToken, _ := env.blobs.CreateUpload("widget/" + key + "/manual")
	blobKey, _, _ := env.blobs.CompleteUpload(uploadToken, []byte("data"), "application/pdf", "manual.pdf")
	e, _, _ := env.store.Get("widget", key)
	e.Props["manual"] = model.BlobRefValue(blobKey)
	env.store.Put("widget", e)

	resp := do(t, env.dispatcher, xmlRequest(http.MethodGet, "/widget/"+key+"?blobinfo=info", ""), http.StatusOK)
	body := string(resp.Body)
	if !strings.Contains(body, `content_type="application/pdf"`) || !strings.Contains(body, `filename="manual.pdf"`) {
		t.Errorf("Expected blob info attributes, got %s", body)
	}
}

// --------------------------------------------------------------------------
// Namespaced Types
// --------------------------------------------------------------------------

func namespacedDispatcher(t *testing.T, mutate func(*common.ServerConfig)) *Dispatcher {
	t.Helper()

	registry := model.NewRegistry()
	gizmo := &model.TypeDef{
		Name:  "acme.gizmo",
		Props: []model.PropertyDef{{Name: "label", Type: model.TypeString}},
	}
	if err := registry.Register("acme.gizmo", gizmo, model.OpAll); err != nil {
		t.Fatalf("Unexpected error registering acme.gizmo: %v", err)
	}

	config := common.DefaultConfig()
	if mutate != nil {
		mutate(&config)
	}
	d, err := NewDispatcher(config, registry, memstore.NewMemoryStore(), nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("Unexpected error building dispatcher: %v", err)
	}
	return d
}

func TestNamespacedTypeNames(t *testing.T) {
	d := namespacedDispatcher(t, nil)

	// both the qualified and the bare path resolve by default
	resp := do(t, d, xmlRequest(http.MethodPost, "/acme.gizmo",
		`<acme.gizmo><label>x</label></acme.gizmo>`), http.StatusOK)
	key := strings.TrimSpace(string(resp.Body))

	resp = do(t, d, xmlRequest(http.MethodGet, "/gizmo/"+key, ""), http.StatusOK)
	if !strings.Contains(string(resp.Body), "<acme.gizmo>") {
		t.Errorf("Expected qualified element name, got %s", resp.Body)
	}

	// the bare element name deserializes too
	do(t, d, xmlRequest(http.MethodPost, "/gizmo/"+key,
		`<gizmo><label>y</label></gizmo>`), http.StatusOK)

	// the listing shows the exposed name
	resp = do(t, d, xmlRequest(http.MethodGet, "/metadata", ""), http.StatusOK)
	if !strings.Contains(string(resp.Body), "<type>acme.gizmo</type>") {
		t.Errorf("Expected qualified listing entry, got %s", resp.Body)
	}
}

func TestNamespaceExposureDisabled(t *testing.T) {
	d := namespacedDispatcher(t, func(c *common.ServerConfig) { c.ExposeTypeNamespace = false })

	resp := do(t, d, xmlRequest(http.MethodPost, "/acme.gizmo",
		`<acme.gizmo><label>x</label></acme.gizmo>`), http.StatusOK)
	key := strings.TrimSpace(string(resp.Body))

	resp = do(t, d, xmlRequest(http.MethodGet, "/acme.gizmo/"+key, ""), http.StatusOK)
	body := string(resp.Body)
	if !strings.Contains(body, "<gizmo>") || strings.Contains(body, "<acme.gizmo>") {
		t.Errorf("Expected bare element name, got %s", body)
	}
}

func TestNamespaceAcceptanceDisabled(t *testing.T) {
	d := namespacedDispatcher(t, func(c *common.ServerConfig) { c.AcceptTypeNamespace = false })

	do(t, d, xmlRequest(http.MethodPost, "/acme.gizmo",
		`<acme.gizmo><label>x</label></acme.gizmo>`), http.StatusNotFound)
	do(t, d, xmlRequest(http.MethodPost, "/gizmo",
		`<gizmo><label>x</label></gizmo>`), http.StatusOK)
}

// --------------------------------------------------------------------------
// Authentication
// --------------------------------------------------------------------------

func TestJWTAuthentication(t *testing.T) {
	secret := "test-secret"
	env := newTestEnv(t, func(c *common.ServerConfig) { c.AuthSecret = secret })

	// no token
	do(t, env.dispatcher, xmlRequest(http.MethodGet, "/widget", ""), http.StatusForbidden)

	// garbage token
	req := xmlRequest(http.MethodGet, "/widget", "")
	req.Header.Set("Authorization", "Bearer not-a-token")
	do(t, env.dispatcher, req, http.StatusForbidden)

	// valid token
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "alice"})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("Unexpected error signing token: %v", err)
	}
	req = xmlRequest(http.MethodGet, "/widget", "")
	req.Header.Set("Authorization", "Bearer "+signed)
	do(t, env.dispatcher, req, http.StatusOK)
}
