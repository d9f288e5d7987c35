package server

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ValentinKolb/dREST/lib/blob"
	"github.com/ValentinKolb/dREST/lib/cache"
	"github.com/ValentinKolb/dREST/lib/document"
	"github.com/ValentinKolb/dREST/lib/marshal"
	"github.com/ValentinKolb/dREST/lib/model"
	"github.com/ValentinKolb/dREST/lib/query"
	"github.com/ValentinKolb/dREST/lib/store"
	"github.com/ValentinKolb/dREST/rest/common"
	"github.com/ValentinKolb/dREST/rest/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("rest")

const (
	// UploadPathSegment is the reserved first path segment for blob
	// upload completion; no type may register under it.
	UploadPathSegment = "blobupload"
	// ContentPathSegment selects an attachment's raw content below a
	// blob reference property.
	ContentPathSegment = "content"
	// MetricsPathSegment serves the collected metrics.
	MetricsPathSegment = "metrics"

	// WriteShapeParam selects the response shape of write operations:
	// "full" echoes the entities, "structured" and "xml" return a key
	// document, anything else returns plain-text keys.
	WriteShapeParam = "type"

	methodOverrideHeader = "X-HTTP-Method-Override"

	typesNodeName = "types"
	typeNodeName  = "type"
	keysNodeName  = "keys"
	keyNodeName   = "key"
)

// --------------------------------------------------------------------------
// Dispatcher
// --------------------------------------------------------------------------

// Dispatcher routes transport requests to entity operations. It is
// built once from a registry and treated as read-only afterwards.
type Dispatcher struct {
	config     common.ServerConfig
	registry   *model.Registry
	store      store.IEntityStore
	blobs      blob.IBlobStore
	respCache  cache.IResponseCache
	marshalers map[string]*marshal.Marshaler // accepted path name -> marshaler
	exposed    []string                      // listing names, registration order
	negotiator *document.Negotiator
	authn      IAuthenticator
	authz      IAuthorizer
}

// NewDispatcher creates the dispatcher for a registry. Every registered
// type gets its marshaler built here; registration errors surface
// before the server starts listening.
func NewDispatcher(
	config common.ServerConfig,
	registry *model.Registry,
	entityStore store.IEntityStore,
	blobStore blob.IBlobStore,
	respCache cache.IResponseCache,
	authn IAuthenticator,
	authz IAuthorizer,
) (*Dispatcher, error) {
	d := &Dispatcher{
		config:     config,
		registry:   registry,
		store:      entityStore,
		blobs:      blobStore,
		respCache:  respCache,
		marshalers: map[string]*marshal.Marshaler{},
		negotiator: document.NewNegotiator(config.ContentTypes...),
		authn:      authn,
		authz:      authz,
	}
	if d.authn == nil {
		d.authn = NewAllowAllAuthenticator()
	}
	if d.authz == nil {
		d.authz = NewAllowAllAuthorizer()
	}

	for _, name := range registry.Names() {
		// a registered name may be namespace-qualified (ns.typename);
		// the bare name always addresses the type, the qualified form
		// only when configured, and responses expose whichever form the
		// config selects
		bare := name
		if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
			bare = name[idx+1:]
		}
		if bare == UploadPathSegment || bare == MetricsPathSegment || bare == model.MetadataPath {
			return nil, fmt.Errorf("type name %s is reserved", bare)
		}

		elementName := bare
		if config.ExposeTypeNamespace {
			elementName = name
		}

		reg, _ := registry.Lookup(name)
		m, err := marshal.NewMarshaler(elementName, reg, entityStore)
		if err != nil {
			return nil, err
		}
		if _, ok := d.marshalers[bare]; ok {
			return nil, fmt.Errorf("type name %s is ambiguous", bare)
		}
		d.marshalers[bare] = m
		if name != bare {
			m.AllowElementName(bare)
			if config.AcceptTypeNamespace {
				if _, ok := d.marshalers[name]; ok {
					return nil, fmt.Errorf("type name %s is ambiguous", name)
				}
				d.marshalers[name] = m
				m.AllowElementName(name)
			}
		}
		d.exposed = append(d.exposed, elementName)
	}
	return d, nil
}

// Handle processes one request. It is the ServerHandleFunc registered
// on the transport.
func (d *Dispatcher) Handle(req *transport.Request) *transport.Response {
	start := time.Now()

	method := strings.ToUpper(req.Method)
	if override := req.Header.Get(methodOverrideHeader); override != "" {
		method = strings.ToUpper(override)
	}

	resp := d.dispatch(method, req)
	observeRequest(method, resp.Status, start)
	return resp
}

func (d *Dispatcher) dispatch(method string, req *transport.Request) *transport.Response {
	principal, err := d.authn.Authenticate(req)
	if err != nil {
		return d.errorResponse(http.StatusForbidden, "authentication failed: %v", err)
	}

	segments := splitPath(req.Path)
	if len(segments) == 0 {
		return d.errorResponse(http.StatusNotFound, "no resource specified")
	}

	switch segments[0] {
	case MetricsPathSegment:
		return d.handleMetrics(method)
	case model.MetadataPath:
		return d.handleMetadata(method, req, segments)
	case UploadPathSegment:
		return d.handleUploadComplete(method, req, principal, segments)
	}

	m, ok := d.marshalers[segments[0]]
	if !ok {
		return d.errorResponse(http.StatusNotFound, "unknown type %s", segments[0])
	}

	switch len(segments) {
	case 1:
		return d.dispatchCollection(method, req, principal, m)
	case 2:
		return d.dispatchEntity(method, req, principal, m, segments[1])
	case 3:
		return d.dispatchProperty(method, req, principal, m, segments[1], segments[2])
	case 4:
		if segments[3] == ContentPathSegment {
			return d.dispatchContent(method, req, principal, m, segments[1], segments[2])
		}
	}
	return d.errorResponse(http.StatusNotFound, "unknown resource %s", req.Path)
}

func (d *Dispatcher) dispatchCollection(method string, req *transport.Request, principal string, m *marshal.Marshaler) *transport.Response {
	switch method {
	case http.MethodGet:
		if resp := d.guard(principal, m, model.OpQuery); resp != nil {
			return resp
		}
		return d.withCache(req, func() *transport.Response { return d.handleQuery(req, m) })
	case http.MethodPost:
		// creates and keyed batch updates are guarded per item
		return d.handleCreate(req, principal, m)
	case http.MethodDelete:
		if !d.config.BulkDeleteEnabled {
			return d.errorResponse(http.StatusNotFound, "unknown resource %s", req.Path)
		}
		if resp := d.guard(principal, m, model.OpBulkDelete); resp != nil {
			return resp
		}
		return d.handleBulkDelete(req, m)
	default:
		return d.errorResponse(http.StatusMethodNotAllowed, "method %s not allowed on collection", method)
	}
}

func (d *Dispatcher) dispatchEntity(method string, req *transport.Request, principal string, m *marshal.Marshaler, key string) *transport.Response {
	switch method {
	case http.MethodGet:
		if resp := d.guard(principal, m, model.OpGet); resp != nil {
			return resp
		}
		return d.withCache(req, func() *transport.Response { return d.handleGet(req, m, key) })
	case http.MethodPost:
		if resp := d.guard(principal, m, model.OpUpdate); resp != nil {
			return resp
		}
		return d.handleWrite(req, m, key, false)
	case http.MethodPut:
		if resp := d.guard(principal, m, model.OpReplace); resp != nil {
			return resp
		}
		return d.handleWrite(req, m, key, true)
	case http.MethodDelete:
		if resp := d.guard(principal, m, model.OpDelete); resp != nil {
			return resp
		}
		return d.handleDelete(req, m, key)
	default:
		return d.errorResponse(http.StatusMethodNotAllowed, "method %s not allowed on entity", method)
	}
}

func (d *Dispatcher) dispatchProperty(method string, req *transport.Request, principal string, m *marshal.Marshaler, key, prop string) *transport.Response {
	h, err := m.Handler(prop)
	if err != nil {
		return d.errorResponse(http.StatusNotFound, "%v", err)
	}

	switch method {
	case http.MethodGet:
		if resp := d.guard(principal, m, model.OpGet); resp != nil {
			return resp
		}
		return d.handlePropertyGet(m, h, key)
	case http.MethodPost, http.MethodPut:
		if resp := d.guard(principal, m, model.OpUpdate); resp != nil {
			return resp
		}
		return d.handlePropertyWrite(req, m, h, key)
	default:
		return d.errorResponse(http.StatusMethodNotAllowed, "method %s not allowed on property", method)
	}
}

// dispatchContent serves an attachment's bytes on GET; POST/PUT starts
// the two-phase upload protocol by returning the upload form.
func (d *Dispatcher) dispatchContent(method string, req *transport.Request, principal string, m *marshal.Marshaler, key, prop string) *transport.Response {
	if resp := d.guard(principal, m, model.OpUpload); resp != nil {
		return resp
	}
	switch method {
	case http.MethodGet:
		return d.handleContent(req, m, key, prop)
	case http.MethodPost, http.MethodPut:
		return d.handleUploadForm(m, key, prop)
	default:
		return d.errorResponse(http.StatusMethodNotAllowed, "method %s not allowed on content", method)
	}
}

// guard enforces the type's allowed operations and the authorizer.
func (d *Dispatcher) guard(principal string, m *marshal.Marshaler, op model.Operation) *transport.Response {
	if !m.Registration().Allows(op) {
		return d.errorResponse(http.StatusMethodNotAllowed, "operation %s not enabled for type %s", op, m.Name())
	}
	if !d.authz.Authorize(principal, m.Name(), op) {
		return d.errorResponse(http.StatusForbidden, "operation %s on type %s not permitted", op, m.Name())
	}
	return nil
}

// --------------------------------------------------------------------------
// Metadata Operations
// --------------------------------------------------------------------------

func (d *Dispatcher) handleMetadata(method string, req *transport.Request, segments []string) *transport.Response {
	if method != http.MethodGet {
		return d.errorResponse(http.StatusMethodNotAllowed, "method %s not allowed on metadata", method)
	}

	switch len(segments) {
	case 1:
		return d.withCache(req, func() *transport.Response {
			root := document.NewNode(typesNodeName)
			root.IsList = true
			for _, name := range d.exposed {
				root.AppendText(typeNodeName, name)
			}
			return d.respondDocument(req, http.StatusOK, root)
		})
	case 2:
		m, ok := d.marshalers[segments[1]]
		if !ok {
			return d.errorResponse(http.StatusNotFound, "unknown type %s", segments[1])
		}
		return d.withCache(req, func() *transport.Response {
			root := marshal.NewSchemaRoot()
			m.WriteSchema(root)
			return d.respondDocument(req, http.StatusOK, root)
		})
	default:
		return d.errorResponse(http.StatusNotFound, "unknown resource %s", req.Path)
	}
}

func (d *Dispatcher) handleMetrics(method string) *transport.Response {
	if method != http.MethodGet {
		return d.errorResponse(http.StatusMethodNotAllowed, "method %s not allowed on metrics", method)
	}
	var buf bytes.Buffer
	writeMetrics(&buf)
	return &transport.Response{
		Status:      http.StatusOK,
		ContentType: document.ContentTypeText,
		Body:        buf.Bytes(),
	}
}

// --------------------------------------------------------------------------
// Read Operations
// --------------------------------------------------------------------------

func (d *Dispatcher) handleQuery(req *transport.Request, m *marshal.Marshaler) *transport.Response {
	q, err := query.Parse(req.Query, d.config.DefaultPageSize, m)
	if err != nil {
		return d.errorResponse(http.StatusBadRequest, "%v", err)
	}

	entities, next, err := m.Query(q)
	if err != nil {
		return d.storeErrorResponse(err)
	}

	var tag string
	if d.config.ETagsEnabled {
		for _, e := range entities {
			e.ETag = d.entityETag(e)
		}
		tag = aggregateETag(entities)
		if matchesTag(req.Header.Get("If-None-Match"), tag) {
			return d.notModified(tag)
		}
	}

	list := m.SerializeList(entities, next, d.serializeOpts(req))
	resp := d.respondDocument(req, http.StatusOK, list)
	if tag != "" {
		resp.Header = http.Header{"ETag": {tag}}
	}
	return resp
}

func (d *Dispatcher) handleGet(req *transport.Request, m *marshal.Marshaler, key string) *transport.Response {
	e, loaded, err := d.store.Get(m.Name(), key)
	if err != nil {
		return d.storeErrorResponse(err)
	}
	if !loaded {
		return d.errorResponse(http.StatusNotFound, "no %s with key %s", m.Name(), key)
	}

	var tag string
	if d.config.ETagsEnabled {
		tag = d.entityETag(e)
		if matchesTag(req.Header.Get("If-None-Match"), tag) {
			return d.notModified(tag)
		}
		e.ETag = tag
	}

	node := m.Serialize(document.NewNode(""), e, d.serializeOpts(req))
	resp := d.respondDocument(req, http.StatusOK, node)
	if tag != "" {
		resp.Header = http.Header{"ETag": {tag}}
	}
	return resp
}

func (d *Dispatcher) handlePropertyGet(m *marshal.Marshaler, h propertyHandler, key string) *transport.Response {
	e, loaded, err := d.store.Get(m.Name(), key)
	if err != nil {
		return d.storeErrorResponse(err)
	}
	if !loaded {
		return d.errorResponse(http.StatusNotFound, "no %s with key %s", m.Name(), key)
	}

	v, ok := e.Get(h.Name())
	if !ok {
		return d.errorResponse(http.StatusNotFound, "property %s not set on %s %s", h.Name(), m.Name(), key)
	}

	body, contentType := h.ValueToRaw(v)
	return &transport.Response{Status: http.StatusOK, ContentType: contentType, Body: body}
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

func (d *Dispatcher) handleCreate(req *transport.Request, principal string, m *marshal.Marshaler) *transport.Response {
	root, err := d.parseBody(req)
	if err != nil {
		return d.errorResponse(http.StatusBadRequest, "%v", err)
	}

	var items []*document.Node
	if root.Name == marshal.ListNodeName {
		items = root.Children
	} else {
		items = []*document.Node{root}
	}
	if len(items) == 0 {
		return d.errorResponse(http.StatusBadRequest, "empty %s document", marshal.ListNodeName)
	}

	// first pass: parse and authorize every item and load the update
	// targets, so preconditions can be checked before anything persists
	type itemWrite struct {
		entity *model.Entity
		props  map[string]model.Value
		fresh  bool
	}
	writes := make([]itemWrite, 0, len(items))
	var updated []*model.Entity
	for _, item := range items {
		bodyKey, props, err := m.Deserialize(item)
		if err != nil {
			return d.errorResponse(http.StatusBadRequest, "%v", err)
		}

		if bodyKey != "" {
			// an item carrying a key updates the existing entity
			if resp := d.guard(principal, m, model.OpUpdate); resp != nil {
				return resp
			}
			existing, loaded, err := d.store.Get(m.Name(), bodyKey)
			if err != nil {
				return d.storeErrorResponse(err)
			}
			if !loaded {
				return d.errorResponse(http.StatusNotFound, "no %s with key %s", m.Name(), bodyKey)
			}
			writes = append(writes, itemWrite{entity: existing, props: props})
			updated = append(updated, existing)
		} else {
			if resp := d.guard(principal, m, model.OpCreate); resp != nil {
				return resp
			}
			writes = append(writes, itemWrite{entity: model.NewEntity(m.Name()), props: props, fresh: true})
		}
	}

	if d.config.ETagsEnabled {
		for _, e := range updated {
			e.ETag = d.entityETag(e)
		}
		if !batchPreconditionSatisfied(req.Header.Get("If-Match"), updated) {
			return d.errorResponse(http.StatusPreconditionFailed, "one or more entities were modified")
		}
	}

	// second pass: items are written one by one; the first failure
	// aborts the rest
	var written []*model.Entity
	for _, w := range writes {
		m.Apply(w.entity, w.props, w.fresh)
		if err := d.store.Put(m.Name(), w.entity); err != nil {
			return d.storeErrorResponse(err)
		}
		written = append(written, w.entity)
	}

	return d.writeResultResponse(req, m, written)
}

func (d *Dispatcher) handleWrite(req *transport.Request, m *marshal.Marshaler, key string, replace bool) *transport.Response {
	root, err := d.parseBody(req)
	if err != nil {
		return d.errorResponse(http.StatusBadRequest, "%v", err)
	}

	bodyKey, props, err := m.Deserialize(root)
	if err != nil {
		return d.errorResponse(http.StatusBadRequest, "%v", err)
	}
	if bodyKey != "" && bodyKey != key {
		return d.errorResponse(http.StatusBadRequest, "body key %s does not match path key %s", bodyKey, key)
	}

	e, loaded, err := d.store.Get(m.Name(), key)
	if err != nil {
		return d.storeErrorResponse(err)
	}
	if loaded {
		if d.config.ETagsEnabled && !ifMatchSatisfied(req.Header.Get("If-Match"), d.entityETag(e)) {
			return d.errorResponse(http.StatusPreconditionFailed, "entity %s was modified", key)
		}
	} else {
		if !replace {
			return d.errorResponse(http.StatusNotFound, "no %s with key %s", m.Name(), key)
		}
		if req.Header.Get("If-Match") != "" {
			return d.errorResponse(http.StatusPreconditionFailed, "no %s with key %s", m.Name(), key)
		}
		e = model.NewEntity(m.Name())
		e.Key = key
	}

	m.Apply(e, props, replace)
	if err := d.store.Put(m.Name(), e); err != nil {
		return d.storeErrorResponse(err)
	}

	return d.writeResultResponse(req, m, []*model.Entity{e})
}

func (d *Dispatcher) handlePropertyWrite(req *transport.Request, m *marshal.Marshaler, h propertyHandler, key string) *transport.Response {
	e, loaded, err := d.store.Get(m.Name(), key)
	if err != nil {
		return d.storeErrorResponse(err)
	}
	if !loaded {
		return d.errorResponse(http.StatusNotFound, "no %s with key %s", m.Name(), key)
	}
	if d.config.ETagsEnabled && !ifMatchSatisfied(req.Header.Get("If-Match"), d.entityETag(e)) {
		return d.errorResponse(http.StatusPreconditionFailed, "entity %s was modified", key)
	}

	v, err := h.ValueFromRaw(req.Body)
	if err != nil {
		return d.errorResponse(http.StatusBadRequest, "%v", err)
	}

	m.Apply(e, map[string]model.Value{h.Name(): v}, false)
	if err := d.store.Put(m.Name(), e); err != nil {
		return d.storeErrorResponse(err)
	}

	return d.textResponse(http.StatusOK, e.Key)
}

func (d *Dispatcher) handleDelete(req *transport.Request, m *marshal.Marshaler, key string) *transport.Response {
	if d.config.ETagsEnabled {
		if header := req.Header.Get("If-Match"); header != "" {
			e, loaded, err := d.store.Get(m.Name(), key)
			if err != nil {
				return d.storeErrorResponse(err)
			}
			if loaded && !ifMatchSatisfied(header, d.entityETag(e)) {
				return d.errorResponse(http.StatusPreconditionFailed, "entity %s was modified", key)
			}
		}
	}

	// delete is idempotent: a missing entity still yields no content
	if _, err := d.store.Delete(m.Name(), key); err != nil {
		return d.storeErrorResponse(err)
	}
	return &transport.Response{Status: http.StatusNoContent}
}

func (d *Dispatcher) handleBulkDelete(req *transport.Request, m *marshal.Marshaler) *transport.Response {
	q, err := query.Parse(req.Query, d.config.DefaultPageSize, m)
	if err != nil {
		return d.errorResponse(http.StatusBadRequest, "%v", err)
	}

	count, err := m.DeleteMatching(q)
	if err != nil {
		return d.storeErrorResponse(err)
	}
	return d.textResponse(http.StatusOK, strconv.Itoa(count))
}

// --------------------------------------------------------------------------
// Response Helpers
// --------------------------------------------------------------------------

// propertyHandler is the subset of the handler interface the
// dispatcher's property paths need.
type propertyHandler interface {
	Name() string
	TypeString() string
	ValueToRaw(v model.Value) ([]byte, string)
	ValueFromRaw(b []byte) (model.Value, error)
}

// writeResultResponse shapes the response of a successful write per the
// caller's requested shape: full entities, a key document, or
// plain-text keys.
func (d *Dispatcher) writeResultResponse(req *transport.Request, m *marshal.Marshaler, entities []*model.Entity) *transport.Response {
	switch req.Query.Get(WriteShapeParam) {
	case "full":
		if d.config.ETagsEnabled {
			for _, e := range entities {
				e.ETag = d.entityETag(e)
			}
		}
		if len(entities) == 1 {
			node := m.Serialize(document.NewNode(""), entities[0], d.serializeOpts(req))
			return d.respondDocument(req, http.StatusOK, node)
		}
		return d.respondDocument(req, http.StatusOK, m.SerializeList(entities, "", d.serializeOpts(req)))

	case "structured", "xml":
		root := document.NewNode(keysNodeName)
		root.IsList = true
		for _, e := range entities {
			root.AppendText(keyNodeName, e.Key)
		}
		if req.Query.Get(WriteShapeParam) == "xml" {
			return &transport.Response{
				Status:      http.StatusOK,
				ContentType: document.ContentTypeXML,
				Body:        document.ToXML(root),
			}
		}
		return d.respondDocument(req, http.StatusOK, root)

	default:
		keys := make([]string, 0, len(entities))
		for _, e := range entities {
			keys = append(keys, e.Key)
		}
		return d.textResponse(http.StatusOK, strings.Join(keys, "\n"))
	}
}

func (d *Dispatcher) respondDocument(req *transport.Request, status int, root *document.Node) *transport.Response {
	contentType := d.negotiator.Negotiate(req.Header.Get("Accept"))
	if contentType == document.ContentTypeJSON {
		body, err := document.ToJSON(root, d.config.SimplifiedJSON)
		if err != nil {
			return d.errorResponse(http.StatusInternalServerError, "failed to encode response: %v", err)
		}
		if callback := req.Query.Get("callback"); callback != "" {
			return &transport.Response{
				Status:      status,
				ContentType: "text/javascript",
				Body:        document.WrapJSONP(callback, body),
			}
		}
		return &transport.Response{Status: status, ContentType: contentType, Body: body}
	}
	return &transport.Response{Status: status, ContentType: contentType, Body: document.ToXML(root)}
}

func (d *Dispatcher) errorResponse(status int, format string, args ...interface{}) *transport.Response {
	msg := fmt.Sprintf(format, args...)
	if status >= http.StatusInternalServerError {
		Logger.Errorf("request failed (%d): %s", status, msg)
	} else {
		Logger.Debugf("request rejected (%d): %s", status, msg)
	}
	return &transport.Response{
		Status:      status,
		ContentType: document.ContentTypeText,
		Body:        []byte(msg),
	}
}

func (d *Dispatcher) textResponse(status int, text string) *transport.Response {
	return &transport.Response{
		Status:      status,
		ContentType: document.ContentTypeText,
		Body:        []byte(text),
	}
}

func (d *Dispatcher) notModified(tag string) *transport.Response {
	return &transport.Response{
		Status: http.StatusNotModified,
		Header: http.Header{"ETag": {tag}},
	}
}

// storeErrorResponse maps store errors onto HTTP statuses.
func (d *Dispatcher) storeErrorResponse(err error) *transport.Response {
	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		switch storeErr.Code {
		case store.RetCInvalidQuery:
			return d.errorResponse(http.StatusBadRequest, "%s", storeErr.Msg)
		case store.RetCUnsupportedOperation:
			return d.errorResponse(http.StatusMethodNotAllowed, "%s", storeErr.Msg)
		}
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return d.errorResponse(statusErr.Status, "%s", statusErr.Msg)
	}
	return d.errorResponse(http.StatusInternalServerError, "%v", err)
}

// --------------------------------------------------------------------------
// Request Parsing Helpers
// --------------------------------------------------------------------------

func splitPath(path string) []string {
	var segments []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// parseBody parses the request body into a document tree, choosing the
// codec by the declared content type (XML when in doubt).
func (d *Dispatcher) parseBody(req *transport.Request) (*document.Node, error) {
	if len(req.Body) == 0 {
		return nil, fmt.Errorf("empty request body")
	}
	contentType := req.Header.Get("Content-Type")
	if strings.Contains(contentType, "json") {
		return document.FromJSON(req.Body, d.config.SimplifiedJSON)
	}
	return document.FromXML(req.Body)
}

// serializeOpts builds the per-request serialization options from the
// include_props and blobinfo query parameters.
func (d *Dispatcher) serializeOpts(req *transport.Request) marshal.SerializeOpts {
	opts := marshal.SerializeOpts{Namespace: d.config.XMLNamespace}
	if v := req.Query.Get("include_props"); v != "" {
		opts.IncludeProps = strings.Split(v, ",")
	}
	if req.Query.Get("blobinfo") == "info" && d.blobs != nil {
		opts.Write.BlobInfo = func(token string) ([]document.Attr, bool) {
			info, ok := d.blobs.Info(token)
			if !ok {
				return nil, false
			}
			return []document.Attr{
				{Name: "content_type", Value: info.ContentType},
				{Name: "filename", Value: info.Filename},
				{Name: "size", Value: strconv.FormatInt(info.Size, 10)},
				{Name: "creation", Value: info.Created.UTC().Format("2006-01-02T15:04:05.000000")},
			}, true
		}
	}
	return opts
}
