package server

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/ValentinKolb/dREST/lib/marshal"
	"github.com/ValentinKolb/dREST/lib/model"
	"github.com/ValentinKolb/dREST/rest/transport"
)

// uploadFormTemplate is the minimal browser upload form returned when
// a blob reference property's content sub-path is posted to. The
// action points at the single-use upload completion URL.
const uploadFormTemplate = `<html><body>` +
	`<form action="%s" method="post" enctype="multipart/form-data">` +
	`<input type="file" name="file"/>` +
	`<input type="submit" value="Upload"/>` +
	`</form></body></html>`

// --------------------------------------------------------------------------
// Upload Form
// --------------------------------------------------------------------------

// handleUploadForm starts a two-phase attachment upload: it registers
// an upload session bound to the property path and returns an HTML
// form posting to the session's completion URL.
func (d *Dispatcher) handleUploadForm(m *marshal.Marshaler, key, prop string) *transport.Response {
	if d.blobs == nil {
		return d.errorResponse(http.StatusMethodNotAllowed, "no blob store configured")
	}

	h, err := m.Handler(prop)
	if err != nil {
		return d.errorResponse(http.StatusNotFound, "%v", err)
	}
	if h.TypeString() != model.TypeBlobReference.String() {
		return d.errorResponse(http.StatusBadRequest, "property %s is not a blob reference", prop)
	}

	// the entity must exist before content can be attached to it
	_, loaded, err := d.store.Get(m.Name(), key)
	if err != nil {
		return d.storeErrorResponse(err)
	}
	if !loaded {
		return d.errorResponse(http.StatusNotFound, "no %s with key %s", m.Name(), key)
	}

	// the redirect path must use a routable type name
	pathName := m.Name()
	if idx := strings.LastIndexByte(pathName, '.'); idx >= 0 && !d.config.AcceptTypeNamespace {
		pathName = pathName[idx+1:]
	}
	redirect := pathName + "/" + key + "/" + prop
	token, err := d.blobs.CreateUpload(redirect)
	if err != nil {
		return d.errorResponse(http.StatusInternalServerError, "failed to create upload session: %v", err)
	}

	action := strings.TrimSuffix(d.config.BasePath, "/") + "/" + UploadPathSegment + "/" + token
	return &transport.Response{
		Status:      http.StatusOK,
		ContentType: "text/html",
		Body:        []byte(fmt.Sprintf(uploadFormTemplate, action)),
	}
}

// --------------------------------------------------------------------------
// Upload Completion
// --------------------------------------------------------------------------

// handleUploadComplete redeems an upload session: it stores the posted
// content, writes the resulting blob key onto the referencing property
// and redirects to the property path.
func (d *Dispatcher) handleUploadComplete(method string, req *transport.Request, principal string, segments []string) *transport.Response {
	if d.blobs == nil || len(segments) != 2 {
		return d.errorResponse(http.StatusNotFound, "unknown resource %s", req.Path)
	}
	if method != http.MethodPost {
		return d.errorResponse(http.StatusMethodNotAllowed, "method %s not allowed on upload", method)
	}

	data, contentType, filename, err := parseMultipartFile(req)
	if err != nil {
		return d.errorResponse(http.StatusBadRequest, "%v", err)
	}

	blobKey, redirect, err := d.blobs.CompleteUpload(segments[1], data, contentType, filename)
	if err != nil {
		return d.errorResponse(http.StatusBadRequest, "%v", err)
	}

	parts := strings.SplitN(redirect, "/", 3)
	if len(parts) != 3 {
		return d.errorResponse(http.StatusInternalServerError, "malformed upload session target %s", redirect)
	}
	typeName, key, prop := parts[0], parts[1], parts[2]

	m, ok := d.marshalers[typeName]
	if !ok {
		return d.errorResponse(http.StatusNotFound, "unknown type %s", typeName)
	}
	if resp := d.guard(principal, m, model.OpUpload); resp != nil {
		return resp
	}
	h, err := m.Handler(prop)
	if err != nil {
		return d.errorResponse(http.StatusNotFound, "%v", err)
	}

	e, loaded, err := d.store.Get(m.Name(), key)
	if err != nil {
		return d.storeErrorResponse(err)
	}
	if !loaded {
		return d.errorResponse(http.StatusNotFound, "no %s with key %s", m.Name(), key)
	}

	m.Apply(e, map[string]model.Value{h.Name(): model.BlobRefValue(blobKey)}, false)
	if err := d.store.Put(m.Name(), e); err != nil {
		return d.storeErrorResponse(err)
	}

	location := strings.TrimSuffix(d.config.BasePath, "/") + "/" + redirect
	return &transport.Response{
		Status: http.StatusFound,
		Header: http.Header{"Location": {location}},
	}
}

// parseMultipartFile extracts the first file part of a multipart form
// body.
func parseMultipartFile(req *transport.Request) (data []byte, contentType, filename string, err error) {
	mediaType, params, err := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return nil, "", "", fmt.Errorf("expected a multipart form upload")
	}

	reader := multipart.NewReader(bytes.NewReader(req.Body), params["boundary"])
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, "", "", fmt.Errorf("malformed multipart body: %w", err)
		}
		if part.FileName() == "" {
			continue
		}
		data, err := io.ReadAll(part)
		if err != nil {
			return nil, "", "", fmt.Errorf("failed to read upload: %w", err)
		}
		contentType := part.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		return data, contentType, part.FileName(), nil
	}
	return nil, "", "", fmt.Errorf("no file part in upload")
}

// --------------------------------------------------------------------------
// Content Serving
// --------------------------------------------------------------------------

// handleContent streams an attachment's raw content. A single byte
// range is honored; content responses are never cached.
func (d *Dispatcher) handleContent(req *transport.Request, m *marshal.Marshaler, key, prop string) *transport.Response {
	if d.blobs == nil {
		return d.errorResponse(http.StatusNotFound, "no blob store configured")
	}

	h, err := m.Handler(prop)
	if err != nil {
		return d.errorResponse(http.StatusNotFound, "%v", err)
	}

	e, loaded, err := d.store.Get(m.Name(), key)
	if err != nil {
		return d.storeErrorResponse(err)
	}
	if !loaded {
		return d.errorResponse(http.StatusNotFound, "no %s with key %s", m.Name(), key)
	}

	v, ok := e.Get(h.Name())
	if !ok || v.Type != model.TypeBlobReference {
		return d.errorResponse(http.StatusNotFound, "property %s has no attachment", prop)
	}

	r, loaded, err := d.blobs.Open(v.Str)
	if err != nil {
		return d.errorResponse(http.StatusInternalServerError, "failed to open attachment: %v", err)
	}
	if !loaded {
		return d.errorResponse(http.StatusNotFound, "attachment %s not found", v.Str)
	}
	info, _ := d.blobs.Info(v.Str)

	data, err := io.ReadAll(r)
	if err != nil {
		return d.errorResponse(http.StatusInternalServerError, "failed to read attachment: %v", err)
	}

	header := http.Header{"Accept-Ranges": {"bytes"}}
	if info.Filename != "" {
		header.Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", info.Filename))
	}

	status := http.StatusOK
	if start, end, ok := parseByteRange(req.Header.Get("Range"), int64(len(data))); ok {
		header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(data)))
		data = data[start : end+1]
		status = http.StatusPartialContent
	}

	return &transport.Response{
		Status:      status,
		ContentType: info.ContentType,
		Header:      header,
		Body:        data,
	}
}

// parseByteRange parses a single "bytes=start-end" range. Multi-range
// and suffix forms fall back to the full content.
func parseByteRange(header string, size int64) (start, end int64, ok bool) {
	spec, found := strings.CutPrefix(header, "bytes=")
	if !found || strings.Contains(spec, ",") {
		return 0, 0, false
	}
	bounds := strings.SplitN(spec, "-", 2)
	if len(bounds) != 2 || bounds[0] == "" {
		return 0, 0, false
	}
	start, err := strconv.ParseInt(bounds[0], 10, 64)
	if err != nil || start < 0 || start >= size {
		return 0, 0, false
	}
	end = size - 1
	if bounds[1] != "" {
		end, err = strconv.ParseInt(bounds[1], 10, 64)
		if err != nil || end < start {
			return 0, 0, false
		}
		if end >= size {
			end = size - 1
		}
	}
	return start, end, true
}
