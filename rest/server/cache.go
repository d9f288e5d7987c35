package server

import (
	"bytes"
	"encoding/gob"
	"net/http"

	"github.com/ValentinKolb/dREST/rest/transport"
)

// --------------------------------------------------------------------------
// Response Caching
// --------------------------------------------------------------------------

// cachedResponse is the gob-encoded cache entry for one read response.
// The Accept header is stored verbatim: a cached entry only serves
// requests with the exact same preference string, so negotiation never
// has to re-run on a hit.
type cachedResponse struct {
	ContentType string
	Accept      string
	ETag        string
	Body        []byte
}

func encodeCached(entry cachedResponse) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entry); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeCached(data []byte) (cachedResponse, error) {
	var entry cachedResponse
	err := gob.NewDecoder(bytes.NewReader(data)).Decode(&entry)
	return entry, err
}

// withCache serves a read request from the response cache when
// possible, and stores the produced response on a miss. Cache failures
// are logged and never fail the request.
func (d *Dispatcher) withCache(req *transport.Request, fn func() *transport.Response) *transport.Response {
	if !d.config.CacheEnabled || d.respCache == nil {
		return fn()
	}

	accept := req.Header.Get("Accept")
	if raw, ok := d.respCache.Get(req.RawURL); ok {
		if entry, err := decodeCached(raw); err == nil && entry.Accept == accept {
			if entry.ETag != "" && matchesTag(req.Header.Get("If-None-Match"), entry.ETag) {
				return d.notModified(entry.ETag)
			}
			resp := &transport.Response{
				Status:      http.StatusOK,
				ContentType: entry.ContentType,
				Body:        entry.Body,
			}
			if entry.ETag != "" {
				resp.Header = http.Header{"ETag": {entry.ETag}}
			}
			return resp
		}
	}

	resp := fn()
	if resp.Status == http.StatusOK {
		entry := cachedResponse{
			ContentType: resp.ContentType,
			Accept:      accept,
			ETag:        responseETag(resp),
			Body:        resp.Body,
		}
		if data, err := encodeCached(entry); err != nil {
			Logger.Warningf("failed to encode cache entry for %s: %v", req.RawURL, err)
		} else if err := d.respCache.Set(req.RawURL, data); err != nil {
			Logger.Warningf("failed to cache response for %s: %v", req.RawURL, err)
		}
	}
	return resp
}

func responseETag(resp *transport.Response) string {
	if resp.Header == nil {
		return ""
	}
	return resp.Header.Get("ETag")
}
