package document

import (
	"strings"
)

const (
	ContentTypeXML  = "application/xml"
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain"
)

// --------------------------------------------------------------------------
// Content Negotiation
// --------------------------------------------------------------------------

// Negotiator picks an output content type by intersecting the caller's
// accept-preference list with an ordered list of supported types. The
// first accepted supported type wins; the last configured entry is the
// default when nothing matches.
type Negotiator struct {
	supported []string
}

// NewNegotiator creates a negotiator for the given supported content
// types, in preference order. At least one type must be given.
func NewNegotiator(supported ...string) *Negotiator {
	return &Negotiator{supported: supported}
}

// Default returns the fallback content type (the last configured one).
func (n *Negotiator) Default() string {
	return n.supported[len(n.supported)-1]
}

// Negotiate returns the content type to use for the given Accept (or
// Content-Type) header value.
func (n *Negotiator) Negotiate(accept string) string {
	for _, part := range strings.Split(accept, ",") {
		mediaType := strings.TrimSpace(part)
		// media type parameters (q-values etc.) are irrelevant here
		if idx := strings.IndexByte(mediaType, ';'); idx >= 0 {
			mediaType = strings.TrimSpace(mediaType[:idx])
		}
		if mediaType == "*/*" {
			return n.Default()
		}
		for _, s := range n.supported {
			if mediaType == s || matchesWildcard(mediaType, s) {
				return s
			}
		}
	}
	return n.Default()
}

func matchesWildcard(mediaType, supported string) bool {
	prefix, ok := strings.CutSuffix(mediaType, "/*")
	if !ok {
		return false
	}
	return strings.HasPrefix(supported, prefix+"/")
}
