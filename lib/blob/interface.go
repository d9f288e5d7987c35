package blob

import (
	"io"
	"time"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// Info is the metadata kept alongside stored blob content. It backs the
// blobinfo=info attribute expansion on serialized blob references.
type Info struct {
	ContentType string
	Filename    string
	Size        int64
	Created     time.Time
}

// IBlobStore is the interface the attachment upload and serving paths
// are built against. Uploads are two-phase: CreateUpload registers a
// single-use session bound to a completion redirect, CompleteUpload
// redeems it with the received content and yields the blob key that the
// referencing property stores.
type IBlobStore interface {
	// CreateUpload registers a pending upload session and returns its
	// opaque session token. The transport embeds the token in the
	// upload form's action URL.
	CreateUpload(redirect string) (token string, err error)

	// CompleteUpload consumes an upload session, persists the content
	// and returns the new blob key together with the redirect path the
	// session was created with. Unknown or already-consumed tokens are
	// an error.
	CompleteUpload(token string, data []byte, contentType, filename string) (key string, redirect string, err error)

	// Open returns a reader over the blob's content. The boolean return
	// value indicates whether the blob was found.
	Open(key string) (r io.ReadSeeker, loaded bool, err error)

	// Info returns the blob's metadata. The boolean return value
	// indicates whether the blob was found.
	Info(key string) (info Info, loaded bool)

	// Delete removes the blob. The boolean return value indicates
	// whether a blob was actually removed.
	Delete(key string) (loaded bool, err error)
}
