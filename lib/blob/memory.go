package blob

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// In-Memory Blob Store
// --------------------------------------------------------------------------

type entry struct {
	data []byte
	info Info
}

type memoryStore struct {
	uploads *xsync.MapOf[string, string] // session token -> redirect
	blobs   *xsync.MapOf[string, entry]
	now     func() time.Time
}

// NewMemoryStore creates a blob store that keeps all content in
// process memory. It is safe for concurrent use.
func NewMemoryStore() IBlobStore {
	return &memoryStore{
		uploads: xsync.NewMapOf[string, string](),
		blobs:   xsync.NewMapOf[string, entry](),
		now:     time.Now,
	}
}

func (s *memoryStore) CreateUpload(redirect string) (string, error) {
	token := uuid.NewString()
	s.uploads.Store(token, redirect)
	return token, nil
}

func (s *memoryStore) CompleteUpload(token string, data []byte, contentType, filename string) (string, string, error) {
	// single use: a replayed token must not mint a second blob
	redirect, ok := s.uploads.LoadAndDelete(token)
	if !ok {
		return "", "", fmt.Errorf("unknown upload session %q", token)
	}

	key := uuid.NewString()
	content := make([]byte, len(data))
	copy(content, data)
	s.blobs.Store(key, entry{
		data: content,
		info: Info{
			ContentType: contentType,
			Filename:    filename,
			Size:        int64(len(content)),
			Created:     s.now(),
		},
	})
	return key, redirect, nil
}

func (s *memoryStore) Open(key string) (io.ReadSeeker, bool, error) {
	e, ok := s.blobs.Load(key)
	if !ok {
		return nil, false, nil
	}
	return bytes.NewReader(e.data), true, nil
}

func (s *memoryStore) Info(key string) (Info, bool) {
	e, ok := s.blobs.Load(key)
	if !ok {
		return Info{}, false
	}
	return e.info, true
}

func (s *memoryStore) Delete(key string) (bool, error) {
	_, ok := s.blobs.LoadAndDelete(key)
	return ok, nil
}
