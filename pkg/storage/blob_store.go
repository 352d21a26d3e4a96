package storage

import (
	"context"
	"io"
)

// BlobStore holds raw uploaded file content keyed by an opaque storage key.
// The vault keeps metadata (and the data-URL payload) in the persistence
// store; blobs back downloads without decoding the stored payload.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
