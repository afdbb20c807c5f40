package interfaces

import (
	"context"
	"io"
)

// FileStore is the blob store boundary for design files and payment proofs.
type FileStore interface {
	// Save stores the blob under a new key derived from the original file
	// name and returns that key.
	Save(ctx context.Context, fileName string, r io.Reader) (string, error)

	// SignedURL issues a time-limited download URL for a stored key. It fails
	// with a not-found error when the key does not exist; expiry is fixed by
	// the store's configuration.
	SignedURL(ctx context.Context, key string) (string, error)

	// OpenSigned validates a download token from a signed URL and opens the
	// referenced blob.
	OpenSigned(ctx context.Context, token string) (io.ReadCloser, string, error)
}
