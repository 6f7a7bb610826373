// Package storage provides S3-compatible object storage for raw webhook
// payloads.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned by GetObject for missing keys.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore defines the object storage operations the archive needs.
type ObjectStore interface {
	// EnsureBucketExists creates the bucket if it doesn't exist.
	EnsureBucketExists(ctx context.Context, bucket string) error

	// PutObject stores size bytes from reader under key.
	PutObject(ctx context.Context, bucket, key, contentType string, reader io.Reader, size int64) error

	// GetObject opens a stored object. The caller closes the reader.
	// Missing keys yield ErrObjectNotFound.
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}
