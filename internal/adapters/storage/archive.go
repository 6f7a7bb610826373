package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

const payloadContentType = "application/json"

// ErrInvalidKey is returned for archive keys outside the payload layout.
var ErrInvalidKey = errors.New("invalid archive key")

// PayloadArchive stores raw webhook bodies as
// <source>/<yyyy>/<mm>/<dd>/<trackingID>.json.
type PayloadArchive struct {
	store  ObjectStore
	bucket string
	now    func() time.Time
}

// NewPayloadArchive creates the archive and makes sure its bucket exists.
func NewPayloadArchive(ctx context.Context, store ObjectStore, bucket string) (*PayloadArchive, error) {
	if err := store.EnsureBucketExists(ctx, bucket); err != nil {
		return nil, err
	}
	return &PayloadArchive{store: store, bucket: bucket, now: time.Now}, nil
}

// Archive stores body under the delivery's tracking id.
func (a *PayloadArchive) Archive(ctx context.Context, source, trackingID string, body []byte) error {
	if trackingID == "" {
		trackingID = uuid.NewString()
	}
	return a.store.PutObject(ctx, a.bucket, a.key(source, trackingID), payloadContentType, bytes.NewReader(body), int64(len(body)))
}

// Open returns a stored payload. The caller closes the reader.
func (a *PayloadArchive) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	key = strings.TrimPrefix(key, "/")
	if key == "" || path.Clean(key) != key || strings.HasPrefix(key, "..") {
		return nil, ErrInvalidKey
	}
	return a.store.GetObject(ctx, a.bucket, key)
}

func (a *PayloadArchive) key(source, trackingID string) string {
	day := a.now().UTC().Format("2006/01/02")
	return path.Join(source, day, trackingID+".json")
}
