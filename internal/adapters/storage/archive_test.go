package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

type memStore struct {
	buckets map[string]bool
	objects map[string][]byte
	types   map[string]string
}

func newMemStore() *memStore {
	return &memStore{buckets: map[string]bool{}, objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memStore) EnsureBucketExists(_ context.Context, bucket string) error {
	m.buckets[bucket] = true
	return nil
}

func (m *memStore) PutObject(_ context.Context, bucket, key, contentType string, reader io.Reader, size int64) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return errors.New("size mismatch")
	}
	m.objects[bucket+"/"+key] = data
	m.types[bucket+"/"+key] = contentType
	return nil
}

func (m *memStore) GetObject(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	data, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func TestPayloadArchiveLayout(t *testing.T) {
	store := newMemStore()
	archive, err := NewPayloadArchive(context.Background(), store, "webhook-payloads")
	if err != nil {
		t.Fatalf("new archive: %v", err)
	}
	archive.now = func() time.Time { return time.Date(2026, 3, 2, 23, 30, 0, 0, time.UTC) }

	if !store.buckets["webhook-payloads"] {
		t.Fatal("expected bucket to be ensured")
	}
	body := []byte(`{"event":"invitee.created"}`)
	if err := archive.Archive(context.Background(), "calendly", "01JNB0000000000000000000AA", body); err != nil {
		t.Fatalf("archive: %v", err)
	}

	key := "calendly/2026/03/02/01JNB0000000000000000000AA.json"
	if string(store.objects["webhook-payloads/"+key]) != string(body) {
		t.Fatalf("expected payload at %s, have %v", key, store.objects)
	}
	if store.types["webhook-payloads/"+key] != payloadContentType {
		t.Fatalf("unexpected content type %q", store.types["webhook-payloads/"+key])
	}

	rc, err := archive.Open(context.Background(), "/"+key)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != string(body) {
		t.Fatalf("unexpected body %q", got)
	}
}

func TestPayloadArchiveGeneratesKeyWithoutTrackingID(t *testing.T) {
	store := newMemStore()
	archive, _ := NewPayloadArchive(context.Background(), store, "b")

	if err := archive.Archive(context.Background(), "zapier", "", []byte(`{}`)); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if len(store.objects) != 1 {
		t.Fatalf("expected one object, got %d", len(store.objects))
	}
	for k := range store.objects {
		if !strings.HasPrefix(k, "b/zapier/") || !strings.HasSuffix(k, ".json") {
			t.Fatalf("unexpected key %s", k)
		}
	}
}

func TestPayloadArchiveRejectsTraversal(t *testing.T) {
	archive, _ := NewPayloadArchive(context.Background(), newMemStore(), "b")
	for _, key := range []string{"", "../etc/passwd", "calendly/../../x", "a//b"} {
		if _, err := archive.Open(context.Background(), key); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("expected %q to be rejected, got %v", key, err)
		}
	}
}
