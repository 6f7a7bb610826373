// Package sources defines the pull side of lead ingestion: remote systems
// the reconciler polls for leads a webhook may have missed.
package sources

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// LeadSource returns raw lead records created or modified since a point in
// time. Records are handed to the normalizer untouched.
type LeadSource interface {
	Name() string
	FetchRecent(ctx context.Context, since time.Time, limit int) ([]map[string]any, error)
}

// ErrNotFound is returned by FetchByID lookups for unknown records.
var ErrNotFound = errors.New("source record not found")

// StatusError is a non-2xx response from a source API.
type StatusError struct {
	Source string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s api returned %d: %s", e.Source, e.Status, e.Body)
}

// Retryable reports whether the failure is on the remote side.
func (e *StatusError) Retryable() bool {
	return e.Status == 429 || e.Status >= 500
}
