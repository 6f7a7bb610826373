// Package webhook receives lead and booking events pushed by Calendly,
// Facebook Lead Ads, HubSpot and Zapier.
package webhook

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the Postgres-backed delivery log. It is used as the
// Deduper when no Redis is configured.
type Repository struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

// NewRepository creates a new webhook repository.
func NewRepository(pool *pgxpool.Pool, ttl time.Duration) *Repository {
	if ttl <= 0 {
		ttl = defaultDedupTTL
	}
	return &Repository{pool: pool, ttl: ttl}
}

// Claim inserts the delivery key. A key older than the TTL is treated as
// unseen and refreshed.
func (r *Repository) Claim(ctx context.Context, key string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO webhook_events (event_key, received_at)
		VALUES ($1, now())
		ON CONFLICT (event_key) DO UPDATE SET received_at = now()
		WHERE webhook_events.received_at < now() - make_interval(secs => $2)
	`, key, r.ttl.Seconds())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Release deletes the delivery key.
func (r *Repository) Release(ctx context.Context, key string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM webhook_events WHERE event_key = $1`, key)
	return err
}

// Purge removes keys that can no longer suppress a delivery.
func (r *Repository) Purge(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM webhook_events
		WHERE received_at < now() - make_interval(secs => $1)
	`, r.ttl.Seconds())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ Deduper = (*Repository)(nil)
