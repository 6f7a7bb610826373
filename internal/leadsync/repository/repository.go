package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"leadflow_backend/internal/leadsync/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CheckpointStore persists one checkpoint per source.
type CheckpointStore interface {
	Get(ctx context.Context, source string) (domain.Checkpoint, bool, error)
	// Save stores the report and moves the checkpoint to syncTime unless the
	// stored value is already later.
	Save(ctx context.Context, source string, syncTime time.Time, report domain.SyncResult) error
	List(ctx context.Context) ([]domain.Checkpoint, error)
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ CheckpointStore = (*Repository)(nil)

func (r *Repository) Get(ctx context.Context, source string) (domain.Checkpoint, bool, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT source, last_sync_time, last_report, updated_at
		FROM sync_status
		WHERE source = $1
	`, source)

	cp, err := scanCheckpoint(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Checkpoint{}, false, nil
	}
	if err != nil {
		return domain.Checkpoint{}, false, err
	}
	return cp, true, nil
}

func (r *Repository) Save(ctx context.Context, source string, syncTime time.Time, report domain.SyncResult) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode sync report: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO sync_status (source, last_sync_time, last_report, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (source) DO UPDATE SET
			last_sync_time = GREATEST(sync_status.last_sync_time, EXCLUDED.last_sync_time),
			last_report = EXCLUDED.last_report,
			updated_at = now()
	`, source, syncTime, data)
	return err
}

func (r *Repository) List(ctx context.Context) ([]domain.Checkpoint, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT source, last_sync_time, last_report, updated_at
		FROM sync_status
		ORDER BY source
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

func scanCheckpoint(row pgx.Row) (domain.Checkpoint, error) {
	var (
		cp     domain.Checkpoint
		report []byte
	)
	if err := row.Scan(&cp.Source, &cp.LastSyncTime, &report, &cp.UpdatedAt); err != nil {
		return domain.Checkpoint{}, err
	}
	if len(report) > 0 {
		var decoded domain.SyncResult
		if err := json.Unmarshal(report, &decoded); err == nil {
			cp.LastReport = &decoded
		}
	}
	return cp, nil
}
