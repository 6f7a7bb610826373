package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"leadflow_backend/internal/workflow/domain"
	"leadflow_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound     = errors.New("workflow job not found")
	ErrLeadNotFound = errors.New("lead not found")
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var (
	_ Store  = (*Repository)(nil)
	_ Lister = (*Repository)(nil)
)

const jobColumns = `id, lead_id, workflow_type, step, scheduled_at, status, retry_count, max_retries,
	error_message, metadata, created_at, updated_at, completed_at`

func scanJob(row pgx.Row) (domain.Job, error) {
	var (
		job      domain.Job
		wfType   string
		step     string
		status   string
		metadata []byte
	)
	err := row.Scan(
		&job.ID, &job.LeadID, &wfType, &step, &job.ScheduledAt, &status, &job.RetryCount, &job.MaxRetries,
		&job.ErrorMessage, &metadata, &job.CreatedAt, &job.UpdatedAt, &job.CompletedAt,
	)
	if err != nil {
		return domain.Job{}, err
	}
	job.WorkflowType = domain.Type(wfType)
	job.Step = domain.Step(step)
	job.Status = domain.Status(status)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &job.Metadata); err != nil {
			return domain.Job{}, fmt.Errorf("decode job metadata: %w", err)
		}
	}
	return job, nil
}

func collectJobs(rows pgx.Rows) ([]domain.Job, error) {
	defer rows.Close()
	jobs := make([]domain.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertJob(ctx context.Context, q querier, job domain.NewJob) (domain.Job, error) {
	meta, err := json.Marshal(job.Metadata)
	if err != nil {
		return domain.Job{}, fmt.Errorf("marshal job metadata: %w", err)
	}
	return scanJob(q.QueryRow(ctx, `
		INSERT INTO workflow_automation (lead_id, workflow_type, step, scheduled_at, max_retries, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+jobColumns,
		job.LeadID, string(job.WorkflowType), string(job.Step), job.ScheduledAt, job.MaxRetries, meta,
	))
}

func (r *Repository) InitializeBatch(ctx context.Context, leadID uuid.UUID, jobs []domain.NewJob) (bool, error) {
	inserted := false
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE leads SET workflow_initialized_at = now(), updated_at = now()
			WHERE id = $1 AND workflow_initialized_at IS NULL AND deleted_at IS NULL
		`, leadID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM leads WHERE id = $1 AND deleted_at IS NULL)`, leadID).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return ErrLeadNotFound
			}
			return nil
		}

		for _, job := range jobs {
			if _, err := insertJob(ctx, tx, job); err != nil {
				return err
			}
		}
		inserted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

func (r *Repository) InsertJobs(ctx context.Context, jobs []domain.NewJob) ([]domain.Job, error) {
	created := make([]domain.Job, 0, len(jobs))
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, job := range jobs {
			row, err := insertJob(ctx, tx, job)
			if err != nil {
				return err
			}
			created = append(created, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *Repository) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Job, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM workflow_automation
		WHERE status = 'pending' AND scheduled_at <= $1 AND retry_count < max_retries
		ORDER BY scheduled_at ASC, workflow_type ASC
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	return collectJobs(rows)
}

func (r *Repository) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE workflow_automation
		SET status = 'processing', updated_at = now()
		WHERE id = $1 AND status = 'pending'
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repository) MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time, meta domain.Metadata) error {
	encoded, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal job metadata: %w", err)
	}
	return r.finish(ctx, `
		UPDATE workflow_automation
		SET status = 'completed', completed_at = $2, metadata = $3, error_message = NULL, updated_at = now()
		WHERE id = $1 AND status = 'processing'
	`, id, at, encoded)
}

func (r *Repository) MarkSkipped(ctx context.Context, id uuid.UUID, at time.Time, reason string) error {
	return r.finish(ctx, `
		UPDATE workflow_automation
		SET status = 'skipped', completed_at = $2, error_message = NULLIF($3, ''), updated_at = now()
		WHERE id = $1 AND status = 'processing'
	`, id, at, reason)
}

func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, retryCount int, message string) error {
	return r.finish(ctx, `
		UPDATE workflow_automation
		SET status = 'failed', retry_count = $2, error_message = $3, updated_at = now()
		WHERE id = $1 AND status = 'processing'
	`, id, retryCount, message)
}

func (r *Repository) Reschedule(ctx context.Context, id uuid.UUID, retryCount int, at time.Time, message string) error {
	return r.finish(ctx, `
		UPDATE workflow_automation
		SET status = 'pending', retry_count = $2, scheduled_at = $3, error_message = $4, updated_at = now()
		WHERE id = $1 AND status = 'processing'
	`, id, retryCount, at, message)
}

// finish applies a transition out of processing. A job that is no longer
// processing is reported as ErrNotFound.
func (r *Repository) finish(ctx context.Context, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ScheduleMeeting supersedes the lead's pending reminder sequence and inserts
// meeting jobs, unless live jobs for the meeting at this start time already
// exist. Pending jobs for an earlier start of the same meeting are skipped.
// The lead row is locked so concurrent deliveries for the same lead serialize.
func (r *Repository) ScheduleMeeting(ctx context.Context, leadID uuid.UUID, meetingID, meetingStart string, jobs []domain.NewJob) (MeetingScheduleResult, error) {
	var result MeetingScheduleResult
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var locked uuid.UUID
		err := tx.QueryRow(ctx, `SELECT id FROM leads WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, leadID).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrLeadNotFound
		}
		if err != nil {
			return err
		}

		var exists bool
		if err := tx.QueryRow(ctx, `
			SELECT EXISTS(
				SELECT 1 FROM workflow_automation
				WHERE lead_id = $1 AND metadata->>'meetingId' = $2 AND metadata->>'meetingStart' = $3
				  AND status <> 'skipped'
			)
		`, leadID, meetingID, meetingStart).Scan(&exists); err != nil {
			return err
		}
		if exists {
			result.AlreadyScheduled = true
			return nil
		}

		tag, err := tx.Exec(ctx, `
			UPDATE workflow_automation
			SET status = 'skipped', error_message = $2, completed_at = now(), updated_at = now()
			WHERE lead_id = $1 AND workflow_type = 'reminder_sequence' AND status = 'pending'
		`, leadID, "superseded by meeting "+meetingID)
		if err != nil {
			return err
		}
		result.Superseded = int(tag.RowsAffected())

		tag, err = tx.Exec(ctx, `
			UPDATE workflow_automation
			SET status = 'skipped', error_message = 'meeting moved', completed_at = now(), updated_at = now()
			WHERE lead_id = $1 AND metadata->>'meetingId' = $2
			  AND metadata->>'meetingStart' IS DISTINCT FROM $3 AND status = 'pending'
		`, leadID, meetingID, meetingStart)
		if err != nil {
			return err
		}
		result.Moved = int(tag.RowsAffected())

		for _, job := range jobs {
			if _, err := insertJob(ctx, tx, job); err != nil {
				return err
			}
			result.Inserted++
		}
		return nil
	})
	if err != nil {
		return MeetingScheduleResult{}, err
	}
	return result, nil
}

// SkipMeetingJobs skips pending jobs tied to a meeting.
func (r *Repository) SkipMeetingJobs(ctx context.Context, meetingID string, reason string) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE workflow_automation
		SET status = 'skipped', error_message = $2, completed_at = now(), updated_at = now()
		WHERE metadata->>'meetingId' = $1 AND status = 'pending'
	`, meetingID, reason)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// ReleaseStale treats jobs stuck in processing since before olderThan as a
// failed attempt: the retry count goes up and the job is rescheduled at
// retryAt, or failed once its retries are used up.
func (r *Repository) ReleaseStale(ctx context.Context, olderThan, retryAt time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE workflow_automation
		SET status = CASE WHEN retry_count + 1 >= max_retries THEN 'failed' ELSE 'pending' END,
		    retry_count = retry_count + 1,
		    scheduled_at = $2,
		    error_message = 'released after stalled processing',
		    updated_at = now()
		WHERE status = 'processing' AND updated_at < $1
	`, olderThan, retryAt)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *Repository) ListByLead(ctx context.Context, leadID uuid.UUID) ([]domain.Job, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM workflow_automation
		WHERE lead_id = $1
		ORDER BY scheduled_at ASC, workflow_type ASC
	`, leadID)
	if err != nil {
		return nil, err
	}
	return collectJobs(rows)
}

type ListParams struct {
	Status       *domain.Status
	WorkflowType *domain.Type
	LeadID       *uuid.UUID
	Offset       int
	Limit        int
}

func (r *Repository) List(ctx context.Context, params ListParams) ([]domain.Job, int, error) {
	whereClause, args, argIdx := buildJobListWhere(params)

	var total int
	if err := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM workflow_automation WHERE %s", whereClause), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, params.Limit, params.Offset)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM workflow_automation
		WHERE %s
		ORDER BY scheduled_at DESC
		LIMIT $%d OFFSET $%d
	`, jobColumns, whereClause, argIdx, argIdx+1), args...)
	if err != nil {
		return nil, 0, err
	}
	jobs, err := collectJobs(rows)
	if err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

func buildJobListWhere(params ListParams) (string, []interface{}, int) {
	whereClauses := []string{"1=1"}
	args := []interface{}{}
	argIdx := 1

	addEquals := func(column string, value interface{}) {
		whereClauses = append(whereClauses, fmt.Sprintf("%s = $%d", column, argIdx))
		args = append(args, value)
		argIdx++
	}

	if params.Status != nil {
		addEquals("status", string(*params.Status))
	}
	if params.WorkflowType != nil {
		addEquals("workflow_type", string(*params.WorkflowType))
	}
	if params.LeadID != nil {
		addEquals("lead_id", *params.LeadID)
	}

	return strings.Join(whereClauses, " AND "), args, argIdx
}
