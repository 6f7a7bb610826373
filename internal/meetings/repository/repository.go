package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"leadflow_backend/internal/meetings/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound     = errors.New("meeting not found")
	ErrLeadNotFound = errors.New("lead not found")
)

// MeetingRepository is the persistence the meetings service needs.
type MeetingRepository interface {
	Upsert(ctx context.Context, params UpsertParams) (domain.Meeting, bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Meeting, error)
	GetByExternalID(ctx context.Context, externalID string) (domain.Meeting, error)
	FindUpcomingScheduled(ctx context.Context, leadID uuid.UUID, now time.Time) (domain.Meeting, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status) (domain.Meeting, error)
	Update(ctx context.Context, id uuid.UUID, params UpdateParams) (domain.Meeting, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, params ListParams) ([]domain.Meeting, int, error)
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ MeetingRepository = (*Repository)(nil)

type UpsertParams struct {
	LeadID          uuid.UUID
	ExternalEventID string
	StartTime       time.Time
	EndTime         time.Time
	Status          domain.Status
	Location        string
	Source          string
}

type UpdateParams struct {
	StartTime *time.Time
	EndTime   *time.Time
	Location  *string
}

type ListParams struct {
	LeadID *uuid.UUID
	Status *domain.Status
	From   *time.Time
	To     *time.Time
	Offset int
	Limit  int
}

const meetingColumns = `id, lead_id, external_event_id, start_time, end_time, status, location, source, created_at, updated_at`

func scanMeeting(row pgx.Row, extra ...any) (domain.Meeting, error) {
	var m domain.Meeting
	var status string
	dest := append([]any{
		&m.ID, &m.LeadID, &m.ExternalEventID, &m.StartTime, &m.EndTime, &status, &m.Location, &m.Source,
		&m.CreatedAt, &m.UpdatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return domain.Meeting{}, err
	}
	m.Status = domain.Status(status)
	return m, nil
}

// Upsert inserts a meeting or refreshes the one with the same external event
// id. The boolean reports whether a new row was inserted.
func (r *Repository) Upsert(ctx context.Context, params UpsertParams) (domain.Meeting, bool, error) {
	status := params.Status
	if status == "" {
		status = domain.StatusScheduled
	}
	var inserted bool
	m, err := scanMeeting(r.pool.QueryRow(ctx, `
		INSERT INTO meetings (lead_id, external_event_id, start_time, end_time, status, location, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (external_event_id) DO UPDATE SET
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			location = CASE WHEN EXCLUDED.location <> '' THEN EXCLUDED.location ELSE meetings.location END,
			updated_at = now()
		RETURNING `+meetingColumns+`, (xmax = 0)
	`, params.LeadID, params.ExternalEventID, params.StartTime, params.EndTime, string(status), params.Location, params.Source), &inserted)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return domain.Meeting{}, false, ErrLeadNotFound
		}
		return domain.Meeting{}, false, err
	}
	return m, inserted, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (domain.Meeting, error) {
	m, err := scanMeeting(r.pool.QueryRow(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Meeting{}, ErrNotFound
	}
	return m, err
}

func (r *Repository) GetByExternalID(ctx context.Context, externalID string) (domain.Meeting, error) {
	m, err := scanMeeting(r.pool.QueryRow(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE external_event_id = $1`, externalID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Meeting{}, ErrNotFound
	}
	return m, err
}

// FindUpcomingScheduled returns the lead's next scheduled meeting.
func (r *Repository) FindUpcomingScheduled(ctx context.Context, leadID uuid.UUID, now time.Time) (domain.Meeting, error) {
	m, err := scanMeeting(r.pool.QueryRow(ctx, `
		SELECT `+meetingColumns+`
		FROM meetings
		WHERE lead_id = $1 AND status = 'scheduled' AND start_time > $2
		ORDER BY start_time ASC
		LIMIT 1
	`, leadID, now))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Meeting{}, ErrNotFound
	}
	return m, err
}

func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status) (domain.Meeting, error) {
	m, err := scanMeeting(r.pool.QueryRow(ctx, `
		UPDATE meetings SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+meetingColumns, id, string(status)))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Meeting{}, ErrNotFound
	}
	return m, err
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, params UpdateParams) (domain.Meeting, error) {
	m, err := scanMeeting(r.pool.QueryRow(ctx, `
		UPDATE meetings SET
			start_time = COALESCE($2, start_time),
			end_time = COALESCE($3, end_time),
			location = COALESCE($4, location),
			updated_at = now()
		WHERE id = $1
		RETURNING `+meetingColumns, id, params.StartTime, params.EndTime, params.Location))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Meeting{}, ErrNotFound
	}
	return m, err
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM meetings WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) List(ctx context.Context, params ListParams) ([]domain.Meeting, int, error) {
	whereClause, args, argIdx := buildMeetingListWhere(params)

	var total int
	if err := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM meetings WHERE %s", whereClause), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, params.Limit, params.Offset)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM meetings
		WHERE %s
		ORDER BY start_time DESC
		LIMIT $%d OFFSET $%d
	`, meetingColumns, whereClause, argIdx, argIdx+1), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]domain.Meeting, 0)
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}
	return items, total, nil
}

func buildMeetingListWhere(params ListParams) (string, []interface{}, int) {
	whereClauses := []string{"1=1"}
	args := []interface{}{}
	argIdx := 1

	add := func(clause string, value interface{}) {
		whereClauses = append(whereClauses, fmt.Sprintf(clause, argIdx))
		args = append(args, value)
		argIdx++
	}

	if params.LeadID != nil {
		add("lead_id = $%d", *params.LeadID)
	}
	if params.Status != nil {
		add("status = $%d", string(*params.Status))
	}
	if params.From != nil {
		add("start_time >= $%d", *params.From)
	}
	if params.To != nil {
		add("start_time < $%d", *params.To)
	}

	return strings.Join(whereClauses, " AND "), args, argIdx
}
