package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound    = errors.New("feedback not found")
	ErrUnknownLead = errors.New("feedback references an unknown lead or meeting")
)

type Feedback struct {
	ID        uuid.UUID
	LeadID    uuid.UUID
	MeetingID *uuid.UUID
	Rating    int
	Comment   string
	CreatedAt time.Time
}

type FeedbackRepository interface {
	Create(ctx context.Context, params CreateParams) (Feedback, error)
	GetByID(ctx context.Context, id uuid.UUID) (Feedback, error)
	Update(ctx context.Context, id uuid.UUID, params UpdateParams) (Feedback, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, params ListParams) ([]Feedback, int, error)
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ FeedbackRepository = (*Repository)(nil)

type CreateParams struct {
	LeadID    uuid.UUID
	MeetingID *uuid.UUID
	Rating    int
	Comment   string
}

type UpdateParams struct {
	Rating  *int
	Comment *string
}

type ListParams struct {
	LeadID    *uuid.UUID
	MeetingID *uuid.UUID
	MinRating *int
	Offset    int
	Limit     int
}

const feedbackColumns = `id, lead_id, meeting_id, rating, comment, created_at`

func scanFeedback(row pgx.Row) (Feedback, error) {
	var f Feedback
	err := row.Scan(&f.ID, &f.LeadID, &f.MeetingID, &f.Rating, &f.Comment, &f.CreatedAt)
	return f, err
}

func translate(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return ErrUnknownLead
	}
	return err
}

func (r *Repository) Create(ctx context.Context, params CreateParams) (Feedback, error) {
	f, err := scanFeedback(r.pool.QueryRow(ctx, `
		INSERT INTO feedback (lead_id, meeting_id, rating, comment) VALUES ($1, $2, $3, $4)
		RETURNING `+feedbackColumns, params.LeadID, params.MeetingID, params.Rating, params.Comment))
	return f, translate(err)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Feedback, error) {
	f, err := scanFeedback(r.pool.QueryRow(ctx, `SELECT `+feedbackColumns+` FROM feedback WHERE id = $1`, id))
	return f, translate(err)
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, params UpdateParams) (Feedback, error) {
	f, err := scanFeedback(r.pool.QueryRow(ctx, `
		UPDATE feedback SET
			rating = COALESCE($2, rating),
			comment = COALESCE($3, comment)
		WHERE id = $1
		RETURNING `+feedbackColumns, id, params.Rating, params.Comment))
	return f, translate(err)
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM feedback WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func buildFeedbackListWhere(params ListParams) (string, []interface{}) {
	clauses := []string{"1=1"}
	args := make([]interface{}, 0, 3)
	addEquals := func(column string, value interface{}) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if params.LeadID != nil {
		addEquals("lead_id", *params.LeadID)
	}
	if params.MeetingID != nil {
		addEquals("meeting_id", *params.MeetingID)
	}
	if params.MinRating != nil {
		args = append(args, *params.MinRating)
		clauses = append(clauses, fmt.Sprintf("rating >= $%d", len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

func (r *Repository) List(ctx context.Context, params ListParams) ([]Feedback, int, error) {
	where, args := buildFeedbackListWhere(params)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM feedback WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, params.Limit, params.Offset)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM feedback
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, feedbackColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]Feedback, 0)
	for rows.Next() {
		f, err := scanFeedback(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, f)
	}
	return items, total, rows.Err()
}
