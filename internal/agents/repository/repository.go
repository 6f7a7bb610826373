package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound       = errors.New("agent not found")
	ErrDuplicateEmail = errors.New("agent email already exists")
)

type Agent struct {
	ID        uuid.UUID
	Name      string
	Email     string
	Phone     *string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type AgentRepository interface {
	Create(ctx context.Context, params CreateParams) (Agent, error)
	GetByID(ctx context.Context, id uuid.UUID) (Agent, error)
	Update(ctx context.Context, id uuid.UUID, params UpdateParams) (Agent, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, activeOnly bool) ([]Agent, error)
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ AgentRepository = (*Repository)(nil)

type CreateParams struct {
	Name  string
	Email string
	Phone *string
}

type UpdateParams struct {
	Name     *string
	Email    *string
	Phone    *string
	IsActive *bool
}

const agentColumns = `id, name, email, phone, is_active, created_at, updated_at`

func scanAgent(row pgx.Row) (Agent, error) {
	var a Agent
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.Phone, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func translate(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateEmail
	}
	return err
}

func (r *Repository) Create(ctx context.Context, params CreateParams) (Agent, error) {
	a, err := scanAgent(r.pool.QueryRow(ctx, `
		INSERT INTO agents (name, email, phone) VALUES ($1, $2, $3)
		RETURNING `+agentColumns, params.Name, params.Email, params.Phone))
	return a, translate(err)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Agent, error) {
	a, err := scanAgent(r.pool.QueryRow(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = $1`, id))
	return a, translate(err)
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, params UpdateParams) (Agent, error) {
	a, err := scanAgent(r.pool.QueryRow(ctx, `
		UPDATE agents SET
			name = COALESCE($2, name),
			email = COALESCE($3, email),
			phone = COALESCE($4, phone),
			is_active = COALESCE($5, is_active),
			updated_at = now()
		WHERE id = $1
		RETURNING `+agentColumns, id, params.Name, params.Email, params.Phone, params.IsActive))
	return a, translate(err)
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM agents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) List(ctx context.Context, activeOnly bool) ([]Agent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+agentColumns+` FROM agents
		WHERE ($1 = false OR is_active)
		ORDER BY name ASC
	`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	agents := make([]Agent, 0)
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}
