package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("lead not found")
	// ErrDuplicateRef is returned when another writer linked the same
	// (source, external id) first.
	ErrDuplicateRef = errors.New("external reference already linked")
)

const uniqueViolation = "23505"

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type CreateLeadParams struct {
	Email           string
	FirstName       string
	LastName        string
	FullName        string
	Phone           string
	Company         string
	Status          domain.Status
	AssignedAgentID *uuid.UUID
	Source          string
	Fields          map[string]any
	// ExternalID is linked in the same transaction when set.
	ExternalID string
	SyncedAt   *time.Time
}

// SourceUpdateParams carries fresh source data onto an existing lead. Empty
// values leave the stored value untouched; Fields are merged key by key.
type SourceUpdateParams struct {
	Email      string
	FirstName  string
	LastName   string
	FullName   string
	Phone      string
	Company    string
	Fields     map[string]any
	Source     string
	ExternalID string
	SyncedAt   time.Time
}

type UpdateLeadParams struct {
	Email     *string
	FirstName *string
	LastName  *string
	Phone     *string
	Company   *string
	Fields    map[string]any
}

const leadColumns = `l.id, l.email, l.first_name, l.last_name, l.full_name, l.phone, l.company, l.status,
	l.assigned_agent_id, l.source, l.fields, l.created_at, l.updated_at, l.last_source_sync_at, l.workflow_initialized_at`

func scanLead(row pgx.Row) (domain.Lead, error) {
	var (
		lead    domain.Lead
		email   *string
		phone   *string
		company *string
		status  string
		fields  []byte
	)
	err := row.Scan(
		&lead.ID, &email, &lead.FirstName, &lead.LastName, &lead.FullName, &phone, &company, &status,
		&lead.AssignedAgentID, &lead.Source, &fields, &lead.CreatedAt, &lead.UpdatedAt,
		&lead.LastSourceSyncAt, &lead.WorkflowInitializedAt,
	)
	if err != nil {
		return domain.Lead{}, err
	}
	lead.Email = deref(email)
	lead.Phone = deref(phone)
	lead.Company = deref(company)
	lead.Status = domain.Status(status)
	lead.Fields = map[string]any{}
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &lead.Fields); err != nil {
			return domain.Lead{}, fmt.Errorf("decode lead fields: %w", err)
		}
	}
	return lead, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads l WHERE l.id = $1 AND l.deleted_at IS NULL
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	if err != nil {
		return domain.Lead{}, err
	}

	refs, err := r.listRefs(ctx, id)
	if err != nil {
		return domain.Lead{}, err
	}
	lead.ExternalRefs = refs
	return lead, nil
}

func (r *Repository) listRefs(ctx context.Context, leadID uuid.UUID) ([]domain.ExternalRef, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT source, external_id FROM lead_external_refs WHERE lead_id = $1 ORDER BY created_at ASC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refs := make([]domain.ExternalRef, 0)
	for rows.Next() {
		var ref domain.ExternalRef
		if err := rows.Scan(&ref.Source, &ref.ExternalID); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func (r *Repository) FindByExternalRef(ctx context.Context, source, externalID string) (domain.Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads l
		JOIN lead_external_refs ref ON ref.lead_id = l.id
		WHERE ref.source = $1 AND ref.external_id = $2 AND l.deleted_at IS NULL
	`, source, externalID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	return lead, err
}

// FindByEmail returns the oldest live lead with the given email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (domain.Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads l
		WHERE lower(l.email) = lower($1) AND l.deleted_at IS NULL
		ORDER BY l.created_at ASC
		LIMIT 1
	`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	return lead, err
}

func (r *Repository) HasRefFromSource(ctx context.Context, leadID uuid.UUID, source string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM lead_external_refs WHERE lead_id = $1 AND source = $2)
	`, leadID, source).Scan(&exists)
	return exists, err
}

// CreateWithRef inserts a lead and, when params.ExternalID is set, its
// external reference in one transaction.
func (r *Repository) CreateWithRef(ctx context.Context, params CreateLeadParams) (domain.Lead, error) {
	fields, err := json.Marshal(nonNilFields(params.Fields))
	if err != nil {
		return domain.Lead{}, err
	}
	status := params.Status
	if status == "" {
		status = domain.StatusNew
	}

	var lead domain.Lead
	err = db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		created, err := scanLead(tx.QueryRow(ctx, `
			INSERT INTO leads AS l (email, first_name, last_name, full_name, phone, company, status,
				assigned_agent_id, source, fields, last_source_sync_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING `+leadColumns,
			nullable(params.Email), params.FirstName, params.LastName, params.FullName, nullable(params.Phone),
			nullable(params.Company), string(status), params.AssignedAgentID, params.Source, fields, params.SyncedAt,
		))
		if err != nil {
			return err
		}

		if params.ExternalID != "" {
			if _, err := tx.Exec(ctx, `
				INSERT INTO lead_external_refs (lead_id, source, external_id) VALUES ($1, $2, $3)
			`, created.ID, params.Source, params.ExternalID); err != nil {
				if isUniqueViolation(err) {
					return ErrDuplicateRef
				}
				return err
			}
			created.ExternalRefs = []domain.ExternalRef{{Source: params.Source, ExternalID: params.ExternalID}}
		}
		lead = created
		return nil
	})
	if err != nil {
		return domain.Lead{}, err
	}
	return lead, nil
}

// ApplySourceUpdate merges source data into an existing lead and links the
// external reference if it is not linked yet.
func (r *Repository) ApplySourceUpdate(ctx context.Context, id uuid.UUID, params SourceUpdateParams) (domain.Lead, error) {
	fields, err := json.Marshal(nonNilFields(params.Fields))
	if err != nil {
		return domain.Lead{}, err
	}

	var lead domain.Lead
	err = db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		updated, err := scanLead(tx.QueryRow(ctx, `
			UPDATE leads AS l SET
				email = COALESCE(NULLIF($2, ''), l.email),
				first_name = COALESCE(NULLIF($3, ''), l.first_name),
				last_name = COALESCE(NULLIF($4, ''), l.last_name),
				full_name = COALESCE(NULLIF($5, ''), l.full_name),
				phone = COALESCE(NULLIF($6, ''), l.phone),
				company = COALESCE(NULLIF($7, ''), l.company),
				fields = l.fields || $8::jsonb,
				last_source_sync_at = $9,
				updated_at = now()
			WHERE l.id = $1 AND l.deleted_at IS NULL
			RETURNING `+leadColumns,
			id, params.Email, params.FirstName, params.LastName, params.FullName, params.Phone, params.Company,
			fields, params.SyncedAt,
		))
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		if params.ExternalID != "" && params.Source != "" {
			tag, err := tx.Exec(ctx, `
				INSERT INTO lead_external_refs (lead_id, source, external_id) VALUES ($1, $2, $3)
				ON CONFLICT (source, external_id) DO NOTHING
			`, id, params.Source, params.ExternalID)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				var owner uuid.UUID
				if err := tx.QueryRow(ctx, `
					SELECT lead_id FROM lead_external_refs WHERE source = $1 AND external_id = $2
				`, params.Source, params.ExternalID).Scan(&owner); err != nil {
					return err
				}
				if owner != id {
					return ErrDuplicateRef
				}
			}
		}
		lead = updated
		return nil
	})
	if err != nil {
		return domain.Lead{}, err
	}
	return lead, nil
}

type ListParams struct {
	Status          *domain.Status
	Source          *string
	AssignedAgentID *uuid.UUID
	Search          string
	CreatedAtFrom   *time.Time
	CreatedAtTo     *time.Time
	Offset          int
	Limit           int
	SortBy          string
	SortOrder       string
}

func (r *Repository) List(ctx context.Context, params ListParams) ([]domain.Lead, int, error) {
	whereClause, args, argIdx := buildLeadListWhere(params)

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM leads l WHERE %s", whereClause)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sortOrder := "DESC"
	if params.SortOrder == "asc" {
		sortOrder = "ASC"
	}

	args = append(args, params.Limit, params.Offset)
	query := fmt.Sprintf(`
		SELECT %s
		FROM leads l
		WHERE %s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d
	`, leadColumns, whereClause, mapLeadSortColumn(params.SortBy), sortOrder, argIdx, argIdx+1)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	leads := make([]domain.Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, 0, err
		}
		leads = append(leads, lead)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}

	return leads, total, nil
}

func buildLeadListWhere(params ListParams) (string, []interface{}, int) {
	whereClauses := []string{"l.deleted_at IS NULL"}
	args := []interface{}{}
	argIdx := 1

	addEquals := func(column string, value interface{}) {
		whereClauses = append(whereClauses, fmt.Sprintf("%s = $%d", column, argIdx))
		args = append(args, value)
		argIdx++
	}

	if params.Status != nil {
		addEquals("l.status", string(*params.Status))
	}
	if params.Source != nil {
		addEquals("l.source", *params.Source)
	}
	if params.AssignedAgentID != nil {
		addEquals("l.assigned_agent_id", *params.AssignedAgentID)
	}
	if params.Search != "" {
		whereClauses = append(whereClauses, fmt.Sprintf(
			"(l.full_name ILIKE $%d OR l.email ILIKE $%d OR l.phone ILIKE $%d OR l.company ILIKE $%d)",
			argIdx, argIdx, argIdx, argIdx,
		))
		args = append(args, "%"+params.Search+"%")
		argIdx++
	}
	if params.CreatedAtFrom != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("l.created_at >= $%d", argIdx))
		args = append(args, *params.CreatedAtFrom)
		argIdx++
	}
	if params.CreatedAtTo != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("l.created_at < $%d", argIdx))
		args = append(args, *params.CreatedAtTo)
		argIdx++
	}

	return strings.Join(whereClauses, " AND "), args, argIdx
}

func mapLeadSortColumn(sortBy string) string {
	switch sortBy {
	case "name":
		return "l.full_name"
	case "status":
		return "l.status"
	case "updatedAt":
		return "l.updated_at"
	default:
		return "l.created_at"
	}
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, params UpdateLeadParams) (domain.Lead, error) {
	var fields []byte
	if params.Fields != nil {
		encoded, err := json.Marshal(params.Fields)
		if err != nil {
			return domain.Lead{}, err
		}
		fields = encoded
	}

	lead, err := scanLead(r.pool.QueryRow(ctx, `
		UPDATE leads AS l SET
			email = COALESCE($2, l.email),
			first_name = COALESCE($3, l.first_name),
			last_name = COALESCE($4, l.last_name),
			full_name = CASE WHEN $3::text IS NULL AND $4::text IS NULL THEN l.full_name
				ELSE trim(COALESCE($3, l.first_name) || ' ' || COALESCE($4, l.last_name)) END,
			phone = COALESCE($5, l.phone),
			company = COALESCE($6, l.company),
			fields = CASE WHEN $7::jsonb IS NULL THEN l.fields ELSE l.fields || $7::jsonb END,
			updated_at = now()
		WHERE l.id = $1 AND l.deleted_at IS NULL
		RETURNING `+leadColumns,
		id, params.Email, params.FirstName, params.LastName, params.Phone, params.Company, fields,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	return lead, err
}

func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status) (domain.Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		UPDATE leads AS l SET status = $2, updated_at = now()
		WHERE l.id = $1 AND l.deleted_at IS NULL
		RETURNING `+leadColumns,
		id, string(status),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	return lead, err
}

func (r *Repository) Assign(ctx context.Context, id uuid.UUID, agentID *uuid.UUID) (domain.Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		UPDATE leads AS l SET assigned_agent_id = $2, updated_at = now()
		WHERE l.id = $1 AND l.deleted_at IS NULL
		RETURNING `+leadColumns,
		id, agentID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	return lead, err
}

// Delete soft-deletes a lead. Its workflow jobs stay for the audit trail.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE leads SET deleted_at = now(), updated_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByStatus returns live lead counts keyed by status.
func (r *Repository) CountByStatus(ctx context.Context) (map[domain.Status]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM leads WHERE deleted_at IS NULL GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.Status]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[domain.Status(status)] = count
	}
	return counts, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func nonNilFields(fields map[string]any) map[string]any {
	if fields == nil {
		return map[string]any{}
	}
	return fields
}
