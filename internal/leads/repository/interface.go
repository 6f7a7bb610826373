package repository

import (
	"context"

	"leadflow_backend/internal/leads/domain"

	"github.com/google/uuid"
)

// LeadReader provides read-only access to lead data.
type LeadReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	List(ctx context.Context, params ListParams) ([]domain.Lead, int, error)
}

// LeadWriter provides write operations for lead management.
type LeadWriter interface {
	Update(ctx context.Context, id uuid.UUID, params UpdateLeadParams) (domain.Lead, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status) (domain.Lead, error)
	Assign(ctx context.Context, id uuid.UUID, agentID *uuid.UUID) (domain.Lead, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// UpsertStore is the data access the upsert policy needs.
type UpsertStore interface {
	FindByExternalRef(ctx context.Context, source, externalID string) (domain.Lead, error)
	FindByEmail(ctx context.Context, email string) (domain.Lead, error)
	HasRefFromSource(ctx context.Context, leadID uuid.UUID, source string) (bool, error)
	CreateWithRef(ctx context.Context, params CreateLeadParams) (domain.Lead, error)
	ApplySourceUpdate(ctx context.Context, id uuid.UUID, params SourceUpdateParams) (domain.Lead, error)
}

// LeadRepository is the full repository surface used by the leads service.
type LeadRepository interface {
	LeadReader
	LeadWriter
	UpsertStore
}

// Compile-time check that Repository implements LeadRepository.
var _ LeadRepository = (*Repository)(nil)
