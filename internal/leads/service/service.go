package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/leads/normalizer"
	"leadflow_backend/internal/leads/repository"
	"leadflow_backend/internal/leads/transport"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/phone"

	"github.com/google/uuid"
)

const leadNotFoundMessage = "lead not found"

// WorkflowInitializer starts the follow-up sequence for a newly created lead.
type WorkflowInitializer interface {
	InitializeWorkflow(ctx context.Context, leadID uuid.UUID) bool
}

// Service provides lead CRUD and the inbound upsert policy.
type Service struct {
	repo     repository.LeadRepository
	workflow WorkflowInitializer
	log      *logger.Logger
	now      func() time.Time
}

// New creates a new leads service.
func New(repo repository.LeadRepository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log, now: time.Now}
}

// SetWorkflowInitializer wires the orchestrator used by Ingest.
func (s *Service) SetWorkflowInitializer(w WorkflowInitializer) {
	s.workflow = w
}

// Upsert applies a canonical lead to the store.
//
// Matching order: the (source, external id) reference first; on a miss, a
// lead with the same email is adopted only when it has no reference from
// the same source yet. Otherwise a new lead is created. Records without an
// external id match on email alone.
func (s *Service) Upsert(ctx context.Context, in domain.CanonicalLead) (domain.UpsertResult, error) {
	if in.ExternalID == "" && in.Email == "" && in.Phone == "" {
		return domain.UpsertResult{}, apperr.Validation("lead needs an external id, email or phone")
	}
	if in.Source == "" {
		in.Source = domain.SourceManual
	}
	now := s.now().UTC()

	if in.ExternalID != "" {
		existing, err := s.repo.FindByExternalRef(ctx, in.Source, in.ExternalID)
		switch {
		case err == nil:
			return s.applyUpdate(ctx, existing.ID, in, now, "external_id")
		case !errors.Is(err, repository.ErrNotFound):
			return domain.UpsertResult{}, err
		}
	}

	if in.Email != "" {
		existing, err := s.repo.FindByEmail(ctx, in.Email)
		switch {
		case err == nil:
			adopt := true
			if in.ExternalID != "" {
				linked, err := s.repo.HasRefFromSource(ctx, existing.ID, in.Source)
				if err != nil {
					return domain.UpsertResult{}, err
				}
				// A different record from the same source is a different person
				// sharing an inbox (or a re-created CRM contact); keep them apart.
				adopt = !linked
			}
			if adopt {
				return s.applyUpdate(ctx, existing.ID, in, now, "email")
			}
		case !errors.Is(err, repository.ErrNotFound):
			return domain.UpsertResult{}, err
		}
	}

	created, err := s.repo.CreateWithRef(ctx, repository.CreateLeadParams{
		Email:      in.Email,
		FirstName:  in.FirstName,
		LastName:   in.LastName,
		FullName:   in.FullName,
		Phone:      in.Phone,
		Company:    in.Company,
		Status:     domain.StatusNew,
		Source:     in.Source,
		Fields:     in.Fields,
		ExternalID: in.ExternalID,
		SyncedAt:   &now,
	})
	if errors.Is(err, repository.ErrDuplicateRef) {
		// Lost a race with a concurrent delivery of the same record.
		existing, findErr := s.repo.FindByExternalRef(ctx, in.Source, in.ExternalID)
		if findErr != nil {
			return domain.UpsertResult{}, findErr
		}
		return s.applyUpdate(ctx, existing.ID, in, now, "external_id")
	}
	if err != nil {
		return domain.UpsertResult{}, err
	}

	s.log.WithContext(ctx).Info("lead created", "leadId", created.ID, "source", in.Source, "externalId", in.ExternalID)
	return domain.UpsertResult{Lead: created, Outcome: domain.OutcomeCreated}, nil
}

func (s *Service) applyUpdate(ctx context.Context, id uuid.UUID, in domain.CanonicalLead, now time.Time, matchedBy string) (domain.UpsertResult, error) {
	updated, err := s.repo.ApplySourceUpdate(ctx, id, repository.SourceUpdateParams{
		Email:      in.Email,
		FirstName:  in.FirstName,
		LastName:   in.LastName,
		FullName:   in.FullName,
		Phone:      in.Phone,
		Company:    in.Company,
		Fields:     in.Fields,
		Source:     in.Source,
		ExternalID: in.ExternalID,
		SyncedAt:   now,
	})
	if err != nil {
		return domain.UpsertResult{}, err
	}
	s.log.WithContext(ctx).Debug("lead updated from source", "leadId", id, "source", in.Source, "matchedBy", matchedBy)
	return domain.UpsertResult{Lead: updated, Outcome: domain.OutcomeUpdated, MatchedBy: matchedBy}, nil
}

// Ingest upserts a canonical lead and starts its workflow when it was created.
// A failed workflow initialization is logged and reported, never returned as
// an error: the lead itself was stored.
func (s *Service) Ingest(ctx context.Context, in domain.CanonicalLead) (domain.UpsertResult, bool, error) {
	result, err := s.Upsert(ctx, in)
	if err != nil {
		return domain.UpsertResult{}, false, err
	}
	if !result.Created() || s.workflow == nil {
		return result, false, nil
	}
	return result, s.workflow.InitializeWorkflow(ctx, result.Lead.ID), nil
}

// IngestRaw normalizes a raw source payload and ingests it.
func (s *Service) IngestRaw(ctx context.Context, raw map[string]any, source string) (domain.UpsertResult, bool, error) {
	return s.Ingest(ctx, normalizer.Normalize(raw, source))
}

// Create stores a lead entered by an operator.
func (s *Service) Create(ctx context.Context, req transport.CreateLeadRequest) (transport.IngestResponse, error) {
	source := strings.ToLower(strings.TrimSpace(req.Source))
	if source == "" {
		source = domain.SourceManual
	}
	in := domain.CanonicalLead{
		Source:     source,
		ExternalID: strings.TrimSpace(req.ExternalID),
		Email:      strings.ToLower(strings.TrimSpace(req.Email)),
		FirstName:  strings.TrimSpace(req.FirstName),
		LastName:   strings.TrimSpace(req.LastName),
		Phone:      phone.NormalizeE164(req.Phone),
		Company:    strings.TrimSpace(req.Company),
		Fields:     req.Fields,
	}
	in.FullName = strings.TrimSpace(in.FirstName + " " + in.LastName)

	result, initialized, err := s.Ingest(ctx, in)
	if err != nil {
		return transport.IngestResponse{}, err
	}
	return toIngestResponse(result, initialized), nil
}

// GetByID retrieves a lead with its external references.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.LeadResponse, error) {
	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.LeadResponse{}, mapRepoErr(err)
	}
	return toLeadResponse(lead), nil
}

// Get returns the lead aggregate for internal consumers.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Lead{}, mapRepoErr(err)
	}
	return lead, nil
}

// List retrieves leads with filters and pagination.
func (s *Service) List(ctx context.Context, req transport.ListLeadsRequest) (transport.LeadListResponse, error) {
	page := req.Page
	pageSize := req.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	params := repository.ListParams{
		Search:    strings.TrimSpace(req.Search),
		Offset:    (page - 1) * pageSize,
		Limit:     pageSize,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
	}
	if req.Status != "" {
		status := domain.Status(req.Status)
		params.Status = &status
	}
	if req.Source != "" {
		source := strings.ToLower(req.Source)
		params.Source = &source
	}
	if req.AgentID != "" {
		agentID, err := uuid.Parse(req.AgentID)
		if err != nil {
			return transport.LeadListResponse{}, apperr.Validation("invalid agentId")
		}
		params.AssignedAgentID = &agentID
	}

	items, total, err := s.repo.List(ctx, params)
	if err != nil {
		return transport.LeadListResponse{}, err
	}
	return toLeadListResponse(items, total, page, pageSize), nil
}

// Update edits contact fields on a lead.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req transport.UpdateLeadRequest) (transport.LeadResponse, error) {
	params := repository.UpdateLeadParams{
		FirstName: trimPtr(req.FirstName),
		LastName:  trimPtr(req.LastName),
		Company:   trimPtr(req.Company),
		Fields:    req.Fields,
	}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		params.Email = &email
	}
	if req.Phone != nil {
		normalized := phone.NormalizeE164(*req.Phone)
		params.Phone = &normalized
	}

	lead, err := s.repo.Update(ctx, id, params)
	if err != nil {
		return transport.LeadResponse{}, mapRepoErr(err)
	}
	s.log.WithContext(ctx).Info("lead updated", "leadId", id)
	return toLeadResponse(lead), nil
}

// UpdateStatus sets the lead status.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status) (transport.LeadResponse, error) {
	if !status.Valid() {
		return transport.LeadResponse{}, apperr.Validation("invalid status")
	}
	lead, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return transport.LeadResponse{}, mapRepoErr(err)
	}
	s.log.WithContext(ctx).Info("lead status updated", "leadId", id, "status", status)
	return toLeadResponse(lead), nil
}

// SetStatus updates the status for internal callers (workflow, webhooks).
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status domain.Status) error {
	_, err := s.UpdateStatus(ctx, id, status)
	return err
}

// Assign sets or clears the assigned agent.
func (s *Service) Assign(ctx context.Context, id uuid.UUID, agentID *uuid.UUID) (transport.LeadResponse, error) {
	lead, err := s.repo.Assign(ctx, id, agentID)
	if err != nil {
		return transport.LeadResponse{}, mapRepoErr(err)
	}
	return toLeadResponse(lead), nil
}

// Delete soft-deletes a lead.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapRepoErr(err)
	}
	s.log.WithContext(ctx).Info("lead deleted", "leadId", id)
	return nil
}

func mapRepoErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(leadNotFoundMessage)
	}
	return err
}

func trimPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	return &trimmed
}
