package service

import (
	"context"
	"errors"
	"strings"

	"leadflow_backend/internal/agents/repository"
	"leadflow_backend/internal/agents/transport"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/phone"

	"github.com/google/uuid"
)

type Service struct {
	repo repository.AgentRepository
	log  *logger.Logger
}

func New(repo repository.AgentRepository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

func (s *Service) Create(ctx context.Context, req transport.CreateAgentRequest) (transport.AgentResponse, error) {
	agent, err := s.repo.Create(ctx, repository.CreateParams{
		Name:  strings.TrimSpace(req.Name),
		Email: strings.ToLower(strings.TrimSpace(req.Email)),
		Phone: normalizePhone(req.Phone),
	})
	if err != nil {
		return transport.AgentResponse{}, mapRepoErr(err)
	}
	s.log.WithContext(ctx).Info("agent created", "agentId", agent.ID)
	return toAgentResponse(agent), nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.AgentResponse, error) {
	agent, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.AgentResponse{}, mapRepoErr(err)
	}
	return toAgentResponse(agent), nil
}

// Get returns the agent for internal consumers.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (repository.Agent, error) {
	agent, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return repository.Agent{}, mapRepoErr(err)
	}
	return agent, nil
}

func (s *Service) List(ctx context.Context, req transport.ListAgentsRequest) (transport.AgentListResponse, error) {
	agents, err := s.repo.List(ctx, req.ActiveOnly)
	if err != nil {
		return transport.AgentListResponse{}, err
	}
	items := make([]transport.AgentResponse, len(agents))
	for i, agent := range agents {
		items[i] = toAgentResponse(agent)
	}
	return transport.AgentListResponse{Items: items, Total: len(items)}, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req transport.UpdateAgentRequest) (transport.AgentResponse, error) {
	params := repository.UpdateParams{IsActive: req.IsActive, Phone: normalizePhone(req.Phone)}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		params.Name = &name
	}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		params.Email = &email
	}
	agent, err := s.repo.Update(ctx, id, params)
	if err != nil {
		return transport.AgentResponse{}, mapRepoErr(err)
	}
	return toAgentResponse(agent), nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return mapRepoErr(s.repo.Delete(ctx, id))
}

func toAgentResponse(a repository.Agent) transport.AgentResponse {
	return transport.AgentResponse{
		ID:        a.ID,
		Name:      a.Name,
		Email:     a.Email,
		Phone:     a.Phone,
		IsActive:  a.IsActive,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func normalizePhone(value *string) *string {
	if value == nil {
		return nil
	}
	normalized := phone.NormalizeE164(*value)
	return &normalized
}

func mapRepoErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("agent not found")
	case errors.Is(err, repository.ErrDuplicateEmail):
		return apperr.Conflict("an agent with this email already exists")
	}
	return err
}
