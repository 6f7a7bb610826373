package service

import (
	"context"
	"testing"

	"leadflow_backend/internal/agents/repository"
	"leadflow_backend/internal/agents/transport"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
)

type memRepo struct {
	agents map[uuid.UUID]repository.Agent
}

func (r *memRepo) Create(_ context.Context, p repository.CreateParams) (repository.Agent, error) {
	for _, a := range r.agents {
		if a.Email == p.Email {
			return repository.Agent{}, repository.ErrDuplicateEmail
		}
	}
	a := repository.Agent{ID: uuid.New(), Name: p.Name, Email: p.Email, Phone: p.Phone, IsActive: true}
	r.agents[a.ID] = a
	return a, nil
}

func (r *memRepo) GetByID(_ context.Context, id uuid.UUID) (repository.Agent, error) {
	a, ok := r.agents[id]
	if !ok {
		return repository.Agent{}, repository.ErrNotFound
	}
	return a, nil
}

func (r *memRepo) Update(_ context.Context, id uuid.UUID, p repository.UpdateParams) (repository.Agent, error) {
	a, ok := r.agents[id]
	if !ok {
		return repository.Agent{}, repository.ErrNotFound
	}
	if p.IsActive != nil {
		a.IsActive = *p.IsActive
	}
	if p.Name != nil {
		a.Name = *p.Name
	}
	r.agents[id] = a
	return a, nil
}

func (r *memRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.agents[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.agents, id)
	return nil
}

func (r *memRepo) List(_ context.Context, activeOnly bool) ([]repository.Agent, error) {
	out := []repository.Agent{}
	for _, a := range r.agents {
		if !activeOnly || a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func TestCreateNormalizesAndRejectsDuplicates(t *testing.T) {
	svc := New(&memRepo{agents: map[uuid.UUID]repository.Agent{}}, logger.Nop())
	phoneNumber := "(201) 555-0123"

	created, err := svc.Create(context.Background(), transport.CreateAgentRequest{Name: " Grace ", Email: "Grace@Example.com", Phone: &phoneNumber})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Email != "grace@example.com" || created.Name != "Grace" || *created.Phone != "+12015550123" {
		t.Fatalf("unexpected agent %+v", created)
	}

	_, err = svc.Create(context.Background(), transport.CreateAgentRequest{Name: "Other", Email: "grace@example.com"})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestListActiveOnly(t *testing.T) {
	repo := &memRepo{agents: map[uuid.UUID]repository.Agent{}}
	svc := New(repo, logger.Nop())
	a, _ := svc.Create(context.Background(), transport.CreateAgentRequest{Name: "A", Email: "a@example.com"})
	_, _ = svc.Create(context.Background(), transport.CreateAgentRequest{Name: "B", Email: "b@example.com"})
	inactive := false
	if _, err := svc.Update(context.Background(), a.ID, transport.UpdateAgentRequest{IsActive: &inactive}); err != nil {
		t.Fatalf("update: %v", err)
	}

	result, err := svc.List(context.Background(), transport.ListAgentsRequest{ActiveOnly: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if result.Total != 1 || result.Items[0].Email != "b@example.com" {
		t.Fatalf("unexpected list %+v", result)
	}
}

func TestGetMissingAgent(t *testing.T) {
	svc := New(&memRepo{agents: map[uuid.UUID]repository.Agent{}}, logger.Nop())
	if _, err := svc.Get(context.Background(), uuid.New()); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
