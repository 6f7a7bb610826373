// Package adapters contains adapters that bridge different bounded contexts.
// These adapters implement interfaces defined by consuming domains while
// wrapping services from providing domains.
package adapters

import (
	"context"
	"errors"
	"strings"

	agentsrepo "leadflow_backend/internal/agents/repository"
	workflowservice "leadflow_backend/internal/workflow/service"

	"github.com/google/uuid"
)

// ErrAgentInactive is returned for agents that no longer take alerts.
var ErrAgentInactive = errors.New("agent is inactive")

// AgentReader is the slice of the agents service the directory needs.
type AgentReader interface {
	Get(ctx context.Context, id uuid.UUID) (agentsrepo.Agent, error)
}

// AgentDirectory adapts the agents service to the workflow orchestrator's
// AgentDirectory interface so alerts reach the assigned agent.
type AgentDirectory struct {
	agents AgentReader
}

// NewAgentDirectory creates a new adapter wrapping the agents service.
func NewAgentDirectory(agents AgentReader) *AgentDirectory {
	return &AgentDirectory{agents: agents}
}

// AgentContact returns the alert recipient for an agent.
func (d *AgentDirectory) AgentContact(ctx context.Context, agentID uuid.UUID) (workflowservice.Contact, error) {
	agent, err := d.agents.Get(ctx, agentID)
	if err != nil {
		return workflowservice.Contact{}, err
	}
	if !agent.IsActive {
		return workflowservice.Contact{}, ErrAgentInactive
	}

	return workflowservice.Contact{
		Name:  displayName(agent.Name, agent.Email),
		Email: agent.Email,
	}, nil
}

func displayName(name, email string) string {
	if full := strings.TrimSpace(name); full != "" {
		return full
	}
	return deriveNameFromEmail(email)
}

// deriveNameFromEmail turns "jane.doe@x" into "Jane Doe".
func deriveNameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	words := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Compile-time check that AgentDirectory implements workflowservice.AgentDirectory
var _ workflowservice.AgentDirectory = (*AgentDirectory)(nil)
