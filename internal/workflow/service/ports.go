package service

import (
	"context"
	"time"

	leadsdomain "leadflow_backend/internal/leads/domain"
	meetingsdomain "leadflow_backend/internal/meetings/domain"

	"github.com/google/uuid"
)

// LeadStore is the slice of the leads service the orchestrator uses.
type LeadStore interface {
	Get(ctx context.Context, id uuid.UUID) (leadsdomain.Lead, error)
	SetStatus(ctx context.Context, id uuid.UUID, status leadsdomain.Status) error
}

// MeetingStore is the slice of the meetings service the orchestrator uses.
type MeetingStore interface {
	Get(ctx context.Context, id uuid.UUID) (meetingsdomain.Meeting, error)
	FindUpcomingScheduled(ctx context.Context, leadID uuid.UUID, now time.Time) (meetingsdomain.Meeting, bool, error)
}

// Contact is an alert recipient.
type Contact struct {
	Name  string
	Email string
}

// AgentDirectory resolves the assigned agent of a lead.
type AgentDirectory interface {
	AgentContact(ctx context.Context, agentID uuid.UUID) (Contact, error)
}
