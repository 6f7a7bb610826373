// Package domain holds the lead aggregate and the canonical shape every
// inbound source is normalized into.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a lead.
type Status string

const (
	StatusNew         Status = "new"
	StatusContacted   Status = "contacted"
	StatusScheduled   Status = "scheduled"
	StatusRescheduled Status = "rescheduled"
	StatusCanceled    Status = "canceled"
	StatusNoShow      Status = "no_show"
	StatusCompleted   Status = "completed"
)

var allStatuses = []Status{
	StatusNew, StatusContacted, StatusScheduled, StatusRescheduled,
	StatusCanceled, StatusNoShow, StatusCompleted,
}

// Statuses returns every known status in lifecycle order.
func Statuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range allStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no further automated outreach should happen.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

// HasMeeting reports whether the lead has a booked meeting.
func (s Status) HasMeeting() bool {
	return s == StatusScheduled || s == StatusRescheduled
}

// Source tags where a lead record came from.
const (
	SourceHubSpot  = "hubspot"
	SourceFacebook = "facebook"
	SourceCalendly = "calendly"
	SourceZapier   = "zapier"
	SourceManual   = "manual"
)

// Lead is the persisted lead record.
type Lead struct {
	ID                    uuid.UUID
	Email                 string
	FirstName             string
	LastName              string
	FullName              string
	Phone                 string
	Company               string
	Status                Status
	AssignedAgentID       *uuid.UUID
	Source                string
	Fields                map[string]any
	ExternalRefs          []ExternalRef
	CreatedAt             time.Time
	UpdatedAt             time.Time
	LastSourceSyncAt      *time.Time
	WorkflowInitializedAt *time.Time
}

// ExternalRef links a lead to a record id in an external system.
type ExternalRef struct {
	Source     string
	ExternalID string
}

// DisplayName returns the best available human name for the lead.
func (l Lead) DisplayName() string {
	switch {
	case l.FullName != "":
		return l.FullName
	case l.FirstName != "":
		return l.FirstName
	default:
		return l.Email
	}
}

// CanonicalLead is the source-agnostic shape produced by the normalizer.
type CanonicalLead struct {
	Source     string
	ExternalID string
	Email      string
	FirstName  string
	LastName   string
	FullName   string
	Phone      string
	Company    string
	// Fields keeps source attributes that have no canonical home.
	Fields map[string]any
}

// UpsertOutcome classifies the effect of an upsert.
type UpsertOutcome string

const (
	OutcomeCreated UpsertOutcome = "created"
	OutcomeUpdated UpsertOutcome = "updated"
)

// UpsertResult is returned by the lead store's upsert.
type UpsertResult struct {
	Lead    Lead
	Outcome UpsertOutcome
	// MatchedBy is "external_id", "email" or empty for creates.
	MatchedBy string
}

// Created reports whether the upsert inserted a new lead.
func (r UpsertResult) Created() bool {
	return r.Outcome == OutcomeCreated
}
