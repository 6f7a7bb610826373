package transport

import (
	"time"

	"github.com/google/uuid"
)

type CreateLeadRequest struct {
	FirstName  string         `json:"firstName" validate:"omitempty,max=100"`
	LastName   string         `json:"lastName" validate:"omitempty,max=100"`
	Email      string         `json:"email" validate:"required_without=Phone,omitempty,email"`
	Phone      string         `json:"phone" validate:"required_without=Email,omitempty,min=5,max=30"`
	Company    string         `json:"company,omitempty" validate:"omitempty,max=200"`
	Source     string         `json:"source,omitempty" validate:"omitempty,max=50"`
	ExternalID string         `json:"externalId,omitempty" validate:"omitempty,max=255"`
	Fields     map[string]any `json:"fields,omitempty"`
}

type UpdateLeadRequest struct {
	FirstName *string        `json:"firstName,omitempty" validate:"omitempty,max=100"`
	LastName  *string        `json:"lastName,omitempty" validate:"omitempty,max=100"`
	Email     *string        `json:"email,omitempty" validate:"omitempty,email"`
	Phone     *string        `json:"phone,omitempty" validate:"omitempty,min=5,max=30"`
	Company   *string        `json:"company,omitempty" validate:"omitempty,max=200"`
	Fields    map[string]any `json:"fields,omitempty"`
}

type UpdateLeadStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=new contacted scheduled rescheduled canceled no_show completed"`
}

type AssignLeadRequest struct {
	AgentID *uuid.UUID `json:"agentId"`
}

type ListLeadsRequest struct {
	Search    string `form:"search" validate:"max=100"`
	Status    string `form:"status" validate:"omitempty,oneof=new contacted scheduled rescheduled canceled no_show completed"`
	Source    string `form:"source" validate:"omitempty,max=50"`
	AgentID   string `form:"agentId" validate:"omitempty,uuid"`
	Page      int    `form:"page" validate:"omitempty,min=1"`
	PageSize  int    `form:"pageSize" validate:"omitempty,min=1,max=100"`
	SortBy    string `form:"sortBy" validate:"omitempty,oneof=name status createdAt updatedAt"`
	SortOrder string `form:"sortOrder" validate:"omitempty,oneof=asc desc"`
}

type ExternalRefResponse struct {
	Source     string `json:"source"`
	ExternalID string `json:"externalId"`
}

type LeadResponse struct {
	ID                    uuid.UUID             `json:"id"`
	Email                 string                `json:"email,omitempty"`
	FirstName             string                `json:"firstName"`
	LastName              string                `json:"lastName"`
	FullName              string                `json:"fullName"`
	Phone                 string                `json:"phone,omitempty"`
	Company               string                `json:"company,omitempty"`
	Status                string                `json:"status"`
	AssignedAgentID       *uuid.UUID            `json:"assignedAgentId,omitempty"`
	Source                string                `json:"source"`
	Fields                map[string]any        `json:"fields"`
	ExternalRefs          []ExternalRefResponse `json:"externalRefs,omitempty"`
	CreatedAt             time.Time             `json:"createdAt"`
	UpdatedAt             time.Time             `json:"updatedAt"`
	LastSourceSyncAt      *time.Time            `json:"lastSourceSyncAt,omitempty"`
	WorkflowInitializedAt *time.Time            `json:"workflowInitializedAt,omitempty"`
}

type LeadListResponse struct {
	Items      []LeadResponse `json:"items"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	TotalPages int            `json:"totalPages"`
}

// IngestResponse reports how an inbound record was applied.
type IngestResponse struct {
	Lead                LeadResponse `json:"lead"`
	Outcome             string       `json:"outcome"`
	MatchedBy           string       `json:"matchedBy,omitempty"`
	WorkflowInitialized bool         `json:"workflowInitialized"`
}
