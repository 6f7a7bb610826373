package transport

import (
	"time"

	"github.com/google/uuid"
)

type CreateAgentRequest struct {
	Name  string  `json:"name" validate:"required,min=1,max=200"`
	Email string  `json:"email" validate:"required,email"`
	Phone *string `json:"phone,omitempty" validate:"omitempty,min=5,max=30"`
}

type UpdateAgentRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone    *string `json:"phone,omitempty" validate:"omitempty,min=5,max=30"`
	IsActive *bool   `json:"isActive,omitempty"`
}

type ListAgentsRequest struct {
	ActiveOnly bool `form:"activeOnly"`
}

type AgentResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     *string   `json:"phone,omitempty"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type AgentListResponse struct {
	Items []AgentResponse `json:"items"`
	Total int             `json:"total"`
}
