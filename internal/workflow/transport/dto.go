package transport

import (
	"time"

	"leadflow_backend/internal/workflow/domain"

	"github.com/google/uuid"
)

type ListJobsRequest struct {
	Status       string `form:"status" validate:"omitempty,oneof=pending processing completed failed skipped"`
	WorkflowType string `form:"workflowType" validate:"omitempty,oneof=initial_engagement reminder_sequence meeting_monitor follow_up"`
	LeadID       string `form:"leadId" validate:"omitempty,uuid"`
	Page         int    `form:"page" validate:"omitempty,min=1"`
	PageSize     int    `form:"pageSize" validate:"omitempty,min=1,max=200"`
}

type ProcessRequest struct {
	Limit int `json:"limit" validate:"omitempty,min=1,max=500"`
}

type JobResponse struct {
	ID           uuid.UUID       `json:"id"`
	LeadID       uuid.UUID       `json:"leadId"`
	WorkflowType string          `json:"workflowType"`
	Step         string          `json:"step"`
	ScheduledAt  time.Time       `json:"scheduledAt"`
	Status       string          `json:"status"`
	RetryCount   int             `json:"retryCount"`
	MaxRetries   int             `json:"maxRetries"`
	ErrorMessage *string         `json:"errorMessage,omitempty"`
	Metadata     domain.Metadata `json:"metadata"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
	CompletedAt  *time.Time      `json:"completedAt,omitempty"`
}

type JobListResponse struct {
	Items      []JobResponse `json:"items"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	PageSize   int           `json:"pageSize"`
	TotalPages int           `json:"totalPages"`
}

type WorkflowStatusResponse struct {
	LeadID uuid.UUID           `json:"leadId"`
	Counts domain.StatusCounts `json:"counts"`
	Jobs   []JobResponse       `json:"jobs"`
}

type InitializeResponse struct {
	LeadID      uuid.UUID `json:"leadId"`
	Initialized bool      `json:"initialized"`
}

// ProcessResponse reports an inline run or a queued trigger.
type ProcessResponse struct {
	Queued    bool `json:"queued"`
	Processed int  `json:"processed"`
}

func ToJobResponse(job domain.Job) JobResponse {
	return JobResponse{
		ID:           job.ID,
		LeadID:       job.LeadID,
		WorkflowType: string(job.WorkflowType),
		Step:         string(job.Step),
		ScheduledAt:  job.ScheduledAt,
		Status:       string(job.Status),
		RetryCount:   job.RetryCount,
		MaxRetries:   job.MaxRetries,
		ErrorMessage: job.ErrorMessage,
		Metadata:     job.Metadata,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
		CompletedAt:  job.CompletedAt,
	}
}

func ToJobResponses(jobs []domain.Job) []JobResponse {
	out := make([]JobResponse, len(jobs))
	for i, job := range jobs {
		out[i] = ToJobResponse(job)
	}
	return out
}
