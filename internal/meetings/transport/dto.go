package transport

import (
	"time"

	"github.com/google/uuid"
)

type CreateMeetingRequest struct {
	LeadID          uuid.UUID `json:"leadId" validate:"required"`
	ExternalEventID string    `json:"externalEventId,omitempty" validate:"omitempty,max=255"`
	StartTime       time.Time `json:"startTime" validate:"required"`
	EndTime         time.Time `json:"endTime" validate:"required,gtfield=StartTime"`
	Location        string    `json:"location,omitempty" validate:"omitempty,max=1000"`
}

type UpdateMeetingRequest struct {
	StartTime *time.Time `json:"startTime,omitempty"`
	EndTime   *time.Time `json:"endTime,omitempty"`
	Location  *string    `json:"location,omitempty" validate:"omitempty,max=1000"`
}

type UpdateMeetingStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=scheduled canceled no_show rescheduled completed"`
}

type ListMeetingsRequest struct {
	LeadID   string     `form:"leadId" validate:"omitempty,uuid"`
	Status   string     `form:"status" validate:"omitempty,oneof=scheduled canceled no_show rescheduled completed"`
	From     *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To       *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Page     int        `form:"page" validate:"omitempty,min=1"`
	PageSize int        `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

type MeetingResponse struct {
	ID              uuid.UUID `json:"id"`
	LeadID          uuid.UUID `json:"leadId"`
	ExternalEventID string    `json:"externalEventId"`
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	Status          string    `json:"status"`
	Location        string    `json:"location"`
	Source          string    `json:"source"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type MeetingListResponse struct {
	Items      []MeetingResponse `json:"items"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	PageSize   int               `json:"pageSize"`
	TotalPages int               `json:"totalPages"`
}
