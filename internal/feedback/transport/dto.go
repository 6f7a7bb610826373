package transport

import (
	"time"

	"github.com/google/uuid"
)

type CreateFeedbackRequest struct {
	LeadID    uuid.UUID  `json:"leadId" validate:"required"`
	MeetingID *uuid.UUID `json:"meetingId,omitempty"`
	Rating    int        `json:"rating" validate:"required,min=1,max=5"`
	Comment   string     `json:"comment" validate:"max=4000"`
}

type UpdateFeedbackRequest struct {
	Rating  *int    `json:"rating,omitempty" validate:"omitempty,min=1,max=5"`
	Comment *string `json:"comment,omitempty" validate:"omitempty,max=4000"`
}

type ListFeedbackRequest struct {
	LeadID    string `form:"leadId" validate:"omitempty,uuid"`
	MeetingID string `form:"meetingId" validate:"omitempty,uuid"`
	MinRating int    `form:"minRating" validate:"omitempty,min=1,max=5"`
	Page      int    `form:"page" validate:"omitempty,min=1"`
	PageSize  int    `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

type FeedbackResponse struct {
	ID        uuid.UUID  `json:"id"`
	LeadID    uuid.UUID  `json:"leadId"`
	MeetingID *uuid.UUID `json:"meetingId,omitempty"`
	Rating    int        `json:"rating"`
	Comment   string     `json:"comment"`
	CreatedAt time.Time  `json:"createdAt"`
}

type FeedbackListResponse struct {
	Items         []FeedbackResponse `json:"items"`
	Total         int                `json:"total"`
	Page          int                `json:"page"`
	PageSize      int                `json:"pageSize"`
	TotalPages    int                `json:"totalPages"`
	AverageRating float64            `json:"averageRating"`
}
