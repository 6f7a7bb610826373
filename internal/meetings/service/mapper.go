package service

import (
	"leadflow_backend/internal/meetings/domain"
	"leadflow_backend/internal/meetings/transport"
)

func toMeetingResponse(m domain.Meeting) transport.MeetingResponse {
	return transport.MeetingResponse{
		ID:              m.ID,
		LeadID:          m.LeadID,
		ExternalEventID: m.ExternalEventID,
		StartTime:       m.StartTime,
		EndTime:         m.EndTime,
		Status:          string(m.Status),
		Location:        m.Location,
		Source:          m.Source,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func toMeetingListResponse(items []domain.Meeting, total, page, pageSize int) transport.MeetingListResponse {
	responses := make([]transport.MeetingResponse, len(items))
	for i, item := range items {
		responses[i] = toMeetingResponse(item)
	}
	totalPages := 0
	if pageSize > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}
	return transport.MeetingListResponse{
		Items:      responses,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}
