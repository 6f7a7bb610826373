package service

import (
	"context"
	"errors"

	"leadflow_backend/internal/feedback/repository"
	"leadflow_backend/internal/feedback/transport"
	meetingsdomain "leadflow_backend/internal/meetings/domain"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/sanitize"

	"github.com/google/uuid"
)

// MeetingReader resolves the meeting a piece of feedback refers to.
type MeetingReader interface {
	Get(ctx context.Context, id uuid.UUID) (meetingsdomain.Meeting, error)
}

type Service struct {
	repo     repository.FeedbackRepository
	meetings MeetingReader
	log      *logger.Logger
}

func New(repo repository.FeedbackRepository, meetings MeetingReader, log *logger.Logger) *Service {
	return &Service{repo: repo, meetings: meetings, log: log}
}

// Create records post-meeting feedback. A referenced meeting must belong to
// the same lead.
func (s *Service) Create(ctx context.Context, req transport.CreateFeedbackRequest) (transport.FeedbackResponse, error) {
	if req.MeetingID != nil && s.meetings != nil {
		meeting, err := s.meetings.Get(ctx, *req.MeetingID)
		if err != nil {
			return transport.FeedbackResponse{}, err
		}
		if meeting.LeadID != req.LeadID {
			return transport.FeedbackResponse{}, apperr.Validation("meeting does not belong to lead")
		}
	}

	fb, err := s.repo.Create(ctx, repository.CreateParams{
		LeadID:    req.LeadID,
		MeetingID: req.MeetingID,
		Rating:    req.Rating,
		Comment:   sanitize.Text(req.Comment),
	})
	if err != nil {
		return transport.FeedbackResponse{}, mapRepoErr(err)
	}
	s.log.WithContext(ctx).Info("feedback recorded", "feedbackId", fb.ID, "leadId", fb.LeadID, "rating", fb.Rating)
	return toFeedbackResponse(fb), nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.FeedbackResponse, error) {
	fb, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.FeedbackResponse{}, mapRepoErr(err)
	}
	return toFeedbackResponse(fb), nil
}

func (s *Service) List(ctx context.Context, req transport.ListFeedbackRequest) (transport.FeedbackListResponse, error) {
	page, pageSize := normalizePage(req.Page, req.PageSize)
	params := repository.ListParams{Offset: (page - 1) * pageSize, Limit: pageSize}
	if req.LeadID != "" {
		id, err := uuid.Parse(req.LeadID)
		if err != nil {
			return transport.FeedbackListResponse{}, apperr.Validation("invalid leadId")
		}
		params.LeadID = &id
	}
	if req.MeetingID != "" {
		id, err := uuid.Parse(req.MeetingID)
		if err != nil {
			return transport.FeedbackListResponse{}, apperr.Validation("invalid meetingId")
		}
		params.MeetingID = &id
	}
	if req.MinRating > 0 {
		minRating := req.MinRating
		params.MinRating = &minRating
	}

	items, total, err := s.repo.List(ctx, params)
	if err != nil {
		return transport.FeedbackListResponse{}, err
	}

	resp := transport.FeedbackListResponse{
		Items:    make([]transport.FeedbackResponse, len(items)),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}
	sum := 0
	for i, fb := range items {
		resp.Items[i] = toFeedbackResponse(fb)
		sum += fb.Rating
	}
	if len(items) > 0 {
		resp.AverageRating = float64(sum) / float64(len(items))
	}
	if total > 0 {
		resp.TotalPages = (total + pageSize - 1) / pageSize
	}
	return resp, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req transport.UpdateFeedbackRequest) (transport.FeedbackResponse, error) {
	params := repository.UpdateParams{Rating: req.Rating}
	if req.Comment != nil {
		comment := sanitize.Text(*req.Comment)
		params.Comment = &comment
	}
	fb, err := s.repo.Update(ctx, id, params)
	if err != nil {
		return transport.FeedbackResponse{}, mapRepoErr(err)
	}
	return toFeedbackResponse(fb), nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return mapRepoErr(s.repo.Delete(ctx, id))
}

func toFeedbackResponse(f repository.Feedback) transport.FeedbackResponse {
	return transport.FeedbackResponse{
		ID:        f.ID,
		LeadID:    f.LeadID,
		MeetingID: f.MeetingID,
		Rating:    f.Rating,
		Comment:   f.Comment,
		CreatedAt: f.CreatedAt,
	}
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}

func mapRepoErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("feedback not found")
	case errors.Is(err, repository.ErrUnknownLead):
		return apperr.Validation("lead or meeting does not exist")
	}
	return err
}
