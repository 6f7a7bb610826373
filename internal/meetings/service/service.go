package service

import (
	"context"
	"errors"
	"time"

	leadsdomain "leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/meetings/domain"
	"leadflow_backend/internal/meetings/repository"
	"leadflow_backend/internal/meetings/transport"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	meetingNotFoundMessage = "meeting not found"
	sourceManual           = "manual"
)

// Scheduler reacts to meeting lifecycle changes (the workflow orchestrator).
type Scheduler interface {
	HandleMeetingScheduled(ctx context.Context, leadID uuid.UUID, meeting domain.Meeting) error
	HandleMeetingCanceled(ctx context.Context, leadID uuid.UUID, meeting domain.Meeting) error
}

// LeadStatusSetter updates the lead after a meeting outcome.
type LeadStatusSetter interface {
	SetStatus(ctx context.Context, id uuid.UUID, status leadsdomain.Status) error
}

// BookingParams describes a booking reported by a scheduling provider.
type BookingParams struct {
	LeadID          uuid.UUID
	ExternalEventID string
	StartTime       time.Time
	EndTime         time.Time
	Location        string
	Source          string
}

type Service struct {
	repo      repository.MeetingRepository
	scheduler Scheduler
	leads     LeadStatusSetter
	log       *logger.Logger
	now       func() time.Time
}

func New(repo repository.MeetingRepository, leads LeadStatusSetter, log *logger.Logger) *Service {
	return &Service{repo: repo, leads: leads, log: log, now: time.Now}
}

// SetScheduler wires the workflow orchestrator.
func (s *Service) SetScheduler(scheduler Scheduler) {
	s.scheduler = scheduler
}

// RecordBooking stores a booked meeting and hands it to the scheduler.
// Replays of the same external event refresh the row and are otherwise no-ops.
func (s *Service) RecordBooking(ctx context.Context, params BookingParams) (domain.Meeting, bool, error) {
	if params.ExternalEventID == "" {
		return domain.Meeting{}, false, apperr.Validation("external event id is required")
	}
	if params.EndTime.IsZero() {
		params.EndTime = params.StartTime.Add(30 * time.Minute)
	}

	meeting, created, err := s.repo.Upsert(ctx, repository.UpsertParams{
		LeadID:          params.LeadID,
		ExternalEventID: params.ExternalEventID,
		StartTime:       params.StartTime,
		EndTime:         params.EndTime,
		Status:          domain.StatusScheduled,
		Location:        params.Location,
		Source:          params.Source,
	})
	if err != nil {
		return domain.Meeting{}, false, mapRepoErr(err)
	}

	log := s.log.WithContext(ctx)
	if created {
		log.Info("meeting booked", "meetingId", meeting.ID, "leadId", meeting.LeadID, "start", meeting.StartTime)
	}
	if meeting.Status == domain.StatusScheduled && s.scheduler != nil {
		if err := s.scheduler.HandleMeetingScheduled(ctx, meeting.LeadID, meeting); err != nil {
			return meeting, created, err
		}
	}
	return meeting, created, nil
}

// RecordCancellation marks a provider meeting canceled, or rescheduled when
// the provider reports a replacement booking.
func (s *Service) RecordCancellation(ctx context.Context, externalEventID string, rescheduled bool) (domain.Meeting, error) {
	meeting, err := s.repo.GetByExternalID(ctx, externalEventID)
	if err != nil {
		return domain.Meeting{}, mapRepoErr(err)
	}
	status := domain.StatusCanceled
	if rescheduled {
		status = domain.StatusRescheduled
	}
	return s.transition(ctx, meeting, status)
}

// Get returns the meeting for internal consumers.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.Meeting, error) {
	meeting, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Meeting{}, mapRepoErr(err)
	}
	return meeting, nil
}

// FindUpcomingScheduled returns the lead's next scheduled meeting, if any.
func (s *Service) FindUpcomingScheduled(ctx context.Context, leadID uuid.UUID, now time.Time) (domain.Meeting, bool, error) {
	meeting, err := s.repo.FindUpcomingScheduled(ctx, leadID, now)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Meeting{}, false, nil
	}
	if err != nil {
		return domain.Meeting{}, false, err
	}
	return meeting, true, nil
}

// Create books a meeting entered by an operator.
func (s *Service) Create(ctx context.Context, req transport.CreateMeetingRequest) (transport.MeetingResponse, error) {
	externalID := req.ExternalEventID
	if externalID == "" {
		externalID = "manual:" + uuid.NewString()
	}
	meeting, _, err := s.RecordBooking(ctx, BookingParams{
		LeadID:          req.LeadID,
		ExternalEventID: externalID,
		StartTime:       req.StartTime.UTC(),
		EndTime:         req.EndTime.UTC(),
		Location:        req.Location,
		Source:          sourceManual,
	})
	if err != nil {
		return transport.MeetingResponse{}, err
	}
	return toMeetingResponse(meeting), nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.MeetingResponse, error) {
	meeting, err := s.Get(ctx, id)
	if err != nil {
		return transport.MeetingResponse{}, err
	}
	return toMeetingResponse(meeting), nil
}

func (s *Service) List(ctx context.Context, req transport.ListMeetingsRequest) (transport.MeetingListResponse, error) {
	page, pageSize := normalizePage(req.Page, req.PageSize)
	params := repository.ListParams{
		From:   req.From,
		To:     req.To,
		Offset: (page - 1) * pageSize,
		Limit:  pageSize,
	}
	if req.LeadID != "" {
		leadID, err := uuid.Parse(req.LeadID)
		if err != nil {
			return transport.MeetingListResponse{}, apperr.Validation("invalid leadId")
		}
		params.LeadID = &leadID
	}
	if req.Status != "" {
		status := domain.Status(req.Status)
		params.Status = &status
	}

	items, total, err := s.repo.List(ctx, params)
	if err != nil {
		return transport.MeetingListResponse{}, err
	}
	return toMeetingListResponse(items, total, page, pageSize), nil
}

// Update moves or relocates a meeting. Moving a scheduled meeting re-plans
// its reminders.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req transport.UpdateMeetingRequest) (transport.MeetingResponse, error) {
	before, err := s.Get(ctx, id)
	if err != nil {
		return transport.MeetingResponse{}, err
	}
	if req.StartTime != nil && req.EndTime != nil && !req.EndTime.After(*req.StartTime) {
		return transport.MeetingResponse{}, apperr.Validation("endTime must be after startTime")
	}

	meeting, err := s.repo.Update(ctx, id, repository.UpdateParams{
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Location:  req.Location,
	})
	if err != nil {
		return transport.MeetingResponse{}, mapRepoErr(err)
	}

	if meeting.Status == domain.StatusScheduled && !meeting.StartTime.Equal(before.StartTime) && s.scheduler != nil {
		if err := s.scheduler.HandleMeetingCanceled(ctx, meeting.LeadID, before); err != nil {
			return transport.MeetingResponse{}, err
		}
		if err := s.scheduler.HandleMeetingScheduled(ctx, meeting.LeadID, meeting); err != nil {
			return transport.MeetingResponse{}, err
		}
	}
	return toMeetingResponse(meeting), nil
}

// UpdateStatus records a meeting outcome and mirrors it onto the lead.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status) (transport.MeetingResponse, error) {
	if !status.Valid() {
		return transport.MeetingResponse{}, apperr.Validation("invalid status")
	}
	meeting, err := s.Get(ctx, id)
	if err != nil {
		return transport.MeetingResponse{}, err
	}
	updated, err := s.transition(ctx, meeting, status)
	if err != nil {
		return transport.MeetingResponse{}, err
	}
	return toMeetingResponse(updated), nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	meeting, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if s.scheduler != nil {
		if err := s.scheduler.HandleMeetingCanceled(ctx, meeting.LeadID, meeting); err != nil {
			return err
		}
	}
	return mapRepoErr(s.repo.Delete(ctx, id))
}

func (s *Service) transition(ctx context.Context, meeting domain.Meeting, status domain.Status) (domain.Meeting, error) {
	if meeting.Status == status {
		return meeting, nil
	}
	updated, err := s.repo.UpdateStatus(ctx, meeting.ID, status)
	if err != nil {
		return domain.Meeting{}, mapRepoErr(err)
	}
	s.log.WithContext(ctx).Info("meeting status changed", "meetingId", meeting.ID, "from", meeting.Status, "to", status)

	if s.scheduler != nil {
		switch status {
		case domain.StatusScheduled:
			err = s.scheduler.HandleMeetingScheduled(ctx, updated.LeadID, updated)
		default:
			err = s.scheduler.HandleMeetingCanceled(ctx, updated.LeadID, updated)
		}
		if err != nil {
			return updated, err
		}
	}

	if leadStatus, ok := leadStatusFor(status); ok && s.leads != nil {
		if err := s.leads.SetStatus(ctx, updated.LeadID, leadStatus); err != nil {
			return updated, err
		}
	}
	return updated, nil
}

// leadStatusFor maps a meeting outcome onto the lead. Scheduled is set by the
// scheduler itself.
func leadStatusFor(status domain.Status) (leadsdomain.Status, bool) {
	switch status {
	case domain.StatusCanceled:
		return leadsdomain.StatusCanceled, true
	case domain.StatusRescheduled:
		return leadsdomain.StatusRescheduled, true
	case domain.StatusNoShow:
		return leadsdomain.StatusNoShow, true
	case domain.StatusCompleted:
		return leadsdomain.StatusCompleted, true
	}
	return "", false
}

func mapRepoErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound(meetingNotFoundMessage)
	case errors.Is(err, repository.ErrLeadNotFound):
		return apperr.NotFound("lead not found")
	}
	return err
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
