package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	leadsdomain "leadflow_backend/internal/leads/domain"
	meetingsdomain "leadflow_backend/internal/meetings/domain"
	"leadflow_backend/internal/notification"
	"leadflow_backend/internal/workflow/domain"
	"leadflow_backend/internal/workflow/repository"
	"leadflow_backend/platform/apperr"

	"github.com/google/uuid"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// memStore mirrors the SQL repository's transition guards in memory.
type memStore struct {
	mu          sync.Mutex
	clock       *fakeClock
	jobs        map[uuid.UUID]*domain.Job
	initialized map[uuid.UUID]bool
	initErr     error
	claimLosers map[uuid.UUID]bool
}

func newMemStore(clock *fakeClock) *memStore {
	return &memStore{
		clock:       clock,
		jobs:        map[uuid.UUID]*domain.Job{},
		initialized: map[uuid.UUID]bool{},
		claimLosers: map[uuid.UUID]bool{},
	}
}

func (s *memStore) insertLocked(job domain.NewJob) domain.Job {
	now := s.clock.Now()
	row := &domain.Job{
		ID:           uuid.New(),
		LeadID:       job.LeadID,
		WorkflowType: job.WorkflowType,
		Step:         job.Step,
		ScheduledAt:  job.ScheduledAt,
		Status:       domain.StatusPending,
		MaxRetries:   job.MaxRetries,
		Metadata:     job.Metadata,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.jobs[row.ID] = row
	return *row
}

func (s *memStore) InitializeBatch(_ context.Context, leadID uuid.UUID, jobs []domain.NewJob) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initErr != nil {
		return false, s.initErr
	}
	if s.initialized[leadID] {
		return false, nil
	}
	s.initialized[leadID] = true
	for _, job := range jobs {
		s.insertLocked(job)
	}
	return true, nil
}

func (s *memStore) InsertJobs(_ context.Context, jobs []domain.NewJob) ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Job, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, s.insertLocked(job))
	}
	return out, nil
}

func (s *memStore) ListDue(_ context.Context, now time.Time, limit int) ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []domain.Job
	for _, job := range s.jobs {
		if job.Status == domain.StatusPending && !job.ScheduledAt.After(now) && job.RetryCount < job.MaxRetries {
			due = append(due, *job)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].ScheduledAt.Equal(due[j].ScheduledAt) {
			return due[i].ScheduledAt.Before(due[j].ScheduledAt)
		}
		return due[i].WorkflowType < due[j].WorkflowType
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *memStore) Claim(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status != domain.StatusPending || s.claimLosers[id] {
		return false, nil
	}
	job.Status = domain.StatusProcessing
	job.UpdatedAt = s.clock.Now()
	return true, nil
}

func (s *memStore) processing(id uuid.UUID) (*domain.Job, error) {
	job, ok := s.jobs[id]
	if !ok || job.Status != domain.StatusProcessing {
		return nil, repository.ErrNotFound
	}
	return job, nil
}

func (s *memStore) MarkCompleted(_ context.Context, id uuid.UUID, at time.Time, meta domain.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, err := s.processing(id)
	if err != nil {
		return err
	}
	job.Status = domain.StatusCompleted
	job.CompletedAt = &at
	job.Metadata = meta
	job.ErrorMessage = nil
	return nil
}

func (s *memStore) MarkSkipped(_ context.Context, id uuid.UUID, at time.Time, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, err := s.processing(id)
	if err != nil {
		return err
	}
	job.Status = domain.StatusSkipped
	job.CompletedAt = &at
	job.ErrorMessage = &reason
	return nil
}

func (s *memStore) MarkFailed(_ context.Context, id uuid.UUID, retryCount int, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, err := s.processing(id)
	if err != nil {
		return err
	}
	job.Status = domain.StatusFailed
	job.RetryCount = retryCount
	job.ErrorMessage = &message
	return nil
}

func (s *memStore) Reschedule(_ context.Context, id uuid.UUID, retryCount int, at time.Time, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, err := s.processing(id)
	if err != nil {
		return err
	}
	job.Status = domain.StatusPending
	job.RetryCount = retryCount
	job.ScheduledAt = at
	job.ErrorMessage = &message
	return nil
}

func (s *memStore) ScheduleMeeting(_ context.Context, leadID uuid.UUID, meetingID, meetingStart string, jobs []domain.NewJob) (repository.MeetingScheduleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result repository.MeetingScheduleResult
	for _, job := range s.jobs {
		if job.LeadID == leadID && job.Metadata.MeetingID == meetingID && job.Metadata.MeetingStart == meetingStart &&
			job.Status != domain.StatusSkipped {
			result.AlreadyScheduled = true
			return result, nil
		}
	}
	for _, job := range s.jobs {
		if job.LeadID == leadID && job.WorkflowType == domain.TypeReminderSequence && job.Status == domain.StatusPending {
			job.Status = domain.StatusSkipped
			result.Superseded++
		}
	}
	for _, job := range s.jobs {
		if job.LeadID == leadID && job.Metadata.MeetingID == meetingID && job.Metadata.MeetingStart != meetingStart &&
			job.Status == domain.StatusPending {
			job.Status = domain.StatusSkipped
			result.Moved++
		}
	}
	for _, job := range jobs {
		s.insertLocked(job)
		result.Inserted++
	}
	return result, nil
}

func (s *memStore) SkipMeetingJobs(_ context.Context, meetingID string, _ string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, job := range s.jobs {
		if job.Metadata.MeetingID == meetingID && job.Status == domain.StatusPending {
			job.Status = domain.StatusSkipped
			count++
		}
	}
	return count, nil
}

func (s *memStore) ReleaseStale(_ context.Context, olderThan, retryAt time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, job := range s.jobs {
		if job.Status == domain.StatusProcessing && job.UpdatedAt.Before(olderThan) {
			job.RetryCount++
			job.Status = domain.StatusPending
			if job.RetryCount >= job.MaxRetries {
				job.Status = domain.StatusFailed
			}
			job.ScheduledAt = retryAt
			count++
		}
	}
	return count, nil
}

func (s *memStore) ListByLead(_ context.Context, leadID uuid.UUID) ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Job
	for _, job := range s.jobs {
		if job.LeadID == leadID {
			out = append(out, *job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}

func (s *memStore) byStep(leadID uuid.UUID, step domain.Step) []domain.Job {
	jobs, _ := s.ListByLead(context.Background(), leadID)
	var out []domain.Job
	for _, job := range jobs {
		if job.Step == step {
			out = append(out, job)
		}
	}
	return out
}

func (s *memStore) get(id uuid.UUID) domain.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.jobs[id]
}

type fakeLeads struct {
	mu    sync.Mutex
	leads map[uuid.UUID]leadsdomain.Lead
	err   error
}

func (f *fakeLeads) add(lead leadsdomain.Lead) leadsdomain.Lead {
	f.mu.Lock()
	defer f.mu.Unlock()
	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	if lead.Status == "" {
		lead.Status = leadsdomain.StatusNew
	}
	f.leads[lead.ID] = lead
	return lead
}

func (f *fakeLeads) Get(_ context.Context, id uuid.UUID) (leadsdomain.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return leadsdomain.Lead{}, f.err
	}
	lead, ok := f.leads[id]
	if !ok {
		return leadsdomain.Lead{}, apperr.NotFound("lead not found")
	}
	return lead, nil
}

func (f *fakeLeads) SetStatus(_ context.Context, id uuid.UUID, status leadsdomain.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.leads[id]
	if !ok {
		return apperr.NotFound("lead not found")
	}
	lead.Status = status
	f.leads[id] = lead
	return nil
}

func (f *fakeLeads) status(id uuid.UUID) leadsdomain.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.leads[id].Status
}

type fakeMeetings struct {
	meetings map[uuid.UUID]meetingsdomain.Meeting
}

func (f *fakeMeetings) add(m meetingsdomain.Meeting) meetingsdomain.Meeting {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Status == "" {
		m.Status = meetingsdomain.StatusScheduled
	}
	f.meetings[m.ID] = m
	return m
}

func (f *fakeMeetings) Get(_ context.Context, id uuid.UUID) (meetingsdomain.Meeting, error) {
	m, ok := f.meetings[id]
	if !ok {
		return meetingsdomain.Meeting{}, apperr.NotFound("meeting not found")
	}
	return m, nil
}

func (f *fakeMeetings) FindUpcomingScheduled(_ context.Context, leadID uuid.UUID, now time.Time) (meetingsdomain.Meeting, bool, error) {
	for _, m := range f.meetings {
		if m.LeadID == leadID && m.Upcoming(now) {
			return m, true, nil
		}
	}
	return meetingsdomain.Meeting{}, false, nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	sent     []notification.Message
	failFor  map[string]bool
	failWith notification.Result
}

func (n *fakeNotifier) Send(_ context.Context, msg notification.Message) notification.Result {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failFor[msg.To] || n.failFor["*"] {
		result := n.failWith
		if result.Error == "" {
			result.Error = "provider unavailable"
		}
		return result
	}
	n.sent = append(n.sent, msg)
	return notification.Result{Success: true, ProviderMessageID: "msg-" + msg.TemplateID}
}

func (n *fakeNotifier) sentTo(to string) []notification.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notification.Message
	for _, msg := range n.sent {
		if msg.To == to {
			out = append(out, msg)
		}
	}
	return out
}

type fakeAgents struct {
	contacts map[uuid.UUID]Contact
}

func (f fakeAgents) AgentContact(_ context.Context, id uuid.UUID) (Contact, error) {
	c, ok := f.contacts[id]
	if !ok {
		return Contact{}, errors.New("agent not found")
	}
	return c, nil
}
