package repository

import (
	"context"
	"time"

	"leadflow_backend/internal/workflow/domain"

	"github.com/google/uuid"
)

// Store is the persistence the orchestrator needs.
type Store interface {
	// InitializeBatch marks the lead initialized and inserts jobs atomically.
	// It reports false without inserting when the lead was already initialized.
	InitializeBatch(ctx context.Context, leadID uuid.UUID, jobs []domain.NewJob) (bool, error)
	InsertJobs(ctx context.Context, jobs []domain.NewJob) ([]domain.Job, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Job, error)
	// Claim moves a job from pending to processing and reports whether this
	// caller won the transition.
	Claim(ctx context.Context, id uuid.UUID) (bool, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time, meta domain.Metadata) error
	MarkSkipped(ctx context.Context, id uuid.UUID, at time.Time, reason string) error
	MarkFailed(ctx context.Context, id uuid.UUID, retryCount int, message string) error
	Reschedule(ctx context.Context, id uuid.UUID, retryCount int, at time.Time, message string) error
	// ScheduleMeeting is a no-op when non-skipped jobs for the same meeting
	// and start time already exist.
	ScheduleMeeting(ctx context.Context, leadID uuid.UUID, meetingID, meetingStart string, jobs []domain.NewJob) (MeetingScheduleResult, error)
	SkipMeetingJobs(ctx context.Context, meetingID string, reason string) (int, error)
	ReleaseStale(ctx context.Context, olderThan, retryAt time.Time) (int, error)
	ListByLead(ctx context.Context, leadID uuid.UUID) ([]domain.Job, error)
}

// Lister backs operator job listings.
type Lister interface {
	List(ctx context.Context, params ListParams) ([]domain.Job, int, error)
}

// MeetingScheduleResult reports what ScheduleMeeting changed.
type MeetingScheduleResult struct {
	AlreadyScheduled bool
	Superseded       int
	Moved            int
	Inserted         int
}
