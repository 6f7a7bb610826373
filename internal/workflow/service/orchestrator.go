// Package service schedules, executes and retries per-lead workflow jobs.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	leadsdomain "leadflow_backend/internal/leads/domain"
	meetingsdomain "leadflow_backend/internal/meetings/domain"
	"leadflow_backend/internal/notification"
	"leadflow_backend/internal/workflow/domain"
	"leadflow_backend/internal/workflow/repository"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/cronloop"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/tracking"

	"github.com/google/uuid"
)

// Config holds the orchestrator tunables.
type Config struct {
	ProcessInterval time.Duration
	BatchLimit      int
	RetryDelay      time.Duration
	MaxRetries      int
	RecurrenceLimit int
	// StaleAfter releases jobs left in processing longer than this.
	StaleAfter    time.Duration
	OperatorEmail string
	AppBaseURL    string
	BookingURL    string
	Plan          domain.Plan
}

// ConfigFrom reads the orchestrator settings and the optional plan file.
func ConfigFrom(cfg config.WorkflowConfig) (Config, error) {
	plan, err := domain.LoadPlan(cfg.GetWorkflowPlanFile())
	if err != nil {
		return Config{}, err
	}
	return Config{
		ProcessInterval: cfg.GetWorkflowProcessInterval(),
		BatchLimit:      cfg.GetWorkflowBatchLimit(),
		RetryDelay:      cfg.GetWorkflowRetryDelay(),
		MaxRetries:      cfg.GetWorkflowMaxRetries(),
		RecurrenceLimit: cfg.GetWorkflowRecurrenceLimit(),
		StaleAfter:      30 * time.Minute,
		OperatorEmail:   cfg.GetOperatorEmail(),
		AppBaseURL:      cfg.GetAppBaseURL(),
		BookingURL:      cfg.GetBookingURL(),
		Plan:            plan,
	}, nil
}

func (c *Config) applyDefaults() {
	if c.ProcessInterval <= 0 {
		c.ProcessInterval = 2 * time.Minute
	}
	if c.BatchLimit <= 0 {
		c.BatchLimit = 50
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 15 * time.Minute
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RecurrenceLimit <= 0 {
		c.RecurrenceLimit = 144
	}
	if len(c.Plan.Initial) == 0 {
		c.Plan = domain.DefaultPlan()
	}
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithAgentDirectory enables agent alerts for verify_zoom_link.
func WithAgentDirectory(agents AgentDirectory) Option {
	return func(o *Orchestrator) { o.agents = agents }
}

// Orchestrator creates workflow jobs for leads and executes due jobs.
type Orchestrator struct {
	store    repository.Store
	leads    LeadStore
	meetings MeetingStore
	agents   AgentDirectory
	notifier notification.Notifier
	cfg      Config
	log      *logger.Logger
	ids      *tracking.Generator
	now      func() time.Time

	handlers   map[domain.Step]action
	processing atomic.Bool
	loop       *cronloop.Loop
}

// New builds an Orchestrator and checks every step has a handler.
func New(store repository.Store, leads LeadStore, meetings MeetingStore, notifier notification.Notifier, cfg Config, log *logger.Logger, opts ...Option) (*Orchestrator, error) {
	cfg.applyDefaults()
	if err := cfg.Plan.Validate(); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		store:    store,
		leads:    leads,
		meetings: meetings,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
		ids:      tracking.NewGenerator(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.handlers = o.actionTable()
	if missing := missingHandlers(o.handlers); len(missing) > 0 {
		return nil, fmt.Errorf("workflow: no handler for steps %v", missing)
	}

	loop, err := cronloop.New("workflow", cfg.ProcessInterval, o.Tick, log)
	if err != nil {
		return nil, err
	}
	o.loop = loop
	return o, nil
}

func missingHandlers(handlers map[domain.Step]action) []domain.Step {
	var missing []domain.Step
	for _, step := range domain.Steps() {
		if handlers[step] == nil {
			missing = append(missing, step)
		}
	}
	return missing
}

// InitializeWorkflow creates the initial batch for a lead. It returns false
// when the batch could not be persisted; a second call for the same lead is a
// no-op returning true.
func (o *Orchestrator) InitializeWorkflow(ctx context.Context, leadID uuid.UUID) bool {
	log := o.log.WithContext(ctx)

	lead, err := o.leads.Get(ctx, leadID)
	if err != nil {
		log.Error("workflow init: load lead failed", "leadId", leadID, "error", err)
		return false
	}

	jobs := o.cfg.Plan.InitialJobs(lead.ID, lead.CreatedAt, o.cfg.MaxRetries, o.cfg.RecurrenceLimit)
	inserted, err := o.store.InitializeBatch(ctx, lead.ID, jobs)
	if err != nil {
		log.Error("workflow init: persist jobs failed", "leadId", leadID, "error", err)
		return false
	}
	if !inserted {
		log.Info("workflow already initialized", "leadId", leadID)
		return true
	}

	log.Info("workflow initialized", "leadId", leadID, "jobs", len(jobs))
	return true
}

// ProcessPendingJobs runs due jobs and returns how many reached completed or
// skipped. A call made while another batch is in flight returns 0.
func (o *Orchestrator) ProcessPendingJobs(ctx context.Context, limit int) int {
	processed, err := o.processPending(ctx, limit)
	if err != nil {
		o.log.WithContext(ctx).Error("workflow batch failed", "error", err)
	}
	return processed
}

// Tick is the timer task: release stalled jobs as a failed attempt, then
// process one batch.
func (o *Orchestrator) Tick(ctx context.Context) error {
	if o.cfg.StaleAfter > 0 {
		now := o.now()
		released, err := o.store.ReleaseStale(ctx, now.Add(-o.cfg.StaleAfter), now.Add(o.cfg.RetryDelay))
		if err != nil {
			return fmt.Errorf("release stale jobs: %w", err)
		}
		if released > 0 {
			o.log.Warn("released stalled workflow jobs", "count", released)
		}
	}
	_, err := o.processPending(ctx, o.cfg.BatchLimit)
	return err
}

func (o *Orchestrator) processPending(ctx context.Context, limit int) (int, error) {
	if !o.processing.CompareAndSwap(false, true) {
		o.log.Debug("workflow batch already in progress")
		return 0, nil
	}
	defer o.processing.Store(false)

	if limit <= 0 {
		limit = o.cfg.BatchLimit
	}

	jobs, err := o.store.ListDue(ctx, o.now(), limit)
	if err != nil {
		return 0, fmt.Errorf("list due jobs: %w", err)
	}
	sort.SliceStable(jobs, func(i, j int) bool {
		if !jobs[i].ScheduledAt.Equal(jobs[j].ScheduledAt) {
			return jobs[i].ScheduledAt.Before(jobs[j].ScheduledAt)
		}
		return jobs[i].WorkflowType < jobs[j].WorkflowType
	})

	processed := 0
	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		if o.processJob(ctx, job) {
			processed++
		}
	}
	if len(jobs) > 0 {
		o.log.Info("workflow batch finished", "due", len(jobs), "processed", processed)
	}
	return processed, nil
}

// processJob runs one job and reports whether it reached completed or skipped.
func (o *Orchestrator) processJob(ctx context.Context, job domain.Job) bool {
	trackingID := job.Metadata.TrackingID
	if trackingID == "" {
		trackingID = o.ids.NewWithPrefix("job")
	}
	ctx = logger.ContextWithTrackingID(ctx, trackingID)
	log := &logger.Logger{Logger: o.log.WithContext(ctx).With("jobId", job.ID, "leadId", job.LeadID, "step", job.Step)}

	claimed, err := o.store.Claim(ctx, job.ID)
	if err != nil {
		log.Error("claim job failed", "error", err)
		return false
	}
	if !claimed {
		log.Debug("job claimed elsewhere")
		return false
	}

	handler, ok := o.handlers[job.Step]
	if !ok {
		msg := fmt.Sprintf("unknown step %q", job.Step)
		if err := o.store.MarkFailed(ctx, job.ID, job.RetryCount, msg); err != nil {
			log.Error("mark job failed", "error", err)
		}
		log.Error("job failed permanently", "reason", msg)
		return false
	}

	res, err := runAction(ctx, handler, job)
	if err != nil {
		o.applyRetry(ctx, log, job, err)
		return false
	}

	now := o.now()
	if res.skipReason != "" {
		if err := o.store.MarkSkipped(ctx, job.ID, now, res.skipReason); err != nil {
			log.Error("mark job skipped", "error", err)
			return false
		}
		log.Info("job skipped", "reason", res.skipReason)
		return true
	}

	meta := job.Metadata
	meta.TrackingID = trackingID
	if res.providerMessageID != "" {
		meta.ProviderMessageID = res.providerMessageID
	}
	if err := o.store.MarkCompleted(ctx, job.ID, now, meta); err != nil {
		log.Error("mark job completed", "error", err)
		return false
	}
	log.Info("job completed")

	if job.Metadata.Recurring && !res.stopRecurrence {
		o.scheduleNextOccurrence(ctx, log, job, now)
	}
	return true
}

// errPermanent marks action failures a retry cannot fix.
var errPermanent = errors.New("permanent failure")

func (o *Orchestrator) applyRetry(ctx context.Context, log *logger.Logger, job domain.Job, cause error) {
	retryCount := job.RetryCount + 1
	maxRetries := job.MaxRetries
	if maxRetries <= 0 {
		maxRetries = o.cfg.MaxRetries
	}

	if retryCount < maxRetries && !errors.Is(cause, errPermanent) {
		next := o.now().Add(o.cfg.RetryDelay)
		if err := o.store.Reschedule(ctx, job.ID, retryCount, next, cause.Error()); err != nil {
			log.Error("reschedule job", "error", err)
			return
		}
		log.Warn("job failed, retry scheduled", "error", cause, "retryCount", retryCount, "nextAttempt", next)
		return
	}

	if err := o.store.MarkFailed(ctx, job.ID, retryCount, cause.Error()); err != nil {
		log.Error("mark job failed", "error", err)
		return
	}
	log.Error("job failed permanently", "error", cause, "retryCount", retryCount)
}

func (o *Orchestrator) scheduleNextOccurrence(ctx context.Context, log *logger.Logger, job domain.Job, now time.Time) {
	meta := job.Metadata
	next := meta.Occurrence + 1
	if meta.Occurrence <= 0 {
		next = 2
	}
	limit := meta.MaxOccurrences
	if limit <= 0 {
		limit = o.cfg.RecurrenceLimit
	}
	if next > limit {
		log.Info("recurrence limit reached", "occurrences", meta.Occurrence, "limit", limit)
		return
	}

	interval := meta.Interval()
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	meta.Occurrence = next
	meta.MaxOccurrences = limit
	meta.TrackingID = ""
	meta.ProviderMessageID = ""

	_, err := o.store.InsertJobs(ctx, []domain.NewJob{{
		LeadID:       job.LeadID,
		WorkflowType: job.WorkflowType,
		Step:         job.Step,
		ScheduledAt:  now.Add(interval),
		MaxRetries:   job.MaxRetries,
		Metadata:     meta,
	}})
	if err != nil {
		log.Error("schedule next occurrence", "error", err)
	}
}

// HandleMeetingScheduled supersedes the lead's pending reminder sequence with
// meeting reminders and marks the lead scheduled. Replays for the same
// meeting and start time change nothing; a new start time skips the pending
// reminders of the old one.
func (o *Orchestrator) HandleMeetingScheduled(ctx context.Context, leadID uuid.UUID, meeting meetingsdomain.Meeting) error {
	log := o.log.WithContext(ctx)
	meetingID := meeting.ID.String()

	jobs := domain.MeetingJobs(leadID, meetingID, meeting.StartTime, o.cfg.MaxRetries)
	result, err := o.store.ScheduleMeeting(ctx, leadID, meetingID, domain.MeetingStartKey(meeting.StartTime), jobs)
	if err != nil {
		return fmt.Errorf("schedule meeting jobs: %w", err)
	}
	if result.AlreadyScheduled {
		log.Info("meeting already scheduled", "leadId", leadID, "meetingId", meetingID)
		return nil
	}

	if err := o.leads.SetStatus(ctx, leadID, leadsdomain.StatusScheduled); err != nil {
		return fmt.Errorf("set lead scheduled: %w", err)
	}
	log.Info("meeting scheduled", "leadId", leadID, "meetingId", meetingID, "superseded", result.Superseded, "moved", result.Moved, "inserted", result.Inserted)
	return nil
}

// HandleMeetingCanceled skips pending jobs tied to the meeting.
func (o *Orchestrator) HandleMeetingCanceled(ctx context.Context, leadID uuid.UUID, meeting meetingsdomain.Meeting) error {
	skipped, err := o.store.SkipMeetingJobs(ctx, meeting.ID.String(), "meeting "+string(meeting.Status))
	if err != nil {
		return fmt.Errorf("skip meeting jobs: %w", err)
	}
	o.log.WithContext(ctx).Info("meeting jobs skipped", "leadId", leadID, "meetingId", meeting.ID, "count", skipped)
	return nil
}

// GetWorkflowStatus returns per-status counts and the jobs of a lead.
func (o *Orchestrator) GetWorkflowStatus(ctx context.Context, leadID uuid.UUID) (domain.WorkflowStatus, error) {
	jobs, err := o.store.ListByLead(ctx, leadID)
	if err != nil {
		return domain.WorkflowStatus{}, err
	}
	return domain.WorkflowStatus{LeadID: leadID, Counts: domain.CountJobs(jobs), Jobs: jobs}, nil
}

// Start schedules continuous processing. Starting twice logs a warning.
func (o *Orchestrator) Start(ctx context.Context) error {
	return o.loop.Start(ctx)
}

// Stop releases the schedule without cancelling an in-flight batch.
func (o *Orchestrator) Stop() {
	o.loop.Stop()
}

// Running reports whether continuous processing is scheduled.
func (o *Orchestrator) Running() bool {
	return o.loop.Running()
}

// Run schedules continuous processing and blocks until ctx is done.
func (o *Orchestrator) Run(ctx context.Context) error {
	return o.loop.Run(ctx)
}
