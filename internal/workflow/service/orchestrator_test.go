package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"leadflow_backend/internal/email"
	leadsdomain "leadflow_backend/internal/leads/domain"
	meetingsdomain "leadflow_backend/internal/meetings/domain"
	"leadflow_backend/internal/notification"
	"leadflow_backend/internal/workflow/domain"
	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type harness struct {
	orch     *Orchestrator
	store    *memStore
	leads    *fakeLeads
	meetings *fakeMeetings
	notifier *fakeNotifier
	clock    *fakeClock
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	clock := &fakeClock{now: t0}
	h := &harness{
		store:    newMemStore(clock),
		leads:    &fakeLeads{leads: map[uuid.UUID]leadsdomain.Lead{}},
		meetings: &fakeMeetings{meetings: map[uuid.UUID]meetingsdomain.Meeting{}},
		notifier: &fakeNotifier{failFor: map[string]bool{}},
		clock:    clock,
	}
	cfg := Config{
		RetryDelay:    15 * time.Minute,
		MaxRetries:    3,
		StaleAfter:    30 * time.Minute,
		OperatorEmail: "ops@example.com",
		BookingURL:    "https://book.example.com",
	}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	orch, err := New(h.store, h.leads, h.meetings, h.notifier, cfg, logger.Nop(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.orch = orch
	return h
}

func (h *harness) addLead(email string) leadsdomain.Lead {
	return h.leads.add(leadsdomain.Lead{Email: email, FirstName: "Ada", Phone: "+31612345678", CreatedAt: t0})
}

func (h *harness) insert(t *testing.T, job domain.NewJob) domain.Job {
	t.Helper()
	if job.MaxRetries == 0 {
		job.MaxRetries = 3
	}
	if job.ScheduledAt.IsZero() {
		job.ScheduledAt = h.clock.Now()
	}
	jobs, err := h.store.InsertJobs(context.Background(), []domain.NewJob{job})
	if err != nil {
		t.Fatalf("InsertJobs: %v", err)
	}
	return jobs[0]
}

func (h *harness) process() int {
	return h.orch.ProcessPendingJobs(context.Background(), 50)
}

func TestInitializeWorkflowCreatesInitialBatch(t *testing.T) {
	h := newHarness(t)
	lead := h.addLead("ada@example.com")

	if !h.orch.InitializeWorkflow(context.Background(), lead.ID) {
		t.Fatal("expected initialization to succeed")
	}

	want := map[domain.Step]time.Time{
		domain.StepSendWelcomeEmail:    t0.Add(time.Minute),
		domain.StepSend24hReminder:     t0.Add(24 * time.Hour),
		domain.StepSend1hEmailReminder: t0.Add(time.Hour),
		domain.StepSend2hSMSReminder:   t0.Add(2 * time.Hour),
		domain.StepCheckMeetingStatus:  t0.Add(30 * time.Minute),
		domain.StepSendFollowUpEmail:   t0.Add(72 * time.Hour),
	}
	jobs, _ := h.store.ListByLead(context.Background(), lead.ID)
	if len(jobs) != len(want) {
		t.Fatalf("expected %d jobs, got %d", len(want), len(jobs))
	}
	for _, job := range jobs {
		at, ok := want[job.Step]
		if !ok {
			t.Fatalf("unexpected step %s", job.Step)
		}
		if !job.ScheduledAt.Equal(at) {
			t.Errorf("%s scheduled at %v, want %v", job.Step, job.ScheduledAt, at)
		}
		if job.Status != domain.StatusPending {
			t.Errorf("%s status %s, want pending", job.Step, job.Status)
		}
		if job.Step == domain.StepCheckMeetingStatus && (!job.Metadata.Recurring || job.Metadata.IntervalMinutes != 30) {
			t.Errorf("check_meeting_status should recur every 30 minutes, got %+v", job.Metadata)
		}
	}
}

func TestInitializeWorkflowSecondCallIsNoop(t *testing.T) {
	h := newHarness(t)
	lead := h.addLead("ada@example.com")

	h.orch.InitializeWorkflow(context.Background(), lead.ID)
	if !h.orch.InitializeWorkflow(context.Background(), lead.ID) {
		t.Fatal("second initialization should report success")
	}

	jobs, _ := h.store.ListByLead(context.Background(), lead.ID)
	if len(jobs) != 6 {
		t.Fatalf("expected 6 jobs after two calls, got %d", len(jobs))
	}
}

func TestInitializeWorkflowPersistenceFailure(t *testing.T) {
	h := newHarness(t)
	lead := h.addLead("ada@example.com")
	h.store.initErr = errors.New("connection refused")

	if h.orch.InitializeWorkflow(context.Background(), lead.ID) {
		t.Fatal("expected false when jobs cannot be persisted")
	}
}

func TestInitializeWorkflowUnknownLead(t *testing.T) {
	h := newHarness(t)
	if h.orch.InitializeWorkflow(context.Background(), uuid.New()) {
		t.Fatal("expected false for an unknown lead")
	}
}

func TestProcessPendingJobsIsolatesFailures(t *testing.T) {
	h := newHarness(t)
	good := h.addLead("good@example.com")
	bad := h.addLead("bad@example.com")
	h.notifier.failFor["bad@example.com"] = true

	goodJob := h.insert(t, domain.NewJob{LeadID: good.ID, WorkflowType: domain.TypeInitialEngagement, Step: domain.StepSendWelcomeEmail})
	badJob := h.insert(t, domain.NewJob{LeadID: bad.ID, WorkflowType: domain.TypeInitialEngagement, Step: domain.StepSendWelcomeEmail})

	if got := h.process(); got != 1 {
		t.Fatalf("expected processed=1, got %d", got)
	}

	if got := h.store.get(goodJob.ID); got.Status != domain.StatusCompleted {
		t.Errorf("good job status %s, want completed", got.Status)
	}
	got := h.store.get(badJob.ID)
	if got.Status != domain.StatusPending || got.RetryCount != 1 {
		t.Fatalf("bad job = %s retry %d, want pending retry 1", got.Status, got.RetryCount)
	}
	if !got.ScheduledAt.Equal(t0.Add(15 * time.Minute)) {
		t.Errorf("retry scheduled at %v, want %v", got.ScheduledAt, t0.Add(15*time.Minute))
	}
	if got.ErrorMessage == nil || *got.ErrorMessage == "" {
		t.Error("expected error message on rescheduled job")
	}
}

func TestRetryExhaustion(t *testing.T) {
	h := newHarness(t)
	lead := h.addLead("ada@example.com")
	h.notifier.failFor["*"] = true
	job := h.insert(t, domain.NewJob{LeadID: lead.ID, WorkflowType: domain.TypeInitialEngagement, Step: domain.StepSendWelcomeEmail})

	for attempt := 1; attempt <= 3; attempt++ {
		h.process()
		got := h.store.get(job.ID)
		if got.RetryCount != attempt {
			t.Fatalf("attempt %d: retryCount %d", attempt, got.RetryCount)
		}
		if attempt < 3 && got.Status != domain.StatusPending {
			t.Fatalf("attempt %d: status %s, want pending", attempt, got.Status)
		}
		h.clock.Advance(15 * time.Minute)
	}

	if got := h.store.get(job.ID); got.Status != domain.StatusFailed {
		t.Fatalf("status %s after 3 attempts, want failed", got.Status)
	}

	h.clock.Advance(24 * time.Hour)
	h.process()
	if got := h.store.get(job.ID); got.Status != domain.StatusFailed || got.RetryCount != 3 {
		t.Fatalf("failed job changed: %s retry %d", got.Status, got.RetryCount)
	}
}

func TestPermanentNotificationFailureSkipsRetry(t *testing.T) {
	h := newHarness(t)
	lead := h.addLead("ada@example.com")
	h.notifier.failFor["*"] = true
	h.notifier.failWith = notification.Result{Error: "unknown template", Permanent: true}
	job := h.insert(t, domain.NewJob{LeadID: lead.ID, WorkflowType: domain.TypeInitialEngagement, Step: domain.StepSendWelcomeEmail})

	h.process()

	got := h.store.get(job.ID)
	if got.Status != domain.StatusFailed || got.RetryCount != 1 {
		t.Fatalf("got %s retry %d, want failed retry 1", got.Status, got.RetryCount)
	}
}

func TestUnknownStepFailsWithoutRetry(t *testing.T) {
	h := newHarness(t)
	lead := h.addLead("ada@example.com")
	job := h.insert(t, domain.NewJob{LeadID: lead.ID, WorkflowType: domain.TypeFollowUp, Step: domain.Step("send_fax")})

	if got := h.process(); got != 0 {
		t.Fatalf("expected processed=0, got %d", got)
	}
	got := h.store.get(job.ID)
	if got.Status != domain.StatusFailed || got.RetryCount != 0 {
		t.Fatalf("got %s retry %d, want failed retry 0", got.Status, got.RetryCount)
	}
}

func TestLostClaimIsSkipped(t *testing.T) {
	h := newHarness(t)
	lead := h.addLead("ada@example.com")
	job := h.insert(t, domain.NewJob{LeadID: lead.ID, WorkflowType: domain.TypeInitialEngagement, Step: domain.StepSendWelcomeEmail})
	h.store.claimLosers[job.ID] = true

	if got := h.process(); got != 0 {
		t.Fatalf("expected processed=0, got %d", got)
	}
	if len(h.notifier.sentTo("ada@example.com")) != 0 {
		t.Fatal("a job claimed elsewhere must not run")
	}
}

func TestConcurrentBatchReturnsZero(t *testing.T) {
	h := newHarness(t)
	lead := h.addLead("ada@example.com")
	job := h.insert(t, domain.NewJob{LeadID: lead.ID, WorkflowType: domain.TypeInitialEngagement, Step: domain.StepSendWelcomeEmail})

	h.orch.processing.Store(true)
	if got := h.process(); got != 0 {
		t.Fatalf("expected 0 while a batch is in flight, got %d", got)
	}
	if got := h.store.get(job.ID); got.Status != domain.StatusPending {
		t.Fatalf("job status %s, want pending", got.Status)
	}

	h.orch.processing.Store(false)
	if got := h.process(); got != 1 {
		t.Fatalf("expected 1 after the flag clears, got %d", got)
	}
}

func TestConcurrentCallsRunEachJobOnce(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 10; i++ {
		lead := h.addLead(uuid.NewString() + "@example.com")
		h.insert(t, domain.NewJob{LeadID: lead.ID, WorkflowType: domain.TypeInitialEngagement, Step: domain.StepSendWelcomeEmail})
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n := h.process()
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	wg.Wait()
	total += h.process()

	if total != 10 {
		t.Fatalf("expected 10 jobs processed in total, got %d", total)
	}
	if len(h.notifier.sent) != 10 {
		t.Fatalf("expected 10 emails, got %d", len(h.notifier.sent))
	}
}

func TestRecurringCheckReschedules(t *testing.T) {
	h := newHarness(t)
	lead := h.addLead("ada@example.com")
	job := h.insert(t, domain.NewJob{
		LeadID:       lead.ID,
		WorkflowType: domain.TypeMeetingMonitor,
		Step:         domain.StepCheckMeetingStatus,
		Metadata:     domain.Metadata{Recurring: true, IntervalMinutes: 30, Occurrence: 1, MaxOccurrences: 144},
	})

	if got := h.process(); got != 1 {
		t.Fatalf("expected processed=1, got %d", got)
	}
	if got := h.store.get(job.ID); got.Status != domain.StatusCompleted {
		t.Fatalf("original status %s, want completed", got.Status)
	}

	checks := h.store.byStep(lead.ID, domain.StepCheckMeetingStatus)
	if len(checks) != 2 {
		t.Fatalf("expected 2 check jobs, got %d", len(checks))
	}
	next := checks[1]
	if next.Status != domain.StatusPending || !next.ScheduledAt.Equal(t0.Add(30*time.Minute)) {
		t.Fatalf("next check = %s at %v", next.Status, next.ScheduledAt)
	}
	if next.Metadata.Occurrence != 2 {
		t.Errorf("next occurrence %d, want 2", next.Metadata.Occurrence)
	}
}

func TestRecurrenceStopsAtLimit(t *testing.T) {
	h := newHarness(t)
	lead := h.addLead("ada@example.com")
	h.insert(t, domain.NewJob{
		LeadID:       lead.ID,
		WorkflowType: domain.TypeMeetingMonitor,
		Step:         domain.StepCheckMeetingStatus,
		Metadata:     domain.Metadata{Recurring: true, IntervalMinutes: 30, Occurrence: 3, MaxOccurrences: 3},
	})

	h.process()

	if checks := h.store.byStep(lead.ID, domain.StepCheckMeetingStatus); len(checks) != 1 {
		t.Fatalf("expected no further occurrence, got %d check jobs", len(checks))
	}
}

func TestCheckMeetingStatusStopsForTerminalLead(t *testing.T) {
	h := newHarness(t)
	lead := h.addLead("ada@example.com")
	_ = h.leads.SetStatus(context.Background(), lead.ID, leadsdomain.StatusCanceled)
	h.insert(t, domain.NewJob{
		LeadID:       lead.ID,
		WorkflowType: domain.TypeMeetingMonitor,
		Step:         domain.StepCheckMeetingStatus,
		Metadata:     domain.Metadata{Recurring: true, IntervalMinutes: 30, Occurrence: 1},
	})

	h.process()

	if checks := h.store.byStep(lead.ID, domain.StepCheckMeetingStatus); len(checks) != 1 {
		t.Fatalf("recurrence should stop for a canceled lead, got %d check jobs", len(checks))
	}
}

func TestCheckMeetingStatusFindsMeeting(t *testing.T) {
	h := newHarness(t)
	lead := h.addLead("ada@example.com")
	h.orch.InitializeWorkflow(context.Background(), lead.ID)
	h.meetings.add(meetingsdomain.Meeting{LeadID: lead.ID, StartTime: t0.Add(48 * time.Hour)})

	h.clock.Advance(31 * time.Minute)
	h.process()

	if h.leads.status(lead.ID) != leadsdomain.StatusScheduled {
		t.Fatalf("lead status %s, want scheduled", h.leads.status(lead.ID))
	}
	if checks := h.store.byStep(lead.ID, domain.StepCheckMeetingStatus); len(checks) != 1 {
		t.Fatalf("recurrence should stop once a meeting exists, got %d check jobs", len(checks))
	}
	if got := h.store.byStep(lead.ID, domain.StepVerifyZoomLink); len(got) != 1 {
		t.Fatalf("expected meeting monitor jobs, got %d verify jobs", len(got))
	}
}

func TestHandleMeetingScheduledSupersedesReminders(t *testing.T) {
	h := newHarness(t)
	lead := h.addLead("ada@example.com")
	h.orch.InitializeWorkflow(context.Background(), lead.ID)
	start := t0.Add(48 * time.Hour)
	meeting := h.meetings.add(meetingsdomain.Meeting{LeadID: lead.ID, StartTime: start})

	if err := h.orch.HandleMeetingScheduled(context.Background(), lead.ID, meeting); err != nil {
		t.Fatalf("HandleMeetingScheduled: %v", err)
	}

	jobs, _ := h.store.ListByLead(context.Background(), lead.ID)
	meetingJobs := map[domain.Step]time.Time{}
	for _, job := range jobs {
		switch job.WorkflowType {
		case domain.TypeReminderSequence:
			if job.Status != domain.StatusSkipped {
				t.Errorf("%s status %s, want skipped", job.Step, job.Status)
			}
		case domain.TypeMeetingMonitor:
			if job.Metadata.MeetingID == meeting.ID.String() {
				meetingJobs[job.Step] = job.ScheduledAt
			}
		}
	}

	want := map[domain.Step]time.Time{
		domain.StepSendMeetingReminder24h: start.Add(-24 * time.Hour),
		domain.StepSendMeetingReminder1h:  start.Add(-time.Hour),
		domain.StepVerifyZoomLink:         start.Add(-2 * time.Hour),
	}
	if len(meetingJobs) != len(want) {
		t.Fatalf("expected %d meeting jobs, got %d", len(want), len(meetingJobs))
	}
	for step, at := range want {
		if !meetingJobs[step].Equal(at) {
			t.Errorf("%s at %v, want %v", step, meetingJobs[step], at)
		}
	}
	if h.leads.status(lead.ID) != leadsdomain.StatusScheduled {
		t.Errorf("lead status %s, want scheduled", h.leads.status(lead.ID))
	}

	before := len(jobs)
	if err := h.orch.HandleMeetingScheduled(context.Background(), lead.ID, meeting); err != nil {
		t.Fatalf("replay: %v", err)
	}
	after, _ := h.store.ListByLead(context.Background(), lead.ID)
	if len(after) != before {
		t.Fatalf("replay created jobs: %d -> %d", before, len(after))
	}
}

func TestHandleMeetingCanceledSkipsMeetingJobs(t *testing.T) {
	h := newHarness(t)
	lead := h.addLead("ada@example.com")
	meeting := h.meetings.add(meetingsdomain.Meeting{LeadID: lead.ID, StartTime: t0.Add(48 * time.Hour)})
	_ = h.orch.HandleMeetingScheduled(context.Background(), lead.ID, meeting)

	meeting.Status = meetingsdomain.StatusCanceled
	if err := h.orch.HandleMeetingCanceled(context.Background(), lead.ID, meeting); err != nil {
		t.Fatalf("HandleMeetingCanceled: %v", err)
	}

	status, _ := h.orch.GetWorkflowStatus(context.Background(), lead.ID)
	if status.Counts.Skipped != 3 || status.Counts.Pending != 0 {
		t.Fatalf("counts = %+v, want 3 skipped", status.Counts)
	}
}

func TestMeetingRescheduledAfterCancelGetsReminders(t *testing.T) {
	h := newHarness(t)
	lead := h.addLead("ada@example.com")
	meeting := h.meetings.add(meetingsdomain.Meeting{LeadID: lead.ID, StartTime: t0.Add(48 * time.Hour)})
	if err := h.orch.HandleMeetingScheduled(context.Background(), lead.ID, meeting); err != nil {
		t.Fatalf("HandleMeetingScheduled: %v", err)
	}

	meeting.Status = meetingsdomain.StatusCanceled
	h.meetings.add(meeting)
	if err := h.orch.HandleMeetingCanceled(context.Background(), lead.ID, meeting); err != nil {
		t.Fatalf("HandleMeetingCanceled: %v", err)
	}

	meeting.Status = meetingsdomain.StatusScheduled
	h.meetings.add(meeting)
	if err := h.orch.HandleMeetingScheduled(context.Background(), lead.ID, meeting); err != nil {
		t.Fatalf("HandleMeetingScheduled again: %v", err)
	}

	if got := pendingJobs(h.store.byStep(lead.ID, domain.StepSendMeetingReminder24h)); len(got) != 1 {
		t.Fatalf("expected 1 pending 24h reminder, got %d", len(got))
	}
	status, _ := h.orch.GetWorkflowStatus(context.Background(), lead.ID)
	if status.Counts.Pending != 3 || status.Counts.Skipped != 3 {
		t.Fatalf("counts = %+v, want 3 pending and 3 skipped", status.Counts)
	}
}

func TestMovedMeetingDropsOldReminders(t *testing.T) {
	h := newHarness(t)
	lead := h.addLead("ada@example.com")
	meeting := h.meetings.add(meetingsdomain.Meeting{LeadID: lead.ID, StartTime: t0.Add(72 * time.Hour), Location: "https://zoom.us/j/123"})
	if err := h.orch.HandleMeetingScheduled(context.Background(), lead.ID, meeting); err != nil {
		t.Fatalf("HandleMeetingScheduled: %v", err)
	}

	meeting.StartTime = t0.Add(96 * time.Hour)
	h.meetings.add(meeting)
	if err := h.orch.HandleMeetingScheduled(context.Background(), lead.ID, meeting); err != nil {
		t.Fatalf("HandleMeetingScheduled moved: %v", err)
	}

	h.clock.Advance(48 * time.Hour)
	h.process()

	if sent := h.notifier.sentTo("ada@example.com"); len(sent) != 0 {
		t.Fatalf("reminder for the old start was sent: %+v", sent)
	}
	pending := pendingJobs(h.store.byStep(lead.ID, domain.StepSendMeetingReminder24h))
	if len(pending) != 1 || !pending[0].ScheduledAt.Equal(t0.Add(72*time.Hour)) {
		t.Fatalf("pending 24h reminders = %+v, want one at the new start minus 24h", pending)
	}
}

func TestMeetingReminderSkippedWhenStartChanged(t *testing.T) {
	h := newHarness(t)
	lead := h.addLead("ada@example.com")
	meeting := h.meetings.add(meetingsdomain.Meeting{LeadID: lead.ID, StartTime: t0.Add(5 * time.Hour)})
	job := h.insert(t, domain.NewJob{
		LeadID:       lead.ID,
		WorkflowType: domain.TypeMeetingMonitor,
		Step:         domain.StepSendMeetingReminder1h,
		Metadata: domain.Metadata{
			MeetingID:    meeting.ID.String(),
			MeetingStart: domain.MeetingStartKey(t0.Add(time.Hour)),
		},
	})

	h.process()

	got := h.store.get(job.ID)
	if got.Status != domain.StatusSkipped || got.ErrorMessage == nil || *got.ErrorMessage != "meeting moved" {
		t.Fatalf("job = %+v, want skipped as moved", got)
	}
	if len(h.notifier.sent) != 0 {
		t.Fatal("no reminder should be sent for a moved meeting")
	}
}

func pendingJobs(jobs []domain.Job) []domain.Job {
	var out []domain.Job
	for _, job := range jobs {
		if job.Status == domain.StatusPending {
			out = append(out, job)
		}
	}
	return out
}

func TestMeetingReminderSkippedWhenCanceled(t *testing.T) {
	h := newHarness(t)
	lead := h.addLead("ada@example.com")
	meeting := h.meetings.add(meetingsdomain.Meeting{LeadID: lead.ID, StartTime: t0.Add(2 * time.Hour), Status: meetingsdomain.StatusCanceled})
	job := h.insert(t, domain.NewJob{
		LeadID:       lead.ID,
		WorkflowType: domain.TypeMeetingMonitor,
		Step:         domain.StepSendMeetingReminder1h,
		Metadata:     domain.Metadata{MeetingID: meeting.ID.String()},
	})

	if got := h.process(); got != 1 {
		t.Fatalf("expected processed=1, got %d", got)
	}
	if got := h.store.get(job.ID); got.Status != domain.StatusSkipped {
		t.Fatalf("status %s, want skipped", got.Status)
	}
	if len(h.notifier.sent) != 0 {
		t.Fatal("no reminder should be sent for a canceled meeting")
	}
}

func TestMeetingReminderSent(t *testing.T) {
	h := newHarness(t)
	lead := h.addLead("ada@example.com")
	meeting := h.meetings.add(meetingsdomain.Meeting{LeadID: lead.ID, StartTime: t0.Add(time.Hour), Location: "https://zoom.us/j/123"})
	h.insert(t, domain.NewJob{
		LeadID:       lead.ID,
		WorkflowType: domain.TypeMeetingMonitor,
		Step:         domain.StepSendMeetingReminder1h,
		Metadata:     domain.Metadata{MeetingID: meeting.ID.String()},
	})

	h.process()

	sent := h.notifier.sentTo("ada@example.com")
	if len(sent) != 1 || sent[0].TemplateID != email.TemplateMeetingReminder1h {
		t.Fatalf("unexpected sends: %+v", sent)
	}
	if sent[0].Vars["location"] != "https://zoom.us/j/123" {
		t.Errorf("location var = %q", sent[0].Vars["location"])
	}
}

func TestVerifyZoomLink(t *testing.T) {
	agentID := uuid.New()
	cases := []struct {
		name     string
		location string
		agent    *uuid.UUID
		wantTo   string
	}{
		{name: "zoom link present", location: "Join: https://us02web.zoom.us/j/8812345678?pwd=abc"},
		{name: "missing link alerts operator", location: "Office", wantTo: "ops@example.com"},
		{name: "missing link alerts agent", location: "", agent: &agentID, wantTo: "agent@example.com"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, WithAgentDirectory(fakeAgents{contacts: map[uuid.UUID]Contact{
				agentID: {Name: "Sam", Email: "agent@example.com"},
			}}))
			lead := h.leads.add(leadsdomain.Lead{Email: "ada@example.com", AssignedAgentID: tc.agent, CreatedAt: t0})
			meeting := h.meetings.add(meetingsdomain.Meeting{LeadID: lead.ID, StartTime: t0.Add(2 * time.Hour), Location: tc.location})
			job := h.insert(t, domain.NewJob{
				LeadID:       lead.ID,
				WorkflowType: domain.TypeMeetingMonitor,
				Step:         domain.StepVerifyZoomLink,
				Metadata:     domain.Metadata{MeetingID: meeting.ID.String()},
			})

			h.process()

			if got := h.store.get(job.ID); got.Status != domain.StatusCompleted {
				t.Fatalf("status %s, want completed", got.Status)
			}
			if tc.wantTo == "" {
				if len(h.notifier.sent) != 0 {
					t.Fatalf("expected no alert, got %+v", h.notifier.sent)
				}
				return
			}
			sent := h.notifier.sentTo(tc.wantTo)
			if len(sent) != 1 || sent[0].TemplateID != email.TemplateZoomLinkMissing {
				t.Fatalf("expected one zoom alert to %s, got %+v", tc.wantTo, h.notifier.sent)
			}
		})
	}
}

func TestMissingRecipientSkipsJob(t *testing.T) {
	h := newHarness(t)
	lead := h.leads.add(leadsdomain.Lead{FirstName: "Ada", CreatedAt: t0})
	job := h.insert(t, domain.NewJob{LeadID: lead.ID, WorkflowType: domain.TypeReminderSequence, Step: domain.StepSend2hSMSReminder})

	if got := h.process(); got != 1 {
		t.Fatalf("expected processed=1, got %d", got)
	}
	if got := h.store.get(job.ID); got.Status != domain.StatusSkipped {
		t.Fatalf("status %s, want skipped", got.Status)
	}
}

func TestFollowUpSkippedForScheduledLead(t *testing.T) {
	h := newHarness(t)
	lead := h.addLead("ada@example.com")
	_ = h.leads.SetStatus(context.Background(), lead.ID, leadsdomain.StatusScheduled)
	job := h.insert(t, domain.NewJob{LeadID: lead.ID, WorkflowType: domain.TypeFollowUp, Step: domain.StepSendFollowUpEmail})

	h.process()

	if got := h.store.get(job.ID); got.Status != domain.StatusSkipped {
		t.Fatalf("status %s, want skipped", got.Status)
	}
}

type panickingNotifier struct{}

func (panickingNotifier) Send(context.Context, notification.Message) notification.Result {
	panic("provider client exploded")
}

func TestPanickingActionIsRetried(t *testing.T) {
	h := newHarness(t)
	h.orch.notifier = panickingNotifier{}
	lead := h.addLead("ada@example.com")
	job := h.insert(t, domain.NewJob{LeadID: lead.ID, WorkflowType: domain.TypeInitialEngagement, Step: domain.StepSendWelcomeEmail})

	h.process()

	got := h.store.get(job.ID)
	if got.Status != domain.StatusPending || got.RetryCount != 1 {
		t.Fatalf("got %s retry %d, want pending retry 1", got.Status, got.RetryCount)
	}
}

func TestTickReleasesStalledJobs(t *testing.T) {
	h := newHarness(t)
	lead := h.addLead("ada@example.com")
	job := h.insert(t, domain.NewJob{LeadID: lead.ID, WorkflowType: domain.TypeInitialEngagement, Step: domain.StepSendWelcomeEmail})
	if ok, _ := h.store.Claim(context.Background(), job.ID); !ok {
		t.Fatal("claim failed")
	}

	h.clock.Advance(31 * time.Minute)
	if err := h.orch.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	got := h.store.get(job.ID)
	if got.Status != domain.StatusPending || got.RetryCount != 1 {
		t.Fatalf("status %s retries %d, want pending with 1 retry", got.Status, got.RetryCount)
	}
	if want := t0.Add(31*time.Minute + 15*time.Minute); !got.ScheduledAt.Equal(want) {
		t.Fatalf("rescheduled at %v, want %v", got.ScheduledAt, want)
	}

	h.clock.Advance(15 * time.Minute)
	if err := h.orch.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if got := h.store.get(job.ID); got.Status != domain.StatusCompleted {
		t.Fatalf("status %s, want completed", got.Status)
	}
}

func TestTickFailsStalledJobOutOfRetries(t *testing.T) {
	h := newHarness(t)
	lead := h.addLead("ada@example.com")
	job := h.insert(t, domain.NewJob{LeadID: lead.ID, WorkflowType: domain.TypeInitialEngagement, Step: domain.StepSendWelcomeEmail})

	for attempt := 1; attempt <= 3; attempt++ {
		if ok, _ := h.store.Claim(context.Background(), job.ID); !ok {
			t.Fatalf("claim %d failed", attempt)
		}
		h.clock.Advance(31 * time.Minute)
		if _, err := h.store.ReleaseStale(context.Background(), h.clock.Now().Add(-30*time.Minute), h.clock.Now()); err != nil {
			t.Fatalf("ReleaseStale: %v", err)
		}
	}

	got := h.store.get(job.ID)
	if got.Status != domain.StatusFailed || got.RetryCount != 3 {
		t.Fatalf("status %s retries %d, want failed with 3 retries", got.Status, got.RetryCount)
	}
	h.process()
	if len(h.notifier.sent) != 0 {
		t.Fatal("failed job must not run again")
	}
}

func TestEveryStepHasHandler(t *testing.T) {
	h := newHarness(t)
	if missing := missingHandlers(h.orch.handlers); len(missing) != 0 {
		t.Fatalf("steps without handler: %v", missing)
	}

	table := h.orch.actionTable()
	delete(table, domain.StepVerifyZoomLink)
	missing := missingHandlers(table)
	if len(missing) != 1 || missing[0] != domain.StepVerifyZoomLink {
		t.Fatalf("missingHandlers = %v", missing)
	}
}

func TestGetWorkflowStatusCounts(t *testing.T) {
	h := newHarness(t)
	lead := h.addLead("ada@example.com")
	h.orch.InitializeWorkflow(context.Background(), lead.ID)
	h.clock.Advance(2 * time.Minute)
	h.process()

	status, err := h.orch.GetWorkflowStatus(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("GetWorkflowStatus: %v", err)
	}
	if status.Counts.Completed != 1 || status.Counts.Pending != 5 || status.Counts.Total != 6 {
		t.Fatalf("counts = %+v", status.Counts)
	}
	if len(status.Jobs) != 6 {
		t.Fatalf("expected 6 jobs, got %d", len(status.Jobs))
	}
}
