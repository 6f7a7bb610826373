package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestDefaultPlanOffsets(t *testing.T) {
	anchor := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	leadID := uuid.New()

	jobs := DefaultPlan().InitialJobs(leadID, anchor, 3, 144)

	want := map[Step]struct {
		typ    Type
		offset time.Duration
	}{
		StepSendWelcomeEmail:    {TypeInitialEngagement, time.Minute},
		StepSend24hReminder:     {TypeReminderSequence, 24 * time.Hour},
		StepSend1hEmailReminder: {TypeReminderSequence, time.Hour},
		StepSend2hSMSReminder:   {TypeReminderSequence, 2 * time.Hour},
		StepCheckMeetingStatus:  {TypeMeetingMonitor, 30 * time.Minute},
		StepSendFollowUpEmail:   {TypeFollowUp, 72 * time.Hour},
	}
	if len(jobs) != len(want) {
		t.Fatalf("expected %d jobs, got %d", len(want), len(jobs))
	}
	for _, job := range jobs {
		expected, ok := want[job.Step]
		if !ok {
			t.Fatalf("unexpected step %s", job.Step)
		}
		if job.WorkflowType != expected.typ {
			t.Fatalf("%s: expected type %s, got %s", job.Step, expected.typ, job.WorkflowType)
		}
		if !job.ScheduledAt.Equal(anchor.Add(expected.offset)) {
			t.Fatalf("%s: expected %v, got %v", job.Step, anchor.Add(expected.offset), job.ScheduledAt)
		}
		if job.LeadID != leadID || job.MaxRetries != 3 {
			t.Fatalf("%s: unexpected lead or retries", job.Step)
		}
		recurring := job.Step == StepCheckMeetingStatus
		if job.Metadata.Recurring != recurring {
			t.Fatalf("%s: recurring = %v", job.Step, job.Metadata.Recurring)
		}
		if recurring && (job.Metadata.IntervalMinutes != 30 || job.Metadata.MaxOccurrences != 144 || job.Metadata.Occurrence != 1) {
			t.Fatalf("unexpected recurrence metadata %+v", job.Metadata)
		}
	}
}

func TestParsePlanOverride(t *testing.T) {
	plan, err := ParsePlan([]byte(`
initial:
  - step: send_welcome_email
    workflowType: initial_engagement
    offset: 5m
    templateId: welcome_v2
  - step: check_meeting_status
    workflowType: meeting_monitor
    offset: 1h
    recurring: true
    intervalMinutes: 60
    maxOccurrences: 10
  - step: send_follow_up_email
    workflowType: follow_up
    offset: 2d
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(plan.Initial) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(plan.Initial))
	}
	if time.Duration(plan.Initial[2].Offset) != 48*time.Hour {
		t.Fatalf("expected day suffix to parse, got %v", time.Duration(plan.Initial[2].Offset))
	}

	jobs := plan.InitialJobs(uuid.New(), time.Unix(0, 0), 3, 144)
	if jobs[1].Metadata.MaxOccurrences != 10 {
		t.Fatalf("expected explicit recurrence limit to win, got %d", jobs[1].Metadata.MaxOccurrences)
	}
}

func TestParsePlanRejectsInvalidEntries(t *testing.T) {
	cases := map[string]string{
		"unknown step":     "initial:\n  - step: launch_rocket\n    workflowType: follow_up\n    offset: 1m\n",
		"unknown type":     "initial:\n  - step: send_welcome_email\n    workflowType: nurture\n    offset: 1m\n",
		"missing interval": "initial:\n  - step: check_meeting_status\n    workflowType: meeting_monitor\n    offset: 1m\n    recurring: true\n",
		"bad offset":       "initial:\n  - step: send_welcome_email\n    workflowType: initial_engagement\n    offset: soon\n",
		"empty":            "initial: []\n",
		"duplicate step":   "initial:\n  - step: send_welcome_email\n    workflowType: initial_engagement\n    offset: 1m\n  - step: send_welcome_email\n    workflowType: initial_engagement\n    offset: 2m\n",
	}
	for name, doc := range cases {
		if _, err := ParsePlan([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestMeetingJobsAnchorToStart(t *testing.T) {
	start := time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)
	jobs := MeetingJobs(uuid.New(), "m-1", start, 3)

	offsets := map[Step]time.Duration{
		StepSendMeetingReminder24h: -24 * time.Hour,
		StepSendMeetingReminder1h:  -time.Hour,
		StepVerifyZoomLink:         -2 * time.Hour,
	}
	if len(jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(jobs))
	}
	for _, job := range jobs {
		if job.WorkflowType != TypeMeetingMonitor || job.Metadata.MeetingID != "m-1" {
			t.Fatalf("unexpected job %+v", job)
		}
		if !job.ScheduledAt.Equal(start.Add(offsets[job.Step])) {
			t.Fatalf("%s scheduled at %v", job.Step, job.ScheduledAt)
		}
	}
}

func TestStatusCounts(t *testing.T) {
	counts := CountJobs([]Job{{Status: StatusPending}, {Status: StatusPending}, {Status: StatusFailed}, {Status: StatusSkipped}})
	if counts.Pending != 2 || counts.Failed != 1 || counts.Skipped != 1 || counts.Total != 4 {
		t.Fatalf("unexpected counts %+v", counts)
	}
}
