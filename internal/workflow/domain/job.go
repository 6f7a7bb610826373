// Package domain defines scheduled workflow jobs and their state machine.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a job. Jobs move forward only:
// pending -> processing -> completed | failed | skipped, except the retry
// path which returns processing -> pending.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
)

// Terminal reports whether the job will never run again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusSkipped
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// Type groups jobs into sequences.
type Type string

const (
	TypeInitialEngagement Type = "initial_engagement"
	TypeReminderSequence  Type = "reminder_sequence"
	TypeMeetingMonitor    Type = "meeting_monitor"
	TypeFollowUp          Type = "follow_up"
)

// Valid reports whether t is a known workflow type.
func (t Type) Valid() bool {
	switch t {
	case TypeInitialEngagement, TypeReminderSequence, TypeMeetingMonitor, TypeFollowUp:
		return true
	}
	return false
}

// Step names the concrete action a job performs.
type Step string

const (
	StepSendWelcomeEmail       Step = "send_welcome_email"
	StepSend24hReminder        Step = "send_24h_reminder"
	StepSend1hEmailReminder    Step = "send_1h_email_reminder"
	StepSend2hSMSReminder      Step = "send_2h_sms_reminder"
	StepCheckMeetingStatus     Step = "check_meeting_status"
	StepSendMeetingReminder24h Step = "send_meeting_reminder_24h"
	StepSendMeetingReminder1h  Step = "send_meeting_reminder_1h"
	StepVerifyZoomLink         Step = "verify_zoom_link"
	StepSendFollowUpEmail      Step = "send_follow_up_email"
)

var allSteps = []Step{
	StepSendWelcomeEmail,
	StepSend24hReminder,
	StepSend1hEmailReminder,
	StepSend2hSMSReminder,
	StepCheckMeetingStatus,
	StepSendMeetingReminder24h,
	StepSendMeetingReminder1h,
	StepVerifyZoomLink,
	StepSendFollowUpEmail,
}

// Steps returns every step the executor must handle.
func Steps() []Step {
	out := make([]Step, len(allSteps))
	copy(out, allSteps)
	return out
}

// Valid reports whether s is a known step.
func (s Step) Valid() bool {
	for _, known := range allSteps {
		if s == known {
			return true
		}
	}
	return false
}

// Metadata is the opaque per-job bag persisted as JSON.
type Metadata struct {
	TemplateID        string `json:"templateId,omitempty"`
	Recurring         bool   `json:"recurring,omitempty"`
	IntervalMinutes   int    `json:"intervalMinutes,omitempty"`
	Occurrence        int    `json:"occurrence,omitempty"`
	MaxOccurrences    int    `json:"maxOccurrences,omitempty"`
	MeetingID         string `json:"meetingId,omitempty"`
	MeetingStart      string `json:"meetingStart,omitempty"`
	Priority          int    `json:"priority,omitempty"`
	TrackingID        string `json:"trackingId,omitempty"`
	ProviderMessageID string `json:"providerMessageId,omitempty"`
	Note              string `json:"note,omitempty"`
}

// Interval returns the recurrence interval.
func (m Metadata) Interval() time.Duration {
	return time.Duration(m.IntervalMinutes) * time.Minute
}

// Job is one scheduled, retryable unit of follow-up work for a lead.
type Job struct {
	ID           uuid.UUID
	LeadID       uuid.UUID
	WorkflowType Type
	Step         Step
	ScheduledAt  time.Time
	Status       Status
	RetryCount   int
	MaxRetries   int
	ErrorMessage *string
	Metadata     Metadata
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
}

// NewJob describes a job to insert.
type NewJob struct {
	LeadID       uuid.UUID
	WorkflowType Type
	Step         Step
	ScheduledAt  time.Time
	MaxRetries   int
	Metadata     Metadata
}

// StatusCounts aggregates jobs of one lead by status.
type StatusCounts struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
	Total      int `json:"total"`
}

// Add counts one job with the given status.
func (c *StatusCounts) Add(status Status) {
	switch status {
	case StatusPending:
		c.Pending++
	case StatusProcessing:
		c.Processing++
	case StatusCompleted:
		c.Completed++
	case StatusFailed:
		c.Failed++
	case StatusSkipped:
		c.Skipped++
	}
	c.Total++
}

// WorkflowStatus is the operator view of one lead's jobs.
type WorkflowStatus struct {
	LeadID uuid.UUID
	Counts StatusCounts
	Jobs   []Job
}

// CountJobs aggregates jobs into status counts.
func CountJobs(jobs []Job) StatusCounts {
	var counts StatusCounts
	for _, job := range jobs {
		counts.Add(job.Status)
	}
	return counts
}
