package domain

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Offsets of meeting-anchored jobs relative to the meeting start.
const (
	MeetingReminder24hBefore = 24 * time.Hour
	MeetingReminder1hBefore  = time.Hour
	ZoomCheckBefore          = 2 * time.Hour
)

// PlanEntry is one job of the initial batch, anchored to lead creation time.
type PlanEntry struct {
	Step            Step     `yaml:"step"`
	WorkflowType    Type     `yaml:"workflowType"`
	Offset          Duration `yaml:"offset"`
	TemplateID      string   `yaml:"templateId"`
	Recurring       bool     `yaml:"recurring"`
	IntervalMinutes int      `yaml:"intervalMinutes"`
	MaxOccurrences  int      `yaml:"maxOccurrences"`
	Priority        int      `yaml:"priority"`
}

// Plan is the initial batch created for every new lead.
type Plan struct {
	Initial []PlanEntry `yaml:"initial"`
}

// DefaultPlan returns the built-in initial batch.
func DefaultPlan() Plan {
	return Plan{Initial: []PlanEntry{
		{Step: StepSendWelcomeEmail, WorkflowType: TypeInitialEngagement, Offset: Duration(time.Minute), TemplateID: "welcome", Priority: 1},
		{Step: StepSend1hEmailReminder, WorkflowType: TypeReminderSequence, Offset: Duration(time.Hour), TemplateID: "schedule_reminder_1h", Priority: 2},
		{Step: StepSend2hSMSReminder, WorkflowType: TypeReminderSequence, Offset: Duration(2 * time.Hour), TemplateID: "schedule_reminder_sms", Priority: 2},
		{Step: StepSend24hReminder, WorkflowType: TypeReminderSequence, Offset: Duration(24 * time.Hour), TemplateID: "schedule_reminder_24h", Priority: 2},
		{Step: StepCheckMeetingStatus, WorkflowType: TypeMeetingMonitor, Offset: Duration(30 * time.Minute), Recurring: true, IntervalMinutes: 30, Priority: 3},
		{Step: StepSendFollowUpEmail, WorkflowType: TypeFollowUp, Offset: Duration(72 * time.Hour), TemplateID: "follow_up", Priority: 4},
	}}
}

// LoadPlan reads a YAML plan file. An empty path returns DefaultPlan.
func LoadPlan(path string) (Plan, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultPlan(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, fmt.Errorf("read workflow plan: %w", err)
	}
	return ParsePlan(data)
}

// ParsePlan decodes and validates a YAML plan.
func ParsePlan(data []byte) (Plan, error) {
	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return Plan{}, fmt.Errorf("decode workflow plan: %w", err)
	}
	if err := plan.Validate(); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

// Validate checks every entry names a known step and type.
func (p Plan) Validate() error {
	if len(p.Initial) == 0 {
		return fmt.Errorf("workflow plan: initial batch is empty")
	}
	seen := make(map[Step]bool, len(p.Initial))
	for i, entry := range p.Initial {
		if !entry.Step.Valid() {
			return fmt.Errorf("workflow plan: entry %d: unknown step %q", i, entry.Step)
		}
		if !entry.WorkflowType.Valid() {
			return fmt.Errorf("workflow plan: entry %d: unknown workflow type %q", i, entry.WorkflowType)
		}
		if entry.Offset < 0 {
			return fmt.Errorf("workflow plan: entry %d: negative offset", i)
		}
		if entry.Recurring && entry.IntervalMinutes <= 0 {
			return fmt.Errorf("workflow plan: entry %d: recurring step needs intervalMinutes", i)
		}
		if seen[entry.Step] {
			return fmt.Errorf("workflow plan: entry %d: duplicate step %q", i, entry.Step)
		}
		seen[entry.Step] = true
	}
	return nil
}

// InitialJobs builds the batch for a lead created at anchor.
func (p Plan) InitialJobs(leadID uuid.UUID, anchor time.Time, maxRetries, recurrenceLimit int) []NewJob {
	jobs := make([]NewJob, 0, len(p.Initial))
	for _, entry := range p.Initial {
		meta := Metadata{
			TemplateID: entry.TemplateID,
			Priority:   entry.Priority,
		}
		if entry.Recurring {
			meta.Recurring = true
			meta.IntervalMinutes = entry.IntervalMinutes
			meta.Occurrence = 1
			meta.MaxOccurrences = entry.MaxOccurrences
			if meta.MaxOccurrences <= 0 {
				meta.MaxOccurrences = recurrenceLimit
			}
		}
		jobs = append(jobs, NewJob{
			LeadID:       leadID,
			WorkflowType: entry.WorkflowType,
			Step:         entry.Step,
			ScheduledAt:  anchor.Add(time.Duration(entry.Offset)),
			MaxRetries:   maxRetries,
			Metadata:     meta,
		})
	}
	return jobs
}

// MeetingJobs builds the jobs anchored to a scheduled meeting.
func MeetingJobs(leadID uuid.UUID, meetingID string, start time.Time, maxRetries int) []NewJob {
	build := func(step Step, before time.Duration, template string) NewJob {
		return NewJob{
			LeadID:       leadID,
			WorkflowType: TypeMeetingMonitor,
			Step:         step,
			ScheduledAt:  start.Add(-before),
			MaxRetries:   maxRetries,
			Metadata: Metadata{
				MeetingID:    meetingID,
				MeetingStart: MeetingStartKey(start),
				TemplateID:   template,
				Priority:     1,
			},
		}
	}
	return []NewJob{
		build(StepSendMeetingReminder24h, MeetingReminder24hBefore, "meeting_reminder_24h"),
		build(StepSendMeetingReminder1h, MeetingReminder1hBefore, "meeting_reminder_1h"),
		build(StepVerifyZoomLink, ZoomCheckBefore, "zoom_link_missing"),
	}
}

// MeetingStartKey formats a meeting start for idempotency checks.
func MeetingStartKey(start time.Time) string {
	return start.UTC().Format(time.RFC3339)
}

// Duration is a time.Duration that decodes from YAML strings such as
// "90m", "24h" or "3d".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := ParseOffset(node.Value)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// ParseOffset parses a duration, additionally accepting a whole-day "d" suffix.
func ParseOffset(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if days, ok := strings.CutSuffix(value, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid day offset %q", value)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid offset %q", value)
	}
	return d, nil
}
