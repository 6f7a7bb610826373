package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"leadflow_backend/internal/email"
	leadsdomain "leadflow_backend/internal/leads/domain"
	meetingsdomain "leadflow_backend/internal/meetings/domain"
	"leadflow_backend/internal/notification"
	"leadflow_backend/internal/sms"
	"leadflow_backend/internal/workflow/domain"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
)

// actionResult is how an action finished when it did not fail.
type actionResult struct {
	skipReason        string
	stopRecurrence    bool
	providerMessageID string
}

type action func(ctx context.Context, job domain.Job) (actionResult, error)

func skipped(reason string) (actionResult, error) {
	return actionResult{skipReason: reason}, nil
}

// runAction converts a panicking action into an ordinary failure.
func runAction(ctx context.Context, h action, job domain.Job) (res actionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action panicked: %v", r)
		}
	}()
	return h(ctx, job)
}

var zoomJoinURL = regexp.MustCompile(`(?i)https?://([a-z0-9-]+\.)*zoom\.us/(j|my|w|s)/\S+`)

const meetingTimeLayout = "Mon, 02 Jan 2006 15:04 MST"

func (o *Orchestrator) actionTable() map[domain.Step]action {
	return map[domain.Step]action{
		domain.StepSendWelcomeEmail:       o.sendLeadEmail(email.TemplateWelcome, false),
		domain.StepSend1hEmailReminder:    o.sendLeadEmail(email.TemplateScheduleReminder1h, true),
		domain.StepSend24hReminder:        o.sendLeadEmail(email.TemplateScheduleReminder24h, true),
		domain.StepSend2hSMSReminder:      o.sendScheduleSMS,
		domain.StepCheckMeetingStatus:     o.checkMeetingStatus,
		domain.StepSendMeetingReminder24h: o.sendMeetingReminder(email.TemplateMeetingReminder24h),
		domain.StepSendMeetingReminder1h:  o.sendMeetingReminder(email.TemplateMeetingReminder1h),
		domain.StepVerifyZoomLink:         o.verifyZoomLink,
		domain.StepSendFollowUpEmail:      o.sendFollowUp,
	}
}

// loadLead returns ok=false with a skip result when the lead is gone.
func (o *Orchestrator) loadLead(ctx context.Context, id uuid.UUID) (leadsdomain.Lead, bool, error) {
	lead, err := o.leads.Get(ctx, id)
	if apperr.Is(err, apperr.KindNotFound) {
		return leadsdomain.Lead{}, false, nil
	}
	if err != nil {
		return leadsdomain.Lead{}, false, fmt.Errorf("load lead: %w", err)
	}
	return lead, true, nil
}

func (o *Orchestrator) leadVars(lead leadsdomain.Lead) map[string]string {
	return map[string]string{
		"firstName":  lead.FirstName,
		"name":       lead.DisplayName(),
		"bookingUrl": o.cfg.BookingURL,
	}
}

func templateFor(job domain.Job, fallback string) string {
	if job.Metadata.TemplateID != "" {
		return job.Metadata.TemplateID
	}
	return fallback
}

// deliver sends msg and maps the result onto the job outcome.
func (o *Orchestrator) deliver(ctx context.Context, msg notification.Message) (actionResult, error) {
	msg.TrackingID = logger.TrackingIDFromContext(ctx)
	result := o.notifier.Send(ctx, msg)
	if result.Success {
		return actionResult{providerMessageID: result.ProviderMessageID}, nil
	}
	if result.Permanent {
		return actionResult{}, fmt.Errorf("%w: %s", errPermanent, result.Error)
	}
	return actionResult{}, fmt.Errorf("send %s %s: %s", msg.Channel, msg.TemplateID, result.Error)
}

func (o *Orchestrator) sendLeadEmail(template string, onlyUnscheduled bool) action {
	return func(ctx context.Context, job domain.Job) (actionResult, error) {
		lead, ok, err := o.loadLead(ctx, job.LeadID)
		if err != nil {
			return actionResult{}, err
		}
		if !ok {
			return skipped("lead not found")
		}
		if onlyUnscheduled && (lead.Status.HasMeeting() || lead.Status.Terminal()) {
			return skipped("lead is " + string(lead.Status))
		}
		if lead.Email == "" {
			return skipped("lead has no email")
		}
		return o.deliver(ctx, notification.Message{
			Channel:    notification.ChannelEmail,
			To:         lead.Email,
			ToName:     lead.DisplayName(),
			TemplateID: templateFor(job, template),
			Vars:       o.leadVars(lead),
		})
	}
}

func (o *Orchestrator) sendScheduleSMS(ctx context.Context, job domain.Job) (actionResult, error) {
	lead, ok, err := o.loadLead(ctx, job.LeadID)
	if err != nil {
		return actionResult{}, err
	}
	if !ok {
		return skipped("lead not found")
	}
	if lead.Status.HasMeeting() || lead.Status.Terminal() {
		return skipped("lead is " + string(lead.Status))
	}
	if lead.Phone == "" {
		return skipped("lead has no phone")
	}
	return o.deliver(ctx, notification.Message{
		Channel:    notification.ChannelSMS,
		To:         lead.Phone,
		ToName:     lead.DisplayName(),
		TemplateID: templateFor(job, sms.TemplateScheduleReminder),
		Vars:       o.leadVars(lead),
	})
}

func (o *Orchestrator) checkMeetingStatus(ctx context.Context, job domain.Job) (actionResult, error) {
	lead, ok, err := o.loadLead(ctx, job.LeadID)
	if err != nil {
		return actionResult{}, err
	}
	if !ok {
		return actionResult{skipReason: "lead not found", stopRecurrence: true}, nil
	}
	if lead.Status.Terminal() {
		return actionResult{stopRecurrence: true}, nil
	}

	meeting, found, err := o.meetings.FindUpcomingScheduled(ctx, lead.ID, o.now())
	if err != nil {
		return actionResult{}, fmt.Errorf("find meeting: %w", err)
	}
	if !found {
		return actionResult{}, nil
	}
	if err := o.HandleMeetingScheduled(ctx, lead.ID, meeting); err != nil {
		return actionResult{}, err
	}
	return actionResult{stopRecurrence: true}, nil
}

// loadMeeting resolves the job's meeting, returning a skip reason when the
// reminder no longer applies.
func (o *Orchestrator) loadMeeting(ctx context.Context, job domain.Job) (meetingsdomain.Meeting, string, error) {
	meetingID, err := uuid.Parse(job.Metadata.MeetingID)
	if err != nil {
		return meetingsdomain.Meeting{}, "job has no meeting", nil
	}
	meeting, err := o.meetings.Get(ctx, meetingID)
	if apperr.Is(err, apperr.KindNotFound) {
		return meetingsdomain.Meeting{}, "meeting not found", nil
	}
	if err != nil {
		return meetingsdomain.Meeting{}, "", fmt.Errorf("load meeting: %w", err)
	}
	if meeting.Status != meetingsdomain.StatusScheduled {
		return meeting, "meeting is " + string(meeting.Status), nil
	}
	if job.Metadata.MeetingStart != "" && job.Metadata.MeetingStart != domain.MeetingStartKey(meeting.StartTime) {
		return meeting, "meeting moved", nil
	}
	if !meeting.StartTime.After(o.now()) {
		return meeting, "meeting already started", nil
	}
	return meeting, "", nil
}

func (o *Orchestrator) sendMeetingReminder(template string) action {
	return func(ctx context.Context, job domain.Job) (actionResult, error) {
		meeting, reason, err := o.loadMeeting(ctx, job)
		if err != nil {
			return actionResult{}, err
		}
		if reason != "" {
			return skipped(reason)
		}
		lead, ok, err := o.loadLead(ctx, job.LeadID)
		if err != nil {
			return actionResult{}, err
		}
		if !ok {
			return skipped("lead not found")
		}
		if lead.Email == "" {
			return skipped("lead has no email")
		}

		vars := o.leadVars(lead)
		vars["meetingTime"] = meeting.StartTime.UTC().Format(meetingTimeLayout)
		vars["location"] = meeting.Location
		return o.deliver(ctx, notification.Message{
			Channel:    notification.ChannelEmail,
			To:         lead.Email,
			ToName:     lead.DisplayName(),
			TemplateID: templateFor(job, template),
			Vars:       vars,
		})
	}
}

func (o *Orchestrator) verifyZoomLink(ctx context.Context, job domain.Job) (actionResult, error) {
	meeting, reason, err := o.loadMeeting(ctx, job)
	if err != nil {
		return actionResult{}, err
	}
	if reason != "" {
		return skipped(reason)
	}
	if zoomJoinURL.MatchString(meeting.Location) {
		return actionResult{}, nil
	}

	lead, ok, err := o.loadLead(ctx, job.LeadID)
	if err != nil {
		return actionResult{}, err
	}
	if !ok {
		return skipped("lead not found")
	}

	recipient := o.alertRecipient(ctx, lead)
	if recipient.Email == "" {
		return skipped("no alert recipient")
	}

	return o.deliver(ctx, notification.Message{
		Channel:    notification.ChannelEmail,
		To:         recipient.Email,
		ToName:     recipient.Name,
		TemplateID: templateFor(job, email.TemplateZoomLinkMissing),
		Vars: map[string]string{
			"leadName":    lead.DisplayName(),
			"leadEmail":   lead.Email,
			"meetingTime": meeting.StartTime.UTC().Format(meetingTimeLayout),
			"location":    meeting.Location,
			"leadUrl":     o.leadURL(lead.ID),
		},
	})
}

// alertRecipient prefers the assigned agent and falls back to the operator.
func (o *Orchestrator) alertRecipient(ctx context.Context, lead leadsdomain.Lead) Contact {
	if lead.AssignedAgentID != nil && o.agents != nil {
		contact, err := o.agents.AgentContact(ctx, *lead.AssignedAgentID)
		if err == nil && contact.Email != "" {
			return contact
		}
		if err != nil {
			o.log.WithContext(ctx).Warn("agent lookup failed, alerting operator", "agentId", *lead.AssignedAgentID, "error", err)
		}
	}
	return Contact{Name: "Operator", Email: o.cfg.OperatorEmail}
}

func (o *Orchestrator) leadURL(id uuid.UUID) string {
	if o.cfg.AppBaseURL == "" {
		return ""
	}
	return strings.TrimRight(o.cfg.AppBaseURL, "/") + "/leads/" + id.String()
}

func (o *Orchestrator) sendFollowUp(ctx context.Context, job domain.Job) (actionResult, error) {
	lead, ok, err := o.loadLead(ctx, job.LeadID)
	if err != nil {
		return actionResult{}, err
	}
	if !ok {
		return skipped("lead not found")
	}
	if lead.Status.HasMeeting() || lead.Status == leadsdomain.StatusCompleted {
		return skipped("lead is " + string(lead.Status))
	}
	if lead.Email == "" {
		return skipped("lead has no email")
	}
	return o.deliver(ctx, notification.Message{
		Channel:    notification.ChannelEmail,
		To:         lead.Email,
		ToName:     lead.DisplayName(),
		TemplateID: templateFor(job, email.TemplateFollowUp),
		Vars:       o.leadVars(lead),
	})
}
