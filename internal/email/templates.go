package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"sync"
)

//go:embed templates/*.html
var templateFS embed.FS

// Template ids used by the workflow actions.
const (
	TemplateWelcome             = "welcome"
	TemplateScheduleReminder1h  = "schedule_reminder_1h"
	TemplateScheduleReminder24h = "schedule_reminder_24h"
	TemplateMeetingReminder24h  = "meeting_reminder_24h"
	TemplateMeetingReminder1h   = "meeting_reminder_1h"
	TemplateZoomLinkMissing     = "zoom_link_missing"
	TemplateFollowUp            = "follow_up"
)

type baseEmailData struct {
	Title      string
	Heading    string
	Subheading string
	CTALabel   string
	CTAURL     string
}

type templateData struct {
	baseEmailData
	Vars map[string]string
}

type templateSpec struct {
	file     string
	subject  string
	heading  string
	ctaLabel string
	ctaVar   string
}

var templateSpecs = map[string]templateSpec{
	TemplateWelcome:             {file: "welcome.html", subject: subjectWelcome, heading: "Thanks for reaching out", ctaLabel: "Book a call", ctaVar: "bookingUrl"},
	TemplateScheduleReminder1h:  {file: "schedule_reminder.html", subject: subjectScheduleReminder, heading: "Pick a time that works for you", ctaLabel: "Book a call", ctaVar: "bookingUrl"},
	TemplateScheduleReminder24h: {file: "schedule_reminder.html", subject: subjectScheduleReminderLast, heading: "Still interested?", ctaLabel: "Book a call", ctaVar: "bookingUrl"},
	TemplateMeetingReminder24h:  {file: "meeting_reminder.html", subject: subjectMeetingTomorrow, heading: "Your meeting is tomorrow", ctaLabel: "Join meeting", ctaVar: "location"},
	TemplateMeetingReminder1h:   {file: "meeting_reminder.html", subject: subjectMeetingSoon, heading: "Your meeting starts in one hour", ctaLabel: "Join meeting", ctaVar: "location"},
	TemplateZoomLinkMissing:     {file: "zoom_link_missing.html", subject: subjectZoomLinkMissing, heading: "Meeting has no Zoom link", ctaLabel: "Open lead", ctaVar: "leadUrl"},
	TemplateFollowUp:            {file: "follow_up.html", subject: subjectFollowUp, heading: "Checking in", ctaLabel: "Book a call", ctaVar: "bookingUrl"},
}

var (
	parsedMu sync.Mutex
	parsed   = map[string]*template.Template{}
)

// Known reports whether a template id can be rendered.
func Known(templateID string) bool {
	_, ok := templateSpecs[templateID]
	return ok
}

// Render builds the subject and HTML body for templateID.
func Render(templateID string, vars map[string]string) (string, string, error) {
	spec, ok := templateSpecs[templateID]
	if !ok {
		return "", "", fmt.Errorf("unknown email template %q", templateID)
	}

	tmpl, err := loadTemplate(spec.file)
	if err != nil {
		return "", "", err
	}

	data := templateData{
		baseEmailData: baseEmailData{
			Title:    spec.subject,
			Heading:  spec.heading,
			CTALabel: spec.ctaLabel,
			CTAURL:   vars[spec.ctaVar],
		},
		Vars: vars,
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", "", fmt.Errorf("execute email template %s: %w", templateID, err)
	}
	return spec.subject, buf.String(), nil
}

func loadTemplate(file string) (*template.Template, error) {
	parsedMu.Lock()
	defer parsedMu.Unlock()

	if tmpl, ok := parsed[file]; ok {
		return tmpl, nil
	}
	tmpl, err := template.New("base.html").ParseFS(templateFS, "templates/base.html", "templates/"+file)
	if err != nil {
		return nil, fmt.Errorf("parse email template %s: %w", file, err)
	}
	parsed[file] = tmpl
	return tmpl, nil
}
