package sms

import (
	"bytes"
	"fmt"
	"text/template"
)

// TemplateScheduleReminder nudges a lead to book a call.
const TemplateScheduleReminder = "schedule_reminder_sms"

var templates = template.Must(template.New("sms").Option("missingkey=zero").Parse(`
{{- define "schedule_reminder_sms" -}}
Hi {{with .firstName}}{{.}}{{else}}there{{end}}, thanks for your interest! Book a quick call here: {{.bookingUrl}} Reply STOP to opt out.
{{- end -}}
`))

// Render returns the message body for templateID.
func Render(templateID string, vars map[string]string) (string, error) {
	if templates.Lookup(templateID) == nil {
		return "", fmt.Errorf("unknown sms template %q", templateID)
	}
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, templateID, vars); err != nil {
		return "", fmt.Errorf("execute sms template %s: %w", templateID, err)
	}
	return buf.String(), nil
}

// Known reports whether a template id can be rendered.
func Known(templateID string) bool {
	return templates.Lookup(templateID) != nil
}
