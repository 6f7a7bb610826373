package normalizer

import (
	"encoding/json"
	"testing"

	"leadflow_backend/internal/leads/domain"
)

func decode(t *testing.T, raw string) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	return out
}

func TestNormalizeHubSpotContact(t *testing.T) {
	raw := decode(t, `{
		"id": "501",
		"properties": {
			"email": "Jane.Doe@Example.COM",
			"firstname": "Jane",
			"lastname": "Doe",
			"phone": "(201) 555-0123",
			"company": "Acme",
			"lifecyclestage": "lead",
			"hs_object_id": "501"
		},
		"createdAt": "2025-01-02T10:00:00Z"
	}`)

	lead := Normalize(raw, "hubspot")

	if lead.Source != domain.SourceHubSpot {
		t.Fatalf("expected hubspot source, got %q", lead.Source)
	}
	if lead.ExternalID != "501" {
		t.Fatalf("expected external id 501, got %q", lead.ExternalID)
	}
	if lead.Email != "jane.doe@example.com" {
		t.Fatalf("expected lowercased email, got %q", lead.Email)
	}
	if lead.FullName != "Jane Doe" {
		t.Fatalf("expected concatenated full name, got %q", lead.FullName)
	}
	if lead.Phone != "+12015550123" {
		t.Fatalf("expected E.164 phone, got %q", lead.Phone)
	}
	if lead.Company != "Acme" {
		t.Fatalf("expected company Acme, got %q", lead.Company)
	}
	if lead.Fields["lifecyclestage"] != "lead" {
		t.Fatalf("expected unmapped property to be preserved, got %#v", lead.Fields)
	}
	if _, ok := lead.Fields["createdAt"]; !ok {
		t.Fatal("expected top-level createdAt to be preserved")
	}
	if _, ok := lead.Fields["email"]; ok {
		t.Fatal("mapped keys should not be duplicated in fields")
	}
}

func TestNormalizeHubSpotLegacyValueWrapping(t *testing.T) {
	raw := decode(t, `{"vid": 77, "properties": {"email": {"value": "old@example.com"}, "firstname": {"value": "Old"}}}`)

	lead := Normalize(raw, "hubspot")
	if lead.ExternalID != "77" || lead.Email != "old@example.com" || lead.FirstName != "Old" {
		t.Fatalf("unexpected legacy normalization: %+v", lead)
	}
}

func TestNormalizeFacebookFieldData(t *testing.T) {
	raw := decode(t, `{
		"id": "lg-1",
		"created_time": "2025-01-02T10:00:00+0000",
		"form_id": "form-9",
		"field_data": [
			{"name": "full_name", "values": ["Sam Lee Parker"]},
			{"name": "email", "values": ["SAM@example.com"]},
			{"name": "phone_number", "values": ["+12015550123"]},
			{"name": "budget", "values": ["10k"]},
			{"name": "interests", "values": ["a", "b"]}
		]
	}`)

	lead := Normalize(raw, "facebook")

	if lead.ExternalID != "lg-1" {
		t.Fatalf("expected leadgen id, got %q", lead.ExternalID)
	}
	if lead.FirstName != "Sam" || lead.LastName != "Lee Parker" {
		t.Fatalf("expected full name to be split, got %q / %q", lead.FirstName, lead.LastName)
	}
	if lead.Email != "sam@example.com" {
		t.Fatalf("unexpected email %q", lead.Email)
	}
	if lead.Fields["budget"] != "10k" {
		t.Fatalf("expected custom question to be preserved, got %#v", lead.Fields["budget"])
	}
	if values, ok := lead.Fields["interests"].([]any); !ok || len(values) != 2 {
		t.Fatalf("expected multi-value answer to stay a list, got %#v", lead.Fields["interests"])
	}
	if lead.Fields["form_id"] != "form-9" {
		t.Fatal("expected form id to be preserved")
	}
}

func TestNormalizeCalendlyInvitee(t *testing.T) {
	raw := decode(t, `{
		"event": "invitee.created",
		"payload": {
			"uri": "https://api.calendly.com/scheduled_events/EV1/invitees/INV1",
			"email": "pat@example.com",
			"name": "Pat Kim",
			"questions_and_answers": [
				{"question": "Phone number", "answer": "201-555-0123"},
				{"question": "Company name", "answer": "Kim LLC"},
				{"question": "What do you need?", "answer": "Demo"}
			]
		}
	}`)

	lead := Normalize(raw, "calendly")

	if lead.ExternalID != "https://api.calendly.com/scheduled_events/EV1/invitees/INV1" {
		t.Fatalf("unexpected external id %q", lead.ExternalID)
	}
	if lead.FirstName != "Pat" || lead.LastName != "Kim" || lead.FullName != "Pat Kim" {
		t.Fatalf("unexpected names %+v", lead)
	}
	if lead.Phone != "+12015550123" {
		t.Fatalf("expected phone from booking question, got %q", lead.Phone)
	}
	if lead.Company != "Kim LLC" {
		t.Fatalf("expected company from booking question, got %q", lead.Company)
	}
	if lead.Fields["question:What do you need?"] != "Demo" {
		t.Fatalf("expected free-form answer preserved, got %#v", lead.Fields)
	}
	if lead.Fields["webhook_event"] != "invitee.created" {
		t.Fatal("expected webhook event name preserved")
	}
}

func TestNormalizeGenericAliases(t *testing.T) {
	raw := map[string]any{
		"Given Name":    "Lee",
		"Family-Name":   "Chan",
		"E-Mail":        "LEE@EXAMPLE.COM",
		"Mobile":        "201 555 0123",
		"Organization":  "Chan Co",
		"utm_campaign":  "spring",
		"record_id":     12345.0,
		"consent_given": true,
	}

	lead := Normalize(raw, "zapier")

	if lead.Source != domain.SourceZapier {
		t.Fatalf("unexpected source %q", lead.Source)
	}
	if lead.FirstName != "Lee" || lead.LastName != "Chan" || lead.FullName != "Lee Chan" {
		t.Fatalf("unexpected names %+v", lead)
	}
	if lead.Email != "lee@example.com" {
		t.Fatalf("unexpected email %q", lead.Email)
	}
	if lead.Phone != "+12015550123" {
		t.Fatalf("unexpected phone %q", lead.Phone)
	}
	if lead.Company != "Chan Co" {
		t.Fatalf("unexpected company %q", lead.Company)
	}
	if lead.ExternalID != "12345" {
		t.Fatalf("expected numeric id rendered without exponent, got %q", lead.ExternalID)
	}
	if lead.Fields["utm_campaign"] != "spring" || lead.Fields["consent_given"] != true {
		t.Fatalf("expected unmapped keys preserved, got %#v", lead.Fields)
	}
	if len(lead.Fields) != 2 {
		t.Fatalf("expected only unmapped keys in fields, got %#v", lead.Fields)
	}
}

func TestNormalizeNeverFailsOnEmptyOrOddInput(t *testing.T) {
	cases := []struct {
		name   string
		raw    map[string]any
		source string
	}{
		{"nil payload", nil, "hubspot"},
		{"empty facebook", map[string]any{"field_data": "not-a-list"}, "facebook"},
		{"calendly without payload", map[string]any{"email": "x"}, "calendly"},
		{"unknown source", map[string]any{"name": map[string]any{"nested": true}}, "mystery"},
		{"blank source", map[string]any{"email": "a@b.co"}, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			lead := Normalize(tc.raw, tc.source)
			if lead.Fields == nil {
				t.Fatal("expected non-nil fields bag")
			}
		})
	}

	if got := Normalize(map[string]any{"email": "a@b.co"}, "").Source; got != domain.SourceManual {
		t.Fatalf("expected blank source to default to manual, got %q", got)
	}
}

func TestNormalizeDropsInvalidEmail(t *testing.T) {
	lead := Normalize(map[string]any{"email": "not-an-email", "first_name": "A"}, "zapier")
	if lead.Email != "" {
		t.Fatalf("expected invalid email to be dropped, got %q", lead.Email)
	}
	if lead.FullName != "A" {
		t.Fatalf("expected full name from first name only, got %q", lead.FullName)
	}
	if lead.Fields["email"] != "not-an-email" {
		t.Fatalf("expected rejected email kept in fields, got %v", lead.Fields)
	}
}

func TestNormalizeKeepsRejectedHubSpotEmail(t *testing.T) {
	lead := Normalize(map[string]any{
		"id":         "501",
		"properties": map[string]any{"email": "ada at example", "firstname": "Ada"},
	}, "hubspot")
	if lead.Email != "" || lead.Fields["email"] != "ada at example" {
		t.Fatalf("email %q fields %v", lead.Email, lead.Fields)
	}
}

func TestNormalizeStripsMarkupFromFields(t *testing.T) {
	lead := Normalize(map[string]any{
		"email":     "  Jane@Example.com ",
		"firstname": "<b>Jane</b>",
		"lastname":  "Doe\x00",
		"company":   "Smith &amp; Sons",
	}, "zapier")

	if lead.FirstName != "Jane" || lead.LastName != "Doe" {
		t.Fatalf("expected clean names, got %q %q", lead.FirstName, lead.LastName)
	}
	if lead.Company != "Smith & Sons" {
		t.Fatalf("expected decoded company, got %q", lead.Company)
	}
}
