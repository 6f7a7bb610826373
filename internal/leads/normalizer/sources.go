package normalizer

import (
	"regexp"
	"strings"
)

// flattenHubSpot lifts the CRM "properties" object to the top level.
// Top-level keys such as "id" and "createdAt" win over properties of the same name.
func flattenHubSpot(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	if props, ok := raw["properties"].(map[string]any); ok {
		for k, v := range props {
			out[k] = unwrapHubSpotValue(v)
		}
	}
	for k, v := range raw {
		if k == "properties" {
			continue
		}
		out[k] = v
	}
	return out
}

// The legacy contacts API wraps every property as {"value": ...}.
func unwrapHubSpotValue(v any) any {
	if m, ok := v.(map[string]any); ok {
		if inner, ok := m["value"]; ok {
			return inner
		}
	}
	return v
}

// flattenFacebook turns the leadgen field_data list
// ([{"name": "email", "values": ["a@b.c"]}, ...]) into top-level keys.
func flattenFacebook(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		if k == "field_data" {
			continue
		}
		out[k] = v
	}

	entries, _ := raw["field_data"].([]any)
	for _, entry := range entries {
		item, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		name, _ := item["name"].(string)
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		values, _ := item["values"].([]any)
		switch len(values) {
		case 0:
			out[name] = ""
		case 1:
			out[name] = values[0]
		default:
			out[name] = values
		}
	}
	return out
}

var phoneQuestionRe = regexp.MustCompile(`(?i)phone|mobile|cell|telephone`)
var companyQuestionRe = regexp.MustCompile(`(?i)company|organi[sz]ation|business`)

// flattenCalendly accepts either the full webhook envelope or the bare
// invitee object. Answers to booking questions are surfaced as
// "question:<text>" keys, and the phone/company answers fill canonical keys
// when the invitee did not supply them directly.
func flattenCalendly(raw map[string]any) map[string]any {
	invitee := raw
	if payload, ok := raw["payload"].(map[string]any); ok {
		invitee = payload
	}

	out := make(map[string]any, len(invitee))
	for k, v := range invitee {
		if k == "questions_and_answers" {
			continue
		}
		out[k] = v
	}

	if event, ok := raw["event"].(string); ok {
		out["webhook_event"] = event
	}

	answers, _ := invitee["questions_and_answers"].([]any)
	for _, entry := range answers {
		item, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		question, _ := item["question"].(string)
		answer, _ := item["answer"].(string)
		question = strings.TrimSpace(question)
		answer = strings.TrimSpace(answer)
		if question == "" || answer == "" {
			continue
		}
		switch {
		case phoneQuestionRe.MatchString(question) && stringValue(out["phone"]) == "":
			out["phone"] = answer
		case companyQuestionRe.MatchString(question) && stringValue(out["company"]) == "":
			out["company"] = answer
		default:
			out["question:"+question] = answer
		}
	}
	return out
}
