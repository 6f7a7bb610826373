// Package normalizer converts heterogeneous source payloads (CRM contacts,
// ad-lead-form submissions, scheduling invitees, generic webhooks) into the
// canonical lead shape. It has no side effects and never fails: missing
// optional fields simply stay empty.
package normalizer

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"leadflow_backend/internal/leads/domain"
	"leadflow_backend/platform/phone"
	"leadflow_backend/platform/sanitize"
)

// canonical field identifiers used by the mapping tables.
type field int

const (
	fieldExternalID field = iota
	fieldEmail
	fieldFirstName
	fieldLastName
	fieldFullName
	fieldPhone
	fieldCompany
)

// mapping lists, per canonical field, the source keys to try in order.
type mapping map[field][]string

var (
	hubspotMapping = mapping{
		fieldExternalID: {"id", "hs_object_id", "vid"},
		fieldEmail:      {"email", "hs_email"},
		fieldFirstName:  {"firstname"},
		fieldLastName:   {"lastname"},
		fieldFullName:   {"full_name"},
		fieldPhone:      {"phone", "mobilephone", "hs_whatsapp_phone_number"},
		fieldCompany:    {"company", "associatedcompanyname"},
	}

	facebookMapping = mapping{
		fieldExternalID: {"id", "leadgen_id"},
		fieldEmail:      {"email", "work_email"},
		fieldFirstName:  {"first_name"},
		fieldLastName:   {"last_name"},
		fieldFullName:   {"full_name"},
		fieldPhone:      {"phone_number", "phone", "work_phone_number"},
		fieldCompany:    {"company_name", "company"},
	}

	calendlyMapping = mapping{
		fieldExternalID: {"uri", "uuid"},
		fieldEmail:      {"email"},
		fieldFirstName:  {"first_name"},
		fieldLastName:   {"last_name"},
		fieldFullName:   {"name"},
		fieldPhone:      {"text_reminder_number", "phone", "phone_number"},
		fieldCompany:    {"company"},
	}

	genericMapping = mapping{
		fieldExternalID: {"external_id", "externalid", "lead_id", "leadid", "record_id", "id"},
		fieldEmail:      {"email", "e-mail", "email_address", "emailaddress", "mail"},
		fieldFirstName:  {"first_name", "firstname", "first name", "given_name", "givenname", "fname"},
		fieldLastName:   {"last_name", "lastname", "last name", "family_name", "familyname", "surname", "lname"},
		fieldFullName:   {"full_name", "fullname", "name", "your_name", "contact_name"},
		fieldPhone:      {"phone", "phone_number", "phonenumber", "telephone", "tel", "mobile", "mobilephone", "cell"},
		fieldCompany:    {"company", "company_name", "companyname", "organization", "organisation", "business"},
	}
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Normalize maps raw into a CanonicalLead for source. Unknown sources use
// the generic alias mapper. Keys that don't map to a canonical field are kept
// in Fields.
func Normalize(raw map[string]any, source string) domain.CanonicalLead {
	source = strings.ToLower(strings.TrimSpace(source))
	if source == "" {
		source = domain.SourceManual
	}

	var (
		flat  map[string]any
		table mapping
		fuzzy bool
	)
	switch source {
	case domain.SourceHubSpot:
		flat, table = flattenHubSpot(raw), hubspotMapping
	case domain.SourceFacebook:
		flat, table = flattenFacebook(raw), facebookMapping
	case domain.SourceCalendly:
		flat, table = flattenCalendly(raw), calendlyMapping
	default:
		flat, table, fuzzy = copyMap(raw), genericMapping, true
	}

	lead := domain.CanonicalLead{Source: source}
	consumed := make(map[string]struct{})

	lead.ExternalID = pick(flat, table[fieldExternalID], fuzzy, consumed)
	lead.Email = pick(flat, table[fieldEmail], fuzzy, consumed)
	lead.FirstName = pick(flat, table[fieldFirstName], fuzzy, consumed)
	lead.LastName = pick(flat, table[fieldLastName], fuzzy, consumed)
	lead.FullName = pick(flat, table[fieldFullName], fuzzy, consumed)
	lead.Phone = pick(flat, table[fieldPhone], fuzzy, consumed)
	lead.Company = pick(flat, table[fieldCompany], fuzzy, consumed)

	rawEmail := lead.Email
	lead.Email = normalizeEmail(rawEmail)
	lead.Phone = phone.NormalizeE164(lead.Phone)
	fillNames(&lead)

	lead.Fields = make(map[string]any)
	for key, value := range flat {
		if _, ok := consumed[key]; ok {
			continue
		}
		lead.Fields[key] = value
	}
	// A rejected email stays visible to operators.
	if lead.Email == "" && rawEmail != "" {
		lead.Fields["email"] = rawEmail
	}

	return lead
}

// pick returns the first non-empty value among keys and marks the key used.
func pick(flat map[string]any, keys []string, fuzzy bool, consumed map[string]struct{}) string {
	for _, candidate := range keys {
		if value, ok := flat[candidate]; ok {
			if text := stringValue(value); text != "" {
				consumed[candidate] = struct{}{}
				return text
			}
		}
	}
	if !fuzzy {
		return ""
	}

	// Generic sources: compare keys ignoring case, spaces, dashes and
	// underscores. Iterate in sorted order so results are deterministic.
	keysSorted := make([]string, 0, len(flat))
	for key := range flat {
		keysSorted = append(keysSorted, key)
	}
	sort.Strings(keysSorted)

	for _, candidate := range keys {
		want := fold(candidate)
		for _, key := range keysSorted {
			if _, used := consumed[key]; used {
				continue
			}
			if fold(key) != want {
				continue
			}
			if text := stringValue(flat[key]); text != "" {
				consumed[key] = struct{}{}
				return text
			}
		}
	}
	return ""
}

var foldReplacer = strings.NewReplacer("-", "", "_", "", " ", "", ".", "")

func fold(key string) string {
	return foldReplacer.Replace(strings.ToLower(strings.TrimSpace(key)))
}

func normalizeEmail(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.TrimPrefix(value, "mailto:")
	if !emailRegex.MatchString(value) {
		return ""
	}
	return value
}

// fillNames builds the full name from its parts, or splits a full name when
// only that is known.
func fillNames(lead *domain.CanonicalLead) {
	if lead.FullName == "" {
		lead.FullName = strings.TrimSpace(strings.Join(nonEmpty(lead.FirstName, lead.LastName), " "))
		return
	}
	if lead.FirstName == "" && lead.LastName == "" {
		parts := strings.SplitN(lead.FullName, " ", 2)
		lead.FirstName = parts[0]
		if len(parts) > 1 {
			lead.LastName = strings.TrimSpace(parts[1])
		}
	}
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// stringValue renders scalar JSON values as text. Composite values render empty.
func stringValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return sanitize.Text(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int, int32, int64, uint, uint32, uint64:
		return fmt.Sprintf("%d", v)
	case bool:
		return strconv.FormatBool(v)
	case []any:
		// Form answers are often single-element lists.
		if len(v) == 1 {
			return stringValue(v[0])
		}
		return ""
	default:
		return ""
	}
}

func copyMap(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	return out
}
