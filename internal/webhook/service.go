package webhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	leadsdomain "leadflow_backend/internal/leads/domain"
	meetingsdomain "leadflow_backend/internal/meetings/domain"
	meetingsservice "leadflow_backend/internal/meetings/service"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/logger"
)

const (
	calendlyInviteeCreated  = "invitee.created"
	calendlyInviteeCanceled = "invitee.canceled"

	facebookObjectPage   = "page"
	facebookFieldLeadgen = "leadgen"

	hubspotContactCreation       = "contact.creation"
	hubspotContactPropertyChange = "contact.propertyChange"
	hubspotContactDeletion       = "contact.deletion"

	msgMalformedPayload = "malformed payload"
)

// LeadIngester normalizes and upserts a raw lead, starting its workflow when
// the lead is new.
type LeadIngester interface {
	IngestRaw(ctx context.Context, raw map[string]any, source string) (leadsdomain.UpsertResult, bool, error)
}

// MeetingRecorder applies booking lifecycle events.
type MeetingRecorder interface {
	RecordBooking(ctx context.Context, params meetingsservice.BookingParams) (meetingsdomain.Meeting, bool, error)
	RecordCancellation(ctx context.Context, externalEventID string, rescheduled bool) (meetingsdomain.Meeting, error)
}

// RecordFetcher loads the full source record for an id carried by a thin
// notification (HubSpot contact events, Facebook leadgen changes).
type RecordFetcher interface {
	FetchByID(ctx context.Context, id string) (map[string]any, error)
}

// Archiver keeps verified raw deliveries for replay and diagnosis.
type Archiver interface {
	Archive(ctx context.Context, source, trackingID string, body []byte) error
}

// Outcome summarizes what a delivery did.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
)

// Result is reported back to the webhook caller with the acknowledgement.
type Result struct {
	Outcome    Outcome  `json:"outcome"`
	Received   int      `json:"received"`
	Applied    int      `json:"applied"`
	Duplicates int      `json:"duplicates"`
	Errors     []string `json:"errors,omitempty"`
}

func (r *Result) finish() Result {
	switch {
	case r.Applied > 0 || len(r.Errors) > 0:
		r.Outcome = OutcomeProcessed
	case r.Duplicates > 0:
		r.Outcome = OutcomeDuplicate
	default:
		r.Outcome = OutcomeIgnored
	}
	return *r
}

// Service applies verified webhook deliveries. Errors are returned only for
// payloads rejected before any side effect; later failures are logged and
// listed in the Result so the caller is still acknowledged.
type Service struct {
	leads    LeadIngester
	meetings MeetingRecorder
	dedup    Deduper
	hubspot  RecordFetcher
	facebook RecordFetcher
	archiver Archiver
	log      *logger.Logger
}

// NewService creates a new webhook service. dedup may be nil.
func NewService(leads LeadIngester, meetings MeetingRecorder, dedup Deduper, log *logger.Logger) *Service {
	return &Service{leads: leads, meetings: meetings, dedup: dedup, log: log}
}

// SetHubSpotFetcher wires the HubSpot API client used to expand contact events.
func (s *Service) SetHubSpotFetcher(f RecordFetcher) { s.hubspot = f }

// SetFacebookFetcher wires the Graph API client used to expand leadgen changes.
func (s *Service) SetFacebookFetcher(f RecordFetcher) { s.facebook = f }

// SetArchiver enables raw payload archiving.
func (s *Service) SetArchiver(a Archiver) { s.archiver = a }

type calendlyLocation struct {
	Type     string `json:"type"`
	Location string `json:"location"`
	JoinURL  string `json:"join_url"`
}

type calendlyScheduledEvent struct {
	URI       string           `json:"uri"`
	StartTime time.Time        `json:"start_time"`
	EndTime   time.Time        `json:"end_time"`
	Location  calendlyLocation `json:"location"`
}

type calendlyInvitee struct {
	URI            string                 `json:"uri"`
	Rescheduled    bool                   `json:"rescheduled"`
	ScheduledEvent calendlyScheduledEvent `json:"scheduled_event"`
}

type calendlyEnvelope struct {
	Event   string          `json:"event"`
	Payload calendlyInvitee `json:"payload"`
}

// HandleCalendly applies invitee.created (lead upsert plus booking) and
// invitee.canceled deliveries.
func (s *Service) HandleCalendly(ctx context.Context, body []byte) (Result, error) {
	var env calendlyEnvelope
	var raw map[string]any
	if err := json.Unmarshal(body, &env); err != nil {
		return Result{}, apperr.BadRequest(msgMalformedPayload)
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return Result{}, apperr.BadRequest(msgMalformedPayload)
	}
	if env.Event == "" || env.Payload.URI == "" {
		return Result{}, apperr.Validation("event and payload.uri are required")
	}
	s.received(ctx, leadsdomain.SourceCalendly, env.Event, body)

	res := Result{Received: 1}
	if env.Event != calendlyInviteeCreated && env.Event != calendlyInviteeCanceled {
		return res.finish(), nil
	}

	key := "calendly:" + env.Event + ":" + env.Payload.URI
	if !s.claim(ctx, key) {
		res.Duplicates++
		return res.finish(), nil
	}

	var err error
	if env.Event == calendlyInviteeCreated {
		err = s.calendlyCreated(ctx, raw, env.Payload)
	} else {
		err = s.calendlyCanceled(ctx, env.Payload)
	}
	if err != nil {
		s.fail(ctx, &res, key, env.Payload.URI, err)
		return res.finish(), nil
	}
	res.Applied++
	return res.finish(), nil
}

func (s *Service) calendlyCreated(ctx context.Context, raw map[string]any, invitee calendlyInvitee) error {
	upsert, _, err := s.leads.IngestRaw(ctx, raw, leadsdomain.SourceCalendly)
	if err != nil {
		return fmt.Errorf("ingest lead: %w", err)
	}
	event := invitee.ScheduledEvent
	if event.URI == "" || event.StartTime.IsZero() {
		return nil
	}
	location := event.Location.JoinURL
	if location == "" {
		location = event.Location.Location
	}
	_, _, err = s.meetings.RecordBooking(ctx, meetingsservice.BookingParams{
		LeadID:          upsert.Lead.ID,
		ExternalEventID: event.URI,
		StartTime:       event.StartTime,
		EndTime:         event.EndTime,
		Location:        location,
		Source:          leadsdomain.SourceCalendly,
	})
	if err != nil {
		return fmt.Errorf("record booking: %w", err)
	}
	return nil
}

func (s *Service) calendlyCanceled(ctx context.Context, invitee calendlyInvitee) error {
	if invitee.ScheduledEvent.URI == "" {
		return nil
	}
	_, err := s.meetings.RecordCancellation(ctx, invitee.ScheduledEvent.URI, invitee.Rescheduled)
	if apperr.Is(err, apperr.KindNotFound) {
		s.log.WithContext(ctx).Warn("cancellation for unknown meeting", "externalEventId", invitee.ScheduledEvent.URI)
		return nil
	}
	if err != nil {
		return fmt.Errorf("record cancellation: %w", err)
	}
	return nil
}

type facebookChange struct {
	Field string         `json:"field"`
	Value map[string]any `json:"value"`
}

type facebookEntry struct {
	ID      string           `json:"id"`
	Time    int64            `json:"time"`
	Changes []facebookChange `json:"changes"`
}

type facebookEnvelope struct {
	Object string          `json:"object"`
	Entry  []facebookEntry `json:"entry"`
}

// HandleFacebook applies Lead Ads leadgen changes. Each change carries only
// a leadgen id; the lead's field data is fetched from the Graph API when a
// client is configured.
func (s *Service) HandleFacebook(ctx context.Context, body []byte) (Result, error) {
	var env facebookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Result{}, apperr.BadRequest(msgMalformedPayload)
	}
	s.received(ctx, leadsdomain.SourceFacebook, env.Object, body)

	var res Result
	if env.Object != facebookObjectPage {
		return res.finish(), nil
	}

	for _, entry := range env.Entry {
		for _, change := range entry.Changes {
			if change.Field != facebookFieldLeadgen {
				continue
			}
			res.Received++
			leadgenID := stringValue(change.Value["leadgen_id"])
			if leadgenID == "" {
				res.Errors = append(res.Errors, "leadgen change without leadgen_id")
				continue
			}

			key := "facebook:leadgen:" + leadgenID
			if !s.claim(ctx, key) {
				res.Duplicates++
				continue
			}

			raw := change.Value
			if s.facebook != nil {
				fetched, err := s.facebook.FetchByID(ctx, leadgenID)
				if err != nil {
					s.fail(ctx, &res, key, leadgenID, fmt.Errorf("fetch lead: %w", err))
					continue
				}
				raw = fetched
			}
			if _, _, err := s.leads.IngestRaw(ctx, raw, leadsdomain.SourceFacebook); err != nil {
				s.fail(ctx, &res, key, leadgenID, fmt.Errorf("ingest lead: %w", err))
				continue
			}
			res.Applied++
		}
	}
	return res.finish(), nil
}

// VerifyFacebookSubscription answers the hub.challenge handshake.
func VerifyFacebookSubscription(verifyToken, mode, token, challenge string) (string, bool) {
	if verifyToken == "" || mode != "subscribe" || challenge == "" {
		return "", false
	}
	if VerifySharedSecret(verifyToken, token) != nil {
		return "", false
	}
	return challenge, true
}

type hubspotEvent struct {
	EventID          int64  `json:"eventId"`
	SubscriptionType string `json:"subscriptionType"`
	ObjectID         int64  `json:"objectId"`
	PropertyName     string `json:"propertyName"`
	OccurredAt       int64  `json:"occurredAt"`
}

// HandleHubSpot applies a batch of contact events. Several events for the
// same contact in one batch cause a single fetch and upsert.
func (s *Service) HandleHubSpot(ctx context.Context, body []byte) (Result, error) {
	var events []hubspotEvent
	if err := json.Unmarshal(body, &events); err != nil {
		return Result{}, apperr.BadRequest(msgMalformedPayload)
	}
	s.received(ctx, leadsdomain.SourceHubSpot, "batch", body)

	res := Result{Received: len(events)}
	keysByContact := make(map[string][]string)
	var order []string
	for _, ev := range events {
		switch ev.SubscriptionType {
		case hubspotContactCreation, hubspotContactPropertyChange:
		case hubspotContactDeletion:
			s.log.WithContext(ctx).Info("hubspot contact deleted upstream", "objectId", ev.ObjectID)
			continue
		default:
			continue
		}
		if ev.ObjectID == 0 {
			res.Errors = append(res.Errors, fmt.Sprintf("event %d without objectId", ev.EventID))
			continue
		}

		key := "hubspot:" + strconv.FormatInt(ev.EventID, 10)
		if !s.claim(ctx, key) {
			res.Duplicates++
			continue
		}
		contactID := strconv.FormatInt(ev.ObjectID, 10)
		if _, seen := keysByContact[contactID]; !seen {
			order = append(order, contactID)
		}
		keysByContact[contactID] = append(keysByContact[contactID], key)
	}

	for _, contactID := range order {
		keys := keysByContact[contactID]
		if err := s.applyHubSpotContact(ctx, contactID); err != nil {
			s.fail(ctx, &res, keys[0], contactID, err)
			for _, key := range keys[1:] {
				s.release(ctx, key)
			}
			continue
		}
		res.Applied += len(keys)
	}
	return res.finish(), nil
}

func (s *Service) applyHubSpotContact(ctx context.Context, contactID string) error {
	if s.hubspot == nil {
		return fmt.Errorf("hubspot api not configured")
	}
	raw, err := s.hubspot.FetchByID(ctx, contactID)
	if err != nil {
		return fmt.Errorf("fetch contact: %w", err)
	}
	if _, _, err := s.leads.IngestRaw(ctx, raw, leadsdomain.SourceHubSpot); err != nil {
		return fmt.Errorf("ingest lead: %w", err)
	}
	return nil
}

// HandleZapier ingests a generic lead object, or an array of them, posted by
// a Zap.
func (s *Service) HandleZapier(ctx context.Context, body []byte) (Result, error) {
	records, err := decodeRecords(body)
	if err != nil {
		return Result{}, apperr.BadRequest(msgMalformedPayload)
	}
	s.received(ctx, leadsdomain.SourceZapier, "lead", body)

	sum := sha256.Sum256(body)
	digest := hex.EncodeToString(sum[:])

	res := Result{Received: len(records)}
	for i, raw := range records {
		key := "zapier:" + digest + ":" + strconv.Itoa(i)
		if !s.claim(ctx, key) {
			res.Duplicates++
			continue
		}
		if _, _, err := s.leads.IngestRaw(ctx, raw, leadsdomain.SourceZapier); err != nil {
			s.fail(ctx, &res, key, strconv.Itoa(i), fmt.Errorf("ingest lead: %w", err))
			continue
		}
		res.Applied++
	}
	return res.finish(), nil
}

func decodeRecords(body []byte) ([]map[string]any, error) {
	var one map[string]any
	if err := json.Unmarshal(body, &one); err == nil {
		return []map[string]any{one}, nil
	}
	var many []map[string]any
	if err := json.Unmarshal(body, &many); err != nil {
		return nil, err
	}
	return many, nil
}

// claim fails open: a dedup outage must not drop deliveries, and the
// lead upsert absorbs the resulting replay.
func (s *Service) claim(ctx context.Context, key string) bool {
	if s.dedup == nil {
		return true
	}
	ok, err := s.dedup.Claim(ctx, key)
	if err != nil {
		s.log.WithContext(ctx).Warn("webhook dedup unavailable", "key", key, "error", err)
		return true
	}
	return ok
}

func (s *Service) release(ctx context.Context, key string) {
	if s.dedup == nil {
		return
	}
	if err := s.dedup.Release(ctx, key); err != nil {
		s.log.WithContext(ctx).Warn("webhook dedup release failed", "key", key, "error", err)
	}
}

func (s *Service) fail(ctx context.Context, res *Result, key, ref string, err error) {
	s.release(ctx, key)
	s.log.WithContext(ctx).Error("webhook event failed", "ref", ref, "error", err)
	res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", ref, err))
}

func (s *Service) received(ctx context.Context, source, event string, body []byte) {
	trackingID := logger.TrackingIDFromContext(ctx)
	s.log.WebhookReceived(source, event, trackingID)
	if s.archiver == nil {
		return
	}
	if err := s.archiver.Archive(ctx, source, trackingID, body); err != nil {
		s.log.WithContext(ctx).Warn("webhook archive failed", "source", source, "error", err)
	}
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}
