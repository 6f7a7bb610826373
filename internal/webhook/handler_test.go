package webhook

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"leadflow_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

type stubSecrets struct {
	calendly, zapier, hubspot, fbSecret, fbToken string
}

func (s stubSecrets) GetCalendlySigningKey() string     { return s.calendly }
func (s stubSecrets) GetZapierSecret() string           { return s.zapier }
func (s stubSecrets) GetHubSpotClientSecret() string    { return s.hubspot }
func (s stubSecrets) GetFacebookAppSecret() string      { return s.fbSecret }
func (s stubSecrets) GetFacebookVerifyToken() string    { return s.fbToken }
func (s stubSecrets) GetWebhookDedupTTL() time.Duration { return time.Hour }

func newWebhookRouter(t *testing.T, secrets stubSecrets) (*gin.Engine, serviceHarness) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := newServiceHarness()
	handler := NewHandler(h.svc, secrets, logger.Nop())
	handler.now = func() time.Time { return sigNow }

	r := gin.New()
	g := r.Group("/api/v1/webhooks")
	g.POST("/calendly", handler.HandleCalendly)
	g.GET("/facebook", handler.HandleFacebookVerify)
	g.POST("/facebook", handler.HandleFacebook)
	g.POST("/hubspot", handler.HandleHubSpot)
	g.POST("/zapier", handler.HandleZapier)
	return r, h
}

func post(r *gin.Engine, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCalendlyRejectsBadSignatureWithoutSideEffects(t *testing.T) {
	r, h := newWebhookRouter(t, stubSecrets{calendly: "k"})

	rec := post(r, "/api/v1/webhooks/calendly", calendlyCreated, map[string]string{
		headerCalendlySignature: calendlyHeader("wrong", sigNow, []byte(calendlyCreated)),
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if len(h.leads.calls) != 0 {
		t.Fatal("rejected delivery must not ingest")
	}
}

func TestCalendlySignedDeliveryIsAcknowledged(t *testing.T) {
	r, h := newWebhookRouter(t, stubSecrets{calendly: "k"})

	rec := post(r, "/api/v1/webhooks/calendly", calendlyCreated, map[string]string{
		headerCalendlySignature: calendlyHeader("k", sigNow, []byte(calendlyCreated)),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var ack AckResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &ack); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ack.Status != "ok" || ack.Result.Outcome != OutcomeProcessed {
		t.Fatalf("unexpected ack %+v", ack)
	}
	if len(h.meetings.bookings) != 1 {
		t.Fatal("expected booking to be recorded")
	}
}

func TestMalformedPayloadReturns400(t *testing.T) {
	r, _ := newWebhookRouter(t, stubSecrets{})
	rec := post(r, "/api/v1/webhooks/calendly", `{"event":`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestProcessingFailureStillReturns200(t *testing.T) {
	r, h := newWebhookRouter(t, stubSecrets{})
	h.leads.err = errTestStore

	rec := post(r, "/api/v1/webhooks/zapier", `{"email":"a@example.com"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 after side effects began, got %d", rec.Code)
	}
	var ack AckResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &ack)
	if len(ack.Result.Errors) != 1 {
		t.Fatalf("expected error listed in ack, got %+v", ack)
	}
}

func TestZapierSharedSecret(t *testing.T) {
	r, _ := newWebhookRouter(t, stubSecrets{zapier: "s3cret"})

	if rec := post(r, "/api/v1/webhooks/zapier", `{"email":"a@example.com"}`, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without secret, got %d", rec.Code)
	}
	rec := post(r, "/api/v1/webhooks/zapier", `{"email":"a@example.com"}`, map[string]string{headerZapierSecret: "s3cret"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with secret, got %d", rec.Code)
	}
}

func TestFacebookHandshake(t *testing.T) {
	r, _ := newWebhookRouter(t, stubSecrets{fbToken: "verify-me"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/webhooks/facebook?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=1158201444", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "1158201444" {
		t.Fatalf("expected challenge echo, got %d %q", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/webhooks/facebook?hub.mode=subscribe&hub.verify_token=nope&hub.challenge=1", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestFacebookSignature(t *testing.T) {
	r, h := newWebhookRouter(t, stubSecrets{fbSecret: "app"})

	rec := post(r, "/api/v1/webhooks/facebook", facebookLeadgen, map[string]string{
		headerFacebookSignature: facebookHeader("app", []byte(facebookLeadgen)),
	})
	if rec.Code != http.StatusOK || len(h.leads.calls) != 2 {
		t.Fatalf("expected signed delivery to apply, got %d ingests=%d", rec.Code, len(h.leads.calls))
	}
}

func TestHubSpotSignatureUsesRequestURL(t *testing.T) {
	r, h := newWebhookRouter(t, stubSecrets{hubspot: "cs"})
	h.svc.SetHubSpotFetcher(&fakeFetcher{records: map[string]map[string]any{"5": {"id": "5"}}})
	body := `[{"eventId":1,"subscriptionType":"contact.creation","objectId":5}]`
	ts := strconv.FormatInt(sigNow.UnixMilli(), 10)
	uri := "https://hooks.example.com/api/v1/webhooks/hubspot"

	req := httptest.NewRequest(http.MethodPost, uri, strings.NewReader(body))
	req.Header.Set("X-Forwarded-Proto", "https")
	req.Header.Set(headerHubSpotTimestamp, ts)
	req.Header.Set(headerHubSpotSignature, hubspotHeader("cs", http.MethodPost, uri, []byte(body), ts))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(h.leads.calls) != 1 {
		t.Fatalf("expected contact ingested, got %d", len(h.leads.calls))
	}
}

func TestOversizedBodyIsRejected(t *testing.T) {
	r, _ := newWebhookRouter(t, stubSecrets{})
	big := `{"email":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	rec := post(r, "/api/v1/webhooks/zapier", big, nil)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}
