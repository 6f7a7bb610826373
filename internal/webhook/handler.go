package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"leadflow_backend/platform/config"
	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

const (
	maxBodyBytes = 1 << 20

	msgUnreadableBody   = "unreadable request body"
	msgPayloadTooLarge  = "payload too large"
	msgInvalidSignature = "invalid signature"
	msgVerifyFailed     = "verification failed"
	msgArchiveDisabled  = "payload archive not configured"
	msgPayloadNotFound  = "payload not found"
)

// ArchiveReader opens archived raw payloads for operators.
type ArchiveReader interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// AckResponse acknowledges a delivery.
type AckResponse struct {
	Status     string `json:"status"`
	TrackingID string `json:"trackingId"`
	Result     Result `json:"result"`
}

// Handler handles webhook HTTP requests.
type Handler struct {
	service *Service
	secrets config.WebhookConfig
	archive ArchiveReader
	log     *logger.Logger
	now     func() time.Time
}

// NewHandler creates a new webhook handler.
func NewHandler(service *Service, secrets config.WebhookConfig, log *logger.Logger) *Handler {
	return &Handler{service: service, secrets: secrets, log: log, now: time.Now}
}

// HandleCalendly receives Calendly invitee events.
// POST /api/v1/webhooks/calendly
func (h *Handler) HandleCalendly(c *gin.Context) {
	body, ok := h.readBody(c)
	if !ok {
		return
	}
	if key := h.secrets.GetCalendlySigningKey(); key != "" {
		if err := VerifyCalendly(key, c.GetHeader(headerCalendlySignature), body, h.now()); err != nil {
			h.reject(c, "calendly", err)
			return
		}
	}
	result, err := h.service.HandleCalendly(c.Request.Context(), body)
	h.respond(c, result, err)
}

// HandleFacebookVerify answers the subscription handshake.
// GET /api/v1/webhooks/facebook
func (h *Handler) HandleFacebookVerify(c *gin.Context) {
	challenge, ok := VerifyFacebookSubscription(
		h.secrets.GetFacebookVerifyToken(),
		c.Query("hub.mode"),
		c.Query("hub.verify_token"),
		c.Query("hub.challenge"),
	)
	if !ok {
		httpkit.Error(c, http.StatusForbidden, msgVerifyFailed, nil)
		return
	}
	c.String(http.StatusOK, challenge)
}

// HandleFacebook receives Lead Ads leadgen notifications.
// POST /api/v1/webhooks/facebook
func (h *Handler) HandleFacebook(c *gin.Context) {
	body, ok := h.readBody(c)
	if !ok {
		return
	}
	if secret := h.secrets.GetFacebookAppSecret(); secret != "" {
		if err := VerifyFacebook(secret, c.GetHeader(headerFacebookSignature), body); err != nil {
			h.reject(c, "facebook", err)
			return
		}
	}
	result, err := h.service.HandleFacebook(c.Request.Context(), body)
	h.respond(c, result, err)
}

// HandleHubSpot receives HubSpot contact event batches.
// POST /api/v1/webhooks/hubspot
func (h *Handler) HandleHubSpot(c *gin.Context) {
	body, ok := h.readBody(c)
	if !ok {
		return
	}
	if secret := h.secrets.GetHubSpotClientSecret(); secret != "" {
		err := VerifyHubSpot(secret,
			c.GetHeader(headerHubSpotSignature),
			c.GetHeader(headerHubSpotTimestamp),
			c.Request.Method, requestURL(c), body, h.now())
		if err != nil {
			h.reject(c, "hubspot", err)
			return
		}
	}
	result, err := h.service.HandleHubSpot(c.Request.Context(), body)
	h.respond(c, result, err)
}

// HandleZapier receives leads pushed by a Zap.
// POST /api/v1/webhooks/zapier
func (h *Handler) HandleZapier(c *gin.Context) {
	body, ok := h.readBody(c)
	if !ok {
		return
	}
	if secret := h.secrets.GetZapierSecret(); secret != "" {
		if err := VerifySharedSecret(secret, c.GetHeader(headerZapierSecret)); err != nil {
			h.reject(c, "zapier", err)
			return
		}
	}
	result, err := h.service.HandleZapier(c.Request.Context(), body)
	h.respond(c, result, err)
}

// HandleGetPayload streams an archived raw delivery.
// GET /api/v1/admin/webhooks/payloads/*key
func (h *Handler) HandleGetPayload(c *gin.Context) {
	if h.archive == nil {
		httpkit.Error(c, http.StatusNotFound, msgArchiveDisabled, nil)
		return
	}
	rc, err := h.archive.Open(c.Request.Context(), c.Param("key"))
	if err != nil {
		h.log.WithContext(c.Request.Context()).Warn("archived payload unavailable", "key", c.Param("key"), "error", err)
		httpkit.Error(c, http.StatusNotFound, msgPayloadNotFound, nil)
		return
	}
	defer rc.Close()
	c.Header("Content-Type", "application/json")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		h.log.WithContext(c.Request.Context()).Warn("archived payload copy failed", "error", err)
	}
}

func (h *Handler) readBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpkit.Error(c, http.StatusRequestEntityTooLarge, msgPayloadTooLarge, nil)
			return nil, false
		}
		httpkit.Error(c, http.StatusBadRequest, msgUnreadableBody, nil)
		return nil, false
	}
	return body, true
}

func (h *Handler) reject(c *gin.Context, source string, err error) {
	h.log.WithContext(c.Request.Context()).Warn("webhook signature rejected",
		"source", source, "client_ip", c.ClientIP(), "error", err)
	httpkit.Error(c, http.StatusUnauthorized, msgInvalidSignature, nil)
}

func (h *Handler) respond(c *gin.Context, result Result, err error) {
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, AckResponse{Status: "ok", TrackingID: httpkit.TrackingID(c), Result: result})
}

// requestURL rebuilds the URL HubSpot signed, honoring a TLS-terminating proxy.
func requestURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + c.Request.Host + c.Request.URL.RequestURI()
}
