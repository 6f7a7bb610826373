package webhook

import (
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"
)

// Module is the webhook bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	service *Service
}

// NewModule creates the webhook module. Optional collaborators (fetchers,
// archiver) are wired on Service().
func NewModule(leads LeadIngester, meetings MeetingRecorder, dedup Deduper, secrets config.WebhookConfig, log *logger.Logger) *Module {
	service := NewService(leads, meetings, dedup, log)
	return &Module{
		handler: NewHandler(service, secrets, log),
		service: service,
	}
}

// PayloadArchive is satisfied by storage.PayloadArchive.
type PayloadArchive interface {
	Archiver
	ArchiveReader
}

// SetArchive enables raw payload archiving and the operator download route.
func (m *Module) SetArchive(a PayloadArchive) {
	m.service.SetArchiver(a)
	m.handler.archive = a
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhook"
}

// Service returns the webhook service.
func (m *Module) Service() *Service {
	return m.service
}

// RegisterRoutes mounts the provider endpoints on the rate-limited,
// unauthenticated webhook group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	g := ctx.Webhooks
	g.POST("/calendly", m.handler.HandleCalendly)
	g.GET("/facebook", m.handler.HandleFacebookVerify)
	g.POST("/facebook", m.handler.HandleFacebook)
	g.POST("/hubspot", m.handler.HandleHubSpot)
	g.POST("/zapier", m.handler.HandleZapier)

	ctx.Admin.GET("/webhooks/payloads/*key", m.handler.HandleGetPayload)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
