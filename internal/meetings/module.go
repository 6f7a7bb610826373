// Package meetings provides the meetings bounded context module.
package meetings

import (
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/internal/meetings/handler"
	"leadflow_backend/internal/meetings/repository"
	"leadflow_backend/internal/meetings/service"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
	service *service.Service
}

func NewModule(pool *pgxpool.Pool, leads service.LeadStatusSetter, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(repository.New(pool), leads, log)
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

func (m *Module) Name() string {
	return "meetings"
}

// Service returns the meetings service for webhooks and the workflow.
func (m *Module) Service() *service.Service {
	return m.service
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/meetings"))
}

var _ apphttp.Module = (*Module)(nil)
