// Package feedback records lead feedback collected after meetings.
package feedback

import (
	"leadflow_backend/internal/feedback/handler"
	"leadflow_backend/internal/feedback/repository"
	"leadflow_backend/internal/feedback/service"
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
}

func NewModule(pool *pgxpool.Pool, meetings service.MeetingReader, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(repository.New(pool), meetings, log)
	return &Module{handler: handler.New(svc, val)}
}

func (m *Module) Name() string {
	return "feedback"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/feedback"))
}

var _ apphttp.Module = (*Module)(nil)
