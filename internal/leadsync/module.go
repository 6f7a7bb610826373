// Package leadsync wires the polling reconciler and its operator routes.
package leadsync

import (
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/internal/leadsync/handler"
	"leadflow_backend/internal/leadsync/service"
	"leadflow_backend/platform/logger"
)

type Module struct {
	handler    *handler.Handler
	reconciler *service.Reconciler
}

// NewModule exposes an already-built reconciler. dispatcher may be nil.
func NewModule(reconciler *service.Reconciler, dispatcher handler.Dispatcher, log *logger.Logger) *Module {
	return &Module{
		handler:    handler.New(reconciler, dispatcher, log),
		reconciler: reconciler,
	}
}

func (m *Module) Name() string {
	return "leadsync"
}

func (m *Module) Reconciler() *service.Reconciler {
	return m.reconciler
}

// RegisterRoutes mounts the sync routes on the admin group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Admin.Group("/sync"))
}

var _ apphttp.Module = (*Module)(nil)
