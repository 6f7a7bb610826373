// Package workflow wires the workflow orchestrator and its operator routes.
package workflow

import (
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/internal/workflow/handler"
	"leadflow_backend/internal/workflow/repository"
	"leadflow_backend/internal/workflow/service"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/validator"
)

// Module is the workflow bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	orch    *service.Orchestrator
}

// NewModule wires the operator routes over an already-built orchestrator.
// dispatcher may be nil.
func NewModule(orch *service.Orchestrator, repo *repository.Repository, dispatcher handler.Dispatcher, val *validator.Validator, log *logger.Logger) *Module {
	return &Module{
		handler: handler.New(orch, repo, dispatcher, val, log),
		orch:    orch,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "workflow"
}

// Orchestrator returns the orchestrator for webhook and sync wiring.
func (m *Module) Orchestrator() *service.Orchestrator {
	return m.orch
}

// RegisterRoutes mounts operator workflow routes on the admin group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Admin.Group("/workflows"))
}

var _ apphttp.Module = (*Module)(nil)
