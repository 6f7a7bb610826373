package handler

import (
	"context"
	"net/http"

	"leadflow_backend/internal/workflow/domain"
	"leadflow_backend/internal/workflow/repository"
	"leadflow_backend/internal/workflow/transport"
	"leadflow_backend/platform/apperr"
	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Orchestrator is the subset of the workflow service exposed to operators.
type Orchestrator interface {
	InitializeWorkflow(ctx context.Context, leadID uuid.UUID) bool
	ProcessPendingJobs(ctx context.Context, limit int) int
	GetWorkflowStatus(ctx context.Context, leadID uuid.UUID) (domain.WorkflowStatus, error)
}

// Dispatcher hands a process-now request to the scheduler process.
type Dispatcher interface {
	EnqueueWorkflowProcess(ctx context.Context, limit int) error
}

// Handler serves the operator workflow routes.
type Handler struct {
	orch       Orchestrator
	jobs       repository.Lister
	dispatcher Dispatcher
	val        *validator.Validator
	log        *logger.Logger
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidLeadID    = "invalid lead id"
	msgInitFailed       = "workflow could not be initialized"
)

// New creates a workflow handler. dispatcher may be nil, in which case
// process-now runs inline.
func New(orch Orchestrator, jobs repository.Lister, dispatcher Dispatcher, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{orch: orch, jobs: jobs, dispatcher: dispatcher, val: val, log: log}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/leads/:leadId/initialize", h.Initialize)
	rg.GET("/leads/:leadId/status", h.Status)
	rg.POST("/process", h.Process)
	rg.GET("/jobs", h.ListJobs)
}

// Initialize creates the initial job batch for a lead.
// POST /api/v1/admin/workflows/leads/:leadId/initialize
func (h *Handler) Initialize(c *gin.Context) {
	leadID, ok := parseLeadID(c)
	if !ok {
		return
	}
	h.log.WithContext(c.Request.Context()).Info("workflow_initialize_requested", append([]any{"leadId", leadID}, httpkit.CallerAttrs(c)...)...)
	if !h.orch.InitializeWorkflow(c.Request.Context(), leadID) {
		httpkit.Error(c, http.StatusInternalServerError, msgInitFailed, nil)
		return
	}
	httpkit.OK(c, transport.InitializeResponse{LeadID: leadID, Initialized: true})
}

// Status returns job counts and jobs for a lead.
// GET /api/v1/admin/workflows/leads/:leadId/status
func (h *Handler) Status(c *gin.Context) {
	leadID, ok := parseLeadID(c)
	if !ok {
		return
	}
	status, err := h.orch.GetWorkflowStatus(c.Request.Context(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.WorkflowStatusResponse{
		LeadID: status.LeadID,
		Counts: status.Counts,
		Jobs:   transport.ToJobResponses(status.Jobs),
	})
}

// Process runs due jobs now, through the scheduler queue when one is wired.
// POST /api/v1/admin/workflows/process
func (h *Handler) Process(c *gin.Context) {
	var req transport.ProcessRequest
	if c.Request.ContentLength > 0 && !h.bindAndValidate(c, &req) {
		return
	}
	h.log.WithContext(c.Request.Context()).Info("workflow_process_requested", append([]any{"limit", req.Limit}, httpkit.CallerAttrs(c)...)...)

	if h.dispatcher != nil {
		err := h.dispatcher.EnqueueWorkflowProcess(c.Request.Context(), req.Limit)
		if err == nil {
			httpkit.Accepted(c, transport.ProcessResponse{Queued: true})
			return
		}
		h.log.WithContext(c.Request.Context()).Warn("enqueue workflow process failed, running inline", "error", err)
	}

	processed := h.orch.ProcessPendingJobs(c.Request.Context(), req.Limit)
	httpkit.OK(c, transport.ProcessResponse{Processed: processed})
}

// ListJobs lists workflow jobs filtered by status, type or lead.
// GET /api/v1/admin/workflows/jobs
func (h *Handler) ListJobs(c *gin.Context) {
	var req transport.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	params, page, pageSize := listParams(req)
	jobs, total, err := h.jobs.List(c.Request.Context(), params)
	if err != nil {
		h.log.WithContext(c.Request.Context()).DatabaseError("list workflow jobs", err)
		httpkit.HandleError(c, apperr.Wrap(apperr.KindInternal, "list workflow jobs", err))
		return
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}
	httpkit.OK(c, transport.JobListResponse{
		Items:      transport.ToJobResponses(jobs),
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	})
}

func listParams(req transport.ListJobsRequest) (repository.ListParams, int, int) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = 50
	}

	params := repository.ListParams{Offset: (page - 1) * pageSize, Limit: pageSize}
	if req.Status != "" {
		status := domain.Status(req.Status)
		params.Status = &status
	}
	if req.WorkflowType != "" {
		wt := domain.Type(req.WorkflowType)
		params.WorkflowType = &wt
	}
	if req.LeadID != "" {
		if id, err := uuid.Parse(req.LeadID); err == nil {
			params.LeadID = &id
		}
	}
	return params, page, pageSize
}

func (h *Handler) bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return false
	}
	return true
}

func parseLeadID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("leadId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidLeadID, nil)
		return uuid.UUID{}, false
	}
	return id, true
}
