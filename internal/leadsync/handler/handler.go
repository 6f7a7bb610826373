package handler

import (
	"context"
	"net/http"

	"leadflow_backend/internal/leadsync/domain"
	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// Syncer is the reconciler surface exposed to operators.
type Syncer interface {
	TriggerSync(ctx context.Context) (domain.SyncResult, bool)
	Status(ctx context.Context) ([]domain.Checkpoint, error)
	Sources() []string
}

// Dispatcher hands a sync-now request to the scheduler process.
type Dispatcher interface {
	EnqueueSync(ctx context.Context) error
}

type Handler struct {
	syncer     Syncer
	dispatcher Dispatcher
	log        *logger.Logger
}

type TriggerResponse struct {
	Queued bool               `json:"queued"`
	Shared bool               `json:"shared"`
	Result *domain.SyncResult `json:"result,omitempty"`
}

type StatusResponse struct {
	Sources     []string            `json:"sources"`
	Checkpoints []domain.Checkpoint `json:"checkpoints"`
}

// New creates the sync handler. dispatcher may be nil.
func New(syncer Syncer, dispatcher Dispatcher, log *logger.Logger) *Handler {
	return &Handler{syncer: syncer, dispatcher: dispatcher, log: log}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/trigger", h.Trigger)
	rg.GET("/status", h.Status)
}

// Trigger runs a reconciliation cycle now.
// POST /api/v1/admin/sync/trigger
func (h *Handler) Trigger(c *gin.Context) {
	h.log.WithContext(c.Request.Context()).Info("sync_triggered", httpkit.CallerAttrs(c)...)
	if h.dispatcher != nil {
		err := h.dispatcher.EnqueueSync(c.Request.Context())
		if err == nil {
			httpkit.Accepted(c, TriggerResponse{Queued: true})
			return
		}
		h.log.WithContext(c.Request.Context()).Warn("enqueue sync failed, running inline", "error", err)
	}

	result, shared := h.syncer.TriggerSync(c.Request.Context())
	httpkit.OK(c, TriggerResponse{Shared: shared, Result: &result})
}

// Status returns the checkpoint and last report of every source.
// GET /api/v1/admin/sync/status
func (h *Handler) Status(c *gin.Context) {
	checkpoints, err := h.syncer.Status(c.Request.Context())
	if err != nil {
		h.log.WithContext(c.Request.Context()).DatabaseError("load sync checkpoints", err)
		httpkit.Error(c, http.StatusInternalServerError, "failed to load sync status", nil)
		return
	}
	if checkpoints == nil {
		checkpoints = []domain.Checkpoint{}
	}
	httpkit.OK(c, StatusResponse{Sources: h.syncer.Sources(), Checkpoints: checkpoints})
}
