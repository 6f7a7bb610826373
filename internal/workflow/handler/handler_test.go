package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"leadflow_backend/internal/workflow/domain"
	"leadflow_backend/internal/workflow/repository"
	"leadflow_backend/internal/workflow/transport"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type stubOrchestrator struct {
	initOK       bool
	processed    int
	processCalls int
	lastLimit    int
}

func (s *stubOrchestrator) InitializeWorkflow(context.Context, uuid.UUID) bool { return s.initOK }

func (s *stubOrchestrator) ProcessPendingJobs(_ context.Context, limit int) int {
	s.processCalls++
	s.lastLimit = limit
	return s.processed
}

func (s *stubOrchestrator) GetWorkflowStatus(_ context.Context, leadID uuid.UUID) (domain.WorkflowStatus, error) {
	jobs := []domain.Job{{ID: uuid.New(), LeadID: leadID, Status: domain.StatusPending, Step: domain.StepSendWelcomeEmail}}
	return domain.WorkflowStatus{LeadID: leadID, Counts: domain.CountJobs(jobs), Jobs: jobs}, nil
}

type stubLister struct {
	params repository.ListParams
}

func (s *stubLister) List(_ context.Context, params repository.ListParams) ([]domain.Job, int, error) {
	s.params = params
	return []domain.Job{{ID: uuid.New(), Status: domain.StatusFailed}}, 51, nil
}

type stubDispatcher struct {
	err   error
	calls int
}

func (s *stubDispatcher) EnqueueWorkflowProcess(context.Context, int) error {
	s.calls++
	return s.err
}

func newRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.RegisterRoutes(r.Group("/workflows"))
	return r
}

func serve(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestProcessRunsInlineWithoutDispatcher(t *testing.T) {
	orch := &stubOrchestrator{processed: 4}
	r := newRouter(New(orch, &stubLister{}, nil, validator.New(), logger.Nop()))

	rec := serve(r, http.MethodPost, "/workflows/process", `{"limit":10}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp transport.ProcessResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Processed != 4 || resp.Queued || orch.lastLimit != 10 {
		t.Fatalf("unexpected response %+v, limit %d", resp, orch.lastLimit)
	}
}

func TestProcessQueuesThroughDispatcher(t *testing.T) {
	orch := &stubOrchestrator{}
	dispatcher := &stubDispatcher{}
	r := newRouter(New(orch, &stubLister{}, dispatcher, validator.New(), logger.Nop()))

	rec := serve(r, http.MethodPost, "/workflows/process", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status %d", rec.Code)
	}
	if dispatcher.calls != 1 || orch.processCalls != 0 {
		t.Fatalf("dispatcher calls %d, inline calls %d", dispatcher.calls, orch.processCalls)
	}
}

func TestProcessFallsBackWhenQueueUnavailable(t *testing.T) {
	orch := &stubOrchestrator{processed: 1}
	dispatcher := &stubDispatcher{err: errors.New("redis down")}
	r := newRouter(New(orch, &stubLister{}, dispatcher, validator.New(), logger.Nop()))

	rec := serve(r, http.MethodPost, "/workflows/process", "")
	if rec.Code != http.StatusOK || orch.processCalls != 1 {
		t.Fatalf("status %d, inline calls %d", rec.Code, orch.processCalls)
	}
}

func TestInitialize(t *testing.T) {
	leadID := uuid.New()

	r := newRouter(New(&stubOrchestrator{initOK: true}, &stubLister{}, nil, validator.New(), logger.Nop()))
	if rec := serve(r, http.MethodPost, "/workflows/leads/"+leadID.String()+"/initialize", ""); rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if rec := serve(r, http.MethodPost, "/workflows/leads/not-a-uuid/initialize", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid id status %d", rec.Code)
	}

	r = newRouter(New(&stubOrchestrator{}, &stubLister{}, nil, validator.New(), logger.Nop()))
	if rec := serve(r, http.MethodPost, "/workflows/leads/"+leadID.String()+"/initialize", ""); rec.Code != http.StatusInternalServerError {
		t.Fatalf("failed init status %d", rec.Code)
	}
}

func TestStatus(t *testing.T) {
	leadID := uuid.New()
	r := newRouter(New(&stubOrchestrator{}, &stubLister{}, nil, validator.New(), logger.Nop()))

	rec := serve(r, http.MethodGet, "/workflows/leads/"+leadID.String()+"/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var resp transport.WorkflowStatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.LeadID != leadID || resp.Counts.Pending != 1 || len(resp.Jobs) != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestListJobsFiltersAndPaginates(t *testing.T) {
	lister := &stubLister{}
	r := newRouter(New(&stubOrchestrator{}, lister, nil, validator.New(), logger.Nop()))

	rec := serve(r, http.MethodGet, "/workflows/jobs?status=failed&page=2&pageSize=25", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if lister.params.Status == nil || *lister.params.Status != domain.StatusFailed {
		t.Fatalf("status filter not applied: %+v", lister.params)
	}
	if lister.params.Offset != 25 || lister.params.Limit != 25 {
		t.Fatalf("offset %d limit %d", lister.params.Offset, lister.params.Limit)
	}
	var resp transport.JobListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.TotalPages != 3 || resp.Page != 2 {
		t.Fatalf("pagination %+v", resp)
	}

	if rec := serve(r, http.MethodGet, "/workflows/jobs?status=bogus", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid status filter returned %d", rec.Code)
	}
}
