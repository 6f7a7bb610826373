package scheduler

import (
	"context"
	"fmt"

	leadsyncdomain "leadflow_backend/internal/leadsync/domain"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// WorkflowRunner processes due workflow jobs.
type WorkflowRunner interface {
	ProcessPendingJobs(ctx context.Context, limit int) int
}

// SyncRunner runs a reconciliation pass.
type SyncRunner interface {
	TriggerSync(ctx context.Context) (leadsyncdomain.SyncResult, bool)
}

type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	workflow WorkflowRunner
	sync     SyncRunner
	log      *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, workflow WorkflowRunner, sync SyncRunner, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 2
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	w := &Worker{
		server:   server,
		workflow: workflow,
		sync:     sync,
		log:      log,
	}
	w.mux = w.routes()
	return w, nil
}

func (w *Worker) routes() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskWorkflowProcess, w.handleWorkflowProcess)
	mux.HandleFunc(TaskSyncRun, w.handleSyncRun)
	return mux
}

// Run processes queued triggers until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.server == nil {
		return nil
	}

	if err := w.server.Start(w.mux); err != nil {
		w.log.Error("scheduler worker failed to start", "error", err)
		return err
	}
	<-ctx.Done()
	w.server.Shutdown()
	return nil
}

func (w *Worker) handleWorkflowProcess(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseWorkflowProcessPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	processed := w.workflow.ProcessPendingJobs(ctx, payload.Limit)
	w.log.WithContext(ctx).Info("queued workflow run finished", "processed", processed)
	return nil
}

func (w *Worker) handleSyncRun(ctx context.Context, task *asynq.Task) error {
	if _, err := ParseSyncRunPayload(task); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	result, shared := w.sync.TriggerSync(ctx)
	w.log.WithContext(ctx).Info("queued sync finished",
		"success", result.Success, "processed", result.Processed, "errors", len(result.Errors), "shared", shared)
	return nil
}
