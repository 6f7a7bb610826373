package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadflow_backend/platform/config"
	"leadflow_backend/platform/db"

	"github.com/hibiken/asynq"
)

// Client enqueues operator triggers for the scheduler process. It satisfies
// the workflow and leadsync handler Dispatcher interfaces.
type Client struct {
	client *asynq.Client
	queue  string
	now    func() time.Time
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queueName(cfg),
		now:    time.Now,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueWorkflowProcess queues a run of due workflow jobs. A trigger that is
// already queued counts as success.
func (c *Client) EnqueueWorkflowProcess(ctx context.Context, limit int) error {
	task, err := NewWorkflowProcessTask(WorkflowProcessPayload{Limit: limit})
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task)
}

// EnqueueSync queues a reconciliation pass over every lead source.
func (c *Client) EnqueueSync(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("scheduler client not configured")
	}
	// RequestedAt is truncated so identical triggers inside the window share a payload.
	task, err := NewSyncRunTask(SyncRunPayload{RequestedAt: c.now().UTC().Truncate(uniqueWindow)})
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task)
}

func (c *Client) enqueue(ctx context.Context, task *asynq.Task) error {
	if c == nil || c.client == nil {
		return errors.New("scheduler client not configured")
	}
	_, err := c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.Unique(uniqueWindow),
		asynq.MaxRetry(1),
	)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

func queueName(cfg config.SchedulerConfig) string {
	if queue := cfg.GetAsynqQueueName(); queue != "" {
		return queue
	}
	return "default"
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := db.ParseRedisURL(redisURL, tlsInsecure)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}, nil
}
