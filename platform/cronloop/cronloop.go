// Package cronloop runs a single task on a fixed interval using robfig/cron.
// It backs both the workflow processing timer and the lead sync timer.
package cronloop

import (
	"context"
	"fmt"
	"sync"
	"time"

	"leadflow_backend/platform/logger"

	"github.com/robfig/cron/v3"
)

// Task is the unit of work invoked on every tick.
type Task func(ctx context.Context) error

// Loop invokes a Task at a fixed interval. Overlapping ticks are skipped
// while a previous run is still in flight.
type Loop struct {
	name     string
	interval time.Duration
	timeout  time.Duration
	task     Task
	log      *logger.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	baseCtx context.Context
	running bool
}

// Option configures a Loop.
type Option func(*Loop)

// WithRunTimeout bounds each run. Zero means no bound beyond the base context.
func WithRunTimeout(d time.Duration) Option {
	return func(l *Loop) { l.timeout = d }
}

// New creates a stopped Loop.
func New(name string, interval time.Duration, task Task, log *logger.Logger, opts ...Option) (*Loop, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("cronloop %s: interval must be positive", name)
	}
	if task == nil {
		return nil, fmt.Errorf("cronloop %s: task is required", name)
	}
	l := &Loop{
		name:     name,
		interval: interval,
		timeout:  5 * time.Minute,
		task:     task,
		log:      log,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Spec returns the cron descriptor the loop schedules with.
func (l *Loop) Spec() string {
	return "@every " + l.interval.String()
}

// Start schedules the task. Starting a running loop logs a warning and does nothing.
// Runs use ctx (detached from cancellation of Stop) as their parent.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		l.log.Warn("loop already running", "loop", l.name)
		return nil
	}

	c := cron.New(cron.WithChain(
		cron.Recover(cronLogger{l.log}),
		cron.SkipIfStillRunning(cronLogger{l.log}),
	))
	if _, err := c.AddFunc(l.Spec(), l.runOnce); err != nil {
		return fmt.Errorf("cronloop %s: schedule: %w", l.name, err)
	}

	l.cron = c
	l.baseCtx = context.WithoutCancel(ctx)
	l.running = true
	c.Start()

	l.log.Info("loop started", "loop", l.name, "interval", l.interval.String())
	return nil
}

// Stop releases the schedule. A run already in flight is allowed to finish;
// Stop does not wait for it. Stopping a stopped loop logs a warning.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running {
		l.log.Warn("loop not running", "loop", l.name)
		return
	}

	l.cron.Stop()
	l.cron = nil
	l.running = false
	l.log.Info("loop stopped", "loop", l.name)
}

// Running reports whether the loop is scheduled.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Run starts the loop, blocks until ctx is done, then stops it.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	l.Stop()
	return nil
}

func (l *Loop) runOnce() {
	l.mu.Lock()
	ctx := l.baseCtx
	l.mu.Unlock()
	if ctx == nil {
		return
	}

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := l.task(ctx); err != nil {
		l.log.Error("loop run failed", "loop", l.name, "error", err, "duration", time.Since(start))
		return
	}
	l.log.Debug("loop run completed", "loop", l.name, "duration", time.Since(start))
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	log *logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error(msg, append(keysAndValues, "error", err)...)
}
