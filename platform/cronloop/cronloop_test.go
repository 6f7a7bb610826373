package cronloop

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"leadflow_backend/platform/logger"
)

func TestNewRejectsInvalidArguments(t *testing.T) {
	noop := func(context.Context) error { return nil }
	if _, err := New("x", 0, noop, logger.Nop()); err == nil {
		t.Fatal("expected error for zero interval")
	}
	if _, err := New("x", time.Second, nil, logger.Nop()); err == nil {
		t.Fatal("expected error for nil task")
	}
}

func TestStartStopAreIdempotent(t *testing.T) {
	loop, err := New("test", time.Hour, func(context.Context) error { return nil }, logger.Nop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	loop.Stop()
	if loop.Running() {
		t.Fatal("expected stopped loop after Stop on fresh loop")
	}

	if err := loop.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := loop.Start(context.Background()); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if !loop.Running() {
		t.Fatal("expected running loop")
	}

	loop.Stop()
	loop.Stop()
	if loop.Running() {
		t.Fatal("expected loop to be stopped")
	}
	if loop.cron != nil {
		t.Fatal("expected schedule to be released")
	}
}

func TestLoopRunsTaskAndSurvivesErrors(t *testing.T) {
	var calls atomic.Int32
	loop, err := New("ticker", time.Second, func(context.Context) error {
		calls.Add(1)
		return errors.New("boom")
	}, logger.Nop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if err := loop.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer loop.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if calls.Load() < 2 {
		t.Fatalf("expected at least 2 runs, got %d", calls.Load())
	}
}

func TestStopDoesNotCancelInFlightRun(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	result := make(chan error, 1)

	loop, err := New("inflight", time.Second, func(ctx context.Context) error {
		close(started)
		<-release
		result <- ctx.Err()
		return nil
	}, logger.Nop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := loop.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("task never started")
	}

	loop.Stop()
	cancel()
	close(release)

	if err := <-result; err != nil {
		t.Fatalf("expected in-flight context to stay live, got %v", err)
	}
}
