package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"leadflow_backend/internal/app"
	"leadflow_backend/internal/scheduler"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/validator"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := app.ConnectDatabase(ctx, cfg, log)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	core, err := app.NewCore(cfg, pool, validator.New(), log)
	if err != nil {
		log.Error("failed to initialize domain modules", "error", err)
		panic("failed to initialize domain modules: " + err.Error())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return core.Orchestrator.Run(gctx) })
	g.Go(func() error { return core.Reconciler.Run(gctx) })

	if worker := initWorker(cfg, core, log); worker != nil {
		g.Go(func() error { return worker.Run(gctx) })
	}

	log.Info("scheduler running", "sources", core.Reconciler.Sources())
	if err := g.Wait(); err != nil {
		log.Error("scheduler stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("scheduler stopped")
}

// initWorker returns nil when REDIS_URL is unset; the api process then runs
// operator triggers inline.
func initWorker(cfg config.SchedulerConfig, core *app.Core, log *logger.Logger) *scheduler.Worker {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; trigger queue worker disabled")
		return nil
	}

	worker, err := scheduler.NewWorker(cfg, core.Orchestrator, core.Reconciler, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}
	return worker
}
