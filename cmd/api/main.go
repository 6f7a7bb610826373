package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadflow_backend/internal/adapters/storage"
	"leadflow_backend/internal/app"
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/internal/http/router"
	"leadflow_backend/internal/leadsync"
	"leadflow_backend/internal/scheduler"
	"leadflow_backend/internal/webhook"
	"leadflow_backend/internal/workflow"
	"leadflow_backend/migrations"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/cronloop"
	"leadflow_backend/platform/db"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/tracking"
	"leadflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	shutdownTimeout   = 10 * time.Second
	dedupPurgeEvery   = time.Hour
	readHeaderTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var schemaVersion uint
	if err := app.WithRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		v, err := db.RunMigrations(ctx, cfg, migrations.FS)
		schemaVersion = v
		return err
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete", "version", schemaVersion)

	pool, err := app.ConnectDatabase(ctx, cfg, log)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	health := []apphttp.HealthChecker{apphttp.HealthFunc(pool.Ping)}

	dedup, closeDedup := initDeduper(ctx, cfg, pool, log, &health)
	defer closeDedup()

	dispatcher, closeDispatcher := initDispatcher(cfg, log)
	defer closeDispatcher()

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	core, err := app.NewCore(cfg, pool, val, log)
	if err != nil {
		log.Error("failed to initialize domain modules", "error", err)
		panic("failed to initialize domain modules: " + err.Error())
	}

	var workflowModule *workflow.Module
	var syncModule *leadsync.Module
	if dispatcher != nil {
		workflowModule = workflow.NewModule(core.Orchestrator, core.WorkflowRepo, dispatcher, val, log)
		syncModule = leadsync.NewModule(core.Reconciler, dispatcher, log)
	} else {
		workflowModule = workflow.NewModule(core.Orchestrator, core.WorkflowRepo, nil, val, log)
		syncModule = leadsync.NewModule(core.Reconciler, nil, log)
	}

	webhookModule := webhook.NewModule(core.Leads.Service(), core.Meetings.Service(), dedup, cfg, log)
	if core.HubSpot != nil {
		webhookModule.Service().SetHubSpotFetcher(core.HubSpot)
	}
	if core.Facebook != nil {
		webhookModule.Service().SetFacebookFetcher(core.Facebook)
	}
	initPayloadArchive(ctx, cfg, webhookModule, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	application := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   health,
		Tracking: tracking.NewGenerator(),
		Modules: []apphttp.Module{
			core.Leads,
			core.Agents,
			core.Meetings,
			core.Feedback,
			workflowModule,
			syncModule,
			webhookModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(application),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// initDeduper prefers Redis for webhook replay protection and falls back to
// the webhook_events table, purged hourly.
func initDeduper(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, log *logger.Logger, health *[]apphttp.HealthChecker) (webhook.Deduper, func()) {
	ttl := cfg.GetWebhookDedupTTL()

	if cfg.GetRedisURL() != "" {
		client, err := db.NewRedis(ctx, cfg)
		if err == nil {
			*health = append(*health, apphttp.HealthFunc(func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			}))
			log.Info("webhook dedup backed by redis")
			return webhook.NewRedisDeduper(client, ttl), func() { _ = client.Close() }
		}
		log.Warn("redis unavailable; webhook dedup falls back to postgres", "error", err)
	}

	repo := webhook.NewRepository(pool, ttl)
	purge, err := cronloop.New("webhook-dedup-purge", dedupPurgeEvery, func(ctx context.Context) error {
		n, err := repo.Purge(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			log.Info("expired webhook dedup keys purged", "count", n)
		}
		return nil
	}, log)
	if err != nil {
		panic("failed to build dedup purge loop: " + err.Error())
	}
	if err := purge.Start(ctx); err != nil {
		log.Error("failed to start dedup purge loop", "error", err)
		return repo, func() {}
	}
	return repo, purge.Stop
}

// initDispatcher returns nil when REDIS_URL is unset; operator triggers then
// run inline in the api process.
func initDispatcher(cfg config.SchedulerConfig, log *logger.Logger) (*scheduler.Client, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; operator triggers run inline")
		return nil, func() {}
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		return nil, func() {}
	}
	return client, func() { _ = client.Close() }
}

func initPayloadArchive(ctx context.Context, cfg *config.Config, module *webhook.Module, log *logger.Logger) {
	if !cfg.IsMinIOEnabled() {
		log.Info("MinIO not configured; webhook payload archive disabled")
		return
	}

	store, err := storage.NewMinIOService(cfg)
	if err != nil {
		log.Error("failed to initialize storage service", "error", err)
		return
	}

	var archive *storage.PayloadArchive
	if err := app.WithRetry(ctx, log, "ensure webhook payload bucket", 5, 2*time.Second, func() error {
		a, err := storage.NewPayloadArchive(ctx, store, cfg.GetMinioBucketWebhookPayloads())
		if err != nil {
			return err
		}
		archive = a
		return nil
	}); err != nil {
		log.Error("webhook payload archive disabled", "error", err, "bucket", cfg.GetMinioBucketWebhookPayloads())
		return
	}

	module.SetArchive(archive)
	log.Info("webhook payload archive enabled", "bucket", cfg.GetMinioBucketWebhookPayloads())
}
