// Package service polls lead sources and reconciles them into the lead store.
package service

import (
	"context"
	"fmt"
	"time"

	leadsdomain "leadflow_backend/internal/leads/domain"
	"leadflow_backend/internal/leads/normalizer"
	"leadflow_backend/internal/leadsync/domain"
	"leadflow_backend/internal/leadsync/repository"
	"leadflow_backend/internal/sources"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/cronloop"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/tracking"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// LeadUpserter applies canonical leads with the dedup policy.
type LeadUpserter interface {
	Upsert(ctx context.Context, in leadsdomain.CanonicalLead) (leadsdomain.UpsertResult, error)
}

// WorkflowInitializer starts the job sequence for a created lead.
type WorkflowInitializer interface {
	InitializeWorkflow(ctx context.Context, leadID uuid.UUID) bool
}

type Config struct {
	Interval        time.Duration
	MaxLeadsPerSync int
	InitialLookback time.Duration
	// RunTimeout bounds one cycle, whether started by the timer or a trigger.
	RunTimeout time.Duration
}

func ConfigFrom(cfg config.SyncConfig) Config {
	return Config{
		Interval:        cfg.GetSyncInterval(),
		MaxLeadsPerSync: cfg.GetSyncMaxLeads(),
		InitialLookback: cfg.GetSyncInitialLookback(),
	}
}

func (c *Config) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Minute
	}
	if c.MaxLeadsPerSync <= 0 {
		c.MaxLeadsPerSync = 100
	}
	if c.InitialLookback <= 0 {
		c.InitialLookback = 24 * time.Hour
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = 5 * time.Minute
	}
}

type Option func(*Reconciler)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// Reconciler pulls recent records from every configured source.
type Reconciler struct {
	sources  []sources.LeadSource
	store    repository.CheckpointStore
	leads    LeadUpserter
	workflow WorkflowInitializer
	cfg      Config
	log      *logger.Logger
	ids      *tracking.Generator
	now      func() time.Time

	group singleflight.Group
	loop  *cronloop.Loop
}

func New(srcs []sources.LeadSource, store repository.CheckpointStore, leads LeadUpserter, workflow WorkflowInitializer, cfg Config, log *logger.Logger, opts ...Option) (*Reconciler, error) {
	cfg.applyDefaults()
	r := &Reconciler{
		sources:  srcs,
		store:    store,
		leads:    leads,
		workflow: workflow,
		cfg:      cfg,
		log:      log,
		ids:      tracking.NewGenerator(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	loop, err := cronloop.New("leadsync", cfg.Interval, r.tick, log, cronloop.WithRunTimeout(cfg.RunTimeout))
	if err != nil {
		return nil, err
	}
	r.loop = loop
	return r, nil
}

// Sources lists the configured source names.
func (r *Reconciler) Sources() []string {
	names := make([]string, len(r.sources))
	for i, src := range r.sources {
		names[i] = src.Name()
	}
	return names
}

// PerformSync runs one cycle over every source. Sources are isolated from
// each other: one unreachable source does not stop the rest.
func (r *Reconciler) PerformSync(ctx context.Context, trackingID string) domain.SyncResult {
	if trackingID == "" {
		trackingID = r.ids.NewWithPrefix("sync")
	}
	ctx = logger.ContextWithTrackingID(ctx, trackingID)

	total := domain.SyncResult{TrackingID: trackingID, Success: true, SyncTime: r.now().UTC(), Errors: []domain.RecordError{}}
	for _, src := range r.sources {
		if ctx.Err() != nil {
			total.Success = false
			total.Message = ctx.Err().Error()
			break
		}
		total.Merge(r.syncSource(ctx, src, trackingID))
	}
	return total
}

// syncSource reconciles one source and persists its checkpoint.
func (r *Reconciler) syncSource(ctx context.Context, src sources.LeadSource, trackingID string) domain.SyncResult {
	log := r.log.WithContext(ctx)
	name := src.Name()
	start := r.now().UTC()
	result := domain.SyncResult{Source: name, TrackingID: trackingID, SyncTime: start, Errors: []domain.RecordError{}}

	since := start.Add(-r.cfg.InitialLookback)
	cp, found, err := r.store.Get(ctx, name)
	if err != nil {
		result.Message = fmt.Sprintf("read checkpoint: %v", err)
		log.Error("sync checkpoint read failed", "source", name, "error", err)
		return result
	}
	if found {
		since = cp.LastSyncTime
	}

	records, err := src.FetchRecent(ctx, since, r.cfg.MaxLeadsPerSync)
	if err != nil {
		result.Message = fmt.Sprintf("fetch: %v", err)
		log.Error("sync fetch failed, checkpoint kept", "source", name, "since", since, "error", err)
		r.save(ctx, name, since, result)
		return result
	}

	for i, raw := range records {
		r.applyRecord(ctx, name, i, raw, &result)
	}

	result.Success = true
	r.save(ctx, name, start, result)
	if len(records) > 0 {
		log.Info("sync finished", "source", name, "processed", result.Processed, "created", result.Created, "updated", result.Updated, "errors", len(result.Errors))
	}
	return result
}

func (r *Reconciler) applyRecord(ctx context.Context, source string, index int, raw map[string]any, result *domain.SyncResult) {
	lead := normalizer.Normalize(raw, source)
	externalID := lead.ExternalID
	if externalID == "" {
		externalID = fmt.Sprintf("record[%d]", index)
	}

	defer func() {
		if rec := recover(); rec != nil {
			result.Errors = append(result.Errors, domain.RecordError{ExternalID: externalID, Message: fmt.Sprintf("panic: %v", rec)})
		}
	}()

	upserted, err := r.leads.Upsert(ctx, lead)
	if err != nil {
		result.Errors = append(result.Errors, domain.RecordError{ExternalID: externalID, Message: err.Error()})
		return
	}
	result.Processed++

	if !upserted.Created() {
		result.Updated++
		return
	}
	result.Created++
	if r.workflow != nil && !r.workflow.InitializeWorkflow(ctx, upserted.Lead.ID) {
		result.Errors = append(result.Errors, domain.RecordError{ExternalID: externalID, Message: "workflow initialization failed"})
	}
}

func (r *Reconciler) save(ctx context.Context, source string, syncTime time.Time, report domain.SyncResult) {
	if err := r.store.Save(ctx, source, syncTime, report); err != nil {
		r.log.WithContext(ctx).Error("sync checkpoint save failed", "source", source, "error", err)
	}
}

// TriggerSync runs a cycle on demand. Triggers arriving while a cycle is in
// flight share its result; shared reports that. The cycle outlives the
// caller's cancellation but not RunTimeout.
func (r *Reconciler) TriggerSync(ctx context.Context) (result domain.SyncResult, shared bool) {
	trackingID := r.ids.NewWithPrefix("sync")
	v, _, shared := r.group.Do("sync", func() (interface{}, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.RunTimeout)
		defer cancel()
		return r.PerformSync(runCtx, trackingID), nil
	})
	return v.(domain.SyncResult), shared
}

func (r *Reconciler) tick(ctx context.Context) error {
	result, _ := r.TriggerSync(ctx)
	if !result.Success {
		return fmt.Errorf("sync incomplete: %s", failedSources(result))
	}
	return nil
}

func failedSources(result domain.SyncResult) string {
	out := ""
	for _, part := range result.Sources {
		if part.Success {
			continue
		}
		if out != "" {
			out += "; "
		}
		out += part.Source + ": " + part.Message
	}
	if out == "" {
		out = result.Message
	}
	return out
}

// Status returns every stored checkpoint with its last report.
func (r *Reconciler) Status(ctx context.Context) ([]domain.Checkpoint, error) {
	return r.store.List(ctx)
}

// Start schedules periodic syncs. Starting twice logs a warning.
func (r *Reconciler) Start(ctx context.Context) error {
	return r.loop.Start(ctx)
}

// Stop releases the schedule; an in-flight cycle finishes.
func (r *Reconciler) Stop() {
	r.loop.Stop()
}

func (r *Reconciler) Running() bool {
	return r.loop.Running()
}

// Run schedules continuous processing and blocks until ctx is done.
func (r *Reconciler) Run(ctx context.Context) error {
	return r.loop.Run(ctx)
}
