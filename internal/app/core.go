// Package app builds the lead modules, workflow orchestrator and polling
// reconciler shared by the api and scheduler processes.
package app

import (
	"fmt"

	"leadflow_backend/internal/adapters"
	"leadflow_backend/internal/agents"
	"leadflow_backend/internal/email"
	"leadflow_backend/internal/feedback"
	"leadflow_backend/internal/leads"
	leadsyncrepo "leadflow_backend/internal/leadsync/repository"
	leadsyncservice "leadflow_backend/internal/leadsync/service"
	"leadflow_backend/internal/meetings"
	"leadflow_backend/internal/notification"
	"leadflow_backend/internal/sms"
	"leadflow_backend/internal/sources"
	"leadflow_backend/internal/sources/facebook"
	"leadflow_backend/internal/sources/hubspot"
	workflowrepo "leadflow_backend/internal/workflow/repository"
	workflowservice "leadflow_backend/internal/workflow/service"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Core holds the wired domain modules.
type Core struct {
	Leads        *leads.Module
	Agents       *agents.Module
	Meetings     *meetings.Module
	Feedback     *feedback.Module
	WorkflowRepo *workflowrepo.Repository
	Orchestrator *workflowservice.Orchestrator
	Reconciler   *leadsyncservice.Reconciler
	// HubSpot and Facebook are nil when the source is not configured.
	HubSpot  *hubspot.Client
	Facebook *facebook.Client
}

// NewCore wires leads, agents, meetings and feedback to the orchestrator
// and the reconciler.
func NewCore(cfg *config.Config, pool *pgxpool.Pool, val *validator.Validator, log *logger.Logger) (*Core, error) {
	notifier, err := newNotifier(cfg, log)
	if err != nil {
		return nil, err
	}

	leadsModule := leads.NewModule(pool, val, log)
	agentsModule := agents.NewModule(pool, val, log)
	meetingsModule := meetings.NewModule(pool, leadsModule.Service(), val, log)
	feedbackModule := feedback.NewModule(pool, meetingsModule.Service(), val, log)

	workflowCfg, err := workflowservice.ConfigFrom(cfg)
	if err != nil {
		return nil, fmt.Errorf("load workflow plan: %w", err)
	}
	workflowRepo := workflowrepo.New(pool)
	orch, err := workflowservice.New(
		workflowRepo,
		leadsModule.Service(),
		meetingsModule.Service(),
		notifier,
		workflowCfg,
		log,
		workflowservice.WithAgentDirectory(adapters.NewAgentDirectory(agentsModule.Service())),
	)
	if err != nil {
		return nil, fmt.Errorf("build orchestrator: %w", err)
	}
	leadsModule.Service().SetWorkflowInitializer(orch)
	meetingsModule.Service().SetScheduler(orch)

	core := &Core{
		Leads:        leadsModule,
		Agents:       agentsModule,
		Meetings:     meetingsModule,
		Feedback:     feedbackModule,
		WorkflowRepo: workflowRepo,
		Orchestrator: orch,
		HubSpot:      hubspot.NewClient(cfg, log),
		Facebook:     facebook.NewClient(cfg, log),
	}

	reconciler, err := leadsyncservice.New(
		core.leadSources(),
		leadsyncrepo.New(pool),
		leadsModule.Service(),
		orch,
		leadsyncservice.ConfigFrom(cfg),
		log,
	)
	if err != nil {
		return nil, fmt.Errorf("build reconciler: %w", err)
	}
	core.Reconciler = reconciler

	return core, nil
}

// leadSources lists the configured sources. Disabled clients are nil
// pointers and must not be boxed into the interface.
func (c *Core) leadSources() []sources.LeadSource {
	var srcs []sources.LeadSource
	if c.HubSpot != nil {
		srcs = append(srcs, c.HubSpot)
	}
	if c.Facebook != nil {
		srcs = append(srcs, c.Facebook)
	}
	return srcs
}

func newNotifier(cfg *config.Config, log *logger.Logger) (*notification.Sender, error) {
	emailSender, err := email.NewSender(cfg)
	if err != nil {
		return nil, fmt.Errorf("email sender: %w", err)
	}

	var smsSender sms.Sender
	if client := sms.NewClient(cfg, log); client != nil {
		smsSender = client
	} else {
		log.Warn("SMS gateway not configured; sms channel disabled")
	}

	return notification.New(emailSender, smsSender, log), nil
}
