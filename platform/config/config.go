// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// EmailConfig provides settings for email sending.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetEmailProvider() string
	GetBrevoAPIKey() string
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// SMSConfig provides settings for the SMS gateway.
type SMSConfig interface {
	GetSMSBaseURL() string
	GetSMSAccountSID() string
	GetSMSAuthToken() string
	GetSMSFromNumber() string
}

// RedisConfig provides settings for Redis-backed helpers.
type RedisConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
}

// SchedulerConfig provides settings for the asynq trigger queue.
type SchedulerConfig interface {
	RedisConfig
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// WorkflowConfig provides settings for the workflow orchestrator.
type WorkflowConfig interface {
	GetWorkflowProcessInterval() time.Duration
	GetWorkflowBatchLimit() int
	GetWorkflowRetryDelay() time.Duration
	GetWorkflowMaxRetries() int
	GetWorkflowRecurrenceLimit() int
	GetWorkflowPlanFile() string
	GetOperatorEmail() string
	GetAppBaseURL() string
	GetBookingURL() string
}

// SyncConfig provides settings for the polling reconciler.
type SyncConfig interface {
	GetSyncInterval() time.Duration
	GetSyncMaxLeads() int
	GetSyncInitialLookback() time.Duration
}

// HubSpotConfig provides settings for the HubSpot CRM API.
type HubSpotConfig interface {
	GetHubSpotBaseURL() string
	GetHubSpotAccessToken() string
	IsHubSpotEnabled() bool
}

// FacebookConfig provides settings for the Facebook Graph API.
type FacebookConfig interface {
	GetFacebookGraphURL() string
	GetFacebookPageID() string
	GetFacebookPageAccessToken() string
	GetFacebookAppSecret() string
	GetFacebookVerifyToken() string
	IsFacebookEnabled() bool
}

// WebhookConfig provides shared secrets for inbound webhook verification.
type WebhookConfig interface {
	GetCalendlySigningKey() string
	GetZapierSecret() string
	GetHubSpotClientSecret() string
	GetFacebookAppSecret() string
	GetFacebookVerifyToken() string
	GetWebhookDedupTTL() time.Duration
}

// MinIOConfig provides settings for the raw payload archive.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketWebhookPayloads() string
	IsMinIOEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env              string
	HTTPAddr         string
	DatabaseURL      string
	MigrationsDir    string
	JWTAccessSecret  string
	CORSAllowAll     bool
	CORSOrigins      []string
	CORSAllowCreds   bool
	AppBaseURL       string
	BookingURL       string
	OperatorEmail    string
	EmailEnabled     bool
	EmailProvider    string
	BrevoAPIKey      string
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	EmailFromName    string
	EmailFromAddress string
	SMSBaseURL       string
	SMSAccountSID    string
	SMSAuthToken     string
	SMSFromNumber    string
	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int

	WorkflowProcessInterval time.Duration
	WorkflowBatchLimit      int
	WorkflowRetryDelay      time.Duration
	WorkflowMaxRetries      int
	WorkflowRecurrenceLimit int
	WorkflowPlanFile        string

	SyncInterval        time.Duration
	SyncMaxLeads        int
	SyncInitialLookback time.Duration

	HubSpotBaseURL          string
	HubSpotAccessToken      string
	HubSpotClientSecret     string
	FacebookGraphURL        string
	FacebookPageID          string
	FacebookPageAccessToken string
	FacebookAppSecret       string
	FacebookVerifyToken     string
	CalendlySigningKey      string
	ZapierSecret            string
	WebhookDedupTTL         time.Duration

	MinIOEndpoint              string
	MinIOAccessKey             string
	MinIOSecretKey             string
	MinIOUseSSL                bool
	MinioBucketWebhookPayloads string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetEmailProvider() string    { return c.EmailProvider }
func (c *Config) GetBrevoAPIKey() string      { return c.BrevoAPIKey }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }

// SMSConfig implementation
func (c *Config) GetSMSBaseURL() string    { return c.SMSBaseURL }
func (c *Config) GetSMSAccountSID() string { return c.SMSAccountSID }
func (c *Config) GetSMSAuthToken() string  { return c.SMSAuthToken }
func (c *Config) GetSMSFromNumber() string { return c.SMSFromNumber }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// WorkflowConfig implementation
func (c *Config) GetWorkflowProcessInterval() time.Duration { return c.WorkflowProcessInterval }
func (c *Config) GetWorkflowBatchLimit() int                { return c.WorkflowBatchLimit }
func (c *Config) GetWorkflowRetryDelay() time.Duration      { return c.WorkflowRetryDelay }
func (c *Config) GetWorkflowMaxRetries() int                { return c.WorkflowMaxRetries }
func (c *Config) GetWorkflowRecurrenceLimit() int           { return c.WorkflowRecurrenceLimit }
func (c *Config) GetWorkflowPlanFile() string               { return c.WorkflowPlanFile }
func (c *Config) GetOperatorEmail() string                  { return c.OperatorEmail }
func (c *Config) GetAppBaseURL() string                     { return c.AppBaseURL }
func (c *Config) GetBookingURL() string                     { return c.BookingURL }

// SyncConfig implementation
func (c *Config) GetSyncInterval() time.Duration        { return c.SyncInterval }
func (c *Config) GetSyncMaxLeads() int                  { return c.SyncMaxLeads }
func (c *Config) GetSyncInitialLookback() time.Duration { return c.SyncInitialLookback }

// HubSpotConfig implementation
func (c *Config) GetHubSpotBaseURL() string     { return c.HubSpotBaseURL }
func (c *Config) GetHubSpotAccessToken() string { return c.HubSpotAccessToken }
func (c *Config) IsHubSpotEnabled() bool        { return c.HubSpotAccessToken != "" }

// FacebookConfig implementation
func (c *Config) GetFacebookGraphURL() string        { return c.FacebookGraphURL }
func (c *Config) GetFacebookPageID() string          { return c.FacebookPageID }
func (c *Config) GetFacebookPageAccessToken() string { return c.FacebookPageAccessToken }
func (c *Config) GetFacebookAppSecret() string       { return c.FacebookAppSecret }
func (c *Config) GetFacebookVerifyToken() string     { return c.FacebookVerifyToken }
func (c *Config) IsFacebookEnabled() bool            { return c.FacebookPageAccessToken != "" }

// WebhookConfig implementation
func (c *Config) GetCalendlySigningKey() string     { return c.CalendlySigningKey }
func (c *Config) GetZapierSecret() string           { return c.ZapierSecret }
func (c *Config) GetHubSpotClientSecret() string    { return c.HubSpotClientSecret }
func (c *Config) GetWebhookDedupTTL() time.Duration { return c.WebhookDedupTTL }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string  { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool      { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketWebhookPayloads() string {
	return c.MinioBucketWebhookPayloads
}
func (c *Config) IsMinIOEnabled() bool { return c.MinIOEndpoint != "" }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true")
	emailProvider := strings.ToLower(getEnv("EMAIL_PROVIDER", "brevo"))

	cfg := &Config{
		Env:              getEnv("APP_ENV", "development"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		MigrationsDir:    getEnv("MIGRATIONS_DIR", "migrations"),
		JWTAccessSecret:  getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:     corsAllowAll,
		CORSOrigins:      corsOrigins,
		CORSAllowCreds:   strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		AppBaseURL:       getEnv("APP_BASE_URL", "http://localhost:4200"),
		BookingURL:       getEnv("BOOKING_URL", ""),
		OperatorEmail:    getEnv("OPERATOR_EMAIL", ""),
		EmailEnabled:     emailEnabled,
		EmailProvider:    emailProvider,
		BrevoAPIKey:      getEnv("BREVO_API_KEY", ""),
		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		EmailFromName:    getEnv("EMAIL_FROM_NAME", "Leadflow"),
		EmailFromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),
		SMSBaseURL:       getEnv("SMS_BASE_URL", "https://api.twilio.com"),
		SMSAccountSID:    getEnv("SMS_ACCOUNT_SID", ""),
		SMSAuthToken:     getEnv("SMS_AUTH_TOKEN", ""),
		SMSFromNumber:    getEnv("SMS_FROM_NUMBER", ""),
		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency: mustInt(getEnv("ASYNQ_CONCURRENCY", "2")),

		WorkflowProcessInterval: mustDuration(getEnv("WORKFLOW_PROCESS_INTERVAL", "2m")),
		WorkflowBatchLimit:      mustInt(getEnv("WORKFLOW_BATCH_LIMIT", "50")),
		WorkflowRetryDelay:      mustDuration(getEnv("WORKFLOW_RETRY_DELAY", "15m")),
		WorkflowMaxRetries:      mustInt(getEnv("WORKFLOW_MAX_RETRIES", "3")),
		WorkflowRecurrenceLimit: mustInt(getEnv("WORKFLOW_RECURRENCE_LIMIT", "144")),
		WorkflowPlanFile:        getEnv("WORKFLOW_PLAN_FILE", ""),

		SyncInterval:        mustDuration(getEnv("SYNC_INTERVAL", "5m")),
		SyncMaxLeads:        mustInt(getEnv("SYNC_MAX_LEADS", "100")),
		SyncInitialLookback: mustDuration(getEnv("SYNC_INITIAL_LOOKBACK", "24h")),

		HubSpotBaseURL:          getEnv("HUBSPOT_BASE_URL", "https://api.hubapi.com"),
		HubSpotAccessToken:      getEnv("HUBSPOT_ACCESS_TOKEN", ""),
		HubSpotClientSecret:     getEnv("HUBSPOT_CLIENT_SECRET", ""),
		FacebookGraphURL:        getEnv("FACEBOOK_GRAPH_URL", "https://graph.facebook.com/v19.0"),
		FacebookPageID:          getEnv("FACEBOOK_PAGE_ID", ""),
		FacebookPageAccessToken: getEnv("FACEBOOK_PAGE_ACCESS_TOKEN", ""),
		FacebookAppSecret:       getEnv("FACEBOOK_APP_SECRET", ""),
		FacebookVerifyToken:     getEnv("FACEBOOK_VERIFY_TOKEN", ""),
		CalendlySigningKey:      getEnv("CALENDLY_SIGNING_KEY", ""),
		ZapierSecret:            getEnv("ZAPIER_SECRET", ""),
		WebhookDedupTTL:         mustDuration(getEnv("WEBHOOK_DEDUP_TTL", "24h")),

		MinIOEndpoint:              getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:             getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:             getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:                strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinioBucketWebhookPayloads: getEnv("MINIO_BUCKET_WEBHOOK_PAYLOADS", "webhook-payloads"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.EmailEnabled {
		switch cfg.EmailProvider {
		case "brevo":
			if cfg.BrevoAPIKey == "" {
				return nil, fmt.Errorf("BREVO_API_KEY is required when EMAIL_PROVIDER is brevo")
			}
		case "smtp":
			if cfg.SMTPHost == "" {
				return nil, fmt.Errorf("SMTP_HOST is required when EMAIL_PROVIDER is smtp")
			}
		default:
			return nil, fmt.Errorf("unsupported EMAIL_PROVIDER %q", cfg.EmailProvider)
		}
		if cfg.EmailFromAddress == "" {
			return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
		}
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.WorkflowRetryDelay <= 0 {
		return nil, fmt.Errorf("WORKFLOW_RETRY_DELAY must be a positive duration")
	}
	if cfg.SyncInterval <= 0 || cfg.WorkflowProcessInterval <= 0 {
		return nil, fmt.Errorf("SYNC_INTERVAL and WORKFLOW_PROCESS_INTERVAL must be positive durations")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
