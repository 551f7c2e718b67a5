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

// RedisConfig provides the Redis connection used for locks and deduplication.
type RedisConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
}

// SchedulerConfig provides settings for the asynq worker and periodic tasks.
type SchedulerConfig interface {
	RedisConfig
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetNotificationSweepSpec() string
}

// JWTConfig provides JWT validation settings for the admin API.
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

// WhatsAppConfig provides messaging channel settings.
type WhatsAppConfig interface {
	GetWhatsAppVerifyToken() string
	GetWhatsAppURL() string
	GetWhatsAppToken() string
	GetWhatsAppPhoneNumberID() string
}

// ReasoningConfig provides settings for the reasoning service.
type ReasoningConfig interface {
	GetMoonshotAPIKey() string
	GetMoonshotModel() string
	GetReasoningMaxRounds() int
	IsReasoningEnabled() bool
}

// SessionConfig provides conversation session lifecycle settings.
type SessionConfig interface {
	GetSessionIdleTTL() time.Duration
	GetSessionWizardTTL() time.Duration
	GetSessionMaxHistory() int
	GetSessionPromptTurns() int
}

// NotificationConfig provides proactive notification settings.
type NotificationConfig interface {
	GetNotificationCooldown() time.Duration
}

// PhoneConfig provides channel address canonicalization settings.
type PhoneConfig interface {
	GetPhoneDefaultRegion() string
	GetPhoneCountryCode() string
}

// BankVerificationConfig provides payout account verification settings.
type BankVerificationConfig interface {
	GetBankVerifyURL() string
	GetBankVerifyKey() string
	IsBankVerificationEnabled() bool
}

// TranscriptionConfig provides voice note transcription settings.
type TranscriptionConfig interface {
	GetTranscribeURL() string
	GetTranscribeKey() string
	IsTranscriptionEnabled() bool
}

// EmailConfig provides SMTP settings for account link codes.
type EmailConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	IsEmailEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                   string
	HTTPAddr              string
	DatabaseURL           string
	RedisURL              string
	RedisTLSInsecure      bool
	AsynqQueueName        string
	AsynqConcurrency      int
	NotificationSweepSpec string
	JWTAccessSecret       string
	CORSAllowAll          bool
	CORSOrigins           []string
	CORSAllowCreds        bool
	WhatsAppVerifyToken   string
	WhatsAppURL           string
	WhatsAppToken         string
	WhatsAppPhoneNumberID string
	MoonshotAPIKey        string
	MoonshotModel         string
	ReasoningMaxRounds    int
	SessionIdleTTL        time.Duration
	SessionWizardTTL      time.Duration
	SessionMaxHistory     int
	SessionPromptTurns    int
	NotificationCooldown  time.Duration
	PhoneDefaultRegion    string
	PhoneCountryCode      string
	BankVerifyURL         string
	BankVerifyKey         string
	TranscribeURL         string
	TranscribeKey         string
	SMTPHost              string
	SMTPPort              int
	SMTPUsername          string
	SMTPPassword          string
	EmailFromName         string
	EmailFromAddress      string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// RedisConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }

// SchedulerConfig implementation
func (c *Config) GetAsynqQueueName() string        { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int         { return c.AsynqConcurrency }
func (c *Config) GetNotificationSweepSpec() string { return c.NotificationSweepSpec }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// WhatsAppConfig implementation
func (c *Config) GetWhatsAppVerifyToken() string   { return c.WhatsAppVerifyToken }
func (c *Config) GetWhatsAppURL() string           { return c.WhatsAppURL }
func (c *Config) GetWhatsAppToken() string         { return c.WhatsAppToken }
func (c *Config) GetWhatsAppPhoneNumberID() string { return c.WhatsAppPhoneNumberID }

// ReasoningConfig implementation
func (c *Config) GetMoonshotAPIKey() string  { return c.MoonshotAPIKey }
func (c *Config) GetMoonshotModel() string   { return c.MoonshotModel }
func (c *Config) GetReasoningMaxRounds() int { return c.ReasoningMaxRounds }
func (c *Config) IsReasoningEnabled() bool   { return c.MoonshotAPIKey != "" }

// SessionConfig implementation
func (c *Config) GetSessionIdleTTL() time.Duration   { return c.SessionIdleTTL }
func (c *Config) GetSessionWizardTTL() time.Duration { return c.SessionWizardTTL }
func (c *Config) GetSessionMaxHistory() int          { return c.SessionMaxHistory }
func (c *Config) GetSessionPromptTurns() int         { return c.SessionPromptTurns }

// NotificationConfig implementation
func (c *Config) GetNotificationCooldown() time.Duration { return c.NotificationCooldown }

// PhoneConfig implementation
func (c *Config) GetPhoneDefaultRegion() string { return c.PhoneDefaultRegion }
func (c *Config) GetPhoneCountryCode() string   { return c.PhoneCountryCode }

// BankVerificationConfig implementation
func (c *Config) GetBankVerifyURL() string        { return c.BankVerifyURL }
func (c *Config) GetBankVerifyKey() string        { return c.BankVerifyKey }
func (c *Config) IsBankVerificationEnabled() bool { return c.BankVerifyURL != "" }

// TranscriptionConfig implementation
func (c *Config) GetTranscribeURL() string     { return c.TranscribeURL }
func (c *Config) GetTranscribeKey() string     { return c.TranscribeKey }
func (c *Config) IsTranscriptionEnabled() bool { return c.TranscribeURL != "" }

// EmailConfig implementation
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) IsEmailEnabled() bool        { return c.SMTPHost != "" && c.EmailFromAddress != "" }

// IsDevelopment reports whether the app runs in development mode.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                   getEnv("APP_ENV", "development"),
		HTTPAddr:              getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		RedisURL:              getEnv("REDIS_URL", ""),
		RedisTLSInsecure:      strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:        getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:      mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		NotificationSweepSpec: getEnv("NOTIFICATION_SWEEP_SPEC", "@every 30m"),
		JWTAccessSecret:       getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:          corsAllowAll,
		CORSOrigins:           corsOrigins,
		CORSAllowCreds:        strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "false"), "true"),
		WhatsAppVerifyToken:   getEnv("WHATSAPP_VERIFY_TOKEN", ""),
		WhatsAppURL:           getEnv("WHATSAPP_API_URL", ""),
		WhatsAppToken:         getEnv("WHATSAPP_TOKEN", ""),
		WhatsAppPhoneNumberID: getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
		MoonshotAPIKey:        getEnv("MOONSHOT_API_KEY", ""),
		MoonshotModel:         getEnv("MOONSHOT_MODEL", "kimi-k2-turbo-preview"),
		ReasoningMaxRounds:    mustInt(getEnv("REASONING_MAX_ROUNDS", "6")),
		SessionIdleTTL:        mustDuration(getEnv("SESSION_IDLE_TTL", "5m")),
		SessionWizardTTL:      mustDuration(getEnv("SESSION_WIZARD_TTL", "60m")),
		SessionMaxHistory:     mustInt(getEnv("SESSION_MAX_HISTORY", "20")),
		SessionPromptTurns:    mustInt(getEnv("SESSION_PROMPT_TURNS", "12")),
		NotificationCooldown:  mustDuration(getEnv("NOTIFICATION_COOLDOWN", "6h")),
		PhoneDefaultRegion:    getEnv("PHONE_DEFAULT_REGION", "NG"),
		PhoneCountryCode:      strings.TrimPrefix(getEnv("PHONE_COUNTRY_CODE", "234"), "+"),
		BankVerifyURL:         getEnv("BANK_VERIFY_URL", ""),
		BankVerifyKey:         getEnv("BANK_VERIFY_KEY", ""),
		TranscribeURL:         getEnv("TRANSCRIBE_URL", ""),
		TranscribeKey:         getEnv("TRANSCRIBE_KEY", ""),
		SMTPHost:              getEnv("SMTP_HOST", ""),
		SMTPPort:              mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:          getEnv("SMTP_USERNAME", ""),
		SMTPPassword:          getEnv("SMTP_PASSWORD", ""),
		EmailFromName:         getEnv("EMAIL_FROM_NAME", "FleetDesk"),
		EmailFromAddress:      getEnv("EMAIL_FROM_ADDRESS", ""),
	}

	if !cfg.IsDevelopment() && cfg.WhatsAppVerifyToken == "" {
		return nil, fmt.Errorf("WHATSAPP_VERIFY_TOKEN is required outside development")
	}
	if cfg.ReasoningMaxRounds < 1 {
		return nil, fmt.Errorf("REASONING_MAX_ROUNDS must be at least 1")
	}
	if cfg.SessionIdleTTL <= 0 || cfg.SessionWizardTTL <= 0 {
		return nil, fmt.Errorf("SESSION_IDLE_TTL and SESSION_WIZARD_TTL must be positive durations")
	}
	if strings.Trim(cfg.PhoneCountryCode, "0123456789") != "" || cfg.PhoneCountryCode == "" {
		return nil, fmt.Errorf("PHONE_COUNTRY_CODE must contain digits only")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
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
