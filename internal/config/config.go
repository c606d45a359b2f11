package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Database drivers
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Object store drivers
const (
	ObjectStoreNone   = "none"
	ObjectStoreMemory = "memory"
	ObjectStoreS3     = "s3"
)

// Team management policies
const (
	TeamPolicyMembers = "members"
	TeamPolicyEditors = "editors"
)

// Config holds all application configuration
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Email       EmailConfig
	CORS        CORSConfig
	RateLimit   RateLimitConfig
	App         AppConfig
	Log         LogConfig
	Scheduler   SchedulerConfig
	Vault       VaultConfig
	ObjectStore ObjectStoreConfig
	Workflow    WorkflowConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Host         string
	Port         string
	TimeoutRead  time.Duration
	TimeoutWrite time.Duration
	TimeoutIdle  time.Duration
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret     string // PEM encoded EC private key
	Expiration time.Duration
	Issuer     string
}

// EmailConfig holds email-related configuration
type EmailConfig struct {
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	AppURL       string // base URL used for links in emails
}

// Enabled reports whether an SMTP server is configured
func (c EmailConfig) Enabled() bool {
	return c.SMTPHost != ""
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled  bool
	Requests int
	Duration time.Duration
}

// AppConfig holds general application configuration
type AppConfig struct {
	Env     string
	Name    string
	Version string

	// AdminUserIDs may read the audit log and trigger reconciliation
	AdminUserIDs []string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string // json or text
}

// SchedulerConfig holds scheduler configuration
type SchedulerConfig struct {
	Enabled                bool
	ReviewerDigestCron     string // e.g., "0 8 * * *" (Daily 8 AM)
	DraftReminderCron      string // e.g., "0 9 * * 1" (Monday 9 AM)
	DraftReminderAfterDays int    // drafts untouched this long get a reminder
	ReconcileIntervalMins  int
	EnableReviewerDigest   bool
	EnableDraftReminders   bool
	EnableReconcile        bool
}

// VaultConfig holds Vault-related configuration
type VaultConfig struct {
	Address    string
	Token      string
	SecretPath string // KV v2 path holding the service secrets
	Enabled    bool
}

// ObjectStoreConfig holds configuration of the published snapshot archive
type ObjectStoreConfig struct {
	Driver          string
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PathStyle       bool
	Prefix          string
	PublicBaseURL   string
	PresignExpiry   time.Duration
}

// WorkflowConfig holds tuning of the assessment workflow
type WorkflowConfig struct {
	OperationTimeout  time.Duration
	TeamPolicy        string
	NotifyConcurrency int
	TransitionEmails  bool
	DirectoryCacheTTL time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// godotenv doesn't override already-set variables
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	cfg := FromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FromEnv builds a configuration from the process environment without
// validating it
func FromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "localhost"),
			Port:         getEnv("SERVER_PORT", "8080"),
			TimeoutRead:  getDurationEnv("SERVER_TIMEOUT_READ", 15*time.Second),
			TimeoutWrite: getDurationEnv("SERVER_TIMEOUT_WRITE", 15*time.Second),
			TimeoutIdle:  getDurationEnv("SERVER_TIMEOUT_IDLE", 60*time.Second),
		},
		Database: DatabaseConfig{
			Driver:          strings.ToLower(getEnv("DB_DRIVER", DriverPostgres)),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "landrace"),
			Password:        getEnv("DB_PASSWORD", ""),
			Name:            getEnv("DB_NAME", "landrace_threat"),
			SSLMode:         getEnv("DB_SSLMODE", "prefer"),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			AutoMigrate:     getBoolEnv("DB_AUTO_MIGRATE", true),
		},
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", ""),
			Expiration: getDurationEnv("JWT_EXPIRATION", 24*time.Hour),
			Issuer:     getEnv("JWT_ISSUER", "landrace-threat"),
		},
		Email: EmailConfig{
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getEnv("SMTP_PORT", "587"),
			SMTPUsername: getEnv("SMTP_USERNAME", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
			AppURL:       strings.TrimRight(getEnv("APP_URL", "http://localhost:3000"), "/"),
		},
		CORS: CORSConfig{
			AllowedOrigins:   getSliceEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			AllowedMethods:   getSliceEnv("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders:   getSliceEnv("CORS_ALLOWED_HEADERS", []string{"Accept", "Authorization", "Content-Type"}),
			ExposedHeaders:   getSliceEnv("CORS_EXPOSED_HEADERS", []string{"Link"}),
			AllowCredentials: getBoolEnv("CORS_ALLOW_CREDENTIALS", true),
			MaxAge:           getIntEnv("CORS_MAX_AGE", 300),
		},
		RateLimit: RateLimitConfig{
			Enabled:  getBoolEnv("RATE_LIMIT_ENABLED", true),
			Requests: getIntEnv("RATE_LIMIT_REQUESTS", 100),
			Duration: getDurationEnv("RATE_LIMIT_DURATION", 1*time.Minute),
		},
		App: AppConfig{
			Env:     getEnv("APP_ENV", "development"),
			Name:    getEnv("APP_NAME", "Landrace Threat Assessment"),
			Version: getEnv("APP_VERSION", "1.0.0"),

			AdminUserIDs: getSliceEnv("ADMIN_USER_IDS", nil),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Scheduler: SchedulerConfig{
			Enabled:                getBoolEnv("SCHEDULER_ENABLED", true),
			ReviewerDigestCron:     getEnv("SCHEDULER_REVIEWER_DIGEST_CRON", "0 8 * * *"), // Daily 8 AM
			DraftReminderCron:      getEnv("SCHEDULER_DRAFT_REMINDER_CRON", "0 9 * * 1"),  // Monday 9 AM
			DraftReminderAfterDays: getIntEnv("SCHEDULER_DRAFT_REMINDER_AFTER_DAYS", 14),
			ReconcileIntervalMins:  getIntEnv("SCHEDULER_RECONCILE_INTERVAL_MINS", 15),
			EnableReviewerDigest:   getBoolEnv("SCHEDULER_ENABLE_REVIEWER_DIGEST", true),
			EnableDraftReminders:   getBoolEnv("SCHEDULER_ENABLE_DRAFT_REMINDERS", true),
			EnableReconcile:        getBoolEnv("SCHEDULER_ENABLE_RECONCILE", true),
		},
		Vault: VaultConfig{
			Address:    getEnv("VAULT_ADDR", "http://localhost:8200"),
			Token:      getEnv("VAULT_TOKEN", ""),
			SecretPath: getEnv("VAULT_SECRET_PATH", "landrace-threat"),
			Enabled:    getBoolEnv("VAULT_ENABLED", false),
		},
		ObjectStore: ObjectStoreConfig{
			Driver:          strings.ToLower(getEnv("OBJECT_STORE_DRIVER", ObjectStoreNone)),
			Bucket:          getEnv("OBJECT_STORE_BUCKET", ""),
			Region:          getEnv("OBJECT_STORE_REGION", "us-east-1"),
			Endpoint:        getEnv("OBJECT_STORE_ENDPOINT", ""),
			AccessKeyID:     getEnv("OBJECT_STORE_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("OBJECT_STORE_SECRET_ACCESS_KEY", ""),
			PathStyle:       getBoolEnv("OBJECT_STORE_PATH_STYLE", false),
			Prefix:          getEnv("OBJECT_STORE_PREFIX", "published"),
			PublicBaseURL:   getEnv("OBJECT_STORE_PUBLIC_BASE_URL", ""),
			PresignExpiry:   getDurationEnv("OBJECT_STORE_PRESIGN_EXPIRY", 168*time.Hour),
		},
		Workflow: WorkflowConfig{
			OperationTimeout:  getDurationEnv("WORKFLOW_OPERATION_TIMEOUT", 10*time.Second),
			TeamPolicy:        strings.ToLower(getEnv("WORKFLOW_TEAM_POLICY", TeamPolicyMembers)),
			NotifyConcurrency: getIntEnv("NOTIFY_CONCURRENCY", 8),
			TransitionEmails:  getBoolEnv("NOTIFY_TRANSITION_EMAILS", false),
			DirectoryCacheTTL: getDurationEnv("DIRECTORY_CACHE_TTL", 5*time.Minute),
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.JWT.Secret == "" && c.IsProduction() {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	if !slices.Contains([]string{DriverPostgres, DriverMemory}, c.Database.Driver) {
		return fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMemory, c.Database.Driver)
	}
	if c.Database.Driver == DriverPostgres && c.Database.Password == "" && c.IsProduction() {
		return fmt.Errorf("DB_PASSWORD is required in production")
	}
	if !slices.Contains([]string{TeamPolicyMembers, TeamPolicyEditors}, c.Workflow.TeamPolicy) {
		return fmt.Errorf("WORKFLOW_TEAM_POLICY must be %q or %q, got %q", TeamPolicyMembers, TeamPolicyEditors, c.Workflow.TeamPolicy)
	}
	if c.Workflow.NotifyConcurrency < 1 {
		return fmt.Errorf("NOTIFY_CONCURRENCY must be at least 1")
	}
	switch c.ObjectStore.Driver {
	case ObjectStoreNone, ObjectStoreMemory:
	case ObjectStoreS3:
		if c.ObjectStore.Bucket == "" {
			return fmt.Errorf("OBJECT_STORE_BUCKET is required for the s3 driver")
		}
	default:
		return fmt.Errorf("unknown OBJECT_STORE_DRIVER %q", c.ObjectStore.Driver)
	}
	if c.Vault.Enabled && c.Vault.Token == "" {
		return fmt.Errorf("VAULT_TOKEN is required when VAULT_ENABLED is set")
	}
	return nil
}

// IsProduction reports whether the app runs in production
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// Secret keys read from Vault by ApplySecrets
const (
	SecretDBPassword        = "db_password"
	SecretSMTPPassword      = "smtp_password"
	SecretJWTPrivateKey     = "jwt_private_key"
	SecretS3AccessKeyID     = "s3_access_key_id"
	SecretS3SecretAccessKey = "s3_secret_access_key"
)

// ApplySecrets overlays non-empty secrets onto the configuration and returns
// the keys that were applied
func (c *Config) ApplySecrets(secrets map[string]string) []string {
	targets := map[string]*string{
		SecretDBPassword:        &c.Database.Password,
		SecretSMTPPassword:      &c.Email.SMTPPassword,
		SecretJWTPrivateKey:     &c.JWT.Secret,
		SecretS3AccessKeyID:     &c.ObjectStore.AccessKeyID,
		SecretS3SecretAccessKey: &c.ObjectStore.SecretAccessKey,
	}

	var applied []string
	for key, target := range targets {
		if value := secrets[key]; value != "" {
			*target = value
			applied = append(applied, key)
		}
	}
	slices.Sort(applied)
	return applied
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		// Split by comma and trim whitespace
		parts := strings.Split(value, ",")
		var result []string
		for _, v := range parts {
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
