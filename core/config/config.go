package config

import (
	"time"
)

// Config holds all application configuration in a structured way.
type Config struct {
	App       AppConfig
	MCP       MCPConfig
	Paths     PathsConfig
	Database  DatabaseConfig
	Quota     QuotaConfig
	Pipeline  PipelineConfig
	Scheduler SchedulerConfig
	Workers   WorkerPoolConfig
	Notify    NotifyConfig
	APIKeys   APIKeysConfig
}

type AppConfig struct {
	Version            string
	Port               string
	Debug              bool
	Environment        string
	BasicAuth          []string
	BasePath           string
	TrustedProxies     []string
	CorsAllowedOrigins []string
	ServerID           string
}

type MCPConfig struct {
	Port string
	Host string
}

type PathsConfig struct {
	BaseDir   string
	Storages  string
	Artifacts string
}

type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            int
	User            string
	Password        string
	Name            string // File path for SQLite, DB name for Postgres
	ValkeyEnabled   bool
	ValkeyAddress   string
	ValkeyPassword  string
	ValkeyDB        int
	ValkeyKeyPrefix string
}

type QuotaConfig struct {
	FreeDailyLimit int
}

type PipelineConfig struct {
	// ArtifactRetention is the horizon applied to expires_at once a job completes.
	ArtifactRetention time.Duration
	// BareRetryCap limits retries against the same provider for the same stage.
	BareRetryCap int
}

type SchedulerConfig struct {
	SweepInterval time.Duration
	// GenerationLeadTime is the minimum interval between trigger and the
	// scheduled post time, so the pipeline can finish before the deadline.
	GenerationLeadTime time.Duration
}

type WorkerPoolConfig struct {
	Size      int
	QueueSize int
}

type NotifyConfig struct {
	WebhookURLs   []string
	WebhookSecret string
}

type APIKeysConfig struct {
	OpenAI string
	Gemini string
	// EncryptionKey protects per-integration API keys at rest. Empty
	// disables encryption and keys are stored as provided.
	EncryptionKey string
}

// Global provides access to the loaded configuration.
var Global *Config

// LoadConfig builds the configuration from environment variables with defaults.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Version:            getEnv("APP_VERSION", "dev"),
			Port:               getEnv("APP_PORT", "3000"),
			Debug:              getEnvBool("APP_DEBUG", false),
			Environment:        getEnv("APP_ENV", "production"),
			BasicAuth:          getEnvSlice("APP_BASIC_AUTH", nil),
			BasePath:           getEnv("APP_BASE_PATH", ""),
			TrustedProxies:     getEnvSlice("APP_TRUSTED_PROXIES", nil),
			CorsAllowedOrigins: getEnvSlice("APP_CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			ServerID:           getEnv("APP_SERVER_ID", ""),
		},
		MCP: MCPConfig{
			Port: getEnv("MCP_PORT", "8080"),
			Host: getEnv("MCP_HOST", "localhost"),
		},
		Paths: PathsConfig{
			BaseDir:   getEnv("APP_BASE_DIR", "storages"),
			Storages:  getEnv("APP_STORAGES_DIR", "storages"),
			Artifacts: getEnv("APP_ARTIFACTS_DIR", "storages/artifacts"),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "sqlite"),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "reelforge"),
			Password:        getEnv("DB_PASSWORD", ""),
			Name:            getEnv("DB_NAME", "storages/reelforge.db"),
			ValkeyEnabled:   getEnvBool("VALKEY_ENABLED", false),
			ValkeyAddress:   getEnv("VALKEY_ADDRESS", "localhost:6379"),
			ValkeyPassword:  getEnv("VALKEY_PASSWORD", ""),
			ValkeyDB:        getEnvInt("VALKEY_DB", 0),
			ValkeyKeyPrefix: getEnv("VALKEY_KEY_PREFIX", "reelforge"),
		},
		Quota: QuotaConfig{
			FreeDailyLimit: getEnvInt("QUOTA_FREE_DAILY_LIMIT", 3),
		},
		Pipeline: PipelineConfig{
			ArtifactRetention: getEnvDuration("PIPELINE_ARTIFACT_RETENTION", 48*time.Hour),
			BareRetryCap:      getEnvInt("PIPELINE_BARE_RETRY_CAP", 1),
		},
		Scheduler: SchedulerConfig{
			SweepInterval:      getEnvDuration("SCHEDULER_SWEEP_INTERVAL", time.Minute),
			GenerationLeadTime: getEnvDuration("SCHEDULER_GENERATION_LEAD_TIME", time.Hour),
		},
		Workers: WorkerPoolConfig{
			Size:      getEnvInt("PIPELINE_WORKERS", 8),
			QueueSize: getEnvInt("PIPELINE_QUEUE_SIZE", 64),
		},
		Notify: NotifyConfig{
			WebhookURLs:   getEnvSlice("NOTIFY_WEBHOOK_URLS", nil),
			WebhookSecret: getEnv("NOTIFY_WEBHOOK_SECRET", ""),
		},
		APIKeys: APIKeysConfig{
			OpenAI:        getEnv("OPENAI_API_KEY", ""),
			Gemini:        getEnv("GEMINI_API_KEY", ""),
			EncryptionKey: getEnv("APP_ENCRYPTION_KEY", ""),
		},
	}

	Global = cfg
	return cfg, nil
}
