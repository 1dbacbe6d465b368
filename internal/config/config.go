package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	Storage  StorageConfig  `mapstructure:"storage"  validate:"required"`
	Ingest   IngestConfig   `mapstructure:"ingest"   validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// AuthConfig contains authentication settings for the request boundary.
// The service only validates tokens; it never issues them.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`
}

// StorageConfig contains settings for the hosted object-storage service
// that receives the transformed avatar bytes.
type StorageConfig struct {
	Endpoint string `mapstructure:"endpoint" validate:"required,url"`
	Bucket   string `mapstructure:"bucket"   validate:"required"`
	APIKey   string `mapstructure:"api_key"  validate:"required"`
}

// IngestConfig contains all settings for the avatar ingestion queue:
// worker pool sizing, retry policy, fetch limits and store retention.
type IngestConfig struct {
	WorkerCount  int           `mapstructure:"worker_count"   validate:"required,gt=0,lte=16"`
	MaxAttempts  int           `mapstructure:"max_attempts"   validate:"required,gt=0,lte=10"`
	AllowedHosts []string      `mapstructure:"allowed_hosts"  validate:"required,min=1"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"  validate:"required"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes" validate:"required,gt=0"`
	PollInterval time.Duration `mapstructure:"poll_interval"  validate:"required"`
	BackoffBase  time.Duration `mapstructure:"backoff_base"   validate:"required"`
	BackoffMax   time.Duration `mapstructure:"backoff_max"    validate:"required"`
	RetentionTTL time.Duration `mapstructure:"retention_ttl"  validate:"required"`
	MaxTasks     int           `mapstructure:"max_tasks"      validate:"required,gt=0"`
}
