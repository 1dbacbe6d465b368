package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// envPrefix is the prefix for all environment variables read by Load,
// e.g. AVATAR_SERVER_PORT maps to server.port.
const envPrefix = "AVATAR"

// Load reads configuration from environment variables and an optional
// config.yaml in the working directory. Environment variables take
// precedence over values from the config file.
// Returns a populated Config struct or an error if loading or validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// A missing config file is fine; env vars and defaults cover everything.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	// Keys without real defaults still need to be registered so that
	// AutomaticEnv picks them up during Unmarshal. Validation rejects
	// the empty values if the environment does not provide them.
	v.SetDefault("database.url", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.api_key", "")

	v.SetDefault("storage.bucket", "avatars")

	v.SetDefault("ingest.worker_count", 2)
	v.SetDefault("ingest.max_attempts", 3)
	v.SetDefault("ingest.allowed_hosts", []string{
		"imgur.com",
		"i.imgur.com",
		"gravatar.com",
		"secure.gravatar.com",
		"googleusercontent.com",
		"lh3.googleusercontent.com",
	})
	v.SetDefault("ingest.fetch_timeout", "10s")
	v.SetDefault("ingest.max_body_bytes", 5*1024*1024)
	v.SetDefault("ingest.poll_interval", "250ms")
	v.SetDefault("ingest.backoff_base", "2s")
	v.SetDefault("ingest.backoff_max", "60s")
	v.SetDefault("ingest.retention_ttl", "1h")
	v.SetDefault("ingest.max_tasks", 1000)
}
