// Package config defines the application configuration model and loads it
// from environment variables (AVATAR_ prefix) and an optional config file.
// Loaded configuration is validated before the application starts.
package config
