package logger

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prayerwall/api/internal/config"
)

func TestSetupReturnsLogger(t *testing.T) {
	testCases := []struct {
		name     string
		logLevel string
	}{
		{name: "debug level", logLevel: "debug"},
		{name: "info level", logLevel: "info"},
		{name: "warn level", logLevel: "warn"},
		{name: "error level", logLevel: "error"},
		{name: "invalid level falls back to info", logLevel: "verbose"},
		{name: "mixed case is accepted", logLevel: "DEBUG"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			logger, err := Setup(config.ServerConfig{Port: 8080, LogLevel: tc.logLevel})
			require.NoError(t, err, "Setup should not fail for any log level input")
			require.NotNil(t, logger, "Setup should return a usable logger")
		})
	}
}

func TestSetupSetsDefaultLogger(t *testing.T) {
	previous := slog.Default()
	defer slog.SetDefault(previous)

	logger, err := Setup(config.ServerConfig{Port: 8080, LogLevel: "info"})
	require.NoError(t, err)
	assert.Same(t, logger, slog.Default(), "Setup should install the logger as the default")
}

func TestWithLoggerAndFromContext(t *testing.T) {
	ctx := context.Background()

	// Without a stored logger, FromContext falls back to the default.
	assert.Same(t, slog.Default(), FromContext(ctx))

	custom := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx = WithLogger(ctx, custom)
	assert.Same(t, custom, FromContext(ctx), "FromContext should return the stored logger")
}
