package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("DOWNLOAD_DIR", "/downloads")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "/downloads", cfg.DownloadDir)
	require.Equal(t, "courses.db", cfg.DBPath)
	require.Equal(t, 3, cfg.MaxParallel)
	require.Equal(t, 3, cfg.MaxRetries)
	require.Equal(t, 720*time.Hour, cfg.KeepDownloadedFor)
	require.Equal(t, "@every 1h", cfg.CleanupSchedule)
	require.Equal(t, "@every 30m", cfg.LMS.SyncSchedule)
	require.Equal(t, "0.0.0.0:8080", cfg.Web.BindAddress)
	require.Equal(t, 30*time.Second, cfg.Web.ShutdownTimeout)
	require.True(t, cfg.Telemetry.Enabled)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("DOWNLOAD_DIR", "/media/courses")
	t.Setenv("MAX_PARALLEL", "8")
	t.Setenv("LMS_BASE_URL", "https://lms.example.com")
	t.Setenv("LMS_TOKEN", "secret")
	t.Setenv("API_USERNAME", "admin")
	t.Setenv("WEB_BIND_ADDRESS", "127.0.0.1:9000")
	t.Setenv("TELEMETRY_ENABLED", "false")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, 8, cfg.MaxParallel)
	require.Equal(t, "https://lms.example.com", cfg.LMS.BaseURL)
	require.Equal(t, "secret", cfg.LMS.Token)
	require.Equal(t, "admin", cfg.API.Username)
	require.Equal(t, "127.0.0.1:9000", cfg.Web.BindAddress)
	require.False(t, cfg.Telemetry.Enabled)
}

func TestLoadConfig_RejectsNonPositiveRetries(t *testing.T) {
	t.Setenv("DOWNLOAD_DIR", "/downloads")
	t.Setenv("MAX_RETRIES", "-1")

	_, err := LoadConfig()
	require.ErrorContains(t, err, "MAX_RETRIES")
}

func TestLoadConfig_RejectsNonPositiveParallelism(t *testing.T) {
	t.Setenv("DOWNLOAD_DIR", "/downloads")
	t.Setenv("MAX_PARALLEL", "0")

	_, err := LoadConfig()
	require.ErrorContains(t, err, "MAX_PARALLEL")
}

func TestConfig_SlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		cfg := &Config{LogLevel: tt.level}
		require.Equal(t, tt.want, cfg.SlogLevel(), "level %s", tt.level)
	}
}
