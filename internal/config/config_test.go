package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "Quizzy API", cfg.AppName)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, time.Hour, cfg.SessionTTL)
	require.Equal(t, 10*time.Second, cfg.DashboardTimeout)
	require.Equal(t, 10*time.Second, cfg.IdentityTimeout)
	require.Equal(t, 2, cfg.DashboardMaxRetries)
	require.Equal(t, "student_dashboard.json", cfg.DashboardDocument)
	require.Equal(t, DefaultDashboardToken, cfg.DashboardToken)
	require.Equal(t, DefaultDemoPassphrase, cfg.AuthDemoPassphrase)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("QUIZZY_APP_PORT", ":9090")
	t.Setenv("QUIZZY_DASHBOARD_TIMEOUT", "3s")
	t.Setenv("QUIZZY_IDENTITY_TIMEOUT", "4s")
	t.Setenv("QUIZZY_DASHBOARD_MAX_RETRIES", "-4")
	t.Setenv("QUIZZY_DASHBOARD_TOKEN", "token-123")
	t.Setenv("QUIZZY_LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, ":9090", cfg.HTTPAddress())
	require.Equal(t, 3*time.Second, cfg.DashboardTimeout)
	require.Equal(t, 4*time.Second, cfg.IdentityTimeout)
	require.Equal(t, 0, cfg.DashboardMaxRetries)
	require.Equal(t, "token-123", cfg.DashboardToken)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	t.Setenv("QUIZZY_SESSION_TTL", "forever")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadWithFlagsOverridesEnvironment(t *testing.T) {
	t.Setenv("QUIZZY_DASHBOARD_DOCUMENT", "from_env.json")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("dashboard.document", "", "")
	require.NoError(t, flags.Parse([]string{"--dashboard.document=from_flag.json"}))

	cfg, err := LoadWithFlags(flags)
	require.NoError(t, err)
	require.Equal(t, "from_flag.json", cfg.DashboardDocument)
}

func TestValidateServer(t *testing.T) {
	cfg := Config{}
	require.Error(t, cfg.ValidateServer())

	cfg = Config{JWTSecret: "secret", DatabaseURL: "sqlite://quizzy.db", RedisURL: "redis://localhost:6379"}
	require.NoError(t, cfg.ValidateServer())
}
