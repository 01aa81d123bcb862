package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultDemoPassphrase is the shared password used by the demo credential scheme.
const DefaultDemoPassphrase = "Student@123"

// DefaultDashboardToken is the access token of the bundled demo dashboard document.
const DefaultDashboardToken = "0091b4c2-2ee2-4326-99cd-96d5312b34bd"

// Config holds runtime configuration values for the API service and the client.
type Config struct {
	AppName    string
	AppEnv     string
	AppPort    string
	LogLevel   string
	LogFormat  string
	RedisURL   string
	NATSURL    string
	JWTSecret  string
	SessionTTL time.Duration

	DatabaseURL string

	DashboardBaseURL    string
	DashboardDocument   string
	DashboardToken      string
	DashboardTimeout    time.Duration
	DashboardMaxRetries int
	DashboardCacheTTL   time.Duration
	DashboardSeedFile   string

	IdentityBaseURL    string
	IdentityTimeout    time.Duration
	AuthDemoPassphrase string
	SignInRateLimit    int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// ValidateServer checks the values only the API service needs.
func (c Config) ValidateServer() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt secret must be provided")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("database url must be provided")
	}
	if c.RedisURL == "" {
		return fmt.Errorf("redis url must be provided")
	}
	return nil
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	return LoadWithFlags(nil)
}

// LoadWithFlags is Load with command-line flags bound on top of the environment.
// Flag names use dots, e.g. --dashboard.base_url.
func LoadWithFlags(flags *pflag.FlagSet) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("QUIZZY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Quizzy API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("session.ttl", "1h")
	v.SetDefault("dashboard.base_url", "http://localhost:8080/files/")
	v.SetDefault("dashboard.document", "student_dashboard.json")
	v.SetDefault("dashboard.token", DefaultDashboardToken)
	v.SetDefault("dashboard.timeout", "10s")
	v.SetDefault("dashboard.max_retries", 2)
	v.SetDefault("dashboard.cache_ttl", "5m")
	v.SetDefault("identity.base_url", "http://localhost:8080/api/v1/identity")
	v.SetDefault("identity.timeout", "10s")
	v.SetDefault("auth.demo_passphrase", DefaultDemoPassphrase)
	v.SetDefault("auth.sign_in_rate_limit", 10)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	sessionTTL, err := parseDuration(v, "session.ttl", time.Hour)
	if err != nil {
		return Config{}, err
	}
	timeout, err := parseDuration(v, "dashboard.timeout", 10*time.Second)
	if err != nil {
		return Config{}, err
	}
	cacheTTL, err := parseDuration(v, "dashboard.cache_ttl", 5*time.Minute)
	if err != nil {
		return Config{}, err
	}
	identityTimeout, err := parseDuration(v, "identity.timeout", 10*time.Second)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:             v.GetString("app.name"),
		AppEnv:              v.GetString("app.env"),
		AppPort:             v.GetString("app.port"),
		LogLevel:            strings.ToLower(v.GetString("log.level")),
		LogFormat:           strings.ToLower(v.GetString("log.format")),
		DatabaseURL:         v.GetString("database.url"),
		RedisURL:            v.GetString("redis.url"),
		NATSURL:             v.GetString("nats.url"),
		JWTSecret:           v.GetString("jwt.secret"),
		SessionTTL:          sessionTTL,
		DashboardBaseURL:    v.GetString("dashboard.base_url"),
		DashboardDocument:   v.GetString("dashboard.document"),
		DashboardToken:      v.GetString("dashboard.token"),
		DashboardTimeout:    timeout,
		DashboardMaxRetries: v.GetInt("dashboard.max_retries"),
		DashboardCacheTTL:   cacheTTL,
		DashboardSeedFile:   v.GetString("dashboard.seed_file"),
		IdentityBaseURL:     v.GetString("identity.base_url"),
		IdentityTimeout:     identityTimeout,
		AuthDemoPassphrase:  v.GetString("auth.demo_passphrase"),
		SignInRateLimit:     v.GetInt("auth.sign_in_rate_limit"),
	}

	if cfg.DashboardMaxRetries < 0 {
		cfg.DashboardMaxRetries = 0
	}
	if cfg.AuthDemoPassphrase == "" {
		cfg.AuthDemoPassphrase = DefaultDemoPassphrase
	}
	if cfg.SignInRateLimit <= 0 {
		cfg.SignInRateLimit = 10
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return fallback, nil
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
