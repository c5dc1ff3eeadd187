package main

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/wrale/authsession/internal/backend"
)

// envPrefix prefixes every configuration variable
const envPrefix = "AUTHSESSION"

// Session store kinds
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config holds agent configuration loaded from environment variables
type Config struct {
	BackendURL string `envconfig:"BACKEND_URL" required:"true"`
	ListenAddr string `envconfig:"LISTEN_ADDR" default:"127.0.0.1:8765"`
	Env        string `envconfig:"ENV" default:"development"`
	LogLevel   string `envconfig:"LOG_LEVEL"`

	Store         string `envconfig:"STORE" default:"memory"`
	RedisURL      string `envconfig:"REDIS_URL" default:"redis://127.0.0.1:6379/0"`
	SessionKey    string `envconfig:"SESSION_KEY" default:"authsession:session"`
	CredentialKey string `envconfig:"CREDENTIAL_KEY" default:"authsession:provider_api_key"`

	Timeouts backend.Timeouts `envconfig:"TIMEOUT"`

	DevicePollInterval     time.Duration `envconfig:"DEVICE_POLL_INTERVAL" default:"1s"`
	CredentialPollInterval time.Duration `envconfig:"CREDENTIAL_POLL_INTERVAL" default:"500ms"`
	CredentialPollAttempts int           `envconfig:"CREDENTIAL_POLL_ATTEMPTS" default:"10"`
	ProviderPollInterval   time.Duration `envconfig:"PROVIDER_POLL_INTERVAL" default:"1s"`
	ProviderPollAttempts   int           `envconfig:"PROVIDER_POLL_ATTEMPTS" default:"60"`

	PopupCheckInterval time.Duration `envconfig:"POPUP_CHECK_INTERVAL" default:"500ms"`
	PopupTimeout       time.Duration `envconfig:"POPUP_TIMEOUT" default:"300s"`
	// PopupBrowser opens provider pages in the system browser; otherwise the UI opens them
	PopupBrowser bool `envconfig:"POPUP_BROWSER" default:"false"`

	ReadHeaderTimeout time.Duration `envconfig:"READ_HEADER_TIMEOUT" default:"5s"`
	ShutdownTimeout   time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// loadConfig reads .env files, if present, and then the environment
func loadConfig(envFiles ...string) (Config, error) {
	// missing .env files are not an error
	_ = godotenv.Load(envFiles...)

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	// required:"true" accepts a variable that is set but empty
	if err := backend.ValidateBaseURL(c.BackendURL); err != nil {
		return fmt.Errorf("invalid %s_BACKEND_URL: %w", envPrefix, err)
	}
	switch c.Store {
	case StoreMemory, StoreRedis:
	default:
		return fmt.Errorf("invalid %s_STORE %q: must be %s or %s", envPrefix, c.Store, StoreMemory, StoreRedis)
	}
	if c.CredentialPollAttempts <= 0 || c.ProviderPollAttempts <= 0 {
		return fmt.Errorf("poll attempt budgets must be positive")
	}
	return nil
}
