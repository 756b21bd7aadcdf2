package app

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"30s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	APIBaseURL      string        `envconfig:"API_BASE_URL" default:"http://127.0.0.1:5000/api"`
	APITimeout      time.Duration `envconfig:"API_TIMEOUT" default:"15s"`
	APIServiceToken string        `envconfig:"API_SERVICE_TOKEN"`
	AssetOrigin     string        `envconfig:"ASSET_ORIGIN" default:"http://127.0.0.1:5000"`

	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	SessionSecret string        `envconfig:"SESSION_SECRET" required:"true"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"72h"`
	CacheTTL      time.Duration `envconfig:"CACHE_TTL" default:"2m"`
	SubmissionTTL time.Duration `envconfig:"SUBMISSION_TTL" default:"30m"`

	CSRFSecret string `envconfig:"CSRF_SECRET" required:"true"`

	GotenbergURL string `envconfig:"GOTENBERG_URL" default:"http://127.0.0.1:3000"`

	PageSize int    `envconfig:"PAGE_SIZE" default:"10"`
	Currency string `envconfig:"CURRENCY" default:"HTG"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.SessionSecret == "" {
		return errors.New("session secret must be provided")
	}
	if c.CSRFSecret == "" {
		return errors.New("csrf secret must be provided")
	}
	if c.PageSize < 1 {
		return errors.New("page size must be at least 1")
	}
	if c.APIBaseURL == "" {
		return errors.New("api base url must be provided")
	}
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
