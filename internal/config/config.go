// Package config provides environment-backed configuration for the harvester.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// DefaultBaseURL is the catalog site crawled when BASE_URL is not set.
const DefaultBaseURL = "https://www.techpowerup.com"

// Config holds every recognized environment option. All fields have defaults
// except DatabaseURL, which must be provided.
type Config struct {
	// Source site
	BaseURL      string        `env:"BASE_URL" envDefault:"https://www.techpowerup.com" validate:"required,url"`
	FetchTimeout time.Duration `env:"FETCH_TIMEOUT" envDefault:"200s" validate:"gt=0"`

	// Store
	DatabaseURL string `env:"DATABASE_URL" validate:"required"`

	// Politeness delay between successful fetches, uniform in [MinDelay, MaxDelay].
	MinDelay time.Duration `env:"MIN_DELAY" envDefault:"30s" validate:"gte=0"`
	MaxDelay time.Duration `env:"MAX_DELAY" envDefault:"60s" validate:"gt=0"`

	// Tiered retry schedule for failed fetches. The attempt index selects the
	// delay directly; when the index runs past the end the fetch is abandoned.
	// The default table stretches from ten minutes to a full day so a run can
	// ride out a temporary IP block.
	RetryDelays []time.Duration `env:"RETRY_DELAYS" envDefault:"10m,15m,20m,30m,40m,1h,80m,2h,3h,4h,6h,8h,12h,16h,24h" validate:"min=1"`

	// Worker counts per queue. The product queue defaults to a single worker
	// so product processing stays sequential against the shared name cache.
	ProductWorkers int `env:"PRODUCT_WORKERS" envDefault:"1" validate:"gte=1"`
	BoardWorkers   int `env:"BOARD_WORKERS" envDefault:"3" validate:"gte=1"`

	// UseBrowser enables the headless-browser fallback for pages that come
	// back empty from a plain GET. Requires Chrome/Chromium on the host.
	UseBrowser bool `env:"USE_BROWSER" envDefault:"false"`

	// Control surface
	ServePort int `env:"SERVE_PORT" envDefault:"8104" validate:"gte=1,lte=65535"`

	// Completion notification. Leaving SMTPHost empty disables e-mail.
	SMTPHost       string   `env:"SMTP_HOST"`
	SMTPPort       int      `env:"SMTP_PORT" envDefault:"25" validate:"gte=1,lte=65535"`
	SMTPFrom       string   `env:"SMTP_FROM"`
	SMTPRecipients []string `env:"SMTP_RECIPIENTS"`
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints plus the cross-field rules the struct
// tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.MaxDelay < c.MinDelay {
		return fmt.Errorf("invalid configuration: MAX_DELAY (%s) must not be below MIN_DELAY (%s)", c.MaxDelay, c.MinDelay)
	}
	for i := 1; i < len(c.RetryDelays); i++ {
		if c.RetryDelays[i] < c.RetryDelays[i-1] {
			return fmt.Errorf("invalid configuration: RETRY_DELAYS must be non-decreasing (entry %d)", i)
		}
	}
	if c.SMTPHost != "" && c.SMTPFrom == "" {
		return fmt.Errorf("invalid configuration: SMTP_FROM is required when SMTP_HOST is set")
	}
	return nil
}
