package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Run modes for receiving Telegram updates.
const (
	RunModePolling = "polling"
	RunModeWebhook = "webhook"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	BotToken      string `envconfig:"BOT_TOKEN"`
	RunMode       string `envconfig:"RUN_MODE" default:"polling"` // polling|webhook
	WebhookSecret string `envconfig:"WEBHOOK_SECRET"`
	BaseURL       string `envconfig:"BASE_URL" default:"http://localhost:8080"`
	HTTPAddr      string `envconfig:"HTTP_ADDR" default:":8080"`
	APIToken      string `envconfig:"API_TOKEN"` // empty: /api is open

	DBDriver    string `envconfig:"DB_DRIVER" default:"sqlite"` // sqlite|postgres|bolt
	DBPath      string `envconfig:"DB_PATH" default:"./data/reminders.db"`
	DatabaseURL string `envconfig:"DATABASE_URL"`

	Locale        string        `envconfig:"LOCALE" default:"ru"`
	PollInterval  time.Duration `envconfig:"POLL_INTERVAL" default:"30s"`
	CatchUpWindow time.Duration `envconfig:"CATCHUP_WINDOW" default:"1h"`
	PurgeSchedule string        `envconfig:"PURGE_SCHEDULE" default:"@every 1h"` // empty disables
	SendRate      float64       `envconfig:"SEND_RATE" default:"25"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"` // debug|info|warn|error
}

// Load reads environment variables into Config and validates it.
func Load() (Config, error) {
	cfg, err := process()
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// LoadStorage is Load for commands that only touch the store: BOT_TOKEN and
// the transport settings are not checked.
func LoadStorage() (Config, error) {
	cfg, err := process()
	if err != nil {
		return cfg, err
	}
	return cfg, errors.Join(cfg.validateStorage()...)
}

func process() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}

// Validate checks cross-field constraints envconfig cannot express.
func (c Config) Validate() error {
	var errs []error
	if c.BotToken == "" {
		errs = append(errs, errors.New("BOT_TOKEN is required"))
	}
	switch c.RunMode {
	case RunModePolling:
	case RunModeWebhook:
		if c.WebhookSecret == "" {
			errs = append(errs, errors.New("WEBHOOK_SECRET is required in webhook mode"))
		}
		if !strings.HasPrefix(c.BaseURL, "https://") {
			errs = append(errs, errors.New("BASE_URL must be https in webhook mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("RUN_MODE: unknown mode %q", c.RunMode))
	}
	errs = append(errs, c.validateStorage()...)
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("POLL_INTERVAL must be positive"))
	}
	if c.SendRate <= 0 {
		errs = append(errs, errors.New("SEND_RATE must be positive"))
	}
	return errors.Join(errs...)
}

func (c Config) validateStorage() []error {
	var errs []error
	switch c.DBDriver {
	case "sqlite", "bolt":
		if c.DBPath == "" {
			errs = append(errs, errors.New("DB_PATH is required"))
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER: unknown driver %q", c.DBDriver))
	}
	if c.CatchUpWindow <= 0 {
		errs = append(errs, errors.New("CATCHUP_WINDOW must be positive"))
	}
	return errs
}

// DSN returns the store location for the configured driver.
func (c Config) DSN() string {
	if c.DBDriver == "postgres" {
		return c.DatabaseURL
	}
	return c.DBPath
}
