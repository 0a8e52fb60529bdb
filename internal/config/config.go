package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds the environment driven configuration for the orchestrator
// service.
type Config struct {
	ServiceName     string        `env:"SERVICE_NAME" envDefault:"studio-orchestrator"`
	Environment     string        `env:"ENVIRONMENT" envDefault:"development"`
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"8084"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	EnableTracing   bool          `env:"ENABLE_TRACING" envDefault:"false"`
	OTLPEndpoint    string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	StudioAPIURL     string        `env:"STUDIO_API_URL" envDefault:"http://localhost:8000"`
	StudioAPIToken   string        `env:"STUDIO_API_TOKEN" envDefault:""`
	StudioAPITimeout time.Duration `env:"STUDIO_API_TIMEOUT" envDefault:"75s"`

	// Polling cadences and ceilings for the task registry.
	TaskPollInterval        time.Duration `env:"TASK_POLL_INTERVAL" envDefault:"2s"`
	SideChannelPollInterval time.Duration `env:"SIDE_CHANNEL_POLL_INTERVAL" envDefault:"3s"`
	TimeoutSweepInterval    time.Duration `env:"TIMEOUT_SWEEP_INTERVAL" envDefault:"5s"`
	TaskTimeout             time.Duration `env:"TASK_TIMEOUT" envDefault:"60s"`
	CompletedEvictionDelay  time.Duration `env:"COMPLETED_EVICTION_DELAY" envDefault:"2s"`
	FailedEvictionDelay     time.Duration `env:"FAILED_EVICTION_DELAY" envDefault:"3s"`

	MaxUploadBytes int64 `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`
}

// Load parses environment variables into Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	if cfg.TaskPollInterval <= 0 {
		cfg.TaskPollInterval = 2 * time.Second
	}
	if cfg.SideChannelPollInterval <= 0 {
		cfg.SideChannelPollInterval = 3 * time.Second
	}
	if cfg.TimeoutSweepInterval <= 0 {
		cfg.TimeoutSweepInterval = 5 * time.Second
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 60 * time.Second
	}

	return cfg, nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
