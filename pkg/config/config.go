/*
2026 © Postgres.ai
*/

// Package config provides the App configuration.
package config

import (
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/pkg/errors"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config defines an App configuration.
type Config struct {
	App          App          `yaml:"app"`
	Store        Store        `yaml:"store"`
	Queue        Queue        `yaml:"queue"`
	Credentials  Credentials  `yaml:"credentials"`
	Sessions     Sessions     `yaml:"sessions"`
	Emulator     Emulator     `yaml:"emulator"`
	Instructions Instructions `yaml:"instructions"`
}

// App defines a general application configuration.
type App struct {
	Version         string        `yaml:"-"`
	Host            string        `yaml:"host" env:"HOSTLINK_APP_HOST"`
	Port            uint          `yaml:"port" env:"HOSTLINK_APP_PORT" env-default:"2400"`
	Debug           bool          `yaml:"debug" env:"HOSTLINK_APP_DEBUG"`
	AuditEnabled    bool          `yaml:"auditEnabled" env:"HOSTLINK_APP_AUDIT_ENABLED" env-default:"true"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" env:"HOSTLINK_APP_SHUTDOWN_TIMEOUT" env-default:"60s"`
}

// Store describes the durable store shared by service instances.
type Store struct {
	Driver string `yaml:"driver" env:"HOSTLINK_STORE_DRIVER" env-default:"postgres"`
	DSN    string `yaml:"dsn" env:"HOSTLINK_STORE_DSN"`
}

// Queue describes request queue consumption.
type Queue struct {
	Workers           int           `yaml:"workers" env:"HOSTLINK_QUEUE_WORKERS" env-default:"4"`
	PollInterval      time.Duration `yaml:"pollInterval" env:"HOSTLINK_QUEUE_POLL_INTERVAL" env-default:"1s"`
	VisibilityTimeout time.Duration `yaml:"visibilityTimeout" env:"HOSTLINK_QUEUE_VISIBILITY_TIMEOUT" env-default:"5m"`
	MaxAttempts       int           `yaml:"maxAttempts" env:"HOSTLINK_QUEUE_MAX_ATTEMPTS" env-default:"5"`
	RetryDelay        time.Duration `yaml:"retryDelay" env:"HOSTLINK_QUEUE_RETRY_DELAY" env-default:"30s"`
}

// Credentials describes credential rotation.
type Credentials struct {
	StalenessWindow time.Duration `yaml:"stalenessWindow" env:"HOSTLINK_CREDENTIALS_STALENESS_WINDOW" env-default:"10m"`
	Key             string        `yaml:"key" env:"HOSTLINK_CREDENTIALS_KEY"`
	KeyFile         string        `yaml:"keyFile" env:"HOSTLINK_CREDENTIALS_KEY_FILE"`
}

// Sessions describes terminal session leasing.
type Sessions struct {
	LeaseTTL          time.Duration `yaml:"leaseTTL" env:"HOSTLINK_SESSIONS_LEASE_TTL" env-default:"10m"`
	IdleTimeout       time.Duration `yaml:"idleTimeout" env:"HOSTLINK_SESSIONS_IDLE_TIMEOUT" env-default:"30m"`
	IdleCheckInterval time.Duration `yaml:"idleCheckInterval" env:"HOSTLINK_SESSIONS_IDLE_CHECK_INTERVAL" env-default:"1m"`
	SnapshotPath      string        `yaml:"snapshotPath" env:"HOSTLINK_SESSIONS_SNAPSHOT_PATH" env-default:"config/sessions.json"`
}

// Emulator describes terminal connections to the host.
type Emulator struct {
	Host           string        `yaml:"host" env:"HOSTLINK_EMULATOR_HOST"`
	Port           uint          `yaml:"port" env:"HOSTLINK_EMULATOR_PORT" env-default:"23"`
	TLS            bool          `yaml:"tls" env:"HOSTLINK_EMULATOR_TLS"`
	Binary         string        `yaml:"binary" env:"HOSTLINK_EMULATOR_BINARY" env-default:"s3270"`
	Model          string        `yaml:"model" env:"HOSTLINK_EMULATOR_MODEL" env-default:"3279-2"`
	ConnectTimeout time.Duration `yaml:"connectTimeout" env:"HOSTLINK_EMULATOR_CONNECT_TIMEOUT" env-default:"30s"`
	KeyTimeout     time.Duration `yaml:"keyTimeout" env:"HOSTLINK_EMULATOR_KEY_TIMEOUT" env-default:"30s"`
	PollInterval   time.Duration `yaml:"pollInterval" env:"HOSTLINK_EMULATOR_POLL_INTERVAL" env-default:"250ms"`
}

// Instructions describes where instruction sets are kept.
type Instructions struct {
	Dir string `yaml:"dir" env:"HOSTLINK_INSTRUCTIONS_DIR" env-default:"config/instructions"`
}

// Load reads the configuration file and applies environment overrides.
func Load(path string) (*Config, error) {
	var cfg Config

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to read a config file")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	return &cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverPostgres:
		if c.Store.DSN == "" {
			return errors.New("store DSN is required for the postgres driver")
		}
	case DriverMemory:
	default:
		return errors.Errorf("unknown store driver %q", c.Store.Driver)
	}

	if c.Emulator.Host == "" {
		return errors.New("emulator host is required")
	}

	if c.Queue.Workers < 1 {
		return errors.Errorf("queue workers must be positive, got %d", c.Queue.Workers)
	}

	if c.Credentials.StalenessWindow <= 0 || c.Sessions.LeaseTTL <= 0 {
		return errors.New("staleness window and lease TTL must be positive")
	}

	if c.Sessions.IdleCheckInterval <= 0 {
		return errors.New("idle check interval must be positive")
	}

	return nil
}
