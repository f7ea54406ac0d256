// Package config loads application configuration from defaults, a YAML file and
// environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables read by Load.
// Nested keys are separated by a double underscore: OPRISK_DATABASE__URL.
const EnvPrefix = "OPRISK_"

// Config is the application configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Database      DatabaseConfig      `koanf:"database"`
	Log           LogConfig           `koanf:"log"`
	JWT           JWTConfig           `koanf:"jwt"`
	CORS          CORSConfig          `koanf:"cors"`
	SLA           SLAConfig           `koanf:"sla"`
	Vendors       VendorsConfig       `koanf:"vendors"`
	Notifications NotificationsConfig `koanf:"notifications"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port" validate:"required"`
	MetricsPort       string        `koanf:"metrics_port" validate:"required"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig contains PostgreSQL settings.
type DatabaseConfig struct {
	URL             string        `koanf:"url" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"min=1"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout" validate:"gt=0"`
	ConnectAttempts int           `koanf:"connect_attempts" validate:"min=1"`
	// MigrationsPath is a directory of migration files. Empty disables migrations on start.
	MigrationsPath string `koanf:"migrations_path"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

// JWTConfig contains bearer token validation settings.
type JWTConfig struct {
	SecretKey string `koanf:"secret_key" validate:"required,min=16"`
	Issuer    string `koanf:"issuer"`
}

// CORSConfig contains CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// SLAConfig contains SLA evaluation and sweeper settings.
type SLAConfig struct {
	DefaultMaxResponseHours   float64       `koanf:"default_max_response_hours" validate:"gt=0"`
	DefaultMaxResolutionHours float64       `koanf:"default_max_resolution_hours" validate:"gt=0"`
	SweepEnabled              bool          `koanf:"sweep_enabled"`
	SweepInterval             time.Duration `koanf:"sweep_interval" validate:"gt=0"`
	// MaxAutoLevel caps automatic escalation. Zero disables the cap.
	MaxAutoLevel int `koanf:"max_auto_level" validate:"min=0"`
}

// VendorsConfig contains vendor scoring settings.
type VendorsConfig struct {
	BatchWorkers int        `koanf:"batch_workers" validate:"min=1,max=64"`
	Feed         FeedConfig `koanf:"feed"`
}

// FeedConfig contains external feed settings. An empty URL disables the feed.
type FeedConfig struct {
	URL       string        `koanf:"url" validate:"omitempty,url"`
	Timeout   time.Duration `koanf:"timeout"`
	RateLimit float64       `koanf:"rate_limit" validate:"min=0"`
	Burst     int           `koanf:"burst" validate:"min=0"`
}

// NotificationsConfig contains escalation notification settings.
type NotificationsConfig struct {
	Enabled    bool             `koanf:"enabled"`
	BaseURL    string           `koanf:"base_url"`
	QueueSize  int              `koanf:"queue_size" validate:"min=1"`
	Email      EmailConfig      `koanf:"email"`
	Mattermost MattermostConfig `koanf:"mattermost"`
	Retry      RetryConfig      `koanf:"retry"`
	Worker     WorkerConfig     `koanf:"worker"`
	Routes     []RouteConfig    `koanf:"routes" validate:"dive"`
}

// EmailConfig contains SMTP settings.
type EmailConfig struct {
	Enabled      bool   `koanf:"enabled"`
	SMTPHost     string `koanf:"smtp_host" validate:"required_if=Enabled true"`
	SMTPPort     int    `koanf:"smtp_port"`
	SMTPUser     string `koanf:"smtp_user"`
	SMTPPassword string `koanf:"smtp_password"`
	FromAddress  string `koanf:"from_address" validate:"required_if=Enabled true"`
}

// MattermostConfig contains webhook settings.
type MattermostConfig struct {
	Username string `koanf:"username"`
	Channel  string `koanf:"channel"`
}

// RetryConfig contains delivery retry settings.
type RetryConfig struct {
	MaxAttempts       int           `koanf:"max_attempts" validate:"min=1"`
	InitialBackoff    time.Duration `koanf:"initial_backoff"`
	MaxBackoff        time.Duration `koanf:"max_backoff"`
	BackoffMultiplier float64       `koanf:"backoff_multiplier" validate:"min=1"`
}

// WorkerConfig contains delivery worker settings.
type WorkerConfig struct {
	NumWorkers int `koanf:"num_workers" validate:"min=1"`
}

// RouteConfig sends escalations at MinLevel and above to Target over Channel.
type RouteConfig struct {
	MinLevel int    `koanf:"min_level" validate:"min=0"`
	Channel  string `koanf:"channel" validate:"required,oneof=email mattermost"`
	Target   string `koanf:"target" validate:"required"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "8080",
			MetricsPort:       "9090",
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnectTimeout:  30 * time.Second,
			ConnectAttempts: 5,
			MigrationsPath:  "migrations",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		SLA: SLAConfig{
			DefaultMaxResponseHours:   24,
			DefaultMaxResolutionHours: 72,
			SweepEnabled:              true,
			SweepInterval:             time.Minute,
		},
		Vendors: VendorsConfig{
			BatchWorkers: 8,
			Feed: FeedConfig{
				Timeout:   5 * time.Second,
				RateLimit: 10,
				Burst:     1,
			},
		},
		Notifications: NotificationsConfig{
			QueueSize: 256,
			Email: EmailConfig{
				SMTPPort: 587,
			},
			Mattermost: MattermostConfig{
				Username: "OpRisk",
			},
			Retry: RetryConfig{
				MaxAttempts:       3,
				InitialBackoff:    time.Second,
				MaxBackoff:        5 * time.Minute,
				BackoffMultiplier: 2,
			},
			Worker: WorkerConfig{
				NumWorkers: 2,
			},
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (skipped when
// empty) and OPRISK_ environment variables, in that order of precedence.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// PathFromEnv returns the config file path from OPRISK_CONFIG.
func PathFromEnv() string {
	return os.Getenv(EnvPrefix + "CONFIG")
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// Validate checks the configuration for missing or malformed values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
