package application

import (
	"time"

	"github.com/Webtech-MQP/webjam-sub000/infrastructure/scoring"
)

// AppConfig is the complete runtime configuration of the WebJam judging
// service and the primary configuration entry point for cmd/webjam.
type AppConfig struct {
	// Server configures the HTTP transport.
	Server ServerConfig `yaml:"server" validate:"required"`
	// Database selects and configures the persistence backend.
	Database DatabaseConfig `yaml:"database" validate:"required"`
	// Cache configures the optional ranking-preview cache.
	Cache CacheConfig `yaml:"cache"`
	// Auth configures bearer-token verification at the HTTP edge.
	Auth AuthConfig `yaml:"auth" validate:"required"`
	// Scoring selects aggregation and tie-breaking behavior.
	Scoring ScoringConfig `yaml:"scoring" validate:"required"`
	// Outbox configures notification delivery.
	Outbox OutboxConfig `yaml:"outbox"`
	// Log configures structured logging.
	Log LogConfig `yaml:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr" validate:"required,hostname_port"`
	// GinMode is passed to gin.SetMode.
	GinMode string `yaml:"gin_mode" validate:"omitempty,oneof=debug release test"`
	// RatePerSecond and RateBurst bound requests per client IP.
	RatePerSecond float64 `yaml:"rate_per_second" validate:"min=0"`
	RateBurst     int     `yaml:"rate_burst" validate:"min=0"`
	// AllowedOrigins lists CORS origins for the admin UI.
	AllowedOrigins []string `yaml:"allowed_origins" validate:"dive,url"`
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"min=0"`
}

// DatabaseConfig selects the store backend.
type DatabaseConfig struct {
	// Driver is "postgres" for production or "memory" for local runs.
	Driver string `yaml:"driver" validate:"required,oneof=postgres memory"`
	// DSN is the Postgres connection string; required for postgres.
	DSN string `yaml:"dsn" validate:"required_if=Driver postgres"`
	// MaxOpenConns and MaxIdleConns size the connection pool.
	MaxOpenConns int `yaml:"max_open_conns" validate:"min=0,max=500"`
	MaxIdleConns int `yaml:"max_idle_conns" validate:"min=0,max=500"`
	// ConnMaxLifetime recycles pooled connections.
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" validate:"min=0"`
	// AutoMigrate creates or updates the schema on start.
	AutoMigrate bool `yaml:"auto_migrate"`
}

// CacheConfig configures the preview cache. An empty RedisAddr disables it.
type CacheConfig struct {
	RedisAddr  string        `yaml:"redis_addr"`
	PreviewTTL time.Duration `yaml:"preview_ttl" validate:"min=0"`
}

// AuthConfig configures JWT verification.
type AuthConfig struct {
	// JWTSecret is the HS256 signing secret shared with the identity provider.
	JWTSecret string `yaml:"jwt_secret" validate:"required,min=16"`
	// Issuer, when set, must match the token's iss claim.
	Issuer string `yaml:"issuer"`
}

// ScoringConfig selects aggregation behavior.
type ScoringConfig struct {
	ZeroJudgementPolicy scoring.ZeroJudgementPolicy `yaml:"zero_judgement_policy" validate:"required,oneof=zero renormalize"`
	TieBreaker          scoring.TieBreaker          `yaml:"tie_breaker" validate:"required,oneof=earliest_submission input_order error"`
	// PreviewConcurrency bounds parallel judgement loads during a preview.
	PreviewConcurrency int `yaml:"preview_concurrency" validate:"min=1,max=64"`
}

// OutboxConfig configures the notification dispatcher.
type OutboxConfig struct {
	PollInterval time.Duration `yaml:"poll_interval" validate:"min=0"`
	BatchSize    int           `yaml:"batch_size" validate:"min=0,max=1000"`
	MaxAttempts  int           `yaml:"max_attempts" validate:"min=0,max=50"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
}

// DefaultAppConfig returns a configuration suitable for local development.
// Secrets are left empty and must be supplied.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		Server: ServerConfig{
			Addr:            ":8080",
			GinMode:         "release",
			RatePerSecond:   50,
			RateBurst:       100,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          "memory",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: time.Hour,
		},
		Cache: CacheConfig{
			PreviewTTL: 5 * time.Second,
		},
		Scoring: ScoringConfig{
			ZeroJudgementPolicy: scoring.ZeroCounts,
			TieBreaker:          scoring.TieEarliestSubmission,
			PreviewConcurrency:  8,
		},
		Outbox: OutboxConfig{
			PollInterval: 2 * time.Second,
			BatchSize:    50,
			MaxAttempts:  5,
		},
		Log: LogConfig{Level: "info"},
	}
}
