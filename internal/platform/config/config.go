// Package config loads runtime configuration from the environment.
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the engine.
type Config struct {
	Addr            string        `envconfig:"ACCESSD_ADDR" default:":8080"`
	ReadTimeout     time.Duration `envconfig:"ACCESSD_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"ACCESSD_WRITE_TIMEOUT" default:"15s"`
	RequestTimeout  time.Duration `envconfig:"ACCESSD_REQUEST_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"ACCESSD_SHUTDOWN_TIMEOUT" default:"10s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	// Empty DSN selects the in-memory stores (development mode).
	PostgresDSN string `envconfig:"PG_DSN"`

	// Empty URL disables the snapshot mirror.
	RedisURL string `envconfig:"REDIS_URL"`

	// Empty broker list disables audit streaming.
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_AUDIT_TOPIC" default:"rbac.role-audit"`

	// Empty path registers the built-in permission matrix.
	PermissionSeedPath string `envconfig:"PERMISSION_SEED_PATH"`

	JWTSigningKey string        `envconfig:"JWT_SIGNING_KEY" default:"dev-secret-key-change-in-production"`
	JWTIssuer     string        `envconfig:"JWT_ISSUER" default:"accessd"`
	TokenTTL      time.Duration `envconfig:"TOKEN_TTL" default:"1h"`

	// Static bootstrap credential for admin routes before any actor holds
	// rbac.manage.
	AdminToken string `envconfig:"ADMIN_TOKEN"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
