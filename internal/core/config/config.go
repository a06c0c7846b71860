package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the top-level application config.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Database    DatabaseConfig    `koanf:"database"`
	Auth        AuthConfig        `koanf:"auth"`
	Idempotency IdempotencyConfig `koanf:"idempotency"`
	Schema      SchemaConfig      `koanf:"schema"`
}

type ServerConfig struct {
	Port          int    `koanf:"port"`
	Host          string `koanf:"host"`
	MaxBodySizeMB int    `koanf:"max_body_size_mb"`
	Mode          string `koanf:"mode"` // debug | release
}

type DatabaseConfig struct {
	Type         string `koanf:"type"` // postgres | memory
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

type AuthConfig struct {
	Mode        string `koanf:"mode"` // jwt | apikey
	JWTSecret   string `koanf:"jwt_secret"`
	JWTIssuer   string `koanf:"jwt_issuer"`
	JWTAudience string `koanf:"jwt_audience"`
	ClockSkew   string `koanf:"clock_skew"`
	// APIKeys format: "tenant1:key1,tenant2:key2" (apikey mode only).
	APIKeys string `koanf:"api_keys"`
}

type IdempotencyConfig struct {
	Backend   string `koanf:"backend"` // store | redis
	RedisAddr string `koanf:"redis_addr"`
	RedisDB   int    `koanf:"redis_db"`
	TTL       string `koanf:"ttl"` // redis backend only; must cover retry windows
}

type SchemaConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

func (c AuthConfig) ClockSkewDuration() (time.Duration, error) {
	if c.ClockSkew == "" {
		return 0, nil
	}
	return time.ParseDuration(c.ClockSkew)
}

func (c IdempotencyConfig) TTLDuration() (time.Duration, error) {
	if c.TTL == "" {
		return 0, nil
	}
	return time.ParseDuration(c.TTL)
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.MaxBodySizeMB <= 0 {
		return fmt.Errorf("server.max_body_size_mb must be > 0")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}

	switch c.Database.Type {
	case "postgres":
		if strings.TrimSpace(c.Database.DSN) == "" {
			return fmt.Errorf("database.dsn is required for postgres")
		}
		if c.Database.MaxOpenConns <= 0 {
			return fmt.Errorf("database.max_open_conns must be > 0")
		}
		if c.Database.MaxIdleConns <= 0 {
			return fmt.Errorf("database.max_idle_conns must be > 0")
		}
	case "memory":
		// Nothing to validate; dev/test only.
	default:
		return fmt.Errorf("unsupported database.type %q", c.Database.Type)
	}

	switch c.Auth.Mode {
	case "jwt":
		if strings.TrimSpace(c.Auth.JWTSecret) == "" {
			return fmt.Errorf("auth.jwt_secret is required in jwt mode")
		}
		if _, err := c.Auth.ClockSkewDuration(); err != nil {
			return fmt.Errorf("invalid auth.clock_skew: %w", err)
		}
	case "apikey":
		if strings.TrimSpace(c.Auth.APIKeys) == "" {
			return fmt.Errorf("auth.api_keys is required in apikey mode")
		}
	default:
		return fmt.Errorf("unsupported auth.mode %q", c.Auth.Mode)
	}

	switch c.Idempotency.Backend {
	case "store":
	case "redis":
		if strings.TrimSpace(c.Idempotency.RedisAddr) == "" {
			return fmt.Errorf("idempotency.redis_addr is required for redis backend")
		}
		if _, err := c.Idempotency.TTLDuration(); err != nil {
			return fmt.Errorf("invalid idempotency.ttl: %w", err)
		}
	default:
		return fmt.Errorf("unsupported idempotency.backend %q", c.Idempotency.Backend)
	}

	if c.Schema.Enabled && strings.TrimSpace(c.Schema.Path) == "" {
		return fmt.Errorf("schema.path is required when schema validation is enabled")
	}

	return nil
}

// Load parses config from file + env and validates it.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":             8080,
		"server.host":             "0.0.0.0",
		"server.max_body_size_mb": 1,
		"server.mode":             "release",
		"database.type":           "postgres",
		"database.dsn":            "",
		"database.max_open_conns": 25,
		"database.max_idle_conns": 25,
		"database.auto_migrate":   true,
		"auth.mode":               "jwt",
		"auth.jwt_secret":         "",
		"auth.jwt_issuer":         "",
		"auth.jwt_audience":       "",
		"auth.clock_skew":         "30s",
		"auth.api_keys":           "",
		"idempotency.backend":     "store",
		"idempotency.redis_addr":  "",
		"idempotency.redis_db":    0,
		"idempotency.ttl":         "48h",
		"schema.enabled":          false,
		"schema.path":             "./shapes",
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("PULSE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "PULSE_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
