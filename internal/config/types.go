package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds every option of the portal API.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
	Airtable AirtableConfig `koanf:"airtable"`
	Store    StoreConfig    `koanf:"store"`
	Cache    CacheConfig    `koanf:"cache"`
	Auth     AuthConfig     `koanf:"auth"`
}

// ServerConfig instructs the HTTP listener about bind address and port.
type ServerConfig struct {
	Address                string   `koanf:"address"`
	Port                   int      `koanf:"port"`
	AllowedOrigins         []string `koanf:"allowedOrigins"`
	ShutdownTimeoutSeconds int      `koanf:"shutdownTimeoutSeconds"`
}

// ListenAddr is the host:port the server binds to.
func (s ServerConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", s.Address, s.Port)
}

// LoggingConfig expresses log level and format.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// AirtableConfig addresses the hosted record store.
type AirtableConfig struct {
	APIKey         string `koanf:"apiKey"`
	BaseID         string `koanf:"baseId"`
	APIURL         string `koanf:"apiUrl"`
	ContentURL     string `koanf:"contentUrl"`
	TimeoutSeconds int    `koanf:"timeoutSeconds"`
}

// Configured reports whether both the credential and the base id were resolved.
func (a AirtableConfig) Configured() bool {
	return strings.TrimSpace(a.APIKey) != "" && strings.TrimSpace(a.BaseID) != ""
}

// Timeout is the transport timeout for store calls.
func (a AirtableConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

const (
	StoreBackendAirtable = "airtable"
	StoreBackendSQLite   = "sqlite"
)

// StoreConfig selects the record store implementation.
type StoreConfig struct {
	Backend    string `koanf:"backend"`
	SQLitePath string `koanf:"sqlitePath"`
	// SeedSampleData upserts the sample dataset into the sqlite store at startup.
	SeedSampleData bool `koanf:"seedSampleData"`
}

const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// CacheConfig configures the request cache.
type CacheConfig struct {
	Backend    string      `koanf:"backend"`
	TTLSeconds int         `koanf:"ttlSeconds"`
	Redis      RedisConfig `koanf:"redis"`
}

// TTL is the request cache entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

type RedisConfig struct {
	Address   string         `koanf:"address"`
	Username  string         `koanf:"username"`
	Password  string         `koanf:"password"`
	DB        int            `koanf:"db"`
	Namespace string         `koanf:"namespace"`
	TLS       RedisTLSConfig `koanf:"tls"`
}

type RedisTLSConfig struct {
	Enabled bool   `koanf:"enabled"`
	CAFile  string `koanf:"caFile"`
}

// AuthConfig controls token signing and how callers are identified.
type AuthConfig struct {
	JWTSecret       string `koanf:"jwtSecret"`
	Issuer          string `koanf:"issuer"`
	Audience        string `koanf:"audience"`
	TokenTTLMinutes int    `koanf:"tokenTtlMinutes"`
	// RequireIdentity rejects API calls that present neither a token nor identity headers.
	RequireIdentity bool `koanf:"requireIdentity"`
	// TrustHeaders accepts x-user-id, x-user-role and x-user-client as caller identity.
	TrustHeaders bool `koanf:"trustHeaders"`
	// DemoLogin accepts the sample users while the record store is unusable.
	DemoLogin bool `koanf:"demoLogin"`
}

// TokenTTL is the lifetime of issued tokens.
func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenTTLMinutes) * time.Minute
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:                "0.0.0.0",
			Port:                   8008,
			AllowedOrigins:         []string{"*"},
			ShutdownTimeoutSeconds: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Airtable: AirtableConfig{
			APIURL:         "https://api.airtable.com",
			ContentURL:     "https://content.airtable.com",
			TimeoutSeconds: 15,
		},
		Store: StoreConfig{
			Backend:    StoreBackendAirtable,
			SQLitePath: "portal-records.db",
		},
		Cache: CacheConfig{
			Backend:    CacheBackendMemory,
			TTLSeconds: 60,
			Redis: RedisConfig{
				Namespace: "portal:",
			},
		},
		Auth: AuthConfig{
			JWTSecret:       "development-insecure-secret-change-me",
			Issuer:          "scalerrs-portal-api",
			Audience:        "scalerrs-portal",
			TokenTTLMinutes: 24 * 60,
			TrustHeaders:    true,
		},
	}
}

// Validate rejects values the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("config: server.port %d out of range", c.Server.Port))
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error", "":
	default:
		errs = append(errs, fmt.Errorf("config: logging.level unsupported: %s", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text", "":
	default:
		errs = append(errs, fmt.Errorf("config: logging.format unsupported: %s", c.Logging.Format))
	}
	switch c.Store.Backend {
	case StoreBackendAirtable:
	case StoreBackendSQLite:
		if strings.TrimSpace(c.Store.SQLitePath) == "" {
			errs = append(errs, errors.New("config: store.sqlitePath required for sqlite backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: store.backend unsupported: %s", c.Store.Backend))
	}
	switch c.Cache.Backend {
	case CacheBackendMemory:
	case CacheBackendRedis:
		if strings.TrimSpace(c.Cache.Redis.Address) == "" {
			errs = append(errs, errors.New("config: cache.redis.address required for redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: cache.backend unsupported: %s", c.Cache.Backend))
	}
	if c.Cache.TTLSeconds <= 0 {
		errs = append(errs, fmt.Errorf("config: cache.ttlSeconds must be positive, got %d", c.Cache.TTLSeconds))
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		errs = append(errs, errors.New("config: auth.jwtSecret required"))
	}
	return errors.Join(errs...)
}
