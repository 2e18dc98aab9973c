package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix namespaces the structured environment overrides (PORTAL_SERVER__PORT).
const DefaultEnvPrefix = "PORTAL"

// Legacy credential variables, consulted in order when neither the prefixed
// variable nor the config file set a value. The first non-empty one wins.
var (
	apiKeyFallbacks = []string{"AIRTABLE_API_KEY", "AIRTABLE_PERSONAL_ACCESS_TOKEN", "NEXT_PUBLIC_AIRTABLE_API_KEY"}
	baseIDFallbacks = []string{"AIRTABLE_BASE_ID", "NEXT_PUBLIC_AIRTABLE_BASE_ID"}
)

// Loader hydrates the runtime configuration with env > file > default precedence.
type Loader struct {
	envPrefix string
	files     []string
	lookupEnv func(string) (string, bool)
}

// NewLoader prepares a loader for envPrefix and optional config files (YAML or JSON).
func NewLoader(envPrefix string, files ...string) *Loader {
	return &Loader{
		envPrefix: envPrefix,
		files:     files,
		lookupEnv: os.LookupEnv,
	}
}

// Load assembles the effective configuration.
func (l *Loader) Load(ctx context.Context) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(structToMap(DefaultConfig()), "."), nil); err != nil {
		return Config{}, fmt.Errorf("config: load defaults: %w", err)
	}

	for _, path := range l.files {
		if path == "" {
			continue
		}
		select {
		case <-ctx.Done():
			return Config{}, ctx.Err()
		default:
		}
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("config: file %s not found", path)
			}
			return Config{}, fmt.Errorf("config: stat %s: %w", path, err)
		}
		var parser koanf.Parser = yaml.Parser()
		if strings.EqualFold(filepath.Ext(path), ".json") {
			parser = kjson.Parser()
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return Config{}, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	if l.envPrefix != "" {
		canonical := canonicalKeys()
		transform := func(s string) string {
			// Double underscores signal a nested path (SERVER__PORT -> server.port).
			key := strings.TrimPrefix(s, l.envPrefix+"_")
			key = strings.ReplaceAll(key, "__", ".")
			lower := strings.ToLower(key)
			if mapped, ok := canonical[lower]; ok {
				return mapped
			}
			return strings.ToLower(strings.ReplaceAll(key, "_", ""))
		}
		if err := k.Load(env.Provider(l.envPrefix+"_", ".", transform), nil); err != nil {
			return Config{}, fmt.Errorf("config: load env: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	l.resolveCredentials(&cfg.Airtable)
	cfg.Server.AllowedOrigins = splitList(cfg.Server.AllowedOrigins)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// resolveCredentials fills the store credential and base id from the legacy
// variables. Missing values are not an error; the service degrades instead.
func (l *Loader) resolveCredentials(a *AirtableConfig) {
	if strings.TrimSpace(a.APIKey) == "" {
		a.APIKey = l.firstEnv(apiKeyFallbacks)
	}
	if strings.TrimSpace(a.BaseID) == "" {
		a.BaseID = l.firstEnv(baseIDFallbacks)
	}
	a.APIKey = strings.TrimSpace(a.APIKey)
	a.BaseID = strings.TrimSpace(a.BaseID)
}

func (l *Loader) firstEnv(names []string) string {
	for _, name := range names {
		if v, ok := l.lookupEnv(name); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// splitList accepts both list values and a single comma separated string.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func canonicalKeys() map[string]string {
	return map[string]string{
		"server.allowedorigins":         "server.allowedOrigins",
		"server.shutdowntimeoutseconds": "server.shutdownTimeoutSeconds",
		"airtable.apikey":               "airtable.apiKey",
		"airtable.baseid":               "airtable.baseId",
		"airtable.apiurl":               "airtable.apiUrl",
		"airtable.contenturl":           "airtable.contentUrl",
		"airtable.timeoutseconds":       "airtable.timeoutSeconds",
		"store.sqlitepath":              "store.sqlitePath",
		"store.seedsampledata":          "store.seedSampleData",
		"cache.ttlseconds":              "cache.ttlSeconds",
		"cache.redis.tls.cafile":        "cache.redis.tls.caFile",
		"auth.jwtsecret":                "auth.jwtSecret",
		"auth.tokenttlminutes":          "auth.tokenTtlMinutes",
		"auth.requireidentity":          "auth.requireIdentity",
		"auth.trustheaders":             "auth.trustHeaders",
		"auth.demologin":                "auth.demoLogin",
	}
}

// structToMap converts DefaultConfig into a map for the koanf confmap provider.
func structToMap(cfg Config) map[string]any {
	return map[string]any{
		"server": map[string]any{
			"address":                cfg.Server.Address,
			"port":                   cfg.Server.Port,
			"allowedOrigins":         cfg.Server.AllowedOrigins,
			"shutdownTimeoutSeconds": cfg.Server.ShutdownTimeoutSeconds,
		},
		"logging": map[string]any{
			"level":  cfg.Logging.Level,
			"format": cfg.Logging.Format,
		},
		"airtable": map[string]any{
			"apiKey":         cfg.Airtable.APIKey,
			"baseId":         cfg.Airtable.BaseID,
			"apiUrl":         cfg.Airtable.APIURL,
			"contentUrl":     cfg.Airtable.ContentURL,
			"timeoutSeconds": cfg.Airtable.TimeoutSeconds,
		},
		"store": map[string]any{
			"backend":        cfg.Store.Backend,
			"sqlitePath":     cfg.Store.SQLitePath,
			"seedSampleData": cfg.Store.SeedSampleData,
		},
		"cache": map[string]any{
			"backend":    cfg.Cache.Backend,
			"ttlSeconds": cfg.Cache.TTLSeconds,
			"redis": map[string]any{
				"address":   cfg.Cache.Redis.Address,
				"username":  cfg.Cache.Redis.Username,
				"password":  cfg.Cache.Redis.Password,
				"db":        cfg.Cache.Redis.DB,
				"namespace": cfg.Cache.Redis.Namespace,
				"tls": map[string]any{
					"enabled": cfg.Cache.Redis.TLS.Enabled,
					"caFile":  cfg.Cache.Redis.TLS.CAFile,
				},
			},
		},
		"auth": map[string]any{
			"jwtSecret":       cfg.Auth.JWTSecret,
			"issuer":          cfg.Auth.Issuer,
			"audience":        cfg.Auth.Audience,
			"tokenTtlMinutes": cfg.Auth.TokenTTLMinutes,
			"requireIdentity": cfg.Auth.RequireIdentity,
			"trustHeaders":    cfg.Auth.TrustHeaders,
			"demoLogin":       cfg.Auth.DemoLogin,
		},
	}
}
