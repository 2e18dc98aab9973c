package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func clearCredentialEnv(t *testing.T) {
	t.Helper()
	for _, name := range append(append([]string{}, apiKeyFallbacks...), baseIDFallbacks...) {
		t.Setenv(name, "")
	}
}

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoader(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T) []string
		wantErr bool
		assert  func(t *testing.T, cfg Config)
	}{
		{
			name:  "returns defaults when no overrides",
			setup: func(t *testing.T) []string { return nil },
			assert: func(t *testing.T, cfg Config) {
				require.Equal(t, 8008, cfg.Server.Port)
				require.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
				require.Equal(t, CacheBackendMemory, cfg.Cache.Backend)
				require.Equal(t, 60, cfg.Cache.TTLSeconds)
				require.False(t, cfg.Airtable.Configured())
			},
		},
		{
			name: "merges yaml file overrides",
			setup: func(t *testing.T) []string {
				return []string{writeFile(t, "portal.yaml", "server:\n  port: 9090\ncache:\n  ttlSeconds: 5\n")}
			},
			assert: func(t *testing.T, cfg Config) {
				require.Equal(t, 9090, cfg.Server.Port)
				require.Equal(t, 5, cfg.Cache.TTLSeconds)
			},
		},
		{
			name: "merges json file overrides",
			setup: func(t *testing.T) []string {
				return []string{writeFile(t, "portal.json", `{"store":{"backend":"sqlite","sqlitePath":"/tmp/x.db"}}`)}
			},
			assert: func(t *testing.T, cfg Config) {
				require.Equal(t, StoreBackendSQLite, cfg.Store.Backend)
				require.Equal(t, "/tmp/x.db", cfg.Store.SQLitePath)
			},
		},
		{
			name: "prefers env overrides",
			setup: func(t *testing.T) []string {
				t.Setenv("PORTAL_SERVER__PORT", "9091")
				t.Setenv("PORTAL_CACHE__TTLSECONDS", "30")
				t.Setenv("PORTAL_AUTH__DEMOLOGIN", "true")
				return []string{writeFile(t, "portal.yaml", "server:\n  port: 9090\n")}
			},
			assert: func(t *testing.T, cfg Config) {
				require.Equal(t, 9091, cfg.Server.Port)
				require.Equal(t, 30, cfg.Cache.TTLSeconds)
				require.True(t, cfg.Auth.DemoLogin)
			},
		},
		{
			name: "splits comma separated origins",
			setup: func(t *testing.T) []string {
				t.Setenv("PORTAL_SERVER__ALLOWEDORIGINS", "https://a.example, https://b.example")
				return nil
			},
			assert: func(t *testing.T, cfg Config) {
				require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
			},
		},
		{
			name: "resolves legacy credential variables",
			setup: func(t *testing.T) []string {
				t.Setenv("AIRTABLE_PERSONAL_ACCESS_TOKEN", "pat-token")
				t.Setenv("NEXT_PUBLIC_AIRTABLE_API_KEY", "public-key")
				t.Setenv("NEXT_PUBLIC_AIRTABLE_BASE_ID", "appPublic")
				return nil
			},
			assert: func(t *testing.T, cfg Config) {
				require.Equal(t, "pat-token", cfg.Airtable.APIKey)
				require.Equal(t, "appPublic", cfg.Airtable.BaseID)
				require.True(t, cfg.Airtable.Configured())
			},
		},
		{
			name: "prefixed credentials win over legacy variables",
			setup: func(t *testing.T) []string {
				t.Setenv("AIRTABLE_API_KEY", "legacy-key")
				t.Setenv("AIRTABLE_BASE_ID", "appLegacy")
				t.Setenv("PORTAL_AIRTABLE__APIKEY", "prefixed-key")
				return nil
			},
			assert: func(t *testing.T, cfg Config) {
				require.Equal(t, "prefixed-key", cfg.Airtable.APIKey)
				require.Equal(t, "appLegacy", cfg.Airtable.BaseID)
			},
		},
		{
			name: "rejects missing file",
			setup: func(t *testing.T) []string {
				return []string{filepath.Join(t.TempDir(), "missing.yaml")}
			},
			wantErr: true,
		},
		{
			name: "rejects redis backend without address",
			setup: func(t *testing.T) []string {
				t.Setenv("PORTAL_CACHE__BACKEND", "redis")
				return nil
			},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearCredentialEnv(t)
			files := tc.setup(t)
			cfg, err := NewLoader(DefaultEnvPrefix, files...).Load(context.Background())
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tc.assert != nil {
				tc.assert(t, cfg)
			}
		})
	}
}

func TestLoaderHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	path := writeFile(t, "portal.yaml", "server:\n  port: 9090\n")
	_, err := NewLoader(DefaultEnvPrefix, path).Load(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Server.Port = 0
	cfg.Logging.Level = "verbose"
	cfg.Auth.JWTSecret = ""
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "server.port")
	require.Contains(t, err.Error(), "logging.level")
	require.Contains(t, err.Error(), "auth.jwtSecret")
}
