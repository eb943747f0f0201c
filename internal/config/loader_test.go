package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		wantErr bool
		checkFn func(t *testing.T, cfg *Config)
	}{
		{
			name: "minimal valid config",
			yaml: `
api:
  listen: "127.0.0.1:9900"
security:
  authorized_networks:
    - 10.0.0.0/8
  authorized_domains:
    - example.com
scans:
  results_dir: /tmp/test-results
`,
			wantErr: false,
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.API.Listen != "127.0.0.1:9900" {
					t.Error("api.listen not parsed")
				}
				if len(cfg.Security.AuthorizedNetworks) != 1 || cfg.Security.AuthorizedNetworks[0] != "10.0.0.0/8" {
					t.Error("authorized_networks not parsed")
				}
				if len(cfg.Security.AuthorizedDomains) != 1 || cfg.Security.AuthorizedDomains[0] != "example.com" {
					t.Error("authorized_domains not parsed")
				}
				if cfg.Scans.ResultsDir != "/tmp/test-results" {
					t.Error("scans.results_dir not parsed")
				}
				// Defaults applied
				if cfg.Service.LogLevel != "info" {
					t.Error("default log_level not applied")
				}
				if cfg.Scans.Retention != 24*time.Hour {
					t.Error("default retention not applied")
				}
				if len(cfg.Security.BlacklistedNetworks) == 0 {
					t.Error("default blacklist not applied")
				}
			},
		},
		{
			name: "env interpolation",
			yaml: `
api:
  auth:
    api_key: ${SCOPEGW_TEST_KEY}
`,
			env:     map[string]string{"SCOPEGW_TEST_KEY": "secret-token"},
			wantErr: false,
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.API.Auth.APIKey != "secret-token" {
					t.Errorf("api_key not interpolated: %q", cfg.API.Auth.APIKey)
				}
			},
		},
		{
			name: "unresolved env var fails validation",
			yaml: `
api:
  auth:
    api_key: ${SCOPEGW_UNSET_VAR_XYZ}
`,
			wantErr: true,
		},
		{
			name: "invalid authorized CIDR",
			yaml: `
security:
  authorized_networks:
    - not-a-cidr
`,
			wantErr: true,
		},
		{
			name: "invalid log level",
			yaml: `
service:
  log_level: verbose
`,
			wantErr: true,
		},
		{
			name: "token without scopes",
			yaml: `
api:
  auth:
    tokens:
      - token: abc123
`,
			wantErr: true,
		},
		{
			name: "token with unknown scope resource",
			yaml: `
api:
  auth:
    tokens:
      - token: abc123
        scopes: ["reports:ro"]
`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			path := writeConfig(t, t.TempDir(), tt.yaml)
			cfg, err := Load(path)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if tt.checkFn != nil {
				tt.checkFn(t, cfg)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config")
	}
}
