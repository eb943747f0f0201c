package config

import "time"

// Config represents the complete scopegw configuration.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	API      APIConfig      `yaml:"api"`
	Security SecurityConfig `yaml:"security"`
	Scans    ScansConfig    `yaml:"scans"`
	Audit    AuditConfig    `yaml:"audit"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// APIConfig defines HTTP API server settings.
type APIConfig struct {
	Listen string        `yaml:"listen"`
	Auth   APIAuthConfig `yaml:"auth"`
}

// APIAuthConfig defines API authentication settings.
type APIAuthConfig struct {
	// APIKey is the legacy single bearer token (admin/full access).
	// Prefer Tokens for scoped access.
	APIKey string     `yaml:"api_key"`
	Tokens []APIToken `yaml:"tokens,omitempty"`
}

// APIToken defines a bearer token and its scopes.
type APIToken struct {
	Token  string   `yaml:"token"`
	Scopes []string `yaml:"scopes"`
}

// SecurityConfig defines the target authorization policy.
//
// Empty authorized lists are permissive: any non-blacklisted target is
// allowed. This is a deliberate default for lab/training ranges; production
// deployments must configure explicit allow-lists.
type SecurityConfig struct {
	AuthorizedNetworks  []string `yaml:"authorized_networks"`
	BlacklistedNetworks []string `yaml:"blacklisted_networks"`
	AuthorizedDomains   []string `yaml:"authorized_domains"`
}

// ScansConfig defines background job settings.
type ScansConfig struct {
	ResultsDir      string        `yaml:"results_dir"`
	Retention       time.Duration `yaml:"retention"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	WebhookTimeout  time.Duration `yaml:"webhook_timeout"`
}

// AuditConfig defines the audit trail store.
type AuditConfig struct {
	Path string `yaml:"path"`
}

// ChecksumManifest is the on-disk .checksums file format.
type ChecksumManifest struct {
	Version     int               `yaml:"version"`
	GeneratedAt string            `yaml:"generated_at"`
	Hashes      map[string]string `yaml:"hashes"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "scopegw",
			LogLevel:  "info",
			LogFormat: "json",
		},
		API: APIConfig{
			Listen: "127.0.0.1:3000",
		},
		Security: SecurityConfig{
			BlacklistedNetworks: []string{"127.0.0.0/8"},
		},
		Scans: ScansConfig{
			ResultsDir:      "/tmp/scopegw/results",
			Retention:       24 * time.Hour,
			CleanupInterval: 1 * time.Hour,
			WebhookTimeout:  30 * time.Second,
		},
		Audit: AuditConfig{
			Path: "/tmp/scopegw/audit.db",
		},
	}
}
