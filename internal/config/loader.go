package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/crieger/scopegw/internal/auth"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads and parses configuration from a YAML file. Environment variable
// placeholders of the form ${VAR} are interpolated before parsing. If a
// .checksums manifest exists next to the file, the file is verified against it.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return nil, fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	interpolated := interpolateEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolated), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	applyDefaults(&cfg)

	if err := verifyConfigHash(absPath); err != nil {
		return nil, err
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// DiscoverConfigDir locates the configuration when no --config flag is given.
func DiscoverConfigDir() (string, error) {
	// 1. Check environment variable
	if dir := os.Getenv("SCOPEGW_CONFIG_DIR"); dir != "" {
		if _, err := os.Stat(dir); err == nil {
			return dir, nil
		}
	}

	// 2. Check user config directory
	if homeDir, err := os.UserHomeDir(); err == nil {
		userConfigDir := filepath.Join(homeDir, ".config", "scopegw")
		if _, err := os.Stat(userConfigDir); err == nil {
			return userConfigDir, nil
		}
	}

	// 3. Check system config directory
	systemConfigDir := "/etc/scopegw"
	if _, err := os.Stat(systemConfigDir); err == nil {
		return systemConfigDir, nil
	}

	// 4. Fallback to single-file config in current directory
	localConfigPath := "./config.yaml"
	if _, err := os.Stat(localConfigPath); err == nil {
		return localConfigPath, nil
	}

	return "", fmt.Errorf("no config found (checked: $SCOPEGW_CONFIG_DIR, ~/.config/scopegw, /etc/scopegw, ./config.yaml)")
}

// verifyConfigHash checks the config file against the .checksums manifest in
// its directory. A missing manifest skips verification; a manifest that exists
// but doesn't cover the file is a hard failure.
func verifyConfigHash(path string) error {
	dir := filepath.Dir(path)
	checksums, err := LoadChecksums(dir)
	if err != nil {
		return nil
	}

	basename := filepath.Base(path)
	expectedHash, ok := checksums.Hashes[basename]
	if !ok {
		return fmt.Errorf("config file %s has no hash in checksums at %s\n"+
			"Run: scopegw config lock --config %s", basename, dir, path)
	}

	if err := VerifyFileHash(path, expectedHash); err != nil {
		return fmt.Errorf("config verification failed for %s: %w\n"+
			"This indicates tampering or unauthorized modification.\n"+
			"If you edited this file intentionally, run: scopegw config lock --config %s", path, err, path)
	}
	return nil
}

// applyDefaults merges default values into cfg where not explicitly set.
func applyDefaults(cfg *Config) {
	defaults := Defaults()

	if cfg.Service.Name == "" {
		cfg.Service.Name = defaults.Service.Name
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = defaults.Service.LogLevel
	}
	if cfg.Service.LogFormat == "" {
		cfg.Service.LogFormat = defaults.Service.LogFormat
	}
	if cfg.API.Listen == "" {
		cfg.API.Listen = defaults.API.Listen
	}
	if len(cfg.Security.BlacklistedNetworks) == 0 {
		cfg.Security.BlacklistedNetworks = defaults.Security.BlacklistedNetworks
	}
	if cfg.Scans.ResultsDir == "" {
		cfg.Scans.ResultsDir = defaults.Scans.ResultsDir
	}
	if cfg.Scans.Retention == 0 {
		cfg.Scans.Retention = defaults.Scans.Retention
	}
	if cfg.Scans.CleanupInterval == 0 {
		cfg.Scans.CleanupInterval = defaults.Scans.CleanupInterval
	}
	if cfg.Scans.WebhookTimeout == 0 {
		cfg.Scans.WebhookTimeout = defaults.Scans.WebhookTimeout
	}
	if cfg.Audit.Path == "" {
		cfg.Audit.Path = defaults.Audit.Path
	}
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is and caught by validation.
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}

	if envVarPattern.MatchString(cfg.API.Auth.APIKey) {
		matches := envVarPattern.FindStringSubmatch(cfg.API.Auth.APIKey)
		if len(matches) > 1 {
			return fmt.Errorf("api.auth.api_key: environment variable ${%s} is not set", matches[1])
		}
		return fmt.Errorf("api.auth.api_key: unresolved environment variable")
	}
	for i, tok := range cfg.API.Auth.Tokens {
		if tok.Token == "" {
			return fmt.Errorf("api.auth.tokens[%d].token is required", i)
		}
		if envVarPattern.MatchString(tok.Token) {
			matches := envVarPattern.FindStringSubmatch(tok.Token)
			if len(matches) > 1 {
				return fmt.Errorf("api.auth.tokens[%d].token: environment variable ${%s} is not set", i, matches[1])
			}
			return fmt.Errorf("api.auth.tokens[%d].token: unresolved environment variable", i)
		}
		if len(tok.Scopes) == 0 {
			return fmt.Errorf("api.auth.tokens[%d].scopes must be non-empty", i)
		}
		for j, s := range tok.Scopes {
			if _, err := auth.ParseScope(s); err != nil {
				return fmt.Errorf("api.auth.tokens[%d].scopes[%d]: %w", i, j, err)
			}
		}
	}

	for i, cidr := range cfg.Security.AuthorizedNetworks {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return fmt.Errorf("security.authorized_networks[%d]: invalid CIDR %q: %w", i, cidr, err)
		}
	}
	for i, cidr := range cfg.Security.BlacklistedNetworks {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return fmt.Errorf("security.blacklisted_networks[%d]: invalid CIDR %q: %w", i, cidr, err)
		}
	}

	if cfg.Scans.ResultsDir == "" {
		return fmt.Errorf("scans.results_dir is required")
	}
	if cfg.Scans.Retention <= 0 {
		return fmt.Errorf("scans.retention must be positive")
	}

	return nil
}
