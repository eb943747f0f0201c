package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"gopkg.in/yaml.v3"

	"github.com/crieger/scopegw/internal/api"
	"github.com/crieger/scopegw/internal/auth"
	"github.com/crieger/scopegw/internal/config"
	"github.com/crieger/scopegw/internal/lock"
	"github.com/crieger/scopegw/internal/log"
	"github.com/crieger/scopegw/internal/mcp"
	"github.com/crieger/scopegw/internal/policy"
	"github.com/crieger/scopegw/internal/scan"
	"github.com/crieger/scopegw/internal/storage"
	"github.com/crieger/scopegw/internal/tools"
	"github.com/crieger/scopegw/internal/tui/watch"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	if cmd == "--version" {
		return runVersion(args)
	}

	switch cmd {
	// --- NOUNS ---
	case "system":
		return runSystemNoun(args)
	case "config":
		return runConfigNoun(args)

	// --- ROOT ALIASES ---
	case "start":
		if hasHelpFlag(args) {
			printSystemStartHelp()
			return 0
		}
		return runStart(args)
	case "watch":
		if hasHelpFlag(args) {
			printSystemWatchHelp()
			return 0
		}
		return runWatch(args)
	case "version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

func runSystemNoun(args []string) int {
	if len(args) < 1 {
		printSystemNounHelp(os.Stderr)
		return 1
	}

	if isHelpToken(args[0]) {
		printSystemNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "start":
		if hasHelpFlag(actionArgs) {
			printSystemStartHelp()
			return 0
		}
		return runStart(actionArgs)
	case "status":
		if hasHelpFlag(actionArgs) {
			printSystemStatusHelp()
			return 0
		}
		return runSystemStatus(actionArgs)
	case "watch":
		if hasHelpFlag(actionArgs) {
			printSystemWatchHelp()
			return 0
		}
		return runWatch(actionArgs)
	case "audit":
		if hasHelpFlag(actionArgs) {
			printSystemAuditHelp()
			return 0
		}
		return runSystemAudit(actionArgs)
	case "help":
		printSystemNounHelp(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown system action: %s\n", action)
		return 1
	}
}

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigNounHelp(os.Stderr)
		return 1
	}

	if isHelpToken(args[0]) {
		printConfigNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "lock":
		if hasHelpFlag(actionArgs) {
			printConfigLockHelp()
			return 0
		}
		return runConfigLock(actionArgs)
	case "check":
		if hasHelpFlag(actionArgs) {
			printConfigCheckHelp()
			return 0
		}
		return runConfigCheck(actionArgs)
	case "show":
		if hasHelpFlag(actionArgs) {
			printConfigShowHelp()
			return 0
		}
		return runConfigShow(actionArgs)
	case "help":
		printConfigNounHelp(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: scopegw version [--json]")
		return 1
	}

	info := currentVersionInfo()

	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("scopegw %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}

	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	resolvedCommit := strings.TrimSpace(gitCommit)
	if resolvedCommit == "" || resolvedCommit == "unknown" {
		resolvedCommit = strings.TrimSpace(readBuildSetting("vcs.revision"))
	}
	if resolvedCommit != "" {
		info.Commit = shortenCommit(resolvedCommit)
	}

	resolvedBuildTime := strings.TrimSpace(buildDate)
	if resolvedBuildTime == "" || resolvedBuildTime == "unknown" {
		resolvedBuildTime = strings.TrimSpace(readBuildSetting("vcs.time"))
	}
	if normalizedBuildTime, ok := normalizeBuildTimeUTC(resolvedBuildTime); ok {
		info.BuildTime = normalizedBuildTime
	}

	return info
}

func shortenCommit(commit string) string {
	if len(commit) <= 12 {
		return commit
	}
	return commit[:12]
}

func normalizeBuildTimeUTC(raw string) (string, bool) {
	if raw == "" || raw == "unknown" {
		return "", false
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return "", false
	}

	return t.UTC().Format(time.RFC3339), true
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

func printUsage() {
	fmt.Print(`scopegw - Authorized-scope security tool gateway

Usage:
  scopegw <noun> <action> [flags]

Core Resources (Nouns):
  system    Gateway lifecycle and health
  config    System configuration and integrity

System Commands:
  system start      Start the gateway service in foreground
  system status     Show global gateway health
  system watch      Real-time scan monitoring TUI
  system audit      Show recent audit log entries

Config Commands:
  config lock       Authorize current state (update integrity hashes)
  config check      Validate syntax, policy, and integrity
  config show       Show the resolved configuration

General:
  --version         Show version information
  version           Show version information
  help              Show this help message

Use 'scopegw <noun> help' for resource-specific flags.
`)
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

func printSystemNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: scopegw system <action>")
	fmt.Fprintln(w, "Actions: start, status, watch, audit")
}

func printConfigNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: scopegw config <action> [flags]")
	fmt.Fprintln(w, "Actions: lock, check, show")
}

func printSystemStartHelp() {
	fmt.Println("Usage: scopegw system start [--config PATH]")
	fmt.Println("Start the gateway service in the foreground.")
}

func printSystemStatusHelp() {
	fmt.Println("Usage: scopegw system status [--config PATH] [--json]")
	fmt.Println("Show global gateway health (config, audit database readiness, and PID lock state).")
	fmt.Println("")
	fmt.Println("Exit codes:")
	fmt.Println("  0  All required checks passed")
	fmt.Println("  1  One or more checks failed")
}

func printSystemWatchHelp() {
	fmt.Println("Usage: scopegw system watch [flags]")
	fmt.Println()
	fmt.Println("Real-time scan monitoring TUI.")
	fmt.Println("Shows gateway health, active scan jobs, and the event stream.")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --api-url URL    Gateway API URL (default: http://localhost:3000)")
	fmt.Println("  --api-key KEY    API Bearer Token (or SCOPEGW_API_KEY env var)")
	fmt.Println()
	fmt.Println("Keybindings:")
	fmt.Println("  q, Ctrl+C        Quit")
	fmt.Println("  r                Refresh")
	fmt.Println("  ↑/↓, k/j         Navigate jobs")
}

func printSystemAuditHelp() {
	fmt.Println("Usage: scopegw system audit [--config PATH] [--limit N] [--json]")
	fmt.Println("Show the newest audit log entries (policy decisions and tool invocations), newest first.")
}

func printConfigLockHelp() {
	fmt.Println("Usage: scopegw config lock [--config PATH] [-v|--verbose]")
	fmt.Println("Authorize current configuration state by regenerating integrity hashes.")
}

func printConfigCheckHelp() {
	fmt.Println("Usage: scopegw config check [--config PATH] [--json]")
	fmt.Println("Validate configuration syntax, policy, and integrity.")
}

func printConfigShowHelp() {
	fmt.Println("Usage: scopegw config show [--config PATH] [--json]")
	fmt.Println("Show the full resolved configuration.")
}

// --- ACTION IMPLEMENTATIONS ---

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	if *configPath == "" {
		discovered, err := config.DiscoverConfigDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to discover config: %v\n", err)
			return 1
		}
		*configPath = discovered
		fmt.Fprintf(os.Stderr, "Using discovered config: %s\n", *configPath)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel)
	logger := log.WithComponent("main")
	logger.Info("scopegw starting", "version", version, "config", *configPath)

	pidLockPath := getPIDLockPath(cfg)
	guard, err := lock.Acquire(pidLockPath)
	if err != nil {
		logger.Error("failed to acquire instance lock", "path", pidLockPath, "error", err)
		return 1
	}
	defer guard.Release()
	logger.Info("acquired instance lock", "path", pidLockPath)

	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, cfg.Audit.Path)
	if err != nil {
		logger.Error("failed to open audit database", "path", cfg.Audit.Path, "error", err)
		return 1
	}
	defer db.Close()
	logger.Info("audit database opened", "path", cfg.Audit.Path)

	auditStore := storage.NewAuditStore(db)
	pol, err := policy.New(cfg.Security, auditStore)
	if err != nil {
		logger.Error("failed to build authorization policy", "error", err)
		return 1
	}

	hub := api.NewEventHub(256)
	manager, err := scan.NewManager(cfg.Scans, hub)
	if err != nil {
		logger.Error("failed to initialize scan manager", "results_dir", cfg.Scans.ResultsDir, "error", err)
		return 1
	}

	registry := mcp.NewRegistry()
	registry.MustRegister(tools.NewCatalog(pol).All()...)
	logger.Info("tool catalog registered", "count", registry.Len())

	tokens := make([]auth.TokenConfig, 0, len(cfg.API.Auth.Tokens))
	for _, t := range cfg.API.Auth.Tokens {
		tokens = append(tokens, auth.TokenConfig{
			Token:  t.Token,
			Scopes: t.Scopes,
		})
	}
	apiConfig := api.Config{
		Listen:     cfg.API.Listen,
		APIKey:     cfg.API.Auth.APIKey,
		Tokens:     tokens,
		ServerName: cfg.Service.Name,
		Version:    version,
	}
	apiServer := api.New(apiConfig, manager, registry, hub, log.WithComponent("api"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)

	go manager.RunCleanupLoop(ctx, cfg.Scans.CleanupInterval, cfg.Scans.Retention)

	go func() {
		if err := apiServer.Start(ctx); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("api: %w", err)
		}
	}()
	logger.Info("API server enabled", "listen", cfg.API.Listen)

	logger.Info("scopegw running (press Ctrl+C to stop)")

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	case err := <-errCh:
		logger.Error("component failed", "error", err)
		cancel()
		return 1
	}

	logger.Info("scopegw stopped")
	return 0
}

type statusCheck struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

func runSystemStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	if *configPath == "" {
		discovered, err := config.DiscoverConfigDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to discover config: %v\n", err)
			return 1
		}
		*configPath = discovered
	}

	var checks []statusCheck

	cfg, err := config.Load(*configPath)
	if err != nil {
		checks = append(checks, statusCheck{Name: "config", OK: false, Message: err.Error()})
	} else {
		checks = append(checks, statusCheck{Name: "config", OK: true, Message: *configPath})

		db, dbErr := storage.OpenSQLite(context.Background(), cfg.Audit.Path)
		if dbErr != nil {
			checks = append(checks, statusCheck{Name: "audit_db", OK: false, Message: dbErr.Error()})
		} else {
			db.Close()
			checks = append(checks, statusCheck{Name: "audit_db", OK: true, Message: cfg.Audit.Path})
		}

		pidLockPath := getPIDLockPath(cfg)
		if pid, pidErr := lock.OwnerPID(pidLockPath); pidErr == nil {
			checks = append(checks, statusCheck{
				Name:    "pid_lock",
				OK:      true,
				Message: fmt.Sprintf("held by PID %d (%s)", pid, pidLockPath),
			})
		} else {
			checks = append(checks, statusCheck{Name: "pid_lock", OK: true, Message: "not held (gateway not running)"})
		}
	}

	allOK := true
	for _, c := range checks {
		if !c.OK {
			allOK = false
		}
	}

	if *jsonOut {
		out := map[string]any{
			"healthy": allOK,
			"checks":  checks,
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(data))
	} else {
		for _, c := range checks {
			mark := "✓"
			if !c.OK {
				mark = "✗"
			}
			fmt.Printf("%s %-10s %s\n", mark, c.Name, c.Message)
		}
	}

	if !allOK {
		return 1
	}
	return 0
}

func runSystemAudit(args []string) int {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	limit := fs.Int("limit", 20, "Maximum number of entries to show")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	if *configPath == "" {
		discovered, err := config.DiscoverConfigDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to discover config: %v\n", err)
			return 1
		}
		*configPath = discovered
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	db, err := storage.OpenSQLite(context.Background(), cfg.Audit.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open audit database: %v\n", err)
		return 1
	}
	defer db.Close()

	records, err := storage.NewAuditStore(db).Recent(context.Background(), *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read audit log: %v\n", err)
		return 1
	}

	if *jsonOut {
		out := map[string]any{
			"entries": records,
			"count":   len(records),
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(data))
		return 0
	}

	if len(records) == 0 {
		fmt.Println("No audit entries recorded.")
		return 0
	}
	for _, rec := range records {
		fmt.Printf("%s  %-8s  %-12s  %-20s  %s\n",
			rec.At.UTC().Format("2006-01-02 15:04:05"),
			rec.Result,
			rec.Tool,
			rec.Target,
			rec.UserID,
		)
	}
	return 0
}

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	apiURL := fs.String("api-url", "http://localhost:3000", "Gateway API URL")
	apiKey := fs.String("api-key", os.Getenv("SCOPEGW_API_KEY"), "API Bearer Token")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	if *apiKey == "" {
		fmt.Fprintln(os.Stderr, "Error: API key required. Use --api-key or SCOPEGW_API_KEY env var.")
		return 1
	}

	m := watch.New(*apiURL, *apiKey)
	p := tea.NewProgram(m)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return 1
	}
	return 0
}

func runConfigLock(args []string) int {
	var configPath string
	var verbose, verboseShort bool

	fs := flag.NewFlagSet("lock", flag.ExitOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration")
	fs.BoolVar(&verbose, "verbose", false, "Verbose output")
	fs.BoolVar(&verboseShort, "v", false, "Verbose output")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	isVerbose := verbose || verboseShort

	configDir, err := resolveConfigDir(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to resolve config: %v\n", err)
		return 1
	}

	files := []string{"config.yaml"}
	if err := config.GenerateChecksums(configDir, files); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to lock config in %s: %v\n", configDir, err)
		return 1
	}

	if isVerbose {
		manifest, err := config.LoadChecksums(configDir)
		if err == nil {
			for name, hash := range manifest.Hashes {
				fmt.Printf("  HASH %s: %s\n", name, hash)
			}
		}
		fmt.Printf("  WROTE .checksums: %s\n", filepath.Join(configDir, ".checksums"))
	}

	fmt.Printf("Successfully locked configuration in %s\n", configDir)
	return 0
}

func runConfigCheck(args []string) int {
	var configPath string
	var jsonOut bool

	fs := flag.NewFlagSet("check", flag.ExitOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration")
	fs.BoolVar(&jsonOut, "json", false, "Output in JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	if configPath == "" {
		discovered, err := config.DiscoverConfigDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to discover config: %v\n", err)
			return 1
		}
		configPath = discovered
	}

	// Load performs syntax, policy, and integrity validation in one pass.
	cfg, err := config.Load(configPath)

	if jsonOut {
		out := map[string]any{
			"config": configPath,
			"valid":  err == nil,
		}
		if err != nil {
			out["error"] = err.Error()
		} else {
			out["tokens"] = len(cfg.API.Auth.Tokens)
			out["authorized_networks"] = len(cfg.Security.AuthorizedNetworks)
			out["authorized_domains"] = len(cfg.Security.AuthorizedDomains)
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(data))
		if err != nil {
			return 1
		}
		return 0
	}

	if err != nil {
		fmt.Printf("✗ Configuration check FAILED\n%v\n", err)
		return 1
	}

	fmt.Println("✓ Configuration check PASSED")
	fmt.Printf("  Config: %s\n", configPath)
	fmt.Printf("  Tokens: %d scoped + legacy key %v\n", len(cfg.API.Auth.Tokens), cfg.API.Auth.APIKey != "")
	fmt.Printf("  Authorized networks: %d\n", len(cfg.Security.AuthorizedNetworks))
	fmt.Printf("  Authorized domains: %d\n", len(cfg.Security.AuthorizedDomains))
	return 0
}

func runConfigShow(args []string) int {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	if *configPath == "" {
		discovered, err := config.DiscoverConfigDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to discover config: %v\n", err)
			return 1
		}
		*configPath = discovered
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}

	// Never print credentials.
	cfg.API.Auth.APIKey = redactSecret(cfg.API.Auth.APIKey)
	for i := range cfg.API.Auth.Tokens {
		cfg.API.Auth.Tokens[i].Token = redactSecret(cfg.API.Auth.Tokens[i].Token)
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(cfg, "", "  ")
		fmt.Println(string(data))
	} else {
		data, _ := yaml.Marshal(cfg)
		fmt.Print(string(data))
	}
	return 0
}

func redactSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + strings.Repeat("*", len(s)-4)
}

// resolveConfigDir maps a --config value (file or directory) to the directory
// holding the .checksums manifest.
func resolveConfigDir(configPath string) (string, error) {
	if configPath == "" {
		discovered, err := config.DiscoverConfigDir()
		if err != nil {
			return "", err
		}
		configPath = discovered
	}

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("config target not found: %w", err)
	}
	if info.IsDir() {
		if _, err := os.Stat(filepath.Join(absPath, "config.yaml")); err != nil {
			return "", fmt.Errorf("config.yaml not found in %s", absPath)
		}
		return absPath, nil
	}
	return filepath.Dir(absPath), nil
}

func getPIDLockPath(cfg *config.Config) string {
	dbPath := cfg.Audit.Path
	dbDir := filepath.Dir(dbPath)
	dbBase := filepath.Base(dbPath)
	ext := filepath.Ext(dbBase)
	nameWithoutExt := dbBase[:len(dbBase)-len(ext)]
	return filepath.Join(dbDir, nameWithoutExt+".pid")
}
