package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/crieger/scopegw/internal/config"
	"github.com/crieger/scopegw/internal/policy"
	"github.com/crieger/scopegw/internal/storage"
)

func captureOutputWithExitCode(t *testing.T, run func() int) (int, string, string) {
	t.Helper()

	oldStdout := os.Stdout
	oldStderr := os.Stderr

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stdout failed: %v", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stderr failed: %v", err)
	}

	os.Stdout = stdoutW
	os.Stderr = stderrW

	code := run()

	_ = stdoutW.Close()
	_ = stderrW.Close()
	os.Stdout = oldStdout
	os.Stderr = oldStderr

	stdoutBytes, _ := io.ReadAll(stdoutR)
	stderrBytes, _ := io.ReadAll(stderrR)

	_ = stdoutR.Close()
	_ = stderrR.Close()

	return code, string(stdoutBytes), string(stderrBytes)
}

func setVersionMetadataForTest(t *testing.T, v, commit, built string) {
	t.Helper()

	origVersion := version
	origCommit := gitCommit
	origBuildDate := buildDate

	version = v
	gitCommit = commit
	buildDate = built

	t.Cleanup(func() {
		version = origVersion
		gitCommit = origCommit
		buildDate = origBuildDate
	})
}

func writeConfigFixture(t *testing.T, dir string) string {
	t.Helper()

	configPath := filepath.Join(dir, "config.yaml")
	configYAML := `
service:
  name: test-gw
  log_level: info
api:
  listen: 127.0.0.1:0
  auth:
    api_key: test-key-12345
scans:
  results_dir: ` + filepath.Join(dir, "results") + `
audit:
  path: ` + filepath.Join(dir, "audit.db") + `
`
	if err := os.WriteFile(configPath, []byte(configYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	return configPath
}

func TestRunCLIRootVersionFlag(t *testing.T) {
	setVersionMetadataForTest(t, "1.2.3", "abc1234567890", "2026-02-12T11:30:00Z")

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"--version"})
	})
	if code != 0 {
		t.Fatalf("runCLI() code = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "scopegw 1.2.3") {
		t.Fatalf("stdout missing semantic version: %s", stdout)
	}
	if !strings.Contains(stdout, "commit: abc123456789") {
		t.Fatalf("stdout missing short commit: %s", stdout)
	}
	if !strings.Contains(stdout, "built_at: 2026-02-12T11:30:00Z") {
		t.Fatalf("stdout missing build time: %s", stdout)
	}
}

func TestRunVersionJSONOutputIncludesMetadata(t *testing.T) {
	setVersionMetadataForTest(t, "2.0.0-rc.1", "aabbccddeeff001122334455", "2026-02-12T11:30:00-05:00")

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runVersion([]string{"--json"})
	})
	if code != 0 {
		t.Fatalf("runVersion() code = %d, stderr: %s", code, stderr)
	}

	var out struct {
		Version   string `json:"version"`
		Commit    string `json:"commit"`
		BuildTime string `json:"build_time"`
	}
	if err := json.Unmarshal([]byte(stdout), &out); err != nil {
		t.Fatalf("failed to parse version JSON: %v\noutput=%s", err, stdout)
	}

	if out.Version != "2.0.0-rc.1" {
		t.Fatalf("version = %q, want %q", out.Version, "2.0.0-rc.1")
	}
	if out.Commit != "aabbccddeeff" {
		t.Fatalf("commit = %q, want %q", out.Commit, "aabbccddeeff")
	}
	if out.BuildTime != "2026-02-12T16:30:00Z" {
		t.Fatalf("build_time = %q, want %q", out.BuildTime, "2026-02-12T16:30:00Z")
	}
}

func TestRunSystemNounActionHelp(t *testing.T) {
	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runSystemNoun([]string{"start", "--help"})
	})
	if code != 0 {
		t.Fatalf("runSystemNoun() code = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "Usage: scopegw system start") {
		t.Fatalf("stdout missing start action help usage: %s", stdout)
	}
}

func TestRunConfigNounActionHelp(t *testing.T) {
	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runConfigNoun([]string{"check", "--help"})
	})
	if code != 0 {
		t.Fatalf("runConfigNoun() code = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "Usage: scopegw config check") {
		t.Fatalf("stdout missing action help usage: %s", stdout)
	}
}

func TestRunCLIUnknownCommand(t *testing.T) {
	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"bogus"})
	})
	if code != 1 {
		t.Fatalf("runCLI() code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "Unknown command: bogus") {
		t.Fatalf("stderr missing unknown command message: %s", stderr)
	}
}

func TestPrintUsageUsesActionTerminology(t *testing.T) {
	_, stdout, _ := captureOutputWithExitCode(t, func() int {
		printUsage()
		return 0
	})
	if !strings.Contains(stdout, "scopegw <noun> <action> [flags]") {
		t.Fatalf("usage missing action terminology: %s", stdout)
	}
	if strings.Contains(stdout, "<noun> <verb>") {
		t.Fatalf("usage should not reference verb terminology: %s", stdout)
	}
}

func TestRunConfigLockVerboseWritesChecksums(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := writeConfigFixture(t, tmpDir)

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runConfigLock([]string{"--config", configPath, "-v"})
	})
	if code != 0 {
		t.Fatalf("runConfigLock() code = %d, stderr: %s", code, stderr)
	}

	if !strings.Contains(stdout, "WROTE .checksums:") {
		t.Fatalf("stdout missing wrote checksums line: %s", stdout)
	}
	if !strings.Contains(stdout, "Successfully locked configuration") {
		t.Fatalf("stdout missing success summary: %s", stdout)
	}

	hashPattern := regexp.MustCompile(`HASH config\.yaml: [a-f0-9]{64}`)
	if !hashPattern.MatchString(stdout) {
		t.Fatalf("stdout missing valid hash output: %s", stdout)
	}

	if _, err := os.Stat(filepath.Join(tmpDir, ".checksums")); err != nil {
		t.Fatalf("expected .checksums to be written: %v", err)
	}
}

func TestRunConfigCheckPassesAfterLock(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := writeConfigFixture(t, tmpDir)

	if code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runConfigLock([]string{"--config", configPath})
	}); code != 0 {
		t.Fatalf("runConfigLock() code = %d, stderr: %s", code, stderr)
	}

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runConfigCheck([]string{"--config", configPath})
	})
	if code != 0 {
		t.Fatalf("runConfigCheck() code = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "Configuration check PASSED") {
		t.Fatalf("stdout missing pass summary: %s", stdout)
	}
}

func TestRunConfigCheckDetectsTamperedConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := writeConfigFixture(t, tmpDir)

	if code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runConfigLock([]string{"--config", configPath})
	}); code != 0 {
		t.Fatalf("runConfigLock() code = %d, stderr: %s", code, stderr)
	}

	// Modify the config after locking to simulate tampering.
	raw, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(configPath, append(raw, []byte("\n# edited\n")...), 0o644); err != nil {
		t.Fatal(err)
	}

	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runConfigCheck([]string{"--config", configPath})
	})
	if code == 0 {
		t.Fatalf("runConfigCheck() should fail for tampered config; stdout=%s", stdout)
	}
	if !strings.Contains(stdout, "Configuration check FAILED") {
		t.Fatalf("stdout missing failure summary: %s", stdout)
	}
}

func TestRunConfigCheckJSONOutput(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := writeConfigFixture(t, tmpDir)

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runConfigCheck([]string{"--config", configPath, "--json"})
	})
	if code != 0 {
		t.Fatalf("runConfigCheck() code = %d, stderr: %s", code, stderr)
	}

	var out struct {
		Valid bool `json:"valid"`
	}
	if err := json.Unmarshal([]byte(stdout), &out); err != nil {
		t.Fatalf("failed to parse check JSON: %v\noutput=%s", err, stdout)
	}
	if !out.Valid {
		t.Fatalf("expected valid=true; output=%s", stdout)
	}
}

func TestRunConfigShowRedactsSecrets(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := writeConfigFixture(t, tmpDir)

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runConfigShow([]string{"--config", configPath})
	})
	if code != 0 {
		t.Fatalf("runConfigShow() code = %d, stderr: %s", code, stderr)
	}

	if strings.Contains(stdout, "test-key-12345") {
		t.Fatalf("stdout leaks API key: %s", stdout)
	}
	if !strings.Contains(stdout, "test**********") {
		t.Fatalf("stdout missing redacted key: %s", stdout)
	}
}

func TestRunSystemStatusJSONHealthy(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := writeConfigFixture(t, tmpDir)

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runSystemStatus([]string{"--config", configPath, "--json"})
	})
	if code != 0 {
		t.Fatalf("runSystemStatus() code = %d, stderr: %s", code, stderr)
	}

	var report struct {
		Healthy bool `json:"healthy"`
		Checks  []struct {
			Name string `json:"name"`
			OK   bool   `json:"ok"`
		} `json:"checks"`
	}
	if err := json.Unmarshal([]byte(stdout), &report); err != nil {
		t.Fatalf("failed to parse JSON status output: %v\noutput=%s", err, stdout)
	}
	if !report.Healthy {
		t.Fatalf("expected healthy=true, got false; output=%s", stdout)
	}
	if len(report.Checks) < 3 {
		t.Fatalf("expected at least 3 checks, got %d", len(report.Checks))
	}
}

func TestRunSystemStatusConfigLoadFailure(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runSystemStatus([]string{"--config", configPath})
	})
	if code == 0 {
		t.Fatalf("runSystemStatus() should fail for invalid config; stdout=%s", stdout)
	}
	if !strings.Contains(stdout, "✗ config") {
		t.Fatalf("expected config failure in output; stdout=%s", stdout)
	}
}

func TestRunSystemAuditListsEntriesNewestFirst(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := writeConfigFixture(t, tmpDir)

	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("config load: %v", err)
	}
	db, err := storage.OpenSQLite(context.Background(), cfg.Audit.Path)
	if err != nil {
		t.Fatalf("open audit db: %v", err)
	}
	store := storage.NewAuditStore(db)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	entries := []policy.AuditEntry{
		{Timestamp: base, Tool: "nmap", Target: "10.0.0.1", UserID: "ops", Result: "allowed"},
		{Timestamp: base.Add(time.Minute), Tool: "httpx", Target: "example.com", UserID: "ops", Result: "denied"},
	}
	for _, e := range entries {
		if err := store.Record(e); err != nil {
			t.Fatalf("record audit entry: %v", err)
		}
	}
	db.Close()

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runSystemNoun([]string{"audit", "--config", configPath})
	})
	if code != 0 {
		t.Fatalf("system audit code = %d, stderr: %s", code, stderr)
	}
	httpxIdx := strings.Index(stdout, "httpx")
	nmapIdx := strings.Index(stdout, "nmap")
	if httpxIdx < 0 || nmapIdx < 0 {
		t.Fatalf("stdout missing recorded tools: %s", stdout)
	}
	if httpxIdx > nmapIdx {
		t.Fatalf("expected newest entry (httpx) first; stdout=%s", stdout)
	}

	code, stdout, stderr = captureOutputWithExitCode(t, func() int {
		return runSystemNoun([]string{"audit", "--config", configPath, "--json", "--limit", "1"})
	})
	if code != 0 {
		t.Fatalf("system audit --json code = %d, stderr: %s", code, stderr)
	}
	var report struct {
		Count   int `json:"count"`
		Entries []struct {
			Tool   string `json:"tool"`
			Result string `json:"result"`
		} `json:"entries"`
	}
	if err := json.Unmarshal([]byte(stdout), &report); err != nil {
		t.Fatalf("failed to parse JSON audit output: %v\noutput=%s", err, stdout)
	}
	if report.Count != 1 || len(report.Entries) != 1 {
		t.Fatalf("expected 1 entry with --limit 1, got %d; output=%s", report.Count, stdout)
	}
	if report.Entries[0].Tool != "httpx" || report.Entries[0].Result != "denied" {
		t.Fatalf("unexpected newest entry: %+v", report.Entries[0])
	}
}

func TestGetPIDLockPathDerivedFromAuditDB(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := writeConfigFixture(t, tmpDir)
	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("config load: %v", err)
	}

	got := getPIDLockPath(cfg)
	if filepath.Base(got) != "audit.pid" {
		t.Fatalf("pid lock basename = %q, want audit.pid", filepath.Base(got))
	}
	if filepath.Dir(got) != filepath.Dir(cfg.Audit.Path) {
		t.Fatalf("pid lock dir = %q, want %q", filepath.Dir(got), filepath.Dir(cfg.Audit.Path))
	}
}
