package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestChecksumRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "service:\n  name: scopegw\n")

	if err := GenerateChecksums(dir, []string{"config.yaml"}); err != nil {
		t.Fatalf("GenerateChecksums: %v", err)
	}

	manifest, err := LoadChecksums(dir)
	if err != nil {
		t.Fatalf("LoadChecksums: %v", err)
	}
	hash, ok := manifest.Hashes["config.yaml"]
	if !ok || hash == "" {
		t.Fatal("config.yaml hash missing from manifest")
	}

	if err := VerifyFileHash(path, hash); err != nil {
		t.Fatalf("VerifyFileHash: %v", err)
	}
}

func TestLoadRejectsTamperedConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "service:\n  name: scopegw\n")

	if err := GenerateChecksums(dir, []string{"config.yaml"}); err != nil {
		t.Fatalf("GenerateChecksums: %v", err)
	}

	// Tamper after locking.
	if err := os.WriteFile(path, []byte("service:\n  name: evil\n"), 0644); err != nil {
		t.Fatalf("tamper write: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected verification failure for tampered config")
	}
}

func TestLoadWithoutManifestSkipsVerification(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "service:\n  name: scopegw\n")
	if _, err := Load(path); err != nil {
		t.Fatalf("Load without manifest: %v", err)
	}
}

func TestChecksumSkipsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "service: {}\n")

	if err := GenerateChecksums(dir, []string{"config.yaml", "tokens.yaml"}); err != nil {
		t.Fatalf("GenerateChecksums: %v", err)
	}

	manifest, err := LoadChecksums(dir)
	if err != nil {
		t.Fatalf("LoadChecksums: %v", err)
	}
	if _, ok := manifest.Hashes["tokens.yaml"]; ok {
		t.Error("missing file should not appear in manifest")
	}
	if _, ok := manifest.Hashes["config.yaml"]; !ok {
		t.Error("config.yaml should appear in manifest")
	}
}

func TestUnsupportedManifestVersion(t *testing.T) {
	dir := t.TempDir()
	data := []byte("version: 2\ngenerated_at: now\nhashes: {}\n")
	if err := os.WriteFile(filepath.Join(dir, ".checksums"), data, 0600); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	if _, err := LoadChecksums(dir); err == nil {
		t.Fatal("expected error for unsupported version")
	}
}
