package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"ossensor/internal/model"
)

func TestLoadConfig_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("unexpected listen addr %q", cfg.ListenAddr)
	}
	if cfg.Store.Mode != model.StorageDerivedOnly {
		t.Errorf("unexpected storage mode %q", cfg.Store.Mode)
	}
}

func TestLoadConfig_OverlaysFileOntoDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "listen_addr: \":9090\"\n" +
		"store:\n  storage_path: /tmp/ossensor-test\n" +
		"weights:\n  alloc_math: 5.0\n" +
		"job_retention_time: 30m\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ListenAddr != ":9090" {
		t.Errorf("listen addr not overlaid: %q", cfg.ListenAddr)
	}
	if cfg.Store.StoragePath != "/tmp/ossensor-test" {
		t.Errorf("storage path not overlaid: %q", cfg.Store.StoragePath)
	}
	// Unset fields keep their defaults.
	if cfg.Store.Mode != model.StorageDerivedOnly {
		t.Errorf("storage mode default lost: %q", cfg.Store.Mode)
	}
	if cfg.JobRetentionTime != 30*time.Minute {
		t.Errorf("retention not overlaid: %v", cfg.JobRetentionTime)
	}
	if cfg.Weights["alloc_math"] != 5.0 {
		t.Errorf("weights not overlaid: %v", cfg.Weights)
	}
}

func TestLoadConfig_MissingFileErrors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadConfig_ResolvesAPIKeyFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("enrich:\n  provider: openai\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Enrich.APIKey != "sk-test" {
		t.Errorf("expected env API key, got %q", cfg.Enrich.APIKey)
	}
}

func TestLoadConfig_FileKeyWinsOverEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "env-key")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "enrich:\n  provider: anthropic\n  api_key: file-key\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Enrich.APIKey != "file-key" {
		t.Errorf("expected file API key to win, got %q", cfg.Enrich.APIKey)
	}
}

func TestEffectiveWeights_OverridesMerge(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Weights = map[string]float64{"alloc_math": 10.0, "custom_kind": 0.5}

	w := effectiveWeights(cfg)
	if w["alloc_math"] != 10.0 {
		t.Errorf("override not applied: %v", w["alloc_math"])
	}
	if w["custom_kind"] != 0.5 {
		t.Errorf("new kind not applied: %v", w["custom_kind"])
	}
	if w["bounds_check"] != 2.5 {
		t.Errorf("default lost: %v", w["bounds_check"])
	}
}
