package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Providers.Default != "anthropic" {
		t.Errorf("Providers.Default: got %s, want anthropic", cfg.Providers.Default)
	}
	if cfg.Pipeline.TaskTimeout != 2*time.Minute {
		t.Errorf("Pipeline.TaskTimeout: got %v, want 2m", cfg.Pipeline.TaskTimeout)
	}
	if cfg.Preprocess.MaxPayloadBytes != 20<<20 {
		t.Errorf("Preprocess.MaxPayloadBytes: got %d, want 20MiB", cfg.Preprocess.MaxPayloadBytes)
	}
	if cfg.Pipeline.FailureThreshold != 5 {
		t.Errorf("Pipeline.FailureThreshold: got %d, want 5", cfg.Pipeline.FailureThreshold)
	}
}

func TestManagerGet(t *testing.T) {
	m := NewManager("")

	cfg := m.Get()
	if cfg == nil {
		t.Fatal("Get() returned nil")
	}
	if cfg.Providers.Default != "anthropic" {
		t.Errorf("Default provider should be anthropic")
	}
}

func TestManagerLoadFromFile(t *testing.T) {
	configContent := `
providers:
  default: openai
pipeline:
  extract_concurrency: 4
preprocess:
  target_dimension: 1024
`
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	m := NewManager(configPath)
	if err := m.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	cfg := m.Get()
	if cfg.Providers.Default != "openai" {
		t.Errorf("Provider: got %s, want openai", cfg.Providers.Default)
	}
	if cfg.Pipeline.ExtractConcurrency != 4 {
		t.Errorf("ExtractConcurrency: got %d, want 4", cfg.Pipeline.ExtractConcurrency)
	}
	if cfg.Preprocess.TargetDimension != 1024 {
		t.Errorf("TargetDimension: got %d, want 1024", cfg.Preprocess.TargetDimension)
	}
	// Unnamed settings keep their defaults.
	if cfg.Providers.Anthropic.MaxTokens != 4096 {
		t.Errorf("Anthropic.MaxTokens: got %d, want 4096", cfg.Providers.Anthropic.MaxTokens)
	}
}

func TestManagerLoadMissingFileUsesDefaults(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "absent.yaml"))
	if err := m.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Get().Providers.Default != "anthropic" {
		t.Errorf("Missing file should leave defaults intact")
	}
}

func TestManagerLoadRejectsMalformedYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("providers: [not a map"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	m := NewManager(configPath)
	if err := m.Load(); err == nil {
		t.Error("Load should fail on malformed yaml")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("PRISM_PROVIDER", "openai")
	t.Setenv("PRISM_TASK_TIMEOUT", "45s")
	t.Setenv("PRISM_EXTRACT_CONCURRENCY", "6")
	t.Setenv("PRISM_ADAPTIVE_EXTRACTION", "true")

	m := NewManager(filepath.Join(t.TempDir(), "absent.yaml"))
	if err := m.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	cfg := m.Get()
	if cfg.Providers.Default != "openai" {
		t.Errorf("Provider: got %s, want openai", cfg.Providers.Default)
	}
	if cfg.Pipeline.TaskTimeout != 45*time.Second {
		t.Errorf("TaskTimeout: got %v, want 45s", cfg.Pipeline.TaskTimeout)
	}
	if cfg.Pipeline.ExtractConcurrency != 6 {
		t.Errorf("ExtractConcurrency: got %d, want 6", cfg.Pipeline.ExtractConcurrency)
	}
	if !cfg.Pipeline.AdaptiveExtraction {
		t.Error("AdaptiveExtraction should be enabled")
	}
}

func TestOnChangeNotified(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "absent.yaml"))

	var seen *Config
	m.OnChange(func(cfg *Config) { seen = cfg })

	if err := m.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if seen == nil {
		t.Fatal("OnChange callback was not invoked")
	}
	if seen != m.Get() {
		t.Error("Callback should receive the installed config")
	}
}
