package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Anthropic.Model != "claude-3-5-haiku-20241022" {
		t.Errorf("expected default model 'claude-3-5-haiku-20241022', got %q", cfg.Anthropic.Model)
	}

	if cfg.Anthropic.RequestTimeout != 30*time.Second {
		t.Errorf("expected request timeout 30s, got %v", cfg.Anthropic.RequestTimeout)
	}

	if len(cfg.Anthropic.FallbackModels) == 0 {
		t.Error("expected at least one fallback model")
	}

	if cfg.Server.Addr != ":8484" {
		t.Errorf("expected server addr ':8484', got %q", cfg.Server.Addr)
	}

	if cfg.Log.Level != "info" {
		t.Errorf("expected log level 'info', got %q", cfg.Log.Level)
	}
}

func TestLoadFromPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
anthropic:
  api_key: test-key
  model: claude-sonnet-4-20250514
  request_timeout: 15s
server:
  addr: ":9999"
database:
  path: /tmp/test.db
log:
  level: debug
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Anthropic.APIKey != "test-key" {
		t.Errorf("api key = %q, want %q", cfg.Anthropic.APIKey, "test-key")
	}
	if cfg.Anthropic.Model != "claude-sonnet-4-20250514" {
		t.Errorf("model = %q, want %q", cfg.Anthropic.Model, "claude-sonnet-4-20250514")
	}
	if cfg.Anthropic.RequestTimeout != 15*time.Second {
		t.Errorf("request timeout = %v, want 15s", cfg.Anthropic.RequestTimeout)
	}
	if cfg.Server.Addr != ":9999" {
		t.Errorf("server addr = %q, want %q", cfg.Server.Addr, ":9999")
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("database path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q, want %q", cfg.Log.Level, "debug")
	}
}

func TestLocation(t *testing.T) {
	cfg := &Config{}
	if cfg.Location() != time.Local {
		t.Error("empty timezone should resolve to the process zone")
	}

	cfg.Timezone = "America/New_York"
	if got := cfg.Location().String(); got != "America/New_York" {
		t.Errorf("location = %q, want America/New_York", got)
	}

	cfg.Timezone = "Not/AZone"
	if cfg.Location() != time.Local {
		t.Error("invalid timezone should fall back to the process zone")
	}
}

func TestLoadFromPath_ExpandsEnv(t *testing.T) {
	t.Setenv("PLANORA_TEST_KEY", "expanded-key")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
anthropic:
  api_key: ${PLANORA_TEST_KEY}
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Anthropic.APIKey != "expanded-key" {
		t.Errorf("api key = %q, want %q", cfg.Anthropic.APIKey, "expanded-key")
	}
}

func TestLoadFromPath_MissingFile(t *testing.T) {
	_, err := LoadFromPath("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoadFromPath_Defaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configPath, []byte("{}\n"), 0644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Anthropic.Model == "" {
		t.Error("expected default model to be set")
	}
	if cfg.Server.Addr == "" {
		t.Error("expected default server addr to be set")
	}
}
