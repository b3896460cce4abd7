package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}

	if len(cfg.Sources.Feeds) == 0 {
		t.Error("expected feeds to be populated")
	}
	if len(cfg.Sources.Pages) == 0 {
		t.Error("expected HTML pages to be populated")
	}
	if len(cfg.Sources.Channels) != 1 || cfg.Sources.Channels[0].Username != "DeCenter" {
		t.Errorf("expected DeCenter channel, got %+v", cfg.Sources.Channels)
	}

	if cfg.LLM.Provider != "groq" {
		t.Errorf("expected provider 'groq', got %q", cfg.LLM.Provider)
	}
	if cfg.Pipeline.Retention != 72*time.Hour {
		t.Errorf("expected 72h retention, got %v", cfg.Pipeline.Retention)
	}
	if cfg.Pipeline.ProcessedRetention != 0 {
		t.Errorf("processed links should never expire by default, got %v", cfg.Pipeline.ProcessedRetention)
	}
	if cfg.Pipeline.MaxRetries != 3 || cfg.Pipeline.RetryDelay != 5*time.Second {
		t.Errorf("unexpected retry settings: %d / %v", cfg.Pipeline.MaxRetries, cfg.Pipeline.RetryDelay)
	}
	if cfg.Pipeline.LinkPlaceholder != "[ССЫЛКА]" {
		t.Errorf("unexpected placeholder %q", cfg.Pipeline.LinkPlaceholder)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("expected port 8000, got %d", cfg.Server.Port)
	}
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
llm:
  provider: ollama
  model: qwen2.5:7b
pipeline:
  publish_delay: 2s
server:
  port: 9000
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse minimal config: %v", err)
	}

	if cfg.LLM.Provider != "ollama" {
		t.Errorf("expected provider 'ollama', got %q", cfg.LLM.Provider)
	}
	if cfg.Pipeline.PublishDelay != 2*time.Second {
		t.Errorf("expected 2s publish delay, got %v", cfg.Pipeline.PublishDelay)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	// Defaults should still be set for unspecified fields
	if cfg.Pipeline.ClassifyDelay != 60*time.Second {
		t.Errorf("expected default classify delay, got %v", cfg.Pipeline.ClassifyDelay)
	}
	if cfg.Telegram.TokenEnv != "TELEGRAM_TOKEN" {
		t.Errorf("expected default token env, got %q", cfg.Telegram.TokenEnv)
	}
	if cfg.Storage.Backend != "json" {
		t.Errorf("expected json backend, got %q", cfg.Storage.Backend)
	}
}

func TestParseRejectsUnknownBackend(t *testing.T) {
	_, err := parse([]byte("storage:\n  backend: redis\n"))
	if err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if len(cfg.Sources.Feeds) == 0 {
		t.Error("expected feeds to be populated from file")
	}
}

func TestValidate(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg.Telegram.TokenEnv = "ITNEWSBOT_TEST_TOKEN"
	cfg.Telegram.ChannelIDEnv = "ITNEWSBOT_TEST_CHANNEL"
	cfg.LLM.APIKeyEnv = "ITNEWSBOT_TEST_KEY"

	err = cfg.Validate()
	if err == nil {
		t.Fatal("expected missing credentials error")
	}
	if !strings.Contains(err.Error(), "ITNEWSBOT_TEST_TOKEN") {
		t.Errorf("error should name the token variable: %v", err)
	}

	t.Setenv("ITNEWSBOT_TEST_TOKEN", "123:abc")
	t.Setenv("ITNEWSBOT_TEST_CHANNEL", "@channel")
	t.Setenv("ITNEWSBOT_TEST_KEY", "key")
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestGetDataDir(t *testing.T) {
	cfg := &Config{}
	defaultDir := cfg.GetDataDir()
	if defaultDir == "" {
		t.Error("expected non-empty default data dir")
	}

	cfg.Storage.DataDir = "/custom/path"
	if cfg.GetDataDir() != "/custom/path" {
		t.Errorf("expected '/custom/path', got %q", cfg.GetDataDir())
	}
}
