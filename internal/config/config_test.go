package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileWritesDefaultTemplate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MQTTPort != 8883 {
		t.Fatalf("expected default mqtt port 8883, got %d", cfg.MQTTPort)
	}
	if _, statErr := os.Stat(path); statErr != nil {
		t.Fatalf("expected a default template to be written at %s: %v", path, statErr)
	}
}

func TestLoadPartialFileFillsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("mqtt_server: broker.example.com\n"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MQTTServer != "broker.example.com" {
		t.Fatalf("expected the file's value to be preserved, got %q", cfg.MQTTServer)
	}
	if cfg.APIAddr != ":8090" {
		t.Fatalf("expected default api_addr to fill in, got %q", cfg.APIAddr)
	}
}

func TestApplyEnvOverridesFileValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MQTTServer = "from-file.example.com"

	t.Setenv("MQTT_SERVER", "from-env.example.com")
	t.Setenv("MUTE_DURATION", "120")
	t.Setenv("BUZZER_ENABLED", "false")

	ApplyEnv(cfg)

	if cfg.MQTTServer != "from-env.example.com" {
		t.Fatalf("expected env to override file value, got %q", cfg.MQTTServer)
	}
	if cfg.MuteDuration != 120*time.Second {
		t.Fatalf("expected mute duration 120s from env, got %v", cfg.MuteDuration)
	}
	if cfg.BuzzerEnabled {
		t.Fatalf("expected buzzer_enabled false from env")
	}
}

func TestApplyEnvLeavesUnsetKeysAlone(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MQTTServer = "untouched.example.com"
	ApplyEnv(cfg)
	if cfg.MQTTServer != "untouched.example.com" {
		t.Fatalf("expected value to survive when no env var is set, got %q", cfg.MQTTServer)
	}
}

func TestHasDBCredentials(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.HasDBCredentials() {
		t.Fatalf("expected no db credentials by default")
	}
	cfg.SupabaseURL = "https://abc.supabase.co"
	if !cfg.HasDBCredentials() {
		t.Fatalf("expected db credentials once supabase_url is set")
	}
}

func TestDeriveDSNFromSupabaseURL(t *testing.T) {
	dsn := deriveDSN("https://abc123.supabase.co")
	if dsn != "postgres://postgres@db.abc123.supabase.co:5432/postgres" {
		t.Fatalf("unexpected derived dsn: %q", dsn)
	}
}

func TestDeriveDSNEmptyInput(t *testing.T) {
	if dsn := deriveDSN(""); dsn != "" {
		t.Fatalf("expected empty dsn for empty url, got %q", dsn)
	}
}

func TestManagerGetReturnsLoadedConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	t.Setenv("MQTT_SERVER", "")

	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Path() != path {
		t.Fatalf("expected path to round-trip, got %q", m.Path())
	}
	if m.Get().APIAddr != ":8090" {
		t.Fatalf("expected default api_addr from manager, got %q", m.Get().APIAddr)
	}
}

func TestResolvePathPrefersConfigPathEnv(t *testing.T) {
	t.Setenv("CONFIG_PATH", "/tmp/explicit-config.yaml")
	if got := ResolvePath(); got != "/tmp/explicit-config.yaml" {
		t.Fatalf("expected CONFIG_PATH to take priority, got %q", got)
	}
}
