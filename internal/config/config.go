// Package config loads the layered configuration: environment overrides
// over an on-disk YAML file over built-in defaults. A missing file is not
// an error — a default template is written and the process continues.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the immutable snapshot of recognized options, loaded once at
// startup.
type Config struct {
	MQTTServer       string `yaml:"mqtt_server"`
	MQTTPort         int    `yaml:"mqtt_port"`
	MQTTUseSecure    bool   `yaml:"mqtt_use_secure_client"`
	MQTTClientID     string `yaml:"mqtt_client_id"`
	MQTTUsername     string `yaml:"mqtt_username"`
	MQTTPassword     string `yaml:"mqtt_password"`

	MuteDuration time.Duration `yaml:"mute_duration_seconds"`
	BuzzerEnabled bool         `yaml:"buzzer_enabled"`

	SupabaseURL     string `yaml:"supabase_url"`
	SupabaseAnonKey string `yaml:"supabase_anon_key"`
	SupabaseDBDSN   string `yaml:"supabase_db_dsn"`
	DBWatchChannel  string `yaml:"db_watch_channel"`

	APIAddr  string `yaml:"api_addr"`
	LogLevel string `yaml:"log_level"`
}

// HasDBCredentials reports whether enough configuration is present to
// start the database source loop. Per §4.4, the loop is not started when
// SupabaseURL is absent.
func (c *Config) HasDBCredentials() bool {
	return strings.TrimSpace(c.SupabaseURL) != ""
}

// DefaultConfig returns the built-in defaults from the recognized-keys table.
func DefaultConfig() *Config {
	return &Config{
		MQTTPort:       8883,
		MQTTUseSecure:  true,
		MQTTClientID:   "hmi-cli",
		MuteDuration:   600 * time.Second,
		BuzzerEnabled:  true,
		DBWatchChannel: "refrigerator_status",
		APIAddr:        ":8090",
		LogLevel:       "info",
	}
}

// Load reads path (YAML), falling back to defaults for any key the file
// doesn't set. If the file is absent, it is written with the default
// template and DefaultConfig() is returned — a missing file is not an
// error, per §6's "missing file => write default template and continue".
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if writeErr := Save(path, cfg); writeErr != nil {
			return cfg, fmt.Errorf("config: writing default template: %w", writeErr)
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if len(strings.TrimSpace(string(data))) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return cfg, fmt.Errorf("config: malformed yaml in %s: %w", path, err)
		}
	}
	applyDefaults(cfg)
	return cfg, nil
}

// Save writes cfg to path as YAML, creating parent directories as needed.
func Save(path string, cfg *Config) error {
	if path == "" || cfg == nil {
		return fmt.Errorf("config: save requires a path and a config")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: creating %s: %w", dir, err)
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshaling: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func applyDefaults(cfg *Config) {
	if cfg.MQTTPort <= 0 {
		cfg.MQTTPort = 8883
	}
	if cfg.MQTTClientID == "" {
		cfg.MQTTClientID = "hmi-cli"
	}
	if cfg.MuteDuration <= 0 {
		cfg.MuteDuration = 600 * time.Second
	}
	if cfg.DBWatchChannel == "" {
		cfg.DBWatchChannel = "refrigerator_status"
	}
	if cfg.APIAddr == "" {
		cfg.APIAddr = ":8090"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.SupabaseDBDSN == "" && cfg.SupabaseURL != "" {
		cfg.SupabaseDBDSN = deriveDSN(cfg.SupabaseURL)
	}
}

// deriveDSN turns a Supabase project URL into a best-effort direct
// Postgres DSN when SUPABASE_DB_DSN isn't set explicitly. Callers that
// need the pooled REST endpoint instead should set SUPABASE_DB_DSN.
func deriveDSN(url string) string {
	host := strings.TrimPrefix(url, "https://")
	host = strings.TrimPrefix(host, "http://")
	host = strings.TrimSuffix(host, "/")
	if host == "" {
		return ""
	}
	return fmt.Sprintf("postgres://postgres@db.%s:5432/postgres", host)
}

// ApplyEnv overrides cfg's fields from the process environment. This is
// the top layer of the env > file > defaults loader; it mutates cfg in
// place and is always applied last.
func ApplyEnv(cfg *Config) {
	cfg.MQTTServer = getEnv("MQTT_SERVER", cfg.MQTTServer)
	cfg.MQTTPort = getEnvInt("MQTT_PORT", cfg.MQTTPort)
	cfg.MQTTUseSecure = getEnvBool("MQTT_USE_SECURE_CLIENT", cfg.MQTTUseSecure)
	cfg.MQTTClientID = getEnv("MQTT_CLIENT_ID", cfg.MQTTClientID)
	cfg.MQTTUsername = getEnv("MQTT_USERNAME", cfg.MQTTUsername)
	cfg.MQTTPassword = getEnv("MQTT_PASSWORD", cfg.MQTTPassword)

	cfg.MuteDuration = getEnvSeconds("MUTE_DURATION", cfg.MuteDuration)
	cfg.BuzzerEnabled = getEnvBool("BUZZER_ENABLED", cfg.BuzzerEnabled)

	cfg.SupabaseURL = getEnv("SUPABASE_URL", cfg.SupabaseURL)
	cfg.SupabaseAnonKey = getEnv("SUPABASE_ANON_KEY", cfg.SupabaseAnonKey)
	cfg.SupabaseDBDSN = getEnv("SUPABASE_DB_DSN", cfg.SupabaseDBDSN)
	cfg.DBWatchChannel = getEnv("DB_WATCH_CHANNEL", cfg.DBWatchChannel)

	cfg.APIAddr = getEnv("API_ADDR", cfg.APIAddr)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	applyDefaults(cfg)
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvSeconds(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return time.Duration(n) * time.Second
}

// ResolvePath implements §6's config path resolution order: the
// CONFIG_PATH environment variable, then the platform application config
// directory.
func ResolvePath() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "coldwatch", "config.yaml")
}

// Manager hot-holds the active Config behind an atomic.Value, following
// the teacher's config.Manager shape, so the API server and source loops
// always observe a consistent snapshot without locking.
type Manager struct {
	path string
	cfg  atomic.Value
}

// NewManager loads path (via Load) and applies environment overrides.
func NewManager(path string) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	ApplyEnv(cfg)
	m := &Manager{path: path}
	m.cfg.Store(cfg)
	return m, nil
}

// Get returns the current config snapshot.
func (m *Manager) Get() *Config {
	if v := m.cfg.Load(); v != nil {
		return v.(*Config)
	}
	return DefaultConfig()
}

// Path returns the resolved config file path.
func (m *Manager) Path() string {
	return m.path
}
