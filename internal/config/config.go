// ABOUTME: Host configuration loading for the widget binaries
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is the host-side configuration shared by the widget binaries.
type Config struct {
	Widget  WidgetConfig  `yaml:"widget" toml:"widget"`
	Storage StorageConfig `yaml:"storage" toml:"storage"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
	Preview PreviewConfig `yaml:"preview" toml:"preview"`
	Speech  SpeechConfig  `yaml:"speech" toml:"speech"`
	Backend BackendConfig `yaml:"backend" toml:"backend"`
}

// WidgetConfig describes the embedded widget instance.
type WidgetConfig struct {
	PublicKey string `yaml:"public_key" toml:"public_key"`
	APIBase   string `yaml:"api_base" toml:"api_base"` // overrides origin-based selection
	Origin    string `yaml:"origin" toml:"origin"`

	RequestTimeout    time.Duration `yaml:"-" toml:"-"`
	RequestTimeoutRaw string        `yaml:"request_timeout" toml:"request_timeout"`
}

// StorageConfig selects the durable store for cached tenant configuration.
type StorageConfig struct {
	Driver string      `yaml:"driver" toml:"driver"` // memory, sqlite or redis
	Path   string      `yaml:"path" toml:"path"`
	Redis  RedisConfig `yaml:"redis" toml:"redis"`
}

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr" toml:"addr"`
	Password string `yaml:"password" toml:"password"`
	DB       int    `yaml:"db" toml:"db"`
	Prefix   string `yaml:"prefix" toml:"prefix"`

	TTL    time.Duration `yaml:"-" toml:"-"`
	TTLRaw string        `yaml:"ttl" toml:"ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// PreviewConfig configures the HTML preview server.
type PreviewConfig struct {
	HTTPAddr       string   `yaml:"http_addr" toml:"http_addr"`
	AllowedOrigins []string `yaml:"allowed_origins" toml:"allowed_origins"`
}

// SpeechConfig configures speech recognition. Without an API key voice
// input reports itself as unsupported.
type SpeechConfig struct {
	OpenAIAPIKey string `yaml:"openai_api_key" toml:"openai_api_key"`
	BaseURL      string `yaml:"base_url" toml:"base_url"`
	Model        string `yaml:"model" toml:"model"`
}

// BackendConfig configures the development backend.
type BackendConfig struct {
	HTTPAddr     string `yaml:"http_addr" toml:"http_addr"`
	TenantsDir   string `yaml:"tenants_dir" toml:"tenants_dir"`
	OpenAIAPIKey string `yaml:"openai_api_key" toml:"openai_api_key"`
	BaseURL      string `yaml:"base_url" toml:"base_url"`
	Model        string `yaml:"model" toml:"model"`
	SystemPrompt string `yaml:"system_prompt" toml:"system_prompt"`

	DedupeTTL    time.Duration `yaml:"-" toml:"-"`
	DedupeTTLRaw string        `yaml:"dedupe_ttl" toml:"dedupe_ttl"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Widget: WidgetConfig{
			RequestTimeoutRaw: "30s",
			RequestTimeout:    30 * time.Second,
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			Path:   filepath.Join(dataDir(), "widget.db"),
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "coven-widget:",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Preview: PreviewConfig{
			HTTPAddr:       "127.0.0.1:8090",
			AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		},
		Speech: SpeechConfig{
			Model: "whisper-1",
		},
		Backend: BackendConfig{
			HTTPAddr:     "127.0.0.1:8000",
			TenantsDir:   "./tenants",
			Model:        "gpt-4o-mini",
			SystemPrompt: "You are a friendly assistant embedded in a website chat widget. Keep answers short.",
			DedupeTTLRaw: "5m",
			DedupeTTL:    5 * time.Minute,
		},
	}
}

// DefaultPath returns the config file path: COVEN_WIDGET_CONFIG if set,
// otherwise widget.yaml under the XDG config directory.
func DefaultPath() string {
	if p := os.Getenv("COVEN_WIDGET_CONFIG"); p != "" {
		return p
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "coven", "widget.yaml")
}

func dataDir() string {
	if base := os.Getenv("XDG_DATA_HOME"); base != "" {
		return filepath.Join(base, "coven")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "coven")
}

// Load reads a configuration file over Default. Files ending in .toml are
// parsed as TOML, everything else as YAML. Environment variables in the
// format ${VAR_NAME} are expanded before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads path when it exists and falls back to Default.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all configuration fields are usable.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Widget.APIBase != "" {
		u, err := url.Parse(c.Widget.APIBase)
		if err != nil {
			return fmt.Errorf("widget.api_base is not a valid URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("widget.api_base must use http or https scheme")
		}
	}

	switch c.Storage.Driver {
	case "memory":
	case "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the sqlite driver")
		}
	case "redis":
		if c.Storage.Redis.Addr == "" {
			return fmt.Errorf("storage.redis.addr is required for the redis driver")
		}
	default:
		return fmt.Errorf("storage.driver must be memory, sqlite or redis, got %q", c.Storage.Driver)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Widget.RequestTimeoutRaw != "" {
		cfg.Widget.RequestTimeout, err = time.ParseDuration(cfg.Widget.RequestTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing request_timeout %q: %w", cfg.Widget.RequestTimeoutRaw, err)
		}
	}

	if cfg.Storage.Redis.TTLRaw != "" {
		cfg.Storage.Redis.TTL, err = time.ParseDuration(cfg.Storage.Redis.TTLRaw)
		if err != nil {
			return fmt.Errorf("parsing redis ttl %q: %w", cfg.Storage.Redis.TTLRaw, err)
		}
	}

	if cfg.Backend.DedupeTTLRaw != "" {
		cfg.Backend.DedupeTTL, err = time.ParseDuration(cfg.Backend.DedupeTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing dedupe_ttl %q: %w", cfg.Backend.DedupeTTLRaw, err)
		}
	}

	return nil
}
