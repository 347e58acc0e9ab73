package config

import (
	"embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/matheuskafuri/intelfeed/internal/cache"
	"github.com/matheuskafuri/intelfeed/internal/topic"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

type Source struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
	Kind string `yaml:"kind"`
}

type Category struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Sources  []Source `yaml:"sources"`
}

type AIConfig struct {
	Provider  string `yaml:"provider"` // "ollama", "claude", "openai" or "none"
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	DeepModel string `yaml:"deep_model"`
}

type FetchConfig struct {
	Timeout           string `yaml:"timeout"`
	SourceDeadline    string `yaml:"source_deadline"`
	MaxItems          int    `yaml:"max_items"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
	Concurrency       int    `yaml:"concurrency"`
	UserAgent         string `yaml:"user_agent"`
}

type RetryConfig struct {
	MaxAttempts int     `yaml:"max_attempts"`
	BaseDelay   string  `yaml:"base_delay"`
	Multiplier  float64 `yaml:"multiplier"`
	MaxDelay    string  `yaml:"max_delay"`
}

type EnrichConfig struct {
	Limit    int    `yaml:"limit"`
	Timeout  string `yaml:"timeout"`
	Language string `yaml:"language"`
}

type StoreConfig struct {
	Backend  string `yaml:"backend"` // "sqlite", "memory" or "redis"
	Path     string `yaml:"path"`
	RedisURL string `yaml:"redis_url"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type NotifyConfig struct {
	MessagesPerMinute int `yaml:"messages_per_minute"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type Config struct {
	RefreshInterval string       `yaml:"refresh_interval"`
	TopicDelay      string       `yaml:"topic_delay"`
	StaleAfter      string       `yaml:"stale_after"`
	CacheSize       int          `yaml:"cache_size"`
	BriefSize       int          `yaml:"brief_size,omitempty"`
	Log             LogConfig    `yaml:"log"`
	Store           StoreConfig  `yaml:"store"`
	Fetch           FetchConfig  `yaml:"fetch"`
	Retry           RetryConfig  `yaml:"retry"`
	Enrich          EnrichConfig `yaml:"enrich"`
	AI              AIConfig     `yaml:"ai"`
	Server          ServerConfig `yaml:"server"`
	Notify          NotifyConfig `yaml:"notify"`
	AllowedTopics   []string     `yaml:"allowed_topics"`
	Categories      []Category   `yaml:"categories"`
}

// envOverlay holds the settings that may come from the environment.
type envOverlay struct {
	AIKey      string `env:"INTELFEED_AI_KEY"`
	AIProvider string `env:"INTELFEED_AI_PROVIDER"`
	DBPath     string `env:"INTELFEED_DB"`
	RedisURL   string `env:"INTELFEED_REDIS_URL"`
	Store      string `env:"INTELFEED_STORE"`
	LogLevel   string `env:"INTELFEED_LOG_LEVEL"`
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	// Support "Nd" day syntax
	if len(s) > 1 && s[len(s)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err == nil && days > 0 {
			return time.Duration(days) * 24 * time.Hour
		}
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func (c *Config) RefreshDuration() time.Duration {
	return parseDuration(c.RefreshInterval, 30*time.Minute)
}

func (c *Config) TopicDelayDuration() time.Duration {
	return parseDuration(c.TopicDelay, time.Second)
}

func (c *Config) StaleDuration() time.Duration {
	return parseDuration(c.StaleAfter, cache.DefaultStaleAfter)
}

func (c *Config) FetchTimeout() time.Duration {
	return parseDuration(c.Fetch.Timeout, 15*time.Second)
}

// SourceDeadline bounds one source's fetch including retries.
func (c *Config) SourceDeadline() time.Duration {
	return parseDuration(c.Fetch.SourceDeadline, 45*time.Second)
}

func (c *Config) EnrichTimeout() time.Duration {
	return parseDuration(c.Enrich.Timeout, 15*time.Second)
}

func (c *Config) RetryBaseDelay() time.Duration {
	return parseDuration(c.Retry.BaseDelay, 5*time.Second)
}

func (c *Config) RetryMaxDelay() time.Duration {
	return parseDuration(c.Retry.MaxDelay, time.Minute)
}

// GetCacheSize returns the per-topic item limit, defaulting to 10.
func (c *Config) GetCacheSize() int {
	if c.CacheSize <= 0 {
		return cache.DefaultSize
	}
	return c.CacheSize
}

// GetBriefSize returns the briefing size, defaulting to 5.
func (c *Config) GetBriefSize() int {
	if c.BriefSize <= 0 {
		return 5
	}
	return c.BriefSize
}

// AIEnabled reports whether enrichment has a provider to call.
func (c *Config) AIEnabled() bool {
	return c.AI.Provider != "" && c.AI.Provider != "none"
}

// DatabasePath returns the configured sqlite path or the XDG default.
func (c *Config) DatabasePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	return DataPath()
}

// TopicCategories converts the configured categories for the resolver.
func (c *Config) TopicCategories() []topic.Category {
	out := make([]topic.Category, 0, len(c.Categories))
	for _, cat := range c.Categories {
		tc := topic.Category{Name: cat.Name, Keywords: cat.Keywords}
		for _, s := range cat.Sources {
			kind := cache.SourceKind(s.Kind)
			if kind == "" {
				kind = cache.KindStandard
			}
			tc.Sources = append(tc.Sources, topic.Source{Name: s.Name, URL: s.URL, Kind: kind})
		}
		out = append(out, tc)
	}
	return out
}

func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "intelfeed", "config.yaml")
}

func DataPath() string {
	return filepath.Join(xdg.DataHome, "intelfeed", "intelfeed.db")
}

func loadDefaults() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config: %w", err)
	}
	return &cfg, nil
}

// Load reads the config file at path (or the XDG default), layering it over
// the embedded defaults, then applies the environment overlay.
func Load(path string) (*Config, error) {
	cfg, err := loadDefaults()
	if err != nil {
		return nil, err
	}

	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Write defaults to config path on first run; failure is non-fatal.
		_ = writeDefaults(path)
	case err != nil:
		return nil, fmt.Errorf("reading config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	var o envOverlay
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if o.AIKey != "" {
		cfg.AI.APIKey = o.AIKey
	}
	if o.AIProvider != "" {
		cfg.AI.Provider = o.AIProvider
	}
	if o.DBPath != "" {
		cfg.Store.Path = o.DBPath
	}
	if o.RedisURL != "" {
		cfg.Store.RedisURL = o.RedisURL
	}
	if o.Store != "" {
		cfg.Store.Backend = o.Store
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	return nil
}

func writeDefaults(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, _ := defaultConfigFS.ReadFile("default_config.yaml")
	return os.WriteFile(path, data, 0o644)
}

func validate(cfg *Config) error {
	if len(cfg.AllowedTopics) == 0 {
		return fmt.Errorf("allowed_topics must not be empty")
	}

	hasDefault := false
	for _, c := range cfg.Categories {
		if c.Name == "" {
			return fmt.Errorf("category name is required")
		}
		if c.Name == topic.DefaultCategory {
			hasDefault = true
		}
		if len(c.Sources) == 0 {
			return fmt.Errorf("category %q: at least one source is required", c.Name)
		}
		for i, s := range c.Sources {
			if s.URL == "" {
				return fmt.Errorf("category %q source %d: url is required", c.Name, i)
			}
			u, err := url.Parse(s.URL)
			if err != nil {
				return fmt.Errorf("category %q source %q: invalid url: %w", c.Name, s.Name, err)
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return fmt.Errorf("category %q source %q: url scheme must be http or https, got %q", c.Name, s.Name, u.Scheme)
			}
			if s.Kind != "" && !cache.SourceKind(s.Kind).Valid() {
				return fmt.Errorf("category %q source %q: unknown kind %q (valid: standard, weekly, monthly)", c.Name, s.Name, s.Kind)
			}
		}
	}
	if !hasDefault {
		return fmt.Errorf("a %q category is required", topic.DefaultCategory)
	}

	switch cfg.Store.Backend {
	case "sqlite", "memory", "redis":
	default:
		return fmt.Errorf("unknown store backend %q (valid: sqlite, memory, redis)", cfg.Store.Backend)
	}

	switch strings.ToLower(cfg.AI.Provider) {
	case "ollama", "claude", "openai", "none", "":
	default:
		return fmt.Errorf("unknown AI provider %q (valid: ollama, claude, openai, none)", cfg.AI.Provider)
	}

	switch cfg.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", cfg.Log.Level)
	}
	return nil
}
