package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matheuskafuri/intelfeed/internal/cache"
)

func validConfig() *Config {
	return &Config{
		AllowedTopics: []string{"go"},
		Store:         StoreConfig{Backend: "memory"},
		AI:            AIConfig{Provider: "none"},
		Categories: []Category{
			{Name: "default", Sources: []Source{{Name: "HN", URL: "https://news.ycombinator.com/rss", Kind: "standard"}}},
		},
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := loadDefaults()
	if err != nil {
		t.Fatalf("loadDefaults: %v", err)
	}
	if len(cfg.Categories) == 0 {
		t.Error("expected default categories")
	}
	if len(cfg.AllowedTopics) == 0 {
		t.Error("expected default allowed topics")
	}
	if cfg.RefreshInterval == "" {
		t.Error("expected refresh_interval to be set")
	}
	if err := validate(cfg); err != nil {
		t.Errorf("embedded defaults do not validate: %v", err)
	}
}

func TestDefaultValues(t *testing.T) {
	cfg, err := loadDefaults()
	if err != nil {
		t.Fatal(err)
	}
	checks := []struct {
		name string
		got  time.Duration
		want time.Duration
	}{
		{"refresh", cfg.RefreshDuration(), 30 * time.Minute},
		{"topic delay", cfg.TopicDelayDuration(), time.Second},
		{"stale", cfg.StaleDuration(), time.Hour},
		{"fetch timeout", cfg.FetchTimeout(), 15 * time.Second},
		{"source deadline", cfg.SourceDeadline(), 45 * time.Second},
		{"enrich timeout", cfg.EnrichTimeout(), 15 * time.Second},
		{"retry base", cfg.RetryBaseDelay(), 5 * time.Second},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.Multiplier != 2 {
		t.Errorf("retry = %+v", cfg.Retry)
	}
	if cfg.Fetch.RequestsPerMinute != 30 || cfg.Notify.MessagesPerMinute != 20 {
		t.Errorf("rate limits = %d/%d", cfg.Fetch.RequestsPerMinute, cfg.Notify.MessagesPerMinute)
	}
	if cfg.GetCacheSize() != 10 || cfg.Enrich.Limit != 10 {
		t.Errorf("sizes = %d/%d", cfg.GetCacheSize(), cfg.Enrich.Limit)
	}
	if cfg.Enrich.Language != "Spanish" {
		t.Errorf("language = %q", cfg.Enrich.Language)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"90d", 90 * 24 * time.Hour},
		{"2d", 48 * time.Hour},
		{"45m", 45 * time.Minute},
		{"", time.Minute},
		{"invalid", time.Minute},
		{"-5m", time.Minute},
	}
	for _, tt := range tests {
		if got := parseDuration(tt.input, time.Minute); got != tt.want {
			t.Errorf("parseDuration(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestTopicCategories(t *testing.T) {
	cfg := &Config{Categories: []Category{
		{Name: "ai", Keywords: []string{"ai"}, Sources: []Source{
			{Name: "a", URL: "https://a", Kind: "monthly"},
			{Name: "b", URL: "https://b"},
		}},
	}}
	cats := cfg.TopicCategories()
	if len(cats) != 1 || len(cats[0].Sources) != 2 {
		t.Fatalf("unexpected categories: %+v", cats)
	}
	if cats[0].Sources[0].Kind != cache.KindMonthly {
		t.Errorf("kind = %q", cats[0].Sources[0].Kind)
	}
	if cats[0].Sources[1].Kind != cache.KindStandard {
		t.Errorf("empty kind should default to standard, got %q", cats[0].Sources[1].Kind)
	}
}

func TestDefaultCategoriesOrder(t *testing.T) {
	cfg, err := loadDefaults()
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, c := range cfg.Categories {
		names = append(names, c.Name)
	}
	want := "ai,programming,cybersecurity,technology,default"
	if got := strings.Join(names, ","); got != want {
		t.Errorf("category order = %s, want %s", got, want)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := `refresh_interval: 2h
allowed_topics: [golang]
categories:
  - name: default
    sources:
      - name: Test
        url: https://example.com/feed
        kind: weekly
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RefreshInterval != "2h" {
		t.Errorf("expected 2h, got %s", cfg.RefreshInterval)
	}
	if len(cfg.Categories) != 1 || cfg.Categories[0].Sources[0].Name != "Test" {
		t.Errorf("expected user categories to replace defaults, got %+v", cfg.Categories)
	}
	// Unset sections keep embedded defaults
	if cfg.Fetch.MaxItems != 15 {
		t.Errorf("expected default max_items, got %d", cfg.Fetch.MaxItems)
	}
}

func TestLoadNonexistentWritesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "sub", "config.yaml")

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Categories) == 0 {
		t.Error("expected default categories when config doesn't exist")
	}
	if _, err := os.Stat(cfgPath); err != nil {
		t.Errorf("expected defaults written to %s: %v", cfgPath, err)
	}
}

func TestLoadEnvOverlay(t *testing.T) {
	t.Setenv("INTELFEED_AI_KEY", "sk-test")
	t.Setenv("INTELFEED_AI_PROVIDER", "claude")
	t.Setenv("INTELFEED_STORE", "redis")
	t.Setenv("INTELFEED_REDIS_URL", "redis://cache:6379/1")
	t.Setenv("INTELFEED_DB", "/tmp/x.db")
	t.Setenv("INTELFEED_LOG_LEVEL", "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AI.APIKey != "sk-test" || cfg.AI.Provider != "claude" {
		t.Errorf("ai = %+v", cfg.AI)
	}
	if cfg.Store.Backend != "redis" || cfg.Store.RedisURL != "redis://cache:6379/1" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.DatabasePath() != "/tmp/x.db" {
		t.Errorf("db path = %s", cfg.DatabasePath())
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %s", cfg.Log.Level)
	}
}

func TestGetBriefSize(t *testing.T) {
	cfg := &Config{}
	if got := cfg.GetBriefSize(); got != 5 {
		t.Errorf("expected default brief size 5, got %d", got)
	}
	cfg.BriefSize = 10
	if got := cfg.GetBriefSize(); got != 10 {
		t.Errorf("expected brief size 10, got %d", got)
	}
}

func TestAIEnabled(t *testing.T) {
	for provider, want := range map[string]bool{"": false, "none": false, "ollama": true, "claude": true} {
		cfg := &Config{AI: AIConfig{Provider: provider}}
		if got := cfg.AIEnabled(); got != want {
			t.Errorf("AIEnabled(%q) = %v, want %v", provider, got, want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"accepts http", func(c *Config) { c.Categories[0].Sources[0].URL = "http://example.com/feed" }, ""},
		{"no allowed topics", func(c *Config) { c.AllowedTopics = nil }, "allowed_topics"},
		{"missing url", func(c *Config) { c.Categories[0].Sources[0].URL = "" }, "url is required"},
		{"file scheme", func(c *Config) { c.Categories[0].Sources[0].URL = "file:///etc/passwd" }, "scheme"},
		{"unknown kind", func(c *Config) { c.Categories[0].Sources[0].Kind = "daily" }, "unknown kind"},
		{"no sources", func(c *Config) { c.Categories[0].Sources = nil }, "at least one source"},
		{"no default", func(c *Config) { c.Categories[0].Name = "ai" }, "default"},
		{"bad backend", func(c *Config) { c.Store.Backend = "mongo" }, "store backend"},
		{"bad provider", func(c *Config) { c.AI.Provider = "gemini" }, "AI provider"},
		{"bad level", func(c *Config) { c.Log.Level = "trace" }, "log level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
