package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, "storage:\n  postgres:\n    url: postgres://u:p@db:5432/news?sslmode=disable\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Chat.Flow != FlowInteractive || cfg.Chat.MaxArticles != 3 {
		t.Fatalf("unexpected chat defaults: %+v", cfg.Chat)
	}
	if cfg.Chat.WordDelay != 110*time.Millisecond || cfg.Chat.FetchPhaseDelay != 7*time.Second {
		t.Fatalf("unexpected pacing defaults: %+v", cfg.Chat)
	}
	if cfg.Sources.Primary != "gnews" || cfg.Sources.Secondary != "newsapi" || cfg.Sources.MaxResults != 6 {
		t.Fatalf("unexpected source defaults: %+v", cfg.Sources)
	}
	if cfg.Session.Store != "inmemory" || cfg.Session.IdleTTL != time.Hour {
		t.Fatalf("unexpected session defaults: %+v", cfg.Session)
	}
	if cfg.Storage.Postgres.DSN() != "postgres://u:p@db:5432/news?sslmode=disable" {
		t.Fatalf("unexpected dsn %q", cfg.Storage.Postgres.DSN())
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("NEWSDIGEST_CHAT_FLOW", "Streaming")
	t.Setenv("NEWSDIGEST_STORAGE_POSTGRES_HOST", "pg")
	t.Setenv("NEWSDIGEST_STORAGE_POSTGRES_DBNAME", "news")
	t.Setenv("NEWSDIGEST_SOURCES_GNEWS_API_KEY", "k")
	path := writeConfig(t, "chat:\n  word_delay: 5ms\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Chat.Flow != FlowStreaming {
		t.Fatalf("expected streaming flow, got %q", cfg.Chat.Flow)
	}
	if cfg.Chat.WordDelay != 5*time.Millisecond {
		t.Fatalf("expected file value, got %s", cfg.Chat.WordDelay)
	}
	if cfg.Sources.GNews.APIKey != "k" {
		t.Fatalf("expected api key from env")
	}
	if got := cfg.Storage.Postgres.DSN(); got != "postgres://:@pg:5432/news?sslmode=disable" {
		t.Fatalf("unexpected dsn %q", got)
	}
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing explicit config file")
	}
}

func TestValidateErrors(t *testing.T) {
	base := func() Config {
		return Config{
			Extractor:  ExtractorConfig{Fetcher: "colly"},
			Summarizer: SummarizerConfig{BaseURL: "http://localhost:5000"},
			Chat:       ChatConfig{Flow: FlowInteractive},
			Session:    SessionConfig{Store: "inmemory", SweepCron: "*/5 * * * *"},
			Storage:    StorageConfig{Postgres: PostgresConfig{URL: "postgres://x"}},
		}
	}
	if err := base().Validate(); err != nil {
		t.Fatalf("base config should validate: %v", err)
	}

	cases := map[string]func(c *Config){
		"flow":      func(c *Config) { c.Chat.Flow = "batch" },
		"delay":     func(c *Config) { c.Chat.WordDelay = -time.Second },
		"store":     func(c *Config) { c.Session.Store = "memcached" },
		"cron":      func(c *Config) { c.Session.SweepCron = "every five minutes" },
		"fetcher":   func(c *Config) { c.Extractor.Fetcher = "curl" },
		"base_url":  func(c *Config) { c.Summarizer.BaseURL = " " },
		"postgres":  func(c *Config) { c.Storage.Postgres = PostgresConfig{Host: "db"} },
		"redis":     func(c *Config) { c.Session.Store = "redis" },
		"retries":   func(c *Config) { c.Summarizer.MaxRetries = -1 },
		"threshold": func(c *Config) { c.Extractor.MinWords = -3 },
		"articles":  func(c *Config) { c.Chat.MaxArticles = 4 },
		"results":   func(c *Config) { c.Sources.MaxResults = 7 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := base()
			mutate(&c)
			if err := c.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	c := Config{Sources: SourcesConfig{Primary: " GNews "}, Chat: ChatConfig{Flow: " STREAMING "}}.Normalize()
	if c.Sources.Primary != "gnews" || c.Chat.Flow != FlowStreaming {
		t.Fatalf("unexpected normalize result: %+v", c)
	}
	if c.Sources.MaxResults != 6 || c.Chat.MaxArticles != 3  {
		t.Fatalf("expected defaults to be filled: %+v", c)
	}
}

func TestLoadConfigRejectsDigestBounds(t *testing.T) {
	path := writeConfig(t, "storage:\n  postgres:\n    url: postgres://x\n")

	t.Setenv("NEWSDIGEST_CHAT_MAX_ARTICLES", "10")
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected max_articles above %d to be rejected", MaxDigestArticles)
	}

	t.Setenv("NEWSDIGEST_CHAT_MAX_ARTICLES", "3")
	t.Setenv("NEWSDIGEST_SOURCES_MAX_RESULTS", "50")
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected max_results above %d to be rejected", MaxSearchResults)
	}

	t.Setenv("NEWSDIGEST_SOURCES_MAX_RESULTS", "6")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("bounds themselves must load: %v", err)
	}
	if cfg.Chat.MaxArticles != 3 || cfg.Sources.MaxResults != 6 {
		t.Fatalf("unexpected bounds: %d %d", cfg.Chat.MaxArticles, cfg.Sources.MaxResults)
	}
}
