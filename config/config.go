package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the digest service
type Config struct {
	General    GeneralConfig    `mapstructure:"general"`
	Server     ServerConfig     `mapstructure:"server"`
	Sources    SourcesConfig    `mapstructure:"sources"`
	Extractor  ExtractorConfig  `mapstructure:"extractor"`
	Summarizer SummarizerConfig `mapstructure:"summarizer"`
	Chat       ChatConfig       `mapstructure:"chat"`
	Session    SessionConfig    `mapstructure:"session"`
	Storage    StorageConfig    `mapstructure:"storage"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"` // json or text
	LogFile   string `mapstructure:"log_file"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	StaticDir       string        `mapstructure:"static_dir"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
	MigrateOnStart  bool          `mapstructure:"migrate_on_start"`
}

// SourcesConfig selects and configures the article providers
type SourcesConfig struct {
	Primary    string          `mapstructure:"primary"`
	Secondary  string          `mapstructure:"secondary"`
	MaxResults int             `mapstructure:"max_results"`
	Timeout    time.Duration   `mapstructure:"timeout"`
	GNews      GNewsConfig     `mapstructure:"gnews"`
	NewsAPI    NewsAPIConfig   `mapstructure:"newsapi"`
	WebSearch  WebSearchConfig `mapstructure:"web_search"`
}

// GNewsConfig contains GNews settings
type GNewsConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
}

// NewsAPIConfig contains NewsAPI settings
type NewsAPIConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
}

// WebSearchConfig contains web search settings
type WebSearchConfig struct {
	BraveAPIKey  string `mapstructure:"brave_api_key"`
	SerperAPIKey string `mapstructure:"serper_api_key"`
}

// ExtractorConfig controls page fetching and text cleaning
type ExtractorConfig struct {
	Fetcher           string        `mapstructure:"fetcher"` // colly or chromedp
	Timeout           time.Duration `mapstructure:"timeout"`
	UserAgent         string        `mapstructure:"user_agent"`
	MinParagraphChars int           `mapstructure:"min_paragraph_chars"`
	MaxParagraphs     int           `mapstructure:"max_paragraphs"`
	MinContentChars   int           `mapstructure:"min_content_chars"`
	MinWords          int           `mapstructure:"min_words"`
}

// SummarizerConfig points at the remote summarize/reduce_bias service
type SummarizerConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	Backoff    time.Duration `mapstructure:"backoff"`
	MinInput   int           `mapstructure:"min_input_chars"`
	Breaker    BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig configures the summarizer circuit breaker
type BreakerConfig struct {
	MaxFailures uint32        `mapstructure:"max_failures"`
	OpenTimeout time.Duration `mapstructure:"open_timeout"`
}

// ChatConfig controls the conversation flow and presentation pacing
type ChatConfig struct {
	Flow              string        `mapstructure:"flow"` // interactive or streaming
	MaxArticles       int           `mapstructure:"max_articles"`
	WordDelay         time.Duration `mapstructure:"word_delay"`
	FetchPhaseDelay   time.Duration `mapstructure:"fetch_phase_delay"`
	SummaryPhaseDelay time.Duration `mapstructure:"summary_phase_delay"`
}

// SessionConfig controls conversation state lifetime
type SessionConfig struct {
	Store     string        `mapstructure:"store"` // inmemory or redis
	IdleTTL   time.Duration `mapstructure:"idle_ttl"`
	SweepCron string        `mapstructure:"sweep_cron"`
	LockTTL   time.Duration `mapstructure:"lock_ttl"`
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

const (
	FlowInteractive = "interactive"
	FlowStreaming   = "streaming"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.log_format", "json")

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.static_dir", "public")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.migrations_dir", "file://migrations")
	v.SetDefault("server.migrate_on_start", true)

	v.SetDefault("sources.primary", "gnews")
	v.SetDefault("sources.secondary", "newsapi")
	v.SetDefault("sources.max_results", 6)
	v.SetDefault("sources.timeout", 10*time.Second)
	v.SetDefault("sources.gnews.endpoint", "https://gnews.io/api/v4/search")
	v.SetDefault("sources.newsapi.endpoint", "https://newsapi.org/v2/everything")

	v.SetDefault("extractor.fetcher", "colly")
	v.SetDefault("extractor.timeout", 15*time.Second)
	v.SetDefault("extractor.user_agent", "newsdigest/1.0 (+https://github.com/mohammad-safakhou/newsdigest)")
	v.SetDefault("extractor.min_paragraph_chars", 20)
	v.SetDefault("extractor.max_paragraphs", 30)
	v.SetDefault("extractor.min_content_chars", 100)
	v.SetDefault("extractor.min_words", 15)

	v.SetDefault("summarizer.base_url", "http://127.0.0.1:5000")
	v.SetDefault("summarizer.timeout", 60*time.Second)
	v.SetDefault("summarizer.max_retries", 1)
	v.SetDefault("summarizer.backoff", 300*time.Millisecond)
	v.SetDefault("summarizer.min_input_chars", 50)
	v.SetDefault("summarizer.breaker.max_failures", 5)
	v.SetDefault("summarizer.breaker.open_timeout", 30*time.Second)

	v.SetDefault("chat.flow", FlowInteractive)
	v.SetDefault("chat.max_articles", 3)
	v.SetDefault("chat.word_delay", 110*time.Millisecond)
	v.SetDefault("chat.fetch_phase_delay", 7*time.Second)
	v.SetDefault("chat.summary_phase_delay", 10*time.Second)

	v.SetDefault("session.store", "inmemory")
	v.SetDefault("session.idle_ttl", time.Hour)
	v.SetDefault("session.sweep_cron", "*/5 * * * *")
	v.SetDefault("session.lock_ttl", 5*time.Minute)

	// empty defaults make these keys visible to AutomaticEnv during Unmarshal
	for _, k := range []string{
		"general.log_file",
		"sources.gnews.api_key", "sources.newsapi.api_key",
		"sources.web_search.brave_api_key", "sources.web_search.serper_api_key",
		"storage.redis.host", "storage.redis.password",
		"storage.postgres.url", "storage.postgres.host", "storage.postgres.user",
		"storage.postgres.password", "storage.postgres.dbname",
	} {
		v.SetDefault(k, "")
	}
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.port", "6379")
	v.SetDefault("storage.redis.timeout", 5*time.Second)
	v.SetDefault("storage.postgres.port", "5432")
	v.SetDefault("storage.postgres.sslmode", "disable")
	v.SetDefault("storage.postgres.timeout", 5*time.Second)
}

// LoadConfig reads configuration from path (or the default search paths when
// path is empty), a local .env file and NEWSDIGEST_* environment variables.
// A missing config file is not an error; defaults and env still apply.
func LoadConfig(path string) (*Config, error) {
	// .env is optional; a missing file is the common case in containers
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path == "" {
		v.SetConfigName("config")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if exe, err := os.Executable(); err == nil {
			exeDir := filepath.Dir(exe)
			v.AddConfigPath(exeDir)
			v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
		}
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("NEWSDIGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize applies defaults for values that were explicitly zeroed.
func (c Config) Normalize() Config {
	c.Sources.Primary = strings.ToLower(strings.TrimSpace(c.Sources.Primary))
	c.Sources.Secondary = strings.ToLower(strings.TrimSpace(c.Sources.Secondary))
	if c.Sources.MaxResults <= 0 {
		c.Sources.MaxResults = 6
	}
	if c.Chat.MaxArticles <= 0 {
		c.Chat.MaxArticles = 3
	}
	c.Chat.Flow = strings.ToLower(strings.TrimSpace(c.Chat.Flow))
	if c.Chat.Flow == "" {
		c.Chat.Flow = FlowInteractive
	}
	if c.Extractor.MaxParagraphs <= 0 {
		c.Extractor.MaxParagraphs = 30
	}
	if c.Session.IdleTTL <= 0 {
		c.Session.IdleTTL = time.Hour
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Storage.Postgres.Timeout <= 0 {
		c.Storage.Postgres.Timeout = 5 * time.Second
	}
	if c.Storage.Redis.Timeout <= 0 {
		c.Storage.Redis.Timeout = 5 * time.Second
	}
	return c
}

// Upper bounds of a digest: candidates requested per search and articles kept.
const (
	MaxSearchResults  = 6
	MaxDigestArticles = 3
)

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Sources.Validate(); err != nil {
		return err
	}
	if err := c.Chat.Validate(); err != nil {
		return err
	}
	if err := c.Session.Validate(); err != nil {
		return err
	}
	if err := c.Extractor.Validate(); err != nil {
		return err
	}
	if err := c.Summarizer.Validate(); err != nil {
		return err
	}
	if c.Session.Store == "redis" {
		if err := c.Storage.Redis.Validate(); err != nil {
			return err
		}
	}
	return c.Storage.Postgres.Validate()
}

func (s SourcesConfig) Validate() error {
	if s.MaxResults > MaxSearchResults {
		return fmt.Errorf("sources.max_results cannot exceed %d, got %d", MaxSearchResults, s.MaxResults)
	}
	return nil
}

func (c ChatConfig) Validate() error {
	if c.MaxArticles > MaxDigestArticles {
		return fmt.Errorf("chat.max_articles cannot exceed %d, got %d", MaxDigestArticles, c.MaxArticles)
	}
	switch c.Flow {
	case FlowInteractive, FlowStreaming:
	default:
		return fmt.Errorf("chat.flow must be %q or %q, got %q", FlowInteractive, FlowStreaming, c.Flow)
	}
	if c.WordDelay < 0 || c.FetchPhaseDelay < 0 || c.SummaryPhaseDelay < 0 {
		return fmt.Errorf("chat delays cannot be negative")
	}
	return nil
}

func (s SessionConfig) Validate() error {
	switch s.Store {
	case "inmemory", "redis":
	default:
		return fmt.Errorf("session.store must be inmemory or redis, got %q", s.Store)
	}
	if strings.TrimSpace(s.SweepCron) != "" {
		if _, err := cronexpr.Parse(s.SweepCron); err != nil {
			return fmt.Errorf("session.sweep_cron: %w", err)
		}
	}
	return nil
}

func (e ExtractorConfig) Validate() error {
	switch e.Fetcher {
	case "colly", "chromedp":
	default:
		return fmt.Errorf("extractor.fetcher must be colly or chromedp, got %q", e.Fetcher)
	}
	if e.MinParagraphChars < 0 || e.MinContentChars < 0 || e.MinWords < 0 {
		return fmt.Errorf("extractor thresholds cannot be negative")
	}
	return nil
}

func (s SummarizerConfig) Validate() error {
	if strings.TrimSpace(s.BaseURL) == "" {
		return fmt.Errorf("summarizer.base_url required")
	}
	if s.MaxRetries < 0 {
		return fmt.Errorf("summarizer.max_retries cannot be negative")
	}
	return nil
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

// Addr returns host:port.
func (r RedisConfig) Addr() string { return fmt.Sprintf("%s:%s", r.Host, r.Port) }

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN builds the Postgres connection string.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}
