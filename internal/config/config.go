// Package config provides application configuration with multi-source
// priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.siteguide/config.yaml)
//  3. Default values
//
// Validation is fail-fast: Load returns an error before any server or crawl
// work starts, so a missing API key or a nonsensical chunk geometry never
// surfaces as a per-request failure.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Sentinel errors for Go-idiomatic checks with errors.Is.
var (
	// ErrMissingAPIKey indicates the generation-service API key is not set.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidSeed indicates a crawl seed URL that is absent or malformed.
	ErrInvalidSeed = errors.New("invalid crawl seed")

	// ErrInvalidChunking indicates chunk size/overlap values that cannot
	// make progress.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrInvalidBudget indicates a non-positive crawl page budget.
	ErrInvalidBudget = errors.New("invalid page budget")

	// ErrInvalidRetrieval indicates retrieval thresholds out of range.
	ErrInvalidRetrieval = errors.New("invalid retrieval configuration")

	// ErrInvalidPostgres indicates incomplete PostgreSQL settings.
	ErrInvalidPostgres = errors.New("invalid PostgreSQL configuration")
)

// CrawlConfig controls the fallback crawl.
type CrawlConfig struct {
	// Seeds are the authoritative sites crawled when the index has nothing
	// relevant. At least one is required.
	Seeds []string `mapstructure:"seeds"`

	// PageBudget caps visited pages per seed per crawl run.
	PageBudget int `mapstructure:"page_budget"`

	// Workers is the number of concurrent page fetches (1 = sequential).
	Workers int `mapstructure:"workers"`

	// RequestsPerSecond throttles page fetches. Zero disables throttling.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`

	// NavigationTimeoutMs bounds a single page navigation.
	NavigationTimeoutMs int `mapstructure:"navigation_timeout_ms"`

	// CacheTTLMinutes is how long a crawl result is reused for the same
	// seed set before it is considered stale. Zero disables the cache.
	CacheTTLMinutes int `mapstructure:"cache_ttl_minutes"`
}

// ChunkConfig controls passage geometry; shared by ingestion and fallback.
type ChunkConfig struct {
	Size      int `mapstructure:"size"`
	Overlap   int `mapstructure:"overlap"`
	MinLength int `mapstructure:"min_length"`
}

// RetrievalConfig controls scoring and the fallback decision.
type RetrievalConfig struct {
	// MinTermLen discards question tokens at or below this length.
	MinTermLen int `mapstructure:"min_term_len"`

	// MinScore is the relevance threshold for admitting a passage.
	MinScore int `mapstructure:"min_score"`

	// MinRelevant is the explicit fallback trigger: the crawl runs when
	// fewer than this many passages pass the score filter.
	MinRelevant int `mapstructure:"min_relevant"`

	// TopK is how many index results to fetch per query.
	TopK int `mapstructure:"top_k"`

	// AdmitLongerThan admits passages above this content length even when
	// unscored. Zero disables the override.
	AdmitLongerThan int `mapstructure:"admit_longer_than"`
}

// RetryConfig controls backoff and pacing for generation and embedding calls.
type RetryConfig struct {
	MaxRetries        int `mapstructure:"max_retries"`
	InitialIntervalMs int `mapstructure:"initial_interval_ms"`
	MaxIntervalMs     int `mapstructure:"max_interval_ms"`

	// RequestsPerSecond throttles generation calls, retries included.
	// Zero disables throttling.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// Config stores application configuration.
type Config struct {
	// AI model configuration
	ModelName     string  `mapstructure:"model_name"`
	EmbedderModel string  `mapstructure:"embedder_model"`
	Temperature   float32 `mapstructure:"temperature"`

	// HTTP server
	Addr string `mapstructure:"addr"`

	// Logging
	LogLevel string `mapstructure:"log_level"`
	LogJSON  bool   `mapstructure:"log_json"`

	// DocumentsDir receives uploaded files for later offline ingestion.
	DocumentsDir string `mapstructure:"documents_dir"`

	// PostgreSQL connection (pgvector index)
	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"`
	PostgresDBName   string `mapstructure:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode"`

	Crawl     CrawlConfig     `mapstructure:"crawl"`
	Chunk     ChunkConfig     `mapstructure:"chunk"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Retry     RetryConfig     `mapstructure:"retry"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > defaults.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}
	configDir := filepath.Join(home, ".siteguide")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("model_name", "gemini-2.5-flash")
	v.SetDefault("embedder_model", "gemini-embedding-001")
	v.SetDefault("temperature", 0.3)

	v.SetDefault("addr", "127.0.0.1:3500")
	v.SetDefault("documents_dir", "documents")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "siteguide")
	v.SetDefault("postgres_password", "siteguide_dev_password")
	v.SetDefault("postgres_db_name", "siteguide")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("crawl.page_budget", 20)
	v.SetDefault("crawl.workers", 2)
	v.SetDefault("crawl.requests_per_second", 1.0)
	v.SetDefault("crawl.navigation_timeout_ms", 30000)
	v.SetDefault("crawl.cache_ttl_minutes", 30)

	v.SetDefault("chunk.size", 1000)
	v.SetDefault("chunk.overlap", 200)
	v.SetDefault("chunk.min_length", 100)

	v.SetDefault("retrieval.min_term_len", 3)
	v.SetDefault("retrieval.min_score", 1)
	v.SetDefault("retrieval.min_relevant", 1)
	v.SetDefault("retrieval.top_k", 5)
	v.SetDefault("retrieval.admit_longer_than", 0)

	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.initial_interval_ms", 500)
	v.SetDefault("retry.max_interval_ms", 10000)
	v.SetDefault("retry.requests_per_second", 1.0)
}

// bindEnvVariables binds runtime overrides. GEMINI_API_KEY is read directly
// by Genkit, not via viper; Validate checks its presence.
func bindEnvVariables(v *viper.Viper) {
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("addr", "SITEGUIDE_ADDR")
	mustBind("log_level", "SITEGUIDE_LOG_LEVEL")
	mustBind("model_name", "SITEGUIDE_MODEL_NAME")
	mustBind("documents_dir", "SITEGUIDE_DOCUMENTS_DIR")
	mustBind("crawl.seeds", "SITEGUIDE_CRAWL_SEEDS")
	mustBind("postgres_host", "SITEGUIDE_POSTGRES_HOST")
	mustBind("postgres_password", "SITEGUIDE_POSTGRES_PASSWORD")
}

// Validate checks the configuration and fails fast on the first problem.
func (c *Config) Validate() error {
	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required", ErrMissingAPIKey)
	}

	if len(c.Crawl.Seeds) == 0 {
		return fmt.Errorf("%w: at least one crawl seed is required", ErrInvalidSeed)
	}
	for _, seed := range c.Crawl.Seeds {
		u, err := url.Parse(seed)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: %q must be an absolute http(s) URL", ErrInvalidSeed, seed)
		}
	}
	if c.Crawl.PageBudget <= 0 {
		return fmt.Errorf("%w: page_budget %d must be positive", ErrInvalidBudget, c.Crawl.PageBudget)
	}

	if c.Chunk.Size <= 0 || c.Chunk.Overlap < 0 || c.Chunk.Overlap >= c.Chunk.Size {
		return fmt.Errorf("%w: size=%d overlap=%d (overlap must be in [0, size))",
			ErrInvalidChunking, c.Chunk.Size, c.Chunk.Overlap)
	}
	if c.Chunk.MinLength < 0 {
		return fmt.Errorf("%w: min_length %d must be non-negative",
			ErrInvalidChunking, c.Chunk.MinLength)
	}

	if c.Retrieval.TopK <= 0 || c.Retrieval.TopK > 50 {
		return fmt.Errorf("%w: top_k %d must be in [1, 50]", ErrInvalidRetrieval, c.Retrieval.TopK)
	}
	if c.Retrieval.MinScore < 0 || c.Retrieval.MinRelevant < 1 {
		return fmt.Errorf("%w: min_score=%d min_relevant=%d", ErrInvalidRetrieval,
			c.Retrieval.MinScore, c.Retrieval.MinRelevant)
	}

	if c.PostgresHost == "" || c.PostgresDBName == "" || c.PostgresUser == "" {
		return fmt.Errorf("%w: host, user and db_name are required", ErrInvalidPostgres)
	}
	if c.PostgresPort <= 0 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidPostgres, c.PostgresPort)
	}

	return nil
}

// SlogLevel maps the configured log level to a slog.Level. Unknown values
// fall back to Info rather than failing startup.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// PostgresURL returns the postgres:// URL used for migrations and pooling.
func (c *Config) PostgresURL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host:   fmt.Sprintf("%s:%d", c.PostgresHost, c.PostgresPort),
		Path:   c.PostgresDBName,
	}
	q := u.Query()
	q.Set("sslmode", c.PostgresSSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
