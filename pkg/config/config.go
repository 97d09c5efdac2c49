// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for the corpus
// source, the analysis chain, the index builder, search scoring, snippets, the
// query cache and the optional serving infrastructure.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Corpus   CorpusConfig   `yaml:"corpus"`
	Indexer  IndexerConfig  `yaml:"indexer"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Search   SearchConfig   `yaml:"search"`
	Snippet  SnippetConfig  `yaml:"snippet"`
	Cache    CacheConfig    `yaml:"cache"`
	Watch    WatchConfig    `yaml:"watch"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings. RateLimit is requests per minute
// per client IP, 0 to disable; CORSOrigins empty disables CORS headers.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RateLimit       int           `yaml:"rateLimit"`
	CORSOrigins     []string      `yaml:"corsOrigins"`
}

// CorpusConfig describes where documents come from. Source is "dir" or
// "sql"; Format applies to directory corpora ("auto", "tdt", "html", "text").
type CorpusConfig struct {
	Source      string `yaml:"source"`
	Path        string `yaml:"path"`
	Format      string `yaml:"format"`
	LoadWorkers int    `yaml:"loadWorkers"`
	SQLDriver   string `yaml:"sqlDriver"`
	SQLDSN      string `yaml:"sqlDsn"`
	SQLQuery    string `yaml:"sqlQuery"`
}

// IndexerConfig controls the parallel index build and the persisted file.
type IndexerConfig struct {
	IndexPath        string `yaml:"indexPath"`
	Workers          int    `yaml:"workers"`
	BatchSize        int    `yaml:"batchSize"`
	MaxDocumentBytes int    `yaml:"maxDocumentBytes"`
	Compress         bool   `yaml:"compress"`
}

// AnalysisConfig controls tokenization and normalization. The same settings
// must be used for indexing and querying.
type AnalysisConfig struct {
	Stemmer         string   `yaml:"stemmer"`
	RemoveStopwords bool     `yaml:"removeStopwords"`
	Stopwords       []string `yaml:"stopwords"`
	FilterDigits    bool     `yaml:"filterDigits"`
	MinTokenLength  int      `yaml:"minTokenLength"`
}

// SearchConfig controls scoring and result limits.
type SearchConfig struct {
	Scoring    string  `yaml:"scoring"`
	K1         float64 `yaml:"k1"`
	B          float64 `yaml:"b"`
	TopN       int     `yaml:"topN"`
	MaxResults int     `yaml:"maxResults"`
	Match      string  `yaml:"match"`
}

// SnippetConfig controls excerpt extraction.
type SnippetConfig struct {
	WindowSize int `yaml:"windowSize"`
	MaxChars   int `yaml:"maxChars"`
}

// CacheConfig selects the query cache backend ("none", "memory", "redis").
type CacheConfig struct {
	Backend string        `yaml:"backend"`
	Size    int           `yaml:"size"`
	TTL     time.Duration `yaml:"ttl"`
}

// WatchConfig controls rebuild triggers in serve mode.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings. An empty broker list
// disables every Kafka integration.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	IndexRebuild    string `yaml:"indexRebuild"`
	AnalyticsEvents string `yaml:"analyticsEvents"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig toggles span logging for queries.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values, or an error wrapping ErrConfig when the result is invalid.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: reading config file %s: %w", apperrors.ErrConfig, path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parsing config file %s: %w", apperrors.ErrConfig, path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config with defaults suitable for a local corpus.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			RequestTimeout:  10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Corpus: CorpusConfig{
			Source:      "dir",
			Path:        "data/corpus",
			Format:      "auto",
			LoadWorkers: 4,
			SQLDriver:   "postgres",
			SQLQuery:    "SELECT id, body FROM documents ORDER BY id",
		},
		Indexer: IndexerConfig{
			IndexPath:        "data/index.csx",
			Workers:          4,
			BatchSize:        1000,
			MaxDocumentBytes: 10 * 1024 * 1024,
			Compress:         true,
		},
		Analysis: AnalysisConfig{
			Stemmer:         "suffix",
			RemoveStopwords: true,
			FilterDigits:    false,
			MinTokenLength:  2,
		},
		Search: SearchConfig{
			Scoring:    "bm25",
			K1:         1.5,
			B:          0.75,
			TopN:       10,
			MaxResults: 100,
			Match:      "any",
		},
		Snippet: SnippetConfig{
			WindowSize: 20,
			MaxChars:   250,
		},
		Cache: CacheConfig{
			Backend: "none",
			Size:    1024,
			TTL:     60 * time.Second,
		},
		Watch: WatchConfig{
			Enabled:  false,
			Debounce: 2 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "corpus",
			User:            "corpus",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			ConsumerGroup: "corpus-search",
			Topics: KafkaTopics{
				IndexRebuild:    "index-rebuild",
				AnalyticsEvents: "search-analytics",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
	}
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	var problems []string
	switch strings.ToLower(c.Search.Scoring) {
	case "bm25", "tfidf", "tf-idf":
	default:
		problems = append(problems, fmt.Sprintf("search.scoring %q is not one of bm25, tfidf", c.Search.Scoring))
	}
	if c.Search.K1 < 0 {
		problems = append(problems, fmt.Sprintf("search.k1 must be >= 0, got %v", c.Search.K1))
	}
	if c.Search.B < 0 || c.Search.B > 1 {
		problems = append(problems, fmt.Sprintf("search.b must be within [0,1], got %v", c.Search.B))
	}
	if c.Search.TopN <= 0 {
		problems = append(problems, "search.topN must be positive")
	}
	if c.Search.MaxResults < c.Search.TopN {
		problems = append(problems, "search.maxResults must be >= search.topN")
	}
	switch c.Search.Match {
	case "any", "all":
	default:
		problems = append(problems, fmt.Sprintf("search.match %q is not one of any, all", c.Search.Match))
	}
	switch c.Analysis.Stemmer {
	case "none", "suffix", "snowball":
	default:
		problems = append(problems, fmt.Sprintf("analysis.stemmer %q is not one of none, suffix, snowball", c.Analysis.Stemmer))
	}
	if c.Analysis.MinTokenLength < 1 {
		problems = append(problems, "analysis.minTokenLength must be >= 1")
	}
	if c.Server.RateLimit < 0 {
		problems = append(problems, "server.rateLimit must be >= 0")
	}
	if c.Indexer.Workers < 1 {
		problems = append(problems, "indexer.workers must be >= 1")
	}
	if c.Indexer.BatchSize < 1 {
		problems = append(problems, "indexer.batchSize must be >= 1")
	}
	if c.Snippet.WindowSize < 1 {
		problems = append(problems, "snippet.windowSize must be >= 1")
	}
	switch c.Corpus.Source {
	case "dir", "sql":
	default:
		problems = append(problems, fmt.Sprintf("corpus.source %q is not one of dir, sql", c.Corpus.Source))
	}
	switch c.Corpus.Format {
	case "auto", "tdt", "html", "text":
	default:
		problems = append(problems, fmt.Sprintf("corpus.format %q is not one of auto, tdt, html, text", c.Corpus.Format))
	}
	switch c.Cache.Backend {
	case "none", "memory", "redis":
	default:
		problems = append(problems, fmt.Sprintf("cache.backend %q is not one of none, memory, redis", c.Cache.Backend))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrConfig, strings.Join(problems, "; "))
	}
	return nil
}

// applyEnvOverrides reads CS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("CS_CORPUS_PATH"); v != "" {
		cfg.Corpus.Path = v
	}
	if v := os.Getenv("CS_CORPUS_SQL_DSN"); v != "" {
		cfg.Corpus.SQLDSN = v
	}
	if v := os.Getenv("CS_INDEX_PATH"); v != "" {
		cfg.Indexer.IndexPath = v
	}
	if v := os.Getenv("CS_INDEXER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Indexer.Workers = n
		}
	}
	if v := os.Getenv("CS_ANALYSIS_STEMMER"); v != "" {
		cfg.Analysis.Stemmer = v
	}
	if v := os.Getenv("CS_SEARCH_SCORING"); v != "" {
		cfg.Search.Scoring = v
	}
	if v := os.Getenv("CS_SEARCH_K1"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Search.K1 = f
		}
	}
	if v := os.Getenv("CS_SEARCH_B"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Search.B = f
		}
	}
	if v := os.Getenv("CS_CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = v
	}
	if v := os.Getenv("CS_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("CS_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("CS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("CS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("CS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("CS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
