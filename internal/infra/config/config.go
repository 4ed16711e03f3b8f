package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Support   SupportConfig   `yaml:"support"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	Storage   StorageConfig   `yaml:"storage"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address      string        `yaml:"address"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	Retry        RetryConfig   `yaml:"retry"`
}

// RetryConfig configures bounded retries of transient failures on the
// listed read-only endpoints.
type RetryConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxAttempts int           `yaml:"maxAttempts"`
	BaseBackoff time.Duration `yaml:"baseBackoff"`
	Paths       []string      `yaml:"paths"`
}

// KnowledgeConfig drives the FAQ store and retrieval gate.
type KnowledgeConfig struct {
	CorpusPath    string        `yaml:"corpusPath"`
	TopK          int           `yaml:"topK"`
	Threshold     float64       `yaml:"threshold"`
	QueryTimeout  time.Duration `yaml:"queryTimeout"`
	Watch         bool          `yaml:"watch"`
	WatchDebounce time.Duration `yaml:"watchDebounce"`
	Index         IndexConfig   `yaml:"index"`
}

// IndexConfig selects the vector index backend: memory, postgres or qdrant.
type IndexConfig struct {
	Backend  string         `yaml:"backend"`
	Postgres PostgresConfig `yaml:"postgres"`
	Qdrant   QdrantConfig   `yaml:"qdrant"`
}

// PostgresConfig contains DSN and pooling settings.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
}

// QdrantConfig locates the Qdrant gRPC endpoint.
type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Collection string `yaml:"collection"`
	APIKey     string `yaml:"apiKey"`
	UseTLS     bool   `yaml:"useTls"`
}

// EmbeddingConfig selects the embedder: trigram (offline), openai or ollama.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	OllamaHost string `yaml:"ollamaHost"`
}

// LLMConfig selects the chat backend: openai, ollama or none.
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	APIKey      string  `yaml:"apiKey"`
	BaseURL     string  `yaml:"baseUrl"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	OllamaHost  string  `yaml:"ollamaHost"`
}

// SupportConfig toggles the dialogue policies.
type SupportConfig struct {
	Classification  bool                `yaml:"classification"`
	Recommendations bool                `yaml:"recommendations"`
	Ratings         bool                `yaml:"ratings"`
	OperatorHandoff bool                `yaml:"operatorHandoff"`
	SystemPrompt    string              `yaml:"systemPrompt"`
	Links           map[string]LinkSpec `yaml:"links"`
}

// LinkSpec is a recommended site section.
type LinkSpec struct {
	Title string `yaml:"title"`
	URL   string `yaml:"url"`
}

// SessionsConfig controls where dialogue sessions live.
type SessionsConfig struct {
	Prefix string       `yaml:"prefix"`
	TTL    time.Duration `yaml:"ttl"`
	Valkey ValkeyConfig `yaml:"valkey"`
}

// ValkeyConfig contains connection information for the session store.
type ValkeyConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// StorageConfig controls ticket and rating persistence.
type StorageConfig struct {
	SQLitePath string        `yaml:"sqlitePath"`
	Archive    ArchiveConfig `yaml:"archive"`
}

// ArchiveConfig points at the S3-compatible rating archive.
type ArchiveConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Prefix    string `yaml:"prefix"`
}

// Load reads configuration from a YAML file, an optional .env file and
// environment variables, in increasing precedence.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// loadDotEnv reads ENV_FILE (default .env) without overriding variables that
// are already set. A missing default file is not an error.
func loadDotEnv() error {
	path := os.Getenv("ENV_FILE")
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	envString("HTTP_ADDRESS", &cfg.HTTP.Address)
	envBool("HTTP_RETRY_ENABLED", &cfg.HTTP.Retry.Enabled)
	envInt("HTTP_RETRY_MAX_ATTEMPTS", &cfg.HTTP.Retry.MaxAttempts)
	envDuration("HTTP_RETRY_BASE_BACKOFF", &cfg.HTTP.Retry.BaseBackoff)

	envString("KNOWLEDGE_CORPUS_PATH", &cfg.Knowledge.CorpusPath)
	envInt("KNOWLEDGE_TOP_K", &cfg.Knowledge.TopK)
	envFloat("KNOWLEDGE_THRESHOLD", &cfg.Knowledge.Threshold)
	envDuration("KNOWLEDGE_QUERY_TIMEOUT", &cfg.Knowledge.QueryTimeout)
	envBool("KNOWLEDGE_WATCH", &cfg.Knowledge.Watch)
	envString("KNOWLEDGE_INDEX_BACKEND", &cfg.Knowledge.Index.Backend)
	envString("KNOWLEDGE_POSTGRES_DSN", &cfg.Knowledge.Index.Postgres.DSN)
	if v := os.Getenv("KNOWLEDGE_POSTGRES_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Knowledge.Index.Postgres.MaxConns = int32(parsed)
		}
	}
	envString("KNOWLEDGE_QDRANT_HOST", &cfg.Knowledge.Index.Qdrant.Host)
	envInt("KNOWLEDGE_QDRANT_PORT", &cfg.Knowledge.Index.Qdrant.Port)
	envString("KNOWLEDGE_QDRANT_COLLECTION", &cfg.Knowledge.Index.Qdrant.Collection)
	envString("KNOWLEDGE_QDRANT_API_KEY", &cfg.Knowledge.Index.Qdrant.APIKey)

	envString("EMBEDDING_PROVIDER", &cfg.Embedding.Provider)
	envString("EMBEDDING_MODEL", &cfg.Embedding.Model)
	envInt("EMBEDDING_DIMENSIONS", &cfg.Embedding.Dimensions)
	envString("OLLAMA_HOST", &cfg.Embedding.OllamaHost)
	envString("OLLAMA_HOST", &cfg.LLM.OllamaHost)

	envString("LLM_PROVIDER", &cfg.LLM.Provider)
	// API_KEY is the name the bot's .env has always used.
	envString("API_KEY", &cfg.LLM.APIKey)
	envString("LLM_API_KEY", &cfg.LLM.APIKey)
	envString("LLM_BASE_URL", &cfg.LLM.BaseURL)
	envString("LLM_MODEL", &cfg.LLM.Model)
	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.LLM.Temperature = float32(parsed)
		}
	}

	envBool("SUPPORT_CLASSIFICATION", &cfg.Support.Classification)
	envBool("SUPPORT_RECOMMENDATIONS", &cfg.Support.Recommendations)
	envBool("SUPPORT_RATINGS", &cfg.Support.Ratings)
	envBool("SUPPORT_OPERATOR_HANDOFF", &cfg.Support.OperatorHandoff)
	envString("SUPPORT_SYSTEM_PROMPT", &cfg.Support.SystemPrompt)

	envDuration("SESSIONS_TTL", &cfg.Sessions.TTL)
	envBool("SESSIONS_VALKEY_ENABLED", &cfg.Sessions.Valkey.Enabled)
	envString("SESSIONS_VALKEY_ADDR", &cfg.Sessions.Valkey.Addr)

	envString("STORAGE_SQLITE_PATH", &cfg.Storage.SQLitePath)
	envBool("ARCHIVE_ENABLED", &cfg.Storage.Archive.Enabled)
	envString("ARCHIVE_ENDPOINT", &cfg.Storage.Archive.Endpoint)
	envString("ARCHIVE_ACCESS_KEY", &cfg.Storage.Archive.AccessKey)
	envString("ARCHIVE_SECRET_KEY", &cfg.Storage.Archive.SecretKey)
	envString("ARCHIVE_BUCKET", &cfg.Storage.Archive.Bucket)
	envString("ARCHIVE_REGION", &cfg.Storage.Archive.Region)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = parsed
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "1" || strings.EqualFold(v, "true")
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			*dst = parsed
		}
	}
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 30 * time.Second,
			Retry: RetryConfig{
				Enabled:     true,
				MaxAttempts: 2,
				BaseBackoff: 200 * time.Millisecond,
				Paths:       []string{"/api/v1/knowledge/search"},
			},
		},
		Knowledge: KnowledgeConfig{
			CorpusPath:    "configs/faq.json",
			TopK:          3,
			Threshold:     0.85,
			QueryTimeout:  10 * time.Second,
			Watch:         true,
			WatchDebounce: 500 * time.Millisecond,
			Index: IndexConfig{
				Backend: "memory",
				Postgres: PostgresConfig{
					MaxConns: 4,
				},
				Qdrant: QdrantConfig{
					Host:       "localhost",
					Port:       6334,
					Collection: "bank_faq",
				},
			},
		},
		Embedding: EmbeddingConfig{
			Provider:   "trigram",
			OllamaHost: "http://localhost:11434",
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Temperature: 0.2,
			OllamaHost:  "http://localhost:11434",
		},
		Support: SupportConfig{
			Classification:  true,
			Recommendations: true,
			Ratings:         true,
			OperatorHandoff: true,
		},
		Sessions: SessionsConfig{
			Prefix: "support",
			TTL:    24 * time.Hour,
		},
		Storage: StorageConfig{
			SQLitePath: "data/support.db",
			Archive: ArchiveConfig{
				Bucket: "bank-support-ratings",
				Prefix: "ratings",
			},
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if c.HTTP.Retry.Enabled {
		if c.HTTP.Retry.MaxAttempts <= 0 {
			return errors.New("http.retry.maxAttempts must be positive")
		}
		if c.HTTP.Retry.BaseBackoff <= 0 {
			return errors.New("http.retry.baseBackoff must be positive")
		}
	}
	if strings.TrimSpace(c.Knowledge.CorpusPath) == "" {
		return errors.New("knowledge.corpusPath cannot be empty")
	}
	if c.Knowledge.TopK <= 0 {
		return errors.New("knowledge.topK must be positive")
	}
	if math.IsNaN(c.Knowledge.Threshold) || c.Knowledge.Threshold < 0 || c.Knowledge.Threshold > 1 {
		return errors.New("knowledge.threshold must be within [0,1]")
	}
	if c.Knowledge.QueryTimeout < 0 {
		return errors.New("knowledge.queryTimeout cannot be negative")
	}
	switch c.Knowledge.Index.Backend {
	case "memory", "qdrant":
	case "postgres":
		if strings.TrimSpace(c.Knowledge.Index.Postgres.DSN) == "" {
			return errors.New("knowledge.index.postgres.dsn cannot be empty for the postgres backend")
		}
	default:
		return fmt.Errorf("knowledge.index.backend %q is not one of memory, postgres, qdrant", c.Knowledge.Index.Backend)
	}
	switch c.Embedding.Provider {
	case "trigram", "openai", "ollama":
	default:
		return fmt.Errorf("embedding.provider %q is not one of trigram, openai, ollama", c.Embedding.Provider)
	}
	if c.Embedding.Provider == "openai" && strings.TrimSpace(c.LLM.APIKey) == "" {
		return errors.New("embedding.provider openai requires llm.apiKey")
	}
	switch c.LLM.Provider {
	case "openai", "ollama", "none":
	default:
		return fmt.Errorf("llm.provider %q is not one of openai, ollama, none", c.LLM.Provider)
	}
	if c.Sessions.TTL < 0 {
		return errors.New("sessions.ttl cannot be negative")
	}
	if c.Sessions.Valkey.Enabled && strings.TrimSpace(c.Sessions.Valkey.Addr) == "" {
		return errors.New("sessions.valkey.addr cannot be empty when valkey is enabled")
	}
	if c.Storage.Archive.Enabled {
		if strings.TrimSpace(c.Storage.Archive.Endpoint) == "" || strings.TrimSpace(c.Storage.Archive.Bucket) == "" {
			return errors.New("storage.archive.endpoint and bucket are required when the archive is enabled")
		}
	}
	return nil
}
