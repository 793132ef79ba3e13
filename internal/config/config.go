// Package config loads the process-wide configuration once at startup. The
// resulting Config is treated as immutable and handed to components through
// their constructors.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Yates-Labs/reseek/internal/apperr"
)

// Supported backend identifiers.
const (
	LLMProviderOpenAI    = "openai"
	LLMProviderAnthropic = "anthropic"

	VectorBackendMilvus   = "milvus"
	VectorBackendPgVector = "pgvector"

	ProviderFinnhub = "finnhub"
	ProviderFixture = "fixture"
)

// MilvusSettings mirrors the knobs of the Milvus vector index.
type MilvusSettings struct {
	Address        string `yaml:"address"`
	CollectionName string `yaml:"collection"`
	M              int    `yaml:"m"`
	EfConstruction int    `yaml:"ef_construction"`
}

// ChunkingSettings controls transcript segmentation.
type ChunkingSettings struct {
	Tokenizer string `yaml:"tokenizer"`
	MaxTokens int    `yaml:"max_tokens"`
	Overlap   int    `yaml:"overlap"`
}

// Config is the complete runtime configuration.
type Config struct {
	OpenAIAPIKey    string `yaml:"-"`
	AnthropicAPIKey string `yaml:"-"`
	FinnhubAPIKey   string `yaml:"-"`

	LLMProvider     string `yaml:"llm_provider"`
	CompletionModel string `yaml:"completion_model"`

	EmbeddingModel     string `yaml:"embedding_model"`
	EmbeddingDimension int    `yaml:"embedding_dimension"`
	EmbedConcurrency   int    `yaml:"embed_concurrency"`

	// CallTimeout bounds every embedding and completion call.
	CallTimeout time.Duration `yaml:"call_timeout"`

	Chunking ChunkingSettings `yaml:"chunking"`

	VectorBackend string         `yaml:"vector_backend"`
	Milvus        MilvusSettings `yaml:"milvus"`

	DatabaseURL   string        `yaml:"database_url"`
	RedisURL      string        `yaml:"redis_url"`
	EmbedCacheTTL time.Duration `yaml:"embed_cache_ttl"`

	Provider string `yaml:"provider"`
	LogMode  string `yaml:"log_mode"`
}

// Default returns the baseline configuration before file and environment
// overrides are applied.
func Default() Config {
	return Config{
		LLMProvider:        LLMProviderOpenAI,
		CompletionModel:    "gpt-4o-mini",
		EmbeddingModel:     "text-embedding-3-large",
		EmbeddingDimension: 3072,
		EmbedConcurrency:   4,
		CallTimeout:        60 * time.Second,
		Chunking: ChunkingSettings{
			Tokenizer: "cl100k_base",
			MaxTokens: 500,
			Overlap:   50,
		},
		VectorBackend: VectorBackendMilvus,
		Milvus: MilvusSettings{
			Address:        "localhost:19530",
			CollectionName: "reseek_chunks",
			M:              16,
			EfConstruction: 256,
		},
		EmbedCacheTTL: 24 * time.Hour,
		Provider:      ProviderFixture,
		LogMode:       "development",
	}
}

// Load builds a Config from defaults, an optional YAML file and the
// environment, in that order of precedence, and validates it.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: parse config file %s: %v", apperr.ErrInvalidConfiguration, path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	setString(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	setString(&cfg.FinnhubAPIKey, "FINNHUB_API_KEY")
	setString(&cfg.LLMProvider, "RESEEK_LLM_PROVIDER")
	setString(&cfg.CompletionModel, "RESEEK_COMPLETION_MODEL")
	setString(&cfg.EmbeddingModel, "RESEEK_EMBEDDING_MODEL")
	setString(&cfg.Chunking.Tokenizer, "RESEEK_TOKENIZER")
	setString(&cfg.VectorBackend, "RESEEK_VECTOR_BACKEND")
	setString(&cfg.Milvus.Address, "MILVUS_ADDRESS")
	setString(&cfg.Milvus.CollectionName, "MILVUS_COLLECTION")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.RedisURL, "REDIS_URL")
	setString(&cfg.Provider, "RESEEK_PROVIDER")
	setString(&cfg.LogMode, "RESEEK_LOG_MODE")

	ints := []struct {
		dst *int
		key string
	}{
		{&cfg.EmbeddingDimension, "RESEEK_EMBEDDING_DIMENSION"},
		{&cfg.EmbedConcurrency, "RESEEK_EMBED_CONCURRENCY"},
		{&cfg.Chunking.MaxTokens, "RESEEK_CHUNK_MAX_TOKENS"},
		{&cfg.Chunking.Overlap, "RESEEK_CHUNK_OVERLAP"},
	}
	for _, it := range ints {
		if err := setInt(it.dst, it.key); err != nil {
			return err
		}
	}

	durations := []struct {
		dst *time.Duration
		key string
	}{
		{&cfg.CallTimeout, "RESEEK_CALL_TIMEOUT"},
		{&cfg.EmbedCacheTTL, "RESEEK_EMBED_CACHE_TTL"},
	}
	for _, it := range durations {
		if err := setDuration(it.dst, it.key); err != nil {
			return err
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%w: %s must be an integer, got %q", apperr.ErrInvalidConfiguration, key, v)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%w: %s must be a duration, got %q", apperr.ErrInvalidConfiguration, key, v)
	}
	*dst = d
	return nil
}

// Validate checks every precondition that can be verified without I/O.
func (c Config) Validate() error {
	if c.Chunking.MaxTokens <= 0 {
		return fmt.Errorf("%w: chunk max tokens must be positive, got %d", apperr.ErrInvalidConfiguration, c.Chunking.MaxTokens)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.MaxTokens {
		return fmt.Errorf("%w: chunk overlap must be in [0, %d), got %d", apperr.ErrInvalidConfiguration, c.Chunking.MaxTokens, c.Chunking.Overlap)
	}
	if c.EmbeddingDimension <= 0 {
		return fmt.Errorf("%w: embedding dimension must be positive, got %d", apperr.ErrInvalidConfiguration, c.EmbeddingDimension)
	}
	if c.EmbedConcurrency <= 0 {
		return fmt.Errorf("%w: embed concurrency must be positive, got %d", apperr.ErrInvalidConfiguration, c.EmbedConcurrency)
	}
	if c.CallTimeout < 0 {
		return fmt.Errorf("%w: call timeout must not be negative", apperr.ErrInvalidConfiguration)
	}

	switch c.LLMProvider {
	case LLMProviderOpenAI, LLMProviderAnthropic:
	default:
		return fmt.Errorf("%w: unknown llm provider %q", apperr.ErrInvalidConfiguration, c.LLMProvider)
	}
	switch c.VectorBackend {
	case VectorBackendMilvus, VectorBackendPgVector:
	default:
		return fmt.Errorf("%w: unknown vector backend %q", apperr.ErrInvalidConfiguration, c.VectorBackend)
	}
	switch c.Provider {
	case ProviderFinnhub, ProviderFixture:
	default:
		return fmt.Errorf("%w: unknown transcript provider %q", apperr.ErrInvalidConfiguration, c.Provider)
	}
	return nil
}
