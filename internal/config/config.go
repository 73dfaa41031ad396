package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/xxxsen/common/logger"
)

const (
	StoreTypeMemory   = "memory"
	StoreTypePGVector = "pgvector"
)

type Config struct {
	Port             int                  `json:"port"`
	LogConfig        logger.LogConfig     `json:"log_config"`
	Database         DatabaseConfig       `json:"database"`
	Store            StoreConfig          `json:"store"`
	KnowledgeCorpus  string               `json:"knowledge_corpus"`
	CacheCorpus      string               `json:"cache_corpus"`
	EmbeddingTimeout int                  `json:"embedding_timeout"`
	RateLimitMS      int                  `json:"rate_limit_ms"`
	CORSOrigins      []string             `json:"cors_origins"`
	Cache            CacheConfig          `json:"cache"`
	EmbeddingCache   EmbeddingCacheConfig `json:"embedding_cache"`
	Retrieval        RetrievalConfig      `json:"retrieval"`
	Generation       GenerationConfig     `json:"generation"`
	Writer           WriterConfig         `json:"writer"`
	Retry            RetryConfig          `json:"retry"`
	AI               AIConfig             `json:"ai"`
	Source           SourceConfig         `json:"source"`
}

type DatabaseConfig struct {
	DSN          string `json:"dsn"`
	Host         string `json:"host"`
	Port         int    `json:"port"`
	User         string `json:"user"`
	Password     string `json:"password"`
	DBName       string `json:"dbname"`
	SSLMode      string `json:"sslmode"`
	MaxOpenConns int    `json:"max_open_conns"`
}

func (d DatabaseConfig) Configured() bool {
	return d.DSN != "" || d.Host != ""
}

type StoreConfig struct {
	Type       string `json:"type"`
	Dimensions int    `json:"dimensions"`
}

type CacheConfig struct {
	Threshold     float64 `json:"threshold"`
	StoreTimeout  int     `json:"store_timeout"`
	RetentionDays int     `json:"retention_days"`
	RetentionCron string  `json:"retention_cron"`
}

type EmbeddingCacheConfig struct {
	MaxEntries        int    `json:"max_entries"`
	TTLSeconds        int    `json:"ttl_seconds"`
	Persist           bool   `json:"persist"`
	PersistMaxAgeDays int    `json:"persist_max_age_days"`
	CleanupCron       string `json:"cleanup_cron"`
}

type RetrievalConfig struct {
	TopK         int    `json:"top_k"`
	Timeout      int    `json:"timeout"`
	LinkTemplate string `json:"link_template"`
}

type GenerationConfig struct {
	Timeout      int    `json:"timeout"`
	SystemPrompt string `json:"system_prompt"`
}

type WriterConfig struct {
	Workers     int `json:"workers"`
	QueueSize   int `json:"queue_size"`
	TaskTimeout int `json:"task_timeout"`
	StopTimeout int `json:"stop_timeout"`
}

type RetryConfig struct {
	MaxAttempts         int     `json:"max_attempts"`
	InitialIntervalMS   int     `json:"initial_interval_ms"`
	MaxIntervalMS       int     `json:"max_interval_ms"`
	Multiplier          float64 `json:"multiplier"`
	RandomizationFactor float64 `json:"randomization_factor"`
}

// AIConfig lists providers per role. Entries are tried in order until one succeeds.
type AIConfig struct {
	Embedder  []AIProviderConfig `json:"embedder"`
	Generator []AIProviderConfig `json:"generator"`
}

type AIProviderConfig struct {
	Name     string      `json:"name"`
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
	Data     interface{} `json:"data"`
}

type SourceConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.LogConfig.Level == "" {
		c.LogConfig.Level = "info"
	}
	if c.Store.Type == "" {
		c.Store.Type = StoreTypeMemory
	}
	c.Store.Type = strings.ToLower(strings.TrimSpace(c.Store.Type))
	if c.KnowledgeCorpus == "" {
		c.KnowledgeCorpus = "knowledge"
	}
	if c.CacheCorpus == "" {
		c.CacheCorpus = "response_cache"
	}
	if c.EmbeddingTimeout <= 0 {
		c.EmbeddingTimeout = 10
	}
	if c.Cache.Threshold <= 0 {
		c.Cache.Threshold = 0.1
	}
	if c.Cache.StoreTimeout <= 0 {
		c.Cache.StoreTimeout = 5
	}
	if c.Cache.RetentionCron == "" {
		c.Cache.RetentionCron = "0 3 * * *"
	}
	if c.EmbeddingCache.MaxEntries <= 0 {
		c.EmbeddingCache.MaxEntries = 10000
	}
	if c.EmbeddingCache.CleanupCron == "" {
		c.EmbeddingCache.CleanupCron = "30 3 * * *"
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 1
	}
	if c.Retrieval.Timeout <= 0 {
		c.Retrieval.Timeout = 10
	}
	if c.Retrieval.LinkTemplate == "" {
		c.Retrieval.LinkTemplate = "https://example.link/{number}"
	}
	if c.Generation.Timeout <= 0 {
		c.Generation.Timeout = 60
	}
	if c.Writer.Workers <= 0 {
		c.Writer.Workers = 4
	}
	if c.Writer.QueueSize <= 0 {
		c.Writer.QueueSize = 256
	}
	if c.Writer.TaskTimeout <= 0 {
		c.Writer.TaskTimeout = 30
	}
	if c.Writer.StopTimeout <= 0 {
		c.Writer.StopTimeout = 10
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.InitialIntervalMS <= 0 {
		c.Retry.InitialIntervalMS = 200
	}
	if c.Retry.MaxIntervalMS <= 0 {
		c.Retry.MaxIntervalMS = 2000
	}
	if c.Retry.Multiplier <= 0 {
		c.Retry.Multiplier = 2
	}
	if c.Retry.RandomizationFactor <= 0 {
		c.Retry.RandomizationFactor = 0.5
	}
	if c.Source.Type == "" {
		c.Source.Type = "local"
	}
}

func (c *Config) validate() error {
	switch c.Store.Type {
	case StoreTypeMemory:
	case StoreTypePGVector:
		if !c.Database.Configured() {
			return fmt.Errorf("database is required for pgvector store")
		}
		if c.Store.Dimensions <= 0 {
			return fmt.Errorf("store.dimensions is required for pgvector store")
		}
	default:
		return fmt.Errorf("store.type must be %s or %s", StoreTypeMemory, StoreTypePGVector)
	}
	if c.EmbeddingCache.Persist && !c.Database.Configured() {
		return fmt.Errorf("database is required when embedding_cache.persist is enabled")
	}
	if c.KnowledgeCorpus == c.CacheCorpus {
		return fmt.Errorf("knowledge_corpus and cache_corpus must differ")
	}
	if c.Cache.Threshold > 2 {
		return fmt.Errorf("cache.threshold must be within (0, 2]")
	}
	if c.Retry.RandomizationFactor > 1 {
		return fmt.Errorf("retry.randomization_factor must be within [0, 1]")
	}
	if err := validateProviders("ai.embedder", c.AI.Embedder); err != nil {
		return err
	}
	if err := validateProviders("ai.generator", c.AI.Generator); err != nil {
		return err
	}
	return nil
}

func validateProviders(field string, items []AIProviderConfig) error {
	if len(items) == 0 {
		return fmt.Errorf("%s requires at least one provider", field)
	}
	for i, item := range items {
		if strings.TrimSpace(item.Provider) == "" {
			return fmt.Errorf("%s[%d].provider is required", field, i)
		}
		if strings.TrimSpace(item.Model) == "" {
			return fmt.Errorf("%s[%d].model is required", field, i)
		}
	}
	return nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func (c *Config) EmbeddingTimeoutDuration() time.Duration { return seconds(c.EmbeddingTimeout) }
func (c *Config) StoreTimeoutDuration() time.Duration     { return seconds(c.Cache.StoreTimeout) }
func (c *Config) RetrieveTimeoutDuration() time.Duration  { return seconds(c.Retrieval.Timeout) }
func (c *Config) GenerateTimeoutDuration() time.Duration  { return seconds(c.Generation.Timeout) }
func (c *Config) TaskTimeoutDuration() time.Duration      { return seconds(c.Writer.TaskTimeout) }
func (c *Config) StopTimeoutDuration() time.Duration      { return seconds(c.Writer.StopTimeout) }
func (c *Config) EmbeddingTTL() time.Duration             { return seconds(c.EmbeddingCache.TTLSeconds) }
