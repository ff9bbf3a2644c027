// Package config loads service configuration from a YAML file with
// environment-variable overrides. Credentials are expected from the
// environment; the file carries the rest.
package config

import (
	"fmt"
	"os"
	"strconv"

	"forumrag/internal/domain/entities"
	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`

	Embedding struct {
		BaseURL     string `yaml:"base_url"`
		APIKey      string `yaml:"api_key"`
		Model       string `yaml:"model"`
		Dimension   int    `yaml:"dimension"`
		TimeoutSecs int    `yaml:"timeout"`
	} `yaml:"embedding"`

	LLM struct {
		BaseURL     string  `yaml:"base_url"`
		APIKey      string  `yaml:"api_key"`
		Model       string  `yaml:"model"`
		MaxTokens   int     `yaml:"max_tokens"`
		Temperature float64 `yaml:"temperature"`
		TimeoutSecs int     `yaml:"timeout"`
	} `yaml:"llm"`

	VectorStore struct {
		Type string `yaml:"type"`
		Path string `yaml:"path"`
	} `yaml:"vector_store"`

	Retrieval struct {
		TopK          int     `yaml:"top_k"`
		MinSimilarity float64 `yaml:"min_similarity"`
	} `yaml:"retrieval"`

	Prompt struct {
		MaxChars     int    `yaml:"max_chars"`
		Instructions string `yaml:"instructions"`
	} `yaml:"prompt"`

	Ingest struct {
		ChunkSize    int    `yaml:"chunk_size"`
		ChunkOverlap int    `yaml:"chunk_overlap"`
		WatchDir     string `yaml:"watch_dir"`
		ForumBaseURL string `yaml:"forum_base_url"`
	} `yaml:"ingest"`
}

// Load reads the config file (optional) and applies environment
// overrides and defaults. A missing file is not an error; missing
// credentials are, at startup.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Server.Addr, "SERVER_ADDR")
	setString(&c.Logging.Level, "LOG_LEVEL")

	setString(&c.Embedding.BaseURL, "AIPIPE_BASE_URL")
	setString(&c.Embedding.APIKey, "AIPIPE_API_KEY")
	setString(&c.Embedding.Model, "EMBEDDING_MODEL")
	setInt(&c.Embedding.Dimension, "EMBEDDING_DIMENSION")

	setString(&c.LLM.BaseURL, "AIPIPE_BASE_URL")
	setString(&c.LLM.APIKey, "AIPIPE_API_KEY")
	setString(&c.LLM.Model, "LLM_MODEL")
	setInt(&c.LLM.MaxTokens, "LLM_MAX_TOKENS")
	setFloat(&c.LLM.Temperature, "LLM_TEMPERATURE")
	setInt(&c.LLM.TimeoutSecs, "LLM_TIMEOUT_SECONDS")

	setString(&c.VectorStore.Type, "VECTOR_STORE_TYPE")
	setString(&c.VectorStore.Path, "VECTOR_STORE_PATH")

	setFloat(&c.Retrieval.MinSimilarity, "MIN_SIMILARITY")
	setInt(&c.Prompt.MaxChars, "PROMPT_MAX_CHARS")

	setInt(&c.Ingest.ChunkSize, "CHUNK_SIZE")
	setInt(&c.Ingest.ChunkOverlap, "CHUNK_OVERLAP")
	setString(&c.Ingest.WatchDir, "INGEST_WATCH_DIR")
	setString(&c.Ingest.ForumBaseURL, "FORUM_BASE_URL")
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimension <= 0 {
		c.Embedding.Dimension = 384
	}
	if c.Embedding.TimeoutSecs <= 0 {
		c.Embedding.TimeoutSecs = 30
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "openai/gpt-4o-mini"
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = 1000
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.7
	}
	if c.LLM.TimeoutSecs <= 0 {
		c.LLM.TimeoutSecs = 60
	}
	if c.VectorStore.Type == "" {
		c.VectorStore.Type = "sqlite"
	}
	if c.VectorStore.Path == "" {
		c.VectorStore.Path = "./data/vectorstore"
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 5
	}
	if c.Ingest.ChunkSize <= 0 {
		c.Ingest.ChunkSize = 500
	}
	if c.Ingest.ChunkOverlap <= 0 {
		c.Ingest.ChunkOverlap = 50
	}
}

func (c *Config) validate() error {
	if c.LLM.BaseURL == "" {
		return entities.NewDomainError(entities.ErrTypeConfig, "llm base_url must be set (AIPIPE_BASE_URL)", nil)
	}
	if c.LLM.APIKey == "" {
		return entities.NewDomainError(entities.ErrTypeConfig, "llm api_key must be set (AIPIPE_API_KEY)", nil)
	}
	if c.Embedding.BaseURL == "" {
		return entities.NewDomainError(entities.ErrTypeConfig, "embedding base_url must be set", nil)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}
