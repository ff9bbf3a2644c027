package config

import (
	"os"
	"path/filepath"
	"testing"

	"forumrag/internal/domain/entities"
)

// setRequiredEnv supplies the credentials every Load call needs.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("AIPIPE_BASE_URL", "https://aipipe.example/openai/v1")
	t.Setenv("AIPIPE_API_KEY", "test-key")
}

func TestLoad_DefaultsApplied(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Errorf("addr default: %s", cfg.Server.Addr)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("log level default: %s", cfg.Logging.Level)
	}
	if cfg.Embedding.Model != "text-embedding-3-small" || cfg.Embedding.Dimension != 384 {
		t.Errorf("embedding defaults: %+v", cfg.Embedding)
	}
	if cfg.LLM.Model != "openai/gpt-4o-mini" || cfg.LLM.MaxTokens != 1000 || cfg.LLM.Temperature != 0.7 {
		t.Errorf("llm defaults: %+v", cfg.LLM)
	}
	if cfg.VectorStore.Type != "sqlite" {
		t.Errorf("vector store default: %s", cfg.VectorStore.Type)
	}
	if cfg.Retrieval.TopK != 5 || cfg.Retrieval.MinSimilarity != 0 {
		t.Errorf("retrieval defaults: %+v", cfg.Retrieval)
	}
	if cfg.Ingest.ChunkSize != 500 || cfg.Ingest.ChunkOverlap != 50 {
		t.Errorf("ingest defaults: %+v", cfg.Ingest)
	}
	// Shared gateway credentials feed both clients.
	if cfg.Embedding.BaseURL != cfg.LLM.BaseURL || cfg.Embedding.APIKey != cfg.LLM.APIKey {
		t.Error("AIPIPE_* must apply to both embedding and llm")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("LLM_MODEL", "openai/gpt-4o")
	t.Setenv("LLM_TEMPERATURE", "0.2")
	t.Setenv("VECTOR_STORE_TYPE", "memory")
	t.Setenv("MIN_SIMILARITY", "0.35")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
llm:
  model: openai/gpt-4o-mini
  temperature: 0.9
vector_store:
  type: sqlite
retrieval:
  top_k: 8
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.LLM.Model != "openai/gpt-4o" {
		t.Errorf("env must override file: %s", cfg.LLM.Model)
	}
	if cfg.LLM.Temperature != 0.2 {
		t.Errorf("env must override file: %f", cfg.LLM.Temperature)
	}
	if cfg.VectorStore.Type != "memory" {
		t.Errorf("env must override file: %s", cfg.VectorStore.Type)
	}
	if cfg.Retrieval.MinSimilarity != 0.35 {
		t.Errorf("min similarity: %f", cfg.Retrieval.MinSimilarity)
	}
	// File values with no env override survive.
	if cfg.Retrieval.TopK != 8 {
		t.Errorf("file value lost: %d", cfg.Retrieval.TopK)
	}
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	setRequiredEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err != nil {
		t.Errorf("missing file must not fail: %v", err)
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	setRequiredEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("llm: [not a map"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("malformed yaml must fail")
	}
}

func TestLoad_MissingCredentials(t *testing.T) {
	t.Setenv("AIPIPE_BASE_URL", "")
	t.Setenv("AIPIPE_API_KEY", "")

	_, err := Load("")
	if entities.ErrorTypeOf(err) != entities.ErrTypeConfig {
		t.Errorf("missing credentials must be a config error, got %v", err)
	}

	t.Setenv("AIPIPE_BASE_URL", "https://aipipe.example/openai/v1")
	_, err = Load("")
	if entities.ErrorTypeOf(err) != entities.ErrTypeConfig {
		t.Errorf("missing api key must be a config error, got %v", err)
	}
}
