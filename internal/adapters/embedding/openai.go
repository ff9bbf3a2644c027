// Package embedding provides the embedding service adapter.
// Clean Architecture: This is an adapter that implements ports.EmbeddingService.
// It speaks the OpenAI embeddings wire format used by AIPipe/OpenRouter-style
// gateways; the domain layer only sees vectors.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"forumrag/internal/domain/entities"
	"go.uber.org/zap"
)

// Client implements ports.EmbeddingService against an OpenAI-compatible
// embeddings endpoint. The configured dimension must equal the dimension
// the index was populated with; a mismatch is a configuration error,
// not a per-query one.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	dim     int
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates an embedding client.
func NewClient(baseURL, apiKey, model string, dim int, timeout time.Duration, logger *zap.Logger) *Client {
	if model == "" {
		model = "text-embedding-3-small"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		dim:     dim,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embed generates an embedding for a single query string.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one call.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(embedRequest{Model: c.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, entities.NewDomainError(entities.ErrTypeEmbedding, "embedding request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Error("embedding provider error",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", snippet))
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, entities.NewDomainError(entities.ErrTypeConfig, "embedding provider rejected credentials", nil).
				WithDetail("status", resp.StatusCode)
		}
		return nil, entities.NewDomainError(entities.ErrTypeEmbedding, "embedding provider error", nil).
			WithDetail("status", resp.StatusCode)
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, entities.NewDomainError(entities.ErrTypeEmbedding, "decoding embedding response", err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, entities.NewDomainError(entities.ErrTypeEmbedding, "embedding count mismatch", nil).
			WithDetail("want", len(texts)).
			WithDetail("got", len(parsed.Data))
	}

	out := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, entities.NewDomainError(entities.ErrTypeEmbedding, "embedding index out of range", nil)
		}
		if c.dim > 0 && len(d.Embedding) != c.dim {
			// Wrong dimension means the deployment is misconfigured
			// against the index, fail fast and loud.
			return nil, entities.NewDomainError(entities.ErrTypeConfig, "embedding dimension mismatch", nil).
				WithDetail("want", c.dim).
				WithDetail("got", len(d.Embedding))
		}
		out[d.Index] = d.Embedding
	}
	for i, v := range out {
		if v == nil {
			return nil, entities.NewDomainError(entities.ErrTypeEmbedding, "missing embedding in response", nil).
				WithDetail("index", i)
		}
	}
	return out, nil
}
