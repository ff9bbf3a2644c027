// Package llm provides the generation service adapter.
// Clean Architecture: Adapter implementing ports.GenerationService.
// It owns retry/backoff and error classification for the chat
// completions call; the engine only ever sees typed errors.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"forumrag/internal/domain/entities"
	"go.uber.org/zap"
)

const (
	defaultMaxRetries = 2 // 3 attempts total
	defaultTimeout    = 60 * time.Second
	baseBackoff       = 500 * time.Millisecond
)

// Client implements ports.GenerationService against an OpenAI-compatible
// chat completions endpoint (AIPipe, OpenRouter, OpenAI proper).
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	http       *http.Client
	logger     *zap.Logger
}

// NewClient creates a generation client.
func NewClient(baseURL, apiKey, model string, timeout time.Duration, logger *zap.Logger) *Client {
	if model == "" {
		model = "openai/gpt-4o-mini"
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		timeout:    timeout,
		maxRetries: defaultMaxRetries,
		backoff:    baseBackoff,
		http:       &http.Client{},
		logger:     logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate sends the prompt and returns the provider's answer. Transient
// failures (rate limit, timeout, 5xx, transport errors) are retried with
// exponential backoff up to the attempt ceiling; auth and malformed
// request errors are never retried. Every attempt carries its own
// timeout so a stuck provider cannot block the request indefinitely.
func (c *Client) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (entities.GenerationResult, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return entities.GenerationResult{}, fmt.Errorf("marshaling request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff << (attempt - 1)
			c.logger.Warn("retrying generation",
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", delay),
				zap.Error(lastErr))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return entities.GenerationResult{}, entities.NewDomainError(entities.ErrTypeTimeout, "generation canceled", ctx.Err())
			}
		}

		result, err := c.generateOnce(ctx, body)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !entities.IsTransient(err) {
			return entities.GenerationResult{}, err
		}
	}
	return entities.GenerationResult{}, lastErr
}

func (c *Client) generateOnce(ctx context.Context, body []byte) (entities.GenerationResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return entities.GenerationResult{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded {
			return entities.GenerationResult{}, entities.NewDomainError(entities.ErrTypeTimeout, "generation provider timed out", err)
		}
		return entities.GenerationResult{}, entities.NewDomainError(entities.ErrTypeProvider, "generation request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return entities.GenerationResult{}, classifyStatus(resp.StatusCode, string(snippet))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return entities.GenerationResult{}, entities.NewDomainError(entities.ErrTypeProvider, "decoding generation response", err)
	}
	if len(parsed.Choices) == 0 {
		return entities.GenerationResult{}, entities.NewDomainError(entities.ErrTypeProvider, "no choices in generation response", nil)
	}

	model := parsed.Model
	if model == "" {
		model = c.model
	}
	return entities.GenerationResult{
		AnswerText: strings.TrimSpace(parsed.Choices[0].Message.Content),
		ModelID:    model,
	}, nil
}

// classifyStatus maps provider HTTP status codes onto the error
// taxonomy. Only rate limits, timeouts and 5xx are transient.
func classifyStatus(status int, body string) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return entities.NewDomainError(entities.ErrTypeAuth, "generation provider rejected credentials", nil).
			WithDetail("status", status)
	case status == http.StatusTooManyRequests:
		return entities.NewDomainError(entities.ErrTypeRateLimit, "generation provider rate limited", nil).
			WithDetail("status", status)
	case status == http.StatusRequestTimeout:
		return entities.NewDomainError(entities.ErrTypeTimeout, "generation provider timed out", nil).
			WithDetail("status", status)
	case status >= 500:
		return entities.NewDomainError(entities.ErrTypeProvider, "generation provider error", nil).
			WithDetail("status", status).
			WithDetail("body", body)
	default:
		// Malformed-request class: never retried.
		return entities.NewDomainError(entities.ErrTypeGeneration, "generation request rejected", nil).
			WithDetail("status", status).
			WithDetail("body", body)
	}
}
