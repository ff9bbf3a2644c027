// Package entities contains core business entities.
// These are the enterprise business rules - pure domain objects with no external dependencies.
package entities

import "strings"

// Query represents a user question with retrieval and generation parameters.
type Query struct {
	Text        string
	TopK        int
	MaxTokens   int
	Temperature float64
}

// Query parameter bounds. Out-of-range values fall back to defaults
// rather than failing the request; only an empty or oversized query is
// rejected outright.
const (
	DefaultTopK = 5
	MaxTopK     = 20
	MaxQueryLen = 1000
)

// Normalize trims the query text and clamps out-of-range parameters to
// their defaults. Call before Validate.
func (q *Query) Normalize() {
	q.Text = strings.TrimSpace(q.Text)
	if q.TopK < 1 || q.TopK > MaxTopK {
		q.TopK = DefaultTopK
	}
	if q.Temperature < 0 || q.Temperature > 2 {
		q.Temperature = 0
	}
	if q.MaxTokens < 0 {
		q.MaxTokens = 0
	}
}

// Validate rejects queries that must never reach an external call.
func (q *Query) Validate() error {
	if q.Text == "" {
		return NewDomainError(ErrTypeValidation, "query cannot be empty", nil)
	}
	if len(q.Text) > MaxQueryLen {
		return NewDomainError(ErrTypeValidation, "query exceeds maximum length", nil)
	}
	return nil
}

// ChunkMeta carries forum provenance for a chunk.
type ChunkMeta struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	PostID     string `json:"post_id"`
	TopicID    string `json:"topic_id"`
	Author     string `json:"author,omitempty"`
	Timestamp  string `json:"timestamp,omitempty"`
	ChunkIndex int    `json:"chunk_index"`
}

// ChunkRecord is a chunk ready for vector index insertion.
// Chunk IDs follow the "post_<id>_chunk_<n>" convention set at ingestion time.
type ChunkRecord struct {
	ChunkID   string
	Text      string
	Embedding []float32
	Meta      ChunkMeta
}

// RetrievedChunk is a chunk returned from the vector index at query time.
// Created fresh per query and never mutated afterwards; Similarity is
// always in the normalized [0,1] domain regardless of backend.
type RetrievedChunk struct {
	ChunkID    string
	Text       string
	Similarity float64
	Meta       ChunkMeta
}

// ContextBlock is one citation-tagged grounding block inside a prompt.
type ContextBlock struct {
	ChunkID string
	Text    string
}

// Prompt is the assembled grounding prompt. The flattened form is
// guaranteed to fit the builder's character budget.
type Prompt struct {
	Instructions  string
	ContextBlocks []ContextBlock
	Question      string
	flattened     string
}

// NewPrompt builds a Prompt with its precomputed flattened form.
func NewPrompt(instructions string, blocks []ContextBlock, question, flattened string) Prompt {
	return Prompt{
		Instructions:  instructions,
		ContextBlocks: blocks,
		Question:      question,
		flattened:     flattened,
	}
}

// Flatten returns the full prompt string sent to the LLM.
func (p Prompt) Flatten() string { return p.flattened }

// GenerationResult is the LLM provider's answer.
type GenerationResult struct {
	AnswerText string
	ModelID    string
}

// Source is a citation in an AskResponse. It mirrors a retrieved chunk
// that actually made it into the prompt.
type Source struct {
	URL        string  `json:"url"`
	Title      string  `json:"title"`
	PostID     string  `json:"post_id,omitempty"`
	TopicID    string  `json:"topic_id,omitempty"`
	Similarity float64 `json:"similarity,omitempty"`
	ChunkText  string  `json:"chunk_text,omitempty"`
}

// AskResponse is the structured answer for the /ask endpoint.
// Invariant: len(Sources) == ChunksRetrieved, ordered by descending
// similarity exactly as the retriever produced them.
type AskResponse struct {
	Answer          string   `json:"answer"`
	Sources         []Source `json:"sources"`
	LatencyMS       float64  `json:"latency_ms"`
	ChunksRetrieved int      `json:"chunks_retrieved"`
	ModelUsed       string   `json:"model_used,omitempty"`
}

// IndexStats describes the state of a vector index backend.
type IndexStats struct {
	Count     int
	Backend   string
	Available bool
}

// Post is a single forum post inside a topic export, with its content
// already cleaned to plain text by the loader.
type Post struct {
	PostID    string
	Author    string
	CreatedAt string
	Text      string
}

// Topic is one exported forum topic with its posts.
type Topic struct {
	TopicID string
	Title   string
	URL     string
	Posts   []Post
}
