package usecases

import (
	"context"
	"time"

	"forumrag/internal/domain/entities"
	"forumrag/internal/domain/ports"
	"go.uber.org/zap"
)

// NoSourcesAnswer is returned without calling the generation provider
// when retrieval finds nothing relevant. Short-circuiting avoids an
// ungrounded, confidently-wrong answer.
const NoSourcesAnswer = "I couldn't find any relevant information in the knowledge base to answer your question. Please try rephrasing your question or check if the data has been indexed."

const sourcePreviewLen = 200

// QueryEngine orchestrates the query pipeline:
// Validate -> Embed -> Retrieve -> BuildPrompt -> Generate -> Assemble.
// Each stage consumes the prior stage's output; failures surface as
// typed errors rather than degraded answers.
type QueryEngine struct {
	embedder  ports.EmbeddingService
	retriever *Retriever
	prompts   *PromptBuilder
	llm       ports.GenerationService
	logger    *zap.Logger

	defaultMaxTokens   int
	defaultTemperature float64
}

// NewQueryEngine creates a QueryEngine with injected dependencies.
// Dependency Injection: Adapters are constructed at process start and
// passed in, never created here.
func NewQueryEngine(
	embedder ports.EmbeddingService,
	retriever *Retriever,
	prompts *PromptBuilder,
	llm ports.GenerationService,
	defaultMaxTokens int,
	defaultTemperature float64,
	logger *zap.Logger,
) *QueryEngine {
	if defaultMaxTokens <= 0 {
		defaultMaxTokens = 1000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryEngine{
		embedder:           embedder,
		retriever:          retriever,
		prompts:            prompts,
		llm:                llm,
		logger:             logger,
		defaultMaxTokens:   defaultMaxTokens,
		defaultTemperature: defaultTemperature,
	}
}

// Answer runs the full pipeline for one question.
func (e *QueryEngine) Answer(ctx context.Context, q entities.Query) (entities.AskResponse, error) {
	start := time.Now()

	// Validate: reject before any external call.
	q.Normalize()
	if err := q.Validate(); err != nil {
		return entities.AskResponse{}, err
	}

	// Embed.
	vector, err := e.embedder.Embed(ctx, q.Text)
	if err != nil {
		if entities.IsConfigError(err) {
			return entities.AskResponse{}, err
		}
		return entities.AskResponse{}, entities.NewDomainError(entities.ErrTypeEmbedding, "embedding query failed", err)
	}

	// Retrieve.
	retrievalStart := time.Now()
	chunks, err := e.retriever.Search(ctx, vector, q.TopK)
	if err != nil {
		return entities.AskResponse{}, err
	}
	retrievalMS := msSince(retrievalStart)

	// Zero relevant chunks is not an error: short-circuit with the
	// canned answer instead of generating without grounding.
	if len(chunks) == 0 {
		e.logger.Warn("no chunks retrieved", zap.String("query", truncate(q.Text, 80)))
		return entities.AskResponse{
			Answer:          NoSourcesAnswer,
			Sources:         []entities.Source{},
			LatencyMS:       msSince(start),
			ChunksRetrieved: 0,
		}, nil
	}

	// BuildPrompt: budget enforcement may drop low-similarity chunks,
	// and citations follow what actually entered the prompt.
	prompt, included := e.prompts.Build(q.Text, chunks)

	// Generate.
	maxTokens := q.MaxTokens
	if maxTokens <= 0 {
		maxTokens = e.defaultMaxTokens
	}
	temperature := q.Temperature
	if temperature == 0 {
		temperature = e.defaultTemperature
	}

	result, err := e.llm.Generate(ctx, prompt.Flatten(), maxTokens, temperature)
	if err != nil {
		// Retrieval already succeeded; preserve its telemetry on the
		// failure path so operators can tell "nothing found" apart
		// from "found content but the model failed".
		return entities.AskResponse{}, entities.NewDomainError(entities.ErrTypeGeneration, "answer generation failed", err).
			WithDetail("chunks_retrieved", len(included)).
			WithDetail("retrieval_ms", retrievalMS)
	}

	answer := result.AnswerText
	if answer == "" {
		answer = "I couldn't generate a response. Please try again."
	}

	// Assemble.
	sources := make([]entities.Source, len(included))
	for i, c := range included {
		sources[i] = entities.Source{
			URL:        c.Meta.URL,
			Title:      sourceTitle(c.Meta.Title),
			PostID:     c.Meta.PostID,
			TopicID:    c.Meta.TopicID,
			Similarity: c.Similarity,
			ChunkText:  truncate(c.Text, sourcePreviewLen),
		}
	}

	resp := entities.AskResponse{
		Answer:          answer,
		Sources:         sources,
		LatencyMS:       msSince(start),
		ChunksRetrieved: len(included),
		ModelUsed:       result.ModelID,
	}

	e.logger.Info("query answered",
		zap.Int("chunks", resp.ChunksRetrieved),
		zap.Float64("latency_ms", resp.LatencyMS),
		zap.Float64("retrieval_ms", retrievalMS),
		zap.String("model", resp.ModelUsed))

	return resp, nil
}

// Search runs the retrieval half of the pipeline only, bypassing the
// generation provider. Used by the /search debug endpoint.
func (e *QueryEngine) Search(ctx context.Context, q entities.Query) ([]entities.RetrievedChunk, error) {
	q.Normalize()
	if err := q.Validate(); err != nil {
		return nil, err
	}

	vector, err := e.embedder.Embed(ctx, q.Text)
	if err != nil {
		if entities.IsConfigError(err) {
			return nil, err
		}
		return nil, entities.NewDomainError(entities.ErrTypeEmbedding, "embedding query failed", err)
	}
	return e.retriever.Search(ctx, vector, q.TopK)
}

// Ready reports whether the engine can answer queries: the index must
// be reachable and non-empty. It performs no embedding or generation
// calls, so health polling stays cheap.
func (e *QueryEngine) Ready(ctx context.Context) (entities.IndexStats, bool, error) {
	stats, err := e.retriever.Stats(ctx)
	if err != nil {
		return stats, false, entities.NewDomainError(entities.ErrTypeNotReady, "vector store unavailable", err)
	}
	return stats, stats.Available && stats.Count > 0, nil
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t)) / float64(time.Millisecond)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func sourceTitle(title string) string {
	if title == "" {
		return "Untitled"
	}
	return title
}
