package usecases

import (
	"context"
	"crypto/sha256"

	"forumrag/internal/domain/entities"
)

// mockEmbedder produces deterministic vectors derived from the text, so
// identical texts always embed identically.
type mockEmbedder struct {
	dim   int
	err   error
	calls int
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return hashVector(text, m.dim), nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = hashVector(t, m.dim)
	}
	return out, nil
}

func hashVector(text string, dim int) []float32 {
	if dim <= 0 {
		dim = 8
	}
	h := sha256.Sum256([]byte(text))
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(h[i%len(h)])/255 + 0.01
	}
	return v
}

// mockIndex is a canned vector index for pipeline tests.
type mockIndex struct {
	hits  []entities.RetrievedChunk
	stats entities.IndexStats
	err   error

	inserted []entities.ChunkRecord
}

func (m *mockIndex) Insert(ctx context.Context, records []entities.ChunkRecord) error {
	m.inserted = append(m.inserted, records...)
	return m.err
}

func (m *mockIndex) Search(ctx context.Context, vector []float32, topK int) ([]entities.RetrievedChunk, error) {
	if m.err != nil {
		return nil, m.err
	}
	if len(m.hits) > topK {
		return m.hits[:topK], nil
	}
	return m.hits, nil
}

func (m *mockIndex) Stats(ctx context.Context) (entities.IndexStats, error) {
	if m.err != nil {
		return entities.IndexStats{}, m.err
	}
	return m.stats, nil
}

func (m *mockIndex) Clear(ctx context.Context) error { return nil }

// mockGenerator is a canned generation service.
type mockGenerator struct {
	result entities.GenerationResult
	err    error
	calls  int

	lastPrompt      string
	lastMaxTokens   int
	lastTemperature float64
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (entities.GenerationResult, error) {
	m.calls++
	m.lastPrompt = prompt
	m.lastMaxTokens = maxTokens
	m.lastTemperature = temperature
	if m.err != nil {
		return entities.GenerationResult{}, m.err
	}
	if m.result.AnswerText == "" {
		return entities.GenerationResult{AnswerText: "mocked answer", ModelID: "test-model"}, nil
	}
	return m.result, nil
}

func chunk(id string, sim float64) entities.RetrievedChunk {
	return entities.RetrievedChunk{
		ChunkID:    id,
		Text:       "text for " + id,
		Similarity: sim,
		Meta: entities.ChunkMeta{
			URL:   "https://forum.example/t/topic/1",
			Title: "Topic " + id,
		},
	}
}
