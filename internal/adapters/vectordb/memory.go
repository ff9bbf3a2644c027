// Package vectordb provides vector index adapters.
// Clean Architecture: Adapters implementing ports.VectorIndex.
// Every backend reports similarity in the shared [0,1] domain; the
// backend-specific mapping from its native metric lives here and only here.
package vectordb

import (
	"context"
	"math"
	"sort"
	"sync"

	"forumrag/internal/domain/entities"
)

// MemoryIndex is an in-memory vector index using cosine similarity.
// Raw metric: cosine similarity in [-1,1]. Normalization: (cos+1)/2,
// so 1.0 means identical direction and 0.0 means opposite.
type MemoryIndex struct {
	mu      sync.RWMutex
	dim     int
	order   []string // insertion order, for deterministic tie-breaking
	records map[string]entities.ChunkRecord
}

// NewMemoryIndex creates an in-memory index for vectors of the given dimension.
func NewMemoryIndex(dim int) *MemoryIndex {
	return &MemoryIndex{
		dim:     dim,
		records: make(map[string]entities.ChunkRecord),
	}
}

// Insert stores chunk records. Re-inserting a chunk_id replaces the
// record but keeps its original insertion position.
func (m *MemoryIndex) Insert(ctx context.Context, records []entities.ChunkRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range records {
		if len(rec.Embedding) != m.dim {
			return dimensionError("memory", m.dim, len(rec.Embedding))
		}
		if _, exists := m.records[rec.ChunkID]; !exists {
			m.order = append(m.order, rec.ChunkID)
		}
		m.records[rec.ChunkID] = rec
	}
	return nil
}

// Search returns up to topK hits sorted by descending normalized similarity.
func (m *MemoryIndex) Search(ctx context.Context, vector []float32, topK int) ([]entities.RetrievedChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.records) == 0 {
		return nil, nil
	}
	if len(vector) != m.dim {
		return nil, dimensionError("memory", m.dim, len(vector))
	}
	if topK <= 0 {
		return nil, nil
	}

	hits := make([]entities.RetrievedChunk, 0, len(m.order))
	for _, id := range m.order {
		rec := m.records[id]
		hits = append(hits, entities.RetrievedChunk{
			ChunkID:    rec.ChunkID,
			Text:       rec.Text,
			Similarity: normalizeCosine(cosineSimilarity(vector, rec.Embedding)),
			Meta:       rec.Meta,
		})
	}

	// Stable sort keeps insertion order among equal scores.
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Stats reports stored chunk count. The memory backend is always available.
func (m *MemoryIndex) Stats(ctx context.Context) (entities.IndexStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return entities.IndexStats{
		Count:     len(m.records),
		Backend:   "memory",
		Available: true,
	}, nil
}

// Clear removes all data from the index.
func (m *MemoryIndex) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.order = nil
	m.records = make(map[string]entities.ChunkRecord)
	return nil
}

// normalizeCosine maps cosine similarity [-1,1] into [0,1], clamped
// against floating-point drift at the edges.
func normalizeCosine(cos float64) float64 {
	s := (cos + 1) / 2
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Zero vectors yield 0 (orthogonal by convention).
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func dimensionError(backend string, want, got int) error {
	return entities.NewDomainError(entities.ErrTypeConfig, "embedding dimension mismatch", nil).
		WithDetail("backend", backend).
		WithDetail("want", want).
		WithDetail("got", got)
}
