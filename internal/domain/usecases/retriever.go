// Package usecases contains application business rules.
// Clean Architecture: Usecases orchestrate entities and depend on port interfaces.
// They contain NO framework code - just the query and ingestion pipelines.
package usecases

import (
	"context"
	"sort"

	"forumrag/internal/domain/entities"
	"forumrag/internal/domain/ports"
	"go.uber.org/zap"
)

// Over-fetch protects the final result count against dedup losses when
// overlapping chunks surface the same chunk_id more than once.
const (
	overFetchFactor = 2
	maxFetch        = 50
)

// Retriever wraps the vector index and converts raw hits into ranked,
// deduplicated retrieval results.
type Retriever struct {
	index         ports.VectorIndex
	minSimilarity float64
	logger        *zap.Logger
}

// NewRetriever creates a Retriever. minSimilarity of 0 disables the
// similarity cutoff, relying on top-k and ranking only.
func NewRetriever(index ports.VectorIndex, minSimilarity float64, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{
		index:         index,
		minSimilarity: minSimilarity,
		logger:        logger,
	}
}

// Search returns up to topK deduplicated chunks sorted by descending
// similarity. If a similarity cutoff is configured and every hit falls
// below it, the result is empty; the caller decides how to present that.
func (r *Retriever) Search(ctx context.Context, vector []float32, topK int) ([]entities.RetrievedChunk, error) {
	if topK <= 0 {
		topK = entities.DefaultTopK
	}

	fetch := topK * overFetchFactor
	if fetch > maxFetch {
		fetch = maxFetch
	}
	if fetch < topK {
		fetch = topK
	}

	hits, err := r.index.Search(ctx, vector, fetch)
	if err != nil {
		if entities.IsConfigError(err) {
			return nil, err
		}
		return nil, entities.NewDomainError(entities.ErrTypeRetrieval, "vector search failed", err)
	}

	// Hits arrive sorted descending, so the first occurrence of a
	// chunk_id is its highest-similarity one.
	seen := make(map[string]struct{}, len(hits))
	results := make([]entities.RetrievedChunk, 0, len(hits))
	for _, h := range hits {
		if h.ChunkID != "" {
			if _, dup := seen[h.ChunkID]; dup {
				continue
			}
			seen[h.ChunkID] = struct{}{}
		}
		if r.minSimilarity > 0 && h.Similarity < r.minSimilarity {
			continue
		}
		results = append(results, h)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > topK {
		results = results[:topK]
	}

	r.logger.Debug("retrieval complete",
		zap.Int("requested", topK),
		zap.Int("fetched", len(hits)),
		zap.Int("returned", len(results)),
		zap.Float64("min_similarity", r.minSimilarity))

	return results, nil
}

// Stats reports the underlying index state for health checks.
func (r *Retriever) Stats(ctx context.Context) (entities.IndexStats, error) {
	return r.index.Stats(ctx)
}
