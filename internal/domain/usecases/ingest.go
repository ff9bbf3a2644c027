package usecases

import (
	"context"
	"fmt"
	"strings"

	"forumrag/internal/domain/entities"
	"forumrag/internal/domain/ports"
	"go.uber.org/zap"
)

// IngestUseCase turns exported forum topics into embedded chunks in the
// vector index. Single Responsibility: Only ingestion logic; this is
// the one path that ever writes to the index.
type IngestUseCase struct {
	embedder     ports.EmbeddingService
	index        ports.VectorIndex
	chunkSize    int
	chunkOverlap int
	batchSize    int
	logger       *zap.Logger
}

// NewIngestUseCase creates an IngestUseCase with injected dependencies.
func NewIngestUseCase(
	embedder ports.EmbeddingService,
	index ports.VectorIndex,
	chunkSize, chunkOverlap int,
	logger *zap.Logger,
) *IngestUseCase {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestUseCase{
		embedder:     embedder,
		index:        index,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		batchSize:    32,
		logger:       logger,
	}
}

// IngestTopics chunks, embeds and stores every post of the given
// topics. Returns the number of chunks inserted.
func (uc *IngestUseCase) IngestTopics(ctx context.Context, topics []entities.Topic) (int, error) {
	var records []entities.ChunkRecord
	for _, topic := range topics {
		for _, post := range topic.Posts {
			records = append(records, uc.chunkPost(topic, post)...)
		}
	}
	if len(records) == 0 {
		return 0, nil
	}

	// Embed in batches; the batch path exists for exactly this caller.
	for start := 0; start < len(records); start += uc.batchSize {
		end := start + uc.batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		texts := make([]string, len(batch))
		for i, rec := range batch {
			texts[i] = rec.Text
		}
		embeddings, err := uc.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embedding batch at %d: %w", start, err)
		}
		if len(embeddings) != len(batch) {
			return 0, fmt.Errorf("embedding count mismatch: want %d, got %d", len(batch), len(embeddings))
		}
		for i := range batch {
			batch[i].Embedding = embeddings[i]
		}
	}

	if err := uc.index.Insert(ctx, records); err != nil {
		return 0, fmt.Errorf("inserting chunks: %w", err)
	}

	uc.logger.Info("topics ingested",
		zap.Int("topics", len(topics)),
		zap.Int("chunks", len(records)))
	return len(records), nil
}

// chunkPost splits a post into overlapping chunks with word-boundary
// breaks. Chunk IDs are deterministic so re-ingesting a post replaces
// its chunks instead of duplicating them.
func (uc *IngestUseCase) chunkPost(topic entities.Topic, post entities.Post) []entities.ChunkRecord {
	content := strings.TrimSpace(post.Text)
	if content == "" {
		return nil
	}

	var records []entities.ChunkRecord
	start := 0
	index := 0

	for start < len(content) {
		end := start + uc.chunkSize
		if end > len(content) {
			end = len(content)
		}

		// Break at a word boundary when not at the end.
		if end < len(content) {
			lastSpace := strings.LastIndex(content[start:end], " ")
			if lastSpace > 0 {
				end = start + lastSpace
			}
		}

		text := strings.TrimSpace(content[start:end])
		if text != "" {
			records = append(records, entities.ChunkRecord{
				ChunkID: fmt.Sprintf("post_%s_chunk_%d", post.PostID, index),
				Text:    text,
				Meta: entities.ChunkMeta{
					URL:        topic.URL,
					Title:      topic.Title,
					PostID:     post.PostID,
					TopicID:    topic.TopicID,
					Author:     post.Author,
					Timestamp:  post.CreatedAt,
					ChunkIndex: index,
				},
			})
			index++
		}

		if end >= len(content) {
			break
		}
		next := end - uc.chunkOverlap
		if next <= start {
			// Overlap would stall the scan; skip it for this step.
			next = end
		}
		start = next
	}

	return records
}
