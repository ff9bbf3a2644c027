package usecases

import (
	"context"
	"strings"
	"testing"

	"forumrag/internal/domain/entities"
)

func testTopic(postText string) entities.Topic {
	return entities.Topic{
		TopicID: "5",
		Title:   "Reading Club",
		URL:     "https://forum.example/t/reading-club/5",
		Posts: []entities.Post{
			{PostID: "12", Author: "alice", CreatedAt: "2024-01-01T00:00:00Z", Text: postText},
		},
	}
}

func TestIngest_ChunkIDsAndMeta(t *testing.T) {
	embedder := &mockEmbedder{dim: 8}
	index := &mockIndex{}
	uc := NewIngestUseCase(embedder, index, 500, 50, nil)

	n, err := uc.IngestTopics(context.Background(), []entities.Topic{testTopic("The reading club meets monthly.")})
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if n != 1 || len(index.inserted) != 1 {
		t.Fatalf("expected 1 chunk, got %d", n)
	}

	rec := index.inserted[0]
	if rec.ChunkID != "post_12_chunk_0" {
		t.Errorf("unexpected chunk id: %s", rec.ChunkID)
	}
	if rec.Meta.TopicID != "5" || rec.Meta.PostID != "12" || rec.Meta.Title != "Reading Club" {
		t.Errorf("metadata not propagated: %+v", rec.Meta)
	}
	if len(rec.Embedding) != 8 {
		t.Errorf("embedding not attached: %d dims", len(rec.Embedding))
	}
}

func TestIngest_LongPostSplitsWithOverlap(t *testing.T) {
	embedder := &mockEmbedder{dim: 8}
	index := &mockIndex{}
	uc := NewIngestUseCase(embedder, index, 100, 20, nil)

	text := strings.Repeat("forum post content here ", 30) // ~720 chars
	n, err := uc.IngestTopics(context.Background(), []entities.Topic{testTopic(text)})
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if n < 2 {
		t.Fatalf("long post must split into multiple chunks, got %d", n)
	}
	for i, rec := range index.inserted {
		if len(rec.Text) > 100 {
			t.Errorf("chunk %d exceeds chunk size: %d", i, len(rec.Text))
		}
		if rec.Meta.ChunkIndex != i {
			t.Errorf("chunk index mismatch at %d: %d", i, rec.Meta.ChunkIndex)
		}
	}
}

func TestIngest_EmptyPostsProduceNothing(t *testing.T) {
	embedder := &mockEmbedder{dim: 8}
	index := &mockIndex{}
	uc := NewIngestUseCase(embedder, index, 500, 50, nil)

	n, err := uc.IngestTopics(context.Background(), []entities.Topic{testTopic("   ")})
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if n != 0 || len(index.inserted) != 0 {
		t.Errorf("blank posts must not produce chunks: %d", n)
	}
	if embedder.calls != 0 {
		t.Error("nothing to embed for blank posts")
	}
}

func TestIngest_BatchesLargeTopics(t *testing.T) {
	embedder := &mockEmbedder{dim: 8}
	index := &mockIndex{}
	uc := NewIngestUseCase(embedder, index, 50, 0, nil)

	// Enough text for well over one 32-chunk embedding batch.
	text := strings.Repeat("w ", 2000)
	n, err := uc.IngestTopics(context.Background(), []entities.Topic{testTopic(text)})
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if n <= 32 {
		t.Fatalf("test needs more than one batch, got %d chunks", n)
	}
	if embedder.calls < 2 {
		t.Errorf("expected multiple embedding batches, got %d calls", embedder.calls)
	}
	for _, rec := range index.inserted {
		if len(rec.Embedding) != 8 {
			t.Fatalf("chunk %s missing embedding", rec.ChunkID)
		}
	}
}
