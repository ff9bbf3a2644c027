package vectordb

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"forumrag/internal/domain/entities"
)

func rec(id string, embedding []float32) entities.ChunkRecord {
	return entities.ChunkRecord{
		ChunkID:   id,
		Text:      "text for " + id,
		Embedding: embedding,
		Meta:      entities.ChunkMeta{Title: "Topic " + id},
	}
}

func TestMemory_SimilarityDomain(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(3)

	records := []entities.ChunkRecord{
		rec("same", []float32{1, 0, 0}),
		rec("orthogonal", []float32{0, 1, 0}),
		rec("opposite", []float32{-1, 0, 0}),
	}
	if err := idx.Insert(ctx, records); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	hits, err := idx.Search(ctx, []float32{1, 0, 0}, 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}
	for _, h := range hits {
		if h.Similarity < 0 || h.Similarity > 1 {
			t.Errorf("similarity out of [0,1] for %s: %f", h.ChunkID, h.Similarity)
		}
	}
	if hits[0].ChunkID != "same" || math.Abs(hits[0].Similarity-1) > 1e-9 {
		t.Errorf("identical vector must score 1.0 first: %+v", hits[0])
	}
	if hits[1].ChunkID != "orthogonal" || math.Abs(hits[1].Similarity-0.5) > 1e-9 {
		t.Errorf("orthogonal vector must score 0.5: %+v", hits[1])
	}
	if hits[2].ChunkID != "opposite" || math.Abs(hits[2].Similarity) > 1e-9 {
		t.Errorf("opposite vector must score 0.0: %+v", hits[2])
	}
}

func TestMemory_EmptyIndexReturnsNoHits(t *testing.T) {
	idx := NewMemoryIndex(3)
	hits, err := idx.Search(context.Background(), []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("empty index must return no hits, got %d", len(hits))
	}
}

func TestMemory_TiesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(2)

	// All four score identically against the query.
	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("c%d", i)
		if err := idx.Insert(ctx, []entities.ChunkRecord{rec(id, []float32{1, 0})}); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	hits, err := idx.Search(ctx, []float32{0, 1}, 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	for i, h := range hits {
		want := fmt.Sprintf("c%d", i)
		if h.ChunkID != want {
			t.Errorf("position %d: want %s, got %s", i, want, h.ChunkID)
		}
	}
}

func TestMemory_ReinsertReplacesRecord(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(2)

	if err := idx.Insert(ctx, []entities.ChunkRecord{rec("c1", []float32{1, 0})}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	updated := rec("c1", []float32{0, 1})
	updated.Text = "updated text"
	if err := idx.Insert(ctx, []entities.ChunkRecord{updated}); err != nil {
		t.Fatalf("reinsert failed: %v", err)
	}

	stats, err := idx.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Count != 1 {
		t.Errorf("reinsert must not duplicate: count %d", stats.Count)
	}

	hits, err := idx.Search(ctx, []float32{0, 1}, 1)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if hits[0].Text != "updated text" {
		t.Errorf("record not replaced: %q", hits[0].Text)
	}
}

func TestMemory_DimensionMismatchIsConfigError(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(3)

	err := idx.Insert(ctx, []entities.ChunkRecord{rec("c1", []float32{1, 0})})
	if !errors.Is(err, &entities.DomainError{Type: entities.ErrTypeConfig}) {
		t.Errorf("insert dimension mismatch must be a config error, got %v", err)
	}

	if err := idx.Insert(ctx, []entities.ChunkRecord{rec("c1", []float32{1, 0, 0})}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	_, err = idx.Search(ctx, []float32{1, 0}, 5)
	if !errors.Is(err, &entities.DomainError{Type: entities.ErrTypeConfig}) {
		t.Errorf("search dimension mismatch must be a config error, got %v", err)
	}
}

func TestMemory_TopKBoundsResults(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(2)
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("c%d", i)
		if err := idx.Insert(ctx, []entities.ChunkRecord{rec(id, []float32{1, float32(i)})}); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	hits, err := idx.Search(ctx, []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(hits) != 3 {
		t.Errorf("expected 3 hits, got %d", len(hits))
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Similarity > hits[i-1].Similarity {
			t.Errorf("hits not sorted descending at %d", i)
		}
	}
}

func TestMemory_Clear(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(2)
	if err := idx.Insert(ctx, []entities.ChunkRecord{rec("c1", []float32{1, 0})}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := idx.Clear(ctx); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	stats, _ := idx.Stats(ctx)
	if stats.Count != 0 {
		t.Errorf("clear must empty the index, count %d", stats.Count)
	}
}
