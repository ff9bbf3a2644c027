// Package ports defines interfaces for external dependencies.
// Clean Architecture: These are the boundaries - usecases depend on these abstractions,
// not concrete implementations. Adapters implement these interfaces.
// This follows Dependency Inversion Principle (DIP) strictly.
package ports

import (
	"context"

	"forumrag/internal/domain/entities"
)

// EmbeddingService turns text into fixed-dimension vectors.
// Interface Segregation: Only embedding responsibility, nothing else.
type EmbeddingService interface {
	// Embed generates a vector embedding for a single query string.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts efficiently.
	// Used by the ingestion path only, never at query time.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// GenerationService produces an answer from an assembled prompt.
// The adapter owns retry/backoff and error classification; callers see
// typed errors (auth, rate_limit, timeout, provider) only after retries
// are exhausted.
type GenerationService interface {
	Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (entities.GenerationResult, error)
}

// VectorIndex stores chunk embeddings and answers similarity searches.
// Dependency Inversion: Usecases depend on this abstraction, not on a
// concrete backend.
//
// Contract: Search returns hits sorted by descending similarity in the
// normalized [0,1] domain, 1.0 meaning identical. Each backend maps its
// native distance metric into that domain itself; nothing downstream
// ever sees a raw score. Searching an empty index returns an empty
// slice, not an error. Ties are broken by insertion order.
type VectorIndex interface {
	// Insert stores chunk records with their embeddings.
	Insert(ctx context.Context, records []entities.ChunkRecord) error

	// Search returns up to topK hits for the query vector.
	Search(ctx context.Context, vector []float32, topK int) ([]entities.RetrievedChunk, error)

	// Stats reports backend identity, stored chunk count and availability.
	Stats(ctx context.Context) (entities.IndexStats, error)

	// Clear removes all data from the index.
	Clear(ctx context.Context) error
}

// TopicLoader reads exported forum topics from a file.
type TopicLoader interface {
	// Load parses a topic export file into domain topics.
	Load(ctx context.Context, path string) ([]entities.Topic, error)

	// SupportedExtensions returns file extensions this loader handles.
	SupportedExtensions() []string
}

// FileWatcher monitors a directory for changes.
type FileWatcher interface {
	// Watch starts monitoring the directory and emits events.
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)

	// Stop stops the watcher.
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)
