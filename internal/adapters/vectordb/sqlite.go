// SQLite-backed vector index with the persistence scheme inherited from
// the embedded-store adapter family: embeddings serialized as JSON blobs,
// similarity computed in process over a full scan. Fine for forum-sized
// corpora; swap the backend via the factory when the corpus outgrows it.
package vectordb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"forumrag/internal/domain/entities"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteIndex implements ports.VectorIndex with SQLite persistence.
// Raw metric: squared L2 distance, d >= 0. Normalization: 1/(1+d),
// so identical vectors score 1.0 and the score decays toward 0 with distance.
type SQLiteIndex struct {
	mu  sync.RWMutex
	db  *sqlx.DB
	dim int
}

type chunkRow struct {
	ChunkID    string `db:"chunk_id"`
	Text       string `db:"text"`
	Embedding  []byte `db:"embedding"`
	URL        string `db:"url"`
	Title      string `db:"title"`
	PostID     string `db:"post_id"`
	TopicID    string `db:"topic_id"`
	Author     string `db:"author"`
	Timestamp  string `db:"timestamp"`
	ChunkIndex int    `db:"chunk_index"`
}

// NewSQLiteIndex opens (or creates) a persistent index at dataPath.
func NewSQLiteIndex(dataPath string, dim int) (*SQLiteIndex, error) {
	if dataPath == "" {
		dataPath = "./data"
	}
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sqlx.Open("sqlite3", filepath.Join(dataPath, "vectors.db"))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	idx := &SQLiteIndex{db: db, dim: dim}
	if err := idx.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return idx, nil
}

// initSchema creates the chunks table. rowid preserves insertion order
// for deterministic tie-breaking.
func (s *SQLiteIndex) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		chunk_id TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		embedding BLOB NOT NULL,
		url TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		post_id TEXT NOT NULL DEFAULT '',
		topic_id TEXT NOT NULL DEFAULT '',
		author TEXT NOT NULL DEFAULT '',
		timestamp TEXT NOT NULL DEFAULT '',
		chunk_index INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_topic_id ON chunks(topic_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Insert stores chunk records, replacing rows with the same chunk_id.
func (s *SQLiteIndex) Insert(ctx context.Context, records []entities.ChunkRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT OR REPLACE INTO chunks
			(chunk_id, text, embedding, url, title, post_id, topic_id, author, timestamp, chunk_index)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if len(rec.Embedding) != s.dim {
			return dimensionError("sqlite", s.dim, len(rec.Embedding))
		}
		blob, err := json.Marshal(rec.Embedding)
		if err != nil {
			return fmt.Errorf("encoding embedding for %s: %w", rec.ChunkID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			rec.ChunkID, rec.Text, blob,
			rec.Meta.URL, rec.Meta.Title, rec.Meta.PostID, rec.Meta.TopicID,
			rec.Meta.Author, rec.Meta.Timestamp, rec.Meta.ChunkIndex,
		); err != nil {
			return fmt.Errorf("inserting chunk %s: %w", rec.ChunkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Search returns up to topK hits sorted by descending normalized similarity.
func (s *SQLiteIndex) Search(ctx context.Context, vector []float32, topK int) ([]entities.RetrievedChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if topK <= 0 {
		return nil, nil
	}
	if len(vector) != s.dim {
		return nil, dimensionError("sqlite", s.dim, len(vector))
	}

	var rows []chunkRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT chunk_id, text, embedding, url, title, post_id, topic_id, author, timestamp, chunk_index
		FROM chunks ORDER BY rowid
	`); err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	hits := make([]entities.RetrievedChunk, 0, len(rows))
	for _, row := range rows {
		var emb []float32
		if err := json.Unmarshal(row.Embedding, &emb); err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", row.ChunkID, err)
		}
		if len(emb) != s.dim {
			return nil, dimensionError("sqlite", s.dim, len(emb))
		}
		hits = append(hits, entities.RetrievedChunk{
			ChunkID:    row.ChunkID,
			Text:       row.Text,
			Similarity: normalizeL2(squaredL2(vector, emb)),
			Meta: entities.ChunkMeta{
				URL:        row.URL,
				Title:      row.Title,
				PostID:     row.PostID,
				TopicID:    row.TopicID,
				Author:     row.Author,
				Timestamp:  row.Timestamp,
				ChunkIndex: row.ChunkIndex,
			},
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Stats reports stored chunk count and whether the database answers.
func (s *SQLiteIndex) Stats(ctx context.Context) (entities.IndexStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := entities.IndexStats{Backend: "sqlite"}
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM chunks`); err != nil {
		return stats, fmt.Errorf("counting chunks: %w", err)
	}
	stats.Count = count
	stats.Available = true
	return stats, nil
}

// Clear removes all data from the index.
func (s *SQLiteIndex) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return fmt.Errorf("clearing chunks: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}

// normalizeL2 maps squared L2 distance [0,inf) into (0,1], 1.0 at distance 0.
func normalizeL2(dist float64) float64 {
	if dist < 0 {
		return 0
	}
	return 1 / (1 + dist)
}

// squaredL2 computes the squared Euclidean distance between two vectors.
func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
