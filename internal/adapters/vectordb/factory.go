package vectordb

import (
	"forumrag/internal/domain/entities"
	"forumrag/internal/domain/ports"
)

// New selects a vector index backend by name. An unknown backend is a
// configuration error, fatal at startup.
func New(backend, dataPath string, dim int) (ports.VectorIndex, error) {
	switch backend {
	case "memory":
		return NewMemoryIndex(dim), nil
	case "sqlite":
		return NewSQLiteIndex(dataPath, dim)
	default:
		return nil, entities.NewDomainError(entities.ErrTypeConfig, "unknown vector store backend", nil).
			WithDetail("backend", backend)
	}
}
