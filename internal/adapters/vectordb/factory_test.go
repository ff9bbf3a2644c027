package vectordb

import (
	"testing"

	"forumrag/internal/domain/entities"
)

func TestFactory(t *testing.T) {
	idx, err := New("memory", "", 3)
	if err != nil {
		t.Fatalf("memory backend: %v", err)
	}
	if _, ok := idx.(*MemoryIndex); !ok {
		t.Errorf("wrong backend type: %T", idx)
	}

	idx, err = New("sqlite", t.TempDir(), 3)
	if err != nil {
		t.Fatalf("sqlite backend: %v", err)
	}
	sq, ok := idx.(*SQLiteIndex)
	if !ok {
		t.Fatalf("wrong backend type: %T", idx)
	}
	sq.Close()

	_, err = New("postgres", "", 3)
	if entities.ErrorTypeOf(err) != entities.ErrTypeConfig {
		t.Errorf("unknown backend must be a config error, got %v", err)
	}
}
