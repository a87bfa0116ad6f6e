package state

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Store persists session states by id.
type Store interface {
	// Save creates or replaces the state stored under s.ID.
	Save(ctx context.Context, s *SessionState) error

	// Load returns ErrNotFound when nothing is stored and ErrInvalid when the
	// stored record fails validation.
	Load(ctx context.Context, id string) (*SessionState, error)

	// Delete removes the state; deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error

	// List returns every valid stored state. Invalid records are skipped.
	List(ctx context.Context) ([]*SessionState, error)

	Close() error
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Open creates the store for backend rooted at path.
func Open(backend, path string) (Store, error) {
	switch backend {
	case BackendFile:
		return NewFileStore(path)
	case BackendSQLite:
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("create state directory: %w", err)
		}
		return NewSQLiteStore(filepath.Join(path, "state.db"))
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", backend)
	}
}
