package cache

import (
	"context"
	"path/filepath"
)

// Backend names accepted by OpenStore.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// OpenStore builds the store for backend rooted at dir. Unknown backends use
// the file store.
func OpenStore(ctx context.Context, backend, dir string) (Store, error) {
	switch backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendSQLite:
		return OpenSQLiteStore(ctx, filepath.Join(dir, "cache.db"))
	default:
		return NewFileStore(dir), nil
	}
}
