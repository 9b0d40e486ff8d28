package store

import "fmt"

// Backend names accepted by New.
const (
	BackendMemory = "memory"
	BackendSqlite = "sqlite"
)

// New creates a Store based on the backend name.
//
// Supported backends:
//
//	"memory" - map guarded by a mutex (default)
//	"sqlite" - private in-memory SQLite database
//
// Neither backend outlives the process.
func New(backend string) (Store, error) {
	switch backend {
	case BackendMemory, "":
		return NewMemoryStore(), nil
	case BackendSqlite:
		return NewSqliteStore()
	default:
		return nil, fmt.Errorf("unknown store backend: %q (supported: memory, sqlite)", backend)
	}
}
