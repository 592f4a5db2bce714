package testutil

import (
	"path/filepath"
	"testing"

	"github.com/slaplab/slaplab/internal/registry"
)

// OpenRegistry creates a temporary instance registry and returns a cleanup function.
func OpenRegistry(t *testing.T) (*registry.Registry, func()) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "registry.db")
	reg, err := registry.Open(registry.Options{Path: dbPath})
	if err != nil {
		t.Fatalf("open registry: %v", err)
	}
	return reg, func() { _ = reg.Close() }
}
