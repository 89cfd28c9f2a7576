package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/mmynk/tripshare/internal/storage/storagetest"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")
	store, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore(t *testing.T) {
	storagetest.Run(t, newTestStore(t))
}

func TestNew_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	store.Close()

	// Migrations must be idempotent.
	store, err = New(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	store.Close()
}
