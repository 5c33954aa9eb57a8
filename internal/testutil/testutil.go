// Package testutil provides shared test helpers for setting up stores and databases.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/protasker/internal/index"
	"github.com/starford/protasker/internal/storage"
	"github.com/starford/protasker/internal/store"
)

// StoreFile is the document name used by TestStore.
const StoreFile = "annotations.json"

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "protasker-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestStore opens an empty annotation store in a temporary directory.
func TestStore(t *testing.T, opts ...store.Option) (string, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	fs, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store.Open(fs, StoreFile, opts...)
}
