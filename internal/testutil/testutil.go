// Package testutil provides shared test helpers for setting up vaults and databases.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/starford/dinosync/internal/state"
	"github.com/starford/dinosync/internal/vault"
)

// TestDB creates a temporary SQLite state database that is automatically cleaned up.
func TestDB(t *testing.T) *state.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "dinosync-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := state.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a vault.FS.
func TestVault(t *testing.T) (string, *vault.FS) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := vault.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// WriteNote writes content to path in store, failing the test on error.
func WriteNote(t *testing.T, store vault.Provider, path, content string) {
	t.Helper()
	if err := store.Write(path, []byte(content)); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// ReadNote returns the content of path in store, failing the test on error.
func ReadNote(t *testing.T, store vault.Provider, path string) string {
	t.Helper()
	data, err := store.Read(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
