package identity

import (
	"testing"

	"github.com/starford/dinosync/internal/testutil"
	"github.com/starford/dinosync/internal/vault"
)

func TestBuild(t *testing.T) {
	_, store := testutil.TestVault(t)
	testutil.WriteNote(t, store, "Sync/a.md", "---\nnoteId: a1\n---\nA")
	testutil.WriteNote(t, store, "Sync/sub/b.md", "---\nsource_app_id: 42\n---\nB")
	testutil.WriteNote(t, store, "Sync/plain.md", "no frontmatter")
	testutil.WriteNote(t, store, "Other/c.md", "---\nnoteId: c1\n---\nC")
	testutil.WriteNote(t, store, "Sync/.trash/old.md", "---\nnoteId: t1\n---\n")

	ix, err := Build(store, vault.NewCache(store), "Sync", testutil.Logger())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p, ok := ix.Lookup("a1"); !ok || p != "Sync/a.md" {
		t.Errorf("a1 = %q %v", p, ok)
	}
	if p, ok := ix.Lookup("42"); !ok || p != "Sync/sub/b.md" {
		t.Errorf("legacy id = %q %v", p, ok)
	}
	if _, ok := ix.Lookup("c1"); ok {
		t.Error("files outside baseDir must not be indexed")
	}
	if _, ok := ix.Lookup("t1"); ok {
		t.Error("hidden directories must not be indexed")
	}
	if len(ix.ByID) != 2 {
		t.Errorf("ByID = %v", ix.ByID)
	}
}

func TestBuild_DuplicatesFirstWins(t *testing.T) {
	_, store := testutil.TestVault(t)
	testutil.WriteNote(t, store, "Sync/1.md", "---\nnoteId: dup\n---\n")
	testutil.WriteNote(t, store, "Sync/2.md", "---\nnoteId: dup\n---\n")

	ix, err := Build(store, vault.NewCache(store), "Sync", testutil.Logger())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if ix.ByID["dup"] != "Sync/1.md" {
		t.Errorf("first file should win, got %q", ix.ByID["dup"])
	}
	if got := ix.Duplicates["dup"]; len(got) != 1 || got[0] != "Sync/2.md" {
		t.Errorf("duplicates = %v", got)
	}
}

func TestBuild_MissingDir(t *testing.T) {
	_, store := testutil.TestVault(t)
	ix, err := Build(store, vault.NewCache(store), "Nope", testutil.Logger())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(ix.ByID) != 0 {
		t.Errorf("ByID = %v", ix.ByID)
	}
}

func TestMerge_PersistedWins(t *testing.T) {
	persisted := map[string]string{"a": "Sync/moved.md", "": "x.md"}
	scanned := map[string]string{"a": "Sync/a.md", "b": "Sync/b.md"}

	got := Merge(persisted, scanned)
	if got["a"] != "Sync/moved.md" {
		t.Errorf("a = %q, persisted entry should win", got["a"])
	}
	if got["b"] != "Sync/b.md" {
		t.Errorf("b = %q, scan should fill gaps", got["b"])
	}
	if _, ok := got[""]; ok {
		t.Error("empty id must be dropped")
	}
	persisted["c"] = "c.md"
	if _, ok := got["c"]; ok {
		t.Error("Merge must copy its inputs")
	}
}
