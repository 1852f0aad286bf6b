package vault

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCache_Frontmatter(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("n.md", []byte("---\nnoteId: a1\n---\nbody"))
	c := NewCache(s)

	fm, err := c.Frontmatter("n.md")
	if err != nil {
		t.Fatalf("Frontmatter: %v", err)
	}
	if id, _ := fm.String("noteId"); id != "a1" {
		t.Errorf("noteId = %q", id)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d", c.Len())
	}
}

func TestCache_RevalidatesOnChange(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("n.md", []byte("---\nnoteId: a1\n---\n"))
	c := NewCache(s)
	_, _ = c.Frontmatter("n.md")

	_ = s.Write("n.md", []byte("---\nnoteId: b22\n---\nlonger"))
	fm, err := c.Frontmatter("n.md")
	if err != nil {
		t.Fatalf("Frontmatter: %v", err)
	}
	if id, _ := fm.String("noteId"); id != "b22" {
		t.Errorf("stale cache: noteId = %q", id)
	}
}

func TestCache_NoFrontmatterIsEmptyMap(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("plain.md", []byte("just text"))
	fm, err := NewCache(s).Frontmatter("plain.md")
	if err != nil {
		t.Fatalf("Frontmatter: %v", err)
	}
	if fm == nil || len(fm) != 0 {
		t.Errorf("fm = %v", fm)
	}
}

func TestCache_MissingFile(t *testing.T) {
	s := tempVault(t)
	if _, err := NewCache(s).Frontmatter("none.md"); !IsNotExist(err) {
		t.Errorf("err = %v, want not-exist", err)
	}
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatch_InvalidatesExternalEdits(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("w.md", []byte("---\nnoteId: w\n---\n"))
	c := NewCache(s)
	_, _ = c.Frontmatter("w.md")

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Watch(ctx, s, logger) }()

	time.Sleep(100 * time.Millisecond)
	_ = os.WriteFile(filepath.Join(s.Root(), "w.md"), []byte("---\nnoteId: changed\n---\n"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return c.Len() == 0
	}, "cache entry not invalidated by watcher")
}
