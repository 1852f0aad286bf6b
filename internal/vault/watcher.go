package vault

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watch starts an fsnotify watcher on the vault root and drops cache
// entries for every .md file that changes outside the sync engine, until
// ctx is cancelled.
//
// New directories created at runtime are added to the watch list; hidden
// directories (.trash, .obsidian) are never watched.
func (c *Cache) Watch(ctx context.Context, root *FS, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root.Root()); err != nil {
		return err
	}

	logger.Info("vault: watcher started", slog.String("root", root.Root()))

	for {
		select {
		case <-ctx.Done():
			logger.Info("vault: watcher stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if strings.HasPrefix(info.Name(), ".") {
						continue
					}
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("vault: watch new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					continue
				}
			}

			if !strings.HasSuffix(ev.Name, ".md") {
				continue
			}
			rel, ok := root.Rel(ev.Name)
			if !ok {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				c.Invalidate(rel)
				logger.Debug("vault: cache invalidated", slog.String("path", rel), slog.String("op", ev.Op.String()))
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("vault: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

// addDirsRecursive adds root and all its non-hidden subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
