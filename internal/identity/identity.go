// Package identity maps remote note ids to vault paths.
package identity

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/starford/dinosync/internal/frontmatter"
	"github.com/starford/dinosync/internal/vault"
)

// Index is the result of a vault scan.
type Index struct {
	// ByID holds the first path found for each note id.
	ByID map[string]string
	// Duplicates holds the later paths that claimed an id already in ByID.
	Duplicates map[string][]string
}

// Lookup returns the scanned path for id.
func (ix Index) Lookup(id string) (string, bool) {
	p, ok := ix.ByID[id]
	return p, ok
}

// Build scans every markdown file under baseDir and indexes it by the
// noteId (or legacy source_app_id) in its frontmatter. A missing baseDir
// yields an empty index. Duplicate ids are reported in a single warning.
func Build(store vault.Provider, cache *vault.Cache, baseDir string, logger *slog.Logger) (Index, error) {
	ix := Index{ByID: make(map[string]string), Duplicates: make(map[string][]string)}
	if !vault.IsDir(store, baseDir) {
		return ix, nil
	}

	files, err := store.List(baseDir)
	if err != nil {
		return ix, fmt.Errorf("identity: scan %s: %w", baseDir, err)
	}
	for _, f := range files {
		fm, err := cache.Frontmatter(f.Path)
		if err != nil {
			logger.Debug("identity: skip unreadable file",
				slog.String("path", f.Path),
				slog.String("error", err.Error()),
			)
			continue
		}
		id, ok := frontmatter.NoteID(fm)
		if !ok {
			continue
		}
		if _, taken := ix.ByID[id]; taken {
			ix.Duplicates[id] = append(ix.Duplicates[id], f.Path)
			continue
		}
		ix.ByID[id] = f.Path
	}

	if len(ix.Duplicates) > 0 {
		ids := make([]string, 0, len(ix.Duplicates))
		for id := range ix.Duplicates {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		logger.Warn("identity: duplicate note ids in vault",
			slog.Int("count", len(ids)),
			slog.Any("ids", ids),
		)
	}
	return ix, nil
}

// Merge combines the persisted map with scan results. Persisted entries win;
// scanned entries only fill gaps. Neither input is modified.
func Merge(persisted, scanned map[string]string) map[string]string {
	out := make(map[string]string, len(persisted)+len(scanned))
	for id, p := range scanned {
		out[id] = p
	}
	for id, p := range persisted {
		if id == "" || p == "" {
			continue
		}
		out[id] = p
	}
	return out
}
