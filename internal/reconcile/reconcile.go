// Package reconcile applies one remote note record to the vault.
package reconcile

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/dinosync/internal/apperr"
	"github.com/starford/dinosync/internal/frontmatter"
	"github.com/starford/dinosync/internal/identity"
	"github.com/starford/dinosync/internal/markdown"
	"github.com/starford/dinosync/internal/models"
	"github.com/starford/dinosync/internal/pathing"
	"github.com/starford/dinosync/internal/settings"
	"github.com/starford/dinosync/internal/vault"
)

// Reconciler decides and performs create, update, move, delete or skip for
// each remote note. It is not safe for concurrent use: callers own the
// identity map they pass in.
type Reconciler struct {
	store    vault.Provider
	cache    *vault.Cache
	resolver *pathing.Resolver
	logger   *slog.Logger
}

// New creates a reconciler.
func New(store vault.Provider, cache *vault.Cache, resolver *pathing.Resolver, logger *slog.Logger) *Reconciler {
	return &Reconciler{store: store, cache: cache, resolver: resolver, logger: logger}
}

// Apply reconciles note, delivered in the day bucket date, against the
// vault. ids is updated in place to reflect the note's final location.
func (r *Reconciler) Apply(note models.RemoteNote, date string, ids map[string]string, scan identity.Index, s settings.Settings) (Outcome, error) {
	id := strings.TrimSpace(note.NoteID)
	if id == "" {
		return Outcome{}, apperr.ErrEmptyNoteID
	}
	note.NoteID = id
	out := Outcome{NoteID: id, Date: date}

	desired := r.resolver.DesiredPath(note, date, s)
	existing := r.locate(id, desired, ids, scan)

	var preserved frontmatter.Preserved
	if existing != "" {
		fm, err := r.cache.Frontmatter(existing)
		if err != nil {
			return out, fmt.Errorf("reconcile: read %s: %w", existing, err)
		}
		if ignored, ok := fm.Bool(s.IgnoreSyncKey); ok && ignored {
			ids[id] = existing
			out.Kind = SkippedIgnored
			out.Path = existing
			return out, nil
		}

		if !note.IsDel && len(s.PreserveKeys) > 0 {
			data, err := r.store.Read(existing)
			if err != nil {
				return out, fmt.Errorf("reconcile: read %s: %w", existing, err)
			}
			preserved, err = frontmatter.Collect(string(data), s.PreserveKeys)
			if err != nil {
				r.logger.Warn("reconcile: cannot read preserved keys",
					slog.String("path", existing),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	if note.IsDel {
		return r.remove(out, existing, ids)
	}
	return r.upsert(out, note, desired, existing, preserved, ids)
}

// locate finds the note's current file: the identity map first, then the
// vault scan, then the desired path when its frontmatter carries the id.
// Stale map entries are dropped.
func (r *Reconciler) locate(id, desired string, ids map[string]string, scan identity.Index) string {
	if p, ok := ids[id]; ok {
		if vault.IsFile(r.store, p) {
			return p
		}
		r.logger.Debug("reconcile: dropping stale mapping",
			slog.String("note", id),
			slog.String("path", p),
		)
		delete(ids, id)
	}
	if p, ok := scan.Lookup(id); ok && vault.IsFile(r.store, p) {
		return p
	}
	if vault.IsFile(r.store, desired) {
		fm, err := r.cache.Frontmatter(desired)
		if err == nil {
			if got, ok := frontmatter.NoteID(fm); ok && got == id {
				return desired
			}
		}
	}
	return ""
}

func (r *Reconciler) remove(out Outcome, existing string, ids map[string]string) (Outcome, error) {
	if existing == "" {
		delete(ids, out.NoteID)
		out.Kind = SkippedMissing
		return out, nil
	}

	out.Title = r.localTitle(existing)
	if _, err := r.store.Trash(existing); err != nil {
		return out, fmt.Errorf("reconcile: trash %s: %w", existing, err)
	}
	r.cache.Invalidate(existing)
	delete(ids, out.NoteID)

	out.Kind = Deleted
	out.Path = existing
	return out, nil
}

func (r *Reconciler) upsert(out Outcome, note models.RemoteNote, desired, existing string, preserved frontmatter.Preserved, ids map[string]string) (Outcome, error) {
	content, err := r.render(note, preserved)
	if err != nil {
		return out, fmt.Errorf("reconcile: render %s: %w", note.ShortID(), err)
	}

	target := r.resolver.Resolve(desired, note.NoteID, existing)
	kind := Updated
	switch {
	case existing == "":
		kind = Created
		if vault.IsFile(r.store, target) {
			kind = Updated
		}
	case target != existing:
		if err := r.store.Move(existing, target); err != nil {
			if !errors.Is(err, apperr.ErrAlreadyExists) {
				return out, fmt.Errorf("reconcile: move %s: %w", existing, err)
			}
			r.logger.Warn("reconcile: move target taken, updating in place",
				slog.String("from", existing),
				slog.String("to", target),
			)
			target = existing
		} else {
			r.cache.Invalidate(existing)
			out.PrevPath = existing
			kind = Moved
		}
	}

	written, err := vault.WriteIfChanged(r.store, target, []byte(content))
	if err != nil {
		return out, fmt.Errorf("reconcile: write %s: %w", target, err)
	}
	r.cache.Invalidate(target)
	if !written && kind == Updated {
		kind = Unchanged
	}

	ids[note.NoteID] = target
	out.Kind = kind
	out.Path = target
	out.Title = strings.TrimSpace(note.Title)
	if out.Title == "" {
		out.Title = markdown.HumanizeName(target)
	}
	out.Preview = markdown.Preview(content)
	return out, nil
}

// render produces the file content for note: cleaned image URLs, the note
// id in frontmatter, then the preserved local keys on top. A frontmatter
// block that is not valid YAML is written as received.
func (r *Reconciler) render(note models.RemoteNote, preserved frontmatter.Preserved) (string, error) {
	content := markdown.CleanImageURLs(note.Content)

	if frontmatter.Malformed(content) {
		r.logger.Warn("reconcile: frontmatter is not valid YAML, writing note unchanged",
			slog.String("note", note.ShortID()),
		)
		return content, nil
	}

	fm, _ := frontmatter.Parse(content)
	if id, ok := frontmatter.NoteID(fm); !ok || id != note.NoteID {
		patched, err := frontmatter.Patch(content, func(e *frontmatter.Editor) error {
			return e.Set(frontmatter.KeyNoteID, frontmatter.String(note.NoteID))
		})
		if err != nil {
			return "", err
		}
		content = patched
	}

	return preserved.Apply(content)
}

func (r *Reconciler) localTitle(p string) string {
	fm, err := r.cache.Frontmatter(p)
	if err == nil {
		if t, ok := fm.String(frontmatter.KeyTitle); ok && strings.TrimSpace(t) != "" {
			return strings.TrimSpace(t)
		}
	}
	return markdown.HumanizeName(p)
}
