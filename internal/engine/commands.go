package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/dinosync/internal/apperr"
	"github.com/starford/dinosync/internal/frontmatter"
	"github.com/starford/dinosync/internal/markdown"
	"github.com/starford/dinosync/internal/remote"
	"github.com/starford/dinosync/internal/state"
)

// PushNote sends the local note at path to the remote service. The note
// must already carry a noteId.
func (e *Engine) PushNote(ctx context.Context, path string) (string, error) {
	text, fm, body, err := e.readNote(path)
	if err != nil {
		return "", err
	}
	id, ok := frontmatter.NoteID(fm)
	if !ok {
		return "", fmt.Errorf("push %s: %w", path, apperr.ErrMissingNoteID)
	}
	client, err := e.client(ctx)
	if err != nil {
		return "", err
	}

	in := noteInput(path, fm, body)
	if err := client.UpdateNote(ctx, id, in); err != nil {
		return "", fmt.Errorf("push %s: %w", path, err)
	}
	e.logger.Info("sync: pushed note",
		slog.String("path", path),
		slog.String("note", id),
		slog.Int("bytes", len(text)),
	)
	e.notifier.Show("Dinox: pushed " + in.Title).Hide(successHide)
	return id, nil
}

// CreateNote creates the local note at path on the remote service and
// writes the returned id into its frontmatter. The note must not already
// carry a noteId.
func (e *Engine) CreateNote(ctx context.Context, path string) (string, error) {
	text, fm, body, err := e.readNote(path)
	if err != nil {
		return "", err
	}
	if _, ok := frontmatter.NoteID(fm); ok {
		return "", fmt.Errorf("create %s: %w", path, apperr.ErrHasNoteID)
	}
	client, err := e.client(ctx)
	if err != nil {
		return "", err
	}

	in := noteInput(path, fm, body)
	id, err := client.CreateNote(ctx, in)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}

	patched, err := frontmatter.Patch(text, func(ed *frontmatter.Editor) error {
		return ed.Set(frontmatter.KeyNoteID, frontmatter.String(id))
	})
	if err != nil {
		return id, fmt.Errorf("create %s: record id: %w", path, err)
	}
	if err := e.store.Write(path, []byte(patched)); err != nil {
		return id, fmt.Errorf("create %s: record id: %w", path, err)
	}
	e.cache.Invalidate(path)

	if err := e.track(ctx, id, path); err != nil {
		e.logger.Warn("sync: could not persist new mapping",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
	e.logger.Info("sync: created remote note", slog.String("path", path), slog.String("note", id))
	e.notifier.Show("Dinox: created " + in.Title).Hide(successHide)
	return id, nil
}

// ResetWatermark moves the watermark to a preset (yesterday, 3days, week,
// month or epoch) so the next pass refetches that window.
func (e *Engine) ResetWatermark(ctx context.Context, preset string) (string, error) {
	wm, err := state.PresetWatermark(preset, e.now())
	if err != nil {
		return "", err
	}
	return wm, e.setWatermark(ctx, wm)
}

// SetWatermark moves the watermark to t.
func (e *Engine) SetWatermark(ctx context.Context, t time.Time) (string, error) {
	wm := state.FormatWatermark(t)
	return wm, e.setWatermark(ctx, wm)
}

func (e *Engine) setWatermark(ctx context.Context, wm string) error {
	if e.syncing.Load() {
		return apperr.ErrAlreadySyncing
	}
	data, err := e.state.Load(ctx)
	if err != nil {
		return fmt.Errorf("reset watermark: %w", err)
	}
	st := data.State
	st.LastSyncTime = wm
	if err := e.state.SaveState(ctx, st); err != nil {
		return fmt.Errorf("reset watermark: %w", err)
	}
	e.logger.Info("sync: watermark reset", slog.String("watermark", wm))
	e.notifier.Show("Dinox: next sync fetches changes since " + wm).Hide(successHide)
	return nil
}

// OpenToday returns today's daily note path, creating the note if needed.
func (e *Engine) OpenToday(ctx context.Context) (string, bool, error) {
	p, created, err := e.daily.OpenToday()
	if err != nil {
		return "", false, err
	}
	if created {
		e.publishNote("created", p)
	}
	return p, created, nil
}

// Watermark returns the persisted watermark.
func (e *Engine) Watermark(ctx context.Context) (string, error) {
	data, err := e.state.Load(ctx)
	if err != nil {
		return "", err
	}
	return data.State.LastSyncTime, nil
}

func (e *Engine) readNote(path string) (string, frontmatter.Frontmatter, string, error) {
	data, err := e.store.Read(path)
	if err != nil {
		return "", nil, "", fmt.Errorf("read %s: %w", path, err)
	}
	text := string(data)
	fm, body := frontmatter.Parse(text)
	if fm == nil {
		body = frontmatter.Body(text)
	}
	return text, fm, body, nil
}

func (e *Engine) client(ctx context.Context) (Remote, error) {
	data, err := e.state.Load(ctx)
	if err != nil {
		return nil, err
	}
	token := e.tokenFor(data.Settings)
	if token == "" {
		return nil, apperr.ErrNoToken
	}
	return e.remoteFor(token), nil
}

// track adds id → path to the persisted identity map.
func (e *Engine) track(ctx context.Context, id, path string) error {
	data, err := e.state.Load(ctx)
	if err != nil {
		return err
	}
	st := data.State.Clone()
	st.NotePathByID[id] = path
	if err := e.state.SaveState(ctx, st); err != nil {
		return err
	}
	e.mu.Lock()
	if e.ids != nil {
		e.ids[id] = path
	}
	e.mu.Unlock()
	return nil
}

// noteInput builds the remote payload: title from frontmatter or file name,
// tags from frontmatter and body hashtags.
func noteInput(path string, fm frontmatter.Frontmatter, body string) remote.NoteInput {
	title, _ := fm.String(frontmatter.KeyTitle)
	title = strings.TrimSpace(title)
	if title == "" {
		title = markdown.HumanizeName(path)
	}

	var tags []string
	seen := make(map[string]bool)
	for _, t := range append(fm.Strings(frontmatter.KeyTags), markdown.Hashtags(body)...) {
		t = strings.TrimPrefix(strings.TrimSpace(t), "#")
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
	}
	return remote.NoteInput{Title: title, Content: strings.TrimLeft(body, "\n"), Tags: tags}
}
