// Package pathing computes where a remote note lives in the vault.
package pathing

import (
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/starford/dinosync/internal/frontmatter"
	"github.com/starford/dinosync/internal/models"
	"github.com/starford/dinosync/internal/settings"
	"github.com/starford/dinosync/internal/vault"
)

// MaxCollisionAttempts bounds the suffixed candidates tried before a
// collision is accepted.
const MaxCollisionAttempts = 50

// Note categories.
const (
	CategoryNote     = "note"
	CategoryMaterial = "material"
)

// MaterialType is the note type of crawled source material.
const MaterialType = "crawl"

const (
	dateLayout     = "2006-01-02"
	timeNameLayout = "2006-01-02 15-04-05"
	clockLayout    = "15-04-05"
)

var createTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.RFC3339,
	"2006-01-02T15:04:05",
	dateLayout,
}

// Resolver computes desired paths and resolves collisions against the vault.
type Resolver struct {
	store  vault.Provider
	cache  *vault.Cache
	logger *slog.Logger
}

// NewResolver creates a resolver.
func NewResolver(store vault.Provider, cache *vault.Cache, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, cache: cache, logger: logger}
}

// Category routes a note to the note or material subtree. The type comes
// from the note record, or from its rendered frontmatter when absent.
func (r *Resolver) Category(note models.RemoteNote) string {
	typ := strings.TrimSpace(note.Type)
	if typ == "" {
		fm, _ := frontmatter.Parse(note.Content)
		typ, _ = fm.Scalar(frontmatter.KeyType)
		typ = strings.TrimSpace(typ)
	}
	switch typ {
	case MaterialType:
		return CategoryMaterial
	case "", CategoryNote:
		return CategoryNote
	default:
		r.logger.Warn("pathing: unknown note type, using note folder",
			slog.String("note", note.ShortID()),
			slog.String("type", typ),
		)
		return CategoryNote
	}
}

// Dir returns the folder a note belongs in, relative to the vault root.
// date is the day bucket the note was delivered in.
func (r *Resolver) Dir(note models.RemoteNote, date string, s settings.Settings) string {
	dir := SanitizePath(s.SyncDir)

	if s.TypeFolders {
		folder := s.NoteFolder
		if r.Category(note) == CategoryMaterial {
			folder = s.MaterialFolder
		}
		dir = join(dir, SanitizePath(folder))
	}

	if s.ZettelBoxFolders {
		name, ok := ZettelBoxName(note.ZettelBoxes)
		if !ok && len(note.ZettelBoxes) == 0 {
			fm, _ := frontmatter.Parse(note.Content)
			name, ok = ZettelBoxNameFromStrings(fm.Strings("zettelBoxes"))
		}
		if ok {
			dir = join(dir, SanitizeSegment(name))
		}
	}

	if s.Layout == settings.LayoutNested {
		if d, ok := noteDate(note, date); ok {
			dir = join(dir, d.Format(dateLayout))
		}
	}
	return dir
}

// Filename returns the file name, with extension, under the configured scheme.
// Any scheme other than noteId falls back to the id when it cannot produce
// a usable name.
func (r *Resolver) Filename(note models.RemoteNote, s settings.Settings) string {
	idName := idFilename(note.NoteID)

	name, err := schemeName(note, s)
	if err != nil {
		r.logger.Warn("pathing: filename fallback to note id",
			slog.String("note", note.ShortID()),
			slog.String("scheme", s.FilenameFormat),
			slog.String("error", err.Error()),
		)
		return idName + ".md"
	}
	if name == "" {
		return idName + ".md"
	}
	return name + ".md"
}

// DesiredPath is Dir joined with Filename.
func (r *Resolver) DesiredPath(note models.RemoteNote, date string, s settings.Settings) string {
	return join(r.Dir(note, date, s), r.Filename(note, s))
}

// Resolve returns a path for noteID near desired that is not occupied by a
// different note. current is the note's existing file, if any. When every
// candidate is taken the collision is accepted and desired is returned.
func (r *Resolver) Resolve(desired, noteID, current string) string {
	if r.available(desired, noteID, current) {
		return desired
	}

	dir, file := path.Split(desired)
	ext := path.Ext(file)
	stem := strings.TrimSuffix(file, ext)
	suffix := ShortSuffix(noteID)

	for attempt := 1; attempt <= MaxCollisionAttempts; attempt++ {
		tag := suffix
		if attempt > 1 {
			tag = fmt.Sprintf("%s %d", suffix, attempt)
		}
		candidate := dir + fmt.Sprintf("%s (%s)%s", stem, tag, ext)
		if r.available(candidate, noteID, current) {
			return candidate
		}
	}

	r.logger.Warn("pathing: collision attempts exhausted, reusing desired path",
		slog.String("path", desired),
		slog.String("note", noteID),
	)
	return desired
}

// available reports whether p is free or already belongs to noteID.
func (r *Resolver) available(p, noteID, current string) bool {
	if p == current {
		return true
	}
	info, err := r.store.Stat(p)
	if err != nil {
		return vault.IsNotExist(err)
	}
	if info.IsDir {
		return false
	}
	fm, err := r.cache.Frontmatter(p)
	if err != nil {
		return false
	}
	id, ok := frontmatter.NoteID(fm)
	return ok && id == noteID
}

// ShortSuffix is the collision tag derived from a note id: its first eight
// characters with dashes removed.
func ShortSuffix(noteID string) string {
	s := strings.ReplaceAll(strings.TrimSpace(noteID), "-", "")
	if len(s) > 8 {
		s = s[:8]
	}
	return s
}

func schemeName(note models.RemoteNote, s settings.Settings) (string, error) {
	switch s.FilenameFormat {
	case settings.FilenameTitle:
		return SanitizeSegment(note.Title), nil
	case settings.FilenameTime:
		t, err := parseCreateTime(note.CreateTime)
		if err != nil {
			return "", err
		}
		return t.Format(timeNameLayout), nil
	case settings.FilenameTitleDate:
		t, err := parseCreateTime(note.CreateTime)
		if err != nil {
			return "", err
		}
		title := SanitizeSegment(note.Title)
		if title == "" {
			return "", fmt.Errorf("empty title")
		}
		return SanitizeSegment(fmt.Sprintf("%s (%s)", title, t.Format(dateLayout))), nil
	case settings.FilenameTemplate:
		return templateName(note, s.FilenameTemplate)
	default:
		return idFilename(note.NoteID), nil
	}
}

func templateName(note models.RemoteNote, tmpl string) (string, error) {
	if strings.TrimSpace(tmpl) == "" {
		return "", fmt.Errorf("empty filename template")
	}
	out := tmpl
	if strings.Contains(out, "{{createDate}}") || strings.Contains(out, "{{createTime}}") {
		t, err := parseCreateTime(note.CreateTime)
		if err != nil {
			return "", err
		}
		out = strings.ReplaceAll(out, "{{createDate}}", t.Format(dateLayout))
		out = strings.ReplaceAll(out, "{{createTime}}", t.Format(clockLayout))
	}
	out = strings.ReplaceAll(out, "{{title}}", note.Title)
	out = strings.ReplaceAll(out, "{{noteId}}", note.NoteID)
	return SanitizeSegment(out), nil
}

func parseCreateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range createTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable createTime %q", s)
}

// noteDate picks the bucket date, falling back to the note's creation date.
func noteDate(note models.RemoteNote, bucket string) (time.Time, bool) {
	if t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(bucket), time.Local); err == nil {
		return t, true
	}
	if t, err := parseCreateTime(note.CreateTime); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func idFilename(id string) string {
	name := SanitizeSegment(strings.ReplaceAll(strings.TrimSpace(id), "-", "_"))
	if name == "" {
		return "untitled"
	}
	return name
}

func join(dir, name string) string {
	if dir == "" {
		return name
	}
	if name == "" {
		return dir
	}
	return dir + "/" + name
}
