// Package daily merges sync results into the vault's daily notes.
//
// Each daily note carries one managed block between StartMarker and
// EndMarker. Everything outside that block belongs to the user and is
// never rewritten.
package daily

import (
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/starford/dinosync/internal/apperr"
	"github.com/starford/dinosync/internal/models"
	"github.com/starford/dinosync/internal/settings"
	"github.com/starford/dinosync/internal/vault"
)

const dateLayout = "2006-01-02"

// HostConfig is the vault's own daily notes configuration.
type HostConfig struct {
	Enabled  bool
	Folder   string
	Format   string
	Template string
}

// PathFor returns the vault path of the daily note for day.
func (h HostConfig) PathFor(day time.Time) string {
	format := strings.TrimSpace(h.Format)
	if format == "" {
		format = DefaultFormat
	}
	name := FormatMoment(day, format) + ".md"
	folder := strings.Trim(strings.TrimSpace(h.Folder), "/")
	if folder == "" {
		return name
	}
	return path.Join(folder, name)
}

// Aggregator writes daily note changes.
type Aggregator struct {
	store  vault.Provider
	host   HostConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewAggregator creates an aggregator for the given host configuration.
func NewAggregator(store vault.Provider, host HostConfig, logger *slog.Logger) *Aggregator {
	return &Aggregator{store: store, host: host, logger: logger, now: time.Now}
}

// ApplyChangesForDate merges changes into the daily note for date
// (YYYY-MM-DD) and reports whether the file was written. It returns
// apperr.ErrDailyNotesUnavailable when the host has daily notes disabled.
func (a *Aggregator) ApplyChangesForDate(date string, changes models.DailyChangeSet, s settings.DailyNotes) (bool, error) {
	if !a.host.Enabled {
		return false, apperr.ErrDailyNotesUnavailable
	}
	if changes.Empty() {
		return false, nil
	}
	day, err := time.ParseInLocation(dateLayout, strings.TrimSpace(date), time.Local)
	if err != nil {
		return false, fmt.Errorf("daily: invalid date %q: %w", date, err)
	}
	p := a.host.PathFor(day)

	text, exists, err := a.read(p)
	if err != nil {
		return false, err
	}
	if !exists {
		if !s.CreateIfMissing {
			a.logger.Debug("daily: note missing, not creating", slog.String("path", p))
			return false, nil
		}
		text = a.initialContent(day)
	}

	out, changed := ApplyBlock(text, changes, OptionsFrom(s))
	if !changed {
		return false, nil
	}
	if err := a.store.Write(p, []byte(out)); err != nil {
		return false, fmt.Errorf("daily: write %s: %w", p, err)
	}
	a.logger.Info("daily: updated note",
		slog.String("path", p),
		slog.Int("added", len(changes.Added)),
		slog.Int("removed", len(changes.Removed)),
	)
	return true, nil
}

// OpenToday returns the path of today's daily note, creating it from the
// host template when missing.
func (a *Aggregator) OpenToday() (string, bool, error) {
	if !a.host.Enabled {
		return "", false, apperr.ErrDailyNotesUnavailable
	}
	day := a.now()
	p := a.host.PathFor(day)
	if vault.IsFile(a.store, p) {
		return p, false, nil
	}
	if err := a.store.Create(p, []byte(a.initialContent(day))); err != nil {
		return "", false, fmt.Errorf("daily: create %s: %w", p, err)
	}
	return p, true, nil
}

func (a *Aggregator) read(p string) (string, bool, error) {
	data, err := a.store.Read(p)
	if err != nil {
		if vault.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("daily: read %s: %w", p, err)
	}
	return string(data), true, nil
}

// initialContent renders the host template for day. A missing template
// yields an empty note.
func (a *Aggregator) initialContent(day time.Time) string {
	tmpl := strings.TrimSpace(a.host.Template)
	if tmpl == "" {
		return ""
	}
	if !strings.HasSuffix(tmpl, ".md") {
		tmpl += ".md"
	}
	data, err := a.store.Read(tmpl)
	if err != nil {
		a.logger.Warn("daily: template unreadable",
			slog.String("path", tmpl),
			slog.String("error", err.Error()),
		)
		return ""
	}
	text := string(data)
	text = strings.ReplaceAll(text, "{{date}}", day.Format(dateLayout))
	text = strings.ReplaceAll(text, "{{title}}", FormatMoment(day, a.formatOrDefault()))
	return text
}

func (a *Aggregator) formatOrDefault() string {
	if f := strings.TrimSpace(a.host.Format); f != "" {
		return f
	}
	return DefaultFormat
}
