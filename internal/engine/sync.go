package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/starford/dinosync/internal/apperr"
	"github.com/starford/dinosync/internal/identity"
	"github.com/starford/dinosync/internal/models"
	"github.com/starford/dinosync/internal/pathing"
	"github.com/starford/dinosync/internal/reconcile"
	"github.com/starford/dinosync/internal/settings"
	"github.com/starford/dinosync/internal/sse"
	"github.com/starford/dinosync/internal/state"
)

// idlePoll is how often the timer rechecks settings while auto-sync is off.
const idlePoll = time.Minute

// RunFullSync runs one pull pass. A second call while a pass is running
// returns apperr.ErrAlreadySyncing immediately; it is never queued.
//
// The watermark advances to the pass start time, and only when fetching,
// reconciling and persisting all succeed.
func (e *Engine) RunFullSync(ctx context.Context) (models.SyncSummary, error) {
	if !e.syncing.CompareAndSwap(false, true) {
		e.notifier.Show("Dinox: sync already in progress").Hide(successHide)
		return models.SyncSummary{}, apperr.ErrAlreadySyncing
	}
	defer func() {
		e.setPhase(PhaseIdle)
		e.syncing.Store(false)
	}()

	start := e.now()
	notice := e.notifier.Show("Dinox: syncing...")

	summary, watermark, err := e.pass(ctx, start)
	finished := e.now()

	run := state.Run{
		StartedAt:  start,
		FinishedAt: finished,
		Status:     state.RunSucceeded,
		Processed:  summary.Processed,
		Deleted:    summary.Deleted,
		Failed:     summary.Failed,
		Watermark:  watermark,
	}

	e.mu.Lock()
	e.lastAt = finished
	if err != nil {
		e.errMsg = err.Error()
	} else {
		e.errMsg = ""
		s := summary
		e.last = &s
	}
	e.mu.Unlock()

	if err != nil {
		run.Status = state.RunFailed
		run.Error = err.Error()
		e.recordRun(ctx, run)
		e.logger.Error("sync: pass failed", slog.String("error", err.Error()))
		notice.Set("Dinox sync failed: " + err.Error())
		notice.Hide(errorHide)
		e.publish(sse.TypeFailed, map[string]string{"error": err.Error()})
		return summary, err
	}

	e.recordRun(ctx, run)
	e.logger.Info("sync: pass finished",
		slog.Int("processed", summary.Processed),
		slog.Int("deleted", summary.Deleted),
		slog.Int("skipped", summary.Skipped),
		slog.Int("failed", summary.Failed),
		slog.Int("daily_updated", summary.DailyUpdated),
		slog.String("watermark", watermark),
	)
	notice.Set(summaryMessage(summary))
	notice.Hide(successHide)
	e.publish(sse.TypeFinished, summary)
	return summary, nil
}

// pass does the work of RunFullSync and returns the watermark it persisted.
func (e *Engine) pass(ctx context.Context, start time.Time) (models.SyncSummary, string, error) {
	var summary models.SyncSummary

	data, err := e.state.Load(ctx)
	if err != nil {
		return summary, "", fmt.Errorf("sync: load state: %w", err)
	}
	for _, r := range data.Repairs {
		e.logger.Warn("sync: persisted data repaired", slog.String("repair", r))
		summary.Warnings = append(summary.Warnings, r)
	}
	s := data.Settings
	token := e.tokenFor(s)
	if token == "" {
		return summary, "", apperr.ErrNoToken
	}

	watermark := data.State.LastSyncTime
	if _, err := state.ParseWatermark(watermark); err != nil {
		e.logger.Warn("sync: invalid watermark, refetching everything",
			slog.String("watermark", watermark),
		)
		watermark = state.SentinelWatermark
	}

	e.setPhase(PhaseFetching)
	buckets, err := e.remoteFor(token).FetchNotes(ctx, s.Template, watermark)
	if err != nil {
		return summary, "", fmt.Errorf("sync: fetch: %w", err)
	}

	baseDir := pathing.SanitizePath(s.SyncDir)
	if err := e.store.EnsureDir(baseDir); err != nil {
		return summary, "", fmt.Errorf("sync: ensure %s: %w", baseDir, err)
	}

	e.setPhase(PhaseReconciling)
	scan, err := identity.Build(e.store, e.cache, baseDir, e.logger)
	if err != nil {
		return summary, "", fmt.Errorf("sync: scan: %w", err)
	}
	ids := identity.Merge(data.State.NotePathByID, scan.ByID)

	changes := make(map[string]*models.DailyChangeSet)
	for i := len(buckets) - 1; i >= 0; i-- {
		bucket := buckets[i]
		for j := len(bucket.Notes) - 1; j >= 0; j-- {
			note := bucket.Notes[j]
			out, err := e.reconciler.Apply(note, bucket.Date, ids, scan, s)
			if err != nil {
				summary.Failed++
				msg := fmt.Sprintf("note %s: %v", note.ShortID(), err)
				summary.Warnings = append(summary.Warnings, msg)
				e.logger.Warn("sync: note failed",
					slog.String("note", note.ShortID()),
					slog.String("error", err.Error()),
				)
				e.notifier.Show("Dinox: " + msg).Hide(noteHide)
				continue
			}
			e.record(&summary, changes, out)
		}
	}

	e.setPhase(PhasePersisting)
	watermark = state.FormatWatermark(start)
	if err := e.state.SaveState(ctx, state.State{LastSyncTime: watermark, NotePathByID: ids}); err != nil {
		return summary, "", fmt.Errorf("sync: persist state: %w", err)
	}
	e.mu.Lock()
	e.ids = ids
	e.mu.Unlock()

	if s.DailyNotes.Enabled {
		summary.DailyUpdated = e.applyDaily(changes, s.DailyNotes, &summary)
	}
	return summary, watermark, nil
}

// record folds one reconcile outcome into the summary and daily changes.
func (e *Engine) record(summary *models.SyncSummary, changes map[string]*models.DailyChangeSet, out reconcile.Outcome) {
	cs := changes[out.Date]
	if cs == nil {
		cs = &models.DailyChangeSet{}
		changes[out.Date] = cs
	}

	switch {
	case out.Processed():
		summary.Processed++
		if out.PrevPath != "" {
			cs.Removed = append(cs.Removed, models.RemovedEntry{NotePath: out.PrevPath})
		}
		cs.Added = append(cs.Added, models.AddedEntry{NotePath: out.Path, Title: out.Title, Preview: out.Preview})
	case out.Kind == reconcile.Deleted:
		summary.Deleted++
		cs.Removed = append(cs.Removed, models.RemovedEntry{NotePath: out.Path, Title: out.Title})
	default:
		summary.Skipped++
	}

	if out.Wrote() {
		e.publishNote(out.Kind.String(), out.Path)
	}
}

// applyDaily merges change sets into daily notes, oldest date first. The
// unavailable condition is reported once per pass.
func (e *Engine) applyDaily(changes map[string]*models.DailyChangeSet, s settings.DailyNotes, summary *models.SyncSummary) int {
	dates := make([]string, 0, len(changes))
	for d, cs := range changes {
		if !cs.Empty() {
			dates = append(dates, d)
		}
	}
	sort.Strings(dates)

	updated := 0
	warned := false
	for _, d := range dates {
		changed, err := e.daily.ApplyChangesForDate(d, *changes[d], s)
		switch {
		case errors.Is(err, apperr.ErrDailyNotesUnavailable):
			if !warned {
				warned = true
				msg := "daily notes are disabled in the vault; skipping daily note updates"
				summary.Warnings = append(summary.Warnings, msg)
				e.logger.Warn("daily: " + msg)
				e.notifier.Show("Dinox: " + msg).Hide(noteHide)
			}
		case err != nil:
			summary.Warnings = append(summary.Warnings, fmt.Sprintf("daily %s: %v", d, err))
			e.logger.Warn("daily: update failed",
				slog.String("date", d),
				slog.String("error", err.Error()),
			)
		case changed:
			updated++
		}
	}
	return updated
}

// RunTimer triggers passes on the auto-sync interval until ctx is done.
// Ticks that arrive while a pass is running are skipped.
func (e *Engine) RunTimer(ctx context.Context) error {
	for {
		wait, enabled := e.timerInterval(ctx)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		if !enabled {
			continue
		}
		if e.syncing.Load() {
			e.logger.Debug("sync: timer tick skipped, pass running")
			continue
		}
		if _, err := e.RunFullSync(ctx); err != nil && !errors.Is(err, apperr.ErrAlreadySyncing) {
			e.logger.Warn("sync: timed pass failed", slog.String("error", err.Error()))
		}
	}
}

func (e *Engine) timerInterval(ctx context.Context) (time.Duration, bool) {
	if e.interval > 0 {
		return e.interval, true
	}
	data, err := e.state.Load(ctx)
	if err != nil || !data.Settings.AutoSync || data.Settings.AutoSyncMinutes <= 0 {
		return idlePoll, false
	}
	return time.Duration(data.Settings.AutoSyncMinutes) * time.Minute, true
}

func (e *Engine) tokenFor(s settings.Settings) string {
	if t := strings.TrimSpace(e.token); t != "" {
		return t
	}
	return strings.TrimSpace(s.Token)
}

func (e *Engine) recordRun(ctx context.Context, r state.Run) {
	if e.runs == nil {
		return
	}
	if _, err := e.runs.RecordRun(ctx, r); err != nil {
		e.logger.Warn("sync: record run failed", slog.String("error", err.Error()))
	}
}

func summaryMessage(s models.SyncSummary) string {
	msg := fmt.Sprintf("Dinox: synced %d notes", s.Processed)
	if s.Deleted > 0 {
		msg += fmt.Sprintf(", deleted %d", s.Deleted)
	}
	if s.Failed > 0 {
		msg += fmt.Sprintf(", %d failed", s.Failed)
	}
	if s.DailyUpdated > 0 {
		msg += fmt.Sprintf(", updated %d daily notes", s.DailyUpdated)
	}
	return msg
}
