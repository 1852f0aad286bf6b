// Package models defines the domain types exchanged with the remote service
// and between sync components.
package models

import (
	"encoding/json"
	"strings"
)

// RemoteNote is one note as returned by the remote API inside a day bucket.
type RemoteNote struct {
	NoteID      string            `json:"noteId"`
	Title       string            `json:"title"`
	CreateTime  string            `json:"createTime"`
	UpdateTime  string            `json:"updateTime"`
	Content     string            `json:"content"`
	Type        string            `json:"type,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	ZettelBoxes []json.RawMessage `json:"zettelBoxes,omitempty"`
	IsDel       bool              `json:"isDel"`
	IsAudio     bool              `json:"isAudio,omitempty"`
}

// ShortID returns the first eight characters of the note id for log and notice output.
func (n RemoteNote) ShortID() string {
	id := strings.TrimSpace(n.NoteID)
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// DayBucket groups the notes changed on one calendar day.
type DayBucket struct {
	Date  string       `json:"date"`
	Notes []RemoteNote `json:"notes"`
}

// AddedEntry is a note that was created or updated during a pass.
type AddedEntry struct {
	NotePath string
	Title    string
	Preview  string
}

// RemovedEntry is a note that was moved to trash during a pass.
type RemovedEntry struct {
	NotePath string
	Title    string
}

// DailyChangeSet accumulates per-date daily note changes for one pass.
type DailyChangeSet struct {
	Added   []AddedEntry
	Removed []RemovedEntry
}

// Empty reports whether the change set carries nothing to apply.
func (c *DailyChangeSet) Empty() bool {
	return c == nil || (len(c.Added) == 0 && len(c.Removed) == 0)
}

// SyncSummary is the result of one full sync pass.
type SyncSummary struct {
	Processed    int      `json:"processed"`
	Deleted      int      `json:"deleted"`
	Skipped      int      `json:"skipped"`
	Failed       int      `json:"failed"`
	DailyUpdated int      `json:"daily_updated"`
	Warnings     []string `json:"warnings,omitempty"`
}
