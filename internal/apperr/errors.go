// Package apperr holds sentinel errors shared across packages.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// ErrAlreadySyncing is returned when a sync pass is requested while one is running.
	ErrAlreadySyncing = errors.New("sync already in progress")

	// ErrDailyNotesUnavailable means the host daily-notes feature is absent or disabled.
	ErrDailyNotesUnavailable = errors.New("daily notes unavailable")

	ErrEmptyNoteID   = errors.New("note id is empty")
	ErrMissingNoteID = errors.New("note has no noteId in frontmatter")
	ErrHasNoteID     = errors.New("note already has a noteId")
	ErrNoToken       = errors.New("api token is not configured")
)
