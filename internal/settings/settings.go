// Package settings defines the user-facing sync options, their defaults,
// and tolerant normalization of persisted values.
package settings

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Filename schemes.
const (
	FilenameNoteID    = "noteId"
	FilenameTitle     = "title"
	FilenameTime      = "time"
	FilenameTitleDate = "titleDate"
	FilenameTemplate  = "template"
)

// Folder layouts.
const (
	LayoutFlat   = "flat"
	LayoutNested = "nested"
)

// Daily note insert positions.
const (
	InsertTop    = "top"
	InsertBottom = "bottom"
)

// Daily note link styles.
const (
	LinkWiki  = "wiki"
	LinkEmbed = "embed"
)

// DefaultTemplate is sent to the remote service, which renders each note
// body with it.
const DefaultTemplate = `---
title: "{{title}}"
noteId: {{noteId}}
type: {{type}}
tags:
{{#tags}}
    - {{.}}
{{/tags}}
zettelBoxes:
{{#zettelBoxes}}
    - {{.}}
{{/zettelBoxes}}
audioUrl: {{audioUrl}}
createTime: {{createTime}}
updateTime: {{updateTime}}
---
{{#audioUrl}}
![audio]({{audioUrl}})
{{/audioUrl}}

{{content}}
`

// Settings holds the sync options the user controls.
type Settings struct {
	Token            string     `json:"token"`
	SyncDir          string     `json:"syncDir"`
	Template         string     `json:"template"`
	FilenameFormat   string     `json:"filenameFormat"`
	FilenameTemplate string     `json:"filenameTemplate"`
	Layout           string     `json:"layout"`
	TypeFolders      bool       `json:"typeFolders"`
	NoteFolder       string     `json:"noteFolder"`
	MaterialFolder   string     `json:"materialFolder"`
	ZettelBoxFolders bool       `json:"zettelBoxFolders"`
	IgnoreSyncKey    string     `json:"ignoreSyncKey"`
	PreserveKeys     []string   `json:"preserveKeys"`
	AutoSync         bool       `json:"autoSync"`
	AutoSyncMinutes  int        `json:"autoSyncMinutes"`
	DailyNotes       DailyNotes `json:"dailyNotes"`
}

// DailyNotes configures the daily note integration.
type DailyNotes struct {
	Enabled         bool   `json:"enabled"`
	Heading         string `json:"heading"`
	CreateIfMissing bool   `json:"createIfMissing"`
	InsertPosition  string `json:"insertPosition"`
	LinkStyle       string `json:"linkStyle"`
	IncludePreview  bool   `json:"includePreview"`
}

// Defaults returns the settings used on first run and as the fallback for
// every invalid persisted field.
func Defaults() Settings {
	return Settings{
		SyncDir:          "Dinox Sync",
		Template:         DefaultTemplate,
		FilenameFormat:   FilenameNoteID,
		FilenameTemplate: "{{createDate}} {{title}}",
		Layout:           LayoutNested,
		TypeFolders:      false,
		NoteFolder:       "note",
		MaterialFolder:   "material",
		ZettelBoxFolders: false,
		IgnoreSyncKey:    "ignore_sync",
		PreserveKeys:     []string{},
		AutoSync:         true,
		AutoSyncMinutes:  30,
		DailyNotes: DailyNotes{
			Enabled:         false,
			Heading:         "## Dinox Notes",
			CreateIfMissing: true,
			InsertPosition:  InsertBottom,
			LinkStyle:       LinkWiki,
			IncludePreview:  false,
		},
	}
}

// Validate validates the settings.
func (s *Settings) Validate() error {
	if err := validation.ValidateStruct(s,
		validation.Field(&s.SyncDir, validation.Required),
		validation.Field(&s.FilenameFormat, validation.Required,
			validation.In(FilenameNoteID, FilenameTitle, FilenameTime, FilenameTitleDate, FilenameTemplate)),
		validation.Field(&s.Layout, validation.Required, validation.In(LayoutFlat, LayoutNested)),
		validation.Field(&s.NoteFolder, validation.Required),
		validation.Field(&s.MaterialFolder, validation.Required),
		validation.Field(&s.IgnoreSyncKey, validation.Required),
		validation.Field(&s.AutoSyncMinutes, validation.Min(1), validation.Max(24*60)),
	); err != nil {
		return err
	}
	return s.DailyNotes.Validate()
}

// Validate validates the daily note settings.
func (d *DailyNotes) Validate() error {
	return validation.ValidateStruct(d,
		validation.Field(&d.InsertPosition, validation.Required, validation.In(InsertTop, InsertBottom)),
		validation.Field(&d.LinkStyle, validation.Required, validation.In(LinkWiki, LinkEmbed)),
	)
}
