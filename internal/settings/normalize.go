package settings

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// legacyAliases maps key names written by older versions to current ones.
var legacyAliases = map[string]string{
	"dir":                   "syncDir",
	"notesDir":              "syncDir",
	"fileNameFormat":        "filenameFormat",
	"fileNameTemplate":      "filenameTemplate",
	"ignoreSyncField":       "ignoreSyncKey",
	"preserveFields":        "preserveKeys",
	"dailyNotesEnabled":     "dailyNotes.enabled",
	"dailyNotesHeading":     "dailyNotes.heading",
	"dailyNotesCreate":      "dailyNotes.createIfMissing",
	"dailyNotesPosition":    "dailyNotes.insertPosition",
	"dailyNotesLinkStyle":   "dailyNotes.linkStyle",
	"dailyNotesShowPreview": "dailyNotes.includePreview",
}

// Normalize builds Settings from loosely typed persisted data. Every field
// is checked against its allowed values and silently falls back to the
// matching field of defaults; Normalize never fails.
func Normalize(raw map[string]any, defaults Settings) Settings {
	flat := flatten(raw)
	out := defaults
	out.PreserveKeys = append([]string(nil), defaults.PreserveKeys...)
	for key, value := range flat {
		_ = apply(&out, key, value)
	}
	if out.PreserveKeys == nil {
		out.PreserveKeys = []string{}
	}
	return out
}

// Keys lists every settable key.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set assigns the textual value to key, validating it like Normalize does
// but reporting rejections instead of ignoring them.
func Set(s *Settings, key, value string) error {
	key = canonicalKey(key)
	if _, ok := fields[key]; !ok {
		return fmt.Errorf("settings: unknown key %q", key)
	}
	var parsed any = value
	switch key {
	case "preserveKeys":
		parsed = splitList(value)
	}
	if err := apply(s, key, parsed); err != nil {
		return fmt.Errorf("settings: %s: %w", key, err)
	}
	return nil
}

// Get returns the textual value of key.
func Get(s Settings, key string) (string, error) {
	f, ok := fields[canonicalKey(key)]
	if !ok {
		return "", fmt.Errorf("settings: unknown key %q", key)
	}
	return f.get(&s), nil
}

type field struct {
	set func(s *Settings, v any) error
	get func(s *Settings) string
}

var fields = map[string]field{
	"token":            stringField(func(s *Settings) *string { return &s.Token }, allowEmpty),
	"syncDir":          stringField(func(s *Settings) *string { return &s.SyncDir }, folderPath),
	"template":         stringField(func(s *Settings) *string { return &s.Template }, nonEmpty),
	"filenameFormat":   stringField(func(s *Settings) *string { return &s.FilenameFormat }, oneOf(FilenameNoteID, FilenameTitle, FilenameTime, FilenameTitleDate, FilenameTemplate)),
	"filenameTemplate": stringField(func(s *Settings) *string { return &s.FilenameTemplate }, nonEmpty),
	"layout":           stringField(func(s *Settings) *string { return &s.Layout }, oneOf(LayoutFlat, LayoutNested)),
	"typeFolders":      boolField(func(s *Settings) *bool { return &s.TypeFolders }),
	"noteFolder":       stringField(func(s *Settings) *string { return &s.NoteFolder }, folderPath),
	"materialFolder":   stringField(func(s *Settings) *string { return &s.MaterialFolder }, folderPath),
	"zettelBoxFolders": boolField(func(s *Settings) *bool { return &s.ZettelBoxFolders }),
	"ignoreSyncKey":    stringField(func(s *Settings) *string { return &s.IgnoreSyncKey }, nonEmpty),
	"preserveKeys": {
		set: func(s *Settings, v any) error {
			list, ok := toStringList(v)
			if !ok {
				return fmt.Errorf("expected a list of keys")
			}
			s.PreserveKeys = list
			return nil
		},
		get: func(s *Settings) string { return strings.Join(s.PreserveKeys, ",") },
	},
	"autoSync": boolField(func(s *Settings) *bool { return &s.AutoSync }),
	"autoSyncMinutes": {
		set: func(s *Settings, v any) error {
			n, ok := toInt(v)
			if !ok || n < 1 || n > 24*60 {
				return fmt.Errorf("expected minutes between 1 and 1440")
			}
			s.AutoSyncMinutes = n
			return nil
		},
		get: func(s *Settings) string { return strconv.Itoa(s.AutoSyncMinutes) },
	},
	"dailyNotes.enabled":         boolField(func(s *Settings) *bool { return &s.DailyNotes.Enabled }),
	"dailyNotes.heading":         stringField(func(s *Settings) *string { return &s.DailyNotes.Heading }, allowEmpty),
	"dailyNotes.createIfMissing": boolField(func(s *Settings) *bool { return &s.DailyNotes.CreateIfMissing }),
	"dailyNotes.insertPosition":  stringField(func(s *Settings) *string { return &s.DailyNotes.InsertPosition }, oneOf(InsertTop, InsertBottom)),
	"dailyNotes.linkStyle":       stringField(func(s *Settings) *string { return &s.DailyNotes.LinkStyle }, oneOf(LinkWiki, LinkEmbed)),
	"dailyNotes.includePreview":  boolField(func(s *Settings) *bool { return &s.DailyNotes.IncludePreview }),
}

func stringField(ptr func(*Settings) *string, check func(string) (string, error)) field {
	return field{
		set: func(s *Settings, v any) error {
			str, ok := v.(string)
			if !ok {
				return fmt.Errorf("expected a string")
			}
			str, err := check(str)
			if err != nil {
				return err
			}
			*ptr(s) = str
			return nil
		},
		get: func(s *Settings) string { return *ptr(s) },
	}
}

func boolField(ptr func(*Settings) *bool) field {
	return field{
		set: func(s *Settings, v any) error {
			b, ok := toBool(v)
			if !ok {
				return fmt.Errorf("expected true or false")
			}
			*ptr(s) = b
			return nil
		},
		get: func(s *Settings) string { return strconv.FormatBool(*ptr(s)) },
	}
}

func allowEmpty(s string) (string, error) { return s, nil }

func nonEmpty(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("must not be empty")
	}
	return s, nil
}

// folderPath trims surrounding slashes and whitespace and rejects empty
// or parent-escaping paths.
func folderPath(s string) (string, error) {
	s = strings.Trim(strings.TrimSpace(strings.ReplaceAll(s, "\\", "/")), "/")
	if s == "" {
		return "", fmt.Errorf("must not be empty")
	}
	for _, part := range strings.Split(s, "/") {
		if part == ".." {
			return "", fmt.Errorf("must stay inside the vault")
		}
	}
	return s, nil
}

func oneOf(allowed ...string) func(string) (string, error) {
	return func(s string) (string, error) {
		for _, a := range allowed {
			if s == a {
				return s, nil
			}
		}
		return "", fmt.Errorf("must be one of %s", strings.Join(allowed, ", "))
	}
}

func apply(s *Settings, key string, value any) error {
	f, ok := fields[canonicalKey(key)]
	if !ok {
		return fmt.Errorf("unknown key")
	}
	return f.set(s, value)
}

func canonicalKey(key string) string {
	if alias, ok := legacyAliases[key]; ok {
		return alias
	}
	return key
}

// flatten turns {"dailyNotes": {"enabled": true}} into {"dailyNotes.enabled": true}.
// A current key beats its legacy aliases; aliases of the same field are
// applied in sorted order so the result does not depend on map iteration.
// Nested values are applied last.
func flatten(raw map[string]any) map[string]any {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(raw))
	for _, k := range keys {
		v := raw[k]
		if _, isMap := v.(map[string]any); isMap {
			continue
		}
		key := canonicalKey(k)
		if key != k {
			if _, current := raw[key]; current {
				continue
			}
		}
		out[key] = v
	}
	for k, v := range raw {
		nested, ok := v.(map[string]any)
		if !ok {
			continue
		}
		for nk, nv := range nested {
			out[k+"."+nk] = nv
		}
	}
	return out
}

func toBool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		return b, err == nil
	}
	return false, false
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		if t != math.Trunc(t) {
			return 0, false
		}
		return int(t), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		return n, err == nil
	}
	return 0, false
}

func toStringList(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return dedupe(t), true
	case []any:
		var out []string
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return dedupe(out), true
	case string:
		return splitList(t), true
	}
	return nil, false
}

func splitList(s string) []string {
	return dedupe(strings.Split(s, ","))
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := []string{}
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
