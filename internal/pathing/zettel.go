package pathing

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	hex32Re   = regexp.MustCompile(`^[0-9a-fA-F]{32}$`)
	numericRe = regexp.MustCompile(`^[0-9]{8,}$`)
)

// IsIDShaped reports whether s looks like an identifier rather than a
// human-chosen name: a UUID, 32 hex characters, or 8 or more digits.
func IsIDShaped(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	if hex32Re.MatchString(s) || numericRe.MatchString(s) {
		return true
	}
	if len(s) == 36 {
		if _, err := uuid.Parse(s); err == nil {
			return true
		}
	}
	return false
}

// ZettelBoxName returns the first usable box name among entries. Entries
// are strings (optionally "name: X"), objects with a name, or objects with
// a nested zettelBox.name. ID-shaped values are never names.
func ZettelBoxName(entries []json.RawMessage) (string, bool) {
	for _, raw := range entries {
		if name, ok := entryName(raw); ok {
			return name, true
		}
	}
	return "", false
}

// ZettelBoxNameFromStrings is ZettelBoxName for plain string entries, as
// found in rendered frontmatter.
func ZettelBoxNameFromStrings(entries []string) (string, bool) {
	for _, e := range entries {
		if name, ok := usableName(stripNamePrefix(e)); ok {
			return name, true
		}
	}
	return "", false
}

func entryName(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return usableName(stripNamePrefix(s))
	}

	var obj struct {
		Name      *string `json:"name"`
		ZettelBox *struct {
			Name *string `json:"name"`
		} `json:"zettelBox"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", false
	}
	if obj.Name != nil {
		if name, ok := usableName(*obj.Name); ok {
			return name, true
		}
	}
	if obj.ZettelBox != nil && obj.ZettelBox.Name != nil {
		return usableName(*obj.ZettelBox.Name)
	}
	return "", false
}

func stripNamePrefix(s string) string {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "name:"); ok {
		return strings.Trim(strings.TrimSpace(rest), `"'`)
	}
	return s
}

func usableName(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || IsIDShaped(s) {
		return "", false
	}
	return s, true
}
