package pathing

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// MaxNameLength caps a sanitized path segment, in runes.
const MaxNameLength = 100

var (
	illegalChars = regexp.MustCompile(`[\\/:*?"<>|#^\[\]]`)
	spaceRuns    = regexp.MustCompile(`\s+`)
	dashRuns     = regexp.MustCompile(`-{2,}`)
)

// SanitizeSegment turns s into a single safe file or folder name. It
// returns "" when nothing usable is left.
func SanitizeSegment(s string) string {
	s = norm.NFC.String(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	s = illegalChars.ReplaceAllString(s, "-")
	s = spaceRuns.ReplaceAllString(s, " ")
	s = dashRuns.ReplaceAllString(s, "-")
	s = strings.Trim(s, " .-")

	if r := []rune(s); len(r) > MaxNameLength {
		s = strings.TrimRight(string(r[:MaxNameLength]), " .-")
	}
	return s
}

// SanitizePath sanitizes every segment of a slash-separated folder path,
// dropping segments that end up empty.
func SanitizePath(p string) string {
	var parts []string
	for _, seg := range strings.Split(p, "/") {
		if seg == "." || seg == ".." {
			continue
		}
		if s := SanitizeSegment(seg); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "/")
}
