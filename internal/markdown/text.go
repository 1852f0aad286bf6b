package markdown

import (
	"path"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/starford/dinosync/internal/frontmatter"
)

// PreviewLimit caps the length of a preview line in runes.
const PreviewLimit = 120

var (
	headingRe  = regexp.MustCompile(`^#{1,6}\s+`)
	listRe     = regexp.MustCompile(`^(?:[-*+]|\d+[.)])\s+`)
	emphasisRe = regexp.MustCompile(`(\*\*|__|~~)(.+?)(\*\*|__|~~)`)
	singleRe   = regexp.MustCompile(`(^|[^\w*])[*_]([^*_\s](?:[^*_]*[^*_\s])?)[*_]`)
	hashtagRe  = regexp.MustCompile(`(?:^|\s)#([\p{L}\p{N}_/-]+)`)
)

// Preview returns the first non-blank, non-quote body line of a note,
// stripped of heading and emphasis markers and truncated to PreviewLimit
// runes. Frontmatter is skipped.
func Preview(text string) string {
	body := frontmatter.Body(text)
	fence := false
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if fenceMarker(trimmed) != "" {
			fence = !fence
			continue
		}
		if fence || trimmed == "" || strings.HasPrefix(trimmed, ">") {
			continue
		}
		out := headingRe.ReplaceAllString(trimmed, "")
		out = listRe.ReplaceAllString(out, "")
		out = emphasisRe.ReplaceAllString(out, "$2")
		out = singleRe.ReplaceAllString(out, "$1$2")
		out = strings.TrimSpace(out)
		if out == "" {
			continue
		}
		return Truncate(out, PreviewLimit)
	}
	return ""
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n]))
}

// Hashtags returns the distinct #tags found in prose, in order of first
// appearance. Pure-number tags such as #1 are ignored.
func Hashtags(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	mapProse(frontmatter.Body(text), func(s string) string {
		for _, m := range hashtagRe.FindAllStringSubmatch(s, -1) {
			tag := strings.TrimRight(m[1], "/-")
			if tag == "" || isDigits(tag) {
				continue
			}
			if _, dup := seen[tag]; dup {
				continue
			}
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
		return s
	})
	return out
}

// HumanizeName turns a note file path into a display title.
func HumanizeName(p string) string {
	base := strings.TrimSuffix(path.Base(p), path.Ext(p))
	base = strings.ReplaceAll(base, "_", " ")
	return strings.Join(strings.Fields(base), " ")
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
