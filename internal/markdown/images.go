package markdown

import (
	"regexp"
	"strings"
)

var (
	mdImageRe   = regexp.MustCompile(`!\[([^\]]*)\]\(\s*<?([^)\s>]+)>?((?:\s+"[^"]*")?)\s*\)`)
	htmlImageRe = regexp.MustCompile(`(?i)(<img\b[^>]*?\bsrc\s*=\s*)(["'])([^"']*)(["'])`)
)

// CleanImageURLs removes query strings from http(s) image URLs in markdown
// image syntax and HTML <img src> attributes. Code blocks and inline code
// are left as written.
func CleanImageURLs(text string) string {
	return mapProse(text, func(s string) string {
		s = mdImageRe.ReplaceAllStringFunc(s, func(m string) string {
			sub := mdImageRe.FindStringSubmatch(m)
			cleaned := stripQuery(sub[2])
			if cleaned == sub[2] {
				return m
			}
			return strings.Replace(m, sub[2], cleaned, 1)
		})
		return htmlImageRe.ReplaceAllStringFunc(s, func(m string) string {
			sub := htmlImageRe.FindStringSubmatch(m)
			return sub[1] + sub[2] + stripQuery(sub[3]) + sub[4]
		})
	})
}

// stripQuery drops the query component of an absolute http(s) URL,
// keeping any fragment.
func stripQuery(u string) string {
	lower := strings.ToLower(u)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return u
	}
	q := strings.IndexByte(u, '?')
	if q < 0 {
		return u
	}
	frag := ""
	if h := strings.IndexByte(u[q:], '#'); h >= 0 {
		frag = u[q+h:]
	}
	return u[:q] + frag
}
