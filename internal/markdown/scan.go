// Package markdown holds small lexical scanners over note text. Every
// scanner is a pure function and skips fenced code blocks and inline code
// spans, where image or tag syntax is literal text.
package markdown

import (
	"strings"
)

// segment is a run of text that is either inside code or not.
type segment struct {
	text string
	code bool
}

// mapProse applies fn to every part of text that is outside fenced code
// blocks and inline code spans, leaving code untouched.
func mapProse(text string, fn func(string) string) string {
	lines := strings.SplitAfter(text, "\n")
	var b strings.Builder
	b.Grow(len(text))
	fence := ""
	for _, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		if marker := fenceMarker(trimmed); marker != "" {
			switch {
			case fence == "":
				fence = marker
			case strings.HasPrefix(marker, fence[:1]) && len(marker) >= len(fence) &&
				strings.TrimSpace(trimmed[len(marker):]) == "":
				fence = ""
			}
			b.WriteString(line)
			continue
		}
		if fence != "" {
			b.WriteString(line)
			continue
		}
		for _, seg := range splitInlineCode(line) {
			if seg.code {
				b.WriteString(seg.text)
			} else {
				b.WriteString(fn(seg.text))
			}
		}
	}
	return b.String()
}

// fenceMarker returns the run of ``` or ~~~ (three or more) at the start of
// line, or "".
func fenceMarker(line string) string {
	for _, c := range []byte{'`', '~'} {
		n := 0
		for n < len(line) && line[n] == c {
			n++
		}
		if n >= 3 {
			return line[:n]
		}
	}
	return ""
}

// splitInlineCode splits a line into prose and code-span segments. A span
// opened by N backticks closes at the next run of exactly N backticks; an
// unclosed run is literal prose.
func splitInlineCode(line string) []segment {
	var out []segment
	start := 0
	i := 0
	for i < len(line) {
		if line[i] != '`' {
			i++
			continue
		}
		n := 0
		for i+n < len(line) && line[i+n] == '`' {
			n++
		}
		closeAt := findRun(line, i+n, n)
		if closeAt < 0 {
			i += n
			continue
		}
		if start < i {
			out = append(out, segment{text: line[start:i]})
		}
		end := closeAt + n
		out = append(out, segment{text: line[i:end], code: true})
		start, i = end, end
	}
	if start < len(line) {
		out = append(out, segment{text: line[start:]})
	}
	return out
}

func findRun(s string, from, n int) int {
	for i := from; i < len(s); {
		if s[i] != '`' {
			i++
			continue
		}
		m := 0
		for i+m < len(s) && s[i+m] == '`' {
			m++
		}
		if m == n {
			return i
		}
		i += m
	}
	return -1
}
