package daily

import (
	"path"
	"regexp"
	"strings"

	"github.com/starford/dinosync/internal/markdown"
	"github.com/starford/dinosync/internal/models"
	"github.com/starford/dinosync/internal/settings"
)

// Sentinel lines around the managed block.
const (
	StartMarker = "<!-- DINOX-SYNC:START -->"
	EndMarker   = "<!-- DINOX-SYNC:END -->"
)

var (
	wikiRe    = regexp.MustCompile(`^\s*(?:[-*+]\s+)?\[\[([^\]|]+)(?:\|([^\]]*))?\]\]\s*$`)
	embedRe   = regexp.MustCompile(`^\s*(?:[-*+]\s+)?!\[\[([^\]|]+)(?:\|[^\]]*)?\]\]\s*$`)
	previewRe = regexp.MustCompile(`^\s*>\s?(.*)$`)
)

// Entry is one note reference inside the managed block. Lines that are
// not note references are kept verbatim in Raw.
type Entry struct {
	Target  string
	Title   string
	Preview string
	Embed   bool
	Raw     string
}

// Options controls rendering of the managed block.
type Options struct {
	Heading        string
	InsertPosition string
	LinkStyle      string
	IncludePreview bool
}

// OptionsFrom builds Options from the daily note settings.
func OptionsFrom(s settings.DailyNotes) Options {
	return Options{
		Heading:        s.Heading,
		InsertPosition: s.InsertPosition,
		LinkStyle:      s.LinkStyle,
		IncludePreview: s.IncludePreview,
	}
}

// ParseEntries reads the lines between the sentinels.
func ParseEntries(lines []string) []Entry {
	var out []Entry
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		var e Entry
		if m := embedRe.FindStringSubmatch(line); m != nil {
			e = Entry{Target: strings.TrimSpace(m[1]), Embed: true}
		} else if m := wikiRe.FindStringSubmatch(line); m != nil {
			e = Entry{Target: strings.TrimSpace(m[1]), Title: strings.TrimSpace(m[2])}
		} else {
			out = append(out, Entry{Raw: line})
			continue
		}
		if i+1 < len(lines) {
			if m := previewRe.FindStringSubmatch(lines[i+1]); m != nil {
				e.Preview = m[1]
				i++
			}
		}
		out = append(out, e)
	}
	return out
}

// RenderEntries turns entries back into block lines.
func RenderEntries(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Target == "" {
			out = append(out, e.Raw)
			continue
		}
		if e.Embed {
			out = append(out, "![["+e.Target+"]]")
			continue
		}
		link := "[[" + e.Target + "]]"
		if e.Title != "" && e.Title != path.Base(e.Target) && e.Title != markdown.HumanizeName(e.Target) {
			link = "[[" + e.Target + "|" + e.Title + "]]"
		}
		out = append(out, "- "+link)
		if e.Preview != "" {
			out = append(out, "  > "+e.Preview)
		}
	}
	return out
}

// ApplyBlock merges changes into the managed block of text and reports
// whether the result differs from text. Text outside the block and its
// heading is never touched.
func ApplyBlock(text string, changes models.DailyChangeSet, opts Options) (string, bool) {
	lines := strings.Split(text, "\n")
	start, end := findBlock(lines)

	if start < 0 {
		entries := merge(nil, changes, opts)
		if len(entries) == 0 {
			return text, false
		}
		block := append([]string{StartMarker}, RenderEntries(entries)...)
		block = append(block, EndMarker)
		if h := strings.TrimSpace(opts.Heading); h != "" {
			block = append([]string{opts.Heading}, block...)
		}

		out := strings.TrimRight(text, "\n")
		if out != "" {
			out += "\n\n"
		}
		out += strings.Join(block, "\n") + "\n"
		return out, out != text
	}

	entries := merge(ParseEntries(lines[start+1:end]), changes, opts)
	var next []string
	next = append(next, lines[:start]...)
	if h := strings.TrimSpace(opts.Heading); h != "" && (start == 0 || strings.TrimSpace(lines[start-1]) != h) {
		next = append(next, opts.Heading)
	}
	next = append(next, StartMarker)
	next = append(next, RenderEntries(entries)...)
	next = append(next, lines[end:]...)

	out := strings.Join(next, "\n")
	return out, out != text
}

// findBlock returns the line indexes of the start and end sentinels, or
// -1, -1 when the block is absent or unterminated.
func findBlock(lines []string) (int, int) {
	start := -1
	for i, l := range lines {
		t := strings.TrimSpace(l)
		if start < 0 && t == StartMarker {
			start = i
			continue
		}
		if start >= 0 && t == EndMarker {
			return start, i
		}
	}
	return -1, -1
}

func merge(entries []Entry, changes models.DailyChangeSet, opts Options) []Entry {
	if len(changes.Removed) > 0 {
		removed := make(map[string]bool, len(changes.Removed))
		for _, r := range changes.Removed {
			removed[Target(r.NotePath)] = true
		}
		kept := entries[:0:0]
		for _, e := range entries {
			if e.Target != "" && removed[e.Target] {
				continue
			}
			kept = append(kept, e)
		}
		entries = kept
	}

	top := 0
	for _, a := range changes.Added {
		target := Target(a.NotePath)
		preview := ""
		if opts.IncludePreview {
			preview = strings.TrimSpace(a.Preview)
		}
		embed := opts.LinkStyle == settings.LinkEmbed

		if i := indexOf(entries, target); i >= 0 {
			e := &entries[i]
			if a.Title != "" {
				e.Title = a.Title
			}
			e.Preview = preview
			e.Embed = embed
			continue
		}
		e := Entry{Target: target, Title: a.Title, Preview: preview, Embed: embed}
		if opts.InsertPosition == settings.InsertTop {
			entries = append(entries[:top], append([]Entry{e}, entries[top:]...)...)
			top++
		} else {
			entries = append(entries, e)
		}
	}
	return entries
}

func indexOf(entries []Entry, target string) int {
	for i, e := range entries {
		if e.Target == target {
			return i
		}
	}
	return -1
}

// Target is the link target for a vault path: the path without its .md extension.
func Target(p string) string {
	return strings.TrimSuffix(p, ".md")
}
