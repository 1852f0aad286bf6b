package daily

import (
	"fmt"
	"strings"
	"time"
)

// DefaultFormat is the daily note file name format when none is configured.
const DefaultFormat = "YYYY-MM-DD"

// momentTokens are matched longest first.
var momentTokens = []string{
	"YYYY", "dddd", "MMMM",
	"ddd", "MMM",
	"YY", "MM", "DD", "Do", "HH", "hh", "mm", "ss", "dd",
	"M", "D", "H", "h", "m", "s", "A", "a", "d", "E", "Q", "W",
}

// FormatMoment renders t with a moment.js style format string, the format
// language daily note folders and file names are configured in. Text in
// square brackets is copied literally.
func FormatMoment(t time.Time, format string) string {
	var b strings.Builder
	for i := 0; i < len(format); {
		if format[i] == '[' {
			if end := strings.IndexByte(format[i+1:], ']'); end >= 0 {
				b.WriteString(format[i+1 : i+1+end])
				i += end + 2
				continue
			}
		}
		tok := matchToken(format[i:])
		if tok == "" {
			b.WriteByte(format[i])
			i++
			continue
		}
		b.WriteString(renderToken(t, tok))
		i += len(tok)
	}
	return b.String()
}

func matchToken(s string) string {
	for _, tok := range momentTokens {
		if strings.HasPrefix(s, tok) {
			return tok
		}
	}
	return ""
}

func renderToken(t time.Time, tok string) string {
	switch tok {
	case "YYYY":
		return fmt.Sprintf("%04d", t.Year())
	case "YY":
		return fmt.Sprintf("%02d", t.Year()%100)
	case "MMMM":
		return t.Month().String()
	case "MMM":
		return t.Month().String()[:3]
	case "MM":
		return fmt.Sprintf("%02d", int(t.Month()))
	case "M":
		return fmt.Sprintf("%d", int(t.Month()))
	case "DD":
		return fmt.Sprintf("%02d", t.Day())
	case "D":
		return fmt.Sprintf("%d", t.Day())
	case "Do":
		return fmt.Sprintf("%d%s", t.Day(), ordinal(t.Day()))
	case "dddd":
		return t.Weekday().String()
	case "ddd":
		return t.Weekday().String()[:3]
	case "dd":
		return t.Weekday().String()[:2]
	case "d":
		return fmt.Sprintf("%d", int(t.Weekday()))
	case "E":
		wd := int(t.Weekday())
		if wd == 0 {
			wd = 7
		}
		return fmt.Sprintf("%d", wd)
	case "HH":
		return fmt.Sprintf("%02d", t.Hour())
	case "H":
		return fmt.Sprintf("%d", t.Hour())
	case "hh":
		return fmt.Sprintf("%02d", hour12(t))
	case "h":
		return fmt.Sprintf("%d", hour12(t))
	case "mm":
		return fmt.Sprintf("%02d", t.Minute())
	case "m":
		return fmt.Sprintf("%d", t.Minute())
	case "ss":
		return fmt.Sprintf("%02d", t.Second())
	case "s":
		return fmt.Sprintf("%d", t.Second())
	case "A":
		if t.Hour() < 12 {
			return "AM"
		}
		return "PM"
	case "a":
		if t.Hour() < 12 {
			return "am"
		}
		return "pm"
	case "Q":
		return fmt.Sprintf("%d", (int(t.Month())-1)/3+1)
	case "W":
		_, w := t.ISOWeek()
		return fmt.Sprintf("%d", w)
	}
	return tok
}

func hour12(t time.Time) int {
	h := t.Hour() % 12
	if h == 0 {
		return 12
	}
	return h
}

func ordinal(n int) string {
	if n%100 >= 11 && n%100 <= 13 {
		return "th"
	}
	switch n % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	}
	return "th"
}
