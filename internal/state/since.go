package state

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

var sinceParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// ParseSince turns a watermark expression into a time. It accepts the
// watermark layout itself, a plain date, or natural language such as
// "last friday" or "2 weeks ago".
func ParseSince(text string, now time.Time) (time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, fmt.Errorf("state: empty since expression")
	}
	if t, err := ParseWatermark(text); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", text, now.Location()); err == nil {
		return t, nil
	}
	r, err := sinceParser.Parse(text, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("state: parse %q: %w", text, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("state: cannot understand %q", text)
	}
	return r.Time, nil
}
