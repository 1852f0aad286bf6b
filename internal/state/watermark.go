package state

import (
	"fmt"
	"strings"
	"time"
)

// WatermarkLayout is the persisted watermark format: local time, no zone.
const WatermarkLayout = "2006-01-02 15:04:05"

// SentinelWatermark forces a full refetch.
const SentinelWatermark = "1900-01-01 00:00:00"

// Watermark reset presets.
const (
	PresetYesterday = "yesterday"
	PresetThreeDays = "3days"
	PresetWeek      = "week"
	PresetMonth     = "month"
	PresetEpoch     = "epoch"
)

// Presets lists the accepted preset names in menu order.
var Presets = []string{PresetYesterday, PresetThreeDays, PresetWeek, PresetMonth, PresetEpoch}

// FormatWatermark renders t in local time.
func FormatWatermark(t time.Time) string {
	return t.In(time.Local).Format(WatermarkLayout)
}

// ParseWatermark parses a persisted watermark in local time.
func ParseWatermark(s string) (time.Time, error) {
	t, err := time.ParseInLocation(WatermarkLayout, strings.TrimSpace(s), time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("state: invalid watermark %q: %w", s, err)
	}
	return t, nil
}

// PresetWatermark returns the watermark for a reset preset relative to now.
func PresetWatermark(preset string, now time.Time) (string, error) {
	switch preset {
	case PresetYesterday:
		return FormatWatermark(now.AddDate(0, 0, -1)), nil
	case PresetThreeDays:
		return FormatWatermark(now.AddDate(0, 0, -3)), nil
	case PresetWeek:
		return FormatWatermark(now.AddDate(0, 0, -7)), nil
	case PresetMonth:
		return FormatWatermark(now.AddDate(0, -1, 0)), nil
	case PresetEpoch:
		return SentinelWatermark, nil
	}
	return "", fmt.Errorf("state: unknown preset %q (want one of %s)", preset, strings.Join(Presets, ", "))
}
