// Package state persists the plugin data document: settings plus sync
// state (watermark and note id → path map), with tolerant loading of
// every historical shape.
package state

import (
	"fmt"
	"strings"

	"github.com/starford/dinosync/internal/settings"
)

// SchemaVersion is the current persisted data layout.
const SchemaVersion = 2

// Data is the whole persisted document.
type Data struct {
	SchemaVersion int               `json:"schemaVersion"`
	Settings      settings.Settings `json:"settings"`
	State         State             `json:"state"`

	// Repairs lists the fields Normalize had to reset. Not persisted.
	Repairs []string `json:"-"`
}

// State is the sync bookkeeping half of Data.
type State struct {
	LastSyncTime string            `json:"lastSyncTime"`
	NotePathByID map[string]string `json:"notePathById"`
}

// Clone returns a deep copy of st.
func (st State) Clone() State {
	out := State{LastSyncTime: st.LastSyncTime, NotePathByID: make(map[string]string, len(st.NotePathByID))}
	for k, v := range st.NotePathByID {
		out.NotePathByID[k] = v
	}
	return out
}

// Normalize builds Data from raw decoded JSON. It accepts the current
// versioned layout, the legacy flat layout where settings and state keys
// sit side by side, partially filled documents, and nil. It never fails.
func Normalize(raw map[string]any, defaults settings.Settings) Data {
	d := Data{
		SchemaVersion: SchemaVersion,
		Settings:      settings.Normalize(nil, defaults),
		State:         State{LastSyncTime: SentinelWatermark, NotePathByID: map[string]string{}},
	}
	if len(raw) == 0 {
		return d
	}

	settingsRaw, stateRaw := raw, raw
	if isVersioned(raw) {
		settingsRaw, _ = raw["settings"].(map[string]any)
		stateRaw, _ = raw["state"].(map[string]any)
	} else {
		d.Repairs = append(d.Repairs, "migrated legacy flat layout")
	}

	d.Settings = settings.Normalize(withoutStateKeys(settingsRaw), defaults)

	if v, ok := stateRaw["lastSyncTime"]; ok {
		s, isStr := v.(string)
		if _, err := ParseWatermark(s); isStr && err == nil {
			d.State.LastSyncTime = strings.TrimSpace(s)
		} else {
			d.Repairs = append(d.Repairs, fmt.Sprintf("lastSyncTime %v reset to %s", v, SentinelWatermark))
		}
	}

	if v, ok := stateRaw["notePathById"]; ok {
		m, isMap := v.(map[string]any)
		if !isMap {
			d.Repairs = append(d.Repairs, "notePathById dropped: not an object")
		}
		for id, p := range m {
			path, isStr := p.(string)
			id = strings.TrimSpace(id)
			if id == "" || !isStr || strings.TrimSpace(path) == "" {
				d.Repairs = append(d.Repairs, fmt.Sprintf("notePathById entry %q dropped", id))
				continue
			}
			d.State.NotePathByID[id] = path
		}
	}
	return d
}

func isVersioned(raw map[string]any) bool {
	if _, ok := raw["schemaVersion"]; ok {
		return true
	}
	_, hasSettings := raw["settings"].(map[string]any)
	_, hasState := raw["state"].(map[string]any)
	return hasSettings || hasState
}

func withoutStateKeys(raw map[string]any) map[string]any {
	if raw == nil {
		return nil
	}
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		switch k {
		case "lastSyncTime", "notePathById", "schemaVersion":
			continue
		}
		out[k] = v
	}
	return out
}
