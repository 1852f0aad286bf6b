package state

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/starford/dinosync/internal/settings"
)

// dataKey is the plugin_data row holding the document.
const dataKey = "data"

// KV is the opaque key-value store the host provides for plugin data.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
}

// Store reads and writes the persisted document. Settings and state are
// saved independently: each save re-reads the latest document and replaces
// only its own half, so neither clobbers a concurrent update of the other.
type Store struct {
	kv       KV
	defaults settings.Settings

	mu sync.Mutex
}

// NewStore creates a Store over kv. defaults fill missing or invalid settings.
func NewStore(kv KV, defaults settings.Settings) *Store {
	return &Store{kv: kv, defaults: defaults}
}

// Load returns the normalized document. Only a failing backend is an
// error; missing or corrupt data normalizes to defaults.
func (s *Store) Load(ctx context.Context) (Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *Store) load(ctx context.Context) (Data, error) {
	raw, ok, err := s.kv.Get(ctx, dataKey)
	if err != nil {
		return Data{}, err
	}
	var doc map[string]any
	if ok {
		if err := json.Unmarshal(raw, &doc); err != nil {
			d := Normalize(nil, s.defaults)
			d.Repairs = append(d.Repairs, "persisted data is not valid JSON; using defaults")
			return d, nil
		}
	}
	return Normalize(doc, s.defaults), nil
}

// SaveSettings replaces the settings half of the latest document.
func (s *Store) SaveSettings(ctx context.Context, st settings.Settings) error {
	return s.update(ctx, func(d *Data) { d.Settings = st })
}

// SaveState replaces the state half of the latest document.
func (s *Store) SaveState(ctx context.Context, st State) error {
	return s.update(ctx, func(d *Data) { d.State = st.Clone() })
}

func (s *Store) update(ctx context.Context, fn func(d *Data)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.load(ctx)
	if err != nil {
		return err
	}
	fn(&d)
	d.SchemaVersion = SchemaVersion
	if d.State.NotePathByID == nil {
		d.State.NotePathByID = map[string]string{}
	}
	out, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("state: encode: %w", err)
	}
	return s.kv.Put(ctx, dataKey, out)
}
