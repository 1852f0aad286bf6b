package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/dinosync/internal/apperr"
	"github.com/starford/dinosync/internal/daily"
	"github.com/starford/dinosync/internal/engine"
	"github.com/starford/dinosync/internal/models"
	"github.com/starford/dinosync/internal/remote"
	"github.com/starford/dinosync/internal/settings"
	"github.com/starford/dinosync/internal/state"
	"github.com/starford/dinosync/internal/testutil"
	"github.com/starford/dinosync/internal/vault"
)

type fakeSyncer struct {
	mu        sync.Mutex
	syncErr   error
	pushErr   error
	createErr error
	todayErr  error
	wm        string
	pushed    []string
	sinceSet  []time.Time
	presets   []string
}

func (f *fakeSyncer) Status() engine.Status {
	return engine.Status{Phase: engine.PhaseIdle, TrackedNotes: 3}
}

func (f *fakeSyncer) RunFullSync(ctx context.Context) (models.SyncSummary, error) {
	if f.syncErr != nil {
		return models.SyncSummary{}, f.syncErr
	}
	return models.SyncSummary{Processed: 2, Deleted: 1}, nil
}

func (f *fakeSyncer) PushNote(ctx context.Context, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushed = append(f.pushed, path)
	return "id-1", f.pushErr
}

func (f *fakeSyncer) CreateNote(ctx context.Context, path string) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	return "id-new", nil
}

func (f *fakeSyncer) ResetWatermark(ctx context.Context, preset string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.presets = append(f.presets, preset)
	return "2024-05-01 10:00:00", nil
}

func (f *fakeSyncer) SetWatermark(ctx context.Context, t time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinceSet = append(f.sinceSet, t)
	return state.FormatWatermark(t), nil
}

func (f *fakeSyncer) OpenToday(ctx context.Context) (string, bool, error) {
	if f.todayErr != nil {
		return "", false, f.todayErr
	}
	return "Daily/2024-05-02.md", true, nil
}

func (f *fakeSyncer) Watermark(ctx context.Context) (string, error) {
	return f.wm, nil
}

type fakeRuns struct {
	runs  []state.Run
	limit int
}

func (f *fakeRuns) Runs(ctx context.Context, limit int) ([]state.Run, error) {
	f.limit = limit
	return f.runs, nil
}

func testRouter(t *testing.T, eng Syncer, runs RunLister, token string) http.Handler {
	t.Helper()
	if runs == nil {
		runs = &fakeRuns{}
	}
	return NewRouter(eng, runs, token != "", token, nil)
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestStatus(t *testing.T) {
	router := testRouter(t, &fakeSyncer{wm: "2024-05-01 00:00:00"}, nil, "")

	w := do(t, router, http.MethodGet, "/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Phase != engine.PhaseIdle || resp.TrackedNotes != 3 || resp.Watermark != "2024-05-01 00:00:00" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestSync(t *testing.T) {
	router := testRouter(t, &fakeSyncer{}, nil, "")

	w := do(t, router, http.MethodPost, "/sync", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("sync = %d, body = %s", w.Code, w.Body.String())
	}
	var summary models.SyncSummary
	_ = json.Unmarshal(w.Body.Bytes(), &summary)
	if summary.Processed != 2 || summary.Deleted != 1 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestSyncErrorStatuses(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperr.ErrAlreadySyncing, http.StatusConflict},
		{apperr.ErrNoToken, http.StatusPreconditionFailed},
		{&remote.TransportError{Endpoint: "notes", Status: 500}, http.StatusBadGateway},
		{fmt.Errorf("fetch: %w", &remote.LogicError{Endpoint: "notes", Code: "1", Msg: "bad"}), http.StatusBadGateway},
		{&remote.MalformedResponseError{Endpoint: "notes", Reason: "x"}, http.StatusBadGateway},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		router := testRouter(t, &fakeSyncer{syncErr: tt.err}, nil, "")
		w := do(t, router, http.MethodPost, "/sync", nil)
		if w.Code != tt.want {
			t.Errorf("%v: status = %d, want %d", tt.err, w.Code, tt.want)
		}
	}
}

func TestPushNote(t *testing.T) {
	eng := &fakeSyncer{}
	router := testRouter(t, eng, nil, "")

	w := do(t, router, http.MethodPost, "/notes/push", map[string]string{"path": "Notes/a.md"})
	if w.Code != http.StatusOK {
		t.Fatalf("push = %d, body = %s", w.Code, w.Body.String())
	}
	if len(eng.pushed) != 1 || eng.pushed[0] != "Notes/a.md" {
		t.Errorf("pushed = %v", eng.pushed)
	}

	for _, body := range []any{"{not json", map[string]string{}, map[string]string{"path": "a.txt"}} {
		if w := do(t, router, http.MethodPost, "/notes/push", body); w.Code != http.StatusBadRequest {
			t.Errorf("body %v: status = %d, want 400", body, w.Code)
		}
	}
}

func TestPushNoteErrors(t *testing.T) {
	router := testRouter(t, &fakeSyncer{pushErr: apperr.ErrMissingNoteID}, nil, "")
	if w := do(t, router, http.MethodPost, "/notes/push", map[string]string{"path": "a.md"}); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("missing id status = %d", w.Code)
	}

	router = testRouter(t, &fakeSyncer{pushErr: fmt.Errorf("read a.md: %w", fs.ErrNotExist)}, nil, "")
	if w := do(t, router, http.MethodPost, "/notes/push", map[string]string{"path": "a.md"}); w.Code != http.StatusNotFound {
		t.Errorf("missing file status = %d", w.Code)
	}
}

func TestCreateNote(t *testing.T) {
	router := testRouter(t, &fakeSyncer{}, nil, "")
	w := do(t, router, http.MethodPost, "/notes/create", map[string]string{"path": "a.md"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"note_id":"id-new"`) {
		t.Errorf("body = %s", w.Body.String())
	}

	router = testRouter(t, &fakeSyncer{createErr: apperr.ErrHasNoteID}, nil, "")
	if w := do(t, router, http.MethodPost, "/notes/create", map[string]string{"path": "a.md"}); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("has id status = %d", w.Code)
	}
}

func TestResetWatermark(t *testing.T) {
	eng := &fakeSyncer{}
	router := testRouter(t, eng, nil, "")

	w := do(t, router, http.MethodPost, "/watermark", map[string]string{"preset": "yesterday"})
	if w.Code != http.StatusOK {
		t.Fatalf("preset = %d, body = %s", w.Code, w.Body.String())
	}
	if len(eng.presets) != 1 || eng.presets[0] != "yesterday" {
		t.Errorf("presets = %v", eng.presets)
	}

	w = do(t, router, http.MethodPost, "/watermark", map[string]string{"since": "2024-03-01"})
	if w.Code != http.StatusOK {
		t.Fatalf("since = %d, body = %s", w.Code, w.Body.String())
	}
	if len(eng.sinceSet) != 1 || eng.sinceSet[0].Format("2006-01-02") != "2024-03-01" {
		t.Errorf("since = %v", eng.sinceSet)
	}

	bad := []map[string]string{
		{},
		{"preset": "fortnight"},
		{"preset": "week", "since": "2024-01-01"},
	}
	for _, body := range bad {
		if w := do(t, router, http.MethodPost, "/watermark", body); w.Code != http.StatusBadRequest {
			t.Errorf("body %v: status = %d, want 400", body, w.Code)
		}
	}
}

func TestOpenToday(t *testing.T) {
	router := testRouter(t, &fakeSyncer{}, nil, "")
	w := do(t, router, http.MethodPost, "/daily/today", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("today = %d", w.Code)
	}

	router = testRouter(t, &fakeSyncer{todayErr: apperr.ErrDailyNotesUnavailable}, nil, "")
	if w := do(t, router, http.MethodPost, "/daily/today", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("unavailable status = %d", w.Code)
	}
}

func TestRunsLimit(t *testing.T) {
	runs := &fakeRuns{}
	router := testRouter(t, &fakeSyncer{}, runs, "")

	w := do(t, router, http.MethodGet, "/runs", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("runs = %d", w.Code)
	}
	if runs.limit != defaultRunsLimit {
		t.Errorf("default limit = %d", runs.limit)
	}
	if !strings.Contains(w.Body.String(), `"runs":[]`) {
		t.Errorf("empty runs body = %s", w.Body.String())
	}

	do(t, router, http.MethodGet, "/runs?limit=100000", nil)
	if runs.limit != maxRunsLimit {
		t.Errorf("capped limit = %d", runs.limit)
	}
}

func TestAuthMiddleware(t *testing.T) {
	router := testRouter(t, &fakeSyncer{}, nil, "secret")

	if w := do(t, router, http.MethodGet, "/status", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("valid token = %d, want 200", w.Code)
	}
}

type stubRemote struct{}

func (stubRemote) FetchNotes(ctx context.Context, template, lastSyncTime string) ([]models.DayBucket, error) {
	return []models.DayBucket{{
		Date:  "2024-05-01",
		Notes: []models.RemoteNote{{NoteID: "abc123", Title: "Hello", Content: "Body"}},
	}}, nil
}

func (stubRemote) CreateNote(ctx context.Context, in remote.NoteInput) (string, error) {
	return "new", nil
}

func (stubRemote) UpdateNote(ctx context.Context, noteID string, in remote.NoteInput) error {
	return nil
}

func TestSyncAgainstEngine(t *testing.T) {
	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	st := state.NewStore(db, settings.Defaults())
	s := settings.Defaults()
	s.Token = "tok"
	if err := st.SaveSettings(context.Background(), s); err != nil {
		t.Fatal(err)
	}
	eng := engine.New(store, vault.NewCache(store), st,
		func(string) engine.Remote { return stubRemote{} },
		daily.HostConfig{}, testutil.Logger(),
		engine.WithRuns(db),
	)
	router := NewRouter(eng, db, false, "", nil)

	if w := do(t, router, http.MethodPost, "/sync", nil); w.Code != http.StatusOK {
		t.Fatalf("sync = %d, body = %s", w.Code, w.Body.String())
	}

	w := do(t, router, http.MethodGet, "/status", nil)
	var resp StatusResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.TrackedNotes != 1 || resp.LastSummary == nil || resp.LastSummary.Processed != 1 {
		t.Errorf("status after sync = %+v", resp)
	}
	if resp.Watermark == "" || resp.Watermark == state.SentinelWatermark {
		t.Errorf("watermark not advanced: %q", resp.Watermark)
	}

	w = do(t, router, http.MethodGet, "/runs", nil)
	var runs struct {
		Runs []state.Run `json:"runs"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &runs)
	if len(runs.Runs) != 1 || runs.Runs[0].Status != state.RunSucceeded {
		t.Errorf("runs = %+v", runs.Runs)
	}
}
