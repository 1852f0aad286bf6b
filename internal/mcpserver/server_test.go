package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/dinosync/internal/apperr"
	"github.com/starford/dinosync/internal/engine"
	"github.com/starford/dinosync/internal/models"
)

type fakeSyncer struct {
	syncErr  error
	todayErr error
	created  bool
	presets  []string
	since    []time.Time
}

func (f *fakeSyncer) Status() engine.Status {
	return engine.Status{Phase: engine.PhaseIdle, TrackedNotes: 7}
}

func (f *fakeSyncer) RunFullSync(ctx context.Context) (models.SyncSummary, error) {
	return models.SyncSummary{Processed: 4}, f.syncErr
}

func (f *fakeSyncer) PushNote(ctx context.Context, path string) (string, error) {
	if !strings.HasSuffix(path, ".md") {
		return "", apperr.ErrNotFound
	}
	return "id-1", nil
}

func (f *fakeSyncer) CreateNote(ctx context.Context, path string) (string, error) {
	return "", apperr.ErrHasNoteID
}

func (f *fakeSyncer) ResetWatermark(ctx context.Context, preset string) (string, error) {
	f.presets = append(f.presets, preset)
	return "2024-05-01 10:00:00", nil
}

func (f *fakeSyncer) SetWatermark(ctx context.Context, t time.Time) (string, error) {
	f.since = append(f.since, t)
	return t.Format("2006-01-02 15:04:05"), nil
}

func (f *fakeSyncer) OpenToday(ctx context.Context) (string, bool, error) {
	if f.todayErr != nil {
		return "", false, f.todayErr
	}
	return "Daily/2024-05-02.md", f.created, nil
}

func (f *fakeSyncer) Watermark(ctx context.Context) (string, error) {
	return "2024-05-01 00:00:00", nil
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "sync_now":
		result, err = srv.syncNow(ctx, req)
	case "sync_status":
		result, err = srv.syncStatus(ctx, req)
	case "push_note":
		result, err = srv.pushNote(ctx, req)
	case "create_remote_note":
		result, err = srv.createRemoteNote(ctx, req)
	case "reset_watermark":
		result, err = srv.resetWatermark(ctx, req)
	case "open_today":
		result, err = srv.openToday(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestSyncNow(t *testing.T) {
	srv := New(&fakeSyncer{}, "test")
	r := callTool(t, srv, "sync_now", nil)
	if r.IsError {
		t.Fatalf("unexpected error: %s", resultText(r))
	}
	var summary models.SyncSummary
	if err := json.Unmarshal([]byte(resultText(r)), &summary); err != nil {
		t.Fatal(err)
	}
	if summary.Processed != 4 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestSyncNowAlreadyRunning(t *testing.T) {
	srv := New(&fakeSyncer{syncErr: apperr.ErrAlreadySyncing}, "test")
	r := callTool(t, srv, "sync_now", nil)
	if !r.IsError || !strings.Contains(resultText(r), "already running") {
		t.Errorf("result = %v %q", r.IsError, resultText(r))
	}
}

func TestSyncStatus(t *testing.T) {
	srv := New(&fakeSyncer{}, "test")
	text := resultText(callTool(t, srv, "sync_status", nil))
	if !strings.Contains(text, `"tracked_notes": 7`) || !strings.Contains(text, `"watermark": "2024-05-01 00:00:00"`) {
		t.Errorf("status = %s", text)
	}
}

func TestPushAndCreate(t *testing.T) {
	srv := New(&fakeSyncer{}, "test")

	r := callTool(t, srv, "push_note", map[string]interface{}{"path": "a.md"})
	if r.IsError || resultText(r) != "pushed: a.md (id-1)" {
		t.Errorf("push = %q", resultText(r))
	}
	if r := callTool(t, srv, "push_note", map[string]interface{}{}); !r.IsError {
		t.Error("push without path should fail")
	}
	if r := callTool(t, srv, "create_remote_note", map[string]interface{}{"path": "a.md"}); !r.IsError {
		t.Error("create of a tracked note should fail")
	}
}

func TestResetWatermarkTool(t *testing.T) {
	eng := &fakeSyncer{}
	srv := New(eng, "test")
	srv.now = func() time.Time { return time.Date(2024, 5, 2, 10, 0, 0, 0, time.Local) }

	r := callTool(t, srv, "reset_watermark", map[string]interface{}{"preset": "week"})
	if r.IsError || len(eng.presets) != 1 || eng.presets[0] != "week" {
		t.Errorf("preset: %q %v", resultText(r), eng.presets)
	}

	r = callTool(t, srv, "reset_watermark", map[string]interface{}{"since": "2024-04-01"})
	if r.IsError || len(eng.since) != 1 {
		t.Fatalf("since: %q", resultText(r))
	}
	if got := eng.since[0].Format("2006-01-02"); got != "2024-04-01" {
		t.Errorf("since = %s", got)
	}

	if r := callTool(t, srv, "reset_watermark", map[string]interface{}{}); !r.IsError {
		t.Error("missing arguments should fail")
	}
	if r := callTool(t, srv, "reset_watermark", map[string]interface{}{"preset": "week", "since": "2024-04-01"}); !r.IsError {
		t.Error("both arguments should fail")
	}
}

func TestOpenTodayTool(t *testing.T) {
	srv := New(&fakeSyncer{created: true}, "test")
	if got := resultText(callTool(t, srv, "open_today", nil)); got != "created: Daily/2024-05-02.md" {
		t.Errorf("open_today = %q", got)
	}

	srv = New(&fakeSyncer{todayErr: apperr.ErrDailyNotesUnavailable}, "test")
	if r := callTool(t, srv, "open_today", nil); !r.IsError {
		t.Error("unavailable daily notes should be a tool error")
	}
}
