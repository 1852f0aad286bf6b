package api

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/starford/dinosync/internal/apperr"
	"github.com/starford/dinosync/internal/engine"
	"github.com/starford/dinosync/internal/models"
	"github.com/starford/dinosync/internal/remote"
	"github.com/starford/dinosync/internal/state"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 500
)

// Syncer is the engine surface the control API drives. *engine.Engine implements it.
type Syncer interface {
	Status() engine.Status
	RunFullSync(ctx context.Context) (models.SyncSummary, error)
	PushNote(ctx context.Context, path string) (string, error)
	CreateNote(ctx context.Context, path string) (string, error)
	ResetWatermark(ctx context.Context, preset string) (string, error)
	SetWatermark(ctx context.Context, t time.Time) (string, error)
	OpenToday(ctx context.Context) (string, bool, error)
	Watermark(ctx context.Context) (string, error)
}

// RunLister reads sync history. *state.DB implements it.
type RunLister interface {
	Runs(ctx context.Context, limit int) ([]state.Run, error)
}

// Handler holds API route handlers.
type Handler struct {
	eng  Syncer
	runs RunLister
	now  func() time.Time
}

// NewHandler creates a new Handler.
func NewHandler(eng Syncer, runs RunLister) *Handler {
	return &Handler{eng: eng, runs: runs, now: time.Now}
}

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	engine.Status
	Watermark string `json:"watermark"`
}

// Status handles GET /api/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	wm, err := h.eng.Watermark(r.Context())
	if err != nil {
		slog.Error("read watermark failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: h.eng.Status(), Watermark: wm})
}

// Sync handles POST /api/sync. The pass runs to completion before the
// response is written; a second request while one runs gets 409.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	summary, err := h.eng.RunFullSync(r.Context())
	if err != nil {
		writeError(w, "sync", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type pathRequest struct {
	Path string `json:"path"`
}

type noteResponse struct {
	Path   string `json:"path"`
	NoteID string `json:"note_id"`
}

// PushNote handles POST /api/notes/push.
func (h *Handler) PushNote(w http.ResponseWriter, r *http.Request) {
	path, ok := decodePath(w, r)
	if !ok {
		return
	}
	id, err := h.eng.PushNote(r.Context(), path)
	if err != nil {
		writeError(w, "push note", err)
		return
	}
	writeJSON(w, http.StatusOK, noteResponse{Path: path, NoteID: id})
}

// CreateNote handles POST /api/notes/create.
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	path, ok := decodePath(w, r)
	if !ok {
		return
	}
	id, err := h.eng.CreateNote(r.Context(), path)
	if err != nil {
		writeError(w, "create note", err)
		return
	}
	writeJSON(w, http.StatusCreated, noteResponse{Path: path, NoteID: id})
}

// ResetWatermark handles POST /api/watermark. The body names either a
// preset or a since expression, never both.
func (h *Handler) ResetWatermark(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Preset string `json:"preset"`
		Since  string `json:"since"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Preset = strings.TrimSpace(req.Preset)
	req.Since = strings.TrimSpace(req.Since)

	var (
		wm  string
		err error
	)
	switch {
	case req.Preset != "" && req.Since != "":
		writeJSON(w, http.StatusBadRequest, errorBody("preset and since are mutually exclusive"))
		return
	case req.Preset != "":
		if !validPreset(req.Preset) {
			writeJSON(w, http.StatusBadRequest, errorBody("unknown preset: want one of "+strings.Join(state.Presets, ", ")))
			return
		}
		wm, err = h.eng.ResetWatermark(r.Context(), req.Preset)
	case req.Since != "":
		t, perr := state.ParseSince(req.Since, h.now())
		if perr != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(perr.Error()))
			return
		}
		wm, err = h.eng.SetWatermark(r.Context(), t)
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("preset or since is required"))
		return
	}
	if err != nil {
		writeError(w, "reset watermark", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"watermark": wm})
}

// OpenToday handles POST /api/daily/today.
func (h *Handler) OpenToday(w http.ResponseWriter, r *http.Request) {
	path, created, err := h.eng.OpenToday(r.Context())
	if err != nil {
		writeError(w, "open today", err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{"path": path, "created": created})
}

// Runs handles GET /api/runs.
func (h *Handler) Runs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = defaultRunsLimit
	}
	if limit > maxRunsLimit {
		limit = maxRunsLimit
	}
	runs, err := h.runs.Runs(r.Context(), limit)
	if err != nil {
		slog.Error("list runs failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if runs == nil {
		runs = []state.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func decodePath(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req pathRequest
	if !decodeJSON(w, r, &req) {
		return "", false
	}
	p := strings.TrimSpace(req.Path)
	if p == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return "", false
	}
	if !strings.HasSuffix(p, ".md") {
		writeJSON(w, http.StatusBadRequest, errorBody("path must end with .md"))
		return "", false
	}
	return p, true
}

func validPreset(p string) bool {
	for _, known := range state.Presets {
		if p == known {
			return true
		}
	}
	return false
}

// writeError maps engine and remote errors to HTTP statuses.
func writeError(w http.ResponseWriter, op string, err error) {
	var (
		transport *remote.TransportError
		logic     *remote.LogicError
		malformed *remote.MalformedResponseError
	)
	switch {
	case errors.Is(err, apperr.ErrAlreadySyncing):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrMissingNoteID), errors.Is(err, apperr.ErrHasNoteID):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrNoToken):
		writeJSON(w, http.StatusPreconditionFailed, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrDailyNotesUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorBody(err.Error()))
	case errors.As(err, &transport), errors.As(err, &logic), errors.As(err, &malformed):
		slog.Warn(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, errorBody(err.Error()))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}
