// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the sync commands as tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/dinosync/internal/apperr"
	"github.com/starford/dinosync/internal/engine"
	"github.com/starford/dinosync/internal/models"
	"github.com/starford/dinosync/internal/state"
)

// Syncer is the engine surface the tools drive. *engine.Engine implements it.
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

// Server wraps the MCP server with the sync tools.
type Server struct {
	mcp *server.MCPServer
	eng Syncer
	now func() time.Time
}

// New creates a new MCP server with all sync tools registered.
func New(eng Syncer, version string) *Server {
	s := &Server{eng: eng, now: time.Now}

	s.mcp = server.NewMCPServer(
		"dinosync",
		version,
		server.WithToolCapabilities(false),
	)

	s.mcp.AddTool(mcp.NewTool("sync_now",
		mcp.WithDescription("Pull notes changed since the last sync from Dinox into the vault. "+
			"Fails if a sync is already running."),
	), s.syncNow)

	s.mcp.AddTool(mcp.NewTool("sync_status",
		mcp.WithDescription("Report the sync phase, the watermark and the result of the last pass."),
	), s.syncStatus)

	s.mcp.AddTool(mcp.NewTool("push_note",
		mcp.WithDescription("Send a local note that already carries a noteId to Dinox, replacing the remote copy."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path of the note (e.g. Dinox Sync/idea.md)")),
	), s.pushNote)

	s.mcp.AddTool(mcp.NewTool("create_remote_note",
		mcp.WithDescription("Create a Dinox note from a local note without a noteId and record the new id in its frontmatter."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path of the note")),
	), s.createRemoteNote)

	s.mcp.AddTool(mcp.NewTool("reset_watermark",
		mcp.WithDescription("Move the sync watermark back so the next pass refetches older notes. "+
			"Give either a preset or a since expression."),
		mcp.WithString("preset",
			mcp.Description("One of "+strings.Join(state.Presets, ", ")),
			mcp.Enum(state.Presets...),
		),
		mcp.WithString("since", mcp.Description("A date, a timestamp or a phrase such as \"last monday\"")),
	), s.resetWatermark)

	s.mcp.AddTool(mcp.NewTool("open_today",
		mcp.WithDescription("Return the path of today's daily note, creating it when missing."),
	), s.openToday)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) syncNow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summary, err := s.eng.RunFullSync(ctx)
	if err != nil {
		if errors.Is(err, apperr.ErrAlreadySyncing) {
			return mcp.NewToolResultError("a sync is already running; try again when it finishes"), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(summary)
}

func (s *Server) syncStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	wm, err := s.eng.Watermark(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(struct {
		engine.Status
		Watermark string `json:"watermark"`
	}{s.eng.Status(), wm})
}

func (s *Server) pushNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := s.eng.PushNote(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("pushed: %s (%s)", path, id)), nil
}

func (s *Server) createRemoteNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := s.eng.CreateNote(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s (%s)", path, id)), nil
}

func (s *Server) resetWatermark(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	preset := optionalString(req, "preset")
	since := optionalString(req, "since")

	var (
		wm  string
		err error
	)
	switch {
	case preset != "" && since != "":
		return mcp.NewToolResultError("give either preset or since, not both"), nil
	case preset != "":
		wm, err = s.eng.ResetWatermark(ctx, preset)
	case since != "":
		t, perr := state.ParseSince(since, s.now())
		if perr != nil {
			return mcp.NewToolResultError(perr.Error()), nil
		}
		wm, err = s.eng.SetWatermark(ctx, t)
	default:
		return mcp.NewToolResultError("preset or since is required"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("watermark: " + wm), nil
}

func (s *Server) openToday(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, created, err := s.eng.OpenToday(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if created {
		return mcp.NewToolResultText("created: " + path), nil
	}
	return mcp.NewToolResultText(path), nil
}

func optionalString(req mcp.CallToolRequest, key string) string {
	v, err := req.RequireString(key)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(v)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(out)), nil
}
