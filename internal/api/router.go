package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all control routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(eng Syncer, runs RunLister, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(eng, runs)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/status", h.Status)
	r.Post("/sync", h.Sync)
	r.Get("/runs", h.Runs)

	r.Route("/notes", func(r chi.Router) {
		r.Post("/push", h.PushNote)
		r.Post("/create", h.CreateNote)
	})

	r.Post("/watermark", h.ResetWatermark)
	r.Post("/daily/today", h.OpenToday)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
