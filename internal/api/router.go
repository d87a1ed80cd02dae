package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/starford/notelive/internal/noteservice"
)

// NewRouter creates a chi router with the HTML pages, the static client
// script and the JSON API under /api.
// sseHandler, if non-nil, is mounted at GET /api/events.
// longPoll bounds how long version requests are held open.
func NewRouter(svc *noteservice.Service, sseHandler http.Handler, longPoll time.Duration) chi.Router {
	h := NewHandler(svc, longPoll)
	p := NewPages(svc)

	r := chi.NewRouter()

	// Pages.
	r.Get("/", p.Index)
	r.Get("/notes/{slug}", p.Note)
	r.Get("/static/*", p.Static)

	r.Route("/api", func(r chi.Router) {
		r.Use(NoStore)

		r.Get("/notes", h.ListNotes)
		r.Get("/notes/{slug}", h.GetNote)

		// Long poll.
		r.Get("/version/{token}", h.WaitVersion)

		r.Get("/search", h.Search)

		if sseHandler != nil {
			r.Get("/events", sseHandler.ServeHTTP)
		}
	})

	return r
}
