package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/starford/notelive/internal/apperr"
	"github.com/starford/notelive/internal/checksum"
	"github.com/starford/notelive/internal/noteservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc      *noteservice.Service
	longPoll time.Duration
}

// NewHandler creates a new Handler. longPoll is the maximum time a request
// is held open waiting for a change.
func NewHandler(svc *noteservice.Service, longPoll time.Duration) *Handler {
	return &Handler{svc: svc, longPoll: longPoll}
}

// pollTimeout returns the ?timeout= duration, capped at the configured
// long-poll limit. An absent value means the limit itself.
func (h *Handler) pollTimeout(r *http.Request) (time.Duration, error) {
	raw := r.URL.Query().Get("timeout")
	if raw == "" {
		return h.longPoll, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid timeout %q", raw)
	}
	if d > h.longPoll {
		d = h.longPoll
	}
	return d, nil
}

// ListNotes handles GET /api/notes.
//
// With ?since=<version> the request is a long poll: it returns once the
// store version differs from since, or after the timeout, with the notes
// of the version it reports.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	since := r.URL.Query().Get("since")
	if since == "" {
		writeJSON(w, http.StatusOK, h.svc.ListNotes(r.Context()))
		return
	}

	known, err := strconv.ParseUint(since, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("since must be a version number"))
		return
	}
	timeout, err := h.pollTimeout(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, h.svc.WaitNotes(r.Context(), known, timeout))
}

// GetNote handles GET /api/notes/{slug}.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	note, err := h.svc.GetNote(r.Context(), slug)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get note failed", slog.String("slug", slug), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}

	etag := checksum.ETag(note.Checksum)
	w.Header().Set("ETag", etag)
	if checksum.MatchesETag(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// WaitVersion handles GET /api/version/{token}.
//
// The response body is the current version token as plain text. If {token}
// is already current the request blocks until the next publish or the
// long-poll timeout; any other value (including "unknown") returns at once.
func (h *Handler) WaitVersion(w http.ResponseWriter, r *http.Request) {
	timeout, err := h.pollTimeout(r)
	if err != nil {
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}
	token := h.svc.WaitForToken(r.Context(), chi.URLParam(r, "token"), timeout)
	writeText(w, http.StatusOK, token)
}

// Search handles GET /api/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
	})
}
