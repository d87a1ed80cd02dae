package api

import (
	"embed"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/notelive/internal/models"
	"github.com/starford/notelive/internal/noteservice"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	// Note bodies are rendered by goldmark with raw HTML omitted.
	"safeHTML": func(s string) template.HTML { return template.HTML(s) },
}).ParseFS(templateFS, "templates/*.html"))

type pageData struct {
	Token string
	Notes []models.Note
	Note  models.Note
}

// Pages serves the HTML views and the client script.
type Pages struct {
	svc    *noteservice.Service
	static http.Handler
}

// NewPages creates the page handlers.
func NewPages(svc *noteservice.Service) *Pages {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return &Pages{
		svc:    svc,
		static: http.StripPrefix("/static/", http.FileServer(http.FS(sub))),
	}
}

// Index handles GET /: every note of the current snapshot, newest first.
func (p *Pages) Index(w http.ResponseWriter, r *http.Request) {
	snap, v := p.svc.GetCurrent()
	p.render(w, "index.html", pageData{Token: p.svc.Token(v), Notes: snap.Notes})
}

// Note handles GET /notes/{slug}.
func (p *Pages) Note(w http.ResponseWriter, r *http.Request) {
	snap, v := p.svc.GetCurrent()
	note, ok := snap.Find(chi.URLParam(r, "slug"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	p.render(w, "note.html", pageData{Token: p.svc.Token(v), Note: note})
}

// Static handles GET /static/*.
func (p *Pages) Static(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	p.static.ServeHTTP(w, r)
}

func (p *Pages) render(w http.ResponseWriter, name string, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := templates.ExecuteTemplate(w, name, data); err != nil {
		slog.Error("render page failed", slog.String("template", name), slog.String("error", err.Error()))
	}
}
