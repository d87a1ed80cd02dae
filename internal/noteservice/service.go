// Package noteservice is the consumer-facing facade over the versioned note
// store and the search index. HTTP handlers and MCP tools go through it.
package noteservice

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/starford/notelive/internal/apperr"
	"github.com/starford/notelive/internal/index"
	"github.com/starford/notelive/internal/models"
	"github.com/starford/notelive/internal/notestore"
)

// NoteListItem is a lightweight item in a list response.
type NoteListItem struct {
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	PublishedAt time.Time `json:"published_at"`
	Checksum    string    `json:"checksum"`
}

// NoteList is the current snapshot in list form.
type NoteList struct {
	Version uint64         `json:"version"`
	Token   string         `json:"token"`
	Notes   []NoteListItem `json:"notes"`
}

// Service coordinates the note store and the search index.
type Service struct {
	store   *notestore.Store
	idx     index.NoteIndex
	buildID string
}

// NewService creates a new note service. buildID identifies the running
// build and prefixes every version token.
func NewService(store *notestore.Store, idx index.NoteIndex, buildID string) *Service {
	return &Service{store: store, idx: idx, buildID: buildID}
}

// BuildID returns the build identifier used in tokens.
func (s *Service) BuildID() string {
	return s.buildID
}

// GetCurrent returns the current snapshot and its version.
func (s *Service) GetCurrent() (*models.Snapshot, uint64) {
	return s.store.Current()
}

// WaitForChange blocks until the version differs from known or timeout elapses.
func (s *Service) WaitForChange(ctx context.Context, known uint64, timeout time.Duration) uint64 {
	return s.store.WaitForChange(ctx, known, timeout)
}

// Token combines the build identifier with a data version. Two tokens are
// equal only if neither the data nor the deployed build changed.
func (s *Service) Token(version uint64) string {
	return s.buildID + "-" + strconv.FormatUint(version, 10)
}

// CurrentToken returns the token of the current version.
func (s *Service) CurrentToken() string {
	return s.Token(s.store.Version())
}

// WaitForToken long-polls on a token previously handed out. A token that is
// not current (other data version, other build, or garbage) returns the
// current token immediately; otherwise it waits for the next publish or the
// timeout.
func (s *Service) WaitForToken(ctx context.Context, token string, timeout time.Duration) string {
	v := s.store.Version()
	if token != s.Token(v) {
		return s.Token(v)
	}
	return s.Token(s.store.WaitForChange(ctx, v, timeout))
}

// ListNotes returns the current snapshot with its version and token.
func (s *Service) ListNotes(_ context.Context) NoteList {
	snap, v := s.store.Current()
	return s.noteList(snap, v)
}

// WaitNotes long-polls like WaitForChange and returns the snapshot paired
// with the version it returns.
func (s *Service) WaitNotes(ctx context.Context, known uint64, timeout time.Duration) NoteList {
	snap, v := s.store.Wait(ctx, known, timeout)
	return s.noteList(snap, v)
}

func (s *Service) noteList(snap *models.Snapshot, v uint64) NoteList {
	items := make([]NoteListItem, len(snap.Notes))
	for i, n := range snap.Notes {
		items[i] = NoteListItem{
			Slug:        n.Slug,
			Title:       n.Title,
			PublishedAt: n.PublishedAt,
			Checksum:    n.Checksum,
		}
	}
	return NoteList{Version: v, Token: s.Token(v), Notes: items}
}

// GetNote returns a note from the current snapshot.
func (s *Service) GetNote(_ context.Context, slug string) (models.Note, error) {
	snap, _ := s.store.Current()
	n, ok := snap.Find(slug)
	if !ok {
		return models.Note{}, apperr.ErrNotFound
	}
	return n, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	results, err := s.idx.Search(query, limit)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(results), nil
}

// IndexSnapshot writes snap into the search index as version.
func (s *Service) IndexSnapshot(snap *models.Snapshot, version uint64) error {
	if err := s.idx.Replace(version, snap.Notes); err != nil {
		return fmt.Errorf("noteservice: index version %d: %w", version, err)
	}
	return nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
