package index

import "github.com/starford/notelive/internal/models"

// NoteIndex defines the interface for search index operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type NoteIndex interface {
	Replace(version uint64, notes []models.Note) error
	Search(query string, limit int) ([]SearchResult, error)
	Version() (uint64, error)
	Close() error
}

// Verify *DB satisfies NoteIndex at compile time.
var _ NoteIndex = (*DB)(nil)
