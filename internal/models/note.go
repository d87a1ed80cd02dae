// Package models defines the domain types for notelive.
package models

import "time"

// Note is a single parsed document. A new revision of a file yields a new Note;
// values are never mutated after construction.
type Note struct {
	Path        string    `json:"path"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	PublishedAt time.Time `json:"published_at"`
	Body        string    `json:"body"` // rendered HTML
	Checksum    string    `json:"checksum"`
}

// Snapshot is the whole note directory at one point in time, newest note first.
// It is shared by pointer between readers and must be treated as read-only.
type Snapshot struct {
	Notes     []Note    `json:"notes"`
	ScannedAt time.Time `json:"scanned_at"`
}

// Len returns the number of notes, tolerating a nil snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Notes)
}

// Find returns the note with the given slug.
func (s *Snapshot) Find(slug string) (Note, bool) {
	if s == nil {
		return Note{}, false
	}
	for _, n := range s.Notes {
		if n.Slug == slug {
			return n, true
		}
	}
	return Note{}, false
}
