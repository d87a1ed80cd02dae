package notestore

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/starford/notelive/internal/models"
	"github.com/starford/notelive/internal/parser"
	"github.com/starford/notelive/internal/storage"
)

// DefaultExtension is the file extension of note documents.
const DefaultExtension = ".markdown"

// ScanKind classifies a ScanError.
type ScanKind int

const (
	// ScanDirectoryUnreadable means the note directory could not be listed.
	ScanDirectoryUnreadable ScanKind = iota + 1
	// ScanNoteFailed means one note could not be read or parsed.
	ScanNoteFailed
)

// ScanError aborts a whole scan. A scan never yields a partial snapshot.
type ScanError struct {
	Kind ScanKind
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	if e.Kind == ScanDirectoryUnreadable {
		return fmt.Sprintf("scan: directory unreadable: %v", e.Err)
	}
	return fmt.Sprintf("scan: note %s: %v", e.Path, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }

// ScanOptions configures a directory scan.
type ScanOptions struct {
	Extension string // defaults to DefaultExtension
	Parse     parser.Options
}

// ScanFunc produces a fresh snapshot of the note directory.
type ScanFunc func(ctx context.Context) (*models.Snapshot, error)

// Scan reads every note directly under the provider root and returns them
// newest first. Notes with equal dates keep their directory order.
func Scan(ctx context.Context, store storage.Provider, opts ScanOptions) (*models.Snapshot, error) {
	ext := opts.Extension
	if ext == "" {
		ext = DefaultExtension
	}

	entries, err := store.List(ext)
	if err != nil {
		return nil, &ScanError{Kind: ScanDirectoryUnreadable, Err: err}
	}

	notes := make([]models.Note, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := store.Read(e.Path)
		if err != nil {
			return nil, &ScanError{Kind: ScanNoteFailed, Path: e.Path, Err: err}
		}
		note, err := parser.Parse(data, opts.Parse)
		if err != nil {
			return nil, &ScanError{Kind: ScanNoteFailed, Path: e.Path, Err: err}
		}
		note.Path = e.Path
		note.Slug = strings.TrimSuffix(filepath.Base(e.Path), ext)
		notes = append(notes, note)
	}

	// Put newest notes first.
	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].PublishedAt.After(notes[j].PublishedAt)
	})

	return &models.Snapshot{Notes: notes, ScannedAt: time.Now()}, nil
}

// Scanner binds a provider and options into a ScanFunc.
func Scanner(store storage.Provider, opts ScanOptions) ScanFunc {
	return func(ctx context.Context) (*models.Snapshot, error) {
		return Scan(ctx, store, opts)
	}
}
