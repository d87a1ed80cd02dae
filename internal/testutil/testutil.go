// Package testutil provides shared test helpers for note directories.
package testutil

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/notelive/internal/storage"
)

// NoteDir creates a temporary note directory with a storage.Provider.
func NoteDir(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// WriteFile writes raw content to name under dir.
func WriteFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// WriteNote writes a well-formed note document.
func WriteNote(t *testing.T, dir, name, title, date, body string) {
	t.Helper()
	WriteFile(t, dir, name, Doc(title, date, body))
}

// Doc renders a note document. An empty date omits the header line.
func Doc(title, date, body string) string {
	if date == "" {
		return fmt.Sprintf("name: %s\n\n%s", title, body)
	}
	return fmt.Sprintf("name: %s\ndate: %s\n\n%s", title, date, body)
}

// Logger returns a logger that discards output below error level.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// Eventually polls fn every tick until it returns true or timeout elapses.
func Eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}
