package notestore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/notelive/internal/parser"
	"github.com/starford/notelive/internal/storage"
	"github.com/starford/notelive/internal/testutil"
)

func TestScan_SingleNote(t *testing.T) {
	dir, store := testutil.NoteDir(t)
	testutil.WriteFile(t, dir, "a.markdown", "name: Hello\ndate: 2020-01-01 10:00\n\n# Hi")

	snap, err := Scan(context.Background(), store, ScanOptions{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(snap.Notes) != 1 {
		t.Fatalf("len = %d, want 1", len(snap.Notes))
	}
	n := snap.Notes[0]
	if n.Title != "Hello" {
		t.Errorf("title = %q", n.Title)
	}
	if !strings.Contains(n.Body, "<h1>Hi</h1>") {
		t.Errorf("body = %q", n.Body)
	}
	if n.Path != "a.markdown" || n.Slug != "a" {
		t.Errorf("path = %q slug = %q", n.Path, n.Slug)
	}
}

func TestScan_IgnoresOtherExtensions(t *testing.T) {
	dir, store := testutil.NoteDir(t)
	testutil.WriteNote(t, dir, "a.markdown", "A", "2020-01-01 10:00", "body")
	testutil.WriteFile(t, dir, "notes.txt", "this is not a note at all")
	testutil.WriteFile(t, dir, "draft.md", "neither is this")

	snap, err := Scan(context.Background(), store, ScanOptions{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(snap.Notes) != 1 || snap.Notes[0].Title != "A" {
		t.Errorf("notes = %+v", snap.Notes)
	}
}

func TestScan_CustomExtension(t *testing.T) {
	dir, store := testutil.NoteDir(t)
	testutil.WriteNote(t, dir, "a.md", "A", "2020-01-01 10:00", "body")
	testutil.WriteNote(t, dir, "b.markdown", "B", "2020-01-01 10:00", "body")

	snap, err := Scan(context.Background(), store, ScanOptions{Extension: ".md"})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(snap.Notes) != 1 || snap.Notes[0].Slug != "a" {
		t.Errorf("notes = %+v", snap.Notes)
	}
}

func TestScan_NewestFirstStable(t *testing.T) {
	dir, store := testutil.NoteDir(t)
	testutil.WriteNote(t, dir, "a.markdown", "Old", "2019-05-01 08:00", "x")
	testutil.WriteNote(t, dir, "b.markdown", "Tie1", "2021-03-01 12:00", "x")
	testutil.WriteNote(t, dir, "c.markdown", "New", "2022-01-01 00:00", "x")
	testutil.WriteNote(t, dir, "d.markdown", "Tie2", "2021-03-01 12:00", "x")
	testutil.WriteNote(t, dir, "e.markdown", "Undated", "", "x")

	snap, err := Scan(context.Background(), store, ScanOptions{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	var got []string
	for i, n := range snap.Notes {
		got = append(got, n.Title)
		if i > 0 && n.PublishedAt.After(snap.Notes[i-1].PublishedAt) {
			t.Errorf("notes not sorted at %d", i)
		}
	}
	want := "New,Tie1,Tie2,Old,Undated"
	if strings.Join(got, ",") != want {
		t.Errorf("order = %v, want %s", got, want)
	}
}

func TestScan_EmptyDirectory(t *testing.T) {
	_, store := testutil.NoteDir(t)
	snap, err := Scan(context.Background(), store, ScanOptions{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if snap.Len() != 0 {
		t.Errorf("len = %d, want 0", snap.Len())
	}
}

func TestScan_OneBadNoteFailsAll(t *testing.T) {
	dir, store := testutil.NoteDir(t)
	testutil.WriteNote(t, dir, "a.markdown", "Good", "2020-01-01 10:00", "x")
	testutil.WriteFile(t, dir, "b.markdown", "no separator here")

	snap, err := Scan(context.Background(), store, ScanOptions{})
	if snap != nil {
		t.Errorf("expected no snapshot, got %+v", snap)
	}
	var serr *ScanError
	if !errors.As(err, &serr) {
		t.Fatalf("err = %v, want *ScanError", err)
	}
	if serr.Kind != ScanNoteFailed || serr.Path != "b.markdown" {
		t.Errorf("scan error = %+v", serr)
	}
	if !errors.Is(err, parser.ErrMissingSeparator) {
		t.Errorf("cause not preserved: %v", err)
	}
}

func TestScan_InvalidDateFailsScan(t *testing.T) {
	dir, store := testutil.NoteDir(t)
	testutil.WriteNote(t, dir, "a.markdown", "Bad", "01/02/2020", "x")

	_, err := Scan(context.Background(), store, ScanOptions{})
	if !errors.Is(err, parser.ErrInvalidDate) {
		t.Fatalf("err = %v, want ErrInvalidDate", err)
	}
}

func TestScan_RequireDate(t *testing.T) {
	dir, store := testutil.NoteDir(t)
	testutil.WriteNote(t, dir, "a.markdown", "Undated", "", "x")

	_, err := Scan(context.Background(), store, ScanOptions{Parse: parser.Options{RequireDate: true}})
	if !errors.Is(err, parser.ErrMissingDate) {
		t.Fatalf("err = %v, want ErrMissingDate", err)
	}
}

func TestScan_DirectoryUnreadable(t *testing.T) {
	dir, store := testutil.NoteDir(t)
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	_, err := Scan(context.Background(), store, ScanOptions{})
	var serr *ScanError
	if !errors.As(err, &serr) || serr.Kind != ScanDirectoryUnreadable {
		t.Fatalf("err = %v, want directory unreadable", err)
	}
}

func TestScan_UnreadableNote(t *testing.T) {
	dir, store := testutil.NoteDir(t)
	// A dangling symlink lists fine but cannot be read.
	if err := os.Symlink(filepath.Join(dir, "missing"), filepath.Join(dir, "x.markdown")); err != nil {
		t.Skipf("symlink: %v", err)
	}
	_, err := Scan(context.Background(), store, ScanOptions{})
	var serr *ScanError
	if !errors.As(err, &serr) || serr.Kind != ScanNoteFailed || serr.Path != "x.markdown" {
		t.Fatalf("err = %v, want note failed for x.markdown", err)
	}
}

func TestScan_Cancelled(t *testing.T) {
	dir, store := testutil.NoteDir(t)
	testutil.WriteNote(t, dir, "a.markdown", "A", "2020-01-01 10:00", "x")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Scan(ctx, store, ScanOptions{}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

// vanishingProvider lists a file that is gone by the time it is read, as when
// an editor saves by writing a temp file and renaming it over the original.
type vanishingProvider struct {
	storage.Provider
}

func (p vanishingProvider) List(ext string) ([]storage.Entry, error) {
	entries, err := p.Provider.List(ext)
	return append(entries, storage.Entry{Path: "gone" + ext}), err
}

func TestScan_FileVanishedAfterListingIsNoteFailure(t *testing.T) {
	dir, store := testutil.NoteDir(t)
	testutil.WriteNote(t, dir, "a.markdown", "A", "2020-01-01 10:00", "x")

	_, err := Scan(context.Background(), vanishingProvider{store}, ScanOptions{})
	var serr *ScanError
	if !errors.As(err, &serr) {
		t.Fatalf("err = %v, want *ScanError", err)
	}
	if serr.Kind != ScanNoteFailed || serr.Path != "gone.markdown" {
		t.Errorf("scan error = %+v, want note failure for gone.markdown", serr)
	}
}
