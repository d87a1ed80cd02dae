package index

import (
	"database/sql"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/starford/notelive/internal/models"
)

const versionKey = "snapshot_version"

var (
	tagRe   = regexp.MustCompile(`<[^>]*>`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// SearchResult represents one search hit.
type SearchResult struct {
	Slug    string `json:"slug"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Replace swaps the indexed notes for the given snapshot contents in a single
// transaction and records version as the indexed snapshot version.
func (db *DB) Replace(version uint64, notes []models.Note) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.Exec(`DELETE FROM notes`); err != nil {
		return fmt.Errorf("index: clear notes: %w", err)
	}
	if err := ftsClear(tx); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO notes (slug, path, title, checksum, body, published_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("index: prepare note insert: %w", err)
	}
	defer stmt.Close()

	for _, n := range notes {
		text := PlainText(n.Body)
		if _, err := stmt.Exec(n.Slug, n.Path, n.Title, n.Checksum, text, n.PublishedAt.UTC()); err != nil {
			return fmt.Errorf("index: insert note %s: %w", n.Slug, err)
		}
		if err := ftsInsert(tx, n.Slug, n.Title, text); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, versionKey, int64(version)); err != nil {
		return fmt.Errorf("index: record version: %w", err)
	}

	return tx.Commit()
}

// Version returns the snapshot version last written by Replace, or 0.
func (db *DB) Version() (uint64, error) {
	var v int64
	err := db.conn.QueryRow(`SELECT value FROM meta WHERE key = ?`, versionKey).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("index: version: %w", err)
	}
	return uint64(v), nil
}

// Count returns the number of indexed notes.
func (db *DB) Count() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("index: count: %w", err)
	}
	return n, nil
}

// PlainText strips tags from rendered HTML and collapses whitespace.
func PlainText(fragment string) string {
	text := html.UnescapeString(tagRe.ReplaceAllString(fragment, " "))
	return strings.TrimSpace(spaceRe.ReplaceAllString(text, " "))
}

func scanResults(rows *sql.Rows) ([]SearchResult, error) {
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Slug, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
