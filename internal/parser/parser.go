// Package parser turns raw note documents into models.Note values.
//
// A document is a block of "key: value" header lines, one blank line, and a
// Markdown body:
//
//	name: Hello
//	date: 2020-01-01 10:00
//
//	# Hi
//
// Recognised keys are "name" (the title) and "date" (publication time in
// DateLayout). The body is rendered to HTML with goldmark.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/starford/notelive/internal/checksum"
	"github.com/starford/notelive/internal/models"
)

// DateLayout is the layout of the "date" header value (YYYY-MM-DD HH:MM).
const DateLayout = "2006-01-02 15:04"

const separator = "\n\n"

var (
	ErrMissingSeparator    = errors.New("header must be separated from the body by a blank line")
	ErrMalformedHeaderLine = errors.New("expected 'key: value' in header")
	ErrUnknownHeaderKey    = errors.New("unknown header key")
	ErrInvalidDate         = errors.New("invalid date")
	ErrMissingTitle        = errors.New("missing name")
	ErrMissingDate         = errors.New("missing date")
)

// Error describes why a document was rejected. Err is one of the sentinel
// errors above, so callers can use errors.Is.
type Error struct {
	Err    error
	Detail string // offending line, key or value
	Cause  error
}

func (e *Error) Error() string {
	msg := e.Err.Error()
	if e.Detail != "" {
		msg += fmt.Sprintf(": %q", e.Detail)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// Options controls the deployment-specific parts of parsing.
type Options struct {
	// Location is the zone "date" values are interpreted in. Nil means UTC.
	Location *time.Location
	// RequireDate rejects documents without a "date" header. When false such
	// documents get the Unix epoch and sort last.
	RequireDate bool
}

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

// Parse parses a raw document. It has no side effects and is safe for
// concurrent use.
func Parse(raw []byte, opts Options) (models.Note, error) {
	text := string(raw)
	end := strings.Index(text, separator)
	if end < 0 {
		return models.Note{}, &Error{Err: ErrMissingSeparator}
	}
	header, body := text[:end], text[end:]

	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	note := models.Note{
		PublishedAt: time.Unix(0, 0).UTC(),
		Checksum:    checksum.Sum(raw),
	}
	hasDate := false

	for _, line := range strings.Split(header, "\n") {
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			return models.Note{}, &Error{Err: ErrMalformedHeaderLine, Detail: line}
		}
		val = strings.TrimSpace(val)

		switch key {
		case "name":
			note.Title = val
		case "date":
			t, err := time.ParseInLocation(DateLayout, val, loc)
			if err != nil {
				return models.Note{}, &Error{Err: ErrInvalidDate, Detail: val, Cause: err}
			}
			note.PublishedAt = t
			hasDate = true
		default:
			return models.Note{}, &Error{Err: ErrUnknownHeaderKey, Detail: key}
		}
	}

	if note.Title == "" {
		return models.Note{}, &Error{Err: ErrMissingTitle}
	}
	if opts.RequireDate && !hasDate {
		return models.Note{}, &Error{Err: ErrMissingDate}
	}

	html, err := Render([]byte(body))
	if err != nil {
		return models.Note{}, err
	}
	note.Body = html
	return note, nil
}

// Render converts a Markdown body to an HTML fragment. Raw HTML in the source
// is omitted rather than passed through.
func Render(src []byte) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert(src, &buf); err != nil {
		return "", fmt.Errorf("parser: render: %w", err)
	}
	return buf.String(), nil
}
