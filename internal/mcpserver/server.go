// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the live note snapshot for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/notelive/internal/apperr"
	"github.com/starford/notelive/internal/noteservice"
)

// NoteFormatURI identifies the note format resource.
const NoteFormatURI = "notelive://note-format"

// Server wraps the MCP server with note tools.
type Server struct {
	mcp      *server.MCPServer
	svc      *noteservice.Service
	longPoll time.Duration
}

// New creates a new MCP server with all note tools registered. longPoll
// caps the wait_for_change timeout.
func New(svc *noteservice.Service, longPoll time.Duration) *Server {
	s := &Server{svc: svc, longPoll: longPoll}

	s.mcp = server.NewMCPServer(
		"notelive",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List the notes of the current snapshot, newest first, with the snapshot version."),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read one note: title, publication time and rendered HTML body."),
		mcp.WithString("slug", mcp.Required(), mcp.Description("Note slug (file name without extension)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search through note titles and bodies."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("current_version",
		mcp.WithDescription("Return the current snapshot version and its version token."),
	), s.currentVersion)

	s.mcp.AddTool(mcp.NewTool("wait_for_change",
		mcp.WithDescription("Block until the snapshot version differs from the given one, "+
			"or until the timeout elapses. Returns the version observed."),
		mcp.WithNumber("version", mcp.Required(), mcp.Description("Version the caller already has")),
		mcp.WithNumber("timeout_seconds", mcp.Description("Maximum wait in seconds (capped by the server)")),
	), s.waitForChange)

	s.mcp.AddTool(mcp.NewTool("get_note_format",
		mcp.WithDescription("Returns the note document format. "+
			"Read it before writing files into the note directory."),
	), s.getNoteFormat)

	// Resource: note format.
	s.mcp.AddResource(
		mcp.NewResource(NoteFormatURI, "Note Format",
			mcp.WithResourceDescription("Header and body layout every note document must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// Serve runs the MCP protocol over in and out (normally stdin and stdout)
// until ctx is cancelled or in is closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	err := server.NewStdioServer(s.mcp).Listen(ctx, in, out)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

type versionResult struct {
	Version uint64 `json:"version"`
	Token   string `json:"token"`
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listNotes(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.ListNotes(ctx))
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.GetNote(ctx, slug)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", slug)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(note)
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) currentVersion(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, v := s.svc.GetCurrent()
	return jsonResult(versionResult{Version: v, Token: s.svc.Token(v)})
}

func (s *Server) waitForChange(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	known, err := req.RequireFloat("version")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	// float64(math.MaxUint64) rounds up to 2^64, which is already out of range.
	if known < 0 || known >= math.MaxUint64 || known != math.Trunc(known) {
		return mcp.NewToolResultError("version must be a non-negative integer"), nil
	}

	timeout := s.longPoll
	if secs := req.GetFloat("timeout_seconds", 0); secs > 0 {
		if d := time.Duration(secs * float64(time.Second)); d < timeout {
			timeout = d
		}
	}

	v := s.svc.WaitForChange(ctx, uint64(known), timeout)
	return jsonResult(versionResult{Version: v, Token: s.svc.Token(v)})
}

func (s *Server) getNoteFormat(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormat), nil
}

func (s *Server) readNoteFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      NoteFormatURI,
			MIMEType: "text/markdown",
			Text:     NoteFormat,
		},
	}, nil
}
