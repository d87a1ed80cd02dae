package mcpserver

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/notelive/internal/index"
	"github.com/starford/notelive/internal/models"
	"github.com/starford/notelive/internal/noteservice"
	"github.com/starford/notelive/internal/notestore"
)

func testServer(t *testing.T) (*Server, *notestore.Store) {
	t.Helper()

	dbFile, err := os.CreateTemp("", "notelive-mcp-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	snap := &models.Snapshot{Notes: []models.Note{
		{Slug: "hello", Title: "Hello", Body: "<p>greetings traveller</p>\n",
			PublishedAt: time.Date(2020, 1, 1, 10, 0, 0, 0, time.UTC)},
	}}
	store := notestore.NewStore(snap)
	svc := noteservice.NewService(store, db, "b1")
	if err := svc.IndexSnapshot(snap, 0); err != nil {
		t.Fatal(err)
	}
	return New(svc, time.Second), store
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so handlers are
	// invoked directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_notes":
		result, err = srv.listNotes(ctx, req)
	case "read_note":
		result, err = srv.readNote(ctx, req)
	case "search_notes":
		result, err = srv.searchNotes(ctx, req)
	case "current_version":
		result, err = srv.currentVersion(ctx, req)
	case "wait_for_change":
		result, err = srv.waitForChange(ctx, req)
	case "get_note_format":
		result, err = srv.getNoteFormat(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestListNotes(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "list_notes", map[string]interface{}{})
	var list noteservice.NoteList
	if err := json.Unmarshal([]byte(resultText(r)), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if list.Token != "b1-0" || len(list.Notes) != 1 || list.Notes[0].Slug != "hello" {
		t.Errorf("list = %+v", list)
	}
}

func TestReadNote(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "read_note", map[string]interface{}{"slug": "hello"})
	var n models.Note
	if err := json.Unmarshal([]byte(resultText(r)), &n); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n.Title != "Hello" || !strings.Contains(n.Body, "greetings") {
		t.Errorf("note = %+v", n)
	}
}

func TestReadNoteMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_note", map[string]interface{}{"slug": "nope"})
	if !r.IsError {
		t.Error("expected error for missing note")
	}
	r = callTool(t, srv, "read_note", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error for missing slug argument")
	}
}

func TestSearchNotes(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "search_notes", map[string]interface{}{"query": "traveller"})
	if r.IsError {
		t.Fatalf("search error: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), `"slug": "hello"`) {
		t.Errorf("results = %s", resultText(r))
	}
}

func TestCurrentVersion(t *testing.T) {
	srv, store := testServer(t)
	store.Publish(&models.Snapshot{})

	r := callTool(t, srv, "current_version", map[string]interface{}{})
	var got versionResult
	if err := json.Unmarshal([]byte(resultText(r)), &got); err != nil {
		t.Fatal(err)
	}
	if got.Version != 1 || got.Token != "b1-1" {
		t.Errorf("got %+v", got)
	}
}

func TestWaitForChange(t *testing.T) {
	srv, store := testServer(t)
	go func() {
		time.Sleep(30 * time.Millisecond)
		store.Publish(&models.Snapshot{})
	}()

	r := callTool(t, srv, "wait_for_change", map[string]interface{}{"version": float64(0), "timeout_seconds": float64(5)})
	var got versionResult
	if err := json.Unmarshal([]byte(resultText(r)), &got); err != nil {
		t.Fatal(err)
	}
	if got.Version != 1 {
		t.Errorf("version = %d, want 1", got.Version)
	}
}

func TestWaitForChange_TimeoutCapped(t *testing.T) {
	srv, _ := testServer(t)

	start := time.Now()
	r := callTool(t, srv, "wait_for_change", map[string]interface{}{"version": float64(0), "timeout_seconds": float64(3600)})
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("wait not capped: %s", elapsed)
	}
	if !strings.Contains(resultText(r), `"version": 0`) {
		t.Errorf("result = %s", resultText(r))
	}
}

func TestWaitForChange_BadVersion(t *testing.T) {
	srv, _ := testServer(t)
	if r := callTool(t, srv, "wait_for_change", map[string]interface{}{}); !r.IsError {
		t.Error("expected error without version")
	}
	for _, v := range []float64{-1, 1.5, 1e20, math.Inf(1), math.NaN()} {
		if r := callTool(t, srv, "wait_for_change", map[string]interface{}{"version": v}); !r.IsError {
			t.Errorf("expected error for version %v", v)
		}
	}
}

func TestNoteFormat(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_note_format", nil)
	if !strings.Contains(resultText(r), "name:") {
		t.Error("format text missing header example")
	}

	contents, err := srv.readNoteFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(contents) != 1 {
		t.Fatalf("resource = %v, %v", contents, err)
	}
	if tc, ok := contents[0].(mcp.TextResourceContents); !ok || tc.URI != NoteFormatURI {
		t.Errorf("resource contents = %+v", contents[0])
	}
}
