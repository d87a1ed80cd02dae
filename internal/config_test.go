package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/notelive/pkg/config"
)

func TestDefaultConfig_Valid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should pass: %v", err)
	}
}

func TestConfig_LongPollMustBeShorterThanWriteTimeout(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.LongPoll.Timeout = cfg.App.HTTP.WriteTimeout
	err := cfg.Validate()
	if err == nil {
		t.Fatal("long poll equal to write timeout should fail")
	}
	if !strings.Contains(err.Error(), "write_timeout") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestWatchConfig_InvalidBackend(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Watch.Backend = "inotify2"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown backend should fail validation")
	}
}

func TestWatchConfig_PollNeedsInterval(t *testing.T) {
	cfg := WatchConfig{Backend: "poll", Debounce: Duration(time.Second)}
	if err := cfg.Validate(); err == nil {
		t.Fatal("poll backend without interval should fail")
	}
	cfg.PollInterval = Duration(500 * time.Millisecond)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("poll backend with interval should pass: %v", err)
	}
}

func TestNotesConfig_Extension(t *testing.T) {
	cfg := NotesConfig{Dir: "notes", Extension: "markdown"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("extension without dot should fail")
	}
}

func TestNotesConfig_Timezone(t *testing.T) {
	cfg := NotesConfig{Dir: "notes", Extension: ".md", Timezone: "Not/AZone"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown timezone should fail")
	}

	cfg.Timezone = ""
	if cfg.Location() != time.UTC {
		t.Error("empty timezone should be UTC")
	}
}

func TestLoad_YAMLWithEnv(t *testing.T) {
	t.Setenv("NOTELIVE_TEST_DIR", "/srv/notes")
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
app:
  log_level: debug
  build_id: v42
  http:
    port: 9090
    write_timeout: 2m
notes:
  dir: ${NOTELIVE_TEST_DIR}
  extension: .md
  require_date: true
watch:
  backend: poll
  debounce: 250ms
  poll_interval: 2s
longpoll:
  timeout: 90s
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Notes.Dir != "/srv/notes" || cfg.Notes.Extension != ".md" || !cfg.Notes.RequireDate {
		t.Errorf("notes = %+v", cfg.Notes)
	}
	if cfg.App.BuildID != "v42" || cfg.App.HTTP.Port != 9090 {
		t.Errorf("app = %+v", cfg.App)
	}
	if cfg.Watch.Debounce.Std() != 250*time.Millisecond || cfg.LongPoll.Timeout.Std() != 90*time.Second {
		t.Errorf("durations = %s, %s", cfg.Watch.Debounce, cfg.LongPoll.Timeout)
	}
	// Unset keys keep their defaults.
	if cfg.SQLite.Path != "./notelive.db" {
		t.Errorf("sqlite path = %q", cfg.SQLite.Path)
	}
}

func TestLoad_BadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("longpoll:\n  timeout: soon\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := pkgconfig.Load(path, NewDefaultConfig()); err == nil {
		t.Fatal("bad duration should fail")
	}
}
