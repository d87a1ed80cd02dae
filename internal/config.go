package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/starford/notelive/internal/notestore"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Notes    NotesConfig       `yaml:"notes"`
	Watch    WatchConfig       `yaml:"watch"`
	LongPoll LongPollConfig    `yaml:"longpoll"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Notes.Validate(); err != nil {
		return err
	}
	if err := c.Watch.Validate(); err != nil {
		return err
	}
	if err := c.LongPoll.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	// A held request must finish before the server gives up writing it.
	if c.LongPoll.Timeout.Std() >= c.App.HTTP.WriteTimeout.Std() {
		return fmt.Errorf("longpoll: timeout %s must be shorter than app.http.write_timeout %s",
			c.LongPoll.Timeout, c.App.HTTP.WriteTimeout)
	}
	return nil
}

// Duration is a time.Duration read from YAML strings such as "55s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	// BuildID overrides the build identifier embedded in version tokens.
	BuildID string     `yaml:"build_id"`
	HTTP    HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port         int      `yaml:"port"`
	WriteTimeout Duration `yaml:"write_timeout"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.WriteTimeout, validation.Required, validation.Min(Duration(time.Second))),
	)
}

// NotesConfig describes the note directory.
type NotesConfig struct {
	Dir         string `yaml:"dir"`
	Extension   string `yaml:"extension"`
	RequireDate bool   `yaml:"require_date"`
	// Timezone is an IANA name used for note dates; empty means UTC.
	Timezone string `yaml:"timezone"`
}

// Validate validates the notes configuration.
func (c *NotesConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
		validation.Field(&c.Extension, validation.Required, validation.By(func(v any) error {
			if s, _ := v.(string); len(s) < 2 || s[0] != '.' {
				return errors.New("must start with a dot")
			}
			return nil
		})),
		validation.Field(&c.Timezone, validation.By(func(v any) error {
			_, err := loadLocation(v.(string))
			return err
		})),
	)
}

// Location returns the time zone note dates are interpreted in.
func (c *NotesConfig) Location() *time.Location {
	loc, err := loadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}

// WatchConfig configures change detection.
type WatchConfig struct {
	Backend      string   `yaml:"backend"`
	Debounce     Duration `yaml:"debounce"`
	PollInterval Duration `yaml:"poll_interval"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required,
			validation.In(notestore.BackendFSNotify, notestore.BackendPoll)),
		validation.Field(&c.Debounce, validation.Required, validation.Min(Duration(time.Millisecond))),
		validation.Field(&c.PollInterval,
			validation.When(c.Backend == notestore.BackendPoll, validation.Required, validation.Min(Duration(time.Millisecond)))),
	)
}

// LongPollConfig bounds how long a version request is held open.
type LongPollConfig struct {
	Timeout Duration `yaml:"timeout"`
}

// Validate validates the long-poll configuration.
func (c *LongPollConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Timeout, validation.Required, validation.Min(Duration(time.Second))),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port:         8080,
				WriteTimeout: Duration(60 * time.Second),
			},
		},
		Notes: NotesConfig{
			Dir:       "./notes",
			Extension: notestore.DefaultExtension,
		},
		Watch: WatchConfig{
			Backend:      notestore.BackendFSNotify,
			Debounce:     Duration(notestore.DefaultDebounce),
			PollInterval: Duration(time.Second),
		},
		LongPoll: LongPollConfig{
			Timeout: Duration(55 * time.Second),
		},
		SQLite: SQLiteConfig{
			Path: "./notelive.db",
		},
	}
}
