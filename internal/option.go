package internal

import (
	"fmt"
	"log/slog"
	"time"
)

// BuildID identifies the build and prefixes version tokens. Set it with
// -ldflags "-X github.com/starford/notelive/internal.BuildID=...".
var BuildID string

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	buildID string
	logger  *slog.Logger
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithBuildID overrides the build identifier.
func WithBuildID(id string) Option {
	return func(a *application) {
		a.buildID = id
	}
}

// WithLogger replaces the JSON stdout logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *application) {
		a.logger = l
	}
}

// resolveBuildID picks the first non-empty of the option, the config and
// the link-time BuildID, falling back to start as <unix seconds><nanos>.
func resolveBuildID(opt, cfg string, start time.Time) string {
	for _, id := range []string{opt, cfg, BuildID} {
		if id != "" {
			return id
		}
	}
	return fmt.Sprintf("%d%09d", start.Unix(), start.Nanosecond())
}
