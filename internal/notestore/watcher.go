package notestore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/starford/notelive/internal/models"
)

// DefaultDebounce is the quiet window used to coalesce bursts of events.
const DefaultDebounce = time.Second

// Publisher receives freshly scanned snapshots.
type Publisher interface {
	Publish(snap *models.Snapshot) uint64
}

// WatchConfig configures Watch.
type WatchConfig struct {
	Root         string        // note directory, watched recursively
	Backend      string        // BackendFSNotify (default) or BackendPoll
	Debounce     time.Duration // defaults to DefaultDebounce
	PollInterval time.Duration // poll backend only
}

// Watch subscribes to changes under cfg.Root and, for each burst of events,
// rescans and publishes the result. A failed rescan is logged and the previous
// snapshot stays published.
//
// Watch blocks until ctx is cancelled, returning nil, or until the
// subscription is lost, returning an error wrapping ErrSubscriptionLost.
func Watch(ctx context.Context, pub Publisher, cfg WatchConfig, scan ScanFunc, logger *slog.Logger) error {
	src, err := newEventSource(cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	logger.Info("watcher: started",
		slog.String("root", cfg.Root),
		slog.String("backend", backendName(cfg.Backend)),
		slog.Duration("debounce", debounce))

	// The first event of a burst arms the timer; later events in the same
	// window ride along. At most one rescan runs per window.
	var rescanTimer *time.Timer
	var rescanCh <-chan time.Time

	scheduleRescan := func() {
		if rescanCh != nil {
			return
		}
		if rescanTimer == nil {
			rescanTimer = time.NewTimer(debounce)
		} else {
			rescanTimer.Reset(debounce)
		}
		rescanCh = rescanTimer.C
	}

	for {
		select {
		case <-ctx.Done():
			if rescanTimer != nil {
				rescanTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-rescanCh:
			rescanCh = nil
			rescan(ctx, pub, scan, logger)

		case ev, ok := <-src.Events():
			if !ok {
				return ErrSubscriptionLost
			}
			logger.Debug("watcher: event", slog.String("path", ev.Path), slog.String("op", ev.Op))
			scheduleRescan()

		case watchErr, ok := <-src.Errors():
			if !ok {
				return ErrSubscriptionLost
			}
			if errors.Is(watchErr, ErrSubscriptionLost) {
				logger.Error("watcher: subscription lost", slog.String("error", watchErr.Error()))
				return watchErr
			}
			// Events may have been dropped; a rescan brings the store back in line.
			logger.Warn("watcher: error", slog.String("error", watchErr.Error()))
			scheduleRescan()
		}
	}
}

func rescan(ctx context.Context, pub Publisher, scan ScanFunc, logger *slog.Logger) {
	start := time.Now()
	snap, err := scan(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Error("watcher: rescan failed, keeping previous snapshot", slog.String("error", err.Error()))
		return
	}
	version := pub.Publish(snap)
	logger.Info("watcher: published",
		slog.Uint64("version", version),
		slog.Int("notes", snap.Len()),
		slog.Duration("took", time.Since(start)))
}

func backendName(b string) string {
	if b == "" {
		return BackendFSNotify
	}
	return b
}
