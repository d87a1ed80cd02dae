package notestore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/radovskyb/watcher"
)

// Watch backends.
const (
	BackendFSNotify = "fsnotify"
	BackendPoll     = "poll"
)

// ErrSubscriptionLost reports that change notifications can no longer be
// delivered for the note directory.
var ErrSubscriptionLost = errors.New("watcher: subscription lost")

// Change is a single filesystem notification.
type Change struct {
	Path string
	Op   string
}

// eventSource delivers raw change notifications for a directory tree.
// Errors wrapping ErrSubscriptionLost are fatal; any other error is a hint
// that events may have been dropped.
type eventSource interface {
	Events() <-chan Change
	Errors() <-chan error
	Close() error
}

func newEventSource(cfg WatchConfig) (eventSource, error) {
	switch cfg.Backend {
	case "", BackendFSNotify:
		return newFSNotifySource(cfg.Root)
	case BackendPoll:
		return newPollSource(cfg.Root, cfg.PollInterval)
	default:
		return nil, fmt.Errorf("watcher: unknown backend %q", cfg.Backend)
	}
}

// fsnotifySource watches every directory under root with fsnotify and adds
// directories created at runtime.
type fsnotifySource struct {
	w      *fsnotify.Watcher
	root   string
	events chan Change
	errs   chan error
	done   chan struct{}
}

func newFSNotifySource(root string) (*fsnotifySource, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watcher: %w", err)
	}
	if err := addDirsRecursive(w, root); err != nil {
		w.Close()
		return nil, fmt.Errorf("watcher: add %s: %w", root, err)
	}
	s := &fsnotifySource{
		w:      w,
		root:   filepath.Clean(root),
		events: make(chan Change),
		errs:   make(chan error),
		done:   make(chan struct{}),
	}
	go s.run()
	return s, nil
}

func (s *fsnotifySource) Events() <-chan Change { return s.events }
func (s *fsnotifySource) Errors() <-chan error  { return s.errs }

func (s *fsnotifySource) Close() error {
	close(s.done)
	return s.w.Close()
}

func (s *fsnotifySource) run() {
	for {
		select {
		case <-s.done:
			return

		case ev, ok := <-s.w.Events:
			if !ok {
				s.report(fmt.Errorf("%w: event stream closed", ErrSubscriptionLost))
				return
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}
			if filepath.Clean(ev.Name) == s.root && ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				s.report(fmt.Errorf("%w: %s was %s", ErrSubscriptionLost, s.root, ev.Op))
				return
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := addDirsRecursive(s.w, ev.Name); err != nil {
						s.report(fmt.Errorf("watcher: add new dir %s: %w", ev.Name, err))
					}
				}
			}
			s.emit(Change{Path: ev.Name, Op: ev.Op.String()})

		case err, ok := <-s.w.Errors:
			if !ok {
				s.report(fmt.Errorf("%w: error stream closed", ErrSubscriptionLost))
				return
			}
			s.report(err)
		}
	}
}

func (s *fsnotifySource) emit(c Change) {
	select {
	case s.events <- c:
	case <-s.done:
	}
}

func (s *fsnotifySource) report(err error) {
	select {
	case s.errs <- err:
	case <-s.done:
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}

// pollSource stats the tree every interval with radovskyb/watcher. It works
// on filesystems that do not deliver inotify events, such as network mounts.
//
// The poller blocks on sending to w.Event and w.Error, and w.Close blocks
// until the poller takes the close request, so run keeps draining all three
// channels until w.Closed fires, even after Close has been called.
type pollSource struct {
	w        *watcher.Watcher
	root     string
	events   chan Change
	errs     chan error
	stop     chan struct{}
	stopOnce sync.Once
	finished chan struct{}
}

func newPollSource(root string, interval time.Duration) (*pollSource, error) {
	if interval < time.Millisecond {
		return nil, fmt.Errorf("watcher: poll interval %s is too short", interval)
	}
	w := watcher.New()
	// One event per cycle is enough: any change triggers a full rescan.
	w.SetMaxEvents(1)
	w.FilterOps(watcher.Create, watcher.Write, watcher.Remove, watcher.Rename, watcher.Move)
	if err := w.AddRecursive(root); err != nil {
		return nil, fmt.Errorf("watcher: add %s: %w", root, err)
	}

	s := &pollSource{
		w:        w,
		root:     filepath.Clean(root),
		events:   make(chan Change),
		errs:     make(chan error),
		stop:     make(chan struct{}),
		finished: make(chan struct{}),
	}

	go func() {
		if err := w.Start(interval); err != nil {
			s.report(fmt.Errorf("%w: start poller: %v", ErrSubscriptionLost, err))
		}
	}()
	w.Wait()
	go s.run()
	return s, nil
}

func (s *pollSource) Events() <-chan Change { return s.events }
func (s *pollSource) Errors() <-chan error  { return s.errs }

// Close stops the poller and waits until it has exited.
func (s *pollSource) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.finished
	return nil
}

func (s *pollSource) run() {
	defer close(s.finished)

	stop := s.stop
	closing := false
	for {
		select {
		case <-stop:
			// w.Close waits for the poller, which may itself be waiting on us.
			closing = true
			stop = nil
			go s.w.Close()

		case ev := <-s.w.Event:
			if !closing {
				s.emit(Change{Path: ev.Path, Op: ev.Op.String()})
			}

		case err := <-s.w.Error:
			if closing {
				continue
			}
			if errors.Is(err, watcher.ErrWatchedFileDeleted) {
				if _, statErr := os.Stat(s.root); statErr != nil {
					err = fmt.Errorf("%w: %s: %v", ErrSubscriptionLost, s.root, statErr)
				}
			}
			s.report(err)

		case <-s.w.Closed:
			if !closing {
				s.report(fmt.Errorf("%w: poller closed", ErrSubscriptionLost))
			}
			return
		}
	}
}

func (s *pollSource) emit(c Change) {
	select {
	case s.events <- c:
	case <-s.stop:
	}
}

func (s *pollSource) report(err error) {
	select {
	case s.errs <- err:
	case <-s.stop:
	}
}
