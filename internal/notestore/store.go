// Package notestore holds the live, versioned view of the note directory:
// the scanner that builds snapshots, the Store that publishes them, and the
// watcher that rescans on filesystem changes.
package notestore

import (
	"context"
	"sync"
	"time"

	"github.com/starford/notelive/internal/models"
)

// Store owns the current snapshot and its version.
//
// Concurrency model: snapshot, version and changed are guarded by mu and are
// always read and written together. Publish closes changed and installs a
// fresh channel, which wakes every goroutine that captured the old one. Waiters
// never hold mu while blocked.
type Store struct {
	mu       sync.RWMutex
	snapshot *models.Snapshot
	version  uint64
	changed  chan struct{}
}

// NewStore creates a store holding the initial snapshot at version 0.
func NewStore(initial *models.Snapshot) *Store {
	if initial == nil {
		initial = &models.Snapshot{}
	}
	return &Store{
		snapshot: initial,
		changed:  make(chan struct{}),
	}
}

// Current returns the latest snapshot together with its version.
func (s *Store) Current() (*models.Snapshot, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot, s.version
}

// Version returns the latest version.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Publish installs snap as the current snapshot, bumps the version by one and
// wakes all waiters. The snapshot must not be modified afterwards.
func (s *Store) Publish(snap *models.Snapshot) uint64 {
	if snap == nil {
		snap = &models.Snapshot{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snap
	s.version++
	close(s.changed)
	s.changed = make(chan struct{})
	return s.version
}

// WaitForChange returns as soon as the version differs from known, or after
// timeout, or when ctx is done, whichever comes first. It always returns the
// version current at return time; an unchanged value means the wait timed out.
func (s *Store) WaitForChange(ctx context.Context, known uint64, timeout time.Duration) uint64 {
	_, v := s.Wait(ctx, known, timeout)
	return v
}

// Wait is WaitForChange that also returns the snapshot paired with the
// returned version.
func (s *Store) Wait(ctx context.Context, known uint64, timeout time.Duration) (*models.Snapshot, uint64) {
	s.mu.RLock()
	snap, v, changed := s.snapshot, s.version, s.changed
	s.mu.RUnlock()
	if v != known || timeout <= 0 {
		return snap, v
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-changed:
	case <-timer.C:
	case <-ctx.Done():
	}
	return s.Current()
}
