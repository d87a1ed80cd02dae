package notestore

import (
	"context"
	"time"

	"github.com/starford/notelive/internal/models"
)

const followPoll = time.Minute

// FollowFunc receives a snapshot and its version.
type FollowFunc func(snap *models.Snapshot, version uint64)

// Follow calls fn with the current snapshot, then again after every change,
// until ctx is cancelled. Versions published in quick succession may be
// skipped; fn always sees the latest one.
func Follow(ctx context.Context, s *Store, fn FollowFunc) {
	snap, v := s.Current()
	fn(snap, v)
	for {
		next, nv := s.Wait(ctx, v, followPoll)
		if ctx.Err() != nil {
			return
		}
		if nv == v {
			continue
		}
		fn(next, nv)
		v = nv
	}
}
