package mission

import (
	"fmt"
	"sync"
	"time"

	"codegov/internal/types"
)

// ErrSnapshotNotFound is returned when a snapshot ref is unknown,
// typically because a completed rollback already destroyed it.
var ErrSnapshotNotFound = fmt.Errorf("snapshot not found")

// SnapshotStore holds pre-image snapshots keyed by ref. A snapshot
// lives exactly as long as its owning batch or apply: it is destroyed
// when a rollback completes or the mission is purged.
type SnapshotStore struct {
	mu    sync.Mutex
	snaps map[string]*types.Snapshot
}

// NewSnapshotStore creates an empty store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{snaps: make(map[string]*types.Snapshot)}
}

// Capture records a deep copy of the files under the given ref.
func (s *SnapshotStore) Capture(ref string, files map[string]string) *types.Snapshot {
	copied := make(map[string]string, len(files))
	for k, v := range files {
		copied[k] = v
	}
	snap := &types.Snapshot{Ref: ref, Files: copied, Timestamp: time.Now()}
	s.mu.Lock()
	s.snaps[ref] = snap
	s.mu.Unlock()
	return snap
}

// Restore returns a copy of the snapshot's files, byte for byte as
// captured. The snapshot stays alive; callers destroy it once the
// rollback has completed.
func (s *SnapshotStore) Restore(ref string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snaps[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, ref)
	}
	out := make(map[string]string, len(snap.Files))
	for k, v := range snap.Files {
		out[k] = v
	}
	return out, nil
}

// Destroy removes a snapshot.
func (s *SnapshotStore) Destroy(ref string) {
	s.mu.Lock()
	delete(s.snaps, ref)
	s.mu.Unlock()
}

// Len reports how many snapshots are alive.
func (s *SnapshotStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snaps)
}
