package blob

import "sync"

// Tracker records the handles one session creates so that closing the
// session, for any reason, revokes everything the session produced.
//
// A tracker becomes terminal after ReleaseAll: any handle tracked or
// stored afterwards is revoked immediately. That guards the race where an
// encode finishes after its session was cancelled or superseded.
type Tracker struct {
	mu       sync.Mutex
	store    *Store
	handles  map[string]struct{}
	released bool
}

func NewTracker(store *Store) *Tracker {
	return &Tracker{store: store, handles: make(map[string]struct{})}
}

// Put stores data and tracks the resulting handle in one step, so there is
// no window in which the handle is reachable but untracked.
func (t *Tracker) Put(data []byte, contentType string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	handle := t.store.Put(data, contentType)
	if t.released {
		t.store.Revoke(handle)
		return handle
	}
	t.handles[handle] = struct{}{}
	return handle
}

// Track adds an externally created handle to the release set.
func (t *Tracker) Track(handle string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released {
		t.store.Revoke(handle)
		return
	}
	t.handles[handle] = struct{}{}
}

// Exclude removes a handle from the release set without revoking it.
// Used when ownership of the saved handle transfers to the caller.
func (t *Tracker) Exclude(handle string) {
	t.mu.Lock()
	delete(t.handles, handle)
	t.mu.Unlock()
}

// ReleaseAll revokes every tracked handle and marks the tracker terminal.
// It is idempotent and safe on an empty set.
func (t *Tracker) ReleaseAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for handle := range t.handles {
		t.store.Revoke(handle)
	}
	t.handles = make(map[string]struct{})
	t.released = true
}

// Len reports how many handles are currently tracked.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.handles)
}
