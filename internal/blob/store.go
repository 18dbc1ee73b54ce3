// Package blob owns the binary image resources a session produces:
// a process-wide handle store and a per-session tracker that guarantees
// nothing leaks past the session's lifetime.
package blob

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is a stored binary resource.
type Entry struct {
	Data        []byte
	ContentType string
	CreatedAt   time.Time
}

// Store maps opaque handles to binary image data. Handles stay
// dereferenceable until revoked.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewStore() *Store {
	return &Store{entries: make(map[string]Entry)}
}

// Put stores data under a fresh handle and returns the handle.
func (s *Store) Put(data []byte, contentType string) string {
	handle := uuid.NewString()
	s.mu.Lock()
	s.entries[handle] = Entry{Data: data, ContentType: contentType, CreatedAt: time.Now()}
	s.mu.Unlock()
	return handle
}

// Get dereferences a handle.
func (s *Store) Get(handle string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[handle]
	return e, ok
}

// Revoke removes a handle. Revoking an unknown handle is a no-op.
func (s *Store) Revoke(handle string) {
	s.mu.Lock()
	delete(s.entries, handle)
	s.mu.Unlock()
}

// Len reports how many handles are currently live.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
