// Package session arbitrates the single active crop session: who holds the
// pending promise, which resources it produced, and how it ends.
package session

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"recrop/internal/blob"
	"recrop/internal/config"
)

var (
	// ErrCancelled rejects a session the user dismissed.
	ErrCancelled = errors.New("crop cancelled")
	// ErrSuperseded rejects a session that a newer request preempted.
	ErrSuperseded = errors.New("crop superseded by a newer request")
)

// Snapshot is the read-only view of the open session handed to the UI.
type Snapshot struct {
	Token    string
	ImageURL string
	Options  config.Options
}

type active struct {
	token    string
	imageURL string
	opts     config.Options
	deferred *Deferred
	tracker  *blob.Tracker

	// Source bytes fetched once, reused by the confirm pipeline.
	srcData []byte
	srcType string
}

// Store is the process-wide session state machine. At most one session is
// open at a time; a second Open supersedes the first, never queues behind
// it. Every transition is token-guarded so late async completions of a
// closed session fall through as no-ops.
type Store struct {
	mu    sync.Mutex
	blobs *blob.Store
	cur   *active
}

func NewStore(blobs *blob.Store) *Store {
	return &Store{blobs: blobs}
}

// Open starts a new session and returns its deferred result and identity
// token. If a session is already open it is rejected with ErrSuperseded
// and its resources are released before the new session exists, so the
// old promise can never settle after the new one.
func (s *Store) Open(imageURL string, opts config.Options) (*Deferred, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur != nil {
		log.Debug().Str("image", s.cur.imageURL).Msg("superseding open session")
		s.cur.deferred.reject(ErrSuperseded)
		s.cur.tracker.ReleaseAll()
		s.cur = nil
	}

	s.cur = &active{
		token:    uuid.NewString(),
		imageURL: imageURL,
		opts:     opts,
		deferred: newDeferred(),
		tracker:  blob.NewTracker(s.blobs),
	}
	return s.cur.deferred, s.cur.token
}

// Save fulfills the open session with the produced handle and metadata.
// The handle is excluded from the release set: its ownership transfers to
// the caller. Returns false, without side effects, if token does not name
// the open session (duplicate save, superseded confirm).
func (s *Store) Save(token string, handle string, meta Metadata) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur == nil || s.cur.token != token {
		return false
	}

	cur := s.cur
	s.cur = nil
	cur.tracker.Exclude(handle)
	cur.deferred.fulfill(&Result{Handle: handle, ImageURL: cur.imageURL, Metadata: meta})
	cur.tracker.ReleaseAll()
	return true
}

// Cancel rejects the open session and releases everything it produced,
// including any partially produced handle. A nil reason means the user
// dismissed the dialog. Returns false if token does not name the open
// session; duplicate cancels are silent no-ops.
func (s *Store) Cancel(token string, reason error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur == nil || s.cur.token != token {
		return false
	}
	s.close(reason)
	return true
}

// CancelCurrent cancels whatever session is open, token-less. Used on
// surface shutdown so no pending promise is orphaned.
func (s *Store) CancelCurrent(reason error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur == nil {
		return false
	}
	s.close(reason)
	return true
}

// close rejects and releases the current session. Caller holds s.mu.
func (s *Store) close(reason error) {
	if reason == nil {
		reason = ErrCancelled
	}
	cur := s.cur
	s.cur = nil
	cur.deferred.reject(reason)
	cur.tracker.ReleaseAll()
}

// Current returns a snapshot of the open session, if any.
func (s *Store) Current() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur == nil {
		return Snapshot{}, false
	}
	return Snapshot{Token: s.cur.token, ImageURL: s.cur.imageURL, Options: s.cur.opts}, true
}

// Tracker returns the open session's resource tracker if token matches.
func (s *Store) Tracker(token string) (*blob.Tracker, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur == nil || s.cur.token != token {
		return nil, false
	}
	return s.cur.tracker, true
}

// SetSource caches the fetched source image bytes on the open session.
func (s *Store) SetSource(token string, data []byte, contentType string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur == nil || s.cur.token != token {
		return false
	}
	s.cur.srcData = data
	s.cur.srcType = contentType
	return true
}

// Source returns the cached source bytes, if any.
func (s *Store) Source(token string) (data []byte, contentType string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur == nil || s.cur.token != token || s.cur.srcData == nil {
		return nil, "", false
	}
	return s.cur.srcData, s.cur.srcType, true
}
