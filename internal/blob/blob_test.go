package blob

import "testing"

func TestStore_PutGetRevoke(t *testing.T) {
	s := NewStore()

	h := s.Put([]byte("pixels"), "image/png")
	if h == "" {
		t.Fatal("Put returned empty handle")
	}

	e, ok := s.Get(h)
	if !ok {
		t.Fatal("handle not dereferenceable after Put")
	}
	if string(e.Data) != "pixels" || e.ContentType != "image/png" {
		t.Errorf("entry mismatch: %+v", e)
	}

	s.Revoke(h)
	if _, ok := s.Get(h); ok {
		t.Error("handle still dereferenceable after Revoke")
	}

	// Revoking again must not panic or error.
	s.Revoke(h)
	s.Revoke("no-such-handle")
}

func TestTracker_ReleaseAll(t *testing.T) {
	s := NewStore()
	tr := NewTracker(s)

	h1 := tr.Put([]byte("a"), "image/png")
	h2 := tr.Put([]byte("b"), "image/png")
	if s.Len() != 2 || tr.Len() != 2 {
		t.Fatalf("expected 2 tracked handles, store=%d tracker=%d", s.Len(), tr.Len())
	}

	tr.ReleaseAll()
	if s.Len() != 0 || tr.Len() != 0 {
		t.Errorf("expected empty after release, store=%d tracker=%d", s.Len(), tr.Len())
	}
	for _, h := range []string{h1, h2} {
		if _, ok := s.Get(h); ok {
			t.Errorf("handle %s still live after ReleaseAll", h)
		}
	}

	// Idempotent: a second release on the now-empty set is fine.
	tr.ReleaseAll()
	if tr.Len() != 0 {
		t.Error("tracker not empty after second ReleaseAll")
	}
}

func TestTracker_ExcludeSurvivesRelease(t *testing.T) {
	s := NewStore()
	tr := NewTracker(s)

	kept := tr.Put([]byte("saved"), "image/jpeg")
	dropped := tr.Put([]byte("stale"), "image/jpeg")

	tr.Exclude(kept)
	tr.ReleaseAll()

	if _, ok := s.Get(kept); !ok {
		t.Error("excluded handle was revoked")
	}
	if _, ok := s.Get(dropped); ok {
		t.Error("tracked handle survived ReleaseAll")
	}
}

func TestTracker_TerminalRevokesLateHandles(t *testing.T) {
	s := NewStore()
	tr := NewTracker(s)
	tr.ReleaseAll()

	// An encode that finishes after the session moved on must not leak.
	late := tr.Put([]byte("late"), "image/png")
	if _, ok := s.Get(late); ok {
		t.Error("late Put on terminal tracker left a live handle")
	}

	outside := s.Put([]byte("outside"), "image/png")
	tr.Track(outside)
	if _, ok := s.Get(outside); ok {
		t.Error("late Track on terminal tracker left a live handle")
	}
}
