package session

import (
	"context"
	"sync"

	"recrop/internal/geometry"
	"recrop/internal/raster"
)

// Metadata describes the exact crop that was applied, captured from the
// confirm payload. It is immutable once the session settles.
type Metadata struct {
	Viewport  geometry.Rect        `json:"viewport"`
	Natural   geometry.NaturalRect `json:"natural"`
	Transform raster.Transform     `json:"transform"`
}

// Result is what a fulfilled crop request resolves to. The handle's
// lifetime is the caller's responsibility from this point on.
type Result struct {
	Handle   string   `json:"handle"`
	ImageURL string   `json:"image_url"`
	Metadata Metadata `json:"metadata"`
}

// Deferred is a settle-once promise for one crop request. It is fulfilled
// on save and rejected on cancel, supersede or pipeline failure.
type Deferred struct {
	once   sync.Once
	done   chan struct{}
	result *Result
	err    error
}

func newDeferred() *Deferred {
	return &Deferred{done: make(chan struct{})}
}

func (d *Deferred) fulfill(r *Result) {
	d.once.Do(func() {
		d.result = r
		close(d.done)
	})
}

func (d *Deferred) reject(err error) {
	d.once.Do(func() {
		d.err = err
		close(d.done)
	})
}

// Done is closed once the deferred has settled.
func (d *Deferred) Done() <-chan struct{} {
	return d.done
}

// Await blocks until the deferred settles or ctx is done.
func (d *Deferred) Await(ctx context.Context) (*Result, error) {
	select {
	case <-d.done:
		return d.result, d.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Settled reports the outcome without blocking; ok is false while pending.
func (d *Deferred) Settled() (result *Result, err error, ok bool) {
	select {
	case <-d.done:
		return d.result, d.err, true
	default:
		return nil, nil, false
	}
}
