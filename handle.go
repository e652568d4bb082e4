package certsync

import (
	"context"
	"sync"
	"time"
)

// Status is the lifecycle position of a handle's request.
type Status uint8

const (
	StatusRequested Status = iota + 1
	StatusFulfilled
	StatusRejected
)

func (s Status) String() string {
	switch s {
	case StatusRequested:
		return "requested"
	case StatusFulfilled:
		return "fulfilled"
	case StatusRejected:
		return "rejected"
	default:
		return "idle"
	}
}

// Handle is a caller's view of an initiated operation. Handles created for
// the same in-flight key share one request and observe the same outcome.
// By the time a handle resolves, the outcome's effect on the Store has been
// committed.
type Handle[R any] struct {
	e    *engine
	rec  *record
	once sync.Once
}

func newHandle[R any](e *engine, rec *record) *Handle[R] {
	return &Handle[R]{e: e, rec: rec}
}

// Key returns the request key the handle is attached to.
func (h *Handle[R]) Key() RequestKey { return h.rec.key }

// Done is closed once the request settles.
func (h *Handle[R]) Done() <-chan struct{} { return h.rec.done }

func (h *Handle[R]) settled() bool {
	select {
	case <-h.rec.done:
		return true
	default:
		return false
	}
}

func (h *Handle[R]) Status() Status {
	if !h.settled() {
		return StatusRequested
	}
	if h.rec.err != nil {
		return StatusRejected
	}
	return StatusFulfilled
}

// Peek returns the payload without blocking; ok is false until the request
// has been fulfilled.
func (h *Handle[R]) Peek() (v R, ok bool) {
	if !h.settled() || h.rec.err != nil {
		return v, false
	}
	v, _ = h.rec.payload.(R)
	return v, true
}

// Err returns the rejection error, or nil while pending or once fulfilled.
func (h *Handle[R]) Err() error {
	if !h.settled() {
		return nil
	}
	return h.rec.err
}

// FulfilledAt is when the payload was received, or when the cached result
// it was served from was received. Zero unless fulfilled.
func (h *Handle[R]) FulfilledAt() time.Time {
	if !h.settled() || h.rec.err != nil {
		return time.Time{}
	}
	return h.rec.fulfilledAt
}

// FromCache reports whether the payload came from the result cache.
func (h *Handle[R]) FromCache() bool {
	return h.settled() && h.rec.fromCache
}

// Wait blocks until the request settles or ctx is done. A ctx error only
// stops waiting; the request keeps running.
func (h *Handle[R]) Wait(ctx context.Context) (R, error) {
	select {
	case <-h.rec.done:
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
	if h.rec.err != nil {
		var zero R
		return zero, h.rec.err
	}
	v, _ := h.rec.payload.(R)
	return v, nil
}

// Unsubscribe detaches the handle from its record. It never aborts the
// request: a record left without subscribers still settles and reconciles.
// Safe to call more than once.
func (h *Handle[R]) Unsubscribe() {
	h.once.Do(func() { h.e.unsubscribe(h.rec) })
}
