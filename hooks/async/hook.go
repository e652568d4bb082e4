// Package asynchook moves hook delivery off the request path.
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{SelfHealEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker, 1000 queued events
//	defer hooks.Close()
//
//	client, _ := certsync.New(certsync.Options{Executor: exec, Hooks: hooks})
//
// Events are dropped when the queue is full; Dropped reports how many.
package asynchook

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/certsync"
)

type Hooks struct {
	inner   certsync.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex // guards closed against sends on a closed q
	closed  bool
	dropped atomic.Uint64
}

var _ certsync.Hooks = (*Hooks)(nil)

func New(inner certsync.Hooks, workers, qlen int) *Hooks {
	if inner == nil {
		inner = certsync.NopHooks{}
	}
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events after Close are
// dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) RequestStarted(op, key string) {
	h.try(func() { h.inner.RequestStarted(op, key) })
}

func (h *Hooks) RequestDeduplicated(op, key string, n int) {
	h.try(func() { h.inner.RequestDeduplicated(op, key, n) })
}

func (h *Hooks) RequestSettled(op, key string, took time.Duration, err error) {
	h.try(func() { h.inner.RequestSettled(op, key, took, err) })
}

func (h *Hooks) ReconciliationSkipped(op, key, reason string) {
	h.try(func() { h.inner.ReconciliationSkipped(op, key, reason) })
}

func (h *Hooks) OrphanedSettlement(op, key string) {
	h.try(func() { h.inner.OrphanedSettlement(op, key) })
}

func (h *Hooks) ResultCacheHit(op, key string) { h.try(func() { h.inner.ResultCacheHit(op, key) }) }
func (h *Hooks) ResultSelfHeal(k, r string)    { h.try(func() { h.inner.ResultSelfHeal(k, r) }) }
func (h *Hooks) ProviderSetRejected(k string)  { h.try(func() { h.inner.ProviderSetRejected(k) }) }
func (h *Hooks) GenBumpError(tag string, err error) {
	h.try(func() { h.inner.GenBumpError(tag, err) })
}
