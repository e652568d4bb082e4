package certsync

import (
	"encoding/json"
	"sync"
)

// Snapshot is an immutable point-in-time view of the cached certificate
// state. Treat every field as read-only; Clone returns a private copy.
type Snapshot struct {
	// List holds the last successful fetchAllCertificates result, replaced
	// wholesale on every success.
	List []Certificate
	// Current is the most recently fetched or mutated single certificate.
	Current *Certificate
	// CurrentMintingStatus is true iff Current.Minting.Tx was present when
	// Current was last written.
	CurrentMintingStatus bool
	// MintingTxData is the opaque transaction payload of the last mint.
	MintingTxData json.RawMessage
	// Version counts commits; 0 is the empty initial state.
	Version uint64
}

func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		List:                 cloneList(s.List),
		CurrentMintingStatus: s.CurrentMintingStatus,
		MintingTxData:        cloneRaw(s.MintingTxData),
		Version:              s.Version,
	}
	if s.Current != nil {
		c := s.Current.Clone()
		out.Current = &c
	}
	return out
}

// withCurrent is the only way reconciliation writes Current; it keeps
// CurrentMintingStatus in step within the same commit.
func (s Snapshot) withCurrent(c *Certificate) Snapshot {
	s.Current = c
	s.CurrentMintingStatus = c.HasMintingTx()
	return s
}

// Store holds the current Snapshot and fans commits out to subscribers.
// Only the engine writes to it, through reconciliation.
type Store struct {
	mu   sync.RWMutex
	snap Snapshot

	// notifyMu is taken before mu is released on commit so subscribers see
	// snapshots in commit order. Lock order: mu, then notifyMu.
	notifyMu sync.Mutex
	notified Snapshot
	subs     map[uint64]func(Snapshot)
	nextSub  uint64
}

func newStore() *Store {
	return &Store{subs: make(map[uint64]func(Snapshot))}
}

// Snapshot returns the latest committed state. Consecutive snapshots share
// whatever a commit left unchanged (the Current pointer, the List backing
// array), so the value must be treated as read-only; use Snapshot.Clone for
// a copy that can be modified.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Subscribe calls fn with the current snapshot, then with every commit.
// Delivered snapshots are shared like those from Snapshot; fn must Clone
// before modifying or retaining mutable parts.
// fn runs synchronously on the committing goroutine; it must neither
// initiate operations on the same client nor unsubscribe from within the
// callback. The returned func unsubscribes.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	fn(s.notified)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.notifyMu.Lock()
			delete(s.subs, id)
			s.notifyMu.Unlock()
		})
	}
}

// apply computes the next snapshot from the current one and commits it
// atomically. fn must not mutate its argument. When fn returns a non-nil
// error other than *ReconciliationSkipped nothing is committed.
func (s *Store) apply(fn func(prior Snapshot) (Snapshot, error)) (Snapshot, error) {
	s.mu.Lock()
	prior := s.snap
	next, err := fn(prior)
	if err != nil && !isSkipped(err) {
		s.mu.Unlock()
		return prior, err
	}
	next.Version = s.snap.Version + 1
	s.snap = next

	s.notifyMu.Lock()
	s.mu.Unlock()
	s.notified = next
	for _, sub := range s.subs {
		sub(next)
	}
	s.notifyMu.Unlock()
	return next, err
}
