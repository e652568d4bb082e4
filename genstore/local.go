package genstore

import (
	"context"
	"sync"
	"time"
)

type localEntry struct {
	gen      uint64
	bumpedAt time.Time
}

// Local keeps tag generations in process memory.
// A forgotten tag reads as 0 again, so retention must exceed the lifetime of
// any stored result or an entry written before the first bump becomes fresh.
type Local struct {
	mu   sync.RWMutex
	gens map[string]localEntry

	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

var _ GenStore = (*Local)(nil)

// NewLocal starts a sweeper when both cleanupInterval and retention are > 0.
func NewLocal(cleanupInterval, retention time.Duration) *Local {
	s := &Local{gens: make(map[string]localEntry)}
	if cleanupInterval > 0 && retention > 0 {
		s.ticker = time.NewTicker(cleanupInterval)
		s.stopCh = make(chan struct{})
		s.wg.Add(1)
		go s.sweep(retention)
	}
	return s
}

func (s *Local) sweep(retention time.Duration) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ticker.C:
			s.Cleanup(retention)
		case <-s.stopCh:
			return
		}
	}
}

func (s *Local) Snapshot(_ context.Context, tag string) (uint64, error) {
	s.mu.RLock()
	e := s.gens[tag]
	s.mu.RUnlock()
	return e.gen, nil
}

func (s *Local) Bump(_ context.Context, tag string) (uint64, error) {
	now := time.Now()
	s.mu.Lock()
	e := s.gens[tag]
	e.gen++
	e.bumpedAt = now
	s.gens[tag] = e
	s.mu.Unlock()
	return e.gen, nil
}

func (s *Local) Cleanup(retention time.Duration) {
	if retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-retention)
	s.mu.Lock()
	for tag, e := range s.gens {
		if e.bumpedAt.Before(cutoff) {
			delete(s.gens, tag)
		}
	}
	s.mu.Unlock()
}

func (s *Local) Close(context.Context) error {
	s.once.Do(func() {
		if s.stopCh != nil {
			s.ticker.Stop()
			close(s.stopCh)
			s.wg.Wait()
		}
	})
	return nil
}
