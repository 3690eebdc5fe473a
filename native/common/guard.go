package common

import (
	"sync"
	"sync/atomic"

	"yieldpool/crypto"
)

// ReentrancyGuard rejects nested entry into the component instance it
// protects. Callbacks run on the caller's goroutine, so a flag is enough.
type ReentrancyGuard struct {
	entered atomic.Bool
}

// Enter marks the guard as held. The returned release func must be deferred
// so the flag is cleared on every exit path.
func (g *ReentrancyGuard) Enter() (func(), error) {
	if !g.entered.CompareAndSwap(false, true) {
		return nil, ErrReentrantCall
	}
	return func() { g.entered.Store(false) }, nil
}

// Held reports whether an operation is currently executing.
func (g *ReentrancyGuard) Held() bool { return g.entered.Load() }

// GuardSet hands out one guard per component instance for modules that run
// many instances (kernels, accounts).
type GuardSet struct {
	mu     sync.Mutex
	guards map[crypto.Address]*ReentrancyGuard
}

// For returns the guard of the instance at addr, creating it on first use.
func (s *GuardSet) For(addr crypto.Address) *ReentrancyGuard {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.guards == nil {
		s.guards = make(map[crypto.Address]*ReentrancyGuard)
	}
	g, ok := s.guards[addr]
	if !ok {
		g = new(ReentrancyGuard)
		s.guards[addr] = g
	}
	return g
}
