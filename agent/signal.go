package agent

import (
	"context"
	"sync"
)

// Signal is a settable/clearable cancellation flag with an edge-triggered
// wait. The engine checks it at round boundaries; an in-flight provider
// call is never aborted by it. Only one pending waiter is supported at a
// time, which matches the engine being the sole consumer per run.
type Signal struct {
	mu     sync.Mutex
	set    bool
	waiter chan struct{}
}

// NewSignal returns a cleared signal.
func NewSignal() *Signal {
	return &Signal{}
}

// Set marks the signal.
func (s *Signal) Set() {
	s.mu.Lock()
	s.set = true
	s.mu.Unlock()
}

// Clear unmarks the signal and wakes a pending waiter, if any.
func (s *Signal) Clear() {
	s.mu.Lock()
	s.set = false
	if s.waiter != nil {
		close(s.waiter)
		s.waiter = nil
	}
	s.mu.Unlock()
}

// IsSet reports the current state.
func (s *Signal) IsSet() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set
}

// WaitUntilCleared returns immediately if the signal is clear, otherwise
// blocks until the next Clear or context cancellation.
func (s *Signal) WaitUntilCleared(ctx context.Context) error {
	s.mu.Lock()
	if !s.set {
		s.mu.Unlock()
		return nil
	}
	if s.waiter == nil {
		s.waiter = make(chan struct{})
	}
	ch := s.waiter
	s.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
