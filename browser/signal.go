package browser

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"sync"
)

// Signal is the external "challenge solved" notification. Resolve only
// releases a waiter that is already blocked in Await; a Resolve with nobody
// waiting is dropped so a stale keypress cannot skip a later challenge.
type Signal struct {
	mu      sync.Mutex
	waiting chan struct{}
}

// NewSignal returns an idle Signal.
func NewSignal() *Signal {
	return &Signal{}
}

// Await blocks until Resolve is called or ctx ends.
func (s *Signal) Await(ctx context.Context) error {
	ch := make(chan struct{})
	s.mu.Lock()
	s.waiting = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.waiting == ch {
			s.waiting = nil
		}
		s.mu.Unlock()
	}()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Resolve releases the current waiter. It reports whether one was waiting.
func (s *Signal) Resolve() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.waiting == nil {
		return false
	}
	close(s.waiting)
	s.waiting = nil
	return true
}

// Pending reports whether a waiter is blocked in Await.
func (s *Signal) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waiting != nil
}

// ResolveOnInput resolves sig for every line read from r, until r is exhausted.
func ResolveOnInput(r io.Reader, sig *Signal) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if sig.Resolve() {
			slog.Info("browser: resolution signalled from terminal")
		} else {
			slog.Debug("browser: input ignored, no challenge pending")
		}
	}
}
