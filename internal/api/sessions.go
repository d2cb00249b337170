package api

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"grant-intake/internal/common/errors"
	"grant-intake/internal/common/logger"
	"grant-intake/internal/common/metrics"
	"grant-intake/internal/wizard"
)

type session struct {
	machine  *wizard.Machine
	lastUsed time.Time
}

// Sessions holds the live machine of every draft the API is working on.
// A draft that is not in memory is resumed from the gateway on first use.
type Sessions struct {
	mu      sync.Mutex
	entries map[string]*session
	// closing holds drafts whose machine is flushing its final autosave.
	closing map[string]chan struct{}

	opts   wizard.Options
	ttl    time.Duration
	now    func() time.Time
	logger logger.Logger
}

func NewSessions(opts wizard.Options, ttl time.Duration, log logger.Logger) *Sessions {
	return &Sessions{
		entries: make(map[string]*session),
		closing: make(map[string]chan struct{}),
		opts:    opts,
		ttl:     ttl,
		now:     time.Now,
		logger:  log.WithFields(map[string]interface{}{"component": "sessions"}),
	}
}

// Create starts a new draft and keeps its machine.
func (s *Sessions) Create() (*wizard.Machine, error) {
	m, err := wizard.New(s.opts)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.entries[m.ID()] = &session{machine: m, lastUsed: s.now()}
	metrics.ActiveSessions.Set(float64(len(s.entries)))
	s.mu.Unlock()
	return m, nil
}

// Get returns the live machine of draft id, resuming it when needed. A
// draft that is being released is resumed once its final save is done.
func (s *Sessions) Get(ctx context.Context, id string) (*wizard.Machine, error) {
	s.mu.Lock()
	if e, ok := s.entries[id]; ok {
		e.lastUsed = s.now()
		s.mu.Unlock()
		return e.machine, nil
	}
	done, closing := s.closing[id]
	s.mu.Unlock()

	if closing {
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m, err := wizard.Resume(ctx, s.opts, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		// Lost a race with a concurrent resume of the same draft.
		_ = m.Close()
		e.lastUsed = s.now()
		return e.machine, nil
	}
	s.entries[id] = &session{machine: m, lastUsed: s.now()}
	metrics.ActiveSessions.Set(float64(len(s.entries)))
	s.logger.Debug("session resumed", map[string]interface{}{"draftId": id})
	return m, nil
}

// Do runs fn against the live machine of draft id. When the machine is
// released while fn is waiting on it, fn runs once more against the
// resumed draft.
func (s *Sessions) Do(ctx context.Context, id string, fn func(*wizard.Machine) error) (*wizard.Machine, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	err = fn(m)
	if !stderrors.Is(err, errors.ErrSessionClosed) {
		return m, err
	}

	s.logger.Debug("session closed under request, resuming", map[string]interface{}{"draftId": id})
	s.forget(id, m)
	if m, err = s.Get(ctx, id); err != nil {
		return nil, err
	}
	return m, fn(m)
}

// forget drops the entry of draft id if it still points at m.
func (s *Sessions) forget(id string, m *wizard.Machine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok && e.machine == m {
		delete(s.entries, id)
		metrics.ActiveSessions.Set(float64(len(s.entries)))
	}
}

// Release drops draft id from memory after flushing its pending autosave.
func (s *Sessions) Release(id string) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if ok {
		s.detachLocked(id)
	}
	s.mu.Unlock()

	if ok {
		s.close(id, e.machine)
	}
}

// Evict releases every session idle for longer than the TTL and returns
// how many it released.
func (s *Sessions) Evict() int {
	if s.ttl <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	idle := make(map[string]*wizard.Machine)
	for id, e := range s.entries {
		if e.lastUsed.Before(cutoff) {
			idle[id] = e.machine
			s.detachLocked(id)
		}
	}
	s.mu.Unlock()

	for id, m := range idle {
		s.close(id, m)
	}
	if len(idle) > 0 {
		s.logger.Info("idle sessions evicted", map[string]interface{}{"count": len(idle)})
	}
	return len(idle)
}

// Run evicts idle sessions every interval until ctx is done.
func (s *Sessions) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Evict()
		}
	}
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close flushes and releases every session.
func (s *Sessions) Close() {
	s.mu.Lock()
	all := make(map[string]*session, len(s.entries))
	for id, e := range s.entries {
		all[id] = e
		s.detachLocked(id)
	}
	s.mu.Unlock()

	for id, e := range all {
		s.close(id, e.machine)
	}
}

// detachLocked removes draft id from the live set and marks it closing.
// The caller must hold s.mu and then call close.
func (s *Sessions) detachLocked(id string) {
	delete(s.entries, id)
	if _, ok := s.closing[id]; !ok {
		s.closing[id] = make(chan struct{})
	}
	metrics.ActiveSessions.Set(float64(len(s.entries)))
}

func (s *Sessions) close(id string, m *wizard.Machine) {
	defer func() {
		s.mu.Lock()
		if done, ok := s.closing[id]; ok {
			close(done)
			delete(s.closing, id)
		}
		s.mu.Unlock()
	}()
	if err := m.Close(); err != nil {
		s.logger.Warn("final autosave failed", map[string]interface{}{
			"draftId": id,
			"error":   err,
		})
	}
}
