package manager

import (
	"context"
	"sync/atomic"
	"time"
)

// Slot is an admission token for one in-flight decode on one model. It must
// be released exactly once; a second Release panics.
type Slot struct {
	m          *Manager
	e          *entry
	acquiredAt time.Time
	released   atomic.Bool
}

// Model returns the name of the model the slot belongs to.
func (s *Slot) Model() string { return s.e.spec.Name }

// Acquire reserves one decode slot on the named model. Under PolicyReject a
// full model fails immediately with CapacityExceeded; under PolicyWait the
// caller blocks until a slot frees up, the model starts draining, ctx is
// done, or MaxWait elapses. At most MaxQueueDepth callers wait per model.
func (m *Manager) Acquire(ctx context.Context, name string) (*Slot, error) {
	e, name := m.lookupEntry(name)
	if e == nil {
		return nil, ErrModelNotFound(name)
	}

	var (
		timer   *time.Timer
		waiting bool
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
		if waiting {
			e.mu.Lock()
			e.waiters--
			e.mu.Unlock()
		}
	}()

	for {
		e.mu.Lock()
		if e.state == StateRegistering && e.replaces != nil {
			if _, draining := e.replaces.drainingInfo(); draining {
				e.mu.Unlock()
				return nil, drainingError{name: name}
			}
		}
		switch e.state {
		case StateRegistering, StateUnloaded:
			e.mu.Unlock()
			return nil, ErrModelNotFound(name)
		case StateDraining:
			e.mu.Unlock()
			return nil, drainingError{name: name}
		}
		if e.active < e.max {
			e.active++
			m.metrics.RequestStarted()
			e.mu.Unlock()
			return &Slot{m: m, e: e, acquiredAt: time.Now()}, nil
		}
		if m.policy != PolicyWait {
			e.mu.Unlock()
			m.emit(EventAdmissionRejected, name, map[string]any{"reason": "capacity"})
			return nil, tooBusyError{name: name}
		}
		if !waiting {
			if e.waiters >= m.maxQueueDepth {
				e.mu.Unlock()
				m.emit(EventAdmissionRejected, name, map[string]any{"reason": "queue_full"})
				return nil, tooBusyError{name: name}
			}
			e.waiters++
			waiting = true
			timer = time.NewTimer(m.maxWait)
		}
		changed := e.changed
		e.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			m.emit(EventAdmissionRejected, name, map[string]any{"reason": "wait_timeout"})
			return nil, tooBusyError{name: name}
		}
	}
}

// Release returns the slot. When it was the last slot of a draining model
// the model is removed.
func (s *Slot) Release() {
	if !s.released.CompareAndSwap(false, true) {
		panic("manager: slot for model " + s.e.spec.Name + " released twice")
	}
	e := s.e
	e.mu.Lock()
	if e.active <= 0 {
		e.mu.Unlock()
		panic("manager: active count underflow for model " + e.spec.Name)
	}
	e.active--
	drained := e.state == StateDraining && e.active == 0
	if drained {
		e.state = StateUnloaded
	}
	s.m.metrics.RequestFinished()
	e.signal()
	e.mu.Unlock()
	if drained {
		s.m.finishDrain(e)
	}
}
