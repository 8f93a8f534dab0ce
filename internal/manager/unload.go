package manager

// Unload begins removing a model. An idle model is removed at once and the
// returned state is unloaded; a busy one turns draining, rejects new work,
// and is removed when its last slot is released. Unloading a draining model
// again is a no-op.
func (m *Manager) Unload(name string) (State, error) {
	if name == "" {
		return "", ErrModelNotFound("(unspecified)")
	}
	m.mu.Lock()
	e := m.models[name]
	if e == nil {
		m.mu.Unlock()
		return "", ErrModelNotFound(name)
	}
	e.mu.Lock()
	switch e.state {
	case StateRegistering, StateUnloaded:
		e.mu.Unlock()
		m.mu.Unlock()
		return "", ErrModelNotFound(name)
	case StateDraining:
		e.mu.Unlock()
		m.mu.Unlock()
		return StateDraining, nil
	}
	if e.active == 0 {
		e.state = StateUnloaded
		e.signal()
		delete(m.models, name)
		e.mu.Unlock()
		m.mu.Unlock()
		m.retire(e)
		return StateUnloaded, nil
	}
	e.state = StateDraining
	active := e.active
	// Wake waiters so they fail with ModelDraining.
	e.signal()
	e.mu.Unlock()
	m.mu.Unlock()
	m.emit(EventModelDraining, name, map[string]any{"active": active})
	return StateDraining, nil
}

// finishDrain removes a drained entry once its last slot is released. The
// map entry is only deleted if it still points at e, since a replacement
// may have been registered meanwhile.
func (m *Manager) finishDrain(e *entry) {
	m.mu.Lock()
	if cur := m.models[e.spec.Name]; cur == e {
		delete(m.models, e.spec.Name)
	} else if cur != nil {
		cur.mu.Lock()
		if cur.replaces == e {
			cur.replaces = nil
		}
		cur.mu.Unlock()
	}
	m.mu.Unlock()
	m.retire(e)
}

// retire accounts for a removed entry and closes its backend.
func (m *Manager) retire(e *entry) {
	m.metrics.ModelRemoved()
	if err := e.backend.Close(); err != nil {
		m.log.Warn().Err(err).Str("model", e.spec.Name).Msg("backend close failed")
	}
	m.emit(EventModelUnloaded, e.spec.Name, nil)
}
