package manager

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"llmgate/pkg/types"
)

// Register probes the backend of spec and, on success, makes the model
// available for admission. The entry is visible in List as registering while
// the probe runs; Lookup and Acquire treat it as absent until it is ready.
//
// A name that is ready or registering yields AlreadyExists. A draining
// model may be replaced; the old entry stays listed with its active count
// until its in-flight work finishes, and while the replacement is checked,
// Lookup reports the old entry and Acquire fails with ModelDraining.
func (m *Manager) Register(ctx context.Context, spec types.ModelSpec) (ModelInfo, error) {
	spec, err := m.normalizeSpec(spec)
	if err != nil {
		return ModelInfo{}, err
	}
	backend, err := m.newBackend(spec)
	if err != nil {
		if IsInvalid(err) {
			return ModelInfo{}, err
		}
		return ModelInfo{}, ErrInvalid(err.Error())
	}
	e := newEntry(spec, backend)

	m.mu.Lock()
	prev := m.models[spec.Name]
	if prev != nil {
		prev.mu.Lock()
		st := prev.state
		prev.mu.Unlock()
		if st == StateReady || st == StateRegistering {
			m.mu.Unlock()
			_ = backend.Close()
			return ModelInfo{}, alreadyExistsError{name: spec.Name}
		}
		e.replaces = prev
	}
	m.models[spec.Name] = e
	m.mu.Unlock()
	m.emit(EventModelRegistering, spec.Name, map[string]any{"endpoint": spec.Endpoint, "backend": backendKind(spec.Backend)})

	pctx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	perr := backend.Probe(pctx)
	cancel()
	if perr != nil {
		m.abandon(e, prev)
		_ = backend.Close()
		m.emit(EventModelRegisterFailed, spec.Name, map[string]any{"error": perr.Error()})
		return ModelInfo{}, backendUnreachableError{name: spec.Name, err: perr}
	}

	e.mu.Lock()
	if e.state != StateRegistering {
		// Closed underneath us.
		e.mu.Unlock()
		_ = backend.Close()
		return ModelInfo{}, ErrModelNotFound(spec.Name)
	}
	e.state = StateReady
	e.signal()
	info := e.info()
	e.mu.Unlock()
	m.metrics.ModelLoaded()
	m.emit(EventModelReady, spec.Name, map[string]any{"max_concurrency": info.MaxConcurrency})
	return info, nil
}

// abandon removes a registering entry whose probe failed, restoring the
// draining entry it displaced if that one is still live.
func (m *Manager) abandon(e, prev *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.mu.Lock()
	e.state = StateUnloaded
	e.signal()
	e.mu.Unlock()
	if m.models[e.spec.Name] != e {
		return
	}
	if prev != nil {
		prev.mu.Lock()
		live := prev.state == StateDraining
		prev.mu.Unlock()
		if live {
			m.models[e.spec.Name] = prev
			return
		}
	}
	delete(m.models, e.spec.Name)
}

func (m *Manager) normalizeSpec(spec types.ModelSpec) (types.ModelSpec, error) {
	spec.Name = strings.TrimSpace(spec.Name)
	spec.Endpoint = strings.TrimSpace(spec.Endpoint)
	if spec.Name == "" {
		return spec, ErrInvalid("model name is required")
	}
	if spec.Endpoint == "" {
		return spec, ErrInvalid("model endpoint is required")
	}
	if spec.MaxConcurrency < 0 {
		return spec, ErrInvalid(fmt.Sprintf("max_concurrency must be >= 1, got %d", spec.MaxConcurrency))
	}
	if spec.MaxConcurrency == 0 {
		spec.MaxConcurrency = m.defaultMaxConcurrency
	}
	if backendKind(spec.Backend) == "openai" {
		u, err := url.Parse(spec.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return spec, ErrInvalid(fmt.Sprintf("endpoint %q must be an http(s) URL", spec.Endpoint))
		}
	}
	return spec, nil
}

// Lookup returns a snapshot of a ready or draining model.
func (m *Manager) Lookup(name string) (ModelInfo, bool) {
	m.mu.RLock()
	e := m.models[name]
	m.mu.RUnlock()
	if e == nil {
		return ModelInfo{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateRegistering && e.replaces != nil {
		if info, ok := e.replaces.drainingInfo(); ok {
			return info, true
		}
	}
	if e.state != StateReady && e.state != StateDraining {
		return ModelInfo{}, false
	}
	return e.info(), true
}

// List returns snapshots of every registered model, sorted by name.
func (m *Manager) List() []ModelInfo {
	m.mu.RLock()
	out := make([]ModelInfo, 0, len(m.models))
	for _, e := range m.models {
		e.mu.Lock()
		if e.replaces != nil {
			if info, ok := e.replaces.drainingInfo(); ok {
				out = append(out, info)
			}
		}
		if e.state != StateUnloaded {
			out = append(out, e.info())
		}
		e.mu.Unlock()
	}
	m.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// drainingInfo snapshots e if it is still draining. Callers may hold the
// mutex of the entry that replaced e.
func (e *entry) drainingInfo() (ModelInfo, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateDraining {
		return ModelInfo{}, false
	}
	return e.info(), true
}

// lookupEntry returns the current entry for name, resolving the default model
// for an empty name.
func (m *Manager) lookupEntry(name string) (*entry, string) {
	if name == "" {
		name = m.defaultModel
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.models[name], name
}
