package manager

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"llmgate/internal/metrics"
	"llmgate/internal/safety"
	"llmgate/pkg/types"
)

// Manager is the registry, admission controller and stream relay of the
// gateway. Lock order is m.mu before entry.mu; entry.mu is never held while
// acquiring m.mu.
type Manager struct {
	mu     sync.RWMutex
	models map[string]*entry

	defaultModel          string
	policy                AdmissionPolicy
	maxQueueDepth         int
	maxWait               time.Duration
	probeTimeout          time.Duration
	defaultMaxConcurrency int
	relayBuffer           int

	newBackend BackendFactory
	metrics    *metrics.Aggregator
	safety     *safety.Filter
	publisher  EventPublisher
	log        zerolog.Logger
	startTime  time.Time
}

// New returns a Manager with package defaults wired to agg and filter.
func New(agg *metrics.Aggregator, filter *safety.Filter) *Manager {
	// Delegate to NewWithConfig to centralize defaults
	return NewWithConfig(ManagerConfig{Metrics: agg, Safety: filter})
}

// Ready reports whether at least one model can serve requests.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.models {
		e.mu.Lock()
		ready := e.state == StateReady
		e.mu.Unlock()
		if ready {
			return true
		}
	}
	return false
}

// Policy returns the admission policy in effect.
func (m *Manager) Policy() AdmissionPolicy { return m.policy }

// ListModels returns the API view of every registered model, sorted by name.
func (m *Manager) ListModels() []types.ModelStatus {
	infos := m.List()
	out := make([]types.ModelStatus, 0, len(infos))
	for _, i := range infos {
		out = append(out, i.Status())
	}
	return out
}

// Close unregisters every model and closes its backend. In-flight streams
// keep their slots; their backends are closed underneath them.
func (m *Manager) Close() error {
	m.mu.Lock()
	entries := make([]*entry, 0, len(m.models))
	for name, e := range m.models {
		e.mu.Lock()
		if e.state == StateReady || e.state == StateDraining {
			m.metrics.ModelRemoved()
		}
		e.state = StateUnloaded
		e.signal()
		e.mu.Unlock()
		entries = append(entries, e)
		delete(m.models, name)
	}
	m.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].spec.Name < entries[j].spec.Name })
	var firstErr error
	for _, e := range entries {
		if err := e.backend.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
