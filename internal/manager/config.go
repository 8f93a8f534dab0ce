package manager

import (
	"time"

	"github.com/rs/zerolog"

	"llmgate/internal/metrics"
	"llmgate/internal/safety"
)

// AdmissionPolicy selects what Acquire does when a model is at capacity.
type AdmissionPolicy string

const (
	// PolicyReject fails fast with CapacityExceeded.
	PolicyReject AdmissionPolicy = "reject"
	// PolicyWait blocks up to MaxWait for a slot to free up.
	PolicyWait AdmissionPolicy = "wait"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultMaxQueueDepth  = 32
	defaultMaxWait        = 30 * time.Second
	defaultProbeTimeout   = 5 * time.Second
	defaultMaxConcurrency = 1
	defaultRelayBuffer    = 4
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	// Admission is the at-capacity policy; empty means reject.
	Admission AdmissionPolicy
	// MaxQueueDepth bounds concurrent waiters per model under PolicyWait.
	MaxQueueDepth int
	// MaxWait bounds how long a waiter blocks under PolicyWait.
	MaxWait time.Duration
	// ProbeTimeout bounds the reachability probe during registration.
	ProbeTimeout time.Duration
	// DefaultMaxConcurrency applies to specs that leave max_concurrency unset.
	DefaultMaxConcurrency int
	// DefaultModel is used by requests that omit the model name.
	DefaultModel string
	// RelayBuffer is the capacity of the backend-to-client event queue.
	RelayBuffer int

	// BackendFactory builds backends; nil uses the built-in kinds.
	BackendFactory BackendFactory
	Metrics        *metrics.Aggregator
	Safety         *safety.Filter
	Publisher      EventPublisher
	Logger         *zerolog.Logger
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		models:       make(map[string]*entry),
		defaultModel: cfg.DefaultModel,
		metrics:      cfg.Metrics,
		safety:       cfg.Safety,
		publisher:    cfg.Publisher,
		newBackend:   cfg.BackendFactory,
		startTime:    time.Now(),
	}
	// Apply defaults if unset
	switch cfg.Admission {
	case PolicyWait:
		m.policy = PolicyWait
	default:
		m.policy = PolicyReject
	}
	m.maxQueueDepth = orInt(cfg.MaxQueueDepth, defaultMaxQueueDepth)
	m.maxWait = orDuration(cfg.MaxWait, defaultMaxWait)
	m.probeTimeout = orDuration(cfg.ProbeTimeout, defaultProbeTimeout)
	m.defaultMaxConcurrency = orInt(cfg.DefaultMaxConcurrency, defaultMaxConcurrency)
	m.relayBuffer = orInt(cfg.RelayBuffer, defaultRelayBuffer)
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	if m.newBackend == nil {
		m.newBackend = NewBackendFactory(BackendOptions{})
	}
	if cfg.Logger != nil {
		m.log = *cfg.Logger
	} else {
		m.log = zerolog.Nop()
	}
	return m
}

func orInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func orDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}
