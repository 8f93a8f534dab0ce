package manager

import (
	"strings"
	"sync"

	"llmgate/pkg/types"
)

// State represents the lifecycle state of a registered model.
type State string

const (
	StateRegistering State = "registering"
	StateReady       State = "ready"
	StateDraining    State = "draining"
	StateUnloaded    State = "unloaded"
)

// ModelInfo is a read-only snapshot of a registry entry.
type ModelInfo struct {
	Name           string
	Endpoint       string
	Backend        string
	State          State
	Active         int
	MaxConcurrency int
}

// Status converts the snapshot to its API shape.
func (i ModelInfo) Status() types.ModelStatus {
	return types.ModelStatus{
		Name:           i.Name,
		State:          string(i.State),
		Active:         i.Active,
		MaxConcurrency: i.MaxConcurrency,
		Backend:        i.Backend,
		Endpoint:       i.Endpoint,
	}
}

// entry is one registered model. state, active and waiters are guarded by mu;
// the remaining fields are immutable after construction.
type entry struct {
	spec    types.ModelSpec
	backend Backend
	max     int

	mu      sync.Mutex
	state   State
	active  int
	waiters int
	// replaces is the draining entry this one displaced, until that entry
	// finishes draining.
	replaces *entry
	// changed is closed and replaced whenever capacity or state changes,
	// waking every bounded-wait acquirer.
	changed chan struct{}
}

func newEntry(spec types.ModelSpec, b Backend) *entry {
	return &entry{
		spec:    spec,
		backend: b,
		max:     spec.MaxConcurrency,
		state:   StateRegistering,
		changed: make(chan struct{}),
	}
}

// signal wakes waiters. Caller holds e.mu.
func (e *entry) signal() {
	close(e.changed)
	e.changed = make(chan struct{})
}

// info snapshots the entry. Caller holds e.mu.
func (e *entry) info() ModelInfo {
	return ModelInfo{
		Name:           e.spec.Name,
		Endpoint:       e.spec.Endpoint,
		Backend:        backendKind(e.spec.Backend),
		State:          e.state,
		Active:         e.active,
		MaxConcurrency: e.max,
	}
}

// DecodeParams are passed through to the backend untouched.
type DecodeParams struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
	Stop        []string
	Seed        *int64
}

// GenerationRequest is one chat or text completion request. Messages and
// Prompt are mutually exclusive; Messages wins when both are set.
type GenerationRequest struct {
	Model    string
	Messages []types.Message
	Prompt   string
	Params   DecodeParams
	Stream   bool
}

// PromptText is the text screened by the safety filter: every message
// content in order, newline separated, or the raw prompt.
func (r GenerationRequest) PromptText() string {
	if len(r.Messages) == 0 {
		return r.Prompt
	}
	parts := make([]string, 0, len(r.Messages))
	for _, m := range r.Messages {
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, "\n")
}

// RenderPrompt flattens chat messages into "role: content" lines for
// backends that only accept a raw prompt.
func (r GenerationRequest) RenderPrompt() string {
	if len(r.Messages) == 0 {
		return r.Prompt
	}
	lines := make([]string, 0, len(r.Messages))
	for _, m := range r.Messages {
		lines = append(lines, m.Role+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

// EventKind tags a TokenEvent.
type EventKind int

const (
	EventDelta EventKind = iota
	EventDone
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventDelta:
		return "delta"
	case EventDone:
		return "done"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// FinishReason is carried by a Done event.
type FinishReason string

const (
	FinishStop            FinishReason = "stop"
	FinishLength          FinishReason = "length"
	FinishClientCancelled FinishReason = "client_cancelled"
	FinishBackendError    FinishReason = "backend_error"
)

// TokenEvent is one outward event of a stream. Delta carries Text (and Role
// on the first delta); Done carries Reason and, for BackendError, Message;
// Error carries Message. Done and Error are terminal.
type TokenEvent struct {
	Kind    EventKind
	Text    string
	Role    string
	Reason  FinishReason
	Message string
}

// Terminal reports whether no event may follow e.
func (e TokenEvent) Terminal() bool { return e.Kind == EventDone || e.Kind == EventError }

// Completion is the buffered result of a non-streamed generation.
type Completion struct {
	Content      string
	FinishReason FinishReason
	Tokens       int
}
