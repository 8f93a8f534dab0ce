package manager

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc"

	"llmgate/pkg/types"
)

// Backend abstracts an external inference service. The manager depends only
// on this capability set, never on a backend's wire format.
type Backend interface {
	// Probe performs a lightweight reachability check.
	Probe(ctx context.Context) error
	// Open starts a generation call. The returned stream must stop producing
	// events promptly once ctx is canceled or the stream is closed.
	Open(ctx context.Context, req GenerationRequest) (BackendStream, error)
	// Close releases resources held for the model (connections, clients).
	Close() error
}

// BackendStream yields the ordered events of one generation call.
type BackendStream interface {
	// Recv blocks for the next event. io.EOF reports a clean end of stream.
	Recv() (BackendEvent, error)
	// Close abandons the call.
	Close() error
}

// BackendEvent is one raw event from a backend. Done marks the final event;
// FinishReason is the backend's stop reason (stop, length, ...).
type BackendEvent struct {
	Text         string
	FinishReason string
	Done         bool
}

// BackendFactory builds the Backend for a model spec.
type BackendFactory func(spec types.ModelSpec) (Backend, error)

// BackendOptions tune the built-in backends.
type BackendOptions struct {
	// ConnectTimeout bounds TCP connect for HTTP backends.
	ConnectTimeout time.Duration
	// RequestTimeout bounds a whole generation call (0 = none).
	RequestTimeout time.Duration
	// GRPCDialOptions are appended to the defaults of grpc backends.
	GRPCDialOptions []grpc.DialOption
}

// NewBackendFactory returns the factory for the built-in backend kinds.
func NewBackendFactory(opts BackendOptions) BackendFactory {
	return func(spec types.ModelSpec) (Backend, error) {
		switch backendKind(spec.Backend) {
		case "openai":
			return NewOpenAIBackend(spec, opts)
		case "grpc":
			return NewGRPCBackend(spec, opts)
		default:
			return nil, ErrInvalid(fmt.Sprintf("unsupported backend %q, use openai, llama-server or grpc", spec.Backend))
		}
	}
}

// backendKind normalizes a spec's backend field; llama-server and llm are
// OpenAI-compatible aliases.
func backendKind(s string) string {
	switch k := strings.ToLower(strings.TrimSpace(s)); k {
	case "", "openai", "llama-server", "llm":
		return "openai"
	default:
		return k
	}
}
