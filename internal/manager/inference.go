package manager

import (
	"context"
	"strings"
	"sync"
)

// Generate screens req, admits it and relays the backend's events to sink.
// Errors are only returned before anything is written to sink: a safety
// rejection, or an admission failure (NotFound, ModelDraining,
// CapacityExceeded, ctx done while waiting). Once admitted, the outcome is
// the returned terminal event.
func (m *Manager) Generate(ctx context.Context, req GenerationRequest, sink EventSink) (TokenEvent, error) {
	if v := m.safety.Check(req.PromptText()); !v.Allowed {
		m.log.Info().Str("model", req.Model).Str("term", v.Term).Msg("prompt rejected by safety filter")
		return TokenEvent{}, safetyError{term: v.Term}
	}
	slot, err := m.Acquire(ctx, req.Model)
	if err != nil {
		return TokenEvent{}, err
	}
	if req.Model == "" {
		req.Model = slot.Model()
	}
	return m.Relay(ctx, slot, req, sink), nil
}

// Complete runs a non-streamed generation and returns the concatenated
// deltas. It shares the streamed path, so both produce the same content.
func (m *Manager) Complete(ctx context.Context, req GenerationRequest) (Completion, error) {
	var c collector
	term, err := m.Generate(ctx, req, &c)
	if err != nil {
		return Completion{}, err
	}
	switch {
	case term.Kind == EventError:
		return Completion{}, errorFromEvent(term)
	case term.Reason == FinishBackendError:
		return Completion{}, backendFailureError{msg: term.Message}
	case term.Reason == FinishClientCancelled:
		if err := ctx.Err(); err != nil {
			return Completion{}, err
		}
		return Completion{}, context.Canceled
	}
	return Completion{Content: c.text(), FinishReason: term.Reason, Tokens: c.tokens}, nil
}

// errorFromEvent maps an Error event back to a typed error.
func errorFromEvent(ev TokenEvent) error {
	if term, ok := strings.CutPrefix(ev.Message, safetyError{}.Error()); ok {
		return safetyError{term: term}
	}
	return backendFailureError{msg: ev.Message}
}

// collector is an EventSink that buffers deltas in memory.
type collector struct {
	mu     sync.Mutex
	b      strings.Builder
	tokens int
}

func (c *collector) Send(_ context.Context, ev TokenEvent) error {
	if ev.Kind != EventDelta {
		return nil
	}
	c.mu.Lock()
	c.b.WriteString(ev.Text)
	c.tokens++
	c.mu.Unlock()
	return nil
}

func (c *collector) text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.b.String()
}
