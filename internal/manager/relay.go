package manager

import (
	"context"
	"errors"
	"io"
	"time"
)

// EventSink receives the outward events of one stream. Send returns an error
// once the client can no longer be written to.
type EventSink interface {
	Send(ctx context.Context, ev TokenEvent) error
}

type backendResult struct {
	ev  BackendEvent
	err error
}

// Relay forwards the backend's events for req to sink and returns the
// terminal event. It owns slot and releases it as its last action.
//
// Exactly one terminal event is produced. When ctx is done or the sink
// fails, the backend call is abandoned and ClientCancelled is returned
// without writing to the sink. A prompt denied by the safety filter yields
// a single Error event and the backend is never contacted.
func (m *Manager) Relay(ctx context.Context, slot *Slot, req GenerationRequest, sink EventSink) TokenEvent {
	defer slot.Release()
	start := time.Now()
	term, tokens := m.relay(ctx, slot, req, sink)
	m.log.Debug().
		Str("model", slot.Model()).
		Str("kind", term.Kind.String()).
		Str("reason", string(term.Reason)).
		Int("tokens", tokens).
		Dur("elapsed", time.Since(start)).
		Msg("relay finished")
	return term
}

func (m *Manager) relay(ctx context.Context, slot *Slot, req GenerationRequest, sink EventSink) (TokenEvent, int) {
	if v := m.safety.Check(req.PromptText()); !v.Allowed {
		ev := TokenEvent{Kind: EventError, Message: safetyError{term: v.Term}.Error()}
		if err := sink.Send(ctx, ev); err != nil {
			return cancelled(), 0
		}
		return ev, 0
	}

	bctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stream, err := slot.e.backend.Open(bctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return cancelled(), 0
		}
		return m.finish(ctx, sink, backendFailed(err)), 0
	}
	defer stream.Close()

	events := make(chan backendResult, m.relayBuffer)
	go pump(bctx, stream, events)

	tokens := 0
	for {
		select {
		case <-ctx.Done():
			return cancelled(), tokens
		case res := <-events:
			if res.err != nil {
				if ctx.Err() != nil {
					return cancelled(), tokens
				}
				if errors.Is(res.err, io.EOF) {
					return m.finish(ctx, sink, TokenEvent{Kind: EventDone, Reason: FinishStop}), tokens
				}
				return m.finish(ctx, sink, backendFailed(res.err)), tokens
			}
			if res.ev.Text != "" {
				delta := TokenEvent{Kind: EventDelta, Text: res.ev.Text}
				if tokens == 0 {
					delta.Role = "assistant"
				}
				if err := sink.Send(ctx, delta); err != nil {
					return cancelled(), tokens
				}
				tokens++
				m.metrics.AddTokens(1)
			}
			if res.ev.Done {
				return m.finish(ctx, sink, TokenEvent{Kind: EventDone, Reason: finishReason(res.ev.FinishReason)}), tokens
			}
		}
	}
}

// finish writes the terminal event. A failed write means the client left.
func (m *Manager) finish(ctx context.Context, sink EventSink, ev TokenEvent) TokenEvent {
	if err := sink.Send(ctx, ev); err != nil {
		return cancelled()
	}
	return ev
}

// pump reads the backend stream into out until a terminal result or until
// ctx is done. out is bounded, so a slow client stalls the backend read.
func pump(ctx context.Context, stream BackendStream, out chan<- backendResult) {
	for {
		ev, err := stream.Recv()
		select {
		case out <- backendResult{ev: ev, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil || ev.Done {
			return
		}
	}
}

func cancelled() TokenEvent {
	return TokenEvent{Kind: EventDone, Reason: FinishClientCancelled}
}

func backendFailed(err error) TokenEvent {
	return TokenEvent{Kind: EventDone, Reason: FinishBackendError, Message: err.Error()}
}

func finishReason(s string) FinishReason {
	if s == string(FinishLength) {
		return FinishLength
	}
	return FinishStop
}
