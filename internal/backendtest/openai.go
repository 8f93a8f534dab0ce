// Package backendtest provides a scripted OpenAI-compatible backend for
// tests that exercise the gateway over real HTTP.
package backendtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"
)

// Backend is an httptest server that streams Tokens for every completion
// request, followed by FinishReason and [DONE].
type Backend struct {
	*httptest.Server

	Tokens       []string
	FinishReason string

	delay    atomic.Int64
	requests atomic.Int64
	mu       sync.Mutex
	bodies   []map[string]any
}

// NewOpenAI starts a backend serving /health, /v1/models,
// /v1/chat/completions and /v1/completions.
func NewOpenAI(tokens ...string) *Backend {
	b := &Backend{Tokens: tokens, FinishReason: "stop"}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[]}`))
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) { b.stream(w, r, true) })
	mux.HandleFunc("/v1/completions", func(w http.ResponseWriter, r *http.Request) { b.stream(w, r, false) })
	b.Server = httptest.NewServer(mux)
	return b
}

// SetDelay makes the backend sleep d before each token.
func (b *Backend) SetDelay(d time.Duration) { b.delay.Store(int64(d)) }

// Requests returns how many completion requests were served.
func (b *Backend) Requests() int { return int(b.requests.Load()) }

// LastRequest returns the decoded body of the latest completion request.
func (b *Backend) LastRequest() map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.bodies) == 0 {
		return nil
	}
	return b.bodies[len(b.bodies)-1]
}

func (b *Backend) stream(w http.ResponseWriter, r *http.Request, chat bool) {
	b.requests.Add(1)
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	b.mu.Lock()
	b.bodies = append(b.bodies, body)
	b.mu.Unlock()

	w.Header().Set("Content-Type", "text/event-stream")
	flush := func() {
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
	write := func(v any) {
		raw, _ := json.Marshal(v)
		_, _ = w.Write([]byte("data: " + string(raw) + "\n\n"))
		flush()
	}
	delay := time.Duration(b.delay.Load())
	for _, tok := range b.Tokens {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if chat {
			write(map[string]any{"choices": []any{map[string]any{"index": 0, "delta": map[string]any{"content": tok}}}})
		} else {
			write(map[string]any{"choices": []any{map[string]any{"index": 0, "text": tok}}})
		}
	}
	write(map[string]any{"choices": []any{map[string]any{"index": 0, "delta": map[string]any{}, "finish_reason": b.FinishReason}}})
	_, _ = w.Write([]byte("data: [DONE]\n\n"))
	flush()
}
