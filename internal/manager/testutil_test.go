package manager

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"llmgate/internal/metrics"
	"llmgate/internal/safety"
	"llmgate/pkg/types"
)

// fakeBackend is a scripted in-memory backend used for tests.
type fakeBackend struct {
	probeErr  error
	probeGate chan struct{} // when set, Probe blocks until closed
	openErr   error
	tokens    []string
	finish    string
	failAfter int // emit streamErr after this many tokens (0 = never)
	streamErr error
	hold      bool // block after the tokens until the stream is abandoned
	endless   bool // never finish; every Recv yields a token

	opens         atomic.Int32
	recvs         atomic.Int32
	streamsClosed atomic.Int32
	closed        atomic.Bool

	mu      sync.Mutex
	lastReq GenerationRequest
}

func (f *fakeBackend) Probe(ctx context.Context) error {
	if f.probeGate != nil {
		select {
		case <-f.probeGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.probeErr
}

func (f *fakeBackend) Open(ctx context.Context, req GenerationRequest) (BackendStream, error) {
	f.opens.Add(1)
	f.mu.Lock()
	f.lastReq = req
	f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	sctx, cancel := context.WithCancel(ctx)
	return &fakeStream{f: f, ctx: sctx, cancel: cancel}, nil
}

func (f *fakeBackend) Close() error {
	f.closed.Store(true)
	return nil
}

type fakeStream struct {
	f      *fakeBackend
	ctx    context.Context
	cancel context.CancelFunc
	i      int
	ended  bool
}

func (s *fakeStream) Recv() (BackendEvent, error) {
	if err := s.ctx.Err(); err != nil {
		return BackendEvent{}, err
	}
	s.f.recvs.Add(1)
	if s.f.endless {
		return BackendEvent{Text: "t"}, nil
	}
	if s.f.failAfter > 0 && s.i == s.f.failAfter {
		return BackendEvent{}, s.f.streamErr
	}
	if s.i < len(s.f.tokens) {
		tok := s.f.tokens[s.i]
		s.i++
		return BackendEvent{Text: tok}, nil
	}
	if s.f.hold {
		<-s.ctx.Done()
		return BackendEvent{}, s.ctx.Err()
	}
	if s.f.finish != "" && !s.ended {
		s.ended = true
		return BackendEvent{FinishReason: s.f.finish, Done: true}, nil
	}
	return BackendEvent{}, io.EOF
}

func (s *fakeStream) Close() error {
	s.cancel()
	s.f.streamsClosed.Add(1)
	return nil
}

// recordSink records every event it receives. failAt makes the n-th send
// (1-based) fail; onSend runs after each successful send.
type recordSink struct {
	mu     sync.Mutex
	events []TokenEvent
	failAt int
	onSend func(TokenEvent)
}

func (s *recordSink) Send(_ context.Context, ev TokenEvent) error {
	s.mu.Lock()
	if s.failAt > 0 && len(s.events)+1 == s.failAt {
		s.mu.Unlock()
		return errors.New("client gone")
	}
	s.events = append(s.events, ev)
	cb := s.onSend
	s.mu.Unlock()
	if cb != nil {
		cb(ev)
	}
	return nil
}

// stallSink blocks every Send until ctx is done, like a client that stopped
// reading. entered is closed on the first Send.
type stallSink struct {
	once    sync.Once
	entered chan struct{}
}

func (s *stallSink) Send(ctx context.Context, _ TokenEvent) error {
	s.once.Do(func() { close(s.entered) })
	<-ctx.Done()
	return ctx.Err()
}

func (s *recordSink) Events() []TokenEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TokenEvent(nil), s.events...)
}

// testEnv wires a Manager to fake backends keyed by model name.
type testEnv struct {
	m        *Manager
	agg      *metrics.Aggregator
	pub      *MemoryPublisher
	backends map[string]*fakeBackend
	mu       sync.Mutex
}

func newTestEnv(t *testing.T, cfg ManagerConfig, terms ...string) *testEnv {
	t.Helper()
	env := &testEnv{agg: metrics.New(), pub: NewMemoryPublisher(), backends: map[string]*fakeBackend{}}
	cfg.Metrics = env.agg
	cfg.Safety = safety.New(terms)
	cfg.Publisher = env.pub
	cfg.BackendFactory = func(spec types.ModelSpec) (Backend, error) {
		env.mu.Lock()
		defer env.mu.Unlock()
		if b, ok := env.backends[spec.Name]; ok {
			return b, nil
		}
		b := &fakeBackend{tokens: []string{"ok"}, finish: "stop"}
		env.backends[spec.Name] = b
		return b, nil
	}
	env.m = NewWithConfig(cfg)
	t.Cleanup(func() { _ = env.m.Close() })
	return env
}

// setBackend scripts the backend used by the next registration of name.
func (env *testEnv) setBackend(name string, b *fakeBackend) {
	env.mu.Lock()
	env.backends[name] = b
	env.mu.Unlock()
}

func (env *testEnv) register(t *testing.T, name string, maxConc int) {
	t.Helper()
	if _, err := env.m.Register(testCtx(t), types.ModelSpec{Name: name, Endpoint: "http://127.0.0.1:1", MaxConcurrency: maxConc}); err != nil {
		t.Fatalf("Register(%s): %v", name, err)
	}
}

// activeOf returns the active count of name, or -1 when it is not listed.
func (env *testEnv) activeOf(name string) int {
	for _, i := range env.m.List() {
		if i.Name == name {
			return i.Active
		}
	}
	return -1
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", d)
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return c
}
