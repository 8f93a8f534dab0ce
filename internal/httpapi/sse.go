package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"llmgate/internal/manager"
	"llmgate/pkg/types"
)

const (
	objectChatChunk  = "chat.completion.chunk"
	objectChat       = "chat.completion"
	objectCompletion = "text_completion"
	doneFrame        = "data: [DONE]\n\n"
)

// newCompletionID returns an OpenAI-style completion id.
func newCompletionID() string { return "chatcmpl-" + uuid.NewString() }

// sseSink renders manager events as OpenAI-compatible server-sent events.
// Headers are written on the first frame so that admission failures can
// still be reported as plain JSON errors.
type sseSink struct {
	w     http.ResponseWriter
	out   io.Writer
	flush func()

	id      string
	model   string
	created int64
	chat    bool

	mu      sync.Mutex
	started bool
	closed  bool
}

func newSSESink(w http.ResponseWriter, model string, chat bool, tee io.Writer) *sseSink {
	s := &sseSink{
		w:       w,
		out:     w,
		flush:   func() {},
		id:      newCompletionID(),
		model:   model,
		created: time.Now().Unix(),
		chat:    chat,
	}
	if f, ok := w.(http.Flusher); ok {
		s.flush = f.Flush
	}
	if tee != nil {
		s.out = io.MultiWriter(w, tee)
	}
	return s
}

// Started reports whether any frame has been written.
func (s *sseSink) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Send implements manager.EventSink.
func (s *sseSink) Send(ctx context.Context, ev manager.TokenEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch ev.Kind {
	case manager.EventDelta:
		return s.writeFrames(s.chunk(ev.Role, ev.Text, nil))
	case manager.EventError:
		return s.writeFrames(streamError(ev.Message, "content_filter"), nil)
	}
	switch ev.Reason {
	case manager.FinishClientCancelled:
		return nil
	case manager.FinishBackendError:
		return s.writeFrames(streamError(ev.Message, "backend_error"), nil)
	}
	reason := string(ev.Reason)
	return s.writeFrames(s.chunk("", "", &reason), nil)
}

func (s *sseSink) chunk(role, text string, finish *string) any {
	choice := types.ChunkChoice{FinishReason: finish}
	obj := objectCompletion
	if s.chat {
		obj = objectChatChunk
		choice.Delta = &types.ChatDelta{Role: role, Content: text}
	} else {
		choice.Text = &text
	}
	return types.CompletionChunk{
		ID:      s.id,
		Object:  obj,
		Created: s.created,
		Model:   s.model,
		Choices: []types.ChunkChoice{choice},
	}
}

func streamError(msg, typ string) any {
	return types.StreamError{Error: types.StreamErrorBody{Message: msg, Type: typ}}
}

// writeFrames writes one data frame per payload; a nil payload is the
// [DONE] sentinel, after which the stream is closed.
func (s *sseSink) writeFrames(payloads ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.start()
	for _, p := range payloads {
		if p == nil {
			if _, err := io.WriteString(s.out, doneFrame); err != nil {
				return err
			}
			s.closed = true
			break
		}
		b, err := json.Marshal(p)
		if err != nil {
			return err
		}
		frame := make([]byte, 0, len(b)+8)
		frame = append(frame, "data: "...)
		frame = append(frame, b...)
		frame = append(frame, '\n', '\n')
		if _, err := s.out.Write(frame); err != nil {
			return err
		}
	}
	s.flush()
	return nil
}

// start writes the stream headers once. Callers hold s.mu.
func (s *sseSink) start() {
	if s.started {
		return
	}
	s.started = true
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
}

// keepAlive writes an SSE comment every interval once the stream has
// started, until the returned stop func is called.
func (s *sseSink) keepAlive(interval time.Duration) (stop func()) {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				s.ping()
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}

func (s *sseSink) ping() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.closed {
		return
	}
	if _, err := io.WriteString(s.w, ": keep-alive\n\n"); err == nil {
		s.flush()
	}
}
