package manager

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"llmgate/pkg/types"
)

const defaultConnectTimeout = 5 * time.Second

// openAIBackend talks to an OpenAI-compatible server (llama.cpp server,
// vLLM, ...) over HTTP and consumes its server-sent event stream.
type openAIBackend struct {
	baseURL       string
	apiKey        string
	model         string
	contextLength int
	reqTimeout    time.Duration
	httpClient    *http.Client
}

// NewOpenAIBackend constructs an HTTP backend for spec.
func NewOpenAIBackend(spec types.ModelSpec, opts BackendOptions) (Backend, error) {
	if strings.TrimSpace(spec.Endpoint) == "" {
		return nil, ErrInvalid("model endpoint is required")
	}
	connectTimeout := orDuration(opts.ConnectTimeout, defaultConnectTimeout)
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	// Timeout stays 0: streams are long-lived and bounded by context instead.
	cli := &http.Client{Transport: tr, Timeout: 0}
	return &openAIBackend{
		baseURL:       strings.TrimRight(spec.Endpoint, "/"),
		apiKey:        spec.APIKey,
		model:         spec.Name,
		contextLength: spec.ContextLength,
		reqTimeout:    opts.RequestTimeout,
		httpClient:    cli,
	}, nil
}

// Probe checks GET /health and falls back to GET /v1/models for servers
// without a health route.
func (b *openAIBackend) Probe(ctx context.Context) error {
	status, err := b.get(ctx, "/health")
	if err != nil {
		return err
	}
	if status == http.StatusNotFound || status == http.StatusMethodNotAllowed {
		if status, err = b.get(ctx, "/v1/models"); err != nil {
			return err
		}
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("probe %s: unexpected status %d", b.baseURL, status)
	}
	return nil
}

func (b *openAIBackend) get(ctx context.Context, path string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+path, nil)
	if err != nil {
		return 0, err
	}
	b.authorize(req)
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
	return resp.StatusCode, nil
}

func (b *openAIBackend) authorize(req *http.Request) {
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}
}

// openAIRequest is the payload for /v1/chat/completions and /v1/completions.
type openAIRequest struct {
	Model       string          `json:"model,omitempty"`
	Messages    []types.Message `json:"messages,omitempty"`
	Prompt      string          `json:"prompt,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
	TopP        float64         `json:"top_p"`
	Stop        []string        `json:"stop,omitempty"`
	Seed        *int64          `json:"seed,omitempty"`
	Stream      bool            `json:"stream"`
}

// Open starts a streamed completion. Chat requests go to
// /v1/chat/completions, raw prompts to /v1/completions.
func (b *openAIBackend) Open(ctx context.Context, gr GenerationRequest) (BackendStream, error) {
	cancel := context.CancelFunc(func() {})
	if b.reqTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, b.reqTimeout)
	}
	payload := openAIRequest{
		Model:       b.model,
		MaxTokens:   b.capTokens(gr.Params.MaxTokens),
		Temperature: gr.Params.Temperature,
		TopP:        gr.Params.TopP,
		Stop:        gr.Params.Stop,
		Seed:        gr.Params.Seed,
		Stream:      true,
	}
	path := "/v1/completions"
	if len(gr.Messages) > 0 {
		path = "/v1/chat/completions"
		payload.Messages = gr.Messages
	} else {
		payload.Prompt = gr.Prompt
	}
	body, err := json.Marshal(payload)
	if err != nil {
		cancel()
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	b.authorize(req)
	resp, err := b.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("backend http error: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	return &sseStream{body: resp.Body, r: bufio.NewReader(resp.Body), cancel: cancel}, nil
}

// capTokens bounds max_tokens by the model's context length when known.
func (b *openAIBackend) capTokens(n int) int {
	if b.contextLength > 0 && n > b.contextLength {
		return b.contextLength
	}
	return n
}

func (b *openAIBackend) Close() error {
	b.httpClient.CloseIdleConnections()
	return nil
}

// sseStream decodes an OpenAI-style event stream. It also accepts bare JSON
// lines and llama.cpp native payloads ({"content": ..., "stop": true}).
type sseStream struct {
	body   io.ReadCloser
	r      *bufio.Reader
	cancel context.CancelFunc
	finish string
}

func (s *sseStream) Recv() (BackendEvent, error) {
	for {
		line, err := s.r.ReadString('\n')
		if ev, ok, perr := s.parse(strings.TrimSpace(line)); perr != nil {
			return BackendEvent{}, perr
		} else if ok {
			return ev, nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) && s.finish != "" {
				return BackendEvent{FinishReason: s.finish, Done: true}, nil
			}
			return BackendEvent{}, err
		}
	}
}

// parse decodes one line. ok is false for lines that carry no event
// (blank lines, comments, other SSE fields).
func (s *sseStream) parse(line string) (BackendEvent, bool, error) {
	if line == "" || strings.HasPrefix(line, ":") {
		return BackendEvent{}, false, nil
	}
	data := line
	if strings.HasPrefix(strings.ToLower(line), "data:") {
		data = strings.TrimSpace(line[len("data:"):])
	} else if !strings.HasPrefix(line, "{") {
		// event:, id:, retry: ...
		return BackendEvent{}, false, nil
	}
	if data == "[DONE]" {
		return BackendEvent{FinishReason: orString(s.finish, string(FinishStop)), Done: true}, true, nil
	}
	if !gjson.Valid(data) {
		return BackendEvent{}, false, fmt.Errorf("malformed stream payload: %.120q", data)
	}
	res := gjson.Parse(data)
	if e := res.Get("error"); e.Exists() {
		msg := e.Get("message").String()
		if msg == "" {
			msg = e.String()
		}
		return BackendEvent{}, false, errors.New("backend reported error: " + msg)
	}
	text := firstString(res, "choices.0.delta.content", "choices.0.text", "content", "token.text", "text")
	if fr := res.Get("choices.0.finish_reason").String(); fr != "" {
		s.finish = fr
	}
	if res.Get("stop").Bool() || res.Get("done").Bool() {
		if s.finish == "" {
			s.finish = res.Get("stop_type").String()
			if s.finish == "limit" {
				s.finish = string(FinishLength)
			}
		}
		return BackendEvent{Text: text, FinishReason: orString(s.finish, string(FinishStop)), Done: true}, true, nil
	}
	if text == "" {
		return BackendEvent{}, false, nil
	}
	return BackendEvent{Text: text}, true, nil
}

func (s *sseStream) Close() error {
	s.cancel()
	return s.body.Close()
}

func firstString(res gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := res.Get(p); v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
	}
	return ""
}

func orString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
