package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"llmgate/internal/manager"
	"llmgate/pkg/types"
)

type mockService struct {
	models       []types.ModelStatus
	status       types.StatusResponse
	ready        bool
	defaultModel string

	// events are sent in order by Generate; genErr fails before any frame.
	events     []manager.TokenEvent
	genErr     error
	completion manager.Completion
	compErr    error
	beforeTerm func()

	loadStatus types.ModelStatus
	loadErr    error
	unloadErr  error

	mu       sync.Mutex
	lastReq  manager.GenerationRequest
	lastSpec types.ModelSpec
	unloaded string
}

func (m *mockService) ListModels() []types.ModelStatus {
	return append([]types.ModelStatus(nil), m.models...)
}
func (m *mockService) Status() types.StatusResponse { return m.status }
func (m *mockService) Ready() bool                  { return m.ready }

func (m *mockService) LoadModel(ctx context.Context, spec types.ModelSpec) (types.ModelStatus, error) {
	m.mu.Lock()
	m.lastSpec = spec
	m.mu.Unlock()
	if m.loadErr != nil {
		return types.ModelStatus{}, m.loadErr
	}
	return m.loadStatus, nil
}

func (m *mockService) UnloadModel(name string) (string, error) {
	m.mu.Lock()
	m.unloaded = name
	m.mu.Unlock()
	if m.unloadErr != nil {
		return "", m.unloadErr
	}
	return "draining", nil
}

func (m *mockService) Generate(ctx context.Context, req manager.GenerationRequest, sink manager.EventSink) (manager.TokenEvent, error) {
	m.mu.Lock()
	m.lastReq = req
	m.mu.Unlock()
	if m.genErr != nil {
		return manager.TokenEvent{}, m.genErr
	}
	var last manager.TokenEvent
	for _, ev := range m.events {
		if ev.Terminal() && m.beforeTerm != nil {
			m.beforeTerm()
		}
		if err := sink.Send(ctx, ev); err != nil {
			return manager.TokenEvent{Kind: manager.EventDone, Reason: manager.FinishClientCancelled}, nil
		}
		last = ev
	}
	return last, nil
}

func (m *mockService) Complete(ctx context.Context, req manager.GenerationRequest) (manager.Completion, error) {
	m.mu.Lock()
	m.lastReq = req
	m.mu.Unlock()
	return m.completion, m.compErr
}

func (m *mockService) ResolveModel(name string) string {
	if name == "" {
		return m.defaultModel
	}
	return name
}

func (m *mockService) request() manager.GenerationRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastReq
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestModelsHandler(t *testing.T) {
	svc := &mockService{models: []types.ModelStatus{{Name: "m1", State: "ready"}, {Name: "m2", State: "draining"}}}
	r := NewMux(svc, nil)
	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("content-type=%s", ct)
	}
	var body types.ModelsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.Object != "list" || len(body.Data) != 2 || body.Data[1].State != "draining" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestModelsHandler_EmptyIsArray(t *testing.T) {
	r := NewMux(&mockService{}, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/models", nil))
	if !strings.Contains(w.Body.String(), `"data":[]`) {
		t.Fatalf("body=%s", w.Body.String())
	}
}

func TestStatusHandler(t *testing.T) {
	svc := &mockService{status: types.StatusResponse{RequestsTotal: 10, AdmissionPolicy: "reject"}}
	r := NewMux(svc, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.RequestsTotal != 10 || body.AdmissionPolicy != "reject" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestHealthz(t *testing.T) {
	r := NewMux(&mockService{}, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("status=%d body=%q", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing nosniff header")
	}
}

func TestReadyz(t *testing.T) {
	svc := &mockService{ready: true}
	r := NewMux(svc, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestReadyz_NotReady(t *testing.T) {
	svc := &mockService{ready: false}
	r := NewMux(svc, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "loading") {
		t.Fatalf("body=%q", w.Body.String())
	}
}

func TestVersion(t *testing.T) {
	SetVersion("1.2.3")
	defer SetVersion("")
	r := NewMux(&mockService{}, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/version", nil))
	var body types.VersionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.Version != "1.2.3" {
		t.Fatalf("version=%q", body.Version)
	}
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	r := NewMux(&mockService{}, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body.Code != http.StatusNotFound {
		t.Fatalf("body=%s err=%v", w.Body.String(), err)
	}
}

func TestWrongMethod(t *testing.T) {
	r := NewMux(&mockService{}, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/chat/completions", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestChat_UnsupportedMediaType(t *testing.T) {
	r := NewMux(&mockService{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestChat_BadJSON(t *testing.T) {
	r := NewMux(&mockService{}, nil)
	w := postJSON(t, r, "/v1/chat/completions", `{"model":`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.Error != "invalid JSON body" || body.Code != 400 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestChat_BodyTooLarge(t *testing.T) {
	SetMaxBodyBytes(16)
	defer SetMaxBodyBytes(0)
	r := NewMux(&mockService{}, nil)
	w := postJSON(t, r, "/v1/chat/completions", `{"model":"m1","messages":[{"role":"user","content":"`+strings.Repeat("x", 64)+`"}]}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestChat_Validation(t *testing.T) {
	r := NewMux(&mockService{}, nil)
	cases := []struct {
		name, path, body string
	}{
		{"no messages", "/v1/chat/completions", `{"model":"m1"}`},
		{"empty messages", "/v1/chat/completions", `{"model":"m1","messages":[]}`},
		{"missing role", "/v1/chat/completions", `{"model":"m1","messages":[{"content":"hi"}]}`},
		{"no prompt", "/v1/completions", `{"model":"m1"}`},
		{"blank prompt", "/v1/completions", `{"model":"m1","prompt":"   "}`},
		{"negative max_tokens", "/v1/completions", `{"prompt":"x","max_tokens":-1}`},
		{"temperature range", "/v1/completions", `{"prompt":"x","temperature":3}`},
		{"top_p range", "/v1/completions", `{"prompt":"x","top_p":0}`},
	}
	for _, tc := range cases {
		w := postJSON(t, r, tc.path, tc.body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: status=%d body=%s", tc.name, w.Code, w.Body.String())
		}
	}
}

func TestAdmin_Load(t *testing.T) {
	svc := &mockService{loadStatus: types.ModelStatus{Name: "m1", State: "ready", MaxConcurrency: 2}}
	r := NewMux(svc, nil)
	w := postJSON(t, r, "/admin/models/load", `{"name":"m1","endpoint":"http://127.0.0.1:8081","max_concurrency":2}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var st types.ModelStatus
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("json: %v", err)
	}
	if st.Name != "m1" || st.State != "ready" {
		t.Fatalf("unexpected body: %+v", st)
	}
	if svc.lastSpec.Endpoint != "http://127.0.0.1:8081" || svc.lastSpec.MaxConcurrency != 2 {
		t.Fatalf("spec not forwarded: %+v", svc.lastSpec)
	}
}

func TestAdmin_LoadErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{manager.ErrAlreadyExists("m1"), http.StatusConflict},
		{manager.ErrBackendUnreachable("m1", context.DeadlineExceeded), http.StatusBadGateway},
		{manager.ErrInvalid("endpoint is required"), http.StatusBadRequest},
	}
	for _, tc := range cases {
		r := NewMux(&mockService{loadErr: tc.err}, nil)
		w := postJSON(t, r, "/admin/models/load", `{"name":"m1","endpoint":"http://h:1"}`)
		if w.Code != tc.want {
			t.Fatalf("%v: status=%d want %d", tc.err, w.Code, tc.want)
		}
	}
}

func TestAdmin_Unload(t *testing.T) {
	svc := &mockService{}
	r := NewMux(svc, nil)
	w := postJSON(t, r, "/admin/models/unload", `{"name":" m1 "}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.UnloadModelResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.Name != "m1" || body.State != "draining" || svc.unloaded != "m1" {
		t.Fatalf("unexpected body: %+v (unloaded=%q)", body, svc.unloaded)
	}
}

func TestAdmin_UnloadErrors(t *testing.T) {
	r := NewMux(&mockService{unloadErr: manager.ErrModelNotFound("ghost")}, nil)
	if w := postJSON(t, r, "/admin/models/unload", `{"name":"ghost"}`); w.Code != http.StatusNotFound {
		t.Fatalf("status=%d", w.Code)
	}
	if w := postJSON(t, r, "/admin/models/unload", `{"name":""}`); w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestCORS_Enabled(t *testing.T) {
	SetCORSOptions(true, nil, nil, nil)
	defer SetCORSOptions(false, nil, nil, nil)
	r := NewMux(&mockService{}, nil)
	req := httptest.NewRequest(http.MethodOptions, "/v1/chat/completions", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow-origin=%q", got)
	}
}

func TestRecovererTurnsPanicInto500(t *testing.T) {
	svc := &mockService{}
	r := NewMux(&panicService{svc}, nil)
	w := postJSON(t, r, "/v1/chat/completions", `{"model":"m1","messages":[{"role":"user","content":"hi"}],"stream":false}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", w.Code)
	}
}

type panicService struct{ *mockService }

func (p *panicService) Complete(context.Context, manager.GenerationRequest) (manager.Completion, error) {
	panic("slot released twice")
}
