package httpapi

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"llmgate/internal/metrics"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("/metrics status=%d", w.Code)
	}
	b, _ := io.ReadAll(w.Body)
	return string(b)
}

// TestMetricsMiddleware_UsesRoutePattern ensures the metrics middleware labels
// by the chi route pattern instead of the raw URL path.
func TestMetricsMiddleware_UsesRoutePattern(t *testing.T) {
	agg := metrics.New()
	r := chi.NewRouter()
	r.Use(MetricsMiddleware(agg))
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/items/42", nil))
	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected 418, got %d", rr.Code)
	}

	body := scrape(t, agg.Handler())
	if !strings.Contains(body, `llmgate_http_requests_total{method="GET",path="/items/{id}",status="418"} 1`) {
		t.Fatalf("route pattern label missing:\n%s", body)
	}
}

func TestMetricsMiddleware_DefaultStatusIs200(t *testing.T) {
	agg := metrics.New()
	h := MetricsMiddleware(agg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/plain", nil))
	if body := scrape(t, agg.Handler()); !strings.Contains(body, `path="/plain",status="200"`) {
		t.Fatalf("missing 200 sample:\n%s", body)
	}
}

func TestMetricsMiddleware_KeepsFlusher(t *testing.T) {
	agg := metrics.New()
	var flusher bool
	h := MetricsMiddleware(agg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, flusher = w.(http.Flusher)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/sse", nil))
	if !flusher {
		t.Fatalf("wrapped writer lost http.Flusher")
	}
}

func TestMetricsEndpointMounted(t *testing.T) {
	agg := metrics.New()
	agg.RequestStarted()
	agg.AddTokens(5)
	r := NewMux(&mockService{}, agg)
	body := scrape(t, r)
	for _, want := range []string{"llmgate_requests_total 1", "llmgate_tokens_total 5", "llmgate_active_requests 1"} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in:\n%s", want, body)
		}
	}
}

func TestMetricsEndpointAbsentWithoutAggregator(t *testing.T) {
	r := NewMux(&mockService{}, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d", w.Code)
	}
}
