package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"llmgate/internal/manager"
	"llmgate/internal/metrics"
	"llmgate/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	ListModels() []types.ModelStatus
	Status() types.StatusResponse
	Ready() bool
	LoadModel(ctx context.Context, spec types.ModelSpec) (types.ModelStatus, error)
	UnloadModel(name string) (string, error)
	Generate(ctx context.Context, req manager.GenerationRequest, sink manager.EventSink) (manager.TokenEvent, error)
	Complete(ctx context.Context, req manager.GenerationRequest) (manager.Completion, error)
	ResolveModel(name string) string
}

type api struct {
	svc Service
	agg *metrics.Aggregator
}

// NewMux builds the gateway router. agg may be nil, in which case /metrics
// is not mounted and request metrics are not recorded.
func NewMux(svc Service, agg *metrics.Aggregator) http.Handler {
	a := &api{svc: svc, agg: agg}
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints; text/event-stream is not in the default
	// type list, so SSE frames are never buffered by the compressor.
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: orStrings(corsAllowedOrigins, "*"),
			AllowedMethods: orStrings(corsAllowedMethods, http.MethodGet, http.MethodPost, http.MethodOptions),
			AllowedHeaders: orStrings(corsAllowedHeaders, "Accept", "Authorization", "Content-Type", "X-Log-Level", "X-Request-Id"),
			ExposedHeaders: []string{"Retry-After", "X-Request-Id"},
			MaxAge:         300,
		}))
	}
	if agg != nil {
		r.Use(MetricsMiddleware(agg))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("loading"))
	})

	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, types.VersionResponse{Version: version})
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Status())
	})

	r.Get("/v1/models", a.handleListModels)
	r.Post("/v1/chat/completions", a.handleChatCompletions)
	r.Post("/v1/completions", a.handleCompletions)

	r.Route("/admin/models", func(r chi.Router) {
		r.Post("/load", a.handleLoadModel)
		r.Post("/unload", a.handleUnloadModel)
	})

	if agg != nil {
		r.Method(http.MethodGet, "/metrics", agg.Handler())
	}

	MountSwagger(r)
	return r
}

func (a *api) handleListModels(w http.ResponseWriter, r *http.Request) {
	data := a.svc.ListModels()
	if data == nil {
		data = []types.ModelStatus{}
	}
	writeJSON(w, types.ModelsResponse{Object: "list", Data: data})
}

// decodeJSON enforces the content type and body limit and decodes into v.
// It writes the error response and returns false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// Oversized bodies are reported as 400 as well, without size details.
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
