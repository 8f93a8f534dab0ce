package e2e

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"llmgate/internal/backendtest"
	"llmgate/internal/httpapi"
	"llmgate/internal/manager"
	"llmgate/internal/metrics"
	"llmgate/internal/registry"
)

// createManifestDir writes one YAML manifest per name, each pointing at
// endpoint, and returns the directory path.
func createManifestDir(t *testing.T, endpoint string, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		p := filepath.Join(dir, n+".yaml")
		body := "name: " + n + "\nendpoint: " + endpoint + "\nmax_concurrency: 1\n"
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatalf("write manifest %s: %v", p, err)
		}
	}
	return dir
}

// newServerForDir registers every manifest in dir and serves the gateway.
func newServerForDir(t *testing.T, dir string, cfg manager.ManagerConfig) (*httptest.Server, *manager.Manager, *metrics.Aggregator) {
	t.Helper()
	srv, mgr, agg := newServer(t, cfg)
	specs, err := registry.LoadDir(dir)
	if err != nil {
		t.Fatalf("load manifests: %v", err)
	}
	for _, s := range specs {
		if _, err := mgr.Register(context.Background(), s); err != nil {
			t.Fatalf("register %s: %v", s.Name, err)
		}
	}
	return srv, mgr, agg
}

// newServer serves a gateway with no models registered.
func newServer(t *testing.T, cfg manager.ManagerConfig) (*httptest.Server, *manager.Manager, *metrics.Aggregator) {
	t.Helper()
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	if cfg.BackendFactory == nil {
		cfg.BackendFactory = manager.NewBackendFactory(manager.BackendOptions{ConnectTimeout: time.Second})
	}
	mgr := manager.NewWithConfig(cfg)
	t.Cleanup(func() { _ = mgr.Close() })
	srv := httptest.NewServer(httpapi.NewMux(mgr, cfg.Metrics))
	t.Cleanup(srv.Close)
	return srv, mgr, cfg.Metrics
}

func newBackend(t *testing.T, tokens ...string) *backendtest.Backend {
	t.Helper()
	b := backendtest.NewOpenAI(tokens...)
	t.Cleanup(b.Close)
	return b
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url string, payload string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewBufferString(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

// sseData returns the payloads of every `data:` frame in body.
func sseData(body []byte) []string {
	var out []string
	for _, frame := range strings.Split(string(body), "\n\n") {
		if p, ok := strings.CutPrefix(frame, "data: "); ok {
			out = append(out, p)
		}
	}
	return out
}
