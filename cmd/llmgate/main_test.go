package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"llmgate/internal/backendtest"
	"llmgate/internal/config"
	"llmgate/pkg/types"
)

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if strings.TrimSpace(out.String()) != version {
		t.Fatalf("out=%q", out.String())
	}
}

func TestCheckCommand_FlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "llmgate.yaml")
	if err := os.WriteFile(path, []byte("server:\n  addr: \":9000\"\nlimits:\n  admission: wait\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"check", "--config", path, "--env-file", filepath.Join(dir, "missing.env"), "--addr", ":9100"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out.String(), "addr=:9100") || !strings.Contains(out.String(), "admission=wait") {
		t.Fatalf("out=%q", out.String())
	}
}

func TestCheckCommand_InvalidConfig(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{"check", "--env-file", "", "--admission", "sometimes"})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "limits.admission") {
		t.Fatalf("err=%v", err)
	}
}

func TestApplyFlags_CORSOriginsEnableCORS(t *testing.T) {
	cmd := newRootCmd()
	if err := cmd.ParseFlags([]string{"--cors-origins", "http://a, http://b", "--denylist", "x,y"}); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	f := &serveFlags{corsOrigins: "http://a, http://b", denylist: "x,y"}
	applyFlags(cmd, f, &cfg)
	if !cfg.Server.CORSEnabled || len(cfg.Server.CORSOrigins) != 2 || len(cfg.Safety.Denylist) != 2 {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("unchanged flag overrode addr: %q", cfg.Server.Addr)
	}
}

func waitHTTP(t *testing.T, url string, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == want {
				return
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("%s did not return %d in time", url, want)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestServe_EndToEnd(t *testing.T) {
	backend := backendtest.NewOpenAI("Hel", "lo")
	defer backend.Close()

	manifests := t.TempDir()
	if err := os.WriteFile(filepath.Join(manifests, "beta.yaml"), []byte("endpoint: "+backend.URL+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	denyFile := filepath.Join(t.TempDir(), "deny.txt")
	if err := os.WriteFile(denyFile, []byte("# comment\nforbidden\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Models = []types.ModelSpec{
		{Name: "alpha", Endpoint: backend.URL, MaxConcurrency: 1},
		{Name: "down", Endpoint: "http://127.0.0.1:1"},
	}
	cfg.ModelsDir = manifests
	cfg.Server.DefaultModel = "alpha"
	cfg.Safety.DenylistFile = denyFile
	cfg.Limits.ProbeTimeout = config.Duration(500 * time.Millisecond)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	base := "http://" + ln.Addr().String()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, zerolog.Nop(), ln) }()
	defer func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("serve: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Errorf("serve did not stop")
		}
	}()

	waitHTTP(t, base+"/readyz", http.StatusOK)

	resp, err := http.Get(base + "/v1/models")
	if err != nil {
		t.Fatal(err)
	}
	var models types.ModelsResponse
	_ = json.NewDecoder(resp.Body).Decode(&models)
	resp.Body.Close()
	var names []string
	for _, m := range models.Data {
		names = append(names, m.Name)
	}
	if fmt.Sprint(names) != "[alpha beta]" {
		t.Fatalf("models=%v (unreachable backend must not be registered)", names)
	}

	resp, err = http.Post(base+"/v1/chat/completions", "application/json",
		strings.NewReader(`{"messages":[{"role":"user","content":"hi"}],"stream":false}`))
	if err != nil {
		t.Fatal(err)
	}
	var out types.CompletionResponse
	_ = json.NewDecoder(resp.Body).Decode(&out)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || out.Choices[0].Message.Content != "Hello" {
		t.Fatalf("status=%d body=%+v", resp.StatusCode, out)
	}

	resp, err = http.Post(base+"/v1/completions", "application/json", strings.NewReader(`{"model":"beta","prompt":"say forbidden things"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("denylist from file not applied: status=%d", resp.StatusCode)
	}
}
