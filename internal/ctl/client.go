// Package ctl implements llmgatectl, the command-line client for the
// gateway's OpenAI and admin endpoints.
package ctl

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"llmgate/pkg/types"
)

// Client talks to one gateway.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient returns a Client for baseURL. Streaming responses are not
// bounded by a client timeout; use the context instead.
func NewClient(baseURL string) *Client {
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: &http.Client{}}
}

// APIError is a non-2xx gateway response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		msg := gjson.GetBytes(raw, "error").String()
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return nil, &APIError{Status: resp.StatusCode, Message: msg}
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	resp, err := c.do(ctx, http.MethodPost, path, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}

// ListModels returns GET /v1/models.
func (c *Client) ListModels(ctx context.Context) ([]types.ModelStatus, error) {
	var out types.ModelsResponse
	if err := c.getJSON(ctx, "/v1/models", &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// Status returns GET /status.
func (c *Client) Status(ctx context.Context) (types.StatusResponse, error) {
	var out types.StatusResponse
	err := c.getJSON(ctx, "/status", &out)
	return out, err
}

// LoadModel registers spec.
func (c *Client) LoadModel(ctx context.Context, spec types.ModelSpec) (types.ModelStatus, error) {
	var out types.ModelStatus
	err := c.postJSON(ctx, "/admin/models/load", spec, &out)
	return out, err
}

// UnloadModel unregisters name and returns the resulting state.
func (c *Client) UnloadModel(ctx context.Context, name string) (types.UnloadModelResponse, error) {
	var out types.UnloadModelResponse
	err := c.postJSON(ctx, "/admin/models/unload", types.UnloadModelRequest{Name: name}, &out)
	return out, err
}

// Metrics copies the Prometheus exposition to w.
func (c *Client) Metrics(ctx context.Context, w io.Writer) error {
	resp, err := c.do(ctx, http.MethodGet, "/metrics", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, err = io.Copy(w, resp.Body)
	return err
}

// ChatResult summarizes a streamed chat.
type ChatResult struct {
	Content      string
	FinishReason string
	Chunks       int
}

// Chat streams a chat completion, writing each delta to w as it arrives.
// A mid-stream error frame is returned as an error after the partial
// content has been written.
func (c *Client) Chat(ctx context.Context, req types.ChatCompletionRequest, w io.Writer) (ChatResult, error) {
	stream := true
	req.Stream = &stream
	resp, err := c.do(ctx, http.MethodPost, "/v1/chat/completions", req)
	if err != nil {
		return ChatResult{}, err
	}
	defer resp.Body.Close()

	var (
		res ChatResult
		b   strings.Builder
	)
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for sc.Scan() {
		payload, ok := strings.CutPrefix(sc.Text(), "data:")
		if !ok {
			continue
		}
		payload = strings.TrimSpace(payload)
		if payload == "[DONE]" {
			res.Content = b.String()
			return res, nil
		}
		if msg := gjson.Get(payload, "error.message"); msg.Exists() {
			res.Content = b.String()
			return res, errors.New(msg.String())
		}
		res.Chunks++
		text := gjson.Get(payload, "choices.0.delta.content").String()
		if text == "" {
			text = gjson.Get(payload, "choices.0.text").String()
		}
		if text != "" {
			b.WriteString(text)
			if _, err := io.WriteString(w, text); err != nil {
				return res, err
			}
		}
		if fr := gjson.Get(payload, "choices.0.finish_reason"); fr.Type == gjson.String {
			res.FinishReason = fr.String()
		}
	}
	res.Content = b.String()
	if err := sc.Err(); err != nil {
		return res, err
	}
	return res, io.ErrUnexpectedEOF
}

// WaitReady polls GET /readyz until it returns 200 or timeout elapses.
func (c *Client) WaitReady(ctx context.Context, timeout, interval time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	for {
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/readyz", nil)
		resp, err := c.HTTP.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for %s/readyz", c.BaseURL)
		}
	}
}
