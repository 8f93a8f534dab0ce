package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"llmgate/internal/manager"
	"llmgate/pkg/types"
)

// decodeParams holds the optional sampling fields shared by both completion
// request shapes.
type decodeParams struct {
	maxTokens   *int
	temperature *float64
	topP        *float64
	stop        []string
	seed        *int64
}

// shape applies the configured defaults and caps.
func (p decodeParams) shape() (manager.DecodeParams, error) {
	out := manager.DecodeParams{
		MaxTokens:   limits.maxTokens,
		Temperature: limits.temperature,
		TopP:        limits.topP,
		Stop:        p.stop,
		Seed:        p.seed,
	}
	if p.maxTokens != nil {
		n := *p.maxTokens
		if n < 0 {
			return out, errors.New("max_tokens must be >= 0")
		}
		if n > 0 && (limits.maxTokens <= 0 || n < limits.maxTokens) {
			out.MaxTokens = n
		}
	}
	if p.temperature != nil {
		if *p.temperature < 0 || *p.temperature > 2 {
			return out, errors.New("temperature must be between 0 and 2")
		}
		out.Temperature = *p.temperature
	}
	if p.topP != nil {
		if *p.topP <= 0 || *p.topP > 1 {
			return out, errors.New("top_p must be in (0, 1]")
		}
		out.TopP = *p.topP
	}
	return out, nil
}

func streamRequested(v *bool) bool { return v == nil || *v }

func (a *api) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var body types.ChatCompletionRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if len(body.Messages) == 0 {
		writeJSONError(w, http.StatusBadRequest, "messages are required")
		return
	}
	for i, m := range body.Messages {
		if strings.TrimSpace(m.Role) == "" {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("messages[%d].role is required", i))
			return
		}
	}
	params, err := decodeParams{body.MaxTokens, body.Temperature, body.TopP, body.Stop, body.Seed}.shape()
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	a.serveCompletion(w, r, manager.GenerationRequest{
		Model:    strings.TrimSpace(body.Model),
		Messages: body.Messages,
		Params:   params,
		Stream:   streamRequested(body.Stream),
	}, true)
}

func (a *api) handleCompletions(w http.ResponseWriter, r *http.Request) {
	var body types.CompletionRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Prompt) == "" {
		writeJSONError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	params, err := decodeParams{body.MaxTokens, body.Temperature, body.TopP, body.Stop, body.Seed}.shape()
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	a.serveCompletion(w, r, manager.GenerationRequest{
		Model:  strings.TrimSpace(body.Model),
		Prompt: body.Prompt,
		Params: params,
		Stream: streamRequested(body.Stream),
	}, false)
}

func (a *api) serveCompletion(w http.ResponseWriter, r *http.Request, req manager.GenerationRequest, chat bool) {
	start := time.Now()
	lvl := requestLogLevel(r)
	// Responses echo the model that served the request.
	req.Model = a.svc.ResolveModel(req.Model)
	logStart(r, lvl, req.Model, req.Stream)

	// Join server base context with request context so shutdown cancels work too.
	ctx, cancel := requestContext(r.Context())
	defer cancel()

	if !req.Stream {
		c, err := a.svc.Complete(ctx, req)
		if err != nil {
			if r.Context().Err() != nil {
				logEnd(r, lvl, 499, start, "", err)
				return
			}
			logEnd(r, lvl, a.writeServiceError(w, err), start, "", err)
			return
		}
		writeJSON(w, completionResponse(req.Model, chat, c))
		logEnd(r, lvl, http.StatusOK, start, string(c.FinishReason), nil)
		return
	}

	var tee io.Writer
	if lvl >= LevelDebug {
		tee = &loggingLineWriter{reqID: middleware.GetReqID(r.Context())}
	}
	sink := newSSESink(w, req.Model, chat, tee)
	stop := sink.keepAlive(keepAliveInterval)
	term, err := a.svc.Generate(ctx, req, sink)
	stop()
	if err != nil {
		// If the client is gone there is nobody to answer.
		if r.Context().Err() != nil {
			logEnd(r, lvl, 499, start, "", err)
			return
		}
		logEnd(r, lvl, a.writeServiceError(w, err), start, "", err)
		return
	}
	if !sink.Started() {
		// Canceled before the first frame, e.g. by the request timeout.
		if r.Context().Err() == nil && ctx.Err() != nil {
			logEnd(r, lvl, a.writeServiceError(w, ctx.Err()), start, "", ctx.Err())
			return
		}
	}
	var termErr error
	if term.Message != "" {
		termErr = errors.New(term.Message)
	}
	logEnd(r, lvl, http.StatusOK, start, string(term.Reason), termErr)
}

func completionResponse(model string, chat bool, c manager.Completion) types.CompletionResponse {
	choice := types.CompletionChoice{FinishReason: string(c.FinishReason)}
	obj := objectCompletion
	if chat {
		obj = objectChat
		choice.Message = &types.Message{Role: "assistant", Content: c.Content}
	} else {
		text := c.Content
		choice.Text = &text
	}
	return types.CompletionResponse{
		ID:      newCompletionID(),
		Object:  obj,
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []types.CompletionChoice{choice},
		Usage:   types.Usage{CompletionTokens: c.Tokens},
	}
}
