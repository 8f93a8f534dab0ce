package types

// ChatCompletionRequest is the body of POST /v1/chat/completions.
type ChatCompletionRequest struct {
	// Registered model name.
	// example: m1
	Model string `json:"model" example:"m1"`
	// Conversation messages in order.
	Messages []Message `json:"messages"`
	// Stream deltas as server-sent events. Defaults to true when omitted.
	// example: true
	Stream *bool `json:"stream,omitempty" example:"true"`
	// Maximum number of new tokens; capped by the gateway limit.
	// example: 128
	MaxTokens *int `json:"max_tokens,omitempty" example:"128"`
	// Sampling temperature.
	// example: 0.7
	Temperature *float64 `json:"temperature,omitempty" example:"0.7"`
	// Nucleus sampling probability.
	// example: 0.95
	TopP *float64 `json:"top_p,omitempty" example:"0.95"`
	// Optional stop sequences.
	Stop []string `json:"stop,omitempty"`
	// Random seed passed through to the backend.
	// example: 42
	Seed *int64 `json:"seed,omitempty" example:"42"`
}

// CompletionRequest is the body of POST /v1/completions.
type CompletionRequest struct {
	// example: m1
	Model string `json:"model" example:"m1"`
	// Raw prompt text.
	// example: Once upon a time
	Prompt    string   `json:"prompt" example:"Once upon a time"`
	Stream    *bool    `json:"stream,omitempty"`
	MaxTokens *int     `json:"max_tokens,omitempty"`
	// example: 0.7
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	Stop        []string `json:"stop,omitempty"`
	Seed        *int64   `json:"seed,omitempty"`
}

// ChatDelta is the incremental part of a streamed chat chunk.
type ChatDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// ChunkChoice is one choice of a streamed chunk.
type ChunkChoice struct {
	Index        int        `json:"index"`
	Delta        *ChatDelta `json:"delta,omitempty"`
	Text         *string    `json:"text,omitempty"`
	FinishReason *string    `json:"finish_reason"`
}

// CompletionChunk is the payload of one `data:` frame of a streamed response.
// Object is chat.completion.chunk or text_completion.
type CompletionChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
}

// CompletionChoice is one choice of a non-streamed response.
type CompletionChoice struct {
	Index        int      `json:"index"`
	Message      *Message `json:"message,omitempty"`
	Text         *string  `json:"text,omitempty"`
	FinishReason string   `json:"finish_reason"`
}

// Usage reports token accounting for a non-streamed response.
type Usage struct {
	CompletionTokens int `json:"completion_tokens"`
}

// CompletionResponse is the body of a non-streamed completion.
// Object is chat.completion or text_completion.
type CompletionResponse struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []CompletionChoice `json:"choices"`
	Usage   Usage              `json:"usage"`
}

// StreamError is sent as a `data:` frame when a stream fails mid-generation.
type StreamError struct {
	Error StreamErrorBody `json:"error"`
}

// StreamErrorBody describes a mid-stream failure.
type StreamErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// ModelStatus is one entry of GET /v1/models.
type ModelStatus struct {
	// example: m1
	Name string `json:"name" example:"m1"`
	// Lifecycle state: registering, ready, draining, unloaded.
	// example: ready
	State string `json:"state" example:"ready"`
	// In-flight decodes.
	// example: 1
	Active int `json:"active" example:"1"`
	// example: 2
	MaxConcurrency int `json:"max_concurrency" example:"2"`
	// example: openai
	Backend string `json:"backend,omitempty" example:"openai"`
	// example: http://127.0.0.1:8081
	Endpoint string `json:"endpoint,omitempty" example:"http://127.0.0.1:8081"`
}

// ModelsResponse wraps the list returned by GET /v1/models.
type ModelsResponse struct {
	Object string        `json:"object"`
	Data   []ModelStatus `json:"data"`
}

// LoadModelRequest is the body of POST /admin/models/load.
type LoadModelRequest = ModelSpec

// UnloadModelRequest is the body of POST /admin/models/unload.
type UnloadModelRequest struct {
	// example: m1
	Name string `json:"name" example:"m1"`
}

// UnloadModelResponse reports the state after an unload request.
type UnloadModelResponse struct {
	Name string `json:"name"`
	// draining when requests are still in flight, unloaded otherwise.
	// example: unloaded
	State string `json:"state" example:"unloaded"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// VersionResponse is returned by GET /version.
type VersionResponse struct {
	// example: 0.3.0
	Version string `json:"version" example:"0.3.0"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	Models []ModelStatus `json:"models"`
	// example: 12
	RequestsTotal uint64 `json:"requests_total" example:"12"`
	// example: 480
	TokensTotal uint64 `json:"tokens_total" example:"480"`
	// example: 1
	ActiveRequests int64 `json:"active_requests" example:"1"`
	// example: 2
	ModelsLoaded int64 `json:"models_loaded" example:"2"`
	// Admission policy in effect: reject or wait.
	// example: reject
	AdmissionPolicy string `json:"admission_policy" example:"reject"`
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
	// Number of models currently draining.
	// example: 1
	DrainingCount int `json:"draining_count" example:"1"`
}
