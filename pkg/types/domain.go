package types

// ModelSpec declares a backend-served model the gateway should register.
// Specs come from the config file, a manifest directory or the load endpoint.
type ModelSpec struct {
	// Unique model name used in requests.
	// example: m1
	Name string `json:"name" yaml:"name" toml:"name" example:"m1"`
	// Backend address (base URL for openai backends, host:port for grpc).
	// example: http://127.0.0.1:8081
	Endpoint string `json:"endpoint" yaml:"endpoint" toml:"endpoint" example:"http://127.0.0.1:8081"`
	// Maximum simultaneous in-flight decodes. Zero means the configured default.
	// example: 2
	MaxConcurrency int `json:"max_concurrency,omitempty" yaml:"max_concurrency" toml:"max_concurrency" example:"2"`
	// Backend kind: openai (default), llama-server, grpc.
	// example: openai
	Backend string `json:"backend,omitempty" yaml:"backend" toml:"backend" example:"openai"`
	// Context length of the backend model; caps max_tokens when set.
	// example: 2048
	ContextLength int `json:"context_length,omitempty" yaml:"context_length" toml:"context_length" example:"2048"`
	// Optional bearer token forwarded to the backend.
	APIKey string `json:"api_key,omitempty" yaml:"api_key" toml:"api_key"`
}

// Message is one role/content pair of a chat conversation.
type Message struct {
	// example: user
	Role string `json:"role" example:"user"`
	// example: Write a haiku about the ocean.
	Content string `json:"content" example:"Write a haiku about the ocean."`
}
