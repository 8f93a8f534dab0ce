package httpapi

import "time"

// maxBodyBytes controls the maximum allowed request body size for JSON endpoints.
// Default is 1 MiB.
var maxBodyBytes int64 = 1 << 20

// SetMaxBodyBytes allows configuring the maximum request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 1 << 20
		return
	}
	maxBodyBytes = n
}

// requestTimeout bounds a completion request end to end. Zero means no
// additional timeout beyond server/connection timeouts.
var requestTimeout time.Duration

// SetRequestTimeout sets the completion timeout (0 disables).
func SetRequestTimeout(d time.Duration) {
	if d < 0 {
		d = 0
	}
	requestTimeout = d
}

// keepAliveInterval is the period of SSE comment frames on an open stream.
var keepAliveInterval = 10 * time.Second

// SetKeepAlive sets the SSE keep-alive period; non-positive restores the default.
func SetKeepAlive(d time.Duration) {
	if d <= 0 {
		d = 10 * time.Second
	}
	keepAliveInterval = d
}

// version is reported by GET /version.
var version = "dev"

// SetVersion sets the build identifier reported by GET /version.
func SetVersion(v string) {
	if v == "" {
		v = "dev"
	}
	version = v
}

// Decode defaults applied to completion requests.
var limits = struct {
	maxTokens   int
	temperature float64
	topP        float64
}{maxTokens: 512, temperature: 0.7, topP: 0.95}

// SetLimits configures the max_tokens default and cap and the sampling
// defaults. maxTokens <= 0 disables the cap.
func SetLimits(maxTokens int, temperature, topP float64) {
	limits.maxTokens = maxTokens
	limits.temperature = temperature
	limits.topP = topP
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server. Empty lists
// fall back to permissive defaults.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}

func orStrings(v []string, def ...string) []string {
	if len(v) == 0 {
		return def
	}
	return v
}
