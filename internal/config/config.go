package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"llmgate/pkg/types"
)

// Config holds runtime parameters for the gateway.
type Config struct {
	Server ServerConfig `json:"server" yaml:"server" toml:"server"`
	Limits LimitsConfig `json:"limits" yaml:"limits" toml:"limits"`
	// Models are registered at startup.
	Models []types.ModelSpec `json:"models" yaml:"models" toml:"models"`
	// ModelsDir holds one manifest per model (*.yaml, *.yml, *.toml, *.json).
	ModelsDir string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	// WatchModelsDir registers manifests added to ModelsDir while running.
	WatchModelsDir bool         `json:"watch_models_dir" yaml:"watch_models_dir" toml:"watch_models_dir"`
	Safety         SafetyConfig `json:"safety" yaml:"safety" toml:"safety"`
	Log            LogConfig    `json:"log" yaml:"log" toml:"log"`
}

type ServerConfig struct {
	Addr           string   `json:"addr" yaml:"addr" toml:"addr"`
	DefaultModel   string   `json:"default_model" yaml:"default_model" toml:"default_model"`
	RequestTimeout Duration `json:"request_timeout" yaml:"request_timeout" toml:"request_timeout"`
	MaxBodyBytes   int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	CORSEnabled    bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins    []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

type LimitsConfig struct {
	// MaxTokens is the default and the cap for max_tokens.
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
	// MaxConcurrent applies to models that do not set max_concurrency.
	MaxConcurrent int `json:"max_concurrent" yaml:"max_concurrent" toml:"max_concurrent"`
	// Admission is reject or wait.
	Admission    string   `json:"admission" yaml:"admission" toml:"admission"`
	QueueDepth   int      `json:"queue_depth" yaml:"queue_depth" toml:"queue_depth"`
	MaxWait      Duration `json:"max_wait" yaml:"max_wait" toml:"max_wait"`
	ProbeTimeout Duration `json:"probe_timeout" yaml:"probe_timeout" toml:"probe_timeout"`
	// BackendTimeout bounds a whole backend call; zero disables it.
	BackendTimeout Duration `json:"backend_timeout" yaml:"backend_timeout" toml:"backend_timeout"`
	Temperature    float64  `json:"temperature" yaml:"temperature" toml:"temperature"`
	TopP           float64  `json:"top_p" yaml:"top_p" toml:"top_p"`
}

type SafetyConfig struct {
	// Denylist terms are matched case-insensitively as substrings.
	Denylist []string `json:"denylist" yaml:"denylist" toml:"denylist"`
	// DenylistFile adds one term per line; reloaded on change when Watch is set.
	DenylistFile string `json:"denylist_file" yaml:"denylist_file" toml:"denylist_file"`
	Watch        bool   `json:"watch" yaml:"watch" toml:"watch"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level" toml:"level"`
	Format string `json:"format" yaml:"format" toml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			MaxBodyBytes:    1 << 20,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Limits: LimitsConfig{
			MaxTokens:     512,
			MaxConcurrent: 2,
			Admission:     "reject",
			QueueDepth:    32,
			MaxWait:       Duration(30 * time.Second),
			ProbeTimeout:  Duration(5 * time.Second),
			Temperature:   0.7,
			TopP:          0.95,
		},
		Log: LogConfig{Level: "info", Format: "console"},
	}
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("server.max_body_bytes must be > 0, got %d", c.Server.MaxBodyBytes))
	}
	if c.Limits.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("limits.max_tokens must be > 0, got %d", c.Limits.MaxTokens))
	}
	if c.Limits.MaxConcurrent <= 0 {
		errs = append(errs, fmt.Errorf("limits.max_concurrent must be > 0, got %d", c.Limits.MaxConcurrent))
	}
	switch c.Limits.Admission {
	case "reject", "wait":
	default:
		errs = append(errs, fmt.Errorf("limits.admission must be reject or wait, got %q", c.Limits.Admission))
	}
	if c.Limits.QueueDepth <= 0 {
		errs = append(errs, fmt.Errorf("limits.queue_depth must be > 0, got %d", c.Limits.QueueDepth))
	}
	if c.Limits.Temperature < 0 || c.Limits.Temperature > 2 {
		errs = append(errs, fmt.Errorf("limits.temperature must be within [0,2], got %v", c.Limits.Temperature))
	}
	if c.Limits.TopP <= 0 || c.Limits.TopP > 1 {
		errs = append(errs, fmt.Errorf("limits.top_p must be within (0,1], got %v", c.Limits.TopP))
	}
	seen := map[string]bool{}
	for i, m := range c.Models {
		switch {
		case strings.TrimSpace(m.Name) == "":
			errs = append(errs, fmt.Errorf("models[%d].name is required", i))
		case seen[m.Name]:
			errs = append(errs, fmt.Errorf("models[%d]: duplicate name %q", i, m.Name))
		}
		seen[m.Name] = true
		if strings.TrimSpace(m.Endpoint) == "" {
			errs = append(errs, fmt.Errorf("models[%d].endpoint is required", i))
		}
		if m.MaxConcurrency < 0 {
			errs = append(errs, fmt.Errorf("models[%d].max_concurrency must be >= 0", i))
		}
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be console or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// Duration is a time.Duration written as a Go duration string ("30s").
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) { return []byte(time.Duration(d).String()), nil }

func (d *Duration) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}
