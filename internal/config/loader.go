package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"llmgate/internal/common/fsutil"
)

// EnvPrefix prefixes environment overrides; nested keys are joined by "__"
// (LLMGATE_LIMITS__MAX_TOKENS).
const EnvPrefix = "LLMGATE_"

// Load reads a configuration file based on its extension on top of Default.
// Supports: .yaml/.yml, .json, .toml. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	p, err := fsutil.Resolve(path)
	if err != nil {
		return cfg, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return cfg, err
	}
	if err := Decode(p, b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", p, err)
	}
	return cfg, nil
}

// Decode unmarshals b into v using the format implied by name's extension.
func Decode(name string, b []byte, v any) error {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, v)
	case ".json":
		return json.Unmarshal(b, v)
	case ".toml":
		return toml.Unmarshal(b, v)
	default:
		return fmt.Errorf("unsupported config extension: %s", ext)
	}
}

// LoadDotEnv loads KEY=VALUE pairs from files into the process environment
// without overriding variables that are already set. Missing files are
// skipped.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if !fsutil.Exists(f) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// envSetters maps override keys (after EnvPrefix) onto config fields.
var envSetters = map[string]func(*Config, string) error{
	"SERVER__ADDR":             func(c *Config, v string) error { c.Server.Addr = v; return nil },
	"SERVER__DEFAULT_MODEL":    func(c *Config, v string) error { c.Server.DefaultModel = v; return nil },
	"SERVER__REQUEST_TIMEOUT":  func(c *Config, v string) error { return c.Server.RequestTimeout.UnmarshalText([]byte(v)) },
	"SERVER__SHUTDOWN_TIMEOUT": func(c *Config, v string) error { return c.Server.ShutdownTimeout.UnmarshalText([]byte(v)) },
	"SERVER__MAX_BODY_BYTES":   func(c *Config, v string) error { return parseInt64(v, &c.Server.MaxBodyBytes) },
	"SERVER__CORS_ENABLED":     func(c *Config, v string) error { return parseBool(v, &c.Server.CORSEnabled) },
	"SERVER__CORS_ORIGINS":     func(c *Config, v string) error { c.Server.CORSOrigins = splitList(v); return nil },
	"LIMITS__MAX_TOKENS":       func(c *Config, v string) error { return parseInt(v, &c.Limits.MaxTokens) },
	"LIMITS__MAX_CONCURRENT":   func(c *Config, v string) error { return parseInt(v, &c.Limits.MaxConcurrent) },
	"LIMITS__ADMISSION":        func(c *Config, v string) error { c.Limits.Admission = strings.ToLower(v); return nil },
	"LIMITS__QUEUE_DEPTH":      func(c *Config, v string) error { return parseInt(v, &c.Limits.QueueDepth) },
	"LIMITS__MAX_WAIT":         func(c *Config, v string) error { return c.Limits.MaxWait.UnmarshalText([]byte(v)) },
	"LIMITS__PROBE_TIMEOUT":    func(c *Config, v string) error { return c.Limits.ProbeTimeout.UnmarshalText([]byte(v)) },
	"LIMITS__BACKEND_TIMEOUT":  func(c *Config, v string) error { return c.Limits.BackendTimeout.UnmarshalText([]byte(v)) },
	"LIMITS__TEMPERATURE":      func(c *Config, v string) error { return parseFloat(v, &c.Limits.Temperature) },
	"LIMITS__TOP_P":            func(c *Config, v string) error { return parseFloat(v, &c.Limits.TopP) },
	"MODELS_DIR":               func(c *Config, v string) error { c.ModelsDir = v; return nil },
	"WATCH_MODELS_DIR":         func(c *Config, v string) error { return parseBool(v, &c.WatchModelsDir) },
	"SAFETY__DENYLIST":         func(c *Config, v string) error { c.Safety.Denylist = splitList(v); return nil },
	"SAFETY__DENYLIST_FILE":    func(c *Config, v string) error { c.Safety.DenylistFile = v; return nil },
	"SAFETY__WATCH":            func(c *Config, v string) error { return parseBool(v, &c.Safety.Watch) },
	"LOG__LEVEL":               func(c *Config, v string) error { c.Log.Level = v; return nil },
	"LOG__FORMAT":              func(c *Config, v string) error { c.Log.Format = v; return nil },
}

// ApplyEnv overrides cfg from environment variables found by lookup
// (os.LookupEnv when nil). Unknown LLMGATE_ keys are ignored.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	var errs []error
	for key, set := range envSetters {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			continue
		}
		if err := set(cfg, strings.TrimSpace(v)); err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
		}
	}
	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseInt(v string, dst *int) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func parseInt64(v string, dst *int64) error {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func parseFloat(v string, dst *float64) error {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return err
	}
	*dst = f
	return nil
}

func parseBool(v string, dst *bool) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}
	*dst = b
	return nil
}
