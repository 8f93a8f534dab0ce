package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmgate/pkg/types"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644), "write %s", name)
	return p
}

const yamlConfig = `
server:
  addr: ":9999"
  request_timeout: 2m
limits:
  max_tokens: 256
  admission: wait
  max_wait: 5s
models:
  - name: m1
    endpoint: http://127.0.0.1:8081
    max_concurrency: 1
safety:
  denylist: [forbidden, "secret plan"]
log:
  level: debug
  format: json
`

func TestLoadYAML(t *testing.T) {
	p := writeTempFile(t, t.TempDir(), "cfg.yaml", yamlConfig)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, 2*time.Minute, cfg.Server.RequestTimeout.Std())
	assert.Equal(t, 256, cfg.Limits.MaxTokens)
	assert.Equal(t, "wait", cfg.Limits.Admission)
	assert.Equal(t, 5*time.Second, cfg.Limits.MaxWait.Std())
	require.Len(t, cfg.Models, 1)
	assert.Equal(t, "m1", cfg.Models[0].Name)
	assert.Equal(t, 1, cfg.Models[0].MaxConcurrency)
	assert.Equal(t, []string{"forbidden", "secret plan"}, cfg.Safety.Denylist)
	assert.Equal(t, "json", cfg.Log.Format)
	// Unset keys keep their defaults.
	assert.Equal(t, 2, cfg.Limits.MaxConcurrent)
	assert.Equal(t, 0.95, cfg.Limits.TopP)
	assert.NoError(t, cfg.Validate())
}

func TestLoadJSON(t *testing.T) {
	p := writeTempFile(t, t.TempDir(), "cfg.json", `{"server":{"addr":":7070","default_model":"m2"},"limits":{"max_concurrent":4,"probe_timeout":"1s"},"models_dir":"/m"}`)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "m2", cfg.Server.DefaultModel)
	assert.Equal(t, 4, cfg.Limits.MaxConcurrent)
	assert.Equal(t, time.Second, cfg.Limits.ProbeTimeout.Std())
	assert.Equal(t, "/m", cfg.ModelsDir)
}

func TestLoadTOML(t *testing.T) {
	p := writeTempFile(t, t.TempDir(), "cfg.toml", `
models_dir = "/x"

[server]
addr = ":8081"

[limits]
max_tokens = 9
max_wait = "250ms"

[[models]]
name = "m3"
endpoint = "http://h:1"
backend = "grpc"
`)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, ":8081", cfg.Server.Addr)
	assert.Equal(t, 9, cfg.Limits.MaxTokens)
	assert.Equal(t, 250*time.Millisecond, cfg.Limits.MaxWait.Std())
	require.Len(t, cfg.Models, 1)
	assert.Equal(t, "grpc", cfg.Models[0].Backend)
	assert.Equal(t, "/x", cfg.ModelsDir)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoadErrors(t *testing.T) {
	d := t.TempDir()
	cases := map[string]string{
		"cfg.txt":  "not supported",
		"bad.yaml": "server:\n  addr: [unclosed\n",
		"bad.json": `{ "server": { "addr": ":8080" }, "models_dir": }`,
		"bad.toml": "models_dir = \"/x\"\nmodels_dir\n",
		"dur.yaml": "limits:\n  max_wait: soon\n",
		"int.yaml": "limits:\n  max_tokens: many\n",
	}
	for name, content := range cases {
		p := writeTempFile(t, d, name, content)
		_, err := Load(p)
		assert.Error(t, err, name)
	}
	_, err := Load("/definitely/not/a/real/file-12345.yaml")
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"LLMGATE_SERVER__ADDR":           ":1234",
		"LLMGATE_LIMITS__MAX_CONCURRENT": "8",
		"LLMGATE_LIMITS__ADMISSION":      "WAIT",
		"LLMGATE_LIMITS__MAX_WAIT":       "3s",
		"LLMGATE_LIMITS__TOP_P":          "0.5",
		"LLMGATE_SAFETY__DENYLIST":       "a, b ,,c",
		"LLMGATE_SERVER__CORS_ENABLED":   "true",
		"LLMGATE_UNKNOWN":                "ignored",
	}
	cfg := Default()
	require.NoError(t, ApplyEnv(&cfg, func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}))
	assert.Equal(t, ":1234", cfg.Server.Addr)
	assert.Equal(t, 8, cfg.Limits.MaxConcurrent)
	assert.Equal(t, "wait", cfg.Limits.Admission)
	assert.Equal(t, 3*time.Second, cfg.Limits.MaxWait.Std())
	assert.Equal(t, 0.5, cfg.Limits.TopP)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Safety.Denylist)
	assert.True(t, cfg.Server.CORSEnabled)
}

func TestApplyEnvReportsBadValues(t *testing.T) {
	cfg := Default()
	err := ApplyEnv(&cfg, func(k string) (string, bool) {
		if k == "LLMGATE_LIMITS__MAX_TOKENS" {
			return "many", true
		}
		return "", false
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LLMGATE_LIMITS__MAX_TOKENS")
	assert.Equal(t, 512, cfg.Limits.MaxTokens)
}

func TestLoadDotEnv(t *testing.T) {
	p := writeTempFile(t, t.TempDir(), ".env", "LLMGATE_TEST_DOTENV=from-file\nLLMGATE_TEST_DOTENV_KEEP=from-file\n")
	t.Setenv("LLMGATE_TEST_DOTENV_KEEP", "process")
	require.NoError(t, LoadDotEnv(p, filepath.Join(t.TempDir(), "missing.env")))
	t.Cleanup(func() { _ = os.Unsetenv("LLMGATE_TEST_DOTENV") })
	assert.Equal(t, "from-file", os.Getenv("LLMGATE_TEST_DOTENV"))
	assert.Equal(t, "process", os.Getenv("LLMGATE_TEST_DOTENV_KEEP"))
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Limits.Admission = "maybe"
	cfg.Limits.MaxConcurrent = 0
	cfg.Limits.TopP = 1.5
	cfg.Log.Format = "xml"
	cfg.Models = []types.ModelSpec{
		{Name: "m", Endpoint: "http://h:1"},
		{Name: "m"},
	}
	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"limits.admission", "limits.max_concurrent", "limits.top_p", "log.format", "duplicate name", "models[1].endpoint"} {
		assert.Contains(t, err.Error(), want)
	}
}
