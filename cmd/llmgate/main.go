package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"llmgate/internal/config"
	"llmgate/internal/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// serveFlags are command-line overrides applied on top of the config file
// and LLMGATE_ environment variables.
type serveFlags struct {
	configPath    string
	envFile       string
	addr          string
	modelsDir     string
	watchModels   bool
	defaultModel  string
	admission     string
	maxConcurrent int
	maxTokens     int
	denylist      string
	denylistFile  string
	corsOrigins   string
	logLevel      string
	logFormat     string
}

func newRootCmd() *cobra.Command {
	f := &serveFlags{}
	root := &cobra.Command{
		Use:           "llmgate",
		Short:         "OpenAI-compatible gateway for self-hosted LLM backends",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          func(cmd *cobra.Command, args []string) error { return runServe(cmd, f) },
	}
	root.PersistentFlags().StringVarP(&f.configPath, "config", "c", os.Getenv("LLMGATE_CONFIG"), "Config file (.yaml, .yml, .toml, .json)")
	root.PersistentFlags().StringVar(&f.envFile, "env-file", ".env", "Dotenv file loaded before reading LLMGATE_ variables")
	addServeFlags(root, f)

	serveCmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the gateway (default command)",
		Example: "  llmgate serve --config llmgate.yaml\n  llmgate serve --addr :9090 --models-dir ~/models/manifests",
		RunE:    func(cmd *cobra.Command, args []string) error { return runServe(cmd, f) },
	}
	addServeFlags(serveCmd, f)
	root.AddCommand(serveCmd)

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version)
			return err
		},
	})

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Load and validate the configuration, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "config ok: addr=%s models=%d models_dir=%q admission=%s\n",
				cfg.Server.Addr, len(cfg.Models), cfg.ModelsDir, cfg.Limits.Admission)
			return err
		},
	}
	addServeFlags(checkCmd, f)
	root.AddCommand(checkCmd)
	return root
}

func addServeFlags(cmd *cobra.Command, f *serveFlags) {
	fs := cmd.Flags()
	fs.StringVar(&f.addr, "addr", "", "HTTP listen address, e.g. :8080")
	fs.StringVar(&f.modelsDir, "models-dir", "", "Directory of model manifests registered at startup")
	fs.BoolVar(&f.watchModels, "watch-models", false, "Register manifests added to --models-dir while running")
	fs.StringVar(&f.defaultModel, "default-model", "", "Model used when a request omits model")
	fs.StringVar(&f.admission, "admission", "", "At-capacity policy: reject or wait")
	fs.IntVar(&f.maxConcurrent, "max-concurrent", 0, "Default max_concurrency for models that do not set one")
	fs.IntVar(&f.maxTokens, "max-tokens", 0, "Default and cap for max_tokens")
	fs.StringVar(&f.denylist, "denylist", "", "Comma-separated safety denylist terms")
	fs.StringVar(&f.denylistFile, "denylist-file", "", "File with one denylist term per line")
	fs.StringVar(&f.corsOrigins, "cors-origins", "", "Comma-separated allowed CORS origins; enables CORS")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level: trace|debug|info|warn|error")
	fs.StringVar(&f.logFormat, "log-format", "", "Log format: console|json")
}

// loadConfig resolves the configuration: defaults, file, .env and
// LLMGATE_ variables, then flags that were set explicitly.
func loadConfig(cmd *cobra.Command, f *serveFlags) (config.Config, error) {
	if err := config.LoadDotEnv(f.envFile); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return cfg, err
	}
	if err := config.ApplyEnv(&cfg, nil); err != nil {
		return cfg, err
	}
	applyFlags(cmd, f, &cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, f *serveFlags, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("addr") {
		cfg.Server.Addr = f.addr
	}
	if changed("models-dir") {
		cfg.ModelsDir = f.modelsDir
	}
	if changed("watch-models") {
		cfg.WatchModelsDir = f.watchModels
	}
	if changed("default-model") {
		cfg.Server.DefaultModel = f.defaultModel
	}
	if changed("admission") {
		cfg.Limits.Admission = strings.ToLower(f.admission)
	}
	if changed("max-concurrent") {
		cfg.Limits.MaxConcurrent = f.maxConcurrent
	}
	if changed("max-tokens") {
		cfg.Limits.MaxTokens = f.maxTokens
	}
	if changed("denylist") {
		cfg.Safety.Denylist = splitCSV(f.denylist)
	}
	if changed("denylist-file") {
		cfg.Safety.DenylistFile = f.denylistFile
	}
	if changed("cors-origins") {
		cfg.Server.CORSEnabled = true
		cfg.Server.CORSOrigins = splitCSV(f.corsOrigins)
	}
	if changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if changed("log-format") {
		cfg.Log.Format = f.logFormat
	}
}

func runServe(cmd *cobra.Command, f *serveFlags) error {
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	// Graceful shutdown (Ctrl+C / SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.Addr, err)
	}
	return serve(ctx, cfg, logger, ln)
}

// splitCSV splits a comma-separated list, dropping blanks.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
