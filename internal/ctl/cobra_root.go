package ctl

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"llmgate/internal/logging"
	"llmgate/pkg/types"
)

// Config holds the persistent flags.
type Config struct {
	Addr    string
	LogLvl  string
	Timeout time.Duration
	JSON    bool

	log zerolog.Logger
}

// DefaultConfig reads LLMGATECTL_* environment defaults.
func DefaultConfig() *Config {
	return &Config{
		Addr:    envStr("LLMGATECTL_ADDR", "http://127.0.0.1:8080"),
		LogLvl:  envStr("LLMGATECTL_LOG_LEVEL", "warn"),
		Timeout: envDuration("LLMGATECTL_TIMEOUT", 30*time.Second),
		JSON:    envBool("LLMGATECTL_JSON", false),
	}
}

// BuildRootCmd constructs the llmgatectl command tree.
func BuildRootCmd(cfg *Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "llmgatectl",
		Short:         "Client for the llmgate OpenAI-compatible gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfg.Addr, "addr", cfg.Addr, "Gateway base URL (defaults LLMGATECTL_ADDR)")
	root.PersistentFlags().StringVar(&cfg.LogLvl, "log-level", cfg.LogLvl, "Log level: debug|info|warn|error (defaults LLMGATECTL_LOG_LEVEL or warn)")
	root.PersistentFlags().DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Timeout for non-streaming calls (defaults LLMGATECTL_TIMEOUT)")
	root.PersistentFlags().BoolVar(&cfg.JSON, "json", cfg.JSON, "Print raw JSON (defaults LLMGATECTL_JSON)")
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		cfg.log = logging.New(cmd.ErrOrStderr(), cfg.LogLvl, "console")
		cfg.log.Debug().Str("addr", cfg.Addr).Msg("llmgatectl")
	}

	root.AddCommand(modelsCmd(cfg), chatCmd(cfg), statusCmd(cfg), metricsCmd(cfg), waitCmd(cfg))

	completionCmd := &cobra.Command{Use: "completion", Short: "Generate the autocompletion script for the specified shell"}
	completionCmd.AddCommand(&cobra.Command{Use: "bash", Short: "Bash completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenBashCompletion(cmd.OutOrStdout()) }})
	completionCmd.AddCommand(&cobra.Command{Use: "zsh", Short: "Zsh completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenZshCompletion(cmd.OutOrStdout()) }})
	completionCmd.AddCommand(&cobra.Command{Use: "fish", Short: "Fish completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenFishCompletion(cmd.OutOrStdout(), true) }})
	completionCmd.AddCommand(&cobra.Command{Use: "powershell", Short: "PowerShell completion", RunE: func(cmd *cobra.Command, args []string) error {
		return root.GenPowerShellCompletionWithDesc(cmd.OutOrStdout())
	}})
	root.AddCommand(completionCmd)

	return root
}

func (c *Config) client() *Client { return NewClient(c.Addr) }

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printModels(cmd *cobra.Command, models []types.ModelStatus) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTATE\tACTIVE\tMAX\tBACKEND\tENDPOINT")
	for _, m := range models {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n", m.Name, m.State, m.Active, m.MaxConcurrency, m.Backend, m.Endpoint)
	}
	return tw.Flush()
}

func modelsCmd(cfg *Config) *cobra.Command {
	models := &cobra.Command{Use: "models", Short: "List, load and unload models", RunE: func(cmd *cobra.Command, args []string) error {
		return fmt.Errorf("models requires a subcommand: list|load|unload")
	}}

	list := &cobra.Command{Use: "list", Aliases: []string{"ls"}, Short: "List registered models", Example: "  llmgatectl models list", RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := withTimeout(cmd, cfg.Timeout)
		defer cancel()
		ms, err := cfg.client().ListModels(ctx)
		if err != nil {
			return err
		}
		if cfg.JSON {
			return printJSON(cmd, ms)
		}
		return printModels(cmd, ms)
	}}

	var spec types.ModelSpec
	load := &cobra.Command{Use: "load <name> <endpoint>", Short: "Register a backend model", Example: "  llmgatectl models load m1 http://127.0.0.1:8081 --max-concurrency 2", Args: cobra.ExactArgs(2), RunE: func(cmd *cobra.Command, args []string) error {
		spec.Name, spec.Endpoint = args[0], args[1]
		ctx, cancel := withTimeout(cmd, cfg.Timeout)
		defer cancel()
		st, err := cfg.client().LoadModel(ctx, spec)
		if err != nil {
			return err
		}
		cfg.log.Info().Str("model", st.Name).Str("state", st.State).Msg("model loaded")
		if cfg.JSON {
			return printJSON(cmd, st)
		}
		return printModels(cmd, []types.ModelStatus{st})
	}}
	load.Flags().IntVar(&spec.MaxConcurrency, "max-concurrency", envInt("LLMGATECTL_MAX_CONCURRENCY", 0), "Simultaneous decodes (0 = gateway default)")
	load.Flags().StringVar(&spec.Backend, "backend", "", "Backend kind: openai|llama-server|grpc")
	load.Flags().IntVar(&spec.ContextLength, "context-length", 0, "Backend context length")
	load.Flags().StringVar(&spec.APIKey, "api-key", "", "Bearer token forwarded to the backend")

	unload := &cobra.Command{Use: "unload <name>", Short: "Unregister a model once its requests finish", Args: cobra.ExactArgs(1), RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := withTimeout(cmd, cfg.Timeout)
		defer cancel()
		res, err := cfg.client().UnloadModel(ctx, args[0])
		if err != nil {
			return err
		}
		if cfg.JSON {
			return printJSON(cmd, res)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", res.Name, res.State)
		return nil
	}}

	models.AddCommand(list, load, unload)
	return models
}

func chatCmd(cfg *Config) *cobra.Command {
	var (
		model       string
		system      string
		maxTokens   int
		temperature float64
	)
	cmd := &cobra.Command{Use: "chat <prompt...>", Short: "Stream a chat completion to stdout", Example: "  llmgatectl chat --model m1 Write a haiku about the ocean", Args: cobra.MinimumNArgs(1), RunE: func(cmd *cobra.Command, args []string) error {
		req := types.ChatCompletionRequest{Model: model}
		if system != "" {
			req.Messages = append(req.Messages, types.Message{Role: "system", Content: system})
		}
		req.Messages = append(req.Messages, types.Message{Role: "user", Content: strings.Join(args, " ")})
		if maxTokens > 0 {
			req.MaxTokens = &maxTokens
		}
		if cmd.Flags().Changed("temperature") {
			req.Temperature = &temperature
		}
		start := time.Now()
		res, err := cfg.client().Chat(cmd.Context(), req, cmd.OutOrStdout())
		if res.Content != "" {
			fmt.Fprintln(cmd.OutOrStdout())
		}
		if err != nil {
			return err
		}
		cfg.log.Info().
			Str("finish_reason", res.FinishReason).
			Int("chunks", res.Chunks).
			Dur("dur", time.Since(start)).
			Msg("chat done")
		return nil
	}}
	cmd.Flags().StringVarP(&model, "model", "m", envStr("LLMGATECTL_MODEL", ""), "Model name (empty = gateway default)")
	cmd.Flags().StringVar(&system, "system", "", "Optional system message")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", envInt("LLMGATECTL_MAX_TOKENS", 0), "Maximum new tokens (0 = gateway default)")
	cmd.Flags().Float64Var(&temperature, "temperature", 0.7, "Sampling temperature")
	return cmd
}

func statusCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{Use: "status", Short: "Show gateway counters and models", RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := withTimeout(cmd, cfg.Timeout)
		defer cancel()
		st, err := cfg.client().Status(ctx)
		if err != nil {
			return err
		}
		if cfg.JSON {
			return printJSON(cmd, st)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "admission=%s requests=%d tokens=%d active=%d models_loaded=%d\n",
			st.AdmissionPolicy, st.RequestsTotal, st.TokensTotal, st.ActiveRequests, st.ModelsLoaded)
		return printModels(cmd, st.Models)
	}}
}

func metricsCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{Use: "metrics", Short: "Print the Prometheus exposition", RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := withTimeout(cmd, cfg.Timeout)
		defer cancel()
		return cfg.client().Metrics(ctx, cmd.OutOrStdout())
	}}
}

func waitCmd(cfg *Config) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{Use: "wait", Short: "Wait until the gateway reports ready", Example: "  llmgatectl wait --timeout 1m", RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.client().WaitReady(cmd.Context(), cfg.Timeout, interval); err != nil {
			return err
		}
		cfg.log.Info().Str("addr", cfg.Addr).Msg("gateway ready")
		return nil
	}}
	cmd.Flags().DurationVar(&interval, "interval", 200*time.Millisecond, "Polling interval")
	return cmd
}
