package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"llmgate/internal/config"
	"llmgate/internal/httpapi"
	"llmgate/internal/manager"
	"llmgate/internal/metrics"
	"llmgate/internal/registry"
	"llmgate/internal/safety"
	"llmgate/pkg/types"
)

// serve runs the gateway on ln until ctx is done, then shuts down
// gracefully and unregisters every model.
func serve(ctx context.Context, cfg config.Config, logger zerolog.Logger, ln net.Listener) error {
	agg := metrics.New()

	filter := safety.New(cfg.Safety.Denylist)
	if cfg.Safety.DenylistFile != "" {
		if err := filter.Reload(cfg.Safety.Denylist, cfg.Safety.DenylistFile); err != nil {
			_ = ln.Close()
			return err
		}
	}

	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Admission:             manager.AdmissionPolicy(cfg.Limits.Admission),
		MaxQueueDepth:         cfg.Limits.QueueDepth,
		MaxWait:               cfg.Limits.MaxWait.Std(),
		ProbeTimeout:          cfg.Limits.ProbeTimeout.Std(),
		DefaultMaxConcurrency: cfg.Limits.MaxConcurrent,
		DefaultModel:          cfg.Server.DefaultModel,
		BackendFactory: manager.NewBackendFactory(manager.BackendOptions{
			ConnectTimeout: cfg.Limits.ProbeTimeout.Std(),
			RequestTimeout: cfg.Limits.BackendTimeout.Std(),
		}),
		Metrics: agg,
		Safety:  filter,
		Logger:  &logger,
	})
	defer func() {
		if err := mgr.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing backends")
		}
	}()

	httpapi.SetLogger(logger)
	httpapi.SetRequestLogLevel(cfg.Log.Level)
	httpapi.SetMaxBodyBytes(cfg.Server.MaxBodyBytes)
	httpapi.SetRequestTimeout(cfg.Server.RequestTimeout.Std())
	httpapi.SetCORSOptions(cfg.Server.CORSEnabled, cfg.Server.CORSOrigins, nil, nil)
	httpapi.SetLimits(cfg.Limits.MaxTokens, cfg.Limits.Temperature, cfg.Limits.TopP)
	httpapi.SetVersion(version)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	httpapi.SetBaseContext(ctx)

	specs := append([]types.ModelSpec(nil), cfg.Models...)
	var dirSpecs []types.ModelSpec
	if cfg.ModelsDir != "" {
		var err error
		dirSpecs, err = registry.LoadDir(cfg.ModelsDir)
		if err != nil {
			logger.Warn().Err(err).Str("dir", cfg.ModelsDir).Msg("model manifest scan reported errors")
		}
		specs = append(specs, dirSpecs...)
	}
	registerAll(ctx, mgr, specs, logger)

	srv := &http.Server{
		Handler:           httpapi.NewMux(mgr, agg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().
			Str("addr", ln.Addr().String()).
			Int("models", len(mgr.ListModels())).
			Str("admission", string(mgr.Policy())).
			Msg("llmgate listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("graceful shutdown error")
		}
		return nil
	})
	if cfg.Safety.Watch && cfg.Safety.DenylistFile != "" {
		g.Go(func() error {
			return filter.WatchFile(gctx, cfg.Safety.Denylist, cfg.Safety.DenylistFile, logger)
		})
	}
	if cfg.WatchModelsDir && cfg.ModelsDir != "" {
		// Manifests that failed at startup stay eligible for the watcher.
		var known []types.ModelSpec
		for _, s := range dirSpecs {
			if _, ok := mgr.Lookup(s.Name); ok {
				known = append(known, s)
			}
		}
		w := registry.NewWatcher(cfg.ModelsDir, known, logger)
		g.Go(func() error {
			err := w.Run(gctx, func(spec types.ModelSpec) error {
				err := register(gctx, mgr, spec, logger)
				if manager.IsAlreadyExists(err) {
					return nil
				}
				return err
			})
			if err != nil {
				logger.Error().Err(err).Str("dir", cfg.ModelsDir).Msg("model manifest watcher stopped")
			}
			return nil
		})
	}
	err := g.Wait()
	logger.Info().Msg("llmgate stopped")
	return err
}

// registerAll registers the startup models. Failures are logged and do not
// stop the gateway.
func registerAll(ctx context.Context, mgr *manager.Manager, specs []types.ModelSpec, logger zerolog.Logger) {
	for _, s := range specs {
		_ = register(ctx, mgr, s, logger)
	}
}

func register(ctx context.Context, mgr *manager.Manager, spec types.ModelSpec, logger zerolog.Logger) error {
	info, err := mgr.Register(ctx, spec)
	if err != nil {
		logger.Error().Err(err).Str("model", spec.Name).Str("endpoint", spec.Endpoint).Msg("model registration failed")
		return err
	}
	logger.Info().
		Str("model", info.Name).
		Str("backend", info.Backend).
		Str("endpoint", info.Endpoint).
		Int("max_concurrency", info.MaxConcurrency).
		Msg("model registered")
	return nil
}
