package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"mone/internal/backend"
	"mone/internal/cache"
	"mone/internal/cli"
	"mone/internal/core"
	apphttp "mone/internal/http"
	applog "mone/internal/log"
	"mone/internal/metrics"
	"mone/internal/services"
)

const (
	historyCacheSize = 256
	historyCacheTTL  = 5 * time.Minute
	cacheCleanup     = time.Minute
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		applog.New(applog.DefaultConfig()).Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg.LogLevel, nil)

	if err := run(logger, cfgToOptions(cfg)); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}

func run(logger *applog.Logger, opts options) error {
	startup := logger.With(applog.FieldOperation, applog.OpStartup)

	backendCfg, err := backend.FromAppConfig(opts.cfg)
	if err != nil {
		return err
	}
	res, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).
		CreateBackend(context.Background(), backendCfg)
	if err != nil {
		return err
	}

	book, err := core.Open(context.Background(), res.Store)
	if err != nil {
		_ = res.Cleanup()
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	pc := metrics.NewPrometheusCollector(opts.cfg.MetricsNamespace)
	if err := pc.Register(registry); err != nil {
		_ = res.Cleanup()
		return err
	}

	history := cache.NewLRUCache[[]core.HistoryPoint](historyCacheSize, historyCacheTTL)
	caches := cache.NewManager(logger.WithComponent(applog.ComponentBook).Logger)
	caches.Register(history)
	caches.StartCleanup(cacheCleanup)
	defer caches.Stop()

	svcOpts := []services.Option{
		services.WithLogger(logger),
		services.WithMetrics(pc),
		services.WithHistoryCache(history),
	}
	if res.Events != nil {
		svcOpts = append(svcOpts, services.WithPublisher(res.Events))
	}
	svc := services.NewBookService(book, svcOpts...)

	srv := apphttp.NewServer(":"+opts.cfg.Port, svc,
		apphttp.WithLogger(logger),
		apphttp.WithReadiness(res.Store.Ping),
		apphttp.WithMetricsHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})),
		apphttp.WithRequestObserver(pc.ObserveRequest),
		apphttp.WithImportDefaults(opts.importDefaults),
	)

	ctx, done := cli.GracefulShutdown(logger, opts.cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		startup.Info("Starting mone server",
			"port", opts.cfg.Port,
			"backend", opts.cfg.DataBackend,
			"events", res.Events != nil,
			applog.FieldBalance, book.Balance().String())
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		// The listener failed before any signal; release what was opened.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.cfg.ShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = res.Cleanup()
		return err
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
	return nil
}
