package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"financas/internal/backend"
	"financas/internal/cache"
	"financas/internal/cli"
	"financas/internal/core"
	apphttp "financas/internal/http"
	"financas/internal/log"
	"financas/internal/services"
)

func main() {
	cfg, logger := cli.Bootstrap()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	tax := cli.LoadTaxonomy(logger, cfg.TaxonomyFile)

	overviewCache := cache.NewLRUCache[core.Overview](cfg.OverviewCacheSize, cfg.OverviewCacheTTL)
	cacheManager := cache.NewManager(logger)
	cacheManager.Register(overviewCache)
	cacheManager.StartCleanup(cfg.OverviewCacheTTL)

	overview := services.NewOverviewService(res.Backend, core.NewAggregator(tax),
		services.WithCache(overviewCache),
		services.WithLogger(logger))
	res.Service.AddInvalidator(overview)

	srv := apphttp.NewServer(":"+cfg.Port, res.Backend, overview, apphttp.WithLogger(logger))
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cacheManager.Stop()
		if err := res.Close(); err != nil {
			logger.Error("Backend close error", log.FieldError, err)
		}
	})

	logger.Info("Starting financas server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"overview_cache_ttl", cfg.OverviewCacheTTL.String())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
