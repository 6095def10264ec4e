package main

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"pricewatch/internal/backend"
	"pricewatch/internal/cache"
	"pricewatch/internal/cli"
	apphttp "pricewatch/internal/http"
	"pricewatch/internal/ledger"
	"pricewatch/internal/log"
	"pricewatch/internal/metrics"
	"pricewatch/internal/resolver"
	"pricewatch/internal/services"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadConfig()
	if err != nil {
		cli.Fatal(cli.SetupLogger("info"), "Configuration validation failed", err)
	}
	logger := cli.SetupLogger(cfg.LogLevel)

	ctx, cancel := cli.SignalContext(context.Background(), logger)
	defer cancel()

	store, err := backend.OpenStore(ctx, cfg, logger)
	if err != nil {
		cli.Fatal(logger, "Failed to open record store", err)
	}
	defer store.Close()

	m := metrics.New()
	repo := ledger.NewRepository(store, logger, m)
	res := resolver.New(resolver.Config{
		Endpoint:        cfg.AnalysisEndpoint,
		Timeout:         cfg.AnalysisTimeout,
		DefaultCurrency: cfg.DefaultCurrency,
	}, logger, m)

	svc := services.NewInvoiceService(repo, res, backend.OpenPublisher(cfg, logger), services.Config{
		MaxUploadBytes:  cfg.MaxUploadBytes,
		VATRate:         cfg.VATRate,
		SummaryCacheTTL: cfg.SummaryCacheTTL,
	}, logger, m)
	defer svc.Close()

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		VATRate:            cfg.VATRate,
		MaxUploadBytes:     cfg.MaxUploadBytes,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		Metrics:            m,
		Logger:             logger,
		Caches:             []cache.Cleaner{svc.SummaryCache()},
	})

	logger.Info("Starting pricewatch server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"analysis_endpoint", cfg.AnalysisEndpoint != "",
		log.FieldOperation, log.OpStartup)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", log.FieldError, err)
		return
	}
	logger.Info("Server stopped gracefully", log.FieldOperation, log.OpShutdown)
}
