package main

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"pricewatch/internal/amqp"
	"pricewatch/internal/backend"
	"pricewatch/internal/cli"
	"pricewatch/internal/ledger"
	"pricewatch/internal/log"
	"pricewatch/internal/metrics"
	"pricewatch/internal/sheets"
	gsheet "pricewatch/internal/sheets/google"
	memsheet "pricewatch/internal/sheets/memory"
	"pricewatch/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadConfig()
	if err != nil {
		cli.Fatal(cli.SetupLogger("info"), "Configuration validation failed", err)
	}
	logger := cli.SetupLogger(cfg.LogLevel)
	logger.Info("Starting pricewatch-worker", log.FieldOperation, log.OpStartup)

	if cfg.AMQPURL == "" {
		cli.Fatal(logger, "Worker needs a broker", errors.New("AMQP_URL is not set"))
	}

	ctx, cancel := cli.SignalContext(context.Background(), logger)
	defer cancel()

	store, err := backend.OpenStore(ctx, cfg, logger)
	if err != nil {
		cli.Fatal(logger, "Failed to open record store", err)
	}
	defer store.Close()

	var writer sheets.InvoiceRowWriter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.NewFromEnv(ctx, logger)
		if err != nil {
			cli.Fatal(logger, "Failed to initialize Google Sheets client", err)
		}
		writer = client
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		// Rows are kept in memory only, useful to exercise the pipeline locally.
		writer = memsheet.New()
		logger.Warn("GOOGLE_SPREADSHEET_ID not set, mirroring to memory")
	}

	consumer, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize AMQP client", err)
	}
	defer consumer.Close()

	repo := ledger.NewRepository(store, logger, metrics.New())
	w := worker.NewSyncWorker(repo, writer, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Run(gctx, consumer) })

	if err := g.Wait(); err != nil {
		logger.Error("Message consumption failed", log.FieldError, err)
		return
	}
	logger.Info("Worker stopped", log.FieldOperation, log.OpShutdown)
}
