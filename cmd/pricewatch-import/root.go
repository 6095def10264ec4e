package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"pricewatch/internal/backend"
	"pricewatch/internal/cli"
	"pricewatch/internal/ledger"
	"pricewatch/internal/log"
	"pricewatch/internal/metrics"
	"pricewatch/internal/resolver"
	"pricewatch/internal/services"
	"pricewatch/internal/storage"
)

// app is the per-invocation state opened before a subcommand runs.
type app struct {
	out     io.Writer
	account string
	logger  *log.Logger
	store   storage.RecordStore
	svc     *services.InvoiceService
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}

	root := &cobra.Command{
		Use:   "pricewatch-import",
		Short: "Record invoice files and inspect the supplier ledger",
		Long: `pricewatch-import records local invoice files into the same ledger the
pricewatch server uses, then prints the leaderboard or a month summary.

The backend is chosen by DATA_BACKEND exactly as for the server.`,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  a.open,
		PersistentPostRunE: a.close,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&a.account, "account", services.DefaultAccount, "identity partition to read and write")

	root.AddCommand(recordCmd(a))
	root.AddCommand(leaderboardCmd(a))
	root.AddCommand(summaryCmd(a))
	root.AddCommand(clearCmd(a))
	return root
}

func (a *app) open(cmd *cobra.Command, _ []string) error {
	if err := services.ValidateAccount(a.account); err != nil {
		return err
	}
	cfg, err := cli.LoadConfig()
	if err != nil {
		return err
	}
	a.logger = cli.SetupLogger(cfg.LogLevel).WithComponent(log.ComponentCLI)

	store, err := backend.OpenStore(cmd.Context(), cfg, a.logger)
	if err != nil {
		return err
	}
	a.store = store

	m := metrics.New()
	res := resolver.New(resolver.Config{
		Endpoint:        cfg.AnalysisEndpoint,
		Timeout:         cfg.AnalysisTimeout,
		DefaultCurrency: cfg.DefaultCurrency,
	}, a.logger, m)
	a.svc = services.NewInvoiceService(ledger.NewRepository(store, a.logger, m), res, backend.OpenPublisher(cfg, a.logger), services.Config{
		MaxUploadBytes: cfg.MaxUploadBytes,
		VATRate:        cfg.VATRate,
	}, a.logger, m)
	return nil
}

func (a *app) close(_ *cobra.Command, _ []string) error {
	if a.svc != nil {
		if err := a.svc.Close(); err != nil {
			a.logger.Warn("Failed to close publisher", log.FieldError, err)
		}
	}
	if a.store == nil {
		return nil
	}
	if err := a.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}
