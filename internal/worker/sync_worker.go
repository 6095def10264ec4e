// Package worker mirrors recorded invoices into the spreadsheet.
package worker

import (
	"context"
	"fmt"
	"time"

	"pricewatch/internal/amqp"
	"pricewatch/internal/cache"
	"pricewatch/internal/ledger"
	"pricewatch/internal/log"
	"pricewatch/internal/sheets"
)

// LedgerLoader reads an account's ledger.
type LedgerLoader interface {
	Load(ctx context.Context, account string) (*ledger.Ledger, error)
}

// Consumer delivers invoice-recorded events until ctx is done.
type Consumer interface {
	ConsumeInvoiceRecorded(ctx context.Context, handler amqp.Handler) error
}

const (
	mirroredCacheSize = 4096
	mirroredCacheTTL  = 24 * time.Hour
)

// SyncWorker appends one spreadsheet row per recorded invoice.
type SyncWorker struct {
	ledgers  LedgerLoader
	sheets   sheets.InvoiceRowWriter
	mirrored *cache.LRUCache[string]
	logger   *log.Logger
}

func NewSyncWorker(ledgers LedgerLoader, writer sheets.InvoiceRowWriter, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &SyncWorker{
		ledgers:  ledgers,
		sheets:   writer,
		mirrored: cache.NewLRUCache[string](mirroredCacheSize, mirroredCacheTTL),
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// Run consumes events until ctx is cancelled.
func (w *SyncWorker) Run(ctx context.Context, c Consumer) error {
	w.logger.InfoContext(ctx, "Sync worker started")
	err := c.ConsumeInvoiceRecorded(ctx, w.HandleInvoiceRecorded)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("consume invoice events: %w", err)
	}
	w.logger.InfoContext(ctx, "Sync worker stopped")
	return nil
}

// HandleInvoiceRecorded mirrors one invoice. An invoice that is no longer in
// the ledger (the account was cleared) is skipped without error so the
// message is acked. Redelivered events for an invoice already mirrored by
// this process are skipped too.
func (w *SyncWorker) HandleInvoiceRecorded(ctx context.Context, msg *amqp.InvoiceRecordedMessage) error {
	key := msg.Account + "|" + msg.InvoiceID
	if ref, ok := w.mirrored.Get(key); ok {
		w.logger.DebugContext(ctx, "Invoice already mirrored",
			log.FieldInvoiceID, msg.InvoiceID,
			log.FieldSheetsRef, ref)
		return nil
	}

	l, err := w.ledgers.Load(ctx, msg.Account)
	if err != nil {
		return fmt.Errorf("load ledger for %s: %w", msg.Account, err)
	}
	inv, ok := l.Invoice(msg.InvoiceID)
	if !ok {
		w.logger.WarnContext(ctx, "Invoice not found, skipping mirror",
			log.FieldOperation, log.OpSync,
			log.FieldAccount, msg.Account,
			log.FieldInvoiceID, msg.InvoiceID)
		return nil
	}

	ref, err := w.sheets.AppendInvoice(ctx, sheets.RowFromInvoice(msg.Account, inv))
	if err != nil {
		return fmt.Errorf("append invoice %s: %w", inv.ID, err)
	}
	w.mirrored.Set(key, ref)

	w.logger.InfoContext(ctx, "Invoice mirrored",
		log.FieldOperation, log.OpSync,
		log.FieldAccount, msg.Account,
		log.FieldInvoiceID, inv.ID,
		log.FieldSupplier, inv.Subject,
		log.FieldSheetsRef, ref)
	return nil
}
