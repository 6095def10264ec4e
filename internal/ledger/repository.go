package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pricewatch/internal/log"
	"pricewatch/internal/metrics"
	"pricewatch/internal/storage"
)

// Repository loads and saves one Ledger per identity partition.
type Repository struct {
	store   storage.RecordStore
	logger  *log.Logger
	metrics *metrics.Metrics
}

func NewRepository(store storage.RecordStore, logger *log.Logger, m *metrics.Metrics) *Repository {
	if logger == nil {
		logger = log.Discard()
	}
	return &Repository{
		store:   store,
		logger:  logger.WithComponent(log.ComponentLedger),
		metrics: m,
	}
}

// PartitionKey is the storage key for an account's ledger.
func PartitionKey(account string) string {
	return "ledger:" + strings.TrimSpace(account)
}

// Load returns the account's ledger. Absent and corrupt records both yield
// an empty ledger; only store failures are returned as errors.
func (r *Repository) Load(ctx context.Context, account string) (*Ledger, error) {
	raw, err := r.store.Get(ctx, PartitionKey(account))
	if errors.Is(err, storage.ErrNotFound) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	l, err := Decode(raw)
	if err != nil {
		r.metrics.LedgerReset()
		r.logger.WarnContext(ctx, "Discarding corrupt ledger",
			log.FieldAccount, account,
			log.FieldError, err)
		return New(), nil
	}
	return l, nil
}

// Save replaces the account's ledger.
func (r *Repository) Save(ctx context.Context, account string, l *Ledger) error {
	raw, err := l.Encode()
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	if err := r.store.Put(ctx, PartitionKey(account), raw); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}

// Clear removes the account's ledger entirely.
func (r *Repository) Clear(ctx context.Context, account string) error {
	if err := r.store.Delete(ctx, PartitionKey(account)); err != nil {
		return fmt.Errorf("clear ledger: %w", err)
	}
	return nil
}

// Ping checks the underlying store.
func (r *Repository) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}
