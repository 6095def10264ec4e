// Package memory is an in-process invoice row sink used when no spreadsheet
// is configured.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	ports "pricewatch/internal/sheets"
)

type Store struct {
	mu   sync.Mutex
	rows []ports.InvoiceRow
}

var _ ports.InvoiceRowWriter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// AppendInvoice stores the row and returns a synthetic row reference.
func (s *Store) AppendInvoice(_ context.Context, row ports.InvoiceRow) (string, error) {
	if strings.TrimSpace(row.Supplier) == "" {
		return "", errors.New("invoice row has no supplier")
	}
	if row.Year() == 0 {
		return "", fmt.Errorf("invoice row has no valid date: %q", row.Date)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, row)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Rows returns a copy of the appended rows in insertion order.
func (s *Store) Rows() []ports.InvoiceRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.InvoiceRow(nil), s.rows...)
}

// RowsForAccount filters by account, keeping insertion order.
func (s *Store) RowsForAccount(account string) []ports.InvoiceRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ports.InvoiceRow
	for _, r := range s.rows {
		if r.Account == account {
			out = append(out, r)
		}
	}
	return out
}
