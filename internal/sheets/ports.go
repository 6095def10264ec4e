package sheets

import (
	"context"
	"strconv"

	"pricewatch/internal/core"
)

// InvoiceRow is one mirrored invoice, in column order.
type InvoiceRow struct {
	Date     string
	Account  string
	Supplier string
	Filename string
	Total    float64
	Currency string
	Change   string
	Source   string
}

// RowFromInvoice flattens an invoice for the spreadsheet.
func RowFromInvoice(account string, inv core.InvoiceRecord) InvoiceRow {
	return InvoiceRow{
		Date:     inv.Date,
		Account:  account,
		Supplier: inv.Subject,
		Filename: inv.Filename,
		Total:    core.Round2(inv.Total),
		Currency: inv.Currency,
		Change:   inv.Change.String(),
		Source:   string(inv.Source),
	}
}

// Values returns the row cells: date, account, supplier, filename, total,
// currency, change, source.
func (r InvoiceRow) Values() []any {
	return []any{r.Date, r.Account, r.Supplier, r.Filename, r.Total, r.Currency, r.Change, r.Source}
}

// Year is the calendar year of the row date, or 0 when it has none.
func (r InvoiceRow) Year() int {
	if len(r.Date) < 4 {
		return 0
	}
	y, err := strconv.Atoi(r.Date[:4])
	if err != nil || y < 0 {
		return 0
	}
	return y
}

// Ports for outbound adapters.
type (
	InvoiceRowWriter interface {
		AppendInvoice(ctx context.Context, row InvoiceRow) (rowRef string, err error)
	}
)
