package ledger

import "pricewatch/internal/core"

// Summary bundles the dashboard figures for one month.
type Summary struct {
	Month         string               `json:"month"`
	PreviousMonth string               `json:"previous_month"`
	Spend         float64              `json:"spend"`
	PreviousSpend float64              `json:"previous_spend"`
	DeltaPercent  *float64             `json:"delta_percent"` // nil when last month had no spend
	VAT           float64              `json:"vat"`
	VATRate       float64              `json:"vat_rate"`
	InvoiceCount  int                  `json:"invoice_count"`
	Currency      string               `json:"currency"`
	TopSpender    *core.SupplierRecord `json:"top_spender,omitempty"`
	Alert         *LeakAlert           `json:"alert,omitempty"`
}

// Summarize computes the month figures. The top spender is all-time, the
// leak alert is limited to the month. An invalid month is treated as a
// month with no invoices.
func (l *Ledger) Summarize(yearMonth string, vatRate float64) Summary {
	s := Summary{
		Month:    yearMonth,
		VATRate:  vatRate,
		Currency: core.DefaultCurrency,
	}
	if prev, err := PreviousMonth(yearMonth); err == nil {
		s.PreviousMonth = prev
		s.PreviousSpend = l.MonthlyAggregate(prev)
		if d, ok := l.MonthOverMonthDelta(yearMonth, prev); ok {
			s.DeltaPercent = &d
		}
	}

	s.Spend = l.MonthlyAggregate(yearMonth)
	s.InvoiceCount = len(l.InvoicesIn(yearMonth))
	if yearMonth == "" {
		s.InvoiceCount = 0
	}
	s.VAT = VATEstimate(s.Spend, vatRate)

	if len(l.Invoices) > 0 {
		s.Currency = l.Invoices[0].Currency
	}
	if top, ok := l.TopSpender(); ok {
		s.TopSpender = &top
	}
	if yearMonth != "" {
		if alert, ok := l.TopIncreaseAlert(yearMonth); ok {
			s.Alert = &alert
		}
	}
	return s
}
