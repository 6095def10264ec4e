package ledger

import (
	"strings"

	"pricewatch/internal/core"
)

// AlertTier tells which detector produced a LeakAlert.
type AlertTier string

const (
	TierLineItem AlertTier = "line_item"
	TierInvoice  AlertTier = "invoice"
)

// LeakAlert is the single largest price increase found in a scope.
type LeakAlert struct {
	Tier      AlertTier `json:"tier"`
	Subject   string    `json:"subject"`
	Item      string    `json:"item,omitempty"`
	OldPrice  float64   `json:"old_price"`
	NewPrice  float64   `json:"new_price"`
	Percent   float64   `json:"percent"`
	Currency  string    `json:"currency"`
	InvoiceID string    `json:"invoice_id"`
	Date      string    `json:"date"`
}

type itemKey struct {
	subject string
	item    string
}

// TopIncreaseAlert looks for the largest price increase among the invoices
// of yearMonth (every invoice when yearMonth is empty). Line item unit
// prices are compared first; the invoice-level change percent is used only
// when no line item increased.
func (l *Ledger) TopIncreaseAlert(yearMonth string) (LeakAlert, bool) {
	scoped := l.InvoicesIn(yearMonth)
	if alert, ok := lineItemIncrease(scoped); ok {
		return alert, true
	}
	return invoiceIncrease(scoped)
}

// lineItemIncrease walks invoices oldest to newest. invs is newest first.
func lineItemIncrease(invs []core.InvoiceRecord) (LeakAlert, bool) {
	last := map[itemKey]float64{}
	var best LeakAlert
	found := false

	for i := len(invs) - 1; i >= 0; i-- {
		inv := invs[i]
		for _, it := range inv.LineItems {
			desc := strings.ToLower(core.CleanSubject(it.Description))
			if desc == "" || it.UnitPrice <= 0 {
				continue
			}
			k := itemKey{subject: inv.SubjectKey, item: desc}
			if k.subject == "" {
				k.subject = core.SubjectKey(inv.Subject)
			}
			old, seen := last[k]
			last[k] = it.UnitPrice
			if !seen || it.UnitPrice <= old {
				continue
			}
			pct := (it.UnitPrice - old) / old * 100
			if found && pct <= best.Percent {
				continue
			}
			best = LeakAlert{
				Tier:      TierLineItem,
				Subject:   inv.Subject,
				Item:      core.CleanSubject(it.Description),
				OldPrice:  old,
				NewPrice:  it.UnitPrice,
				Percent:   pct,
				Currency:  inv.Currency,
				InvoiceID: inv.ID,
				Date:      inv.Date,
			}
			found = true
		}
	}
	return best, found
}

func invoiceIncrease(invs []core.InvoiceRecord) (LeakAlert, bool) {
	var best LeakAlert
	found := false

	for i := len(invs) - 1; i >= 0; i-- {
		inv := invs[i]
		if inv.ChangePercent == nil || *inv.ChangePercent <= 0 {
			continue
		}
		pct := *inv.ChangePercent
		if found && pct <= best.Percent {
			continue
		}
		best = LeakAlert{
			Tier:      TierInvoice,
			Subject:   inv.Subject,
			OldPrice:  core.Round2(inv.Total / (1 + pct/100)),
			NewPrice:  inv.Total,
			Percent:   pct,
			Currency:  inv.Currency,
			InvoiceID: inv.ID,
			Date:      inv.Date,
		}
		found = true
	}
	return best, found
}
