// Package ledger implements the per-supplier spend history: recording
// invoices, change detection against the previous total, the spend
// leaderboard and the monthly aggregates derived from the invoice list.
//
// A Ledger is not safe for concurrent use. Callers serialize mutations for a
// partition (see services.InvoiceService).
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"pricewatch/internal/core"
)

const dateLayout = "2006-01-02"

// Ledger is the aggregate root for one identity partition.
type Ledger struct {
	Subjects map[string]*core.SupplierRecord `json:"subjects"`
	Invoices []core.InvoiceRecord            `json:"invoices"` // newest first
}

// Entry is one observation to record.
type Entry struct {
	Subject   string
	Total     float64
	Currency  string // defaults to core.DefaultCurrency
	Filename  string
	Date      string // recording day YYYY-MM-DD, defaults to today (UTC)
	Source    core.Source
	LineItems []core.LineItem
	// DocumentDate is the date printed on the invoice, kept for display
	// only. Months and alert order follow Date.
	DocumentDate string
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{Subjects: map[string]*core.SupplierRecord{}}
}

// Decode parses a persisted ledger. Any structural problem is reported as
// an error so the caller can reset the partition.
func Decode(data []byte) (*Ledger, error) {
	var l Ledger
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("decode ledger: %w", err)
	}
	if l.Subjects == nil {
		l.Subjects = map[string]*core.SupplierRecord{}
	}
	for key, rec := range l.Subjects {
		if rec == nil {
			return nil, fmt.Errorf("decode ledger: nil record for %q", key)
		}
		if rec.Key == "" {
			rec.Key = key
		}
	}
	return &l, nil
}

// Encode serializes the ledger for storage.
func (l *Ledger) Encode() ([]byte, error) {
	return json.Marshal(l)
}

// IsEmpty reports whether nothing has been recorded yet.
func (l *Ledger) IsEmpty() bool {
	return len(l.Subjects) == 0 && len(l.Invoices) == 0
}

// Clear drops every supplier and invoice.
func (l *Ledger) Clear() {
	l.Subjects = map[string]*core.SupplierRecord{}
	l.Invoices = nil
}

// Supplier returns the record for a supplier name, matched case-insensitively.
func (l *Ledger) Supplier(name string) (core.SupplierRecord, bool) {
	rec, ok := l.Subjects[core.SubjectKey(name)]
	if !ok {
		return core.SupplierRecord{}, false
	}
	return *rec, true
}

// Invoice looks up an invoice by ID.
func (l *Ledger) Invoice(id string) (core.InvoiceRecord, bool) {
	for _, inv := range l.Invoices {
		if inv.ID == id {
			return inv, true
		}
	}
	return core.InvoiceRecord{}, false
}

// RecordInvoice adds an invoice to the supplier summary and to the front of
// the invoice list. The change against the supplier's previous total is
// computed here and never revisited.
func (l *Ledger) RecordInvoice(e Entry) (core.InvoiceRecord, error) {
	display := core.CleanSubject(e.Subject)
	if display == "" {
		return core.InvoiceRecord{}, core.ErrEmptySubject
	}
	if math.IsNaN(e.Total) || math.IsInf(e.Total, 0) {
		return core.InvoiceRecord{}, core.ErrInvalidTotal
	}
	if l.Subjects == nil {
		l.Subjects = map[string]*core.SupplierRecord{}
	}

	currency := core.NormalizeCurrency(e.Currency, core.DefaultCurrency)
	date := e.Date
	if _, err := time.Parse(dateLayout, date); err != nil {
		date = time.Now().UTC().Format(dateLayout)
	}
	docDate := e.DocumentDate
	if _, err := time.Parse(dateLayout, docDate); err != nil {
		docDate = ""
	}
	source := e.Source
	if !source.IsValid() {
		source = core.SourcePlaceholder
	}

	key := core.SubjectKey(display)
	rec, seen := l.Subjects[key]
	if !seen {
		rec = &core.SupplierRecord{
			Key:         key,
			DisplayName: display,
			Seq:         l.nextSeq(),
		}
		l.Subjects[key] = rec
	}

	change, pct := compareTotals(rec.LastInvoiceTotal, seen && rec.InvoiceCount > 0, e.Total, currency)

	rec.TotalSpend += e.Total
	rec.LastInvoiceTotal = e.Total
	rec.LastChange = change
	rec.Currency = currency
	rec.InvoiceCount++

	inv := core.InvoiceRecord{
		ID:            uuid.NewString(),
		Date:          date,
		DocumentDate:  docDate,
		Subject:       rec.DisplayName,
		SubjectKey:    key,
		Filename:      e.Filename,
		Total:         e.Total,
		Currency:      currency,
		Change:        change,
		ChangePercent: pct,
		Source:        source,
		LineItems:     append([]core.LineItem(nil), e.LineItems...),
	}
	l.Invoices = append([]core.InvoiceRecord{inv}, l.Invoices...)
	return inv, nil
}

// compareTotals applies the change rule: no prior total is a first
// occurrence, a difference under one minor unit is no change, anything else
// is a signed delta. The percentage is undefined when the prior total is
// not positive.
func compareTotals(prior float64, hasPrior bool, total float64, currency string) (core.Change, *float64) {
	if !hasPrior {
		return core.Change{Kind: core.ChangeFirst}, nil
	}

	diff := total - prior
	var pct *float64
	if prior > 0 {
		p := diff / prior * 100
		pct = &p
	}

	if math.Abs(diff) < core.MinorUnit(currency) {
		return core.Change{Kind: core.ChangeNone}, pct
	}
	kind := core.ChangeIncrease
	if diff < 0 {
		kind = core.ChangeDecrease
	}
	return core.Change{Kind: kind, Delta: diff, Currency: currency}, pct
}

func (l *Ledger) nextSeq() int {
	next := 0
	for _, rec := range l.Subjects {
		if rec.Seq >= next {
			next = rec.Seq + 1
		}
	}
	return next
}

// Leaderboard orders suppliers by total spend, highest first. Equal totals
// keep insertion order. An empty ledger yields an empty slice.
func (l *Ledger) Leaderboard() []core.SupplierRecord {
	out := make([]core.SupplierRecord, 0, len(l.Subjects))
	for _, rec := range l.Subjects {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Seq != out[j].Seq {
			return out[i].Seq < out[j].Seq
		}
		return out[i].Key < out[j].Key
	})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalSpend > out[j].TotalSpend
	})
	return out
}

// TopSpender is the first leaderboard entry, if any.
func (l *Ledger) TopSpender() (core.SupplierRecord, bool) {
	board := l.Leaderboard()
	if len(board) == 0 {
		return core.SupplierRecord{}, false
	}
	return board[0], true
}

// MonthlyAggregate sums invoice totals whose date starts with yearMonth
// (YYYY-MM). A month without invoices yields 0.
func (l *Ledger) MonthlyAggregate(yearMonth string) float64 {
	var sum float64
	for _, inv := range l.Invoices {
		if inv.Month() == yearMonth {
			sum += inv.Total
		}
	}
	return sum
}

// InvoicesIn returns the invoices of a month, newest first. An empty month
// string returns every invoice.
func (l *Ledger) InvoicesIn(yearMonth string) []core.InvoiceRecord {
	out := make([]core.InvoiceRecord, 0, len(l.Invoices))
	for _, inv := range l.Invoices {
		if yearMonth == "" || inv.Month() == yearMonth {
			out = append(out, inv)
		}
	}
	return out
}

// MonthOverMonthDelta returns the percentage change of spend between two
// months. There is no comparison when the previous month has no spend.
func (l *Ledger) MonthOverMonthDelta(curMonth, prevMonth string) (float64, bool) {
	prev := l.MonthlyAggregate(prevMonth)
	if prev <= 0 {
		return 0, false
	}
	cur := l.MonthlyAggregate(curMonth)
	return (cur - prev) / prev * 100, true
}

// DefaultVATRate is the UK standard rate.
const DefaultVATRate = 0.20

// VATEstimate extracts the tax portion of a tax-inclusive amount. All
// recorded totals are assumed to include tax.
func VATEstimate(amountIncludingTax, rate float64) float64 {
	if rate <= -1 {
		return 0
	}
	return amountIncludingTax * (rate / (1 + rate))
}

var errBadMonth = errors.New("month must be YYYY-MM")

// PreviousMonth returns the calendar month before yearMonth.
func PreviousMonth(yearMonth string) (string, error) {
	t, err := time.Parse("2006-01", yearMonth)
	if err != nil {
		return "", errBadMonth
	}
	return t.AddDate(0, -1, 0).Format("2006-01"), nil
}

// ValidMonth reports whether s is a YYYY-MM month.
func ValidMonth(s string) bool {
	_, err := time.Parse("2006-01", s)
	return err == nil
}
