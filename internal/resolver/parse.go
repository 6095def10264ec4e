package resolver

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"pricewatch/internal/core"
)

// ErrNoTotal means the response carried no usable total.
var ErrNoTotal = errors.New("no usable total in analysis response")

// Analysis is the structured result of a remote analysis call.
type Analysis struct {
	Total     float64
	Currency  string
	Vendor    string
	Date      string // YYYY-MM-DD, empty when absent or unparseable
	LineItems []core.LineItem
}

type fields map[string]json.RawMessage

// Candidate keys, in priority order. The first usable value wins.
var (
	totalKeys    = []string{"total", "invoice_total", "amount", "total_amount", "total_gbp"}
	currencyKeys = []string{"currency", "currency_code"}
	vendorKeys   = []string{"vendor", "merchant", "supplier"}
)

// ParseAnalysis decodes an analysis response body. The default currency
// applies when the response names none and the raw total has no symbol.
func ParseAnalysis(body []byte, defaultCurrency string) (Analysis, error) {
	var f fields
	if err := json.Unmarshal(body, &f); err != nil {
		return Analysis{}, fmt.Errorf("decode analysis: %w", err)
	}

	total, rawTotal, ok := f.firstPositive(totalKeys)
	if !ok {
		return Analysis{}, ErrNoTotal
	}

	a := Analysis{
		Total:     total,
		Currency:  f.currency(rawTotal, defaultCurrency),
		Vendor:    core.CleanSubject(f.firstString(vendorKeys)),
		Date:      isoDate(f.firstString([]string{"date"})),
		LineItems: f.items(),
	}
	return a, nil
}

// firstPositive returns the first key holding a finite positive number,
// along with its raw text.
func (f fields) firstPositive(keys []string) (float64, string, bool) {
	for _, k := range keys {
		v, raw, ok := number(f[k])
		if ok && v > 0 {
			return v, raw, true
		}
	}
	return 0, "", false
}

func (f fields) firstString(keys []string) string {
	for _, k := range keys {
		if s := str(f[k]); s != "" {
			return s
		}
	}
	return ""
}

func (f fields) currency(rawTotal, fallback string) string {
	fallback = core.NormalizeCurrency(fallback, core.DefaultCurrency)
	for _, k := range currencyKeys {
		if c := core.NormalizeCurrency(str(f[k]), ""); c != "" {
			return c
		}
	}
	if c, ok := core.GuessCurrency(rawTotal); ok {
		return c
	}
	return fallback
}

func (f fields) items() []core.LineItem {
	raw, ok := f["items"]
	if !ok {
		return nil
	}
	var list []fields
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil
	}

	var out []core.LineItem
	for _, it := range list {
		desc := core.CleanSubject(str(it["description"]))
		unit, _, hasUnit := number(it["unit_price"])
		qty, _, hasQty := number(it["quantity"])
		amount, _, hasAmount := number(it["amount"])
		if !hasAmount && hasQty && hasUnit {
			amount = core.Round2(qty * unit)
		}
		if desc == "" && !hasUnit && !hasAmount {
			continue
		}
		out = append(out, core.LineItem{
			Description: desc,
			UnitPrice:   unit,
			Quantity:    qty,
			Amount:      amount,
		})
	}
	return out
}

// number accepts a JSON number or a loosely formatted string such as
// "£1,204.50".
func number(raw json.RawMessage) (float64, string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, "", false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, "", false
		}
		return n, string(raw), true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, "", false
	}
	v, ok := core.ParseAmount(s)
	return v, s, ok
}

func str(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func isoDate(s string) string {
	if len(s) < 10 {
		return ""
	}
	if _, err := time.Parse("2006-01-02", s[:10]); err != nil {
		return ""
	}
	return s[:10]
}
