package core

import (
	"encoding/json"
	"errors"
)

const (
	SourceRemote      Source = "remote"
	SourcePlaceholder Source = "placeholder"
)

const (
	ChangeFirst    ChangeKind = "first"
	ChangeNone     ChangeKind = "none"
	ChangeIncrease ChangeKind = "increase"
	ChangeDecrease ChangeKind = "decrease"
)

type (
	// Source tells where an invoice total came from.
	Source string

	ChangeKind string

	// Change compares an invoice total with the previous total recorded for
	// the same supplier. It is frozen at insertion time.
	Change struct {
		Kind     ChangeKind `json:"kind"`
		Delta    float64    `json:"delta,omitempty"`
		Currency string     `json:"currency,omitempty"`
	}

	LineItem struct {
		Description string  `json:"description"`
		UnitPrice   float64 `json:"unit_price,omitempty"`
		Quantity    float64 `json:"quantity,omitempty"`
		Amount      float64 `json:"amount,omitempty"`
	}

	// SupplierRecord is the running summary for one supplier.
	SupplierRecord struct {
		Key              string  `json:"key"`
		DisplayName      string  `json:"display_name"`
		TotalSpend       float64 `json:"total_spend"`
		LastInvoiceTotal float64 `json:"last_invoice_total"`
		LastChange       Change  `json:"last_change"`
		Currency         string  `json:"currency"`
		InvoiceCount     int     `json:"invoice_count"`
		Seq              int     `json:"seq"` // insertion order, used for stable ranking
	}

	InvoiceRecord struct {
		ID            string     `json:"id"`
		Date          string     `json:"date"` // YYYY-MM-DD, day the invoice was recorded
		DocumentDate  string     `json:"document_date,omitempty"`
		Subject       string     `json:"subject"`
		SubjectKey    string     `json:"subject_key"`
		Filename      string     `json:"filename"`
		Total         float64    `json:"total"`
		Currency      string     `json:"currency"`
		Change        Change     `json:"change"`
		ChangePercent *float64   `json:"change_percent,omitempty"`
		Source        Source     `json:"source"`
		LineItems     []LineItem `json:"line_items,omitempty"`
	}
)

var (
	ErrEmptySubject = errors.New("empty supplier name")
	ErrInvalidTotal = errors.New("invalid invoice total")
)

// IsValid reports whether s is one of the known provenance tags.
func (s Source) IsValid() bool {
	switch s {
	case SourceRemote, SourcePlaceholder:
		return true
	default:
		return false
	}
}

// String renders the change the way it is shown next to an invoice:
// "first occurrence", "no change" or a signed amount such as "+£0.02".
func (c Change) String() string {
	switch c.Kind {
	case ChangeFirst, "":
		return "first occurrence"
	case ChangeNone:
		return "no change"
	default:
		return FormatSigned(c.Delta, c.Currency)
	}
}

// MarshalJSON adds the rendered label next to the raw fields.
func (c Change) MarshalJSON() ([]byte, error) {
	type plain Change
	return json.Marshal(struct {
		plain
		Label string `json:"label"`
	}{plain: plain(c), Label: c.String()})
}

// HasLineItems reports whether the invoice carries structured detail.
func (r InvoiceRecord) HasLineItems() bool {
	return len(r.LineItems) > 0
}

// Month returns the YYYY-MM prefix of the invoice date, or "" when the date
// is too short to carry one.
func (r InvoiceRecord) Month() string {
	if len(r.Date) < 7 {
		return ""
	}
	return r.Date[:7]
}
