package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// InvoiceRecordedMessage announces that an invoice was saved to an
// account's ledger. The consumer loads the full invoice from storage.
type InvoiceRecordedMessage struct {
	Account   string    `json:"account"`
	InvoiceID string    `json:"invoice_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewInvoiceRecordedMessage creates a message stamped with the current time
func NewInvoiceRecordedMessage(account, invoiceID string) *InvoiceRecordedMessage {
	return &InvoiceRecordedMessage{
		Account:   account,
		InvoiceID: invoiceID,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *InvoiceRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// InvoiceRecordedMessageFromJSON decodes and validates a message
func InvoiceRecordedMessageFromJSON(data []byte) (*InvoiceRecordedMessage, error) {
	var msg InvoiceRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Account == "" || msg.InvoiceID == "" {
		return nil, errors.New("message missing account or invoice_id")
	}
	return &msg, nil
}
