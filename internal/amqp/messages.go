package amqp

import (
	"encoding/json"
	"time"
)

// TransactionRecordedMessage announces a newly persisted ledger transaction.
// It carries only the fields the audit worker journals; consumers fetch
// anything else from the database.
type TransactionRecordedMessage struct {
	TransactionID int64     `json:"transaction_id"`
	CustomerID    string    `json:"customer_id"`
	AmountCents   int64     `json:"amount_cents"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewTransactionRecordedMessage creates a message stamped with the current time.
func NewTransactionRecordedMessage(transactionID int64, customerID string, amountCents int64) *TransactionRecordedMessage {
	return &TransactionRecordedMessage{
		TransactionID: transactionID,
		CustomerID:    customerID,
		AmountCents:   amountCents,
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionRecordedMessageFromJSON creates a message from JSON bytes
func TransactionRecordedMessageFromJSON(data []byte) (*TransactionRecordedMessage, error) {
	var msg TransactionRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
