// Package services holds the two core operations of the system: the ledger
// writer and the insights aggregator. Both normalize customer ids through
// core.CustomerID and hold no state between calls, so they are safe for
// concurrent use.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cardledger/internal/core"
)

// TransactionStore is the write side of the storage gateway.
type TransactionStore interface {
	RecordTransaction(ctx context.Context, t core.Transaction) (int64, error)
}

// EventPublisher announces persisted transactions to interested consumers.
type EventPublisher interface {
	PublishTransactionRecorded(ctx context.Context, transactionID int64, customerID string, amountCents int64) error
}

// Ledger validates and persists single transactions. The merchant-existence
// check happens inside the store's record operation so a rejected write never
// leaves a row behind.
type Ledger struct {
	store  TransactionStore
	events EventPublisher
	now    func() time.Time
}

// NewLedger creates a ledger writer. events may be nil, in which case no
// messages are published.
func NewLedger(store TransactionStore, events EventPublisher) *Ledger {
	return &Ledger{
		store:  store,
		events: events,
		now:    time.Now,
	}
}

// Record persists one transaction for the given numeric customer id and
// returns the generated transaction id. The transaction date is the current
// wall-clock date, never caller-supplied.
func (l *Ledger) Record(ctx context.Context, customerID int64, merchantID string, amountCents int64, isCard bool) (int64, error) {
	tx := core.Transaction{
		CustomerID:  core.CustomerID(customerID),
		MerchantID:  merchantID,
		AmountCents: amountCents,
		IsCard:      isCard,
		Date:        core.DateOf(l.now()),
	}
	if err := tx.Validate(); err != nil {
		return 0, err
	}

	id, err := l.store.RecordTransaction(ctx, tx)
	if err != nil {
		return 0, fmt.Errorf("record transaction: %w", err)
	}

	// Event publishing is best-effort: the write already succeeded and a
	// failed announcement must not fail the request.
	if l.events != nil {
		if err := l.events.PublishTransactionRecorded(ctx, id, tx.CustomerID, tx.AmountCents); err != nil {
			slog.ErrorContext(ctx, "Failed to publish transaction event",
				"transaction_id", id,
				"customer_id", tx.CustomerID,
				"error", err)
		}
	}

	return id, nil
}
