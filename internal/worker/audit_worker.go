package worker

import (
	"context"
	"fmt"
	"log/slog"

	"cardledger/internal/amqp"
	"cardledger/internal/storage"
)

// AuditStore is the slice of the storage layer the audit worker needs.
type AuditStore interface {
	AppendAuditEvent(ctx context.Context, ev storage.AuditEvent) error
	CountAuditEvents(ctx context.Context, transactionID int64) (int64, error)
}

// AuditWorker journals transaction-recorded events into the audit_events
// table. It is the consumer side of the publish the ledger service does on
// every successful write.
type AuditWorker struct {
	store AuditStore
}

func NewAuditWorker(store AuditStore) *AuditWorker {
	return &AuditWorker{store: store}
}

// HandleTransactionRecorded processes a single transaction-recorded message.
// Re-delivered messages are detected by transaction id and skipped so the
// journal stays one row per transaction.
func (w *AuditWorker) HandleTransactionRecorded(ctx context.Context, msg *amqp.TransactionRecordedMessage) error {
	slog.InfoContext(ctx, "Processing transaction event",
		"transaction_id", msg.TransactionID,
		"customer_id", msg.CustomerID)

	existing, err := w.store.CountAuditEvents(ctx, msg.TransactionID)
	if err != nil {
		return fmt.Errorf("check existing audit events: %w", err)
	}
	if existing > 0 {
		slog.WarnContext(ctx, "Duplicate transaction event, skipping",
			"transaction_id", msg.TransactionID)
		return nil
	}

	ev := storage.AuditEvent{
		TransactionID: msg.TransactionID,
		CustomerID:    msg.CustomerID,
		AmountCents:   msg.AmountCents,
		RecordedAt:    msg.Timestamp,
	}
	if err := w.store.AppendAuditEvent(ctx, ev); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}

	slog.InfoContext(ctx, "Audit event journaled",
		"transaction_id", msg.TransactionID,
		"customer_id", msg.CustomerID,
		"amount_cents", msg.AmountCents)

	return nil
}
