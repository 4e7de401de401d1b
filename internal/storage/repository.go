package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"cardledger/internal/core"

	_ "modernc.org/sqlite"
)

// AuditEvent is a journal row written by the audit worker for every
// transaction-recorded event it consumes.
type AuditEvent struct {
	ID            int64
	TransactionID int64
	CustomerID    string
	AmountCents   int64
	RecordedAt    time.Time
}

// Repository is the storage gateway over the merchants and transactions
// tables. The database path is injected at construction; there is no global
// path resolution.
type Repository struct {
	db      *sql.DB
	queries *Queries
}

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// GetMerchant looks up a single catalog row by id.
func (r *Repository) GetMerchant(ctx context.Context, id string) (core.Merchant, error) {
	m, err := r.queries.GetMerchant(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Merchant{}, fmt.Errorf("merchant %q: %w", id, core.ErrMerchantNotFound)
	}
	if err != nil {
		return core.Merchant{}, storageErr("get merchant", err)
	}
	return m, nil
}

// InsertMerchant adds a catalog row. Only the backfill tool uses this; the
// service itself never creates merchants.
func (r *Repository) InsertMerchant(ctx context.Context, m core.Merchant) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if err := r.queries.InsertMerchant(ctx, m); err != nil {
		return storageErr("insert merchant", err)
	}
	return nil
}

// RecordTransaction verifies the referenced merchant exists and appends the
// transaction, both inside a single SQL transaction so a rejected write never
// leaves a row behind. Returns the generated transaction id.
func (r *Repository) RecordTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storageErr("begin transaction", err)
	}
	defer tx.Rollback()

	qtx := r.queries.WithTx(tx)

	if _, err := qtx.GetMerchant(ctx, t.MerchantID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("merchant %q: %w", t.MerchantID, core.ErrMerchantNotFound)
		}
		return 0, storageErr("verify merchant", err)
	}

	id, err := qtx.InsertTransaction(ctx, t)
	if err != nil {
		return 0, storageErr("insert transaction", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, storageErr("commit transaction", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"transaction_id", id,
		"customer_id", t.CustomerID,
		"merchant_id", t.MerchantID,
		"amount_cents", t.AmountCents,
		"is_card", t.IsCard,
		"date", t.Date.ISO())

	return id, nil
}

// CategorySpend returns per-category card-spend totals for the canonical
// customer id, optionally limited to an inclusive date window. Categories
// with no matching transactions are absent from the result.
func (r *Repository) CategorySpend(ctx context.Context, customerID string, window *core.DateRange) ([]core.CategorySpend, error) {
	rows, err := r.queries.CategorySpend(ctx, customerID, window)
	if err != nil {
		return nil, storageErr("category spend", err)
	}
	return rows, nil
}

// CountTransactions reports the total number of ledger rows.
func (r *Repository) CountTransactions(ctx context.Context) (int64, error) {
	n, err := r.queries.CountTransactions(ctx)
	if err != nil {
		return 0, storageErr("count transactions", err)
	}
	return n, nil
}

// AppendAuditEvent writes one audit journal row.
func (r *Repository) AppendAuditEvent(ctx context.Context, ev AuditEvent) error {
	if err := r.queries.InsertAuditEvent(ctx, ev); err != nil {
		return storageErr("insert audit event", err)
	}
	return nil
}

// CountAuditEvents reports how many audit rows reference a transaction.
func (r *Repository) CountAuditEvents(ctx context.Context, transactionID int64) (int64, error) {
	n, err := r.queries.CountAuditEvents(ctx, transactionID)
	if err != nil {
		return 0, storageErr("count audit events", err)
	}
	return n, nil
}

// storageErr marks a driver or connection failure so callers can tell it
// apart from domain errors like a missing merchant.
func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, core.ErrStorageUnavailable, err)
}
