package storage

import (
	"context"
	"database/sql"
	"time"

	"cardledger/internal/core"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so queries can run inside or
// outside an explicit transaction.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries bundles the raw SQL statements used by the repository. All
// statements are fully parameterized; no values are ever interpolated into
// query text.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns Queries bound to the given transaction.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const getMerchant = `
SELECT id, name, category FROM merchants WHERE id = ?
`

func (q *Queries) GetMerchant(ctx context.Context, id string) (core.Merchant, error) {
	var m core.Merchant
	err := q.db.QueryRowContext(ctx, getMerchant, id).Scan(&m.ID, &m.Name, &m.Category)
	return m, err
}

const insertMerchant = `
INSERT INTO merchants (id, name, category) VALUES (?, ?, ?)
`

func (q *Queries) InsertMerchant(ctx context.Context, m core.Merchant) error {
	_, err := q.db.ExecContext(ctx, insertMerchant, m.ID, m.Name, m.Category)
	return err
}

const insertTransaction = `
INSERT INTO transactions (customer_id, merchant_id, amount_cents, is_card, date)
VALUES (?, ?, ?, ?, ?)
`

func (q *Queries) InsertTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	res, err := q.db.ExecContext(ctx, insertTransaction,
		t.CustomerID, t.MerchantID, t.AmountCents, t.IsCard, t.Date.ISO())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const countTransactions = `
SELECT COUNT(*) FROM transactions
`

func (q *Queries) CountTransactions(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countTransactions).Scan(&n)
	return n, err
}

// Category totals are ordered by summed amount descending with category name
// ascending as the deterministic tie-break.
const categorySpend = `
SELECT m.category, SUM(t.amount_cents) AS total_amount
FROM transactions t
JOIN merchants m ON t.merchant_id = m.id
WHERE t.customer_id = ?
  AND t.is_card = 1
GROUP BY m.category
ORDER BY total_amount DESC, m.category ASC
`

const categorySpendWindowed = `
SELECT m.category, SUM(t.amount_cents) AS total_amount
FROM transactions t
JOIN merchants m ON t.merchant_id = m.id
WHERE t.customer_id = ?
  AND t.is_card = 1
  AND date(t.date) >= date(?)
  AND date(t.date) <= date(?)
GROUP BY m.category
ORDER BY total_amount DESC, m.category ASC
`

func (q *Queries) CategorySpend(ctx context.Context, customerID string, window *core.DateRange) ([]core.CategorySpend, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if window != nil {
		rows, err = q.db.QueryContext(ctx, categorySpendWindowed,
			customerID, window.Start.ISO(), window.End.ISO())
	} else {
		rows, err = q.db.QueryContext(ctx, categorySpend, customerID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]core.CategorySpend, 0)
	for rows.Next() {
		var cs core.CategorySpend
		if err := rows.Scan(&cs.Category, &cs.AmountCents); err != nil {
			return nil, err
		}
		result = append(result, cs)
	}
	return result, rows.Err()
}

const insertAuditEvent = `
INSERT INTO audit_events (transaction_id, customer_id, amount_cents, recorded_at)
VALUES (?, ?, ?, ?)
`

func (q *Queries) InsertAuditEvent(ctx context.Context, ev AuditEvent) error {
	_, err := q.db.ExecContext(ctx, insertAuditEvent,
		ev.TransactionID, ev.CustomerID, ev.AmountCents, ev.RecordedAt.UTC().Format(time.RFC3339))
	return err
}

const countAuditEvents = `
SELECT COUNT(*) FROM audit_events WHERE transaction_id = ?
`

func (q *Queries) CountAuditEvents(ctx context.Context, transactionID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countAuditEvents, transactionID).Scan(&n)
	return n, err
}
