// Package backfill loads the merchant catalog and historical transactions
// from CSV files into the database. It is run once per environment before
// the API serves traffic.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/gocarina/gocsv"

	"cardledger/internal/core"
	"cardledger/internal/storage"
)

// Store is the slice of the storage layer the loader needs.
type Store interface {
	GetMerchant(ctx context.Context, id string) (core.Merchant, error)
	InsertMerchant(ctx context.Context, m core.Merchant) error
	RecordTransaction(ctx context.Context, t core.Transaction) (int64, error)
}

var _ Store = (*storage.Repository)(nil)

type merchantRow struct {
	ID       string `csv:"id"`
	Name     string `csv:"name"`
	Category string `csv:"category"`
}

type transactionRow struct {
	CustomerID  int64  `csv:"customer_id"`
	MerchantID  string `csv:"merchant_id"`
	AmountCents int64  `csv:"amount_cents"`
	IsCard      bool   `csv:"is_card"`
	Date        string `csv:"date"`
}

// Summary reports what a load pass did.
type Summary struct {
	Loaded  int
	Skipped int
}

// Loader imports CSV files into the store.
type Loader struct {
	store Store
}

func NewLoader(store Store) *Loader {
	return &Loader{store: store}
}

// LoadMerchants imports the merchant catalog from a CSV file with columns
// id, name, category. Merchants already present are skipped, so re-running
// a backfill is safe.
func (l *Loader) LoadMerchants(ctx context.Context, path string) (Summary, error) {
	rows, err := readCSVFile[merchantRow](path)
	if err != nil {
		return Summary{}, err
	}

	var sum Summary
	for i, row := range rows {
		m := core.Merchant{ID: row.ID, Name: row.Name, Category: row.Category}
		if err := m.Validate(); err != nil {
			return sum, fmt.Errorf("merchant row %d: %w", i+1, err)
		}

		if _, err := l.store.GetMerchant(ctx, m.ID); err == nil {
			sum.Skipped++
			continue
		} else if !errors.Is(err, core.ErrMerchantNotFound) {
			return sum, fmt.Errorf("merchant row %d: %w", i+1, err)
		}

		if err := l.store.InsertMerchant(ctx, m); err != nil {
			return sum, fmt.Errorf("merchant row %d: %w", i+1, err)
		}
		sum.Loaded++
	}

	slog.InfoContext(ctx, "Merchant backfill completed",
		"file", path,
		"loaded", sum.Loaded,
		"skipped", sum.Skipped)

	return sum, nil
}

// LoadTransactions imports historical transactions from a CSV file with
// columns customer_id, merchant_id, amount_cents, is_card, date. Every row
// goes through the same merchant-existence check as a live write, so a row
// naming an unknown merchant aborts the load.
func (l *Loader) LoadTransactions(ctx context.Context, path string) (Summary, error) {
	rows, err := readCSVFile[transactionRow](path)
	if err != nil {
		return Summary{}, err
	}

	var sum Summary
	for i, row := range rows {
		date, err := core.ParseDate(row.Date)
		if err != nil {
			return sum, fmt.Errorf("transaction row %d: %w", i+1, err)
		}

		t := core.Transaction{
			CustomerID:  core.CustomerID(row.CustomerID),
			MerchantID:  row.MerchantID,
			AmountCents: row.AmountCents,
			IsCard:      row.IsCard,
			Date:        date,
		}
		if err := t.Validate(); err != nil {
			return sum, fmt.Errorf("transaction row %d: %w", i+1, err)
		}

		if _, err := l.store.RecordTransaction(ctx, t); err != nil {
			return sum, fmt.Errorf("transaction row %d: %w", i+1, err)
		}
		sum.Loaded++
	}

	slog.InfoContext(ctx, "Transaction backfill completed",
		"file", path,
		"loaded", sum.Loaded)

	return sum, nil
}

func readCSVFile[T any](path string) ([]T, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv file: %w", err)
	}
	defer file.Close()

	var rows []T
	if err := gocsv.UnmarshalFile(file, &rows); err != nil {
		return nil, fmt.Errorf("parse csv file: %w", err)
	}
	return rows, nil
}
