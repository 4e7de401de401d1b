package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type (
	// Date is a calendar date without a time-of-day component.
	Date struct {
		time.Time
	}

	// Merchant is a catalog row. Merchants are loaded by backfill and are
	// read-only afterwards; the service never creates or updates them.
	Merchant struct {
		ID       string
		Name     string
		Category string
	}

	// Transaction is a single ledger entry. Rows are append-only: once
	// recorded they are never updated or deleted.
	Transaction struct {
		ID          int64
		CustomerID  string // canonical form, see CustomerID
		MerchantID  string
		AmountCents int64
		IsCard      bool
		Date        Date
	}

	// CategorySpend is one row of an insights result: total card spend
	// for a merchant category.
	CategorySpend struct {
		Category    string `json:"category"`
		AmountCents int64  `json:"amount"`
	}

	// DateRange is an inclusive calendar-date window.
	DateRange struct {
		Start Date
		End   Date
	}
)

var (
	ErrMerchantNotFound   = errors.New("merchant not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidAmount      = errors.New("amount must be a positive number of cents")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// CustomerID normalizes an externally supplied numeric customer id into the
// canonical "customer-<id>" form used as the storage key. Both the ledger
// writer and the insights aggregator go through this single routine.
func CustomerID(numericID int64) string {
	return fmt.Sprintf("customer-%d", numericID)
}

const isoDate = "2006-01-02"

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a point in time to its calendar date.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a date string in YYYY-MM-DD form.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(isoDate, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return Date{Time: t}, nil
}

// ISO returns the date in YYYY-MM-DD form, the representation persisted in
// the transactions table.
func (d Date) ISO() string {
	return d.Format(isoDate)
}

// AddDays returns the date shifted by n calendar days. Negative n moves back.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.AddDate(0, 0, n)}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

func (m Merchant) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("%w: merchant id is required", ErrInvalidArgument)
	}
	if strings.TrimSpace(m.Category) == "" {
		return fmt.Errorf("%w: merchant category is required", ErrInvalidArgument)
	}
	return nil
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.CustomerID) == "" {
		return fmt.Errorf("%w: customer id is required", ErrInvalidArgument)
	}
	if strings.TrimSpace(t.MerchantID) == "" {
		return fmt.Errorf("%w: merchant id is required", ErrInvalidArgument)
	}
	if t.AmountCents <= 0 {
		return ErrInvalidAmount
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	return nil
}
