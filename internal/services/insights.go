package services

import (
	"context"
	"fmt"
	"time"

	"cardledger/internal/core"
)

// SpendReader is the read side of the storage gateway.
type SpendReader interface {
	CategorySpend(ctx context.Context, customerID string, window *core.DateRange) ([]core.CategorySpend, error)
}

// Insights computes per-category card-spend summaries for a customer. It is
// a pure read path: no mutation, no side effects.
type Insights struct {
	store SpendReader
	now   func() time.Time
}

func NewInsights(store SpendReader) *Insights {
	return &Insights{
		store: store,
		now:   time.Now,
	}
}

// Spend returns card spend grouped by merchant category, ordered by amount
// descending (category name ascending on ties). topN, when non-nil, truncates
// the ordered result; zero yields an empty list. daysAgo, when non-nil,
// limits the read to the inclusive window [today-daysAgo, today]; zero means
// today only. Negative values for either are rejected.
func (i *Insights) Spend(ctx context.Context, customerID int64, topN, daysAgo *int) ([]core.CategorySpend, error) {
	if topN != nil && *topN < 0 {
		return nil, fmt.Errorf("%w: top_n must not be negative", core.ErrInvalidArgument)
	}
	if daysAgo != nil && *daysAgo < 0 {
		return nil, fmt.Errorf("%w: days_ago must not be negative", core.ErrInvalidArgument)
	}

	var window *core.DateRange
	if daysAgo != nil {
		today := core.DateOf(i.now())
		window = &core.DateRange{
			Start: today.AddDays(-*daysAgo),
			End:   today,
		}
	}

	rows, err := i.store.CategorySpend(ctx, core.CustomerID(customerID), window)
	if err != nil {
		return nil, fmt.Errorf("category spend: %w", err)
	}
	if rows == nil {
		rows = make([]core.CategorySpend, 0)
	}

	if topN != nil && len(rows) > *topN {
		rows = rows[:*topN]
	}

	return rows, nil
}
