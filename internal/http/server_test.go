package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cardledger/internal/core"
)

type fakeLedger struct {
	recordCalls     int
	lastCustomerID  int64
	lastMerchantID  string
	lastAmountCents int64
	lastIsCard      bool

	transactionID int64
	err           error
}

func (f *fakeLedger) Record(ctx context.Context, customerID int64, merchantID string, amountCents int64, isCard bool) (int64, error) {
	f.recordCalls++
	f.lastCustomerID = customerID
	f.lastMerchantID = merchantID
	f.lastAmountCents = amountCents
	f.lastIsCard = isCard
	if f.err != nil {
		return 0, f.err
	}
	return f.transactionID, nil
}

type fakeInsights struct {
	spendCalls int
	rows       []core.CategorySpend
	err        error
}

func (f *fakeInsights) Spend(ctx context.Context, customerID int64, topN, daysAgo *int) ([]core.CategorySpend, error) {
	f.spendCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

func newTestServer(t *testing.T, ledger *fakeLedger, insights *fakeInsights) *Server {
	t.Helper()
	srv := NewServer(":0", ledger, insights, Options{
		WriteRateLimit: 1000,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	return srv
}

func TestCreateTransaction(t *testing.T) {
	ledger := &fakeLedger{transactionID: 42}
	srv := newTestServer(t, ledger, &fakeInsights{})

	body := `{"customer_id": 7, "merchant_id": "merchant-1", "amount_cents": 1099, "is_card": true}`
	req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body: %s)", rec.Code, http.StatusCreated, rec.Body.String())
	}

	var resp createTransactionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.TransactionID != 42 {
		t.Errorf("transaction_id = %d, want 42", resp.TransactionID)
	}

	if ledger.recordCalls != 1 {
		t.Fatalf("record calls = %d, want 1", ledger.recordCalls)
	}
	if ledger.lastCustomerID != 7 {
		t.Errorf("customer id = %d, want 7", ledger.lastCustomerID)
	}
	if ledger.lastMerchantID != "merchant-1" {
		t.Errorf("merchant id = %q, want merchant-1", ledger.lastMerchantID)
	}
	if ledger.lastAmountCents != 1099 {
		t.Errorf("amount = %d, want 1099", ledger.lastAmountCents)
	}
	if !ledger.lastIsCard {
		t.Error("is_card = false, want true")
	}
}

func TestCreateTransactionUnknownMerchant(t *testing.T) {
	ledger := &fakeLedger{err: core.ErrMerchantNotFound}
	srv := newTestServer(t, ledger, &fakeInsights{})

	body := `{"customer_id": 7, "merchant_id": "merchant-x", "amount_cents": 500, "is_card": true}`
	req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed JSON", `{"customer_id": `},
		{"missing customer_id", `{"merchant_id": "merchant-1", "amount_cents": 100, "is_card": true}`},
		{"missing merchant_id", `{"customer_id": 1, "amount_cents": 100, "is_card": true}`},
		{"blank merchant_id", `{"customer_id": 1, "merchant_id": "  ", "amount_cents": 100, "is_card": true}`},
		{"missing amount_cents", `{"customer_id": 1, "merchant_id": "merchant-1", "is_card": true}`},
		{"zero amount", `{"customer_id": 1, "merchant_id": "merchant-1", "amount_cents": 0, "is_card": true}`},
		{"negative amount", `{"customer_id": 1, "merchant_id": "merchant-1", "amount_cents": -5, "is_card": true}`},
		{"missing is_card", `{"customer_id": 1, "merchant_id": "merchant-1", "amount_cents": 100}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := &fakeLedger{transactionID: 1}
			srv := newTestServer(t, ledger, &fakeInsights{})

			req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			srv.Handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
			if ledger.recordCalls != 0 {
				t.Errorf("record calls = %d, want 0", ledger.recordCalls)
			}
		})
	}
}

func TestCreateTransactionStorageFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"storage unavailable", fmt.Errorf("record transaction: %w", core.ErrStorageUnavailable)},
		{"unclassified error", errors.New("something broke")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := &fakeLedger{err: tt.err}
			srv := newTestServer(t, ledger, &fakeInsights{})

			body := `{"customer_id": 7, "merchant_id": "merchant-1", "amount_cents": 500, "is_card": true}`
			req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(body))
			rec := httptest.NewRecorder()
			srv.Handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
			}

			var resp struct {
				Error string `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Error != "internal error" {
				t.Errorf("error = %q, want opaque internal error", resp.Error)
			}
		})
	}
}

func TestTransactionsMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &fakeLedger{}, &fakeInsights{})

	req := httptest.NewRequest(http.MethodGet, "/transactions", nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
	if allow := rec.Header().Get("Allow"); allow != http.MethodPost {
		t.Errorf("Allow header = %q, want %q", allow, http.MethodPost)
	}
}

func TestGetInsights(t *testing.T) {
	insights := &fakeInsights{rows: []core.CategorySpend{
		{Category: "food", AmountCents: 2500},
		{Category: "gaming", AmountCents: 1200},
	}}
	srv := newTestServer(t, &fakeLedger{}, insights)

	req := httptest.NewRequest(http.MethodGet, "/insights?customer_id=7&top_n=2&days_ago=30", nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body: %s)", rec.Code, http.StatusOK, rec.Body.String())
	}

	var got []core.CategorySpend
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d categories, want 2", len(got))
	}
	if got[0].Category != "food" || got[0].AmountCents != 2500 {
		t.Errorf("first row = %+v, want food/2500", got[0])
	}
}

func TestGetInsightsEmptyResult(t *testing.T) {
	insights := &fakeInsights{rows: []core.CategorySpend{}}
	srv := newTestServer(t, &fakeLedger{}, insights)

	req := httptest.NewRequest(http.MethodGet, "/insights?customer_id=99", nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("body = %q, want empty JSON array", body)
	}
}

func TestGetInsightsBadParams(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{"missing customer_id", "/insights"},
		{"non-numeric customer_id", "/insights?customer_id=abc"},
		{"non-numeric top_n", "/insights?customer_id=1&top_n=five"},
		{"non-numeric days_ago", "/insights?customer_id=1&days_ago=soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			insights := &fakeInsights{}
			srv := newTestServer(t, &fakeLedger{}, insights)

			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			rec := httptest.NewRecorder()
			srv.Handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
			if insights.spendCalls != 0 {
				t.Errorf("spend calls = %d, want 0", insights.spendCalls)
			}
		})
	}
}

func TestGetInsightsStorageFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"storage unavailable", fmt.Errorf("category spend: %w", core.ErrStorageUnavailable)},
		{"unclassified error", errors.New("something broke")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			insights := &fakeInsights{err: tt.err}
			srv := newTestServer(t, &fakeLedger{}, insights)

			req := httptest.NewRequest(http.MethodGet, "/insights?customer_id=7", nil)
			rec := httptest.NewRecorder()
			srv.Handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
			}

			var resp struct {
				Error string `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Error != "internal error" {
				t.Errorf("error = %q, want opaque internal error", resp.Error)
			}
		})
	}
}

func TestGetInsightsNegativeParamRejected(t *testing.T) {
	insights := &fakeInsights{err: core.ErrInvalidArgument}
	srv := newTestServer(t, &fakeLedger{}, insights)

	req := httptest.NewRequest(http.MethodGet, "/insights?customer_id=1&top_n=-1", nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestGetInsightsCached(t *testing.T) {
	insights := &fakeInsights{rows: []core.CategorySpend{{Category: "food", AmountCents: 100}}}
	srv := newTestServer(t, &fakeLedger{}, insights)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/insights?customer_id=7&top_n=5", nil)
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
	}

	if insights.spendCalls != 1 {
		t.Errorf("spend calls = %d, want 1 (subsequent reads served from cache)", insights.spendCalls)
	}
}

func TestCachePurgedOnWrite(t *testing.T) {
	ledger := &fakeLedger{transactionID: 1}
	insights := &fakeInsights{rows: []core.CategorySpend{{Category: "food", AmountCents: 100}}}
	srv := newTestServer(t, ledger, insights)

	readInsights := func() {
		req := httptest.NewRequest(http.MethodGet, "/insights?customer_id=7", nil)
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("insights status = %d, want %d", rec.Code, http.StatusOK)
		}
	}

	readInsights()
	readInsights()
	if insights.spendCalls != 1 {
		t.Fatalf("spend calls = %d, want 1 before write", insights.spendCalls)
	}

	body := `{"customer_id": 7, "merchant_id": "merchant-1", "amount_cents": 100, "is_card": true}`
	req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", rec.Code, http.StatusCreated)
	}

	readInsights()
	if insights.spendCalls != 2 {
		t.Errorf("spend calls = %d, want 2 after write purges the cache", insights.spendCalls)
	}
}

func TestRateLimitOnWrites(t *testing.T) {
	ledger := &fakeLedger{transactionID: 1}
	srv := NewServer(":0", ledger, &fakeInsights{}, Options{WriteRateLimit: 2})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	body := `{"customer_id": 7, "merchant_id": "merchant-1", "amount_cents": 100, "is_card": true}`
	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(body))
		req.RemoteAddr = "10.0.0.1:12345"
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, req)
		last = rec.Code
	}

	if last != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", last, http.StatusTooManyRequests)
	}
	if ledger.recordCalls != 2 {
		t.Errorf("record calls = %d, want 2", ledger.recordCalls)
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, &fakeLedger{}, &fakeInsights{})

	for _, target := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want %d", target, rec.Code, http.StatusOK)
		}
	}
}
