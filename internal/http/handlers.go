package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"cardledger/internal/middleware/trace"
)

type createTransactionRequest struct {
	CustomerID  *int64  `json:"customer_id"`
	MerchantID  *string `json:"merchant_id"`
	AmountCents *int64  `json:"amount_cents"`
	IsCard      *bool   `json:"is_card"`
}

func (r createTransactionRequest) validate() error {
	if r.CustomerID == nil {
		return fmt.Errorf("customer_id is required")
	}
	if r.MerchantID == nil || strings.TrimSpace(*r.MerchantID) == "" {
		return fmt.Errorf("merchant_id is required")
	}
	if r.AmountCents == nil {
		return fmt.Errorf("amount_cents is required")
	}
	if *r.AmountCents <= 0 {
		return fmt.Errorf("amount_cents must be positive")
	}
	if r.IsCard == nil {
		return fmt.Errorf("is_card is required")
	}
	return nil
}

type createTransactionResponse struct {
	TransactionID int64 `json:"transaction_id"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	clientIP := trace.ClientIP(r)
	if !s.rateLimiter.Allow(clientIP) {
		slog.WarnContext(r.Context(), "Rate limit exceeded", "client_ip", clientIP)
		w.Header().Set("Retry-After", "60")
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.ledger.Record(r.Context(), *req.CustomerID, *req.MerchantID, *req.AmountCents, *req.IsCard)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to record transaction",
			"error", err,
			"customer_id", *req.CustomerID,
			"merchant_id", *req.MerchantID,
			"amount_cents", *req.AmountCents)
		writeDomainError(w, err)
		return
	}

	// Drop cached aggregates so the new transaction is visible immediately.
	s.insightsCache.Purge()

	slog.InfoContext(r.Context(), "Transaction created",
		"transaction_id", id,
		"customer_id", *req.CustomerID,
		"merchant_id", *req.MerchantID,
		"amount_cents", *req.AmountCents,
		"is_card", *req.IsCard)

	writeJSON(w, http.StatusCreated, createTransactionResponse{TransactionID: id})
}

func (s *Server) handleGetInsights(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	query := r.URL.Query()

	customerID, err := strconv.ParseInt(strings.TrimSpace(query.Get("customer_id")), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "customer_id must be an integer")
		return
	}

	topN, err := optionalIntParam(query.Get("top_n"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "top_n must be an integer")
		return
	}
	daysAgo, err := optionalIntParam(query.Get("days_ago"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "days_ago must be an integer")
		return
	}

	key := insightsCacheKey(customerID, topN, daysAgo)
	if cached, ok := s.insightsCache.Get(key); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	result, err := s.insights.Spend(r.Context(), customerID, topN, daysAgo)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to compute insights",
			"error", err,
			"customer_id", customerID)
		writeDomainError(w, err)
		return
	}

	s.insightsCache.Set(key, result)
	writeJSON(w, http.StatusOK, result)
}

func optionalIntParam(raw string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func insightsCacheKey(customerID int64, topN, daysAgo *int) string {
	key := strconv.FormatInt(customerID, 10)
	if topN != nil {
		key += "|n=" + strconv.Itoa(*topN)
	}
	if daysAgo != nil {
		key += "|d=" + strconv.Itoa(*daysAgo)
	}
	return key
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
