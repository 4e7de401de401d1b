// Package http exposes the ledger over a small JSON API: a write endpoint
// for transactions and a read endpoint for per-customer spend insights.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"cardledger/internal/cache"
	"cardledger/internal/core"
	"cardledger/internal/middleware/ratelimit"
	"cardledger/internal/middleware/trace"
	"cardledger/internal/services"
)

// TransactionRecorder is the write-path service consumed by the API.
type TransactionRecorder interface {
	Record(ctx context.Context, customerID int64, merchantID string, amountCents int64, isCard bool) (int64, error)
}

// InsightsReader is the read-path service consumed by the API.
type InsightsReader interface {
	Spend(ctx context.Context, customerID int64, topN, daysAgo *int) ([]core.CategorySpend, error)
}

var (
	_ TransactionRecorder = (*services.Ledger)(nil)
	_ InsightsReader      = (*services.Insights)(nil)
)

// Options tunes the server's cache and rate limiting.
type Options struct {
	InsightsCacheSize int
	InsightsCacheTTL  time.Duration
	WriteRateLimit    int
}

// DefaultOptions returns the values used when a zero Options is passed.
func DefaultOptions() Options {
	return Options{
		InsightsCacheSize: 200,
		InsightsCacheTTL:  30 * time.Second,
		WriteRateLimit:    60,
	}
}

type Server struct {
	http.Server

	ledger   TransactionRecorder
	insights InsightsReader

	rateLimiter *ratelimit.Limiter
	tracer      *trace.Middleware

	// Insights responses are cached briefly; every successful write purges
	// the cache so a read after a write never sees the pre-write aggregate.
	insightsCache *cache.LRUCache[[]core.CategorySpend]
	cacheManager  *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, ledger TransactionRecorder, insights InsightsReader, opts Options) *Server {
	defaults := DefaultOptions()
	if opts.InsightsCacheSize <= 0 {
		opts.InsightsCacheSize = defaults.InsightsCacheSize
	}
	if opts.InsightsCacheTTL <= 0 {
		opts.InsightsCacheTTL = defaults.InsightsCacheTTL
	}
	if opts.WriteRateLimit <= 0 {
		opts.WriteRateLimit = defaults.WriteRateLimit
	}

	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr: addr,
		},
		ledger:   ledger,
		insights: insights,
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.WriteRateLimit,
		}),
		tracer:        trace.NewMiddleware(),
		insightsCache: cache.NewLRUCache[[]core.CategorySpend](opts.InsightsCacheSize, opts.InsightsCacheTTL),
		cacheManager:  cache.NewManager(),
	}

	s.cacheManager.Register(s.insightsCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("/transactions", s.handleCreateTransaction)
	mux.HandleFunc("/insights", s.handleGetInsights)
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	s.Handler = s.tracer.Middleware(mux)

	return s
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		s.cacheManager.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
