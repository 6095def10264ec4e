// Package http exposes the invoice ledger as a JSON API.
package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"pricewatch/internal/cache"
	"pricewatch/internal/core"
	"pricewatch/internal/ledger"
	"pricewatch/internal/log"
	"pricewatch/internal/metrics"
	"pricewatch/internal/middleware/ratelimit"
	"pricewatch/internal/middleware/security"
	"pricewatch/internal/middleware/trace"
	"pricewatch/internal/resolver"
	"pricewatch/internal/services"
)

// InvoiceAPI is the service surface the handlers need.
type InvoiceAPI interface {
	AnalyseBatch(ctx context.Context, account string, uploads []resolver.Upload, supplier string) ([]services.Analysed, error)
	Invoices(ctx context.Context, account, month string) ([]core.InvoiceRecord, error)
	Leaderboard(ctx context.Context, account string) ([]core.SupplierRecord, error)
	Summary(ctx context.Context, account, month string) (ledger.Summary, error)
	TopIncreaseAlert(ctx context.Context, account, month string) (ledger.LeakAlert, bool, error)
	Clear(ctx context.Context, account string) error
	Ping(ctx context.Context) error
}

type Options struct {
	VATRate            float64
	MaxUploadBytes     int64
	MaxFilesPerRequest int
	RateLimitPerMinute int
	// TrustedProxies are CIDRs allowed to set the client IP via forwarding headers.
	TrustedProxies []string
	Metrics        *metrics.Metrics
	Logger         *log.Logger
	// Caches registered here are swept every CacheCleanupInterval.
	Caches               []cache.Cleaner
	CacheCleanupInterval time.Duration
}

type Server struct {
	http.Server
	svc      InvoiceAPI
	opts     Options
	logger   *log.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	caches   *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// server. Call Shutdown to stop it and its background routines.
func NewServer(addr string, svc InvoiceAPI, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = resolver.DefaultMaxUploadBytes
	}
	if opts.MaxFilesPerRequest <= 0 {
		opts.MaxFilesPerRequest = 20
	}
	if opts.CacheCleanupInterval <= 0 {
		opts.CacheCleanupInterval = time.Minute
	}

	logger := opts.Logger.WithComponent(log.ComponentHTTP)
	s := &Server{
		svc:      svc,
		opts:     opts,
		logger:   logger,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}, opts.Logger),
		detector: security.NewDetector(opts.Logger),
		caches:   cache.NewManager(opts.Logger),
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", log.FieldError, err)
		}
	}
	for _, c := range opts.Caches {
		if c != nil {
			s.caches.Register(c)
		}
	}
	s.caches.StartCleanup(opts.CacheCleanupInterval)

	limitWrites := s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimit, http.MethodPost)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("POST /invoices", limitWrites(http.HandlerFunc(s.handleRecordInvoices)))
	mux.HandleFunc("GET /invoices", s.handleListInvoices)
	mux.HandleFunc("GET /leaderboard", s.handleLeaderboard)
	mux.HandleFunc("GET /summary", s.handleSummary)
	mux.HandleFunc("GET /alerts", s.handleAlerts)
	mux.HandleFunc("GET /vat", s.handleVAT)
	mux.HandleFunc("DELETE /ledger", s.handleClear)
	mux.Handle("GET /metrics", opts.Metrics.Handler())
	mux.HandleFunc("/", s.handleNotFound)

	tracer := trace.NewMiddleware(s.detector.ExtractClientIP, opts.Logger, opts.Metrics)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	s.Server = http.Server{
		Addr:              addr,
		Handler:           headers.Middleware(tracer.Middleware(s.detector.Middleware(mux))),
		ReadHeaderTimeout: 10 * time.Second,
		// Uploads can be large and the analysis call may take its full timeout.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}
	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// ListenAndServe runs until Shutdown; http.ErrServerClosed is not an error.
func (s *Server) ListenAndServe() error {
	s.logger.Info("HTTP server listening", "addr", s.Addr)
	if err := s.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
