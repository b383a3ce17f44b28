package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/middleware/ratelimit"
	"financas/internal/middleware/security"
	"financas/internal/middleware/trace"
	"financas/internal/sheets"
	"financas/internal/storage"
)

// TransactionStore is what the API reads and writes transactions through.
type TransactionStore interface {
	sheets.TransactionWriter
	sheets.PeriodLister
}

// OverviewProvider computes dashboard figures as of a date.
type OverviewProvider interface {
	Overview(ctx context.Context, asOf time.Time) (core.Overview, error)
	Now() time.Time
}

// Optional store capabilities, discovered by type assertion.
type (
	pinger interface {
		Ping(ctx context.Context) error
	}
	importer interface {
		Import(ctx context.Context, txs []core.Transaction) ([]string, error)
	}
	transactionGetter interface {
		GetTransaction(ctx context.Context, id string) (*storage.StoredTransaction, error)
	}
)

type Server struct {
	http.Server
	store    TransactionStore
	overview OverviewProvider
	logger   *log.Logger

	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	tracer      *trace.Middleware
	startedAt   time.Time

	shutdownOnce sync.Once
}

// Option customizes a Server.
type Option func(*serverOptions)

type serverOptions struct {
	logger    *log.Logger
	rateLimit ratelimit.Config
}

// WithLogger sets the request logger.
func WithLogger(l *log.Logger) Option {
	return func(o *serverOptions) { o.logger = l }
}

// WithRateLimit overrides the POST rate limit.
func WithRateLimit(c ratelimit.Config) Option {
	return func(o *serverOptions) { o.rateLimit = c }
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, store TransactionStore, overview OverviewProvider, opts ...Option) *Server {
	o := serverOptions{rateLimit: ratelimit.DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.NewDefault()
	}
	logger := o.logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		store:       store,
		overview:    overview,
		logger:      logger,
		rateLimiter: ratelimit.NewLimiter(o.rateLimit),
		detector:    security.NewDetector(),
		startedAt:   time.Now(),
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /api/overview", s.handleOverview)
	mux.HandleFunc("GET /api/installments", s.handleInstallments)
	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("POST /api/transactions/import", s.handleImportTransactions)

	limit := s.rateLimiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.detector.ExtractClientIP(r),
			log.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
	}, http.MethodPost)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	var handler http.Handler = mux
	handler = limit(handler)
	handler = headers.Middleware(handler)
	handler = s.detector.Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
