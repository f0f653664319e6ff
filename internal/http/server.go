package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"mone/internal/core"
	applog "mone/internal/log"
	"mone/internal/middleware/ratelimit"
	"mone/internal/middleware/security"
	"mone/internal/middleware/trace"
	"mone/internal/services"
)

const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 2 * time.Minute

	// maxBodyBytes bounds JSON bodies and CSV uploads.
	maxBodyBytes = 8 << 20
)

// Server is the JSON API over the book.
type Server struct {
	http.Server

	svc      *services.BookService
	logger   *applog.Logger
	ready    func(context.Context) error
	metrics  http.Handler
	observe  trace.Observer
	defaults core.ImportOptions

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
	startedAt    time.Time
}

type ServerOption func(*Server)

func WithLogger(l *applog.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// WithReadiness sets the check behind /readyz, usually a store ping.
func WithReadiness(check func(context.Context) error) ServerOption {
	return func(s *Server) { s.ready = check }
}

// WithMetricsHandler mounts h on /metrics.
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(s *Server) { s.metrics = h }
}

// WithRequestObserver reports every finished request to observe.
func WithRequestObserver(observe trace.Observer) ServerOption {
	return func(s *Server) { s.observe = observe }
}

// WithImportDefaults sets the CSV layout used when a request leaves an
// option out.
func WithImportDefaults(opts core.ImportOptions) ServerOption {
	return func(s *Server) { s.defaults = opts }
}

// NewServer configures routes and middleware, returning a ready-to-run
// server. Call Shutdown to release it.
func NewServer(addr string, svc *services.BookService, opts ...ServerOption) *Server {
	s := &Server{
		svc:       svc,
		logger:    applog.New(applog.DefaultConfig()),
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent(applog.ComponentHTTP)
	s.limiter = ratelimit.NewLimiter(ratelimit.DefaultConfig())
	s.detector = security.NewDetector()
	s.tracer = trace.NewMiddleware(s.logger, s.detector.ExtractClientIP, s.observe)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	mux.HandleFunc("GET /book", s.handleBook)

	mux.HandleFunc("GET /account", s.handleListAccounts)
	mux.HandleFunc("POST /account", s.handleCreateAccount)
	mux.HandleFunc("GET /account/{id}", s.handleHolder)
	mux.HandleFunc("DELETE /account/{id}", s.handleReplace)
	mux.HandleFunc("GET /account/{id}/history", s.handleHistory)

	mux.HandleFunc("GET /budget", s.handleListBudgets)
	mux.HandleFunc("POST /budget", s.handleCreateBudget)
	mux.HandleFunc("GET /budget/{id}", s.handleHolder)
	mux.HandleFunc("DELETE /budget/{id}", s.handleReplace)
	mux.HandleFunc("GET /budget/{id}/history", s.handleHistory)

	mux.HandleFunc("GET /transaction", s.handleListTransactions)
	mux.HandleFunc("POST /transaction", s.handleCreateTransaction)
	mux.HandleFunc("POST /transaction/import", s.handleImport)
	mux.HandleFunc("GET /transaction/{id}", s.handleTransaction)
	mux.HandleFunc("DELETE /transaction/{id}", s.handleRemoveTransaction)

	var handler http.Handler = mux
	handler = s.limiter.Middleware(s.detector.ExtractClientIP, nil)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.detector.Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
	return s
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
