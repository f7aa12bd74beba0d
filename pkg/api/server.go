package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/assistant"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/contracts"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/ledger"
)

// Version is reported by GET /.
const Version = "1.0.0"

const maxBodyBytes = 1 << 20

// Assistant is the application surface the server exposes.
type Assistant interface {
	Analyze(ctx context.Context, customerID string) (contracts.AnalysisResponse, error)
	TopFollowups(ctx context.Context, date string) (contracts.FollowupList, error)
	Answer(ctx context.Context, question string) assistant.Answer
	Customers() []ledger.Customer
	CustomerSummary(customerID string) (assistant.CustomerSummary, error)
	Health() assistant.Health
}

// Server routes HTTP requests to an Assistant.
type Server struct {
	svc     Assistant
	limiter *RateLimiter
	logger  *slog.Logger
}

// NewServer builds a server. limiter may be nil.
func NewServer(svc Assistant, limiter *RateLimiter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{svc: svc, limiter: limiter, logger: logger.With("component", "api")}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /analyze", s.handleAnalyze)
	mux.HandleFunc("POST /top-followups", s.handleTopFollowups)
	mux.HandleFunc("GET /analytics/question", s.handleQuestion)
	mux.HandleFunc("GET /customers", s.handleCustomers)
	mux.HandleFunc("GET /customer/{id}/summary", s.handleCustomerSummary)

	var h http.Handler = mux
	h = s.limiter.Middleware(h)
	h = Recover(s.logger)(h)
	h = AccessLog(s.logger)(h)
	h = RequestID(h)
	return h
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	if s.limiter != nil {
		go s.limiter.RunSweeper(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
