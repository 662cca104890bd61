// Package server exposes the HTTP API: report requests, job telemetry,
// account balance and history, and the internal callback and credit
// endpoints. Authentication is delegated to the fronting proxy, which sets
// X-Account-ID on every request it lets through.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tenkdelta/tenkdelta/internal/ledger"
	"github.com/tenkdelta/tenkdelta/internal/orchestrator"
	"github.com/tenkdelta/tenkdelta/internal/service"
)

// Server is the HTTP front end.
type Server struct {
	httpServer   *http.Server
	storage      service.Storage
	ledger       *ledger.Ledger
	orchestrator *orchestrator.Orchestrator
}

// New creates a server listening on addr.
func New(addr string, storage service.Storage, ldg *ledger.Ledger, orch *orchestrator.Orchestrator) *Server {
	s := &Server{
		storage:      storage,
		ledger:       ldg,
		orchestrator: orch,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /v1/reports", s.handleRequestReport)
	mux.HandleFunc("GET /v1/reports/{id}", s.handleGetReport)
	mux.HandleFunc("GET /v1/jobs/{id}", s.handleJobStatus)
	mux.HandleFunc("GET /v1/accounts/{id}/balance", s.handleBalance)
	mux.HandleFunc("GET /v1/accounts/{id}/transactions", s.handleTransactions)
	mux.HandleFunc("POST /internal/callback", s.handleCallback)
	mux.HandleFunc("POST /internal/credits", s.handleCredit)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           logRequests(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// ListenAndServe blocks until the context is canceled, then drains in-flight
// requests before returning.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("Shutting down HTTP server")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// logRequests is the access-log middleware.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Debug("Request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
